// Structured-column decoding. Path and resource payloads arrive as JSON
// text from the record store; they are validated against a schema once, at
// the pipeline boundary, so processors receive typed values and never
// re-parse blobs.
package model

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrBadPayload marks a path or resource column that failed decoding or
// schema validation. Such activities fail; their payload is never
// partially applied.
var ErrBadPayload = errors.New("malformed payload")

const pathSchemaSrc = `{
	"type": "array",
	"items": {
		"type": "object",
		"properties": {
			"lat": {"type": "number", "minimum": -90, "maximum": 90},
			"lng": {"type": "number", "minimum": -180, "maximum": 180},
			"transportMode": {"type": "string"},
			"buildingId": {"type": "string"}
		},
		"required": ["lat", "lng"]
	}
}`

const resourcesSchemaSrc = `{
	"type": "array",
	"items": {
		"type": "object",
		"properties": {
			"type": {"type": "string", "minLength": 1},
			"amount": {"type": "integer", "minimum": 1}
		},
		"required": ["type", "amount"]
	}
}`

var (
	pathSchema      = jsonschema.MustCompileString("path.json", pathSchemaSrc)
	resourcesSchema = jsonschema.MustCompileString("resources.json", resourcesSchemaSrc)
)

// Path decodes and validates the activity's waypoint list. An empty or
// missing path is valid and yields nil.
func (a *Activity) Path() ([]Waypoint, error) {
	if a.PathJSON == "" {
		return nil, nil
	}
	if err := validate(pathSchema, a.PathJSON); err != nil {
		return nil, fmt.Errorf("path payload: %w: %v", ErrBadPayload, err)
	}
	var wps []Waypoint
	if err := json.Unmarshal([]byte(a.PathJSON), &wps); err != nil {
		return nil, fmt.Errorf("path payload: %w: %v", ErrBadPayload, err)
	}
	return wps, nil
}

// Resources decodes and validates the activity's resource payload.
func (a *Activity) Resources() ([]ResourceAmount, error) {
	if a.ResourcesJSON == "" {
		return nil, nil
	}
	if err := validate(resourcesSchema, a.ResourcesJSON); err != nil {
		return nil, fmt.Errorf("resource payload: %w: %v", ErrBadPayload, err)
	}
	var res []ResourceAmount
	if err := json.Unmarshal([]byte(a.ResourcesJSON), &res); err != nil {
		return nil, fmt.Errorf("resource payload: %w: %v", ErrBadPayload, err)
	}
	return res, nil
}

func validate(sch *jsonschema.Schema, raw string) error {
	var v interface{}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return err
	}
	return sch.Validate(v)
}

// EncodeWaypoints serializes a waypoint list for storage.
func EncodeWaypoints(wps []Waypoint) string {
	b, _ := json.Marshal(wps)
	return string(b)
}

// EncodeResources serializes a resource payload for storage.
func EncodeResources(res []ResourceAmount) string {
	b, _ := json.Marshal(res)
	return string(b)
}
