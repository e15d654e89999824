// Package geo provides great-circle distance and position parsing for the
// lagoon coordinate space.
package geo

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/talmora/rialto/internal/model"
)

// EarthRadiusKm is the fixed radius used for haversine distances.
const EarthRadiusKm = 6371.0

// HaversineKm returns the great-circle distance in kilometers between two
// lat/lng points.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	const degToRad = math.Pi / 180

	dLat := (lat2 - lat1) * degToRad
	dLng := (lng2 - lng1) * degToRad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*degToRad)*math.Cos(lat2*degToRad)*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c
}

// ParsePositionJSON decodes a stored position blob. Returns false when the
// blob is empty or unparseable.
func ParsePositionJSON(raw string) (model.Position, bool) {
	if strings.TrimSpace(raw) == "" {
		return model.Position{}, false
	}
	var p model.Position
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return model.Position{}, false
	}
	if p.Lat == 0 && p.Lng == 0 {
		return model.Position{}, false
	}
	return p, true
}

// ParseIdentifierPosition extracts coordinates from structured identifiers
// of the form "building_45.431864_12.334329" (any prefix, last two
// underscore-separated tokens are lat and lng). Fallback for records whose
// stored position is absent.
func ParseIdentifierPosition(id string) (model.Position, bool) {
	parts := strings.Split(id, "_")
	if len(parts) < 3 {
		return model.Position{}, false
	}
	lat, err1 := strconv.ParseFloat(parts[len(parts)-2], 64)
	lng, err2 := strconv.ParseFloat(parts[len(parts)-1], 64)
	if err1 != nil || err2 != nil {
		return model.Position{}, false
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return model.Position{}, false
	}
	return model.Position{Lat: lat, Lng: lng}, true
}

// EncodePosition serializes a position for storage.
func EncodePosition(p model.Position) string {
	b, _ := json.Marshal(p)
	return string(b)
}
