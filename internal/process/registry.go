package process

import "fmt"

// Activity type tags. The registry is the closed enumeration: a tag not
// registered here is a dispatch failure.
const (
	TypeFetchResource    = "fetch_resource"
	TypeDeliverToStorage = "deliver_to_storage"
	TypeFetchFromStorage = "fetch_from_storage"
	TypeProduction       = "production"
	TypeConstructBuilding = "construct_building"
	TypeFishing          = "fishing"
	TypeEmergencyFishing = "emergency_fishing"
	TypeLeaveVenice      = "leave_venice"
	TypeFetchFromGalley  = "fetch_from_galley"
	TypeSendMessage      = "send_message"
)

// placeholderTypes are activity types whose only effect is the passage of
// time. They resolve to the placeholder processor and always succeed.
var placeholderTypes = []string{
	"idle",
	"rest",
	"goto_home",
	"goto_work",
	"goto_location",
	"stroll",
}

// Registry maps activity-type tags to processors, resolved once at startup.
type Registry struct {
	procs map[string]Processor
}

// NewRegistry builds the full static type→processor table.
func NewRegistry() *Registry {
	r := &Registry{procs: make(map[string]Processor)}

	r.register(&FetchResource{})
	r.register(&DeliverToStorage{})
	r.register(&FetchFromStorage{})
	r.register(&Production{})
	r.register(&ConstructBuilding{})
	r.register(&Fishing{tag: TypeFishing})
	r.register(&Fishing{tag: TypeEmergencyFishing})
	r.register(&LeaveVenice{})
	r.register(&FetchFromGalley{})
	r.register(&SendMessage{})

	for _, t := range placeholderTypes {
		r.register(&Placeholder{tag: t})
	}

	return r
}

func (r *Registry) register(p Processor) {
	if _, dup := r.procs[p.Type()]; dup {
		panic(fmt.Sprintf("duplicate processor for type %q", p.Type()))
	}
	r.procs[p.Type()] = p
}

// Lookup resolves the processor for a type tag.
func (r *Registry) Lookup(activityType string) (Processor, error) {
	p, ok := r.procs[activityType]
	if !ok {
		return nil, fmt.Errorf("%q: %w", activityType, ErrUnknownType)
	}
	return p, nil
}

// Types lists all registered type tags.
func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.procs))
	for t := range r.procs {
		out = append(out, t)
	}
	return out
}
