package actions

import (
	"github.com/knolabs/daela/core/llms"
)

// Registry maps action names to their handlers. It is populated once before
// a session's loop starts and is read-only afterwards, so no locking is
// required for lookups.
type Registry struct {
	order   []string
	actions map[string]Action
}

func NewRegistry(actions ...Action) (*Registry, error) {
	r := &Registry{actions: map[string]Action{}}
	for _, action := range actions {
		if err := r.Register(action); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds an action. Registering a second action under an existing
// name fails with DuplicateActionError and leaves the first handler in place.
func (r *Registry) Register(action Action) error {
	name := action.Name()
	if _, exists := r.actions[name]; exists {
		return DuplicateActionError{Name: name}
	}

	r.order = append(r.order, name)
	r.actions[name] = action
	return nil
}

// Lookup returns the action registered under name.
func (r *Registry) Lookup(name string) (Action, bool) {
	action, ok := r.actions[name]
	return action, ok
}

// DescribeAll returns every descriptor in registration order.
func (r *Registry) DescribeAll() []Descriptor {
	descriptors := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		descriptors = append(descriptors, r.actions[name].Descriptor())
	}
	return descriptors
}

// Tools renders every registered action as a model-facing tool declaration,
// in registration order.
func (r *Registry) Tools() []llms.Tool {
	tools := make([]llms.Tool, 0, len(r.order))
	for _, name := range r.order {
		tools = append(tools, r.actions[name].Tool())
	}
	return tools
}

// Len returns the number of registered actions.
func (r *Registry) Len() int { return len(r.order) }
