package actions

import "fmt"

// DuplicateActionError is returned when registering an action under a name
// that is already taken.
type DuplicateActionError struct {
	Name string
}

func (e DuplicateActionError) Error() string {
	return fmt.Sprintf("action already registered: %s", e.Name)
}

// InvalidArgumentsError is returned when a model-selected invocation carries
// arguments that do not satisfy the action's parameter schema. The handler is
// never called when validation fails.
type InvalidArgumentsError struct {
	Action string
	Reason string
}

func (e InvalidArgumentsError) Error() string {
	return fmt.Sprintf("invalid arguments for action %q: %s", e.Action, e.Reason)
}
