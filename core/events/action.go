package events

const (
	// KindActionStarted identifies the start of an action execution.
	KindActionStarted Kind = "action.started"
	// KindActionCompleted identifies a finished action execution, successful
	// or not.
	KindActionCompleted Kind = "action.completed"
)

// ActionStarted marks the start of an action execution.
type ActionStarted struct {
	Base
	Name string
}

// NewActionStarted creates an action started event.
func NewActionStarted(name string) ActionStarted {
	return ActionStarted{Base: NewBase(KindActionStarted), Name: name}
}

// ActionCompleted carries the outcome of an action execution. Err is nil on
// success; Result holds the text handed back to the model either way.
type ActionCompleted struct {
	Base
	Name   string
	CallID string
	Result string
	Err    error
}

// NewActionCompleted creates an action completed event.
func NewActionCompleted(name, callID, result string, err error) ActionCompleted {
	return ActionCompleted{
		Base:   NewBase(KindActionCompleted),
		Name:   name,
		CallID: callID,
		Result: result,
		Err:    err,
	}
}
