package actions

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"reflect"

	"github.com/invopop/jsonschema"
	"github.com/knolabs/daela/core/llms"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Parameter is a single entry of an action's ordered parameter list, as
// advertised to the model.
type Parameter struct {
	Name        string
	Type        string
	Description string
	Required    bool
}

// Descriptor is the immutable, human-readable description of an action used
// for the model's tool selection.
type Descriptor struct {
	Name        string
	Description string
	Parameters  []Parameter

	// AttachesFrame marks pass-through actions whose only effect is to make
	// the session re-issue the triggering message with the latest cached
	// video frame attached.
	AttachesFrame bool
}

// Action pairs a descriptor with a typed handler. The zero value is not
// usable; construct actions with New.
type Action struct {
	descriptor Descriptor
	schema     *jsonschema.Schema
	fillers    []string

	invoke func(ctx context.Context, arguments string) (string, error)
}

type Option func(*Action)

// WithFillers sets the pool of spoken filler phrases emitted while this
// action is in flight. Selection among them is random.
func WithFillers(fillers ...string) Option {
	return func(a *Action) { a.fillers = fillers }
}

// WithFrameAttachment marks the action as a pass-through vision trigger.
func WithFrameAttachment() Option {
	return func(a *Action) { a.descriptor.AttachesFrame = true }
}

// New builds an action whose parameter schema is reflected from T. Fields of
// T declare their wire name with a json tag and their description with a
// jsonschema tag; all non-omitempty fields are required.
func New[T any](name, description string, handler func(ctx context.Context, args T) (string, error), opts ...Option) Action {
	reflector := jsonschema.Reflector{DoNotReference: true}

	var zero T
	var schema *jsonschema.Schema
	if reflect.TypeOf(zero).Kind() == reflect.Ptr {
		schema = reflector.ReflectFromType(reflect.TypeOf(zero).Elem())
	} else {
		schema = reflector.Reflect(zero)
	}

	action := Action{
		descriptor: Descriptor{
			Name:        name,
			Description: description,
			Parameters:  schemaParameters(schema),
		},
		schema: schema,
	}
	action.invoke = func(ctx context.Context, arguments string) (string, error) {
		var args T
		if err := json.Unmarshal([]byte(normalizeArguments(arguments)), &args); err != nil {
			return "", InvalidArgumentsError{Action: name, Reason: err.Error()}
		}
		return handler(ctx, args)
	}

	for _, opt := range opts {
		opt(&action)
	}

	return action
}

func (a Action) Descriptor() Descriptor { return a.descriptor }
func (a Action) Name() string           { return a.descriptor.Name }
func (a Action) Fillers() []string      { return a.fillers }

// Tool renders the action as a model-facing tool declaration.
func (a Action) Tool() llms.Tool {
	parameters, err := json.Marshal(a.schema)
	if err != nil {
		// The schema came out of the reflector, marshalling it cannot
		// realistically fail; fall back to an open object schema.
		parameters = []byte(`{"type":"object"}`)
	}

	return llms.Tool{
		Name:        a.descriptor.Name,
		Description: a.descriptor.Description,
		Parameters:  parameters,
	}
}

// Execute validates the raw argument object against the action's schema and
// runs the handler. Validation failures are reported as
// InvalidArgumentsError before the handler is called.
func (a Action) Execute(ctx context.Context, arguments string) (string, error) {
	ctx, span := tracer.Start(ctx, "execute action")
	defer span.End()
	span.SetAttributes(attribute.String("action.name", a.descriptor.Name))

	if err := a.validate(arguments); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	response, err := a.invoke(ctx, arguments)
	if err != nil {
		err = fmt.Errorf("failed to execute action %q: %w", a.descriptor.Name, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	return response, nil
}

func (a Action) validate(arguments string) error {
	var raw map[string]any
	if err := json.Unmarshal([]byte(normalizeArguments(arguments)), &raw); err != nil {
		return InvalidArgumentsError{Action: a.descriptor.Name, Reason: fmt.Sprintf("malformed argument object: %v", err)}
	}

	for _, param := range a.descriptor.Parameters {
		value, present := raw[param.Name]
		if !present {
			if param.Required {
				return InvalidArgumentsError{Action: a.descriptor.Name, Reason: fmt.Sprintf("missing required parameter %q", param.Name)}
			}
			continue
		}

		if !matchesType(value, param.Type) {
			return InvalidArgumentsError{
				Action: a.descriptor.Name,
				Reason: fmt.Sprintf("parameter %q is not of type %s", param.Name, param.Type),
			}
		}

		if param.Required && param.Type == "string" {
			if s, ok := value.(string); ok && s == "" {
				return InvalidArgumentsError{Action: a.descriptor.Name, Reason: fmt.Sprintf("required parameter %q is blank", param.Name)}
			}
		}
	}

	return nil
}

func normalizeArguments(arguments string) string {
	if arguments == "" {
		return "{}"
	}
	return arguments
}

func matchesType(value any, schemaType string) bool {
	switch schemaType {
	case "string":
		_, ok := value.(string)
		return ok
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "number":
		_, ok := value.(float64)
		return ok
	case "integer":
		number, ok := value.(float64)
		return ok && number == math.Trunc(number)
	default:
		return true
	}
}

func schemaParameters(schema *jsonschema.Schema) []Parameter {
	if schema == nil || schema.Properties == nil {
		return nil
	}

	required := map[string]bool{}
	for _, name := range schema.Required {
		required[name] = true
	}

	var parameters []Parameter
	for pair := schema.Properties.Oldest(); pair != nil; pair = pair.Next() {
		parameters = append(parameters, Parameter{
			Name:        pair.Key,
			Type:        pair.Value.Type,
			Description: pair.Value.Description,
			Required:    required[pair.Key],
		})
	}
	return parameters
}
