package actions

import (
	"context"
	"errors"
	"testing"
)

type echoParams struct {
	Text  string `json:"text" jsonschema:"description=Text to echo back"`
	Count int    `json:"count,omitempty"`
}

func newEchoAction() Action {
	return New("echo", "Echoes text back",
		func(_ context.Context, args echoParams) (string, error) {
			return args.Text, nil
		},
	)
}

func TestDescriptorReflectsParameterSchema(t *testing.T) {
	descriptor := newEchoAction().Descriptor()

	if len(descriptor.Parameters) != 2 {
		t.Fatalf("expected 2 parameters, got %d", len(descriptor.Parameters))
	}
	if descriptor.Parameters[0].Name != "text" || !descriptor.Parameters[0].Required {
		t.Fatalf("expected first parameter to be required %q, got %+v", "text", descriptor.Parameters[0])
	}
	if descriptor.Parameters[1].Name != "count" || descriptor.Parameters[1].Required {
		t.Fatalf("expected second parameter to be optional %q, got %+v", "count", descriptor.Parameters[1])
	}
	if descriptor.Parameters[0].Description != "Text to echo back" {
		t.Fatalf("expected description from jsonschema tag, got %q", descriptor.Parameters[0].Description)
	}
}

func TestExecuteFailsFastOnMissingRequiredParameter(t *testing.T) {
	_, err := newEchoAction().Execute(context.Background(), `{"count": 3}`)

	var invalidErr InvalidArgumentsError
	if !errors.As(err, &invalidErr) {
		t.Fatalf("expected InvalidArgumentsError, got %v", err)
	}
}

func TestExecuteFailsFastOnWrongParameterType(t *testing.T) {
	_, err := newEchoAction().Execute(context.Background(), `{"text": 42}`)

	var invalidErr InvalidArgumentsError
	if !errors.As(err, &invalidErr) {
		t.Fatalf("expected InvalidArgumentsError, got %v", err)
	}
}

func TestExecuteFailsFastOnBlankRequiredString(t *testing.T) {
	_, err := newEchoAction().Execute(context.Background(), `{"text": ""}`)

	var invalidErr InvalidArgumentsError
	if !errors.As(err, &invalidErr) {
		t.Fatalf("expected InvalidArgumentsError, got %v", err)
	}
}

func TestExecuteNeverCallsHandlerOnValidationFailure(t *testing.T) {
	called := false
	action := New("probe", "Tracks handler invocation",
		func(_ context.Context, _ echoParams) (string, error) {
			called = true
			return "", nil
		},
	)

	_, _ = action.Execute(context.Background(), `{}`)
	if called {
		t.Fatal("expected handler to stay uncalled after validation failure")
	}
}

func TestExecuteRunsHandlerWithValidArguments(t *testing.T) {
	result, err := newEchoAction().Execute(context.Background(), `{"text": "hello", "count": 2}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "hello" {
		t.Fatalf("expected %q, got %q", "hello", result)
	}
}

func TestExecuteWrapsHandlerFailures(t *testing.T) {
	handlerErr := errors.New("downstream broke")
	action := New("fragile", "Always fails",
		func(_ context.Context, _ echoParams) (string, error) {
			return "", handlerErr
		},
	)

	_, err := action.Execute(context.Background(), `{"text": "x"}`)
	if !errors.Is(err, handlerErr) {
		t.Fatalf("expected wrapped handler error, got %v", err)
	}
}

func TestExecuteTreatsEmptyArgumentsAsEmptyObject(t *testing.T) {
	action := New("no_params", "Needs no arguments",
		func(_ context.Context, _ struct{}) (string, error) {
			return "ok", nil
		},
	)

	result, err := action.Execute(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "ok" {
		t.Fatalf("expected ok, got %q", result)
	}
}
