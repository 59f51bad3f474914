package actions

import (
	"context"
	"errors"
	"testing"
)

func TestRegisterRejectsDuplicateNames(t *testing.T) {
	registry, err := NewRegistry(NewTriageAction())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err = registry.Register(New("assess_dental_urgency", "duplicate",
		func(_ context.Context, _ struct{}) (string, error) { return "should never run", nil },
	))

	var duplicateErr DuplicateActionError
	if !errors.As(err, &duplicateErr) {
		t.Fatalf("expected DuplicateActionError, got %v", err)
	}
	if duplicateErr.Name != "assess_dental_urgency" {
		t.Fatalf("expected error to name the colliding action, got %q", duplicateErr.Name)
	}
}

func TestDuplicateRegistrationKeepsOriginalHandler(t *testing.T) {
	registry, err := NewRegistry(NewTriageAction())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_ = registry.Register(New("assess_dental_urgency", "duplicate",
		func(_ context.Context, _ struct{}) (string, error) { return "impostor", nil },
	))

	action, ok := registry.Lookup("assess_dental_urgency")
	if !ok {
		t.Fatal("expected original action to remain registered")
	}
	result, err := action.Execute(context.Background(), `{"symptom_description": "swelling"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "urgent" {
		t.Fatalf("expected original handler result, got %q", result)
	}
}

func TestDescribeAllPreservesRegistrationOrder(t *testing.T) {
	registry, err := NewRegistry(NewTriageAction(), NewAnalyzeImageAction())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	descriptors := registry.DescribeAll()
	if len(descriptors) != 2 {
		t.Fatalf("expected 2 descriptors, got %d", len(descriptors))
	}
	if descriptors[0].Name != "assess_dental_urgency" || descriptors[1].Name != "analyze_dental_image" {
		t.Fatalf("unexpected descriptor order: %q, %q", descriptors[0].Name, descriptors[1].Name)
	}
}

func TestToolsAdvertiseEveryAction(t *testing.T) {
	registry, err := NewRegistry(NewTriageAction(), NewAnalyzeImageAction())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tools := registry.Tools()
	if len(tools) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(tools))
	}
	for _, tool := range tools {
		if len(tool.Parameters) == 0 {
			t.Fatalf("expected tool %q to carry a parameter schema", tool.Name)
		}
	}
}
