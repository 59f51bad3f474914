package actions

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeWeatherSource struct {
	received string
	report   string
	err      error
}

func (s *fakeWeatherSource) Current(_ context.Context, location string) (string, error) {
	s.received = location
	return s.report, s.err
}

func TestWeatherActionReportsCurrentConditions(t *testing.T) {
	source := &fakeWeatherSource{report: "The weather in Berlin is partly cloudy, 18 degrees."}
	action := NewWeatherAction(source)

	result, err := action.Execute(context.Background(), `{"location": "Berlin"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != source.report {
		t.Fatalf("expected report %q, got %q", source.report, result)
	}
	if source.received != "Berlin" {
		t.Fatalf("expected lookup for Berlin, got %q", source.received)
	}
}

func TestWeatherActionStripsSpecialCharactersFromLocation(t *testing.T) {
	source := &fakeWeatherSource{report: "fine"}
	action := NewWeatherAction(source)

	_, err := action.Execute(context.Background(), `{"location": "San José; DROP TABLE--"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, forbidden := range []string{";", "-", "é"} {
		if strings.Contains(source.received, forbidden) {
			t.Fatalf("expected %q to be stripped from location, got %q", forbidden, source.received)
		}
	}
}

func TestWeatherActionTurnsLookupFailureIntoApology(t *testing.T) {
	source := &fakeWeatherSource{err: errors.New("upstream timeout")}
	action := NewWeatherAction(source)

	result, err := action.Execute(context.Background(), `{"location": "Atlantis"}`)
	if err != nil {
		t.Fatalf("expected lookup failure to be swallowed, got error %v", err)
	}
	if result != "Sorry, I couldn't retrieve the weather for Atlantis." {
		t.Fatalf("unexpected apology: %q", result)
	}
}

func TestWeatherActionRejectsMissingLocation(t *testing.T) {
	source := &fakeWeatherSource{}
	action := NewWeatherAction(source)

	_, err := action.Execute(context.Background(), `{}`)

	var invalidErr InvalidArgumentsError
	if !errors.As(err, &invalidErr) {
		t.Fatalf("expected InvalidArgumentsError, got %v", err)
	}
	if source.received != "" {
		t.Fatal("expected no lookup on invalid arguments")
	}
}
