package actions

import (
	"context"
	"strings"
)

// urgentKeywords is the fixed set of phrases that mark a described dental
// issue as urgent. Matching is case-insensitive substring membership.
var urgentKeywords = []string{"severe pain", "swelling", "bleeding", "trauma", "knocked out"}

// TriageParams are the arguments of the urgency triage action.
type TriageParams struct {
	SymptomDescription string `json:"symptom_description" jsonschema:"description=The user's description of the dental issue"`
}

// NewTriageAction builds the urgency triage action: a pure, deterministic
// keyword scan over the symptom description. It performs no I/O.
func NewTriageAction(opts ...Option) Action {
	return New(
		"assess_dental_urgency",
		"Assess the urgency of a dental issue based on the user's description.",
		func(_ context.Context, params TriageParams) (string, error) {
			return Triage(params.SymptomDescription), nil
		},
		opts...,
	)
}

// Triage returns "urgent" when the description mentions any urgent keyword,
// "not urgent" otherwise. Same input always yields the same output.
func Triage(symptomDescription string) string {
	description := strings.ToLower(symptomDescription)
	for _, keyword := range urgentKeywords {
		if strings.Contains(description, keyword) {
			return "urgent"
		}
	}
	return "not urgent"
}
