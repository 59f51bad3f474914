package llms

import "encoding/json"

// Tool describes a callable operation advertised to the model's
// tool-selection mechanism. Parameters holds the JSON schema of the
// tool's argument object.
type Tool struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}
