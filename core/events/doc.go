// Package events defines the typed session event contract.
//
// Event kinds are grouped by source-facing namespaces:
//
//   - participant.*: remote participant lifecycle.
//   - user_input.*: text and transcribed speech from the participant.
//   - frame.*: video frames captured from the participant.
//   - action.*: action execution lifecycle.
//   - session.*: connection lifecycle.
//
// Every event carries a creation timestamp. Events are delivered to the
// session loop in arrival order over a single channel, so ordering between
// kinds reflects arrival at the process, not capture time at the source.
package events
