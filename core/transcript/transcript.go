package transcript

import (
	"sync"
	"time"
)

// Role describes who a transcript entry is from.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single transcript entry. Messages are immutable once appended.
type Message struct {
	Timestamp time.Time
	Role      Role
	Content   string

	// HasImage marks messages that carried an image attachment when they
	// were sent to the model.
	HasImage bool
}

// Store is an append-only ordered log of role-tagged messages. Append and
// Snapshot are safe for concurrent use; past entries are never reordered or
// mutated.
type Store struct {
	mu       sync.RWMutex
	messages []Message
	started  time.Time
}

func NewStore() *Store {
	return &Store{started: time.Now()}
}

// StartedAt is the time the store was created, used as the session start
// marker when persisting.
func (s *Store) StartedAt() time.Time {
	return s.started
}

// Append adds a message to the end of the transcript. A zero timestamp is
// filled in with the current time.
func (s *Store) Append(msg Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
}

// Snapshot returns a copy of all messages in insertion order.
func (s *Store) Snapshot() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages := make([]Message, len(s.messages))
	copy(messages, s.messages)
	return messages
}

// Len returns the number of appended messages.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Last returns the most recently appended message, or false when empty.
func (s *Store) Last() (Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.messages) == 0 {
		return Message{}, false
	}
	return s.messages[len(s.messages)-1], true
}
