package transcript

import (
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	timestampLayout = "2006-01-02 15:04:05"
	blockSeparator  = "=================================================="
)

// FileWriter appends finished sessions to a flat UTF-8 text file, one
// timestamped block per session. The file is opened per write so a failure
// leaves no dangling handle; persistence failures are reported to the caller
// and are never fatal to a session.
type FileWriter struct {
	Path string
}

func NewFileWriter(path string) *FileWriter {
	return &FileWriter{Path: path}
}

// Write appends the session block for the given store. The block carries a
// start/end header, one "[ts] ROLE: content" line per message and a closing
// separator.
func (w *FileWriter) Write(store *Store) error {
	f, err := os.OpenFile(w.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open transcript file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(Format(store)); err != nil {
		return fmt.Errorf("failed to write transcript: %w", err)
	}

	return nil
}

// Format renders the session block without writing it anywhere.
func Format(store *Store) string {
	var b strings.Builder

	b.WriteString("\n" + blockSeparator + "\n")
	b.WriteString("Conversation Start: " + store.StartedAt().Format(timestampLayout) + "\n")
	b.WriteString("Conversation End: " + time.Now().Format(timestampLayout) + "\n")
	b.WriteString(blockSeparator + "\n\n")

	for _, msg := range store.Snapshot() {
		line := fmt.Sprintf("[%s] %s: %s\n",
			msg.Timestamp.Format(timestampLayout),
			strings.ToUpper(string(msg.Role)),
			msg.Content,
		)
		b.WriteString(line)
	}

	b.WriteString("\n" + blockSeparator + "\n\n")
	return b.String()
}
