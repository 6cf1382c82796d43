// Package session models the single active browser session tracked by the
// daemon and persisted to session.json, grounded on the teacher's PID-file
// idiom in daemon/daemon.go (writePIDFile/removePIDFile) generalized from a
// bare PID to the fuller session record the three-process model needs.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/grantcarthew/webctl/internal/paths"
)

// Session is the daemon's record of the one worker process it supervises,
// persisted so a later webctl CLI invocation (or daemon restart) can
// recover whether a session is running without holding any in-memory state
// itself (spec §2 "CLI is short-lived").
type Session struct {
	WorkerPID   int       `json:"workerPid"`
	ChromePID   int       `json:"chromePid,omitempty"`
	DevToolsURL string    `json:"devtoolsUrl"`
	TargetID    string    `json:"targetId,omitempty"`
	TargetURL   string    `json:"targetUrl,omitempty"`
	TargetTitle string    `json:"targetTitle,omitempty"`
	StartedAt   time.Time `json:"startedAt"`
	Headless    bool      `json:"headless"`
}

// Write atomically persists the session record to session.json, using the
// teacher's temp-file-then-rename pattern so a crash mid-write never leaves
// a corrupt file for the next reader (internal/daemon daemon.go
// writePIDFile).
func Write(s *Session) error {
	dir, err := paths.EnsureSessionDir()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	final := filepath.Join(dir, "session.json")
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write session temp file: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		return fmt.Errorf("rename session file: %w", err)
	}
	return nil
}

// Read loads the persisted session record. It returns os.ErrNotExist
// (wrapped) when no session file exists, which callers treat as "no
// active session" rather than an error worth logging.
func Read() (*Session, error) {
	data, err := os.ReadFile(paths.SessionJSONPath())
	if err != nil {
		return nil, err
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &s, nil
}

// Remove deletes the persisted session record. Absence is not an error.
func Remove() error {
	err := os.Remove(paths.SessionJSONPath())
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}

// Exists reports whether a session record is currently present.
func Exists() bool {
	_, err := os.Stat(paths.SessionJSONPath())
	return err == nil
}
