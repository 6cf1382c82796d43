// Package paths computes the well-known, per-user session directory and
// the file paths within it, using an XDG_RUNTIME_DIR-first,
// /tmp/webctl-<uid> fallback convention.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
)

// SessionDir returns the per-user session directory path. It does not
// create the directory; EnsureSessionDir does.
func SessionDir() string {
	if runtimeDir := os.Getenv("XDG_RUNTIME_DIR"); runtimeDir != "" {
		return filepath.Join(runtimeDir, "webctl")
	}
	return fmt.Sprintf("/tmp/webctl-%d", os.Getuid())
}

// EnsureSessionDir creates the session directory with owner-only permissions.
func EnsureSessionDir() (string, error) {
	dir := SessionDir()
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("create session directory: %w", err)
	}
	return dir, nil
}

// SocketPath returns the Unix socket path.
func SocketPath() string { return filepath.Join(SessionDir(), "daemon.sock") }

// PIDPath returns the daemon PID file path, used by `webctl stop --force`
// to locate an unresponsive daemon to kill directly.
func PIDPath() string { return filepath.Join(SessionDir(), "daemon.pid") }

// SessionJSONPath returns the session metadata file path.
func SessionJSONPath() string { return filepath.Join(SessionDir(), "session.json") }

// QueryCachePath returns the query-cache file path.
func QueryCachePath() string { return filepath.Join(SessionDir(), "query-cache.json") }

// DaemonLogPath returns the daemon log file path.
func DaemonLogPath() string { return filepath.Join(SessionDir(), "daemon.log") }

// WorkerLogPath returns the worker log file path.
func WorkerLogPath() string { return filepath.Join(SessionDir(), "worker.log") }
