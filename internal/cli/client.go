package cli

import (
	"fmt"

	"github.com/grantcarthew/webctl/internal/ipc"
	"github.com/grantcarthew/webctl/internal/paths"
)

// dialDaemon connects to the daemon's Unix socket, the sole transport the
// CLI uses now that the daemon always runs as a separate process (unlike
// the teacher's CommandExecutor closure, which let the REPL skip IPC by
// calling the in-process daemon handler directly).
func dialDaemon() (*ipc.Client, error) {
	c, err := ipc.DialPath(paths.SocketPath())
	if err != nil {
		return nil, fmt.Errorf("connect to daemon: %w", err)
	}
	return c, nil
}

// isDaemonRunning reports whether a daemon is currently listening.
func isDaemonRunning() bool {
	return ipc.IsDaemonRunningAt(paths.SocketPath())
}
