package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/grantcarthew/webctl/internal/ipc"
	"github.com/grantcarthew/webctl/internal/paths"
	"github.com/spf13/cobra"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the daemon",
	Long: `Sends a shutdown command to the running daemon, which stops the worker,
closes the browser, and exits.

Use --force to forcefully terminate processes and clean up stale files when
the daemon is unresponsive or processes are orphaned.

Force cleanup sequence:
  1. Attempt graceful shutdown via IPC
  2. Kill daemon process from PID file
  3. Remove stale socket, PID, and session files`,
	RunE: runStop,
}

var stopForce bool

func init() {
	stopCmd.Flags().BoolVar(&stopForce, "force", false, "Force kill the daemon and clean up stale files")
	rootCmd.AddCommand(stopCmd)
}

func runStop(cmd *cobra.Command, args []string) error {
	t := startTimer("stop")
	defer t.log()

	debugParam("force=%v", stopForce)

	gracefulOK := tryGracefulShutdown()

	if gracefulOK && !stopForce {
		if JSONOutput {
			return outputSuccess(map[string]string{"message": "daemon stopped"})
		}
		return outputSuccess(nil)
	}

	if !stopForce {
		return outputError("daemon not running or not responding")
	}

	return forceCleanup()
}

// tryGracefulShutdown asks the daemon to shut down via IPC. Returns true
// if the daemon acknowledged.
func tryGracefulShutdown() bool {
	if !isDaemonRunning() {
		debugf("STOP", "daemon not running")
		return false
	}

	client, err := dialDaemon()
	if err != nil {
		debugf("STOP", "failed to dial daemon: %v", err)
		return false
	}
	defer client.Close()

	debugRequest("shutdown", "")
	ipcStart := time.Now()

	resp, err := client.Send(ipc.Request{Type: "shutdown"})

	debugResponse(err == nil && resp.Status == ipc.StatusOK, len(resp.Data), time.Since(ipcStart))

	if err != nil {
		debugf("STOP", "IPC error: %v", err)
		return false
	}
	if resp.Status != ipc.StatusOK {
		debugf("STOP", "shutdown failed: %s", resp.Error)
		return false
	}
	return true
}

// forceCleanup kills the daemon process from its PID file and removes
// stale session files.
func forceCleanup() error {
	var cleaned []string
	var errs []string

	pidPath := paths.PIDPath()
	if pid, err := readPIDFile(pidPath); err == nil {
		if killProcess(pid) {
			cleaned = append(cleaned, fmt.Sprintf("killed daemon (PID %d)", pid))
			debugf("STOP", "killed daemon PID %d", pid)
		} else {
			debugf("STOP", "daemon PID %d not running", pid)
		}
	} else {
		debugf("STOP", "no PID file or error: %v", err)
	}

	socketPath := paths.SocketPath()
	if err := os.Remove(socketPath); err == nil {
		cleaned = append(cleaned, "removed socket file")
	} else if !os.IsNotExist(err) {
		errs = append(errs, fmt.Sprintf("failed to remove socket: %v", err))
	}

	if err := os.Remove(pidPath); err == nil {
		cleaned = append(cleaned, "removed PID file")
	} else if !os.IsNotExist(err) {
		errs = append(errs, fmt.Sprintf("failed to remove PID file: %v", err))
	}

	if err := os.Remove(paths.SessionJSONPath()); err == nil {
		cleaned = append(cleaned, "removed session file")
	} else if !os.IsNotExist(err) {
		errs = append(errs, fmt.Sprintf("failed to remove session file: %v", err))
	}

	if len(errs) > 0 {
		return outputError(strings.Join(errs, "; "))
	}

	if len(cleaned) == 0 {
		if JSONOutput {
			return outputSuccess(map[string]string{"message": "nothing to clean up"})
		}
		fmt.Fprintln(os.Stdout, "Nothing to clean up")
		return nil
	}

	if JSONOutput {
		return outputSuccess(map[string]any{
			"message": "force cleanup complete",
			"actions": cleaned,
		})
	}

	for _, action := range cleaned {
		fmt.Fprintln(os.Stdout, action)
	}
	return nil
}

// readPIDFile reads the PID from the given file path.
func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID in file: %w", err)
	}
	return pid, nil
}

// killProcess sends SIGKILL to the given PID.
// Returns true if the process was killed, false if it wasn't running or permission denied.
func killProcess(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	if err := process.Kill(); err != nil {
		return false
	}
	return true
}
