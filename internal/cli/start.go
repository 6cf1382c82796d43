package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/grantcarthew/webctl/internal/ipc"
	"github.com/grantcarthew/webctl/internal/paths"
	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start daemon and browser",
	Long:  "Spawns the webctl daemon detached, then asks it to launch a browser and begin capturing CDP events.",
	RunE:  runStart,
}

var (
	startHeadless   bool
	startURL        string
	startChromeArgs []string
)

func init() {
	startCmd.Flags().BoolVar(&startHeadless, "headless", false, "Run browser in headless mode")
	startCmd.Flags().StringVar(&startURL, "url", "", "Initial URL to navigate to")
	startCmd.Flags().StringArrayVar(&startChromeArgs, "chrome-arg", nil, "Extra Chrome command-line flag (repeatable)")
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	t := startTimer("start")
	defer t.log()

	if isDaemonRunning() {
		outputHint("use 'webctl stop' to stop the daemon, or 'webctl stop --force' to force cleanup")
		return outputError("daemon is already running")
	}

	debugParam("headless=%v url=%q", startHeadless, startURL)

	if err := spawnDaemon(); err != nil {
		return outputError(fmt.Sprintf("spawn daemon: %v", err))
	}

	if err := waitForDaemonSocket(5 * time.Second); err != nil {
		outputHint("check the daemon log for details: " + paths.DaemonLogPath())
		return outputError(err.Error())
	}

	client, err := dialDaemon()
	if err != nil {
		return outputError(err.Error())
	}
	defer client.Close()

	params, err := json.Marshal(ipc.StartParams{URL: startURL, Headless: startHeadless, ChromeArgs: startChromeArgs})
	if err != nil {
		return outputError(err.Error())
	}

	debugRequest("start_session", fmt.Sprintf("headless=%v url=%q", startHeadless, startURL))
	ipcStart := time.Now()

	resp, err := client.Send(ipc.Request{Type: "start_session", Params: params})

	debugResponse(err == nil && resp.Status == ipc.StatusOK, len(resp.Data), time.Since(ipcStart))

	if err != nil {
		return outputError(err.Error())
	}
	if resp.Status != ipc.StatusOK {
		outputHint("use 'webctl stop --force' to kill orphaned processes")
		return outputIPCError(resp)
	}

	if JSONOutput {
		return outputSuccess(map[string]any{
			"message":  "session started",
			"headless": startHeadless,
		})
	}
	return outputSuccess(nil)
}

// spawnDaemon launches webctl-daemon detached from the CLI process so it
// outlives this invocation, mirroring the teacher's browser launch idiom
// in internal/browser/launch.go: resolve the binary, build argv, start it
// with its own process group, and release it.
func spawnDaemon() error {
	bin, err := resolveDaemonBinary()
	if err != nil {
		return err
	}

	cmd := exec.Command(bin)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", bin, err)
	}
	return cmd.Process.Release()
}

// resolveDaemonBinary finds webctl-daemon next to the running webctl
// binary, falling back to $PATH.
func resolveDaemonBinary() (string, error) {
	if self, err := os.Executable(); err == nil {
		sibling := filepath.Join(filepath.Dir(self), "webctl-daemon")
		if _, statErr := os.Stat(sibling); statErr == nil {
			return sibling, nil
		}
	}
	if path, err := exec.LookPath("webctl-daemon"); err == nil {
		return path, nil
	}
	return "", fmt.Errorf("webctl-daemon not found next to webctl or on PATH")
}

// waitForDaemonSocket polls for the daemon's Unix socket to come up,
// bounded by timeout.
func waitForDaemonSocket(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if isDaemonRunning() {
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	return fmt.Errorf("daemon did not start within %s", timeout)
}
