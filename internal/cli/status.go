package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/grantcarthew/webctl/internal/ipc"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	Long:  "Returns the current daemon status including whether it's running, the current URL, and page title.",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	t := startTimer("status")
	defer t.log()

	if !isDaemonRunning() {
		debugf("PARAM", "daemon not running, returning offline status")
		if JSONOutput {
			return outputSuccess(map[string]any{"running": false})
		}
		fmt.Fprintln(os.Stdout, "daemon not running")
		return nil
	}

	client, err := dialDaemon()
	if err != nil {
		return outputError(err.Error())
	}
	defer client.Close()

	debugRequest("status", "")
	ipcStart := time.Now()

	resp, err := client.Send(ipc.Request{Type: "status"})

	debugResponse(err == nil && resp.Status == ipc.StatusOK, len(resp.Data), time.Since(ipcStart))

	if err != nil {
		return outputError(err.Error())
	}
	if resp.Status != ipc.StatusOK {
		return outputIPCError(resp)
	}

	var status ipc.StatusData
	if err := json.Unmarshal(resp.Data, &status); err != nil {
		return outputError(err.Error())
	}

	if JSONOutput {
		return outputSuccess(status)
	}

	if !status.Running {
		fmt.Fprintln(os.Stdout, "No active session")
		return nil
	}

	fmt.Fprintf(os.Stdout, "Running (worker pid %d)\n", status.WorkerPID)
	if status.URL != "" {
		fmt.Fprintf(os.Stdout, "URL:   %s\n", status.URL)
	}
	if status.Title != "" {
		fmt.Fprintf(os.Stdout, "Title: %s\n", status.Title)
	}
	if status.NavigationID > 0 {
		fmt.Fprintf(os.Stdout, "Nav:   %d\n", status.NavigationID)
	}
	return nil
}
