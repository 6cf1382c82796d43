package cli

import (
	"github.com/grantcarthew/webctl/internal/ipc"
	"github.com/spf13/cobra"
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear event buffers",
	Long:  "Clears the worker's console and network telemetry buffers and its query cache.",
	Args:  cobra.NoArgs,
	RunE:  runClear,
}

func init() {
	rootCmd.AddCommand(clearCmd)
}

func runClear(cmd *cobra.Command, args []string) error {
	if !isDaemonRunning() {
		return outputError("daemon not running. Start with: webctl start")
	}

	client, err := dialDaemon()
	if err != nil {
		return outputError(err.Error())
	}
	defer client.Close()

	resp, err := client.Send(ipc.Request{Type: "clear"})
	if err != nil {
		return outputError(err.Error())
	}
	if resp.Status != ipc.StatusOK {
		return outputIPCError(resp)
	}

	return outputSuccess(map[string]string{"message": "buffers cleared"})
}
