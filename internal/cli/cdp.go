package cli

import (
	"encoding/json"
	"os"
	"time"

	"github.com/grantcarthew/webctl/internal/ipc"
	"github.com/spf13/cobra"
)

var cdpCmd = &cobra.Command{
	Use:   "cdp <method> [params-json]",
	Short: "Send a raw Chrome DevTools Protocol command",
	Long: `Escape hatch for CDP methods not covered by a dedicated command.
params-json, if given, must be a JSON object and is passed through verbatim
as the CDP command's params.

Examples:
  cdp Page.reload
  cdp Emulation.setDeviceMetricsOverride '{"width":375,"height":812,"deviceScaleFactor":2,"mobile":true}'`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runCDP,
}

func init() {
	rootCmd.AddCommand(cdpCmd)
}

func runCDP(cmd *cobra.Command, args []string) error {
	t := startTimer("cdp")
	defer t.log()

	if !isDaemonRunning() {
		return outputError("daemon not running. Start with: webctl start")
	}

	method := args[0]
	var rawParams json.RawMessage
	if len(args) == 2 {
		if !json.Valid([]byte(args[1])) {
			return outputError("params must be valid JSON")
		}
		rawParams = json.RawMessage(args[1])
	}

	client, err := dialDaemon()
	if err != nil {
		return outputError(err.Error())
	}
	defer client.Close()

	params, err := json.Marshal(struct {
		Method string          `json:"method"`
		Params json.RawMessage `json:"params,omitempty"`
	}{Method: method, Params: rawParams})
	if err != nil {
		return outputError(err.Error())
	}

	debugRequest("cdp_send", method)
	ipcStart := time.Now()
	resp, err := client.Send(ipc.Request{Type: "cdp_send", Params: params})
	debugResponse(err == nil && resp.Status == ipc.StatusOK, len(resp.Data), time.Since(ipcStart))

	if err != nil {
		return outputError(err.Error())
	}
	if resp.Status != ipc.StatusOK {
		return outputIPCError(resp)
	}

	return outputJSON(os.Stdout, json.RawMessage(resp.Data))
}
