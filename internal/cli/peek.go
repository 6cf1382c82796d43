package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/grantcarthew/webctl/internal/ipc"
	"github.com/grantcarthew/webctl/internal/telemetry"
	"github.com/spf13/cobra"
)

var peekCmd = &cobra.Command{
	Use:   "peek <selector>",
	Short: "Resolve a selector from the query cache, re-querying only if stale",
	Long: `Peek returns the cached result of a prior "dom query" for the given
selector without hitting the page again, unless the page has navigated
since the result was cached, in which case it re-runs the query.`,
	Args: cobra.ExactArgs(1),
	RunE: runPeek,
}

func init() {
	rootCmd.AddCommand(peekCmd)
}

func runPeek(cmd *cobra.Command, args []string) error {
	t := startTimer("peek")
	defer t.log()

	if !isDaemonRunning() {
		return outputError("daemon not running. Start with: webctl start")
	}

	selector := args[0]
	client, err := dialDaemon()
	if err != nil {
		return outputError(err.Error())
	}
	defer client.Close()

	params, err := json.Marshal(map[string]string{"selector": selector})
	if err != nil {
		return outputError(err.Error())
	}

	debugRequest("peek", selector)
	ipcStart := time.Now()
	resp, err := client.Send(ipc.Request{Type: "peek", Params: params})
	debugResponse(err == nil && resp.Status == ipc.StatusOK, len(resp.Data), time.Since(ipcStart))

	if err != nil {
		return outputError(err.Error())
	}
	if resp.Status != ipc.StatusOK {
		return outputIPCError(resp)
	}

	var result telemetry.DomQueryResult
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return outputError(err.Error())
	}

	if JSONOutput {
		return outputSuccess(result)
	}
	for i, n := range result.Nodes {
		fmt.Fprintf(os.Stdout, "%d: <%s> %s\n", i, n.NodeName, n.TextPreview)
	}
	if len(result.Nodes) == 0 {
		return outputNotice("No elements matched")
	}
	return nil
}
