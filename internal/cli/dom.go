package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/grantcarthew/webctl/internal/ipc"
	"github.com/grantcarthew/webctl/internal/telemetry"
	"github.com/spf13/cobra"
)

var domCmd = &cobra.Command{
	Use:   "dom",
	Short: "Query or snapshot the current page's DOM",
}

var domQueryCmd = &cobra.Command{
	Use:   "query <selector>",
	Short: "Run a CSS selector against the page and cache the result",
	Args:  cobra.ExactArgs(1),
	RunE:  runDomQuery,
}

var domSnapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Capture an accessibility-tree snapshot of the page",
	Args:  cobra.NoArgs,
	RunE:  runDomSnapshot,
}

var domGetCmd = &cobra.Command{
	Use:   "get <selector> <index>",
	Short: "Read back the value/text of a cached query result's Nth node",
	Args:  cobra.ExactArgs(2),
	RunE:  runDomGet,
}

var domClickCmd = &cobra.Command{
	Use:   "click <selector> <index>",
	Short: "Click a cached query result's Nth node",
	Args:  cobra.ExactArgs(2),
	RunE:  runDomClick,
}

var domFillCmd = &cobra.Command{
	Use:   "fill <selector> <index> <value>",
	Short: "Type value into a cached query result's Nth node",
	Args:  cobra.ExactArgs(3),
	RunE:  runDomFill,
}

func init() {
	domCmd.AddCommand(domQueryCmd, domSnapshotCmd, domGetCmd, domClickCmd, domFillCmd)
	rootCmd.AddCommand(domCmd)
}

// parseDomIndex validates the index argument shared by get/click/fill,
// matching spec §4.2's "dom_get N" family.
func parseDomIndex(arg string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("index must be an integer, got %q", arg)
	}
	return n, nil
}

func runDomGet(cmd *cobra.Command, args []string) error {
	t := startTimer("dom get")
	defer t.log()

	if !isDaemonRunning() {
		return outputError("daemon not running. Start with: webctl start")
	}

	index, err := parseDomIndex(args[1])
	if err != nil {
		return outputError(err.Error())
	}

	client, err := dialDaemon()
	if err != nil {
		return outputError(err.Error())
	}
	defer client.Close()

	params, err := json.Marshal(map[string]any{"selector": args[0], "index": index})
	if err != nil {
		return outputError(err.Error())
	}

	debugRequest("dom_get", args[0])
	ipcStart := time.Now()
	resp, err := client.Send(ipc.Request{Type: "dom_get", Params: params})
	debugResponse(err == nil && resp.Status == ipc.StatusOK, len(resp.Data), time.Since(ipcStart))

	if err != nil {
		return outputError(err.Error())
	}
	if resp.Status != ipc.StatusOK {
		return outputIPCError(resp)
	}

	return outputJSON(os.Stdout, json.RawMessage(resp.Data))
}

func runDomClick(cmd *cobra.Command, args []string) error {
	t := startTimer("dom click")
	defer t.log()

	if !isDaemonRunning() {
		return outputError("daemon not running. Start with: webctl start")
	}

	index, err := parseDomIndex(args[1])
	if err != nil {
		return outputError(err.Error())
	}

	client, err := dialDaemon()
	if err != nil {
		return outputError(err.Error())
	}
	defer client.Close()

	params, err := json.Marshal(map[string]any{"selector": args[0], "index": index})
	if err != nil {
		return outputError(err.Error())
	}

	debugRequest("dom_click", args[0])
	ipcStart := time.Now()
	resp, err := client.Send(ipc.Request{Type: "dom_click", Params: params})
	debugResponse(err == nil && resp.Status == ipc.StatusOK, len(resp.Data), time.Since(ipcStart))

	if err != nil {
		return outputError(err.Error())
	}
	if resp.Status != ipc.StatusOK {
		return outputIPCError(resp)
	}

	return outputSuccess(map[string]bool{"clicked": true})
}

func runDomFill(cmd *cobra.Command, args []string) error {
	t := startTimer("dom fill")
	defer t.log()

	if !isDaemonRunning() {
		return outputError("daemon not running. Start with: webctl start")
	}

	index, err := parseDomIndex(args[1])
	if err != nil {
		return outputError(err.Error())
	}

	client, err := dialDaemon()
	if err != nil {
		return outputError(err.Error())
	}
	defer client.Close()

	params, err := json.Marshal(map[string]any{"selector": args[0], "index": index, "value": args[2]})
	if err != nil {
		return outputError(err.Error())
	}

	debugRequest("dom_fill", args[0])
	ipcStart := time.Now()
	resp, err := client.Send(ipc.Request{Type: "dom_fill", Params: params})
	debugResponse(err == nil && resp.Status == ipc.StatusOK, len(resp.Data), time.Since(ipcStart))

	if err != nil {
		return outputError(err.Error())
	}
	if resp.Status != ipc.StatusOK {
		return outputIPCError(resp)
	}

	return outputSuccess(map[string]bool{"filled": true})
}

func runDomQuery(cmd *cobra.Command, args []string) error {
	t := startTimer("dom query")
	defer t.log()

	if !isDaemonRunning() {
		return outputError("daemon not running. Start with: webctl start")
	}

	client, err := dialDaemon()
	if err != nil {
		return outputError(err.Error())
	}
	defer client.Close()

	params, err := json.Marshal(map[string]string{"selector": args[0]})
	if err != nil {
		return outputError(err.Error())
	}

	debugRequest("dom_query", args[0])
	ipcStart := time.Now()
	resp, err := client.Send(ipc.Request{Type: "dom_query", Params: params})
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

func runDomSnapshot(cmd *cobra.Command, args []string) error {
	t := startTimer("dom snapshot")
	defer t.log()

	if !isDaemonRunning() {
		return outputError("daemon not running. Start with: webctl start")
	}

	client, err := dialDaemon()
	if err != nil {
		return outputError(err.Error())
	}
	defer client.Close()

	debugRequest("dom_snapshot", "")
	ipcStart := time.Now()
	resp, err := client.Send(ipc.Request{Type: "dom_snapshot"})
	debugResponse(err == nil && resp.Status == ipc.StatusOK, len(resp.Data), time.Since(ipcStart))

	if err != nil {
		return outputError(err.Error())
	}
	if resp.Status != ipc.StatusOK {
		return outputIPCError(resp)
	}

	if JSONOutput {
		return outputJSON(os.Stdout, json.RawMessage(resp.Data))
	}

	var snap telemetry.DomSnapshot
	if err := json.Unmarshal(resp.Data, &snap); err != nil {
		return outputError(err.Error())
	}
	for _, n := range snap.Nodes {
		fmt.Fprintf(os.Stdout, "%s: %q\n", n.Role, n.Name)
	}
	return nil
}
