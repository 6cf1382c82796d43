package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/grantcarthew/webctl/internal/ipc"
	"github.com/grantcarthew/webctl/internal/telemetry"
	"github.com/spf13/cobra"
)

var networkCmd = &cobra.Command{
	Use:   "network",
	Short: "Extract network requests from current page (default: save to temp)",
	Long: `Extracts network requests from the current page with flexible output modes.

Default behavior (no subcommand):
  Saves network requests to /tmp/webctl-network/ with auto-generated filename

Subcommands:
  show              Output network requests to stdout
  save <path>       Save network requests to custom path

Network-specific filter flags:
  --type            CDP resource type: XHR, Fetch, Document, Script, Stylesheet, Image, ...
  --method          HTTP method: GET, POST, PUT, DELETE, PATCH, HEAD, OPTIONS
  --status          Status code or range: 200, 4xx, 5xx, 200-299
  --url             URL regex pattern (Go regexp syntax)
  --failed          Show only failed requests
  --head N          Return first N entries
  --tail N          Return last N entries
  --range N-M       Return entries N through M`,
	RunE: runNetworkDefault,
}

var networkShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Output network requests to stdout",
	RunE:  runNetworkShow,
}

var networkSaveCmd = &cobra.Command{
	Use:   "save <path>",
	Short: "Save network requests to custom path",
	Args:  cobra.ExactArgs(1),
	RunE:  runNetworkSave,
}

func init() {
	networkCmd.PersistentFlags().StringP("find", "f", "", "Search for text within URLs")
	networkCmd.PersistentFlags().Bool("raw", false, "Skip formatting (return raw JSON)")
	networkCmd.PersistentFlags().StringSlice("type", nil, "Filter by CDP resource type (repeatable, CSV-supported)")
	networkCmd.PersistentFlags().StringSlice("method", nil, "Filter by HTTP method (repeatable, CSV-supported)")
	networkCmd.PersistentFlags().StringSlice("status", nil, "Filter by status code or range (repeatable, CSV-supported)")
	networkCmd.PersistentFlags().String("url", "", "Filter by URL regex pattern")
	networkCmd.PersistentFlags().Bool("failed", false, "Show only failed requests")
	networkCmd.PersistentFlags().Int("head", 0, "Return first N entries")
	networkCmd.PersistentFlags().Int("tail", 0, "Return last N entries")
	networkCmd.PersistentFlags().String("range", "", "Return entries in range (format: START-END)")
	networkCmd.MarkFlagsMutuallyExclusive("head", "tail", "range")

	networkCmd.AddCommand(networkShowCmd, networkSaveCmd)
	rootCmd.AddCommand(networkCmd)
}

func runNetworkDefault(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return outputError(fmt.Sprintf("unknown command %q for \"webctl network\"", args[0]))
	}
	if !isDaemonRunning() {
		return outputError("daemon not running. Start with: webctl start")
	}

	entries, err := getNetworkFromDaemon(cmd)
	if err != nil {
		return outputError(err.Error())
	}

	outputPath := filepath.Join("/tmp/webctl-network", generateNetworkFilename())
	if err := writeNetworkToFile(outputPath, entries); err != nil {
		return outputError(err.Error())
	}

	if JSONOutput {
		return outputJSON(os.Stdout, map[string]any{"ok": true, "path": outputPath})
	}
	fmt.Fprintln(os.Stdout, outputPath)
	return nil
}

func runNetworkShow(cmd *cobra.Command, args []string) error {
	if !isDaemonRunning() {
		return outputError("daemon not running. Start with: webctl start")
	}

	entries, err := getNetworkFromDaemon(cmd)
	if err != nil {
		return outputError(err.Error())
	}

	if JSONOutput {
		return outputJSON(os.Stdout, map[string]any{"ok": true, "entries": entries, "count": len(entries)})
	}

	raw, _ := cmd.Flags().GetBool("raw")
	if !raw && cmd.Parent() != nil {
		raw, _ = cmd.Parent().PersistentFlags().GetBool("raw")
	}
	if raw {
		return outputJSON(os.Stdout, map[string]any{"ok": true, "entries": entries, "count": len(entries)})
	}

	return printNetworkText(os.Stdout, entries)
}

func runNetworkSave(cmd *cobra.Command, args []string) error {
	if !isDaemonRunning() {
		return outputError("daemon not running. Start with: webctl start")
	}

	path := args[0]
	entries, err := getNetworkFromDaemon(cmd)
	if err != nil {
		return outputError(err.Error())
	}

	if fi, statErr := os.Stat(path); statErr == nil && fi.IsDir() {
		path = filepath.Join(path, generateNetworkFilename())
	}

	if err := writeNetworkToFile(path, entries); err != nil {
		return outputError(err.Error())
	}

	if JSONOutput {
		return outputJSON(os.Stdout, map[string]any{"ok": true, "path": path})
	}
	fmt.Fprintln(os.Stdout, path)
	return nil
}

// getNetworkFromDaemon fetches network entries from daemon, applying filters.
func getNetworkFromDaemon(cmd *cobra.Command) ([]telemetry.NetworkRequest, error) {
	find := flagString(cmd, "find")
	types := flagStringSlice(cmd, "type")
	methods := flagStringSlice(cmd, "method")
	statuses := flagStringSlice(cmd, "status")
	urlPattern := flagString(cmd, "url")
	failed := flagBool(cmd, "failed")
	head := flagInt(cmd, "head")
	tail := flagInt(cmd, "tail")
	rangeStr := flagString(cmd, "range")

	var urlRegex *regexp.Regexp
	if urlPattern != "" {
		var err error
		urlRegex, err = regexp.Compile(urlPattern)
		if err != nil {
			return nil, fmt.Errorf("invalid URL pattern: %v", err)
		}
	}

	statusMatchers, err := parseStatusPatterns(statuses)
	if err != nil {
		return nil, err
	}

	client, err := dialDaemon()
	if err != nil {
		return nil, err
	}
	defer client.Close()

	debugRequest("network", "")
	ipcStart := time.Now()

	resp, err := client.Send(ipc.Request{Type: "network"})

	debugResponse(err == nil && resp.Status == ipc.StatusOK, len(resp.Data), time.Since(ipcStart))

	if err != nil {
		return nil, err
	}
	if resp.Status != ipc.StatusOK {
		LastErrorCode = resp.ErrorCode
		return nil, fmt.Errorf("%s", resp.Error)
	}

	var entries []telemetry.NetworkRequest
	if err := json.Unmarshal(resp.Data, &entries); err != nil {
		return nil, err
	}

	entries = filterNetworkEntries(entries, urlRegex, statusMatchers, networkFilterOptions{
		types:   types,
		methods: methods,
		failed:  failed,
	})

	if find != "" {
		entries = filterNetworkByText(entries, find)
		if len(entries) == 0 {
			return nil, fmt.Errorf("no matches found for '%s'", find)
		}
	}

	return applyNetworkLimiting(entries, head, tail, rangeStr)
}

func flagBool(cmd *cobra.Command, name string) bool {
	v, _ := cmd.Flags().GetBool(name)
	if !v && cmd.Parent() != nil {
		v, _ = cmd.Parent().PersistentFlags().GetBool(name)
	}
	return v
}

func filterNetworkByText(entries []telemetry.NetworkRequest, searchText string) []telemetry.NetworkRequest {
	var out []telemetry.NetworkRequest
	searchLower := strings.ToLower(searchText)
	for _, e := range entries {
		if strings.Contains(strings.ToLower(e.URL), searchLower) {
			out = append(out, e)
		}
	}
	return out
}

type statusMatcher struct {
	exact      int
	rangeStart int
	rangeEnd   int
	isRange    bool
}

func (m statusMatcher) matches(status int) bool {
	if m.isRange {
		return status >= m.rangeStart && status <= m.rangeEnd
	}
	return status == m.exact
}

func parseStatusPatterns(patterns []string) ([]statusMatcher, error) {
	var matchers []statusMatcher
	for _, p := range patterns {
		p = strings.TrimSpace(strings.ToLower(p))
		if p == "" {
			continue
		}
		if len(p) == 3 && p[1] == 'x' && p[2] == 'x' {
			digit, err := strconv.Atoi(string(p[0]))
			if err != nil || digit < 1 || digit > 5 {
				return nil, fmt.Errorf("invalid status pattern: %s", p)
			}
			matchers = append(matchers, statusMatcher{rangeStart: digit * 100, rangeEnd: digit*100 + 99, isRange: true})
			continue
		}
		if strings.Contains(p, "-") {
			parts := strings.Split(p, "-")
			if len(parts) != 2 {
				return nil, fmt.Errorf("invalid status pattern: %s", p)
			}
			start, err := strconv.Atoi(parts[0])
			if err != nil {
				return nil, fmt.Errorf("invalid status pattern: %s", p)
			}
			end, err := strconv.Atoi(parts[1])
			if err != nil {
				return nil, fmt.Errorf("invalid status pattern: %s", p)
			}
			matchers = append(matchers, statusMatcher{rangeStart: start, rangeEnd: end, isRange: true})
			continue
		}
		exact, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid status pattern: %s", p)
		}
		matchers = append(matchers, statusMatcher{exact: exact})
	}
	return matchers, nil
}

type networkFilterOptions struct {
	types   []string
	methods []string
	failed  bool
}

func filterNetworkEntries(entries []telemetry.NetworkRequest, urlRegex *regexp.Regexp, statusMatchers []statusMatcher, opts networkFilterOptions) []telemetry.NetworkRequest {
	if len(opts.types) == 0 && len(opts.methods) == 0 && len(statusMatchers) == 0 && urlRegex == nil && !opts.failed {
		return entries
	}
	var out []telemetry.NetworkRequest
	for _, e := range entries {
		if matchesNetworkFilters(e, urlRegex, statusMatchers, opts) {
			out = append(out, e)
		}
	}
	return out
}

func matchesNetworkFilters(e telemetry.NetworkRequest, urlRegex *regexp.Regexp, statusMatchers []statusMatcher, opts networkFilterOptions) bool {
	if len(opts.types) > 0 && !matchesStringSlice(string(e.ResourceType), opts.types) {
		return false
	}
	if len(opts.methods) > 0 && !matchesStringSlice(e.Method, opts.methods) {
		return false
	}
	if len(statusMatchers) > 0 {
		if e.StatusCode == nil {
			return false
		}
		matched := false
		for _, m := range statusMatchers {
			if m.matches(int(*e.StatusCode)) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	if urlRegex != nil && !urlRegex.MatchString(e.URL) {
		return false
	}
	if opts.failed && !e.Failed {
		return false
	}
	return true
}

func matchesStringSlice(value string, slice []string) bool {
	valueLower := strings.ToLower(value)
	for _, s := range slice {
		if strings.ToLower(s) == valueLower {
			return true
		}
	}
	return false
}

func applyNetworkLimiting(entries []telemetry.NetworkRequest, head, tail int, rangeStr string) ([]telemetry.NetworkRequest, error) {
	if head > 0 {
		if head > len(entries) {
			head = len(entries)
		}
		return entries[:head], nil
	}
	if tail > 0 {
		if tail > len(entries) {
			tail = len(entries)
		}
		return entries[len(entries)-tail:], nil
	}
	if rangeStr != "" {
		start, end, err := parseRange(rangeStr, len(entries))
		if err != nil {
			return nil, err
		}
		if start >= end {
			return []telemetry.NetworkRequest{}, nil
		}
		return entries[start:end], nil
	}
	return entries, nil
}

func printNetworkText(w *os.File, entries []telemetry.NetworkRequest) error {
	for _, e := range entries {
		status := "-"
		if e.StatusCode != nil {
			status = strconv.FormatInt(*e.StatusCode, 10)
		}
		fmt.Fprintf(w, "%-6s %s %s\n", e.Method, status, e.URL)
	}
	return nil
}

func writeNetworkToFile(path string, entries []telemetry.NetworkRequest) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %v", err)
	}
	data := map[string]any{"ok": true, "entries": entries, "count": len(entries)}
	jsonBytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal network entries: %v", err)
	}
	if err := os.WriteFile(path, jsonBytes, 0644); err != nil {
		return fmt.Errorf("failed to write network entries: %v", err)
	}
	return nil
}

func generateNetworkFilename() string {
	now := time.Now()
	return fmt.Sprintf("%s-network.json", now.Format("06-01-02-150405"))
}
