package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/grantcarthew/webctl/internal/ipc"
	"github.com/grantcarthew/webctl/internal/telemetry"
	"github.com/spf13/cobra"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Extract console logs from current page (default: stdout)",
	Long: `Extracts console logs from the current page with flexible output modes.

Default behavior (no subcommand):
  Outputs console logs to stdout for piping or inspection

Subcommands:
  save [path]       Save console logs to file (temp dir if no path given)

Universal flags (work with all modes):
  --find, -f        Search for text within log messages
  --raw             Skip formatting (return raw JSON)
  --json            Output in JSON format (global flag)

Console-specific filter flags:
  --level LEVEL     Filter by log level (log, info, warning, error, debug)
  --head N          Return first N entries
  --tail N          Return last N entries
  --range N-M       Return entries N through M (1-indexed, inclusive)

Examples:

Default mode (stdout):
  console                                  # All logs to stdout
  console --level error                    # Only errors to stdout
  console --find "undefined"               # Search and show matches
  console --tail 20                        # Last 20 entries

Save mode (file):
  console save                             # Save to temp with auto-filename
  console save ./logs/debug.json           # Save to custom file
  console save ./output/                   # Save to dir (auto-filename)
  console save --level error --tail 50

Error cases:
  - "No matches found" - find text not in logs
  - "daemon not running" - start daemon first with: webctl start`,
	RunE: runConsoleDefault,
}

var consoleSaveCmd = &cobra.Command{
	Use:   "save [path]",
	Short: "Save console logs to file",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConsoleSave,
}

func init() {
	consoleCmd.PersistentFlags().StringP("find", "f", "", "Search for text within log messages")
	consoleCmd.PersistentFlags().Bool("raw", false, "Skip formatting (return raw JSON)")
	consoleCmd.PersistentFlags().StringSlice("level", nil, "Filter by log level (repeatable, CSV-supported)")
	consoleCmd.PersistentFlags().Int("head", 0, "Return first N entries")
	consoleCmd.PersistentFlags().Int("tail", 0, "Return last N entries")
	consoleCmd.PersistentFlags().String("range", "", "Return entries N through M (1-indexed, inclusive)")

	consoleCmd.AddCommand(consoleSaveCmd)
	rootCmd.AddCommand(consoleCmd)
}

func runConsoleDefault(cmd *cobra.Command, args []string) error {
	t := startTimer("console")
	defer t.log()

	if len(args) > 0 {
		return outputError(fmt.Sprintf("unknown command %q for \"webctl console\"", args[0]))
	}

	if !isDaemonRunning() {
		return outputError("daemon not running. Start with: webctl start")
	}

	entries, err := getConsoleFromDaemon(cmd)
	if err != nil {
		if errors.Is(err, ErrNoMatches) {
			return outputNotice("No matches found")
		}
		if errors.Is(err, ErrNoEntriesInRange) {
			return outputNotice("No entries in range")
		}
		return outputError(err.Error())
	}

	if JSONOutput {
		return outputJSON(os.Stdout, map[string]any{
			"ok":    true,
			"logs":  entries,
			"count": len(entries),
		})
	}

	raw, _ := cmd.Flags().GetBool("raw")
	if raw {
		return outputJSON(os.Stdout, map[string]any{
			"ok":    true,
			"logs":  entries,
			"count": len(entries),
		})
	}

	return printConsoleText(os.Stdout, entries)
}

func runConsoleSave(cmd *cobra.Command, args []string) error {
	t := startTimer("console save")
	defer t.log()

	if !isDaemonRunning() {
		return outputError("daemon not running. Start with: webctl start")
	}

	entries, err := getConsoleFromDaemon(cmd)
	if err != nil {
		if errors.Is(err, ErrNoMatches) {
			return outputNotice("No matches found")
		}
		if errors.Is(err, ErrNoEntriesInRange) {
			return outputNotice("No entries in range")
		}
		return outputError(err.Error())
	}

	var outputPath string
	if len(args) == 0 {
		outputPath = filepath.Join("/tmp/webctl-console", generateConsoleFilename())
	} else {
		path := args[0]
		if strings.HasSuffix(path, string(os.PathSeparator)) || strings.HasSuffix(path, "/") {
			if err := os.MkdirAll(path, 0755); err != nil {
				return outputError(fmt.Sprintf("failed to create directory: %v", err))
			}
			outputPath = filepath.Join(path, generateConsoleFilename())
		} else {
			outputPath = path
		}
	}

	if err := writeConsoleToFile(outputPath, entries); err != nil {
		return outputError(err.Error())
	}

	if JSONOutput {
		return outputJSON(os.Stdout, map[string]any{"ok": true, "path": outputPath})
	}
	fmt.Fprintln(os.Stdout, outputPath)
	return nil
}

// getConsoleFromDaemon fetches console logs from daemon, applying filters.
func getConsoleFromDaemon(cmd *cobra.Command) ([]telemetry.ConsoleMessage, error) {
	find := flagString(cmd, "find")
	levels := flagStringSlice(cmd, "level")
	head := flagInt(cmd, "head")
	tail := flagInt(cmd, "tail")
	rangeStr := flagString(cmd, "range")

	if countNonZero(head > 0, tail > 0, rangeStr != "") > 1 {
		return nil, fmt.Errorf("--head, --tail, and --range are mutually exclusive")
	}

	debugParam("find=%q levels=%v head=%d tail=%d range=%q", find, levels, head, tail, rangeStr)

	client, err := dialDaemon()
	if err != nil {
		return nil, err
	}
	defer client.Close()

	debugRequest("console", "")
	ipcStart := time.Now()

	resp, err := client.Send(ipc.Request{Type: "console"})

	debugResponse(err == nil && resp.Status == ipc.StatusOK, len(resp.Data), time.Since(ipcStart))

	if err != nil {
		return nil, err
	}
	if resp.Status != ipc.StatusOK {
		LastErrorCode = resp.ErrorCode
		return nil, fmt.Errorf("%s", resp.Error)
	}

	var entries []telemetry.ConsoleMessage
	if err := json.Unmarshal(resp.Data, &entries); err != nil {
		return nil, err
	}

	if len(levels) > 0 {
		before := len(entries)
		entries = filterConsoleByLevel(entries, levels)
		debugFilter(fmt.Sprintf("--level %v", levels), before, len(entries))
	}

	if find != "" {
		before := len(entries)
		entries = filterConsoleByText(entries, find)
		debugFilter(fmt.Sprintf("--find %q", find), before, len(entries))
		if len(entries) == 0 {
			return nil, ErrNoMatches
		}
	}

	entries, err = applyConsoleLimiting(entries, head, tail, rangeStr)
	if err != nil {
		return nil, err
	}

	if rangeStr != "" && len(entries) == 0 {
		return nil, ErrNoEntriesInRange
	}

	return entries, nil
}

func filterConsoleByLevel(entries []telemetry.ConsoleMessage, levels []string) []telemetry.ConsoleMessage {
	set := make(map[string]bool, len(levels))
	for _, l := range levels {
		set[strings.ToLower(l)] = true
	}
	var out []telemetry.ConsoleMessage
	for _, e := range entries {
		if set[strings.ToLower(string(e.Level))] {
			out = append(out, e)
		}
	}
	return out
}

func filterConsoleByText(entries []telemetry.ConsoleMessage, searchText string) []telemetry.ConsoleMessage {
	var out []telemetry.ConsoleMessage
	searchLower := strings.ToLower(searchText)
	for _, e := range entries {
		if strings.Contains(strings.ToLower(e.Text), searchLower) {
			out = append(out, e)
		}
	}
	return out
}

func applyConsoleLimiting(entries []telemetry.ConsoleMessage, head, tail int, rangeStr string) ([]telemetry.ConsoleMessage, error) {
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
			return []telemetry.ConsoleMessage{}, nil
		}
		return entries[start:end], nil
	}
	return entries, nil
}

func printConsoleText(w *os.File, entries []telemetry.ConsoleMessage) error {
	for _, e := range entries {
		fmt.Fprintf(w, "[%s] %s %s\n", e.Timestamp.Format("15:04:05"), strings.ToUpper(string(e.Level)), e.Text)
	}
	return nil
}

func writeConsoleToFile(path string, entries []telemetry.ConsoleMessage) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %v", err)
	}

	data := map[string]any{"ok": true, "logs": entries, "count": len(entries)}
	jsonBytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal console logs: %v", err)
	}
	if err := os.WriteFile(path, jsonBytes, 0644); err != nil {
		return fmt.Errorf("failed to write console logs: %v", err)
	}
	debugFile("wrote", path, len(jsonBytes))
	return nil
}

func generateConsoleFilename() string {
	now := time.Now()
	return fmt.Sprintf("%s-console.json", now.Format("06-01-02-150405"))
}

// --- shared flag/range helpers used by console.go and network.go ---

func flagString(cmd *cobra.Command, name string) string {
	v, _ := cmd.Flags().GetString(name)
	if v == "" {
		v, _ = cmd.PersistentFlags().GetString(name)
	}
	if v == "" && cmd.Parent() != nil {
		v, _ = cmd.Parent().PersistentFlags().GetString(name)
	}
	return v
}

func flagStringSlice(cmd *cobra.Command, name string) []string {
	v, _ := cmd.Flags().GetStringSlice(name)
	if len(v) == 0 {
		v, _ = cmd.PersistentFlags().GetStringSlice(name)
	}
	if len(v) == 0 && cmd.Parent() != nil {
		v, _ = cmd.Parent().PersistentFlags().GetStringSlice(name)
	}
	return v
}

func flagInt(cmd *cobra.Command, name string) int {
	v, _ := cmd.Flags().GetInt(name)
	if v == 0 {
		v, _ = cmd.PersistentFlags().GetInt(name)
	}
	if v == 0 && cmd.Parent() != nil {
		v, _ = cmd.Parent().PersistentFlags().GetInt(name)
	}
	return v
}

func countNonZero(bs ...bool) int {
	n := 0
	for _, b := range bs {
		if b {
			n++
		}
	}
	return n
}

// parseRange parses a 1-indexed inclusive "N-M" string into 0-indexed,
// exclusive-end slice bounds, clamped to [0, length].
func parseRange(rangeStr string, length int) (start, end int, err error) {
	parts := strings.Split(rangeStr, "-")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid range format: use START-END (e.g., 1-10)")
	}
	s, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid range format: use START-END (e.g., 1-10)")
	}
	e, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid range format: use START-END (e.g., 1-10)")
	}
	start = s - 1
	end = e
	if start < 0 {
		start = 0
	}
	if end > length {
		end = length
	}
	if start > length {
		start = length
	}
	return start, end, nil
}
