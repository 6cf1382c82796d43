package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/grantcarthew/webctl/internal/ipc"
)

// ErrNoMatches indicates a search found no matches (informational, not an error).
var ErrNoMatches = errors.New("no matches found")

// ErrNoEntriesInRange indicates the specified range has no entries (informational, not an error).
var ErrNoEntriesInRange = errors.New("no entries in range")

// printedError wraps an error that has already been printed to stderr.
// Used to prevent double-printing in main.go.
type printedError struct {
	err error
}

func (e printedError) Error() string {
	return e.err.Error()
}

func (e printedError) Unwrap() error {
	return e.err
}

// IsPrintedError returns true if the error has already been printed.
func IsPrintedError(err error) bool {
	var pe printedError
	return errors.As(err, &pe)
}

// Version is set at build time.
var Version = "dev"

// Debug enables verbose debug output.
var Debug bool

// JSONOutput enables JSON output format (default is text).
var JSONOutput bool

// NoColor disables color output.
var NoColor bool

// LastErrorCode records the ipc.Response.ErrorCode of the most recent
// daemon error surfaced to the user, read by cmd/webctl's main after
// Execute returns to pick a stable process exit code (spec §6 "each IPC
// error code maps to a stable process exit code table used by the CLI").
var LastErrorCode string

var rootCmd = &cobra.Command{
	Use:           "webctl",
	Short:         "Browser automation CLI for AI agents",
	Long:          "webctl captures DevTools data (console logs, network requests, JS errors) via a persistent daemon that buffers CDP events.",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&Debug, "debug", false, "Enable verbose debug output")
	rootCmd.PersistentFlags().BoolVar(&JSONOutput, "json", false, "Output in JSON format (default is text)")
	rootCmd.PersistentFlags().BoolVar(&NoColor, "no-color", false, "Disable color output")
	rootCmd.SetVersionTemplate(`webctl version {{.Version}}
Repository: https://github.com/grantcarthew/webctl
Report issues: https://github.com/grantcarthew/webctl/issues/new
`)
}

// debugf logs a debug message if debug mode is enabled.
// Format: [DEBUG] [HH:MM:SS.mmm] [CATEGORY] message
func debugf(category, format string, args ...any) {
	if Debug {
		timestamp := time.Now().Format("15:04:05.000")
		fmt.Fprintf(os.Stderr, "[DEBUG] [%s] [%s] "+format+"\n",
			append([]any{timestamp, category}, args...)...)
	}
}

// debugRequest logs an IPC request being sent.
func debugRequest(reqType string, params string) {
	if Debug {
		debugf("REQUEST", "type=%s %s", reqType, params)
	}
}

// debugResponse logs an IPC response received.
func debugResponse(ok bool, dataSize int, duration time.Duration) {
	if Debug {
		debugf("RESPONSE", "ok=%v size=%d bytes (%dms)", ok, dataSize, duration.Milliseconds())
	}
}

// debugFilter logs a filter operation with before/after counts.
func debugFilter(name string, before, after int) {
	if Debug {
		debugf("FILTER", "%s: %d -> %d", name, before, after)
	}
}

// debugFile logs a file I/O operation.
func debugFile(operation, path string, size int) {
	if Debug {
		debugf("FILE", "%s %d bytes to %s", operation, size, path)
	}
}

// debugTiming logs an operation duration.
func debugTiming(operation string, duration time.Duration) {
	if Debug {
		debugf("TIMING", "%s: %dms", operation, duration.Milliseconds())
	}
}

// debugParam logs resolved parameter values.
func debugParam(format string, args ...any) {
	if Debug {
		debugf("PARAM", format, args...)
	}
}

// timer tracks operation duration for debug logging.
type timer struct {
	start time.Time
	name  string
}

// startTimer creates a new timer for tracking operation duration.
func startTimer(name string) *timer {
	return &timer{start: time.Now(), name: name}
}

// stop returns the elapsed duration.
func (t *timer) stop() time.Duration {
	return time.Since(t.start)
}

// log outputs the timing if debug mode is enabled.
func (t *timer) log() {
	debugTiming(t.name, t.stop())
}

// Execute runs the root command.
// Supports command abbreviation via unique prefix matching.
func Execute() error {
	args := os.Args[1:]
	if len(args) > 0 {
		if expanded := tryExpandCommand(args[0]); expanded != "" {
			args[0] = expanded
			rootCmd.SetArgs(args)
		}
	}
	return rootCmd.Execute()
}

// tryExpandCommand attempts to expand a command abbreviation.
// Returns the expanded command if exactly one match is found, empty string otherwise.
func tryExpandCommand(prefix string) string {
	var commands []string
	for _, cmd := range rootCmd.Commands() {
		commands = append(commands, cmd.Name())
	}

	var matches []string
	for _, cmd := range commands {
		if cmd == prefix {
			return ""
		}
		if len(prefix) < len(cmd) && cmd[:len(prefix)] == prefix {
			matches = append(matches, cmd)
		}
	}

	if len(matches) == 1 {
		return matches[0]
	}
	return ""
}

// isStdoutTTY returns true if stdout is a terminal.
func isStdoutTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// outputJSON writes a JSON response to the given writer.
// Pretty prints if stdout is a TTY, compact otherwise.
func outputJSON(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	if isStdoutTTY() {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(data)
}

// outputSuccess writes a successful response to stdout.
// Uses text format by default, JSON if --json flag is set.
// For action commands (no data), outputs "OK" in text mode.
func outputSuccess(data any) error {
	if JSONOutput {
		resp := map[string]any{
			"ok": true,
		}
		if data != nil {
			resp["data"] = data
		}
		return outputJSON(os.Stdout, resp)
	}

	if data == nil {
		if shouldUseColor() {
			color.New(color.FgGreen).Fprintln(os.Stdout, "OK")
		} else {
			fmt.Fprintln(os.Stdout, "OK")
		}
		return nil
	}

	_, err := fmt.Fprintf(os.Stdout, "%v\n", data)
	return err
}

// outputError writes an error response to stderr and returns a printedError.
// Uses text format by default, JSON if --json flag is set.
// The returned error is wrapped in printedError to prevent double-printing.
func outputError(msg string) error {
	if JSONOutput {
		resp := map[string]any{
			"ok":    false,
			"error": msg,
		}
		_ = outputJSON(os.Stderr, resp)
	} else {
		if shouldUseColor() {
			color.New(color.FgRed).Fprint(os.Stderr, "Error:")
			fmt.Fprintf(os.Stderr, " %s\n", msg)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
		}
	}
	return printedError{err: fmt.Errorf("%s", msg)}
}

// outputIPCError reports a non-OK daemon response, recording its error
// code in LastErrorCode before printing the message exactly as
// outputError would.
func outputIPCError(resp ipc.Response) error {
	LastErrorCode = resp.ErrorCode
	return outputError(resp.Error)
}

// outputNotice writes a notice message to stderr without "Error:" prefix.
// Used for informational messages that still result in non-zero exit code.
// The returned error is wrapped in printedError to prevent double-printing.
func outputNotice(msg string) error {
	if JSONOutput {
		resp := map[string]any{
			"ok":      false,
			"message": msg,
		}
		_ = outputJSON(os.Stderr, resp)
	} else {
		fmt.Fprintln(os.Stderr, msg)
	}
	return printedError{err: errors.New(msg)}
}

// outputHint prints a dim suggestion line to stderr. Skipped in JSON mode
// since it isn't part of the response payload.
func outputHint(msg string) {
	if JSONOutput {
		return
	}
	if shouldUseColor() {
		color.New(color.Faint).Fprintf(os.Stderr, "Hint: %s\n", msg)
	} else {
		fmt.Fprintf(os.Stderr, "Hint: %s\n", msg)
	}
}

// shouldUseColor determines if color output should be used based on flags and environment.
func shouldUseColor() bool {
	if JSONOutput {
		return false
	}
	if NoColor {
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return term.IsTerminal(int(os.Stderr.Fd()))
}
