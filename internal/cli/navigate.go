package cli

import (
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/grantcarthew/webctl/internal/ipc"
	"github.com/spf13/cobra"
)

var navigateCmd = &cobra.Command{
	Use:   "navigate <url>",
	Short: "Navigate to URL",
	Long: `Navigates the active browser session to the specified URL.

URL protocol auto-detection:
  - URLs without protocol get https:// added automatically
  - localhost, 127.0.0.1, and 0.0.0.0 get http:// (local development)
  - Explicit protocols (http://, https://, file://) are preserved

Examples:
  navigate example.com                    # https://example.com
  navigate localhost:3000                 # http://localhost:3000
  navigate file:///tmp/test.html          # Local file`,
	Args: cobra.ExactArgs(1),
	RunE: runNavigate,
}

func init() {
	rootCmd.AddCommand(navigateCmd)
}

// normalizeURL adds protocol to URL if missing.
// Uses http:// for localhost/127.0.0.1/0.0.0.0, https:// otherwise.
func normalizeURL(url string) string {
	if strings.Contains(url, "://") {
		return url
	}
	lower := strings.ToLower(url)
	if strings.HasPrefix(lower, "localhost") ||
		strings.HasPrefix(lower, "127.0.0.1") ||
		strings.HasPrefix(lower, "0.0.0.0") {
		return "http://" + url
	}
	return "https://" + url
}

func runNavigate(cmd *cobra.Command, args []string) error {
	t := startTimer("navigate")
	defer t.log()

	if !isDaemonRunning() {
		return outputError("daemon not running. Start with: webctl start")
	}

	url := normalizeURL(args[0])
	debugParam("url=%q", url)

	client, err := dialDaemon()
	if err != nil {
		return outputError(err.Error())
	}
	defer client.Close()

	params, err := json.Marshal(map[string]string{"url": url})
	if err != nil {
		return outputError(err.Error())
	}

	debugRequest("navigate", url)
	ipcStart := time.Now()

	resp, err := client.Send(ipc.Request{Type: "navigate", Params: params})

	debugResponse(err == nil && resp.Status == ipc.StatusOK, len(resp.Data), time.Since(ipcStart))

	if err != nil {
		return outputError(err.Error())
	}
	if resp.Status != ipc.StatusOK {
		return outputIPCError(resp)
	}

	if JSONOutput {
		return outputJSON(os.Stdout, map[string]any{"ok": true, "url": url})
	}
	return outputSuccess(nil)
}
