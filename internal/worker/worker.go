package worker

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go/v5"
	"go.uber.org/zap"

	"github.com/grantcarthew/webctl/internal/apperr"
	"github.com/grantcarthew/webctl/internal/browser"
	"github.com/grantcarthew/webctl/internal/cdp"
	"github.com/grantcarthew/webctl/internal/collectors"
	"github.com/grantcarthew/webctl/internal/config"
	"github.com/grantcarthew/webctl/internal/expander"
	"github.com/grantcarthew/webctl/internal/paths"
	"github.com/grantcarthew/webctl/internal/querycache"
	"github.com/grantcarthew/webctl/internal/telemetry"
	"github.com/grantcarthew/webctl/internal/workerproto"
)

// Worker is the long-running per-session process: reads command envelopes
// from stdin, executes them (most against the live CDP connection), and
// writes reply/event envelopes to stdout.
type Worker struct {
	log *zap.Logger
	cfg *config.Worker

	chrome   *browser.Browser
	cdp      *cdp.Client
	store    *telemetry.Store
	expander *expander.Expander
	cache    *querycache.Cache
	registry *Registry

	out  io.Writer
	outW *bufio.Writer

	stopping atomic.Bool
}

// New creates a Worker. It does not launch Chrome; that happens on the
// first "start" command, the same lazy pattern the daemon uses for
// spawning the worker itself.
func New(log *zap.Logger, cfg *config.Worker, out io.Writer) *Worker {
	w := &Worker{log: log, cfg: cfg, out: out, outW: bufio.NewWriter(out)}
	w.registry = NewRegistry()
	w.registerHandlers()
	return w
}

// Run reads newline-delimited command envelopes from in until EOF (the
// daemon closes the worker's stdin as part of graceful stop) or a fatal
// error occurs.
func (w *Worker) Run(ctx context.Context, in io.Reader) error {
	reader := bufio.NewReaderSize(in, 64*1024)
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			var env workerproto.Envelope
			if jerr := json.Unmarshal(line, &env); jerr != nil {
				w.log.Warn("received malformed command line", zap.Error(jerr))
			} else if env.Kind == workerproto.KindCommand {
				w.handleCommand(ctx, env)
			}
		}
		if err != nil {
			if err != io.EOF {
				w.log.Warn("stdin read error", zap.Error(err))
			}
			break
		}
	}

	w.stopping.Store(true)
	if w.cdp != nil {
		_ = w.cdp.Close()
	}
	if w.chrome != nil {
		_ = w.chrome.Close()
	}
	return nil
}

// watchCDPConnection emits a chrome_disconnected event (spec §2) if the
// CDP connection drops on its own rather than via the deliberate
// w.cdp.Close() called from Run's shutdown path, so the daemon can tear
// down the session instead of leaving PendingRequests to time out one by
// one (see internal/daemon/router.go's "chrome_disconnected" handling).
func (w *Worker) watchCDPConnection() {
	<-w.cdp.Done()
	if w.stopping.Load() {
		return
	}
	reason := "connection closed"
	if err := w.cdp.Err(); err != nil {
		reason = err.Error()
	}
	w.log.Warn("chrome disconnected unexpectedly", zap.String("reason", reason))
	w.writeEnvelope(workerproto.ChromeDisconnected(reason))
}

func (w *Worker) handleCommand(ctx context.Context, env workerproto.Envelope) {
	if env.Op == "start" {
		w.handleStart(ctx, env)
		return
	}

	result, err := w.registry.Dispatch(ctx, env.Op, env.Params)
	if err != nil {
		code, msg := classifyError(err)
		w.writeEnvelope(workerproto.Fail(env.RequestID, code, msg))
		return
	}

	reply, err := workerproto.Ok(env.RequestID, result)
	if err != nil {
		w.writeEnvelope(workerproto.Fail(env.RequestID, apperr.CodeDaemonError, "encode reply"))
		return
	}
	w.writeEnvelope(reply)
}

type startParams struct {
	URL        string   `json:"url,omitempty"`
	Headless   bool     `json:"headless"`
	ChromeArgs []string `json:"chromeArgs,omitempty"`
}

func (w *Worker) handleStart(ctx context.Context, env workerproto.Envelope) {
	var p startParams
	if len(env.Params) > 0 {
		if err := json.Unmarshal(env.Params, &p); err != nil {
			w.writeEnvelope(workerproto.Fail(env.RequestID, apperr.CodeInvalidParams, "invalid start params"))
			return
		}
	}

	var b *browser.Browser
	err := retry.Do(func() error {
		var startErr error
		b, startErr = browser.Start(browser.LaunchOptions{Headless: p.Headless, ChromeArgs: p.ChromeArgs})
		return startErr
	}, retry.Attempts(2))
	if err != nil {
		w.writeEnvelope(workerproto.Fail(env.RequestID, apperr.CodeChromeLaunchFailed, fmt.Sprintf("launch chrome: %v", err)))
		return
	}
	w.chrome = b

	if version, verr := b.Version(ctx); verr == nil {
		w.log.Info("chrome started", zap.Int("pid", b.PID()), zap.String("browser", version.Browser))
	} else {
		w.log.Info("chrome started", zap.Int("pid", b.PID()))
	}

	target, err := b.PageTarget(ctx)
	if err != nil {
		w.writeEnvelope(workerproto.Fail(env.RequestID, apperr.CodeChromeLaunchFailed, fmt.Sprintf("find page target: %v", err)))
		return
	}

	client, err := cdp.Dial(ctx, target.WebSocketURL)
	if err != nil {
		w.writeEnvelope(workerproto.Fail(env.RequestID, apperr.CodeCDPTimeout, fmt.Sprintf("connect CDP: %v", err)))
		return
	}
	w.cdp = client
	go w.watchCDPConnection()

	w.store = telemetry.NewStore(w.log, w.cfg.MaxNetworkRequests, w.cfg.MaxConsoleMessages)
	w.store.SetTarget(telemetry.TargetInfo{TargetID: target.ID, URL: target.URL, Title: target.Title})

	w.cache = querycache.New(paths.QueryCachePath(), w.store.CurrentNavigationID, time.Duration(w.cfg.QueryCacheTTLMillis)*time.Millisecond)
	w.expander = expander.New(client, w.log, w.cfg.ExpanderMaxDepth, w.cfg.ExpanderMaxProperties, w.cfg.ExpanderFailureThreshold)

	net := collectors.NewNetwork(client, w.store, w.log)
	con := collectors.NewConsole(client, w.store, w.log)
	nav := collectors.NewNavigation(client, w.store, w.log, w.cache.Invalidate)
	for _, enable := range []func(context.Context) error{net.Enable, con.Enable, nav.Enable} {
		if err := enable(ctx); err != nil {
			w.writeEnvelope(workerproto.Fail(env.RequestID, apperr.CodeCDPTimeout, fmt.Sprintf("enable CDP domain: %v", err)))
			return
		}
	}

	if p.URL != "" {
		if _, err := client.SendContext(ctx, "Page.navigate", map[string]any{"url": p.URL}); err != nil {
			w.writeEnvelope(workerproto.Fail(env.RequestID, apperr.CodeCDPTimeout, fmt.Sprintf("navigate: %v", err)))
			return
		}
	}

	reply, _ := workerproto.Ok(env.RequestID, telemetry.TargetInfo{TargetID: target.ID, URL: target.URL, Title: target.Title})
	w.writeEnvelope(reply)

	ready, _ := workerproto.WorkerReady(telemetry.TargetInfo{TargetID: target.ID, URL: target.URL, Title: target.Title})
	w.writeEnvelope(ready)
}

func (w *Worker) writeEnvelope(env workerproto.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		w.log.Error("failed to marshal outgoing envelope", zap.Error(err))
		return
	}
	data = append(data, '\n')
	if _, err := w.outW.Write(data); err != nil {
		w.log.Error("failed to write outgoing envelope", zap.Error(err))
		return
	}
	_ = w.outW.Flush()
}

func classifyError(err error) (string, string) {
	if ae, ok := err.(*apperr.Error); ok {
		code := ae.Code
		if code == "" {
			code = apperr.CodeDaemonError
		}
		msg := ae.Error()
		if ae.Suggestion != "" {
			msg = fmt.Sprintf("%s (try: %s)", msg, ae.Suggestion)
		}
		return code, msg
	}
	return apperr.CodeDaemonError, err.Error()
}
