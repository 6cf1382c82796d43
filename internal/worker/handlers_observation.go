package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/grantcarthew/webctl/internal/collectors"
)

// registerHandlers wires every non-lifecycle operation name into the
// registry. "start" is handled specially in handleCommand since it must
// run before store/cdp/cache exist.
func (w *Worker) registerHandlers() {
	w.registry.Register("network", w.handleNetwork)
	w.registry.Register("console", w.handleConsole)
	w.registry.Register("dom_query", w.handleDomQuery)
	w.registry.Register("dom_snapshot", w.handleDomSnapshot)
	w.registry.Register("peek", w.handlePeek)
	w.registry.Register("navigate", w.handleNavigate)
	w.registry.Register("cdp_send", w.handleCDPSend)
	w.registry.Register("clear", w.handleClear)
	w.registry.Register("dom_get", w.handleDomGet)
	w.registry.Register("dom_click", w.handleDomClick)
	w.registry.Register("dom_fill", w.handleDomFill)
}

type tailParams struct {
	Limit int `json:"limit,omitempty"`
}

func (w *Worker) handleNetwork(ctx context.Context, params json.RawMessage) (any, error) {
	var p tailParams
	_ = json.Unmarshal(params, &p)
	return w.store.Network().Tail(p.Limit), nil
}

func (w *Worker) handleConsole(ctx context.Context, params json.RawMessage) (any, error) {
	var p tailParams
	_ = json.Unmarshal(params, &p)
	return w.store.Console().Tail(p.Limit), nil
}

type domQueryParams struct {
	Selector string `json:"selector"`
}

func (w *Worker) handleDomQuery(ctx context.Context, params json.RawMessage) (any, error) {
	var p domQueryParams
	if err := json.Unmarshal(params, &p); err != nil || p.Selector == "" {
		return nil, fmt.Errorf("selector is required")
	}

	q := collectors.NewDomQuery(w.cdp, w.store)
	result, err := q.Run(ctx, p.Selector)
	if err != nil {
		return nil, err
	}
	if err := w.cache.Write(p.Selector, result); err != nil {
		w.log.Warn("failed to persist query cache entry", zap.Error(err))
	}
	return result, nil
}

func (w *Worker) handleDomSnapshot(ctx context.Context, params json.RawMessage) (any, error) {
	snapshotter := collectors.NewDomSnapshotter(w.cdp, w.store, w.log)
	return snapshotter.Capture(ctx)
}

type peekParams struct {
	Selector string `json:"selector"`
}

// handlePeek resolves a previously-run query's result for Selector from
// the query cache, re-running the query transparently if the cached
// result is stale (the navigation id moved on since it was captured).
func (w *Worker) handlePeek(ctx context.Context, params json.RawMessage) (any, error) {
	var p peekParams
	if err := json.Unmarshal(params, &p); err != nil || p.Selector == "" {
		return nil, fmt.Errorf("selector is required")
	}

	result, ok, stale := w.cache.Resolve(p.Selector)
	if ok && !stale {
		return result, nil
	}

	return w.handleDomQuery(ctx, params)
}

func (w *Worker) handleClear(ctx context.Context, params json.RawMessage) (any, error) {
	w.store.ClearTelemetry()
	if err := w.cache.Clear(); err != nil {
		return nil, err
	}
	return nil, nil
}
