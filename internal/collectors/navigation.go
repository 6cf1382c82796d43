package collectors

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/grantcarthew/webctl/internal/cdp"
	"github.com/grantcarthew/webctl/internal/telemetry"
)

// Navigation subscribes to the CDP Page domain's frame-navigation events
// and allocates a new navigation id on every top-frame navigation (spec
// §4.3 "navigation id"), invalidating the DOM/accessibility snapshot and
// notifying the query cache so stale element references are rejected
// rather than silently acted on.
type Navigation struct {
	client     *cdp.Client
	store      *telemetry.Store
	log        *zap.Logger
	frameID    string // main frame id, learned from the first navigation
	invalidate func()
}

// NewNavigation creates a Navigation collector. invalidate is called after
// every new navigation id is allocated; pass querycache.Cache.Invalidate.
func NewNavigation(client *cdp.Client, store *telemetry.Store, log *zap.Logger, invalidate func()) *Navigation {
	return &Navigation{client: client, store: store, log: log, invalidate: invalidate}
}

// Enable issues Page.enable and registers this collector's handlers.
func (n *Navigation) Enable(ctx context.Context) error {
	if _, err := n.client.SendContext(ctx, "Page.enable", map[string]any{}); err != nil {
		return fmt.Errorf("enable Page domain: %w", err)
	}

	n.client.Subscribe("Page.frameNavigated", n.onFrameNavigated)
	n.client.Subscribe("Page.navigatedWithinDocument", n.onNavigatedWithinDocument)
	return nil
}

type frameNavigatedParams struct {
	Frame struct {
		ID       string `json:"id"`
		ParentID string `json:"parentId,omitempty"`
		URL      string `json:"url"`
	} `json:"frame"`
}

func (n *Navigation) onFrameNavigated(evt cdp.Event) {
	var p frameNavigatedParams
	if err := json.Unmarshal(evt.Params, &p); err != nil {
		n.log.Debug("failed to decode frameNavigated", zap.Error(err))
		return
	}

	// Only the main frame's navigation counts: CDP reports frameNavigated
	// for every iframe too, and spec §4.3 scopes navigation tracking to
	// the top-level document.
	if p.Frame.ParentID != "" {
		return
	}

	if n.frameID == "" {
		n.frameID = p.Frame.ID
	} else if p.Frame.ID != n.frameID {
		return
	}

	kind := telemetry.NavigationFrame
	if n.store.CurrentNavigationID() == 0 {
		kind = telemetry.NavigationInitial
	}

	n.store.NextNavigationID(p.Frame.URL, kind, func() telemetry.NavigationEvent {
		return telemetry.NavigationEvent{URL: p.Frame.URL, Timestamp: time.Now(), Kind: kind}
	})
	n.store.SetTarget(telemetry.TargetInfo{URL: p.Frame.URL})

	if n.invalidate != nil {
		n.invalidate()
	}
}

type navigatedWithinDocumentParams struct {
	FrameID string `json:"frameId"`
	URL     string `json:"url"`
}

func (n *Navigation) onNavigatedWithinDocument(evt cdp.Event) {
	var p navigatedWithinDocumentParams
	if err := json.Unmarshal(evt.Params, &p); err != nil {
		n.log.Debug("failed to decode navigatedWithinDocument", zap.Error(err))
		return
	}
	if p.FrameID != n.frameID {
		return
	}

	n.store.NextNavigationID(p.URL, telemetry.NavigationSameDocument, func() telemetry.NavigationEvent {
		return telemetry.NavigationEvent{URL: p.URL, Timestamp: time.Now(), Kind: telemetry.NavigationSameDocument}
	})
	n.store.SetTarget(telemetry.TargetInfo{URL: p.URL})

	if n.invalidate != nil {
		n.invalidate()
	}
}
