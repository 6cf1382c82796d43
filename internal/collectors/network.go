// Package collectors wires CDP domain events into the telemetry Store:
// each collector enables the CDP domain it needs and subscribes handlers
// via cdp.Client.Subscribe, translating raw event JSON into the shared
// telemetry types (spec §4.3). This mirrors the teacher's events.go
// dispatch-by-method-name pattern, split one file per CDP domain instead
// of one large switch.
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

// Network subscribes to the CDP Network domain and records requests into
// the telemetry Store's NetworkBuffer.
type Network struct {
	client *cdp.Client
	store  *telemetry.Store
	log    *zap.Logger
}

// NewNetwork creates a Network collector. Call Enable to activate it.
func NewNetwork(client *cdp.Client, store *telemetry.Store, log *zap.Logger) *Network {
	return &Network{client: client, store: store, log: log}
}

// Enable issues Network.enable and registers this collector's handlers.
func (n *Network) Enable(ctx context.Context) error {
	if _, err := n.client.SendContext(ctx, "Network.enable", map[string]any{}); err != nil {
		return fmt.Errorf("enable Network domain: %w", err)
	}

	n.client.Subscribe("Network.requestWillBeSent", n.onRequestWillBeSent)
	n.client.Subscribe("Network.responseReceived", n.onResponseReceived)
	n.client.Subscribe("Network.loadingFinished", n.onLoadingFinished)
	n.client.Subscribe("Network.loadingFailed", n.onLoadingFailed)
	return nil
}

type requestWillBeSentParams struct {
	RequestID string `json:"requestId"`
	Request   struct {
		URL     string            `json:"url"`
		Method  string            `json:"method"`
		Headers map[string]string `json:"headers"`
	} `json:"request"`
	Timestamp    float64 `json:"timestamp"`
	WallTime     float64 `json:"wallTime"`
	Type         string  `json:"type"`
}

func (n *Network) onRequestWillBeSent(evt cdp.Event) {
	var p requestWillBeSentParams
	if err := json.Unmarshal(evt.Params, &p); err != nil {
		n.log.Debug("failed to decode requestWillBeSent", zap.Error(err))
		return
	}

	navID := n.store.CurrentNavigationID()
	var navIDPtr *int
	if navID > 0 {
		navIDPtr = &navID
	}

	req := telemetry.NetworkRequest{
		RequestID:    p.RequestID,
		URL:          p.Request.URL,
		Method:       p.Request.Method,
		Headers:      p.Request.Headers,
		Timestamp:    wallTime(p.WallTime),
		ResourceType: telemetry.ResourceType(p.Type),
		NavigationID: navIDPtr,
		Timing:       &telemetry.Timing{RequestTime: wallTime(p.WallTime)},
	}
	n.store.Network().Insert(req)
}

type responseReceivedParams struct {
	RequestID string `json:"requestId"`
	Response  struct {
		Status    int64             `json:"status"`
		Headers   map[string]string `json:"headers"`
		FromCache bool              `json:"fromDiskCache"`
	} `json:"response"`
	Timestamp float64 `json:"timestamp"`
}

func (n *Network) onResponseReceived(evt cdp.Event) {
	var p responseReceivedParams
	if err := json.Unmarshal(evt.Params, &p); err != nil {
		n.log.Debug("failed to decode responseReceived", zap.Error(err))
		return
	}

	n.store.Network().Mutate(p.RequestID, func(req *telemetry.NetworkRequest) {
		status := p.Response.Status
		req.StatusCode = &status
		if req.Headers == nil {
			req.Headers = p.Response.Headers
		}
		fromCache := p.Response.FromCache
		req.FromCache = &fromCache
		if req.Timing != nil {
			req.Timing.ResponseTime = wallTime(p.Timestamp)
		}
	})
}

type loadingFinishedParams struct {
	RequestID     string  `json:"requestId"`
	Timestamp     float64 `json:"timestamp"`
	EncodedDataLength int64 `json:"encodedDataLength"`
}

func (n *Network) onLoadingFinished(evt cdp.Event) {
	var p loadingFinishedParams
	if err := json.Unmarshal(evt.Params, &p); err != nil {
		n.log.Debug("failed to decode loadingFinished", zap.Error(err))
		return
	}

	n.store.Network().Mutate(p.RequestID, func(req *telemetry.NetworkRequest) {
		size := p.EncodedDataLength
		req.BodySize = &size
		if req.Timing != nil {
			end := wallTime(p.Timestamp)
			req.Timing.ResponseTime = end
			req.Timing.DurationMS = end.Sub(req.Timing.RequestTime).Seconds() * 1000
		}
	})
}

type loadingFailedParams struct {
	RequestID    string `json:"requestId"`
	ErrorText    string `json:"errorText"`
	Canceled     bool   `json:"canceled"`
}

func (n *Network) onLoadingFailed(evt cdp.Event) {
	var p loadingFailedParams
	if err := json.Unmarshal(evt.Params, &p); err != nil {
		n.log.Debug("failed to decode loadingFailed", zap.Error(err))
		return
	}

	n.store.Network().Mutate(p.RequestID, func(req *telemetry.NetworkRequest) {
		req.Failed = true
		req.ErrorText = p.ErrorText
	})
}

// wallTime converts a CDP fractional-seconds-since-epoch wall clock value
// into a time.Time. CDP's "timestamp" field is monotonic and not directly
// convertible; collectors use wallTime/wallTime-derived fields only, never
// the monotonic timestamp, to keep NetworkRequest.Timestamp meaningful
// across process restarts.
func wallTime(seconds float64) time.Time {
	if seconds == 0 {
		return time.Now()
	}
	return time.Unix(0, int64(seconds*float64(time.Second)))
}
