// Package telemetry holds the worker-local shared data model: the bounded
// network and console buffers, the DOM/accessibility snapshot, navigation
// history, and the Store that owns all of it (spec §3, §4.3).
package telemetry

import (
	"encoding/json"
	"time"

	"github.com/chromedp/cdproto/network"
)

// ResourceType is the closed CDP resource-type enumeration, reused from
// chromedp/cdproto/network rather than hand-rolled (see SPEC_FULL.md
// domain stack: this is the one cdproto wiring point kept, since its
// constants are a direct, low-risk mirror of the CDP wire enum that every
// other hand-decoded struct in this package otherwise avoids).
type ResourceType = network.ResourceType

// ConsoleLevel enumerates console message severities.
type ConsoleLevel string

const (
	LevelLog     ConsoleLevel = "log"
	LevelInfo    ConsoleLevel = "info"
	LevelWarning ConsoleLevel = "warning"
	LevelError   ConsoleLevel = "error"
	LevelDebug   ConsoleLevel = "debug"
)

// Timing captures the subset of CDP network timing useful at the IPC layer.
type Timing struct {
	RequestTime  time.Time `json:"requestTime"`
	ResponseTime time.Time `json:"responseTime,omitempty"`
	DurationMS   float64   `json:"durationMs,omitempty"`
}

// NetworkRequest is the shared NetworkRequest entity (spec §3). Created on
// Network.requestWillBeSent, mutated in place by responseReceived,
// loadingFinished, loadingFailed.
type NetworkRequest struct {
	RequestID    string            `json:"requestId"`
	URL          string            `json:"url"`
	Method       string            `json:"method"`
	Timestamp    time.Time         `json:"timestamp"`
	ResourceType ResourceType      `json:"resourceType"`
	StatusCode   *int64            `json:"statusCode,omitempty"`
	Headers      map[string]string `json:"headers,omitempty"`
	BodySize     *int64            `json:"bodySize,omitempty"`
	FromCache    *bool             `json:"fromCache,omitempty"`
	Timing       *Timing           `json:"timing,omitempty"`
	NavigationID *int              `json:"navigationId,omitempty"`
	Failed       bool              `json:"failed,omitempty"`
	ErrorText    string            `json:"errorText,omitempty"`
}

// StackFrame is one call-stack frame attached to a console message.
type StackFrame struct {
	URL          string `json:"url"`
	Line         int    `json:"line"`
	Column       int    `json:"column"`
	ScriptID     string `json:"scriptId"`
	FunctionName string `json:"functionName,omitempty"`
}

// ConsoleMessage is the shared ConsoleMessage entity (spec §3). Immutable
// after creation.
type ConsoleMessage struct {
	Level        ConsoleLevel  `json:"level"`
	Text         string        `json:"text"`
	Timestamp    time.Time     `json:"timestamp"`
	Args         []RemoteValue `json:"args,omitempty"`
	Stack        []StackFrame  `json:"stack,omitempty"`
	NavigationID *int          `json:"navigationId,omitempty"`
}

// RemoteValue is an opaque CDP Runtime.RemoteObject reference, kept as raw
// JSON at the data-model layer; internal/expander turns it into a display
// string on demand (spec §4.4).
type RemoteValue struct {
	Type     string `json:"type"`
	Subtype  string `json:"subtype,omitempty"`
	ObjectID string `json:"objectId,omitempty"`
	Value    json.RawMessage `json:"value,omitempty"`
	Desc     string `json:"description,omitempty"`
}

// DomNode is one element of a DomQueryResult: a backend DOM node id plus a
// small summary of attributes useful for display and re-selection.
type DomNode struct {
	BackendNodeID int64             `json:"backendNodeId"`
	NodeName      string            `json:"nodeName"`
	Attributes    map[string]string `json:"attributes,omitempty"`
	TextPreview   string            `json:"textPreview,omitempty"`
}

// DomQueryResult is the shared DomQueryResult entity (spec §3), persisted
// by the query-cache manager so index-based commands can resolve element
// references across CLI invocations.
type DomQueryResult struct {
	Selector     string    `json:"selector"`
	Nodes        []DomNode `json:"nodes"`
	NavigationID *int      `json:"navigationId,omitempty"`
}

// NavigationKind enumerates the kinds of top-frame navigation tracked.
type NavigationKind string

const (
	NavigationInitial      NavigationKind = "initial"
	NavigationFrame        NavigationKind = "frame"
	NavigationSameDocument NavigationKind = "same-document"
)

// NavigationEvent is the shared NavigationEvent entity (spec §3).
type NavigationEvent struct {
	NavigationID int            `json:"navigationId"`
	URL          string         `json:"url"`
	Timestamp    time.Time      `json:"timestamp"`
	Kind         NavigationKind `json:"kind"`
}

// AXNode is one accessibility-tree node in a DOM/A11y snapshot, including
// synthesized entries for elements CDP's accessibility tree ignored
// (spec §4.3 "DOM/A11y snapshot").
type AXNode struct {
	NodeID           string         `json:"nodeId"`
	BackendDOMNodeID int64          `json:"backendDOMNodeId"`
	Role             string         `json:"role"`
	Name             string         `json:"name"`
	Properties       map[string]any `json:"properties,omitempty"`
	ChildIDs         []string       `json:"childIds,omitempty"`
	Inferred         bool           `json:"inferred,omitempty"`
}

// DomSnapshot is the worker's latest captured accessibility tree.
type DomSnapshot struct {
	Nodes        []AXNode  `json:"nodes"`
	CapturedAt   time.Time `json:"capturedAt"`
	NavigationID *int      `json:"navigationId,omitempty"`
}

// TargetInfo summarizes the worker's single page target.
type TargetInfo struct {
	TargetID string `json:"targetId"`
	URL      string `json:"url"`
	Title    string `json:"title"`
}
