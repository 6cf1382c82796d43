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

// Console subscribes to the CDP Runtime domain's console API and
// exception events and records them into the telemetry Store's console
// buffer (spec §4.3).
type Console struct {
	client *cdp.Client
	store  *telemetry.Store
	log    *zap.Logger
}

// NewConsole creates a Console collector. Call Enable to activate it.
func NewConsole(client *cdp.Client, store *telemetry.Store, log *zap.Logger) *Console {
	return &Console{client: client, store: store, log: log}
}

// Enable issues Runtime.enable and registers this collector's handlers.
func (c *Console) Enable(ctx context.Context) error {
	if _, err := c.client.SendContext(ctx, "Runtime.enable", map[string]any{}); err != nil {
		return fmt.Errorf("enable Runtime domain: %w", err)
	}

	c.client.Subscribe("Runtime.consoleAPICalled", c.onConsoleAPICalled)
	c.client.Subscribe("Runtime.exceptionThrown", c.onExceptionThrown)
	return nil
}

type remoteArg struct {
	Type        string          `json:"type"`
	Subtype     string          `json:"subtype,omitempty"`
	ObjectID    string          `json:"objectId,omitempty"`
	Value       json.RawMessage `json:"value,omitempty"`
	Description string          `json:"description,omitempty"`
}

type callFrame struct {
	URL          string `json:"url"`
	LineNumber   int    `json:"lineNumber"`
	ColumnNumber int    `json:"columnNumber"`
	ScriptID     string `json:"scriptId"`
	FunctionName string `json:"functionName"`
}

type stackTrace struct {
	CallFrames []callFrame `json:"callFrames"`
}

type consoleAPICalledParams struct {
	Type      string      `json:"type"`
	Args      []remoteArg `json:"args"`
	Timestamp float64     `json:"timestamp"`
	StackTrace *stackTrace `json:"stackTrace,omitempty"`
}

func (c *Console) onConsoleAPICalled(evt cdp.Event) {
	var p consoleAPICalledParams
	if err := json.Unmarshal(evt.Params, &p); err != nil {
		c.log.Debug("failed to decode consoleAPICalled", zap.Error(err))
		return
	}

	navID := c.store.CurrentNavigationID()
	var navIDPtr *int
	if navID > 0 {
		navIDPtr = &navID
	}

	msg := telemetry.ConsoleMessage{
		Level:        mapLevel(p.Type),
		Text:         renderArgs(p.Args),
		Timestamp:    time.Now(),
		Args:         mapArgs(p.Args),
		Stack:        mapStack(p.StackTrace),
		NavigationID: navIDPtr,
	}
	c.store.Console().Append(msg)
}

type exceptionDetails struct {
	Text             string      `json:"text"`
	LineNumber       int         `json:"lineNumber"`
	ColumnNumber     int         `json:"columnNumber"`
	URL              string      `json:"url"`
	StackTrace       *stackTrace `json:"stackTrace,omitempty"`
	Exception        *remoteArg  `json:"exception,omitempty"`
}

type exceptionThrownParams struct {
	Timestamp        float64          `json:"timestamp"`
	ExceptionDetails exceptionDetails `json:"exceptionDetails"`
}

func (c *Console) onExceptionThrown(evt cdp.Event) {
	var p exceptionThrownParams
	if err := json.Unmarshal(evt.Params, &p); err != nil {
		c.log.Debug("failed to decode exceptionThrown", zap.Error(err))
		return
	}

	navID := c.store.CurrentNavigationID()
	var navIDPtr *int
	if navID > 0 {
		navIDPtr = &navID
	}

	text := p.ExceptionDetails.Text
	if p.ExceptionDetails.Exception != nil && p.ExceptionDetails.Exception.Description != "" {
		text = p.ExceptionDetails.Exception.Description
	}

	msg := telemetry.ConsoleMessage{
		Level:        telemetry.LevelError,
		Text:         text,
		Timestamp:    time.Now(),
		Stack:        mapStack(p.ExceptionDetails.StackTrace),
		NavigationID: navIDPtr,
	}
	c.store.Console().Append(msg)
}

func mapLevel(t string) telemetry.ConsoleLevel {
	switch t {
	case "error", "assert":
		return telemetry.LevelError
	case "warning":
		return telemetry.LevelWarning
	case "debug":
		return telemetry.LevelDebug
	case "info":
		return telemetry.LevelInfo
	default:
		return telemetry.LevelLog
	}
}

func mapStack(st *stackTrace) []telemetry.StackFrame {
	if st == nil {
		return nil
	}
	frames := make([]telemetry.StackFrame, 0, len(st.CallFrames))
	for _, f := range st.CallFrames {
		frames = append(frames, telemetry.StackFrame{
			URL:          f.URL,
			Line:         f.LineNumber,
			Column:       f.ColumnNumber,
			ScriptID:     f.ScriptID,
			FunctionName: f.FunctionName,
		})
	}
	return frames
}

func mapArgs(args []remoteArg) []telemetry.RemoteValue {
	out := make([]telemetry.RemoteValue, 0, len(args))
	for _, a := range args {
		out = append(out, telemetry.RemoteValue{
			Type:     a.Type,
			Subtype:  a.Subtype,
			ObjectID: a.ObjectID,
			Value:    a.Value,
			Desc:     a.Description,
		})
	}
	return out
}

// renderArgs produces the flattened display text for a console.log-style
// call: each argument's primitive value if present, else its description,
// else "[" + type + "]" (spec §4.4 "fallback description").
func renderArgs(args []remoteArg) string {
	text := ""
	for i, a := range args {
		if i > 0 {
			text += " "
		}
		text += renderArg(a)
	}
	return text
}

func renderArg(a remoteArg) string {
	if len(a.Value) > 0 {
		var v any
		if err := json.Unmarshal(a.Value, &v); err == nil {
			return fmt.Sprintf("%v", v)
		}
	}
	if a.Description != "" {
		return a.Description
	}
	return "[" + a.Type + "]"
}
