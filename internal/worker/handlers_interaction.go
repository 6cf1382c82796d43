package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/grantcarthew/webctl/internal/apperr"
	"github.com/grantcarthew/webctl/internal/telemetry"
)

// domIndexParams identifies one node from a previously cached dom_query
// result: Selector picks the cache entry (spec §4.5), Index picks the
// node within its Nodes slice. This generalizes spec §4.2's bare "dom_get
// N" to the cache's per-selector keying, the same selector-carrying shape
// handlePeek already uses.
type domIndexParams struct {
	Selector string `json:"selector"`
	Index    int    `json:"index"`
}

type domFillParams struct {
	Selector string `json:"selector"`
	Index    int    `json:"index"`
	Value    string `json:"value"`
}

// resolveIndexedNode implements the §4.5 validation protocol shared by
// dom_get, dom_click, and dom_fill: load the cache entry for selector,
// reject a missing or stale entry with the spec-mandated message and
// suggestion, then bounds-check index into the cached node list.
func (w *Worker) resolveIndexedNode(selector string, index int) (telemetry.DomNode, error) {
	result, ok, stale := w.cache.Resolve(selector)
	if !ok {
		return telemetry.DomNode{}, apperr.New(apperr.KindResourceMissing, "No cached query results found").
			WithCode(apperr.CodeInvalidParams).
			WithSuggestion("Run `dom query <selector>` first")
	}
	if stale {
		return telemetry.DomNode{}, apperr.New(apperr.KindResourceConflict, "Query cache is stale (page has navigated since query was run)").
			WithCode(apperr.CodeInvalidParams).
			WithSuggestion(fmt.Sprintf("dom query %s", selector))
	}
	if index < 0 || index >= len(result.Nodes) {
		return telemetry.DomNode{}, apperr.Newf(apperr.KindUserInputInvalid, "index %d out of range (0-%d)", index, len(result.Nodes)-1).
			WithCode(apperr.CodeInvalidParams)
	}
	return result.Nodes[index], nil
}

// resolveObjectID turns a backend node id into a live Runtime.RemoteObject
// id via DOM.resolveNode, the same call handleDomQuery's describeNode
// uses to build text previews.
func (w *Worker) resolveObjectID(ctx context.Context, backendNodeID int64) (string, error) {
	raw, err := w.cdp.SendContext(ctx, "DOM.resolveNode", map[string]any{"backendNodeId": backendNodeID})
	if err != nil {
		return "", fmt.Errorf("DOM.resolveNode: %w", err)
	}
	var resolved resolveNodeResult
	if err := json.Unmarshal(raw, &resolved); err != nil {
		return "", fmt.Errorf("decode resolved node: %w", err)
	}
	if resolved.Object.ObjectID == "" {
		return "", fmt.Errorf("node has no live object id")
	}
	return resolved.Object.ObjectID, nil
}

type resolveNodeResult struct {
	Object struct {
		ObjectID string `json:"objectId"`
	} `json:"object"`
}

type domGetResult struct {
	BackendNodeID int64             `json:"backendNodeId"`
	NodeName      string            `json:"nodeName"`
	Attributes    map[string]string `json:"attributes,omitempty"`
	Value         string            `json:"value"`
}

type callFunctionOnResult struct {
	Result struct {
		Value string `json:"value"`
	} `json:"result"`
}

// handleDomGet resolves index N against the selector's cached query
// result and reads back its current value/text via
// Runtime.callFunctionOn (spec §4.2 "dom_get N").
func (w *Worker) handleDomGet(ctx context.Context, params json.RawMessage) (any, error) {
	var p domIndexParams
	if err := json.Unmarshal(params, &p); err != nil || p.Selector == "" {
		return nil, fmt.Errorf("selector is required")
	}

	node, err := w.resolveIndexedNode(p.Selector, p.Index)
	if err != nil {
		return nil, err
	}

	objectID, err := w.resolveObjectID(ctx, node.BackendNodeID)
	if err != nil {
		return nil, err
	}

	raw, err := w.cdp.SendContext(ctx, "Runtime.callFunctionOn", map[string]any{
		"objectId":            objectID,
		"functionDeclaration": "function() { return this.value !== undefined ? String(this.value) : (this.textContent || '').trim(); }",
		"returnByValue":       true,
	})
	if err != nil {
		return nil, fmt.Errorf("Runtime.callFunctionOn: %w", err)
	}
	var call callFunctionOnResult
	if err := json.Unmarshal(raw, &call); err != nil {
		return nil, fmt.Errorf("decode callFunctionOn result: %w", err)
	}

	return domGetResult{
		BackendNodeID: node.BackendNodeID,
		NodeName:      node.NodeName,
		Attributes:    node.Attributes,
		Value:         call.Result.Value,
	}, nil
}

// handleDomClick resolves index N and simulates a click via DOM.focus
// followed by a synthetic .click() call, avoiding the need to compute
// on-screen coordinates for Input.dispatchMouseEvent (spec §4.2 "dom_click N").
func (w *Worker) handleDomClick(ctx context.Context, params json.RawMessage) (any, error) {
	var p domIndexParams
	if err := json.Unmarshal(params, &p); err != nil || p.Selector == "" {
		return nil, fmt.Errorf("selector is required")
	}

	node, err := w.resolveIndexedNode(p.Selector, p.Index)
	if err != nil {
		return nil, err
	}

	if _, err := w.cdp.SendContext(ctx, "DOM.focus", map[string]any{"backendNodeId": node.BackendNodeID}); err != nil {
		return nil, fmt.Errorf("DOM.focus: %w", err)
	}

	objectID, err := w.resolveObjectID(ctx, node.BackendNodeID)
	if err != nil {
		return nil, err
	}

	if _, err := w.cdp.SendContext(ctx, "Runtime.callFunctionOn", map[string]any{
		"objectId":            objectID,
		"functionDeclaration": "function() { this.click(); }",
	}); err != nil {
		return nil, fmt.Errorf("Runtime.callFunctionOn: %w", err)
	}

	w.cache.Invalidate()
	return nil, nil
}

// handleDomFill resolves index N, focuses it, and inserts value via
// Input.insertText, the same CDP call the teacher's handleType uses for
// its text-insertion step (spec §4.2 "dom_fill N value").
func (w *Worker) handleDomFill(ctx context.Context, params json.RawMessage) (any, error) {
	var p domFillParams
	if err := json.Unmarshal(params, &p); err != nil || p.Selector == "" {
		return nil, fmt.Errorf("selector is required")
	}

	node, err := w.resolveIndexedNode(p.Selector, p.Index)
	if err != nil {
		return nil, err
	}

	if _, err := w.cdp.SendContext(ctx, "DOM.focus", map[string]any{"backendNodeId": node.BackendNodeID}); err != nil {
		return nil, fmt.Errorf("DOM.focus: %w", err)
	}

	if _, err := w.cdp.SendContext(ctx, "Input.insertText", map[string]any{"text": p.Value}); err != nil {
		return nil, fmt.Errorf("Input.insertText: %w", err)
	}

	w.cache.Invalidate()
	return nil, nil
}
