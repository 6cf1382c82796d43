package collectors

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/grantcarthew/webctl/internal/cdp"
	"github.com/grantcarthew/webctl/internal/telemetry"
)

// DomQuery runs a CSS selector against the live document via
// DOM.querySelectorAll and returns every matching node's backend id,
// tag name, attributes, and a short text preview, forming the
// DomQueryResult the query-cache manager persists (spec §4.3, §4.6).
type DomQuery struct {
	client *cdp.Client
	store  *telemetry.Store
}

// NewDomQuery creates a DomQuery collector.
func NewDomQuery(client *cdp.Client, store *telemetry.Store) *DomQuery {
	return &DomQuery{client: client, store: store}
}

type getDocumentRootResult struct {
	Root struct {
		NodeID int64 `json:"nodeId"`
	} `json:"root"`
}

type querySelectorAllResult struct {
	NodeIDs []int64 `json:"nodeIds"`
}

type describeNodeResult struct {
	Node struct {
		BackendNodeID int64    `json:"backendNodeId"`
		NodeName      string   `json:"nodeName"`
		Attributes    []string `json:"attributes,omitempty"`
	} `json:"node"`
}

type resolveNodeResult struct {
	Object struct {
		ObjectID string `json:"objectId"`
	} `json:"object"`
}

type callFunctionOnResult struct {
	Result struct {
		Value string `json:"value"`
	} `json:"result"`
}

// Run executes selector against the current document.
func (q *DomQuery) Run(ctx context.Context, selector string) (telemetry.DomQueryResult, error) {
	docRaw, err := q.client.SendContext(ctx, "DOM.getDocument", map[string]any{"depth": 0})
	if err != nil {
		return telemetry.DomQueryResult{}, fmt.Errorf("DOM.getDocument: %w", err)
	}
	var doc getDocumentRootResult
	if err := json.Unmarshal(docRaw, &doc); err != nil {
		return telemetry.DomQueryResult{}, fmt.Errorf("decode document root: %w", err)
	}

	qsaRaw, err := q.client.SendContext(ctx, "DOM.querySelectorAll", map[string]any{
		"nodeId":   doc.Root.NodeID,
		"selector": selector,
	})
	if err != nil {
		return telemetry.DomQueryResult{}, fmt.Errorf("DOM.querySelectorAll: %w", err)
	}
	var qsa querySelectorAllResult
	if err := json.Unmarshal(qsaRaw, &qsa); err != nil {
		return telemetry.DomQueryResult{}, fmt.Errorf("decode query result: %w", err)
	}

	nodes := make([]telemetry.DomNode, 0, len(qsa.NodeIDs))
	for _, nodeID := range qsa.NodeIDs {
		node, err := q.describeNode(ctx, nodeID)
		if err != nil {
			continue
		}
		nodes = append(nodes, node)
	}

	navID := q.store.CurrentNavigationID()
	var navIDPtr *int
	if navID > 0 {
		navIDPtr = &navID
	}

	return telemetry.DomQueryResult{Selector: selector, Nodes: nodes, NavigationID: navIDPtr}, nil
}

func (q *DomQuery) describeNode(ctx context.Context, nodeID int64) (telemetry.DomNode, error) {
	descRaw, err := q.client.SendContext(ctx, "DOM.describeNode", map[string]any{"nodeId": nodeID})
	if err != nil {
		return telemetry.DomNode{}, err
	}
	var desc describeNodeResult
	if err := json.Unmarshal(descRaw, &desc); err != nil {
		return telemetry.DomNode{}, err
	}

	attrs := make(map[string]string, len(desc.Node.Attributes)/2)
	for i := 0; i+1 < len(desc.Node.Attributes); i += 2 {
		attrs[desc.Node.Attributes[i]] = desc.Node.Attributes[i+1]
	}

	preview := ""
	if resolveRaw, err := q.client.SendContext(ctx, "DOM.resolveNode", map[string]any{"nodeId": nodeID}); err == nil {
		var resolved resolveNodeResult
		if json.Unmarshal(resolveRaw, &resolved) == nil && resolved.Object.ObjectID != "" {
			if callRaw, err := q.client.SendContext(ctx, "Runtime.callFunctionOn", map[string]any{
				"objectId":            resolved.Object.ObjectID,
				"functionDeclaration":  "function() { return (this.textContent || '').trim().slice(0, 80); }",
				"returnByValue":        true,
			}); err == nil {
				var callResult callFunctionOnResult
				if json.Unmarshal(callRaw, &callResult) == nil {
					preview = callResult.Result.Value
				}
			}
		}
	}

	return telemetry.DomNode{
		BackendNodeID: desc.Node.BackendNodeID,
		NodeName:      desc.Node.NodeName,
		Attributes:    attrs,
		TextPreview:   preview,
	}, nil
}
