package collectors

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/grantcarthew/webctl/internal/cdp"
	"github.com/grantcarthew/webctl/internal/telemetry"
)

// DomSnapshotter captures the worker's DOM/accessibility snapshot on
// demand (it is not an event subscriber like Network/Console/Navigation,
// since a full accessibility tree is only worth paying for when a command
// actually needs one). It combines CDP's accessibility tree with a
// same-origin implicit-ARIA-role pass over plain DOM nodes the
// accessibility tree omits (buttons, links, form fields with no explicit
// role attribute), per spec §4.3 "DOM/A11y snapshot".
type DomSnapshotter struct {
	client *cdp.Client
	store  *telemetry.Store
	log    *zap.Logger
}

// NewDomSnapshotter creates a DomSnapshotter.
func NewDomSnapshotter(client *cdp.Client, store *telemetry.Store, log *zap.Logger) *DomSnapshotter {
	return &DomSnapshotter{client: client, store: store, log: log}
}

type axNode struct {
	NodeID           string   `json:"nodeId"`
	BackendDOMNodeID int64    `json:"backendDOMNodeId"`
	ChildIds         []string `json:"childIds,omitempty"`
	Role             *struct {
		Value string `json:"value"`
	} `json:"role,omitempty"`
	Name *struct {
		Value string `json:"value"`
	} `json:"name,omitempty"`
	Ignored bool `json:"ignored"`
}

type getFullAXTreeResult struct {
	Nodes []axNode `json:"nodes"`
}

// implicitRoleTags maps plain HTML tag names to the ARIA role CDP's
// accessibility tree would assign them implicitly. Chrome's own tree
// usually reports these already, but elements inside closed shadow roots
// or marked aria-hidden are sometimes dropped from getFullAXTree even
// though they are still in the DOM; this pass backfills those so a
// selector-based query never silently misses a clickable element.
var implicitRoleTags = map[string]string{
	"A":        "link",
	"BUTTON":   "button",
	"INPUT":    "textbox",
	"SELECT":   "combobox",
	"TEXTAREA": "textbox",
	"IMG":      "img",
}

type domNode struct {
	NodeID        int64             `json:"nodeId"`
	BackendNodeID int64             `json:"backendNodeId"`
	NodeName      string            `json:"nodeName"`
	Attributes    []string          `json:"attributes,omitempty"`
	Children      []domNode         `json:"children,omitempty"`
}

type getDocumentResult struct {
	Root domNode `json:"root"`
}

// Capture takes a full accessibility-tree snapshot plus an implicit-role
// backfill pass, stores it in the Store, and returns it.
func (d *DomSnapshotter) Capture(ctx context.Context) (*telemetry.DomSnapshot, error) {
	axRaw, err := d.client.SendContext(ctx, "Accessibility.getFullAXTree", map[string]any{})
	if err != nil {
		return nil, fmt.Errorf("Accessibility.getFullAXTree: %w", err)
	}
	var axResult getFullAXTreeResult
	if err := json.Unmarshal(axRaw, &axResult); err != nil {
		return nil, fmt.Errorf("decode accessibility tree: %w", err)
	}

	seen := make(map[int64]bool, len(axResult.Nodes))
	nodes := make([]telemetry.AXNode, 0, len(axResult.Nodes))
	for _, n := range axResult.Nodes {
		if n.Ignored {
			continue
		}
		role, name := "", ""
		if n.Role != nil {
			role = n.Role.Value
		}
		if n.Name != nil {
			name = n.Name.Value
		}
		nodes = append(nodes, telemetry.AXNode{
			NodeID:           n.NodeID,
			BackendDOMNodeID: n.BackendDOMNodeID,
			Role:             role,
			Name:             name,
			ChildIDs:         n.ChildIds,
		})
		seen[n.BackendDOMNodeID] = true
	}

	docRaw, err := d.client.SendContext(ctx, "DOM.getDocument", map[string]any{"depth": -1, "pierce": true})
	if err != nil {
		d.log.Debug("DOM.getDocument failed, skipping implicit-role backfill", zap.Error(err))
	} else {
		var docResult getDocumentResult
		if err := json.Unmarshal(docRaw, &docResult); err == nil {
			nodes = append(nodes, backfillImplicitRoles(docResult.Root, seen)...)
		}
	}

	navID := d.store.CurrentNavigationID()
	var navIDPtr *int
	if navID > 0 {
		navIDPtr = &navID
	}

	snap := &telemetry.DomSnapshot{Nodes: nodes, CapturedAt: time.Now(), NavigationID: navIDPtr}
	d.store.SetSnapshot(snap)
	return snap, nil
}

func backfillImplicitRoles(root domNode, seen map[int64]bool) []telemetry.AXNode {
	var out []telemetry.AXNode
	var walk func(n domNode)
	walk = func(n domNode) {
		if !seen[n.BackendNodeID] {
			if role, ok := implicitRoleTags[strings.ToUpper(n.NodeName)]; ok {
				out = append(out, telemetry.AXNode{
					BackendDOMNodeID: n.BackendNodeID,
					Role:             role,
					Name:             attrValue(n.Attributes, "aria-label"),
					Inferred:         true,
				})
			}
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(root)
	return out
}

// attrValue looks up an attribute in CDP's flat [name, value, name,
// value, ...] attribute array.
func attrValue(attrs []string, name string) string {
	for i := 0; i+1 < len(attrs); i += 2 {
		if attrs[i] == name {
			return attrs[i+1]
		}
	}
	return ""
}
