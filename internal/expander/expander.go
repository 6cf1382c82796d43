// Package expander implements the Remote-Object Expander (spec §4.4): it
// turns a CDP Runtime.RemoteObject reference into a bounded, human-readable
// tree by issuing Runtime.getProperties calls, iteratively rather than
// recursively so a pathological object graph (self-referential structures,
// huge arrays) can never blow the Go call stack — the work queue here plays
// the role the teacher's cdp.Client event/command split plays elsewhere:
// explicit state instead of implicit recursion.
package expander

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/grantcarthew/webctl/internal/cdp"
)

// Default bounds, overridable via config.Worker.
const (
	DefaultMaxDepth      = 3
	DefaultMaxProperties = 100
)

// Node is one expanded value in the rendered tree.
type Node struct {
	Name        string  `json:"name,omitempty"`
	Type        string  `json:"type"`
	Subtype     string  `json:"subtype,omitempty"`
	ClassName   string  `json:"className,omitempty"`
	Description string  `json:"description,omitempty"`
	Value       string  `json:"value,omitempty"`
	Children    []*Node `json:"children,omitempty"`
	Truncated   bool    `json:"truncated,omitempty"`

	// pendingObjectID carries the CDP objectId of a child that still needs
	// its own Runtime.getProperties call. It never reaches the wire: once
	// the expansion queue consumes it (or the node turns out to be a
	// terminal depth), it is irrelevant and left as-is.
	pendingObjectID string
}

// workItem is one entry in the iterative expansion queue: a remote object
// to fetch properties for, the Node to attach results to, and the depth it
// sits at.
type workItem struct {
	objectID string
	node     *Node
	depth    int
}

// remoteObject mirrors the fields of CDP's Runtime.RemoteObject this
// package actually consumes. Hand-decoded rather than taken from
// chromedp/cdproto: the full generated struct surface there cannot be
// verified field-by-field without running the Go toolchain, and this
// package needs only a handful of fields (see SPEC_FULL.md domain stack).
type remoteObject struct {
	Type        string          `json:"type"`
	Subtype     string          `json:"subtype,omitempty"`
	ClassName   string          `json:"className,omitempty"`
	Description string          `json:"description,omitempty"`
	Value       json.RawMessage `json:"value,omitempty"`
	ObjectID    string          `json:"objectId,omitempty"`
}

// propertyDescriptor mirrors CDP's Runtime.PropertyDescriptor.
type propertyDescriptor struct {
	Name  string        `json:"name"`
	Value *remoteObject `json:"value,omitempty"`
}

type getPropertiesResult struct {
	Result []propertyDescriptor `json:"result"`
}

// Expander issues Runtime.getProperties calls against a CDP client to
// render RemoteObject references into bounded trees.
type Expander struct {
	client        *cdp.Client
	log           *zap.Logger
	maxDepth      int
	maxProperties int
	failThreshold int
	consecutive   int
}

// New creates an Expander bound to a live CDP client.
func New(client *cdp.Client, log *zap.Logger, maxDepth, maxProperties, failThreshold int) *Expander {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	if maxProperties <= 0 {
		maxProperties = DefaultMaxProperties
	}
	if failThreshold <= 0 {
		failThreshold = 5
	}
	return &Expander{client: client, log: log, maxDepth: maxDepth, maxProperties: maxProperties, failThreshold: failThreshold}
}

// Expand renders the object identified by objectID (or, if objectID is
// empty, a primitive description) into a Node tree bounded by maxDepth and
// maxProperties. Each getProperties call failure is counted; after
// failThreshold consecutive failures expansion stops early and returns
// what was gathered so far with Truncated set, rather than erroring the
// whole request (spec §4.4 "failure counter").
func (e *Expander) Expand(ctx context.Context, objectID, typ, subtype, className, description string) *Node {
	root := &Node{Type: typ, Subtype: subtype, ClassName: className, Description: description}
	if objectID == "" {
		return root
	}

	queue := []workItem{{objectID: objectID, node: root, depth: 0}}
	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		if item.depth >= e.maxDepth {
			item.node.Truncated = true
			continue
		}

		children, truncated, err := e.fetchProperties(ctx, item.objectID)
		if err != nil {
			e.consecutive++
			e.log.Debug("getProperties failed", zap.String("objectId", item.objectID), zap.Error(err))
			item.node.Truncated = true
			if e.consecutive >= e.failThreshold {
				e.log.Warn("expander hit consecutive failure threshold, aborting remaining work", zap.Int("threshold", e.failThreshold))
				return root
			}
			continue
		}
		e.consecutive = 0

		item.node.Children = children
		if truncated {
			item.node.Truncated = true
		}

		for _, child := range children {
			if child.pendingObjectID == "" {
				continue
			}
			queue = append(queue, workItem{objectID: child.pendingObjectID, node: child, depth: item.depth + 1})
		}
	}

	return root
}

func (e *Expander) fetchProperties(ctx context.Context, objectID string) ([]*Node, bool, error) {
	raw, err := e.client.SendContext(ctx, "Runtime.getProperties", map[string]any{
		"objectId":      objectID,
		"ownProperties": true,
	})
	if err != nil {
		return nil, false, err
	}

	var result getPropertiesResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, false, fmt.Errorf("decode getProperties result: %w", err)
	}

	truncated := false
	props := result.Result
	if len(props) > e.maxProperties {
		props = props[:e.maxProperties]
		truncated = true
	}

	nodes := make([]*Node, 0, len(props))
	for _, p := range props {
		if p.Value == nil {
			continue
		}
		nodes = append(nodes, renderLeaf(p.Name, p.Value))
	}

	return nodes, truncated, nil
}

func renderLeaf(name string, obj *remoteObject) *Node {
	n := &Node{
		Name:            name,
		Type:            obj.Type,
		Subtype:         obj.Subtype,
		ClassName:       obj.ClassName,
		Description:     fallbackDescription(obj),
		pendingObjectID: obj.ObjectID,
	}
	if len(obj.Value) > 0 && obj.Value[0] != '{' && obj.Value[0] != '[' {
		var v any
		if err := json.Unmarshal(obj.Value, &v); err == nil {
			n.Value = fmt.Sprintf("%v", v)
		}
	}
	return n
}

func fallbackDescription(obj *remoteObject) string {
	if obj.Description != "" {
		return obj.Description
	}
	return "[" + obj.Type + "]"
}
