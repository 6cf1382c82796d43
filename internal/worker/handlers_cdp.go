package worker

import (
	"context"
	"encoding/json"
	"fmt"
)

type cdpSendParams struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// handleCDPSend lets the CLI issue an arbitrary raw CDP command, the
// escape hatch for anything the purpose-built commands don't cover (spec
// §6 "cdp" command). The raw CDP result is returned unchanged;
// RemoteObject values in it are not expanded.
func (w *Worker) handleCDPSend(ctx context.Context, params json.RawMessage) (any, error) {
	var p cdpSendParams
	if err := json.Unmarshal(params, &p); err != nil || p.Method == "" {
		return nil, fmt.Errorf("method is required")
	}

	var cdpParams any
	if len(p.Params) > 0 {
		if err := json.Unmarshal(p.Params, &cdpParams); err != nil {
			return nil, fmt.Errorf("invalid params: %w", err)
		}
	} else {
		cdpParams = map[string]any{}
	}

	raw, err := w.cdp.SendContext(ctx, p.Method, cdpParams)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.Method, err)
	}

	var result json.RawMessage = raw
	return result, nil
}
