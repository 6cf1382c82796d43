package worker

import (
	"context"
	"encoding/json"
	"fmt"
)

type navigateParams struct {
	URL string `json:"url"`
}

func (w *Worker) handleNavigate(ctx context.Context, params json.RawMessage) (any, error) {
	var p navigateParams
	if err := json.Unmarshal(params, &p); err != nil || p.URL == "" {
		return nil, fmt.Errorf("url is required")
	}

	if _, err := w.cdp.SendContext(ctx, "Page.navigate", map[string]any{"url": p.URL}); err != nil {
		return nil, fmt.Errorf("Page.navigate: %w", err)
	}
	return nil, nil
}
