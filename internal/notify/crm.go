package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/vmomparler1/just5stars-nextjs/internal/domain"
)

// CRMHook posts the order snapshot to an automation webhook (Zapier-style).
type CRMHook struct {
	url  string
	http *http.Client
}

func NewCRMHook(url string) *CRMHook {
	return &CRMHook{url: url, http: &http.Client{Timeout: defaultHTTPTimeout}}
}

func (h *CRMHook) Notify(ctx context.Context, o domain.Order) error {
	body, err := json.Marshal(NewSnapshot(o))
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.http.Do(req)
	if err != nil {
		return fmt.Errorf("post crm hook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("post crm hook: status %d", resp.StatusCode)
	}
	return nil
}
