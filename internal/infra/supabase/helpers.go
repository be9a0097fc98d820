package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/boddenberg/orcamento-engine-go/internal/infra/resilience"
)

// ============================================================
// HTTP helpers for POST, PATCH, DELETE
// ============================================================

func (c *Client) doPost(ctx context.Context, table string, data map[string]any) ([]byte, error) {
	jsonBody, err := json.Marshal(data)
	if err != nil {
		return nil, resilience.Permanent(err)
	}
	return c.doRequest(ctx, http.MethodPost, table, bytes.NewReader(jsonBody), "return=representation")
}

func (c *Client) doPatch(ctx context.Context, path string, data map[string]any) error {
	jsonBody, err := json.Marshal(data)
	if err != nil {
		return resilience.Permanent(err)
	}
	_, err = c.doRequest(ctx, http.MethodPatch, path, bytes.NewReader(jsonBody), "return=minimal")
	return err
}

func (c *Client) doDelete(ctx context.Context, path string) error {
	_, err := c.doRequest(ctx, http.MethodDelete, path, nil, "")
	return err
}

func readBody(resp *http.Response) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
