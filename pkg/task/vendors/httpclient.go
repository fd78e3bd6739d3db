// Package vendors registers the built-in vendor adapters. Import this
// package with a blank identifier to activate all of them:
//
//	import _ "github.com/ananyarao/canvasflow/pkg/task/vendors"
package vendors

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ananyarao/canvasflow/pkg/task"
)

const defaultHTTPTimeout = 30 * time.Second

// httpc is the shared client for the raw-HTTP vendors (kling, minimax,
// flux). These vendors publish no Go SDK.
var httpc = &http.Client{Timeout: defaultHTTPTimeout}

// postJSON sends an authenticated JSON POST and decodes the response into
// out. Non-2xx statuses are mapped onto the typed error taxonomy.
func postJSON(ctx context.Context, vendor, url, apiKey string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", vendor, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: build request: %w", vendor, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)
	return doJSON(vendor, req, out)
}

// getJSON sends an authenticated GET and decodes the response into out.
func getJSON(ctx context.Context, vendor, url, apiKey string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", vendor, err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	return doJSON(vendor, req, out)
}

func doJSON(vendor string, req *http.Request, out any) error {
	resp, err := httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%s: request failed: %w", vendor, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read response body: %w", vendor, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return mapHTTPError(vendor, resp.StatusCode, string(raw))
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return &task.RequestError{VendorError: task.VendorError{
				Vendor: vendor, Code: resp.StatusCode,
				Message: "malformed response payload", Cause: err,
			}}
		}
	}
	return nil
}

// mapHTTPError converts a non-2xx status into the typed taxonomy.
func mapHTTPError(vendor string, code int, body string) error {
	base := task.VendorError{Vendor: vendor, Code: code, Message: truncate(body, 300)}
	switch {
	case code == 429:
		return &task.QuotaError{VendorError: base}
	case code == 401 || code == 403:
		return &task.AuthError{VendorError: base}
	case code >= 500:
		return &task.ServerError{VendorError: base}
	default:
		return &task.RequestError{VendorError: base}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
