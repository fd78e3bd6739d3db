package task

import (
	"encoding/json"
	"fmt"
)

// TaskStatus is the normalized status vocabulary every vendor's wire
// status maps onto.
type TaskStatus string

const (
	StatusRunning   TaskStatus = "running"
	StatusSucceeded TaskStatus = "succeeded"
	StatusFailed    TaskStatus = "failed"
)

// Asset is one media reference in a normalized result.
type Asset struct {
	Type         string `json:"type"` // "text", "image", "video"
	URL          string `json:"url,omitempty"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
	Text         string `json:"text,omitempty"` // inline payload for text assets
}

// TaskResult is the vendor-agnostic shape every adapter normalizes into.
// Raw retains the vendor's original payload for diagnostics only; control
// flow must never depend on it.
type TaskResult struct {
	ID         string          `json:"id"`
	Kind       string          `json:"kind"` // "text", "image", "video"
	Status     TaskStatus      `json:"status"`
	Progress   float64         `json:"progress,omitempty"` // 0..100 where the vendor exposes one
	FailReason string          `json:"failReason,omitempty"`
	Assets     []Asset         `json:"assets,omitempty"`
	Raw        json.RawMessage `json:"raw,omitempty"`
}

// CreateRequest carries the kind-specific generation parameters for one
// task creation call.
type CreateRequest struct {
	Model           string   `json:"model"`
	Prompt          string   `json:"prompt"`
	Orientation     string   `json:"orientation,omitempty"` // "landscape"/"portrait"
	DurationSec     int      `json:"durationSec,omitempty"`
	ReferenceImages []string `json:"referenceImages,omitempty"`
	Webhook         string   `json:"webhook,omitempty"`
}

// CreateResponse is the outcome of a creation call. Synchronous vendors
// return an immediately-terminal Result; asynchronous vendors return a
// pending TaskID to poll.
type CreateResponse struct {
	TaskID string      `json:"taskId,omitempty"`
	Status TaskStatus  `json:"status"`
	Result *TaskResult `json:"result,omitempty"`
}

// VendorContext is the resolved credentials/endpoint pair for one call.
// Resolved fresh per task creation, never cached, never persisted.
type VendorContext struct {
	BaseURL        string
	APIKey         string
	ViaProxyVendor string // set when routed through a proxy provider
}

// ParseModelRef splits "vendor:model-name" into (vendor, modelName, nil).
// Both parts must be non-empty and the colon separator is required.
func ParseModelRef(ref string) (vendor, modelName string, err error) {
	for i, c := range ref {
		if c == ':' {
			v := ref[:i]
			m := ref[i+1:]
			if v == "" {
				return "", "", fmt.Errorf("model ref %q: empty vendor name", ref)
			}
			if m == "" {
				return "", "", fmt.Errorf("model ref %q: empty model name", ref)
			}
			return v, m, nil
		}
	}
	return "", "", fmt.Errorf("model ref %q: missing 'vendor:model-name' format", ref)
}
