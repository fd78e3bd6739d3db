package task_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/ananyarao/canvasflow/pkg/task"
)

// ─── Model ref tests ──────────────────────────────────────────────────────────

func TestParseModelRef(t *testing.T) {
	vendor, model, err := task.ParseModelRef("kling:kling-v1-6")
	if err != nil {
		t.Fatalf("ParseModelRef: %v", err)
	}
	if vendor != "kling" || model != "kling-v1-6" {
		t.Errorf("got (%q,%q), want (kling,kling-v1-6)", vendor, model)
	}
}

func TestParseModelRef_Invalid(t *testing.T) {
	for _, ref := range []string{"", "no-colon", ":model", "vendor:"} {
		if _, _, err := task.ParseModelRef(ref); err == nil {
			t.Errorf("ParseModelRef(%q): expected error", ref)
		}
	}
}

// ─── Error taxonomy tests ─────────────────────────────────────────────────────

func TestQuotaExceeded(t *testing.T) {
	quota := &task.QuotaError{VendorError: task.VendorError{Vendor: "kling", Code: 1102}}
	if !task.QuotaExceeded(quota) {
		t.Error("QuotaError should register as quota exceeded")
	}
	if !task.QuotaExceeded(fmt.Errorf("create: %w", quota)) {
		t.Error("wrapped QuotaError should register as quota exceeded")
	}
	server := &task.ServerError{VendorError: task.VendorError{Vendor: "flux", Code: 503}}
	if task.QuotaExceeded(server) {
		t.Error("ServerError should not register as quota exceeded")
	}
}

func TestRetryable(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{&task.QuotaError{VendorError: task.VendorError{Code: 429}}, true},
		{&task.ServerError{VendorError: task.VendorError{Code: 500}}, true},
		{&task.RequestError{VendorError: task.VendorError{Code: 400}}, false},
		{&task.AuthError{VendorError: task.VendorError{Code: 401}}, false},
	}
	for _, c := range cases {
		if got := task.Retryable(c.err); got != c.want {
			t.Errorf("Retryable(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}

func TestTransient(t *testing.T) {
	if !task.Transient(&task.ServerError{VendorError: task.VendorError{Code: 502}}) {
		t.Error("server errors are transient")
	}
	if task.Transient(&task.AuthError{VendorError: task.VendorError{Code: 401}}) {
		t.Error("auth errors are not transient")
	}
	if task.Transient(&task.TaskFailedError{Vendor: "flux", TaskID: "flux-1"}) {
		t.Error("vendor-declared failures are not transient")
	}
}

// ─── Profile tests ────────────────────────────────────────────────────────────

func TestProfileFor_KnownVendors(t *testing.T) {
	if p := task.ProfileFor("flux"); p.PollTimeout != 90*time.Second {
		t.Errorf("flux timeout = %s, want 90s", p.PollTimeout)
	}
	if p := task.ProfileFor("kling"); p.PollTimeout != 300*time.Second {
		t.Errorf("kling timeout = %s, want 300s", p.PollTimeout)
	}
	if p := task.ProfileFor("minimax"); p.PollTimeout != 480*time.Second {
		t.Errorf("minimax timeout = %s, want 480s", p.PollTimeout)
	}
	if p := task.ProfileFor("someone-new"); p.PollInterval == 0 || p.PollTimeout == 0 {
		t.Error("unknown vendor should get the default profile")
	}
}

func TestProfileFor_VideoFailoverIsSymmetric(t *testing.T) {
	kling := task.ProfileFor("kling")
	if len(kling.Failover) != 1 || kling.Failover[0] != "minimax" {
		t.Errorf("kling failover = %v, want [minimax]", kling.Failover)
	}
	minimax := task.ProfileFor("minimax")
	if len(minimax.Failover) != 1 || minimax.Failover[0] != "kling" {
		t.Errorf("minimax failover = %v, want [kling]", minimax.Failover)
	}
}

func TestResumable(t *testing.T) {
	cases := []struct {
		vendor, taskID string
		want           bool
	}{
		{"kling", "klg-abc123", true},
		{"minimax", "mmx-abc123", true},
		{"flux", "flux-abc123", true},
		{"kling", "mmx-abc123", false}, // wrong vendor's prefix
		{"kling", "", false},
		{"openai", "anything", false}, // synchronous vendor, no resumable ids
	}
	for _, c := range cases {
		if got := task.Resumable(c.vendor, c.taskID); got != c.want {
			t.Errorf("Resumable(%q,%q) = %v, want %v", c.vendor, c.taskID, got, c.want)
		}
	}
}

// ─── Retry tests ──────────────────────────────────────────────────────────────

func TestWithRetry_StopsOnNonRetryable(t *testing.T) {
	calls := 0
	err := task.WithRetry(t.Context(), 4, func() error {
		calls++
		return &task.RequestError{VendorError: task.VendorError{Vendor: "openai", Code: 400}}
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (non-retryable must not retry)", calls)
	}
}

func TestWithRetry_SucceedsAfterTransient(t *testing.T) {
	calls := 0
	err := task.WithRetry(t.Context(), 4, func() error {
		calls++
		if calls < 2 {
			return &task.ServerError{VendorError: task.VendorError{Vendor: "openai", Code: 503}}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithRetry: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}
