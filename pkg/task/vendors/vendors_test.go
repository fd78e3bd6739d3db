package vendors

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ananyarao/canvasflow/pkg/task"
)

// ─── HTTP error mapping ───────────────────────────────────────────────────────

func TestMapHTTPError(t *testing.T) {
	cases := []struct {
		code int
		want any
	}{
		{429, &task.QuotaError{}},
		{401, &task.AuthError{}},
		{403, &task.AuthError{}},
		{500, &task.ServerError{}},
		{503, &task.ServerError{}},
		{400, &task.RequestError{}},
	}
	for _, c := range cases {
		err := mapHTTPError("kling", c.code, "body")
		switch c.want.(type) {
		case *task.QuotaError:
			var e *task.QuotaError
			if !errors.As(err, &e) {
				t.Errorf("code %d: got %T, want QuotaError", c.code, err)
			}
		case *task.AuthError:
			var e *task.AuthError
			if !errors.As(err, &e) {
				t.Errorf("code %d: got %T, want AuthError", c.code, err)
			}
		case *task.ServerError:
			var e *task.ServerError
			if !errors.As(err, &e) {
				t.Errorf("code %d: got %T, want ServerError", c.code, err)
			}
		case *task.RequestError:
			var e *task.RequestError
			if !errors.As(err, &e) {
				t.Errorf("code %d: got %T, want RequestError", c.code, err)
			}
		}
	}
}

// ─── Flux ─────────────────────────────────────────────────────────────────────

func TestFluxCreate_ReturnsPrefixedTaskID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/flux-pro-1.1" {
			t.Errorf("path = %q, want /v1/flux-pro-1.1", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("auth = %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "job-9"})
	}))
	defer srv.Close()

	f := &fluxImage{}
	resp, err := f.Create(t.Context(), task.CreateRequest{Prompt: "a fox"},
		task.VendorContext{BaseURL: srv.URL, APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if resp.TaskID != "flux-job-9" {
		t.Errorf("taskID = %q, want flux-job-9", resp.TaskID)
	}
}

func TestNormalizeFlux(t *testing.T) {
	ready := normalizeFlux("flux-1", fluxResultResponse{
		Status: "Ready", Progress: 1,
		Result: struct {
			Sample string `json:"sample"`
		}{Sample: "https://cdn/i.png"},
	})
	if ready.Status != task.StatusSucceeded || len(ready.Assets) != 1 {
		t.Errorf("ready = %+v, want succeeded with one asset", ready)
	}

	moderated := normalizeFlux("flux-1", fluxResultResponse{Status: "Content Moderated"})
	if moderated.Status != task.StatusFailed || moderated.FailReason == "" {
		t.Errorf("moderated = %+v, want failed with a reason", moderated)
	}

	pending := normalizeFlux("flux-1", fluxResultResponse{Status: "Pending", Progress: 0.4})
	if pending.Status != task.StatusRunning || pending.Progress != 40 {
		t.Errorf("pending = %+v, want running at 40", pending)
	}
}

// ─── Kling ────────────────────────────────────────────────────────────────────

func TestKlingAppError_QuotaCodes(t *testing.T) {
	for _, code := range []int{1102, 1103, 1303} {
		err := klingAppError(klingEnvelope{Code: code, Message: "exhausted"})
		if !task.QuotaExceeded(err) {
			t.Errorf("code %d should map to a quota error, got %v", code, err)
		}
	}
	if err := klingAppError(klingEnvelope{Code: 1201, Message: "bad param"}); task.QuotaExceeded(err) {
		t.Error("code 1201 should not map to a quota error")
	}
	if err := klingAppError(klingEnvelope{Code: 0}); err != nil {
		t.Errorf("code 0 should be nil, got %v", err)
	}
}

func TestKlingFetchResult_Succeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/videos/text2video/task-7" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code": 0,
			"data": map[string]any{
				"task_id":     "task-7",
				"task_status": "succeed",
				"task_result": map[string]any{
					"videos": []map[string]string{{
						"url":             "https://cdn/v.mp4",
						"cover_image_url": "https://cdn/v.jpg",
					}},
				},
			},
		})
	}))
	defer srv.Close()

	k := &klingVideo{}
	res, err := k.FetchResult(t.Context(), "klg-task-7", task.VendorContext{BaseURL: srv.URL, APIKey: "sk"})
	if err != nil {
		t.Fatalf("FetchResult: %v", err)
	}
	if res.Status != task.StatusSucceeded {
		t.Errorf("status = %q, want succeeded", res.Status)
	}
	if len(res.Assets) != 1 || res.Assets[0].URL != "https://cdn/v.mp4" {
		t.Errorf("assets = %+v", res.Assets)
	}
	if res.Assets[0].ThumbnailURL != "https://cdn/v.jpg" {
		t.Errorf("thumbnail = %q", res.Assets[0].ThumbnailURL)
	}
}

func TestKlingCreate_QuotaEnvelopeOnHTTP200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"code": 1102, "message": "resource pack exhausted"})
	}))
	defer srv.Close()

	k := &klingVideo{}
	_, err := k.Create(t.Context(), task.CreateRequest{Prompt: "waves"},
		task.VendorContext{BaseURL: srv.URL, APIKey: "sk"})
	if !task.QuotaExceeded(err) {
		t.Fatalf("err = %v, want quota error despite HTTP 200", err)
	}
}

// ─── Minimax ──────────────────────────────────────────────────────────────────

func TestMinimaxAppError_QuotaCodes(t *testing.T) {
	for _, code := range []int{1008, 1026} {
		err := minimaxAppError(minimaxBaseResp{StatusCode: code, StatusMsg: "limited"})
		if !task.QuotaExceeded(err) {
			t.Errorf("code %d should map to a quota error, got %v", code, err)
		}
	}
}

func TestNormalizeMinimax(t *testing.T) {
	success := normalizeMinimax("mmx-1", minimaxQueryResponse{
		Status: "Success", VideoURL: "https://cdn/v.mp4", CoverURL: "https://cdn/c.jpg",
	})
	if success.Status != task.StatusSucceeded || success.Assets[0].URL != "https://cdn/v.mp4" {
		t.Errorf("success = %+v", success)
	}

	fail := normalizeMinimax("mmx-1", minimaxQueryResponse{
		Status: "Fail", BaseResp: minimaxBaseResp{StatusMsg: "render error"},
	})
	if fail.Status != task.StatusFailed || fail.FailReason != "render error" {
		t.Errorf("fail = %+v", fail)
	}

	// Phase estimates must be increasing so poll progress stays monotonic.
	q := normalizeMinimax("mmx-1", minimaxQueryResponse{Status: "Queueing"}).Progress
	p := normalizeMinimax("mmx-1", minimaxQueryResponse{Status: "Preparing"}).Progress
	r := normalizeMinimax("mmx-1", minimaxQueryResponse{Status: "Processing"}).Progress
	if !(q < p && p < r) {
		t.Errorf("phase progress = %g,%g,%g, want increasing", q, p, r)
	}
}
