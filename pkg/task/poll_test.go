package task_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ananyarao/canvasflow/pkg/task"
)

// scriptAdapter replays a fixed sequence of FetchResult outcomes.
type scriptAdapter struct {
	vendor string
	step   atomic.Int32
	script []func() (task.TaskResult, error)
}

func (s *scriptAdapter) Vendor() string { return s.vendor }

func (s *scriptAdapter) Create(context.Context, task.CreateRequest, task.VendorContext) (task.CreateResponse, error) {
	return task.CreateResponse{TaskID: s.vendor + "-task", Status: task.StatusRunning}, nil
}

func (s *scriptAdapter) FetchResult(context.Context, string, task.VendorContext) (task.TaskResult, error) {
	i := int(s.step.Add(1)) - 1
	if i >= len(s.script) {
		i = len(s.script) - 1
	}
	return s.script[i]()
}

func running(progress float64) func() (task.TaskResult, error) {
	return func() (task.TaskResult, error) {
		return task.TaskResult{Status: task.StatusRunning, Progress: progress}, nil
	}
}

func succeeded(url string) func() (task.TaskResult, error) {
	return func() (task.TaskResult, error) {
		return task.TaskResult{
			Status:   task.StatusSucceeded,
			Progress: 100,
			Assets:   []task.Asset{{Type: "video", URL: url}},
		}, nil
	}
}

func fetchErr(err error) func() (task.TaskResult, error) {
	return func() (task.TaskResult, error) { return task.TaskResult{}, err }
}

func fastCfg() task.PollConfig {
	return task.PollConfig{Interval: time.Millisecond, Timeout: time.Second}
}

// ─── Polling loop tests ───────────────────────────────────────────────────────

func TestPoll_SucceedsAfterSeveralPolls(t *testing.T) {
	a := &scriptAdapter{vendor: "kling", script: []func() (task.TaskResult, error){
		running(10), running(55), succeeded("https://cdn/video.mp4"),
	}}
	res, err := task.Poll(t.Context(), a, "klg-1", task.VendorContext{}, fastCfg())
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if len(res.Assets) != 1 || res.Assets[0].URL != "https://cdn/video.mp4" {
		t.Errorf("assets = %+v, want one video", res.Assets)
	}
	if got := a.step.Load(); got != 3 {
		t.Errorf("fetches = %d, want 3", got)
	}
}

func TestPoll_VendorDeclaredFailure(t *testing.T) {
	a := &scriptAdapter{vendor: "kling", script: []func() (task.TaskResult, error){
		running(10),
		func() (task.TaskResult, error) {
			return task.TaskResult{Status: task.StatusFailed, FailReason: "content policy"}, nil
		},
	}}
	_, err := task.Poll(t.Context(), a, "klg-1", task.VendorContext{}, fastCfg())
	var tf *task.TaskFailedError
	if !errors.As(err, &tf) {
		t.Fatalf("err = %v, want TaskFailedError", err)
	}
	if tf.Reason != "content policy" {
		t.Errorf("reason = %q, want content policy", tf.Reason)
	}
}

func TestPoll_TimesOutWithoutTerminalResponse(t *testing.T) {
	a := &scriptAdapter{vendor: "flux", script: []func() (task.TaskResult, error){
		running(40),
	}}
	cfg := task.PollConfig{Interval: time.Millisecond, Timeout: 20 * time.Millisecond}
	_, err := task.Poll(t.Context(), a, "flux-1", task.VendorContext{}, cfg)
	var to *task.TimeoutError
	if !errors.As(err, &to) {
		t.Fatalf("err = %v, want TimeoutError", err)
	}
}

func TestPoll_TransientErrorsAreSwallowed(t *testing.T) {
	a := &scriptAdapter{vendor: "minimax", script: []func() (task.TaskResult, error){
		fetchErr(&task.ServerError{VendorError: task.VendorError{Vendor: "minimax", Code: 503}}),
		fetchErr(&task.ServerError{VendorError: task.VendorError{Vendor: "minimax", Code: 502}}),
		succeeded("https://cdn/v.mp4"),
	}}
	res, err := task.Poll(t.Context(), a, "mmx-1", task.VendorContext{}, fastCfg())
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if res.Status != task.StatusSucceeded {
		t.Errorf("status = %q, want succeeded", res.Status)
	}
}

func TestPoll_NonTransientErrorEndsLoop(t *testing.T) {
	authErr := &task.AuthError{VendorError: task.VendorError{Vendor: "kling", Code: 401}}
	a := &scriptAdapter{vendor: "kling", script: []func() (task.TaskResult, error){
		fetchErr(authErr),
		succeeded("https://never-reached"),
	}}
	_, err := task.Poll(t.Context(), a, "klg-1", task.VendorContext{}, fastCfg())
	var ae *task.AuthError
	if !errors.As(err, &ae) {
		t.Fatalf("err = %v, want AuthError", err)
	}
	if got := a.step.Load(); got != 1 {
		t.Errorf("fetches = %d, want 1", got)
	}
}

func TestPoll_CancellationCheckedEveryIteration(t *testing.T) {
	canceled := atomic.Bool{}
	a := &scriptAdapter{vendor: "kling", script: []func() (task.TaskResult, error){
		running(10),
		func() (task.TaskResult, error) {
			canceled.Store(true) // cancel mid-flight
			return task.TaskResult{Status: task.StatusRunning, Progress: 20}, nil
		},
		succeeded("https://never-reached"),
	}}
	cfg := fastCfg()
	cfg.Canceled = canceled.Load
	_, err := task.Poll(t.Context(), a, "klg-1", task.VendorContext{}, cfg)
	if !errors.Is(err, task.ErrCanceled) {
		t.Fatalf("err = %v, want ErrCanceled", err)
	}
}

func TestPoll_ProgressIsMonotonic(t *testing.T) {
	// The vendor reports a regression (60 → 40); observers must never see it.
	a := &scriptAdapter{vendor: "flux", script: []func() (task.TaskResult, error){
		running(20), running(60), running(40), succeeded("https://cdn/i.png"),
	}}
	var seen []float64
	cfg := fastCfg()
	cfg.OnProgress = func(p float64) { seen = append(seen, p) }
	if _, err := task.Poll(t.Context(), a, "flux-1", task.VendorContext{}, cfg); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	for i := 1; i < len(seen); i++ {
		if seen[i] < seen[i-1] {
			t.Fatalf("progress regressed: %v", seen)
		}
	}
}
