package vendors

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/ananyarao/canvasflow/pkg/task"
)

func init() {
	task.Default.Register(&minimaxVideo{})
}

// minimaxVideo drives the video_generation endpoint. Long renders: the
// profile allows up to 8 minutes of polling.
type minimaxVideo struct{}

func (m *minimaxVideo) Vendor() string { return "minimax" }

type minimaxBaseResp struct {
	StatusCode int    `json:"status_code"`
	StatusMsg  string `json:"status_msg"`
}

type minimaxCreateResponse struct {
	TaskID   string          `json:"task_id"`
	BaseResp minimaxBaseResp `json:"base_resp"`
}

// minimaxQueryResponse is the poll payload. Status vocabulary:
// "Queueing", "Preparing", "Processing", "Success", "Fail".
type minimaxQueryResponse struct {
	TaskID   string          `json:"task_id"`
	Status   string          `json:"status"`
	VideoURL string          `json:"video_url"`
	CoverURL string          `json:"cover_url"`
	BaseResp minimaxBaseResp `json:"base_resp"`
}

func (m *minimaxVideo) Create(ctx context.Context, req task.CreateRequest, vctx task.VendorContext) (task.CreateResponse, error) {
	model := req.Model
	if model == "" {
		model = "video-01"
	}
	body := map[string]any{
		"model":  model,
		"prompt": req.Prompt,
	}
	if len(req.ReferenceImages) > 0 {
		body["first_frame_image"] = req.ReferenceImages[0]
	}
	if req.Webhook != "" {
		body["callback_url"] = req.Webhook
	}

	var out minimaxCreateResponse
	if err := postJSON(ctx, "minimax", vctx.BaseURL+"/v1/video_generation", vctx.APIKey, body, &out); err != nil {
		return task.CreateResponse{}, err
	}
	if err := minimaxAppError(out.BaseResp); err != nil {
		return task.CreateResponse{}, err
	}
	if out.TaskID == "" {
		return task.CreateResponse{}, &task.RequestError{VendorError: task.VendorError{
			Vendor: "minimax", Message: "creation response carried no task id",
		}}
	}
	return task.CreateResponse{TaskID: "mmx-" + out.TaskID, Status: task.StatusRunning}, nil
}

func (m *minimaxVideo) FetchResult(ctx context.Context, taskID string, vctx task.VendorContext) (task.TaskResult, error) {
	id := strings.TrimPrefix(taskID, "mmx-")
	var out minimaxQueryResponse
	if err := getJSON(ctx, "minimax", vctx.BaseURL+"/v1/query/video_generation?task_id="+id, vctx.APIKey, &out); err != nil {
		return task.TaskResult{}, err
	}
	if err := minimaxAppError(out.BaseResp); err != nil {
		return task.TaskResult{}, err
	}
	return normalizeMinimax(taskID, out), nil
}

// minimaxAppError maps non-zero base_resp codes onto the typed taxonomy.
func minimaxAppError(br minimaxBaseResp) error {
	switch br.StatusCode {
	case 0:
		return nil
	case 1008, 1026: // insufficient balance, rate limited
		return &task.QuotaError{VendorError: task.VendorError{Vendor: "minimax", Code: br.StatusCode, Message: br.StatusMsg}}
	default:
		return &task.RequestError{VendorError: task.VendorError{Vendor: "minimax", Code: br.StatusCode, Message: br.StatusMsg}}
	}
}

// normalizeMinimax maps the vendor status vocabulary onto the shared set.
func normalizeMinimax(taskID string, r minimaxQueryResponse) task.TaskResult {
	raw, _ := json.Marshal(r)
	res := task.TaskResult{ID: taskID, Kind: "video", Raw: raw}
	switch r.Status {
	case "Success":
		res.Status = task.StatusSucceeded
		res.Progress = 100
		res.Assets = []task.Asset{{Type: "video", URL: r.VideoURL, ThumbnailURL: r.CoverURL}}
	case "Fail":
		res.Status = task.StatusFailed
		res.FailReason = r.BaseResp.StatusMsg
	case "Processing":
		res.Status = task.StatusRunning
		res.Progress = 60
	case "Preparing":
		res.Status = task.StatusRunning
		res.Progress = 30
	default: // "Queueing"
		res.Status = task.StatusRunning
		res.Progress = 10
	}
	return res
}
