package vendors

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/ananyarao/canvasflow/pkg/task"
)

func init() {
	task.Default.Register(&klingVideo{})
}

// klingVideo drives the text-to-video endpoint. Creation always returns a
// pending task; renders run for minutes and are polled on the vendor
// profile's interval.
type klingVideo struct{}

func (k *klingVideo) Vendor() string { return "kling" }

// klingEnvelope wraps every response. Code 0 is success; other codes are
// vendor application errors even on HTTP 200.
type klingEnvelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type klingCreateData struct {
	TaskID string `json:"task_id"`
}

// klingTaskData is the poll payload. Status vocabulary: "submitted",
// "processing", "succeed", "failed".
type klingTaskData struct {
	TaskID        string `json:"task_id"`
	TaskStatus    string `json:"task_status"`
	TaskStatusMsg string `json:"task_status_msg"`
	TaskResult    struct {
		Videos []struct {
			URL           string `json:"url"`
			CoverImageURL string `json:"cover_image_url"`
		} `json:"videos"`
	} `json:"task_result"`
}

func (k *klingVideo) Create(ctx context.Context, req task.CreateRequest, vctx task.VendorContext) (task.CreateResponse, error) {
	model := req.Model
	if model == "" {
		model = "kling-v1-6"
	}
	aspect := "16:9"
	if req.Orientation == "portrait" {
		aspect = "9:16"
	}
	duration := req.DurationSec
	if duration == 0 {
		duration = 5
	}
	body := map[string]any{
		"model_name":   model,
		"prompt":       req.Prompt,
		"aspect_ratio": aspect,
		"duration":     duration,
	}
	if len(req.ReferenceImages) > 0 {
		body["image"] = req.ReferenceImages[0]
	}
	if req.Webhook != "" {
		body["callback_url"] = req.Webhook
	}

	var env klingEnvelope
	if err := postJSON(ctx, "kling", vctx.BaseURL+"/v1/videos/text2video", vctx.APIKey, body, &env); err != nil {
		return task.CreateResponse{}, err
	}
	if err := klingAppError(env); err != nil {
		return task.CreateResponse{}, err
	}
	var data klingCreateData
	if err := json.Unmarshal(env.Data, &data); err != nil || data.TaskID == "" {
		return task.CreateResponse{}, &task.RequestError{VendorError: task.VendorError{
			Vendor: "kling", Message: "creation response carried no task id", Cause: err,
		}}
	}
	return task.CreateResponse{TaskID: "klg-" + data.TaskID, Status: task.StatusRunning}, nil
}

func (k *klingVideo) FetchResult(ctx context.Context, taskID string, vctx task.VendorContext) (task.TaskResult, error) {
	id := strings.TrimPrefix(taskID, "klg-")
	var env klingEnvelope
	if err := getJSON(ctx, "kling", vctx.BaseURL+"/v1/videos/text2video/"+id, vctx.APIKey, &env); err != nil {
		return task.TaskResult{}, err
	}
	if err := klingAppError(env); err != nil {
		return task.TaskResult{}, err
	}
	var data klingTaskData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return task.TaskResult{}, &task.RequestError{VendorError: task.VendorError{
			Vendor: "kling", Message: "malformed task payload", Cause: err,
		}}
	}
	return normalizeKling(taskID, env, data), nil
}

// klingAppError maps non-zero envelope codes onto the typed taxonomy.
func klingAppError(env klingEnvelope) error {
	switch env.Code {
	case 0:
		return nil
	case 1102, 1103, 1303: // account/resource pack exhausted, parallel limit
		return &task.QuotaError{VendorError: task.VendorError{Vendor: "kling", Code: env.Code, Message: env.Message}}
	default:
		return &task.RequestError{VendorError: task.VendorError{Vendor: "kling", Code: env.Code, Message: env.Message}}
	}
}

// normalizeKling maps the vendor status vocabulary onto the shared set.
// Kling exposes no percentage, so progress is estimated from the phase.
func normalizeKling(taskID string, env klingEnvelope, data klingTaskData) task.TaskResult {
	raw, _ := json.Marshal(env)
	res := task.TaskResult{ID: taskID, Kind: "video", Raw: raw}
	switch data.TaskStatus {
	case "succeed":
		res.Status = task.StatusSucceeded
		res.Progress = 100
		for _, v := range data.TaskResult.Videos {
			res.Assets = append(res.Assets, task.Asset{
				Type:         "video",
				URL:          v.URL,
				ThumbnailURL: v.CoverImageURL,
			})
		}
	case "failed":
		res.Status = task.StatusFailed
		res.FailReason = data.TaskStatusMsg
	case "processing":
		res.Status = task.StatusRunning
		res.Progress = 55
	default: // "submitted" and anything unrecognized
		res.Status = task.StatusRunning
		res.Progress = 10
	}
	return res
}
