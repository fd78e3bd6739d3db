package vendors

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ananyarao/canvasflow/pkg/task"
)

func init() {
	task.Default.Register(&fluxImage{})
}

// fluxImage is the asynchronous image adapter: creation returns a pending
// job id that is polled until the render settles. Jobs settle within
// ~90s (see the vendor profile table).
type fluxImage struct{}

func (f *fluxImage) Vendor() string { return "flux" }

// fluxCreateResponse is the vendor's creation payload.
type fluxCreateResponse struct {
	ID string `json:"id"`
}

// fluxResultResponse is the vendor's poll payload.
// Status vocabulary: "Pending", "Ready", "Error", "Content Moderated".
type fluxResultResponse struct {
	ID       string  `json:"id"`
	Status   string  `json:"status"`
	Progress float64 `json:"progress"` // 0..1
	Detail   string  `json:"detail,omitempty"`
	Result   struct {
		Sample string `json:"sample"`
	} `json:"result"`
}

func (f *fluxImage) Create(ctx context.Context, req task.CreateRequest, vctx task.VendorContext) (task.CreateResponse, error) {
	body := map[string]any{
		"prompt": req.Prompt,
	}
	switch req.Orientation {
	case "landscape":
		body["width"], body["height"] = 1344, 768
	case "portrait":
		body["width"], body["height"] = 768, 1344
	}
	if len(req.ReferenceImages) > 0 {
		body["image_prompt"] = req.ReferenceImages[0]
	}

	model := req.Model
	if model == "" {
		model = "flux-pro-1.1"
	}

	var out fluxCreateResponse
	if err := postJSON(ctx, "flux", vctx.BaseURL+"/v1/"+model, vctx.APIKey, body, &out); err != nil {
		return task.CreateResponse{}, err
	}
	if out.ID == "" {
		return task.CreateResponse{}, &task.RequestError{VendorError: task.VendorError{
			Vendor: "flux", Message: "creation response carried no job id",
		}}
	}
	return task.CreateResponse{TaskID: "flux-" + out.ID, Status: task.StatusRunning}, nil
}

func (f *fluxImage) FetchResult(ctx context.Context, taskID string, vctx task.VendorContext) (task.TaskResult, error) {
	id := strings.TrimPrefix(taskID, "flux-")
	var out fluxResultResponse
	if err := getJSON(ctx, "flux", vctx.BaseURL+"/v1/get_result?id="+id, vctx.APIKey, &out); err != nil {
		return task.TaskResult{}, err
	}
	return normalizeFlux(taskID, out), nil
}

// normalizeFlux maps the vendor status vocabulary onto the shared set.
func normalizeFlux(taskID string, r fluxResultResponse) task.TaskResult {
	raw, _ := json.Marshal(r)
	res := task.TaskResult{
		ID:       taskID,
		Kind:     "image",
		Progress: r.Progress * 100,
		Raw:      raw,
	}
	switch r.Status {
	case "Ready":
		res.Status = task.StatusSucceeded
		res.Assets = []task.Asset{{Type: "image", URL: r.Result.Sample}}
	case "Error", "Content Moderated":
		res.Status = task.StatusFailed
		res.FailReason = r.Detail
		if res.FailReason == "" {
			res.FailReason = fmt.Sprintf("vendor reported %s", r.Status)
		}
	default:
		res.Status = task.StatusRunning
	}
	return res
}
