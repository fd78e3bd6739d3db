package vendors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	"github.com/ananyarao/canvasflow/pkg/task"
)

func init() {
	task.Default.Register(&openaiText{})
	task.Default.Register(&openaiImage{})
}

func newOpenAIClient(vctx task.VendorContext) *openai.Client {
	cfg := openai.DefaultConfig(vctx.APIKey)
	if vctx.BaseURL != "" {
		cfg.BaseURL = vctx.BaseURL
	}
	return openai.NewClientWithConfig(cfg)
}

// ─── text ────────────────────────────────────────────────────────────────────

// openaiText is the synchronous chat-completion adapter for OpenAI.
type openaiText struct{}

func (o *openaiText) Vendor() string { return "openai" }

func (o *openaiText) Create(ctx context.Context, req task.CreateRequest, vctx task.VendorContext) (task.CreateResponse, error) {
	var resp task.CreateResponse
	err := task.WithRetry(ctx, 4, func() error {
		var innerErr error
		resp, innerErr = o.doCreate(ctx, req, vctx)
		return innerErr
	})
	return resp, err
}

func (o *openaiText) doCreate(ctx context.Context, req task.CreateRequest, vctx task.VendorContext) (task.CreateResponse, error) {
	sdk := newOpenAIClient(vctx)
	apiResp, err := sdk.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: req.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
	})
	if err != nil {
		return task.CreateResponse{}, mapOpenAIError(err)
	}
	res := convertOpenAIText(apiResp)
	return task.CreateResponse{Status: task.StatusSucceeded, Result: &res}, nil
}

func (o *openaiText) FetchResult(_ context.Context, taskID string, _ task.VendorContext) (task.TaskResult, error) {
	return task.TaskResult{}, fmt.Errorf("openai: no pollable task %q (synchronous vendor)", taskID)
}

func convertOpenAIText(resp openai.ChatCompletionResponse) task.TaskResult {
	var text string
	if len(resp.Choices) > 0 {
		text = resp.Choices[0].Message.Content
	}
	raw, _ := json.Marshal(resp)
	return task.TaskResult{
		ID:     uuid.NewString(),
		Kind:   "text",
		Status: task.StatusSucceeded,
		Assets: []task.Asset{{Type: "text", Text: text}},
		Raw:    raw,
	}
}

// ─── image ───────────────────────────────────────────────────────────────────

// openaiImage wraps the synchronous image-generation endpoint. The vendor
// name is distinct so image nodes can select it with "openai-image:<model>".
type openaiImage struct{}

func (o *openaiImage) Vendor() string { return "openai-image" }

func (o *openaiImage) Create(ctx context.Context, req task.CreateRequest, vctx task.VendorContext) (task.CreateResponse, error) {
	var resp task.CreateResponse
	err := task.WithRetry(ctx, 4, func() error {
		var innerErr error
		resp, innerErr = o.doCreate(ctx, req, vctx)
		return innerErr
	})
	return resp, err
}

func (o *openaiImage) doCreate(ctx context.Context, req task.CreateRequest, vctx task.VendorContext) (task.CreateResponse, error) {
	sdk := newOpenAIClient(vctx)

	size := openai.CreateImageSize1024x1024
	switch req.Orientation {
	case "landscape":
		size = openai.CreateImageSize1792x1024
	case "portrait":
		size = openai.CreateImageSize1024x1792
	}

	apiResp, err := sdk.CreateImage(ctx, openai.ImageRequest{
		Model:          req.Model,
		Prompt:         req.Prompt,
		N:              1,
		Size:           size,
		ResponseFormat: openai.CreateImageResponseFormatURL,
	})
	if err != nil {
		return task.CreateResponse{}, mapOpenAIError(err)
	}

	assets := make([]task.Asset, 0, len(apiResp.Data))
	for _, d := range apiResp.Data {
		assets = append(assets, task.Asset{Type: "image", URL: d.URL})
	}
	raw, _ := json.Marshal(apiResp)
	res := task.TaskResult{
		ID:     uuid.NewString(),
		Kind:   "image",
		Status: task.StatusSucceeded,
		Assets: assets,
		Raw:    raw,
	}
	return task.CreateResponse{Status: task.StatusSucceeded, Result: &res}, nil
}

func (o *openaiImage) FetchResult(_ context.Context, taskID string, _ task.VendorContext) (task.TaskResult, error) {
	return task.TaskResult{}, fmt.Errorf("openai-image: no pollable task %q (synchronous vendor)", taskID)
}

// ─── error mapping ────────────────────────────────────────────────────────────

func mapOpenAIError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		base := task.VendorError{Vendor: "openai", Code: apiErr.HTTPStatusCode, Message: apiErr.Message, Cause: err}
		switch apiErr.HTTPStatusCode {
		case 429:
			return &task.QuotaError{VendorError: base}
		case 401, 403:
			return &task.AuthError{VendorError: base}
		case 500, 502, 503:
			return &task.ServerError{VendorError: base}
		default:
			return &task.RequestError{VendorError: base}
		}
	}
	return fmt.Errorf("openai: %w", err)
}
