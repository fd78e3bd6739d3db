package vendors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/uuid"

	"github.com/ananyarao/canvasflow/pkg/task"
)

func init() {
	task.Default.Register(&anthropicText{})
}

// anthropicText is the synchronous chat-completion adapter for Anthropic.
// Creation returns an immediately-terminal result; there is no task to
// poll.
type anthropicText struct{}

func (a *anthropicText) Vendor() string { return "anthropic" }

func (a *anthropicText) Create(ctx context.Context, req task.CreateRequest, vctx task.VendorContext) (task.CreateResponse, error) {
	var resp task.CreateResponse
	err := task.WithRetry(ctx, 4, func() error {
		var innerErr error
		resp, innerErr = a.doCreate(ctx, req, vctx)
		return innerErr
	})
	return resp, err
}

func (a *anthropicText) doCreate(ctx context.Context, req task.CreateRequest, vctx task.VendorContext) (task.CreateResponse, error) {
	opts := []option.RequestOption{option.WithAPIKey(vctx.APIKey)}
	if vctx.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(vctx.BaseURL))
	}
	sdk := anthropicsdk.NewClient(opts...)

	msg, err := sdk.Messages.New(ctx, anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(req.Model),
		MaxTokens: 1024,
		Messages: []anthropicsdk.MessageParam{
			anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(req.Prompt)),
		},
	})
	if err != nil {
		return task.CreateResponse{}, mapAnthropicError(err)
	}

	res := convertAnthropicResponse(msg)
	return task.CreateResponse{Status: task.StatusSucceeded, Result: &res}, nil
}

// FetchResult is never reached for a synchronous vendor.
func (a *anthropicText) FetchResult(_ context.Context, taskID string, _ task.VendorContext) (task.TaskResult, error) {
	return task.TaskResult{}, fmt.Errorf("anthropic: no pollable task %q (synchronous vendor)", taskID)
}

func convertAnthropicResponse(msg *anthropicsdk.Message) task.TaskResult {
	var text string
	for _, b := range msg.Content {
		if b.Type == "text" {
			text += b.Text
		}
	}
	raw, _ := json.Marshal(msg)
	return task.TaskResult{
		ID:     uuid.NewString(),
		Kind:   "text",
		Status: task.StatusSucceeded,
		Assets: []task.Asset{{Type: "text", Text: text}},
		Raw:    raw,
	}
}

func mapAnthropicError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *anthropicsdk.Error
	if errors.As(err, &apiErr) {
		base := task.VendorError{Vendor: "anthropic", Code: apiErr.StatusCode, Message: apiErr.Error(), Cause: err}
		switch apiErr.StatusCode {
		case 429:
			return &task.QuotaError{VendorError: base}
		case 401, 403:
			return &task.AuthError{VendorError: base}
		case 500, 502, 503, 529:
			return &task.ServerError{VendorError: base}
		default:
			return &task.RequestError{VendorError: base}
		}
	}
	return fmt.Errorf("anthropic: %w", err)
}
