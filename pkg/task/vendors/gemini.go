package vendors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/ananyarao/canvasflow/pkg/task"
)

func init() {
	task.Default.Register(&geminiText{})
}

// geminiText is the synchronous chat-completion adapter for Gemini.
type geminiText struct{}

func (g *geminiText) Vendor() string { return "gemini" }

func (g *geminiText) Create(ctx context.Context, req task.CreateRequest, vctx task.VendorContext) (task.CreateResponse, error) {
	var resp task.CreateResponse
	err := task.WithRetry(ctx, 4, func() error {
		var innerErr error
		resp, innerErr = g.doCreate(ctx, req, vctx)
		return innerErr
	})
	return resp, err
}

func (g *geminiText) doCreate(ctx context.Context, req task.CreateRequest, vctx task.VendorContext) (task.CreateResponse, error) {
	opts := []option.ClientOption{option.WithAPIKey(vctx.APIKey)}
	if vctx.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(vctx.BaseURL))
	}
	sdk, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return task.CreateResponse{}, fmt.Errorf("gemini: create client: %w", err)
	}
	defer func() { _ = sdk.Close() }()

	model := sdk.GenerativeModel(req.Model)
	apiResp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return task.CreateResponse{}, mapGeminiError(err)
	}

	res := convertGeminiResponse(apiResp)
	return task.CreateResponse{Status: task.StatusSucceeded, Result: &res}, nil
}

func (g *geminiText) FetchResult(_ context.Context, taskID string, _ task.VendorContext) (task.TaskResult, error) {
	return task.TaskResult{}, fmt.Errorf("gemini: no pollable task %q (synchronous vendor)", taskID)
}

func convertGeminiResponse(resp *genai.GenerateContentResponse) task.TaskResult {
	var text string
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				text += string(t)
			}
		}
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

func mapGeminiError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		base := task.VendorError{Vendor: "gemini", Code: apiErr.Code, Message: apiErr.Message, Cause: err}
		switch apiErr.Code {
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
	return fmt.Errorf("gemini: %w", err)
}
