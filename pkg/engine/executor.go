// Package engine walks a canvas graph and drives each node through its
// execution lifecycle against the vendor adapters.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ananyarao/canvasflow/pkg/assets"
	"github.com/ananyarao/canvasflow/pkg/flow"
	"github.com/ananyarao/canvasflow/pkg/task"
	"github.com/ananyarao/canvasflow/pkg/vendorcfg"
)

// Default models used when a node sets none and no stylesheet applies.
const (
	defaultTextModel  = "openai:gpt-4o-mini"
	defaultImageModel = "openai-image:dall-e-3"
	defaultVideoModel = "kling:kling-v1-6"
)

// Executor owns the per-node state machine:
//
//	idle/any → queued → running → {success, error, canceled}
//
// All node mutation goes through the flow.Store contract.
type Executor struct {
	Store    flow.Store
	Resolver *vendorcfg.Resolver
	Adapters *task.Registry
	Assets   assets.Host
	UserID   string

	// PollInterval/PollTimeout override the vendor profile when non-zero.
	// Tests shrink these to keep polling loops fast.
	PollInterval time.Duration
	PollTimeout  time.Duration
}

// ExecuteNode runs one node to a terminal disposition. The caller must
// have set the node to queued and begun its run token; the token is
// released here on every terminal transition, including panics, so a
// failure mid-poll can never leak a running-forever node.
func (e *Executor) ExecuteNode(ctx context.Context, g *flow.Graph, id string) {
	defer e.Store.EndRunToken(id)

	n, ok := e.Store.Node(id)
	if !ok {
		return
	}

	// queued → canceled: the run was canceled before dispatch.
	if e.Store.IsCanceled(id) {
		e.Store.SetNodeStatus(id, flow.StatusCanceled, nil)
		return
	}

	e.Store.SetNodeStatus(id, flow.StatusRunning, func(d *flow.NodeData) {
		d.Progress = 0
		d.LastError = ""
		d.QuotaExceeded = false
	})
	slog.Info("executing node", "node", id, "kind", n.Kind)

	preview, err := e.dispatch(ctx, g, n)
	e.finalize(n, preview, err)
}

// finalize applies the terminal transition for a finished (or failed, or
// canceled) node run and persists it.
func (e *Executor) finalize(n flow.Node, preview string, err error) {
	id := n.ID
	switch {
	case errors.Is(err, task.ErrCanceled):
		// User intent, not an error: no lastError is attached.
		e.Store.SetNodeStatus(id, flow.StatusCanceled, func(d *flow.NodeData) {
			d.PendingTaskID, d.PendingVendor, d.PendingProxyVia = "", "", ""
		})
		slog.Info("node canceled", "node", id)

	case err != nil:
		quota := task.QuotaExceeded(err)
		msg := err.Error()
		e.Store.SetNodeStatus(id, flow.StatusError, func(d *flow.NodeData) {
			d.LastError = msg
			d.QuotaExceeded = quota
			d.PendingTaskID, d.PendingVendor, d.PendingProxyVia = "", "", ""
		})
		e.Store.AppendLog(id, "error: "+msg)
		slog.Warn("node failed", "node", id, "error", err, "quota", quota)

	default:
		e.Store.SetNodeStatus(id, flow.StatusSuccess, func(d *flow.NodeData) {
			d.Progress = 100
			d.PendingTaskID, d.PendingVendor, d.PendingProxyVia = "", "", ""
			d.LastResult = &flow.LastResult{
				ID:      uuid.NewString(),
				At:      time.Now(),
				Kind:    n.Kind,
				Preview: preview,
			}
		})
		slog.Info("node succeeded", "node", id)
	}

	// Persist in-flight/terminal state so task ids survive a reload.
	e.Store.SilentSave()
}

// dispatch routes on the node kind: remote kinds go through a vendor
// adapter, composite/note run locally.
func (e *Executor) dispatch(ctx context.Context, g *flow.Graph, n flow.Node) (string, error) {
	switch n.Kind {
	case flow.KindText:
		return e.runText(ctx, g, n)
	case flow.KindImage:
		return e.runImage(ctx, g, n)
	case flow.KindVideo:
		return e.runVideo(ctx, g, n)
	case flow.KindComposite:
		return e.runComposite(g, n)
	case flow.KindNote:
		return "", nil
	default:
		return "", fmt.Errorf("unknown node kind %q", n.Kind)
	}
}

// modelFor resolves the node's model selector into (vendor, model),
// falling back to the kind default when the node sets none.
func (e *Executor) modelFor(n flow.Node, fallback string) (string, string, error) {
	ref := n.Data.Model
	if ref == "" {
		ref = fallback
	}
	return task.ParseModelRef(ref)
}

// assemble gathers the effective prompt and upstream reference images for
// a node: the node's own prompt, its derived text, then every upstream
// node's primary text output, joined in upstream order.
func (e *Executor) assemble(g *flow.Graph, n flow.Node) (prompt string, refImages []string) {
	parts := make([]string, 0, 4)
	if n.Data.Prompt != "" {
		parts = append(parts, n.Data.Prompt)
	}
	if n.Data.Derived != "" {
		parts = append(parts, n.Data.Derived)
	}
	for _, upID := range g.Upstream[n.ID] {
		up, ok := e.Store.Node(upID)
		if !ok {
			continue
		}
		// toEntry hoists inline text into entry.Text; text never lives in
		// the entry's asset list.
		if entry := up.Data.TextResults.Primary(); entry != nil && entry.Text != "" {
			parts = append(parts, entry.Text)
		}
		if entry := up.Data.ImageResults.Primary(); entry != nil {
			for _, a := range entry.Assets {
				if a.Type == "image" && a.URL != "" {
					refImages = append(refImages, a.URL)
				}
			}
		}
	}
	return strings.Join(parts, "\n\n"), refImages
}

// interval/timeout apply the executor overrides over a vendor profile.
func (e *Executor) interval(p task.Profile) time.Duration {
	if e.PollInterval > 0 {
		return e.PollInterval
	}
	return p.PollInterval
}

func (e *Executor) timeout(p task.Profile) time.Duration {
	if e.PollTimeout > 0 {
		return e.PollTimeout
	}
	return p.PollTimeout
}

// pollBand maps vendor progress into the running band [5,95]: a queued
// task never shows 0 or a premature 100.
func pollBand(p float64) float64 {
	return 5 + p*0.9
}

// rehost runs successful task assets through the asset host.
func (e *Executor) rehost(ctx context.Context, res *task.TaskResult) error {
	if e.Assets == nil || len(res.Assets) == 0 {
		return nil
	}
	hosted, err := e.Assets.Rehost(ctx, res.Assets)
	if err != nil {
		return fmt.Errorf("rehost assets: %w", err)
	}
	res.Assets = hosted
	return nil
}

// preview returns a short human-readable summary of a result.
func preview(res *task.TaskResult) string {
	for _, a := range res.Assets {
		if a.Text != "" {
			return truncate(a.Text, 120)
		}
		if a.URL != "" {
			return a.URL
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}

// toEntry converts a task result into a node result entry.
func toEntry(res *task.TaskResult) flow.ResultEntry {
	entry := flow.ResultEntry{ID: res.ID, At: time.Now()}
	for _, a := range res.Assets {
		if a.Text != "" && entry.Text == "" {
			entry.Text = a.Text
		}
		if a.URL != "" {
			entry.Assets = append(entry.Assets, flow.Asset{
				Type:         a.Type,
				URL:          a.URL,
				ThumbnailURL: a.ThumbnailURL,
			})
		}
	}
	return entry
}
