package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/ananyarao/canvasflow/pkg/flow"
	"github.com/ananyarao/canvasflow/pkg/task"
)

// runText fans the prompt out into N parallel samples. A sample failing is
// not fatal: the run fails only when every sample does.
func (e *Executor) runText(ctx context.Context, g *flow.Graph, n flow.Node) (string, error) {
	vendor, model, err := e.modelFor(n, defaultTextModel)
	if err != nil {
		return "", err
	}
	prompt, _ := e.assemble(g, n)
	req := task.CreateRequest{Model: model, Prompt: prompt}

	results, err := e.fanOut(ctx, n, vendor, req, n.Data.Samples())
	if err != nil {
		return "", err
	}
	e.Store.SetNodeStatus(n.ID, flow.StatusRunning, func(d *flow.NodeData) {
		for _, res := range results {
			d.TextResults.Append(toEntry(res))
		}
	})
	return preview(results[0]), nil
}

// runImage is the same fan-out shape as text, with upstream image outputs
// forwarded as reference images.
func (e *Executor) runImage(ctx context.Context, g *flow.Graph, n flow.Node) (string, error) {
	vendor, model, err := e.modelFor(n, defaultImageModel)
	if err != nil {
		return "", err
	}
	prompt, refs := e.assemble(g, n)
	req := task.CreateRequest{
		Model:           model,
		Prompt:          prompt,
		Orientation:     n.Data.Orientation,
		ReferenceImages: refs,
	}

	results, err := e.fanOut(ctx, n, vendor, req, n.Data.Samples())
	if err != nil {
		return "", err
	}
	e.Store.SetNodeStatus(n.ID, flow.StatusRunning, func(d *flow.NodeData) {
		for _, res := range results {
			d.ImageResults.Append(toEntry(res))
		}
	})
	return preview(results[0]), nil
}

// fanOut issues samples concurrent generation calls and collects whatever
// succeeded. Node progress tracks completed samples.
func (e *Executor) fanOut(ctx context.Context, n flow.Node, vendor string, req task.CreateRequest, samples int) ([]*task.TaskResult, error) {
	adapter, err := e.Adapters.Get(vendor)
	if err != nil {
		return nil, err
	}
	vctx, err := e.Resolver.Resolve(ctx, e.UserID, vendor)
	if err != nil {
		return nil, err
	}

	results := make([]*task.TaskResult, samples)
	errs := make([]error, samples)
	var done int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < samples; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if e.Store.IsCanceled(n.ID) {
				errs[i] = task.ErrCanceled
				return
			}
			res, err := e.createAndAwait(ctx, n, adapter, req, vctx, false)
			if err != nil {
				errs[i] = err
				return
			}
			results[i] = res

			mu.Lock()
			done++
			p := float64(done) / float64(samples) * 100
			mu.Unlock()
			if p < 100 { // 100 is reserved for the terminal transition
				e.setProgress(n.ID, p)
			}
		}(i)
	}
	wg.Wait()

	ok := results[:0:0]
	for _, r := range results {
		if r != nil {
			ok = append(ok, r)
		}
	}
	if len(ok) > 0 {
		// Partial failure: keep the successes, log the rest.
		for i, err := range errs {
			if err != nil && !errors.Is(err, task.ErrCanceled) {
				e.Store.AppendLog(n.ID, fmt.Sprintf("sample %d failed: %v", i+1, err))
				slog.Warn("sample failed", "node", n.ID, "sample", i+1, "error", err)
			}
		}
		return ok, nil
	}
	return nil, firstError(errs)
}

// firstError prefers a real error over a cancellation so a mixed outcome
// surfaces the actionable failure.
func firstError(errs []error) error {
	var canceled error
	for _, err := range errs {
		if err == nil {
			continue
		}
		if errors.Is(err, task.ErrCanceled) {
			canceled = err
			continue
		}
		return err
	}
	if canceled != nil {
		return canceled
	}
	return errors.New("no samples produced a result")
}

// runVideo issues exactly one creation call and polls it to completion.
// A quota-limited creation fails over, in profile order, to sibling video
// vendors before giving up.
func (e *Executor) runVideo(ctx context.Context, g *flow.Graph, n flow.Node) (string, error) {
	vendor, model, err := e.modelFor(n, defaultVideoModel)
	if err != nil {
		return "", err
	}
	prompt, refs := e.assemble(g, n)
	req := task.CreateRequest{
		Model:           model,
		Prompt:          prompt,
		Orientation:     n.Data.Orientation,
		DurationSec:     n.Data.DurationSec,
		ReferenceImages: refs,
	}

	adapter, vctx, resp, err := e.createVideoWithFailover(ctx, n, vendor, req)
	if err != nil {
		return "", err
	}
	res, err := e.awaitCreated(ctx, n, adapter, resp, vctx, true)
	if err != nil {
		return "", err
	}
	e.Store.SetNodeStatus(n.ID, flow.StatusRunning, func(d *flow.NodeData) {
		d.VideoResults.Append(toEntry(res))
	})
	return preview(res), nil
}

// createVideoWithFailover tries the node's chosen vendor first; only a
// quota error moves it down the profile's failover list. Config errors on
// the primary vendor are fatal immediately, never retried.
func (e *Executor) createVideoWithFailover(ctx context.Context, n flow.Node, vendor string, req task.CreateRequest) (task.Adapter, task.VendorContext, task.CreateResponse, error) {
	candidates := append([]string{vendor}, task.ProfileFor(vendor).Failover...)
	var lastErr error

	for i, v := range candidates {
		adapter, err := e.Adapters.Get(v)
		if err != nil {
			if i == 0 {
				return nil, task.VendorContext{}, task.CreateResponse{}, err
			}
			lastErr = err
			continue
		}
		vctx, err := e.Resolver.Resolve(ctx, e.UserID, v)
		if err != nil {
			if i == 0 {
				return nil, task.VendorContext{}, task.CreateResponse{}, err
			}
			lastErr = err
			continue
		}
		// Failover candidates use the vendor's own default model name.
		creq := req
		if i > 0 {
			creq.Model = ""
		}
		resp, err := adapter.Create(ctx, creq, vctx)
		if err == nil {
			if i > 0 {
				e.Store.AppendLog(n.ID, fmt.Sprintf("quota exhausted on %s, failed over to %s", strings.Join(candidates[:i], ", "), v))
				slog.Info("video failover", "node", n.ID, "from", candidates[0], "to", v)
			}
			return adapter, vctx, resp, nil
		}
		lastErr = err
		if !task.QuotaExceeded(err) {
			return nil, task.VendorContext{}, task.CreateResponse{}, err
		}
		slog.Warn("video creation quota-limited", "node", n.ID, "vendor", v, "error", err)
	}
	return nil, task.VendorContext{}, task.CreateResponse{}, lastErr
}

// createAndAwait is the uniform remote call: create, then poll if the
// vendor answered with a pending task instead of a terminal result.
func (e *Executor) createAndAwait(ctx context.Context, n flow.Node, adapter task.Adapter, req task.CreateRequest, vctx task.VendorContext, trackTask bool) (*task.TaskResult, error) {
	resp, err := adapter.Create(ctx, req, vctx)
	if err != nil {
		return nil, err
	}
	return e.awaitCreated(ctx, n, adapter, resp, vctx, trackTask)
}

// awaitCreated settles a creation response: an immediately-terminal
// success is returned as-is, an immediately-terminal failure surfaces as a
// TaskFailedError, and a pending TaskID enters the polling loop. When
// trackTask is set, the pending id is written through to the node so a
// reload can resume the poll instead of recreating the task.
func (e *Executor) awaitCreated(ctx context.Context, n flow.Node, adapter task.Adapter, resp task.CreateResponse, vctx task.VendorContext, trackTask bool) (*task.TaskResult, error) {
	if resp.Result != nil && resp.Result.Status == task.StatusSucceeded {
		if err := e.rehost(ctx, resp.Result); err != nil {
			return nil, err
		}
		return resp.Result, nil
	}
	if resp.Status == task.StatusFailed || (resp.Result != nil && resp.Result.Status == task.StatusFailed) {
		fe := &task.TaskFailedError{Vendor: adapter.Vendor(), TaskID: resp.TaskID}
		if resp.Result != nil {
			fe.Reason = resp.Result.FailReason
		}
		return nil, fe
	}
	if resp.TaskID == "" {
		return nil, fmt.Errorf("vendor %s returned neither a result nor a task id", adapter.Vendor())
	}

	if trackTask {
		e.Store.SetNodeStatus(n.ID, flow.StatusRunning, func(d *flow.NodeData) {
			d.PendingTaskID = resp.TaskID
			d.PendingVendor = adapter.Vendor()
			d.PendingProxyVia = vctx.ViaProxyVendor
		})
		e.Store.SilentSave()
	}

	res, err := e.pollTask(ctx, n.ID, adapter, resp.TaskID, vctx, trackTask)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// pollTask wraps task.Poll with the node's cancellation token and the
// running progress band.
func (e *Executor) pollTask(ctx context.Context, nodeID string, adapter task.Adapter, taskID string, vctx task.VendorContext, trackProgress bool) (*task.TaskResult, error) {
	prof := task.ProfileFor(adapter.Vendor())
	cfg := task.PollConfig{
		Interval: e.interval(prof),
		Timeout:  e.timeout(prof),
		Canceled: func() bool { return e.Store.IsCanceled(nodeID) },
	}
	if trackProgress {
		cfg.OnProgress = func(p float64) { e.setProgress(nodeID, pollBand(p)) }
	}

	res, err := task.Poll(ctx, adapter, taskID, vctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := e.rehost(ctx, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (e *Executor) setProgress(id string, p float64) {
	e.Store.SetNodeStatus(id, flow.StatusRunning, func(d *flow.NodeData) {
		if p > d.Progress {
			d.Progress = p
		}
	})
}

// runComposite concatenates upstream primary text outputs locally; no
// vendor call is made.
func (e *Executor) runComposite(g *flow.Graph, n flow.Node) (string, error) {
	var parts []string
	for _, upID := range g.Upstream[n.ID] {
		up, ok := e.Store.Node(upID)
		if !ok {
			continue
		}
		if entry := up.Data.TextResults.Primary(); entry != nil && entry.Text != "" {
			parts = append(parts, entry.Text)
		}
	}
	joined := strings.Join(parts, "\n\n")
	e.Store.SetNodeStatus(n.ID, flow.StatusRunning, func(d *flow.NodeData) {
		d.Derived = joined
	})
	return truncate(joined, 120), nil
}
