package engine

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ananyarao/canvasflow/pkg/flow"
	"github.com/ananyarao/canvasflow/pkg/task"
)

// ResumeRuns scans for nodes that were mid-flight when the process went
// away (non-terminal status with a pending task id in a vendor's resumable
// id pattern) and re-enters their polling loops instead of recreating the
// remote tasks. It returns the ids of the nodes it picked up.
func (e *Executor) ResumeRuns(ctx context.Context, nodes []flow.Node) []string {
	var resumed []string
	var wg sync.WaitGroup
	for _, n := range nodes {
		if n.Data.Status.Terminal() || n.Data.PendingTaskID == "" {
			continue
		}
		if !task.Resumable(n.Data.PendingVendor, n.Data.PendingTaskID) {
			// Unknown id shape: the task cannot be safely re-attached, so
			// the run is abandoned rather than polled blind.
			e.Store.SetNodeStatus(n.ID, flow.StatusError, func(d *flow.NodeData) {
				d.LastError = "interrupted run could not be resumed"
				d.PendingTaskID, d.PendingVendor, d.PendingProxyVia = "", "", ""
			})
			continue
		}
		resumed = append(resumed, n.ID)
		wg.Add(1)
		go func(n flow.Node) {
			defer wg.Done()
			e.resumeNode(ctx, n)
		}(n)
	}
	wg.Wait()
	if len(resumed) > 0 {
		e.Store.SilentSave()
	}
	return resumed
}

// resumeNode re-attaches to one pending remote task and drives it to a
// terminal disposition exactly like a fresh run would.
func (e *Executor) resumeNode(ctx context.Context, n flow.Node) {
	e.Store.BeginRunToken(n.ID)
	defer e.Store.EndRunToken(n.ID)

	slog.Info("resuming node", "node", n.ID, "vendor", n.Data.PendingVendor, "task", n.Data.PendingTaskID)
	e.Store.SetNodeStatus(n.ID, flow.StatusRunning, nil)

	res, err := e.reattach(ctx, n)
	var prev string
	if err == nil {
		kind := n.Kind
		e.Store.SetNodeStatus(n.ID, flow.StatusRunning, func(d *flow.NodeData) {
			switch kind {
			case flow.KindText:
				d.TextResults.Append(toEntry(res))
			case flow.KindImage:
				d.ImageResults.Append(toEntry(res))
			default:
				d.VideoResults.Append(toEntry(res))
			}
		})
		prev = preview(res)
	}
	e.finalize(n, prev, err)
}

func (e *Executor) reattach(ctx context.Context, n flow.Node) (*task.TaskResult, error) {
	adapter, err := e.Adapters.Get(n.Data.PendingVendor)
	if err != nil {
		return nil, err
	}
	vctx, err := e.Resolver.Resolve(ctx, e.UserID, n.Data.PendingVendor)
	if err != nil {
		return nil, err
	}
	return e.pollTask(ctx, n.ID, adapter, n.Data.PendingTaskID, vctx, true)
}
