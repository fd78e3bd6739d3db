// Package assets defines the media rehosting boundary. Vendor asset URLs
// expire quickly; successful tasks pass through a Host before the node is
// marked success so the canvas keeps stable URLs.
package assets

import (
	"context"

	"github.com/ananyarao/canvasflow/pkg/task"
)

// Host rehosts raw vendor asset URLs onto the system's own storage and
// returns stable replacements. Invoked once per successful task.
type Host interface {
	Rehost(ctx context.Context, in []task.Asset) ([]task.Asset, error)
}

// Passthrough returns assets unchanged. Used by the CLI and in tests where
// no storage backend is wired.
type Passthrough struct{}

func (Passthrough) Rehost(_ context.Context, in []task.Asset) ([]task.Asset, error) {
	return in, nil
}
