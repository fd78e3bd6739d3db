package task

import (
	"context"
	"fmt"
	"sync"
)

// Adapter is the boundary between the engine and one vendor's wire
// protocol. Create must tolerate synchronous vendors (immediately-terminal
// Result) as well as asynchronous ones (pending TaskID). FetchResult is a
// single poll that maps the vendor's status vocabulary onto TaskStatus.
type Adapter interface {
	Vendor() string
	Create(ctx context.Context, req CreateRequest, vctx VendorContext) (CreateResponse, error)
	FetchResult(ctx context.Context, taskID string, vctx VendorContext) (TaskResult, error)
}

// Registry looks up adapters by vendor name.
type Registry struct {
	mu sync.RWMutex
	m  map[string]Adapter
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{m: make(map[string]Adapter)}
}

// Register adds or replaces the adapter for its vendor.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[a.Vendor()] = a
}

// Get returns the adapter for vendor.
func (r *Registry) Get(vendor string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.m[vendor]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for vendor %q", vendor)
	}
	return a, nil
}

// Default is the process-wide registry that vendor packages self-register
// into from init(). Import the vendors package with a blank identifier to
// populate it.
var Default = NewRegistry()
