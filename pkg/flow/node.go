package flow

import "time"

// NodeKind identifies the generation family a node belongs to and which
// adapter path executes it.
type NodeKind string

const (
	KindText      NodeKind = "text"
	KindImage     NodeKind = "image"
	KindVideo     NodeKind = "video"
	KindComposite NodeKind = "composite"
	KindNote      NodeKind = "note"
)

// RemoteKinds lists the kinds that require a vendor adapter. Composite and
// note nodes run locally.
func (k NodeKind) Remote() bool {
	switch k {
	case KindText, KindImage, KindVideo:
		return true
	}
	return false
}

// Status is the execution-observable state of a node.
type Status string

const (
	StatusIdle     Status = "idle"
	StatusQueued   Status = "queued"
	StatusRunning  Status = "running"
	StatusSuccess  Status = "success"
	StatusError    Status = "error"
	StatusCanceled Status = "canceled"
)

// Terminal reports whether a status is a terminal disposition.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusError || s == StatusCanceled
}

// Position is the node's location on the canvas. It drives the scheduling
// tie-break (ascending y, then ascending x) for simultaneously ready nodes.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Asset is one generated media reference.
type Asset struct {
	Type         string `json:"type"` // "image", "video", "text"
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
}

// ResultEntry is one accumulated generation result on a node.
type ResultEntry struct {
	ID     string    `json:"id"`
	At     time.Time `json:"at"`
	Text   string    `json:"text,omitempty"`
	Assets []Asset   `json:"assets,omitempty"`
}

// ResultSet accumulates results of one media family across runs.
// PrimaryIndex points at the entry currently shown on the canvas.
type ResultSet struct {
	Entries      []ResultEntry `json:"entries"`
	PrimaryIndex int           `json:"primaryIndex"`
}

// Append adds an entry and advances PrimaryIndex to it.
func (rs *ResultSet) Append(e ResultEntry) {
	rs.Entries = append(rs.Entries, e)
	rs.PrimaryIndex = len(rs.Entries) - 1
}

// Primary returns the entry PrimaryIndex points at, or nil.
func (rs *ResultSet) Primary() *ResultEntry {
	if rs.PrimaryIndex < 0 || rs.PrimaryIndex >= len(rs.Entries) {
		return nil
	}
	return &rs.Entries[rs.PrimaryIndex]
}

// LastResult is the compact summary attached on a successful run.
type LastResult struct {
	ID      string    `json:"id"`
	At      time.Time `json:"at"`
	Kind    NodeKind  `json:"kind"`
	Preview string    `json:"preview,omitempty"`
}

// NodeData carries generation parameters plus the execution-observable
// fields mutated by the engine while a node runs.
type NodeData struct {
	Prompt      string `json:"prompt,omitempty"`
	Model       string `json:"model,omitempty"` // "vendor:model-name"
	SampleCount int    `json:"sampleCount,omitempty"`
	Orientation string `json:"orientation,omitempty"` // video: "landscape"/"portrait"
	DurationSec int    `json:"durationSec,omitempty"`
	Derived     string `json:"derived,omitempty"` // upstream-derived text

	// Execution-observable fields. Mutated only by the engine for the
	// node it owns, through the Store interface.
	Status          Status      `json:"status,omitempty"`
	Progress        float64     `json:"progress,omitempty"` // 0..100
	LastError       string      `json:"lastError,omitempty"`
	QuotaExceeded   bool        `json:"quotaExceeded,omitempty"`
	LastResult      *LastResult `json:"lastResult,omitempty"`
	TextResults     ResultSet   `json:"textResults,omitempty"`
	ImageResults    ResultSet   `json:"imageResults,omitempty"`
	VideoResults    ResultSet   `json:"videoResults,omitempty"`
	Logs            []string    `json:"logs,omitempty"`
	PendingTaskID   string      `json:"pendingTaskId,omitempty"`   // for reload resume
	PendingVendor   string      `json:"pendingVendor,omitempty"`   // vendor owning PendingTaskID
	PendingProxyVia string      `json:"pendingProxyVia,omitempty"` // proxy vendor, if any
}

// Samples returns SampleCount clamped into [1,5].
func (d *NodeData) Samples() int {
	n := d.SampleCount
	if n < 1 {
		return 1
	}
	if n > 5 {
		return 5
	}
	return n
}

// Node is a single vertex on the canvas.
type Node struct {
	ID       string   `json:"id"`
	Kind     NodeKind `json:"kind"`
	Position Position `json:"position"`
	Data     NodeData `json:"data"`
}

// Edge is directed in semantics: Source feeds Target.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}
