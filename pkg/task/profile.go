package task

import (
	"strings"
	"time"
)

// Profile captures the per-vendor polling policy and task-id conventions.
type Profile struct {
	PollInterval time.Duration
	PollTimeout  time.Duration
	// TaskIDPrefix marks task ids that can be resumed after a reload by
	// re-entering the polling path instead of recreating the task.
	TaskIDPrefix string
	// Failover lists vendors whose tokens may be tried, in order, when a
	// video creation call comes back quota-limited.
	Failover []string
}

// Observed vendor behavior: flux jobs settle within ~90s, kling within
// ~5min, minimax can take up to 8min.
var profiles = map[string]Profile{
	"flux":    {PollInterval: 2 * time.Second, PollTimeout: 90 * time.Second, TaskIDPrefix: "flux-"},
	"kling":   {PollInterval: 5 * time.Second, PollTimeout: 300 * time.Second, TaskIDPrefix: "klg-", Failover: []string{"minimax"}},
	"minimax": {PollInterval: 5 * time.Second, PollTimeout: 480 * time.Second, TaskIDPrefix: "mmx-", Failover: []string{"kling"}},
}

var defaultProfile = Profile{
	PollInterval: 3 * time.Second,
	PollTimeout:  120 * time.Second,
}

// ProfileFor returns the vendor's polling profile, or a conservative
// default for vendors without one.
func ProfileFor(vendor string) Profile {
	if p, ok := profiles[vendor]; ok {
		return p
	}
	return defaultProfile
}

// Resumable reports whether taskID matches the vendor's known-resumable
// id pattern.
func Resumable(vendor, taskID string) bool {
	p, ok := profiles[vendor]
	if !ok || p.TaskIDPrefix == "" || taskID == "" {
		return false
	}
	return strings.HasPrefix(taskID, p.TaskIDPrefix)
}
