package model

import "time"

// LaunchEvent identifies one entry in the launch history.
type LaunchEvent string

const (
	EventLaunchStarted LaunchEvent = "launch_started"
	EventLaunchAborted LaunchEvent = "launch_aborted"
	EventWindowExited  LaunchEvent = "window_exited"
)

// LaunchRecord is a single line in the launch history (JSONL format).
// Records are chained: PrevHash is the RecordHash of the line before.
type LaunchRecord struct {
	Timestamp  time.Time      `json:"timestamp"`
	Event      LaunchEvent    `json:"event"`
	RunID      string         `json:"run_id,omitempty"`
	Repo       string         `json:"repo,omitempty"`
	ViewerDir  string         `json:"viewer_dir,omitempty"`
	ExitCode   int            `json:"exit_code"`
	Details    map[string]any `json:"details,omitempty"`
	PrevHash   string         `json:"prev_hash"`
	RecordHash string         `json:"record_hash"`
}
