package model

import "time"

// TrackedJob follows a video submitted in this session until it finishes.
type TrackedJob struct {
	Video       Video       `json:"video"`
	Source      TrackSource `json:"source"`
	StartedAt   time.Time   `json:"startedAt"`
	LastUpdate  time.Time   `json:"lastUpdate"`
	CompletedAt *time.Time  `json:"completedAt,omitempty"`
}
