package models

import (
	"time"
)

// JobStatus represents the state of a tracking job
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusPartial    JobStatus = "partial"
)

// IsTerminal reports whether the status is a terminal state.
// Terminal jobs never transition back to queued or processing.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusPartial
}

// SearchMode selects which provider search variant a job uses
type SearchMode string

const (
	SearchModeStandard       SearchMode = "standard"
	SearchModeAIPanel        SearchMode = "ai_panel"
	SearchModeConversational SearchMode = "conversational"
)

// DeviceClass represents the device type the provider emulates
type DeviceClass string

const (
	DeviceDesktop DeviceClass = "desktop"
	DeviceMobile  DeviceClass = "mobile"
)

// TrackingJob represents one user-submitted rank tracking request:
// a single target site checked across N keywords in one search mode.
//
// Lifecycle:
//  1. Created by the tracker service with status=queued (synchronous)
//  2. Background workflow moves it to processing once tickets dispatch
//  3. Terminal status set exactly once: completed, failed or partial
//
// Progress is monotonically non-decreasing and recomputed from ticket
// resolutions, never written directly by handlers.
type TrackingJob struct {
	ID          string      `json:"id" badgerhold:"key"`
	TargetSite  string      `json:"target_site"` // Raw user input, normalized only for matching
	Keywords    []string    `json:"keywords"`
	Location    string      `json:"location,omitempty"`
	Device      DeviceClass `json:"device"`
	Mode        SearchMode  `json:"mode"`
	Status      JobStatus   `json:"status" badgerhold:"index"`
	Progress    int         `json:"progress"` // 0-100
	Error       string      `json:"error,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"` // Set once, on terminal transition
}

// KeywordCount returns the number of keywords tracked by this job.
func (j *TrackingJob) KeywordCount() int {
	return len(j.Keywords)
}
