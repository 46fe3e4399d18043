package model

import "time"

// TaskStatus represents the lifecycle state of an enrichment task.
//
// Transitions:
//
//	pending -> processing            (claim)
//	processing -> completed          (complete, fenced by lease token)
//	processing -> pending            (fail with attempts < ceiling, delayed)
//	processing -> dead_lettered      (fail with attempts >= ceiling)
//	processing -> pending            (lease expiry reclaim)
//
// completed and dead_lettered are terminal.
type TaskStatus string

const (
	TaskPending      TaskStatus = "pending"
	TaskProcessing   TaskStatus = "processing"
	TaskCompleted    TaskStatus = "completed"
	TaskFailed       TaskStatus = "failed"
	TaskDeadLettered TaskStatus = "dead_lettered"
)

// Active reports whether the status counts against the one-active-task-per-
// (person, channel) invariant.
func (s TaskStatus) Active() bool {
	return s == TaskPending || s == TaskProcessing
}

// Terminal reports whether the status is final.
func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskDeadLettered
}

// Task is one unit of enrichment work: one (person, channel) search, possibly
// bounded below by SearchAfter for incremental mode.
type Task struct {
	ID       string     `json:"id"`
	PersonID string     `json:"person_id"`
	Channel  Channel    `json:"channel"`
	Status   TaskStatus `json:"status"`
	Priority int        `json:"priority"`
	Attempts int        `json:"attempts"`

	// SearchAfter is the watermark handed to the channel searcher; zero
	// means a full (non-incremental) search.
	SearchAfter time.Time `json:"search_after,omitempty"`

	// AvailableAt delays re-claiming after a retryable failure.
	AvailableAt time.Time `json:"available_at"`

	// LeaseToken fences result writes: a completion carrying a stale token
	// is rejected. Set on claim, cleared on reclaim.
	LeaseToken     string    `json:"lease_token,omitempty"`
	LeaseExpiresAt time.Time `json:"lease_expires_at,omitempty"`

	LastError string    `json:"last_error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// QueueStats aggregates task counts by status.
type QueueStats struct {
	Pending      int `json:"pending"`
	Processing   int `json:"processing"`
	Completed    int `json:"completed"`
	Failed       int `json:"failed"`
	DeadLettered int `json:"dead_lettered"`
}
