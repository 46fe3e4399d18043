package model

import "time"

// CrawlMode selects the pagination direction over the discovery source.
type CrawlMode string

const (
	// ModeBackfill walks historical listings backward in time from
	// OldestSeen toward a configured floor.
	ModeBackfill CrawlMode = "backfill"

	// ModeIncremental walks forward from NewestSeen to now.
	ModeIncremental CrawlMode = "incremental"
)

// Valid reports whether m is a known crawl mode.
func (m CrawlMode) Valid() bool {
	return m == ModeBackfill || m == ModeIncremental
}

// CrawlStatus is the operator-facing state of a crawl source.
type CrawlStatus string

const (
	CrawlActive    CrawlStatus = "active"
	CrawlPaused    CrawlStatus = "paused"
	CrawlCompleted CrawlStatus = "completed"
)

// CrawlState is the persisted pagination progress for one discovery source.
// It is passed by value between the state manager and the store; there is no
// process-wide cursor.
//
// Invariants: OldestSeen is monotonically non-increasing across backfill
// commits; NewestSeen is monotonically non-decreasing across incremental
// commits. State is written only after the page's extracted entities are
// durably stored.
type CrawlState struct {
	Source     string    `json:"source"`
	OldestSeen time.Time `json:"oldest_seen,omitempty"`
	NewestSeen time.Time `json:"newest_seen,omitempty"`
	Cursor     string    `json:"cursor,omitempty"` // opaque pagination cursor within the current window

	// WindowBefore pins the upper bound of the in-flight incremental
	// window while Cursor is live, so every page of the window is fetched
	// against the same date range. Zero when no window is open.
	WindowBefore time.Time `json:"window_before,omitempty"`

	Status    CrawlStatus `json:"status"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Launch is one discovery listing (a product launch) with the people
// referenced on it.
type Launch struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Tagline      string    `json:"tagline,omitempty"`
	Slug         string    `json:"slug"`
	URL          string    `json:"url,omitempty"`
	Website      string    `json:"website,omitempty"`
	VotesCount   int       `json:"votes_count"`
	ReviewRating float64   `json:"review_rating,omitempty"`
	ReviewCount  int       `json:"review_count,omitempty"`
	Topics       []string  `json:"topics,omitempty"`
	FeaturedAt   time.Time `json:"featured_at,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// LaunchAssociation links a person to a launch with a role.
type LaunchAssociation struct {
	PersonID string `json:"person_id"`
	LaunchID string `json:"launch_id"`
	Role     string `json:"role"`
}
