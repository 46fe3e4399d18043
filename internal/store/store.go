// Package store defines the persistence interface for the discovery and
// enrichment pipeline, with Postgres (pgx) and SQLite (modernc) backends.
//
// Every state transition the pipeline depends on (task claim, fenced
// completion, watermark advance, crawl page commit) is a single atomic
// operation against the backing database, so concurrent workers never race
// through application code.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/sells-group/makerhunt/internal/model"
)

// ErrIdentityConflict is returned when a person write would violate an
// identity-key uniqueness constraint. Callers re-resolve and merge instead.
var ErrIdentityConflict = errors.New("identity key already claimed")

// PersonFilter specifies criteria for listing persons.
type PersonFilter struct {
	MinScore int
	Limit    int
}

// LaunchStats aggregates a person's discovery-side signals for scoring.
type LaunchStats struct {
	LaunchCount int
	TotalVotes  int
	LastLaunch  time.Time
}

// Store is the persistence interface for the pipeline.
type Store interface {
	// Persons. Identity-key uniqueness is enforced by the schema; the
	// resolver relies on insert failures as its concurrency backstop.
	CreatePerson(ctx context.Context, p *model.Person) error
	UpdatePerson(ctx context.Context, p *model.Person) error
	GetPerson(ctx context.Context, id string) (*model.Person, error)
	FindPersonByIdentity(ctx context.Context, sys model.IdentitySystem, key string) (*model.Person, error)
	ListPersons(ctx context.Context, filter PersonFilter) ([]model.Person, error)
	UpdateImportanceScore(ctx context.Context, personID string, score int) error

	// AdvanceWatermark moves the (person, channel) watermark forward to ts.
	// The update is monotonic: an older ts is silently ignored, so
	// out-of-order task completions cannot regress progress.
	AdvanceWatermark(ctx context.Context, personID string, channel model.Channel, ts time.Time) error

	// Crawl state. CommitCrawlPage writes the page's launches and
	// associations together with the advanced state in one transaction;
	// the cursor is never durably ahead of the entities it covers.
	GetCrawlState(ctx context.Context, source string) (*model.CrawlState, error)
	InitCrawlState(ctx context.Context, source string) (*model.CrawlState, error)
	CommitCrawlPage(ctx context.Context, state model.CrawlState, launches []model.Launch, assocs []model.LaunchAssociation) error
	SetCrawlStatus(ctx context.Context, source string, status model.CrawlStatus) error

	// Task queue. EnqueueTask returns resilience.ErrDuplicateActiveTask
	// when a pending or processing task already exists for the task's
	// (person, channel). ClaimTask atomically selects the highest-priority
	// claimable task, stamps a fresh lease, and returns nil when the queue
	// is empty. CompleteTask and TransitionTask are fenced by lease token
	// and return resilience.ErrLeaseLost when the token no longer owns the
	// task.
	EnqueueTask(ctx context.Context, t *model.Task) error
	ClaimTask(ctx context.Context, workerID string, leaseDuration time.Duration) (*model.Task, error)
	CompleteTask(ctx context.Context, taskID, leaseToken string) error
	TransitionTask(ctx context.Context, taskID, leaseToken string, to model.TaskStatus, errMsg string, availableAt time.Time, countAttempt bool) error
	ReclaimExpiredTasks(ctx context.Context, now time.Time) (int, error)
	GetTask(ctx context.Context, taskID string) (*model.Task, error)
	QueueStats(ctx context.Context) (*model.QueueStats, error)

	// Knowledge fragments. InsertFragment reports false for a duplicate
	// (person, content_hash); duplicates are absorbed, not errors.
	InsertFragment(ctx context.Context, f *model.Fragment) (bool, error)
	CountFragments(ctx context.Context, personID string) (int, error)

	// Launch aggregates for the importance scorer and stats display.
	PersonLaunchStats(ctx context.Context, personID string) (*LaunchStats, error)
	CountLaunches(ctx context.Context) (int, error)
	CountPersons(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
