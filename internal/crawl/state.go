// Package crawl drives resumable discovery crawls: a state manager that hands
// out date-windowed page descriptors, an ingestor that turns fetched listings
// into persons and launches, and the crawler loop tying them together.
package crawl

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/makerhunt/internal/config"
	"github.com/sells-group/makerhunt/internal/model"
	"github.com/sells-group/makerhunt/internal/store"
)

// backfillWindow is the size of one backward-walking date window. Listings
// are dense enough that a day keeps pages well under the API's cursor depth.
const backfillWindow = 24 * time.Hour

// Window describes one page fetch: a date range plus the opaque cursor
// within it. A nil Window from Next means the crawl is exhausted.
type Window struct {
	PostedAfter  time.Time
	PostedBefore time.Time
	Cursor       string
}

// Manager derives the next page window from persisted crawl state and commits
// progress after each page. Windows are derived only from committed state, so
// a crash re-derives the same window and re-fetches the same page.
type Manager struct {
	store store.Store
	cfg   config.CrawlConfig
	now   func() time.Time
}

// NewManager creates a crawl state manager.
func NewManager(s store.Store, cfg config.CrawlConfig) *Manager {
	return &Manager{store: s, cfg: cfg, now: func() time.Time { return time.Now().UTC() }}
}

// floor is the oldest timestamp backfill will walk to.
func (m *Manager) floor() time.Time {
	return m.now().Add(-time.Duration(m.cfg.FloorDays) * 24 * time.Hour)
}

// Next returns the next page window for the given mode, or nil when the
// crawl is exhausted. The returned state is the committed snapshot the window
// was derived from; pass it back to Commit.
func (m *Manager) Next(ctx context.Context, mode model.CrawlMode) (*Window, *model.CrawlState, error) {
	if !mode.Valid() {
		return nil, nil, eris.Errorf("crawl: invalid mode %q", mode)
	}
	state, err := m.store.InitCrawlState(ctx, m.cfg.Source)
	if err != nil {
		return nil, nil, eris.Wrap(err, "crawl: load state")
	}
	if state.Status == model.CrawlPaused {
		zap.L().Info("crawl: source paused", zap.String("source", state.Source))
		return nil, state, nil
	}

	switch mode {
	case model.ModeBackfill:
		return m.nextBackfill(state)
	default:
		return m.nextIncremental(state)
	}
}

func (m *Manager) nextBackfill(state *model.CrawlState) (*Window, *model.CrawlState, error) {
	if state.Status == model.CrawlCompleted {
		return nil, state, nil
	}

	before := state.OldestSeen
	if before.IsZero() {
		before = m.now()
	}
	if !before.After(m.floor()) {
		return nil, state, nil
	}

	after := before.Add(-backfillWindow)
	if floor := m.floor(); after.Before(floor) {
		after = floor
	}
	return &Window{PostedAfter: after, PostedBefore: before, Cursor: state.Cursor}, state, nil
}

func (m *Manager) nextIncremental(state *model.CrawlState) (*Window, *model.CrawlState, error) {
	after := state.NewestSeen
	if after.IsZero() {
		// Nothing crawled yet: an incremental run covers the same range
		// a fresh backfill would.
		after = m.floor()
	}
	before := state.WindowBefore
	if state.Cursor == "" || before.IsZero() {
		// No window in flight: open a fresh one up to now.
		before = m.now()
	}
	return &Window{PostedAfter: after, PostedBefore: before, Cursor: state.Cursor}, state, nil
}

// Commit durably stores a page's extracted entities and then advances the
// cursor, in that order. A crash in between re-fetches the page; resolution
// and launch upserts are idempotent so the replay is harmless.
//
// Backfill keeps OldestSeen fixed while a window still has pages and snaps it
// to the window floor once the source reports the window drained, so
// OldestSeen never increases. Incremental keeps NewestSeen fixed while its
// window still has pages, pinning the window's upper bound instead, and snaps
// NewestSeen to that bound once the window drains; moving NewestSeen under a
// live cursor would shift the date range the cursor was issued for and skip
// listings.
func (m *Manager) Commit(ctx context.Context, mode model.CrawlMode, window *Window, state *model.CrawlState, page PageResult) (*model.CrawlState, error) {
	next := *state

	if page.HasMore {
		next.Cursor = page.NextCursor
	} else {
		next.Cursor = ""
	}

	if mode == model.ModeBackfill {
		switch {
		case !page.HasMore:
			next.OldestSeen = window.PostedAfter
			if !next.OldestSeen.After(m.floor()) {
				next.Status = model.CrawlCompleted
			}
		case next.OldestSeen.IsZero():
			// First window of a fresh backfill still has pages: pin
			// the window's upper bound so the cursor stays valid for
			// the window it was issued in.
			next.OldestSeen = window.PostedBefore
		}
		// Backfill still ratchets NewestSeen from listing timestamps so
		// a later incremental run starts from real data even if only
		// backfill has run. No incremental cursor is live here.
		if newest := page.NewestListing(); newest.After(next.NewestSeen) {
			next.NewestSeen = newest
		}
	} else {
		if page.HasMore {
			next.WindowBefore = window.PostedBefore
		} else {
			if window.PostedBefore.After(next.NewestSeen) {
				next.NewestSeen = window.PostedBefore
			}
			next.WindowBefore = time.Time{}
		}
	}

	if err := m.store.CommitCrawlPage(ctx, next, page.Launches, page.Assocs); err != nil {
		return nil, eris.Wrap(err, "crawl: commit page")
	}

	zap.L().Debug("crawl: committed page",
		zap.String("source", next.Source),
		zap.String("mode", string(mode)),
		zap.Int("launches", len(page.Launches)),
		zap.Bool("has_more", page.HasMore),
	)
	return &next, nil
}

// PageResult carries one processed page into Commit.
type PageResult struct {
	Launches   []model.Launch
	Assocs     []model.LaunchAssociation
	NextCursor string
	HasMore    bool
}

// NewestListing returns the most recent listing timestamp on the page, or
// zero for an empty page.
func (p PageResult) NewestListing() time.Time {
	var newest time.Time
	for _, l := range p.Launches {
		ts := l.FeaturedAt
		if ts.IsZero() {
			ts = l.CreatedAt
		}
		if ts.After(newest) {
			newest = ts
		}
	}
	return newest
}
