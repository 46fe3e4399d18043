// Package enrich runs the per-person knowledge gathering pipeline: a searcher
// per channel, an orchestrator that plans and enqueues work, and workers that
// process queued tasks into stored knowledge fragments.
package enrich

import (
	"context"
	"time"

	"github.com/sells-group/makerhunt/internal/model"
)

// Result is what one channel search produced.
type Result struct {
	// Fragments carry the person id and channel already set. Duplicates
	// are fine; the store absorbs them.
	Fragments []model.Fragment

	// Latest is the newest content timestamp observed across all results,
	// including duplicates. Zero when the channel returned nothing dated.
	Latest time.Time

	// Contact carries identity and contact fields the channel learned from
	// its own profile API. Only fields the person is missing are taken up;
	// discovery data stays authoritative. Nil when the channel has no
	// profile surface.
	Contact *model.Candidate
}

// Searcher gathers knowledge about one person from one channel. Adding a
// channel means one new implementation here plus its model.Channel constant;
// the orchestrator and workers dispatch through this interface and never
// branch on the channel themselves.
type Searcher interface {
	// Channel returns the channel this searcher serves.
	Channel() model.Channel

	// Source returns the external source name for rate limiting and error
	// classification.
	Source() string

	// Search runs one search. A non-zero since restricts results to
	// content newer than it (incremental mode); zero means full search.
	Search(ctx context.Context, p *model.Person, since time.Time) (*Result, error)
}
