package person

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/makerhunt/internal/model"
	"github.com/sells-group/makerhunt/internal/store"
)

// Signals aggregates the inputs to importance scoring for one person.
type Signals struct {
	LaunchCount   int
	TotalVotes    int
	LastLaunch    time.Time
	FragmentCount int

	HasTwitter  bool
	HasGitHub   bool
	HasLinkedIn bool
}

// Score computes the integer importance score from signals. Pure: the same
// signals always yield the same score. The score orders the task queue; no
// component gates work on it.
//
//	launches * 10 + votes / 10 + 5 per verified handle
//	+ 10 recency bonus for a launch within the last 90 days
//	+ fragment count capped at 20
func Score(s Signals, now time.Time) int {
	score := s.LaunchCount*10 + s.TotalVotes/10

	for _, present := range []bool{s.HasTwitter, s.HasGitHub, s.HasLinkedIn} {
		if present {
			score += 5
		}
	}

	if !s.LastLaunch.IsZero() && now.Sub(s.LastLaunch) <= 90*24*time.Hour {
		score += 10
	}

	if s.FragmentCount > 20 {
		score += 20
	} else {
		score += s.FragmentCount
	}

	return score
}

// Scorer recomputes and persists importance scores.
type Scorer struct {
	store store.Store
}

// NewScorer creates a scorer over the given store.
func NewScorer(s store.Store) *Scorer {
	return &Scorer{store: s}
}

// Rescore recomputes the person's score from stored signals and persists it.
// Returns the new score.
func (sc *Scorer) Rescore(ctx context.Context, p *model.Person) (int, error) {
	stats, err := sc.store.PersonLaunchStats(ctx, p.ID)
	if err != nil {
		return 0, eris.Wrapf(err, "person: launch stats %s", p.ID)
	}
	fragments, err := sc.store.CountFragments(ctx, p.ID)
	if err != nil {
		return 0, eris.Wrapf(err, "person: count fragments %s", p.ID)
	}

	score := Score(Signals{
		LaunchCount:   stats.LaunchCount,
		TotalVotes:    stats.TotalVotes,
		LastLaunch:    stats.LastLaunch,
		FragmentCount: fragments,
		HasTwitter:    p.Twitter != "",
		HasGitHub:     p.GitHub != "",
		HasLinkedIn:   p.LinkedIn != "",
	}, time.Now().UTC())

	if score != p.ImportanceScore {
		if err := sc.store.UpdateImportanceScore(ctx, p.ID, score); err != nil {
			return 0, eris.Wrapf(err, "person: persist score %s", p.ID)
		}
		zap.L().Debug("score: updated",
			zap.String("person_id", p.ID),
			zap.Int("from", p.ImportanceScore),
			zap.Int("to", score),
		)
		p.ImportanceScore = score
	}
	return score, nil
}

// RescoreAll recomputes scores for every stored person. Returns the number of
// persons whose score changed.
func (sc *Scorer) RescoreAll(ctx context.Context) (int, error) {
	persons, err := sc.store.ListPersons(ctx, store.PersonFilter{Limit: 10000})
	if err != nil {
		return 0, eris.Wrap(err, "person: list for rescore")
	}

	changed := 0
	for i := range persons {
		p := &persons[i]
		before := p.ImportanceScore
		if _, err := sc.Rescore(ctx, p); err != nil {
			return changed, err
		}
		if p.ImportanceScore != before {
			changed++
		}
	}
	return changed, nil
}
