package crawl

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/makerhunt/internal/model"
	"github.com/sells-group/makerhunt/internal/person"
	"github.com/sells-group/makerhunt/internal/resilience"
	"github.com/sells-group/makerhunt/pkg/producthunt"
)

// Ingestor turns a fetched page of listings into stored persons plus the
// launches and associations to commit alongside the cursor.
type Ingestor struct {
	resolver *person.Resolver
}

// NewIngestor creates an ingestor over the given resolver.
func NewIngestor(r *person.Resolver) *Ingestor {
	return &Ingestor{resolver: r}
}

// IngestStats counts what one page produced.
type IngestStats struct {
	Launches       int
	PersonsCreated int
	PersonsMatched int
	Skipped        int
}

// Ingest resolves every maker on the page's posts and returns the launches
// and person-launch associations for the page commit. Malformed makers are
// skipped and counted, never fatal: one bad item must not poison the page.
func (in *Ingestor) Ingest(ctx context.Context, posts []producthunt.Post) ([]model.Launch, []model.LaunchAssociation, IngestStats, error) {
	var (
		launches []model.Launch
		assocs   []model.LaunchAssociation
		stats    IngestStats
	)

	for _, post := range posts {
		launches = append(launches, toLaunch(post))
		stats.Launches++

		for _, maker := range post.Makers {
			candidate, err := toCandidate(maker, post.ID)
			if err != nil {
				stats.Skipped++
				zap.L().Warn("ingest: skipping maker",
					zap.String("post_id", post.ID),
					zap.String("maker_name", maker.Name),
					zap.Error(err),
				)
				continue
			}

			p, created, err := in.resolver.Resolve(ctx, candidate)
			if err != nil {
				return nil, nil, stats, eris.Wrapf(err, "ingest: resolve maker on post %s", post.ID)
			}
			if created {
				stats.PersonsCreated++
			} else {
				stats.PersonsMatched++
			}

			assocs = append(assocs, model.LaunchAssociation{
				PersonID: p.ID,
				LaunchID: post.ID,
				Role:     candidate.Role,
			})
		}
	}

	return launches, assocs, stats, nil
}

func toLaunch(post producthunt.Post) model.Launch {
	return model.Launch{
		ID:           post.ID,
		Name:         post.Name,
		Tagline:      post.Tagline,
		Slug:         post.Slug,
		URL:          post.URL,
		Website:      post.Website,
		VotesCount:   post.VotesCount,
		ReviewRating: post.ReviewsRating,
		ReviewCount:  post.ReviewsCount,
		Topics:       post.Topics,
		FeaturedAt:   post.FeaturedAt,
		CreatedAt:    post.CreatedAt,
	}
}

func toCandidate(maker producthunt.Maker, postID string) (model.Candidate, error) {
	name := strings.TrimSpace(maker.Name)
	if name == "" {
		name = strings.TrimSpace(maker.Username)
	}
	if name == "" {
		return model.Candidate{}, &resilience.ValidationError{Item: postID, Err: eris.New("maker has no name")}
	}
	if maker.ID == "" && maker.Twitter == "" {
		return model.Candidate{}, &resilience.ValidationError{Item: postID, Err: eris.New("maker has no identity key")}
	}

	return model.Candidate{
		Name:       name,
		Headline:   maker.Headline,
		PlatformID: maker.ID,
		Twitter:    strings.TrimPrefix(strings.TrimSpace(maker.Twitter), "@"),
		Website:    maker.Website,
		LaunchID:   postID,
		Role:       "maker",
	}, nil
}
