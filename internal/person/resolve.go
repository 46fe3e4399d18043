// Package person handles identity resolution, record merging, and importance
// scoring for discovered makers.
package person

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/makerhunt/internal/model"
	"github.com/sells-group/makerhunt/internal/store"
)

// Resolver matches incoming candidates against stored persons by identity key
// and merges or creates. Resolution is idempotent: re-processing a crashed
// page re-resolves the same candidates to the same persons.
type Resolver struct {
	store  store.Store
	policy MergePolicy
}

// NewResolver creates a resolver with the given conflict policy.
func NewResolver(s store.Store, policy MergePolicy) *Resolver {
	return &Resolver{store: s, policy: policy}
}

// Resolve looks up an existing person for the candidate or creates a new one.
// Identity namespaces are compared in fixed priority order (platform id first,
// then social handles); the first match wins. On match, candidate fields are
// merged into the stored record. Returns the person and whether it was newly
// created.
func (r *Resolver) Resolve(ctx context.Context, c model.Candidate) (*model.Person, bool, error) {
	for _, sys := range model.IdentitySystems() {
		key := c.IdentityKey(sys)
		if key == "" {
			continue
		}
		existing, err := r.store.FindPersonByIdentity(ctx, sys, key)
		if err != nil {
			return nil, false, eris.Wrapf(err, "person: resolve by %s", sys)
		}
		if existing == nil {
			continue
		}
		zap.L().Debug("resolve: matched",
			zap.String("system", string(sys)),
			zap.String("key", key),
			zap.String("person_id", existing.ID),
		)
		if Merge(existing, c, r.policy) {
			if err := r.store.UpdatePerson(ctx, existing); err != nil {
				return nil, false, eris.Wrapf(err, "person: merge update %s", existing.ID)
			}
		}
		return existing, false, nil
	}

	p := &model.Person{
		Name:       c.Name,
		Headline:   c.Headline,
		PlatformID: c.PlatformID,
		Twitter:    c.Twitter,
		GitHub:     c.GitHub,
		LinkedIn:   c.LinkedIn,
		Website:    c.Website,
	}
	err := r.store.CreatePerson(ctx, p)
	if eris.Is(err, store.ErrIdentityConflict) {
		// Another worker created this person between our lookup and
		// insert. Resolve again; the identity key now matches.
		return r.resolveAfterConflict(ctx, c)
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "person: create")
	}

	zap.L().Info("resolve: created person",
		zap.String("name", p.Name),
		zap.String("person_id", p.ID),
	)
	return p, true, nil
}

func (r *Resolver) resolveAfterConflict(ctx context.Context, c model.Candidate) (*model.Person, bool, error) {
	for _, sys := range model.IdentitySystems() {
		key := c.IdentityKey(sys)
		if key == "" {
			continue
		}
		existing, err := r.store.FindPersonByIdentity(ctx, sys, key)
		if err != nil {
			return nil, false, eris.Wrapf(err, "person: re-resolve by %s", sys)
		}
		if existing != nil {
			return existing, false, nil
		}
	}
	return nil, false, eris.New("person: identity conflict but no match on re-resolve")
}
