package person

import (
	"go.uber.org/zap"

	"github.com/sells-group/makerhunt/internal/model"
)

// MergePolicy controls what happens when a candidate and a stored person both
// carry a non-empty value for the same scalar field.
type MergePolicy string

const (
	// PolicyLastWriteWins takes the incoming value. The record's updated_at
	// stamp records when the overwrite happened.
	PolicyLastWriteWins MergePolicy = "last_write_wins"

	// PolicyKeepExisting preserves the stored value.
	PolicyKeepExisting MergePolicy = "keep_existing"
)

// Merge folds candidate fields into p and reports whether anything changed.
// An empty incoming value never overwrites a stored one; conflicting non-empty
// values follow the policy.
func Merge(p *model.Person, c model.Candidate, policy MergePolicy) bool {
	changed := false
	apply := func(dst *string, incoming, field string) {
		if incoming == "" || incoming == *dst {
			return
		}
		if *dst != "" && policy == PolicyKeepExisting {
			return
		}
		if *dst != "" {
			zap.L().Debug("merge: overwriting field",
				zap.String("person_id", p.ID),
				zap.String("field", field),
			)
		}
		*dst = incoming
		changed = true
	}

	apply(&p.Name, c.Name, "name")
	apply(&p.Headline, c.Headline, "headline")
	apply(&p.PlatformID, c.PlatformID, "platform_id")
	apply(&p.Twitter, c.Twitter, "twitter")
	apply(&p.GitHub, c.GitHub, "github")
	apply(&p.LinkedIn, c.LinkedIn, "linkedin")
	apply(&p.Website, c.Website, "website")
	apply(&p.Email, c.Email, "email")

	return changed
}
