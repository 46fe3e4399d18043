package model

import (
	"time"
)

// Channel identifies an enrichment data source. The set is closed: adding a
// channel means adding a constant here and one Searcher implementation in
// internal/enrich.
type Channel string

const (
	ChannelSocial  Channel = "social"  // social search via the SERP proxy
	ChannelCode    Channel = "code"    // code-hosting API
	ChannelPapers  Channel = "papers"  // academic paper index
	ChannelGeneral Channel = "general" // general web search
)

// AllChannels lists every enrichment channel in dispatch order.
var AllChannels = []Channel{ChannelSocial, ChannelCode, ChannelPapers, ChannelGeneral}

// Valid reports whether c is a known channel.
func (c Channel) Valid() bool {
	switch c {
	case ChannelSocial, ChannelCode, ChannelPapers, ChannelGeneral:
		return true
	}
	return false
}

// IdentitySystem names an external identity namespace on a Person. Resolution
// compares keys in the order returned by IdentitySystems.
type IdentitySystem string

const (
	SystemPlatform IdentitySystem = "platform" // discovery platform user id
	SystemTwitter  IdentitySystem = "twitter"
	SystemGitHub   IdentitySystem = "github"
	SystemLinkedIn IdentitySystem = "linkedin"
)

// IdentitySystems returns the identity namespaces in match-priority order:
// platform id first, then social handles.
func IdentitySystems() []IdentitySystem {
	return []IdentitySystem{SystemPlatform, SystemTwitter, SystemGitHub, SystemLinkedIn}
}

// Person is a resolved individual. Identity keys are globally unique when
// present; the resolver enforces that no two persons share one.
type Person struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Headline string `json:"headline,omitempty"`

	// Identity keys.
	PlatformID string `json:"platform_id,omitempty"`
	Twitter    string `json:"twitter,omitempty"`
	GitHub     string `json:"github,omitempty"`
	LinkedIn   string `json:"linkedin,omitempty"`

	// Contact fields.
	Email   string `json:"email,omitempty"`
	Website string `json:"website,omitempty"`

	// Watermarks holds the per-channel incremental search cutoff: content
	// older than the watermark is considered already searched.
	Watermarks map[Channel]time.Time `json:"watermarks,omitempty"`

	ImportanceScore int    `json:"importance_score"`
	Summary         string `json:"summary,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IdentityKey returns the person's key in the given namespace, or "".
func (p *Person) IdentityKey(sys IdentitySystem) string {
	switch sys {
	case SystemPlatform:
		return p.PlatformID
	case SystemTwitter:
		return p.Twitter
	case SystemGitHub:
		return p.GitHub
	case SystemLinkedIn:
		return p.LinkedIn
	}
	return ""
}

// Watermark returns the channel watermark and whether one is set.
func (p *Person) Watermark(c Channel) (time.Time, bool) {
	if p.Watermarks == nil {
		return time.Time{}, false
	}
	t, ok := p.Watermarks[c]
	return t, ok && !t.IsZero()
}

// Candidate is an unresolved person extracted from a discovery listing or a
// channel's own profile API. The ingestor builds one per maker; the resolver
// merges it into an existing Person or creates a new one. Enrichment channels
// also use it to carry contact fields back onto the person.
type Candidate struct {
	Name     string
	Headline string

	PlatformID string
	Twitter    string
	GitHub     string
	LinkedIn   string
	Website    string
	Email      string

	// LaunchID associates the candidate with the listing it was found on.
	LaunchID string
	Role     string // "maker" or "hunter"
}

// IdentityKey returns the candidate's key in the given namespace, or "".
func (c *Candidate) IdentityKey(sys IdentitySystem) string {
	switch sys {
	case SystemPlatform:
		return c.PlatformID
	case SystemTwitter:
		return c.Twitter
	case SystemGitHub:
		return c.GitHub
	case SystemLinkedIn:
		return c.LinkedIn
	}
	return ""
}
