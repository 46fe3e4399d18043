package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Fragment is one piece of retrieved content about a person. Immutable once
// written; (PersonID, ContentHash) is unique so re-fetching identical content
// is a no-op.
type Fragment struct {
	ID          string  `json:"id"`
	PersonID    string  `json:"person_id"`
	Channel     Channel `json:"channel"`
	ContentHash string  `json:"content_hash"`
	Title       string  `json:"title,omitempty"`
	Content     string  `json:"content"`
	URL         string  `json:"url,omitempty"`
	Query       string  `json:"query,omitempty"`

	// ContentTS is the original content timestamp as reported by the
	// source; zero when the source gives none.
	ContentTS time.Time `json:"content_ts,omitempty"`
	FetchedAt time.Time `json:"fetched_at"`
}

// HashContent computes the deduplication fingerprint for a fragment. The
// channel and URL participate so the same snippet found on two pages is kept
// once per location, matching how sources attribute content.
func HashContent(channel Channel, url, content string) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s:%s:%s", channel, url, content))
	return hex.EncodeToString(sum[:])
}
