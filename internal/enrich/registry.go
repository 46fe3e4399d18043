package enrich

import (
	"go.uber.org/zap"

	"github.com/sells-group/makerhunt/internal/config"
	"github.com/sells-group/makerhunt/internal/model"
	"github.com/sells-group/makerhunt/internal/ratelimit"
	"github.com/sells-group/makerhunt/pkg/arxiv"
	"github.com/sells-group/makerhunt/pkg/github"
	"github.com/sells-group/makerhunt/pkg/serp"
)

// Registry holds the enabled channel searchers. A channel whose credential is
// missing from config is disabled at startup, logged, and skipped by the
// planner; its tasks are never enqueued rather than failed at claim time.
type Registry struct {
	searchers map[model.Channel]Searcher
}

// NewRegistry builds the channel searchers from config and installs their
// rate limiters.
func NewRegistry(cfg *config.Config, limits *ratelimit.Registry) *Registry {
	r := &Registry{searchers: make(map[model.Channel]Searcher)}

	if cfg.Serp.Key != "" {
		client := serp.NewClient(cfg.Serp.Key, serp.WithBaseURL(cfg.Serp.BaseURL))
		r.add(NewSocialSearcher(client))
		r.add(NewGeneralSearcher(client))
		limits.Register(serp.Source, cfg.Serp.RPS, cfg.Serp.Burst)
	} else {
		zap.L().Warn("enrich: serp key missing, social and general channels disabled")
	}

	if cfg.GitHub.Token != "" {
		client := github.NewClient(cfg.GitHub.Token, github.WithBaseURL(cfg.GitHub.BaseURL))
		r.add(NewCodeSearcher(client))
		limits.Register(github.Source, cfg.GitHub.RPS, cfg.GitHub.Burst)
	} else {
		zap.L().Warn("enrich: github token missing, code channel disabled")
	}

	// The paper index is public; no credential to check.
	r.add(NewPapersSearcher(arxiv.NewClient(arxiv.WithBaseURL(cfg.Arxiv.BaseURL))))
	limits.Register(arxiv.Source, cfg.Arxiv.RPS, cfg.Arxiv.Burst)

	return r
}

// NewRegistryFromSearchers builds a registry directly. Used by tests.
func NewRegistryFromSearchers(searchers ...Searcher) *Registry {
	r := &Registry{searchers: make(map[model.Channel]Searcher)}
	for _, s := range searchers {
		r.add(s)
	}
	return r
}

func (r *Registry) add(s Searcher) {
	r.searchers[s.Channel()] = s
}

// Get returns the searcher for a channel, or nil when disabled.
func (r *Registry) Get(c model.Channel) Searcher {
	return r.searchers[c]
}

// Enabled reports whether the channel has an active searcher.
func (r *Registry) Enabled(c model.Channel) bool {
	return r.searchers[c] != nil
}

// Disable removes a channel's searcher, used when a source starts rejecting
// the configured credential mid-run.
func (r *Registry) Disable(c model.Channel) {
	delete(r.searchers, c)
}
