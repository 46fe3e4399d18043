package enrich

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/makerhunt/internal/model"
	"github.com/sells-group/makerhunt/pkg/github"
)

// codeSearcher pulls a person's code-hosting profile and repository activity.
type codeSearcher struct {
	client  github.Client
	perPage int
}

// NewCodeSearcher creates the code channel searcher.
func NewCodeSearcher(client github.Client) Searcher {
	return &codeSearcher{client: client, perPage: 30}
}

func (s *codeSearcher) Channel() model.Channel { return model.ChannelCode }
func (s *codeSearcher) Source() string         { return github.Source }

func (s *codeSearcher) Search(ctx context.Context, p *model.Person, since time.Time) (*Result, error) {
	login := p.GitHub
	if login == "" {
		// No stored handle yet: try to find the account by name.
		users, err := s.client.SearchUsers(ctx, p.Name, 1)
		if err != nil {
			return nil, eris.Wrapf(err, "enrich: code user search for %s", p.ID)
		}
		if len(users) == 0 {
			return &Result{}, nil
		}
		login = users[0].Login
		zap.L().Debug("enrich: code channel matched user by name",
			zap.String("person_id", p.ID),
			zap.String("login", login),
		)
	}

	user, err := s.client.User(ctx, login)
	if err != nil {
		if eris.Is(err, github.ErrNotFound) {
			return &Result{}, nil
		}
		return nil, eris.Wrapf(err, "enrich: code profile for %s", p.ID)
	}

	res := &Result{
		// The profile is the account holder's own data, so its handles and
		// contact fields are safe to fold back into the person.
		Contact: &model.Candidate{
			GitHub:  user.Login,
			Twitter: user.Twitter,
			Website: user.Blog,
			Email:   user.Email,
		},
	}
	if user.Bio != "" {
		content := fmt.Sprintf("%s. %d public repos, %d followers.", user.Bio, user.PublicRepos, user.Followers)
		res.Fragments = append(res.Fragments, model.Fragment{
			PersonID:    p.ID,
			Channel:     model.ChannelCode,
			ContentHash: model.HashContent(model.ChannelCode, user.HTMLURL, content),
			Title:       "Profile: " + login,
			Content:     content,
			URL:         user.HTMLURL,
			Query:       login,
		})
	}

	repos, err := s.client.Repos(ctx, login, s.perPage)
	if err != nil {
		return nil, eris.Wrapf(err, "enrich: code repos for %s", p.ID)
	}
	for _, repo := range repos {
		if !since.IsZero() && !repo.UpdatedAt.After(since) {
			continue
		}
		content := repo.Description
		if content == "" {
			content = repo.Name
		}
		if repo.Language != "" {
			content = fmt.Sprintf("%s (%s, %d stars)", content, repo.Language, repo.Stars)
		}
		res.Fragments = append(res.Fragments, model.Fragment{
			PersonID:    p.ID,
			Channel:     model.ChannelCode,
			ContentHash: model.HashContent(model.ChannelCode, repo.HTMLURL, content),
			Title:       repo.Name,
			Content:     content,
			URL:         repo.HTMLURL,
			Query:       login,
			ContentTS:   repo.UpdatedAt.UTC(),
		})
		if repo.UpdatedAt.After(res.Latest) {
			res.Latest = repo.UpdatedAt.UTC()
		}
	}

	// Public events push Latest forward even when no repo changed, so an
	// active account keeps advancing its watermark.
	events, err := s.client.Events(ctx, login, 10)
	if err != nil {
		zap.L().Debug("enrich: code events unavailable",
			zap.String("login", login),
			zap.Error(err),
		)
		return res, nil
	}
	for _, ev := range events {
		if ev.CreatedAt.After(res.Latest) {
			res.Latest = ev.CreatedAt.UTC()
		}
	}
	return res, nil
}
