package integrations

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"studioflow/internal/config"
)

type Commit struct {
	SHA     string    `json:"sha"`
	Message string    `json:"message"`
	Author  string    `json:"author"`
	Date    time.Time `json:"date"`
	URL     string    `json:"url"`
}

type Issue struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	URL    string `json:"url"`
}

// CodeHost reads commits and files issues on a source-code host.
type CodeHost interface {
	RecentCommits(ctx context.Context, repo string, since time.Time) ([]Commit, error)
	CreateIssue(ctx context.Context, repo, title, body string) (Issue, error)
}

// NewCodeHost returns the GitHub client, or its simulation when no token is configured.
func NewCodeHost(cfg config.GitHubConfig, opts Options) CodeHost {
	if strings.TrimSpace(cfg.Token) == "" {
		opts.logger().Printf("warn: github token not set, using simulated code host")
		return SimulatedCodeHost{}
	}
	return &GitHub{
		api: rest{
			BaseURL:    cfg.BaseURL,
			HTTPClient: opts.HTTPClient,
			Timeout:    30 * time.Second,
			Header: http.Header{
				"Authorization":        {"Bearer " + cfg.Token},
				"Accept":               {"application/vnd.github+json"},
				"X-Github-Api-Version": {"2022-11-28"},
			},
		},
		guard: guard{system: "github", opts: opts},
	}
}

func splitRepo(repo string) (string, string, error) {
	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", fmt.Errorf("repository must be owner/name, got %q", repo)
	}
	return owner, name, nil
}

type GitHub struct {
	api   rest
	guard guard
}

type ghCommit struct {
	SHA     string `json:"sha"`
	HTMLURL string `json:"html_url"`
	Commit  struct {
		Message string `json:"message"`
		Author  struct {
			Name  string    `json:"name"`
			Email string    `json:"email"`
			Date  time.Time `json:"date"`
		} `json:"author"`
	} `json:"commit"`
	Author *struct {
		Login string `json:"login"`
	} `json:"author"`
}

func (g *GitHub) RecentCommits(ctx context.Context, repo string, since time.Time) ([]Commit, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("per_page", "100")
	if !since.IsZero() {
		q.Set("since", since.UTC().Format(time.RFC3339))
	}
	endpoint := fmt.Sprintf("repos/%s/%s/commits?%s", owner, name, q.Encode())

	var raw []ghCommit
	err = g.guard.opts.Backoff.Do(ctx, func(ctx context.Context) error {
		raw = nil
		return g.api.do(ctx, http.MethodGet, endpoint, nil, &raw)
	})
	if err != nil {
		if gerr := g.guard.recover("recent commits", err); gerr != nil {
			return nil, gerr
		}
		return SimulatedCodeHost{}.RecentCommits(ctx, repo, since)
	}

	out := make([]Commit, 0, len(raw))
	for _, c := range raw {
		author := c.Commit.Author.Email
		if c.Author != nil && c.Author.Login != "" {
			author = c.Author.Login
		}
		msg, _, _ := strings.Cut(c.Commit.Message, "\n")
		out = append(out, Commit{
			SHA:     c.SHA,
			Message: msg,
			Author:  author,
			Date:    c.Commit.Author.Date,
			URL:     c.HTMLURL,
		})
	}
	return out, nil
}

func (g *GitHub) CreateIssue(ctx context.Context, repo, title, body string) (Issue, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return Issue{}, err
	}
	if strings.TrimSpace(title) == "" {
		return Issue{}, errors.New("issue title is required")
	}
	var raw struct {
		Number  int    `json:"number"`
		Title   string `json:"title"`
		HTMLURL string `json:"html_url"`
	}
	err = g.guard.opts.Backoff.Do(ctx, func(ctx context.Context) error {
		return g.api.do(ctx, http.MethodPost, fmt.Sprintf("repos/%s/%s/issues", owner, name),
			map[string]string{"title": title, "body": body}, &raw)
	})
	if err != nil {
		if gerr := g.guard.recover("create issue", err); gerr != nil {
			return Issue{}, gerr
		}
		return SimulatedCodeHost{}.CreateIssue(ctx, repo, title, body)
	}
	return Issue{Number: raw.Number, Title: raw.Title, URL: raw.HTMLURL}, nil
}

// SimulatedCodeHost answers with fixed sample data.
type SimulatedCodeHost struct{}

func (SimulatedCodeHost) RecentCommits(_ context.Context, repo string, since time.Time) ([]Commit, error) {
	date := since
	if date.IsZero() {
		date = time.Now().UTC()
	}
	return []Commit{{
		SHA:     "abc123",
		Message: "feat: Add new feature",
		Author:  "developer@example.com",
		Date:    date,
		URL:     fmt.Sprintf("https://github.com/%s/commit/abc123", repo),
	}}, nil
}

func (SimulatedCodeHost) CreateIssue(_ context.Context, repo, title, _ string) (Issue, error) {
	return Issue{Number: 1, Title: title, URL: fmt.Sprintf("https://github.com/%s/issues/1", repo)}, nil
}
