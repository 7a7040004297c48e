// internal/github/client.go
package github

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/samber/lo"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	custom_errors "portfolio-sync/internal/errors"
	"portfolio-sync/internal/model"
)

const (
	// Maximum number of topic requests in flight at once.
	topicConcurrency = 6
	perPage          = 100
	defaultTimeout   = 10 * time.Second
	maxErrorBody     = 64 << 10
)

// Client is a wrapper around the go-github client.
type Client struct {
	token   string
	baseURL *url.URL
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different API root, e.g. GitHub Enterprise or a test server.
func WithBaseURL(u *url.URL) Option {
	return func(c *Client) {
		if !strings.HasSuffix(u.Path, "/") {
			u.Path += "/"
		}
		c.baseURL = u
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewClient creates and configures a new Client instance.
// The provided token, if any, is sent as a bearer credential unless a call supplies its own.
func NewClient(token string, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		token:   token,
		timeout: defaultTimeout,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) restClient(ctx context.Context, token string) *github.Client {
	httpClient := &http.Client{Timeout: c.timeout}
	if token != "" {
		ts := oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: token},
		)
		httpClient = oauth2.NewClient(ctx, ts)
		httpClient.Timeout = c.timeout
	}

	gh := github.NewClient(httpClient)
	if c.baseURL != nil {
		gh.BaseURL = c.baseURL
	}
	return gh
}

// ListPublicRepositories fetches up to 100 public repositories of username, most recently updated first.
// With IncludeTopics set, each repository is enriched with its topics; a failed topic lookup leaves
// that repository without topics instead of failing the listing.
func (c *Client) ListPublicRepositories(ctx context.Context, username string, opts model.FetchOptions) ([]model.RemoteRepository, error) {
	token := opts.AccessToken
	if token == "" {
		token = c.token
	}
	gh := c.restClient(ctx, token)
	logger := c.logger.With("username", username)

	listOpts := &github.RepositoryListByUserOptions{
		Type: "public",
		Sort: "updated",
		ListOptions: github.ListOptions{
			PerPage: perPage,
		},
	}

	logger.Debug("Listing public repositories", "authenticated", token != "")
	repos, resp, err := gh.Repositories.ListByUser(ctx, username, listOpts)
	if err != nil {
		return nil, toFetchError(username, resp, err)
	}

	result := make([]model.RemoteRepository, 0, len(repos))
	for _, r := range repos {
		result = append(result, toRemoteRepository(r))
	}

	result = lo.Filter(result, func(r model.RemoteRepository, _ int) bool {
		return !strings.EqualFold(r.Visibility, "private")
	})

	if opts.IncludeTopics {
		failed := c.enrichTopics(ctx, gh, result)
		if failed > 0 {
			logger.Warn("Some topic lookups failed", "failed", failed, "total", len(result))
		}
	}

	logger.Info("Fetched public repositories", "count", len(result))
	return result, nil
}

// enrichTopics fills in Topics for each repository and returns the number of failed lookups.
func (c *Client) enrichTopics(ctx context.Context, gh *github.Client, repos []model.RemoteRepository) int {
	var failed atomic.Int32
	g := new(errgroup.Group)
	g.SetLimit(topicConcurrency)

	for i := range repos {
		g.Go(func() error {
			topics, _, err := gh.Repositories.ListAllTopics(ctx, repos[i].Owner, repos[i].Name)
			if err != nil {
				failed.Add(1)
				c.logger.Debug("Failed to fetch topics", "owner", repos[i].Owner, "repo", repos[i].Name, "error", err)
				return nil
			}
			repos[i].Topics = topics
			return nil
		})
	}

	_ = g.Wait() // goroutines never return an error
	return int(failed.Load())
}

// toFetchError converts a failed listing call into a FetchError carrying the status and the raw
// response body. go-github's message is used only when no body could be read.
func toFetchError(username string, resp *github.Response, err error) error {
	fe := &custom_errors.FetchError{Username: username}
	if resp != nil && resp.Response != nil {
		fe.StatusCode = resp.StatusCode
		if resp.Body != nil {
			// CheckResponse puts the consumed body back on the response.
			if body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody)); readErr == nil {
				fe.Body = strings.TrimSpace(string(body))
			}
		}
	}
	if fe.Body != "" {
		return fe
	}

	var errResp *github.ErrorResponse
	var rateErr *github.RateLimitError
	var abuseErr *github.AbuseRateLimitError
	switch {
	case errors.As(err, &errResp) && errResp.Message != "":
		fe.Body = errResp.Message
	case errors.As(err, &rateErr) && rateErr.Message != "":
		fe.Body = rateErr.Message
	case errors.As(err, &abuseErr) && abuseErr.Message != "":
		fe.Body = abuseErr.Message
	default:
		fe.Body = err.Error()
	}
	return fe
}

// toRemoteRepository translates a github.Repository object to our internal model.RemoteRepository.
func toRemoteRepository(r *github.Repository) model.RemoteRepository {
	return model.RemoteRepository{
		ID:          r.GetID(),
		Name:        r.GetName(),
		URL:         r.GetHTMLURL(),
		Description: nonEmpty(r.Description),
		Homepage:    nonEmpty(r.Homepage),
		Language:    nonEmpty(r.Language),
		Owner:       r.GetOwner().GetLogin(),
		Visibility:  r.GetVisibility(),
		HasPages:    r.GetHasPages(),
	}
}

func nonEmpty(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}
