package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	"github.com/oscontrib/tracker/internal/config"
	"github.com/oscontrib/tracker/internal/models"
)

const acceptHeader = "application/vnd.github.v3+json"

// Client talks to the GitHub REST API. Base URL, identity header and the
// optional token are fixed at construction; a missing token is allowed but
// subject to GitHub's unauthenticated rate limits.
type Client struct {
	httpClient *http.Client
	cfg        config.GitHubConfig
	logger     *logrus.Logger
}

// NewClient creates a new GitHub API client from the given configuration.
func NewClient(cfg config.GitHubConfig, logger *logrus.Logger) *Client {
	var httpClient *http.Client
	if cfg.Token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
		httpClient = oauth2.NewClient(context.Background(), ts)
	} else {
		httpClient = &http.Client{}
	}
	httpClient.Timeout = 30 * time.Second

	return &Client{
		httpClient: httpClient,
		cfg:        cfg,
		logger:     logger,
	}
}

func (c *Client) get(ctx context.Context, path string, query url.Values, result interface{}) error {
	reqURL := c.cfg.APIBaseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return NewAPIError(0, "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return NewAPIError(resp.StatusCode, "failed to read response body", err)
	}

	if resp.StatusCode != http.StatusOK {
		return NewAPIError(resp.StatusCode, string(body), nil)
	}

	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return NewAPIError(resp.StatusCode, "failed to decode response", err)
		}
	}

	return nil
}

// ListRepositories returns up to 100 of the user's repositories sorted by
// update recency.
func (c *Client) ListRepositories(ctx context.Context, username string) ([]Repository, error) {
	query := url.Values{}
	query.Set("sort", "updated")
	query.Set("per_page", "100")

	var repos []Repository
	if err := c.get(ctx, "/users/"+url.PathEscape(username)+"/repos", query, &repos); err != nil {
		return nil, err
	}
	return repos, nil
}

// ListPublicEvents returns up to 100 of the user's most recent public events.
func (c *Client) ListPublicEvents(ctx context.Context, username string) ([]Event, error) {
	query := url.Values{}
	query.Set("per_page", "100")

	var events []Event
	if err := c.get(ctx, "/users/"+url.PathEscape(username)+"/events/public", query, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// SearchAuthoredItems runs the authored-PR and authored-issue search queries
// concurrently and concatenates the results. Search enrichment is
// best-effort: any failure degrades to an empty result set and is only
// logged, never propagated.
func (c *Client) SearchAuthoredItems(ctx context.Context, username string) []SearchItem {
	var prs, issues []SearchItem

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		prs, err = c.searchIssues(egCtx, "type:pr author:"+username)
		return err
	})
	eg.Go(func() error {
		var err error
		issues, err = c.searchIssues(egCtx, "type:issue author:"+username)
		return err
	})

	if err := eg.Wait(); err != nil {
		c.logger.WithError(err).WithField("username", username).
			Warn("Search API fetch failed, continuing without search results")
		return []SearchItem{}
	}

	return append(prs, issues...)
}

func (c *Client) searchIssues(ctx context.Context, q string) ([]SearchItem, error) {
	query := url.Values{}
	query.Set("q", q)
	query.Set("sort", "updated")
	query.Set("per_page", "100")

	var result issueSearchResult
	if err := c.get(ctx, "/search/issues", query, &result); err != nil {
		return nil, err
	}
	return result.Items, nil
}

// SearchRepositories queries the repository search API. Used by the public
// repository search endpoint.
func (c *Client) SearchRepositories(ctx context.Context, q, sort, order string, perPage, page int) (*RepositorySearchResult, error) {
	if perPage > 100 {
		perPage = 100
	}
	if page < 1 {
		page = 1
	}

	query := url.Values{}
	query.Set("q", q)
	query.Set("sort", sort)
	query.Set("order", order)
	query.Set("per_page", strconv.Itoa(perPage))
	query.Set("page", strconv.Itoa(page))

	var result RepositorySearchResult
	if err := c.get(ctx, "/search/repositories", query, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetUser fetches a user's public profile. A 404 surfaces as an APIError
// with that status; callers decide whether absence is an error.
func (c *Client) GetUser(ctx context.Context, username string) (*models.GitHubProfile, error) {
	var profile models.GitHubProfile
	if err := c.get(ctx, "/users/"+url.PathEscape(username), nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}
