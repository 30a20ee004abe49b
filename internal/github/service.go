package github

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/oscontrib/tracker/internal/errors"
	"github.com/oscontrib/tracker/internal/models"
)

// Gateway is the remote data surface the aggregation engine consumes.
// Implemented by *Client; substitutable in tests.
type Gateway interface {
	ListRepositories(ctx context.Context, username string) ([]Repository, error)
	ListPublicEvents(ctx context.Context, username string) ([]Event, error)
	SearchAuthoredItems(ctx context.Context, username string) []SearchItem
	GetUser(ctx context.Context, username string) (*models.GitHubProfile, error)
}

// ContributionStore is the slice of the data store the background refresher
// needs.
type ContributionStore interface {
	ListConnectedUsers(ctx context.Context) ([]*models.User, error)
	SaveContributions(ctx context.Context, userID int64, summary *models.ContributionSummary) error
}

// Service aggregates and scores a user's open-source contributions.
type Service struct {
	gateway Gateway
	store   ContributionStore
	logger  *logrus.Logger
}

// NewService creates a new contribution service.
func NewService(gateway Gateway, store ContributionStore, logger *logrus.Logger) *Service {
	return &Service{
		gateway: gateway,
		store:   store,
		logger:  logger,
	}
}

// repoRecord accumulates one repository's contributions during a single
// aggregation run. The star count drives scoring only and is stripped from
// the summary.
type repoRecord struct {
	models.RepoContribution
	stars int
}

// AnalyzeContributions fetches a user's activity from GitHub and folds it
// into a scored, deduplicated-by-repository summary. Repository and event
// listing failures abort the run; search results are best-effort.
func (s *Service) AnalyzeContributions(ctx context.Context, username string) (*models.ContributionSummary, error) {
	log := s.logger.WithField("username", username)
	log.Info("Analyzing contributions")

	var (
		repos  []Repository
		events []Event
		items  []SearchItem
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		repos, err = s.gateway.ListRepositories(egCtx, username)
		if err != nil {
			return apperrors.NewUpstreamError("failed to fetch repositories", err)
		}
		return nil
	})
	eg.Go(func() error {
		var err error
		events, err = s.gateway.ListPublicEvents(egCtx, username)
		if err != nil {
			return apperrors.NewUpstreamError("failed to fetch public events", err)
		}
		return nil
	})
	eg.Go(func() error {
		items = s.gateway.SearchAuthoredItems(egCtx, username)
		return nil
	})

	if err := eg.Wait(); err != nil {
		return nil, apperrors.NewAggregationError(fmt.Sprintf("failed to analyze contributions for %s", username), err)
	}

	log.WithFields(logrus.Fields{
		"repositories":   len(repos),
		"events":         len(events),
		"search_results": len(items),
	}).Debug("Fetched contribution data")

	// The popularity metric for each record is resolved once, from this
	// listing snapshot, at record creation time.
	ownRepos := make(map[string]Repository, len(repos))
	for _, repo := range repos {
		ownRepos[strings.ToLower(repo.FullName)] = repo
	}

	agg := newAggregation(username, ownRepos)

	for _, event := range events {
		agg.foldEvent(event)
	}

	seen := make(map[int64]struct{}, len(items))
	for _, item := range items {
		// The PR and issue queries should be disjoint, but guard against a
		// single item surfacing in both.
		if _, dup := seen[item.ID]; dup {
			continue
		}
		seen[item.ID] = struct{}{}
		agg.foldSearchItem(item)
	}

	summary := agg.summary()
	log.WithFields(logrus.Fields{
		"total_points":        summary.TotalPoints,
		"unique_repositories": len(summary.Repositories),
	}).Info("Contribution analysis complete")

	return summary, nil
}

// aggregation holds the working state of one run: the dedup map keyed by
// lowercased "owner/name" plus the key encounter order, so ties in the final
// sort keep their original relative order.
type aggregation struct {
	username    string
	ownRepos    map[string]Repository
	records     map[string]*repoRecord
	order       []string
	totalPoints int
}

func newAggregation(username string, ownRepos map[string]Repository) *aggregation {
	return &aggregation{
		username: username,
		ownRepos: ownRepos,
		records:  make(map[string]*repoRecord),
	}
}

func (a *aggregation) foldEvent(event Event) {
	owner, name, ok := splitFullName(event.Repo.Name)
	if !ok {
		return
	}

	rec := a.record(owner, name)
	if rec == nil {
		return
	}
	rec.Contributions++

	var points int
	if contribType, mapped := eventContribTypes[event.Type]; mapped {
		points = Score(contribType, rec.stars)
	} else {
		points = unmappedEventPoints
	}
	rec.Points += points
	a.totalPoints += points

	rec.touch(event.CreatedAt)
}

func (a *aggregation) foldSearchItem(item SearchItem) {
	owner, name, ok := splitRepositoryURL(item.RepositoryURL)
	if !ok {
		return
	}

	rec := a.record(owner, name)
	if rec == nil {
		return
	}
	rec.Contributions++

	contribType := ContribIssue
	if item.PullRequest != nil {
		contribType = ContribPullRequest
	}
	points := Score(contribType, rec.stars)
	rec.Points += points
	a.totalPoints += points

	ts := item.UpdatedAt
	if ts.IsZero() {
		ts = item.CreatedAt
	}
	rec.touch(ts)
}

// record returns the accumulator for owner/name, creating it on first sight.
// Self-owned repositories never get a record.
func (a *aggregation) record(owner, name string) *repoRecord {
	if strings.EqualFold(owner, a.username) {
		return nil
	}

	key := strings.ToLower(owner + "/" + name)
	if rec, ok := a.records[key]; ok {
		return rec
	}

	rec := &repoRecord{
		RepoContribution: models.RepoContribution{
			Name:  name,
			Owner: owner,
			URL:   fmt.Sprintf("https://github.com/%s/%s", owner, name),
		},
	}
	if repo, ok := a.ownRepos[key]; ok {
		rec.stars = repo.StargazersCount
		if repo.HTMLURL != "" {
			rec.URL = repo.HTMLURL
		}
	}

	a.records[key] = rec
	a.order = append(a.order, key)
	return rec
}

// summary converts the dedup map into the final ranked structure: points
// descending, ties in encounter order, popularity metric stripped.
func (a *aggregation) summary() *models.ContributionSummary {
	repositories := make([]models.RepoContribution, 0, len(a.order))
	for _, key := range a.order {
		repositories = append(repositories, a.records[key].RepoContribution)
	}

	sort.SliceStable(repositories, func(i, j int) bool {
		return repositories[i].Points > repositories[j].Points
	})

	return &models.ContributionSummary{
		TotalPoints:  a.totalPoints,
		Repositories: repositories,
		LastUpdated:  time.Now().UTC(),
	}
}

func (r *repoRecord) touch(ts time.Time) {
	if ts.IsZero() {
		return
	}
	if r.LastContribution == nil || ts.After(*r.LastContribution) {
		t := ts
		r.LastContribution = &t
	}
}

// splitFullName splits an event's "owner/name" repository field. Events with
// no repository field or no owner segment are skipped entirely.
func splitFullName(fullName string) (owner, name string, ok bool) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// splitRepositoryURL derives owner and name from the trailing two path
// segments of a search item's repository_url.
func splitRepositoryURL(repoURL string) (owner, name string, ok bool) {
	parts := strings.Split(strings.TrimSuffix(repoURL, "/"), "/")
	if len(parts) < 2 {
		return "", "", false
	}
	owner, name = parts[len(parts)-2], parts[len(parts)-1]
	if owner == "" || name == "" {
		return "", "", false
	}
	return owner, name, true
}

// VerifyUsername checks whether a GitHub username exists. A 404 from the API
// is the valid does-not-exist outcome, not an error.
func (s *Service) VerifyUsername(ctx context.Context, username string) (*models.Verification, error) {
	profile, err := s.gateway.GetUser(ctx, username)
	if err != nil {
		if IsNotFoundError(err) {
			return &models.Verification{Exists: false}, nil
		}
		return nil, apperrors.NewVerificationError(fmt.Sprintf("failed to verify username %s", username), err)
	}

	return &models.Verification{Exists: true, Profile: profile}, nil
}

// StartRefresh periodically re-aggregates contributions for every connected
// user. Blocks until ctx is cancelled; a non-positive interval disables the
// loop.
func (s *Service) StartRefresh(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		s.logger.Info("Background contribution refresh disabled")
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.refreshAll(ctx)
		case <-ctx.Done():
			s.logger.Info("Stopping contribution refresh")
			return
		}
	}
}

func (s *Service) refreshAll(ctx context.Context) {
	users, err := s.store.ListConnectedUsers(ctx)
	if err != nil {
		s.logger.Errorf("Failed to list connected users: %v", err)
		return
	}

	for _, user := range users {
		summary, err := s.AnalyzeContributions(ctx, user.GitHubUsername)
		if err != nil {
			s.logger.WithError(err).WithField("username", user.GitHubUsername).
				Error("Background refresh failed")
			continue
		}
		if err := s.store.SaveContributions(ctx, user.ID, summary); err != nil {
			s.logger.WithError(err).WithField("user_id", user.ID).
				Error("Failed to persist refreshed contributions")
		}
	}
}
