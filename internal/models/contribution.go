package models

import "time"

// RepoContribution is the aggregate of one user's activity against a single
// repository they do not own. LastContribution stays nil until the first
// activity is folded in.
type RepoContribution struct {
	Name             string     `json:"name"`
	Owner            string     `json:"owner"`
	URL              string     `json:"url"`
	Contributions    int        `json:"contributions"`
	Points           int        `json:"points"`
	LastContribution *time.Time `json:"lastContribution"`
}

// ContributionSummary is the output of one aggregation run. Repositories are
// ordered by points descending.
type ContributionSummary struct {
	TotalPoints  int                `json:"totalPoints"`
	Repositories []RepoContribution `json:"repositories"`
	LastUpdated  time.Time          `json:"lastUpdated"`
}

// EmptySummary returns a summary with no contributions, stamped now. Used
// when a freshly connected account has nothing scorable yet or the initial
// aggregation failed.
func EmptySummary() *ContributionSummary {
	return &ContributionSummary{
		Repositories: []RepoContribution{},
		LastUpdated:  time.Now().UTC(),
	}
}

// GitHubProfile holds the public profile fields returned by username
// verification.
type GitHubProfile struct {
	Login       string `json:"login"`
	Name        string `json:"name"`
	AvatarURL   string `json:"avatar_url"`
	PublicRepos int    `json:"public_repos"`
	Followers   int    `json:"followers"`
	Following   int    `json:"following"`
}

// Verification is the outcome of checking a GitHub username. Profile is set
// only when Exists is true.
type Verification struct {
	Exists  bool           `json:"exists"`
	Profile *GitHubProfile `json:"profile,omitempty"`
}
