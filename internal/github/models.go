package github

import "time"

// Repository is a repository object from the GitHub REST API.
type Repository struct {
	FullName        string `json:"full_name"`
	HTMLURL         string `json:"html_url"`
	Description     string `json:"description"`
	Language        string `json:"language"`
	StargazersCount int    `json:"stargazers_count"`
	ForksCount      int    `json:"forks_count"`
}

// Event is a single entry from a user's public event stream. Repo.Name
// arrives as "owner/repo".
type Event struct {
	Type string `json:"type"`
	Repo struct {
		Name string `json:"name"`
	} `json:"repo"`
	CreatedAt time.Time `json:"created_at"`
}

// SearchItem is one result from the issue search API. PullRequest is non-nil
// only when the item is a pull request.
type SearchItem struct {
	ID            int64           `json:"id"`
	Title         string          `json:"title"`
	HTMLURL       string          `json:"html_url"`
	RepositoryURL string          `json:"repository_url"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	PullRequest   *PullRequestRef `json:"pull_request"`
}

// PullRequestRef is the pull request marker on a search item.
type PullRequestRef struct {
	URL string `json:"url"`
}

type issueSearchResult struct {
	TotalCount int          `json:"total_count"`
	Items      []SearchItem `json:"items"`
}

// RepositorySearchResult is the response of the repository search API,
// passed through verbatim by the search proxy endpoint.
type RepositorySearchResult struct {
	TotalCount        int          `json:"total_count"`
	IncompleteResults bool         `json:"incomplete_results"`
	Items             []Repository `json:"items"`
}
