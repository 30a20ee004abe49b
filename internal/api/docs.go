package api

import (
	_ "github.com/oscontrib/tracker/docs"
)

// ErrorResponse is the error body returned by all endpoints
// @Description An API error
// @swagger:model ErrorResponse
type ErrorResponse struct {
	// Human-readable error message
	// @example github username not found
	Error string `json:"error" example:"github username not found"`
}

// ContributionRepository represents one scored repository in a summary
// @Description A repository a user contributed to, with its score
// @swagger:model ContributionRepository
type ContributionRepository struct {
	// Repository name
	// @example kubernetes
	Name string `json:"name" example:"kubernetes"`
	// Repository owner
	// @example kubernetes
	Owner string `json:"owner" example:"kubernetes"`
	// Repository URL
	// @example https://github.com/kubernetes/kubernetes
	URL string `json:"url" example:"https://github.com/kubernetes/kubernetes"`
	// Number of contributions folded into this repository
	// @example 4
	Contributions int `json:"contributions" example:"4"`
	// Total points awarded for this repository
	// @example 95
	Points int `json:"points" example:"95"`
	// Timestamp of the most recent contribution
	// @example 2024-03-20T00:00:00Z
	LastContribution string `json:"lastContribution" example:"2024-03-20T00:00:00Z"`
}

// ContributionSummary represents a full aggregation result
// @Description The scored contribution summary for a user
// @swagger:model ContributionSummary
type ContributionSummary struct {
	// Total points across all repositories
	// @example 230
	TotalPoints int `json:"totalPoints" example:"230"`
	// Repositories ordered by points descending
	Repositories []ContributionRepository `json:"repositories"`
	// When this summary was generated
	// @example 2024-03-21T12:00:00Z
	LastUpdated string `json:"lastUpdated" example:"2024-03-21T12:00:00Z"`
}
