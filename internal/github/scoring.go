package github

import "math"

// Contribution types recognized by the scoring table.
const (
	ContribCommit      = "commit"
	ContribPullRequest = "pull_request"
	ContribIssue       = "issue"
	ContribReview      = "review"
	ContribStar        = "star"
	ContribFork        = "fork"
)

// basePoints maps a contribution type to its base point value.
var basePoints = map[string]int{
	ContribCommit:      10,
	ContribPullRequest: 25,
	ContribIssue:       15,
	ContribReview:      20,
	ContribStar:        5,
	ContribFork:        8,
}

const (
	// defaultBasePoints applies when a recognized classification has no
	// entry in the base table.
	defaultBasePoints = 5

	// unmappedEventPoints is the flat award for raw event types outside the
	// classification map. No popularity multiplier applies.
	unmappedEventPoints = 2
)

// eventContribTypes classifies raw GitHub event types. Events outside this
// map take the flat unmappedEventPoints path.
var eventContribTypes = map[string]string{
	"PushEvent":        ContribCommit,
	"PullRequestEvent": ContribPullRequest,
	"IssuesEvent":      ContribIssue,
	"WatchEvent":       ContribStar,
	"ForkEvent":        ContribFork,
}

// Score returns the point value for one contribution of the given type
// against a repository with the given star count. The result is the base
// value scaled by the repository's popularity tier, rounded half-up.
func Score(contribType string, stars int) int {
	base, ok := basePoints[contribType]
	if !ok {
		base = defaultBasePoints
	}
	return int(math.Round(float64(base) * starMultiplier(stars)))
}

// starMultiplier maps a star count to its popularity tier multiplier.
// Thresholds are evaluated in descending order; an unknown or zero count
// lands in the lowest tier.
func starMultiplier(stars int) float64 {
	switch {
	case stars >= 1000:
		return 1.5
	case stars >= 100:
		return 1.2
	case stars >= 10:
		return 1.0
	default:
		return 0.8
	}
}
