package config

// GitHubConfig holds GitHub-specific configuration
type GitHubConfig struct {
	Token      string
	APIBaseURL string
	UserAgent  string
}

// DefaultGitHubConfig returns the default GitHub configuration
func DefaultGitHubConfig() GitHubConfig {
	return GitHubConfig{
		APIBaseURL: "https://api.github.com",
		UserAgent:  "OSContributionTracker",
	}
}

func loadGitHubConfig() GitHubConfig {
	cfg := DefaultGitHubConfig()
	cfg.Token = getEnv("GITHUB_TOKEN", "")
	cfg.APIBaseURL = getEnv("GITHUB_API_URL", cfg.APIBaseURL)
	return cfg
}
