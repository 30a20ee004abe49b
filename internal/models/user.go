package models

import "time"

// User is an account on the tracker. The password hash and the GitHub
// connection state never serialize to API responses directly; handlers
// build their own response shapes.
type User struct {
	BaseModel
	Username          string     `json:"username"`
	Email             string     `json:"email"`
	PasswordHash      string     `json:"-"`
	GitHubUsername    string     `json:"github_username,omitempty"`
	GitHubConnectedAt *time.Time `json:"github_connected_at,omitempty"`
	ProfileURL        string     `json:"profile_url,omitempty"`
}

// Connected reports whether the user has linked a GitHub account.
func (u *User) Connected() bool {
	return u.GitHubUsername != ""
}
