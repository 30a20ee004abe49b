package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oscontrib/tracker/internal/auth"
	"github.com/oscontrib/tracker/internal/db"
	apperrors "github.com/oscontrib/tracker/internal/errors"
	"github.com/oscontrib/tracker/internal/github"
	"github.com/oscontrib/tracker/internal/models"
)

// ContributionService is the engine surface the handlers call into.
type ContributionService interface {
	AnalyzeContributions(ctx context.Context, username string) (*models.ContributionSummary, error)
	VerifyUsername(ctx context.Context, username string) (*models.Verification, error)
}

// RepositorySearcher proxies repository search queries to GitHub.
type RepositorySearcher interface {
	SearchRepositories(ctx context.Context, q, sort, order string, perPage, page int) (*github.RepositorySearchResult, error)
}

type Handler struct {
	store         db.Store
	contributions ContributionService
	searcher      RepositorySearcher
	tokens        *auth.TokenManager
	logger        *logrus.Logger
}

func NewHandler(store db.Store, contributions ContributionService, searcher RepositorySearcher, tokens *auth.TokenManager, logger *logrus.Logger) *Handler {
	return &Handler{
		store:         store,
		contributions: contributions,
		searcher:      searcher,
		tokens:        tokens,
		logger:        logger,
	}
}

type signupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type connectGitHubRequest struct {
	GitHubUsername string `json:"githubUsername"`
}

type userPayload struct {
	ID             int64  `json:"id"`
	Username       string `json:"username"`
	Email          string `json:"email,omitempty"`
	GitHubUsername string `json:"githubUsername,omitempty"`
	ProfileURL     string `json:"profileUrl,omitempty"`

	Contributions *models.ContributionSummary `json:"contributions,omitempty"`
	CreatedAt     *time.Time                  `json:"createdAt,omitempty"`
}

// Signup registers a new account and returns a session token.
// @Summary Register a new user
// @Tags auth
// @Accept json
// @Produce json
// @Param request body signupRequest true "Signup request"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /auth/signup [post]
func (h *Handler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)

	if req.Username == "" || req.Email == "" || req.Password == "" {
		respondError(c, http.StatusBadRequest, "username, email and password are required")
		return
	}
	if len(req.Username) < 3 || len(req.Username) > 50 {
		respondError(c, http.StatusBadRequest, "username must be between 3 and 50 characters")
		return
	}
	if len(req.Password) < 6 {
		respondError(c, http.StatusBadRequest, "password must be at least 6 characters long")
		return
	}

	if existing, err := h.store.GetUserByEmail(c.Request.Context(), req.Email); err != nil {
		h.serverError(c, "failed to check email", err)
		return
	} else if existing != nil {
		respondError(c, http.StatusBadRequest, "email already registered")
		return
	}

	if existing, err := h.store.GetUserByUsername(c.Request.Context(), req.Username); err != nil {
		h.serverError(c, "failed to check username", err)
		return
	} else if existing != nil {
		respondError(c, http.StatusBadRequest, "username already taken")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.serverError(c, "failed to hash password", err)
		return
	}

	user := &models.User{
		Username:     req.Username,
		Email:        strings.ToLower(req.Email),
		PasswordHash: hash,
	}
	if err := h.store.CreateUser(c.Request.Context(), user); err != nil {
		h.serverError(c, "failed to create user", err)
		return
	}

	token, err := h.tokens.Issue(user.ID)
	if err != nil {
		h.serverError(c, "failed to issue token", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "user created successfully",
		"user":    userPayload{ID: user.ID, Username: user.Username, Email: user.Email},
		"token":   token,
	})
}

// Login authenticates a user and returns a session token.
// @Summary Log in
// @Tags auth
// @Accept json
// @Produce json
// @Param request body loginRequest true "Login request"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		respondError(c, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := h.store.GetUserByEmail(c.Request.Context(), req.Email)
	if err != nil {
		h.serverError(c, "failed to look up user", err)
		return
	}
	if user == nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		respondError(c, http.StatusBadRequest, "invalid credentials")
		return
	}

	token, err := h.tokens.Issue(user.ID)
	if err != nil {
		h.serverError(c, "failed to issue token", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "login successful",
		"user":    userPayload{ID: user.ID, Username: user.Username, Email: user.Email},
		"token":   token,
	})
}

// GetProfile returns the authenticated user's profile with contributions.
// @Summary Get own profile
// @Tags profile
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /profile [get]
func (h *Handler) GetProfile(c *gin.Context) {
	user := h.currentUser(c)
	if user == nil {
		return
	}

	contributions, err := h.store.GetContributions(c.Request.Context(), user.ID)
	if err != nil {
		h.serverError(c, "failed to load contributions", err)
		return
	}
	if contributions == nil {
		contributions = models.EmptySummary()
	}

	c.JSON(http.StatusOK, gin.H{"user": userPayload{
		ID:             user.ID,
		Username:       user.Username,
		Email:          user.Email,
		GitHubUsername: user.GitHubUsername,
		ProfileURL:     user.ProfileURL,
		Contributions:  contributions,
		CreatedAt:      &user.CreatedAt,
	}})
}

// ConnectGitHub performs the one-time GitHub link: verify the username,
// store it with a generated public profile slug, and run the initial
// aggregation. Aggregation failure on connect degrades to an empty summary.
// @Summary Connect a GitHub account
// @Tags profile
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body connectGitHubRequest true "GitHub username"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /profile/github [post]
func (h *Handler) ConnectGitHub(c *gin.Context) {
	user := h.currentUser(c)
	if user == nil {
		return
	}

	var req connectGitHubRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	githubUsername := strings.TrimSpace(req.GitHubUsername)
	if githubUsername == "" {
		respondError(c, http.StatusBadRequest, "github username is required")
		return
	}

	if user.Connected() {
		respondError(c, http.StatusConflict, "github is already connected for this account")
		return
	}

	verification, err := h.contributions.VerifyUsername(c.Request.Context(), githubUsername)
	if err != nil {
		h.logger.WithError(err).Error("GitHub username verification failed")
		respondError(c, http.StatusServiceUnavailable, "failed to verify github username")
		return
	}
	if !verification.Exists {
		respondError(c, http.StatusNotFound, "github username not found")
		return
	}

	profileURL := user.ProfileURL
	if profileURL == "" {
		profileURL = generateProfileURL()
	}

	if err := h.store.ConnectGitHub(c.Request.Context(), user.ID, githubUsername, profileURL); err != nil {
		h.serverError(c, "failed to connect github account", err)
		return
	}

	summary, err := h.contributions.AnalyzeContributions(c.Request.Context(), githubUsername)
	if err != nil {
		h.logger.WithError(err).WithField("username", githubUsername).
			Warn("Failed to fetch contributions on connect")
		summary = models.EmptySummary()
	}
	if err := h.store.SaveContributions(c.Request.Context(), user.ID, summary); err != nil {
		h.serverError(c, "failed to save contributions", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "github connected successfully",
		"user": userPayload{
			ID:             user.ID,
			Username:       user.Username,
			GitHubUsername: githubUsername,
			ProfileURL:     profileURL,
			Contributions:  summary,
		},
	})
}

// RefreshContributions re-runs aggregation for the authenticated user and
// persists the fresh summary.
// @Summary Refresh contributions
// @Tags profile
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /profile/refresh [post]
func (h *Handler) RefreshContributions(c *gin.Context) {
	user := h.currentUser(c)
	if user == nil {
		return
	}
	if !user.Connected() {
		respondError(c, http.StatusBadRequest, "github username not set")
		return
	}

	summary, err := h.contributions.AnalyzeContributions(c.Request.Context(), user.GitHubUsername)
	if err != nil {
		h.logger.WithError(err).WithField("username", user.GitHubUsername).
			Error("Contribution refresh failed")
		respondError(c, http.StatusServiceUnavailable, "failed to refresh contributions")
		return
	}

	if err := h.store.SaveContributions(c.Request.Context(), user.ID, summary); err != nil {
		h.serverError(c, "failed to save contributions", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":       "contributions refreshed successfully",
		"contributions": summary,
	})
}

// PublicProfile returns a user's public profile by its profile URL slug.
// @Summary Get a public profile
// @Tags profile
// @Produce json
// @Param profileURL path string true "Profile URL slug"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} ErrorResponse
// @Router /profile/{profileURL} [get]
func (h *Handler) PublicProfile(c *gin.Context) {
	user, err := h.store.GetUserByProfileURL(c.Request.Context(), c.Param("profileURL"))
	if err != nil {
		h.serverError(c, "failed to load profile", err)
		return
	}
	if user == nil {
		respondError(c, http.StatusNotFound, "profile not found")
		return
	}

	contributions, err := h.store.GetContributions(c.Request.Context(), user.ID)
	if err != nil {
		h.serverError(c, "failed to load contributions", err)
		return
	}
	if contributions == nil {
		contributions = models.EmptySummary()
	}

	c.JSON(http.StatusOK, gin.H{"user": userPayload{
		ID:             user.ID,
		Username:       user.Username,
		GitHubUsername: user.GitHubUsername,
		ProfileURL:     user.ProfileURL,
		Contributions:  contributions,
		CreatedAt:      &user.CreatedAt,
	}})
}

// SearchRepositories proxies a repository search to the GitHub API.
// @Summary Search GitHub repositories
// @Tags repositories
// @Produce json
// @Param q query string true "Search query"
// @Param sort query string false "Sort field" default(stars)
// @Param order query string false "Sort order" default(desc)
// @Param per_page query int false "Results per page" default(30)
// @Param page query int false "Page number" default(1)
// @Success 200 {object} github.RepositorySearchResult
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /repositories/search [get]
func (h *Handler) SearchRepositories(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		respondError(c, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}

	perPage, err := strconv.Atoi(c.DefaultQuery("per_page", "30"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid per_page parameter")
		return
	}
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid page parameter")
		return
	}

	result, err := h.searcher.SearchRepositories(c.Request.Context(), q,
		c.DefaultQuery("sort", "stars"), c.DefaultQuery("order", "desc"), perPage, page)
	if err != nil {
		var apiErr *github.APIError
		if errors.As(err, &apiErr) {
			switch apiErr.StatusCode {
			case http.StatusUnauthorized:
				respondError(c, http.StatusUnauthorized, "github api authentication failed, set GITHUB_TOKEN for higher rate limits")
				return
			case http.StatusForbidden:
				respondError(c, http.StatusForbidden, "github api rate limit exceeded, try again later")
				return
			}
		}
		h.serverError(c, "failed to search repositories", err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// currentUser loads the authenticated user, writing the error response
// itself when the lookup fails.
func (h *Handler) currentUser(c *gin.Context) *models.User {
	userID, ok := auth.UserID(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "authentication required")
		return nil
	}

	user, err := h.store.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		h.serverError(c, "failed to load user", err)
		return nil
	}
	if user == nil {
		respondError(c, http.StatusNotFound, "user not found")
		return nil
	}
	return user
}

func (h *Handler) serverError(c *gin.Context, message string, err error) {
	h.logger.WithError(err).Error(message)
	if apperrors.IsNotFound(err) {
		respondError(c, http.StatusNotFound, message)
		return
	}
	respondError(c, http.StatusInternalServerError, "internal server error")
}

func respondError(c *gin.Context, code int, message string) {
	c.JSON(code, ErrorResponse{Error: message})
}

// generateProfileURL returns an opaque public slug for a profile.
func generateProfileURL() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "profile-" + strconv.FormatInt(time.Now().UnixNano()%100000000, 10)
	}
	return "profile-" + hex.EncodeToString(buf)
}
