package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/oscontrib/tracker/internal/auth"
	apperrors "github.com/oscontrib/tracker/internal/errors"
	"github.com/oscontrib/tracker/internal/github"
	"github.com/oscontrib/tracker/internal/models"
)

// MockStore is a mock implementation of db.Store
type MockStore struct {
	mock.Mock
}

func (m *MockStore) CreateUser(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockStore) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockStore) GetUserByProfileURL(ctx context.Context, profileURL string) (*models.User, error) {
	args := m.Called(ctx, profileURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockStore) ConnectGitHub(ctx context.Context, userID int64, githubUsername, profileURL string) error {
	args := m.Called(ctx, userID, githubUsername, profileURL)
	return args.Error(0)
}

func (m *MockStore) ListConnectedUsers(ctx context.Context) ([]*models.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.User), args.Error(1)
}

func (m *MockStore) SaveContributions(ctx context.Context, userID int64, summary *models.ContributionSummary) error {
	args := m.Called(ctx, userID, summary)
	return args.Error(0)
}

func (m *MockStore) GetContributions(ctx context.Context, userID int64) (*models.ContributionSummary, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ContributionSummary), args.Error(1)
}

// MockContributionService is a mock implementation of ContributionService
type MockContributionService struct {
	mock.Mock
}

func (m *MockContributionService) AnalyzeContributions(ctx context.Context, username string) (*models.ContributionSummary, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ContributionSummary), args.Error(1)
}

func (m *MockContributionService) VerifyUsername(ctx context.Context, username string) (*models.Verification, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Verification), args.Error(1)
}

// MockSearcher is a mock implementation of RepositorySearcher
type MockSearcher struct {
	mock.Mock
}

func (m *MockSearcher) SearchRepositories(ctx context.Context, q, sort, order string, perPage, page int) (*github.RepositorySearchResult, error) {
	args := m.Called(ctx, q, sort, order, perPage, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*github.RepositorySearchResult), args.Error(1)
}

type testEnv struct {
	router  *gin.Engine
	store   *MockStore
	service *MockContributionService
	search  *MockSearcher
	tokens  *auth.TokenManager
}

func setupTestRouter(t *testing.T) *testEnv {
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	env := &testEnv{
		store:   new(MockStore),
		service: new(MockContributionService),
		search:  new(MockSearcher),
		tokens:  auth.NewTokenManager("test-secret", time.Hour),
	}

	handler := NewHandler(env.store, env.service, env.search, env.tokens, logger)
	env.router = SetupRouter(handler, env.tokens)
	return env
}

func (env *testEnv) request(t *testing.T, method, path string, body interface{}, userID int64) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != 0 {
		token, err := env.tokens.Issue(userID)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func testUser(id int64, githubUsername string) *models.User {
	user := &models.User{
		Username: "alice",
		Email:    "alice@example.com",
	}
	user.ID = id
	user.GitHubUsername = githubUsername
	if githubUsername != "" {
		user.ProfileURL = "profile-abcd1234"
	}
	return user
}

func TestHandler_Signup(t *testing.T) {
	t.Run("missing fields", func(t *testing.T) {
		env := setupTestRouter(t)
		w := env.request(t, "POST", "/api/v1/auth/signup", gin.H{"username": "alice"}, 0)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("short password", func(t *testing.T) {
		env := setupTestRouter(t)
		w := env.request(t, "POST", "/api/v1/auth/signup", gin.H{
			"username": "alice", "email": "alice@example.com", "password": "short",
		}, 0)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "at least 6 characters")
	})

	t.Run("duplicate email", func(t *testing.T) {
		env := setupTestRouter(t)
		env.store.On("GetUserByEmail", mock.Anything, "alice@example.com").Return(testUser(1, ""), nil)

		w := env.request(t, "POST", "/api/v1/auth/signup", gin.H{
			"username": "alice", "email": "alice@example.com", "password": "hunter22",
		}, 0)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "email already registered")
	})

	t.Run("successful signup returns a token", func(t *testing.T) {
		env := setupTestRouter(t)
		env.store.On("GetUserByEmail", mock.Anything, "alice@example.com").Return(nil, nil)
		env.store.On("GetUserByUsername", mock.Anything, "alice").Return(nil, nil)
		env.store.On("CreateUser", mock.Anything, mock.AnythingOfType("*models.User")).
			Run(func(args mock.Arguments) {
				args.Get(1).(*models.User).ID = 1
			}).Return(nil)

		w := env.request(t, "POST", "/api/v1/auth/signup", gin.H{
			"username": "alice", "email": "alice@example.com", "password": "hunter22",
		}, 0)
		require.Equal(t, http.StatusCreated, w.Code)

		var resp map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp["token"])
		env.store.AssertExpectations(t)
	})
}

func TestHandler_Login(t *testing.T) {
	t.Run("unknown email", func(t *testing.T) {
		env := setupTestRouter(t)
		env.store.On("GetUserByEmail", mock.Anything, "alice@example.com").Return(nil, nil)

		w := env.request(t, "POST", "/api/v1/auth/login", gin.H{
			"email": "alice@example.com", "password": "hunter22",
		}, 0)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "invalid credentials")
	})

	t.Run("wrong password", func(t *testing.T) {
		hash, err := auth.HashPassword("hunter22")
		require.NoError(t, err)
		user := testUser(1, "")
		user.PasswordHash = hash

		env := setupTestRouter(t)
		env.store.On("GetUserByEmail", mock.Anything, "alice@example.com").Return(user, nil)

		w := env.request(t, "POST", "/api/v1/auth/login", gin.H{
			"email": "alice@example.com", "password": "wrong",
		}, 0)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("successful login", func(t *testing.T) {
		hash, err := auth.HashPassword("hunter22")
		require.NoError(t, err)
		user := testUser(1, "")
		user.PasswordHash = hash

		env := setupTestRouter(t)
		env.store.On("GetUserByEmail", mock.Anything, "alice@example.com").Return(user, nil)

		w := env.request(t, "POST", "/api/v1/auth/login", gin.H{
			"email": "alice@example.com", "password": "hunter22",
		}, 0)
		require.Equal(t, http.StatusOK, w.Code)

		var resp map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp["token"])
	})
}

func TestHandler_ConnectGitHub(t *testing.T) {
	t.Run("requires authentication", func(t *testing.T) {
		env := setupTestRouter(t)
		w := env.request(t, "POST", "/api/v1/profile/github", gin.H{"githubUsername": "octocat"}, 0)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("already connected", func(t *testing.T) {
		env := setupTestRouter(t)
		env.store.On("GetUserByID", mock.Anything, int64(1)).Return(testUser(1, "octocat"), nil)

		w := env.request(t, "POST", "/api/v1/profile/github", gin.H{"githubUsername": "hubot"}, 1)
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("unknown github username", func(t *testing.T) {
		env := setupTestRouter(t)
		env.store.On("GetUserByID", mock.Anything, int64(1)).Return(testUser(1, ""), nil)
		env.service.On("VerifyUsername", mock.Anything, "no-such-user").
			Return(&models.Verification{Exists: false}, nil)

		w := env.request(t, "POST", "/api/v1/profile/github", gin.H{"githubUsername": "no-such-user"}, 1)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("successful connect runs the initial aggregation", func(t *testing.T) {
		summary := &models.ContributionSummary{
			TotalPoints:  20,
			Repositories: []models.RepoContribution{{Name: "go", Owner: "golang", Points: 20, Contributions: 1}},
			LastUpdated:  time.Now().UTC(),
		}

		env := setupTestRouter(t)
		env.store.On("GetUserByID", mock.Anything, int64(1)).Return(testUser(1, ""), nil)
		env.service.On("VerifyUsername", mock.Anything, "octocat").
			Return(&models.Verification{Exists: true, Profile: &models.GitHubProfile{Login: "octocat"}}, nil)
		env.store.On("ConnectGitHub", mock.Anything, int64(1), "octocat", mock.AnythingOfType("string")).Return(nil)
		env.service.On("AnalyzeContributions", mock.Anything, "octocat").Return(summary, nil)
		env.store.On("SaveContributions", mock.Anything, int64(1), summary).Return(nil)

		w := env.request(t, "POST", "/api/v1/profile/github", gin.H{"githubUsername": "octocat"}, 1)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "github connected successfully")
		env.store.AssertExpectations(t)
		env.service.AssertExpectations(t)
	})

	t.Run("aggregation failure on connect degrades to an empty summary", func(t *testing.T) {
		env := setupTestRouter(t)
		env.store.On("GetUserByID", mock.Anything, int64(1)).Return(testUser(1, ""), nil)
		env.service.On("VerifyUsername", mock.Anything, "octocat").
			Return(&models.Verification{Exists: true}, nil)
		env.store.On("ConnectGitHub", mock.Anything, int64(1), "octocat", mock.AnythingOfType("string")).Return(nil)
		env.service.On("AnalyzeContributions", mock.Anything, "octocat").
			Return(nil, apperrors.NewAggregationError("failed", errors.New("boom")))
		env.store.On("SaveContributions", mock.Anything, int64(1), mock.MatchedBy(func(s *models.ContributionSummary) bool {
			return s.TotalPoints == 0 && len(s.Repositories) == 0
		})).Return(nil)

		w := env.request(t, "POST", "/api/v1/profile/github", gin.H{"githubUsername": "octocat"}, 1)
		assert.Equal(t, http.StatusOK, w.Code)
		env.store.AssertExpectations(t)
	})
}

func TestHandler_RefreshContributions(t *testing.T) {
	t.Run("github not connected", func(t *testing.T) {
		env := setupTestRouter(t)
		env.store.On("GetUserByID", mock.Anything, int64(1)).Return(testUser(1, ""), nil)

		w := env.request(t, "POST", "/api/v1/profile/refresh", nil, 1)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("aggregation failure maps to service unavailable", func(t *testing.T) {
		env := setupTestRouter(t)
		env.store.On("GetUserByID", mock.Anything, int64(1)).Return(testUser(1, "octocat"), nil)
		env.service.On("AnalyzeContributions", mock.Anything, "octocat").
			Return(nil, apperrors.NewAggregationError("failed", errors.New("boom")))

		w := env.request(t, "POST", "/api/v1/profile/refresh", nil, 1)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("successful refresh persists the summary", func(t *testing.T) {
		summary := models.EmptySummary()

		env := setupTestRouter(t)
		env.store.On("GetUserByID", mock.Anything, int64(1)).Return(testUser(1, "octocat"), nil)
		env.service.On("AnalyzeContributions", mock.Anything, "octocat").Return(summary, nil)
		env.store.On("SaveContributions", mock.Anything, int64(1), summary).Return(nil)

		w := env.request(t, "POST", "/api/v1/profile/refresh", nil, 1)
		require.Equal(t, http.StatusOK, w.Code)
		env.store.AssertExpectations(t)
	})
}

func TestHandler_PublicProfile(t *testing.T) {
	t.Run("unknown slug", func(t *testing.T) {
		env := setupTestRouter(t)
		env.store.On("GetUserByProfileURL", mock.Anything, "profile-missing").Return(nil, nil)

		w := env.request(t, "GET", "/api/v1/profile/profile-missing", nil, 0)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("existing profile without stored contributions", func(t *testing.T) {
		env := setupTestRouter(t)
		env.store.On("GetUserByProfileURL", mock.Anything, "profile-abcd1234").Return(testUser(1, "octocat"), nil)
		env.store.On("GetContributions", mock.Anything, int64(1)).Return(nil, nil)

		w := env.request(t, "GET", "/api/v1/profile/profile-abcd1234", nil, 0)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"totalPoints":0`)
		assert.NotContains(t, w.Body.String(), "email")
	})
}

func TestHandler_SearchRepositories(t *testing.T) {
	t.Run("missing query", func(t *testing.T) {
		env := setupTestRouter(t)
		w := env.request(t, "GET", "/api/v1/repositories/search", nil, 0)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("passes defaults through", func(t *testing.T) {
		result := &github.RepositorySearchResult{TotalCount: 1, Items: []github.Repository{{FullName: "golang/go"}}}

		env := setupTestRouter(t)
		env.search.On("SearchRepositories", mock.Anything, "language:go", "stars", "desc", 30, 1).Return(result, nil)

		w := env.request(t, "GET", "/api/v1/repositories/search?q=language:go", nil, 0)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "golang/go")
		env.search.AssertExpectations(t)
	})

	t.Run("rate limit maps to forbidden", func(t *testing.T) {
		env := setupTestRouter(t)
		env.search.On("SearchRepositories", mock.Anything, "language:go", "stars", "desc", 30, 1).
			Return(nil, github.NewAPIError(http.StatusForbidden, "rate limited", nil))

		w := env.request(t, "GET", "/api/v1/repositories/search?q=language:go", nil, 0)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Contains(t, w.Body.String(), "rate limit")
	})
}
