package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/oscontrib/tracker/internal/errors"
)

func TestTokenManager_IssueAndVerify(t *testing.T) {
	tokens := NewTokenManager("test-secret", 24*time.Hour)

	token, err := tokens.Issue(42)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	userID, err := tokens.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), userID)
}

func TestTokenManager_Verify(t *testing.T) {
	tokens := NewTokenManager("test-secret", 24*time.Hour)

	t.Run("garbage token", func(t *testing.T) {
		_, err := tokens.Verify("not.a.token")
		require.Error(t, err)
		assert.True(t, apperrors.IsUnauthorized(err))
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewTokenManager("other-secret", 24*time.Hour)
		token, err := other.Issue(42)
		require.NoError(t, err)

		_, err = tokens.Verify(token)
		require.Error(t, err)
		assert.True(t, apperrors.IsUnauthorized(err))
	})

	t.Run("expired token", func(t *testing.T) {
		expired := NewTokenManager("test-secret", -time.Hour)
		token, err := expired.Issue(42)
		require.NoError(t, err)

		_, err = tokens.Verify(token)
		require.Error(t, err)
		assert.True(t, apperrors.IsUnauthorized(err))
	})
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tokens := NewTokenManager("test-secret", 24*time.Hour)

	router := gin.New()
	router.GET("/protected", Middleware(tokens), func(c *gin.Context) {
		userID, ok := UserID(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"user_id": userID})
	})

	t.Run("valid token passes", func(t *testing.T) {
		token, err := tokens.Issue(42)
		require.NoError(t, err)

		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "42")
	})

	t.Run("missing header rejected", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/protected", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("malformed header rejected", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/protected", nil)
		req.Header.Set("Authorization", "Token abc")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("invalid token rejected", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/protected", nil)
		req.Header.Set("Authorization", "Bearer garbage")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
