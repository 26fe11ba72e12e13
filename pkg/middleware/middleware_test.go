package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/tradefab/order-api/internal/auth"
)

type stubAuthority struct {
	accountID int64
	err       error
	delay     time.Duration
}

func (s stubAuthority) ValidateSession(ctx context.Context, sessionID string) (int64, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	return s.accountID, s.err
}

func newGateRouter(authority auth.SessionAuthority, timeout time.Duration) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/protected", SessionAuth(authority, timeout), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"account_id": c.GetInt64(AccountIDKey),
			"context_id": auth.AccountIDFromContext(c.Request.Context()),
		})
	})
	return router
}

func doRequest(router *gin.Engine, sessionID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if sessionID != "" {
		req.Header.Set(SessionIDHeader, sessionID)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSessionAuth_MissingHeader(t *testing.T) {
	router := newGateRouter(stubAuthority{accountID: 1}, time.Second)

	w := doRequest(router, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Contains(t, w.Body.String(), "Session ID missing")
}

func TestSessionAuth_ValidSession(t *testing.T) {
	router := newGateRouter(stubAuthority{accountID: 42}, time.Second)

	w := doRequest(router, "session-token")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"account_id":42`)
	require.Contains(t, w.Body.String(), `"context_id":42`)
}

func TestSessionAuth_InvalidSession(t *testing.T) {
	router := newGateRouter(stubAuthority{err: auth.ErrInvalidSession}, time.Second)

	w := doRequest(router, "session-token")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Contains(t, w.Body.String(), "Invalid session")
}

func TestSessionAuth_NonPositiveAccountID(t *testing.T) {
	router := newGateRouter(stubAuthority{accountID: 0}, time.Second)

	w := doRequest(router, "session-token")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSessionAuth_AuthorityError(t *testing.T) {
	router := newGateRouter(stubAuthority{err: errors.New("connection refused")}, time.Second)

	w := doRequest(router, "session-token")
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Contains(t, w.Body.String(), "Auth service unavailable")
}

func TestSessionAuth_Timeout(t *testing.T) {
	router := newGateRouter(stubAuthority{accountID: 42, delay: 500 * time.Millisecond}, 20*time.Millisecond)

	w := doRequest(router, "session-token")
	require.Equal(t, http.StatusGatewayTimeout, w.Code)
	require.Contains(t, w.Body.String(), "DEADLINE_EXCEEDED")
	// The handler never ran, so no account id appears in the body.
	require.NotContains(t, w.Body.String(), "account_id")
}

func TestInternalAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/internal", InternalAuth(stubAuthority{accountID: 9}), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"account_id": c.GetInt64(AccountIDKey)})
	})

	req := httptest.NewRequest(http.MethodPost, "/internal", nil)
	req.Header.Set("Authorization", "Bearer some-token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"account_id":9`)

	req = httptest.NewRequest(http.MethodPost, "/internal", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
