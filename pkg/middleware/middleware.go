package middleware

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tradefab/order-api/internal/auth"
	"github.com/tradefab/order-api/internal/metrics"
	"github.com/tradefab/order-api/pkg/response"
	"golang.org/x/time/rate"
)

// SessionIDHeader carries the opaque session identifier on every
// authenticated call.
const SessionIDHeader = "Session-Id"

// AccountIDKey is the gin context key the session gate stores the resolved
// account id under.
const AccountIDKey = "accountID"

// DefaultAuthTimeout bounds the wait on session validation.
const DefaultAuthTimeout = 500 * time.Millisecond

// SessionAuth validates the session header against the authority before the
// handler body runs. Validation races against the bound and against caller
// cancellation: whichever resolves first decides the call. On success the
// resolved account id is attached to the gin context and the request context;
// nothing is attached on any failure path.
func SessionAuth(authority auth.SessionAuthority, timeout time.Duration) gin.HandlerFunc {
	if timeout <= 0 {
		timeout = DefaultAuthTimeout
	}

	type outcome struct {
		accountID int64
		err       error
	}

	return func(c *gin.Context) {
		sessionID := c.GetHeader(SessionIDHeader)
		if sessionID == "" {
			metrics.AuthFailures.Inc()
			response.Unauthenticated(c, "Session ID missing")
			c.Abort()
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		results := make(chan outcome, 1)
		go func() {
			accountID, err := authority.ValidateSession(ctx, sessionID)
			results <- outcome{accountID: accountID, err: err}
		}()

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				metrics.AuthFailures.Inc()
				response.GatewayTimeout(c, "Auth timeout")
			}
			// Caller cancelled: the pending validation is abandoned and the
			// handler never runs.
			c.Abort()
			return
		case out := <-results:
			if out.err != nil {
				metrics.AuthFailures.Inc()
				if errors.Is(out.err, context.DeadlineExceeded) {
					response.GatewayTimeout(c, "Auth timeout")
				} else if errors.Is(out.err, auth.ErrInvalidSession) {
					response.Unauthenticated(c, "Invalid session")
				} else {
					response.InternalError(c, "Auth service unavailable")
				}
				c.Abort()
				return
			}
			if out.accountID <= 0 {
				metrics.AuthFailures.Inc()
				response.Unauthenticated(c, "Invalid session")
				c.Abort()
				return
			}

			c.Set(AccountIDKey, out.accountID)
			c.Request = c.Request.WithContext(auth.WithAccountID(c.Request.Context(), out.accountID))
			c.Next()
		}
	}
}

// InternalAuth guards internal endpoints (fill callbacks) with a bearer
// session token validated against the same authority.
func InternalAuth(authority auth.SessionAuthority) gin.HandlerFunc {
	return func(c *gin.Context) {
		bearerToken := strings.Split(c.GetHeader("Authorization"), " ")
		if len(bearerToken) != 2 || !strings.EqualFold(bearerToken[0], "bearer") {
			response.Unauthenticated(c, "Invalid authorization header")
			c.Abort()
			return
		}

		accountID, err := authority.ValidateSession(c.Request.Context(), bearerToken[1])
		if err != nil || accountID <= 0 {
			response.Unauthenticated(c, "Invalid token")
			c.Abort()
			return
		}

		c.Set(AccountIDKey, accountID)
		c.Next()
	}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

var (
	visitors = make(map[string]*visitor)
	mu       sync.Mutex

	// Configure limits per endpoint type
	authLimit  = rate.Limit(10.0 / 60.0)   // 10 requests per minute
	orderLimit = rate.Limit(100.0 / 60.0)  // 100 requests per minute
	fillLimit  = rate.Limit(1000.0 / 60.0) // 1000 requests per minute
)

// Cleanup old visitors periodically
func init() {
	go cleanupVisitors()
}

func getLimiter(path, caller string) *rate.Limiter {
	mu.Lock()
	defer mu.Unlock()

	key := caller + ":" + path
	v, exists := visitors[key]

	if !exists {
		var limit rate.Limit
		switch {
		case strings.HasPrefix(path, "/api/v1/auth"):
			limit = authLimit
		case strings.HasPrefix(path, "/api/v1/orders"):
			limit = orderLimit
		case strings.HasPrefix(path, "/api/v1/internal"):
			limit = fillLimit
		default:
			limit = rate.Inf
		}

		v = &visitor{
			limiter:  rate.NewLimiter(limit, 5),
			lastSeen: time.Now(),
		}
		visitors[key] = v
	}

	v.lastSeen = time.Now()
	return v.limiter
}

func cleanupVisitors() {
	for {
		time.Sleep(time.Minute)

		mu.Lock()
		for key, v := range visitors {
			if time.Since(v.lastSeen) > 3*time.Minute {
				delete(visitors, key)
			}
		}
		mu.Unlock()
	}
}

// RateLimit throttles callers per account (falling back to client IP for
// unauthenticated routes).
func RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := c.ClientIP()
		if accountID := c.GetInt64(AccountIDKey); accountID > 0 {
			caller = "account:" + strconv.FormatInt(accountID, 10)
		}

		limiter := getLimiter(c.FullPath(), caller)
		if !limiter.Allow() {
			response.BadRequest(c, "Rate limit exceeded. Please try again later.")
			c.Abort()
			return
		}

		c.Next()
	}
}
