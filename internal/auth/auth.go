package auth

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/tradefab/order-api/pkg/response"
)

var (
	ErrInvalidCredentials = errors.New("invalid API credentials")
	ErrInvalidSession     = errors.New("invalid session")
	ErrTokenGeneration    = errors.New("failed to generate session token")
)

// Test credentials
var (
	TestAPIKey    = "test-api-key"
	TestAPISecret = "test-api-secret"
	TestAccountID = int64(1)
)

// SessionAuthority validates a session identifier and resolves the owning
// account. Implementations may be remote; callers bound the wait with ctx.
type SessionAuthority interface {
	ValidateSession(ctx context.Context, sessionID string) (int64, error)
}

type contextKey string

const accountIDContextKey contextKey = "accountID"

// WithAccountID stores the resolved account id in the request context.
func WithAccountID(ctx context.Context, accountID int64) context.Context {
	return context.WithValue(ctx, accountIDContextKey, accountID)
}

// AccountIDFromContext returns the account id attached by the session gate,
// or zero when the call was never authenticated.
func AccountIDFromContext(ctx context.Context) int64 {
	if ctx == nil {
		return 0
	}
	id, _ := ctx.Value(accountIDContextKey).(int64)
	return id
}

// Credentials represents the API authentication credentials
type Credentials struct {
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret"`
}

// SessionToken represents the issued session token response
type SessionToken struct {
	Token      string    `json:"session_token"`
	AccountID  int64     `json:"account_id"`
	Expiration time.Time `json:"expiration"`
}

// Claims represents the session token claims structure
type Claims struct {
	jwt.RegisteredClaims
	AccountID int64 `json:"account_id"`
}

type credential struct {
	secret    string
	accountID int64
}

// Service issues and validates session tokens. It stands in for the external
// auth service in local runs and implements SessionAuthority.
type Service struct {
	jwtSecret  []byte
	sessionTTL time.Duration
	// In a real deployment credentials live in the account service.
	apiCredentials map[string]credential
}

// NewService creates a new authentication service with the given signing secret
func NewService(jwtSecret string, sessionTTL time.Duration) *Service {
	if sessionTTL <= 0 {
		sessionTTL = 24 * time.Hour
	}
	return &Service{
		jwtSecret:      []byte(jwtSecret),
		sessionTTL:     sessionTTL,
		apiCredentials: make(map[string]credential),
	}
}

// RegisterAPICredentials registers credentials for an account (testing/demo)
func (s *Service) RegisterAPICredentials(apiKey, apiSecret string, accountID int64) {
	s.apiCredentials[apiKey] = credential{secret: apiSecret, accountID: accountID}
}

// IssueSession generates a session token for valid API credentials
func (s *Service) IssueSession(creds Credentials) (*SessionToken, error) {
	cred, ok := s.apiCredentials[creds.APIKey]
	if !ok || cred.secret != creds.APISecret {
		return nil, ErrInvalidCredentials
	}

	expiration := time.Now().Add(s.sessionTTL)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiration),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
		AccountID: cred.accountID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, ErrTokenGeneration
	}

	return &SessionToken{
		Token:      tokenString,
		AccountID:  cred.accountID,
		Expiration: expiration,
	}, nil
}

// ValidateSession verifies a session token and returns the account id.
// It implements SessionAuthority; ctx is honoured so a caller-side deadline
// or cancellation short-circuits the validation.
func (s *Service) ValidateSession(ctx context.Context, sessionID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	token, err := jwt.ParseWithClaims(sessionID, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return 0, ErrInvalidSession
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return 0, ErrInvalidSession
	}

	return claims.AccountID, nil
}

// GinHandlers contains HTTP handlers for authentication endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for authentication endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// CreateSessionHandler handles POST requests to exchange credentials for a
// session token
func (h *GinHandlers) CreateSessionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var creds Credentials
		if err := c.ShouldBindJSON(&creds); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}

		token, err := h.service.IssueSession(creds)
		if errors.Is(err, ErrInvalidCredentials) {
			response.Unauthenticated(c, err.Error())
			return
		}
		response.Handle(c, token, err)
	}
}
