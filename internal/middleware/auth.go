package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"arcadeswap-api/pkg/apierror"

	"github.com/golang-jwt/jwt/v5"
)

// UserIDKey is the context key for the authenticated user id.
const UserIDKey contextKey = "user_id"

// Claims is the bearer token payload issued by the identity provider.
// The subject claim carries the marketplace user id.
type Claims struct {
	jwt.RegisteredClaims
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Secret []byte
	Issuer string
}

// NewAuthMiddleware verifies HS256 bearer tokens and stores the subject in the
// request context. Health, status and admin routes are left to other checks.
func NewAuthMiddleware(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublicPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				writeError(w, apierror.Unauthorized("Authentication required. Use Authorization: Bearer <token>."))
				return
			}

			claims, err := ParseToken(cfg, strings.TrimPrefix(auth, "Bearer "))
			if err != nil {
				writeError(w, apierror.Unauthorized("Invalid or expired token"))
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func isPublicPath(path string) bool {
	switch path {
	case "/api/status", "/api/v1/health", "/api/v1/ready":
		return true
	}
	return strings.HasPrefix(path, "/api/v1/admin")
}

// ParseToken validates tokenString and returns its claims.
func ParseToken(cfg AuthConfig, tokenString string) (*Claims, error) {
	if len(cfg.Secret) == 0 {
		return nil, fmt.Errorf("token verification is not configured")
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return cfg.Secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.Subject == "" {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// IssueToken signs a token for userID. The identity provider does this in
// production; local tooling and tests use it directly.
func IssueToken(cfg AuthConfig, userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(cfg.Secret)
}

// GetUserID retrieves the authenticated user id from request context.
func GetUserID(ctx context.Context) string {
	if id, ok := ctx.Value(UserIDKey).(string); ok {
		return id
	}
	return ""
}

// writeError writes an API error response.
func writeError(w http.ResponseWriter, err *apierror.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode)
	w.Write(err.ToJSON())
}
