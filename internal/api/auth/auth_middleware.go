package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/FACorreiaa/go-trip-planner-ai/config"
	"github.com/FACorreiaa/go-trip-planner-ai/internal/api"
)

type contextKey string

const UserIDKey contextKey = "userID"

// Claims are the access token claims issued by the account service.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

var errMissingToken = errors.New("authorization header required")

// Authenticate rejects requests without a valid bearer token.
func Authenticate(logger *slog.Logger, jwtCfg config.JWTConfig) func(next http.Handler) http.Handler {
	return authenticate(logger, jwtCfg, true)
}

// OptionalAuthenticate attaches the user id when a valid token is present and lets
// anonymous requests through. Invalid tokens are still rejected.
func OptionalAuthenticate(logger *slog.Logger, jwtCfg config.JWTConfig) func(next http.Handler) http.Handler {
	return authenticate(logger, jwtCfg, false)
}

func authenticate(logger *slog.Logger, jwtCfg config.JWTConfig, required bool) func(next http.Handler) http.Handler {
	secretKey := []byte(jwtCfg.SecretKey)
	if len(secretKey) == 0 {
		logger.Error("FATAL: JWT Secret Key is not configured!")
		panic("JWT Secret Key cannot be empty")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			l := logger.With(slog.String("middleware", "Authenticate"))

			claims, err := parseBearer(r.Header.Get("Authorization"), secretKey, jwtCfg)
			if errors.Is(err, errMissingToken) && !required {
				next.ServeHTTP(w, r)
				return
			}
			if err != nil {
				l.WarnContext(ctx, "Token parsing/validation failed", slog.Any("error", err))
				api.ErrorResponse(w, r, http.StatusUnauthorized, tokenErrorMessage(err))
				return
			}

			ctx = context.WithValue(ctx, UserIDKey, claims.UserID)
			l.DebugContext(ctx, "Authentication successful, claims added to context", slog.String("userID", claims.UserID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func parseBearer(authHeader string, secretKey []byte, jwtCfg config.JWTConfig) (*Claims, error) {
	if authHeader == "" {
		return nil, errMissingToken
	}
	headerParts := strings.Split(authHeader, " ")
	if len(headerParts) != 2 || strings.ToLower(headerParts[0]) != "bearer" {
		return nil, errors.New("authorization header format must be Bearer {token}")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(headerParts[1], claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secretKey, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.ExpiresAt == nil || time.Now().After(claims.ExpiresAt.Time) {
		return nil, jwt.ErrTokenExpired
	}
	if claims.Issuer != jwtCfg.Issuer {
		return nil, fmt.Errorf("token issuer mismatch: %q", claims.Issuer)
	}
	if jwtCfg.Audience != "" && !api.VerifyAudience(claims.Audience, jwtCfg.Audience) {
		return nil, errors.New("token audience mismatch")
	}
	if claims.UserID == "" {
		return nil, errors.New("token has no user id")
	}
	return claims, nil
}

func tokenErrorMessage(err error) string {
	switch {
	case errors.Is(err, errMissingToken):
		return "Authorization header required"
	case errors.Is(err, jwt.ErrTokenExpired):
		return "Token has expired"
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "Malformed token"
	case errors.Is(err, jwt.ErrSignatureInvalid), errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "Invalid token signature"
	default:
		return "Invalid or expired token"
	}
}

func GetUserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok
}

// WithUserID is used by channels that identify the user without a token.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}
