package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/frahmantamala/moviemix/internal"
	"github.com/frahmantamala/moviemix/internal/transport"
	"github.com/frahmantamala/moviemix/pkg/logger"
	"github.com/golang-jwt/jwt/v5"
)

// OwnerClaims identify the caller; tokens are issued by the identity
// provider, this service only verifies them.
type OwnerClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

type TokenVerifier struct {
	key    interface{}
	parser *jwt.Parser
}

// NewTokenVerifier prefers the PEM public key (RSA or ECDSA) and falls back
// to the shared HMAC secret.
func NewTokenVerifier(cfg internal.SecurityConfig) (*TokenVerifier, error) {
	opts := []jwt.ParserOption{jwt.WithExpirationRequired()}
	if cfg.JWTIssuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.JWTIssuer))
	}

	var key interface{}
	switch {
	case cfg.JWTPublicKey != "":
		pem := []byte(strings.ReplaceAll(cfg.JWTPublicKey, `\n`, "\n"))
		if rsaKey, err := jwt.ParseRSAPublicKeyFromPEM(pem); err == nil {
			key = rsaKey
			opts = append(opts, jwt.WithValidMethods([]string{"RS256", "RS384", "RS512"}))
		} else if ecKey, ecErr := jwt.ParseECPublicKeyFromPEM(pem); ecErr == nil {
			key = ecKey
			opts = append(opts, jwt.WithValidMethods([]string{"ES256", "ES384", "ES512"}))
		} else {
			return nil, fmt.Errorf("parse jwt public key: %w", err)
		}
	case cfg.JWTSecret != "":
		key = []byte(cfg.JWTSecret)
		opts = append(opts, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
	default:
		return nil, errors.New("either jwt_public_key or jwt_secret is required")
	}

	return &TokenVerifier{key: key, parser: jwt.NewParser(opts...)}, nil
}

// Owner returns the email claim, or the subject when no email is present.
func (v *TokenVerifier) Owner(tokenString string) (string, error) {
	claims := &OwnerClaims{}
	_, err := v.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return v.key, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", internal.ErrTokenExpired
		}
		return "", internal.ErrInvalidToken
	}

	owner := strings.ToLower(strings.TrimSpace(claims.Email))
	if owner == "" {
		owner = claims.Subject
	}
	if owner == "" {
		return "", internal.ErrInvalidToken
	}
	return owner, nil
}

// OwnerAuth rejects requests without a valid bearer token and puts the
// owner identity on the request context.
func OwnerAuth(verifier *TokenVerifier, base *transport.BaseHandler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := base.ExtractTokenFromHeader(r)
			if token == "" {
				base.Logger.Warn("auth middleware: missing authorization token", "path", r.URL.Path)
				base.HandleError(w, internal.NewUnauthorizedError("missing authorization token", internal.ErrCodeInvalidToken))
				return
			}

			owner, err := verifier.Owner(token)
			if err != nil {
				base.Logger.Warn("auth middleware: token rejected", "error", err)
				base.HandleServiceError(w, err)
				return
			}

			ctx := internal.ContextWithOwner(r.Context(), owner)
			ctx = logger.With(ctx, "owner", owner)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
