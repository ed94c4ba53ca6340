package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid bearer token")

// Verifier checks an opaque bearer credential. The core treats authorization
// as an external collaborator; this interface is its seam.
type Verifier interface {
	Verify(ctx context.Context, token string) error
}

// JWTVerifier validates HMAC-signed JWTs against a shared secret.
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

func (v *JWTVerifier) Verify(ctx context.Context, tokenString string) error {
	if len(v.secret) == 0 {
		return ErrInvalidToken
	}

	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return ErrInvalidToken
	}
	return nil
}

// BearerAuth extracts the Authorization bearer token and hands it to the
// verifier. Failures never reach the handlers.
func BearerAuth(v Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if auth == "" {
				writeError(w, http.StatusUnauthorized, "missing_authorization", "Authorization header is required")
				return
			}

			token := strings.TrimPrefix(auth, "Bearer ")
			if err := v.Verify(r.Context(), token); err != nil {
				writeError(w, http.StatusUnauthorized, "invalid_token", "bearer token was rejected")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
