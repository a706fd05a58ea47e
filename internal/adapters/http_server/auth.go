package httpserver

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"stayfinder/internal/domain"
)

type ctxKey int

const sessionKey ctxKey = iota

// SessionFromContext returns the caller's session when the request passed
// the Auth middleware.
func SessionFromContext(ctx context.Context) (domain.Session, bool) {
	s, ok := ctx.Value(sessionKey).(domain.Session)
	return s, ok
}

// Auth validates a Bearer JWT (HS256) and injects the session built from its
// sub and role claims. Identity is carried explicitly from here on; nothing
// downstream reads ambient auth state.
func Auth(secret string) func(http.Handler) http.Handler {
	key := []byte(secret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if auth == "" {
				writeProblem(w, http.StatusUnauthorized, "Unauthorized", "missing authorization")
				return
			}
			parts := strings.Fields(auth)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				writeProblem(w, http.StatusUnauthorized, "Unauthorized", "invalid authorization format")
				return
			}

			claims := jwt.MapClaims{}
			_, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (any, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrTokenSignatureInvalid
				}
				return key, nil
			}, jwt.WithLeeway(5*time.Second))
			if err != nil {
				writeProblem(w, http.StatusUnauthorized, "Unauthorized", "invalid token")
				return
			}

			sess, ok := sessionFromClaims(claims)
			if !ok {
				writeProblem(w, http.StatusUnauthorized, "Unauthorized", "token missing subject")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey, sess)))
		})
	}
}

func sessionFromClaims(claims jwt.MapClaims) (domain.Session, bool) {
	var userID int64
	switch sub := claims["sub"].(type) {
	case string:
		n, err := strconv.ParseInt(sub, 10, 64)
		if err != nil {
			return domain.Session{}, false
		}
		userID = n
	case float64:
		userID = int64(sub)
	default:
		return domain.Session{}, false
	}

	role := domain.RoleGuest
	if s, ok := claims["role"].(string); ok && s != "" {
		role = domain.Role(s)
	}
	return domain.Session{UserID: userID, Role: role}, true
}
