package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// openPaths stay reachable without a token.
var openPaths = map[string]bool{
	"/health":       true,
	"/metrics":      true,
	"/openapi.json": true,
}

// WithBearerAuth requires an HS256 JWT signed with secret on every route
// except /health, /metrics and /openapi.json. An empty secret leaves the server open.
func WithBearerAuth(secret []byte) Option {
	return func(s *Server) {
		if len(secret) > 0 {
			s.secret = secret
		}
	}
}

// IssueToken signs a token for subject that expires after ttl.
// A zero ttl issues a token without expiry.
func IssueToken(secret []byte, subject string, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("empty signing secret")
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:  subject,
		Issuer:   "rux",
		IssuedAt: jwt.NewNumericDate(now),
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	keyFunc := func(*jwt.Token) (any, error) { return s.secret, nil }

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if openPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			s.unauthorized(w, r, errors.New("missing bearer token"))
			return
		}

		claims := &jwt.RegisteredClaims{}
		if _, err := parser.ParseWithClaims(token, claims, keyFunc); err != nil {
			s.unauthorized(w, r, err)
			return
		}
		s.logger.Debug("request authenticated", "subject", claims.Subject, "path", r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) unauthorized(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Warn("authentication failed", "path", r.URL.Path, "method", r.Method, "err", err)
	w.Header().Set("WWW-Authenticate", `Bearer realm="rux"`)
	s.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
}
