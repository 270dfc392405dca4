package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// Middleware authenticates requests with a bearer token and stores the claims
// in the request context. Paths in Config.PublicPaths pass through untouched.
type Middleware struct {
	cfg    Config
	public map[string]struct{}
}

// NewMiddleware builds a Middleware from cfg.
func NewMiddleware(cfg Config) *Middleware {
	public := make(map[string]struct{}, len(cfg.PublicPaths))
	for _, path := range cfg.PublicPaths {
		if path = strings.TrimSpace(path); path != "" {
			public[path] = struct{}{}
		}
	}
	return &Middleware{cfg: cfg, public: public}
}

// Public reports whether path is served without a token.
func (m *Middleware) Public(path string) bool {
	_, ok := m.public[path]
	return ok
}

// Wrap wraps an http.Handler with authentication.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Public(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := bearerToken(r.Header.Get("Authorization"))
		var claims *Claims
		if err == nil {
			claims, err = Parse(token, m.cfg)
		}
		if err != nil {
			unauthorized(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

func bearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ErrMissingToken
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", ErrInvalidToken
	}
	return strings.TrimSpace(token), nil
}

func unauthorized(w http.ResponseWriter, err error) {
	code := "invalid_token"
	if errors.Is(err, ErrMissingToken) {
		code = "missing_token"
	}
	w.Header().Set("WWW-Authenticate", `Bearer realm="coach"`)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"type": code, "detail": err.Error()})
}
