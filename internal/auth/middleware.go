package auth

import (
	"encoding/json"
	"net/http"
	"strings"
)

// Skipper reports requests that bypass token verification entirely.
type Skipper func(r *http.Request) bool

// Middleware verifies an optional bearer token. Anonymous requests continue without
// claims so public endpoints can share the router; RequireIdentity guards the rest.
type Middleware struct {
	Config  Config
	Skipper Skipper
}

// NewMiddleware builds a Middleware verifying tokens against cfg. skipper may be nil.
func NewMiddleware(cfg Config, skipper Skipper) Middleware {
	return Middleware{Config: cfg, Skipper: skipper}
}

// SkipPaths skips requests whose path matches one of paths exactly.
func SkipPaths(paths ...string) Skipper {
	return func(r *http.Request) bool {
		for _, p := range paths {
			if r.URL.Path == p {
				return true
			}
		}
		return false
	}
}

// Wrap is shaped for chi's Use.
func (m Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Skipper != nil && m.Skipper(r) {
			next.ServeHTTP(w, r)
			return
		}

		token, present := bearerToken(r)
		if !present {
			next.ServeHTTP(w, r)
			return
		}
		if token == "" {
			unauthorized(w, ErrInvalidToken.Error())
			return
		}

		claims, err := Parse(token, m.Config)
		if err != nil {
			unauthorized(w, err.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

// RequireIdentity rejects anonymous requests with 401.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if Subject(r.Context()) == "" {
			unauthorized(w, ErrMissingToken.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// bearerToken returns the token and whether an Authorization header was sent at all.
// A header with another scheme yields an empty token.
func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", false
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", true
	}
	return strings.TrimSpace(token), true
}

func unauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="fitlog"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"type": "unauthorized", "detail": detail})
}
