package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"sync"
)

// AuthConfig holds the Basic Auth credentials and the paths served without
// them. It is swapped as a whole on reload.
type AuthConfig struct {
	mu       sync.RWMutex
	enabled  bool
	user     string
	password string
	exact    map[string]bool
	prefixes []string
}

// NewAuthConfig creates an auth config. Public paths ending in "*" match
// by prefix ("/debug/*" matches "/debug/vars").
func NewAuthConfig(enabled bool, user, password string, publicPaths []string) *AuthConfig {
	c := &AuthConfig{}
	c.Update(enabled, user, password, publicPaths)
	return c
}

// Update replaces the credentials and public paths.
func (c *AuthConfig) Update(enabled bool, user, password string, publicPaths []string) {
	exact := make(map[string]bool)
	var prefixes []string
	for _, p := range publicPaths {
		if strings.HasSuffix(p, "*") {
			prefixes = append(prefixes, strings.TrimSuffix(p, "*"))
		} else {
			exact[p] = true
		}
	}

	c.mu.Lock()
	c.enabled = enabled
	c.user = user
	c.password = password
	c.exact = exact
	c.prefixes = prefixes
	c.mu.Unlock()
}

// Enabled reports whether credentials are required.
func (c *AuthConfig) Enabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.enabled
}

// check reports whether r may pass.
func (c *AuthConfig) check(r *http.Request) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.enabled || c.exact[r.URL.Path] {
		return true
	}
	for _, prefix := range c.prefixes {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return true
		}
	}

	user, pass, ok := r.BasicAuth()
	if !ok {
		return false
	}
	userMatch := subtle.ConstantTimeCompare([]byte(user), []byte(c.user)) == 1
	passMatch := subtle.ConstantTimeCompare([]byte(pass), []byte(c.password)) == 1
	return userMatch && passMatch
}

// Auth requires Basic Auth on every path config does not list as public.
func Auth(config *AuthConfig) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !config.check(r) {
				w.Header().Set("WWW-Authenticate", `Basic realm="cubetime", charset="UTF-8"`)
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
