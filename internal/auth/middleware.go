// Package auth guards the admin API with a shared key sent in X-API-Key.
package auth

import (
	"crypto/subtle"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const HeaderAPIKey = "X-API-Key"

// PublicPrefixes are served without a key, each as an exact path or a
// directory ("/swagger/index.html").
var PublicPrefixes = []string{"/healthz", "/metrics", "/swagger"}

// APIKey returns a middleware that rejects requests whose X-API-Key does not
// match key. An empty key disables the check.
func APIKey(key string) echo.MiddlewareFunc {
	if key == "" {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	want := []byte(key)
	return middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
		Skipper:   isPublic,
		KeyLookup: "header:" + HeaderAPIKey,
		Validator: func(got string, _ echo.Context) (bool, error) {
			return subtle.ConstantTimeCompare([]byte(got), want) == 1, nil
		},
	})
}

func isPublic(c echo.Context) bool {
	path := c.Request().URL.Path
	for _, p := range PublicPrefixes {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}
