// Package shield provides the HTTP middleware stack of the public feed
// server: security headers, HEAD support and per-client rate limiting.
//
// Usage:
//
//	r := chi.NewRouter()
//	for _, mw := range shield.Stack(cfg, "/health", "/metrics") {
//	    r.Use(mw)
//	}
package shield

import "net/http"

// Config groups the shield settings read from the http section of the
// configuration file.
type Config struct {
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	// Headers overrides DefaultHeaders when any field is set.
	Headers HeaderConfig `yaml:"headers"`
}

// Stack returns the middleware in order: HeadToGet → SecurityHeaders →
// RateLimiter. Paths starting with one of exclude bypass rate limiting.
func Stack(cfg Config, exclude ...string) []func(http.Handler) http.Handler {
	headers := cfg.Headers
	if headers == (HeaderConfig{}) {
		headers = DefaultHeaders()
	}
	return []func(http.Handler) http.Handler{
		HeadToGet,
		SecurityHeaders(headers),
		NewRateLimiter(cfg.RateLimit, exclude...).Middleware,
	}
}
