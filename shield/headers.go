package shield

import "net/http"

// HeaderConfig defines the security headers applied to every response.
// Empty fields are not sent.
type HeaderConfig struct {
	CSP                 string `yaml:"csp"`
	XFrameOptions       string `yaml:"x_frame_options"`
	XContentTypeOptions string `yaml:"x_content_type_options"`
	ReferrerPolicy      string `yaml:"referrer_policy"`
	// AllowOrigin sets Access-Control-Allow-Origin so browser feed readers
	// can fetch index.json and the feeds.
	AllowOrigin string `yaml:"allow_origin"`
}

// DefaultHeaders suits a server that only returns JSON and XML.
func DefaultHeaders() HeaderConfig {
	return HeaderConfig{
		CSP:                 "default-src 'none'; frame-ancestors 'none'",
		XFrameOptions:       "DENY",
		XContentTypeOptions: "nosniff",
		ReferrerPolicy:      "no-referrer",
		AllowOrigin:         "*",
	}
}

// SecurityHeaders sets the configured headers before calling next.
func SecurityHeaders(cfg HeaderConfig) func(http.Handler) http.Handler {
	set := []struct{ name, value string }{
		{"Content-Security-Policy", cfg.CSP},
		{"X-Frame-Options", cfg.XFrameOptions},
		{"X-Content-Type-Options", cfg.XContentTypeOptions},
		{"Referrer-Policy", cfg.ReferrerPolicy},
		{"Access-Control-Allow-Origin", cfg.AllowOrigin},
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for _, s := range set {
				if s.value != "" {
					h.Set(s.name, s.value)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
