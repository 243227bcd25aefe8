package httpx

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"
)

// CORSPolicy configures cross-origin access for browser booking widgets.
type CORSPolicy struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           time.Duration
}

var defaultCORSMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}

// WithCORS answers preflight requests and decorates responses for allowed
// origins. With no AllowedOrigins it does nothing.
func WithCORS(cfg CORSPolicy) Middleware {
	origins := normalizeList(cfg.AllowedOrigins)
	if len(origins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	methods := normalizeList(cfg.AllowedMethods)
	if len(methods) == 0 {
		methods = defaultCORSMethods
	}
	allowMethods := strings.Join(methods, ", ")
	allowHeaders := strings.Join(normalizeList(cfg.AllowedHeaders), ", ")
	exposeHeaders := strings.Join(normalizeList(cfg.ExposedHeaders), ", ")
	maxAge := ""
	if secs := int(cfg.MaxAge.Seconds()); secs > 0 {
		maxAge = strconv.Itoa(secs)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			headers := w.Header()
			headers.Add("Vary", "Origin")

			origin := r.Header.Get("Origin")
			allowOrigin, ok := matchOrigin(origin, origins, cfg.AllowCredentials)
			if origin == "" || !ok {
				next.ServeHTTP(w, r)
				return
			}

			headers.Set("Access-Control-Allow-Origin", allowOrigin)
			if cfg.AllowCredentials {
				headers.Set("Access-Control-Allow-Credentials", "true")
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				headers.Add("Vary", "Access-Control-Request-Method")
				headers.Add("Vary", "Access-Control-Request-Headers")
				headers.Set("Access-Control-Allow-Methods", allowMethods)
				if allowHeaders != "" {
					headers.Set("Access-Control-Allow-Headers", allowHeaders)
				}
				if maxAge != "" {
					headers.Set("Access-Control-Max-Age", maxAge)
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			if exposeHeaders != "" {
				headers.Set("Access-Control-Expose-Headers", exposeHeaders)
			}
			next.ServeHTTP(w, r)
		})
	}
}

func normalizeList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// matchOrigin reports the value for Access-Control-Allow-Origin. A wildcard
// is echoed back as the concrete origin when credentials are allowed.
func matchOrigin(origin string, allowed []string, allowCredentials bool) (string, bool) {
	if slices.Contains(allowed, "*") {
		if allowCredentials {
			return origin, true
		}
		return "*", true
	}
	for _, candidate := range allowed {
		if strings.EqualFold(candidate, origin) {
			return origin, true
		}
	}
	return "", false
}
