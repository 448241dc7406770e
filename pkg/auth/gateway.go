package auth

import (
	"net"
	"net/http"
	"strings"

	"mesgd/pkg/config"
	"mesgd/pkg/logger"
	"mesgd/pkg/utils"
)

// Middleware builds the request gateway: CORS, IP whitelisting, API key
// authentication, identity extraction and per-key rate limiting. Health
// probes and the metrics endpoint pass unauthenticated so probes and
// scrapers need no credentials.
func Middleware(cfg config.SecurityConfig) func(http.Handler) http.Handler {
	keys := make(map[string]struct{}, len(cfg.APIKeys.Keys))
	for _, k := range cfg.APIKeys.Keys {
		if k != "" {
			keys[k] = struct{}{}
		}
	}
	// rate limiters keyed by api key or remote ip
	limiters := &limiterPool{rps: cfg.RateLimit.RPS, burst: cfg.RateLimit.Burst}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// log request (redacts sensitive headers)
			logger.LogRequest(r)

			// cors preflight
			origin := r.Header.Get("Origin")
			if origin != "" && originAllowed(origin, cfg.CORS.AllowedOrigins) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
				w.Header().Set("Access-Control-Max-Age", "600")
				w.Header().Set("Access-Control-Allow-Headers", "Authorization,Content-Type,X-API-Key,"+IdentityHeader)
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			// ip whitelist
			if len(cfg.IPWhitelist) > 0 {
				ip := clientIP(r)
				if !ipWhitelisted(ip, cfg.IPWhitelist) {
					utils.JSONError(w, http.StatusForbidden, "forbidden")
					logger.Warn("request_blocked", "reason", "ip_not_whitelisted", "ip", ip, "path", r.URL.Path)
					return
				}
			}

			// probes and scrapers stay open
			if r.Method == http.MethodGet && probePath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			key, hasKey := apiKey(r)
			if !hasKey && !cfg.APIKeys.AllowUnauth {
				utils.JSONError(w, http.StatusUnauthorized, "unauthorized")
				logger.Warn("request_unauthorized", "path", r.URL.Path, "remote", r.RemoteAddr)
				return
			}
			if hasKey {
				if _, ok := keys[key]; !ok {
					utils.JSONError(w, http.StatusUnauthorized, "unauthorized")
					logger.Warn("request_unauthorized", "reason", "unknown_api_key", "path", r.URL.Path)
					return
				}
			}

			// rate limiting, keyed by api key or client ip
			limKey := key
			if limKey == "" {
				limKey = clientIP(r)
			}
			if !limiters.Allow(limKey) {
				utils.JSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
				logger.Warn("rate_limited", "has_api_key", hasKey, "path", r.URL.Path)
				return
			}

			// the acting identity comes from the caller
			if uid := strings.TrimSpace(r.Header.Get(IdentityHeader)); uid != "" {
				r = r.WithContext(WithIdentity(r.Context(), uid))
			}

			logger.Debug("request_allowed", "method", r.Method, "path", r.URL.Path, "has_api_key", hasKey)
			next.ServeHTTP(w, r)
		})
	}
}

func probePath(p string) bool {
	return p == "/healthz" || p == "/readyz" || p == "/metrics"
}

func apiKey(r *http.Request) (string, bool) {
	// prefer authorization: bearer <key>, fallback to x-api-key
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		if k := strings.TrimSpace(auth[7:]); k != "" {
			return k, true
		}
	}
	if k := r.Header.Get("X-API-Key"); k != "" {
		return k, true
	}
	return "", false
}

func originAllowed(origin string, allowed []string) bool {
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(a, origin) {
			return true
		}
	}
	return false
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func ipWhitelisted(ip string, list []string) bool {
	for _, w := range list {
		if ip == w {
			return true
		}
	}
	return false
}
