package httpx

import (
	"net"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/net/idna"

	"github.com/openmesh/meshgate/config"
)

// AllowedHosts returns a middleware enforcing the ALLOWED_HOSTS and
// SECURE_* settings: Host-header validation (IDN hosts are compared in
// their ASCII form), optional HTTPS redirect, and HSTS.
func AllowedHosts(cfg config.HostConfig) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(cfg.AllowedHosts))
	for _, h := range cfg.AllowedHosts {
		if n, ok := normalizeHost(h); ok {
			allowed[n] = true
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(allowed) > 0 {
				host, ok := normalizeHost(r.Host)
				if !ok || !allowed[host] {
					http.Error(w, "invalid host header", http.StatusBadRequest)
					return
				}
			}

			if cfg.SecureSSLRedirect && r.TLS == nil && !strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
				target := "https://" + r.Host + r.URL.RequestURI()
				http.Redirect(w, r, target, http.StatusPermanentRedirect)
				return
			}
			if cfg.SecureHSTSSeconds > 0 {
				w.Header().Set("Strict-Transport-Security", "max-age="+strconv.Itoa(cfg.SecureHSTSSeconds))
			}

			next.ServeHTTP(w, r)
		})
	}
}

// normalizeHost strips any port and lowers the hostname to its ASCII (IDNA)
// form so unicode and punycode spellings of the same host compare equal.
func normalizeHost(hostport string) (string, bool) {
	host := hostport
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		host = h
	}
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if host == "" {
		return "", false
	}
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		// IP literals and bracketed IPv6 fail IDNA mapping but are valid
		// hosts.
		if ip := net.ParseIP(strings.Trim(host, "[]")); ip != nil {
			return host, true
		}
		return "", false
	}
	return ascii, true
}

// CORS returns a middleware implementing the gateway's cross-origin policy.
func CORS(cfg config.CORSConfig) func(http.Handler) http.Handler {
	whitelist := make(map[string]bool, len(cfg.Whitelist))
	for _, o := range cfg.Whitelist {
		whitelist[strings.TrimSuffix(strings.ToLower(o), "/")] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (cfg.AllowAll || whitelist[strings.TrimSuffix(strings.ToLower(origin), "/")]) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				if r.Method == http.MethodOptions {
					w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
					w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
					w.WriteHeader(http.StatusNoContent)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
