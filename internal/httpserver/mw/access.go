package mw

import (
	"net/http"
	"slices"
	"strings"

	"github.com/MrSnakeDoc/marky/internal/logger"
	"github.com/MrSnakeDoc/marky/internal/netutil"
)

// AccessPolicy restricts a route group by Host header and client network.
// An empty list turns that check off.
type AccessPolicy struct {
	Hosts      []string // exact names or "*.example.com"
	CIDRs      []string
	TrustProxy bool // resolve the client IP from proxy headers
}

// Access rejects requests outside the policy with 403.
func Access(p AccessPolicy, log logger.Logger) func(http.Handler) http.Handler {
	nets := netutil.NewIPMatcher(p.CIDRs)
	if len(p.Hosts) == 0 && nets.IsEmpty() {
		return func(next http.Handler) http.Handler { return next }
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(p.Hosts) > 0 {
				host := strings.ToLower(netutil.ParseHostNoPort(r.Host))
				if !slices.ContainsFunc(p.Hosts, func(pattern string) bool { return matchHost(host, pattern) }) {
					log.Warn("host not allowed", logger.String("host", host), logger.String("path", r.URL.Path))
					writeError(w, http.StatusForbidden, ErrorBody{Error: http.StatusText(http.StatusForbidden), Code: "host_not_allowed"})
					return
				}
			}
			if !nets.IsEmpty() {
				ip := netutil.ClientIP(r, p.TrustProxy)
				if !nets.Allow(ip) {
					log.Warn("client network not allowed", logger.String("client_ip", ip), logger.String("path", r.URL.Path))
					writeError(w, http.StatusForbidden, ErrorBody{Error: http.StatusText(http.StatusForbidden), Code: "network_not_allowed"})
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// matchHost compares host against an exact or "*." pattern. A port on
// the pattern is ignored.
func matchHost(host, pattern string) bool {
	pattern = strings.ToLower(netutil.ParseHostNoPort(pattern))
	if suffix, ok := strings.CutPrefix(pattern, "*"); ok && strings.HasPrefix(suffix, ".") {
		return strings.HasSuffix(host, suffix)
	}
	return host == pattern
}
