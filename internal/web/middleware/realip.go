package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/JonMunkholm/csvimport/internal/core"
)

// TrustedRealIP resolves the client IP and stores it, together with the
// User-Agent, in the request context (see core.ClientIPFromContext).
//
// X-Real-IP and X-Forwarded-For are honoured ONLY when the connection comes
// from one of trustedCIDRs; otherwise the connection address is used. This
// keeps untrusted clients from spoofing their IP to dodge rate limiting.
// r.RemoteAddr is rewritten to the bare resolved IP.
func TrustedRealIP(trustedCIDRs []string) func(http.Handler) http.Handler {
	trusted := parseTrusted(trustedCIDRs)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r, trusted)
			if ip != "" {
				r.RemoteAddr = ip
			}

			ctx := core.ContextWithClientIP(r.Context(), ip)
			ctx = core.ContextWithUserAgent(ctx, r.UserAgent())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// parseTrusted parses CIDRs once at startup. Bare IPs are accepted as
// single-host networks; invalid entries are logged and skipped.
func parseTrusted(cidrs []string) []*net.IPNet {
	var nets []*net.IPNet
	for _, cidr := range cidrs {
		cidr = strings.TrimSpace(cidr)
		if cidr == "" {
			continue
		}

		_, network, err := net.ParseCIDR(cidr)
		if err == nil {
			nets = append(nets, network)
			continue
		}

		ip := net.ParseIP(cidr)
		if ip == nil {
			slog.Warn("realip: invalid trusted proxy CIDR, skipping", "cidr", cidr, "error", err)
			continue
		}
		bits := 128
		if ip.To4() != nil {
			ip, bits = ip.To4(), 32
		}
		nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
	}
	return nets
}

// clientIP returns the forwarded client IP for trusted proxies and the
// connection IP otherwise.
func clientIP(r *http.Request, trusted []*net.IPNet) string {
	remote := extractIP(r.RemoteAddr)
	if remote == nil {
		return ""
	}
	if !isTrusted(remote, trusted) {
		return remote.String()
	}

	if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
		return ip.String()
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
			return ip.String()
		}
	}
	return remote.String()
}

// extractIP parses an IP address from a host:port string or plain IP.
func extractIP(addr string) net.IP {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return net.ParseIP(host)
	}
	return net.ParseIP(addr)
}

// isTrusted checks if an IP is within any of the trusted networks.
func isTrusted(ip net.IP, trusted []*net.IPNet) bool {
	for _, network := range trusted {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}
