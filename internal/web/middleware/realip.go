package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// ProxySet is the set of proxy networks whose forwarding headers are trusted.
type ProxySet []netip.Prefix

// ParseProxies parses CIDRs and bare addresses. Invalid entries are logged
// and skipped.
func ParseProxies(entries []string) ProxySet {
	var set ProxySet
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if p, err := netip.ParsePrefix(entry); err == nil {
			set = append(set, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			slog.Warn("realip: invalid trusted proxy, skipping", "proxy", entry, "error", err)
			continue
		}
		set = append(set, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return set
}

// Contains reports whether addr belongs to a trusted proxy.
func (s ProxySet) Contains(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, p := range s {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// TrustedRealIP rewrites RemoteAddr to the client address reported by
// X-Real-IP or X-Forwarded-For, but only when the connection comes from a
// trusted proxy. The rate limiter and request log key on the result.
//
// X-Forwarded-For is walked from the right, skipping trusted hops, so a
// client cannot choose its own address by prepending entries.
func TrustedRealIP(trusted []string) func(http.Handler) http.Handler {
	proxies := ParseProxies(trusted)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(proxies) > 0 {
				if peer, ok := parseAddr(r.RemoteAddr); ok && proxies.Contains(peer) {
					if client, ok := forwardedClient(r.Header, proxies); ok {
						r.RemoteAddr = client.String()
					}
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// forwardedClient picks the client address from proxy headers.
func forwardedClient(h http.Header, proxies ProxySet) (netip.Addr, bool) {
	if v := h.Get("X-Real-IP"); v != "" {
		return parseAddr(v)
	}
	xff := h.Values("X-Forwarded-For")
	if len(xff) == 0 {
		return netip.Addr{}, false
	}
	hops := strings.Split(strings.Join(xff, ","), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		addr, ok := parseAddr(hops[i])
		if !ok {
			return netip.Addr{}, false
		}
		if i == 0 || !proxies.Contains(addr) {
			return addr, true
		}
	}
	return netip.Addr{}, false
}

// parseAddr accepts "ip" and "ip:port" forms.
func parseAddr(s string) (netip.Addr, bool) {
	s = strings.TrimSpace(s)
	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}
