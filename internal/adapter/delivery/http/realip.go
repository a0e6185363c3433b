package http

import (
	"net/http"
	"net/netip"
	"strings"
)

var (
	xRealIP       = http.CanonicalHeaderKey("X-Real-IP")
	xForwardedFor = http.CanonicalHeaderKey("X-Forwarded-For")
)

// realIP replaces r.RemoteAddr with the forwarded client address, but only
// when the peer is one of the trusted proxies. Requests from any other peer
// keep their socket address, so forwarding headers cannot change the ip
// identity of a caller.
func realIP(trusted []netip.Prefix) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ip, ok := forwardedClient(r, trusted); ok {
				r.RemoteAddr = ip
			}

			next.ServeHTTP(w, r)
		})
	}
}

func forwardedClient(r *http.Request, trusted []netip.Prefix) (string, bool) {
	if len(trusted) == 0 {
		return "", false
	}

	peer, ok := parseAddr(r.RemoteAddr)
	if !ok || !isTrusted(peer, trusted) {
		return "", false
	}

	if v := strings.TrimSpace(r.Header.Get(xRealIP)); v != "" {
		if addr, err := netip.ParseAddr(v); err == nil {
			return addr.Unmap().String(), true
		}
	}

	// The rightmost hop not appended by a trusted proxy is the client.
	hops := strings.Split(strings.Join(r.Header.Values(xForwardedFor), ","), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}

		addr, err := netip.ParseAddr(hop)
		if err != nil {
			return "", false
		}
		addr = addr.Unmap()

		if i == 0 || !isTrusted(addr, trusted) {
			return addr.String(), true
		}
	}

	return "", false
}

func parseAddr(remoteAddr string) (netip.Addr, bool) {
	if ap, err := netip.ParseAddrPort(remoteAddr); err == nil {
		return ap.Addr().Unmap(), true
	}
	if addr, err := netip.ParseAddr(remoteAddr); err == nil {
		return addr.Unmap(), true
	}

	return netip.Addr{}, false
}

func isTrusted(addr netip.Addr, trusted []netip.Prefix) bool {
	for _, p := range trusted {
		if p.Contains(addr) {
			return true
		}
	}

	return false
}
