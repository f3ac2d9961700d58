package server

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"
)

// errURLNotAllowed is reported for parse URLs outside the configured hosts
// or resolving to a loopback, private or link-local address.
var errURLNotAllowed = errors.New("url not allowed")

// checkOrigin accepts requests without an Origin header (non-browser
// clients), same-host origins and the listed origins. Entries may be a full
// origin ("https://app.example") or a host ("app.example:8443").
func checkOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil || u.Host == "" {
			return false
		}
		if strings.EqualFold(u.Host, r.Host) {
			return true
		}
		for _, a := range allowed {
			if strings.EqualFold(a, origin) || strings.EqualFold(a, u.Host) {
				return true
			}
		}
		return false
	}
}

func (s *Server) hostAllowed(host string) bool {
	if len(s.urlHosts) == 0 {
		return true
	}
	for _, h := range s.urlHosts {
		if strings.EqualFold(h, host) {
			return true
		}
	}
	return false
}

func blockedIP(ip net.IP) bool {
	return ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsInterfaceLocalMulticast() ||
		ip.IsMulticast() ||
		ip.IsUnspecified()
}

// publicOnlyClient returns a copy of base whose connections may only reach
// public addresses. The check runs on the resolved address of every dial,
// redirects included. Proxies are bypassed so the check sees the real peer.
func publicOnlyClient(base *http.Client) *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
		Control: func(network, address string, _ syscall.RawConn) error {
			host, _, err := net.SplitHostPort(address)
			if err != nil {
				return err
			}
			ip := net.ParseIP(host)
			if ip == nil || blockedIP(ip) {
				return fmt.Errorf("%w: address %s", errURLNotAllowed, host)
			}
			return nil
		},
	}

	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.Proxy = nil
	tr.DialContext = dialer.DialContext

	return &http.Client{
		Transport:     tr,
		CheckRedirect: base.CheckRedirect,
		Jar:           base.Jar,
		Timeout:       base.Timeout,
	}
}
