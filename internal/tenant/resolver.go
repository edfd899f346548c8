// Package tenant derives the tenant of an inbound request from its host and
// path, rewrites subdomain requests onto tenant-scoped routes, and builds
// tenant links for outbound email.
package tenant

import (
	"net"
	"strings"
)

// Resolution is the outcome of resolving a host/path pair. An empty Tenant
// means no tenant could be derived.
type Resolution struct {
	Tenant      string
	IsSubdomain bool
	Hostname    string
}

// HasTenant reports whether a tenant was resolved.
func (r Resolution) HasTenant() bool {
	return r.Tenant != ""
}

// Resolve derives the tenant from host and path. A host with at least three
// labels, whose first label is not "localhost" and which is not an IPv4
// literal, yields its first label as a subdomain tenant. Otherwise the first
// non-empty path segment is the tenant. Resolve is pure so it can serve both
// request routing and link generation.
func Resolve(host, path string) Resolution {
	hostname := Hostname(host)
	res := Resolution{Hostname: hostname}

	labels := strings.Split(hostname, ".")
	if len(labels) >= 3 && labels[0] != "" && labels[0] != "localhost" && !isIPv4(hostname) {
		res.Tenant = labels[0]
		res.IsSubdomain = true
		return res
	}

	if seg := firstSegment(path); seg != "" {
		res.Tenant = seg
	}
	return res
}

// Hostname strips any port and brackets from host and lower-cases it.
func Hostname(host string) string {
	h := strings.TrimSpace(host)
	if strings.Contains(h, ":") {
		if split, _, err := net.SplitHostPort(h); err == nil {
			h = split
		}
	}
	h = strings.TrimSuffix(strings.TrimPrefix(h, "["), "]")
	return strings.ToLower(h)
}

func isIPv4(hostname string) bool {
	ip := net.ParseIP(hostname)
	return ip != nil && ip.To4() != nil && !strings.Contains(hostname, ":")
}

func firstSegment(path string) string {
	for _, seg := range strings.Split(path, "/") {
		if seg != "" {
			return seg
		}
	}
	return ""
}

// DefaultBypassPrefixes are the path prefixes that are never tenant-owned:
// API routes, static assets, auth pages and the bootstrap setup page.
var DefaultBypassPrefixes = []string{
	"/api",
	"/static",
	"/assets",
	"/auth",
	"/setup",
	"/healthz",
	"/favicon.ico",
}

// Bypass reports whether path falls under one of prefixes. Matching is
// segment-aware: "/api" matches "/api" and "/api/v1" but not "/apiary".
func Bypass(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}
