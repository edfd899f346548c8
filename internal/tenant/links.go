package tenant

import (
	"strings"
)

// LinkBuilder produces absolute URLs into a tenant's pages, either as
// https://{tenant}.{root}/path or https://{root}/{tenant}/path.
type LinkBuilder struct {
	Scheme     string
	RootDomain string
	Subdomains bool
}

// URL returns the absolute link to path inside tenant.
func (b LinkBuilder) URL(tenant, path string) string {
	scheme := b.Scheme
	if scheme == "" {
		scheme = "https"
	}
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if b.Subdomains {
		return scheme + "://" + tenant + "." + b.RootDomain + path
	}
	return scheme + "://" + b.RootDomain + "/" + tenant + path
}

// RootURL returns a link to a path outside any tenant, such as the
// invitation acceptance page.
func (b LinkBuilder) RootURL(path string) string {
	scheme := b.Scheme
	if scheme == "" {
		scheme = "https"
	}
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return scheme + "://" + b.RootDomain + path
}
