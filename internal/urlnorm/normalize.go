// Package urlnorm canonicalizes resource URLs. The result is used both as the
// ingestion dedup key and as the storage upsert key, so there is exactly one
// implementation.
package urlnorm

import (
	"net/url"
	"strings"
)

// Normalize lowercases the host, strips trailing slashes from the path and
// keeps scheme, path case and query string verbatim. Inputs that do not parse
// as absolute URLs are lowercased and trimmed of trailing slashes instead.
func Normalize(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fallback(raw)
	}

	path := strings.TrimRight(u.EscapedPath(), "/")
	if path == "" {
		path = "/"
	}

	var b strings.Builder
	b.Grow(len(raw))
	b.WriteString(u.Scheme)
	b.WriteString("://")
	b.WriteString(strings.ToLower(u.Host))
	b.WriteString(path)
	if u.RawQuery != "" {
		b.WriteByte('?')
		b.WriteString(u.RawQuery)
	}
	return b.String()
}

func fallback(raw string) string {
	return strings.TrimRight(strings.ToLower(raw), "/")
}

// Host returns the lowercased hostname of raw without port, or "" when raw is
// not an absolute URL.
func Host(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
