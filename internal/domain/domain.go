// Package domain canonicalizes domain and URL strings for citation matching.
// It deliberately does no DNS resolution or validity checking: two strings
// refer to the same site iff their normalized forms are equal or one contains
// the other. The containment rule is a deliberate loose-match policy: target
// lists are often bare domains while providers cite full paths, and the same
// rule backs free-text prompt-to-cluster matching in reporting.
package domain

import (
	"net/url"
	"strings"
)

// Normalize returns the canonical comparable form of a raw domain or URL:
// lower-cased, scheme stripped, leading "www." stripped, one trailing "/"
// stripped.
func Normalize(input string) string {
	cleaned := strings.ToLower(strings.TrimSpace(input))
	cleaned = strings.TrimPrefix(cleaned, "http://")
	cleaned = strings.TrimPrefix(cleaned, "https://")
	cleaned = strings.TrimPrefix(cleaned, "www.")
	cleaned = strings.TrimSuffix(cleaned, "/")
	return cleaned
}

// SameSite reports whether two domain strings refer to the same site under
// the containment policy: equal normalized forms, or one normalized form a
// substring of the other. Empty strings never match.
func SameSite(a, b string) bool {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return false
	}
	return strings.Contains(na, nb) || strings.Contains(nb, na)
}

// NormalizeURL rewrites a URL into a stable comparable form:
// "scheme://normalized-domain/path" with the trailing slash dropped, query
// and fragment preserved. Returns "" when the input has no host.
func NormalizeURL(raw string) string {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return ""
	}
	u, err := url.Parse(cleaned)
	if err != nil || u.Scheme == "" {
		u, err = url.Parse("https://" + cleaned)
		if err != nil {
			return ""
		}
	}
	if u.Host == "" {
		return ""
	}
	scheme := u.Scheme
	if scheme == "" {
		scheme = "https"
	}
	normalized := scheme + "://" + Normalize(u.Host)
	path := strings.TrimSuffix(u.Path, "/")
	if path != "" && path != "/" {
		normalized += path
	}
	if u.RawQuery != "" {
		normalized += "?" + u.RawQuery
	}
	if u.Fragment != "" {
		normalized += "#" + u.Fragment
	}
	return normalized
}

// FromURL extracts the normalized domain from a URL or bare domain string.
func FromURL(raw string) string {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return ""
	}
	u, err := url.Parse(cleaned)
	if err != nil || u.Scheme == "" {
		u, err = url.Parse("https://" + cleaned)
		if err != nil {
			return ""
		}
	}
	host := u.Host
	if host == "" {
		host = u.Path
	}
	host, _, _ = strings.Cut(host, "/")
	return Normalize(host)
}

// StripScheme removes a leading http:// or https:// without other changes.
func StripScheme(raw string) string {
	raw = strings.TrimPrefix(raw, "http://")
	return strings.TrimPrefix(raw, "https://")
}
