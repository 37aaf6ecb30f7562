// Package urlnorm normalizes http(s) URLs into the canonical form used as
// the dedup key for search results and persisted items.
package urlnorm

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Normalize canonicalizes an http(s) URL for dedup comparison:
// scheme and host are lowercased, the default port is stripped, the fragment
// is removed, utm_* tracking parameters are dropped, remaining query params
// are sorted by key, and the trailing slash is removed from non-root paths.
// It does NOT upgrade http to https (different servers, different resources).
func Normalize(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("urlnorm: empty URL")
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("urlnorm: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		// Synthetic schemes (virtual://) pass through untouched.
		return raw, nil
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("urlnorm: missing host")
	}

	parsed.Scheme = scheme
	parsed.Host = strings.ToLower(parsed.Host)

	// Strip default ports.
	if (scheme == "http" && strings.HasSuffix(parsed.Host, ":80")) ||
		(scheme == "https" && strings.HasSuffix(parsed.Host, ":443")) {
		parsed.Host = parsed.Host[:strings.LastIndexByte(parsed.Host, ':')]
	}

	parsed.Fragment = ""

	// Drop tracking params, sort the rest for a stable key.
	if parsed.RawQuery != "" {
		params := parsed.Query()
		keys := make([]string, 0, len(params))
		for k := range params {
			if strings.HasPrefix(strings.ToLower(k), "utm_") {
				continue
			}
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var buf strings.Builder
		for i, k := range keys {
			vals := params[k]
			sort.Strings(vals)
			for j, v := range vals {
				if i > 0 || j > 0 {
					buf.WriteByte('&')
				}
				buf.WriteString(url.QueryEscape(k))
				buf.WriteByte('=')
				buf.WriteString(url.QueryEscape(v))
			}
		}
		parsed.RawQuery = buf.String()
	}

	// Trailing slash is meaningless on non-root paths.
	if parsed.Path != "/" && parsed.Path != "" {
		parsed.Path = strings.TrimRight(parsed.Path, "/")
	}

	return parsed.String(), nil
}

// MustNormalize normalizes raw, falling back to the input on error.
// Convenient where a best-effort key is acceptable.
func MustNormalize(raw string) string {
	n, err := Normalize(raw)
	if err != nil {
		return raw
	}
	return n
}
