package bridge

import (
	"strings"

	"github.com/cvette/pmflow/internal/framework"
)

type cookiePair struct {
	name  string
	value string
}

// parseCookieHeaders splits Cookie header values into name/value pairs,
// in order. Each header is split on ";" and each part on the first "=".
// Parts with an empty name are skipped.
func parseCookieHeaders(headers []string) []cookiePair {
	var pairs []cookiePair

	for _, header := range headers {
		for _, part := range strings.Split(header, ";") {
			name, value, _ := strings.Cut(strings.TrimSpace(part), "=")

			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}

			pairs = append(pairs, cookiePair{
				name:  name,
				value: strings.TrimSpace(value),
			})
		}
	}

	return pairs
}

// formatCookies renders native cookies as Set-Cookie header values.
func formatCookies(cookies []*framework.Cookie) []string {
	values := make([]string, 0, len(cookies))
	for _, c := range cookies {
		values = append(values, c.String())
	}
	return values
}
