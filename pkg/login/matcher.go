package login

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// URLMatcher decides, from the page URL alone, whether the console is
// showing its authenticated area.
type URLMatcher struct {
	area        glob.Glob
	loginMarker string
}

// NewURLMatcher compiles the authenticated-area glob. loginMarker is
// matched case-insensitively; an empty marker disables the login check.
func NewURLMatcher(pattern, loginMarker string) (*URLMatcher, error) {
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid authenticated url pattern %q: %w", pattern, err)
	}
	return &URLMatcher{
		area:        g,
		loginMarker: strings.ToLower(loginMarker),
	}, nil
}

// InArea reports whether url lies under the authenticated area.
func (m *URLMatcher) InArea(url string) bool {
	return m.area.Match(url)
}

// IsAuthenticatedURL reports whether url shows an established session:
// inside the authenticated area and not on a login page.
func (m *URLMatcher) IsAuthenticatedURL(url string) bool {
	if !m.InArea(url) {
		return false
	}
	if m.loginMarker == "" {
		return true
	}
	return !strings.Contains(strings.ToLower(url), m.loginMarker)
}
