package sanitize

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	// DefaultPattern removes everything but letters, digits, underscore, hyphen, period and space.
	DefaultPattern = `[^a-zA-Z0-9_\-\. ]`
	// TrustAllPattern only guards against path separators.
	TrustAllPattern = `/`
)

// Sanitizer turns platform supplied names into single path segments.
type Sanitizer struct {
	disallowed *regexp.Regexp
	trustAll   bool
}

func New(pattern string) (*Sanitizer, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid sanitize pattern %q: %w", pattern, err)
	}
	return &Sanitizer{disallowed: re, trustAll: pattern == TrustAllPattern}, nil
}

func Default() *Sanitizer {
	return &Sanitizer{disallowed: regexp.MustCompile(DefaultPattern)}
}

// Clean drops every disallowed character and trims the result. Outside trust-all
// mode "/" becomes "_" first. "." and ".." become empty so a segment never points
// outside its parent.
func (s *Sanitizer) Clean(raw string) string {
	res := raw
	if !s.trustAll {
		res = strings.ReplaceAll(res, "/", "_")
	}
	res = s.disallowed.ReplaceAllString(res, "")
	res = strings.TrimSpace(res)
	if res == "." || res == ".." {
		return ""
	}
	return res
}
