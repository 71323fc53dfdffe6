// Package routeguard decides which application paths require an
// authenticated session. The policy is a static prefix list loaded once and
// immutable afterwards; evaluation is a pure function of the path.
package routeguard

import "strings"

type Policy struct {
	prefixes []string
}

// New builds a policy from the given protected prefixes. Passing none uses
// DefaultProtectedPrefixes.
func New(prefixes ...string) *Policy {
	if len(prefixes) == 0 {
		prefixes = DefaultProtectedPrefixes
	}
	owned := make([]string, len(prefixes))
	copy(owned, prefixes)
	return &Policy{prefixes: owned}
}

// RequiresAuth reports whether path lies inside a protected region. A prefix
// matches only on the exact path or a "/"-delimited descendant, so
// "/journal" protects "/journal/42" but not "/journal-archive".
func (p *Policy) RequiresAuth(path string) bool {
	path = stripQuery(path)
	for _, prefix := range p.prefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}

// IsAuthSection reports whether path belongs to the login/signup/password
// flows.
func IsAuthSection(path string) bool {
	path = stripQuery(path)
	return path == AuthSectionPrefix || strings.HasPrefix(path, AuthSectionPrefix+"/")
}

func stripQuery(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		return path[:i]
	}
	return path
}
