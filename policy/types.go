// Package policy evaluates capability strings of the form "verb:scope"
// against a principal's held permission set.
package policy

import "strings"

type Conclusion int

const (
	UNSET Conclusion = iota
	ALLOW
	DENY
)

func ParseConclusion(s string) Conclusion {
	switch s {
	case "allow":
		return ALLOW
	case "deny":
		return DENY
	default:
		return UNSET
	}
}

// Or merges two conclusions. A conflict collapses back to UNSET so
// callers fall through to their default stance.
func (c Conclusion) Or(other Conclusion) Conclusion {
	if c == UNSET {
		return other
	}
	if other == UNSET {
		return c
	}
	if c != other {
		return UNSET
	}
	return c
}

// Matches reports whether a held capability satisfies a required one.
// The verb must match exactly; a held "all" scope covers any scope of
// the same verb, and a bare "*" covers everything.
func Matches(held, required string) bool {
	if held == "*" || held == required {
		return true
	}
	hv, hs, ok := split(held)
	if !ok {
		return false
	}
	rv, _, ok := split(required)
	if !ok {
		return false
	}
	return hv == rv && hs == "all"
}

func split(capability string) (verb, scope string, ok bool) {
	i := strings.IndexByte(capability, ':')
	if i <= 0 || i == len(capability)-1 {
		return "", "", false
	}
	return capability[:i], capability[i+1:], true
}

// Decide evaluates a required capability against a held set. A "!"
// prefix on a held capability denies instead of allowing; a conflict
// between the two collapses to UNSET, which IsAllowed treats as
// denied.
func Decide(held []string, required string) Conclusion {
	result := UNSET
	for _, h := range held {
		if negated := strings.TrimPrefix(h, "!"); negated != h {
			if Matches(negated, required) {
				result = result.Or(DENY)
			}
			continue
		}
		if Matches(h, required) {
			result = result.Or(ALLOW)
		}
	}
	return result
}

// IsAllowed collapses Decide to a boolean with a deny-by-default
// stance.
func IsAllowed(held []string, required string) bool {
	return Decide(held, required) == ALLOW
}
