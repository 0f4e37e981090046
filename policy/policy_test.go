package policy

import (
	"testing"
)

func TestMatches(t *testing.T) {
	cases := []struct {
		held     string
		required string
		want     bool
	}{
		{"read:own", "read:own", true},
		{"read:all", "read:own", true},
		{"read:all", "read:all", true},
		{"read:own", "read:all", false},
		{"write:all", "read:own", false},
		{"*", "manage:roles", true},
		{"garbage", "read:own", false},
		{"read:", "read:own", false},
	}
	for _, c := range cases {
		if got := Matches(c.held, c.required); got != c.want {
			t.Errorf("Matches(%q, %q) = %v, want %v", c.held, c.required, got, c.want)
		}
	}
}

func TestDecide(t *testing.T) {
	held := []string{"read:all", "write:own", "!delete:all"}

	if Decide(held, "read:anything") != ALLOW {
		t.Errorf("expected ALLOW for read:anything")
	}
	if Decide(held, "write:other") != UNSET {
		t.Errorf("expected UNSET for write:other")
	}
	if Decide(held, "delete:own") != DENY {
		t.Errorf("expected DENY for delete:own")
	}
}

func TestDecideConflictCollapses(t *testing.T) {
	held := []string{"write:all", "!write:own"}
	if got := Decide(held, "write:own"); got != UNSET {
		t.Errorf("expected UNSET on conflict, got %v", got)
	}
	if IsAllowed(held, "write:own") {
		t.Errorf("conflicting capabilities must not allow")
	}
}

func TestConclusionOr(t *testing.T) {
	if UNSET.Or(ALLOW) != ALLOW || ALLOW.Or(UNSET) != ALLOW {
		t.Errorf("UNSET must defer to the other side")
	}
	if ALLOW.Or(DENY) != UNSET || DENY.Or(ALLOW) != UNSET {
		t.Errorf("conflict must collapse to UNSET")
	}
	if DENY.Or(DENY) != DENY {
		t.Errorf("agreement must hold")
	}
}

func TestParseConclusion(t *testing.T) {
	if ParseConclusion("allow") != ALLOW || ParseConclusion("deny") != DENY || ParseConclusion("x") != UNSET {
		t.Errorf("ParseConclusion mapping broken")
	}
}
