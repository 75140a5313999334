package reference

import (
	"strings"
	"testing"
)

func TestBuildRoundTrip(t *testing.T) {
	ref := Build(42)
	if !strings.HasPrefix(ref, "APP-42-") {
		t.Fatalf("unexpected reference format: %s", ref)
	}
	id, ok := Parse(ref)
	if !ok || id != 42 {
		t.Fatalf("Parse(%q) = %d, %v", ref, id, ok)
	}
}

func TestBuildDistinguishesRetries(t *testing.T) {
	first := Build(7)
	second := Build(7)
	if first == second {
		t.Fatalf("expected distinct references for retried initiation, got %s twice", first)
	}
}

func TestParse(t *testing.T) {
	cases := []struct {
		ref    string
		wantID int64
		wantOK bool
	}{
		{"APP-15", 15, true},
		{"APP-15-1712345678", 15, true},
		{"APP-15-abc", 15, true}, // disambiguator content is opaque
		{"APP-", 0, false},
		{"APP-x", 0, false},
		{"APP--5", 0, false},
		{"APP-0", 0, false},
		{"ORDER-15", 0, false},
		{"15", 0, false},
		{"", 0, false},
	}
	for _, c := range cases {
		id, ok := Parse(c.ref)
		if id != c.wantID || ok != c.wantOK {
			t.Errorf("Parse(%q) = %d, %v; want %d, %v", c.ref, id, ok, c.wantID, c.wantOK)
		}
	}
}
