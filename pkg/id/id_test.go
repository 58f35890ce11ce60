package id

import (
	"strings"
	"testing"
)

func TestNextSortsInAssignmentOrder(t *testing.T) {
	orig := NowMs
	defer func() { NowMs = orig }()

	ms := int64(1700000000000)
	NowMs = func() int64 { return ms }

	g := NewGenerator("abcd1234")
	a := g.Next()
	b := g.Next() // same millisecond, counter bump
	ms++
	c := g.Next()
	if !(a < b && b < c) {
		t.Fatalf("ids not increasing: %s %s %s", a, b, c)
	}
}

func TestNextToleratesClockStepBack(t *testing.T) {
	orig := NowMs
	defer func() { NowMs = orig }()

	ms := int64(1700000000000)
	NowMs = func() int64 { return ms }

	g := NewGenerator("abcd1234")
	a := g.Next()
	ms -= 500
	b := g.Next()
	if b <= a {
		t.Fatalf("id went backwards after clock step: %s then %s", a, b)
	}
}

func TestNextFormat(t *testing.T) {
	g := NewGenerator("cafe0123")
	id := g.Next()
	parts := strings.SplitN(id, "-", 3)
	if len(parts) != 3 {
		t.Fatalf("unexpected id shape: %s", id)
	}
	if len(parts[0]) != 13 || len(parts[1]) != 6 {
		t.Fatalf("unexpected field widths: %s", id)
	}
	if parts[2] != "cafe0123" {
		t.Fatalf("writer tag missing: %s", id)
	}
}

func TestDisambiguateKeepsOriginalPrefix(t *testing.T) {
	d := Disambiguate("0000000000001-000000-aaaa", "local")
	if !strings.HasPrefix(d, "0000000000001-000000-aaaa~") {
		t.Fatalf("unexpected disambiguated id: %s", d)
	}
	if d != Disambiguate("0000000000001-000000-aaaa", "local") {
		t.Fatal("disambiguation with a fixed tag should be deterministic")
	}
}

func TestBaseInvertsDisambiguate(t *testing.T) {
	seq := "0000000000001-000000-aaaa"
	if got := Base(seq); got != seq {
		t.Fatalf("base of a plain id changed: %s", got)
	}
	if got := Base(Disambiguate(seq, "local")); got != seq {
		t.Fatalf("base %s, want %s", got, seq)
	}
	nested := Disambiguate(Disambiguate(seq, "local"), "remote")
	if got := Base(nested); got != seq {
		t.Fatalf("base of nested tags %s, want %s", got, seq)
	}
}
