package resolver

import (
	"testing"

	"tesouraria/internal/core"
)

func TestScore(t *testing.T) {
	cases := []struct {
		a, b string
		min  int
		max  int
	}{
		{"Joao Da Silva", "João da Silva", 100, 100},
		{"Silva Joao", "Joao Silva", 100, 100},
		{"JOAO  DA SILVA.", "joão da silva", 100, 100},
		{"Joao da Silva", "Joao Pedro da Silva", 85, 100},
		{"Maria Souza", "Maria Sousa", 85, 99},
		{"Empresa XPTO LTDA", "João da Silva", 0, 40},
		{"Ana", "Pedro Henrique", 0, 30},
		{"", "Joao", 0, 0},
		{"...", "Joao", 0, 0},
	}
	for _, tc := range cases {
		got := Score(tc.a, tc.b)
		if got < tc.min || got > tc.max {
			t.Fatalf("Score(%q, %q) = %d, want in [%d, %d]", tc.a, tc.b, got, tc.min, tc.max)
		}
		if rev := Score(tc.b, tc.a); rev != got {
			t.Fatalf("Score not symmetric for %q/%q: %d vs %d", tc.a, tc.b, got, rev)
		}
	}
}

// A single shared surname must not be enough to link a payer.
func TestScoreSingleSharedToken(t *testing.T) {
	if got := Score("Silva", "Joao da Silva"); got >= Threshold {
		t.Fatalf("single shared token scored %d", got)
	}
}

func TestResolve(t *testing.T) {
	roster := []core.RosterEntry{
		{ID: 1, FullName: "Maria Souza"},
		{ID: 2, FullName: "João da Silva"},
		{ID: 3, FullName: "Pedro Henrique Alves"},
	}

	t.Run("links a close name", func(t *testing.T) {
		m, ok := Resolve("Joao Da Silva", roster)
		if !ok || m.Member.ID != 2 {
			t.Fatalf("expected member 2, got %+v ok=%v", m, ok)
		}
		if m.Score < Threshold {
			t.Fatalf("score %d below threshold", m.Score)
		}
	})

	t.Run("leaves a company unlinked", func(t *testing.T) {
		m, ok := Resolve("Empresa XPTO LTDA", roster)
		if ok {
			t.Fatalf("expected no match, got %+v", m)
		}
		if m.Score >= Threshold {
			t.Fatalf("best score %d should be under threshold", m.Score)
		}
	})

	t.Run("empty roster", func(t *testing.T) {
		if m, ok := Resolve("Joao Da Silva", nil); ok {
			t.Fatalf("expected no match, got %+v", m)
		}
	})

	t.Run("empty payer", func(t *testing.T) {
		if m, ok := Resolve("  ", roster); ok {
			t.Fatalf("expected no match, got %+v", m)
		}
	})
}

func TestResolveTieGoesToLowestID(t *testing.T) {
	twins := []core.RosterEntry{
		{ID: 9, FullName: "Ana Lima"},
		{ID: 4, FullName: "Ana Lima"},
		{ID: 7, FullName: "ana  lima"},
	}
	m, ok := Resolve("Ana Lima", twins)
	if !ok || m.Member.ID != 4 {
		t.Fatalf("expected member 4, got %+v ok=%v", m, ok)
	}

	reversed := []core.RosterEntry{twins[2], twins[1], twins[0]}
	m2, _ := Resolve("Ana Lima", reversed)
	if m2.Member.ID != m.Member.ID {
		t.Fatalf("tie-break depends on roster order: %d vs %d", m2.Member.ID, m.Member.ID)
	}
}

func TestResolveThreshold(t *testing.T) {
	roster := []core.RosterEntry{{ID: 1, FullName: "Joao Silva"}}
	for _, payer := range []string{"Joao Silva", "Joao Silvaa", "Zeca Pagodinho", "J S"} {
		m, ok := Resolve(payer, roster)
		if ok != (m.Score >= Threshold) {
			t.Fatalf("%q: ok=%v but score=%d", payer, ok, m.Score)
		}
	}
}
