package lock

import "testing"

func TestCompatible_ClassicMatrix(t *testing.T) {
	cases := []struct {
		a, b Mode
		want bool
	}{
		{N, X, true},
		{IS, IS, true},
		{IS, X, false},
		{IX, IX, true},
		{IX, S, false},
		{S, S, true},
		{S, X, false},
		{X, X, false},
		{U, U, false},
		{U, S, true},
		{U, IX, false},
	}
	for _, c := range cases {
		if got := Compatible(c.a, c.b); got != c.want {
			t.Errorf("Compatible(%s,%s) = %v, want %v", c.a, c.b, got, c.want)
		}
		if got := Compatible(c.b, c.a); got != c.want {
			t.Errorf("Compatible(%s,%s) = %v, want %v (symmetry)", c.b, c.a, got, c.want)
		}
	}
}

func TestCompatible_VersionedReadsNeverConflict(t *testing.T) {
	for _, m := range []Mode{N, IS, IX, S, SIX, U, X} {
		if !Compatible(VS, m) {
			t.Errorf("VS should be compatible with %s, got false", m)
		}
		if !Compatible(VIS, m) {
			t.Errorf("VIS should be compatible with %s, got false", m)
		}
	}
}

func TestGetLeastUpperBound(t *testing.T) {
	cases := []struct {
		a, b, want Mode
	}{
		{N, S, S},
		{IS, IX, IX},
		{S, IX, SIX},
		{S, S, S},
		{X, N, X},
		{IS, S, S},
	}
	for _, c := range cases {
		if got := GetLeastUpperBound(c.a, c.b); got != c.want {
			t.Errorf("GetLeastUpperBound(%s,%s) = %s, want %s", c.a, c.b, got, c.want)
		}
	}
}

func TestIsPossible(t *testing.T) {
	if got := IsPossible(X, S); got != Unnecessary {
		t.Errorf("IsPossible(X,S) = %s, want Unnecessary", got)
	}
	if got := IsPossible(N, S); got != Possible {
		t.Errorf("IsPossible(N,S) = %s, want Possible", got)
	}
	if got := IsPossible(IX, S); got != Possible {
		t.Errorf("IsPossible(IX,S) = %s, want Possible", got)
	}
	if got := IsPossible(IS, X); got != Impossible {
		t.Errorf("IsPossible(IS,X) = %s, want Impossible", got)
	}
	if got := IsPossible(S, IS); got != Unnecessary {
		t.Errorf("IsPossible(S,IS) = %s, want Unnecessary", got)
	}
	if got := IsPossible(IX, X); got != Possible {
		t.Errorf("IsPossible(IX,X) = %s, want Possible", got)
	}
}
