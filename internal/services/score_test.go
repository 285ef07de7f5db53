package services

import "testing"

func intp(v int) *int { return &v }

func TestSumGroupNilContributesZero(t *testing.T) {
	if got := SumGroup([]*int{intp(2), nil, intp(3)}); got != 5 {
		t.Fatalf("SumGroup=%v, want 5", got)
	}
	if got := SumGroup(nil); got != 0 {
		t.Fatalf("SumGroup(nil)=%v, want 0", got)
	}
}

func TestSumGroupOrderIndependent(t *testing.T) {
	a := SumGroup([]*int{intp(1), intp(-4), intp(2)})
	b := SumGroup([]*int{intp(2), intp(1), intp(-4)})
	if a != b {
		t.Fatalf("sum not commutative: %v vs %v", a, b)
	}
}

func TestTypeCodeSigns(t *testing.T) {
	cases := []struct {
		scores AxisScores
		want   string
	}{
		{AxisScores{-1, -1, -1, -1}, "ENPF"},
		{AxisScores{1, 1, 1, 1}, "ISRO"},
		{AxisScores{2, -1, 0, 3}, "INP/RO"},
		{AxisScores{0, 0, 0, 0}, "E/IN/SP/RF/O"},
	}
	for _, c := range cases {
		if got := TypeCodeOf(c.scores); got != c.want {
			t.Fatalf("TypeCodeOf(%+v)=%q, want %q", c.scores, got, c.want)
		}
	}
}

func TestAmbiguousTypeDisablesDrilldown(t *testing.T) {
	if !AmbiguousType("INP/RO") {
		t.Fatalf("expected INP/RO to be ambiguous")
	}
	if AmbiguousType("INRO") {
		t.Fatalf("INRO should not be ambiguous")
	}
}

func TestScoreAxesAllZeroIsLegal(t *testing.T) {
	sc := ScoreAxes(AxisAnswers{})
	if code := TypeCodeOf(sc); code != "E/IN/SP/RF/O" {
		t.Fatalf("all-zero input: got %q", code)
	}
}

func TestAllTypeCodes(t *testing.T) {
	codes := AllTypeCodes()
	if len(codes) != 16 {
		t.Fatalf("expected 16 codes, got %d", len(codes))
	}
	seen := map[string]bool{}
	for _, c := range codes {
		if AmbiguousType(c) {
			t.Fatalf("enumerated code %q is ambiguous", c)
		}
		if seen[c] {
			t.Fatalf("duplicate code %q", c)
		}
		seen[c] = true
	}
	if !seen["ENPF"] || !seen["ISRO"] {
		t.Fatalf("expected corner codes in enumeration")
	}
}
