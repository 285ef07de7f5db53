package services

import "strings"

// AxisScores holds the four signed accumulators of the personality model.
// For a single respondent each field is the straight sum of that axis
// group's question scores; for a group it is the arithmetic mean across
// the group's respondents.
type AxisScores struct {
	Engagement float64 `json:"market_engagement"`
	Strategy   float64 `json:"growth_strategy"`
	Style      float64 `json:"organization_style"`
	Decision   float64 `json:"decision_making"`
}

// AxisAnswers carries one respondent's raw question scores partitioned
// into the four axis groups. Nil entries are unanswered questions.
type AxisAnswers struct {
	Engagement []*int
	Strategy   []*int
	Style      []*int
	Decision   []*int
}

// axisLetters lists the negative/positive letter per axis in the fixed
// code order: engagement, strategy, style, decision.
var axisLetters = [4][2]string{
	{"E", "I"},
	{"N", "S"},
	{"P", "R"},
	{"F", "O"},
}

// SumGroup sums one axis group's raw scores. Nil (unanswered) values
// contribute 0 rather than dropping the respondent.
func SumGroup(values []*int) float64 {
	total := 0
	for _, v := range values {
		if v != nil {
			total += *v
		}
	}
	return float64(total)
}

// ScoreAxes converts one respondent's partitioned raw answers into axis
// scores. No normalization or weighting, a straight per-group sum.
func ScoreAxes(a AxisAnswers) AxisScores {
	return AxisScores{
		Engagement: SumGroup(a.Engagement),
		Strategy:   SumGroup(a.Strategy),
		Style:      SumGroup(a.Style),
		Decision:   SumGroup(a.Decision),
	}
}

// TypeCodeOf derives the categorical type code from axis signs: negative
// picks the first letter, positive the second, and exactly zero emits both
// joined by a slash (the ambiguous form). An all-zero input is legal and
// yields a fully ambiguous code.
func TypeCodeOf(s AxisScores) string {
	var b strings.Builder
	for i, v := range [4]float64{s.Engagement, s.Strategy, s.Style, s.Decision} {
		switch {
		case v < 0:
			b.WriteString(axisLetters[i][0])
		case v > 0:
			b.WriteString(axisLetters[i][1])
		default:
			b.WriteString(axisLetters[i][0])
			b.WriteString("/")
			b.WriteString(axisLetters[i][1])
		}
	}
	return b.String()
}

// AmbiguousType reports whether a code contains a zero-scored axis.
// Ambiguous codes are non-actionable (drill-down is disabled).
func AmbiguousType(code string) bool {
	return strings.Contains(code, "/")
}

// AllTypeCodes enumerates the sixteen unambiguous codes in fixed axis order.
func AllTypeCodes() []string {
	out := make([]string, 0, 16)
	for _, a := range axisLetters[0] {
		for _, b := range axisLetters[1] {
			for _, c := range axisLetters[2] {
				for _, d := range axisLetters[3] {
					out = append(out, a+b+c+d)
				}
			}
		}
	}
	return out
}
