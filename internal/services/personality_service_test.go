package services

import "testing"

type stubPersonalityStore struct {
	rows []*RespondentRow
}

func (s *stubPersonalityStore) ListRespondentRows(surveyID string) ([]*RespondentRow, error) {
	return s.rows, nil
}

func TestReportPartitionsAndMeans(t *testing.T) {
	store := &stubPersonalityStore{rows: []*RespondentRow{
		{RespondentID: "P1", JobType: "engineering", Answers: AxisAnswers{Engagement: []*int{intp(4)}, Strategy: []*int{intp(-2)}}},
		{RespondentID: "P2", JobType: "engineering", Answers: AxisAnswers{Engagement: []*int{intp(2)}, Strategy: []*int{intp(-4)}}},
		{RespondentID: "P3", JobType: "sales", Answers: AxisAnswers{Decision: []*int{intp(1)}}},
	}}
	svc := NewPersonalityService(store)
	results, err := svc.Report("S1", DimensionJobType)
	if err != nil {
		t.Fatalf("Report error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 partitions, got %d", len(results))
	}
	eng := results[0]
	if eng.GroupKey != "engineering" || eng.Count != 2 {
		t.Fatalf("unexpected first partition: %+v", eng)
	}
	if eng.Scores.Engagement != 3 || eng.Scores.Strategy != -3 {
		t.Fatalf("mean mismatch: %+v", eng.Scores)
	}
	// engagement>0 → I, strategy<0 → N, style==0 and decision==0 → slash forms
	if eng.TypeCode != "INP/RF/O" {
		t.Fatalf("group code %q", eng.TypeCode)
	}
}

func TestReportUnknownSentinel(t *testing.T) {
	store := &stubPersonalityStore{rows: []*RespondentRow{
		{RespondentID: "P1", Answers: AxisAnswers{Engagement: []*int{intp(1)}}},
	}}
	svc := NewPersonalityService(store)
	results, err := svc.Report("S1", DimensionTenureBand)
	if err != nil {
		t.Fatalf("Report error: %v", err)
	}
	if len(results) != 1 || results[0].GroupKey != GroupUnknown {
		t.Fatalf("expected unknown sentinel partition, got %+v", results)
	}
}

func TestReportMeanEqualsAverageOfRawSums(t *testing.T) {
	// aggregating then averaging must equal averaging raw sums then dividing
	rows := []*RespondentRow{
		{RespondentID: "P1", JobType: "ops", Answers: AxisAnswers{Style: []*int{intp(3), intp(1)}}},
		{RespondentID: "P2", JobType: "ops", Answers: AxisAnswers{Style: []*int{intp(-1)}}},
		{RespondentID: "P3", JobType: "ops", Answers: AxisAnswers{Style: []*int{intp(4), nil}}},
	}
	svc := NewPersonalityService(&stubPersonalityStore{rows: rows})
	results, err := svc.Report("S1", DimensionJobType)
	if err != nil {
		t.Fatalf("Report error: %v", err)
	}
	var raw float64
	for _, r := range rows {
		raw += ScoreAxes(r.Answers).Style
	}
	want := raw / float64(len(rows))
	if results[0].Scores.Style != want {
		t.Fatalf("mean %v, want %v", results[0].Scores.Style, want)
	}
}

func TestReportRejectsUnknownDimension(t *testing.T) {
	svc := NewPersonalityService(&stubPersonalityStore{})
	if _, err := svc.Report("S1", GroupDimension("age")); err == nil {
		t.Fatalf("expected error for unknown dimension")
	}
}

func TestReportNeverEmitsEmptyPartitions(t *testing.T) {
	svc := NewPersonalityService(&stubPersonalityStore{})
	results, err := svc.Report("S1", DimensionJobType)
	if err != nil {
		t.Fatalf("Report error: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no partitions for no rows, got %d", len(results))
	}
}

func TestProfileScoresSingleRespondent(t *testing.T) {
	store := &stubPersonalityStore{rows: []*RespondentRow{
		{RespondentID: "P1", Answers: AxisAnswers{Engagement: []*int{intp(2)}, Strategy: []*int{intp(-1)}, Decision: []*int{intp(3)}}},
	}}
	svc := NewPersonalityService(store)
	got, err := svc.Profile("S1", "P1")
	if err != nil {
		t.Fatalf("Profile error: %v", err)
	}
	if got.TypeCode != "INP/RO" {
		t.Fatalf("profile code %q, want INP/RO", got.TypeCode)
	}
	if _, err := svc.Profile("S1", "P2"); err == nil {
		t.Fatalf("expected not found for missing respondent")
	}
}
