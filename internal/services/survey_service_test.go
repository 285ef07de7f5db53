package services

import (
	"encoding/json"
	"testing"
)

type stubSurveyStore struct {
	surveys   map[string]*Survey
	questions []*Question
	answers   []*Answer
	credits   map[string]int
}

func newStubSurveyStore() *stubSurveyStore {
	return &stubSurveyStore{surveys: map[string]*Survey{}, credits: map[string]int{}}
}

func (s *stubSurveyStore) InsertSurvey(sv *Survey) (*Survey, error) {
	s.surveys[sv.ID] = sv
	return sv, nil
}

func (s *stubSurveyStore) GetSurvey(id string) (*Survey, error) { return s.surveys[id], nil }

func (s *stubSurveyStore) ListSurveys() ([]*Survey, error) {
	out := []*Survey{}
	for _, sv := range s.surveys {
		out = append(out, sv)
	}
	return out, nil
}

func (s *stubSurveyStore) InsertQuestion(q *Question) (*Question, error) {
	s.questions = append(s.questions, q)
	return q, nil
}

func (s *stubSurveyStore) ListQuestions(surveyID string) ([]*Question, error) {
	out := []*Question{}
	for _, q := range s.questions {
		if q.SurveyID == surveyID {
			out = append(out, q)
		}
	}
	return out, nil
}

func (s *stubSurveyStore) AddAnswers(rows []*Answer) error {
	s.answers = append(s.answers, rows...)
	return nil
}

func (s *stubSurveyStore) CreditPoints(userID string, delta int) error {
	s.credits[userID] += delta
	return nil
}

func TestCreateSurveyRequiresTitle(t *testing.T) {
	svc := NewSurveyService(newStubSurveyStore())
	if _, err := svc.CreateSurvey(&Survey{Title: "  "}); err == nil {
		t.Fatalf("expected error for blank title")
	}
}

func TestAddQuestionDefaultsAndValidation(t *testing.T) {
	store := newStubSurveyStore()
	svc := NewSurveyService(store)
	sv, err := svc.CreateSurvey(&Survey{Title: "T"})
	if err != nil {
		t.Fatalf("CreateSurvey error: %v", err)
	}
	q, err := svc.AddQuestion(&Question{SurveyID: sv.ID, Text: "Rank these", Kind: QuestionRanking})
	if err != nil {
		t.Fatalf("AddQuestion error: %v", err)
	}
	if q.MaxRank != 3 {
		t.Fatalf("ranking default max = %d, want 3", q.MaxRank)
	}
	if _, err := svc.AddQuestion(&Question{SurveyID: sv.ID, Text: "??", Kind: "matrix"}); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
	if _, err := svc.AddQuestion(&Question{SurveyID: "nope", Text: "??"}); err == nil {
		t.Fatalf("expected error for missing survey")
	}
}

func TestSubmitBulkAnswers(t *testing.T) {
	store := newStubSurveyStore()
	svc := NewSurveyService(store)
	sv, err := svc.CreateSurvey(&Survey{Title: "Personality", Points: 50})
	if err != nil {
		t.Fatalf("CreateSurvey error: %v", err)
	}
	q1, _ := svc.AddQuestion(&Question{SurveyID: sv.ID, Text: "Q1", AxisGroup: AxisEngagement})
	q2, _ := svc.AddQuestion(&Question{SurveyID: sv.ID, Text: "Q2", AxisGroup: AxisStrategy})
	q3, _ := svc.AddQuestion(&Question{SurveyID: sv.ID, Text: "Free", Kind: QuestionText})

	res, err := svc.SubmitBulkAnswers(BulkAnswersRequest{
		SurveyID:     sv.ID,
		RespondentID: "P1",
		JobType:      "engineering",
		Answers: []BulkAnswer{
			{QuestionID: q1.ID, Raw: json.RawMessage(`3`)},
			{QuestionID: q2.ID, Raw: json.RawMessage(`"-2"`)},
			{QuestionID: q3.ID, Raw: json.RawMessage(`"free text"`)},
			{QuestionID: "ghost", Raw: json.RawMessage(`1`)},
		},
	})
	if err != nil {
		t.Fatalf("SubmitBulkAnswers error: %v", err)
	}
	if res.AnswerCount != 3 {
		t.Fatalf("expected 3 stored answers, got %d", res.AnswerCount)
	}
	if res.PointsCredited != 50 || store.credits["P1"] != 50 {
		t.Fatalf("points credit mismatch: %+v credits=%v", res, store.credits)
	}
	if store.answers[0].NumValue == nil || *store.answers[0].NumValue != 3 {
		t.Fatalf("numeric answer not parsed: %+v", store.answers[0])
	}
	if store.answers[1].NumValue == nil || *store.answers[1].NumValue != -2 {
		t.Fatalf("string numeric answer not parsed: %+v", store.answers[1])
	}
	if store.answers[2].NumValue != nil {
		t.Fatalf("free text answer should have nil NumValue")
	}
	if store.answers[0].JobType != "engineering" {
		t.Fatalf("job type not carried on answer rows")
	}
}

func TestSubmitBulkAnswersUnknownSurvey(t *testing.T) {
	svc := NewSurveyService(newStubSurveyStore())
	if _, err := svc.SubmitBulkAnswers(BulkAnswersRequest{SurveyID: "none", RespondentID: "P1"}); err != ErrSurveyNotFound {
		t.Fatalf("expected ErrSurveyNotFound, got %v", err)
	}
}

func TestSubmitBulkAnswersNoPointsForEmptySubmission(t *testing.T) {
	store := newStubSurveyStore()
	svc := NewSurveyService(store)
	sv, _ := svc.CreateSurvey(&Survey{Title: "S", Points: 10})
	res, err := svc.SubmitBulkAnswers(BulkAnswersRequest{SurveyID: sv.ID, RespondentID: "P1"})
	if err != nil {
		t.Fatalf("SubmitBulkAnswers error: %v", err)
	}
	if res.PointsCredited != 0 || store.credits["P1"] != 0 {
		t.Fatalf("empty submission must not credit points")
	}
}
