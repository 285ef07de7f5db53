package api

import (
	"sort"

	"github.com/koecan-app/koecan/internal/services"
)

// The wide Store satisfies most service-facing interfaces directly.
var (
	_ services.AuthStore     = Store(nil)
	_ services.SurveyStore   = Store(nil)
	_ services.ChatStore     = Store(nil)
	_ services.GiftStore     = Store(nil)
	_ services.MatchingStore = Store(nil)
	_ services.LineStore     = Store(nil)
)

// personalityStoreAdapter assembles reporter input rows from the raw
// question and answer tables: answers are grouped per respondent and each
// numeric value is routed to the axis its question belongs to.
type personalityStoreAdapter struct {
	store Store
}

var _ services.PersonalityStore = (*personalityStoreAdapter)(nil)

func (a *personalityStoreAdapter) ListRespondentRows(surveyID string) ([]*services.RespondentRow, error) {
	questions, err := a.store.ListQuestions(surveyID)
	if err != nil {
		return nil, err
	}
	axisByQuestion := make(map[string]string, len(questions))
	for _, q := range questions {
		if q.AxisGroup != "" {
			axisByQuestion[q.ID] = q.AxisGroup
		}
	}

	answers, err := a.store.ListAnswersBySurvey(surveyID)
	if err != nil {
		return nil, err
	}
	rows := make(map[string]*services.RespondentRow)
	for _, ans := range answers {
		row, ok := rows[ans.RespondentID]
		if !ok {
			row = &services.RespondentRow{
				RespondentID: ans.RespondentID,
				JobType:      ans.JobType,
				TenureBand:   ans.TenureBand,
			}
			rows[ans.RespondentID] = row
		}
		switch axisByQuestion[ans.QuestionID] {
		case services.AxisEngagement:
			row.Answers.Engagement = append(row.Answers.Engagement, ans.NumValue)
		case services.AxisStrategy:
			row.Answers.Strategy = append(row.Answers.Strategy, ans.NumValue)
		case services.AxisStyle:
			row.Answers.Style = append(row.Answers.Style, ans.NumValue)
		case services.AxisDecision:
			row.Answers.Decision = append(row.Answers.Decision, ans.NumValue)
		}
	}

	out := make([]*services.RespondentRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RespondentID < out[j].RespondentID })
	return out, nil
}
