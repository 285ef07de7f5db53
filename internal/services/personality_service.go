package services

import "sort"

// GroupUnknown is the sentinel partition for rows with no group value.
const GroupUnknown = "unknown"

type GroupDimension string

const (
	DimensionJobType    GroupDimension = "job_type"
	DimensionTenureBand GroupDimension = "tenure_band"
)

// RespondentRow is one respondent's scored input to the reporter: the raw
// answers partitioned by axis plus the grouping attributes carried on the
// response.
type RespondentRow struct {
	RespondentID string
	JobType      string
	TenureBand   string
	Answers      AxisAnswers
}

type PersonalityStore interface {
	ListRespondentRows(surveyID string) ([]*RespondentRow, error)
}

// GroupResult is the reporter's output for one partition: mean axis
// scores, the code derived from the means, and the respondent count shown
// for display confidence.
type GroupResult struct {
	GroupKey string     `json:"group_key"`
	Scores   AxisScores `json:"scores"`
	TypeCode string     `json:"type_code"`
	Count    int        `json:"respondent_count"`
}

type PersonalityService struct {
	store PersonalityStore
}

func NewPersonalityService(store PersonalityStore) *PersonalityService {
	return &PersonalityService{store: store}
}

// Report partitions respondents by the chosen dimension, averages each
// axis across the partition and derives the group code from the means.
// Every row lands in exactly one partition; empty partitions are never
// emitted. The whole result is recomputed on every call.
func (s *PersonalityService) Report(surveyID string, dim GroupDimension) ([]GroupResult, error) {
	if surveyID == "" {
		return nil, NewInvalidError("survey_id required")
	}
	if dim != DimensionJobType && dim != DimensionTenureBand {
		return nil, NewInvalidError("unknown dimension")
	}
	rows, err := s.store.ListRespondentRows(surveyID)
	if err != nil {
		return nil, err
	}

	sums := map[string]*AxisScores{}
	counts := map[string]int{}
	for _, row := range rows {
		key := row.JobType
		if dim == DimensionTenureBand {
			key = row.TenureBand
		}
		if key == "" {
			key = GroupUnknown
		}
		sc := ScoreAxes(row.Answers)
		acc := sums[key]
		if acc == nil {
			acc = &AxisScores{}
			sums[key] = acc
		}
		acc.Engagement += sc.Engagement
		acc.Strategy += sc.Strategy
		acc.Style += sc.Style
		acc.Decision += sc.Decision
		counts[key]++
	}

	keys := make([]string, 0, len(sums))
	for k := range sums {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]GroupResult, 0, len(keys))
	for _, k := range keys {
		n := float64(counts[k])
		mean := AxisScores{
			Engagement: sums[k].Engagement / n,
			Strategy:   sums[k].Strategy / n,
			Style:      sums[k].Style / n,
			Decision:   sums[k].Decision / n,
		}
		out = append(out, GroupResult{
			GroupKey: k,
			Scores:   mean,
			TypeCode: TypeCodeOf(mean),
			Count:    counts[k],
		})
	}
	return out, nil
}

// Profile scores a single respondent and derives their type code.
func (s *PersonalityService) Profile(surveyID, respondentID string) (*GroupResult, error) {
	if surveyID == "" || respondentID == "" {
		return nil, NewInvalidError("survey_id/respondent_id required")
	}
	rows, err := s.store.ListRespondentRows(surveyID)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if row.RespondentID == respondentID {
			sc := ScoreAxes(row.Answers)
			return &GroupResult{GroupKey: respondentID, Scores: sc, TypeCode: TypeCodeOf(sc), Count: 1}, nil
		}
	}
	return nil, NewNotFoundError("respondent not found")
}
