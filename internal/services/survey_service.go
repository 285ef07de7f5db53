package services

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

type ErrorCode string

const (
	ErrorInvalid         ErrorCode = "invalid"
	ErrorForbidden       ErrorCode = "forbidden"
	ErrorNotFound        ErrorCode = "not_found"
	ErrorConflict        ErrorCode = "conflict"
	ErrorUnauthorized    ErrorCode = "unauthorized"
	ErrorBadGateway      ErrorCode = "bad_gateway"
	ErrorTooManyRequests ErrorCode = "too_many_requests"
)

type ServiceError struct {
	Code    ErrorCode
	Message string
}

func (e *ServiceError) Error() string { return e.Message }

func NewInvalidError(msg string) error   { return &ServiceError{Code: ErrorInvalid, Message: msg} }
func NewForbiddenError(msg string) error { return &ServiceError{Code: ErrorForbidden, Message: msg} }
func NewNotFoundError(msg string) error  { return &ServiceError{Code: ErrorNotFound, Message: msg} }
func NewConflictError(msg string) error  { return &ServiceError{Code: ErrorConflict, Message: msg} }
func NewUnauthorizedError(msg string) error {
	return &ServiceError{Code: ErrorUnauthorized, Message: msg}
}

func NewBadGatewayError(msg string) error { return &ServiceError{Code: ErrorBadGateway, Message: msg} }

func AsServiceError(err error) (*ServiceError, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// ErrSurveyNotFound is returned when a submission references a missing survey.
var ErrSurveyNotFound = errors.New("survey not found")

// SurveyStore abstracts persistence operations required by SurveyService.
type SurveyStore interface {
	InsertSurvey(sv *Survey) (*Survey, error)
	GetSurvey(id string) (*Survey, error)
	ListSurveys() ([]*Survey, error)
	InsertQuestion(q *Question) (*Question, error)
	ListQuestions(surveyID string) ([]*Question, error)
	AddAnswers(rows []*Answer) error
	CreditPoints(userID string, delta int) error
}

// BulkAnswer mirrors the inbound payload for each answer.
type BulkAnswer struct {
	QuestionID string
	Raw        json.RawMessage
}

// BulkAnswersRequest transports the sanitized handler input into the
// service layer.
type BulkAnswersRequest struct {
	SurveyID     string
	RespondentID string
	JobType      string
	TenureBand   string
	Answers      []BulkAnswer
}

type BulkAnswersResult struct {
	AnswerCount    int
	PointsCredited int
}

// SurveyService hosts survey authoring and the answer submission workflow.
type SurveyService struct {
	store SurveyStore
	now   func() time.Time
	idGen func() string
}

func NewSurveyService(store SurveyStore) *SurveyService {
	return &SurveyService{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
		idGen: shortID,
	}
}

func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

func (s *SurveyService) CreateSurvey(sv *Survey) (*Survey, error) {
	if sv == nil || strings.TrimSpace(sv.Title) == "" {
		return nil, NewInvalidError("title required")
	}
	if sv.ID == "" {
		sv.ID = s.idGen()
	}
	sv.CreatedAt = s.now()
	return s.store.InsertSurvey(sv)
}

func (s *SurveyService) ListSurveys() ([]*Survey, error) {
	return s.store.ListSurveys()
}

func (s *SurveyService) AddQuestion(q *Question) (*Question, error) {
	if q == nil || q.SurveyID == "" {
		return nil, NewInvalidError("survey_id required")
	}
	if strings.TrimSpace(q.Text) == "" {
		return nil, NewInvalidError("text required")
	}
	sv, err := s.store.GetSurvey(q.SurveyID)
	if err != nil {
		return nil, err
	}
	if sv == nil {
		return nil, NewNotFoundError("survey not found")
	}
	if q.Kind == "" {
		q.Kind = QuestionText
	}
	switch q.Kind {
	case QuestionText, QuestionSingle, QuestionMultiple, QuestionRanking:
	default:
		return nil, NewInvalidError("unknown question kind")
	}
	if q.Kind == QuestionRanking && q.MaxRank <= 0 {
		q.MaxRank = 3
	}
	if q.ID == "" {
		q.ID = s.idGen()
	}
	return s.store.InsertQuestion(q)
}

func (s *SurveyService) ListQuestions(surveyID string) ([]*Question, error) {
	if surveyID == "" {
		return nil, NewInvalidError("survey_id required")
	}
	return s.store.ListQuestions(surveyID)
}

// SubmitBulkAnswers records one respondent's answers in a single batch and
// credits the survey's point reward on success. Numeric questions keep a
// parsed NumValue; unanswered or non-numeric payloads leave it nil so that
// scoring counts them as 0.
func (s *SurveyService) SubmitBulkAnswers(req BulkAnswersRequest) (*BulkAnswersResult, error) {
	if s.store == nil {
		return nil, errors.New("survey service store is nil")
	}
	if req.RespondentID == "" {
		return nil, NewUnauthorizedError("respondent required")
	}
	sv, err := s.store.GetSurvey(req.SurveyID)
	if err != nil {
		return nil, err
	}
	if sv == nil {
		return nil, ErrSurveyNotFound
	}

	questions, err := s.store.ListQuestions(req.SurveyID)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	submittedAt := s.now()
	rows := make([]*Answer, 0, len(req.Answers))
	for _, ans := range req.Answers {
		if ans.QuestionID == "" {
			continue
		}
		q := byID[ans.QuestionID]
		if q == nil {
			continue
		}
		row := &Answer{
			SurveyID:     req.SurveyID,
			RespondentID: req.RespondentID,
			QuestionID:   ans.QuestionID,
			JobType:      req.JobType,
			TenureBand:   req.TenureBand,
			SubmittedAt:  submittedAt,
		}
		if len(ans.Raw) > 0 {
			row.Value = string(ans.Raw)
			if n, ok := parseNumeric(ans.Raw); ok {
				row.NumValue = &n
			}
		}
		rows = append(rows, row)
	}

	if err := s.store.AddAnswers(rows); err != nil {
		return nil, err
	}

	credited := 0
	if sv.Points > 0 && len(rows) > 0 {
		if err := s.store.CreditPoints(req.RespondentID, sv.Points); err != nil {
			return nil, err
		}
		credited = sv.Points
	}
	return &BulkAnswersResult{AnswerCount: len(rows), PointsCredited: credited}, nil
}

func parseNumeric(raw json.RawMessage) (int, bool) {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return int(f), true
	}
	var sv string
	if err := json.Unmarshal(raw, &sv); err == nil {
		if n, err := strconv.Atoi(strings.TrimSpace(sv)); err == nil {
			return n, true
		}
	}
	return 0, false
}
