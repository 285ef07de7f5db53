package api

import "github.com/koecan-app/koecan/internal/services"

// Store is the wide persistence surface shared by the in-memory store and
// the SQLite store. Service-facing adapters narrow it per workflow.
type Store interface {
	AddUser(u *services.User) error
	FindUserByEmail(email string) (*services.User, error)
	GetUser(id string) (*services.User, error)
	CreditPoints(userID string, delta int) error
	DebitPoints(userID string, amount int) error

	InsertSurvey(sv *services.Survey) (*services.Survey, error)
	GetSurvey(id string) (*services.Survey, error)
	ListSurveys() ([]*services.Survey, error)
	InsertQuestion(q *services.Question) (*services.Question, error)
	ListQuestions(surveyID string) ([]*services.Question, error)
	AddAnswers(rows []*services.Answer) error
	ListAnswersBySurvey(surveyID string) ([]*services.Answer, error)

	AddCompany(c *services.Company) (*services.Company, error)
	ListCompaniesByTypes(types []string) ([]*services.Company, error)
	AddCompanyResponse(companyID, jobType string) error
	ListCompanyJobTypes(companyID string) ([]string, error)

	GetRoom(id string) (*services.ChatRoom, error)
	FindRoomByPairKey(roomType, pairKey string) (*services.ChatRoom, error)
	InsertRoom(r *services.ChatRoom) (*services.ChatRoom, error)
	AddMessage(m *services.ChatMessage) error
	ListMessages(roomID string) ([]*services.ChatMessage, error)
	UpsertReadState(rs *services.ChatReadState) error
	GetReadState(roomID, userID string) (*services.ChatReadState, error)

	UpsertLineLink(l *services.LineLink) error
	GetLineLink(userID string) (*services.LineLink, error)

	AddGiftIssue(g *services.GiftIssue) error
	ListGiftIssues(userID string) ([]*services.GiftIssue, error)

	AddAudit(e services.AuditEntry)
	ListAudit() []services.AuditEntry
}

var _ Store = (*memoryStore)(nil)
