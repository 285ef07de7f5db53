package services

import "time"

// Roles form a closed set; anything else in a token is rejected.
const (
	RoleMonitor = "monitor"
	RoleClient  = "client"
	RoleSupport = "support"
	RoleAdmin   = "admin"
)

type User struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	PassHash   []byte    `json:"-"`
	Role       string    `json:"role"`
	Points     int       `json:"points"`
	Industries []string  `json:"industries,omitempty"`
	JobTypes   []string  `json:"job_types,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Question kinds accepted by the survey model and the markdown importer.
const (
	QuestionText     = "text"
	QuestionSingle   = "single"
	QuestionMultiple = "multiple"
	QuestionRanking  = "ranking"
)

// Axis group labels used by personality surveys to partition questions.
const (
	AxisEngagement = "engagement"
	AxisStrategy   = "strategy"
	AxisStyle      = "style"
	AxisDecision   = "decision"
)

type Survey struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Points      int       `json:"points,omitempty"`
	CreatedBy   string    `json:"created_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type Question struct {
	ID        string   `json:"id"`
	SurveyID  string   `json:"survey_id"`
	Kind      string   `json:"kind"`
	Text      string   `json:"text"`
	Options   []string `json:"options,omitempty"`
	MaxRank   int      `json:"max_rank,omitempty"`
	AxisGroup string   `json:"axis_group,omitempty"`
	Order     int      `json:"order,omitempty"`
}

// Answer is one respondent's answer to one question. NumValue is nil for
// non-numeric answers and for numeric questions left unanswered; scoring
// treats nil as 0.
type Answer struct {
	SurveyID     string    `json:"survey_id"`
	RespondentID string    `json:"respondent_id"`
	QuestionID   string    `json:"question_id"`
	Value        string    `json:"value,omitempty"`
	NumValue     *int      `json:"num_value,omitempty"`
	JobType      string    `json:"job_type,omitempty"`
	TenureBand   string    `json:"tenure_band,omitempty"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

// Company is a client organization presented to monitors by the matching
// funnel. TypeCode is the company's stored personality type.
type Company struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	TypeCode   string   `json:"type_code"`
	Industries []string `json:"industries,omitempty"`
}

const (
	RoomTypeDirect  = "direct"
	RoomTypeGroup   = "group"
	RoomTypeSupport = "support"
)

// ChatRoom participants are kept sorted; PairKey is the canonical lookup
// key for support rooms and is unique per (room_type, pair).
type ChatRoom struct {
	ID           string    `json:"id"`
	RoomType     string    `json:"room_type"`
	Participants []string  `json:"participants"`
	PairKey      string    `json:"-"`
	CreatedBy    string    `json:"created_by"`
	CreatedAt    time.Time `json:"created_at"`
}

type ChatMessage struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"room_id"`
	SenderID  string    `json:"sender_id"`
	Body      string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

type ChatReadState struct {
	RoomID        string    `json:"room_id"`
	UserID        string    `json:"user_id"`
	LastMessageID string    `json:"last_message_id"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// LineLink ties an internal user to a LINE account, one row per user.
type LineLink struct {
	UserID     string    `json:"user_id"`
	LineUserID string    `json:"line_user_id"`
	CreatedAt  time.Time `json:"created_at"`
}

type GiftIssue struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	ExchangeType string    `json:"exchange_type"`
	Points       int       `json:"points"`
	CardURL      string    `json:"card_url"`
	CreatedAt    time.Time `json:"created_at"`
}

type AuditEntry struct {
	Time   time.Time `json:"time"`
	Actor  string    `json:"actor"`
	Action string    `json:"action"`
	Target string    `json:"target"`
	Note   string    `json:"note,omitempty"`
}
