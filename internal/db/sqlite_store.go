package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/koecan-app/koecan/internal/api"
	"github.com/koecan-app/koecan/internal/services"
)

// SQLiteStore is the durable api.Store. Single-writer SQLite in WAL mode
// is enough for this workload; the conditional room insert leans on the
// unique (room_type, pair_key) index.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("nil db")
	}
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("apply sqlite pragma %q: %w", stmt, err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

func NewStore(db *sql.DB) (api.Store, error) {
	return NewSQLiteStore(db)
}

var _ api.Store = (*SQLiteStore)(nil)

func toNullString(s string) sql.NullString {
	if strings.TrimSpace(s) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func toNullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func fromNullInt(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func encodeStrings(v []string) string {
	if len(v) == 0 {
		return ""
	}
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("sqlite store: encode strings: %v", err)
		return ""
	}
	return string(data)
}

func decodeStrings(s sql.NullString) []string {
	if !s.Valid || s.String == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s.String), &out); err != nil {
		log.Printf("sqlite store: decode strings %q: %v", s.String, err)
		return nil
	}
	return out
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (s *SQLiteStore) AddUser(u *services.User) error {
	_, err := s.db.Exec(
		`INSERT INTO users (id, email, pass_hash, role, points, industries, job_types, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.PassHash, u.Role, u.Points,
		toNullString(encodeStrings(u.Industries)), toNullString(encodeStrings(u.JobTypes)), u.CreatedAt,
	)
	if isUniqueViolation(err) {
		return services.NewConflictError("email already registered")
	}
	return err
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*services.User, error) {
	var u services.User
	var industries, jobTypes sql.NullString
	err := row.Scan(&u.ID, &u.Email, &u.PassHash, &u.Role, &u.Points, &industries, &jobTypes, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u.Industries = decodeStrings(industries)
	u.JobTypes = decodeStrings(jobTypes)
	return &u, nil
}

func (s *SQLiteStore) FindUserByEmail(email string) (*services.User, error) {
	return s.scanUser(s.db.QueryRow(
		`SELECT id, email, pass_hash, role, points, industries, job_types, created_at FROM users WHERE email = ?`, email))
}

func (s *SQLiteStore) GetUser(id string) (*services.User, error) {
	return s.scanUser(s.db.QueryRow(
		`SELECT id, email, pass_hash, role, points, industries, job_types, created_at FROM users WHERE id = ?`, id))
}

func (s *SQLiteStore) CreditPoints(userID string, delta int) error {
	res, err := s.db.Exec(`UPDATE users SET points = points + ? WHERE id = ?`, delta, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return services.NewNotFoundError("user not found")
	}
	return nil
}

// DebitPoints is conditional on the balance so two concurrent redemptions
// cannot drive it negative.
func (s *SQLiteStore) DebitPoints(userID string, amount int) error {
	res, err := s.db.Exec(
		`UPDATE users SET points = points - ? WHERE id = ? AND points >= ?`, amount, userID, amount)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		u, err := s.GetUser(userID)
		if err != nil {
			return err
		}
		if u == nil {
			return services.NewNotFoundError("user not found")
		}
		return services.NewConflictError("insufficient points")
	}
	return nil
}

func (s *SQLiteStore) InsertSurvey(sv *services.Survey) (*services.Survey, error) {
	_, err := s.db.Exec(
		`INSERT INTO surveys (id, title, description, points, created_by, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		sv.ID, sv.Title, toNullString(sv.Description), sv.Points, toNullString(sv.CreatedBy), sv.CreatedAt)
	if err != nil {
		return nil, err
	}
	return sv, nil
}

func (s *SQLiteStore) scanSurvey(sc interface{ Scan(...any) error }) (*services.Survey, error) {
	var sv services.Survey
	var desc, createdBy sql.NullString
	if err := sc.Scan(&sv.ID, &sv.Title, &desc, &sv.Points, &createdBy, &sv.CreatedAt); err != nil {
		return nil, err
	}
	sv.Description = desc.String
	sv.CreatedBy = createdBy.String
	return &sv, nil
}

func (s *SQLiteStore) GetSurvey(id string) (*services.Survey, error) {
	sv, err := s.scanSurvey(s.db.QueryRow(
		`SELECT id, title, description, points, created_by, created_at FROM surveys WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return sv, err
}

func (s *SQLiteStore) ListSurveys() ([]*services.Survey, error) {
	rows, err := s.db.Query(
		`SELECT id, title, description, points, created_by, created_at FROM surveys ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*services.Survey
	for rows.Next() {
		sv, err := s.scanSurvey(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sv)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) InsertQuestion(q *services.Question) (*services.Question, error) {
	var next int
	if err := s.db.QueryRow(
		`SELECT COUNT(*) FROM questions WHERE survey_id = ?`, q.SurveyID).Scan(&next); err != nil {
		return nil, err
	}
	q.Order = next
	_, err := s.db.Exec(
		`INSERT INTO questions (id, survey_id, kind, text, options, max_rank, axis_group, ord)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		q.ID, q.SurveyID, q.Kind, q.Text,
		toNullString(encodeStrings(q.Options)), q.MaxRank, toNullString(q.AxisGroup), q.Order)
	if err != nil {
		return nil, err
	}
	return q, nil
}

func (s *SQLiteStore) ListQuestions(surveyID string) ([]*services.Question, error) {
	rows, err := s.db.Query(
		`SELECT id, survey_id, kind, text, options, max_rank, axis_group, ord
		 FROM questions WHERE survey_id = ? ORDER BY ord, id`, surveyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*services.Question
	for rows.Next() {
		var q services.Question
		var options, axisGroup sql.NullString
		if err := rows.Scan(&q.ID, &q.SurveyID, &q.Kind, &q.Text, &options, &q.MaxRank, &axisGroup, &q.Order); err != nil {
			return nil, err
		}
		q.Options = decodeStrings(options)
		q.AxisGroup = axisGroup.String
		out = append(out, &q)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) AddAnswers(answers []*services.Answer) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	stmt, err := tx.Prepare(
		`INSERT INTO answers (survey_id, respondent_id, question_id, value, num_value, job_type, tenure_band, submitted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, a := range answers {
		if _, err := stmt.Exec(
			a.SurveyID, a.RespondentID, a.QuestionID, toNullString(a.Value), toNullInt(a.NumValue),
			toNullString(a.JobType), toNullString(a.TenureBand), a.SubmittedAt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) ListAnswersBySurvey(surveyID string) ([]*services.Answer, error) {
	rows, err := s.db.Query(
		`SELECT survey_id, respondent_id, question_id, value, num_value, job_type, tenure_band, submitted_at
		 FROM answers WHERE survey_id = ? ORDER BY submitted_at, respondent_id`, surveyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*services.Answer
	for rows.Next() {
		var a services.Answer
		var value, jobType, tenure sql.NullString
		var num sql.NullInt64
		if err := rows.Scan(&a.SurveyID, &a.RespondentID, &a.QuestionID, &value, &num, &jobType, &tenure, &a.SubmittedAt); err != nil {
			return nil, err
		}
		a.Value = value.String
		a.NumValue = fromNullInt(num)
		a.JobType = jobType.String
		a.TenureBand = tenure.String
		out = append(out, &a)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) AddCompany(c *services.Company) (*services.Company, error) {
	_, err := s.db.Exec(
		`INSERT INTO companies (id, name, type_code, industries) VALUES (?, ?, ?, ?)`,
		c.ID, c.Name, c.TypeCode, toNullString(encodeStrings(c.Industries)))
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *SQLiteStore) ListCompaniesByTypes(types []string) ([]*services.Company, error) {
	if len(types) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(types)), ",")
	args := make([]any, len(types))
	for i, t := range types {
		args[i] = t
	}
	rows, err := s.db.Query(
		`SELECT id, name, type_code, industries FROM companies WHERE type_code IN (`+placeholders+`) ORDER BY id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*services.Company
	for rows.Next() {
		var c services.Company
		var industries sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &c.TypeCode, &industries); err != nil {
			return nil, err
		}
		c.Industries = decodeStrings(industries)
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) AddCompanyResponse(companyID, jobType string) error {
	var exists int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM companies WHERE id = ?`, companyID).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return services.NewNotFoundError("company not found")
	}
	_, err := s.db.Exec(`INSERT INTO company_responses (company_id, job_type) VALUES (?, ?)`, companyID, jobType)
	return err
}

func (s *SQLiteStore) ListCompanyJobTypes(companyID string) ([]string, error) {
	rows, err := s.db.Query(`SELECT job_type FROM company_responses WHERE company_id = ?`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var jt string
		if err := rows.Scan(&jt); err != nil {
			return nil, err
		}
		out = append(out, jt)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) scanRoom(row *sql.Row) (*services.ChatRoom, error) {
	var r services.ChatRoom
	var participants string
	var createdBy sql.NullString
	err := row.Scan(&r.ID, &r.RoomType, &participants, &r.PairKey, &createdBy, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r.Participants = decodeStrings(sql.NullString{String: participants, Valid: true})
	r.CreatedBy = createdBy.String
	return &r, nil
}

func (s *SQLiteStore) GetRoom(id string) (*services.ChatRoom, error) {
	return s.scanRoom(s.db.QueryRow(
		`SELECT id, room_type, participants, pair_key, created_by, created_at FROM chat_rooms WHERE id = ?`, id))
}

func (s *SQLiteStore) FindRoomByPairKey(roomType, pairKey string) (*services.ChatRoom, error) {
	return s.scanRoom(s.db.QueryRow(
		`SELECT id, room_type, participants, pair_key, created_by, created_at
		 FROM chat_rooms WHERE room_type = ? AND pair_key = ?`, roomType, pairKey))
}

// InsertRoom races through the unique (room_type, pair_key) index: on
// conflict the insert is a no-op and the stored winner is re-read and
// returned instead of the caller's row.
func (s *SQLiteStore) InsertRoom(r *services.ChatRoom) (*services.ChatRoom, error) {
	_, err := s.db.Exec(
		`INSERT INTO chat_rooms (id, room_type, participants, pair_key, created_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(room_type, pair_key) DO NOTHING`,
		r.ID, r.RoomType, encodeStrings(r.Participants), r.PairKey, toNullString(r.CreatedBy), r.CreatedAt)
	if err != nil {
		return nil, err
	}
	room, err := s.FindRoomByPairKey(r.RoomType, r.PairKey)
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, errors.New("room vanished after insert")
	}
	return room, nil
}

func (s *SQLiteStore) AddMessage(m *services.ChatMessage) error {
	_, err := s.db.Exec(
		`INSERT INTO chat_messages (id, room_id, sender_id, body, created_at) VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.RoomID, m.SenderID, m.Body, m.CreatedAt)
	return err
}

func (s *SQLiteStore) ListMessages(roomID string) ([]*services.ChatMessage, error) {
	rows, err := s.db.Query(
		`SELECT id, room_id, sender_id, body, created_at FROM chat_messages WHERE room_id = ? ORDER BY created_at, id`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*services.ChatMessage
	for rows.Next() {
		var m services.ChatMessage
		if err := rows.Scan(&m.ID, &m.RoomID, &m.SenderID, &m.Body, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) UpsertReadState(rs *services.ChatReadState) error {
	_, err := s.db.Exec(
		`INSERT INTO chat_read_states (room_id, user_id, last_message_id, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(room_id, user_id) DO UPDATE SET last_message_id = excluded.last_message_id, updated_at = excluded.updated_at`,
		rs.RoomID, rs.UserID, rs.LastMessageID, rs.UpdatedAt)
	return err
}

func (s *SQLiteStore) GetReadState(roomID, userID string) (*services.ChatReadState, error) {
	var rs services.ChatReadState
	err := s.db.QueryRow(
		`SELECT room_id, user_id, last_message_id, updated_at FROM chat_read_states WHERE room_id = ? AND user_id = ?`,
		roomID, userID).Scan(&rs.RoomID, &rs.UserID, &rs.LastMessageID, &rs.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rs, nil
}

func (s *SQLiteStore) UpsertLineLink(l *services.LineLink) error {
	_, err := s.db.Exec(
		`INSERT INTO line_links (user_id, line_user_id, created_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET line_user_id = excluded.line_user_id`,
		l.UserID, l.LineUserID, l.CreatedAt)
	return err
}

func (s *SQLiteStore) GetLineLink(userID string) (*services.LineLink, error) {
	var l services.LineLink
	err := s.db.QueryRow(
		`SELECT user_id, line_user_id, created_at FROM line_links WHERE user_id = ?`, userID).
		Scan(&l.UserID, &l.LineUserID, &l.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *SQLiteStore) AddGiftIssue(g *services.GiftIssue) error {
	_, err := s.db.Exec(
		`INSERT INTO gift_issues (id, user_id, exchange_type, points, card_url, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		g.ID, g.UserID, g.ExchangeType, g.Points, toNullString(g.CardURL), g.CreatedAt)
	return err
}

func (s *SQLiteStore) ListGiftIssues(userID string) ([]*services.GiftIssue, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, exchange_type, points, card_url, created_at
		 FROM gift_issues WHERE user_id = ? ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*services.GiftIssue
	for rows.Next() {
		var g services.GiftIssue
		var cardURL sql.NullString
		if err := rows.Scan(&g.ID, &g.UserID, &g.ExchangeType, &g.Points, &cardURL, &g.CreatedAt); err != nil {
			return nil, err
		}
		g.CardURL = cardURL.String
		out = append(out, &g)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) AddAudit(e services.AuditEntry) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	if _, err := s.db.Exec(
		`INSERT INTO audit_log (at, actor, action, target, note) VALUES (?, ?, ?, ?, ?)`,
		e.Time, toNullString(e.Actor), e.Action, toNullString(e.Target), toNullString(e.Note)); err != nil {
		log.Printf("sqlite store: add audit: %v", err)
	}
}

func (s *SQLiteStore) ListAudit() []services.AuditEntry {
	rows, err := s.db.Query(`SELECT at, actor, action, target, note FROM audit_log ORDER BY at`)
	if err != nil {
		log.Printf("sqlite store: list audit: %v", err)
		return nil
	}
	defer rows.Close()
	var out []services.AuditEntry
	for rows.Next() {
		var e services.AuditEntry
		var actor, target, note sql.NullString
		if err := rows.Scan(&e.Time, &actor, &e.Action, &target, &note); err != nil {
			log.Printf("sqlite store: scan audit: %v", err)
			return out
		}
		e.Actor = actor.String
		e.Target = target.String
		e.Note = note.String
		out = append(out, e)
	}
	return out
}
