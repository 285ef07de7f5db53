package api

import (
	"sort"
	"sync"
	"time"

	"github.com/koecan-app/koecan/internal/services"
)

// memoryStore keeps everything in process memory. It backs tests and local
// development; production runs on the SQLite store.
type memoryStore struct {
	mu sync.RWMutex

	usersByID    map[string]*services.User
	usersByEmail map[string]*services.User

	surveys   map[string]*services.Survey
	questions map[string][]*services.Question // surveyID -> ordered questions
	answers   map[string][]*services.Answer   // surveyID -> rows in arrival order

	companies       map[string]*services.Company
	companyJobTypes map[string][]string // companyID -> job types of past respondents

	rooms       map[string]*services.ChatRoom
	roomsByPair map[string]*services.ChatRoom // roomType+"|"+pairKey -> room
	messages    map[string][]*services.ChatMessage
	readStates  map[string]*services.ChatReadState // roomID+"|"+userID

	lineLinks  map[string]*services.LineLink // userID -> link
	giftIssues map[string][]*services.GiftIssue

	audit []services.AuditEntry
}

// NewMemoryStore returns an empty in-memory Store.
func NewMemoryStore() Store {
	return newMemoryStore()
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		usersByID:       make(map[string]*services.User),
		usersByEmail:    make(map[string]*services.User),
		surveys:         make(map[string]*services.Survey),
		questions:       make(map[string][]*services.Question),
		answers:         make(map[string][]*services.Answer),
		companies:       make(map[string]*services.Company),
		companyJobTypes: make(map[string][]string),
		rooms:           make(map[string]*services.ChatRoom),
		roomsByPair:     make(map[string]*services.ChatRoom),
		messages:        make(map[string][]*services.ChatMessage),
		readStates:      make(map[string]*services.ChatReadState),
		lineLinks:       make(map[string]*services.LineLink),
		giftIssues:      make(map[string][]*services.GiftIssue),
	}
}

func (s *memoryStore) AddUser(u *services.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.usersByEmail[u.Email]; ok {
		return services.NewConflictError("email already registered")
	}
	cp := *u
	s.usersByID[cp.ID] = &cp
	s.usersByEmail[cp.Email] = &cp
	return nil
}

func (s *memoryStore) FindUserByEmail(email string) (*services.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.usersByEmail[email]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (s *memoryStore) GetUser(id string) (*services.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.usersByID[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (s *memoryStore) CreditPoints(userID string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.usersByID[userID]
	if !ok {
		return services.NewNotFoundError("user not found")
	}
	u.Points += delta
	return nil
}

func (s *memoryStore) DebitPoints(userID string, amount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.usersByID[userID]
	if !ok {
		return services.NewNotFoundError("user not found")
	}
	if u.Points < amount {
		return services.NewConflictError("insufficient points")
	}
	u.Points -= amount
	return nil
}

func (s *memoryStore) InsertSurvey(sv *services.Survey) (*services.Survey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sv
	s.surveys[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (s *memoryStore) GetSurvey(id string) (*services.Survey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sv, ok := s.surveys[id]
	if !ok {
		return nil, nil
	}
	cp := *sv
	return &cp, nil
}

func (s *memoryStore) ListSurveys() ([]*services.Survey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*services.Survey, 0, len(s.surveys))
	for _, sv := range s.surveys {
		cp := *sv
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *memoryStore) InsertQuestion(q *services.Question) (*services.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.surveys[q.SurveyID]; !ok {
		return nil, services.ErrSurveyNotFound
	}
	cp := *q
	cp.Order = len(s.questions[q.SurveyID])
	s.questions[q.SurveyID] = append(s.questions[q.SurveyID], &cp)
	out := cp
	return &out, nil
}

func (s *memoryStore) ListQuestions(surveyID string) ([]*services.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	qs := s.questions[surveyID]
	out := make([]*services.Question, 0, len(qs))
	for _, q := range qs {
		cp := *q
		out = append(out, &cp)
	}
	return out, nil
}

func (s *memoryStore) AddAnswers(rows []*services.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range rows {
		cp := *a
		s.answers[cp.SurveyID] = append(s.answers[cp.SurveyID], &cp)
	}
	return nil
}

func (s *memoryStore) ListAnswersBySurvey(surveyID string) ([]*services.Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := s.answers[surveyID]
	out := make([]*services.Answer, 0, len(rows))
	for _, a := range rows {
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

func (s *memoryStore) AddCompany(c *services.Company) (*services.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	cp.Industries = append([]string(nil), c.Industries...)
	s.companies[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (s *memoryStore) ListCompaniesByTypes(types []string) ([]*services.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want := make(map[string]bool, len(types))
	for _, t := range types {
		want[t] = true
	}
	var out []*services.Company
	for _, c := range s.companies {
		if want[c.TypeCode] {
			cp := *c
			cp.Industries = append([]string(nil), c.Industries...)
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memoryStore) AddCompanyResponse(companyID, jobType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.companies[companyID]; !ok {
		return services.NewNotFoundError("company not found")
	}
	s.companyJobTypes[companyID] = append(s.companyJobTypes[companyID], jobType)
	return nil
}

func (s *memoryStore) ListCompanyJobTypes(companyID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.companyJobTypes[companyID]...), nil
}

func pairIndexKey(roomType, pairKey string) string {
	return roomType + "|" + pairKey
}

func (s *memoryStore) GetRoom(id string) (*services.ChatRoom, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (s *memoryStore) FindRoomByPairKey(roomType, pairKey string) (*services.ChatRoom, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.roomsByPair[pairIndexKey(roomType, pairKey)]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

// InsertRoom is conditional on (roomType, pairKey): when two callers race to
// create the same room, the second insert returns the first room instead of
// producing a duplicate.
func (s *memoryStore) InsertRoom(r *services.ChatRoom) (*services.ChatRoom, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairIndexKey(r.RoomType, r.PairKey)
	if existing, ok := s.roomsByPair[key]; ok {
		cp := *existing
		return &cp, nil
	}
	cp := *r
	s.rooms[cp.ID] = &cp
	s.roomsByPair[key] = &cp
	out := cp
	return &out, nil
}

func (s *memoryStore) AddMessage(m *services.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[m.RoomID]; !ok {
		return services.NewNotFoundError("room not found")
	}
	cp := *m
	s.messages[cp.RoomID] = append(s.messages[cp.RoomID], &cp)
	return nil
}

func (s *memoryStore) ListMessages(roomID string) ([]*services.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages[roomID]
	out := make([]*services.ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		cp := *m
		out = append(out, &cp)
	}
	return out, nil
}

func readStateKey(roomID, userID string) string {
	return roomID + "|" + userID
}

func (s *memoryStore) UpsertReadState(rs *services.ChatReadState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rs
	s.readStates[readStateKey(rs.RoomID, rs.UserID)] = &cp
	return nil
}

func (s *memoryStore) GetReadState(roomID, userID string) (*services.ChatReadState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rs, ok := s.readStates[readStateKey(roomID, userID)]
	if !ok {
		return nil, nil
	}
	cp := *rs
	return &cp, nil
}

func (s *memoryStore) UpsertLineLink(l *services.LineLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *l
	s.lineLinks[cp.UserID] = &cp
	return nil
}

func (s *memoryStore) GetLineLink(userID string) (*services.LineLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.lineLinks[userID]
	if !ok {
		return nil, nil
	}
	cp := *l
	return &cp, nil
}

func (s *memoryStore) AddGiftIssue(g *services.GiftIssue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *g
	s.giftIssues[cp.UserID] = append(s.giftIssues[cp.UserID], &cp)
	return nil
}

func (s *memoryStore) ListGiftIssues(userID string) ([]*services.GiftIssue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	issues := s.giftIssues[userID]
	out := make([]*services.GiftIssue, 0, len(issues))
	for _, g := range issues {
		cp := *g
		out = append(out, &cp)
	}
	return out, nil
}

func (s *memoryStore) AddAudit(e services.AuditEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	s.audit = append(s.audit, e)
}

func (s *memoryStore) ListAudit() []services.AuditEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]services.AuditEntry(nil), s.audit...)
}
