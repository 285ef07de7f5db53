package services

import (
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// ChatStore abstracts room and message persistence. InsertRoom must be
// conditional on the (room_type, pair_key) uniqueness key: when a
// concurrent first contact already created the pair's room, the stored
// winner is returned instead of a duplicate.
type ChatStore interface {
	GetRoom(id string) (*ChatRoom, error)
	FindRoomByPairKey(roomType, pairKey string) (*ChatRoom, error)
	InsertRoom(r *ChatRoom) (*ChatRoom, error)
	AddMessage(m *ChatMessage) error
	ListMessages(roomID string) ([]*ChatMessage, error)
	UpsertReadState(rs *ChatReadState) error
	GetReadState(roomID, userID string) (*ChatReadState, error)
}

// MessageFeed pushes newly stored messages to open viewers of a room.
// The sender is excluded: their copy is already rendered locally.
type MessageFeed interface {
	Publish(roomID string, payload []byte, excludeUserID string)
}

type ChatService struct {
	store ChatStore
	feed  MessageFeed
	now   func() time.Time
	idGen func() string
}

// NewChatService builds the chat workflow. feed may be nil when no live
// delivery is attached (tests, batch tools).
func NewChatService(store ChatStore, feed MessageFeed) *ChatService {
	return &ChatService{
		store: store,
		feed:  feed,
		now:   func() time.Time { return time.Now().UTC() },
		idGen: shortID,
	}
}

// PairKey canonicalizes a participant pair by sorting, so (A,B) and (B,A)
// address the same room.
func PairKey(a, b string) string {
	p := []string{a, b}
	sort.Strings(p)
	return strings.Join(p, ":")
}

// ResolveRoom maps a participant pair to exactly one support room,
// creating it on first contact. Read-only callers never create; with no
// existing room they get not_found.
func (s *ChatService) ResolveRoom(selfID, otherID string, readOnly bool) (*ChatRoom, error) {
	if selfID == "" || otherID == "" {
		return nil, NewInvalidError("both participants required")
	}
	if selfID == otherID {
		return nil, NewInvalidError("cannot open a room with yourself")
	}
	key := PairKey(selfID, otherID)
	room, err := s.store.FindRoomByPairKey(RoomTypeSupport, key)
	if err != nil {
		return nil, err
	}
	if room != nil {
		return room, nil
	}
	if readOnly {
		return nil, NewNotFoundError("room not found")
	}
	participants := []string{selfID, otherID}
	sort.Strings(participants)
	return s.store.InsertRoom(&ChatRoom{
		ID:           s.idGen(),
		RoomType:     RoomTypeSupport,
		Participants: participants,
		PairKey:      key,
		CreatedBy:    selfID,
		CreatedAt:    s.now(),
	})
}

// Room returns a room by explicit id (support/admin override path).
func (s *ChatService) Room(roomID string) (*ChatRoom, error) {
	if roomID == "" {
		return nil, NewInvalidError("room_id required")
	}
	room, err := s.store.GetRoom(roomID)
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, NewNotFoundError("room not found")
	}
	return room, nil
}

// Send validates and appends one message, then fans it out to every open
// viewer except the sender. A failed write leaves the log untouched and
// nothing is pushed.
func (s *ChatService) Send(roomID, senderID, body string) (*ChatMessage, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, NewInvalidError("message required")
	}
	room, err := s.Room(roomID)
	if err != nil {
		return nil, err
	}
	if !roomHasParticipant(room, senderID) {
		return nil, NewForbiddenError("not a participant")
	}
	msg := &ChatMessage{
		ID:        s.idGen(),
		RoomID:    roomID,
		SenderID:  senderID,
		Body:      body,
		CreatedAt: s.now(),
	}
	if err := s.store.AddMessage(msg); err != nil {
		return nil, err
	}
	if s.feed != nil {
		if payload, err := json.Marshal(msg); err == nil {
			s.feed.Publish(roomID, payload, senderID)
		}
	}
	return msg, nil
}

// History returns the room's full message log ordered by creation time
// ascending. No pagination; every load fetches everything.
func (s *ChatService) History(roomID, viewerID string) ([]*ChatMessage, error) {
	room, err := s.Room(roomID)
	if err != nil {
		return nil, err
	}
	if !roomHasParticipant(room, viewerID) {
		return nil, NewForbiddenError("not a participant")
	}
	return s.store.ListMessages(roomID)
}

// MarkRead records the viewer's last-read message for the room.
func (s *ChatService) MarkRead(roomID, userID, messageID string) error {
	if messageID == "" {
		return NewInvalidError("message_id required")
	}
	room, err := s.Room(roomID)
	if err != nil {
		return err
	}
	if !roomHasParticipant(room, userID) {
		return NewForbiddenError("not a participant")
	}
	return s.store.UpsertReadState(&ChatReadState{
		RoomID:        roomID,
		UserID:        userID,
		LastMessageID: messageID,
		UpdatedAt:     s.now(),
	})
}

// ReadState returns the viewer's last-read marker, or nil when the viewer
// has read nothing yet.
func (s *ChatService) ReadState(roomID, userID string) (*ChatReadState, error) {
	if roomID == "" || userID == "" {
		return nil, NewInvalidError("room_id/user_id required")
	}
	return s.store.GetReadState(roomID, userID)
}

func roomHasParticipant(room *ChatRoom, userID string) bool {
	for _, p := range room.Participants {
		if p == userID {
			return true
		}
	}
	return false
}
