package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/koecan-app/koecan/internal/middleware"
	"github.com/koecan-app/koecan/internal/realtime"
	"github.com/koecan-app/koecan/internal/services"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browsers hit the API from the app origin; CORS already gates the
	// REST surface and the ws handshake carries the same bearer token.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// POST /api/chat/rooms/resolve
// { other_id, room_type?, read_only? } — find-or-create the support room
// for the signed-in user and other_id. read_only never creates.
func (rt *Router) handleResolveRoom(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		OtherID  string `json:"other_id"`
		ReadOnly bool   `json:"read_only"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	uid, _ := middleware.UserIDFromContext(r.Context())
	room, err := rt.chat.ResolveRoom(uid, req.OtherID, req.ReadOnly)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// /api/chat/rooms/{id}/messages | /{id}/read | /{id}/ws
func (rt *Router) handleRoomScoped(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/chat/rooms/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 {
		http.NotFound(w, r)
		return
	}
	roomID := parts[0]
	switch parts[1] {
	case "messages":
		rt.handleRoomMessages(w, r, roomID)
	case "read":
		rt.handleRoomRead(w, r, roomID)
	case "ws":
		rt.handleRoomSocket(w, r, roomID)
	default:
		http.NotFound(w, r)
	}
}

func (rt *Router) handleRoomMessages(w http.ResponseWriter, r *http.Request, roomID string) {
	uid, _ := middleware.UserIDFromContext(r.Context())
	switch r.Method {
	case http.MethodGet:
		msgs, err := rt.chat.History(roomID, uid)
		if err != nil {
			writeError(w, err)
			return
		}
		state, err := rt.chat.ReadState(roomID, uid)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"messages": msgs, "read_state": state})
	case http.MethodPost:
		var req struct {
			Message string `json:"message"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		msg, err := rt.chat.Send(roomID, uid, req.Message)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, msg)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// POST /api/chat/rooms/{id}/read — advance the viewer's read marker.
func (rt *Router) handleRoomRead(w http.ResponseWriter, r *http.Request, roomID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		MessageID string `json:"message_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	uid, _ := middleware.UserIDFromContext(r.Context())
	if err := rt.chat.MarkRead(roomID, uid, req.MessageID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// GET /api/chat/rooms/{id}/ws — upgrade to a live message feed. Sends
// still travel over the REST path; the socket is delivery-only.
func (rt *Router) handleRoomSocket(w http.ResponseWriter, r *http.Request, roomID string) {
	if rt.hub == nil {
		http.Error(w, "live feed unavailable", http.StatusServiceUnavailable)
		return
	}
	uid, _ := middleware.UserIDFromContext(r.Context())
	room, err := rt.chat.Room(roomID)
	if err != nil {
		writeError(w, err)
		return
	}
	member := false
	for _, p := range room.Participants {
		if p == uid {
			member = true
			break
		}
	}
	if !member {
		writeError(w, services.NewForbiddenError("not a participant"))
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return // Upgrade already wrote the response
	}
	client := realtime.NewClient(conn, roomID, uid)
	rt.hub.Register(client)
	go client.WritePump()
	go client.ReadPump(rt.hub)
}
