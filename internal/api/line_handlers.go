package api

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/koecan-app/koecan/internal/middleware"
	"github.com/koecan-app/koecan/internal/services"
)

// GET /api/line/link/start — open a single-use link session and return
// the state the frontend appends to the provider's authorize URL.
func (rt *Router) handleLineLinkStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	uid, _ := middleware.UserIDFromContext(r.Context())
	state, err := rt.line.BeginLink(r.Context(), uid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": state})
}

// GET /api/line/callback?code=X&state=Y — the provider redirect target.
// The browser arrives without our bearer token, so the flow identifies the
// user through the state session and always ends in a redirect to the
// landing page with the outcome in query flags.
func (rt *Router) handleLineCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	if errCode := q.Get("error"); errCode != "" {
		msg := q.Get("error_description")
		if msg == "" {
			msg = errCode
		}
		http.Redirect(w, r, rt.landingPath+"?status=error&message="+url.QueryEscape(msg), http.StatusFound)
		return
	}
	dest := rt.landingPath
	if err := rt.line.CompleteLink(r.Context(), q.Get("code"), q.Get("state")); err != nil {
		msg := err.Error()
		if se, ok := services.AsServiceError(err); ok {
			msg = se.Message
		}
		dest += "?status=error&message=" + url.QueryEscape(msg)
	} else {
		dest += "?status=success"
	}
	http.Redirect(w, r, dest, http.StatusFound)
}

// POST /api/notifications/push — { userId, message }
func (rt *Router) handlePush(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		UserID  string `json:"userId"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	body, err := rt.line.Push(r.Context(), req.UserID, req.Message)
	if err != nil {
		writeError(w, err)
		return
	}
	actor, _ := middleware.UserIDFromContext(r.Context())
	rt.store.AddAudit(services.AuditEntry{Actor: actor, Action: "line.push", Target: req.UserID})
	writeJSON(w, http.StatusOK, map[string]string{"provider_response": body})
}
