package api

import (
	"encoding/json"
	"net/http"

	"github.com/koecan-app/koecan/internal/middleware"
	"github.com/koecan-app/koecan/internal/services"
)

// POST /api/gifts/redeem — exchange points for a gift card. Monitors may
// only redeem for themselves; support and admin can act on any account.
func (rt *Router) handleRedeem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req services.RedeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	uid, _ := middleware.UserIDFromContext(r.Context())
	role, _ := middleware.RoleFromContext(r.Context())
	if req.UserID == "" {
		req.UserID = uid
	}
	if req.UserID != uid && role != services.RoleSupport && role != services.RoleAdmin {
		writeError(w, services.NewForbiddenError("cannot redeem for another user"))
		return
	}
	res, err := rt.gifts.Redeem(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	rt.store.AddAudit(services.AuditEntry{Actor: uid, Action: "gift.redeem", Target: req.UserID})
	writeJSON(w, http.StatusOK, res)
}

// GET /api/gifts/history — the signed-in user's issuance log.
func (rt *Router) handleGiftLog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	uid, _ := middleware.UserIDFromContext(r.Context())
	issues, err := rt.store.ListGiftIssues(uid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"gifts": issues})
}
