package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/koecan-app/koecan/internal/middleware"
	"github.com/koecan-app/koecan/internal/services"
)

// POST /api/admin/companies — register a client company with its stored
// personality type, the entry point of the matching funnel's data.
func (rt *Router) handleCompanies(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var c services.Company
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if c.Name == "" || c.TypeCode == "" {
		writeError(w, services.NewInvalidError("name and type_code are required"))
		return
	}
	if c.ID == "" {
		c.ID = newID()
	}
	out, err := rt.store.AddCompany(&c)
	if err != nil {
		writeError(w, err)
		return
	}
	actor, _ := middleware.UserIDFromContext(r.Context())
	rt.store.AddAudit(services.AuditEntry{Actor: actor, Action: "company.add", Target: out.ID})
	writeJSON(w, http.StatusCreated, out)
}

// POST /api/admin/companies/{id}/responses — record the job type of a
// respondent who answered for this company (feeds funnel step 3).
func (rt *Router) handleCompanyScoped(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/admin/companies/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[1] != "responses" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		JobType string `json:"job_type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.JobType == "" {
		writeError(w, services.NewInvalidError("job_type required"))
		return
	}
	if err := rt.store.AddCompanyResponse(parts[0], req.JobType); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]bool{"ok": true})
}

// GET /api/admin/audit
func (rt *Router) handleAudit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": rt.store.ListAudit()})
}
