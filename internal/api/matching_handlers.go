package api

import (
	"encoding/json"
	"net/http"

	"github.com/koecan-app/koecan/internal/services"
)

// POST /api/matching/types — expand selected value letters into type codes.
func (rt *Router) handleDeriveTypes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		ValueLetters []string `json:"value_letters"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	types, err := services.DeriveTypes(req.ValueLetters)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"type_codes": types})
}

// POST /api/matching/candidates — run the full three-step funnel.
func (rt *Router) handleCandidates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var sel services.FilterSelection
	if err := json.NewDecoder(r.Body).Decode(&sel); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	companies, err := rt.matching.Candidates(sel)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"companies": companies, "count": len(companies)})
}
