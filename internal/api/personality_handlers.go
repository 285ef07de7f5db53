package api

import (
	"net/http"

	"github.com/koecan-app/koecan/internal/middleware"
	"github.com/koecan-app/koecan/internal/services"
)

// GET /api/personality/report?survey_id=X&dimension=job_type|tenure_band
func (rt *Router) handleReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	surveyID := r.URL.Query().Get("survey_id")
	if surveyID == "" {
		writeError(w, services.NewInvalidError("survey_id required"))
		return
	}
	dim := services.GroupDimension(r.URL.Query().Get("dimension"))
	if dim == "" {
		dim = services.DimensionJobType
	}
	groups, err := rt.personality.Report(surveyID, dim)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"survey_id": surveyID, "dimension": dim, "groups": groups})
}

// GET /api/personality/me?survey_id=X — the signed-in user's own scores.
func (rt *Router) handleProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	surveyID := r.URL.Query().Get("survey_id")
	if surveyID == "" {
		writeError(w, services.NewInvalidError("survey_id required"))
		return
	}
	uid, _ := middleware.UserIDFromContext(r.Context())
	profile, err := rt.personality.Profile(surveyID, uid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}
