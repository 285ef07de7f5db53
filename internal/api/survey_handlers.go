package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/koecan-app/koecan/internal/middleware"
	"github.com/koecan-app/koecan/internal/services"
)

// GET/POST /api/surveys
func (rt *Router) handleSurveys(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		svs, err := rt.surveys.ListSurveys()
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"surveys": svs})
	case http.MethodPost:
		role, _ := middleware.RoleFromContext(r.Context())
		if role != services.RoleClient && role != services.RoleAdmin {
			writeError(w, services.NewForbiddenError("clients only"))
			return
		}
		var sv services.Survey
		if err := json.NewDecoder(r.Body).Decode(&sv); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		uid, _ := middleware.UserIDFromContext(r.Context())
		sv.CreatedBy = uid
		out, err := rt.surveys.CreateSurvey(&sv)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, out)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// GET /api/surveys/{id}/questions
func (rt *Router) handleSurveyScoped(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/surveys/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[1] != "questions" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	qs, err := rt.surveys.ListQuestions(parts[0])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"survey_id": parts[0], "questions": qs})
}

// POST /api/questions
func (rt *Router) handleQuestions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var q services.Question
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	out, err := rt.surveys.AddQuestion(&q)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

// POST /api/responses/bulk
// { survey_id, job_type?, tenure_band?, answers: [{question_id, value}] }
// The respondent is always the signed-in user; client-supplied ids are
// ignored so one account cannot submit on another's behalf.
func (rt *Router) handleBulkAnswers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		SurveyID   string `json:"survey_id"`
		JobType    string `json:"job_type"`
		TenureBand string `json:"tenure_band"`
		Answers    []struct {
			QuestionID string          `json:"question_id"`
			Value      json.RawMessage `json:"value"`
		} `json:"answers"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	uid, _ := middleware.UserIDFromContext(r.Context())
	in := services.BulkAnswersRequest{
		SurveyID:     req.SurveyID,
		RespondentID: uid,
		JobType:      req.JobType,
		TenureBand:   req.TenureBand,
	}
	for _, a := range req.Answers {
		in.Answers = append(in.Answers, services.BulkAnswer{QuestionID: a.QuestionID, Raw: a.Value})
	}
	res, err := rt.surveys.SubmitBulkAnswers(in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"answer_count": res.AnswerCount, "points_credited": res.PointsCredited})
}

// POST /api/surveys/import — body is raw markdown (text/markdown) or a
// JSON envelope {"markdown": "..."}.
func (rt *Router) handleImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	src := string(body)
	if strings.HasPrefix(strings.TrimSpace(r.Header.Get("Content-Type")), "application/json") {
		var env struct {
			Markdown string `json:"markdown"`
		}
		if err := json.Unmarshal(body, &env); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		src = env.Markdown
	}
	uid, _ := middleware.UserIDFromContext(r.Context())
	svs, err := rt.imports.ImportMarkdown(uid, src)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"surveys": svs})
}
