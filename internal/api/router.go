package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/koecan-app/koecan/internal/middleware"
	"github.com/koecan-app/koecan/internal/realtime"
	"github.com/koecan-app/koecan/internal/services"
	"github.com/koecan-app/koecan/internal/session"
	"github.com/koecan-app/koecan/internal/utils"
)

// Router wires the HTTP surface to the service layer. All state lives in
// the injected Store; the router itself is stateless.
type Router struct {
	store Store
	hub   *realtime.Hub

	auth        *services.AuthService
	surveys     *services.SurveyService
	imports     *services.ImportService
	personality *services.PersonalityService
	matching    *services.MatchingService
	chat        *services.ChatService
	gifts       *services.GiftService
	line        *services.LineService

	landingPath string
}

// Config collects the router's external collaborators. Nil fields fall
// back to in-process defaults (memory store, env-configured providers),
// which is what tests and local development want.
type Config struct {
	Store       Store
	Hub         *realtime.Hub
	Sessions    services.LinkSessionStore
	LineClient  services.LineClient
	GiftIssuer  services.GiftIssuer
	LandingPath string
}

func NewRouter(cfg Config) *Router {
	store := cfg.Store
	if store == nil {
		store = NewMemoryStore()
	}
	sessions := cfg.Sessions
	if sessions == nil {
		sessions = session.NewMemoryLinkSessionStore()
	}
	lineClient := cfg.LineClient
	if lineClient == nil {
		lineClient = services.NewHTTPLineClient(
			utils.SafeEnv("KOECAN_LINE_CHANNEL_ID", ""),
			utils.SafeEnv("KOECAN_LINE_CHANNEL_SECRET", ""),
			utils.SafeEnv("KOECAN_LINE_CHANNEL_TOKEN", ""),
			utils.SafeEnv("KOECAN_LINE_REDIRECT_URI", ""),
		)
	}
	issuer := cfg.GiftIssuer
	if issuer == nil {
		issuer = services.NewHTTPGiftIssuer(
			utils.SafeEnv("KOECAN_GIFT_API_URL", ""),
			utils.SafeEnv("KOECAN_GIFT_ACCESS_TOKEN", ""),
		)
	}
	landing := cfg.LandingPath
	if landing == "" {
		landing = "/app/line/linked"
	}

	surveys := services.NewSurveyService(store)
	rt := &Router{
		store:       store,
		hub:         cfg.Hub,
		auth:        services.NewAuthService(store, middleware.SignToken),
		surveys:     surveys,
		imports:     services.NewImportService(surveys),
		personality: services.NewPersonalityService(&personalityStoreAdapter{store: store}),
		matching:    services.NewMatchingService(store),
		chat:        services.NewChatService(store, feedOrNil(cfg.Hub)),
		gifts:       services.NewGiftService(store, issuer),
		line:        services.NewLineService(sessions, store, lineClient),
		landingPath: landing,
	}
	return rt
}

func feedOrNil(hub *realtime.Hub) services.MessageFeed {
	if hub == nil {
		return nil
	}
	return hub
}

func (rt *Router) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/auth/register", rt.handleRegister) // POST
	mux.HandleFunc("/api/auth/login", rt.handleLogin)       // POST
	mux.Handle("/api/me", authed(rt.handleMe))              // GET

	mux.Handle("/api/surveys", authed(rt.handleSurveys))            // GET, POST (client/admin)
	mux.Handle("/api/surveys/", authed(rt.handleSurveyScoped))      // GET /api/surveys/{id}/questions
	mux.Handle("/api/questions", roled(rt.handleQuestions, services.RoleClient, services.RoleAdmin))
	mux.Handle("/api/surveys/import", roled(rt.handleImport, services.RoleClient, services.RoleAdmin))
	mux.Handle("/api/responses/bulk", authed(rt.handleBulkAnswers)) // POST

	mux.Handle("/api/personality/report", roled(rt.handleReport, services.RoleClient, services.RoleAdmin))
	mux.Handle("/api/personality/me", authed(rt.handleProfile)) // GET

	mux.Handle("/api/matching/types", authed(rt.handleDeriveTypes))    // POST
	mux.Handle("/api/matching/candidates", authed(rt.handleCandidates)) // POST

	mux.Handle("/api/chat/rooms/resolve", authed(rt.handleResolveRoom)) // POST
	mux.Handle("/api/chat/rooms/", authed(rt.handleRoomScoped))         // messages, read, ws

	mux.Handle("/api/gifts/redeem", authed(rt.handleRedeem))   // POST
	mux.Handle("/api/gifts/history", authed(rt.handleGiftLog)) // GET
	mux.Handle("/api/notifications/push", roled(rt.handlePush, services.RoleSupport, services.RoleAdmin))

	mux.Handle("/api/line/link/start", authed(rt.handleLineLinkStart)) // GET
	mux.HandleFunc("/api/line/callback", rt.handleLineCallback)        // GET (provider redirect)

	mux.Handle("/api/admin/companies", roled(rt.handleCompanies, services.RoleAdmin))
	mux.Handle("/api/admin/companies/", roled(rt.handleCompanyScoped, services.RoleAdmin))
	mux.Handle("/api/admin/audit", roled(rt.handleAudit, services.RoleAdmin))
}

func authed(h http.HandlerFunc) http.Handler {
	return middleware.RequireAuth(h)
}

func roled(h http.HandlerFunc, roles ...string) http.Handler {
	return middleware.RequireRole(h, roles...)
}

func newID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError translates service errors to HTTP statuses. The error code
// travels in the body so the frontend can branch without parsing messages.
func writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, services.ErrSurveyNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "message": err.Error()})
		return
	}
	if se, ok := services.AsServiceError(err); ok {
		writeJSON(w, statusFor(se.Code), map[string]string{"error": string(se.Code), "message": se.Message})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal", "message": err.Error()})
}

func statusFor(code services.ErrorCode) int {
	switch code {
	case services.ErrorInvalid:
		return http.StatusBadRequest
	case services.ErrorUnauthorized:
		return http.StatusUnauthorized
	case services.ErrorForbidden:
		return http.StatusForbidden
	case services.ErrorNotFound:
		return http.StatusNotFound
	case services.ErrorConflict:
		return http.StatusConflict
	case services.ErrorBadGateway:
		return http.StatusBadGateway
	case services.ErrorTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
