package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/koecan-app/koecan/internal/middleware"
	"github.com/koecan-app/koecan/internal/realtime"
	"github.com/koecan-app/koecan/internal/services"
	"github.com/koecan-app/koecan/internal/session"
)

type stubIssuer struct {
	url string
	err error
}

func (s *stubIssuer) Issue(ctx context.Context, req services.IssueRequest) (*services.IssueResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &services.IssueResult{CardURL: s.url}, nil
}

type stubLineClient struct {
	tokens  *services.LineTokens
	profile string
	pushed  []string
}

func (c *stubLineClient) ExchangeCode(ctx context.Context, code string) (*services.LineTokens, error) {
	return c.tokens, nil
}

func (c *stubLineClient) GetProfile(ctx context.Context, accessToken string) (string, error) {
	return c.profile, nil
}

func (c *stubLineClient) PushText(ctx context.Context, lineUserID, message string) (string, error) {
	c.pushed = append(c.pushed, lineUserID+":"+message)
	return `{"sentMessages":[{"id":"1"}]}`, nil
}

func newTestServer(t *testing.T, issuer services.GiftIssuer, line services.LineClient) *httptest.Server {
	t.Helper()
	hub := realtime.NewHub()
	go hub.Run()
	rt := NewRouter(Config{
		Store:      NewMemoryStore(),
		Hub:        hub,
		Sessions:   session.NewMemoryLinkSessionStore(),
		LineClient: line,
		GiftIssuer: issuer,
	})
	mux := http.NewServeMux()
	rt.Register(mux)
	srv := httptest.NewServer(middleware.WithAuth(mux))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url, token string, body any, out any) int {
	t.Helper()
	var rd io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		data, _ := io.ReadAll(resp.Body)
		if len(data) > 0 {
			if err := json.Unmarshal(data, out); err != nil {
				t.Fatalf("decode response from %s: %v (body %s)", url, err, data)
			}
		}
	}
	return resp.StatusCode
}

func register(t *testing.T, base, email, role string) (token, userID string) {
	t.Helper()
	var resp struct {
		Token  string `json:"token"`
		UserID string `json:"user_id"`
		Home   string `json:"home"`
	}
	status := doJSON(t, http.MethodPost, base+"/api/auth/register", "", map[string]string{
		"email": email, "password": "Secret123!", "role": role,
	}, &resp)
	if status != http.StatusCreated {
		t.Fatalf("register status %d", status)
	}
	if resp.Token == "" || resp.UserID == "" {
		t.Fatalf("unexpected register response: %+v", resp)
	}
	return resp.Token, resp.UserID
}

func TestAuthBootstrap(t *testing.T) {
	srv := newTestServer(t, &stubIssuer{}, &stubLineClient{})
	token, _ := register(t, srv.URL, "client@example.com", "client")

	var me struct {
		User services.User `json:"user"`
		Home string        `json:"home"`
	}
	if status := doJSON(t, http.MethodGet, srv.URL+"/api/me", token, nil, &me); status != http.StatusOK {
		t.Fatalf("me status %d", status)
	}
	if me.User.Role != services.RoleClient || me.Home != "/app/client" {
		t.Fatalf("bootstrap = role %q home %q", me.User.Role, me.Home)
	}

	if status := doJSON(t, http.MethodGet, srv.URL+"/api/me", "", nil, nil); status != http.StatusUnauthorized {
		t.Fatalf("unauthenticated me status %d, want 401", status)
	}
}

func TestRoleGating(t *testing.T) {
	srv := newTestServer(t, &stubIssuer{}, &stubLineClient{})
	monToken, _ := register(t, srv.URL, "mon@example.com", "monitor")

	status := doJSON(t, http.MethodPost, srv.URL+"/api/questions", monToken, map[string]any{
		"survey_id": "S1", "kind": "text", "text": "q",
	}, nil)
	if status != http.StatusForbidden {
		t.Fatalf("monitor posting question: status %d, want 403", status)
	}
}

func TestSurveyAnswerReportFlow(t *testing.T) {
	srv := newTestServer(t, &stubIssuer{}, &stubLineClient{})
	clientToken, _ := register(t, srv.URL, "client@example.com", "client")

	var sv services.Survey
	status := doJSON(t, http.MethodPost, srv.URL+"/api/surveys", clientToken, map[string]any{
		"title": "Workplace Fit", "points": 50,
	}, &sv)
	if status != http.StatusCreated || sv.ID == "" {
		t.Fatalf("create survey: status %d id %q", status, sv.ID)
	}

	axisQ := func(group string) string {
		var q services.Question
		status := doJSON(t, http.MethodPost, srv.URL+"/api/questions", clientToken, map[string]any{
			"survey_id": sv.ID, "kind": "single", "text": "rate", "axis_group": group,
		}, &q)
		if status != http.StatusCreated || q.ID == "" {
			t.Fatalf("add %s question: status %d", group, status)
		}
		return q.ID
	}
	qEng := axisQ("engagement")
	qStr := axisQ("strategy")
	qSty := axisQ("style")
	qDec := axisQ("decision")

	monToken, monID := register(t, srv.URL, "mon@example.com", "monitor")
	var bulk struct {
		AnswerCount    int `json:"answer_count"`
		PointsCredited int `json:"points_credited"`
	}
	status = doJSON(t, http.MethodPost, srv.URL+"/api/responses/bulk", monToken, map[string]any{
		"survey_id": sv.ID,
		"job_type":  "engineering",
		"answers": []map[string]any{
			{"question_id": qEng, "value": 2},
			{"question_id": qStr, "value": -1},
			{"question_id": qSty, "value": 0},
			{"question_id": qDec, "value": 3},
		},
	}, &bulk)
	if status != http.StatusOK {
		t.Fatalf("bulk status %d", status)
	}
	if bulk.AnswerCount != 4 || bulk.PointsCredited != 50 {
		t.Fatalf("bulk = %+v", bulk)
	}

	var report struct {
		Groups []services.GroupResult `json:"groups"`
	}
	url := fmt.Sprintf("%s/api/personality/report?survey_id=%s&dimension=job_type", srv.URL, sv.ID)
	if status := doJSON(t, http.MethodGet, url, clientToken, nil, &report); status != http.StatusOK {
		t.Fatalf("report status %d", status)
	}
	if len(report.Groups) != 1 || report.Groups[0].GroupKey != "engineering" {
		t.Fatalf("groups = %+v", report.Groups)
	}
	if report.Groups[0].TypeCode != "INP/RO" {
		t.Fatalf("group code = %q, want INP/RO", report.Groups[0].TypeCode)
	}

	var profile services.GroupResult
	url = fmt.Sprintf("%s/api/personality/me?survey_id=%s", srv.URL, sv.ID)
	if status := doJSON(t, http.MethodGet, url, monToken, nil, &profile); status != http.StatusOK {
		t.Fatalf("profile status %d", status)
	}
	if profile.TypeCode != "INP/RO" || profile.GroupKey != monID {
		t.Fatalf("profile = %+v", profile)
	}

	var me struct {
		User services.User `json:"user"`
	}
	doJSON(t, http.MethodGet, srv.URL+"/api/me", monToken, nil, &me)
	if me.User.Points != 50 {
		t.Fatalf("points after submission = %d, want 50", me.User.Points)
	}
}

func TestMarkdownImport(t *testing.T) {
	srv := newTestServer(t, &stubIssuer{}, &stubLineClient{})
	clientToken, _ := register(t, srv.URL, "client@example.com", "client")

	md := "# Onboarding\n\n## First impressions survey\n\n### What surprised you?\n\n##### Pick your tools\n- Editor\n- Terminal\n\n###### Rank priorities (2)\n- Speed\n- Quality\n- Cost\n"
	var resp struct {
		Surveys []services.Survey `json:"surveys"`
	}
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/surveys/import", strings.NewReader(md))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "text/markdown")
	req.Header.Set("Authorization", "Bearer "+clientToken)
	raw, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("import request: %v", err)
	}
	defer raw.Body.Close()
	if raw.StatusCode != http.StatusCreated {
		t.Fatalf("import status %d", raw.StatusCode)
	}
	if err := json.NewDecoder(raw.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Surveys) != 1 || resp.Surveys[0].Title != "Onboarding" {
		t.Fatalf("surveys = %+v", resp.Surveys)
	}

	var qs struct {
		Questions []services.Question `json:"questions"`
	}
	url := srv.URL + "/api/surveys/" + resp.Surveys[0].ID + "/questions"
	if status := doJSON(t, http.MethodGet, url, clientToken, nil, &qs); status != http.StatusOK {
		t.Fatalf("questions status %d", status)
	}
	if len(qs.Questions) != 3 {
		t.Fatalf("question count = %d, want 3", len(qs.Questions))
	}
	if qs.Questions[2].Kind != services.QuestionRanking || qs.Questions[2].MaxRank != 2 {
		t.Fatalf("ranking question = %+v", qs.Questions[2])
	}
}

func TestMatchingFunnel(t *testing.T) {
	srv := newTestServer(t, &stubIssuer{}, &stubLineClient{})
	adminToken, _ := register(t, srv.URL, "admin@example.com", "admin")
	monToken, _ := register(t, srv.URL, "mon@example.com", "monitor")

	addCompany := func(name, code string, industries []string) string {
		var c services.Company
		status := doJSON(t, http.MethodPost, srv.URL+"/api/admin/companies", adminToken, map[string]any{
			"name": name, "type_code": code, "industries": industries,
		}, &c)
		if status != http.StatusCreated || c.ID == "" {
			t.Fatalf("add company %s: status %d", name, status)
		}
		return c.ID
	}
	c1 := addCompany("Acme", "INPO", []string{"it"})
	addCompany("Globex", "ESRF", []string{"it"})
	addCompany("Initech", "INPO", []string{"finance"})

	status := doJSON(t, http.MethodPost, srv.URL+"/api/admin/companies/"+c1+"/responses", adminToken, map[string]string{
		"job_type": "engineering",
	}, nil)
	if status != http.StatusCreated {
		t.Fatalf("add company response status %d", status)
	}

	var derived struct {
		TypeCodes []string `json:"type_codes"`
	}
	status = doJSON(t, http.MethodPost, srv.URL+"/api/matching/types", monToken, map[string]any{
		"value_letters": []string{"E"},
	}, &derived)
	if status != http.StatusOK || len(derived.TypeCodes) != 8 {
		t.Fatalf("derive types: status %d codes %d", status, len(derived.TypeCodes))
	}

	var res struct {
		Companies []services.Company `json:"companies"`
		Count     int                `json:"count"`
	}
	status = doJSON(t, http.MethodPost, srv.URL+"/api/matching/candidates", monToken, map[string]any{
		"value_letters": []string{"I", "N", "F", "J"},
		"industries":    []string{"it"},
		"job_types":     []string{"engineering"},
	}, &res)
	if status != http.StatusOK {
		t.Fatalf("candidates status %d", status)
	}
	if res.Count != 1 || res.Companies[0].ID != c1 {
		t.Fatalf("candidates = %+v", res)
	}
}

func TestChatFlow(t *testing.T) {
	srv := newTestServer(t, &stubIssuer{}, &stubLineClient{})
	monToken, monID := register(t, srv.URL, "mon@example.com", "monitor")
	supToken, supID := register(t, srv.URL, "sup@example.com", "support")

	var room services.ChatRoom
	status := doJSON(t, http.MethodPost, srv.URL+"/api/chat/rooms/resolve", monToken, map[string]any{
		"other_id": supID,
	}, &room)
	if status != http.StatusOK || room.ID == "" {
		t.Fatalf("resolve status %d room %+v", status, room)
	}

	var again services.ChatRoom
	doJSON(t, http.MethodPost, srv.URL+"/api/chat/rooms/resolve", supToken, map[string]any{
		"other_id": monID,
	}, &again)
	if again.ID != room.ID {
		t.Fatalf("resolve from other side returned %q, want %q", again.ID, room.ID)
	}

	var msg services.ChatMessage
	status = doJSON(t, http.MethodPost, srv.URL+"/api/chat/rooms/"+room.ID+"/messages", monToken, map[string]string{
		"message": "hello",
	}, &msg)
	if status != http.StatusCreated || msg.ID == "" {
		t.Fatalf("send status %d msg %+v", status, msg)
	}

	status = doJSON(t, http.MethodPost, srv.URL+"/api/chat/rooms/"+room.ID+"/read", supToken, map[string]string{
		"message_id": msg.ID,
	}, nil)
	if status != http.StatusOK {
		t.Fatalf("mark read status %d", status)
	}

	var hist struct {
		Messages  []services.ChatMessage  `json:"messages"`
		ReadState *services.ChatReadState `json:"read_state"`
	}
	status = doJSON(t, http.MethodGet, srv.URL+"/api/chat/rooms/"+room.ID+"/messages", supToken, nil, &hist)
	if status != http.StatusOK {
		t.Fatalf("history status %d", status)
	}
	if len(hist.Messages) != 1 || hist.Messages[0].Body != "hello" {
		t.Fatalf("history = %+v", hist.Messages)
	}
	if hist.ReadState == nil || hist.ReadState.LastMessageID != msg.ID {
		t.Fatalf("read state = %+v", hist.ReadState)
	}

	// outsiders cannot read the room
	outToken, _ := register(t, srv.URL, "other@example.com", "monitor")
	status = doJSON(t, http.MethodGet, srv.URL+"/api/chat/rooms/"+room.ID+"/messages", outToken, nil, nil)
	if status != http.StatusForbidden {
		t.Fatalf("outsider history status %d, want 403", status)
	}
}

func TestGiftRedeem(t *testing.T) {
	srv := newTestServer(t, &stubIssuer{url: "https://cards.example/abc"}, &stubLineClient{})
	clientToken, _ := register(t, srv.URL, "client@example.com", "client")
	monToken, _ := register(t, srv.URL, "mon@example.com", "monitor")

	var sv services.Survey
	doJSON(t, http.MethodPost, srv.URL+"/api/surveys", clientToken, map[string]any{"title": "S", "points": 100}, &sv)
	var q services.Question
	doJSON(t, http.MethodPost, srv.URL+"/api/questions", clientToken, map[string]any{
		"survey_id": sv.ID, "kind": "text", "text": "q",
	}, &q)
	doJSON(t, http.MethodPost, srv.URL+"/api/responses/bulk", monToken, map[string]any{
		"survey_id": sv.ID,
		"answers":   []map[string]any{{"question_id": q.ID, "value": "fine"}},
	}, nil)

	var res services.RedeemResult
	status := doJSON(t, http.MethodPost, srv.URL+"/api/gifts/redeem", monToken, map[string]any{
		"exchangeType": "amazon", "pointsAmount": 60, "userEmail": "mon@example.com",
	}, &res)
	if status != http.StatusOK {
		t.Fatalf("redeem status %d", status)
	}
	if res.CardURL != "https://cards.example/abc" || res.Points != 60 {
		t.Fatalf("redeem = %+v", res)
	}

	// 40 points left, second 60-point redemption must fail
	status = doJSON(t, http.MethodPost, srv.URL+"/api/gifts/redeem", monToken, map[string]any{
		"exchangeType": "amazon", "pointsAmount": 60, "userEmail": "mon@example.com",
	}, nil)
	if status != http.StatusConflict {
		t.Fatalf("over-balance redeem status %d, want 409", status)
	}

	var log struct {
		Gifts []services.GiftIssue `json:"gifts"`
	}
	doJSON(t, http.MethodGet, srv.URL+"/api/gifts/history", monToken, nil, &log)
	if len(log.Gifts) != 1 || log.Gifts[0].Points != 60 {
		t.Fatalf("gift log = %+v", log.Gifts)
	}
}

func TestLineLinkAndPush(t *testing.T) {
	line := &stubLineClient{tokens: &services.LineTokens{AccessToken: "at"}, profile: "U_line_1"}
	srv := newTestServer(t, &stubIssuer{}, line)
	monToken, monID := register(t, srv.URL, "mon@example.com", "monitor")
	supToken, _ := register(t, srv.URL, "sup@example.com", "support")

	var start struct {
		State string `json:"state"`
	}
	if status := doJSON(t, http.MethodGet, srv.URL+"/api/line/link/start", monToken, nil, &start); status != http.StatusOK {
		t.Fatalf("link start status %d", status)
	}
	if start.State == "" {
		t.Fatalf("empty state")
	}

	// the provider redirect arrives without our bearer token
	noRedirect := &http.Client{CheckRedirect: func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	resp, err := noRedirect.Get(srv.URL + "/api/line/callback?code=xyz&state=" + start.State)
	if err != nil {
		t.Fatalf("callback: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("callback status %d, want 302", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); !strings.Contains(loc, "status=success") {
		t.Fatalf("callback location = %q", loc)
	}

	// replaying the same state must fail: the session is single use
	resp, err = noRedirect.Get(srv.URL + "/api/line/callback?code=xyz&state=" + start.State)
	if err != nil {
		t.Fatalf("replay callback: %v", err)
	}
	resp.Body.Close()
	if loc := resp.Header.Get("Location"); !strings.Contains(loc, "status=error") {
		t.Fatalf("replay location = %q", loc)
	}

	status := doJSON(t, http.MethodPost, srv.URL+"/api/notifications/push", supToken, map[string]string{
		"userId": monID, "message": "your report is ready",
	}, nil)
	if status != http.StatusOK {
		t.Fatalf("push status %d", status)
	}
	if len(line.pushed) != 1 || line.pushed[0] != "U_line_1:your report is ready" {
		t.Fatalf("pushed = %v", line.pushed)
	}

	// monitors cannot push
	status = doJSON(t, http.MethodPost, srv.URL+"/api/notifications/push", monToken, map[string]string{
		"userId": monID, "message": "hi",
	}, nil)
	if status != http.StatusForbidden {
		t.Fatalf("monitor push status %d, want 403", status)
	}
}
