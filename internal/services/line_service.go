package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LinkSessionStore keeps single-use link correlation tokens. Consume must
// delete the token as it reads it: a second consume of the same token, or
// a consume after expiry, reports ok=false.
type LinkSessionStore interface {
	Create(ctx context.Context, token, userID string, ttl time.Duration) error
	Consume(ctx context.Context, token string) (userID string, ok bool, err error)
}

// LineStore persists the one-row-per-user account link.
type LineStore interface {
	UpsertLineLink(l *LineLink) error
	GetLineLink(userID string) (*LineLink, error)
}

// LineTokens is the provider's token-exchange response subset we use.
type LineTokens struct {
	AccessToken string
	IDToken     string
}

// LineClient is the external identity/messaging provider boundary.
type LineClient interface {
	ExchangeCode(ctx context.Context, code string) (*LineTokens, error)
	GetProfile(ctx context.Context, accessToken string) (string, error)
	PushText(ctx context.Context, lineUserID, message string) (string, error)
}

// linkState is the URL-safe-base64 JSON envelope round-tripped through the
// provider's state parameter.
type linkState struct {
	Token string `json:"token"`
}

// LinkSessionTTL bounds how long a started link flow stays redeemable.
const LinkSessionTTL = 10 * time.Minute

type LineService struct {
	sessions LinkSessionStore
	store    LineStore
	client   LineClient
	now      func() time.Time
	newToken func() string
}

func NewLineService(sessions LinkSessionStore, store LineStore, client LineClient) *LineService {
	return &LineService{
		sessions: sessions,
		store:    store,
		client:   client,
		now:      func() time.Time { return time.Now().UTC() },
		newToken: uuid.NewString,
	}
}

// BeginLink creates the single-use session and returns the encoded state
// to hand to the provider's authorize URL.
func (s *LineService) BeginLink(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", NewUnauthorizedError("sign in required")
	}
	token := s.newToken()
	if err := s.sessions.Create(ctx, token, userID, LinkSessionTTL); err != nil {
		return "", err
	}
	raw, err := json.Marshal(linkState{Token: token})
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// CompleteLink runs the callback flow: decode state, consume the session
// (single use), exchange the code, recover the LINE user id from the id
// token (profile fetch as fallback), and upsert the link row. Each failure
// keeps a distinct message; the handler encodes it into the landing
// redirect.
func (s *LineService) CompleteLink(ctx context.Context, code, state string) error {
	if code == "" || state == "" {
		return NewInvalidError("code/state required")
	}
	raw, err := base64.RawURLEncoding.DecodeString(state)
	if err != nil {
		return NewInvalidError("malformed state")
	}
	var env linkState
	if err := json.Unmarshal(raw, &env); err != nil || env.Token == "" {
		return NewInvalidError("malformed state")
	}
	userID, ok, err := s.sessions.Consume(ctx, env.Token)
	if err != nil {
		return err
	}
	if !ok {
		return NewNotFoundError("session not found")
	}

	tokens, err := s.client.ExchangeCode(ctx, code)
	if err != nil {
		var ue *UpstreamError
		if errors.As(err, &ue) {
			return NewBadGatewayError(ue.Error())
		}
		return NewBadGatewayError(err.Error())
	}

	lineUserID, err := lineUserIDFromIDToken(tokens.IDToken)
	if err != nil {
		lineUserID, err = s.client.GetProfile(ctx, tokens.AccessToken)
		if err != nil {
			return NewBadGatewayError("profile fetch failed: " + err.Error())
		}
	}
	if lineUserID == "" {
		return NewBadGatewayError("provider returned no user id")
	}

	if err := s.store.UpsertLineLink(&LineLink{UserID: userID, LineUserID: lineUserID, CreatedAt: s.now()}); err != nil {
		return NewConflictError("link upsert failed: " + err.Error())
	}
	return nil
}

// Push forwards one text notification to the user's linked LINE account
// and returns the provider response body verbatim.
func (s *LineService) Push(ctx context.Context, userID, message string) (string, error) {
	if userID == "" || strings.TrimSpace(message) == "" {
		return "", NewInvalidError("userId and message are required")
	}
	link, err := s.store.GetLineLink(userID)
	if err != nil {
		return "", err
	}
	if link == nil {
		return "", NewNotFoundError("no LINE account linked for user")
	}
	body, err := s.client.PushText(ctx, link.LineUserID, message)
	if err != nil {
		var ue *UpstreamError
		if errors.As(err, &ue) {
			return "", NewBadGatewayError(ue.Error())
		}
		return "", NewBadGatewayError(err.Error())
	}
	return body, nil
}

// lineUserIDFromIDToken decodes the JWT payload segment without signature
// verification (the token just arrived over TLS from the token endpoint)
// and returns its subject.
func lineUserIDFromIDToken(idToken string) (string, error) {
	parts := strings.Split(idToken, ".")
	if len(parts) != 3 {
		return "", errors.New("malformed id token")
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return "", err
	}
	var claims struct {
		Sub string `json:"sub"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return "", err
	}
	if claims.Sub == "" {
		return "", errors.New("id token has no subject")
	}
	return claims.Sub, nil
}

// HTTPLineClient talks to the LINE token, profile and messaging endpoints.
type HTTPLineClient struct {
	TokenURL     string
	ProfileURL   string
	PushURL      string
	ChannelID    string
	ChannelToken string
	Secret       string
	RedirectURI  string
	Client       *http.Client
}

func NewHTTPLineClient(channelID, secret, channelToken, redirectURI string) *HTTPLineClient {
	return &HTTPLineClient{
		TokenURL:     "https://api.line.me/oauth2/v2.1/token",
		ProfileURL:   "https://api.line.me/v2/profile",
		PushURL:      "https://api.line.me/v2/bot/message/push",
		ChannelID:    channelID,
		ChannelToken: channelToken,
		Secret:       secret,
		RedirectURI:  redirectURI,
		Client:       http.DefaultClient,
	}
}

func (c *HTTPLineClient) ExchangeCode(ctx context.Context, code string) (*LineTokens, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", c.RedirectURI)
	form.Set("client_id", c.ChannelID)
	form.Set("client_secret", c.Secret)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	respBody, err := c.do(req)
	if err != nil {
		return nil, err
	}
	var out struct {
		AccessToken string `json:"access_token"`
		IDToken     string `json:"id_token"`
	}
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, err
	}
	return &LineTokens{AccessToken: out.AccessToken, IDToken: out.IDToken}, nil
}

func (c *HTTPLineClient) GetProfile(ctx context.Context, accessToken string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.ProfileURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	respBody, err := c.do(req)
	if err != nil {
		return "", err
	}
	var out struct {
		UserID string `json:"userId"`
	}
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", err
	}
	return out.UserID, nil
}

func (c *HTTPLineClient) PushText(ctx context.Context, lineUserID, message string) (string, error) {
	body, err := json.Marshal(map[string]any{
		"to":       lineUserID,
		"messages": []map[string]string{{"type": "text", "text": message}},
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.PushURL, strings.NewReader(string(body)))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.ChannelToken)
	respBody, err := c.do(req)
	if err != nil {
		return "", err
	}
	return string(respBody), nil
}

func (c *HTTPLineClient) do(req *http.Request) ([]byte, error) {
	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UpstreamError{Status: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}
