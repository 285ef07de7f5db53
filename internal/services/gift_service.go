package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ExchangeConfigCodes maps the two accepted exchange types to the fixed
// gift-issuer configuration codes.
var ExchangeConfigCodes = map[string]string{
	"amazon": "gift_config_amazon",
	"paypay": "gift_config_paypay",
}

// UpstreamError carries a failed provider call's status and body so the
// caller can echo them verbatim.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream status %d: %s", e.Status, e.Body)
}

// ErrInsufficientPoints rejects redemptions above the user's balance.
var ErrInsufficientPoints = errors.New("insufficient points")

// GiftStore covers the user balance and issuance log operations.
type GiftStore interface {
	GetUser(id string) (*User, error)
	DebitPoints(userID string, amount int) error
	CreditPoints(userID string, amount int) error
	AddGiftIssue(g *GiftIssue) error
}

// GiftIssuer is the external gift-card provider boundary.
type GiftIssuer interface {
	Issue(ctx context.Context, req IssueRequest) (*IssueResult, error)
}

// IssueRequest uses the internal user id as the provider-side request id,
// which doubles as the idempotency key.
type IssueRequest struct {
	RequestID  string
	ConfigCode string
	Points     int
	Email      string
}

type IssueResult struct {
	CardURL string
}

type RedeemRequest struct {
	ExchangeType string `json:"exchangeType"`
	PointsAmount int    `json:"pointsAmount"`
	UserID       string `json:"userId"`
	UserEmail    string `json:"userEmail"`
}

type RedeemResult struct {
	CardURL string `json:"card_url"`
	Points  int    `json:"points"`
}

type GiftService struct {
	store  GiftStore
	issuer GiftIssuer
	now    func() time.Time
	idGen  func() string
}

func NewGiftService(store GiftStore, issuer GiftIssuer) *GiftService {
	return &GiftService{
		store:  store,
		issuer: issuer,
		now:    func() time.Time { return time.Now().UTC() },
		idGen:  shortID,
	}
}

// Redeem validates the request, debits the balance, and forwards the
// issuance. The debit is credited back when the provider call fails, so a
// failed redemption leaves the balance unchanged.
func (s *GiftService) Redeem(ctx context.Context, req RedeemRequest) (*RedeemResult, error) {
	if req.ExchangeType == "" || req.PointsAmount <= 0 || req.UserID == "" {
		return nil, NewInvalidError("exchangeType, pointsAmount and userId are required")
	}
	configCode, ok := ExchangeConfigCodes[req.ExchangeType]
	if !ok {
		return nil, NewInvalidError("unknown exchange type: " + req.ExchangeType)
	}
	user, err := s.store.GetUser(req.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, NewNotFoundError("user not found")
	}
	if user.Points < req.PointsAmount {
		return nil, NewConflictError(ErrInsufficientPoints.Error())
	}
	if err := s.store.DebitPoints(req.UserID, req.PointsAmount); err != nil {
		return nil, err
	}

	result, err := s.issuer.Issue(ctx, IssueRequest{
		RequestID:  req.UserID,
		ConfigCode: configCode,
		Points:     req.PointsAmount,
		Email:      req.UserEmail,
	})
	if err != nil {
		if cerr := s.store.CreditPoints(req.UserID, req.PointsAmount); cerr != nil {
			return nil, cerr
		}
		var ue *UpstreamError
		if errors.As(err, &ue) {
			return nil, NewBadGatewayError(ue.Error())
		}
		return nil, NewBadGatewayError(err.Error())
	}

	if err := s.store.AddGiftIssue(&GiftIssue{
		ID:           s.idGen(),
		UserID:       req.UserID,
		ExchangeType: req.ExchangeType,
		Points:       req.PointsAmount,
		CardURL:      result.CardURL,
		CreatedAt:    s.now(),
	}); err != nil {
		return nil, err
	}
	return &RedeemResult{CardURL: result.CardURL, Points: req.PointsAmount}, nil
}

// HTTPGiftIssuer calls the hosted gift-issuance API.
type HTTPGiftIssuer struct {
	BaseURL     string
	AccessToken string
	Client      *http.Client
}

func NewHTTPGiftIssuer(baseURL, accessToken string) *HTTPGiftIssuer {
	return &HTTPGiftIssuer{BaseURL: baseURL, AccessToken: accessToken, Client: http.DefaultClient}
}

func (c *HTTPGiftIssuer) Issue(ctx context.Context, req IssueRequest) (*IssueResult, error) {
	body, err := json.Marshal(map[string]any{
		"request_id":  req.RequestID,
		"config_code": req.ConfigCode,
		"price":       req.Points,
		"email":       req.Email,
	})
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/gifts", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.AccessToken)
	resp, err := c.Client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UpstreamError{Status: resp.StatusCode, Body: string(respBody)}
	}
	var out struct {
		Gift struct {
			URL string `json:"url"`
		} `json:"gift"`
	}
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("decode gift response: %w", err)
	}
	return &IssueResult{CardURL: out.Gift.URL}, nil
}
