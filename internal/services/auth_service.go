package services

import (
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

type AuthStore interface {
	FindUserByEmail(email string) (*User, error)
	AddUser(u *User) error
	GetUser(id string) (*User, error)
}

type TokenSigner func(uid, role, email string, ttl time.Duration) (string, error)

type AuthService struct {
	store     AuthStore
	now       func() time.Time
	idGen     func() string
	signToken TokenSigner
	tokenTTL  time.Duration
}

type AuthResult struct {
	Token  string
	UserID string
	Role   string
	Home   string
}

func NewAuthService(store AuthStore, signer TokenSigner) *AuthService {
	return &AuthService{
		store:     store,
		now:       func() time.Time { return time.Now().UTC() },
		idGen:     shortID,
		signToken: signer,
		tokenTTL:  30 * 24 * time.Hour,
	}
}

func (s *AuthService) Register(email, password, role string) (*AuthResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || strings.TrimSpace(password) == "" {
		return nil, NewInvalidError("email/password required")
	}
	if role == "" {
		role = RoleMonitor
	}
	if !ValidRole(role) {
		return nil, NewInvalidError("unknown role: " + role)
	}
	existing, err := s.store.FindUserByEmail(email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, NewConflictError("email exists")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	userID := s.idGen()
	if err := s.store.AddUser(&User{ID: userID, Email: email, PassHash: hash, Role: role, CreatedAt: s.now()}); err != nil {
		return nil, err
	}
	return s.issue(userID, role, email)
}

func (s *AuthService) Login(email, password string) (*AuthResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || strings.TrimSpace(password) == "" {
		return nil, NewInvalidError("email/password required")
	}
	u, err := s.store.FindUserByEmail(email)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, NewUnauthorizedError("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword(u.PassHash, []byte(password)); err != nil {
		return nil, NewUnauthorizedError("invalid credentials")
	}
	return s.issue(u.ID, u.Role, u.Email)
}

// Bootstrap resolves a signed-in principal to their profile and dashboard
// route. An unknown role in an otherwise valid token is forbidden, not a
// default case.
func (s *AuthService) Bootstrap(userID string) (*User, string, error) {
	if userID == "" {
		return nil, "", NewUnauthorizedError("sign in required")
	}
	u, err := s.store.GetUser(userID)
	if err != nil {
		return nil, "", err
	}
	if u == nil {
		return nil, "", NewNotFoundError("user not found")
	}
	home, err := HomeForRole(u.Role)
	if err != nil {
		return nil, "", err
	}
	return u, home, nil
}

func (s *AuthService) TokenTTL() time.Duration {
	return s.tokenTTL
}

func (s *AuthService) issue(userID, role, email string) (*AuthResult, error) {
	if s.signToken == nil {
		return nil, NewInvalidError("token signer not configured")
	}
	token, err := s.signToken(userID, role, email, s.tokenTTL)
	if err != nil {
		return nil, err
	}
	home, err := HomeForRole(role)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, UserID: userID, Role: role, Home: home}, nil
}
