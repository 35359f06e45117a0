package services

import (
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/soaringjerry/surveyor/internal/models"
)

// AuthSession is the client-side session: who is signed in and with which token.
type AuthSession struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

func (s *AuthSession) SetUser(u models.User) { s.User = &u }

func (s *AuthSession) SetToken(token string) { s.Token = token }

// Logout clears both the user and the token.
func (s *AuthSession) Logout() {
	s.User = nil
	s.Token = ""
}

func (s *AuthSession) SignedIn() bool { return s.User != nil && s.Token != "" }

// User is a directory entry. PassHash is kept so plaintext passwords never stay in memory.
type User struct {
	ID        string
	Email     string
	Role      models.Role
	PassHash  []byte
	CreatedAt time.Time
}

type UserDirectory interface {
	FindUserByEmail(email string) (*User, error)
	AddUser(u *User) error
}

type TokenSigner func(u models.User, ttl time.Duration) (string, error)

type RegisterForm struct {
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirm_password" validate:"eqfield=Password"`
}

type LoginForm struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthService simulates registration and login. There is no credential check:
// any well-formed request succeeds and gets a locally signed token.
type AuthService struct {
	users     UserDirectory
	now       func() time.Time
	ids       IDGenerator
	signToken TokenSigner
	tokenTTL  time.Duration
}

func NewAuthService(users UserDirectory, signer TokenSigner, ttl time.Duration) *AuthService {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &AuthService{
		users:     users,
		now:       func() time.Time { return time.Now().UTC() },
		ids:       IDFunc(func() string { return "u" + shortID(7) }),
		signToken: signer,
		tokenTTL:  ttl,
	}
}

func authFieldMessage(fe validator.FieldError) string {
	switch fe.StructField() {
	case "Email":
		if fe.Tag() == "required" {
			return "Email is required"
		}
		return "Invalid email address"
	case "Password":
		if fe.Tag() == "min" {
			return "Password must be at least 6 characters"
		}
		return "Password is required"
	case "ConfirmPassword":
		return "Passwords don't match"
	}
	return fe.Error()
}

// Register validates the form, records the user as a creator and opens session.
func (s *AuthService) Register(session *AuthSession, form RegisterForm) (*AuthSession, error) {
	form.Email = strings.TrimSpace(form.Email)
	if err := validateForm(form, authFieldMessage); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(form.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u, err := s.users.FindUserByEmail(form.Email)
	if err != nil {
		return nil, err
	}
	if u == nil {
		u = &User{ID: s.ids.NewID(), Email: form.Email, Role: models.RoleCreator, CreatedAt: s.now()}
	}
	u.PassHash = hash
	if err := s.users.AddUser(u); err != nil {
		return nil, err
	}
	return s.open(session, u)
}

// Login accepts any well-formed email/password pair. A known email reuses its
// directory entry; an unknown one gets a fresh creator user.
func (s *AuthService) Login(session *AuthSession, form LoginForm) (*AuthSession, error) {
	form.Email = strings.TrimSpace(form.Email)
	if err := validateForm(form, authFieldMessage); err != nil {
		return nil, err
	}
	u, err := s.users.FindUserByEmail(form.Email)
	if err != nil {
		return nil, err
	}
	if u == nil {
		u = &User{ID: s.ids.NewID(), Email: form.Email, Role: models.RoleCreator, CreatedAt: s.now()}
		if err := s.users.AddUser(u); err != nil {
			return nil, err
		}
	}
	return s.open(session, u)
}

// Logout clears the session.
func (s *AuthService) Logout(session *AuthSession) {
	if session != nil {
		session.Logout()
	}
}

func (s *AuthService) open(session *AuthSession, u *User) (*AuthSession, error) {
	if s.signToken == nil {
		return nil, NewInvalidError("token signer not configured")
	}
	user := models.User{ID: u.ID, Email: u.Email, Role: u.Role}
	token, err := s.signToken(user, s.tokenTTL)
	if err != nil {
		return nil, err
	}
	if session == nil {
		session = &AuthSession{}
	}
	session.SetUser(user)
	session.SetToken(token)
	return session, nil
}

func (s *AuthService) TokenTTL() time.Duration {
	return s.tokenTTL
}

// MemoryUsers is an in-process UserDirectory keyed by lower-cased email.
type MemoryUsers struct {
	mu    sync.RWMutex
	users map[string]*User
}

func NewMemoryUsers() *MemoryUsers {
	return &MemoryUsers{users: map[string]*User{}}
}

func (m *MemoryUsers) FindUserByEmail(email string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if u, ok := m.users[strings.ToLower(email)]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (m *MemoryUsers) AddUser(u *User) error {
	if u == nil {
		return NewInvalidError("user required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.users[strings.ToLower(u.Email)] = &cp
	return nil
}
