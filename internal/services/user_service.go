// Package services – UserService
//
// This file implements the UserService: registration, login and lookup.
// Passwords are stored as bcrypt hashes. Registration creates the user and
// the default profile in one transaction. A successful login returns a signed
// JWT when a token issuer is configured.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-relay/internal/auth"
	"github.com/tbourn/go-chat-relay/internal/domain"
	"github.com/tbourn/go-chat-relay/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// MinPasswordLen is the shortest accepted password.
const MinPasswordLen = 6

// RegisterInput carries the registration form.
type RegisterInput struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// Session is the result of a successful login. Token is empty when no JWT
// secret is configured.
type Session struct {
	User      *domain.User `json:"user"`
	Token     string       `json:"token,omitempty"`
	ExpiresAt *time.Time   `json:"expires_at,omitempty"`
}

// UserService manages accounts.
type UserService struct {
	DB *gorm.DB
	// Tokens signs login sessions; nil or disabled means no token is issued.
	Tokens *auth.Issuer
	// Cost is the bcrypt cost. Zero uses bcrypt.DefaultCost.
	Cost int
}

// NewUserService constructs a UserService.
func NewUserService(db *gorm.DB, tokens *auth.Issuer) *UserService {
	return &UserService{DB: db, Tokens: tokens}
}

// Register validates in, stores the user with a hashed password and creates
// the default profile.
//
// Errors: ErrNameRequired, ErrInvalidEmail, ErrPasswordTooShort (all
// ErrValidation) and ErrEmailTaken.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	tr := otel.Tracer("services/UserService")
	ctx, span := tr.Start(ctx, "Register")
	defer span.End()

	first := strings.TrimSpace(in.FirstName)
	last := strings.TrimSpace(in.LastName)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if first == "" || last == "" {
		return nil, ErrNameRequired
	}
	if !strings.Contains(email, "@") {
		return nil, ErrInvalidEmail
	}
	if len(in.Password) < MinPasswordLen {
		return nil, ErrPasswordTooShort
	}

	cost := s.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), cost)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	u := &domain.User{
		ID:           uuid.NewString(),
		FirstName:    first,
		LastName:     last,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.CreateUser(ctx, tx, u); err != nil {
			if errors.Is(err, repo.ErrDuplicate) {
				return ErrEmailTaken
			}
			return err
		}
		return repo.CreateProfile(ctx, tx, domain.NewUserProfile(u.ID))
	})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("user.id", u.ID))
	return u, nil
}

// Authenticate checks email and password. Unknown email and wrong password
// both yield ErrInvalidCredentials.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*Session, error) {
	tr := otel.Tracer("services/UserService")
	ctx, span := tr.Start(ctx, "Authenticate")
	defer span.End()

	u, err := repo.GetUserByEmail(ctx, s.DB, email)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	span.SetAttributes(attribute.String("user.id", u.ID))

	sess := &Session{User: u}
	if s.Tokens.Enabled() {
		tok, exp, err := s.Tokens.Issue(u.ID)
		if err != nil {
			return nil, err
		}
		sess.Token = tok
		sess.ExpiresAt = &exp
	}
	return sess, nil
}

// Get returns the user with id or ErrUserNotFound.
func (s *UserService) Get(ctx context.Context, id string) (*domain.User, error) {
	tr := otel.Tracer("services/UserService")
	ctx, span := tr.Start(ctx, "Get",
		trace.WithAttributes(attribute.String("user.id", id)),
	)
	defer span.End()

	u, err := repo.GetUser(ctx, s.DB, id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

// GetByEmail returns the user with email (case-insensitive) or
// ErrUserNotFound.
func (s *UserService) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	u, err := repo.GetUserByEmail(ctx, s.DB, email)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

// Exists reports whether id is a registered user.
func (s *UserService) Exists(ctx context.Context, id string) (bool, error) {
	return repo.UserExists(ctx, s.DB, id)
}
