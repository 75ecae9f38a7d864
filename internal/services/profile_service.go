// Package services – ProfileService
//
// This file implements the ProfileService, which owns per-user language and
// personality preferences. Profiles are created lazily with the defaults from
// domain.NewUserProfile the first time they are read. Stored language codes
// are normalized on every write, and the native language is write-once.
package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/go-chat-relay/internal/domain"
	"github.com/tbourn/go-chat-relay/internal/language"
	"github.com/tbourn/go-chat-relay/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ProfileService reads and updates user profiles.
type ProfileService struct {
	// DB is the database handle used for all profile operations.
	DB *gorm.DB
	// Resolver answers ResponseLanguage. Defaults to language.NewResolver().
	Resolver *language.Resolver
}

// NewProfileService constructs a ProfileService over db.
func NewProfileService(db *gorm.DB) *ProfileService {
	return &ProfileService{DB: db, Resolver: language.NewResolver()}
}

// GetOrCreate returns userID's profile, inserting the default profile when
// none exists. Two concurrent first calls both succeed: the loser of the
// insert race re-reads the winner's row.
//
// Returns ErrUserNotFound if the user does not exist.
func (s *ProfileService) GetOrCreate(ctx context.Context, userID string) (*domain.UserProfile, error) {
	tr := otel.Tracer("services/ProfileService")
	ctx, span := tr.Start(ctx, "GetOrCreate",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	p, err := repo.GetProfile(ctx, s.DB, userID)
	if err == nil {
		return p, nil
	}
	if !isNotFound(err) {
		return nil, err
	}

	ok, err := repo.UserExists(ctx, s.DB, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUserNotFound
	}

	p = domain.NewUserProfile(userID)
	if err := repo.CreateProfile(ctx, s.DB, p); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return repo.GetProfile(ctx, s.DB, userID)
		}
		return nil, err
	}
	span.SetAttributes(attribute.Bool("profile.created", true))
	return p, nil
}

// RecordNativeLanguage stores code as the user's native language unless one
// is already recorded, and reports whether it was written.
func (s *ProfileService) RecordNativeLanguage(ctx context.Context, userID string, code language.Code) (bool, error) {
	return repo.SetNativeLanguageOnce(ctx, s.DB, userID, string(language.Normalize(string(code))))
}

// Update merges patch into the user's profile and saves it. An empty patch
// returns the current profile unchanged.
func (s *ProfileService) Update(ctx context.Context, userID string, patch domain.ProfilePatch) (*domain.UserProfile, error) {
	tr := otel.Tracer("services/ProfileService")
	ctx, span := tr.Start(ctx, "Update",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	p, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	if patch.Empty() {
		return p, nil
	}
	patch.Apply(p)
	if err := repo.SaveProfile(ctx, s.DB, p); err != nil {
		return nil, err
	}
	return p, nil
}

// UpdatePreferredLanguage sets the preferred language (normalized).
func (s *ProfileService) UpdatePreferredLanguage(ctx context.Context, userID, lang string) (*domain.UserProfile, error) {
	return s.Update(ctx, userID, domain.ProfilePatch{PreferredLanguage: &lang})
}

// SetForcedLanguage turns forcing on or off. A non-blank lang is normalized
// and stored; a blank lang clears the forced language, which leaves forcing
// without effect.
func (s *ProfileService) SetForcedLanguage(ctx context.Context, userID, lang string, force bool) (*domain.UserProfile, error) {
	tr := otel.Tracer("services/ProfileService")
	ctx, span := tr.Start(ctx, "SetForcedLanguage",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Bool("force", force),
		),
	)
	defer span.End()

	p, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	p.ForceResponseLanguage = force
	if strings.TrimSpace(lang) == "" {
		p.ForcedResponseLanguage = ""
	} else {
		p.ForcedResponseLanguage = string(language.Normalize(lang))
	}
	if err := repo.SaveProfile(ctx, s.DB, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ResponseLanguage is the language a message without an explicit request
// would be answered in.
func (s *ProfileService) ResponseLanguage(ctx context.Context, userID string) (language.Resolution, error) {
	p, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return language.Resolution{}, err
	}
	return s.resolver().Resolve("", p.Preference()), nil
}

// Personality returns the stored personality, "default" when unset.
func (s *ProfileService) Personality(ctx context.Context, userID string) (string, error) {
	p, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(p.Personality) == "" {
		return domain.DefaultPersonality, nil
	}
	return p.Personality, nil
}

// Traits returns the stored traits, sorted. Never nil.
func (s *ProfileService) Traits(ctx context.Context, userID string) ([]string, error) {
	p, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	return domain.NormalizeTraits(p.Traits), nil
}

func (s *ProfileService) resolver() *language.Resolver {
	if s.Resolver != nil {
		return s.Resolver
	}
	return language.NewResolver()
}
