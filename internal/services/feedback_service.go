// Package services – FeedbackService
//
// This file implements the FeedbackService, which governs how users rate
// (-1 or +1) the answers in their own chat history. It enforces business
// rules (exchange existence, ownership, uniqueness) and persists feedback
// atomically in the database. Service-level errors (ErrInvalidFeedback,
// ErrExchangeNotFound, ErrForbiddenFeedback, ErrDuplicateFeedback) are
// returned for predictable cases so handlers can map them to HTTP results
// consistently.
package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tbourn/go-chat-relay/internal/domain"
	"github.com/tbourn/go-chat-relay/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// FeedbackService implements the use-cases around exchange feedback.
type FeedbackService struct {
	// DB is the database handle used for all feedback operations.
	DB *gorm.DB
}

// NewFeedbackService constructs a FeedbackService over db.
func NewFeedbackService(db *gorm.DB) *FeedbackService {
	return &FeedbackService{DB: db}
}

// Leave records a feedback value for exchangeID on behalf of userID.
//
// Semantics and validation:
//   - value must be exactly -1 or 1; otherwise ErrInvalidFeedback.
//   - exchangeID must exist; otherwise ErrExchangeNotFound.
//   - The exchange must belong to userID; otherwise ErrForbiddenFeedback.
//   - A user may rate an exchange once; a second attempt yields
//     ErrDuplicateFeedback.
//
// The existence check, the ownership check and the insert run in one
// transaction.
func (s *FeedbackService) Leave(ctx context.Context, userID, exchangeID string, value int) (*domain.Feedback, error) {
	tr := otel.Tracer("services/FeedbackService")
	ctx, span := tr.Start(ctx, "Leave",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("exchange.id", exchangeID),
			attribute.Int("value", value),
		),
	)
	defer span.End()

	if value != -1 && value != 1 {
		return nil, ErrInvalidFeedback
	}

	var out *domain.Feedback
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ex, err := repo.GetExchange(ctx, tx, exchangeID)
		if err != nil {
			if isNotFound(err) {
				return ErrExchangeNotFound
			}
			return err
		}
		if ex.UserID != userID {
			return ErrForbiddenFeedback
		}

		fb, err := repo.CreateFeedback(ctx, tx, exchangeID, userID, value)
		if err != nil {
			if errors.Is(err, repo.ErrDuplicate) {
				return ErrDuplicateFeedback
			}
			return err
		}
		out = fb
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// isNotFound treats repo-level not found sentinels as "not found" in a
// driver-agnostic way.
func isNotFound(err error) bool {
	return errors.Is(err, repo.ErrNotFound) || errors.Is(err, gorm.ErrRecordNotFound)
}
