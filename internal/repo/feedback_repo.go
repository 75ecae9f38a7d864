// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Feedback model.
//
// Error semantics:
//   - Duplicate feedback (same exchange_id,user_id) relies on the database
//     unique constraint and is returned as ErrDuplicate. The service layer
//     translates that into ErrDuplicateFeedback.
//   - On other DB errors (connectivity, constraints, etc.), the raw gorm
//     error is propagated.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-relay/internal/domain"
)

// CreateFeedback inserts a feedback row for the given exchange and user.
//
// Value must be -1 (negative) or 1 (positive). Validation is expected to be
// enforced at higher layers (handlers/services) and via the DB check
// constraint.
func CreateFeedback(ctx context.Context, db *gorm.DB, exchangeID, userID string, value int) (*domain.Feedback, error) {
	now := time.Now().UTC()
	fb := &domain.Feedback{
		ID:         uuid.NewString(),
		ExchangeID: exchangeID,
		UserID:     userID,
		Value:      value,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := mapDuplicate(db.WithContext(ctx).Omit("Exchange").Create(fb).Error); err != nil {
		return nil, err
	}
	return fb, nil
}
