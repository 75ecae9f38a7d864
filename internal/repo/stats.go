// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries used for
// conditional responses (ETag generation) in the HTTP layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-chat-relay/internal/domain"
)

// ExchangeStats returns the number of exchanges stored for userID and the
// newest exchange timestamp. When the user has no exchanges the count is 0
// and latest is nil.
//
// Exchanges are insert-only, so (count, latest) changes whenever the history
// changes.
func ExchangeStats(ctx context.Context, db *gorm.DB, userID string) (count int64, latest *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.ChatExchange{}).Where("user_id = ?", userID)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Order+Limit instead of MAX(), which SQLite returns as TEXT.
	var row struct {
		ExchangedAt time.Time
	}
	if err = db.WithContext(ctx).Model(&domain.ChatExchange{}).
		Where("user_id = ?", userID).
		Select("exchanged_at").
		Order("exchanged_at DESC").
		Limit(1).
		Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.ExchangedAt, nil
}
