package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-chat-relay/internal/domain"
)

// CreateExchange inserts one chat exchange. Exchanges are never updated.
func CreateExchange(ctx context.Context, db *gorm.DB, ex *domain.ChatExchange) error {
	return db.WithContext(ctx).Omit("User").Create(ex).Error
}

// GetExchange fetches an exchange by id regardless of owner; callers enforce
// ownership.
func GetExchange(ctx context.Context, db *gorm.DB, id string) (*domain.ChatExchange, error) {
	var ex domain.ChatExchange
	if err := db.WithContext(ctx).Where("id = ?", id).First(&ex).Error; err != nil {
		return nil, err
	}
	return &ex, nil
}

// CountExchanges uses a raw COUNT so a missing table surfaces as an error.
func CountExchanges(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Raw("SELECT COUNT(*) FROM chat_history WHERE user_id = ?", userID).
		Scan(&total).Error
	return total, err
}

// ListExchangesPage returns a page of a user's exchanges, newest first (ties
// broken by id for stable paging).
func ListExchangesPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.ChatExchange, error) {
	var out []domain.ChatExchange
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("exchanged_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
