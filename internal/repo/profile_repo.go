package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-chat-relay/internal/domain"
)

// GetProfile fetches the profile owned by userID.
func GetProfile(ctx context.Context, db *gorm.DB, userID string) (*domain.UserProfile, error) {
	var p domain.UserProfile
	if err := db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateProfile inserts p. A second profile for the same user yields
// ErrDuplicate.
func CreateProfile(ctx context.Context, db *gorm.DB, p *domain.UserProfile) error {
	return mapDuplicate(db.WithContext(ctx).Omit("User").Create(p).Error)
}

// SaveProfile writes every column of p except native_language, which only
// SetNativeLanguageOnce may change.
func SaveProfile(ctx context.Context, db *gorm.DB, p *domain.UserProfile) error {
	p.UpdatedAt = time.Now().UTC()
	res := db.WithContext(ctx).
		Model(&domain.UserProfile{}).
		Where("user_id = ?", p.UserID).
		Select("preferred_language", "nickname", "occupation", "personality",
			"additional_info", "traits", "enable_for_new_chats",
			"force_response_language", "forced_response_language", "updated_at").
		Updates(p)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetNativeLanguageOnce stores code as the user's native language unless one
// is already recorded. The check and the write are a single conditional
// UPDATE, so concurrent first messages cannot overwrite each other. It
// reports whether this call performed the write.
func SetNativeLanguageOnce(ctx context.Context, db *gorm.DB, userID, code string) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.UserProfile{}).
		Where("user_id = ? AND (native_language IS NULL OR native_language = '')", userID).
		Updates(map[string]any{
			"native_language": code,
			"updated_at":      time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
