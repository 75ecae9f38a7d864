// Package domain defines the persistence models for users, their language and
// personality profiles, chat exchanges and feedback. These types are mapped
// with GORM and form the core data layer of the chat relay.
package domain

import (
	"time"
)

// User is a registered account.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Email: unique, stored lowercased.
//   - PasswordHash: bcrypt hash; never serialized.
type User struct {
	ID           string    `json:"id"         gorm:"type:char(36);primaryKey"`
	FirstName    string    `json:"first_name" gorm:"type:varchar(100);not null"`
	LastName     string    `json:"last_name"  gorm:"type:varchar(100);not null"`
	Email        string    `json:"email"      gorm:"type:varchar(255);not null;uniqueIndex:ux_users_email"`
	PasswordHash string    `json:"-"          gorm:"type:varchar(255);not null"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// UserProfile holds per-user language and personality preferences. Exactly
// one profile exists per user; it is created on first use with the defaults
// from NewUserProfile.
//
// Fields:
//   - PreferredLanguage: canonical code used when nothing else applies.
//   - ForceResponseLanguage / ForcedResponseLanguage: when the flag is set and
//     the language is non-empty, every reply uses that language.
//   - NativeLanguage: the language detected from the user's first message.
//     Written once and never overwritten.
//   - Traits: unordered set of preferred response traits, stored as JSON.
type UserProfile struct {
	ID                     string    `json:"id"                       gorm:"type:char(36);primaryKey"`
	UserID                 string    `json:"user_id"                  gorm:"type:char(36);not null;uniqueIndex:ux_profiles_user"`
	PreferredLanguage      string    `json:"preferred_language"       gorm:"type:varchar(8);not null"`
	Nickname               string    `json:"nickname"                 gorm:"type:varchar(100)"`
	Occupation             string    `json:"occupation"               gorm:"type:varchar(200)"`
	Personality            string    `json:"personality"              gorm:"type:varchar(100);not null"`
	AdditionalInfo         string    `json:"additional_info"          gorm:"type:text"`
	Traits                 []string  `json:"traits"                   gorm:"serializer:json;type:text"`
	NativeLanguage         string    `json:"native_language"          gorm:"type:varchar(8)"`
	EnableForNewChats      bool      `json:"enable_for_new_chats"     gorm:"not null"`
	ForceResponseLanguage  bool      `json:"force_response_language"  gorm:"not null"`
	ForcedResponseLanguage string    `json:"forced_response_language" gorm:"type:varchar(8)"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`

	// User is the owning account. Profiles are cascade-deleted with it.
	User User `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for UserProfile.
func (UserProfile) TableName() string { return "user_profiles" }

// ChatExchange is one persisted question/answer pair. Rows are insert-only.
//
// Fields:
//   - UserMessage: the trimmed user text.
//   - BotResponse: the post-processed reply (bounded, "..." on truncation).
//   - QuestionCategory: tag from the keyword classifier.
//   - ResolvedLanguage / LanguageSource: which language the reply was
//     requested in and which rule chose it.
//   - Timestamp: UTC time the exchange completed.
type ChatExchange struct {
	ID               string    `json:"id"                gorm:"type:char(36);primaryKey"`
	UserID           string    `json:"user_id"           gorm:"type:char(36);not null;index:idx_user_exchanges,priority:1"`
	UserMessage      string    `json:"user_message"      gorm:"type:text;not null"`
	BotResponse      string    `json:"bot_response"      gorm:"type:text;not null"`
	QuestionCategory string    `json:"question_category" gorm:"type:varchar(32);not null"`
	ResolvedLanguage string    `json:"resolved_language" gorm:"type:varchar(8);not null"`
	LanguageSource   string    `json:"language_source"   gorm:"type:varchar(16);not null"`
	Truncated        bool      `json:"truncated"         gorm:"not null"`
	Timestamp        time.Time `json:"timestamp"         gorm:"column:exchanged_at;not null;index:idx_user_exchanges,priority:2"`

	// User is the owning account. Exchanges are cascade-deleted with it.
	User User `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for ChatExchange.
func (ChatExchange) TableName() string { return "chat_history" }

// Feedback is a user's rating on one of their own exchanges. A user can only
// leave one feedback entry per exchange (enforced by unique index).
//
// Fields:
//   - Value: +1 (positive) or -1 (negative).
type Feedback struct {
	ID         string    `json:"id"          gorm:"type:char(36);primaryKey"`
	ExchangeID string    `json:"exchange_id" gorm:"type:char(36);not null;index;uniqueIndex:ux_feedback_exchange_user"`
	UserID     string    `json:"user_id"     gorm:"type:char(36);not null;index;uniqueIndex:ux_feedback_exchange_user"`
	Value      int       `json:"value"       gorm:"not null;check:value IN (-1,1)"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	// Exchange is the rated exchange. Feedback is cascade-deleted with it.
	Exchange ChatExchange `json:"-" gorm:"foreignKey:ExchangeID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Feedback.
func (Feedback) TableName() string { return "feedback" }
