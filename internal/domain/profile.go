package domain

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tbourn/go-chat-relay/internal/language"
)

// DefaultPersonality is the personality of a fresh profile.
const DefaultPersonality = "default"

// NewUserProfile returns the default profile for userID: English, default
// personality, no traits, enabled for new chats, no forced language and no
// native language yet.
func NewUserProfile(userID string) *UserProfile {
	now := time.Now().UTC()
	return &UserProfile{
		ID:                uuid.NewString(),
		UserID:            userID,
		PreferredLanguage: string(language.Default),
		Personality:       DefaultPersonality,
		Traits:            []string{},
		EnableForNewChats: true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// Preference returns the profile's language setting in resolver form.
func (p *UserProfile) Preference() language.Preference {
	pref := language.Preference{
		Preferred: language.Code(p.PreferredLanguage),
		Force:     p.ForceResponseLanguage,
	}
	if strings.TrimSpace(p.ForcedResponseLanguage) != "" {
		pref.Forced = language.Code(p.ForcedResponseLanguage)
	}
	return pref
}

// ProfilePatch is a partial update. A nil field leaves the stored value
// untouched; omitting a field in JSON and sending null are the same signal.
type ProfilePatch struct {
	Nickname          *string   `json:"nickname,omitempty"`
	Occupation        *string   `json:"occupation,omitempty"`
	Personality       *string   `json:"personality,omitempty"`
	AdditionalInfo    *string   `json:"additional_info,omitempty"`
	PreferredLanguage *string   `json:"preferred_language,omitempty"`
	Traits            *[]string `json:"traits,omitempty"`
	EnableForNewChats *bool     `json:"enable_for_new_chats,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (pp ProfilePatch) Empty() bool {
	return pp.Nickname == nil && pp.Occupation == nil && pp.Personality == nil &&
		pp.AdditionalInfo == nil && pp.PreferredLanguage == nil && pp.Traits == nil &&
		pp.EnableForNewChats == nil
}

// Apply merges the patch into p. Text fields are trimmed, the language is
// normalized, a blank personality resets to the default, and traits are
// deduplicated and sorted.
func (pp ProfilePatch) Apply(p *UserProfile) {
	if pp.Nickname != nil {
		p.Nickname = strings.TrimSpace(*pp.Nickname)
	}
	if pp.Occupation != nil {
		p.Occupation = strings.TrimSpace(*pp.Occupation)
	}
	if pp.Personality != nil {
		p.Personality = strings.TrimSpace(*pp.Personality)
		if p.Personality == "" {
			p.Personality = DefaultPersonality
		}
	}
	if pp.AdditionalInfo != nil {
		p.AdditionalInfo = strings.TrimSpace(*pp.AdditionalInfo)
	}
	if pp.PreferredLanguage != nil {
		p.PreferredLanguage = string(language.Normalize(*pp.PreferredLanguage))
	}
	if pp.Traits != nil {
		p.Traits = NormalizeTraits(*pp.Traits)
	}
	if pp.EnableForNewChats != nil {
		p.EnableForNewChats = *pp.EnableForNewChats
	}
}

// NormalizeTraits trims, drops blanks and duplicates, and sorts.
func NormalizeTraits(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, t := range in {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
