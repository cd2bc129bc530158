package authsync

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
	"github.com/uptrace/bun"
)

// DefaultPhoneRegion is the region used to parse phone numbers that are
// not in international format.
var DefaultPhoneRegion = "BD"

// Profile is the mutable record keyed 1:1 with an Identity. All fields
// besides id, email and the timestamps are nullable; empty strings never
// persist (they normalize to NULL before any write).
type Profile struct {
	bun.BaseModel `bun:"table:profiles,alias:prf"`
	ID            uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	Email         string     `bun:"email,notnull" json:"email"`
	FullName      *string    `bun:"full_name" json:"full_name"`
	AvatarURL     *string    `bun:"avatar_url" json:"avatar_url"`
	Phone         *string    `bun:"phone" json:"phone"`
	Department    *string    `bun:"department" json:"department"`
	StudentID     *string    `bun:"student_id" json:"student_id"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// Clone returns a copy so store snapshots cannot be mutated from outside.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	out := *p
	out.FullName = cloneString(p.FullName)
	out.AvatarURL = cloneString(p.AvatarURL)
	out.Phone = cloneString(p.Phone)
	out.Department = cloneString(p.Department)
	out.StudentID = cloneString(p.StudentID)
	out.CreatedAt = cloneTime(p.CreatedAt)
	out.UpdatedAt = cloneTime(p.UpdatedAt)
	return &out
}

// SeedProfile builds the row inserted when an identity has no profile yet.
func SeedProfile(identity Identity) *Profile {
	return &Profile{
		ID:    identity.ID,
		Email: identity.Email,
	}
}

// FallbackProfile is the in-memory-only record adopted when the backend
// cannot serve or persist a row. It is never written; a later refresh can
// replace it with the persisted row.
func FallbackProfile(identity Identity, now time.Time) *Profile {
	return &Profile{
		ID:        identity.ID,
		Email:     identity.Email,
		CreatedAt: &now,
		UpdatedAt: &now,
	}
}

// ProfilePatch carries user-editable profile fields. An empty string means
// "clear the field": patches always write every editable column, matching
// the row the editor stages.
type ProfilePatch struct {
	FullName   string `json:"full_name"`
	AvatarURL  string `json:"avatar_url"`
	Phone      string `json:"phone"`
	Department string `json:"department"`
	StudentID  string `json:"student_id"`
}

// Apply merges the normalized patch with the identity's id and email into
// a full row ready for upsert.
func (p ProfilePatch) Apply(identity Identity) *Profile {
	return &Profile{
		ID:         identity.ID,
		Email:      identity.Email,
		FullName:   normalizeField(p.FullName),
		AvatarURL:  normalizeField(p.AvatarURL),
		Phone:      NormalizePhone(p.Phone),
		Department: normalizeField(p.Department),
		StudentID:  normalizeField(p.StudentID),
	}
}

// Metadata renders the patch as signup metadata, the shape server-side
// provisioning triggers expect.
func (p ProfilePatch) Metadata() map[string]any {
	return map[string]any{
		"full_name":  nullable(normalizeField(p.FullName)),
		"phone":      nullable(NormalizePhone(p.Phone)),
		"department": nullable(normalizeField(p.Department)),
		"student_id": nullable(normalizeField(p.StudentID)),
	}
}

// PatchFromProfile stages an editable copy of an adopted profile.
func PatchFromProfile(profile *Profile) ProfilePatch {
	if profile == nil {
		return ProfilePatch{}
	}
	return ProfilePatch{
		FullName:   stringValue(profile.FullName),
		AvatarURL:  stringValue(profile.AvatarURL),
		Phone:      stringValue(profile.Phone),
		Department: stringValue(profile.Department),
		StudentID:  stringValue(profile.StudentID),
	}
}

// NormalizePhone canonicalizes a phone number to E.164 when it parses,
// otherwise keeps the trimmed input. Empty input normalizes to nil.
func NormalizePhone(raw string) *string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}

	num, err := phonenumbers.Parse(trimmed, DefaultPhoneRegion)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return &trimmed
	}

	formatted := phonenumbers.Format(num, phonenumbers.E164)
	return &formatted
}

func normalizeField(raw string) *string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
