package local

import (
	"context"
	"database/sql"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/teamblitzer/go-authsync"
)

// SelectProfile implements authsync.ProfileStore.
func (p *Provider) SelectProfile(ctx context.Context, id uuid.UUID) (*authsync.Profile, error) {
	profile := new(authsync.Profile)
	err := p.db.NewSelect().
		Model(profile).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, authsync.ErrProfileNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "profile lookup failed")
	}
	return profile, nil
}

// UpsertProfile implements authsync.ProfileStore. The row is written with
// an insert-or-update keyed on id, then re-read so the caller sees the
// persisted record including database defaults.
func (p *Provider) UpsertProfile(ctx context.Context, row *authsync.Profile) (*authsync.Profile, error) {
	if row == nil {
		return nil, goerrors.New("nil profile row", goerrors.CategoryBadInput)
	}

	now := p.now()
	row.UpdatedAt = &now

	_, err := p.db.NewInsert().
		Model(row).
		On("CONFLICT (id) DO UPDATE").
		Set("email = EXCLUDED.email").
		Set("full_name = EXCLUDED.full_name").
		Set("avatar_url = EXCLUDED.avatar_url").
		Set("phone = EXCLUDED.phone").
		Set("department = EXCLUDED.department").
		Set("student_id = EXCLUDED.student_id").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "profile upsert failed")
	}

	return p.SelectProfile(ctx, row.ID)
}

// provisionProfile mimics the hosted backend's signup trigger: it creates
// the profile row from the signup metadata. Losing the race against the
// client's own upsert is harmless, both writes carry the same fields.
func (p *Provider) provisionProfile(ctx context.Context, identity authsync.Identity, metadata map[string]any) error {
	row := authsync.SeedProfile(identity)
	row.FullName = metadataString(metadata, "full_name")
	row.Phone = metadataString(metadata, "phone")
	row.Department = metadataString(metadata, "department")
	row.StudentID = metadataString(metadata, "student_id")

	now := p.now()
	row.CreatedAt = &now
	row.UpdatedAt = &now

	_, err := p.db.NewInsert().
		Model(row).
		On("CONFLICT (id) DO NOTHING").
		Exec(ctx)
	return err
}

func metadataString(metadata map[string]any, key string) *string {
	if metadata == nil {
		return nil
	}
	if v, ok := metadata[key].(string); ok && v != "" {
		return &v
	}
	return nil
}
