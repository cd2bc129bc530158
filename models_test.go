package authsync_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teamblitzer/go-authsync"
)

func TestPatchApplyNormalizesFields(t *testing.T) {
	identity := authsync.Identity{ID: uuid.New(), Email: "rider@example.com"}

	row := authsync.ProfilePatch{
		FullName:   "  Road Rider  ",
		AvatarURL:  "",
		Department: "   ",
		StudentID:  "RT-1024",
	}.Apply(identity)

	assert.Equal(t, identity.ID, row.ID)
	assert.Equal(t, "rider@example.com", row.Email)
	require.NotNil(t, row.FullName)
	assert.Equal(t, "Road Rider", *row.FullName)
	assert.Nil(t, row.AvatarURL, "empty strings must persist as NULL")
	assert.Nil(t, row.Department, "whitespace-only strings must persist as NULL")
	require.NotNil(t, row.StudentID)
	assert.Equal(t, "RT-1024", *row.StudentID)
}

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  *string
	}{
		{"empty", "", nil},
		{"whitespace", "   ", nil},
		{"local format", "01712345678", strptr("+8801712345678")},
		{"international", "+8801712345678", strptr("+8801712345678")},
		{"unparseable keeps trimmed input", "  ext. 42  ", strptr("ext. 42")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := authsync.NormalizePhone(tc.input)
			if tc.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tc.want, *got)
		})
	}
}

func TestPatchRoundTripsThroughProfile(t *testing.T) {
	identity := authsync.Identity{ID: uuid.New(), Email: "rider@example.com"}

	patch := authsync.ProfilePatch{
		FullName:   "Road Rider",
		Phone:      "01712345678",
		Department: "CSE",
		StudentID:  "RT-1024",
	}

	staged := authsync.PatchFromProfile(patch.Apply(identity))
	assert.Equal(t, "Road Rider", staged.FullName)
	assert.Equal(t, "+8801712345678", staged.Phone)
	assert.Equal(t, "CSE", staged.Department)
	assert.Equal(t, "RT-1024", staged.StudentID)
	assert.Empty(t, staged.AvatarURL)
}

func TestPatchFromNilProfile(t *testing.T) {
	assert.Equal(t, authsync.ProfilePatch{}, authsync.PatchFromProfile(nil))
}

func TestSeedAndFallbackProfiles(t *testing.T) {
	identity := authsync.Identity{ID: uuid.New(), Email: "rider@example.com"}

	seed := authsync.SeedProfile(identity)
	assert.Equal(t, identity.ID, seed.ID)
	assert.Equal(t, identity.Email, seed.Email)
	assert.Nil(t, seed.CreatedAt)

	now := time.Now()
	fallback := authsync.FallbackProfile(identity, now)
	assert.Equal(t, identity.ID, fallback.ID)
	require.NotNil(t, fallback.CreatedAt)
	assert.Equal(t, now, *fallback.CreatedAt)
}

func TestProfileCloneIsDeep(t *testing.T) {
	name := "Road Rider"
	p := &authsync.Profile{ID: uuid.New(), Email: "rider@example.com", FullName: &name}

	clone := p.Clone()
	*clone.FullName = "mutated"

	assert.Equal(t, "Road Rider", *p.FullName)

	var nilProfile *authsync.Profile
	assert.Nil(t, nilProfile.Clone())
}

func TestPatchMetadataShape(t *testing.T) {
	md := authsync.ProfilePatch{
		FullName: "Road Rider",
		Phone:    "",
	}.Metadata()

	assert.Equal(t, "Road Rider", md["full_name"])
	assert.Nil(t, md["phone"])
	assert.Nil(t, md["department"])
	assert.Nil(t, md["student_id"])
}

func strptr(s string) *string { return &s }
