package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillhq/quill/internal/common"
	"github.com/quillhq/quill/internal/models"
)

func testUserStore() *UserStore {
	return NewUserStore(common.NewSilentLogger())
}

func TestUserUpsertInsert(t *testing.T) {
	store := testUserStore()
	ctx := context.Background()

	stored, err := store.Upsert(ctx, &models.UserRecord{
		Username: "octocat",
		GitHubID: 583231,
		Email:    "octocat@github.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "octocat", stored.Username)
	assert.False(t, stored.CreatedAt.IsZero())

	got, err := store.Get(ctx, "octocat")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(583231), got.GitHubID)
}

func TestUserUpsertMergeKeepsStoredFields(t *testing.T) {
	store := testUserStore()
	ctx := context.Background()

	_, err := store.Upsert(ctx, &models.UserRecord{
		Username:  "octocat",
		Email:     "octocat@github.com",
		FullName:  "The Octocat",
		AvatarURL: "https://avatars.example/octocat",
	})
	require.NoError(t, err)

	// A later login with sparse profile data must not erase stored fields
	stored, err := store.Upsert(ctx, &models.UserRecord{
		Username:  "octocat",
		LastLogin: time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, "octocat@github.com", stored.Email)
	assert.Equal(t, "The Octocat", stored.FullName)
	assert.False(t, stored.LastLogin.IsZero())
}

func TestUserUpsertMergeUpdatesChangedFields(t *testing.T) {
	store := testUserStore()
	ctx := context.Background()

	_, err := store.Upsert(ctx, &models.UserRecord{Username: "octocat", Company: "GitHub"})
	require.NoError(t, err)

	stored, err := store.Upsert(ctx, &models.UserRecord{Username: "octocat", Company: "Quill"})
	require.NoError(t, err)
	assert.Equal(t, "Quill", stored.Company)
}

func TestUserUpsertPreservesAdminFlag(t *testing.T) {
	store := testUserStore()
	ctx := context.Background()

	_, err := store.Upsert(ctx, &models.UserRecord{Username: "octocat"})
	require.NoError(t, err)
	require.NoError(t, store.SetAdmin(ctx, "octocat", true))

	// Routine login upsert must not strip the admin flag
	stored, err := store.Upsert(ctx, &models.UserRecord{Username: "octocat", LastLogin: time.Now()})
	require.NoError(t, err)
	assert.True(t, stored.IsAdmin)
}

func TestUserUpsertRequiresUsername(t *testing.T) {
	store := testUserStore()

	_, err := store.Upsert(context.Background(), &models.UserRecord{})
	assert.Error(t, err)
}

func TestUserGetMissing(t *testing.T) {
	store := testUserStore()

	got, err := store.Get(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUserList(t *testing.T) {
	store := testUserStore()
	ctx := context.Background()

	for _, name := range []string{"carol", "alice", "bob"} {
		_, err := store.Upsert(ctx, &models.UserRecord{Username: name})
		require.NoError(t, err)
	}

	users, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, "alice", users[0].Username)
	assert.Equal(t, "bob", users[1].Username)
	assert.Equal(t, "carol", users[2].Username)
}

func TestUserSetAdminMissing(t *testing.T) {
	store := testUserStore()

	err := store.SetAdmin(context.Background(), "nobody", true)
	assert.Error(t, err)
}

func TestUserSetInstallation(t *testing.T) {
	store := testUserStore()
	ctx := context.Background()

	_, err := store.Upsert(ctx, &models.UserRecord{Username: "octocat"})
	require.NoError(t, err)

	require.NoError(t, store.SetInstallation(ctx, "octocat", 991))
	got, err := store.Get(ctx, "octocat")
	require.NoError(t, err)
	assert.Equal(t, int64(991), got.InstallationID)

	// Zero clears
	require.NoError(t, store.SetInstallation(ctx, "octocat", 0))
	got, err = store.Get(ctx, "octocat")
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.InstallationID)
}

func TestUserClearInstallation(t *testing.T) {
	store := testUserStore()
	ctx := context.Background()

	_, err := store.Upsert(ctx, &models.UserRecord{Username: "alice", InstallationID: 500})
	require.NoError(t, err)
	_, err = store.Upsert(ctx, &models.UserRecord{Username: "bob", InstallationID: 500})
	require.NoError(t, err)
	_, err = store.Upsert(ctx, &models.UserRecord{Username: "carol", InstallationID: 777})
	require.NoError(t, err)

	cleared, err := store.ClearInstallation(ctx, 500)
	require.NoError(t, err)
	assert.Equal(t, 2, cleared)

	alice, err := store.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(0), alice.InstallationID)

	carol, err := store.Get(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, int64(777), carol.InstallationID)
}

func TestUserGetReturnsCopy(t *testing.T) {
	store := testUserStore()
	ctx := context.Background()

	_, err := store.Upsert(ctx, &models.UserRecord{Username: "octocat", Email: "octocat@github.com"})
	require.NoError(t, err)

	first, err := store.Get(ctx, "octocat")
	require.NoError(t, err)
	first.Email = "mutated"

	second, err := store.Get(ctx, "octocat")
	require.NoError(t, err)
	assert.Equal(t, "octocat@github.com", second.Email)
}
