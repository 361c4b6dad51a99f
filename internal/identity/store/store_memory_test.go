package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecertify/internal/identity/models"
	"ecertify/internal/sentinel"
	txcontext "ecertify/pkg/platform/tx"
	"ecertify/pkg/testutil"
)

func profile(name string, role models.Role) *models.Profile {
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return &models.Profile{
		Actor:     testutil.Actors.Alice,
		Name:      name,
		Role:      role,
		CreatedAt: at,
		UpdatedAt: at,
	}
}

func TestInMemoryStore_CreateAndFind(t *testing.T) {
	ctx := context.Background()
	st := NewInMemory()

	_, err := st.FindByActor(ctx, testutil.Actors.Alice)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	require.NoError(t, st.Create(ctx, profile("Alice", models.RoleStudent)))
	err = st.Create(ctx, profile("Alice again", models.RoleInstitute))
	assert.ErrorIs(t, err, sentinel.ErrAlreadyUsed)

	got, err := st.FindByActor(ctx, testutil.Actors.Alice)
	require.NoError(t, err)
	assert.True(t, got.Exists)
	assert.Equal(t, "Alice", got.Name)
	assert.Equal(t, models.RoleStudent, got.Role)

	got.Name = "mutated"
	again, err := st.FindByActor(ctx, testutil.Actors.Alice)
	require.NoError(t, err)
	assert.Equal(t, "Alice", again.Name, "reads return copies")
}

func TestInMemoryStore_Update(t *testing.T) {
	ctx := context.Background()
	st := NewInMemory()

	err := st.Update(ctx, profile("Nobody", models.RoleStudent))
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	require.NoError(t, st.Create(ctx, profile("Alice", models.RoleStudent)))
	updated := profile("Alice Smith", models.RoleStudent)
	updated.AvatarRef = "QmAvatar"
	require.NoError(t, st.Update(ctx, updated))

	got, err := st.FindByActor(ctx, testutil.Actors.Alice)
	require.NoError(t, err)
	assert.Equal(t, "Alice Smith", got.Name)
	assert.Equal(t, "QmAvatar", got.AvatarRef)
}

func TestInMemoryStore_RollbackRestoresProfiles(t *testing.T) {
	st := NewInMemory()
	require.NoError(t, st.Create(context.Background(), profile("Alice", models.RoleStudent)))

	j := &txcontext.Journal{}
	ctx := txcontext.WithJournal(context.Background(), j)
	require.NoError(t, st.Update(ctx, profile("Renamed", models.RoleStudent)))
	bob := profile("Bob", models.RoleStudent)
	bob.Actor = testutil.Actors.Bob
	require.NoError(t, st.Create(ctx, bob))
	assert.Equal(t, 2, j.Len())

	j.Rollback()

	got, err := st.FindByActor(context.Background(), testutil.Actors.Alice)
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.Name)
	_, err = st.FindByActor(context.Background(), testutil.Actors.Bob)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}
