package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-arena-auth"
)

func TestMemoryCredentialStore(t *testing.T) {
	ctx := context.Background()
	store := auth.NewMemoryCredentialStore()
	owner := uuid.New()

	rec := &auth.TokenRecord{ID: uuid.New(), Token: "t-1", Kind: auth.TokenKindSession, OwnerID: owner, ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, store.Insert(ctx, rec))
	require.NoError(t, store.Insert(ctx, &auth.TokenRecord{ID: uuid.New(), Token: "t-2", Kind: auth.TokenKindReset, OwnerID: owner}))
	require.NoError(t, store.Insert(ctx, &auth.TokenRecord{ID: uuid.New(), Token: "t-3", Kind: auth.TokenKindSession, OwnerID: uuid.New()}))

	found, err := store.FindByToken(ctx, "t-1")
	require.NoError(t, err)
	assert.Equal(t, owner, found.OwnerID)

	_, err = store.FindByToken(ctx, "missing")
	assert.True(t, auth.IsTokenRecordNotFound(err))

	err = store.Insert(ctx, &auth.TokenRecord{ID: uuid.New(), Token: "t-1", OwnerID: uuid.New()})
	assert.True(t, auth.IsTokenRecordExists(err))

	deleted, err := store.DeleteByToken(ctx, "t-1")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = store.DeleteByToken(ctx, "t-1")
	require.NoError(t, err)
	assert.False(t, deleted)

	n, err := store.DeleteAllByOwner(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, store.Len())
}

func TestMemoryMessageStore_List(t *testing.T) {
	ctx := context.Background()
	store := auth.NewMemoryMessageStore()
	base := time.Now().UTC()

	for i, content := range []string{"first", "second", "third"} {
		at := base.Add(time.Duration(i) * time.Second)
		_, err := store.Save(ctx, &auth.ChatMessage{PlayerID: uuid.New(), Content: content, CreatedAt: &at})
		require.NoError(t, err)
	}

	page, err := store.List(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "third", page[0].Content)
	assert.Equal(t, "second", page[1].Content)

	page, err = store.List(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "first", page[0].Content)

	page, err = store.List(ctx, 2, 10)
	require.NoError(t, err)
	assert.Empty(t, page)
}
