package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type storedDoc struct {
	Name string `json:"name"`
}

func TestDocumentStoreMemoryFallbackExpires(t *testing.T) {
	store := newDocumentStore(nil, nil)
	now := time.Date(2026, 7, 13, 7, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, proposalKeyPrefix+"a", storedDoc{Name: "X-IPA-1"}, time.Minute))
	require.NoError(t, store.Save(ctx, proposalKeyPrefix+"b", storedDoc{Name: "X-IPA-2"}, time.Hour))

	var doc storedDoc
	found, err := store.Load(ctx, proposalKeyPrefix+"a", &doc)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "X-IPA-1", doc.Name)

	now = now.Add(2 * time.Minute)
	found, err = store.Load(ctx, proposalKeyPrefix+"a", &doc)
	require.NoError(t, err)
	assert.False(t, found)

	now = now.Add(2 * time.Hour)
	assert.Equal(t, 1, store.Sweep())

	require.NoError(t, store.Save(ctx, jobKeyPrefix+"j", storedDoc{Name: "job"}, time.Hour))
	store.Delete(ctx, jobKeyPrefix+"j")
	found, _ = store.Load(ctx, jobKeyPrefix+"j", &doc)
	assert.False(t, found)
}

func TestDocumentStoreUsesCacheWhenEnabled(t *testing.T) {
	repo := newMemoryCacheRepo()
	store := newDocumentStore(NewCacheService(repo, nil, 0, nil, true), nil)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, proposalKeyPrefix+"c", storedDoc{Name: "XI-IPS-1"}, 30*time.Minute))
	assert.Contains(t, repo.items, proposalKeyPrefix+"c")
	assert.Equal(t, 30*time.Minute, repo.ttls[proposalKeyPrefix+"c"])

	var doc storedDoc
	found, err := store.Load(ctx, proposalKeyPrefix+"c", &doc)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "XI-IPS-1", doc.Name)

	store.Delete(ctx, proposalKeyPrefix+"c")
	assert.NotContains(t, repo.items, proposalKeyPrefix+"c")
}
