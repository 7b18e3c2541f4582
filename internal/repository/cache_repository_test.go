package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/mylo-ta-api/internal/models"
	appErrors "github.com/noah-isme/mylo-ta-api/pkg/errors"
)

func newCacheRepo(t *testing.T) (*CacheRepository, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCacheRepository(client, nil), srv
}

func TestCacheRepositoryRoundTrip(t *testing.T) {
	repo, srv := newCacheRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "k1", map[string]int{"n": 3}, time.Minute))
	var out map[string]int
	require.NoError(t, repo.Get(ctx, "k1", &out))
	assert.Equal(t, 3, out["n"])

	srv.FastForward(2 * time.Minute)
	assert.ErrorIs(t, repo.Get(ctx, "k1", &out), appErrors.ErrCacheMiss)
}

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, nil)
	ctx := context.Background()

	assert.False(t, repo.Enabled())
	assert.NoError(t, repo.Set(ctx, "k", 1, 0))
	var out int
	assert.ErrorIs(t, repo.Get(ctx, "k", &out), appErrors.ErrCacheMiss)
	keys, err := repo.Keys(ctx, "*")
	assert.NoError(t, err)
	assert.Empty(t, keys)
}

func TestAttachmentCacheRepository(t *testing.T) {
	cache, srv := newCacheRepo(t)
	repo := NewAttachmentCacheRepository(cache, time.Hour)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, models.PendingAttachment{AgentID: "agent-1", DocumentID: "d1", DocumentName: "course_context_c1_s1", LastError: "status 502"}))
	require.NoError(t, repo.Save(ctx, models.PendingAttachment{AgentID: "agent-1", DocumentID: "d2", DocumentName: "course_context_c1_s2"}))
	require.NoError(t, repo.Save(ctx, models.PendingAttachment{AgentID: "agent-2", DocumentID: "d3", DocumentName: "course_context_c1_s1"}))

	pending, err := repo.ListByAgent(ctx, "agent-1")
	require.NoError(t, err)
	assert.Len(t, pending, 2)
	for _, item := range pending {
		assert.False(t, item.RecordedAt.IsZero())
	}

	require.NoError(t, repo.Delete(ctx, "agent-1", "course_context_c1_s1"))
	pending, err = repo.ListByAgent(ctx, "agent-1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "d2", pending[0].DocumentID)

	assert.Equal(t, time.Hour, srv.TTL(pendingKey("agent-2", "course_context_c1_s1")))
}
