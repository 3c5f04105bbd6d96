package commitcache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/elskow/corona-deployments/internal/config"
	"github.com/elskow/corona-deployments/internal/pipeline/runlog"
	"github.com/elskow/corona-deployments/internal/pipeline/types"
)

type mockLister struct {
	calls   atomic.Int32
	commits []types.Commit
	err     error
	gate    chan struct{}
}

func (m *mockLister) ListRecentCommits(_ context.Context, _ *types.Project, count int, _ *runlog.Log) ([]types.Commit, error) {
	m.calls.Add(1)
	if m.gate != nil {
		<-m.gate
	}
	if m.err != nil {
		return nil, m.err
	}
	if count < len(m.commits) {
		return m.commits[:count], nil
	}
	return m.commits, nil
}

var testCommits = []types.Commit{
	{ID: "c3", Message: "third", Author: "alice", Timestamp: time.Date(2026, 4, 3, 0, 0, 0, 0, time.UTC)},
	{ID: "c2", Message: "second", Author: "bob", Timestamp: time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)},
	{ID: "c1", Message: "first", Author: "alice", Timestamp: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)},
}

func setupCache(t *testing.T, lister Lister) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	s, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(s.Close)

	client, err := NewClient(&config.RedisConfig{Addr: s.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return New(client, lister, time.Minute, zap.NewNop()), s
}

func TestCache_Recent(t *testing.T) {
	lister := &mockLister{commits: testCommits}
	cache, s := setupCache(t, lister)
	project := &types.Project{ID: uuid.New(), Name: "web"}

	first, err := cache.Recent(context.Background(), project, 2)
	require.NoError(t, err)
	assert.Equal(t, testCommits[:2], first)

	second, err := cache.Recent(context.Background(), project, 2)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), lister.calls.Load())

	assert.True(t, s.Exists(Key(project, 2)))
	assert.Equal(t, time.Minute, s.TTL(Key(project, 2)))

	s.FastForward(2 * time.Minute)
	_, err = cache.Recent(context.Background(), project, 2)
	require.NoError(t, err)
	assert.Equal(t, int32(2), lister.calls.Load())
}

func TestCache_SharesConcurrentListings(t *testing.T) {
	lister := &mockLister{commits: testCommits, gate: make(chan struct{})}
	cache, _ := setupCache(t, lister)
	project := &types.Project{ID: uuid.New(), Name: "web"}

	var wg sync.WaitGroup
	results := make([][]types.Commit, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = cache.Recent(context.Background(), project, 3)
		}(i)
	}

	assert.Eventually(t, func() bool { return lister.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(lister.gate)
	wg.Wait()

	assert.Equal(t, int32(1), lister.calls.Load())
	for _, r := range results {
		assert.Equal(t, testCommits, r)
	}
}

func TestCache_ListingFailureIsNotCached(t *testing.T) {
	lister := &mockLister{err: errors.New("clone failed")}
	cache, s := setupCache(t, lister)
	project := &types.Project{ID: uuid.New(), Name: "web"}

	_, err := cache.Recent(context.Background(), project, 2)
	assert.ErrorContains(t, err, "clone failed")
	assert.False(t, s.Exists(Key(project, 2)))
}

func TestCache_DegradesWithoutRedis(t *testing.T) {
	lister := &mockLister{commits: testCommits}
	cache, s := setupCache(t, lister)
	project := &types.Project{ID: uuid.New(), Name: "web"}

	s.Close()

	commits, err := cache.Recent(context.Background(), project, 1)
	require.NoError(t, err)
	assert.Equal(t, testCommits[:1], commits)
}

func TestCache_Disabled(t *testing.T) {
	lister := &mockLister{commits: testCommits}
	cache := New(nil, lister, 0, zap.NewNop())
	project := &types.Project{ID: uuid.New(), Name: "web"}

	for i := 0; i < 2; i++ {
		_, err := cache.Recent(context.Background(), project, 3)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(2), lister.calls.Load())
	assert.NoError(t, cache.Invalidate(context.Background(), project))
}

func TestCache_Invalidate(t *testing.T) {
	lister := &mockLister{commits: testCommits}
	cache, s := setupCache(t, lister)
	project := &types.Project{ID: uuid.New(), Name: "web"}
	other := &types.Project{ID: uuid.New(), Name: "api"}

	for _, count := range []int{1, 2} {
		_, err := cache.Recent(context.Background(), project, count)
		require.NoError(t, err)
	}
	_, err := cache.Recent(context.Background(), other, 1)
	require.NoError(t, err)

	require.NoError(t, cache.Invalidate(context.Background(), project))
	assert.False(t, s.Exists(Key(project, 1)))
	assert.False(t, s.Exists(Key(project, 2)))
	assert.True(t, s.Exists(Key(other, 1)))
}

func TestCache_MalformedEntry(t *testing.T) {
	lister := &mockLister{commits: testCommits}
	cache, s := setupCache(t, lister)
	project := &types.Project{ID: uuid.New(), Name: "web"}

	require.NoError(t, s.Set(Key(project, 3), "not json"))

	commits, err := cache.Recent(context.Background(), project, 3)
	require.NoError(t, err)
	assert.Equal(t, testCommits, commits)
	assert.Equal(t, int32(1), lister.calls.Load())
}

func TestNewClient_Disabled(t *testing.T) {
	client, err := NewClient(&config.RedisConfig{})
	require.NoError(t, err)
	assert.Nil(t, client)

	_, err = NewClient(&config.RedisConfig{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}
