package redis

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskpilot/taskpilot-api/internal/config"
	"github.com/taskpilot/taskpilot-api/internal/domain"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()

	srv := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})
	cache := NewCacheWithClient(client, config.CacheConfig{}, nil)
	t.Cleanup(func() { _ = cache.Close() })

	return cache, srv
}

func testNotification(t *testing.T, id int64, recipient uuid.UUID) *domain.Notification {
	t.Helper()

	n, err := domain.NewNotification(
		domain.NotificationTaskCreated, uuid.New(), recipient, nil, "Ship release")
	require.NoError(t, err)
	n.ID = id
	return n
}

func TestCacheNotificationIncrementsUnread(t *testing.T) {
	ctx := context.Background()
	cache, _ := newTestCache(t)
	user := uuid.New()

	require.NoError(t, cache.CacheNotification(ctx, testNotification(t, 1, user)))

	count, err := cache.UnreadCount(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	require.NoError(t, cache.CacheNotification(ctx, testNotification(t, 2, user)))

	count, err = cache.UnreadCount(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestCacheNotificationReadDoesNotIncrement(t *testing.T) {
	ctx := context.Background()
	cache, _ := newTestCache(t)
	user := uuid.New()

	n := testNotification(t, 1, user)
	n.IsRead = true
	require.NoError(t, cache.CacheNotification(ctx, n))

	count, err := cache.UnreadCount(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestContains(t *testing.T) {
	ctx := context.Background()
	cache, _ := newTestCache(t)
	user := uuid.New()

	require.NoError(t, cache.CacheNotification(ctx, testNotification(t, 7, user)))

	ok, err := cache.Contains(ctx, user, 7)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = cache.Contains(ctx, user, 8)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = cache.Contains(ctx, uuid.New(), 7)
	require.NoError(t, err)
	assert.False(t, ok, "lists are partitioned per user")
}

func TestNotificationsNewestFirst(t *testing.T) {
	ctx := context.Background()
	cache, _ := newTestCache(t)
	user := uuid.New()

	for id := int64(1); id <= 3; id++ {
		require.NoError(t, cache.CacheNotification(ctx, testNotification(t, id, user)))
	}

	list, err := cache.Notifications(ctx, user, 0)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, int64(3), list[0].ID)
	assert.Equal(t, int64(1), list[2].ID)

	limited, err := cache.Notifications(ctx, user, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, int64(3), limited[0].ID)
}

func TestNotificationsSkipsExpiredBlobs(t *testing.T) {
	ctx := context.Background()
	cache, srv := newTestCache(t)
	user := uuid.New()

	require.NoError(t, cache.CacheNotification(ctx, testNotification(t, 1, user)))
	require.NoError(t, cache.CacheNotification(ctx, testNotification(t, 2, user)))
	srv.Del("notification:1")

	list, err := cache.Notifications(ctx, user, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int64(2), list[0].ID)
}

func TestMarkReadIsIdempotent(t *testing.T) {
	ctx := context.Background()
	cache, _ := newTestCache(t)
	user := uuid.New()

	require.NoError(t, cache.CacheNotification(ctx, testNotification(t, 1, user)))
	require.NoError(t, cache.CacheNotification(ctx, testNotification(t, 2, user)))

	require.NoError(t, cache.MarkRead(ctx, user, 1))

	count, err := cache.UnreadCount(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// A second mark of the same id must not decrement again.
	require.NoError(t, cache.MarkRead(ctx, user, 1))

	count, err = cache.UnreadCount(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestMarkReadRejectsForeignNotification(t *testing.T) {
	ctx := context.Background()
	cache, _ := newTestCache(t)
	owner := uuid.New()
	intruder := uuid.New()

	require.NoError(t, cache.CacheNotification(ctx, testNotification(t, 1, owner)))

	err := cache.MarkRead(ctx, intruder, 1)
	assert.ErrorIs(t, err, ErrNotCached,
		"foreign blobs must be indistinguishable from missing ones")

	count, err := cache.UnreadCount(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestMarkReadMissing(t *testing.T) {
	ctx := context.Background()
	cache, _ := newTestCache(t)

	err := cache.MarkRead(ctx, uuid.New(), 99)
	assert.ErrorIs(t, err, ErrNotCached)
}

func TestMarkReadCounterNeverGoesNegative(t *testing.T) {
	ctx := context.Background()
	cache, srv := newTestCache(t)
	user := uuid.New()

	const total = int64(8)
	for i := int64(1); i <= total; i++ {
		require.NoError(t, cache.CacheNotification(ctx, testNotification(t, i, user)))
	}

	// Force the counter below the number of pending decrements, as if it
	// had drifted or been recomputed mid-flight.
	require.NoError(t, srv.Set(unreadCountKey(user), "2"))

	var wg sync.WaitGroup
	for i := int64(1); i <= total; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			assert.NoError(t, cache.MarkRead(ctx, user, id))
		}(i)
	}
	wg.Wait()

	got, err := srv.Get(unreadCountKey(user))
	require.NoError(t, err)
	assert.Equal(t, "0", got)
}

func TestMarkAllRead(t *testing.T) {
	ctx := context.Background()
	cache, _ := newTestCache(t)
	user := uuid.New()

	for id := int64(1); id <= 3; id++ {
		require.NoError(t, cache.CacheNotification(ctx, testNotification(t, id, user)))
	}

	require.NoError(t, cache.MarkAllRead(ctx, user))

	count, err := cache.UnreadCount(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	// Second call succeeds with no effect.
	require.NoError(t, cache.MarkAllRead(ctx, user))

	count, err = cache.UnreadCount(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestUnreadCountRecomputesFromList(t *testing.T) {
	ctx := context.Background()
	cache, srv := newTestCache(t)
	user := uuid.New()

	require.NoError(t, cache.CacheNotification(ctx, testNotification(t, 1, user)))
	require.NoError(t, cache.CacheNotification(ctx, testNotification(t, 2, user)))

	// Simulate the counter key expiring independently of the list.
	srv.Del("user:" + user.String() + ":unread_count")

	count, err := cache.UnreadCount(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count, "counter is rebuilt from the blob list")
}

func TestDeleteNotification(t *testing.T) {
	ctx := context.Background()
	cache, _ := newTestCache(t)
	user := uuid.New()

	require.NoError(t, cache.CacheNotification(ctx, testNotification(t, 1, user)))
	require.NoError(t, cache.DeleteNotification(ctx, user, 1))

	count, err := cache.UnreadCount(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	ok, err := cache.Contains(ctx, user, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteAll(t *testing.T) {
	ctx := context.Background()
	cache, _ := newTestCache(t)
	user := uuid.New()

	for id := int64(1); id <= 3; id++ {
		require.NoError(t, cache.CacheNotification(ctx, testNotification(t, id, user)))
	}

	require.NoError(t, cache.DeleteAll(ctx, user))

	list, err := cache.Notifications(ctx, user, 0)
	require.NoError(t, err)
	assert.Empty(t, list)

	count, err := cache.UnreadCount(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}
