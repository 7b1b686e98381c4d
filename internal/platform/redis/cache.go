// Package redis implements the read-optimized notification cache. It keeps
// per-user unread counters, ordered id lists and individual notification
// blobs with independent TTLs. The cache is never authoritative: every read
// path tolerates missing keys, and a counter that drifted or expired is
// recomputed from the id list on demand.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/taskpilot/taskpilot-api/internal/config"
	"github.com/taskpilot/taskpilot-api/internal/domain"
)

// ErrNotCached is returned when a requested notification blob is absent,
// either because it was never cached or because its TTL lapsed.
var ErrNotCached = errors.New("notification not cached")

// Cache is the per-user notification projection over Redis.
type Cache struct {
	client          *goredis.Client
	logger          *slog.Logger
	notificationTTL time.Duration
	userKeyTTL      time.Duration
}

// NewCache creates a Cache from configuration. TTL zero values fall back to
// 7 days for blobs and 30 days for the per-user index/counter keys; the
// counter TTL is deliberately the longer of the two so counts outlive the
// blobs they summarize.
func NewCache(cfg config.CacheConfig, logger *slog.Logger) *Cache {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return NewCacheWithClient(client, cfg, logger)
}

// NewCacheWithClient wraps an existing Redis client; tests use this with an
// in-process server.
func NewCacheWithClient(client *goredis.Client, cfg config.CacheConfig, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}

	notificationTTL := cfg.NotificationTTL
	if notificationTTL == 0 {
		notificationTTL = 7 * 24 * time.Hour
	}
	userKeyTTL := cfg.UserKeyTTL
	if userKeyTTL == 0 {
		userKeyTTL = 30 * 24 * time.Hour
	}

	return &Cache{
		client:          client,
		logger:          logger.With(slog.String("component", "notification_cache")),
		notificationTTL: notificationTTL,
		userKeyTTL:      userKeyTTL,
	}
}

func notificationKey(id int64) string {
	return fmt.Sprintf("notification:%d", id)
}

func userListKey(userID uuid.UUID) string {
	return fmt.Sprintf("user:%s:notifications", userID)
}

func unreadCountKey(userID uuid.UUID) string {
	return fmt.Sprintf("user:%s:unread_count", userID)
}

// CacheNotification stores the blob, pushes the id onto the recipient's
// list (newest first), bumps the unread counter iff the notification is
// unread, and refreshes the TTLs on the per-user keys.
func (c *Cache) CacheNotification(ctx context.Context, n *domain.Notification) error {
	blob, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to serialize notification: %w", err)
	}

	pipe := c.client.TxPipeline()
	pipe.Set(ctx, notificationKey(n.ID), blob, c.notificationTTL)
	pipe.LPush(ctx, userListKey(n.RecipientID), n.ID)
	if !n.IsRead {
		pipe.Incr(ctx, unreadCountKey(n.RecipientID))
	}
	pipe.Expire(ctx, userListKey(n.RecipientID), c.userKeyTTL)
	pipe.Expire(ctx, unreadCountKey(n.RecipientID), c.userKeyTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache notification %d: %w", n.ID, err)
	}

	return nil
}

// Contains reports whether the notification id is already on the user's
// cached list. The drain path uses this to dedupe broker replays.
func (c *Cache) Contains(ctx context.Context, userID uuid.UUID, id int64) (bool, error) {
	ids, err := c.client.LRange(ctx, userListKey(userID), 0, -1).Result()
	if err != nil {
		return false, fmt.Errorf("failed to read notification list: %w", err)
	}

	target := strconv.FormatInt(id, 10)
	for _, cached := range ids {
		if cached == target {
			return true, nil
		}
	}
	return false, nil
}

// UnreadCount returns the recipient's unread counter. When the counter is
// missing or zero it is lazily recomputed by walking the id list and
// counting unread blobs, then written back with a fresh TTL. This self-heals
// a counter that expired or drifted independently of the list.
func (c *Cache) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	val, err := c.client.Get(ctx, unreadCountKey(userID)).Result()
	if err == nil {
		count, parseErr := strconv.ParseInt(val, 10, 64)
		if parseErr == nil && count > 0 {
			return count, nil
		}
	} else if !errors.Is(err, goredis.Nil) {
		return 0, fmt.Errorf("failed to read unread counter: %w", err)
	}

	// Counter missing or zero: recompute from the list.
	notifications, err := c.Notifications(ctx, userID, 0)
	if err != nil {
		return 0, err
	}

	var count int64
	for _, n := range notifications {
		if !n.IsRead {
			count++
		}
	}

	if count > 0 {
		if err := c.client.Set(ctx, unreadCountKey(userID), count, c.userKeyTTL).Err(); err != nil {
			c.logger.Warn("failed to write back recomputed unread counter",
				"user_id", userID,
				"error", err)
		}
	}

	return count, nil
}

// Notifications returns the recipient's cached notifications, newest first.
// limit <= 0 returns the full list. Ids whose blobs have expired are skipped;
// callers needing full history fall back to the durable store.
func (c *Cache) Notifications(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Notification, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}

	ids, err := c.client.LRange(ctx, userListKey(userID), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read notification list: %w", err)
	}

	notifications := make([]*domain.Notification, 0, len(ids))
	for _, id := range ids {
		blob, err := c.client.Get(ctx, "notification:"+id).Result()
		if errors.Is(err, goredis.Nil) {
			continue // blob expired; list entry outlived it
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read notification blob %s: %w", id, err)
		}

		var n domain.Notification
		if err := json.Unmarshal([]byte(blob), &n); err != nil {
			c.logger.Error("skipping corrupt cached notification",
				"notification_id", id,
				"error", err)
			continue
		}
		notifications = append(notifications, &n)
	}

	return notifications, nil
}

// MarkRead flips the cached blob to read, removes the id from the unread
// list and decrements the counter, but only when the blob was actually
// unread - calling it twice never double-decrements. The blob itself stays
// cached for history reads until its own TTL lapses.
// Returns ErrNotCached when the blob is absent, and ErrNotCached when the
// blob belongs to a different user so ownership cannot be probed.
func (c *Cache) MarkRead(ctx context.Context, userID uuid.UUID, id int64) error {
	n, err := c.getOwnedNotification(ctx, userID, id)
	if err != nil {
		return err
	}

	wasUnread := !n.IsRead
	n.IsRead = true

	blob, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to serialize notification: %w", err)
	}

	pipe := c.client.TxPipeline()
	pipe.Set(ctx, notificationKey(id), blob, c.notificationTTL)
	pipe.LRem(ctx, userListKey(userID), 0, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to mark notification %d read: %w", id, err)
	}

	if wasUnread {
		c.decrementUnread(ctx, userID)
	}

	return nil
}

// MarkAllRead flips every listed blob to read, clears the list and resets
// the counter to zero. It succeeds when there is nothing to do.
func (c *Cache) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	notifications, err := c.Notifications(ctx, userID, 0)
	if err != nil {
		return err
	}

	for _, n := range notifications {
		if n.IsRead {
			continue
		}
		n.IsRead = true
		blob, err := json.Marshal(n)
		if err != nil {
			return fmt.Errorf("failed to serialize notification: %w", err)
		}
		if err := c.client.Set(ctx, notificationKey(n.ID), blob, c.notificationTTL).Err(); err != nil {
			return fmt.Errorf("failed to update notification %d: %w", n.ID, err)
		}
	}

	pipe := c.client.TxPipeline()
	pipe.Del(ctx, userListKey(userID))
	pipe.Set(ctx, unreadCountKey(userID), 0, c.userKeyTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to reset notification list: %w", err)
	}

	return nil
}

// DeleteNotification removes the blob and the list entry, decrementing the
// counter when the entry was unread.
func (c *Cache) DeleteNotification(ctx context.Context, userID uuid.UUID, id int64) error {
	n, err := c.getOwnedNotification(ctx, userID, id)
	if err != nil {
		return err
	}

	pipe := c.client.TxPipeline()
	pipe.Del(ctx, notificationKey(id))
	pipe.LRem(ctx, userListKey(userID), 0, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete notification %d: %w", id, err)
	}

	if !n.IsRead {
		c.decrementUnread(ctx, userID)
	}

	return nil
}

// DeleteAll removes every cached notification for the user along with the
// list and counter keys. Succeeds when nothing is cached.
func (c *Cache) DeleteAll(ctx context.Context, userID uuid.UUID) error {
	ids, err := c.client.LRange(ctx, userListKey(userID), 0, -1).Result()
	if err != nil {
		return fmt.Errorf("failed to read notification list: %w", err)
	}

	pipe := c.client.TxPipeline()
	for _, id := range ids {
		pipe.Del(ctx, "notification:"+id)
	}
	pipe.Del(ctx, userListKey(userID))
	pipe.Del(ctx, unreadCountKey(userID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete cached notifications: %w", err)
	}

	return nil
}

// getOwnedNotification loads a blob and verifies it belongs to userID.
func (c *Cache) getOwnedNotification(ctx context.Context, userID uuid.UUID, id int64) (*domain.Notification, error) {
	blob, err := c.client.Get(ctx, notificationKey(id)).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, ErrNotCached
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read notification blob: %w", err)
	}

	var n domain.Notification
	if err := json.Unmarshal([]byte(blob), &n); err != nil {
		return nil, fmt.Errorf("corrupt cached notification %d: %w", id, err)
	}

	if n.RecipientID != userID {
		// Treat another user's notification the same as a missing one so
		// this call cannot be used to probe for ids.
		return nil, ErrNotCached
	}

	return &n, nil
}

// decrUnreadScript decrements the counter only while it is present and
// positive, so concurrent decrements can never drive it below zero. A
// missing counter stays missing and is recomputed on the next read.
var decrUnreadScript = goredis.NewScript(`
local v = redis.call('GET', KEYS[1])
if not v then return -1 end
local n = tonumber(v)
if not n or n <= 0 then return 0 end
return redis.call('DECR', KEYS[1])
`)

// decrementUnread lowers the counter without letting it go negative.
func (c *Cache) decrementUnread(ctx context.Context, userID uuid.UUID) {
	if err := decrUnreadScript.Run(ctx, c.client, []string{unreadCountKey(userID)}).Err(); err != nil {
		c.logger.Warn("failed to decrement unread counter",
			"user_id", userID,
			"error", err)
	}
}

// Close releases the underlying Redis client.
func (c *Cache) Close() error {
	return c.client.Close()
}
