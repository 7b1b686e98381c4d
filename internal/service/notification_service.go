package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/taskpilot/taskpilot-api/internal/domain"
	"github.com/taskpilot/taskpilot-api/internal/platform/redis"
	"github.com/taskpilot/taskpilot-api/internal/push"
	"github.com/taskpilot/taskpilot-api/internal/store"
)

// recentNotificationLimit bounds how much history the store fallback loads
// when the cache has nothing for a user.
const recentNotificationLimit = 50

// NotificationService orchestrates the delivery pipeline: durable write,
// broker fan-out, cache write-through and live push. It is the error
// boundary for the pipeline; broker and cache faults are logged here and
// never escape to callers.
type NotificationService struct {
	notifications store.NotificationStore
	broker        NotificationBroker
	cache         NotificationCache
	pusher        Pusher
	logger        *slog.Logger
}

// NewNotificationService creates a NotificationService with its pipeline
// dependencies.
func NewNotificationService(
	notifications store.NotificationStore,
	broker NotificationBroker,
	cache NotificationCache,
	pusher Pusher,
	logger *slog.Logger,
) *NotificationService {
	return &NotificationService{
		notifications: notifications,
		broker:        broker,
		cache:         cache,
		pusher:        pusher,
		logger:        logger.With(slog.String("component", "notification_service")),
	}
}

// SendTaskNotification builds and dispatches a notification for a task
// event. The message is rendered from the type's template at creation time,
// collapsing the actor reference to "you" when the actor is the recipient.
// Returns true only when the durable write succeeded; broker, cache and
// push failures downstream are logged and tolerated.
func (s *NotificationService) SendTaskNotification(
	ctx context.Context,
	typ domain.NotificationType,
	actorID, recipientID uuid.UUID,
	taskID *int64,
	taskTitle string,
) bool {
	n, err := domain.NewNotification(typ, actorID, recipientID, taskID, taskTitle)
	if err != nil {
		s.logger.ErrorContext(ctx, "invalid notification",
			slog.String("type", typ.String()),
			slog.String("recipient_id", recipientID.String()),
			slog.String("error", err.Error()))
		return false
	}
	return s.dispatch(ctx, n)
}

// NotifyUserRegistered fans a registration notification out to a single
// administrator. Callers iterate the admin set.
func (s *NotificationService) NotifyUserRegistered(ctx context.Context, newUserID, adminID uuid.UUID) bool {
	n, err := domain.NewNotification(domain.NotificationUserRegistered, newUserID, adminID, nil, "")
	if err != nil {
		s.logger.ErrorContext(ctx, "invalid registration notification",
			slog.String("admin_id", adminID.String()),
			slog.String("error", err.Error()))
		return false
	}
	return s.dispatch(ctx, n)
}

// NotifyMessageReceived tells the recipient of a chat message that something
// new is waiting for them.
func (s *NotificationService) NotifyMessageReceived(ctx context.Context, senderID, recipientID uuid.UUID) bool {
	n, err := domain.NewNotification(domain.NotificationMessageReceived, senderID, recipientID, nil, "")
	if err != nil {
		s.logger.ErrorContext(ctx, "invalid chat notification",
			slog.String("recipient_id", recipientID.String()),
			slog.String("error", err.Error()))
		return false
	}
	return s.dispatch(ctx, n)
}

// dispatch runs the pipeline for a built notification. The durable write is
// the commit point: it assigns the id and its failure aborts the call with
// no side effects. Publish and cache-write run after it and are best-effort
// because both views are reconstructible from the store.
func (s *NotificationService) dispatch(ctx context.Context, n *domain.Notification) bool {
	if err := s.notifications.Create(ctx, n); err != nil {
		s.logger.ErrorContext(ctx, "durable notification write failed",
			slog.String("type", n.Type.String()),
			slog.String("recipient_id", n.RecipientID.String()),
			slog.String("error", err.Error()))
		return false
	}

	if err := s.broker.PublishNotification(ctx, n); err != nil {
		s.logger.WarnContext(ctx, "broker publish failed, queue will be repaired on reconciliation",
			slog.Int64("notification_id", n.ID),
			slog.String("recipient_id", n.RecipientID.String()),
			slog.String("error", err.Error()))
	}

	if err := s.cache.CacheNotification(ctx, n); err != nil {
		s.logger.WarnContext(ctx, "cache write failed, falling back to store on next read",
			slog.Int64("notification_id", n.ID),
			slog.String("recipient_id", n.RecipientID.String()),
			slog.String("error", err.Error()))
	}

	s.pushEvent(ctx, n.RecipientID, push.EventReceiveNotification, push.ReceiveNotificationPayload{
		Count:        s.unreadCount(ctx, n.RecipientID),
		Notification: n,
	})

	return true
}

// GetUserNotifications is the reconciliation path. It drains any messages
// still sitting in the user's broker queue into the cache (deduplicating by
// id, acknowledging each message only after its cache write succeeds), then
// returns the cached list, falling back to the durable store when the cache
// has nothing. The resulting set is also pushed to the user's live sessions.
func (s *NotificationService) GetUserNotifications(ctx context.Context, userID uuid.UUID) (bool, []*domain.Notification) {
	if _, err := s.broker.DrainNotifications(ctx, userID, s.applyToCache); err != nil {
		s.logger.WarnContext(ctx, "broker drain failed, serving cached view only",
			slog.String("user_id", userID.String()),
			slog.String("error", err.Error()))
	}

	list, err := s.cache.Notifications(ctx, userID, 0)
	if err != nil {
		s.logger.WarnContext(ctx, "cache list read failed",
			slog.String("user_id", userID.String()),
			slog.String("error", err.Error()))
	}

	if len(list) == 0 {
		list, err = s.notifications.ListRecent(ctx, userID, recentNotificationLimit)
		if err != nil {
			s.logger.ErrorContext(ctx, "store fallback failed",
				slog.String("user_id", userID.String()),
				slog.String("error", err.Error()))
			return false, nil
		}
		// Repair the cache so the next read is served without a store hit.
		for i := len(list) - 1; i >= 0; i-- {
			if cacheErr := s.cache.CacheNotification(ctx, list[i]); cacheErr != nil {
				s.logger.WarnContext(ctx, "cache repair failed",
					slog.Int64("notification_id", list[i].ID),
					slog.String("error", cacheErr.Error()))
				break
			}
		}
	}

	s.pushEvent(ctx, userID, push.EventReceiveNotifications, push.ReceiveNotificationsPayload{
		Notifications: list,
	})

	return true, list
}

// applyToCache writes a drained broker message into the cache unless the id
// is already there. A returned error leaves the message in the queue.
func (s *NotificationService) applyToCache(ctx context.Context, n *domain.Notification) error {
	cached, err := s.cache.Contains(ctx, n.RecipientID, n.ID)
	if err != nil {
		return err
	}
	if cached {
		return nil
	}
	return s.cache.CacheNotification(ctx, n)
}

// GetUnreadCount returns the user's unread notification count, preferring
// the cache and falling back to the durable store.
func (s *NotificationService) GetUnreadCount(ctx context.Context, userID uuid.UUID) (bool, int64) {
	count, err := s.cache.UnreadCount(ctx, userID)
	if err == nil {
		return true, count
	}
	s.logger.WarnContext(ctx, "cache unread count failed, falling back to store",
		slog.String("user_id", userID.String()),
		slog.String("error", err.Error()))

	count, err = s.notifications.CountUnread(ctx, userID)
	if err != nil {
		s.logger.ErrorContext(ctx, "store unread count failed",
			slog.String("user_id", userID.String()),
			slog.String("error", err.Error()))
		return false, 0
	}
	return true, count
}

// MarkNotificationRead flips a single notification to read. The durable
// store is updated first and is authoritative; a store failure aborts the
// call before any cache or push mutation so the views never get ahead of
// the record. The store scopes the update to userID, so a guessed id
// belonging to someone else reads as not found.
func (s *NotificationService) MarkNotificationRead(ctx context.Context, userID uuid.UUID, notificationID int64) bool {
	if err := s.notifications.MarkRead(ctx, userID, notificationID); err != nil {
		if errors.Is(err, store.ErrNotificationNotFound) {
			s.logger.InfoContext(ctx, "mark read for unknown notification",
				slog.Int64("notification_id", notificationID),
				slog.String("user_id", userID.String()))
		} else {
			s.logger.ErrorContext(ctx, "durable mark read failed",
				slog.Int64("notification_id", notificationID),
				slog.String("error", err.Error()))
		}
		return false
	}

	if err := s.cache.MarkRead(ctx, userID, notificationID); err != nil && !errors.Is(err, redis.ErrNotCached) {
		s.logger.WarnContext(ctx, "cache mark read failed",
			slog.Int64("notification_id", notificationID),
			slog.String("error", err.Error()))
	}

	s.pushEvent(ctx, userID, push.EventNotificationMarkedRead, push.NotificationMarkedReadPayload{
		NotificationID: notificationID,
		UnreadCount:    s.unreadCount(ctx, userID),
	})

	return true
}

// MarkAllNotificationsRead flips every unread notification for the user.
// Calling it with nothing unread is a success with no effect.
func (s *NotificationService) MarkAllNotificationsRead(ctx context.Context, userID uuid.UUID) bool {
	if err := s.notifications.MarkAllRead(ctx, userID); err != nil {
		s.logger.ErrorContext(ctx, "durable mark all read failed",
			slog.String("user_id", userID.String()),
			slog.String("error", err.Error()))
		return false
	}

	if err := s.cache.MarkAllRead(ctx, userID); err != nil {
		s.logger.WarnContext(ctx, "cache mark all read failed",
			slog.String("user_id", userID.String()),
			slog.String("error", err.Error()))
	}

	s.pushEvent(ctx, userID, push.EventAllNotificationsMarked, push.AllNotificationsMarkedReadPayload{
		UnreadCount: 0,
	})

	return true
}

// unreadCount resolves the count for push payloads, tolerating a cold or
// unavailable cache.
func (s *NotificationService) unreadCount(ctx context.Context, userID uuid.UUID) int64 {
	count, err := s.cache.UnreadCount(ctx, userID)
	if err == nil {
		return count
	}
	count, err = s.notifications.CountUnread(ctx, userID)
	if err != nil {
		s.logger.WarnContext(ctx, "unread count unavailable",
			slog.String("user_id", userID.String()),
			slog.String("error", err.Error()))
		return 0
	}
	return count
}

// pushEvent serializes and fans an event out to the user's live sessions.
// Delivery is fire-and-forget; with no connected sessions the event is
// dropped.
func (s *NotificationService) pushEvent(ctx context.Context, userID uuid.UUID, eventType string, payload any) {
	event, err := push.NewEvent(eventType, payload)
	if err != nil {
		s.logger.ErrorContext(ctx, "push event serialization failed",
			slog.String("event", eventType),
			slog.String("error", err.Error()))
		return
	}
	s.pusher.SendToUser(userID, event)
}
