// Package consumer runs one long-lived background drain of the broker queue
// per authenticated user, so notifications published while the user had no
// live session still land in the cache.
package consumer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/taskpilot/taskpilot-api/internal/domain"
	"github.com/taskpilot/taskpilot-api/internal/push"
	"github.com/taskpilot/taskpilot-api/internal/service"
)

// retryDelay is how long a consumer waits before redialing after its broker
// subscription drops.
const retryDelay = 5 * time.Second

// NotificationConsumer is the broker's long-lived subscription surface.
type NotificationConsumer interface {
	// ConsumeNotifications blocks, feeding each delivered notification to
	// apply and acknowledging it only after apply succeeds. Returns when the
	// context is cancelled or the subscription fails.
	ConsumeNotifications(
		ctx context.Context,
		userID uuid.UUID,
		apply func(ctx context.Context, n *domain.Notification) error,
	) error
}

// Supervisor keeps at most one consumer goroutine alive per user. Starting a
// consumer for a user that already has one running is a no-op, which keeps
// each per-user queue single-consumer and its delivery order intact.
type Supervisor struct {
	broker NotificationConsumer
	cache  service.NotificationCache
	pusher service.Pusher
	logger *slog.Logger

	mu      sync.Mutex
	cancels map[uuid.UUID]context.CancelFunc
	wg      sync.WaitGroup
}

// NewSupervisor creates a Supervisor.
func NewSupervisor(
	broker NotificationConsumer,
	cache service.NotificationCache,
	pusher service.Pusher,
	logger *slog.Logger,
) *Supervisor {
	return &Supervisor{
		broker:  broker,
		cache:   cache,
		pusher:  pusher,
		logger:  logger.With(slog.String("component", "consumer_supervisor")),
		cancels: make(map[uuid.UUID]context.CancelFunc),
	}
}

// Start launches a background consumer for the user if none is running.
// Returns true when a new consumer was started.
func (s *Supervisor) Start(ctx context.Context, userID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, running := s.cancels[userID]; running {
		return false
	}

	// The consumer outlives the request that started it; it is bound to the
	// supervisor's lifecycle, not the caller's context.
	consumerCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancels[userID] = cancel

	s.wg.Add(1)
	go s.run(consumerCtx, userID)

	s.logger.InfoContext(ctx, "started notification consumer",
		slog.String("user_id", userID.String()))
	return true
}

// Stop cancels the user's consumer if one is running.
func (s *Supervisor) Stop(userID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cancel, running := s.cancels[userID]; running {
		cancel()
		delete(s.cancels, userID)
	}
}

// StopAll cancels every consumer and waits for them to exit.
func (s *Supervisor) StopAll() {
	s.mu.Lock()
	for userID, cancel := range s.cancels {
		cancel()
		delete(s.cancels, userID)
	}
	s.mu.Unlock()

	s.wg.Wait()
}

// Running reports whether the user currently has a consumer.
func (s *Supervisor) Running(userID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, running := s.cancels[userID]
	return running
}

// run keeps the user's subscription alive until cancellation, redialing
// after transient broker failures.
func (s *Supervisor) run(ctx context.Context, userID uuid.UUID) {
	defer s.wg.Done()
	defer s.remove(userID)

	for {
		err := s.broker.ConsumeNotifications(ctx, userID, s.forward)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			s.logger.Warn("consumer subscription dropped, retrying",
				slog.String("user_id", userID.String()),
				slog.String("error", err.Error()))
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(retryDelay):
		}
	}
}

// forward writes a delivered notification into the cache and pushes it to
// any live sessions. A cache failure is returned so the message stays in the
// queue; the push is fire-and-forget.
func (s *Supervisor) forward(ctx context.Context, n *domain.Notification) error {
	cached, err := s.cache.Contains(ctx, n.RecipientID, n.ID)
	if err != nil {
		return err
	}
	if !cached {
		if err := s.cache.CacheNotification(ctx, n); err != nil {
			return err
		}
	}

	count, err := s.cache.UnreadCount(ctx, n.RecipientID)
	if err != nil {
		s.logger.Warn("unread count unavailable after consume",
			slog.Int64("notification_id", n.ID),
			slog.String("error", err.Error()))
	}

	event, err := push.NewEvent(push.EventReceiveNotification, push.ReceiveNotificationPayload{
		Count:        count,
		Notification: n,
	})
	if err != nil {
		s.logger.Error("push event serialization failed",
			slog.Int64("notification_id", n.ID),
			slog.String("error", err.Error()))
		return nil
	}
	s.pusher.SendToUser(n.RecipientID, event)

	return nil
}

func (s *Supervisor) remove(userID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cancel, ok := s.cancels[userID]; ok {
		cancel()
		delete(s.cancels, userID)
	}
}
