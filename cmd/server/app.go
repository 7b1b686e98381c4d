package main

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/taskpilot/taskpilot-api/internal/config"
	"github.com/taskpilot/taskpilot-api/internal/consumer"
	"github.com/taskpilot/taskpilot-api/internal/platform/postgres"
	"github.com/taskpilot/taskpilot-api/internal/platform/rabbitmq"
	"github.com/taskpilot/taskpilot-api/internal/platform/redis"
	"github.com/taskpilot/taskpilot-api/internal/push"
	"github.com/taskpilot/taskpilot-api/internal/service"
	"github.com/taskpilot/taskpilot-api/internal/service/auth"
	"github.com/taskpilot/taskpilot-api/internal/store"
)

// application holds all the shared application dependencies to simplify
// management and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	// Stores (using interfaces for proper abstraction)
	userStore         store.UserStore
	taskStore         store.TaskStore
	notificationStore store.NotificationStore
	chatStore         store.ChatMessageStore

	// Pipeline infrastructure
	broker     *rabbitmq.Broker
	cache      *redis.Cache
	hub        *push.Hub
	supervisor *consumer.Supervisor

	// Services
	jwtService          auth.JWTService
	passwordVerifier    *auth.BcryptVerifier
	notificationService *service.NotificationService
	chatService         *service.ChatService
	taskService         *service.TaskService
	userService         *service.UserService
}

// newApplication wires every component of the delivery pipeline in
// dependency order: stores, broker, cache, push hub, services, supervisor.
func newApplication(cfg *config.Config, appLogger *slog.Logger) (*application, error) {
	db, err := setupAppDatabase(cfg, appLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to set up database: %w", err)
	}

	app := &application{
		config: cfg,
		logger: appLogger,
		db:     db,

		userStore:         postgres.NewPostgresUserStore(db, appLogger),
		taskStore:         postgres.NewPostgresTaskStore(db, appLogger),
		notificationStore: postgres.NewPostgresNotificationStore(db, appLogger),
		chatStore:         postgres.NewPostgresChatMessageStore(db, appLogger),

		broker: rabbitmq.New(cfg.Broker, appLogger),
		cache:  redis.NewCache(cfg.Cache, appLogger),
		hub:    push.NewHub(appLogger),
	}

	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWT service: %w", err)
	}
	app.passwordVerifier = auth.NewBcryptVerifier()

	app.notificationService = service.NewNotificationService(
		app.notificationStore, app.broker, app.cache, app.hub, appLogger)
	app.chatService = service.NewChatService(
		app.chatStore, app.broker, app.hub, app.notificationService, appLogger)
	app.taskService = service.NewTaskService(
		app.taskStore, app.userStore, store.NewSQLTransactor(db),
		app.notificationService, appLogger)
	app.userService = service.NewUserService(
		app.userStore, app.passwordVerifier, app.passwordVerifier,
		app.jwtService, app.notificationService, appLogger)

	app.supervisor = consumer.NewSupervisor(app.broker, app.cache, app.hub, appLogger)

	return app, nil
}

// cleanup releases every long-lived resource in reverse dependency order.
func (app *application) cleanup() {
	if app.supervisor != nil {
		app.supervisor.StopAll()
	}
	if app.hub != nil {
		app.hub.CloseAll()
	}
	if app.broker != nil {
		if err := app.broker.Close(); err != nil {
			app.logger.Error("failed to close broker connection", "error", err)
		}
	}
	if app.cache != nil {
		if err := app.cache.Close(); err != nil {
			app.logger.Error("failed to close cache connection", "error", err)
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("failed to close database connection", "error", err)
		}
	}
}
