package postgres_test

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskpilot/taskpilot-api/internal/domain"
	"github.com/taskpilot/taskpilot-api/internal/platform/postgres"
	"github.com/taskpilot/taskpilot-api/internal/store"
	"github.com/taskpilot/taskpilot-api/internal/testdb"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func createUser(t *testing.T, tx *sql.Tx, email string) *domain.User {
	t.Helper()
	u, err := domain.NewUser(email, "Integration User", "a-long-enough-password")
	require.NoError(t, err)
	u.HashedPassword = "not-a-real-hash"
	u.Password = ""

	users := postgres.NewPostgresUserStore(tx, testLogger())
	require.NoError(t, users.Create(context.Background(), u))
	return u
}

func TestPostgresUserStore(t *testing.T) {
	testdb.SkipIfNoDatabase(t)
	db := testdb.Open(t)

	testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
		ctx := context.Background()
		users := postgres.NewPostgresUserStore(tx, testLogger())

		u := createUser(t, tx, "alice@example.com")

		got, err := users.GetByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, "alice@example.com", got.Email)
		assert.Equal(t, domain.RoleMember, got.Role)

		got, err = users.GetByEmail(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.Equal(t, u.ID, got.ID)

		// Duplicate email maps to the sentinel.
		dup, err := domain.NewUser("alice@example.com", "Other Alice", "another-long-password")
		require.NoError(t, err)
		dup.HashedPassword = "not-a-real-hash"
		dup.Password = ""
		assert.ErrorIs(t, users.Create(ctx, dup), store.ErrEmailExists)

		_, err = users.GetByID(ctx, uuid.New())
		assert.ErrorIs(t, err, store.ErrUserNotFound)
	})
}

func TestPostgresUserStore_ListAdmins(t *testing.T) {
	testdb.SkipIfNoDatabase(t)
	db := testdb.Open(t)

	testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
		ctx := context.Background()
		users := postgres.NewPostgresUserStore(tx, testLogger())

		member := createUser(t, tx, "member@example.com")

		admin, err := domain.NewUser("admin@example.com", "Admin", "a-long-enough-password")
		require.NoError(t, err)
		admin.Role = domain.RoleAdmin
		admin.HashedPassword = "not-a-real-hash"
		admin.Password = ""
		require.NoError(t, users.Create(ctx, admin))

		admins, err := users.ListAdmins(ctx)
		require.NoError(t, err)

		ids := make(map[uuid.UUID]bool, len(admins))
		for _, a := range admins {
			assert.True(t, a.IsAdmin())
			ids[a.ID] = true
		}
		assert.True(t, ids[admin.ID])
		assert.False(t, ids[member.ID])
	})
}

func TestPostgresTaskStore(t *testing.T) {
	testdb.SkipIfNoDatabase(t)
	db := testdb.Open(t)

	testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
		ctx := context.Background()
		tasks := postgres.NewPostgresTaskStore(tx, testLogger())

		creator := createUser(t, tx, "creator@example.com")
		assignee := createUser(t, tx, "assignee@example.com")

		task, err := domain.NewTask(creator.ID, assignee.ID, "Ship release", "cut the tag")
		require.NoError(t, err)
		require.NoError(t, tasks.Create(ctx, task))
		assert.NotZero(t, task.ID, "the database assigns the id")

		got, err := tasks.GetByID(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusPending, got.Status)

		got.Status = domain.TaskStatusCompleted
		got.Title = "Ship release v2"
		require.NoError(t, tasks.Update(ctx, got))

		got, err = tasks.GetByID(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusCompleted, got.Status)
		assert.Equal(t, "Ship release v2", got.Title)

		listed, err := tasks.ListForUser(ctx, assignee.ID, 10)
		require.NoError(t, err)
		require.Len(t, listed, 1)

		require.NoError(t, tasks.Delete(ctx, task.ID))
		_, err = tasks.GetByID(ctx, task.ID)
		assert.ErrorIs(t, err, store.ErrTaskNotFound)
		assert.ErrorIs(t, tasks.Delete(ctx, task.ID), store.ErrTaskNotFound)
	})
}

func TestPostgresNotificationStore(t *testing.T) {
	testdb.SkipIfNoDatabase(t)
	db := testdb.Open(t)

	testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
		ctx := context.Background()
		notifications := postgres.NewPostgresNotificationStore(tx, testLogger())

		actor := createUser(t, tx, "actor@example.com")
		recipient := createUser(t, tx, "recipient@example.com")

		taskID := int64(12345)
		first, err := domain.NewNotification(domain.NotificationTaskDeleted, actor.ID, recipient.ID, &taskID, "Ship release")
		require.NoError(t, err)
		// task_id carries no foreign key, so a notification can reference a
		// task row that no longer exists.
		require.NoError(t, notifications.Create(ctx, first))

		second, err := domain.NewNotification(domain.NotificationMessageReceived, actor.ID, recipient.ID, nil, "")
		require.NoError(t, err)
		require.NoError(t, notifications.Create(ctx, second))

		recent, err := notifications.ListRecent(ctx, recipient.ID, 10)
		require.NoError(t, err)
		require.Len(t, recent, 2)
		assert.Equal(t, second.ID, recent[0].ID, "newest first")

		count, err := notifications.CountUnread(ctx, recipient.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)

		// MarkRead is scoped to the recipient.
		assert.ErrorIs(t, notifications.MarkRead(ctx, actor.ID, first.ID), store.ErrNotificationNotFound)

		require.NoError(t, notifications.MarkRead(ctx, recipient.ID, first.ID))
		count, err = notifications.CountUnread(ctx, recipient.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)

		// Marking an already-read notification again is a no-op success.
		require.NoError(t, notifications.MarkRead(ctx, recipient.ID, first.ID))

		require.NoError(t, notifications.MarkAllRead(ctx, recipient.ID))
		count, err = notifications.CountUnread(ctx, recipient.ID)
		require.NoError(t, err)
		assert.Zero(t, count)
	})
}

func TestPostgresChatMessageStore(t *testing.T) {
	testdb.SkipIfNoDatabase(t)
	db := testdb.Open(t)

	testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
		ctx := context.Background()
		messages := postgres.NewPostgresChatMessageStore(tx, testLogger())

		alice := createUser(t, tx, "alice@example.com")
		bob := createUser(t, tx, "bob@example.com")
		carol := createUser(t, tx, "carol@example.com")

		for _, m := range []struct {
			from, to uuid.UUID
			content  string
		}{
			{alice.ID, bob.ID, "hey"},
			{bob.ID, alice.ID, "hey yourself"},
			{alice.ID, carol.ID, "different thread"},
		} {
			msg, err := domain.NewChatMessage(m.from, m.to, m.content)
			require.NoError(t, err)
			require.NoError(t, messages.Create(ctx, msg))
		}

		// The conversation is symmetric and excludes third parties.
		history, err := messages.Conversation(ctx, alice.ID, bob.ID, 10)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, "hey yourself", history[0].Content, "newest first")

		count, err := messages.CountUnread(ctx, bob.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)

		require.NoError(t, messages.MarkConversationRead(ctx, bob.ID, alice.ID))
		count, err = messages.CountUnread(ctx, bob.ID)
		require.NoError(t, err)
		assert.Zero(t, count)

		// Alice's unread message from bob is untouched.
		count, err = messages.CountUnread(ctx, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})
}
