package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskflow/internal/models"
)

// bugNotification reports a bug and moves it to InProgress so the tester
// receives an actionable notification.
func (e *testEnv) bugNotification(t *testing.T, tm team) (*models.Bug, *models.Notification) {
	t.Helper()
	ctx := context.Background()
	task := e.newTask(t, tm, e.newProject(t, tm, 1).ID, "T")
	bug, err := e.bugs.Report(ctx, tm.test.ID, ReportBugInput{TaskID: task.ID, Title: "Crash", Description: "d"})
	require.NoError(t, err)
	_, n, err := e.bugs.UpdateStatus(ctx, tm.dev.ID, bug.ID, models.BugInProgress)
	require.NoError(t, err)
	return bug, n
}

func TestTakeAction(t *testing.T) {
	ctx := context.Background()

	t.Run("accept completes the bug and replay is a no-op", func(t *testing.T) {
		env := newTestEnv(t)
		tm := env.seedTeam(t, "a")
		bug, n := env.bugNotification(t, tm)
		tester := models.EmployeeActor(tm.test.ID)

		_, got, err := env.notifs.TakeAction(ctx, tester, n.ID, models.ActionAccept, bug.ID)
		require.NoError(t, err)
		assert.Equal(t, models.BugCompleted, got.Status)

		again, got, err := env.notifs.TakeAction(ctx, tester, n.ID, models.ActionAccept, bug.ID)
		require.NoError(t, err)
		assert.Equal(t, models.BugCompleted, got.Status)
		assert.Equal(t, models.ActionAccept, *again.ActionTaken)

		_, _, err = env.notifs.TakeAction(ctx, tester, n.ID, models.ActionReject, bug.ID)
		assert.ErrorIs(t, err, ErrConflict)
		stored, err := env.bugs.Get(ctx, bug.ID)
		require.NoError(t, err)
		assert.Equal(t, models.BugCompleted, stored.Status)
	})

	t.Run("replayed accept completes a bug reopened since", func(t *testing.T) {
		env := newTestEnv(t)
		tm := env.seedTeam(t, "a")
		bug, n := env.bugNotification(t, tm)
		tester := models.EmployeeActor(tm.test.ID)

		_, _, err := env.notifs.TakeAction(ctx, tester, n.ID, models.ActionAccept, bug.ID)
		require.NoError(t, err)
		reopened, _, err := env.bugs.UpdateStatus(ctx, tm.dev.ID, bug.ID, models.BugInProgress)
		require.NoError(t, err)
		require.Equal(t, models.BugInProgress, reopened.Status)

		again, got, err := env.notifs.TakeAction(ctx, tester, n.ID, models.ActionAccept, bug.ID)
		require.NoError(t, err)
		assert.Equal(t, models.BugCompleted, got.Status)
		assert.Equal(t, models.ActionAccept, *again.ActionTaken)

		stored, err := env.bugs.Get(ctx, bug.ID)
		require.NoError(t, err)
		assert.Equal(t, models.BugCompleted, stored.Status)
	})

	t.Run("reject reopens the bug", func(t *testing.T) {
		env := newTestEnv(t)
		tm := env.seedTeam(t, "a")
		bug, n := env.bugNotification(t, tm)

		_, got, err := env.notifs.TakeAction(ctx, models.EmployeeActor(tm.test.ID), n.ID, models.ActionReject, bug.ID)
		require.NoError(t, err)
		assert.Equal(t, models.BugPending, got.Status)
	})

	t.Run("rejected requests leave no trace", func(t *testing.T) {
		env := newTestEnv(t)
		tm := env.seedTeam(t, "a")
		bug, n := env.bugNotification(t, tm)
		tester := models.EmployeeActor(tm.test.ID)

		_, _, err := env.notifs.TakeAction(ctx, tester, n.ID, "Maybe", bug.ID)
		assert.ErrorIs(t, err, ErrValidation)
		_, _, err = env.notifs.TakeAction(ctx, tester, n.ID, models.ActionAccept, bug.ID+100)
		assert.ErrorIs(t, err, ErrValidation)
		_, _, err = env.notifs.TakeAction(ctx, models.EmployeeActor(tm.dev.ID), n.ID, models.ActionAccept, bug.ID)
		assert.ErrorIs(t, err, ErrForbidden)
		_, _, err = env.notifs.TakeAction(ctx, models.PMActor(tm.test.ID), n.ID, models.ActionAccept, bug.ID)
		assert.ErrorIs(t, err, ErrForbidden)
		_, _, err = env.notifs.TakeAction(ctx, tester, n.ID+100, models.ActionAccept, bug.ID)
		assert.ErrorIs(t, err, ErrNotFound)

		stored, err := env.bugs.Get(ctx, bug.ID)
		require.NoError(t, err)
		assert.Equal(t, models.BugInProgress, stored.Status)
		feed, err := env.notifs.ListForReceiver(ctx, tester)
		require.NoError(t, err)
		require.Len(t, feed, 1)
		assert.Nil(t, feed[0].ActionTaken)
		assert.False(t, feed[0].IsRead)
	})

	t.Run("plain notification has no bug", func(t *testing.T) {
		env := newTestEnv(t)
		tm := env.seedTeam(t, "a")
		n, err := env.notifs.Create(ctx, NotificationDraft{
			Sender: models.PMActor(tm.pm.ID), Receiver: models.EmployeeActor(tm.test.ID), Message: "hi",
		})
		require.NoError(t, err)
		assert.Equal(t, models.NotificationGeneral, n.Type)

		_, _, err = env.notifs.TakeAction(ctx, models.EmployeeActor(tm.test.ID), n.ID, models.ActionAccept, 1)
		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestNotificationFeed(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	tm := env.seedTeam(t, "a")
	pm := models.PMActor(tm.pm.ID)
	dev := models.EmployeeActor(tm.dev.ID)

	for _, msg := range []string{"first", "second", "third"} {
		_, err := env.notifs.Create(ctx, NotificationDraft{Sender: pm, Receiver: dev, Message: msg})
		require.NoError(t, err)
	}
	// Same numeric id, other account kind.
	_, err := env.notifs.Create(ctx, NotificationDraft{Sender: dev, Receiver: models.PMActor(tm.dev.ID), Message: "elsewhere"})
	require.NoError(t, err)

	t.Run("newest first and scoped to the receiver", func(t *testing.T) {
		feed, err := env.notifs.ListForReceiver(ctx, dev)
		require.NoError(t, err)
		require.Len(t, feed, 3)
		assert.Equal(t, "third", feed[0].Message)
		assert.Equal(t, "first", feed[2].Message)
		for _, n := range feed {
			assert.Equal(t, dev, n.Receiver)
		}

		empty, err := env.notifs.ListForReceiver(ctx, models.EmployeeActor(tm.test.ID))
		require.NoError(t, err)
		assert.NotNil(t, empty)
		assert.Empty(t, empty)
	})

	t.Run("mark one read is scoped", func(t *testing.T) {
		feed, err := env.notifs.ListForReceiver(ctx, dev)
		require.NoError(t, err)

		err = env.notifs.MarkOneRead(ctx, models.EmployeeActor(tm.test.ID), feed[0].ID)
		assert.ErrorIs(t, err, ErrNotFound)
		require.NoError(t, env.notifs.MarkOneRead(ctx, dev, feed[0].ID))

		feed, err = env.notifs.ListForReceiver(ctx, dev)
		require.NoError(t, err)
		assert.True(t, feed[0].IsRead)
		assert.False(t, feed[1].IsRead)
	})

	t.Run("mark all read", func(t *testing.T) {
		n, err := env.notifs.MarkAllRead(ctx, dev)
		require.NoError(t, err)
		assert.EqualValues(t, 2, n)

		other, err := env.notifs.ListForReceiver(ctx, models.PMActor(tm.dev.ID))
		require.NoError(t, err)
		require.Len(t, other, 1)
		assert.False(t, other[0].IsRead)
	})

	t.Run("unknown actor kind is rejected", func(t *testing.T) {
		_, err := env.notifs.Create(ctx, NotificationDraft{Sender: pm, Receiver: models.Actor{Kind: "robot", ID: 1}, Message: "x"})
		assert.Error(t, err)
	})
}

func TestNotifierQueuesTelegram(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	tm := env.seedTeam(t, "a")
	chat := int64(4242)
	_, err := env.identity.UpdateEmployeeProfile(ctx, tm.dev.ID, UpdateProfileInput{TelegramChatID: &chat}, nil)
	require.NoError(t, err)

	trig := &countingTrigger{}
	svc := NewNotificationService(env.store, NewNotifier(env.pub, true, trig))
	before := len(env.store.OutboxMessages())

	_, err = svc.Create(ctx, NotificationDraft{Sender: models.PMActor(tm.pm.ID), Receiver: models.EmployeeActor(tm.dev.ID), Message: "ping"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, NotificationDraft{Sender: models.PMActor(tm.pm.ID), Receiver: models.EmployeeActor(tm.test.ID), Message: "no chat"})
	require.NoError(t, err)

	msgs := env.store.OutboxMessages()
	require.Len(t, msgs, before+1)
	last := msgs[len(msgs)-1]
	assert.Equal(t, models.OutboxTelegram, last.Kind)
	assert.JSONEq(t, `{"chat_id":4242,"text":"[General] ping"}`, string(last.Payload))
	assert.Equal(t, 2, trig.n)
}
