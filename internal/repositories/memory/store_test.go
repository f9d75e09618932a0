package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskflow/internal/models"
	"taskflow/internal/repositories"
)

func TestWithTxRollsBack(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	pm := &models.PM{PMCode: "PM-1", Email: "pm@example.com"}
	require.NoError(t, store.PMs().Create(ctx, pm))

	boom := errors.New("boom")
	err := store.WithTx(ctx, func(tx repositories.Store) error {
		p := &models.Project{Name: "p", CreatedBy: pm.ID, Status: models.ProjectPending}
		require.NoError(t, tx.Projects().Create(ctx, p))
		return boom
	})
	require.ErrorIs(t, err, boom)

	projects, err := store.Projects().ListByCreator(ctx, pm.ID)
	require.NoError(t, err)
	assert.Empty(t, projects)

	err = store.WithTx(ctx, func(tx repositories.Store) error {
		return tx.Projects().Create(ctx, &models.Project{Name: "q", CreatedBy: pm.ID, Status: models.ProjectPending})
	})
	require.NoError(t, err)
	projects, err = store.Projects().ListByCreator(ctx, pm.ID)
	require.NoError(t, err)
	assert.Len(t, projects, 1)
}

func TestWriteOutsideTxSurvivesRollback(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	pm := &models.PM{PMCode: "PM-1", Email: "pm@example.com"}
	require.NoError(t, store.PMs().Create(ctx, pm))

	inTx := make(chan struct{})
	release := make(chan struct{})
	txDone := make(chan error, 1)
	go func() {
		txDone <- store.WithTx(ctx, func(tx repositories.Store) error {
			assert.NoError(t, tx.Projects().Create(ctx, &models.Project{Name: "draft", CreatedBy: pm.ID, Status: models.ProjectPending}))
			close(inTx)
			<-release
			return errors.New("boom")
		})
	}()
	<-inTx

	outside := &models.Project{Name: "live", CreatedBy: pm.ID, Status: models.ProjectPending}
	written := make(chan error, 1)
	go func() { written <- store.Projects().Create(ctx, outside) }()

	select {
	case <-written:
		t.Fatal("write outside the transaction ran before it finished")
	case <-time.After(20 * time.Millisecond):
	}
	close(release)
	require.Error(t, <-txDone)
	require.NoError(t, <-written)

	got, err := store.Projects().GetByID(ctx, outside.ID)
	require.NoError(t, err)
	assert.Equal(t, "live", got.Name)
	projects, err := store.Projects().ListByCreator(ctx, pm.ID)
	require.NoError(t, err)
	assert.Len(t, projects, 1)
}

func TestWithTxCancelledContextDiscardsWrites(t *testing.T) {
	store := NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	pm := &models.PM{PMCode: "PM-1", Email: "pm@example.com"}
	require.NoError(t, store.PMs().Create(ctx, pm))

	err := store.WithTx(ctx, func(tx repositories.Store) error {
		cancel()
		return tx.Projects().Create(ctx, &models.Project{Name: "p", CreatedBy: pm.ID, Status: models.ProjectPending})
	})
	assert.ErrorIs(t, err, context.Canceled)

	projects, err := store.Projects().ListByCreator(context.Background(), pm.ID)
	require.NoError(t, err)
	assert.Empty(t, projects)
}

func TestUniqueConstraints(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	require.NoError(t, store.PMs().Create(ctx, &models.PM{PMCode: "A", Email: "x@example.com"}))
	err := store.PMs().Create(ctx, &models.PM{PMCode: "B", Email: "X@Example.com"})
	assert.ErrorIs(t, err, repositories.ErrUniqueViolation)

	dev := &models.Employee{EmpID: "E1", Role: models.RoleDeveloper, Email: "d@example.com"}
	require.NoError(t, store.Employees().Create(ctx, dev))
	// Same emp id under a different role is a different account.
	require.NoError(t, store.Employees().Create(ctx, &models.Employee{EmpID: "E1", Role: models.RoleTester, Email: "t@example.com"}))
	err = store.Employees().Create(ctx, &models.Employee{EmpID: "E1", Role: models.RoleDeveloper, Email: "z@example.com"})
	assert.ErrorIs(t, err, repositories.ErrUniqueViolation)
}

func TestNotificationFeedOrder(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := base
	store.SetClock(func() time.Time { return now })

	receiver := models.PMActor(1)
	for i := 0; i < 3; i++ {
		require.NoError(t, store.Notifications().Create(ctx, &models.Notification{
			Sender: models.EmployeeActor(1), Receiver: receiver, Type: models.NotificationGeneral, Message: "m",
		}))
		if i == 0 {
			now = base.Add(time.Minute)
		}
	}
	// Same numeric id, other account kind.
	require.NoError(t, store.Notifications().Create(ctx, &models.Notification{
		Sender: models.PMActor(1), Receiver: models.EmployeeActor(1), Message: "other",
	}))

	feed, err := store.Notifications().ListForReceiver(ctx, receiver)
	require.NoError(t, err)
	require.Len(t, feed, 3)
	assert.Equal(t, []int64{3, 2, 1}, []int64{feed[0].ID, feed[1].ID, feed[2].ID})

	n, err := store.Notifications().MarkAllRead(ctx, receiver)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	other, err := store.Notifications().ListForReceiver(ctx, models.EmployeeActor(1))
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.False(t, other[0].IsRead)
}

func TestOutboxClaimLease(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	now := time.Now()

	_, err := store.Outbox().Enqueue(ctx, models.OutboxEmail, models.EmailPayload{To: "a@example.com"})
	require.NoError(t, err)

	claimed, err := store.Outbox().ClaimDue(ctx, now.Add(time.Second), time.Minute, 3, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	again, err := store.Outbox().ClaimDue(ctx, now.Add(2*time.Second), time.Minute, 3, 10)
	require.NoError(t, err)
	assert.Empty(t, again, "leased message must not be claimed twice")

	require.NoError(t, store.Outbox().MarkFailed(ctx, claimed[0].ID, "smtp down", now))
	msgs := store.OutboxMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, 1, msgs[0].Attempts)
	require.NotNil(t, msgs[0].LastError)
}
