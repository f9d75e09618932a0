package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskflow/internal/models"
)

func TestBugReport(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	tm := env.seedTeam(t, "a")
	task := env.newTask(t, tm, env.newProject(t, tm, 1).ID, "T")

	t.Run("defaults and snapshots", func(t *testing.T) {
		bug, err := env.bugs.Report(ctx, tm.test.ID, ReportBugInput{TaskID: task.ID, Title: "Crash", Description: "on save"})
		require.NoError(t, err)
		assert.Equal(t, models.SeverityMedium, bug.Severity)
		assert.Equal(t, models.BugPending, bug.Status)
		assert.Equal(t, tm.dev.ID, bug.DeveloperID)
		assert.Equal(t, task.ProjectID, bug.ProjectID)
		assert.Equal(t, tm.test.ID, bug.ReportedBy)
	})

	t.Run("developer is a snapshot at report time", func(t *testing.T) {
		bug, err := env.bugs.Report(ctx, tm.test.ID, ReportBugInput{TaskID: task.ID, Title: "Old", Description: "d"})
		require.NoError(t, err)

		other, err := env.identity.CreateEmployee(ctx, tm.pm.ID, CreateEmployeeInput{
			EmpID: "D2", Password: "devpass", Role: models.RoleDeveloper, Email: "dev2@example.com",
		})
		require.NoError(t, err)
		_, err = env.tasks.Reassign(ctx, tm.pm.ID, task.ID, other.ID, 0)
		require.NoError(t, err)

		got, err := env.bugs.Get(ctx, bug.ID)
		require.NoError(t, err)
		assert.Equal(t, tm.dev.ID, got.DeveloperID)

		fresh, err := env.bugs.Report(ctx, tm.test.ID, ReportBugInput{TaskID: task.ID, Title: "New", Description: "d"})
		require.NoError(t, err)
		assert.Equal(t, other.ID, fresh.DeveloperID)
	})

	t.Run("validation", func(t *testing.T) {
		_, err := env.bugs.Report(ctx, tm.test.ID, ReportBugInput{TaskID: task.ID, Title: "x", Description: "y", Severity: "Blocker"})
		assert.ErrorIs(t, err, ErrValidation)
		_, err = env.bugs.Report(ctx, tm.test.ID, ReportBugInput{TaskID: task.ID, Description: "y"})
		assert.ErrorIs(t, err, ErrValidation)
		_, err = env.bugs.Report(ctx, tm.test.ID, ReportBugInput{TaskID: 999, Title: "x", Description: "y"})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("attachment", func(t *testing.T) {
		bug, err := env.bugs.Report(ctx, tm.test.ID, ReportBugInput{TaskID: task.ID, Title: "x", Description: "y", File: pngUpload("shot.png")})
		require.NoError(t, err)
		assert.Equal(t, "/files/bugs/shot.png", bug.FileURL)
	})
}

func TestBugListScopedToProjectOwner(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	tm := env.seedTeam(t, "a")
	other := env.seedTeam(t, "b")
	first := env.newTask(t, tm, env.newProject(t, tm, 1).ID, "T1")
	second := env.newTask(t, tm, env.newProject(t, tm, 1).ID, "T2")
	foreign := env.newTask(t, other, env.newProject(t, other, 1).ID, "F")

	for _, task := range []*models.Task{first, second} {
		_, err := env.bugs.Report(ctx, tm.test.ID, ReportBugInput{TaskID: task.ID, Title: "x", Description: "y"})
		require.NoError(t, err)
	}
	_, err := env.bugs.Report(ctx, other.test.ID, ReportBugInput{TaskID: foreign.ID, Title: "x", Description: "y"})
	require.NoError(t, err)

	mine, err := env.bugs.ListAll(ctx, tm.pm.ID, nil)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	theirs, err := env.bugs.ListAll(ctx, other.pm.ID, nil)
	require.NoError(t, err)
	require.Len(t, theirs, 1)
	assert.Equal(t, foreign.ProjectID, theirs[0].ProjectID)

	projectID := second.ProjectID
	one, err := env.bugs.ListAll(ctx, tm.pm.ID, &projectID)
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, second.ID, one[0].TaskID)

	projectID = foreign.ProjectID
	none, err := env.bugs.ListAll(ctx, tm.pm.ID, &projectID)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestBugStatusUpdate(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	tm := env.seedTeam(t, "a")
	task := env.newTask(t, tm, env.newProject(t, tm, 1).ID, "T")
	bug, err := env.bugs.Report(ctx, tm.test.ID, ReportBugInput{TaskID: task.ID, Title: "Crash", Description: "d"})
	require.NoError(t, err)

	t.Run("stranger is forbidden and nothing changes", func(t *testing.T) {
		stranger, err := env.identity.CreateEmployee(ctx, tm.pm.ID, CreateEmployeeInput{
			EmpID: "S", Password: "strange", Role: models.RoleDeveloper, Email: "s@example.com",
		})
		require.NoError(t, err)
		_, _, err = env.bugs.UpdateStatus(ctx, stranger.ID, bug.ID, models.BugInProgress)
		assert.ErrorIs(t, err, ErrForbidden)

		got, err := env.bugs.Get(ctx, bug.ID)
		require.NoError(t, err)
		assert.Equal(t, models.BugPending, got.Status)
		assert.Zero(t, env.pub.count())
	})

	t.Run("invalid status", func(t *testing.T) {
		_, _, err := env.bugs.UpdateStatus(ctx, tm.dev.ID, bug.ID, "Done")
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("developer update notifies reporter once", func(t *testing.T) {
		updated, notif, err := env.bugs.UpdateStatus(ctx, tm.dev.ID, bug.ID, models.BugInProgress)
		require.NoError(t, err)
		assert.Equal(t, models.BugInProgress, updated.Status)
		assert.Equal(t, models.EmployeeActor(tm.test.ID), notif.Receiver)
		assert.Equal(t, models.NotificationBug, notif.Type)
		assert.Equal(t, []models.NotificationAction{models.ActionAccept, models.ActionReject}, notif.Actions)
		require.NotNil(t, notif.BugID)
		assert.Equal(t, bug.ID, *notif.BugID)

		feed, err := env.notifs.ListForReceiver(ctx, models.EmployeeActor(tm.test.ID))
		require.NoError(t, err)
		assert.Len(t, feed, 1)
		assert.Equal(t, 1, env.pub.count())
	})
}

func TestScenarioBugAccepted(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	tm := env.seedTeam(t, "a")
	task := env.newTask(t, tm, env.newProject(t, tm, 1).ID, "T")

	bug, err := env.bugs.Report(ctx, tm.test.ID, ReportBugInput{TaskID: task.ID, Title: "Crash", Description: "d", Severity: models.SeverityHigh})
	require.NoError(t, err)
	_, _, err = env.bugs.UpdateStatus(ctx, tm.dev.ID, bug.ID, models.BugInProgress)
	require.NoError(t, err)

	feed, err := env.notifs.ListForReceiver(ctx, models.EmployeeActor(tm.test.ID))
	require.NoError(t, err)
	require.Len(t, feed, 1)
	n := feed[0]
	assert.Equal(t, []models.NotificationAction{models.ActionAccept, models.ActionReject}, n.Actions)
	require.NotNil(t, n.BugID)
	assert.Equal(t, bug.ID, *n.BugID)

	taken, got, err := env.notifs.TakeAction(ctx, models.EmployeeActor(tm.test.ID), n.ID, models.ActionAccept, bug.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BugCompleted, got.Status)
	assert.True(t, taken.IsRead)
	require.NotNil(t, taken.ActionTaken)
	assert.Equal(t, models.ActionAccept, *taken.ActionTaken)
	assert.Empty(t, taken.Actions)

	stored, err := env.bugs.Get(ctx, bug.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BugCompleted, stored.Status)
}
