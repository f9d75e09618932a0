package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskflow/internal/models"
)

func TestTaskCreate(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	tm := env.seedTeam(t, "a")
	p := env.newProject(t, tm, 2)
	assert.Equal(t, models.ProjectPending, p.Status)

	t.Run("first task moves project to in progress", func(t *testing.T) {
		task := env.newTask(t, tm, p.ID, "Login page")
		assert.Equal(t, models.TaskPending, task.Status)
		assert.Equal(t, models.SubmissionPending, task.SubmissionStatus)
		assert.Equal(t, "Apollo", task.ProjectName)

		got, err := env.projects.Get(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ProjectInProgress, got.Status)
		assert.Equal(t, 1, got.AssignedTasks)
	})

	t.Run("second task leaves status alone", func(t *testing.T) {
		env.newTask(t, tm, p.ID, "Signup page")
		got, err := env.projects.Get(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ProjectInProgress, got.Status)
		assert.Equal(t, 2, got.AssignedTasks)
	})

	t.Run("capacity is advisory", func(t *testing.T) {
		env.newTask(t, tm, p.ID, "Over plan")
		got, err := env.projects.Get(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, got.AssignedTasks)
	})

	t.Run("rejects swapped roles", func(t *testing.T) {
		_, err := env.tasks.Create(ctx, tm.pm.ID, CreateTaskInput{
			Title: "x", DeveloperID: tm.test.ID, TesterID: tm.dev.ID, ProjectID: p.ID, DueDate: p.CreatedAt,
		})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("rejects inactive developer", func(t *testing.T) {
		_, err := env.identity.UpdateEmployeeStatus(ctx, tm.pm.ID, tm.dev.ID, models.EmployeeInactive)
		require.NoError(t, err)
		defer env.identity.UpdateEmployeeStatus(ctx, tm.pm.ID, tm.dev.ID, models.EmployeeActive)

		_, err = env.tasks.Create(ctx, tm.pm.ID, CreateTaskInput{
			Title: "x", DeveloperID: tm.dev.ID, TesterID: tm.test.ID, ProjectID: p.ID, DueDate: p.CreatedAt,
		})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("missing project", func(t *testing.T) {
		_, err := env.tasks.Create(ctx, tm.pm.ID, CreateTaskInput{
			Title: "x", DeveloperID: tm.dev.ID, TesterID: tm.test.ID, ProjectID: 999, DueDate: p.CreatedAt,
		})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("stores the document", func(t *testing.T) {
		task, err := env.tasks.Create(ctx, tm.pm.ID, CreateTaskInput{
			Title: "With doc", DeveloperID: tm.dev.ID, TesterID: tm.test.ID, ProjectID: p.ID,
			DueDate: p.CreatedAt, Document: pngUpload("mock.png"),
		})
		require.NoError(t, err)
		require.NotNil(t, task.DocumentURL)
		assert.Equal(t, "/files/tasks/mock.png", *task.DocumentURL)
	})
}

func TestTaskWorkflow(t *testing.T) {
	ctx := context.Background()

	t.Run("submit requires code and the assigned developer", func(t *testing.T) {
		env := newTestEnv(t)
		tm := env.seedTeam(t, "a")
		task := env.newTask(t, tm, env.newProject(t, tm, 1).ID, "T")

		_, err := env.tasks.Submit(ctx, tm.dev.ID, task.ID, "   ")
		assert.ErrorIs(t, err, ErrValidation)

		_, err = env.tasks.Submit(ctx, tm.test.ID, task.ID, "code")
		assert.ErrorIs(t, err, ErrForbidden)

		got, err := env.tasks.Submit(ctx, tm.dev.ID, task.ID, "  func main() {}  ")
		require.NoError(t, err)
		assert.Equal(t, "func main() {}", got.Code)
		assert.Equal(t, models.TaskInProgress, got.Status)
		assert.Equal(t, models.SubmissionPending, got.SubmissionStatus)
	})

	t.Run("send back returns the task to pending with feedback", func(t *testing.T) {
		env := newTestEnv(t)
		tm := env.seedTeam(t, "a")
		task := env.newTask(t, tm, env.newProject(t, tm, 1).ID, "T")

		again, err := env.tasks.SendBack(ctx, tm.test.ID, task.ID, "")
		require.NoError(t, err, "a pending task may be sent back")
		assert.Equal(t, models.TaskPending, again.Status)
		assert.Nil(t, again.TesterFeedback)

		_, err = env.tasks.Submit(ctx, tm.dev.ID, task.ID, "v1")
		require.NoError(t, err)
		got, err := env.tasks.SendBack(ctx, tm.test.ID, task.ID, "fails on empty input")
		require.NoError(t, err)
		assert.Equal(t, models.TaskPending, got.Status)
		require.NotNil(t, got.TesterFeedback)
		assert.Equal(t, "fails on empty input", *got.TesterFeedback)
		assert.Zero(t, env.pub.count())
	})

	t.Run("only modify leaves submitted", func(t *testing.T) {
		env := newTestEnv(t)
		tm := env.seedTeam(t, "a")
		task := env.newTask(t, tm, env.newProject(t, tm, 2).ID, "T")

		_, err := env.tasks.Submit(ctx, tm.dev.ID, task.ID, "v1")
		require.NoError(t, err)
		approved, err := env.tasks.Approve(ctx, tm.test.ID, task.ID, "")
		require.NoError(t, err)
		assert.Equal(t, models.TaskSubmitted, approved.Status)
		require.NotNil(t, approved.TesterFeedback)
		assert.Equal(t, "Approved by tester", *approved.TesterFeedback)

		_, err = env.tasks.Submit(ctx, tm.dev.ID, task.ID, "v2")
		assert.ErrorIs(t, err, ErrConflict)
		_, err = env.tasks.SendBack(ctx, tm.test.ID, task.ID, "")
		assert.ErrorIs(t, err, ErrConflict)
		_, err = env.tasks.Approve(ctx, tm.test.ID, task.ID, "")
		assert.ErrorIs(t, err, ErrConflict)

		still, err := env.tasks.Get(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, models.TaskSubmitted, still.Status)

		modified, err := env.tasks.Modify(ctx, tm.dev.ID, task.ID, "v2")
		require.NoError(t, err)
		assert.Equal(t, models.TaskInProgress, modified.Status)
		assert.Equal(t, models.SubmissionPending, modified.SubmissionStatus)
		assert.Nil(t, modified.TesterFeedback)
		assert.True(t, modified.Status.Valid())

		feed, err := env.notifs.ListForReceiver(ctx, models.EmployeeActor(tm.test.ID))
		require.NoError(t, err)
		require.Len(t, feed, 1)
		assert.Equal(t, models.NotificationTask, feed[0].Type)
		assert.Equal(t, models.EmployeeActor(tm.dev.ID), feed[0].Sender)
	})

	t.Run("approve accepts a pending task", func(t *testing.T) {
		env := newTestEnv(t)
		tm := env.seedTeam(t, "a")
		task := env.newTask(t, tm, env.newProject(t, tm, 1).ID, "T")

		got, err := env.tasks.Approve(ctx, tm.test.ID, task.ID, "")
		require.NoError(t, err)
		assert.Equal(t, models.TaskSubmitted, got.Status)
		assert.Equal(t, models.SubmissionSubmitted, got.SubmissionStatus)
	})

	t.Run("approve notifies each resolvable recipient once", func(t *testing.T) {
		env := newTestEnv(t)
		tm := env.seedTeam(t, "a")
		task := env.newTask(t, tm, env.newProject(t, tm, 3).ID, "T")
		_, err := env.tasks.Submit(ctx, tm.dev.ID, task.ID, "v1")
		require.NoError(t, err)

		_, err = env.tasks.Approve(ctx, tm.test.ID, task.ID, "LGTM")
		require.NoError(t, err)
		assert.Equal(t, 2, env.pub.count())

		pmFeed, err := env.notifs.ListForReceiver(ctx, models.PMActor(tm.pm.ID))
		require.NoError(t, err)
		devFeed, err := env.notifs.ListForReceiver(ctx, models.EmployeeActor(tm.dev.ID))
		require.NoError(t, err)
		assert.Len(t, pmFeed, 1)
		assert.Len(t, devFeed, 1)
	})

	t.Run("stale writer loses", func(t *testing.T) {
		env := newTestEnv(t)
		tm := env.seedTeam(t, "a")
		task := env.newTask(t, tm, env.newProject(t, tm, 1).ID, "T")

		stale, err := env.store.Tasks().GetByID(ctx, task.ID)
		require.NoError(t, err)
		_, err = env.tasks.Submit(ctx, tm.dev.ID, task.ID, "v1")
		require.NoError(t, err)

		stale.Code = "other"
		err = env.store.Tasks().UpdateWorkflow(ctx, stale)
		assert.ErrorIs(t, fromRepo(err, "task"), ErrConflict)
	})

	t.Run("submission projection", func(t *testing.T) {
		env := newTestEnv(t)
		tm := env.seedTeam(t, "a")
		task := env.newTask(t, tm, env.newProject(t, tm, 1).ID, "T")

		sub, err := env.tasks.GetSubmission(ctx, task.ID)
		require.NoError(t, err)
		assert.False(t, sub.Submitted)

		_, err = env.tasks.Submit(ctx, tm.dev.ID, task.ID, "v1")
		require.NoError(t, err)
		sub, err = env.tasks.GetSubmission(ctx, task.ID)
		require.NoError(t, err)
		assert.True(t, sub.Submitted)
		assert.Equal(t, "v1", sub.Code)
		assert.Equal(t, models.TaskInProgress, sub.Status)
	})
}

func TestScenarioProjectCompletes(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	tm := env.seedTeam(t, "a")

	p := env.newProject(t, tm, 1)
	task := env.newTask(t, tm, p.ID, "Only task")

	got, err := env.projects.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProjectInProgress, got.Status)

	_, err = env.tasks.Submit(ctx, tm.dev.ID, task.ID, "x")
	require.NoError(t, err)
	_, err = env.tasks.Approve(ctx, tm.test.ID, task.ID, "ok")
	require.NoError(t, err)

	final, err := env.tasks.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskSubmitted, final.Status)
	assert.Equal(t, models.SubmissionSubmitted, final.SubmissionStatus)

	got, err = env.projects.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProjectCompleted, got.Status)

	pmFeed, err := env.notifs.ListForReceiver(ctx, models.PMActor(tm.pm.ID))
	require.NoError(t, err)
	require.Len(t, pmFeed, 1)
	assert.Equal(t, models.NotificationTask, pmFeed[0].Type)
	devFeed, err := env.notifs.ListForReceiver(ctx, models.EmployeeActor(tm.dev.ID))
	require.NoError(t, err)
	require.Len(t, devFeed, 1)
	assert.Equal(t, models.NotificationTask, devFeed[0].Type)
}

func TestTaskTransitionTable(t *testing.T) {
	statuses := []models.TaskStatus{models.TaskPending, models.TaskInProgress, models.TaskSubmitted}
	for action := range TaskTransitions {
		for _, from := range statuses {
			if from == models.TaskSubmitted && action != TaskModify {
				assert.False(t, canTransition(from, action), "%s from submitted", action)
			}
		}
	}
	assert.False(t, canTransition(models.TaskPending, TaskAction("delete")))
}
