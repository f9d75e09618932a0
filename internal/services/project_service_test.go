package services

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskflow/internal/models"
)

func TestProjectOwnership(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	tm := env.seedTeam(t, "a")
	other := env.seedTeam(t, "b")
	p := env.newProject(t, tm, 3)

	t.Run("create", func(t *testing.T) {
		assert.Equal(t, models.ProjectPending, p.Status)
		assert.Equal(t, tm.pm.ID, p.CreatedBy)
		_, err := env.projects.Create(ctx, tm.pm.ID, CreateProjectInput{Name: " "})
		assert.ErrorIs(t, err, ErrValidation)
		_, err = env.projects.Create(ctx, tm.pm.ID, CreateProjectInput{Name: "x", TotalTasks: -1})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("status is free-form for the owner", func(t *testing.T) {
		_, err := env.projects.UpdateStatus(ctx, other.pm.ID, p.ID, models.ProjectCompleted)
		assert.ErrorIs(t, err, ErrForbidden)
		_, err = env.projects.UpdateStatus(ctx, tm.pm.ID, p.ID, "Archived")
		assert.ErrorIs(t, err, ErrValidation)

		got, err := env.projects.UpdateStatus(ctx, tm.pm.ID, p.ID, models.ProjectCompleted)
		require.NoError(t, err)
		assert.Equal(t, models.ProjectCompleted, got.Status)
		got, err = env.projects.UpdateStatus(ctx, tm.pm.ID, p.ID, models.ProjectPending)
		require.NoError(t, err)
		assert.Equal(t, models.ProjectPending, got.Status)
	})

	t.Run("tasks need the owner", func(t *testing.T) {
		_, err := env.tasks.Create(ctx, other.pm.ID, CreateTaskInput{
			Title: "x", DeveloperID: other.dev.ID, TesterID: other.test.ID, ProjectID: p.ID, DueDate: time.Now(),
		})
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("list is per PM", func(t *testing.T) {
		env.newProject(t, tm, 0)
		mine, err := env.projects.List(ctx, tm.pm.ID)
		require.NoError(t, err)
		assert.Len(t, mine, 2)
		theirs, err := env.projects.List(ctx, other.pm.ID)
		require.NoError(t, err)
		assert.NotNil(t, theirs)
		assert.Empty(t, theirs)
	})
}

func TestProjectReconcile(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	tm := env.seedTeam(t, "a")

	// markSubmitted writes the submission directly, as a concurrent approval
	// that missed its own reconcile would.
	markSubmitted := func(t *testing.T, id int64) {
		task, err := env.store.Tasks().GetByID(ctx, id)
		require.NoError(t, err)
		task.Status = models.TaskInProgress
		task.SubmissionStatus = models.SubmissionSubmitted
		require.NoError(t, env.store.Tasks().UpdateWorkflow(ctx, task))
	}

	t.Run("empty project never completes", func(t *testing.T) {
		p := env.newProject(t, tm, 0)
		done, err := env.projects.Reconcile(ctx, p.ID)
		require.NoError(t, err)
		assert.False(t, done)
	})

	t.Run("fewer tasks than planned", func(t *testing.T) {
		p := env.newProject(t, tm, 2)
		markSubmitted(t, env.newTask(t, tm, p.ID, "only").ID)
		done, err := env.projects.Reconcile(ctx, p.ID)
		require.NoError(t, err)
		assert.False(t, done)
	})

	t.Run("sweep completes in-progress projects", func(t *testing.T) {
		p := env.newProject(t, tm, 1)
		markSubmitted(t, env.newTask(t, tm, p.ID, "t").ID)

		n, err := env.projects.ReconcileInProgress(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		got, err := env.projects.Get(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ProjectCompleted, got.Status)

		n, err = env.projects.ReconcileInProgress(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("missing project", func(t *testing.T) {
		_, err := env.projects.Reconcile(ctx, 999)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestProjectReport(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	tm := env.seedTeam(t, "a")
	other := env.seedTeam(t, "b")
	p := env.newProject(t, tm, 2)
	task := env.newTask(t, tm, p.ID, "Login page")
	_, err := env.bugs.Report(ctx, tm.test.ID, ReportBugInput{TaskID: task.ID, Title: "Crash", Description: "d"})
	require.NoError(t, err)

	doc, err := env.projects.Report(ctx, tm.pm.ID, p.ID)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(doc, []byte("%PDF-")))

	_, err = env.projects.Report(ctx, other.pm.ID, p.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}
