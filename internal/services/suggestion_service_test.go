package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskflow/internal/models"
)

func TestSuggestions(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	tm := env.seedTeam(t, "a")
	other := env.seedTeam(t, "b")
	project := env.newProject(t, tm, 2)
	task := env.newTask(t, tm, project.ID, "T")
	foreign := env.newTask(t, other, env.newProject(t, other, 1).ID, "F")

	var sug *models.Suggestion
	t.Run("addressed to the project's PM without notifying", func(t *testing.T) {
		var err error
		sug, err = env.sugs.Create(ctx, tm.test.ID, CreateSuggestionInput{
			TaskID: task.ID, ProjectID: project.ID, Title: "Cache", Description: "memoize lookups",
		})
		require.NoError(t, err)
		assert.Equal(t, tm.pm.ID, sug.PMID)
		assert.Equal(t, tm.test.ID, sug.AuthorID)
		assert.Equal(t, models.SuggestionPending, sug.Status)
		assert.Zero(t, env.pub.count())
	})

	t.Run("task must belong to the project", func(t *testing.T) {
		_, err := env.sugs.Create(ctx, tm.test.ID, CreateSuggestionInput{
			TaskID: foreign.ID, ProjectID: project.ID, Title: "x", Description: "y",
		})
		assert.ErrorIs(t, err, ErrValidation)
		_, err = env.sugs.Create(ctx, tm.test.ID, CreateSuggestionInput{TaskID: task.ID, ProjectID: 999, Title: "x", Description: "y"})
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = env.sugs.Create(ctx, tm.test.ID, CreateSuggestionInput{TaskID: task.ID, ProjectID: project.ID, Description: "y"})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("only the addressed PM resolves", func(t *testing.T) {
		_, err := env.sugs.Resolve(ctx, other.pm.ID, sug.ID, models.SuggestionValid)
		assert.ErrorIs(t, err, ErrForbidden)
		_, err = env.sugs.Resolve(ctx, tm.pm.ID, sug.ID, "Great")
		assert.ErrorIs(t, err, ErrValidation)

		got, err := env.sugs.Resolve(ctx, tm.pm.ID, sug.ID, models.SuggestionValid)
		require.NoError(t, err)
		assert.Equal(t, models.SuggestionValid, got.Status)

		feed, err := env.notifs.ListForReceiver(ctx, models.EmployeeActor(tm.test.ID))
		require.NoError(t, err)
		require.Len(t, feed, 1)
		assert.Equal(t, models.NotificationSuggestionReview, feed[0].Type)
		assert.Equal(t, models.PMActor(tm.pm.ID), feed[0].Sender)
	})

	t.Run("listing", func(t *testing.T) {
		mine, err := env.sugs.ListForPM(ctx, tm.pm.ID)
		require.NoError(t, err)
		assert.Len(t, mine, 1)
		none, err := env.sugs.ListForPM(ctx, other.pm.ID)
		require.NoError(t, err)
		assert.NotNil(t, none)
		assert.Empty(t, none)
		all, err := env.sugs.ListAll(ctx, tm.pm.ID, nil)
		require.NoError(t, err)
		assert.Len(t, all, 1)
		foreignPM, err := env.sugs.ListAll(ctx, other.pm.ID, nil)
		require.NoError(t, err)
		assert.Empty(t, foreignPM)
		elsewhere := foreign.ProjectID
		filtered, err := env.sugs.ListAll(ctx, tm.pm.ID, &elsewhere)
		require.NoError(t, err)
		assert.Empty(t, filtered)
	})
}
