package services

import (
	"context"
	"fmt"
	"strings"

	"taskflow/internal/models"
	"taskflow/internal/repositories"
)

type CreateSuggestionInput struct {
	TaskID      int64
	ProjectID   int64
	Title       string
	Description string
}

type SuggestionService interface {
	Create(ctx context.Context, authorID int64, in CreateSuggestionInput) (*models.Suggestion, error)
	Resolve(ctx context.Context, pmID, id int64, status models.SuggestionStatus) (*models.Suggestion, error)
	ListForPM(ctx context.Context, pmID int64) ([]models.Suggestion, error)
	// ListAll returns the PM's suggestions, optionally for one project.
	ListAll(ctx context.Context, pmID int64, projectID *int64) ([]models.Suggestion, error)
}

type suggestionService struct {
	store    repositories.Store
	notifier *Notifier
}

func NewSuggestionService(store repositories.Store, n *Notifier) SuggestionService {
	return &suggestionService{store: store, notifier: n}
}

func (s *suggestionService) Create(ctx context.Context, authorID int64, in CreateSuggestionInput) (*models.Suggestion, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	if in.Title == "" || in.Description == "" {
		return nil, validation("title and description are required")
	}
	project, err := s.store.Projects().GetByID(ctx, in.ProjectID)
	if err != nil {
		return nil, fromRepo(err, "project")
	}
	task, err := s.store.Tasks().GetByID(ctx, in.TaskID)
	if err != nil {
		return nil, fromRepo(err, "task")
	}
	if task.ProjectID != project.ID {
		return nil, validation("task %d is not part of project %d", task.ID, project.ID)
	}

	sug := &models.Suggestion{
		TaskID:      task.ID,
		ProjectID:   project.ID,
		PMID:        project.CreatedBy,
		AuthorID:    authorID,
		Title:       in.Title,
		Description: in.Description,
		Status:      models.SuggestionPending,
	}
	if err := s.store.Suggestions().Create(ctx, sug); err != nil {
		return nil, fromRepo(err, "suggestion")
	}
	return sug, nil
}

func (s *suggestionService) Resolve(ctx context.Context, pmID, id int64, status models.SuggestionStatus) (*models.Suggestion, error) {
	if !status.Valid() {
		return nil, validation("status must be Valid, Invalid or Pending")
	}
	var (
		sug   *models.Suggestion
		notif models.Notification
	)
	err := s.store.WithTx(ctx, func(tx repositories.Store) error {
		var err error
		sug, err = tx.Suggestions().GetByID(ctx, id)
		if err != nil {
			return fromRepo(err, "suggestion")
		}
		if sug.PMID != pmID {
			return fmt.Errorf("%w: suggestion %d is addressed to another PM", ErrForbidden, id)
		}
		sug.Status = status
		if err := tx.Suggestions().UpdateStatus(ctx, sug); err != nil {
			return fromRepo(err, "suggestion")
		}
		notif, err = s.notifier.append(ctx, tx, NotificationDraft{
			Sender:   models.PMActor(pmID),
			Receiver: models.EmployeeActor(sug.AuthorID),
			Type:     models.NotificationSuggestionReview,
			Message:  fmt.Sprintf("Your suggestion %q was reviewed: %s.", sug.Title, status),
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.notifier.committed(notif)
	return sug, nil
}

func (s *suggestionService) ListForPM(ctx context.Context, pmID int64) ([]models.Suggestion, error) {
	return nonNil(s.store.Suggestions().List(ctx, models.SuggestionFilter{PMID: &pmID}))
}

func (s *suggestionService) ListAll(ctx context.Context, pmID int64, projectID *int64) ([]models.Suggestion, error) {
	return nonNil(s.store.Suggestions().List(ctx, models.SuggestionFilter{PMID: &pmID, ProjectID: projectID}))
}
