package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"taskflow/internal/metrics"
	"taskflow/internal/models"
	"taskflow/internal/repositories"
	"taskflow/internal/storage"
)

type ReportBugInput struct {
	TaskID      int64
	Title       string
	Module      string
	Severity    models.BugSeverity
	Description string
	File        *storage.Upload
}

type BugService interface {
	Report(ctx context.Context, testerID int64, in ReportBugInput) (*models.Bug, error)
	// UpdateStatus is open to the bug's developer and reporter only, and
	// always leaves the reporter an actionable notification.
	UpdateStatus(ctx context.Context, callerID, bugID int64, status models.BugStatus) (*models.Bug, *models.Notification, error)
	Get(ctx context.Context, id int64) (*models.Bug, error)
	// ListAll returns bugs across the PM's projects, optionally one project.
	ListAll(ctx context.Context, pmID int64, projectID *int64) ([]models.Bug, error)
	ListAssigned(ctx context.Context, developerID int64) ([]models.Bug, error)
	ListReported(ctx context.Context, testerID int64) ([]models.Bug, error)
}

type bugService struct {
	store    repositories.Store
	files    storage.Store
	notifier *Notifier
}

func NewBugService(store repositories.Store, files storage.Store, n *Notifier) BugService {
	return &bugService{store: store, files: files, notifier: n}
}

func (s *bugService) Report(ctx context.Context, testerID int64, in ReportBugInput) (*models.Bug, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	if in.Title == "" || in.Description == "" {
		return nil, validation("bug_title and description are required")
	}
	if in.Severity == "" {
		in.Severity = models.SeverityMedium
	}
	if !in.Severity.Valid() {
		return nil, validation("severity must be Low, Medium, High or Critical")
	}

	task, err := s.store.Tasks().GetByID(ctx, in.TaskID)
	if err != nil {
		return nil, fromRepo(err, "task")
	}

	bug := &models.Bug{
		TaskID:      task.ID,
		ProjectID:   task.ProjectID,
		Title:       in.Title,
		Module:      strings.TrimSpace(in.Module),
		Severity:    in.Severity,
		Description: in.Description,
		ReportedBy:  testerID,
		// Snapshot: later reassignment of the task does not move the bug.
		DeveloperID: task.DeveloperID,
		Status:      models.BugPending,
	}
	if in.File != nil {
		url, err := s.files.Put(ctx, "bugs", in.File)
		if err != nil {
			return nil, fmt.Errorf("store bug file: %w", err)
		}
		bug.FileURL = url
	}
	if err := s.store.Bugs().Create(ctx, bug); err != nil {
		logrus.Errorf("[bug][report][err] %v", err)
		return nil, fromRepo(err, "bug")
	}
	return bug, nil
}

func (s *bugService) UpdateStatus(ctx context.Context, callerID, bugID int64, status models.BugStatus) (*models.Bug, *models.Notification, error) {
	if !status.Valid() {
		return nil, nil, validation("status must be Pending, InProgress or Completed")
	}
	var (
		bug   *models.Bug
		notif models.Notification
	)
	err := s.store.WithTx(ctx, func(tx repositories.Store) error {
		var err error
		bug, err = tx.Bugs().GetByID(ctx, bugID)
		if err != nil {
			return fromRepo(err, "bug")
		}
		if callerID != bug.DeveloperID && callerID != bug.ReportedBy {
			return fmt.Errorf("%w: only the bug's developer or reporter may change its status", ErrForbidden)
		}
		bug.Status = status
		if err := tx.Bugs().UpdateStatus(ctx, bug); err != nil {
			return fromRepo(err, "bug")
		}
		id := bug.ID
		notif, err = s.notifier.append(ctx, tx, NotificationDraft{
			Sender:   models.EmployeeActor(callerID),
			Receiver: models.EmployeeActor(bug.ReportedBy),
			Type:     models.NotificationBug,
			Message:  fmt.Sprintf("Bug %q is now %s. Accept to close it or reject to reopen it.", bug.Title, status),
			Actions:  []models.NotificationAction{models.ActionAccept, models.ActionReject},
			BugID:    &id,
		})
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	metrics.WorkflowTransitions.WithLabelValues("bug", string(status)).Inc()
	s.notifier.committed(notif)
	return bug, &notif, nil
}

func (s *bugService) Get(ctx context.Context, id int64) (*models.Bug, error) {
	b, err := s.store.Bugs().GetByID(ctx, id)
	if err != nil {
		return nil, fromRepo(err, "bug")
	}
	return b, nil
}

func (s *bugService) ListAll(ctx context.Context, pmID int64, projectID *int64) ([]models.Bug, error) {
	return nonNil(s.store.Bugs().List(ctx, models.BugFilter{ProjectID: projectID, ProjectOwner: &pmID}))
}

func (s *bugService) ListAssigned(ctx context.Context, developerID int64) ([]models.Bug, error) {
	return nonNil(s.store.Bugs().List(ctx, models.BugFilter{DeveloperID: &developerID}))
}

func (s *bugService) ListReported(ctx context.Context, testerID int64) ([]models.Bug, error) {
	return nonNil(s.store.Bugs().List(ctx, models.BugFilter{ReportedBy: &testerID}))
}
