package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"taskflow/internal/metrics"
	"taskflow/internal/models"
	"taskflow/internal/repositories"
	"taskflow/internal/storage"
)

type CreateTaskInput struct {
	Title       string
	Description string
	DeveloperID int64
	TesterID    int64
	ProjectID   int64
	DueDate     time.Time
	Document    *storage.Upload
}

// TaskService defines the interface for task-related business logic.
type TaskService interface {
	Create(ctx context.Context, pmID int64, in CreateTaskInput) (*models.Task, error)
	Get(ctx context.Context, id int64) (*models.Task, error)
	ListAssigned(ctx context.Context, employeeID int64) ([]models.Task, error)
	ListByProject(ctx context.Context, projectID int64) ([]models.Task, error)
	GetSubmission(ctx context.Context, taskID int64) (*models.Submission, error)

	Submit(ctx context.Context, developerID, taskID int64, code string) (*models.Task, error)
	SendBack(ctx context.Context, testerID, taskID int64, feedback string) (*models.Task, error)
	Approve(ctx context.Context, testerID, taskID int64, report string) (*models.Task, error)
	Modify(ctx context.Context, developerID, taskID int64, code string) (*models.Task, error)
	Reassign(ctx context.Context, pmID, taskID, developerID, testerID int64) (*models.Task, error)
}

type taskService struct {
	store    repositories.Store
	files    storage.Store
	notifier *Notifier
}

// NewTaskService creates a new instance of TaskService.
func NewTaskService(store repositories.Store, files storage.Store, n *Notifier) TaskService {
	return &taskService{store: store, files: files, notifier: n}
}

// activeEmployee loads an assignee and checks it can take the role.
func activeEmployee(ctx context.Context, q repositories.Store, id int64, role models.EmployeeRole) (*models.Employee, error) {
	e, err := q.Employees().GetByID(ctx, id)
	if err != nil {
		return nil, fromRepo(err, strings.ToLower(string(role)))
	}
	if e.Role != role {
		return nil, validation("employee %d is a %s, not a %s", id, e.Role, role)
	}
	if e.Status != models.EmployeeActive {
		return nil, validation("%s %d is inactive", strings.ToLower(string(role)), id)
	}
	return e, nil
}

func (s *taskService) Create(ctx context.Context, pmID int64, in CreateTaskInput) (*models.Task, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return nil, validation("title is required")
	}
	if in.DueDate.IsZero() {
		return nil, validation("dueDate is required")
	}
	if in.DeveloperID <= 0 || in.TesterID <= 0 || in.ProjectID <= 0 {
		return nil, validation("developerId, testerId and projectId are required")
	}

	project, err := s.store.Projects().GetByID(ctx, in.ProjectID)
	if err != nil {
		return nil, fromRepo(err, "project")
	}
	if project.CreatedBy != pmID {
		return nil, fmt.Errorf("%w: project %d belongs to another PM", ErrForbidden, project.ID)
	}
	if _, err := activeEmployee(ctx, s.store, in.DeveloperID, models.RoleDeveloper); err != nil {
		return nil, err
	}
	if _, err := activeEmployee(ctx, s.store, in.TesterID, models.RoleTester); err != nil {
		return nil, err
	}

	task := &models.Task{
		Title:            in.Title,
		Description:      strings.TrimSpace(in.Description),
		DeveloperID:      in.DeveloperID,
		TesterID:         in.TesterID,
		ProjectID:        in.ProjectID,
		DueDate:          in.DueDate,
		Status:           models.TaskPending,
		CreatedBy:        pmID,
		SubmissionStatus: models.SubmissionPending,
	}
	if in.Document != nil {
		url, err := s.files.Put(ctx, "tasks", in.Document)
		if err != nil {
			return nil, fmt.Errorf("store task document: %w", err)
		}
		task.DocumentURL = &url
	}

	err = s.store.WithTx(ctx, func(tx repositories.Store) error {
		if err := tx.Tasks().Create(ctx, task); err != nil {
			return fromRepo(err, "task")
		}
		p, err := tx.Projects().GetByID(ctx, task.ProjectID)
		if err != nil {
			return fromRepo(err, "project")
		}
		if p.Status == models.ProjectPending {
			if err := tx.Projects().UpdateStatus(ctx, p.ID, models.ProjectInProgress); err != nil {
				return fromRepo(err, "project")
			}
		}
		if p.TotalTasks > 0 && p.AssignedTasks > p.TotalTasks {
			logrus.Warnf("[task][create] project %d now has %d tasks, planned %d", p.ID, p.AssignedTasks, p.TotalTasks)
		}
		return nil
	})
	if err != nil {
		logrus.Errorf("[task][create][err] %v", err)
		return nil, err
	}
	return s.Get(ctx, task.ID)
}

func (s *taskService) Get(ctx context.Context, id int64) (*models.Task, error) {
	t, err := s.store.Tasks().GetByID(ctx, id)
	if err != nil {
		return nil, fromRepo(err, "task")
	}
	return t, nil
}

func (s *taskService) ListAssigned(ctx context.Context, employeeID int64) ([]models.Task, error) {
	return nonNil(s.store.Tasks().List(ctx, models.TaskFilter{Assignee: &employeeID}))
}

func (s *taskService) ListByProject(ctx context.Context, projectID int64) ([]models.Task, error) {
	if _, err := s.store.Projects().GetByID(ctx, projectID); err != nil {
		return nil, fromRepo(err, "project")
	}
	return nonNil(s.store.Tasks().List(ctx, models.TaskFilter{ProjectID: &projectID}))
}

func nonNil[T any](items []T, err error) ([]T, error) {
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

// GetSubmission projects the code fields of the task row.
func (s *taskService) GetSubmission(ctx context.Context, taskID int64) (*models.Submission, error) {
	t, err := s.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if t.Code == "" {
		return &models.Submission{Submitted: false}, nil
	}
	return &models.Submission{
		Submitted:        true,
		Code:             t.Code,
		Status:           t.Status,
		SubmissionStatus: t.SubmissionStatus,
		Feedback:         t.TesterFeedback,
	}, nil
}

func (s *taskService) Submit(ctx context.Context, developerID, taskID int64, code string) (*models.Task, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, validation("code is required")
	}
	return s.transition(ctx, developerID, taskID, TaskSubmit, code)
}

func (s *taskService) SendBack(ctx context.Context, testerID, taskID int64, feedback string) (*models.Task, error) {
	return s.transition(ctx, testerID, taskID, TaskSendBack, strings.TrimSpace(feedback))
}

func (s *taskService) Approve(ctx context.Context, testerID, taskID int64, report string) (*models.Task, error) {
	return s.transition(ctx, testerID, taskID, TaskApprove, strings.TrimSpace(report))
}

func (s *taskService) Modify(ctx context.Context, developerID, taskID int64, code string) (*models.Task, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, validation("code is required")
	}
	return s.transition(ctx, developerID, taskID, TaskModify, code)
}

func (s *taskService) transition(ctx context.Context, callerID, taskID int64, action TaskAction, text string) (*models.Task, error) {
	var (
		task    *models.Task
		created []models.Notification
	)
	err := s.store.WithTx(ctx, func(tx repositories.Store) error {
		var err error
		task, err = tx.Tasks().GetByID(ctx, taskID)
		if err != nil {
			return fromRepo(err, "task")
		}
		assignee := task.DeveloperID
		if taskActor[action] == models.RoleTester {
			assignee = task.TesterID
		}
		if assignee != callerID {
			return fmt.Errorf("%w: only the task's %s may %s it", ErrForbidden, strings.ToLower(string(taskActor[action])), action)
		}
		if !canTransition(task.Status, action) {
			return fmt.Errorf("%w: cannot %s a task that is %s", ErrConflict, action, task.Status)
		}

		applyTaskAction(task, action, text)
		if err := tx.Tasks().UpdateWorkflow(ctx, task); err != nil {
			return fromRepo(err, "task")
		}

		switch action {
		case TaskApprove:
			created, err = s.notifyApproval(ctx, tx, task)
			if err != nil {
				return err
			}
			if _, err := reconcileProject(ctx, tx, task.ProjectID); err != nil {
				return err
			}
		case TaskModify:
			n, err := s.notifier.append(ctx, tx, NotificationDraft{
				Sender:   models.EmployeeActor(task.DeveloperID),
				Receiver: models.EmployeeActor(task.TesterID),
				Type:     models.NotificationTask,
				Message:  fmt.Sprintf("Task %q was modified and is ready for testing again.", task.Title),
			})
			if err != nil {
				return err
			}
			created = append(created, n)
		}
		return nil
	})
	if err != nil {
		logrus.Warnf("[task][%s] task=%d caller=%d: %v", action, taskID, callerID, err)
		return nil, err
	}
	metrics.WorkflowTransitions.WithLabelValues("task", string(action)).Inc()
	s.notifier.committed(created...)
	return task, nil
}

// notifyApproval tells the PM and the developer, skipping accounts that no
// longer resolve.
func (s *taskService) notifyApproval(ctx context.Context, tx repositories.Store, task *models.Task) ([]models.Notification, error) {
	var recipients []models.Actor
	if _, err := tx.PMs().GetByID(ctx, task.CreatedBy); err == nil {
		recipients = append(recipients, models.PMActor(task.CreatedBy))
	}
	if _, err := tx.Employees().GetByID(ctx, task.DeveloperID); err == nil {
		recipients = append(recipients, models.EmployeeActor(task.DeveloperID))
	}

	msg := fmt.Sprintf("Task %q was approved by the tester.", task.Title)
	created := make([]models.Notification, 0, len(recipients))
	for _, r := range recipients {
		n, err := s.notifier.append(ctx, tx, NotificationDraft{
			Sender:   models.EmployeeActor(task.TesterID),
			Receiver: r,
			Type:     models.NotificationTask,
			Message:  msg,
		})
		if err != nil {
			return nil, err
		}
		created = append(created, n)
	}
	return created, nil
}

func (s *taskService) Reassign(ctx context.Context, pmID, taskID, developerID, testerID int64) (*models.Task, error) {
	if developerID <= 0 && testerID <= 0 {
		return nil, validation("developerId or testerId is required")
	}
	var task *models.Task
	err := s.store.WithTx(ctx, func(tx repositories.Store) error {
		var err error
		task, err = tx.Tasks().GetByID(ctx, taskID)
		if err != nil {
			return fromRepo(err, "task")
		}
		if task.CreatedBy != pmID {
			return fmt.Errorf("%w: task %d belongs to another PM", ErrForbidden, taskID)
		}
		if developerID > 0 {
			if _, err := activeEmployee(ctx, tx, developerID, models.RoleDeveloper); err != nil {
				return err
			}
			task.DeveloperID = developerID
		}
		if testerID > 0 {
			if _, err := activeEmployee(ctx, tx, testerID, models.RoleTester); err != nil {
				return err
			}
			task.TesterID = testerID
		}
		return fromRepo(tx.Tasks().Reassign(ctx, task), "task")
	})
	if err != nil {
		return nil, err
	}
	metrics.WorkflowTransitions.WithLabelValues("task", "reassign").Inc()
	return task, nil
}
