package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"taskflow/internal/models"
	"taskflow/internal/pdf"
	"taskflow/internal/repositories"
)

type CreateProjectInput struct {
	Name        string
	Description string
	Deadline    *time.Time
	TotalTasks  int
}

type ProjectService interface {
	Create(ctx context.Context, pmID int64, in CreateProjectInput) (*models.Project, error)
	List(ctx context.Context, pmID int64) ([]models.Project, error)
	Get(ctx context.Context, id int64) (*models.Project, error)
	UpdateStatus(ctx context.Context, pmID, id int64, status models.ProjectStatus) (*models.Project, error)
	// Reconcile completes the project once every planned task is submitted.
	Reconcile(ctx context.Context, id int64) (bool, error)
	ReconcileInProgress(ctx context.Context) (int, error)
	Report(ctx context.Context, pmID, id int64) ([]byte, error)
}

type projectService struct {
	store  repositories.Store
	report pdf.Generator
}

func NewProjectService(store repositories.Store, report pdf.Generator) ProjectService {
	return &projectService{store: store, report: report}
}

func (s *projectService) Create(ctx context.Context, pmID int64, in CreateProjectInput) (*models.Project, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, validation("name is required")
	}
	if in.TotalTasks < 0 {
		return nil, validation("totalTasks must not be negative")
	}
	p := &models.Project{
		Name:        in.Name,
		Description: strings.TrimSpace(in.Description),
		Status:      models.ProjectPending,
		Deadline:    in.Deadline,
		TotalTasks:  in.TotalTasks,
		CreatedBy:   pmID,
	}
	if err := s.store.Projects().Create(ctx, p); err != nil {
		return nil, fromRepo(err, "project")
	}
	logrus.Infof("[project][create] pm=%d project=%d", pmID, p.ID)
	return p, nil
}

func (s *projectService) List(ctx context.Context, pmID int64) ([]models.Project, error) {
	return nonNil(s.store.Projects().ListByCreator(ctx, pmID))
}

func (s *projectService) Get(ctx context.Context, id int64) (*models.Project, error) {
	p, err := s.store.Projects().GetByID(ctx, id)
	if err != nil {
		return nil, fromRepo(err, "project")
	}
	return p, nil
}

func (s *projectService) owned(ctx context.Context, pmID, id int64) (*models.Project, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.CreatedBy != pmID {
		return nil, fmt.Errorf("%w: project %d belongs to another PM", ErrForbidden, id)
	}
	return p, nil
}

// UpdateStatus allows any status from any status.
func (s *projectService) UpdateStatus(ctx context.Context, pmID, id int64, status models.ProjectStatus) (*models.Project, error) {
	if !status.Valid() {
		return nil, validation("invalid project status %q", status)
	}
	if _, err := s.owned(ctx, pmID, id); err != nil {
		return nil, err
	}
	if err := s.store.Projects().UpdateStatus(ctx, id, status); err != nil {
		return nil, fromRepo(err, "project")
	}
	return s.Get(ctx, id)
}

func (s *projectService) Reconcile(ctx context.Context, id int64) (bool, error) {
	var completed bool
	err := s.store.WithTx(ctx, func(tx repositories.Store) error {
		var err error
		completed, err = reconcileProject(ctx, tx, id)
		return err
	})
	return completed, err
}

func (s *projectService) ReconcileInProgress(ctx context.Context) (int, error) {
	projects, err := s.store.Projects().ListByStatus(ctx, models.ProjectInProgress)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, p := range projects {
		done, err := s.Reconcile(ctx, p.ID)
		if err != nil {
			logrus.Errorf("[project][reconcile][err] project=%d: %v", p.ID, err)
			continue
		}
		if done {
			n++
		}
	}
	return n, nil
}

// reconcileProject is shared with task approval so both run in the caller's
// transaction.
func reconcileProject(ctx context.Context, tx repositories.Store, id int64) (bool, error) {
	p, err := tx.Projects().GetByID(ctx, id)
	if err != nil {
		return false, fromRepo(err, "project")
	}
	if p.Status == models.ProjectCompleted {
		return false, nil
	}
	total, submitted, err := tx.Tasks().CountByProject(ctx, id)
	if err != nil {
		return false, err
	}
	if total == 0 || total != p.TotalTasks || submitted != total {
		return false, nil
	}
	if err := tx.Projects().UpdateStatus(ctx, id, models.ProjectCompleted); err != nil {
		return false, fromRepo(err, "project")
	}
	logrus.Infof("[project][reconcile] project %d completed (%d/%d tasks submitted)", id, submitted, total)
	return true, nil
}

func (s *projectService) Report(ctx context.Context, pmID, id int64) ([]byte, error) {
	p, err := s.owned(ctx, pmID, id)
	if err != nil {
		return nil, err
	}
	tasks, err := s.store.Tasks().List(ctx, models.TaskFilter{ProjectID: &id})
	if err != nil {
		return nil, err
	}
	bugs, err := s.store.Bugs().List(ctx, models.BugFilter{ProjectID: &id})
	if err != nil {
		return nil, err
	}

	names := map[int64]string{}
	name := func(empID int64) string {
		if n, ok := names[empID]; ok {
			return n
		}
		n := fmt.Sprintf("#%d", empID)
		if e, err := s.store.Employees().GetByID(ctx, empID); err == nil {
			n = fmt.Sprintf("%s (%s)", e.Name, e.EmpID)
		}
		names[empID] = n
		return n
	}

	data := pdf.ProjectReportData{
		ProjectID:   p.ID,
		Name:        p.Name,
		Description: p.Description,
		Status:      string(p.Status),
		Deadline:    p.Deadline,
		TotalTasks:  p.TotalTasks,
		BugCounts:   map[string]int{},
		GeneratedAt: time.Now(),
	}
	for _, t := range tasks {
		data.Tasks = append(data.Tasks, pdf.ReportTask{
			ID: t.ID, Title: t.Title, Developer: name(t.DeveloperID), Tester: name(t.TesterID),
			Status: string(t.Status), DueDate: t.DueDate,
		})
	}
	for _, b := range bugs {
		data.BugCounts[string(b.Status)]++
	}
	return s.report.ProjectReport(data)
}
