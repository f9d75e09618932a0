package repositories

import (
	"context"
	"fmt"
	"strings"

	"taskflow/internal/models"
)

type TaskRepository interface {
	Create(ctx context.Context, task *models.Task) error
	GetByID(ctx context.Context, id int64) (*models.Task, error)
	List(ctx context.Context, filter models.TaskFilter) ([]models.Task, error)
	// CountByProject returns how many tasks the project has and how many of
	// them are submitted.
	CountByProject(ctx context.Context, projectID int64) (total, submitted int, err error)
	// UpdateWorkflow writes the workflow columns only when task.Version still
	// matches the stored row, then bumps task.Version.
	UpdateWorkflow(ctx context.Context, task *models.Task) error
	Reassign(ctx context.Context, task *models.Task) error
}

type taskRepository struct {
	q Querier
}

const taskSelect = `
	SELECT t.id, t.title, t.description, t.developer_id, t.tester_id, t.project_id, t.due_date,
	       t.status, t.document_url, t.created_by, t.code, t.submission_status, t.tester_feedback,
	       t.version, t.created_at, t.updated_at, p.name
	FROM tasks t
	JOIN projects p ON p.id = t.project_id`

func scanTask(row interface{ Scan(...any) error }) (*models.Task, error) {
	t := &models.Task{}
	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.DeveloperID, &t.TesterID, &t.ProjectID,
		&t.DueDate, &t.Status, &t.DocumentURL, &t.CreatedBy, &t.Code, &t.SubmissionStatus,
		&t.TesterFeedback, &t.Version, &t.CreatedAt, &t.UpdatedAt, &t.ProjectName)
	if err != nil {
		return nil, translate(err)
	}
	return t, nil
}

func (r *taskRepository) Create(ctx context.Context, task *models.Task) error {
	const q = `
		INSERT INTO tasks (title, description, developer_id, tester_id, project_id, due_date,
		                   status, document_url, created_by, code, submission_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, version, created_at, updated_at`
	return translate(r.q.QueryRowContext(ctx, q,
		task.Title, task.Description, task.DeveloperID, task.TesterID, task.ProjectID, task.DueDate,
		task.Status, task.DocumentURL, task.CreatedBy, task.Code, task.SubmissionStatus,
	).Scan(&task.ID, &task.Version, &task.CreatedAt, &task.UpdatedAt))
}

func (r *taskRepository) GetByID(ctx context.Context, id int64) (*models.Task, error) {
	return scanTask(r.q.QueryRowContext(ctx, taskSelect+` WHERE t.id = $1`, id))
}

func (r *taskRepository) List(ctx context.Context, filter models.TaskFilter) ([]models.Task, error) {
	query := taskSelect

	conditions := []string{}
	args := []any{}
	argID := 1

	if filter.ProjectID != nil {
		conditions = append(conditions, fmt.Sprintf("t.project_id = $%d", argID))
		args = append(args, *filter.ProjectID)
		argID++
	}
	if filter.Assignee != nil {
		conditions = append(conditions, fmt.Sprintf("(t.developer_id = $%d OR t.tester_id = $%d)", argID, argID))
		args = append(args, *filter.Assignee)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY t.created_at DESC, t.id DESC"

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

func (r *taskRepository) CountByProject(ctx context.Context, projectID int64) (int, int, error) {
	const q = `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE status = 'submitted')
		FROM tasks WHERE project_id = $1`
	var total, submitted int
	if err := r.q.QueryRowContext(ctx, q, projectID).Scan(&total, &submitted); err != nil {
		return 0, 0, translate(err)
	}
	return total, submitted, nil
}

func (r *taskRepository) UpdateWorkflow(ctx context.Context, task *models.Task) error {
	const q = `
		UPDATE tasks SET
			status = $1, code = $2, submission_status = $3, tester_feedback = $4,
			document_url = $5, version = version + 1, updated_at = NOW()
		WHERE id = $6 AND version = $7
		RETURNING version, updated_at`
	err := r.q.QueryRowContext(ctx, q, task.Status, task.Code, task.SubmissionStatus,
		task.TesterFeedback, task.DocumentURL, task.ID, task.Version).Scan(&task.Version, &task.UpdatedAt)
	if err = translate(err); err == ErrNotFound {
		return ErrVersionConflict
	}
	return err
}

func (r *taskRepository) Reassign(ctx context.Context, task *models.Task) error {
	const q = `
		UPDATE tasks SET developer_id = $1, tester_id = $2, version = version + 1, updated_at = NOW()
		WHERE id = $3 AND version = $4
		RETURNING version, updated_at`
	err := r.q.QueryRowContext(ctx, q, task.DeveloperID, task.TesterID, task.ID, task.Version).
		Scan(&task.Version, &task.UpdatedAt)
	if err = translate(err); err == ErrNotFound {
		return ErrVersionConflict
	}
	return err
}
