package repositories

import (
	"context"

	"taskflow/internal/models"
)

type ProjectRepository interface {
	Create(ctx context.Context, p *models.Project) error
	GetByID(ctx context.Context, id int64) (*models.Project, error)
	ListByCreator(ctx context.Context, pmID int64) ([]models.Project, error)
	ListByStatus(ctx context.Context, status models.ProjectStatus) ([]models.Project, error)
	UpdateStatus(ctx context.Context, id int64, status models.ProjectStatus) error
}

type projectRepository struct {
	q Querier
}

// assigned_tasks is always derived, never stored.
const projectSelect = `
	SELECT p.id, p.name, p.description, p.status, p.deadline, p.total_tasks, p.created_by,
	       p.created_at, p.updated_at,
	       (SELECT COUNT(*) FROM tasks t WHERE t.project_id = p.id)
	FROM projects p`

func scanProject(row interface{ Scan(...any) error }) (*models.Project, error) {
	p := &models.Project{}
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Status, &p.Deadline, &p.TotalTasks,
		&p.CreatedBy, &p.CreatedAt, &p.UpdatedAt, &p.AssignedTasks)
	if err != nil {
		return nil, translate(err)
	}
	return p, nil
}

func (r *projectRepository) Create(ctx context.Context, p *models.Project) error {
	const q = `
		INSERT INTO projects (name, description, status, deadline, total_tasks, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`
	return translate(r.q.QueryRowContext(ctx, q, p.Name, p.Description, p.Status, p.Deadline,
		p.TotalTasks, p.CreatedBy).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt))
}

func (r *projectRepository) GetByID(ctx context.Context, id int64) (*models.Project, error) {
	return scanProject(r.q.QueryRowContext(ctx, projectSelect+` WHERE p.id = $1`, id))
}

func (r *projectRepository) ListByCreator(ctx context.Context, pmID int64) ([]models.Project, error) {
	return r.list(ctx, projectSelect+` WHERE p.created_by = $1 ORDER BY p.created_at DESC, p.id DESC`, pmID)
}

func (r *projectRepository) ListByStatus(ctx context.Context, status models.ProjectStatus) ([]models.Project, error) {
	return r.list(ctx, projectSelect+` WHERE p.status = $1 ORDER BY p.id`, status)
}

func (r *projectRepository) list(ctx context.Context, query string, args ...any) ([]models.Project, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *projectRepository) UpdateStatus(ctx context.Context, id int64, status models.ProjectStatus) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE projects SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		return translate(err)
	}
	return mustAffect(res, ErrNotFound)
}
