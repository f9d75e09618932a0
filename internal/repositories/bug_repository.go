package repositories

import (
	"context"
	"fmt"
	"strings"

	"taskflow/internal/models"
)

type BugRepository interface {
	Create(ctx context.Context, bug *models.Bug) error
	GetByID(ctx context.Context, id int64) (*models.Bug, error)
	List(ctx context.Context, filter models.BugFilter) ([]models.Bug, error)
	// UpdateStatus is a compare-and-swap on bug.Version.
	UpdateStatus(ctx context.Context, bug *models.Bug) error
}

type bugRepository struct {
	q Querier
}

const bugColumns = `id, task_id, project_id, title, module, severity, description, file_url,
       reported_by, developer_id, status, version, created_at, updated_at`

func scanBug(row interface{ Scan(...any) error }) (*models.Bug, error) {
	b := &models.Bug{}
	err := row.Scan(&b.ID, &b.TaskID, &b.ProjectID, &b.Title, &b.Module, &b.Severity, &b.Description,
		&b.FileURL, &b.ReportedBy, &b.DeveloperID, &b.Status, &b.Version, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, translate(err)
	}
	return b, nil
}

func (r *bugRepository) Create(ctx context.Context, bug *models.Bug) error {
	const q = `
		INSERT INTO bugs (task_id, project_id, title, module, severity, description, file_url,
		                  reported_by, developer_id, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, version, created_at, updated_at`
	return translate(r.q.QueryRowContext(ctx, q, bug.TaskID, bug.ProjectID, bug.Title, bug.Module,
		bug.Severity, bug.Description, bug.FileURL, bug.ReportedBy, bug.DeveloperID, bug.Status).
		Scan(&bug.ID, &bug.Version, &bug.CreatedAt, &bug.UpdatedAt))
}

func (r *bugRepository) GetByID(ctx context.Context, id int64) (*models.Bug, error) {
	return scanBug(r.q.QueryRowContext(ctx, `SELECT `+bugColumns+` FROM bugs WHERE id = $1`, id))
}

func (r *bugRepository) List(ctx context.Context, filter models.BugFilter) ([]models.Bug, error) {
	query := `SELECT ` + bugColumns + ` FROM bugs`

	conditions := []string{}
	args := []any{}
	argID := 1

	if filter.DeveloperID != nil {
		conditions = append(conditions, fmt.Sprintf("developer_id = $%d", argID))
		args = append(args, *filter.DeveloperID)
		argID++
	}
	if filter.ReportedBy != nil {
		conditions = append(conditions, fmt.Sprintf("reported_by = $%d", argID))
		args = append(args, *filter.ReportedBy)
		argID++
	}
	if filter.ProjectID != nil {
		conditions = append(conditions, fmt.Sprintf("project_id = $%d", argID))
		args = append(args, *filter.ProjectID)
		argID++
	}
	if filter.ProjectOwner != nil {
		conditions = append(conditions, fmt.Sprintf("project_id IN (SELECT id FROM projects WHERE created_by = $%d)", argID))
		args = append(args, *filter.ProjectOwner)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Bug
	for rows.Next() {
		b, err := scanBug(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func (r *bugRepository) UpdateStatus(ctx context.Context, bug *models.Bug) error {
	const q = `
		UPDATE bugs SET status = $1, version = version + 1, updated_at = NOW()
		WHERE id = $2 AND version = $3
		RETURNING version, updated_at`
	err := r.q.QueryRowContext(ctx, q, bug.Status, bug.ID, bug.Version).Scan(&bug.Version, &bug.UpdatedAt)
	if err = translate(err); err == ErrNotFound {
		return ErrVersionConflict
	}
	return err
}
