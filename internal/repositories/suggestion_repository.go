package repositories

import (
	"context"
	"fmt"
	"strings"

	"taskflow/internal/models"
)

type SuggestionRepository interface {
	Create(ctx context.Context, s *models.Suggestion) error
	GetByID(ctx context.Context, id int64) (*models.Suggestion, error)
	List(ctx context.Context, filter models.SuggestionFilter) ([]models.Suggestion, error)
	UpdateStatus(ctx context.Context, s *models.Suggestion) error
}

type suggestionRepository struct {
	q Querier
}

const suggestionColumns = `id, task_id, project_id, pm_id, author_id, title, description, status,
       created_at, updated_at`

func scanSuggestion(row interface{ Scan(...any) error }) (*models.Suggestion, error) {
	s := &models.Suggestion{}
	err := row.Scan(&s.ID, &s.TaskID, &s.ProjectID, &s.PMID, &s.AuthorID, &s.Title, &s.Description,
		&s.Status, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, translate(err)
	}
	return s, nil
}

func (r *suggestionRepository) Create(ctx context.Context, s *models.Suggestion) error {
	const q = `
		INSERT INTO suggestions (task_id, project_id, pm_id, author_id, title, description, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`
	return translate(r.q.QueryRowContext(ctx, q, s.TaskID, s.ProjectID, s.PMID, s.AuthorID, s.Title,
		s.Description, s.Status).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt))
}

func (r *suggestionRepository) GetByID(ctx context.Context, id int64) (*models.Suggestion, error) {
	return scanSuggestion(r.q.QueryRowContext(ctx, `SELECT `+suggestionColumns+` FROM suggestions WHERE id = $1`, id))
}

func (r *suggestionRepository) List(ctx context.Context, filter models.SuggestionFilter) ([]models.Suggestion, error) {
	query := `SELECT ` + suggestionColumns + ` FROM suggestions`
	conditions := []string{}
	args := []any{}
	if filter.PMID != nil {
		args = append(args, *filter.PMID)
		conditions = append(conditions, fmt.Sprintf("pm_id = $%d", len(args)))
	}
	if filter.ProjectID != nil {
		args = append(args, *filter.ProjectID)
		conditions = append(conditions, fmt.Sprintf("project_id = $%d", len(args)))
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Suggestion
	for rows.Next() {
		s, err := scanSuggestion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (r *suggestionRepository) UpdateStatus(ctx context.Context, s *models.Suggestion) error {
	return translate(r.q.QueryRowContext(ctx,
		`UPDATE suggestions SET status = $1, updated_at = NOW() WHERE id = $2 RETURNING updated_at`,
		s.Status, s.ID).Scan(&s.UpdatedAt))
}
