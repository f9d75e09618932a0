package repositories

import (
	"context"
	"fmt"
	"strings"

	"taskflow/internal/models"
)

type EmployeeRepository interface {
	Create(ctx context.Context, e *models.Employee) error
	GetByID(ctx context.Context, id int64) (*models.Employee, error)
	GetByEmpIDAndRole(ctx context.Context, empID string, role models.EmployeeRole) (*models.Employee, error)
	List(ctx context.Context, filter models.EmployeeFilter) ([]models.Employee, error)
	UpdateStatus(ctx context.Context, id int64, status models.EmployeeStatus) error
	UpdateProfile(ctx context.Context, e *models.Employee) error
	Delete(ctx context.Context, id int64) error
}

type employeeRepository struct {
	q Querier
}

const employeeColumns = `id, emp_id, role, email, password_hash, status, name, mobile, address,
       profile_photo, telegram_chat_id, COALESCE(created_by, 0), created_at, updated_at`

func scanEmployee(row interface{ Scan(...any) error }) (*models.Employee, error) {
	e := &models.Employee{}
	err := row.Scan(&e.ID, &e.EmpID, &e.Role, &e.Email, &e.PasswordHash, &e.Status, &e.Name,
		&e.Mobile, &e.Address, &e.ProfilePhoto, &e.TelegramChatID, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, translate(err)
	}
	return e, nil
}

func (r *employeeRepository) Create(ctx context.Context, e *models.Employee) error {
	const q = `
		INSERT INTO employees (emp_id, role, email, password_hash, status, name, mobile, address,
		                       profile_photo, telegram_chat_id, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULLIF($11, 0))
		RETURNING id, created_at, updated_at`
	err := r.q.QueryRowContext(ctx, q, e.EmpID, e.Role, e.Email, e.PasswordHash, e.Status, e.Name,
		e.Mobile, e.Address, e.ProfilePhoto, e.TelegramChatID, e.CreatedBy).
		Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	return translate(err)
}

func (r *employeeRepository) GetByID(ctx context.Context, id int64) (*models.Employee, error) {
	return scanEmployee(r.q.QueryRowContext(ctx, `SELECT `+employeeColumns+` FROM employees WHERE id = $1`, id))
}

func (r *employeeRepository) GetByEmpIDAndRole(ctx context.Context, empID string, role models.EmployeeRole) (*models.Employee, error) {
	return scanEmployee(r.q.QueryRowContext(ctx,
		`SELECT `+employeeColumns+` FROM employees WHERE emp_id = $1 AND role = $2`, empID, role))
}

func (r *employeeRepository) List(ctx context.Context, filter models.EmployeeFilter) ([]models.Employee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees`

	conditions := []string{}
	args := []any{}
	argID := 1

	if filter.CreatedBy != nil {
		conditions = append(conditions, fmt.Sprintf("created_by = $%d", argID))
		args = append(args, *filter.CreatedBy)
		argID++
	}
	if filter.Role != nil {
		conditions = append(conditions, fmt.Sprintf("role = $%d", argID))
		args = append(args, *filter.Role)
		argID++
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argID))
		args = append(args, *filter.Status)
		argID++
	}
	if filter.TelegramChatID != nil {
		conditions = append(conditions, fmt.Sprintf("telegram_chat_id = $%d", argID))
		args = append(args, *filter.TelegramChatID)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY id"

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (r *employeeRepository) UpdateStatus(ctx context.Context, id int64, status models.EmployeeStatus) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE employees SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		return translate(err)
	}
	return mustAffect(res, ErrNotFound)
}

func (r *employeeRepository) UpdateProfile(ctx context.Context, e *models.Employee) error {
	const q = `
		UPDATE employees
		SET name = $1, mobile = $2, address = $3, profile_photo = $4, telegram_chat_id = $5, updated_at = NOW()
		WHERE id = $6
		RETURNING updated_at`
	return translate(r.q.QueryRowContext(ctx, q, e.Name, e.Mobile, e.Address, e.ProfilePhoto,
		e.TelegramChatID, e.ID).Scan(&e.UpdatedAt))
}

func (r *employeeRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM employees WHERE id = $1`, id)
	if err != nil {
		return translate(err)
	}
	return mustAffect(res, ErrNotFound)
}
