package repositories

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrVersionConflict = errors.New("version conflict")
	ErrUniqueViolation = errors.New("unique violation")
	ErrStillReferenced = errors.New("still referenced")
)

//go:embed schema.sql
var schemaSQL string

// Querier is satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store groups the repositories so a service can run several writes in one
// transaction.
type Store interface {
	PMs() PMRepository
	Employees() EmployeeRepository
	Projects() ProjectRepository
	Tasks() TaskRepository
	Bugs() BugRepository
	Suggestions() SuggestionRepository
	Notifications() NotificationRepository
	Outbox() OutboxRepository
	TelegramLinks() TelegramLinkRepository

	// WithTx runs fn against a Store bound to a single transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(tx Store) error) error
}

type sqlStore struct {
	db *sql.DB
	q  Querier
}

func NewStore(db *sql.DB) Store {
	return &sqlStore{db: db, q: db}
}

func (s *sqlStore) PMs() PMRepository                     { return &pmRepository{q: s.q} }
func (s *sqlStore) Employees() EmployeeRepository         { return &employeeRepository{q: s.q} }
func (s *sqlStore) Projects() ProjectRepository           { return &projectRepository{q: s.q} }
func (s *sqlStore) Tasks() TaskRepository                 { return &taskRepository{q: s.q} }
func (s *sqlStore) Bugs() BugRepository                   { return &bugRepository{q: s.q} }
func (s *sqlStore) Suggestions() SuggestionRepository     { return &suggestionRepository{q: s.q} }
func (s *sqlStore) Notifications() NotificationRepository { return &notificationRepository{q: s.q} }
func (s *sqlStore) Outbox() OutboxRepository              { return &outboxRepository{q: s.q} }
func (s *sqlStore) TelegramLinks() TelegramLinkRepository  { return &telegramLinkRepository{q: s.q} }

func (s *sqlStore) WithTx(ctx context.Context, fn func(tx Store) error) error {
	if _, inTx := s.q.(*sql.Tx); inTx {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&sqlStore{db: s.db, q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Migrate applies the embedded schema. Every statement is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// translate maps driver errors onto the package sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s", ErrUniqueViolation, pqErr.Constraint)
		case "23503":
			return fmt.Errorf("%w: %s", ErrStillReferenced, pqErr.Constraint)
		}
	}
	return err
}

func mustAffect(res sql.Result, notAffected error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notAffected
	}
	return nil
}
