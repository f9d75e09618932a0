// Package memory is a process-local repositories.Store used by tests and by
// the "memory" database driver for local runs.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"taskflow/internal/models"
	"taskflow/internal/repositories"
)

type state struct {
	seq           map[string]int64
	pms           map[int64]models.PM
	employees     map[int64]models.Employee
	projects      map[int64]models.Project
	tasks         map[int64]models.Task
	bugs          map[int64]models.Bug
	suggestions   map[int64]models.Suggestion
	notifications map[int64]models.Notification
	outbox        map[int64]models.OutboxMessage
	links         map[int64]models.TelegramLink
}

func newState() *state {
	return &state{
		seq:           map[string]int64{},
		pms:           map[int64]models.PM{},
		employees:     map[int64]models.Employee{},
		projects:      map[int64]models.Project{},
		tasks:         map[int64]models.Task{},
		bugs:          map[int64]models.Bug{},
		suggestions:   map[int64]models.Suggestion{},
		notifications: map[int64]models.Notification{},
		outbox:        map[int64]models.OutboxMessage{},
		links:         map[int64]models.TelegramLink{},
	}
}

func cloneMap[V any](m map[int64]V) map[int64]V {
	out := make(map[int64]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// clone copies the maps. Stored values never share mutable memory with
// callers, so a shallow copy of each map is a full snapshot.
func (s *state) clone() *state {
	seq := make(map[string]int64, len(s.seq))
	for k, v := range s.seq {
		seq[k] = v
	}
	return &state{
		seq:           seq,
		pms:           cloneMap(s.pms),
		employees:     cloneMap(s.employees),
		projects:      cloneMap(s.projects),
		tasks:         cloneMap(s.tasks),
		bugs:          cloneMap(s.bugs),
		suggestions:   cloneMap(s.suggestions),
		notifications: cloneMap(s.notifications),
		outbox:        cloneMap(s.outbox),
		links:         cloneMap(s.links),
	}
}

func (s *state) next(table string) int64 {
	s.seq[table]++
	return s.seq[table]
}

type database struct {
	// txMu serializes transactions with every statement run outside one.
	txMu sync.Mutex
	mu   sync.Mutex
	data *state
	now  func() time.Time

	// private is set on the working copy a transaction writes to.
	private bool
}

// Store implements repositories.Store. Each transaction works on a private
// copy of the state that replaces the shared one on commit.
type Store struct {
	db   *database
	inTx bool
}

var _ repositories.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{db: &database{data: newState(), now: time.Now}}
}

// SetClock replaces the time source used for timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.now = now
}

func (s *Store) WithTx(ctx context.Context, fn func(tx repositories.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	shared := s.db
	shared.txMu.Lock()
	defer shared.txMu.Unlock()

	shared.mu.Lock()
	work := &database{data: shared.data.clone(), now: shared.now, private: true}
	shared.mu.Unlock()

	if err := fn(&Store{db: work, inTx: true}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	shared.mu.Lock()
	shared.data = work.data
	shared.mu.Unlock()
	return nil
}

func (s *Store) PMs() repositories.PMRepository                     { return pmRepo{s.db} }
func (s *Store) Employees() repositories.EmployeeRepository         { return employeeRepo{s.db} }
func (s *Store) Projects() repositories.ProjectRepository           { return projectRepo{s.db} }
func (s *Store) Tasks() repositories.TaskRepository                 { return taskRepo{s.db} }
func (s *Store) Bugs() repositories.BugRepository                   { return bugRepo{s.db} }
func (s *Store) Suggestions() repositories.SuggestionRepository     { return suggestionRepo{s.db} }
func (s *Store) Notifications() repositories.NotificationRepository { return notificationRepo{s.db} }
func (s *Store) Outbox() repositories.OutboxRepository              { return outboxRepo{s.db} }
func (s *Store) TelegramLinks() repositories.TelegramLinkRepository { return linkRepo{s.db} }

// Outbox messages, in id order, for assertions.
func (s *Store) OutboxMessages() []models.OutboxMessage {
	st, _, unlock := s.db.lock()
	defer unlock()
	out := make([]models.OutboxMessage, 0, len(st.outbox))
	for _, m := range st.outbox {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// lock makes a single statement outside a transaction wait for any running
// transaction, so it neither sees uncommitted writes nor gets overwritten by
// the commit.
func (db *database) lock() (*state, time.Time, func()) {
	if !db.private {
		db.txMu.Lock()
	}
	db.mu.Lock()
	return db.data, db.now(), func() {
		db.mu.Unlock()
		if !db.private {
			db.txMu.Unlock()
		}
	}
}

func newestFirst[T any](items []T, created func(T) time.Time, id func(T) int64) {
	sort.Slice(items, func(i, j int) bool {
		ci, cj := created(items[i]), created(items[j])
		if !ci.Equal(cj) {
			return ci.After(cj)
		}
		return id(items[i]) > id(items[j])
	})
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// --- PMs ---

type pmRepo struct{ db *database }

func (r pmRepo) Create(_ context.Context, pm *models.PM) error {
	st, now, unlock := r.db.lock()
	defer unlock()
	for _, other := range st.pms {
		if strings.EqualFold(other.Email, pm.Email) {
			return fmt.Errorf("%w: pms_email_key", repositories.ErrUniqueViolation)
		}
		if other.PMCode == pm.PMCode {
			return fmt.Errorf("%w: pms_pm_code_key", repositories.ErrUniqueViolation)
		}
	}
	pm.ID = st.next("pms")
	pm.CreatedAt, pm.UpdatedAt = now, now
	st.pms[pm.ID] = clonePM(*pm)
	return nil
}

func clonePM(pm models.PM) models.PM {
	pm.Address = copyPtr(pm.Address)
	pm.ResetOTPHash = copyPtr(pm.ResetOTPHash)
	pm.ResetOTPExpiry = copyPtr(pm.ResetOTPExpiry)
	return pm
}

func (r pmRepo) GetByID(_ context.Context, id int64) (*models.PM, error) {
	st, _, unlock := r.db.lock()
	defer unlock()
	pm, ok := st.pms[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	out := clonePM(pm)
	return &out, nil
}

func (r pmRepo) GetByEmail(_ context.Context, email string) (*models.PM, error) {
	st, _, unlock := r.db.lock()
	defer unlock()
	for _, pm := range st.pms {
		if strings.EqualFold(pm.Email, email) {
			out := clonePM(pm)
			return &out, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r pmRepo) UpdateProfile(_ context.Context, pm *models.PM) error {
	st, now, unlock := r.db.lock()
	defer unlock()
	cur, ok := st.pms[pm.ID]
	if !ok {
		return repositories.ErrNotFound
	}
	cur.Name, cur.Mobile, cur.ProfilePic, cur.Address = pm.Name, pm.Mobile, pm.ProfilePic, copyPtr(pm.Address)
	cur.UpdatedAt = now
	pm.UpdatedAt = now
	st.pms[pm.ID] = cur
	return nil
}

func (r pmRepo) SetResetOTP(_ context.Context, id int64, otpHash string, expiresAt time.Time) error {
	st, now, unlock := r.db.lock()
	defer unlock()
	cur, ok := st.pms[id]
	if !ok {
		return repositories.ErrNotFound
	}
	cur.ResetOTPHash = &otpHash
	cur.ResetOTPExpiry = &expiresAt
	cur.UpdatedAt = now
	st.pms[id] = cur
	return nil
}

func (r pmRepo) ResetPassword(_ context.Context, id int64, passwordHash string) error {
	st, now, unlock := r.db.lock()
	defer unlock()
	cur, ok := st.pms[id]
	if !ok {
		return repositories.ErrNotFound
	}
	cur.PasswordHash = passwordHash
	cur.ResetOTPHash, cur.ResetOTPExpiry = nil, nil
	cur.UpdatedAt = now
	st.pms[id] = cur
	return nil
}

// --- Employees ---

type employeeRepo struct{ db *database }

func (r employeeRepo) Create(_ context.Context, e *models.Employee) error {
	st, now, unlock := r.db.lock()
	defer unlock()
	for _, other := range st.employees {
		if strings.EqualFold(other.Email, e.Email) {
			return fmt.Errorf("%w: employees_email_key", repositories.ErrUniqueViolation)
		}
		if other.EmpID == e.EmpID && other.Role == e.Role {
			return fmt.Errorf("%w: employees_emp_id_role_key", repositories.ErrUniqueViolation)
		}
	}
	e.ID = st.next("employees")
	e.CreatedAt, e.UpdatedAt = now, now
	st.employees[e.ID] = *e
	return nil
}

func (r employeeRepo) GetByID(_ context.Context, id int64) (*models.Employee, error) {
	st, _, unlock := r.db.lock()
	defer unlock()
	e, ok := st.employees[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &e, nil
}

func (r employeeRepo) GetByEmpIDAndRole(_ context.Context, empID string, role models.EmployeeRole) (*models.Employee, error) {
	st, _, unlock := r.db.lock()
	defer unlock()
	for _, e := range st.employees {
		if e.EmpID == empID && e.Role == role {
			return &e, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r employeeRepo) List(_ context.Context, f models.EmployeeFilter) ([]models.Employee, error) {
	st, _, unlock := r.db.lock()
	defer unlock()
	var out []models.Employee
	for _, e := range st.employees {
		if f.CreatedBy != nil && e.CreatedBy != *f.CreatedBy {
			continue
		}
		if f.Role != nil && e.Role != *f.Role {
			continue
		}
		if f.Status != nil && e.Status != *f.Status {
			continue
		}
		if f.TelegramChatID != nil && e.TelegramChatID != *f.TelegramChatID {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r employeeRepo) UpdateStatus(_ context.Context, id int64, status models.EmployeeStatus) error {
	st, now, unlock := r.db.lock()
	defer unlock()
	e, ok := st.employees[id]
	if !ok {
		return repositories.ErrNotFound
	}
	e.Status, e.UpdatedAt = status, now
	st.employees[id] = e
	return nil
}

func (r employeeRepo) UpdateProfile(_ context.Context, e *models.Employee) error {
	st, now, unlock := r.db.lock()
	defer unlock()
	cur, ok := st.employees[e.ID]
	if !ok {
		return repositories.ErrNotFound
	}
	cur.Name, cur.Mobile, cur.Address, cur.ProfilePhoto = e.Name, e.Mobile, e.Address, e.ProfilePhoto
	cur.TelegramChatID = e.TelegramChatID
	cur.UpdatedAt, e.UpdatedAt = now, now
	st.employees[e.ID] = cur
	return nil
}

func (r employeeRepo) Delete(_ context.Context, id int64) error {
	st, _, unlock := r.db.lock()
	defer unlock()
	if _, ok := st.employees[id]; !ok {
		return repositories.ErrNotFound
	}
	for _, t := range st.tasks {
		if t.DeveloperID == id || t.TesterID == id {
			return fmt.Errorf("%w: tasks_developer_id_fkey", repositories.ErrStillReferenced)
		}
	}
	for _, b := range st.bugs {
		if b.DeveloperID == id || b.ReportedBy == id {
			return fmt.Errorf("%w: bugs_developer_id_fkey", repositories.ErrStillReferenced)
		}
	}
	delete(st.employees, id)
	for lid, l := range st.links {
		if l.EmployeeID == id {
			delete(st.links, lid)
		}
	}
	return nil
}

// --- Projects ---

type projectRepo struct{ db *database }

func withAssigned(st *state, p models.Project) models.Project {
	p.Deadline = copyPtr(p.Deadline)
	p.AssignedTasks = 0
	for _, t := range st.tasks {
		if t.ProjectID == p.ID {
			p.AssignedTasks++
		}
	}
	return p
}

func (r projectRepo) Create(_ context.Context, p *models.Project) error {
	st, now, unlock := r.db.lock()
	defer unlock()
	if _, ok := st.pms[p.CreatedBy]; !ok {
		return fmt.Errorf("%w: projects_created_by_fkey", repositories.ErrStillReferenced)
	}
	p.ID = st.next("projects")
	p.CreatedAt, p.UpdatedAt = now, now
	p.AssignedTasks = 0
	stored := *p
	stored.Deadline = copyPtr(p.Deadline)
	st.projects[p.ID] = stored
	return nil
}

func (r projectRepo) GetByID(_ context.Context, id int64) (*models.Project, error) {
	st, _, unlock := r.db.lock()
	defer unlock()
	p, ok := st.projects[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	out := withAssigned(st, p)
	return &out, nil
}

func (r projectRepo) ListByCreator(_ context.Context, pmID int64) ([]models.Project, error) {
	st, _, unlock := r.db.lock()
	defer unlock()
	var out []models.Project
	for _, p := range st.projects {
		if p.CreatedBy == pmID {
			out = append(out, withAssigned(st, p))
		}
	}
	newestFirst(out, func(p models.Project) time.Time { return p.CreatedAt }, func(p models.Project) int64 { return p.ID })
	return out, nil
}

func (r projectRepo) ListByStatus(_ context.Context, status models.ProjectStatus) ([]models.Project, error) {
	st, _, unlock := r.db.lock()
	defer unlock()
	var out []models.Project
	for _, p := range st.projects {
		if p.Status == status {
			out = append(out, withAssigned(st, p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r projectRepo) UpdateStatus(_ context.Context, id int64, status models.ProjectStatus) error {
	st, now, unlock := r.db.lock()
	defer unlock()
	p, ok := st.projects[id]
	if !ok {
		return repositories.ErrNotFound
	}
	p.Status, p.UpdatedAt = status, now
	st.projects[id] = p
	return nil
}

// --- Tasks ---

type taskRepo struct{ db *database }

func cloneTask(st *state, t models.Task) models.Task {
	t.DocumentURL = copyPtr(t.DocumentURL)
	t.TesterFeedback = copyPtr(t.TesterFeedback)
	t.ProjectName = st.projects[t.ProjectID].Name
	return t
}

func (r taskRepo) Create(_ context.Context, t *models.Task) error {
	st, now, unlock := r.db.lock()
	defer unlock()
	if _, ok := st.projects[t.ProjectID]; !ok {
		return fmt.Errorf("%w: tasks_project_id_fkey", repositories.ErrStillReferenced)
	}
	if _, ok := st.employees[t.DeveloperID]; !ok {
		return fmt.Errorf("%w: tasks_developer_id_fkey", repositories.ErrStillReferenced)
	}
	if _, ok := st.employees[t.TesterID]; !ok {
		return fmt.Errorf("%w: tasks_tester_id_fkey", repositories.ErrStillReferenced)
	}
	t.ID = st.next("tasks")
	t.Version = 1
	t.CreatedAt, t.UpdatedAt = now, now
	stored := cloneTask(st, *t)
	stored.ProjectName = ""
	st.tasks[t.ID] = stored
	return nil
}

func (r taskRepo) GetByID(_ context.Context, id int64) (*models.Task, error) {
	st, _, unlock := r.db.lock()
	defer unlock()
	t, ok := st.tasks[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	out := cloneTask(st, t)
	return &out, nil
}

func (r taskRepo) List(_ context.Context, f models.TaskFilter) ([]models.Task, error) {
	st, _, unlock := r.db.lock()
	defer unlock()
	var out []models.Task
	for _, t := range st.tasks {
		if f.ProjectID != nil && t.ProjectID != *f.ProjectID {
			continue
		}
		if f.Assignee != nil && t.DeveloperID != *f.Assignee && t.TesterID != *f.Assignee {
			continue
		}
		out = append(out, cloneTask(st, t))
	}
	newestFirst(out, func(t models.Task) time.Time { return t.CreatedAt }, func(t models.Task) int64 { return t.ID })
	return out, nil
}

func (r taskRepo) CountByProject(_ context.Context, projectID int64) (int, int, error) {
	st, _, unlock := r.db.lock()
	defer unlock()
	var total, submitted int
	for _, t := range st.tasks {
		if t.ProjectID != projectID {
			continue
		}
		total++
		if t.Status == models.TaskSubmitted {
			submitted++
		}
	}
	return total, submitted, nil
}

func (r taskRepo) UpdateWorkflow(_ context.Context, t *models.Task) error {
	st, now, unlock := r.db.lock()
	defer unlock()
	cur, ok := st.tasks[t.ID]
	if !ok || cur.Version != t.Version {
		return repositories.ErrVersionConflict
	}
	cur.Status, cur.Code, cur.SubmissionStatus = t.Status, t.Code, t.SubmissionStatus
	cur.TesterFeedback, cur.DocumentURL = copyPtr(t.TesterFeedback), copyPtr(t.DocumentURL)
	cur.Version++
	cur.UpdatedAt = now
	st.tasks[t.ID] = cur
	t.Version, t.UpdatedAt = cur.Version, now
	return nil
}

func (r taskRepo) Reassign(_ context.Context, t *models.Task) error {
	st, now, unlock := r.db.lock()
	defer unlock()
	cur, ok := st.tasks[t.ID]
	if !ok || cur.Version != t.Version {
		return repositories.ErrVersionConflict
	}
	cur.DeveloperID, cur.TesterID = t.DeveloperID, t.TesterID
	cur.Version++
	cur.UpdatedAt = now
	st.tasks[t.ID] = cur
	t.Version, t.UpdatedAt = cur.Version, now
	return nil
}

// --- Bugs ---

type bugRepo struct{ db *database }

func (r bugRepo) Create(_ context.Context, b *models.Bug) error {
	st, now, unlock := r.db.lock()
	defer unlock()
	if _, ok := st.tasks[b.TaskID]; !ok {
		return fmt.Errorf("%w: bugs_task_id_fkey", repositories.ErrStillReferenced)
	}
	b.ID = st.next("bugs")
	b.Version = 1
	b.CreatedAt, b.UpdatedAt = now, now
	st.bugs[b.ID] = *b
	return nil
}

func (r bugRepo) GetByID(_ context.Context, id int64) (*models.Bug, error) {
	st, _, unlock := r.db.lock()
	defer unlock()
	b, ok := st.bugs[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &b, nil
}

func (r bugRepo) List(_ context.Context, f models.BugFilter) ([]models.Bug, error) {
	st, _, unlock := r.db.lock()
	defer unlock()
	var out []models.Bug
	for _, b := range st.bugs {
		if f.DeveloperID != nil && b.DeveloperID != *f.DeveloperID {
			continue
		}
		if f.ReportedBy != nil && b.ReportedBy != *f.ReportedBy {
			continue
		}
		if f.ProjectID != nil && b.ProjectID != *f.ProjectID {
			continue
		}
		if f.ProjectOwner != nil && st.projects[b.ProjectID].CreatedBy != *f.ProjectOwner {
			continue
		}
		out = append(out, b)
	}
	newestFirst(out, func(b models.Bug) time.Time { return b.CreatedAt }, func(b models.Bug) int64 { return b.ID })
	return out, nil
}

func (r bugRepo) UpdateStatus(_ context.Context, b *models.Bug) error {
	st, now, unlock := r.db.lock()
	defer unlock()
	cur, ok := st.bugs[b.ID]
	if !ok || cur.Version != b.Version {
		return repositories.ErrVersionConflict
	}
	cur.Status = b.Status
	cur.Version++
	cur.UpdatedAt = now
	st.bugs[b.ID] = cur
	b.Version, b.UpdatedAt = cur.Version, now
	return nil
}

// --- Suggestions ---

type suggestionRepo struct{ db *database }

func (r suggestionRepo) Create(_ context.Context, s *models.Suggestion) error {
	st, now, unlock := r.db.lock()
	defer unlock()
	s.ID = st.next("suggestions")
	s.CreatedAt, s.UpdatedAt = now, now
	st.suggestions[s.ID] = *s
	return nil
}

func (r suggestionRepo) GetByID(_ context.Context, id int64) (*models.Suggestion, error) {
	st, _, unlock := r.db.lock()
	defer unlock()
	s, ok := st.suggestions[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &s, nil
}

func (r suggestionRepo) List(_ context.Context, f models.SuggestionFilter) ([]models.Suggestion, error) {
	st, _, unlock := r.db.lock()
	defer unlock()
	var out []models.Suggestion
	for _, s := range st.suggestions {
		if f.PMID != nil && s.PMID != *f.PMID {
			continue
		}
		if f.ProjectID != nil && s.ProjectID != *f.ProjectID {
			continue
		}
		out = append(out, s)
	}
	newestFirst(out, func(s models.Suggestion) time.Time { return s.CreatedAt }, func(s models.Suggestion) int64 { return s.ID })
	return out, nil
}

func (r suggestionRepo) UpdateStatus(_ context.Context, s *models.Suggestion) error {
	st, now, unlock := r.db.lock()
	defer unlock()
	cur, ok := st.suggestions[s.ID]
	if !ok {
		return repositories.ErrNotFound
	}
	cur.Status, cur.UpdatedAt = s.Status, now
	s.UpdatedAt = now
	st.suggestions[s.ID] = cur
	return nil
}

// --- Notifications ---

type notificationRepo struct{ db *database }

func cloneNotification(n models.Notification) models.Notification {
	n.Actions = append([]models.NotificationAction{}, n.Actions...)
	n.ActionTaken = copyPtr(n.ActionTaken)
	n.BugID = copyPtr(n.BugID)
	return n
}

func (r notificationRepo) Create(_ context.Context, n *models.Notification) error {
	st, now, unlock := r.db.lock()
	defer unlock()
	if n.BugID != nil {
		if _, ok := st.bugs[*n.BugID]; !ok {
			return fmt.Errorf("%w: notifications_bug_id_fkey", repositories.ErrStillReferenced)
		}
	}
	n.ID = st.next("notifications")
	n.CreatedAt, n.UpdatedAt = now, now
	if n.Actions == nil {
		n.Actions = []models.NotificationAction{}
	}
	st.notifications[n.ID] = cloneNotification(*n)
	return nil
}

func (r notificationRepo) GetByID(_ context.Context, id int64) (*models.Notification, error) {
	st, _, unlock := r.db.lock()
	defer unlock()
	n, ok := st.notifications[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	out := cloneNotification(n)
	return &out, nil
}

func (r notificationRepo) ListForReceiver(_ context.Context, receiver models.Actor) ([]models.Notification, error) {
	st, _, unlock := r.db.lock()
	defer unlock()
	var out []models.Notification
	for _, n := range st.notifications {
		if n.Receiver == receiver {
			out = append(out, cloneNotification(n))
		}
	}
	newestFirst(out, func(n models.Notification) time.Time { return n.CreatedAt }, func(n models.Notification) int64 { return n.ID })
	return out, nil
}

func (r notificationRepo) MarkRead(_ context.Context, receiver models.Actor, id int64) error {
	st, now, unlock := r.db.lock()
	defer unlock()
	n, ok := st.notifications[id]
	if !ok || n.Receiver != receiver {
		return repositories.ErrNotFound
	}
	n.IsRead, n.UpdatedAt = true, now
	st.notifications[id] = n
	return nil
}

func (r notificationRepo) MarkAllRead(_ context.Context, receiver models.Actor) (int64, error) {
	st, now, unlock := r.db.lock()
	defer unlock()
	var changed int64
	for id, n := range st.notifications {
		if n.Receiver == receiver && !n.IsRead {
			n.IsRead, n.UpdatedAt = true, now
			st.notifications[id] = n
			changed++
		}
	}
	return changed, nil
}

func (r notificationRepo) RecordAction(_ context.Context, id int64, action models.NotificationAction) error {
	st, now, unlock := r.db.lock()
	defer unlock()
	n, ok := st.notifications[id]
	if !ok || n.ActionTaken != nil {
		return repositories.ErrVersionConflict
	}
	n.ActionTaken = &action
	n.IsRead = true
	n.Actions = []models.NotificationAction{}
	n.UpdatedAt = now
	st.notifications[id] = n
	return nil
}

// --- Outbox ---

type outboxRepo struct{ db *database }

func (r outboxRepo) Enqueue(_ context.Context, kind models.OutboxKind, payload any) (*models.OutboxMessage, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal outbox payload: %w", err)
	}
	st, now, unlock := r.db.lock()
	defer unlock()
	m := models.OutboxMessage{ID: st.next("outbox"), Kind: kind, Payload: raw, NextAttemptAt: now, CreatedAt: now}
	st.outbox[m.ID] = m
	return &m, nil
}

func (r outboxRepo) ClaimDue(_ context.Context, now time.Time, lease time.Duration, maxAttempts, limit int) ([]models.OutboxMessage, error) {
	st, _, unlock := r.db.lock()
	defer unlock()
	var due []models.OutboxMessage
	for _, m := range st.outbox {
		if m.SentAt == nil && m.Attempts < maxAttempts && !m.NextAttemptAt.After(now) {
			due = append(due, m)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if !due[i].NextAttemptAt.Equal(due[j].NextAttemptAt) {
			return due[i].NextAttemptAt.Before(due[j].NextAttemptAt)
		}
		return due[i].ID < due[j].ID
	})
	if len(due) > limit {
		due = due[:limit]
	}
	for i := range due {
		due[i].NextAttemptAt = now.Add(lease)
		st.outbox[due[i].ID] = due[i]
	}
	return due, nil
}

func (r outboxRepo) MarkSent(_ context.Context, id int64, at time.Time) error {
	st, _, unlock := r.db.lock()
	defer unlock()
	m, ok := st.outbox[id]
	if !ok {
		return repositories.ErrNotFound
	}
	m.SentAt = &at
	m.Attempts++
	m.LastError = nil
	st.outbox[id] = m
	return nil
}

func (r outboxRepo) MarkFailed(_ context.Context, id int64, cause string, next time.Time) error {
	st, _, unlock := r.db.lock()
	defer unlock()
	m, ok := st.outbox[id]
	if !ok {
		return repositories.ErrNotFound
	}
	m.Attempts++
	m.LastError = &cause
	m.NextAttemptAt = next
	st.outbox[id] = m
	return nil
}

// --- Telegram links ---

type linkRepo struct{ db *database }

func (r linkRepo) Create(_ context.Context, employeeID int64, code string, expiresAt time.Time) (*models.TelegramLink, error) {
	st, now, unlock := r.db.lock()
	defer unlock()
	if _, ok := st.employees[employeeID]; !ok {
		return nil, repositories.ErrNotFound
	}
	for _, l := range st.links {
		if l.Code == code {
			return nil, repositories.ErrUniqueViolation
		}
	}
	l := models.TelegramLink{ID: st.next("links"), EmployeeID: employeeID, Code: code, ExpiresAt: expiresAt, CreatedAt: now}
	st.links[l.ID] = l
	return &l, nil
}

func (r linkRepo) UseByCode(_ context.Context, code string, now time.Time) (*models.TelegramLink, error) {
	st, _, unlock := r.db.lock()
	defer unlock()
	for id, l := range st.links {
		if l.Code != code {
			continue
		}
		if l.Used || now.After(l.ExpiresAt) {
			return nil, repositories.ErrNotFound
		}
		l.Used = true
		st.links[id] = l
		return &l, nil
	}
	return nil, repositories.ErrNotFound
}
