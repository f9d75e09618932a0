package services

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"taskflow/internal/models"
	"taskflow/internal/pdf"
	"taskflow/internal/repositories/memory"
	"taskflow/internal/storage"
)

type recordingPublisher struct {
	mu   sync.Mutex
	sent []models.Notification
}

func (p *recordingPublisher) Publish(ns ...models.Notification) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, ns...)
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sent)
}

type memFiles struct {
	mu   sync.Mutex
	puts []string
}

func (f *memFiles) Put(_ context.Context, folder string, up *storage.Upload) (string, error) {
	if _, err := io.Copy(io.Discard, up.Body); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	url := "/files/" + folder + "/" + up.Filename
	f.puts = append(f.puts, url)
	return url, nil
}

type countingTrigger struct{ n int }

func (c *countingTrigger) Trigger() { c.n++ }

type testEnv struct {
	store    *memory.Store
	pub      *recordingPublisher
	files    *memFiles
	trigger  *countingTrigger
	auth     AuthService
	identity IdentityService
	reset    PasswordResetService
	projects ProjectService
	tasks    TaskService
	bugs     BugService
	sugs     SuggestionService
	notifs   NotificationService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.NewStore()
	pub := &recordingPublisher{}
	files := &memFiles{}
	trig := &countingTrigger{}
	auth := &authService{secret: []byte("test"), pmTTL: time.Hour, employeeTTL: 24 * time.Hour, cost: bcrypt.MinCost}
	n := NewNotifier(pub, false, trig)

	return &testEnv{
		store:    store,
		pub:      pub,
		files:    files,
		trigger:  trig,
		auth:     auth,
		identity: NewIdentityService(store, auth, files, trig, "http://localhost/login"),
		reset:    NewPasswordResetService(store, auth, trig, 5*time.Minute),
		projects: NewProjectService(store, pdf.NewReportGenerator("")),
		tasks:    NewTaskService(store, files, n),
		bugs:     NewBugService(store, files, n),
		sugs:     NewSuggestionService(store, n),
		notifs:   NewNotificationService(store, n),
	}
}

func pngUpload(name string) *storage.Upload {
	return &storage.Upload{Filename: name, ContentType: "image/png", Size: 4, Body: strings.NewReader("\x89PNG")}
}

type team struct {
	pm        *models.PM
	dev, test *models.Employee
}

// seedTeam registers a PM with one developer and one tester.
func (e *testEnv) seedTeam(t *testing.T, tag string) team {
	t.Helper()
	ctx := context.Background()
	res, err := e.identity.RegisterPM(ctx, RegisterPMInput{
		Name: "PM " + tag, Email: "pm-" + tag + "@example.com", Mobile: "555", Password: "secret1",
	}, pngUpload("pm.png"))
	require.NoError(t, err)

	dev, err := e.identity.CreateEmployee(ctx, res.PM.ID, CreateEmployeeInput{
		EmpID: "D-" + tag, Password: "devpass", Role: models.RoleDeveloper, Email: "dev-" + tag + "@example.com",
	})
	require.NoError(t, err)
	tester, err := e.identity.CreateEmployee(ctx, res.PM.ID, CreateEmployeeInput{
		EmpID: "T-" + tag, Password: "testpass", Role: models.RoleTester, Email: "qa-" + tag + "@example.com",
	})
	require.NoError(t, err)
	return team{pm: res.PM, dev: dev, test: tester}
}

func (e *testEnv) newProject(t *testing.T, tm team, total int) *models.Project {
	t.Helper()
	p, err := e.projects.Create(context.Background(), tm.pm.ID, CreateProjectInput{Name: "Apollo", TotalTasks: total})
	require.NoError(t, err)
	return p
}

func (e *testEnv) newTask(t *testing.T, tm team, projectID int64, title string) *models.Task {
	t.Helper()
	task, err := e.tasks.Create(context.Background(), tm.pm.ID, CreateTaskInput{
		Title: title, DeveloperID: tm.dev.ID, TesterID: tm.test.ID, ProjectID: projectID,
		DueDate: time.Now().Add(72 * time.Hour),
	})
	require.NoError(t, err)
	return task
}
