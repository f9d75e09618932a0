package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskflow/internal/models"
	"taskflow/internal/realtime"
	"taskflow/internal/repositories/memory"
	"taskflow/internal/services"
	"taskflow/internal/storage"
)

type chatLog struct {
	mu   sync.Mutex
	msgs map[int64][]string
}

func (l *chatLog) SendMessage(chatID int64, text string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.msgs == nil {
		l.msgs = map[int64][]string{}
	}
	l.msgs[chatID] = append(l.msgs[chatID], text)
	return nil
}

func (l *chatLog) last(chatID int64) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	m := l.msgs[chatID]
	if len(m) == 0 {
		return ""
	}
	return m[len(m)-1]
}

type noTrigger struct{}

func (noTrigger) Trigger() {}

func newWebhookRouter(t *testing.T, secret string) (*gin.Engine, *chatLog, services.TelegramLinkService, *models.Employee) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := memory.NewStore()
	files, err := storage.NewLocalStore(t.TempDir(), "/files")
	require.NoError(t, err)
	notifier := services.NewNotifier(realtime.NewHub(), false, noTrigger{})

	emp := &models.Employee{EmpID: "D-1", Role: models.RoleDeveloper, Email: "dev@example.com", Status: models.EmployeeActive}
	require.NoError(t, store.Employees().Create(context.Background(), emp))

	log := &chatLog{}
	links := services.NewTelegramLinkService(store, time.Minute)
	h := NewIntegrationsHandler(log, links, services.NewTaskService(store, files, notifier), secret)

	r := gin.New()
	r.POST("/hook", h.Webhook)
	return r, log, links, emp
}

func postUpdate(r *gin.Engine, chatID int64, text string, header string) int {
	body := `{"message":{"text":` + strconv.Quote(text) + `,"chat":{"id":` + strconv.FormatInt(chatID, 10) + `}}}`
	req := httptest.NewRequest(http.MethodPost, "/hook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if header != "" {
		req.Header.Set("X-Telegram-Bot-Api-Secret-Token", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestTelegramWebhook(t *testing.T) {
	r, log, links, emp := newWebhookRouter(t, "")

	assert.Equal(t, http.StatusOK, postUpdate(r, 5, "/tasks", ""))
	assert.Contains(t, log.last(5), "not linked")

	assert.Equal(t, http.StatusOK, postUpdate(r, 5, "/link nope", ""))
	assert.Contains(t, log.last(5), "32 hex")

	link, err := links.RequestLink(context.Background(), emp.ID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, postUpdate(r, 5, "/link «"+strings.ToLower(link.Code)+"»", ""))
	assert.Equal(t, "You have no open tasks.", log.last(5))

	found, err := links.ChatEmployee(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, emp.ID, found.ID)

	assert.Equal(t, http.StatusOK, postUpdate(r, 6, "/link "+link.Code, ""))
	assert.Contains(t, log.last(6), "invalid or has expired")

	assert.Equal(t, http.StatusOK, postUpdate(r, 5, "hello", ""))
	assert.Contains(t, log.last(5), "Unknown command")
}

func TestTelegramWebhookSecret(t *testing.T) {
	r, log, _, _ := newWebhookRouter(t, "hush")

	assert.Equal(t, http.StatusUnauthorized, postUpdate(r, 5, "/start", "wrong"))
	assert.Empty(t, log.last(5))
	assert.Equal(t, http.StatusOK, postUpdate(r, 5, "/start", "hush"))
	assert.Contains(t, log.last(5), "/link")
}

func TestDigestText(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	var open []models.Task
	for i := 0; i < 12; i++ {
		open = append(open, models.Task{Title: "T" + strconv.Itoa(i), Status: models.TaskPending, DueDate: now.Add(time.Duration(i*24+1) * time.Hour)})
	}
	open[0].DueDate = now.Add(-49 * time.Hour)

	text := digestText(now, open)
	assert.Contains(t, text, "- T0 (pending) due 2026-02-27, overdue by 2 days")
	assert.Contains(t, text, "- T1 (pending) due 2026-03-02, tomorrow")
	assert.NotContains(t, text, "T10")
	assert.Contains(t, text, "...and 2 more")
}

func TestNormalizeLinkCode(t *testing.T) {
	code, ok := normalizeLinkCode(` "0123456789abcdef0123456789ABCDEF". `)
	assert.True(t, ok)
	assert.Equal(t, "0123456789ABCDEF0123456789ABCDEF", code)

	_, ok = normalizeLinkCode("ABC")
	assert.False(t, ok)
}
