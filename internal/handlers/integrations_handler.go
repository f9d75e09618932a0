package handlers

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"taskflow/internal/models"
	"taskflow/internal/services"
)

const maxDigestTasks = 10

// ChatReplier sends a plain text message to a Telegram chat.
type ChatReplier interface {
	SendMessage(chatID int64, text string) error
}

type IntegrationsHandler struct {
	tg     ChatReplier
	links  services.TelegramLinkService
	tasks  services.TaskService
	secret string
	now    func() time.Time
}

func NewIntegrationsHandler(tg ChatReplier, links services.TelegramLinkService, tasks services.TaskService, webhookSecret string) *IntegrationsHandler {
	return &IntegrationsHandler{tg: tg, links: links, tasks: tasks, secret: webhookSecret, now: time.Now}
}

type tgUpdate struct {
	Message *struct {
		Text string `json:"text"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
	} `json:"message"`
}

// normalizeLinkCode strips quotes and punctuation users paste around the
// code and keeps only hex digits.
func normalizeLinkCode(s string) (string, bool) {
	s = strings.Trim(strings.TrimSpace(s), "\"'`<>.,;:()[]{}\\")
	var b strings.Builder
	for _, r := range strings.ToUpper(s) {
		if unicode.Is(unicode.Hex_Digit, r) {
			b.WriteRune(r)
		}
	}
	code := b.String()
	if len(code) != 32 {
		return "", false
	}
	return code, true
}

// Webhook always answers 200 so Telegram does not redeliver the update.
func (h *IntegrationsHandler) Webhook(c *gin.Context) {
	if h.secret != "" {
		got := c.GetHeader("X-Telegram-Bot-Api-Secret-Token")
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
			logrus.Warn("[tg][webhook] bad secret token")
			c.Status(http.StatusUnauthorized)
			return
		}
	}

	var up tgUpdate
	if err := c.ShouldBindJSON(&up); err != nil || up.Message == nil {
		logrus.Debugf("[tg][webhook] ignoring update: %v", err)
		c.Status(http.StatusOK)
		return
	}

	text := strings.TrimSpace(up.Message.Text)
	chatID := up.Message.Chat.ID
	ctx := c.Request.Context()

	switch {
	case strings.HasPrefix(text, "/start"):
		h.reply(chatID, "Hi! To link your TaskFlow account, request a code in the app and send:\n/link <code>")

	case strings.HasPrefix(text, "/link"):
		code, ok := normalizeLinkCode(strings.TrimPrefix(text, "/link"))
		if !ok {
			h.reply(chatID, "The code must be exactly 32 hex characters, e.g.\n/link 0123456789ABCDEF0123456789ABCDEF")
			break
		}
		emp, err := h.links.Link(ctx, code, chatID)
		if err != nil {
			logrus.Infof("[tg][link][err] chat %d: %v", chatID, err)
			h.reply(chatID, "This code is invalid or has expired. Request a new one in the app.")
			break
		}
		h.reply(chatID, "Done! You will now receive TaskFlow notifications here.")
		h.sendDigest(c, chatID, emp.ID)

	case strings.HasPrefix(text, "/tasks"):
		emp, err := h.links.ChatEmployee(ctx, chatID)
		if err != nil {
			h.reply(chatID, "This chat is not linked yet. Use /link <code>.")
			break
		}
		h.sendDigest(c, chatID, emp.ID)

	default:
		h.reply(chatID, "Unknown command. Use /link <code> or /tasks.")
	}

	c.Status(http.StatusOK)
}

func (h *IntegrationsHandler) reply(chatID int64, text string) {
	if err := h.tg.SendMessage(chatID, text); err != nil {
		logrus.Errorf("[tg][reply][err] chat %d: %v", chatID, err)
	}
}

// sendDigest lists the employee's open tasks, soonest due first.
func (h *IntegrationsHandler) sendDigest(c *gin.Context, chatID, employeeID int64) {
	tasks, err := h.tasks.ListAssigned(c.Request.Context(), employeeID)
	if err != nil {
		logrus.Errorf("[tg][digest][err] employee %d: %v", employeeID, err)
		h.reply(chatID, "Could not load your tasks.")
		return
	}
	var open []models.Task
	for _, t := range tasks {
		if t.Status != models.TaskSubmitted {
			open = append(open, t)
		}
	}
	if len(open) == 0 {
		h.reply(chatID, "You have no open tasks.")
		return
	}
	sort.Slice(open, func(i, j int) bool { return open[i].DueDate.Before(open[j].DueDate) })

	h.reply(chatID, digestText(h.now(), open))
}

func digestText(now time.Time, open []models.Task) string {
	var b strings.Builder
	b.WriteString("Your open tasks:\n")
	shown := open
	if len(shown) > maxDigestTasks {
		shown = shown[:maxDigestTasks]
	}
	for _, t := range shown {
		fmt.Fprintf(&b, "- %s (%s) due %s, %s\n", t.Title, t.Status, t.DueDate.Format(time.DateOnly), dueIn(now, t.DueDate))
	}
	if rest := len(open) - len(shown); rest > 0 {
		fmt.Fprintf(&b, "...and %d more\n", rest)
	}
	return b.String()
}

func dueIn(now, due time.Time) string {
	days := int(due.Sub(now).Hours() / 24)
	switch {
	case due.Before(now):
		return fmt.Sprintf("overdue by %d days", -days)
	case days == 0:
		return "today"
	case days == 1:
		return "tomorrow"
	default:
		return fmt.Sprintf("in %d days", days)
	}
}

// RequestLink godoc
// @Summary      Request a Telegram link code
// @Tags         integrations
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]interface{}
// @Router       /integrations/telegram/request-link [post]
func (h *IntegrationsHandler) RequestLink(c *gin.Context) {
	link, err := h.links.RequestLink(c.Request.Context(), callerID(c))
	if err != nil {
		respondError(c, "tg][request-link", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":       link.Code,
		"expires_at": link.ExpiresAt,
		"hint":       "Open the bot chat and send: /link " + link.Code,
	})
}
