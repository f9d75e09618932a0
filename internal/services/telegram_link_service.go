package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"taskflow/internal/models"
	"taskflow/internal/repositories"
	"taskflow/internal/utils"
)

// TelegramLinkService pairs an employee account with a Telegram chat through
// a short-lived code the employee sends to the bot.
type TelegramLinkService interface {
	RequestLink(ctx context.Context, employeeID int64) (*models.TelegramLink, error)
	Link(ctx context.Context, code string, chatID int64) (*models.Employee, error)
	ChatEmployee(ctx context.Context, chatID int64) (*models.Employee, error)
}

type telegramLinkService struct {
	store repositories.Store
	ttl   time.Duration
	now   func() time.Time
}

func NewTelegramLinkService(store repositories.Store, ttl time.Duration) TelegramLinkService {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &telegramLinkService{store: store, ttl: ttl, now: time.Now}
}

func (s *telegramLinkService) RequestLink(ctx context.Context, employeeID int64) (*models.TelegramLink, error) {
	code, err := utils.NewLinkCode()
	if err != nil {
		return nil, fmt.Errorf("generate link code: %w", err)
	}
	link, err := s.store.TelegramLinks().Create(ctx, employeeID, code, s.now().Add(s.ttl))
	if err != nil {
		return nil, fromRepo(err, "employee")
	}
	return link, nil
}

func (s *telegramLinkService) Link(ctx context.Context, code string, chatID int64) (*models.Employee, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" || chatID == 0 {
		return nil, validation("code and chat id are required")
	}
	var emp *models.Employee
	err := s.store.WithTx(ctx, func(tx repositories.Store) error {
		link, err := tx.TelegramLinks().UseByCode(ctx, code, s.now())
		if err != nil {
			return fromRepo(err, "link code")
		}
		e, err := tx.Employees().GetByID(ctx, link.EmployeeID)
		if err != nil {
			return fromRepo(err, "employee")
		}
		e.TelegramChatID = chatID
		if err := tx.Employees().UpdateProfile(ctx, e); err != nil {
			return fromRepo(err, "employee")
		}
		emp = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	logrus.Infof("[tg][link] employee %d linked chat %d", emp.ID, chatID)
	return emp, nil
}

// ChatEmployee finds the employee a chat was linked to.
func (s *telegramLinkService) ChatEmployee(ctx context.Context, chatID int64) (*models.Employee, error) {
	if chatID == 0 {
		return nil, fmt.Errorf("%w: employee not found", ErrNotFound)
	}
	emps, err := s.store.Employees().List(ctx, models.EmployeeFilter{TelegramChatID: &chatID})
	if err != nil {
		return nil, err
	}
	if len(emps) == 0 {
		return nil, fmt.Errorf("%w: employee not found", ErrNotFound)
	}
	return &emps[0], nil
}
