package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"taskflow/internal/metrics"
	"taskflow/internal/models"
	"taskflow/internal/repositories"
)

// Publisher receives notifications after the transaction that created them
// has committed.
type Publisher interface {
	Publish(notifications ...models.Notification)
}

type NotificationDraft struct {
	Sender   models.Actor
	Receiver models.Actor
	Type     models.NotificationType
	Message  string
	Actions  []models.NotificationAction
	BugID    *int64
}

// Notifier appends notifications inside a caller's transaction and fans them
// out once the caller reports a commit.
type Notifier struct {
	pub      Publisher
	telegram bool
	outbox   OutboxTrigger
}

func NewNotifier(pub Publisher, telegram bool, outbox OutboxTrigger) *Notifier {
	return &Notifier{pub: pub, telegram: telegram, outbox: outbox}
}

func (n *Notifier) append(ctx context.Context, tx repositories.Store, d NotificationDraft) (models.Notification, error) {
	if !d.Sender.Kind.Valid() || !d.Receiver.Kind.Valid() {
		return models.Notification{}, fmt.Errorf("notification actors must be employee or pm, got %s -> %s", d.Sender, d.Receiver)
	}
	if d.Type == "" {
		d.Type = models.NotificationGeneral
	}
	if !d.Type.Valid() {
		return models.Notification{}, validation("unknown notification type %q", d.Type)
	}
	for _, a := range d.Actions {
		if !a.Valid() {
			return models.Notification{}, validation("unknown notification action %q", a)
		}
	}
	notif := models.Notification{
		Sender:   d.Sender,
		Receiver: d.Receiver,
		Type:     d.Type,
		Message:  d.Message,
		Actions:  append([]models.NotificationAction{}, d.Actions...),
		BugID:    d.BugID,
	}
	if err := tx.Notifications().Create(ctx, &notif); err != nil {
		return models.Notification{}, fromRepo(err, "notification")
	}

	if n.telegram && d.Receiver.Kind == models.ActorEmployee {
		emp, err := tx.Employees().GetByID(ctx, d.Receiver.ID)
		if err != nil && !errors.Is(err, repositories.ErrNotFound) {
			return models.Notification{}, err
		}
		if emp != nil && emp.TelegramChatID != 0 {
			payload := models.TelegramPayload{ChatID: emp.TelegramChatID, Text: fmt.Sprintf("[%s] %s", notif.Type, notif.Message)}
			if _, err := tx.Outbox().Enqueue(ctx, models.OutboxTelegram, payload); err != nil {
				return models.Notification{}, err
			}
		}
	}
	return notif, nil
}

// committed must only be called after the surrounding transaction commits.
func (n *Notifier) committed(created ...models.Notification) {
	if len(created) == 0 {
		return
	}
	for _, c := range created {
		metrics.NotificationsCreated.WithLabelValues(string(c.Type)).Inc()
	}
	if n.pub != nil {
		n.pub.Publish(created...)
	}
	if n.telegram && n.outbox != nil {
		n.outbox.Trigger()
	}
}

type NotificationService interface {
	Create(ctx context.Context, d NotificationDraft) (*models.Notification, error)
	ListForReceiver(ctx context.Context, receiver models.Actor) ([]models.Notification, error)
	MarkOneRead(ctx context.Context, receiver models.Actor, id int64) error
	MarkAllRead(ctx context.Context, receiver models.Actor) (int64, error)
	// TakeAction applies Accept or Reject to the bug the notification is
	// about. Repeating the action already taken is a no-op.
	TakeAction(ctx context.Context, caller models.Actor, id int64, action models.NotificationAction, bugID int64) (*models.Notification, *models.Bug, error)
}

type notificationService struct {
	store    repositories.Store
	notifier *Notifier
}

func NewNotificationService(store repositories.Store, n *Notifier) NotificationService {
	return &notificationService{store: store, notifier: n}
}

func (s *notificationService) Create(ctx context.Context, d NotificationDraft) (*models.Notification, error) {
	var created models.Notification
	err := s.store.WithTx(ctx, func(tx repositories.Store) error {
		var err error
		created, err = s.notifier.append(ctx, tx, d)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.notifier.committed(created)
	return &created, nil
}

func (s *notificationService) ListForReceiver(ctx context.Context, receiver models.Actor) ([]models.Notification, error) {
	list, err := s.store.Notifications().ListForReceiver(ctx, receiver)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.Notification{}
	}
	return list, nil
}

func (s *notificationService) MarkOneRead(ctx context.Context, receiver models.Actor, id int64) error {
	return fromRepo(s.store.Notifications().MarkRead(ctx, receiver, id), "notification")
}

func (s *notificationService) MarkAllRead(ctx context.Context, receiver models.Actor) (int64, error) {
	return s.store.Notifications().MarkAllRead(ctx, receiver)
}

var bugStatusForAction = map[models.NotificationAction]models.BugStatus{
	models.ActionAccept: models.BugCompleted,
	models.ActionReject: models.BugPending,
}

func (s *notificationService) TakeAction(ctx context.Context, caller models.Actor, id int64, action models.NotificationAction, bugID int64) (*models.Notification, *models.Bug, error) {
	var (
		notif   *models.Notification
		bug     *models.Bug
		changed bool
	)
	err := s.store.WithTx(ctx, func(tx repositories.Store) error {
		var err error
		notif, err = tx.Notifications().GetByID(ctx, id)
		if err != nil {
			return fromRepo(err, "notification")
		}
		if notif.Receiver != caller {
			return fmt.Errorf("%w: notification belongs to another account", ErrForbidden)
		}
		target, ok := bugStatusForAction[action]
		if !ok {
			return validation("invalid action %q, expected Accept or Reject", action)
		}
		if notif.BugID == nil {
			return validation("notification %d is not about a bug", id)
		}
		if *notif.BugID != bugID {
			return validation("bug %d does not match notification %d", bugID, id)
		}
		bug, err = tx.Bugs().GetByID(ctx, bugID)
		if err != nil {
			return fromRepo(err, "bug")
		}

		// Replaying the action already taken re-applies its status, so the
		// bug ends where the action says even if it was moved since.
		if notif.ActionTaken != nil && *notif.ActionTaken != action {
			return fmt.Errorf("%w: action %s was already taken", ErrConflict, *notif.ActionTaken)
		}
		if notif.ActionTaken == nil {
			if err := tx.Notifications().RecordAction(ctx, id, action); err != nil {
				return fromRepo(err, "notification")
			}
			changed = true
		}
		if bug.Status != target {
			bug.Status = target
			if err := tx.Bugs().UpdateStatus(ctx, bug); err != nil {
				return fromRepo(err, "bug")
			}
			changed = true
		}
		notif, err = tx.Notifications().GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	if changed {
		metrics.WorkflowTransitions.WithLabelValues("bug", string(action)).Inc()
		logrus.Infof("[notification][action] %s took %s on notification %d, bug %d is %s", caller, action, id, bugID, bug.Status)
	}
	return notif, bug, nil
}
