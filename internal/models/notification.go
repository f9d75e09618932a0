package models

import "time"

type NotificationType string

const (
	NotificationBug              NotificationType = "Bug"
	NotificationTask             NotificationType = "Task"
	NotificationProject          NotificationType = "Project"
	NotificationSuggestionReview NotificationType = "SuggestionReview"
	NotificationGeneral          NotificationType = "General"
)

func (t NotificationType) Valid() bool {
	switch t {
	case NotificationBug, NotificationTask, NotificationProject, NotificationSuggestionReview, NotificationGeneral:
		return true
	}
	return false
}

// NotificationAction is a button the receiver can press on a notification.
type NotificationAction string

const (
	ActionAccept NotificationAction = "Accept"
	ActionReject NotificationAction = "Reject"
)

func (a NotificationAction) Valid() bool {
	return a == ActionAccept || a == ActionReject
}

type Notification struct {
	ID          int64                `json:"id"`
	Sender      Actor                `json:"sender"`
	Receiver    Actor                `json:"receiver"`
	Type        NotificationType     `json:"type"`
	Message     string               `json:"message"`
	IsRead      bool                 `json:"is_read"`
	Actions     []NotificationAction `json:"actions"`
	ActionTaken *NotificationAction  `json:"action_taken"`
	BugID       *int64               `json:"bug_id"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}
