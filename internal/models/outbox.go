package models

import (
	"encoding/json"
	"time"
)

type OutboxKind string

const (
	OutboxEmail    OutboxKind = "email"
	OutboxTelegram OutboxKind = "telegram"
)

// OutboxMessage is a side effect recorded in the same transaction as the
// mutation that caused it and delivered later, at least once.
type OutboxMessage struct {
	ID            int64           `json:"id"`
	Kind          OutboxKind      `json:"kind"`
	Payload       json.RawMessage `json:"payload"`
	Attempts      int             `json:"attempts"`
	LastError     *string         `json:"last_error,omitempty"`
	NextAttemptAt time.Time       `json:"next_attempt_at"`
	SentAt        *time.Time      `json:"sent_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

type EmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

type TelegramPayload struct {
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}
