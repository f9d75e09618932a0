package models

import "time"

// TelegramLink is a one-time code an employee sends to the bot to attach
// their Telegram chat to the account.
type TelegramLink struct {
	ID         int64     `json:"id"`
	EmployeeID int64     `json:"employee_id"`
	Code       string    `json:"code"`
	ExpiresAt  time.Time `json:"expires_at"`
	Used       bool      `json:"used"`
	CreatedAt  time.Time `json:"created_at"`
}
