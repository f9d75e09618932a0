package models

import "time"

type PM struct {
	ID         int64     `json:"id"`
	PMCode     string    `json:"pm_id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Mobile     string    `json:"mobile"`
	ProfilePic string    `json:"profile_pic"`
	Address    *string   `json:"address"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	PasswordHash   string     `json:"-"`
	ResetOTPHash   *string    `json:"-"`
	ResetOTPExpiry *time.Time `json:"-"`
}

type PMLoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}
