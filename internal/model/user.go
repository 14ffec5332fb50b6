package model

import "time"

type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	TgChatID     *string   `json:"tg_chat_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HasChannel reports whether reminders can be delivered to the user.
func (u *User) HasChannel() bool {
	return u != nil && u.TgChatID != nil && *u.TgChatID != ""
}
