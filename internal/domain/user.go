package domain

import "time"

type User struct {
	ID               string        `json:"id"`
	Email            string        `json:"email"`
	Username         string        `json:"username"`
	DisplayName      string        `json:"display_name,omitempty"`
	PasswordHash     string        `json:"-"`
	EmailVerifiedAt  *time.Time    `json:"email_verified_at,omitempty"`
	ConfirmCodeHash  string        `json:"-"`
	ConfirmExpiresAt *time.Time    `json:"-"`
	BlockedDates     []CalendarDay `json:"blockedDates"`
	CreatedAt        time.Time     `json:"created_at"`
}

// Confirmed indica si el usuario verifico su email.
func (u User) Confirmed() bool {
	return u.EmailVerifiedAt != nil
}

// PublicUser es la vista de un usuario expuesta a otros usuarios.
type PublicUser struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name,omitempty"`
}

func (u User) Public() PublicUser {
	return PublicUser{ID: u.ID, Username: u.Username, DisplayName: u.DisplayName}
}
