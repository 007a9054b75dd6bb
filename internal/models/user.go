package models

import "time"

type User struct {
	ID             uint      `gorm:"primarykey" json:"id"`
	CreatedAt      time.Time `json:"-"`
	UpdatedAt      time.Time `json:"-"`
	Username       string    `gorm:"size:255;uniqueIndex;not null" json:"username"`
	HashedPassword string    `gorm:"size:255;not null" json:"hashed_password"`
}

// PublicUser is the view of a user that is safe to return to clients.
type PublicUser struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
}

func (u *User) Public() PublicUser {
	return PublicUser{ID: u.ID, Username: u.Username}
}
