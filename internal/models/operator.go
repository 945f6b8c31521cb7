package models

import "time"

// Operator is a shop employee allowed to read orders through the admin API.
type Operator struct {
	ID           string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Username     string    `json:"username" gorm:"uniqueIndex;type:varchar(100)"`
	PasswordHash string    `json:"-" gorm:"type:varchar(255)"` // bcrypt
	CreatedAt    time.Time `json:"created_at"`
}
