package auth

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name             string    `gorm:"not null"`
	Username         string    `gorm:"uniqueIndex;not null"`
	PasswordHash     string    `gorm:"not null"`
	IsActive         bool      `gorm:"not null;default:true"`
	FailedLoginCount int       `gorm:"not null;default:0"`
	LockUntil        *time.Time
	CreatedAt        time.Time
}

func (User) TableName() string {
	return "users"
}

func (u *User) lockedAt(now time.Time) bool {
	return u.LockUntil != nil && now.Before(*u.LockUntil)
}
