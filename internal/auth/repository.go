package auth

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrUserExists      = errors.New("user already exists")
	ErrInvalidPassword = errors.New("invalid password")
	ErrInactiveUser    = errors.New("user is inactive")
	ErrAccountLocked   = errors.New("account is locked")
)

type Repository interface {
	CreateUser(user *User) error
	GetUserByID(id uuid.UUID) (*User, error)
	GetUserByUsername(username string) (*User, error)
	UpdateLoginAttempts(userID uuid.UUID, failed bool) error
	LockAccount(userID uuid.UUID, until time.Time) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateUser(user *User) error {
	var count int64
	if err := r.db.Model(&User{}).Where("username = ?", user.Username).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrUserExists
	}
	return r.db.Create(user).Error
}

func (r *repository) GetUserByID(id uuid.UUID) (*User, error) {
	return r.first("id = ?", id)
}

func (r *repository) GetUserByUsername(username string) (*User, error) {
	return r.first("username = ?", username)
}

func (r *repository) first(query string, arg any) (*User, error) {
	var user User
	if err := r.db.Where(query, arg).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *repository) UpdateLoginAttempts(userID uuid.UUID, failed bool) error {
	updates := map[string]any{"failed_login_count": 0, "lock_until": nil}
	if failed {
		updates = map[string]any{"failed_login_count": gorm.Expr("failed_login_count + 1")}
	}
	return r.db.Model(&User{}).Where("id = ?", userID).Updates(updates).Error
}

func (r *repository) LockAccount(userID uuid.UUID, until time.Time) error {
	return r.db.Model(&User{}).Where("id = ?", userID).Update("lock_until", until).Error
}
