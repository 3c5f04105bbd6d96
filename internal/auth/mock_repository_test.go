package auth

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type mockRepository struct {
	users map[string]*User
	mu    sync.RWMutex
}

func newMockRepository() *mockRepository {
	return &mockRepository{users: make(map[string]*User)}
}

func (r *mockRepository) CreateUser(user *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.users[user.Username]; exists {
		return ErrUserExists
	}

	clone := *user
	r.users[user.Username] = &clone
	return nil
}

func (r *mockRepository) GetUserByID(id uuid.UUID) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.ID == id {
			clone := *u
			return &clone, nil
		}
	}
	return nil, ErrUserNotFound
}

func (r *mockRepository) GetUserByUsername(username string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, exists := r.users[username]
	if !exists {
		return nil, ErrUserNotFound
	}
	clone := *user
	return &clone, nil
}

func (r *mockRepository) UpdateLoginAttempts(userID uuid.UUID, failed bool) error {
	return r.mutate(userID, func(u *User) {
		if failed {
			u.FailedLoginCount++
			return
		}
		u.FailedLoginCount = 0
		u.LockUntil = nil
	})
}

func (r *mockRepository) LockAccount(userID uuid.UUID, until time.Time) error {
	return r.mutate(userID, func(u *User) { u.LockUntil = &until })
}

func (r *mockRepository) mutate(userID uuid.UUID, fn func(*User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.ID == userID {
			fn(u)
			return nil
		}
	}
	return ErrUserNotFound
}
