package repository

import (
	"context"
	"sync"
	"time"

	"krishimitra/api/internal/models"
)

// MemoryUserRepository keeps users in process memory. It backs the
// "memory" database driver used for local runs and tests.
type MemoryUserRepository struct {
	mu         sync.RWMutex
	byID       map[string]models.User
	byUsername map[string]string
	byMobile   map[string]string
	now        func() time.Time
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		byID:       make(map[string]models.User),
		byUsername: make(map[string]string),
		byMobile:   make(map[string]string),
		now:        time.Now,
	}
}

func (r *MemoryUserRepository) Create(_ context.Context, user models.User) (models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byUsername[user.Username]; ok {
		return models.User{}, ErrUserConflict
	}
	if _, ok := r.byMobile[user.Mobile]; ok {
		return models.User{}, ErrUserConflict
	}
	if _, ok := r.byID[user.ID]; ok {
		return models.User{}, ErrUserConflict
	}

	user.CreatedAt = r.now().UTC()
	user.LastLoginAt = nil
	r.byID[user.ID] = user
	r.byUsername[user.Username] = user.ID
	r.byMobile[user.Mobile] = user.ID
	return user, nil
}

func (r *MemoryUserRepository) ExistsByUsernameOrMobile(_ context.Context, username string, mobile string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, byName := r.byUsername[username]
	_, byMobile := r.byMobile[mobile]
	return byName || byMobile, nil
}

func (r *MemoryUserRepository) FindByUsername(_ context.Context, username string) (models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byUsername[username]
	if !ok {
		return models.User{}, ErrUserNotFound
	}
	return copyUser(r.byID[id]), nil
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id string) (models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byID[id]
	if !ok {
		return models.User{}, ErrUserNotFound
	}
	return copyUser(user), nil
}

func (r *MemoryUserRepository) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	at = at.UTC()
	user.LastLoginAt = &at
	r.byID[id] = user
	return nil
}

func copyUser(user models.User) models.User {
	if user.LastLoginAt != nil {
		at := *user.LastLoginAt
		user.LastLoginAt = &at
	}
	return user
}
