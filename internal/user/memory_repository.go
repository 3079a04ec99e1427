package user

import (
	"context"
	"strings"
	"sync"
	"time"
)

type memoryRepository struct {
	mu    sync.RWMutex
	users map[string]User
}

// NewMemoryRepository builds an in-memory user store for development and tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{users: make(map[string]User)}
}

func (r *memoryRepository) Create(_ context.Context, u User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkUniqueLocked("", u.Address, u.Email, u.Username); err != nil {
		return err
	}
	r.users[u.ID] = u
	return nil
}

func (r *memoryRepository) FindByID(_ context.Context, id string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (r *memoryRepository) FindByAddress(_ context.Context, address string) (User, error) {
	return r.findBy(func(u User) bool { return u.Address != nil && strings.EqualFold(*u.Address, address) })
}

func (r *memoryRepository) FindByEmail(_ context.Context, email string) (User, error) {
	return r.findBy(func(u User) bool { return u.Email != nil && *u.Email == email })
}

func (r *memoryRepository) FindByUsername(_ context.Context, username string) (User, error) {
	return r.findBy(func(u User) bool { return u.Username != nil && *u.Username == username })
}

func (r *memoryRepository) FindByEmailVerifyToken(_ context.Context, token string) (User, error) {
	return r.findBy(func(u User) bool { return u.EmailVerifyToken != nil && *u.EmailVerifyToken == token })
}

func (r *memoryRepository) Update(_ context.Context, id string, upd Update) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	if upd.empty() {
		return u, nil
	}
	next := u
	upd.apply(&next)
	if err := r.checkUniqueLocked(id, next.Address, next.Email, next.Username); err != nil {
		return User{}, err
	}
	next.UpdatedAt = time.Now().UTC()
	r.users[id] = next
	return next, nil
}

func (r *memoryRepository) findBy(match func(User) bool) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if match(u) {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

// checkUniqueLocked mirrors the unique indexes of the SQL stores. Caller holds mu.
func (r *memoryRepository) checkUniqueLocked(selfID string, address, email, username *string) error {
	for id, other := range r.users {
		if id == selfID {
			continue
		}
		if address != nil && other.Address != nil && strings.EqualFold(*other.Address, *address) {
			return ErrAddressTaken
		}
		if email != nil && other.Email != nil && *other.Email == *email {
			return ErrEmailTaken
		}
		if username != nil && other.Username != nil && *other.Username == *username {
			return ErrUsernameTaken
		}
	}
	return nil
}
