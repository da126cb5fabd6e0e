package repository

import (
	"context"
	"sync"

	"github.com/spec-kit/presence-auth-service/internal/clock"
	"github.com/spec-kit/presence-auth-service/internal/domain"
)

type memoryUserRepository struct {
	mu     sync.RWMutex
	clock  clock.Clock
	nextID int64
	byName map[string]*domain.User
}

// NewMemoryUserRepository returns a process-local implementation. Ids start
// at 1 and increase monotonically.
func NewMemoryUserRepository(c clock.Clock) UserRepository {
	if c == nil {
		c = clock.Real{}
	}
	return &memoryUserRepository{clock: c, byName: make(map[string]*domain.User)}
}

func (r *memoryUserRepository) Create(ctx context.Context, username, passwordHash string) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[username]; exists {
		return nil, ErrDuplicateUsername
	}
	r.nextID++
	user := &domain.User{
		ID:           r.nextID,
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    r.clock.Now(),
	}
	r.byName[username] = user

	out := *user
	return &out, nil
}

func (r *memoryUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byName[username]
	if !ok {
		return nil, nil
	}
	out := *user
	return &out, nil
}
