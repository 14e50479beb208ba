package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// PresenceRepository - кто сейчас онлайн. Реализации: память и redis
type PresenceRepository interface {
	Add(ctx context.Context, userID uuid.UUID) error
	Remove(ctx context.Context, userID uuid.UUID) error
	List(ctx context.Context) ([]uuid.UUID, error)
}

type presenceRepository struct {
	users map[uuid.UUID]struct{}
	mu    sync.RWMutex
}

func NewPresenceRepository() PresenceRepository {
	return &presenceRepository{
		users: make(map[uuid.UUID]struct{}),
	}
}

func (p *presenceRepository) Add(_ context.Context, userID uuid.UUID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.users[userID] = struct{}{}

	return nil
}

func (p *presenceRepository) Remove(_ context.Context, userID uuid.UUID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.users, userID)

	return nil
}

func (p *presenceRepository) List(_ context.Context) ([]uuid.UUID, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	ids := make([]uuid.UUID, 0, len(p.users))
	for id := range p.users {
		ids = append(ids, id)
	}

	return ids, nil
}
