package redis

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/qrave1/PeerCall/internal/infra/adapters/memory"
)

// presenceRepository хранит онлайн пользователей в redis set,
// чтобы несколько инстансов сервера видели общий список
type presenceRepository struct {
	rdb *redis.Client
	key string
}

func NewPresenceRepository(rdb *redis.Client, prefix string) memory.PresenceRepository {
	p := strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if p == "" {
		p = "peercall"
	}

	return &presenceRepository{
		rdb: rdb,
		key: p + ":online",
	}
}

func (p *presenceRepository) Add(ctx context.Context, userID uuid.UUID) error {
	if err := p.rdb.SAdd(ctx, p.key, userID.String()).Err(); err != nil {
		return fmt.Errorf("redis sadd: %w", err)
	}

	return nil
}

func (p *presenceRepository) Remove(ctx context.Context, userID uuid.UUID) error {
	if err := p.rdb.SRem(ctx, p.key, userID.String()).Err(); err != nil {
		return fmt.Errorf("redis srem: %w", err)
	}

	return nil
}

func (p *presenceRepository) List(ctx context.Context) ([]uuid.UUID, error) {
	vals, err := p.rdb.SMembers(ctx, p.key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis smembers: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(vals))
	for _, v := range vals {
		id, err := uuid.Parse(v)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}

	return ids, nil
}

// NewClient подключается к redis и проверяет соединение
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return rdb, nil
}
