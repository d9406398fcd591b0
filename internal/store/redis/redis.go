// redis — хранилище пары в Redis. Позволяет нескольким процессам клиента
// (демон, CLI-утилиты) разделять одну сессию.
//
// Пара хранится строкой JSON под одним ключом. Ключ по умолчанию —
// "pixsort:authTokens". TTL опционален: 0 — запись живёт до logout.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pribylovaa/pixsort-client/internal/models"
	"github.com/pribylovaa/pixsort-client/internal/store"
)

const defaultKey = "pixsort:" + store.DefaultKey

// Store — хранилище одной пары в Redis.
type Store struct {
	rdb *redis.Client
	key string
	ttl time.Duration
}

// New создаёт клиент Redis из URL (например, redis://:pass@host:6379/0)
// и проверяет соединение. Если key пустой — используется "pixsort:authTokens".
func New(ctx context.Context, redisURL, key string, ttl time.Duration) (*Store, error) {
	const op = "store.redis.New"

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rdb := redis.NewClient(opt)

	// Fail-fast на старте.
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%s: ping: %w", op, err)
	}

	return NewWithClient(rdb, key, ttl), nil
}

// NewWithClient оборачивает уже созданный клиент.
func NewWithClient(rdb *redis.Client, key string, ttl time.Duration) *Store {
	if key == "" {
		key = defaultKey
	}

	return &Store{rdb: rdb, key: key, ttl: ttl}
}

// Key возвращает ключ записи.
func (s *Store) Key() string { return s.key }

func (s *Store) Load(ctx context.Context) (*models.CredentialPair, error) {
	const op = "store.redis.Load"

	data, err := s.rdb.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, store.ErrNotFound
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var pair models.CredentialPair
	if err := json.Unmarshal(data, &pair); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, store.ErrCorrupted, err)
	}

	return &pair, nil
}

func (s *Store) Save(ctx context.Context, pair *models.CredentialPair) error {
	const op = "store.redis.Save"

	data, err := json.Marshal(pair)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.rdb.Set(ctx, s.key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	const op = "store.redis.Clear"

	if err := s.rdb.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Close закрывает клиент Redis.
func (s *Store) Close() error { return s.rdb.Close() }
