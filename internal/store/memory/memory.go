// memory — хранилище пары в памяти процесса. Переживает только сам процесс;
// подходит для тестов и одноразовых запусков.
package memory

import (
	"context"
	"sync"

	"github.com/pribylovaa/pixsort-client/internal/models"
	"github.com/pribylovaa/pixsort-client/internal/store"
)

// Store — потокобезопасное хранилище одной пары.
type Store struct {
	mu   sync.RWMutex
	pair *models.CredentialPair
}

// New создаёт пустое хранилище.
func New() *Store {
	return &Store{}
}

func (s *Store) Load(ctx context.Context) (*models.CredentialPair, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.pair == nil {
		return nil, store.ErrNotFound
	}

	cp := *s.pair
	return &cp, nil
}

func (s *Store) Save(ctx context.Context, pair *models.CredentialPair) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	cp := *pair

	s.mu.Lock()
	s.pair = &cp
	s.mu.Unlock()

	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.pair = nil
	s.mu.Unlock()

	return nil
}
