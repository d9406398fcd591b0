// file — хранилище пары в JSON-файле на диске: аналог localStorage
// браузера для CLI/демона. Переживает перезапуск процесса.
//
// Запись атомарна: данные пишутся во временный файл в том же каталоге
// и переименовываются поверх основного. Права файла — 0600.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/pribylovaa/pixsort-client/internal/models"
	"github.com/pribylovaa/pixsort-client/internal/store"
)

// Store хранит пару в одном файле.
type Store struct {
	path string
	mu   sync.Mutex
}

// New создаёт хранилище по пути path. Каталог создаётся при первой записи.
func New(path string) (*Store, error) {
	const op = "store.file.New"

	if path == "" {
		return nil, fmt.Errorf("%s: empty path", op)
	}

	return &Store{path: filepath.Clean(path)}, nil
}

// Path возвращает путь к файлу записи.
func (s *Store) Path() string { return s.path }

func (s *Store) Load(ctx context.Context) (*models.CredentialPair, error) {
	const op = "store.file.Load"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
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
	const op = "store.file.Save"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	data, err := json.Marshal(pair)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	tmp, err := os.CreateTemp(dir, ".credentials-*")
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	tmpName := tmp.Name()

	// При любой ошибке ниже временный файл не должен остаться на диске.
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	const op = "store.file.Clear"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
