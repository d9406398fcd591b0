// store задаёт контракт персистентного хранилища пары учётных данных.
//
// В хранилище всегда не более одной записи под фиксированным именем:
// запись есть — сессия есть, записи нет — пользователь не залогинен.
// Каждое сохранение заменяет запись целиком, поэтому при гонке
// конкурентных обновлений побеждает последняя запись.
package store

import (
	"context"
	"errors"

	"github.com/pribylovaa/pixsort-client/internal/models"
)

//go:generate mockgen -destination=../../mocks/mock_store.go -package=mocks github.com/pribylovaa/pixsort-client/internal/store CredentialStore

// DefaultKey — имя записи с парой токенов.
const DefaultKey = "authTokens"

var (
	// ErrNotFound — записи нет (пользователь не залогинен).
	ErrNotFound = errors.New("credentials not found")
	// ErrCorrupted — запись есть, но не декодируется.
	ErrCorrupted = errors.New("credentials record corrupted")
)

// CredentialStore — хранилище одной пары учётных данных.
type CredentialStore interface {
	// Load возвращает сохранённую пару или ErrNotFound.
	Load(ctx context.Context) (*models.CredentialPair, error)
	// Save целиком заменяет сохранённую пару.
	Save(ctx context.Context, pair *models.CredentialPair) error
	// Clear удаляет запись; отсутствие записи ошибкой не считается.
	Clear(ctx context.Context) error
}
