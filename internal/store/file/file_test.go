package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pribylovaa/pixsort-client/internal/models"
	"github.com/pribylovaa/pixsort-client/internal/store"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "nested", "auth_tokens.json"))
	require.NoError(t, err)
	return s
}

func TestNew_EmptyPath(t *testing.T) {
	t.Parallel()

	_, err := New("")
	require.Error(t, err)
}

func TestStore_Load_Absent(t *testing.T) {
	t.Parallel()

	_, err := newStore(t).Load(context.Background())
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_SaveLoad_RoundTrip_AndPermissions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newStore(t)

	pair := &models.CredentialPair{
		AccessToken:  "access",
		RefreshToken: "refresh",
		User:         models.UserSummary{ID: 3, Username: "alice"},
	}
	require.NoError(t, s.Save(ctx, pair))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, pair, got)

	info, err := os.Stat(s.Path())
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	// Временных файлов после записи не остаётся.
	entries, err := os.ReadDir(filepath.Dir(s.Path()))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestStore_Save_ReplacesWholeRecord(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.Save(ctx, &models.CredentialPair{AccessToken: "a1", RefreshToken: "r1"}))
	require.NoError(t, s.Save(ctx, &models.CredentialPair{AccessToken: "a2"}))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, "a2", got.AccessToken)
	require.Empty(t, got.RefreshToken)
}

func TestStore_Clear_Idempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.Clear(ctx))
	require.NoError(t, s.Save(ctx, &models.CredentialPair{AccessToken: "a"}))
	require.NoError(t, s.Clear(ctx))
	require.NoError(t, s.Clear(ctx))

	_, err := s.Load(ctx)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_Load_Corrupted(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(s.Path()), 0o700))
	require.NoError(t, os.WriteFile(s.Path(), []byte("{broken"), 0o600))

	_, err := s.Load(context.Background())
	require.ErrorIs(t, err, store.ErrCorrupted)
}
