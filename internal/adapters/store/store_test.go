package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mikey/deadline-triage/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// exerciseRepository checks the behaviour every classifier repository shares
func exerciseRepository(t *testing.T, repo core.ClassifierRepository) {
	t.Helper()
	ctx := context.Background()
	owner := "alice+lists@example.com"

	_, err := repo.Load(ctx, owner)
	assert.ErrorIs(t, err, core.ErrNotFound)

	updated := time.UnixMilli(1767225600000)
	require.NoError(t, repo.Save(ctx, &core.ClassifierRecord{
		Owner:     owner,
		Version:   1,
		Payload:   []byte(`{"v":1}`),
		UpdatedAt: updated,
	}))
	require.NoError(t, repo.Save(ctx, &core.ClassifierRecord{
		Owner:     owner,
		Version:   2,
		Payload:   []byte(`{"v":2}`),
		UpdatedAt: updated,
	}))

	rec, err := repo.Load(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, owner, rec.Owner)
	assert.Equal(t, int64(2), rec.Version)
	assert.Equal(t, []byte(`{"v":2}`), rec.Payload)

	require.NoError(t, repo.Delete(ctx, owner))
	_, err = repo.Load(ctx, owner)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, owner), core.ErrNotFound)

	assert.NoError(t, repo.Close())
}

func TestMemoryStore(t *testing.T) {
	exerciseRepository(t, NewMemoryStore(zap.NewNop()))
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	s := NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	payload := []byte("abc")
	require.NoError(t, s.Save(ctx, &core.ClassifierRecord{Owner: "o", Payload: payload}))
	payload[0] = 'x'

	rec, err := s.Load(ctx, "o")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), rec.Payload)
}

func TestFileStore(t *testing.T) {
	s, err := NewFileStore(filepath.Join(t.TempDir(), "models"), zap.NewNop())
	require.NoError(t, err)
	exerciseRepository(t, s)
}

func TestFileStoreEscapesOwner(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, s.Save(context.Background(), &core.ClassifierRecord{Owner: "../evil/owner", Payload: []byte("{}")}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "..%2Fevil%2Fowner.model.json", entries[0].Name())
}

func TestFileStoreKeepsUnreadableFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bob@example.com.model.json"), []byte("garbage"), 0o600))

	rec, err := s.Load(context.Background(), "bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, []byte("garbage"), rec.Payload)
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "classifiers.db"), zap.NewNop())
	require.NoError(t, err)
	exerciseRepository(t, s)
}
