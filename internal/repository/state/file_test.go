package state

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestFileRepository_NotFound verifies Load returns ErrNotFound for missing file.
func TestFileRepository_NotFound(t *testing.T) {
	t.Parallel()
	repo := NewFileRepository(filepath.Join(t.TempDir(), "missing.json"))
	s, err := repo.Load(context.Background())
	require.ErrorIs(t, err, ErrNotFound)
	require.Nil(t, s)
}

// TestFileRepository_SaveLoad_Roundtrip ensures Save followed by Load returns equal selections.
func TestFileRepository_SaveLoad_Roundtrip(t *testing.T) {
	t.Parallel()
	file := filepath.Join(t.TempDir(), "state.json")
	repo := NewFileRepository(file)

	want := &Selections{
		Source:  "buttons.conf",
		Groups:  map[string]string{"ant": "A", "amp": "OFF"},
		SavedAt: time.Now().UTC().Truncate(time.Second),
	}

	require.NoError(t, repo.Save(context.Background(), want))

	got, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, want.Source, got.Source)
	require.Equal(t, want.Groups, got.Groups)
	require.Equal(t, want.SavedAt.Unix(), got.SavedAt.Unix())

	_, err = os.Stat(file)
	require.NoError(t, err)
}

// TestFileRepository_Corrupted reports decode failures.
func TestFileRepository_Corrupted(t *testing.T) {
	t.Parallel()
	file := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(file, []byte("{not json"), 0o600))

	_, err := NewFileRepository(file).Load(context.Background())
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNotFound)
}

// TestMemoryRepository keeps copies, not references.
func TestMemoryRepository(t *testing.T) {
	t.Parallel()
	repo := NewMemoryRepository()

	_, err := repo.Load(context.Background())
	require.ErrorIs(t, err, ErrNotFound)

	groups := map[string]string{"ant": "B"}
	require.NoError(t, repo.Save(context.Background(), &Selections{Groups: groups}))

	groups["ant"] = "A"

	got, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, "B", got.Groups["ant"])
}
