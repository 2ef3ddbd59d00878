package baseline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	domain "github.com/oshokin/schedule-watch/internal/domain/schedule"
)

// TestFileRepository_NotFound verifies Load returns ErrNotFound for a missing file.
func TestFileRepository_NotFound(t *testing.T) {
	t.Parallel()

	repo := NewFileRepository(filepath.Join(t.TempDir(), "missing.json"))

	s, err := repo.Load(context.Background())
	require.ErrorIs(t, err, ErrNotFound)
	require.Nil(t, s)
}

// TestFileRepository_SaveLoad_Roundtrip ensures Save followed by Load returns an equal snapshot.
func TestFileRepository_SaveLoad_Roundtrip(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "baseline.json")
	repo := NewFileRepository(file)

	want := &domain.Snapshot{
		GeneratedAt: "2025-03-07T18:00:00",
		Weeks:       []domain.Week{"9", "10"},
		LatestWeek:  "10",
	}

	require.NoError(t, repo.Save(context.Background(), want))

	got, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, want, got)

	_, err = os.Stat(file)
	require.NoError(t, err)

	_, err = os.Stat(file + ".tmp")
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestFileRepository_Corrupted reports decode errors distinctly from ErrNotFound.
func TestFileRepository_Corrupted(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "baseline.json")
	require.NoError(t, os.WriteFile(file, []byte("{not json"), 0o600))

	_, err := NewFileRepository(file).Load(context.Background())
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNotFound)
}

// TestFileRepository_SaveNil rejects nil snapshots.
func TestFileRepository_SaveNil(t *testing.T) {
	t.Parallel()

	repo := NewFileRepository(filepath.Join(t.TempDir(), "baseline.json"))
	require.ErrorIs(t, repo.Save(context.Background(), nil), errNilSnapshot)
}
