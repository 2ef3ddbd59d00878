package baseline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/oshokin/schedule-watch/internal/config"
	domain "github.com/oshokin/schedule-watch/internal/domain/schedule"
)

// Repository defines persistence operations for the baseline snapshot.
type Repository interface {
	Load(ctx context.Context) (*domain.Snapshot, error)
	Save(ctx context.Context, snapshot *domain.Snapshot) error
}

// FileRepository persists the baseline to a JSON file on disk,
// in the same shape as the published resource.
type FileRepository struct {
	// path is the filesystem location of the JSON baseline file.
	path string
	// mu serializes access to the file.
	mu sync.Mutex
}

var (
	// ErrNotFound is returned when no baseline has been stored yet.
	ErrNotFound = errors.New("baseline not found")
	// errNilSnapshot is returned when asked to save nothing.
	errNilSnapshot = errors.New("snapshot is nil")
)

// NewFileRepository creates a repository that reads/writes JSON at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Load reads the baseline from disk.
func (r *FileRepository) Load(_ context.Context) (*domain.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read baseline file: %w", err)
	}

	snapshot, err := domain.Decode(contents)
	if err != nil {
		return nil, fmt.Errorf("decode baseline file: %w", err)
	}

	return snapshot, nil
}

// Save writes the baseline to disk. The file is replaced atomically.
func (r *FileRepository) Save(_ context.Context, snapshot *domain.Snapshot) error {
	if snapshot == nil {
		return errNilSnapshot
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("encode baseline: %w", err)
	}

	tmp := r.path + ".tmp"
	if err = os.WriteFile(tmp, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write baseline file: %w", err)
	}

	if err = os.Rename(tmp, r.path); err != nil {
		_ = os.Remove(tmp)

		return fmt.Errorf("replace baseline file: %w", err)
	}

	return nil
}
