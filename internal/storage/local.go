package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/docintake/internal/common"
)

// LocalStore backs ObjectStore with a directory tree. Intended for
// development and tests.
type LocalStore struct {
	baseDir string
}

func NewLocalStore(baseDir string) *LocalStore {
	if baseDir == "" {
		baseDir = "./data"
	}
	return &LocalStore{baseDir: baseDir}
}

func (l *LocalStore) Put(_ context.Context, key string, body []byte, _ string) (string, error) {
	path := l.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create dirs: %w", err)
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return key, nil
}

func (l *LocalStore) Get(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(l.pathFor(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, common.NewAppError("OBJECT_NOT_FOUND", key, common.ErrNotFound)
		}
		return nil, fmt.Errorf("read file: %w", err)
	}
	return data, nil
}

func (l *LocalStore) Delete(_ context.Context, key string) error {
	err := os.Remove(l.pathFor(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove file: %w", err)
	}
	return nil
}

// SignedURL returns a file:// URL; there is no expiry for local files.
func (l *LocalStore) SignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	abs, err := filepath.Abs(l.pathFor(key))
	if err != nil {
		return "", err
	}
	return "file://" + abs, nil
}

func (l *LocalStore) pathFor(key string) string {
	key = filepath.Clean(key)
	key = strings.TrimPrefix(key, string(filepath.Separator))
	key = strings.TrimPrefix(key, "./")
	return filepath.Join(l.baseDir, key)
}
