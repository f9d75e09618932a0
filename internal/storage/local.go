package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// LocalStore writes under RootDir; the router serves RootDir at PublicURL.
type LocalStore struct {
	RootDir   string
	PublicURL string
}

func NewLocalStore(rootDir, publicURL string) (*LocalStore, error) {
	if err := os.MkdirAll(rootDir, 0o755); err != nil {
		return nil, fmt.Errorf("create files root: %w", err)
	}
	return &LocalStore{RootDir: rootDir, PublicURL: strings.TrimRight(publicURL, "/")}, nil
}

func (s *LocalStore) Put(ctx context.Context, folder string, up *Upload) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name := objectName(folder, up.Filename)
	full := filepath.Join(s.RootDir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create folder: %w", err)
	}
	out, err := os.Create(full)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	if _, err := io.Copy(out, up.Body); err != nil {
		out.Close()
		_ = os.Remove(full)
		return "", fmt.Errorf("write file: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("close file: %w", err)
	}
	return path.Join(s.PublicURL, name), nil
}
