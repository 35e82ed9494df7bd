package internal

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ImageStore keeps extracted image bytes under a caller-chosen name and
// returns where they ended up.
type ImageStore interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
}

// DirImageStore writes images into a single local directory.
type DirImageStore struct {
	dir string
}

func NewDirImageStore(dir string) (*DirImageStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create images dir: %w", err)
	}
	return &DirImageStore{dir: dir}, nil
}

func (s *DirImageStore) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path := filepath.Join(s.dir, filepath.Base(name))
	out, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		os.Remove(path)
		return "", err
	}
	if err := out.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

// ImageFileName builds the generated key for one image of a material.
func ImageFileName(materialID int64, page int, ext string) string {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	if ext == "" {
		ext = "bin"
	}
	return fmt.Sprintf("material_%d_page_%d_%s.%s", materialID, page, uuid.NewString(), ext)
}
