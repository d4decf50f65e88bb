// Package localfs implements ports.AssetStore on the local filesystem,
// mirroring the Drive layout for development and tests.
package localfs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"dealercast/internal/ports"
)

const archiveDir = "Archive"

type Store struct {
	root string
}

func New(root string) *Store {
	return &Store{root: root}
}

func (s *Store) Provider() string { return "localfs" }

func (s *Store) UploadVideo(ctx context.Context, in ports.UploadInput) (ports.UploadOutput, error) {
	if in.FileName == "" {
		return ports.UploadOutput{}, fmt.Errorf("file name is required")
	}

	dir := filepath.Join(s.root, in.DealerName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ports.UploadOutput{}, err
	}

	dest := filepath.Join(dir, in.FileName)
	f, err := os.Create(dest)
	if err != nil {
		return ports.UploadOutput{}, err
	}
	defer f.Close()

	if _, err := io.Copy(f, in.Reader); err != nil {
		return ports.UploadOutput{}, err
	}

	rel := filepath.Join(in.DealerName, in.FileName)
	return ports.UploadOutput{
		FileID: rel,
		WebURL: "file://" + dest,
		Path:   rel,
	}, nil
}

func (s *Store) ListDealerAssets(ctx context.Context, dealerName string) ([]ports.Asset, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, dealerName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("dealer folder not found: %s", dealerName)
		}
		return nil, err
	}

	var out []ports.Asset
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		out = append(out, ports.Asset{
			ID:   filepath.Join(dealerName, e.Name()),
			Name: e.Name(),
		})
	}
	return out, nil
}

func (s *Store) MoveToArchive(ctx context.Context, dealerName, fileID string) error {
	src := filepath.Join(s.root, fileID)
	destDir := filepath.Join(s.root, dealerName, archiveDir)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return err
	}
	return os.Rename(src, filepath.Join(destDir, filepath.Base(fileID)))
}
