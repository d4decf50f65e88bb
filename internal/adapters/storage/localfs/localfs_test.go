package localfs

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealercast/internal/ports"
)

func TestUploadListArchive(t *testing.T) {
	root := t.TempDir()
	s := New(root)
	ctx := context.Background()

	out, err := s.UploadVideo(ctx, ports.UploadInput{
		DealerName:  "Acme Motors",
		FileName:    "Post 700.mp4",
		ContentType: "video/mp4",
		Reader:      strings.NewReader("mp4-bytes"),
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("Acme Motors", "Post 700.mp4"), out.FileID)
	assert.Equal(t, out.FileID, out.Path)

	data, err := os.ReadFile(filepath.Join(root, "Acme Motors", "Post 700.mp4"))
	require.NoError(t, err)
	assert.Equal(t, "mp4-bytes", string(data))

	assets, err := s.ListDealerAssets(ctx, "Acme Motors")
	require.NoError(t, err)
	require.Len(t, assets, 1)
	assert.Equal(t, "Post 700.mp4", assets[0].Name)

	require.NoError(t, s.MoveToArchive(ctx, "Acme Motors", assets[0].ID))

	// Gone from the listing, present in Archive/.
	assets, err = s.ListDealerAssets(ctx, "Acme Motors")
	require.NoError(t, err)
	assert.Empty(t, assets)

	_, err = os.Stat(filepath.Join(root, "Acme Motors", "Archive", "Post 700.mp4"))
	assert.NoError(t, err)
}

func TestUploadRequiresFileName(t *testing.T) {
	s := New(t.TempDir())
	_, err := s.UploadVideo(context.Background(), ports.UploadInput{DealerName: "Acme"})
	assert.Error(t, err)
}

func TestListUnknownDealer(t *testing.T) {
	s := New(t.TempDir())
	_, err := s.ListDealerAssets(context.Background(), "Nobody")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dealer folder not found")
}
