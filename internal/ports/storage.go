package ports

import (
	"context"
	"io"
)

// UploadInput describes a finished video to place in a dealer's folder.
type UploadInput struct {
	DealerName  string
	FileName    string
	ContentType string
	Reader      io.Reader
	Size        int64
}

// UploadOutput identifies the stored asset.
type UploadOutput struct {
	// FileID is the provider's id for the stored file (Drive fileId, or the
	// relative path on localfs).
	FileID string
	// WebURL is a browser-viewable link to the file, when the provider has one.
	WebURL string
	// Path is the human-readable location, e.g. "Acme Tractor/Post 700.mp4".
	Path string
}

// Asset is one stored file inside a dealer's folder.
type Asset struct {
	ID   string
	Name string
}

// AssetStore is the object-store contract used by the webhook completion and
// archive steps. Implementations: gdrive, localfs.
type AssetStore interface {
	Provider() string

	// UploadVideo stores a video under the dealer's folder.
	UploadVideo(ctx context.Context, in UploadInput) (UploadOutput, error)

	// ListDealerAssets lists the non-archived files in the dealer's folder.
	ListDealerAssets(ctx context.Context, dealerName string) ([]Asset, error)

	// MoveToArchive moves a file into the dealer's archive subfolder.
	MoveToArchive(ctx context.Context, dealerName, fileID string) error
}
