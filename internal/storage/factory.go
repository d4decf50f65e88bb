// Package storage selects and constructs the configured asset store.
package storage

import (
	"context"
	"fmt"

	"dealercast/internal/adapters/storage/gdrive"
	"dealercast/internal/adapters/storage/localfs"
	"dealercast/internal/config"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// Provider is the storage contract used across the API and worker.
type Provider = AssetStore

// NewProvider builds the asset store named by cfg.Provider.
func NewProvider(ctx context.Context, cfg config.StorageConfig) (Provider, error) {
	switch cfg.Provider {
	case "localfs":
		if cfg.LocalRoot == "" {
			return nil, fmt.Errorf("STORAGE_LOCAL_ROOT is required for localfs storage")
		}
		return localfs.New(cfg.LocalRoot), nil

	case "gdrive":
		return newDriveProvider(ctx, cfg.Drive)

	default:
		return nil, fmt.Errorf("unknown storage provider: %s", cfg.Provider)
	}
}

func newDriveProvider(ctx context.Context, cfg config.DriveConfig) (Provider, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RefreshToken == "" {
		return nil, fmt.Errorf("gdrive storage requires GDRIVE_CLIENT_ID, GDRIVE_CLIENT_SECRET and GDRIVE_REFRESH_TOKEN")
	}
	if cfg.DealersFolderID == "" {
		return nil, fmt.Errorf("GDRIVE_DEALERS_FOLDER_ID is required for gdrive storage")
	}

	conf := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{drive.DriveScope},
	}

	tok := &oauth2.Token{RefreshToken: cfg.RefreshToken}
	httpClient := conf.Client(ctx, tok)

	srv, err := drive.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, err
	}

	return gdrive.NewClient(srv, cfg.DealersFolderID, cfg.ArchiveFolderName), nil
}
