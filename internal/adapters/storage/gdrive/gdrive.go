// Package gdrive implements ports.AssetStore on Google Drive. Each dealer has
// a folder under the configured Dealers root; archived posts live in an
// "Archive" subfolder created on demand.
package gdrive

import (
	"context"
	"fmt"
	"strings"

	"dealercast/internal/ports"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
)

const folderMimeType = "application/vnd.google-apps.folder"

type Client struct {
	srv               *drive.Service
	dealersFolderID   string
	archiveFolderName string
}

func NewClient(srv *drive.Service, dealersFolderID, archiveFolderName string) *Client {
	if archiveFolderName == "" {
		archiveFolderName = "Archive"
	}
	return &Client{
		srv:               srv,
		dealersFolderID:   dealersFolderID,
		archiveFolderName: archiveFolderName,
	}
}

func (c *Client) Provider() string { return "gdrive" }

func (c *Client) UploadVideo(ctx context.Context, in ports.UploadInput) (ports.UploadOutput, error) {
	if in.FileName == "" {
		return ports.UploadOutput{}, fmt.Errorf("file name is required")
	}

	folderID, err := c.findDealerFolder(ctx, in.DealerName)
	if err != nil {
		return ports.UploadOutput{}, err
	}

	file := &drive.File{
		Name:    in.FileName,
		Parents: []string{folderID},
	}

	call := c.srv.Files.Create(file).
		Fields("id, webViewLink").
		SupportsAllDrives(true)
	if in.ContentType != "" {
		call = call.Media(in.Reader, googleapi.ContentType(in.ContentType))
	} else {
		call = call.Media(in.Reader)
	}

	created, err := call.Context(ctx).Do()
	if err != nil {
		return ports.UploadOutput{}, fmt.Errorf("gdrive upload failed: %w", err)
	}

	return ports.UploadOutput{
		FileID: created.Id,
		WebURL: created.WebViewLink,
		Path:   in.DealerName + "/" + in.FileName,
	}, nil
}

func (c *Client) ListDealerAssets(ctx context.Context, dealerName string) ([]ports.Asset, error) {
	folderID, err := c.findDealerFolder(ctx, dealerName)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("'%s' in parents and mimeType != '%s' and trashed = false", folderID, folderMimeType)
	var out []ports.Asset
	pageToken := ""
	for {
		call := c.srv.Files.List().
			Q(query).
			Fields("nextPageToken, files(id, name)").
			SupportsAllDrives(true).
			IncludeItemsFromAllDrives(true).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("gdrive list failed: %w", err)
		}
		for _, f := range resp.Files {
			out = append(out, ports.Asset{ID: f.Id, Name: f.Name})
		}
		if resp.NextPageToken == "" {
			return out, nil
		}
		pageToken = resp.NextPageToken
	}
}

func (c *Client) MoveToArchive(ctx context.Context, dealerName, fileID string) error {
	folderID, err := c.findDealerFolder(ctx, dealerName)
	if err != nil {
		return err
	}

	archiveID, err := c.ensureArchiveFolder(ctx, folderID)
	if err != nil {
		return err
	}

	_, err = c.srv.Files.Update(fileID, nil).
		AddParents(archiveID).
		RemoveParents(folderID).
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("gdrive move to archive failed: %w", err)
	}
	return nil
}

// findDealerFolder resolves the dealer's folder by exact name under the
// Dealers root.
func (c *Client) findDealerFolder(ctx context.Context, dealerName string) (string, error) {
	escaped := strings.ReplaceAll(dealerName, `'`, `\'`)
	query := fmt.Sprintf("name = '%s' and '%s' in parents and mimeType = '%s' and trashed = false",
		escaped, c.dealersFolderID, folderMimeType)

	resp, err := c.srv.Files.List().
		Q(query).
		Fields("files(id, name)").
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("gdrive folder lookup failed: %w", err)
	}
	if len(resp.Files) == 0 {
		return "", fmt.Errorf("dealer folder not found: %s", dealerName)
	}
	return resp.Files[0].Id, nil
}

func (c *Client) ensureArchiveFolder(ctx context.Context, dealerFolderID string) (string, error) {
	query := fmt.Sprintf("name = '%s' and '%s' in parents and mimeType = '%s' and trashed = false",
		c.archiveFolderName, dealerFolderID, folderMimeType)

	resp, err := c.srv.Files.List().
		Q(query).
		Fields("files(id)").
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("gdrive archive lookup failed: %w", err)
	}
	if len(resp.Files) > 0 {
		return resp.Files[0].Id, nil
	}

	created, err := c.srv.Files.Create(&drive.File{
		Name:     c.archiveFolderName,
		MimeType: folderMimeType,
		Parents:  []string{dealerFolderID},
	}).SupportsAllDrives(true).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("gdrive archive create failed: %w", err)
	}
	return created.Id, nil
}
