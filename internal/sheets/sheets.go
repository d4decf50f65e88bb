// Package sheets reads the currently active post numbers from the scheduling
// spreadsheet. Only the archive step consumes this.
package sheets

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"dealercast/internal/config"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"
)

// ActivePostSource yields the set of post numbers that should remain in
// dealer folders.
type ActivePostSource interface {
	ActivePosts(ctx context.Context) (map[int]bool, error)
}

// Client implements ActivePostSource against the Google Sheets API.
type Client struct {
	srv           *sheetsapi.Service
	spreadsheetID string
	readRange     string
}

// NewClient builds a Sheets reader reusing the Drive OAuth credentials.
func NewClient(ctx context.Context, drive config.DriveConfig, cfg config.SheetsConfig) (*Client, error) {
	if cfg.SpreadsheetID == "" {
		return nil, fmt.Errorf("SHEETS_SPREADSHEET_ID is required")
	}

	conf := &oauth2.Config{
		ClientID:     drive.ClientID,
		ClientSecret: drive.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{sheetsapi.SpreadsheetsReadonlyScope},
	}
	httpClient := conf.Client(ctx, &oauth2.Token{RefreshToken: drive.RefreshToken})

	srv, err := sheetsapi.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, err
	}

	return &Client{
		srv:           srv,
		spreadsheetID: cfg.SpreadsheetID,
		readRange:     cfg.ActivePostsRange,
	}, nil
}

// ActivePosts fetches the configured range and parses every cell that looks
// like a post number. Non-numeric cells are ignored.
func (c *Client) ActivePosts(ctx context.Context) (map[int]bool, error) {
	resp, err := c.srv.Spreadsheets.Values.
		Get(c.spreadsheetID, c.readRange).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("sheets read failed: %w", err)
	}

	active := make(map[int]bool)
	for _, row := range resp.Values {
		for _, cell := range row {
			s, ok := cell.(string)
			if !ok {
				continue
			}
			if n, ok := parsePostCell(s); ok {
				active[n] = true
			}
		}
	}
	return active, nil
}

// parsePostCell accepts "700" and "Post 700" style cells.
func parsePostCell(s string) (int, bool) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "Post"))
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

// StaticSource is a fixed ActivePostSource for tests and dev mode.
type StaticSource map[int]bool

func (s StaticSource) ActivePosts(ctx context.Context) (map[int]bool, error) {
	return map[int]bool(s), nil
}
