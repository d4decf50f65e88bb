// Package archive tidies dealer folders after an upload: videos for posts no
// longer on the active schedule move into the dealer's Archive subfolder. The
// whole step is best effort and never fails the upload that triggered it.
package archive

import (
	"context"
	"regexp"
	"strconv"

	"dealercast/internal/pkg/logger"
	"dealercast/internal/ports"
	"dealercast/internal/sheets"
)

// postNamePattern matches stored video names like "Post 700.mp4".
var postNamePattern = regexp.MustCompile(`^Post\s+(\d+)\b`)

type Archiver struct {
	store ports.AssetStore
	posts sheets.ActivePostSource
	log   *logger.Logger
}

func New(store ports.AssetStore, posts sheets.ActivePostSource, log *logger.Logger) *Archiver {
	return &Archiver{store: store, posts: posts, log: log.WithComponent("archive")}
}

// SweepDealer moves every video in the dealer's folder whose post number is
// neither active nor the just-uploaded currentPost. Individual move failures
// are logged and skipped; the error return covers only the listing phase.
func (a *Archiver) SweepDealer(ctx context.Context, dealerName string, currentPost int) (int, error) {
	active, err := a.posts.ActivePosts(ctx)
	if err != nil {
		return 0, err
	}

	assets, err := a.store.ListDealerAssets(ctx, dealerName)
	if err != nil {
		return 0, err
	}

	log := a.log.FromContext(ctx)
	moved := 0
	for _, asset := range assets {
		post, ok := parsePostNumber(asset.Name)
		if !ok {
			continue
		}
		if post == currentPost || active[post] {
			continue
		}
		if err := a.store.MoveToArchive(ctx, dealerName, asset.ID); err != nil {
			log.Warn("archive move failed",
				"dealer", dealerName, "asset", asset.Name, "error", err.Error())
			continue
		}
		moved++
	}
	if moved > 0 {
		log.Info("archived stale videos", "dealer", dealerName, "count", moved)
	}
	return moved, nil
}

// parsePostNumber extracts the post number from a stored video name.
func parsePostNumber(name string) (int, bool) {
	m := postNamePattern.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
