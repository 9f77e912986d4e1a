// Package playback streams the source media behind timeline assets so a local
// editor UI can preview clips. Range requests are honoured for seeking.
package playback

import (
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/heimdex/heimdex-editor/internal/timeline"
)

// ErrNoMedia reports an asset without a readable source file.
var ErrNoMedia = errors.New("asset has no playable media")

var kindContentTypes = map[timeline.AssetKind]string{
	timeline.AssetVideo:   "video/mp4",
	timeline.AssetAudio:   "audio/mpeg",
	timeline.AssetImage:   "image/jpeg",
	timeline.AssetCaption: "text/plain; charset=utf-8",
}

type Server struct {
	logger *slog.Logger
}

func NewServer(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{logger: logger}
}

// ServeAsset writes the asset's file. Errors are returned before anything is
// written so the caller still owns the response.
func (s *Server) ServeAsset(w http.ResponseWriter, r *http.Request, asset timeline.Asset) error {
	if asset.Path == "" {
		return fmt.Errorf("%w: %s has no path", ErrNoMedia, asset.ID)
	}
	if !filepath.IsAbs(asset.Path) {
		return fmt.Errorf("%w: %s path is not absolute", ErrNoMedia, asset.ID)
	}

	path := filepath.Clean(asset.Path)
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s file missing", ErrNoMedia, asset.ID)
		}
		return fmt.Errorf("failed to open media: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat media: %w", err)
	}
	if !stat.Mode().IsRegular() {
		return fmt.Errorf("%w: %s is not a regular file", ErrNoMedia, asset.ID)
	}

	w.Header().Set("Content-Type", contentType(path, asset.Kind))
	w.Header().Set("Accept-Ranges", "bytes")

	s.logger.Debug("serving asset media", "asset_id", asset.ID, "size", stat.Size(), "range", r.Header.Get("Range"))
	http.ServeContent(w, r, stat.Name(), stat.ModTime(), file)
	return nil
}

func contentType(path string, kind timeline.AssetKind) string {
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		return ct
	}
	if ct, ok := kindContentTypes[kind]; ok {
		return ct
	}
	return "application/octet-stream"
}
