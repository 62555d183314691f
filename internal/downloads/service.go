// Package downloads exposes the destination tree: listing what the
// backends produced, streaming single files and deleting them. The
// listing is built by scanning the folders directly; there is no separate
// database to drift out of sync with the filesystem.
package downloads

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tgmanager/tgmanager/internal/config"
)

// Common errors for download operations.
var (
	// ErrNotFound means the referenced file does not exist under the
	// destination root.
	ErrNotFound = errors.New("download not found")

	// ErrInvalidPath means the folder/name pair escapes the destination
	// root.
	ErrInvalidPath = errors.New("path outside the download root")
)

// Category classifies an entry by its extension.
type Category string

const (
	CategoryVideo    Category = "video"
	CategoryAudio    Category = "audio"
	CategoryImage    Category = "image"
	CategoryPDF      Category = "pdf"
	CategoryDocument Category = "document"
)

var categoryByExt = map[string]Category{
	".mp4": CategoryVideo, ".mkv": CategoryVideo, ".avi": CategoryVideo,
	".webm": CategoryVideo, ".mov": CategoryVideo, ".m4v": CategoryVideo,

	".mp3": CategoryAudio, ".m4a": CategoryAudio, ".flac": CategoryAudio,
	".ogg": CategoryAudio, ".opus": CategoryAudio, ".wav": CategoryAudio,

	".jpg": CategoryImage, ".jpeg": CategoryImage, ".png": CategoryImage,
	".gif": CategoryImage, ".webp": CategoryImage,

	".pdf": CategoryPDF,
}

// Classify maps a filename to its listing category.
func Classify(name string) Category {
	if c, ok := categoryByExt[strings.ToLower(filepath.Ext(name))]; ok {
		return c
	}
	return CategoryDocument
}

// Entry is one file in the destination tree. The ID is derived from the
// folder, name and modification time so it stays stable across listings.
type Entry struct {
	ID         string   `json:"id"`
	Folder     string   `json:"folder"`
	Name       string   `json:"name"`
	Category   Category `json:"category"`
	SizeBytes  int64    `json:"sizeBytes"`
	ModifiedAt int64    `json:"modifiedAt"`
}

// Service scans and serves the destination tree.
type Service struct {
	basePath string
	logger   zerolog.Logger
}

// NewService creates the downloads service over the configured base path.
func NewService(cfg config.DownloadsConfig, log zerolog.Logger) *Service {
	return &Service{
		basePath: cfg.BasePath,
		logger:   log.With().Str("component", "downloads").Logger(),
	}
}

// List walks the destination tree and returns all files, newest first.
func (s *Service) List() ([]Entry, error) {
	var entries []Entry

	err := filepath.WalkDir(s.basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil // vanished between readdir and stat
		}

		rel, err := filepath.Rel(s.basePath, path)
		if err != nil {
			return nil
		}
		folder := filepath.ToSlash(filepath.Dir(rel))
		if folder == "." {
			folder = ""
		}

		modMS := info.ModTime().UnixMilli()
		entries = append(entries, Entry{
			ID:         fmt.Sprintf("%s_%s_%d", folder, d.Name(), modMS),
			Folder:     folder,
			Name:       d.Name(),
			Category:   Classify(d.Name()),
			SizeBytes:  info.Size(),
			ModifiedAt: modMS,
		})
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("scanning download root: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ModifiedAt > entries[j].ModifiedAt
	})
	return entries, nil
}

// Resolve maps a folder/name pair to an absolute path, rejecting anything
// that would escape the destination root.
func (s *Service) Resolve(folder, name string) (string, error) {
	base, err := filepath.Abs(s.basePath)
	if err != nil {
		return "", err
	}

	target := filepath.Clean(filepath.Join(base, filepath.FromSlash(folder), name))
	rel, err := filepath.Rel(base, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrInvalidPath
	}
	return target, nil
}

// Open returns the file for streaming along with its listing entry.
func (s *Service) Open(folder, name string) (*os.File, Entry, error) {
	path, err := s.Resolve(folder, name)
	if err != nil {
		return nil, Entry{}, err
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return nil, Entry{}, ErrNotFound
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, Entry{}, ErrNotFound
	}

	modMS := info.ModTime().UnixMilli()
	return f, Entry{
		ID:         fmt.Sprintf("%s_%s_%d", folder, name, modMS),
		Folder:     folder,
		Name:       name,
		Category:   Classify(name),
		SizeBytes:  info.Size(),
		ModifiedAt: modMS,
	}, nil
}

// Delete removes one file from the destination tree.
func (s *Service) Delete(folder, name string) error {
	path, err := s.Resolve(folder, name)
	if err != nil {
		return err
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return ErrNotFound
	}

	if err := os.Remove(path); err != nil {
		return fmt.Errorf("deleting %s: %w", name, err)
	}
	s.logger.Info().Str("folder", folder).Str("name", name).Msg("download deleted")
	return nil
}
