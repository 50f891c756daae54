package sliceindex

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"golang.org/x/image/bmp"

	"github.com/zjrosen/dcmcache/internal/dicomkit"
	"github.com/zjrosen/dcmcache/internal/domain"
	"github.com/zjrosen/dcmcache/internal/log"
)

// Preview is a decoded slice image on disk.
type Preview struct {
	Path   string `json:"path"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Slice is one valid slice file. Its decoded image and metadata are each
// computed at most once; the outcome, success or failure, is kept for the
// lifetime of the object. Cancellation is not memoized.
type Slice struct {
	name        string
	path        string
	previewPath string
	toolkit     dicomkit.Toolkit

	imageMu sync.Mutex
	image   domain.Result[*Preview]

	metaMu sync.Mutex
	meta   domain.Result[*domain.Metadata]
}

func newSlice(name, path, previewPath string, toolkit dicomkit.Toolkit) *Slice {
	return &Slice{name: name, path: path, previewPath: previewPath, toolkit: toolkit}
}

// Name returns the file name.
func (s *Slice) Name() string { return s.name }

// Path returns the file path inside the dataset directory.
func (s *Slice) Path() string { return s.path }

// DecodedImage returns the slice's preview, decoding it on first access.
func (s *Slice) DecodedImage(ctx context.Context) (*Preview, error) {
	s.imageMu.Lock()
	defer s.imageMu.Unlock()

	if s.image.Computed() {
		return s.image.Get()
	}

	p, err := s.decode(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		s.image = domain.Failure[*Preview](err)
		return nil, err
	}
	s.image = domain.Success(p)
	return p, nil
}

func (s *Slice) decode(ctx context.Context) (*Preview, error) {
	if _, err := os.Stat(s.path); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrFileNotFound, s.name, err)
	}

	if _, err := os.Stat(s.previewPath); err == nil {
		if p, err := readPreview(s.previewPath); err == nil {
			log.Debug(log.CatSlices, "Preview cache hit", "slice", s.name)
			return p, nil
		}
		log.Warn(log.CatSlices, "Discarding unreadable cached preview", "path", s.previewPath)
		_ = os.Remove(s.previewPath)
	}

	out, err := s.toolkit.DecodeToFile(ctx, s.path, s.previewPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrInvalidFile, s.name, err)
	}

	p, err := readPreview(out)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrInvalidImage, s.name, err)
	}
	log.Debug(log.CatSlices, "Decoded slice", "slice", s.name, "width", p.Width, "height", p.Height)
	return p, nil
}

// readPreview checks that path holds a BMP and reads its dimensions.
func readPreview(path string) (*Preview, error) {
	f, err := os.Open(path) //nolint:gosec // G304: preview path under the cache root
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	cfg, err := bmp.DecodeConfig(f)
	if err != nil {
		return nil, err
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, errors.New("empty image")
	}
	return &Preview{Path: path, Width: cfg.Width, Height: cfg.Height}, nil
}

// Metadata returns the slice's typed metadata, extracting it on first access.
func (s *Slice) Metadata(ctx context.Context) (*domain.Metadata, error) {
	s.metaMu.Lock()
	defer s.metaMu.Unlock()

	if s.meta.Computed() {
		return s.meta.Get()
	}

	raw, err := s.toolkit.ExtractMetadata(ctx, s.path)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		err = fmt.Errorf("%w: %s: %w", domain.ErrInvalidFile, s.name, err)
		s.meta = domain.Failure[*domain.Metadata](err)
		return nil, err
	}

	m := domain.Project(raw)
	s.meta = domain.Success(&m)
	return &m, nil
}
