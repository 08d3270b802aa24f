// Package snapshot loads the still image that each detection cycle runs on
package snapshot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/bmharper/cimg/v2"
	"github.com/cyclopcam/henhouse/pkg/www"
	"github.com/cyclopcam/henhouse/server/config"
	"github.com/cyclopcam/logs"
)

// Source produces one RGB image per call
type Source interface {
	Load(ctx context.Context) (*cimg.Image, error)
	Describe() string
}

// NewSource picks the file or URL source from the config
func NewSource(log logs.Log, cfg *config.Config) Source {
	if cfg.ImageSource == config.ImageSourceURL {
		return NewURLSource(log, cfg.ImageURL, cfg.FetchTimeout, cfg.MaxImageBytes)
	}
	return NewFileSource(log, cfg.ImageFile)
}

type FileSource struct {
	Log      logs.Log
	Filename string
}

func NewFileSource(log logs.Log, filename string) *FileSource {
	return &FileSource{Log: log, Filename: filename}
}

func (s *FileSource) Describe() string {
	return "file " + s.Filename
}

func (s *FileSource) Load(ctx context.Context) (*cimg.Image, error) {
	raw, err := os.ReadFile(s.Filename)
	if err != nil {
		return nil, fmt.Errorf("Failed to read image file: %w", err)
	}
	img, err := Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("Failed to load image %v: %w", s.Filename, err)
	}
	s.Log.Debugf("Loaded image from %v (%v x %v)", s.Filename, img.Width, img.Height)
	return img, nil
}

type URLSource struct {
	Log      logs.Log
	URL      string
	MaxBytes int64
	client   *http.Client
}

func NewURLSource(log logs.Log, url string, timeout time.Duration, maxBytes int64) *URLSource {
	return &URLSource{
		Log:      log,
		URL:      url,
		MaxBytes: maxBytes,
		client:   &http.Client{Timeout: timeout},
	}
}

func (s *URLSource) Describe() string {
	return "url " + s.URL
}

func (s *URLSource) Load(ctx context.Context) (*cimg.Image, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("Invalid image URL '%v': %w", s.URL, err)
	}
	resp, err := www.Do(s.client, req)
	if err != nil {
		return nil, fmt.Errorf("Failed to fetch image from %v: %w", s.URL, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, s.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("Failed to read image from %v: %w", s.URL, err)
	}
	if int64(len(raw)) > s.MaxBytes {
		return nil, fmt.Errorf("Image at %v is larger than %v bytes", s.URL, s.MaxBytes)
	}
	img, err := Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("Failed to load image from %v: %w", s.URL, err)
	}
	s.Log.Debugf("Fetched image from %v (%v x %v)", s.URL, img.Width, img.Height)
	return img, nil
}
