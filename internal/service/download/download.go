package download

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/jgivc/ghrelay/internal/common"
	"github.com/jgivc/ghrelay/internal/entity"
)

const (
	serviceName = "download"

	defaultFileName    = "download"
	defaultContentType = "application/octet-stream"
)

type StreamSource interface {
	Stream(ctx context.Context, rawURL string) (*http.Response, error)
}

type downloadService struct {
	src StreamSource
	log *slog.Logger
}

func NewDownloadService(src StreamSource, log *slog.Logger) *downloadService {
	return &downloadService{
		src: src,
		log: log.With(slog.String("service", serviceName)),
	}
}

// Download opens fileURL for relaying. The caller owns the returned body.
func (d *downloadService) Download(ctx context.Context, fileURL, name string) (*entity.Download, error) {
	if fileURL == "" {
		return nil, fmt.Errorf("download url is required: %w", common.ErrInvalidArgument)
	}

	resp, err := d.src.Stream(ctx, fileURL)
	if err != nil {
		d.log.Error("Cannot open download", slog.String("url", fileURL), slog.Any("error", err))

		return nil, fmt.Errorf("cannot download %s: %w", fileURL, err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = defaultContentType
	}

	return &entity.Download{
		FileName:    FileName(fileURL, name),
		ContentType: contentType,
		Size:        resp.ContentLength,
		Body:        resp.Body,
	}, nil
}

// FileName picks the attachment name: the suggested one, or the last segment of the url path.
func FileName(fileURL, suggested string) string {
	if name := cleanName(suggested); name != "" {
		return name
	}

	if u, err := url.Parse(fileURL); err == nil {
		if name := cleanName(path.Base(u.Path)); name != "" {
			return name
		}
	}

	return defaultFileName
}

func cleanName(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}

	name = strings.Map(func(r rune) rune {
		if r == '"' || r < 0x20 || r == 0x7f {
			return -1
		}

		return r
	}, name)

	if name == "." || name == ".." {
		return ""
	}

	return name
}
