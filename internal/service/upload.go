package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/postvault/internal/apperror"
	"github.com/sakif/postvault/internal/imagehost"
)

// MaxUploadSize is the largest image accepted, in bytes (5 MiB).
const MaxUploadSize = 5 << 20

// ImageHost stores an image and returns its public URL.
// *imagehost.S3 and imagehost.Disabled implement it.
type ImageHost interface {
	Upload(ctx context.Context, data []byte, contentType string) (string, error)
}

// UploadService validates images and hands them to the image host.
// It never retries: a failed upload is reported and the client decides
// whether to continue without an image.
type UploadService struct {
	host   ImageHost
	logger *slog.Logger
}

func NewUploadService(host ImageHost, logger *slog.Logger) *UploadService {
	return &UploadService{host: host, logger: logger}
}

// Upload stores data and returns the public URL.
// contentType must be a sniffed type, not the one the client claimed.
func (s *UploadService) Upload(ctx context.Context, data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", apperror.ValidationFailed("file", "file is empty")
	}
	if len(data) > MaxUploadSize {
		return "", apperror.ValidationFailed("file",
			fmt.Sprintf("image must be %d MiB or smaller", MaxUploadSize>>20))
	}
	if !imagehost.Supported(contentType) {
		return "", apperror.ValidationFailed("file", "only JPEG, PNG, GIF and WebP images are accepted")
	}

	url, err := s.host.Upload(ctx, data, contentType)
	if err != nil {
		s.logger.Error("image upload failed",
			slog.String("contentType", contentType),
			slog.Int("bytes", len(data)),
			slog.String("error", err.Error()),
		)
		return "", apperror.Upstream("image host", err)
	}

	s.logger.Info("image uploaded", slog.String("url", url))
	return url, nil
}
