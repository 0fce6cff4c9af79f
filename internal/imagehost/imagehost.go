// Package imagehost stores uploaded images and returns their public URL.
//
// The only production backend is S3 (aws-sdk-go). Objects are written under
// images/<yyyy>/<mm>/<xid><ext> with the content type the caller sniffed,
// and the URL handed back is either the configured public base URL (a CDN
// in front of the bucket) or the bucket's virtual-hosted S3 URL.
package imagehost

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/rs/xid"
)

// UploadError is returned for every failed upload. Callers treat it as an
// upstream failure: nothing was stored and a retry may succeed.
type UploadError struct {
	Key string
	Err error
}

func (e *UploadError) Error() string {
	if e.Key == "" {
		return "imagehost: " + e.Err.Error()
	}
	return fmt.Sprintf("imagehost: uploading %s: %v", e.Key, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// ErrNotConfigured is wrapped by Disabled.Upload.
var ErrNotConfigured = errors.New("image host is not configured")

// extensions maps the accepted content types to object key suffixes.
var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Supported reports whether contentType can be uploaded.
func Supported(contentType string) bool {
	_, ok := extensions[contentType]
	return ok
}

// S3 uploads images to a single bucket.
type S3 struct {
	client  s3iface.S3API
	bucket  string
	baseURL string
	now     func() time.Time
}

// NewS3 creates an S3 host from region and bucket. Credentials come from the
// standard AWS chain (env vars, shared config, instance role).
// publicBaseURL may be empty.
func NewS3(region, bucket, publicBaseURL string) (*S3, error) {
	sess, err := session.NewSession(&aws.Config{Region: aws.String(region)})
	if err != nil {
		return nil, fmt.Errorf("imagehost: creating AWS session: %w", err)
	}
	if publicBaseURL == "" {
		publicBaseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", bucket, region)
	}
	return newS3(s3.New(sess), bucket, publicBaseURL), nil
}

func newS3(client s3iface.S3API, bucket, baseURL string) *S3 {
	return &S3{
		client:  client,
		bucket:  bucket,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		now:     time.Now,
	}
}

// Upload stores data and returns its public URL.
func (h *S3) Upload(ctx context.Context, data []byte, contentType string) (string, error) {
	ext, ok := extensions[contentType]
	if !ok {
		return "", &UploadError{Err: fmt.Errorf("unsupported content type %q", contentType)}
	}

	now := h.now().UTC()
	key := fmt.Sprintf("images/%04d/%02d/%s%s", now.Year(), now.Month(), xid.New().String(), ext)

	_, err := h.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(h.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
		CacheControl:  aws.String("public, max-age=31536000, immutable"),
	})
	if err != nil {
		return "", &UploadError{Key: key, Err: err}
	}

	return h.baseURL + "/" + key, nil
}

// Disabled is used when no bucket is configured; every upload fails.
type Disabled struct{}

// Upload always returns an UploadError wrapping ErrNotConfigured.
func (Disabled) Upload(context.Context, []byte, string) (string, error) {
	return "", &UploadError{Err: ErrNotConfigured}
}
