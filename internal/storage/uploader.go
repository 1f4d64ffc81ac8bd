package storage

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
)

// Uploader is the blob storage collaborator contract: bytes plus an object
// path in, a durable public URL out.
type Uploader interface {
	Upload(ctx context.Context, objectPath string, contents []byte) (string, error)
}

const uploadTimeout = 5 * time.Minute

// BucketOptions configures the HTTP bucket uploader.
type BucketOptions struct {
	// Endpoint is the storage service base URL; objects become publicly
	// readable under <endpoint>/<bucket>/<objectPath>.
	Endpoint   string
	Bucket     string
	Token      string
	HTTPClient *http.Client
	Logger     *logrus.Logger
}

// BucketUploader uploads objects into a publicly readable bucket via HTTP
// PUT. Signed URLs expire after days; a public bucket keeps transcript and
// summary links permanent.
type BucketUploader struct {
	endpoint   string
	bucket     string
	token      string
	httpClient *http.Client
	logger     *logrus.Logger
}

var _ Uploader = (*BucketUploader)(nil)

// NewBucketUploader constructs a bucket uploader.
func NewBucketUploader(opts BucketOptions) (*BucketUploader, error) {
	endpoint := strings.TrimRight(strings.TrimSpace(opts.Endpoint), "/")
	if endpoint == "" {
		return nil, eris.New("storage endpoint is required")
	}
	bucket := strings.Trim(strings.TrimSpace(opts.Bucket), "/")
	if bucket == "" {
		return nil, eris.New("storage bucket is required")
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: uploadTimeout}
	}

	return &BucketUploader{
		endpoint:   endpoint,
		bucket:     bucket,
		token:      opts.Token,
		httpClient: httpClient,
		logger:     opts.Logger,
	}, nil
}

// Upload stores contents under objectPath and returns the object's public
// URL.
func (u *BucketUploader) Upload(ctx context.Context, objectPath string, contents []byte) (string, error) {
	trimmed := strings.TrimLeft(strings.TrimSpace(objectPath), "/")
	if trimmed == "" {
		return "", eris.New("object path is required")
	}

	objectURL := u.endpoint + "/" + u.bucket + "/" + trimmed

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, objectURL, bytes.NewReader(contents))
	if err != nil {
		return "", eris.Wrapf(err, "building upload request: %s", trimmed)
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if u.token != "" {
		req.Header.Set("Authorization", "Bearer "+u.token)
	}

	if u.logger != nil {
		u.logger.WithFields(logrus.Fields{
			"object": trimmed,
			"bucket": u.bucket,
			"bytes":  len(contents),
		}).Info("uploading object")
	}

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return "", eris.Wrapf(err, "uploading object: %s", trimmed)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", eris.Errorf("storage service returned %d for %s: %s", resp.StatusCode, trimmed, body)
	}

	return objectURL, nil
}
