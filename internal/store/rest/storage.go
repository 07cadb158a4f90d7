package rest

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/septivank/asset-tracker/internal/store"
)

// ErrStorageDisabled is returned when no object storage endpoint is configured
var ErrStorageDisabled = errors.New("object storage is not configured")

// Storage is the object storage collaborator used for avatar images
type Storage struct {
	client  *resty.Client
	baseURL string
	bucket  string
	anonKey string
}

// NewStorage creates a storage client for one bucket. An empty baseURL
// yields a disabled storage whose uploads fail with ErrStorageDisabled.
func NewStorage(baseURL, anonKey, bucket string, timeout time.Duration) *Storage {
	baseURL = strings.TrimRight(baseURL, "/")
	s := &Storage{baseURL: baseURL, bucket: bucket, anonKey: anonKey}
	if baseURL != "" {
		s.client = resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetHeader("apikey", anonKey)
	}
	return s
}

// Upload stores data under path in the bucket
func (s *Storage) Upload(ctx context.Context, path, contentType string, data []byte) error {
	if s.client == nil {
		return ErrStorageDisabled
	}
	token, ok := store.BearerFrom(ctx)
	if !ok {
		token = s.anonKey
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetHeader("Content-Type", contentType).
		SetBody(data).
		Post(s.objectPath("/storage/v1/object/", path))
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", path, err)
	}
	if resp.IsError() {
		return decodeError(resp)
	}
	return nil
}

// PublicURL returns the public URL of an object in the bucket
func (s *Storage) PublicURL(path string) string {
	return s.baseURL + s.objectPath("/storage/v1/object/public/", path)
}

func (s *Storage) objectPath(prefix, path string) string {
	segments := strings.Split(strings.TrimLeft(path, "/"), "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return prefix + url.PathEscape(s.bucket) + "/" + strings.Join(segments, "/")
}
