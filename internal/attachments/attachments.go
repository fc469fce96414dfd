// Package attachments stores files uploaded alongside complaints.
package attachments

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// Store saves an object and returns the URL it can be fetched from.
type Store interface {
	Put(ctx context.Context, name, contentType string, r io.Reader) (string, error)
}

// ObjectName is the bucket path of an upload: <user_id>/<unix_ms><ext>.
func ObjectName(userID, filename string, at time.Time) string {
	ext := strings.ToLower(path.Ext(path.Base(strings.ReplaceAll(filename, "\\", "/"))))
	return userID + "/" + strconv.FormatInt(at.UnixMilli(), 10) + ext
}

// GCSStore keeps uploads in a publicly readable Cloud Storage bucket.
type GCSStore struct {
	client *storage.Client
	Bucket string
	// BaseURL prefixes public object URLs.
	BaseURL string
}

// NewGCSStore connects to Cloud Storage. An empty credentialsFile uses the
// application default credentials.
func NewGCSStore(ctx context.Context, bucket, credentialsFile string) (*GCSStore, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS storage client: %w", err)
	}
	return &GCSStore{client: client, Bucket: bucket, BaseURL: "https://storage.googleapis.com"}, nil
}

func (s *GCSStore) Put(ctx context.Context, name, contentType string, r io.Reader) (string, error) {
	w := s.client.Bucket(s.Bucket).Object(name).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "public, max-age=3600"

	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return "", fmt.Errorf("failed to upload gs://%s/%s: %w", s.Bucket, name, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to close GCS writer for %s: %w", name, err)
	}
	log.Printf("INFO: Uploaded gs://%s/%s", s.Bucket, name)
	return s.PublicURL(name), nil
}

func (s *GCSStore) PublicURL(name string) string {
	return PublicURL(s.BaseURL, s.Bucket, name)
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}

// PublicURL joins base, bucket and an object name, escaping each path segment.
func PublicURL(base, bucket, name string) string {
	segments := strings.Split(name, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.TrimRight(base, "/") + "/" + url.PathEscape(bucket) + "/" + strings.Join(segments, "/")
}
