package supabase

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	storage "github.com/supabase-community/storage-go"
)

// StorageClient reads and writes objects in Supabase Storage. Buckets are
// passed per call; the service role key is used for every request.
type StorageClient struct {
	client  *storage.Client
	baseURL string
}

func NewStorageClient(supabaseURL, serviceRoleKey string) (*StorageClient, error) {
	baseURL := strings.TrimRight(supabaseURL, "/")
	if baseURL == "" {
		return nil, fmt.Errorf("supabase url is required")
	}
	client := storage.NewClient(baseURL+"/storage/v1", serviceRoleKey, nil)

	return &StorageClient{
		client:  client,
		baseURL: baseURL,
	}, nil
}

// Put uploads data at objectPath, replacing any existing object.
func (s *StorageClient) Put(_ context.Context, bucket, objectPath string, data []byte, contentType string) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	upsert := true
	_, err := s.client.UploadFile(bucket, objectPath, bytes.NewReader(data), storage.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s/%s: %w", bucket, objectPath, err)
	}
	return objectPath, nil
}

func (s *StorageClient) Get(_ context.Context, bucket, objectPath string) ([]byte, error) {
	data, err := s.client.DownloadFile(bucket, objectPath)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s/%s: %w", bucket, objectPath, err)
	}
	return data, nil
}

// Sign returns a time-limited URL for objectPath. When download is set the
// URL asks the browser to save the file under its base name.
func (s *StorageClient) Sign(_ context.Context, bucket, objectPath string, ttl time.Duration, download bool) (string, error) {
	seconds := int(ttl / time.Second)
	if seconds <= 0 {
		seconds = 60
	}
	resp, err := s.client.CreateSignedUrl(bucket, objectPath, seconds)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s/%s: %w", bucket, objectPath, err)
	}
	if resp.SignedURL == "" {
		return "", fmt.Errorf("failed to sign %s/%s: empty signed url", bucket, objectPath)
	}
	signed := s.absolute(resp.SignedURL)
	if download {
		signed = WithDownload(signed, path.Base(objectPath))
	}
	return signed, nil
}

func (s *StorageClient) Remove(_ context.Context, bucket string, objectPaths ...string) error {
	if len(objectPaths) == 0 {
		return nil
	}
	if _, err := s.client.RemoveFile(bucket, objectPaths); err != nil {
		return fmt.Errorf("failed to remove files from %s: %w", bucket, err)
	}
	return nil
}

// absolute resolves the relative signed path some storage versions return.
func (s *StorageClient) absolute(signed string) string {
	if strings.HasPrefix(signed, "http://") || strings.HasPrefix(signed, "https://") {
		return signed
	}
	return s.baseURL + "/storage/v1/" + strings.TrimLeft(signed, "/")
}

// WithDownload adds the download query parameter to a signed URL.
func WithDownload(signed, filename string) string {
	sep := "?"
	if strings.Contains(signed, "?") {
		sep = "&"
	}
	return signed + sep + "download=" + url.QueryEscape(filename)
}
