// Package gcsuploader moves extracted document text in and out of Google
// Cloud Storage. It assumes Application Default Credentials are configured.
package gcsuploader

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
)

// StorageService is the subset of object storage the reconciler needs.
type StorageService interface {
	// UploadText stores text under bucket/object and returns its gs:// URI.
	UploadText(ctx context.Context, bucketName, objectName string, text []byte) (string, error)

	// FetchText downloads the object at a gs:// URI.
	FetchText(ctx context.Context, gcsURI string) (string, error)
}

// GCSStorageService is the concrete implementation of StorageService
// that interacts with Google Cloud Storage through a shared client.
type GCSStorageService struct {
	client *storage.Client
}

// NewGCSStorageService creates a service with its own storage client.
func NewGCSStorageService(ctx context.Context) (*GCSStorageService, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewGCSStorageService: create storage client: %w", err)
	}
	return &GCSStorageService{client: client}, nil
}

// Close closes the storage client.
func (s *GCSStorageService) Close() error {
	return s.client.Close()
}

// UploadText delegates to UploadTextWithClient.
func (s *GCSStorageService) UploadText(ctx context.Context, bucketName, objectName string, text []byte) (string, error) {
	return UploadTextWithClient(ctx, s.client, bucketName, objectName, text)
}

// FetchText delegates to FetchTextWithClient.
func (s *GCSStorageService) FetchText(ctx context.Context, gcsURI string) (string, error) {
	return FetchTextWithClient(ctx, s.client, gcsURI)
}

var _ StorageService = (*GCSStorageService)(nil)
