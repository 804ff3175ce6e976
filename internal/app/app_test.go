package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/florstein/ledger-reconciler/internal/config"
	"github.com/florstein/ledger-reconciler/internal/infra/inmemory"
	"github.com/florstein/ledger-reconciler/internal/infra/sqlstore"
)

// mockStorage implements gcsuploader.StorageService.
type mockStorage struct {
	UploadTextFunc func(ctx context.Context, bucketName, objectName string, text []byte) (string, error)
	FetchTextFunc  func(ctx context.Context, gcsURI string) (string, error)
}

func (m *mockStorage) UploadText(ctx context.Context, bucketName, objectName string, text []byte) (string, error) {
	if m.UploadTextFunc != nil {
		return m.UploadTextFunc(ctx, bucketName, objectName, text)
	}
	return "", nil
}

func (m *mockStorage) FetchText(ctx context.Context, gcsURI string) (string, error) {
	if m.FetchTextFunc != nil {
		return m.FetchTextFunc(ctx, gcsURI)
	}
	return "", nil
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		store, err := OpenStore(ctx, &config.Config{Store: config.StoreConfig{Driver: config.DriverMemory}})
		require.NoError(t, err)
		assert.IsType(t, &inmemory.Store{}, store)
		require.NoError(t, EnsureSchema(ctx, store))
	})

	t.Run("sqlite", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "ledger.db")
		store, err := OpenStore(ctx, &config.Config{Store: config.StoreConfig{Driver: config.DriverSQLite, SQLitePath: path}})
		require.NoError(t, err)
		defer store.Close()

		assert.IsType(t, &sqlstore.Store{}, store)
		require.NoError(t, EnsureSchema(ctx, store))
		assert.FileExists(t, path)
	})

	t.Run("unknown driver", func(t *testing.T) {
		_, err := OpenStore(ctx, &config.Config{Store: config.StoreConfig{Driver: "mongo"}})
		assert.Error(t, err)
	})
}

func TestTextSource_Read(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "receipt.txt")
	require.NoError(t, os.WriteFile(path, []byte("Comprobante de pago"), 0o600))

	var fetched string
	storage := &mockStorage{
		FetchTextFunc: func(ctx context.Context, gcsURI string) (string, error) {
			fetched = gcsURI
			if gcsURI == "gs://bucket/missing.txt" {
				return "", errors.New("object not found")
			}
			return "remote text", nil
		},
	}

	tests := []struct {
		name    string
		source  TextSource
		uri     string
		want    string
		wantErr bool
	}{
		{"local file", TextSource{}, path, "Comprobante de pago", false},
		{"missing local file", TextSource{}, filepath.Join(t.TempDir(), "nope.txt"), "", true},
		{"gcs object", TextSource{Storage: storage}, "gs://bucket/a.txt", "remote text", false},
		{"gcs error", TextSource{Storage: storage}, "gs://bucket/missing.txt", "", true},
		{"gcs without storage", TextSource{}, "gs://bucket/a.txt", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.source.Read(ctx, tt.uri)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, "gs://bucket/missing.txt", fetched)
}
