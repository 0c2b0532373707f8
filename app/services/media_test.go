package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalMediaStorage_Put(t *testing.T) {
	root := t.TempDir()
	storage := NewLocalMediaStorage(root, "http://localhost:8080/storage/")

	url, err := storage.Put(context.Background(), "attachments/abc.jpg", []byte("jpeg"))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/storage/attachments/abc.jpg", url)

	data, err := os.ReadFile(filepath.Join(root, "attachments", "abc.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", string(data))
}

func TestLocalMediaStorage_PutStaysInsideRoot(t *testing.T) {
	root := t.TempDir()
	storage := NewLocalMediaStorage(root, "http://cdn")

	url, err := storage.Put(context.Background(), "../../escape.txt", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "http://cdn/escape.txt", url)
	assert.FileExists(t, filepath.Join(root, "escape.txt"))
}

func TestHTTPMediaDownloader_Download(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "AC123" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png-bytes"))
	}))
	defer server.Close()

	d := NewHTTPMediaDownloader("AC123", "secret", time.Second)
	data, contentType, err := d.Download(context.Background(), server.URL+"/media/1")
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))
	assert.Equal(t, "image/png", contentType)

	_, _, err = NewHTTPMediaDownloader("AC123", "wrong", time.Second).Download(context.Background(), server.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
