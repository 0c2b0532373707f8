package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const maxMediaSize = 20 << 20

// MediaDownloader fetches inbound media from the carrier
type MediaDownloader interface {
	Download(ctx context.Context, url string) ([]byte, string, error)
}

// HTTPMediaDownloader downloads media with basic auth
type HTTPMediaDownloader struct {
	username string
	password string
	client   *http.Client
}

// NewHTTPMediaDownloader creates a downloader authenticating as username/password
func NewHTTPMediaDownloader(username, password string, timeout time.Duration) *HTTPMediaDownloader {
	return &HTTPMediaDownloader{
		username: username,
		password: password,
		client:   &http.Client{Timeout: timeout},
	}
}

// Download returns the body and content type of url
func (d *HTTPMediaDownloader) Download(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create HTTP request: %w", err)
	}
	if d.username != "" {
		req.SetBasicAuth(d.username, d.password)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("media download returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMediaSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read media: %w", err)
	}
	if len(data) > maxMediaSize {
		return nil, "", fmt.Errorf("media exceeds %d bytes", maxMediaSize)
	}
	return data, resp.Header.Get("Content-Type"), nil
}
