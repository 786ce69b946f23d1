package bootstrap

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Preloader warms an image so the first paint does not wait on it.
type Preloader interface {
	Preload(ctx context.Context, url string) error
}

// HTTPPreloader fetches the image and discards the body.
type HTTPPreloader struct {
	Client   *http.Client
	MaxBytes int64
}

func NewHTTPPreloader(timeout time.Duration) *HTTPPreloader {
	return &HTTPPreloader{
		Client:   &http.Client{Timeout: timeout},
		MaxBytes: 8 << 20,
	}
}

func (p *HTTPPreloader) Preload(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("preload %s: %w", url, err)
	}

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("preload %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("preload %s: status %d", url, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
		return fmt.Errorf("preload %s: unexpected content type %q", url, ct)
	}

	limit := p.MaxBytes
	if limit <= 0 {
		limit = 8 << 20
	}
	if _, err := io.Copy(io.Discard, io.LimitReader(resp.Body, limit)); err != nil {
		return fmt.Errorf("preload %s: %w", url, err)
	}
	return nil
}
