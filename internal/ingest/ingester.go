// Package ingest downloads provider schedule archives and commits their
// contents to the file cache.
package ingest

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"sync"
	"sync/atomic"
	"time"
)

// Ingester fetches, validates and extracts compressed schedule archives.
type Ingester struct {
	baseURL string
	client  *http.Client
	cache   FileCache
	logger  *slog.Logger
}

// FileCache is the subset of the cache store the ingester writes to.
type FileCache interface {
	Put(ctx context.Context, provider, subCategory, filename, content string) error
}

// New creates an Ingester fetching archives from baseURL.
func New(baseURL string, cache FileCache, logger *slog.Logger) *Ingester {
	return &Ingester{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 60 * time.Second},
		cache:   cache,
		logger:  logger,
	}
}

// Ingest downloads the provider's archive, verifies the zip signature,
// and commits every contained file to the cache under its base filename.
// It reports false on transport failure, a payload that is not a zip, or
// an archive that yields no usable entries. It never returns an error:
// a failed ingestion degrades to "cache stays as it was".
func (ing *Ingester) Ingest(ctx context.Context, provider, subCategory string) bool {
	endpoint := ing.baseURL + "/" + url.PathEscape(provider)
	if subCategory != "" {
		endpoint += "?category=" + url.QueryEscape(subCategory)
	}

	payload, err := ing.fetch(ctx, endpoint)
	if err != nil {
		ing.logger.Warn("archive fetch failed", "provider", provider, "error", err)
		return false
	}

	// Providers have been seen returning HTML error pages with a 200
	// status; the zip signature check catches those before extraction.
	if len(payload) < 2 || payload[0] != 'P' || payload[1] != 'K' {
		ing.logger.Warn("payload is not a zip archive", "provider", provider, "bytes", len(payload))
		return false
	}

	reader, err := zip.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		ing.logger.Warn("archive unreadable", "provider", provider, "error", err)
		return false
	}

	// Entries extract concurrently; each one targets its own cache key.
	var wg sync.WaitGroup
	var committed atomic.Int64
	for _, f := range reader.File {
		if f.FileInfo().IsDir() {
			continue
		}
		wg.Add(1)
		go func(f *zip.File) {
			defer wg.Done()
			if err := ing.extract(ctx, provider, subCategory, f); err != nil {
				ing.logger.Warn("entry extraction failed",
					"provider", provider, "entry", f.Name, "error", err)
				return
			}
			committed.Add(1)
		}(f)
	}
	wg.Wait()

	if committed.Load() == 0 {
		ing.logger.Warn("archive yielded no usable entries", "provider", provider)
		return false
	}

	ing.logger.Info("archive ingested",
		"provider", provider, "sub_category", subCategory, "files", committed.Load())
	return true
}

func (ing *Ingester) fetch(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := ing.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// extract decodes one archive entry and commits it under its base
// filename. Directory components are discarded, so colliding base names
// overwrite one another.
func (ing *Ingester) extract(ctx context.Context, provider, subCategory string, f *zip.File) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open entry: %w", err)
	}
	defer rc.Close()

	content, err := io.ReadAll(rc)
	if err != nil {
		return fmt.Errorf("read entry: %w", err)
	}
	return ing.cache.Put(ctx, provider, subCategory, path.Base(f.Name), string(content))
}
