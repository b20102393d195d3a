package gdelt

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// FetchError reports a partition fetch that failed after exhausting
// retries. The caller skips the stamp and continues with the next one.
type FetchError struct {
	Stamp    Stamp
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching partition %s after %d attempts: %v", e.Stamp, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Cache is a content-addressed store of raw partition payloads. Each
// stamp maps to at most one immutable gzip blob on disk; the network is
// consulted only on a miss, so a stamp is fetched at most once for the
// lifetime of the cache directory.
type Cache struct {
	dir     string
	baseURL string
	client  *http.Client
	retries int
	backoff time.Duration
}

// NewCache creates a partition cache rooted at dir, fetching misses from
// baseURL with the given timeout and retry count.
func NewCache(dir, baseURL string, timeout time.Duration, retries int) *Cache {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Cache{
		dir:     dir,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		retries: retries,
		backoff: time.Second,
	}
}

func (c *Cache) path(stamp Stamp) string {
	return filepath.Join(c.dir, string(stamp)+".gqg.json.gz")
}

// Get returns the raw payload for a stamp. The second return value is
// false for a published gap (upstream 404): nothing is cached and no
// error is reported. A transient failure that survives all retries
// returns a *FetchError.
func (c *Cache) Get(ctx context.Context, stamp Stamp) ([]byte, bool, error) {
	if data, err := os.ReadFile(c.path(stamp)); err == nil {
		return data, true, nil
	}
	// Unreadable entries behave like misses.

	data, found, err := c.fetch(ctx, stamp)
	if err != nil || !found {
		return nil, false, err
	}

	if err := c.write(stamp, data); err != nil {
		log.Printf("Caching partition %s failed: %v", stamp, err)
	}
	return data, true, nil
}

func (c *Cache) fetch(ctx context.Context, stamp Stamp) ([]byte, bool, error) {
	url := c.baseURL + string(stamp) + ".gqg.json.gz"

	var lastErr error
	attempts := c.retries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := c.backoff * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, false, &FetchError{Stamp: stamp, Attempts: attempt, Err: ctx.Err()}
			}
		}

		data, found, err := c.fetchOnce(ctx, url)
		if err == nil {
			return data, found, nil
		}
		lastErr = err
	}

	return nil, false, &FetchError{Stamp: stamp, Attempts: attempts, Err: lastErr}
}

func (c *Cache) fetchOnce(ctx context.Context, url string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, false, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, false, err
		}
		return data, true, nil
	case resp.StatusCode == http.StatusNotFound:
		// Partition never published: a gap, not an error.
		return nil, false, nil
	default:
		return nil, false, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
}

// write stores a payload via temp-file-then-rename so a crash never
// leaves a truncated entry behind.
func (c *Cache) write(stamp Stamp, data []byte) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(c.dir, string(stamp)+".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), c.path(stamp))
}
