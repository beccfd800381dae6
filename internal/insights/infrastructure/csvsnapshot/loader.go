package csvsnapshot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	insights "greengauge/internal/insights/domain"
)

var deviceKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

func snapshotName(deviceKey string) (string, error) {
	if !deviceKeyPattern.MatchString(deviceKey) {
		return "", fmt.Errorf("csv snapshot: invalid device key %q", deviceKey)
	}
	return deviceKey + ".csv", nil
}

// FileLoader reads <dir>/<device>.csv.
type FileLoader struct {
	dir string
}

var _ insights.SnapshotLoader = (*FileLoader)(nil)

// NewFileLoader constructs a loader rooted at dir.
func NewFileLoader(dir string) (*FileLoader, error) {
	if dir == "" {
		return nil, errors.New("csv snapshot: empty dir")
	}
	return &FileLoader{dir: dir}, nil
}

// Load parses the device snapshot from disk.
func (l *FileLoader) Load(ctx context.Context, deviceKey string) ([]insights.Row, error) {
	_ = ctx
	name, err := snapshotName(deviceKey)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(filepath.Join(l.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, insights.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("csv snapshot: open: %w", err)
	}
	defer file.Close()
	return Parse(file)
}

// HTTPLoader fetches <baseURL>/<device>.csv.
type HTTPLoader struct {
	baseURL string
	client  *http.Client
}

var _ insights.SnapshotLoader = (*HTTPLoader)(nil)

// NewHTTPLoader constructs a loader for a static file server.
func NewHTTPLoader(baseURL string, client *http.Client) (*HTTPLoader, error) {
	if baseURL == "" {
		return nil, errors.New("csv snapshot: empty base url")
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPLoader{baseURL: strings.TrimRight(baseURL, "/"), client: client}, nil
}

// Load downloads and parses the device snapshot.
func (l *HTTPLoader) Load(ctx context.Context, deviceKey string) ([]insights.Row, error) {
	name, err := snapshotName(deviceKey)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+"/"+name, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/csv")
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("csv snapshot: fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, insights.ErrSnapshotNotFound
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("csv snapshot: http %d", resp.StatusCode)
	}
	return Parse(resp.Body)
}
