// Package uv acquires the uv toolchain binary: it resolves a release
// version against the remote release index and materializes the
// platform-specific binary under a local cache directory.
package uv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultReleasesURL is the release index endpoint.
	DefaultReleasesURL = "https://api.github.com/repos/astral-sh/uv/releases"

	// DefaultDownloadBaseURL is the base URL for per-version release
	// archives.
	DefaultDownloadBaseURL = "https://github.com/astral-sh/uv/releases/download"

	// maxIndexResponseBytes bounds the release index response size (10 MB).
	maxIndexResponseBytes = 10 << 20
)

// ErrVersionResolution is returned when no usable release version can be
// determined from the release index.
var ErrVersionResolution = errors.New("could not resolve uv version")

// release is the JSON wire format of one release index entry.
type release struct {
	Name        string    `json:"name"`
	Draft       bool      `json:"draft"`
	Prerelease  bool      `json:"prerelease"`
	PublishedAt time.Time `json:"published_at"`
}

// Resolver resolves toolchain versions against the release index.
type Resolver struct {
	client      *http.Client
	releasesURL string
	userAgent   string
}

// ResolverOption configures a Resolver during construction.
type ResolverOption func(*Resolver)

// WithResolverHTTPClient sets a custom HTTP client, useful for tests.
func WithResolverHTTPClient(c *http.Client) ResolverOption {
	return func(r *Resolver) {
		r.client = c
	}
}

// WithReleasesURL overrides the release index endpoint, primarily for
// test servers.
func WithReleasesURL(url string) ResolverOption {
	return func(r *Resolver) {
		r.releasesURL = url
	}
}

// NewResolver creates a Resolver with sensible defaults.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{
		client:      http.DefaultClient,
		releasesURL: DefaultReleasesURL,
		userAgent:   "bex/1.0",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the version to acquire. A pinned version is used
// verbatim without touching the network. Otherwise the release index is
// queried, draft and prerelease entries are discarded, and the entry
// with the latest publish timestamp wins. An empty filtered set or a
// failed query resolves to ErrVersionResolution.
func (r *Resolver) Resolve(ctx context.Context, pinned string) (string, error) {
	if pinned != "" {
		return pinned, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.releasesURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrVersionResolution, err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", context.Cause(ctx)
		}
		return "", fmt.Errorf("%w: %v", ErrVersionResolution, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: release index returned status %d", ErrVersionResolution, resp.StatusCode)
	}

	var releases []release
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxIndexResponseBytes)).Decode(&releases); err != nil {
		return "", fmt.Errorf("%w: decoding release index: %v", ErrVersionResolution, err)
	}

	var latest *release
	for i := range releases {
		entry := &releases[i]
		if entry.Draft || entry.Prerelease {
			continue
		}
		if latest == nil || entry.PublishedAt.After(latest.PublishedAt) {
			latest = entry
		}
	}

	if latest == nil || latest.Name == "" {
		return "", fmt.Errorf("%w: no stable release found", ErrVersionResolution)
	}

	return latest.Name, nil
}
