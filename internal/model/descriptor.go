package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/Brownie44l1/cvae-api/internal/log"
)

var ErrInvalidDescriptor = errors.New("invalid model descriptor")

// Fetcher reads descriptors and artifacts from http(s) URLs, file:// URLs or
// plain filesystem paths.
type Fetcher struct {
	Client *http.Client
}

func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Fetcher{Client: client}
}

func (f *Fetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	logger := log.FromContextOrDiscard(ctx).With("uri", uri)

	if !isHTTP(uri) {
		logger.Debug("reading local file")
		data, err := os.ReadFile(localPath(uri))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", uri, err)
		}
		return data, nil
	}

	logger.Debug("fetching over http")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", uri, err)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", uri, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("failed to fetch %s: unexpected status %s", uri, resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body of %s: %w", uri, err)
	}
	return data, nil
}

// FetchDescriptor loads and validates the descriptor at uri. The returned
// descriptor's Model is resolved against uri.
func (f *Fetcher) FetchDescriptor(ctx context.Context, uri string) (*Descriptor, error) {
	data, err := f.Fetch(ctx, uri)
	if err != nil {
		return nil, err
	}

	var desc Descriptor
	if err := json.Unmarshal(data, &desc); err != nil {
		return nil, fmt.Errorf("failed to parse descriptor %s: %w", uri, err)
	}
	if desc.Model == "" {
		return nil, fmt.Errorf("%w: %s has no model", ErrInvalidDescriptor, uri)
	}
	if len(desc.Labels) == 0 {
		return nil, fmt.Errorf("%w: %s has no labels", ErrInvalidDescriptor, uri)
	}
	if desc.Inputs != nil && len(desc.Inputs) != 2 {
		return nil, fmt.Errorf("%w: %s must name exactly two inputs", ErrInvalidDescriptor, uri)
	}

	model, err := Resolve(uri, desc.Model)
	if err != nil {
		return nil, err
	}
	desc.Model = model
	return &desc, nil
}

// Resolve resolves ref relative to base. Absolute URLs and absolute paths are
// returned unchanged.
func Resolve(base, ref string) (string, error) {
	if isHTTP(ref) || strings.HasPrefix(ref, "file://") || filepath.IsAbs(ref) {
		return ref, nil
	}
	if isHTTP(base) {
		b, err := url.Parse(base)
		if err != nil {
			return "", fmt.Errorf("failed to parse %s: %w", base, err)
		}
		r, err := url.Parse(ref)
		if err != nil {
			return "", fmt.Errorf("failed to parse %s: %w", ref, err)
		}
		return b.ResolveReference(r).String(), nil
	}
	return filepath.Join(filepath.Dir(localPath(base)), ref), nil
}

func isHTTP(uri string) bool {
	return strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://")
}

func localPath(uri string) string {
	return strings.TrimPrefix(uri, "file://")
}
