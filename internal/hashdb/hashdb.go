// Package hashdb reads and writes the per-root hash database that maps
// relative paths to content digests.
package hashdb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/Ning0612/filesync/internal/adapter"
	"github.com/Ning0612/filesync/internal/domain"
)

// DefaultFilename is the name of the database stored at each root
const DefaultFilename = ".syncdb.json"

// Cache maps slash separated relative paths to hex digests
type Cache map[string]string

// New returns an empty cache
func New() Cache {
	return make(Cache)
}

// Lookup returns the cached hash for a path.
// Empty entries count as misses.
func (c Cache) Lookup(relPath string) (string, bool) {
	h, ok := c[relPath]
	if !ok || h == "" {
		return "", false
	}
	return h, true
}

// Equal reports whether two caches hold exactly the same entries
func (c Cache) Equal(other Cache) bool {
	if len(c) != len(other) {
		return false
	}
	for k, v := range c {
		if ov, ok := other[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// Load reads the database stored at name inside tree.
// A missing file yields an empty cache and no error. Unreadable or malformed
// content yields an empty cache and an error wrapping domain.ErrCacheCorrupt;
// callers warn and continue.
func Load(ctx context.Context, tree adapter.Adapter, name string) (Cache, error) {
	exists, err := tree.Exists(ctx, name)
	if err != nil {
		return New(), fmt.Errorf("%w: %s: %v", domain.ErrCacheCorrupt, tree.Abs(name), err)
	}
	if !exists {
		return New(), nil
	}

	reader, err := tree.Read(ctx, name)
	if err != nil {
		return New(), fmt.Errorf("%w: %s: %v", domain.ErrCacheCorrupt, tree.Abs(name), err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return New(), fmt.Errorf("%w: %s: %v", domain.ErrCacheCorrupt, tree.Abs(name), err)
	}

	cache, err := Decode(data)
	if err != nil {
		return New(), fmt.Errorf("%w: %s: %v", domain.ErrCacheCorrupt, tree.Abs(name), err)
	}
	return cache, nil
}

// Save overwrites the database at name inside tree with the full cache.
// The adapter writes through a temp file and rename, so a crash never
// leaves a truncated database behind.
func Save(ctx context.Context, tree adapter.Adapter, name string, cache Cache) error {
	data, err := Encode(cache)
	if err != nil {
		return err
	}
	if err := tree.Write(ctx, name, bytes.NewReader(data), nil); err != nil {
		return fmt.Errorf("failed to save hash database %s: %w", tree.Abs(name), err)
	}
	return nil
}

// Decode parses the JSON object form of a cache.
// JSON null is accepted as an empty cache.
func Decode(data []byte) (Cache, error) {
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, fmt.Errorf("expected an object of strings: %v", err)
		}
		return nil, err
	}
	if raw == nil {
		return New(), nil
	}
	return Cache(raw), nil
}

// Encode renders the cache as an indented JSON object with sorted keys
func Encode(cache Cache) ([]byte, error) {
	if cache == nil {
		cache = New()
	}
	data, err := json.MarshalIndent(map[string]string(cache), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode hash database: %w", err)
	}
	return append(data, '\n'), nil
}
