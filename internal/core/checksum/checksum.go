package checksum

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"

	"golang.org/x/crypto/blake2b"

	"github.com/Ning0612/filesync/internal/adapter"
	"github.com/Ning0612/filesync/internal/domain"
)

// Algorithm represents the hashing algorithm to use
type Algorithm string

const (
	// SHA256 algorithm (recommended default, matches existing hash databases)
	SHA256 Algorithm = "sha256"
	// BLAKE2b256 algorithm (256-bit BLAKE2b, faster on 64-bit CPUs)
	BLAKE2b256 Algorithm = "blake2b"
)

// DefaultBufferSize is the chunk size used when streaming file content
const DefaultBufferSize = 8192

// Options configures the checksum calculator
type Options struct {
	// BufferSize: size of buffer for streaming reads
	// Default: 8KB. The digest does not depend on it.
	BufferSize int
}

// Calculator computes content checksums
type Calculator interface {
	// Calculate computes checksum from an io.Reader
	// Returns ctx.Err() if the context is cancelled between chunks
	Calculate(ctx context.Context, reader io.Reader, algo Algorithm) (string, error)
}

// DefaultCalculator implements Calculator with streaming support
type DefaultCalculator struct {
	opts Options
}

// NewCalculator creates a new calculator with the given options
func NewCalculator(opts Options) *DefaultCalculator {
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	return &DefaultCalculator{opts: opts}
}

// Calculate implements the Calculator interface
func (c *DefaultCalculator) Calculate(ctx context.Context, reader io.Reader, algo Algorithm) (string, error) {
	h, err := newHash(algo)
	if err != nil {
		return "", err
	}

	buffer := make([]byte, c.opts.BufferSize)

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		n, err := reader.Read(buffer)
		if n > 0 {
			if _, hashErr := h.Write(buffer[:n]); hashErr != nil {
				return "", fmt.Errorf("hash write error: %w", hashErr)
			}
		}

		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read error: %w", err)
		}
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// newHash creates a hasher based on algorithm
func newHash(algo Algorithm) (hash.Hash, error) {
	switch algo {
	case SHA256:
		return sha256.New(), nil
	case BLAKE2b256:
		return blake2b.New256(nil)
	default:
		return nil, fmt.Errorf("unsupported algorithm: %s", algo)
	}
}

// IsSupported checks if the given algorithm is supported
func IsSupported(algo Algorithm) bool {
	switch algo {
	case SHA256, BLAKE2b256:
		return true
	default:
		return false
	}
}

// Hasher computes the content hash of files inside a tree
type Hasher struct {
	calc Calculator
	algo Algorithm
}

// NewHasher creates a file hasher using the given calculator and algorithm
func NewHasher(calc Calculator, algo Algorithm) *Hasher {
	return &Hasher{calc: calc, algo: algo}
}

// Algorithm returns the algorithm used by the hasher
func (h *Hasher) Algorithm() Algorithm {
	return h.algo
}

// HashFile returns the hex digest of a file.
// Any open or read failure is wrapped with domain.ErrIOFailure; callers
// treat the hash as unknown. Context cancellation is returned unwrapped.
func (h *Hasher) HashFile(ctx context.Context, tree adapter.Adapter, relPath string) (string, error) {
	reader, err := tree.Read(ctx, relPath)
	if err != nil {
		return "", fmt.Errorf("%w: open %s: %v", domain.ErrIOFailure, relPath, err)
	}
	defer reader.Close()

	sum, err := h.calc.Calculate(ctx, reader, h.algo)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: hash %s: %v", domain.ErrIOFailure, relPath, err)
	}
	return sum, nil
}
