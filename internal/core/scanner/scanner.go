package scanner

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/Ning0612/filesync/internal/adapter"
	"github.com/Ning0612/filesync/internal/core/checksum"
	"github.com/Ning0612/filesync/internal/domain"
	"github.com/Ning0612/filesync/internal/hashdb"
	"github.com/Ning0612/filesync/internal/logger"
)

// Options configures a Scanner
type Options struct {
	// IgnoreDirs are directory basenames pruned from every walk
	IgnoreDirs []string

	// DBFilename is the hash database name, never reported as a file
	DBFilename string

	// Workers bounds concurrent hashing of cache misses (1 = sequential)
	Workers int
}

// Scanner walks one tree and produces a ScanResult, reusing cached hashes
type Scanner struct {
	hasher   *checksum.Hasher
	notifier domain.Notifier
	ignore   map[string]struct{}
	dbName   string
	workers  int
}

// New creates a scanner. A nil notifier discards notifications.
func New(hasher *checksum.Hasher, notifier domain.Notifier, opts Options) *Scanner {
	if notifier == nil {
		notifier = domain.NullNotifier{}
	}
	if opts.DBFilename == "" {
		opts.DBFilename = hashdb.DefaultFilename
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}

	ignore := make(map[string]struct{}, len(opts.IgnoreDirs))
	for _, name := range opts.IgnoreDirs {
		ignore[name] = struct{}{}
	}

	return &Scanner{
		hasher:   hasher,
		notifier: notifier,
		ignore:   ignore,
		dbName:   opts.DBFilename,
		workers:  opts.Workers,
	}
}

// Scan enumerates every regular file below the tree root.
// Cached hashes are trusted as-is; everything else is hashed. A file that
// cannot be hashed is kept with an unknown hash. The cache is only read.
func (s *Scanner) Scan(ctx context.Context, tree adapter.Adapter, cache hashdb.Cache, tag string) (domain.ScanResult, error) {
	log := logger.With("tag", tag, "root", tree.Root())

	files, err := s.walk(ctx, tree, "", log)
	if err != nil {
		return nil, err
	}

	entries := make([]domain.ScanEntry, len(files))
	var misses []int
	for i, f := range files {
		entries[i] = domain.ScanEntry{
			RelPath: f.Path,
			AbsPath: tree.Abs(f.Path),
			Size:    f.Size,
		}
		if h, ok := cache.Lookup(f.Path); ok {
			entries[i].Hash = h
			continue
		}
		misses = append(misses, i)
	}

	if err := s.hashAll(ctx, tree, entries, misses); err != nil {
		return nil, err
	}

	result := make(domain.ScanResult, len(entries))
	for _, e := range entries {
		result[e.RelPath] = e
		s.notifier.Notify(fmt.Sprintf("[scan %s] %s", tag, e.RelPath), domain.TierDetailed, domain.CategoryHighlight)
	}

	log.Debug("scan completed",
		"files", len(entries),
		"hashed", len(misses),
		"cached", len(entries)-len(misses),
		"algorithm", s.hasher.Algorithm(),
	)

	return result, nil
}

// hashAll fills in hashes for the entries at the given indexes.
// Each goroutine writes only its own slot, so no locking is needed.
func (s *Scanner) hashAll(ctx context.Context, tree adapter.Adapter, entries []domain.ScanEntry, indexes []int) error {
	if s.workers == 1 {
		for _, i := range indexes {
			if err := s.hashOne(ctx, tree, &entries[i]); err != nil {
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, i := range indexes {
		entry := &entries[i]
		g.Go(func() error {
			return s.hashOne(gctx, tree, entry)
		})
	}
	return g.Wait()
}

// hashOne hashes a single entry; only context errors are returned
func (s *Scanner) hashOne(ctx context.Context, tree adapter.Adapter, entry *domain.ScanEntry) error {
	sum, err := s.hasher.HashFile(ctx, tree, entry.RelPath)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		logger.Get().Warn("hashing failed", "path", entry.AbsPath, "error", err)
		s.notifier.Notify(fmt.Sprintf("[!] Error hashing %s: %v", entry.AbsPath, err), domain.TierAlways, domain.CategoryError)
		entry.Hash = ""
		return nil
	}
	entry.Hash = sum
	return nil
}

// walk recursively lists files and links to files, pruning ignored directories before
// descending. Failure to list the root aborts; failures below it are
// reported and skipped.
func (s *Scanner) walk(ctx context.Context, tree adapter.Adapter, dir string, log logger.Logger) ([]domain.FileInfo, error) {
	items, err := tree.List(ctx, dir)
	if err != nil {
		if dir == "" || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("listing %s: %w", tree.Abs(dir), err)
		}
		log.Warn("cannot list directory", "dir", dir, "error", err)
		s.notifier.Notify(fmt.Sprintf("[!] Cannot read directory %s: %v", tree.Abs(dir), err), domain.TierAlways, domain.CategoryError)
		return nil, nil
	}

	var files []domain.FileInfo
	for _, item := range items {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		switch {
		case item.IsDir():
			if _, skip := s.ignore[item.Name()]; skip {
				log.Debug("pruned ignored directory", "dir", item.Path)
				continue
			}
			sub, err := s.walk(ctx, tree, item.Path, log)
			if err != nil {
				return nil, err
			}
			files = append(files, sub...)
		case s.isBookkeeping(item.Name()):
			log.Debug("skipping bookkeeping file", "path", item.Path)
		case item.IsFile():
			files = append(files, item)
		case item.Type == domain.FileTypeSymlink:
			if target, ok := s.followLink(ctx, tree, item, log); ok {
				files = append(files, target)
			}
		default:
			s.skip(tree, item.Path, "not a regular file", log)
		}
	}

	return files, nil
}

// isBookkeeping matches the hash database and temp files left by an
// interrupted copy, at any depth
func (s *Scanner) isBookkeeping(name string) bool {
	return name == s.dbName || adapter.IsTempFile(name)
}

// followLink resolves a symlink found during the walk. A link to a regular
// file is scanned as that file, under the link's own path; dangling links and
// links to directories or devices are skipped. Directory links are never
// descended into.
func (s *Scanner) followLink(ctx context.Context, tree adapter.Adapter, link domain.FileInfo, log logger.Logger) (domain.FileInfo, bool) {
	target, err := tree.Stat(ctx, link.Path)
	switch {
	case err != nil:
		s.skip(tree, link.Path, "broken symlink", log)
		return domain.FileInfo{}, false
	case target.IsDir():
		s.skip(tree, link.Path, "symlink to a directory", log)
		return domain.FileInfo{}, false
	case !target.IsFile():
		s.skip(tree, link.Path, "symlink to a non-regular file", log)
		return domain.FileInfo{}, false
	}

	target.Path = link.Path
	return target, true
}

func (s *Scanner) skip(tree adapter.Adapter, relPath, reason string, log logger.Logger) {
	log.Info("skipped entry", "path", relPath, "reason", reason)
	s.notifier.Notify(fmt.Sprintf("[!] Skipped %s: %s", tree.Abs(relPath), reason), domain.TierNormal, domain.CategoryWarning)
}
