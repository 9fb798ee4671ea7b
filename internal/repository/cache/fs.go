package cache

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jgivc/ghrelay/internal/common"
	"github.com/spf13/afero"
)

const (
	cacheFileMode = 0644
	tmpMarker     = ".tmp-"
	sweepInterval = time.Minute
)

// fsCache keeps one file per key. The file mtime holds the expiration time.
// Entries that are never read again are collected by Sweep, which Set also runs
// once per sweepInterval or when the written bytes exceed maxSize.
type fsCache struct {
	fs      afero.Fs
	dir     string
	maxSize int64
	now     func() time.Time
	log     *slog.Logger

	mu        sync.Mutex
	size      int64
	lastSweep time.Time
	sweeping  atomic.Bool
}

func NewFSCache(fs afero.Fs, dir string, maxSize int64, log *slog.Logger) (*fsCache, error) {
	if err := fs.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("cannot create cache dir %s: %w", dir, err)
	}

	return &fsCache{
		fs:      fs,
		dir:     dir,
		maxSize: maxSize,
		now:     time.Now,
		log:     log.With(slog.String("item", "FSCache")),
	}, nil
}

// NewMemoryCache is the fs cache over an in-memory filesystem.
func NewMemoryCache(maxSize int64, log *slog.Logger) *fsCache {
	c, _ := NewFSCache(afero.NewMemMapFs(), "/", maxSize, log)

	return c
}

func (c *fsCache) Get(_ context.Context, key string) ([]byte, error) {
	path := c.path(key)

	stat, err := c.fs.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, common.ErrCacheMiss
		}

		return nil, fmt.Errorf("cannot stat cache file %s: %w", path, err)
	}

	if !c.now().Before(stat.ModTime()) {
		if err := c.fs.Remove(path); err != nil && !os.IsNotExist(err) {
			c.log.Error("Cannot remove expired entry", slog.String("path", path), slog.Any("error", err))
		}

		return nil, common.ErrCacheMiss
	}

	data, err := afero.ReadFile(c.fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, common.ErrCacheMiss
		}

		return nil, fmt.Errorf("cannot read cache file %s: %w", path, err)
	}

	return data, nil
}

func (c *fsCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	path := c.path(key)
	tmp := path + tmpMarker + uuid.NewString()

	if err := afero.WriteFile(c.fs, tmp, value, cacheFileMode); err != nil {
		return fmt.Errorf("cannot write cache file %s: %w", tmp, err)
	}

	expires := c.now().Add(ttl)
	if err := c.fs.Chtimes(tmp, expires, expires); err != nil {
		c.fs.Remove(tmp)

		return fmt.Errorf("cannot set cache file %s expiration: %w", tmp, err)
	}

	if err := c.fs.Rename(tmp, path); err != nil {
		c.fs.Remove(tmp)

		return fmt.Errorf("cannot move cache file %s: %w", path, err)
	}

	if c.sweepDue(int64(len(value))) {
		if err := c.Sweep(ctx); err != nil {
			c.log.Error("Cannot sweep cache", slog.Any("error", err))
		}
	}

	return nil
}

func (c *fsCache) sweepDue(written int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.size += written

	return c.now().Sub(c.lastSweep) >= sweepInterval || (c.maxSize > 0 && c.size > c.maxSize)
}

// Sweep removes expired entries. If the rest still exceeds maxSize, entries closest
// to expiration go first until it fits.
func (c *fsCache) Sweep(_ context.Context) error {
	if !c.sweeping.CompareAndSwap(false, true) {
		return nil
	}
	defer c.sweeping.Store(false)

	infos, err := afero.ReadDir(c.fs, c.dir)
	if err != nil {
		return fmt.Errorf("cannot list cache dir %s: %w", c.dir, err)
	}

	now := c.now()
	live := make([]os.FileInfo, 0, len(infos))

	var size int64
	removed := 0

	for _, info := range infos {
		if info.IsDir() || strings.Contains(info.Name(), tmpMarker) {
			continue
		}

		if !now.Before(info.ModTime()) {
			if c.remove(info.Name()) {
				removed++
			}

			continue
		}

		live = append(live, info)
		size += info.Size()
	}

	if c.maxSize > 0 && size > c.maxSize {
		slices.SortFunc(live, func(a, b os.FileInfo) int {
			return a.ModTime().Compare(b.ModTime())
		})

		for _, info := range live {
			if size <= c.maxSize {
				break
			}

			if c.remove(info.Name()) {
				removed++
				size -= info.Size()
			}
		}
	}

	c.mu.Lock()
	c.size = size
	c.lastSweep = now
	c.mu.Unlock()

	c.log.Debug("Cache swept", slog.Int("removed", removed), slog.Int64("size", size))

	return nil
}

func (c *fsCache) remove(name string) bool {
	path := filepath.Join(c.dir, name)
	if err := c.fs.Remove(path); err != nil && !os.IsNotExist(err) {
		c.log.Error("Cannot remove cache entry", slog.String("path", path), slog.Any("error", err))

		return false
	}

	return true
}

func (c *fsCache) path(key string) string {
	return filepath.Join(c.dir, strings.ReplaceAll(key, KeySeparator, "_"))
}
