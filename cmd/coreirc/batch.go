package main

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"os"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
)

var errNoInput = errors.New("no input files")

// forEachFile reads every path and calls fn with its index and contents. At
// most jobs calls run at once. The first error cancels the remaining files.
func forEachFile(ctx context.Context, paths []string, jobs int, fn func(ctx context.Context, i int, path string, data []byte) error) error {
	if len(paths) == 0 {
		return errNoInput
	}
	if jobs < 1 {
		jobs = 1
	}
	sem := semaphore.NewWeighted(int64(jobs))
	g, ctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			return fn(ctx, i, path, data)
		})
	}
	return g.Wait()
}

// outputCache holds generated outputs keyed by the hash of the input blob
// and everything that configures its processing. Concurrent requests for the
// same key share one computation.
type outputCache struct {
	arc    *lru.ARCCache
	flight singleflight.Group
}

func newOutputCache(size int) (*outputCache, error) {
	arc, err := lru.NewARC(size)
	if err != nil {
		return nil, err
	}
	return &outputCache{arc: arc}, nil
}

// cacheKey hashes the given parts. Each part is length-prefixed so that
// moving bytes between parts changes the key.
func cacheKey(parts ...[]byte) string {
	h := sha256.New()
	var n [8]byte
	for _, p := range parts {
		binary.LittleEndian.PutUint64(n[:], uint64(len(p)))
		h.Write(n[:])
		h.Write(p)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// get returns the cached value of key, computing and adding it on a miss.
// The boolean reports whether the value came from the cache or from a
// computation started by another caller.
func (c *outputCache) get(key string, compute func() (interface{}, error)) (interface{}, bool, error) {
	if v, ok := c.arc.Get(key); ok {
		return v, true, nil
	}
	v, err, shared := c.flight.Do(key, func() (interface{}, error) {
		v, err := compute()
		if err != nil {
			return nil, err
		}
		c.arc.Add(key, v)
		return v, nil
	})
	return v, shared, err
}

// Len returns the number of cached outputs.
func (c *outputCache) Len() int { return c.arc.Len() }
