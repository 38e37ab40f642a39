// Package resolver orchestrates address resolution: cache lookup, the
// deterministic fallback chain, geocoding, and the cache write-back.
package resolver

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/taxroll-cli/internal/addr"
	"github.com/sells-group/taxroll-cli/internal/addrcache"
	"github.com/sells-group/taxroll-cli/internal/model"
)

// ClientFactory builds one geocoding client per worker. Workers never
// share a client: the rate-limit guarantee is per instance. A nil
// factory disables geocoding and leaves the deterministic strategies.
type ClientFactory func() (addr.Resolver, error)

// Options tunes batch resolution pacing.
type Options struct {
	// Workers is the size of the resolution pool. Default: 3.
	Workers int

	// ChunkSize groups addresses between pauses. Chunk boundaries only
	// smooth external call bursts; they carry no correctness meaning.
	// Default: 10.
	ChunkSize int

	// ChunkPause is the idle time between chunks. Default: 1s.
	ChunkPause time.Duration
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 3
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = 10
	}
	if o.ChunkPause <= 0 {
		o.ChunkPause = time.Second
	}
	return o
}

// Engine resolves raw address strings into canonical components.
type Engine struct {
	cache   *addrcache.Cache
	factory ClientFactory
	opts    Options
}

// New creates an Engine over the given cache. The cache is shared by
// reference; the engine is its only writer during a run.
func New(cache *addrcache.Cache, factory ClientFactory, opts Options) *Engine {
	return &Engine{cache: cache, factory: factory, opts: opts.withDefaults()}
}

func (e *Engine) newParser() (*addr.Parser, error) {
	if e.factory == nil {
		return addr.NewParser(nil), nil
	}
	client, err := e.factory()
	if err != nil {
		return nil, eris.Wrap(err, "resolver: create geocoding client")
	}
	return addr.NewParser(client), nil
}

// ResolveOne resolves a single address. Repeated calls on the same
// cleaned string short-circuit on the cache once a resolved entry
// exists; unresolved entries are retried, which the upgrade-only cache
// policy permits.
func (e *Engine) ResolveOne(ctx context.Context, address string) (model.ResolutionResult, error) {
	parser, err := e.newParser()
	if err != nil {
		return model.ResolutionResult{}, err
	}
	return e.resolveWith(ctx, parser, address), nil
}

// ResolveBatch resolves every unique address, returning a map keyed by
// the input strings. Output is a mapping, not a sequence, so worker
// scheduling order cannot affect it.
func (e *Engine) ResolveBatch(ctx context.Context, addresses []string) (map[string]model.ResolutionResult, error) {
	unique := dedupe(addresses)
	results := make(map[string]model.ResolutionResult, len(unique))
	if len(unique) == 0 {
		return results, nil
	}

	var mu sync.Mutex
	jobs := make(chan string)

	g, gctx := errgroup.WithContext(ctx)

	workers := e.opts.Workers
	if workers > len(unique) {
		workers = len(unique)
	}
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			parser, err := e.newParser()
			if err != nil {
				return err
			}
			for address := range jobs {
				result := e.resolveWith(gctx, parser, address)
				mu.Lock()
				results[address] = result
				mu.Unlock()
			}
			return nil
		})
	}

	g.Go(func() error {
		defer close(jobs)
		for i, address := range unique {
			if i > 0 && i%e.opts.ChunkSize == 0 {
				if err := sleepCtx(gctx, e.opts.ChunkPause); err != nil {
					return err
				}
			}
			select {
			case jobs <- address:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return results, eris.Wrap(err, "resolver: batch resolve")
	}
	return results, nil
}

// resolveWith runs the full algorithm for one address. Per-record
// failures degrade to an unresolved result; they never abort the batch.
func (e *Engine) resolveWith(ctx context.Context, parser *addr.Parser, address string) model.ResolutionResult {
	cleaned := addr.Clean(address)
	if cleaned == "" {
		return model.ResolutionResult{Input: address, Status: model.StatusUnresolved}
	}

	key := addrcache.Key(cleaned)
	if entry, ok := e.cache.Get(key); ok && entry.Resolved() {
		return model.ResolutionResult{
			Input:      address,
			Normalized: entry.Components,
			Source:     model.SourceCache,
			Status:     model.StatusResolved,
		}
	}

	result := model.ResolutionResult{Input: address, Status: model.StatusUnresolved}
	if normalized, source, ok := parser.Parse(ctx, cleaned); ok {
		result.Normalized = normalized
		result.Source = source
		result.Status = model.StatusResolved
	}

	entry := addrcache.Entry{
		FullAddress: result.FullAddress(),
		Components:  result.Normalized,
		Source:      result.Source,
	}
	if err := e.cache.Put(key, entry); err != nil {
		// A failed cache write costs a re-resolution later, nothing more.
		zap.L().Warn("resolver: cache write failed", zap.Error(err))
	}

	return result
}

func dedupe(addresses []string) []string {
	seen := make(map[string]struct{}, len(addresses))
	out := make([]string, 0, len(addresses))
	for _, a := range addresses {
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
