package main

import (
	"context"

	"github.com/sells-group/taxroll-cli/internal/addrcache"
	"github.com/sells-group/taxroll-cli/internal/resilience"
	"github.com/sells-group/taxroll-cli/internal/resolver"
	"github.com/sells-group/taxroll-cli/internal/store"
	"github.com/sells-group/taxroll-cli/pkg/nominatim"
)

// initEngine builds the resolution engine from config. With offline set
// the geocoding fallback is skipped and only the cache and the local
// parsing strategies run.
func initEngine(offline bool) (*resolver.Engine, *addrcache.Cache, error) {
	if offline {
		cfg.Resolver.Offline = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	cache := addrcache.Load(cfg.Cache.Path)

	var factory resolver.ClientFactory
	if !cfg.Resolver.Offline {
		factory = resolver.NominatimFactory(nominatim.Config{
			UserAgent: cfg.Resolver.UserAgent,
			BaseURL:   cfg.Resolver.BaseURL,
			MinDelay:  cfg.Resolver.MinDelay(),
			MaxJitter: cfg.Resolver.MaxJitter(),
			Timeout:   cfg.Resolver.Timeout(),
			Retry: resilience.RetryPolicy{
				MaxAttempts: cfg.Resolver.MaxRetries,
				ErrorWait:   cfg.Resolver.ErrorWait(),
				OnRetry:     resilience.RetryLogger("nominatim", "search"),
			},
		})
	}

	engine := resolver.New(cache, factory, resolver.Options{
		Workers:    cfg.Resolver.Workers,
		ChunkSize:  cfg.Resolver.ChunkSize,
		ChunkPause: cfg.Resolver.ChunkPause(),
	})
	return engine, cache, nil
}

// initStore opens the run archive and applies migrations.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DSN())
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}
