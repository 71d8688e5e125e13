package main

import (
	"context"

	"github.com/sells-group/recall-cli/internal/pipeline"
	"github.com/sells-group/recall-cli/internal/store"
	"github.com/sells-group/recall-cli/pkg/earegistry"
	"github.com/sells-group/recall-cli/pkg/vinportal"
)

func initStore(ctx context.Context) (store.Store, error) {
	path := cfg.Store.Path
	if path == "" {
		path = "recall.db"
	}
	st, err := store.NewSQLite(path)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

func newPipeline(st store.Store) *pipeline.Pipeline {
	primary := vinportal.New(cfg.Primary.URL, cfg.Primary.Headless)
	registry := earegistry.New(cfg.Registry.URL, cfg.Registry.Headless)
	return pipeline.New(cfg, st, primary, registry)
}
