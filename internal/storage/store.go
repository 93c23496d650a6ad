// Package storage persists run records.
package storage

import (
	"context"
	"fmt"

	"github.com/dyike/CortexAdvisor/config"
	"github.com/dyike/CortexAdvisor/internal/storage/sqlite"
	"github.com/dyike/CortexAdvisor/models"
)

// RunStore persists a record and returns where it was written.
type RunStore interface {
	Save(ctx context.Context, rec models.RunRecord) (string, error)
}

// RunLister is implemented by stores that can read records back, newest
// first. An empty identifier matches every record.
type RunLister interface {
	List(ctx context.Context, identifier string, limit int) ([]models.RunRecord, error)
}

type discard struct{}

// Discard is a RunStore that keeps nothing.
func Discard() RunStore { return discard{} }

func (discard) Save(context.Context, models.RunRecord) (string, error) { return "", nil }

// Open returns the store selected by cfg.RunStore. The closer releases any
// handle the store holds.
func Open(cfg *config.Config) (RunStore, func() error, error) {
	noop := func() error { return nil }
	switch cfg.RunStore {
	case "json", "":
		return NewFileStore(cfg.RunsDir), noop, nil
	case "sqlite":
		s, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil
	case "none":
		return Discard(), noop, nil
	default:
		return nil, noop, fmt.Errorf("unsupported run store %q", cfg.RunStore)
	}
}
