// Package app assembles an advisor engine from configuration and keeps it
// current as the configuration changes.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/phuslu/log"

	"github.com/dyike/CortexAdvisor/config"
	"github.com/dyike/CortexAdvisor/internal/advisor"
	"github.com/dyike/CortexAdvisor/internal/dataflows"
	"github.com/dyike/CortexAdvisor/internal/metrics"
	"github.com/dyike/CortexAdvisor/internal/narrative"
	"github.com/dyike/CortexAdvisor/internal/storage"
)

// Engine is one immutable build of the pipeline for a given config.
type Engine struct {
	Advisor *advisor.Engine
	// Runs is nil when the configured store cannot read records back.
	Runs    storage.RunLister
	Config  config.Config
	BuiltAt time.Time
	Version uint64

	close func() error

	mu      sync.Mutex
	users   int
	retired bool
	closed  bool
}

// Close releases the run store once. It is safe to call on a nil engine.
func (e *Engine) Close() error {
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closeLocked()
}

func (e *Engine) closeLocked() error {
	if e.closed || e.close == nil {
		e.closed = true
		return nil
	}
	e.closed = true
	return e.close()
}

// acquire fails once the engine has been retired.
func (e *Engine) acquire() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.retired {
		return false
	}
	e.users++
	return true
}

func (e *Engine) release() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.users--
	if e.retired && e.users == 0 {
		if err := e.closeLocked(); err != nil {
			log.Warn().Err(err).Uint64("version", e.Version).Msg("close retired engine")
		}
	}
}

// retire stops new users and closes the engine now when nobody holds it,
// otherwise when the last holder releases. Safe on a nil engine.
func (e *Engine) retire() error {
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.retired = true
	if e.users > 0 {
		return nil
	}
	return e.closeLocked()
}

var engineSeq atomic.Uint64

type EngineBuilder func(config.Config) (*Engine, error)

// NewBuilder returns a builder that reports into m, which may be nil.
func NewBuilder(m *metrics.Manager) EngineBuilder {
	return func(cfg config.Config) (*Engine, error) {
		return BuildEngine(context.Background(), cfg, m)
	}
}

// BuildEngine wires strategies, data providers, the narrative model and the
// run store. A missing model key is not fatal: narratives fall back.
func BuildEngine(ctx context.Context, cfg config.Config, m *metrics.Manager) (*Engine, error) {
	book, err := config.LoadStrategyBook(cfg.StrategiesFile)
	if err != nil {
		return nil, err
	}

	providers, err := dataflows.NewProviders(&cfg)
	if err != nil {
		return nil, fmt.Errorf("data providers: %w", err)
	}

	chatModel, err := narrative.NewChatModel(ctx, &cfg)
	switch {
	case errors.Is(err, narrative.ErrNoModel):
		log.Warn().Err(err).Msg("narratives will use the deterministic fallback")
	case err != nil:
		return nil, err
	}

	orch, err := narrative.NewOrchestrator(ctx, chatModel, narrative.WithNodeObserver(m))
	if err != nil {
		return nil, fmt.Errorf("narrative graph: %w", err)
	}

	store, closeStore, err := storage.Open(&cfg)
	if err != nil {
		return nil, fmt.Errorf("run store: %w", err)
	}
	runs, _ := store.(storage.RunLister)

	eng := advisor.New(book, providers, orch,
		advisor.WithRecorder(storage.NewRecorder(store)),
		advisor.WithMetrics(m),
		advisor.WithModelName(narrative.ModelName(&cfg)),
		advisor.WithNewsLimit(cfg.NewsLimit),
		advisor.WithCrossRoleConfidence(cfg.CrossRoleConfidence),
	)

	return &Engine{
		Advisor: eng,
		Runs:    runs,
		Config:  cfg,
		BuiltAt: time.Now(),
		Version: engineSeq.Add(1),
		close:   closeStore,
	}, nil
}
