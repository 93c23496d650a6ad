package app

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/phuslu/log"

	"github.com/dyike/CortexAdvisor/config"
)

const (
	TopicReloaded     = "engine.reloaded"
	TopicReloadFailed = "engine.reload_failed"
)

// Event describes one rebuild attempt. Engine is the engine now serving,
// which is the previous one when Err is set.
type Event struct {
	Topic  string
	Engine *Engine
	Err    error
}

type Option func(*Runtime)

func WithBuilder(builder EngineBuilder) Option {
	return func(r *Runtime) {
		if builder != nil {
			r.builder = builder
		}
	}
}

// WithoutWatch skips the config file watcher, for one-shot commands.
func WithoutWatch() Option {
	return func(r *Runtime) {
		r.watch = false
	}
}

// Runtime serves the current engine and rebuilds it whenever the config
// manager reports a change. A failed rebuild keeps the previous engine
// serving; a successful one retires it, closing it once no caller holds it.
type Runtime struct {
	cfgMgr  *config.Manager
	builder EngineBuilder
	watch   bool
	cancel  context.CancelFunc

	engine atomic.Pointer[Engine]

	mu          sync.Mutex
	closed      bool
	subscribers []func(Event)
}

func NewRuntime(cfgMgr *config.Manager, opts ...Option) (*Runtime, error) {
	if cfgMgr == nil {
		return nil, errors.New("config manager is required")
	}

	rt := &Runtime{cfgMgr: cfgMgr, builder: NewBuilder(nil), watch: true}
	for _, opt := range opts {
		opt(rt)
	}

	first, err := rt.builder(cfgMgr.Get())
	if err != nil {
		return nil, err
	}
	rt.engine.Store(first)
	log.Info().Uint64("version", first.Version).Msg("engine ready")

	if !rt.watch {
		return rt, nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	rt.cancel = cancel
	if err := cfgMgr.Watch(ctx, rt.rebuild); err != nil {
		cancel()
		_ = first.Close()
		return nil, err
	}
	return rt, nil
}

// Subscribe registers fn for every later rebuild attempt.
func (r *Runtime) Subscribe(fn func(Event)) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.subscribers = append(r.subscribers, fn)
	r.mu.Unlock()
}

// Engine returns the current engine for reading its config or version.
// Work that touches the run store goes through Acquire.
func (r *Runtime) Engine() *Engine {
	return r.engine.Load()
}

// Acquire pins the current engine until release is called. A reload that
// replaces it in the meantime defers closing it until then.
func (r *Runtime) Acquire() (*Engine, func()) {
	for {
		eng := r.engine.Load()
		if eng == nil {
			return nil, func() {}
		}
		if eng.acquire() {
			var once sync.Once
			return eng, func() { once.Do(eng.release) }
		}
		if r.engine.Load() == eng {
			// retired by Close
			return nil, func() {}
		}
	}
}

func (r *Runtime) Config() config.Config {
	return r.cfgMgr.Get()
}

// Close stops watching and retires the serving engine. Config changes that
// arrive afterwards are ignored.
func (r *Runtime) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	if r.cancel != nil {
		r.cancel()
	}
	return r.Engine().retire()
}

func (r *Runtime) rebuild(cfg config.Config) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}

	next, err := r.builder(cfg)
	var ev Event
	if err != nil {
		log.Error().Err(err).Msg("engine reload failed, keeping previous engine")
		ev = Event{Topic: TopicReloadFailed, Engine: r.Engine(), Err: err}
	} else {
		if prev := r.engine.Swap(next); prev != nil {
			if cerr := prev.retire(); cerr != nil {
				log.Warn().Err(cerr).Uint64("version", prev.Version).Msg("close previous engine")
			}
		}
		log.Info().Uint64("version", next.Version).Msg("engine reloaded")
		ev = Event{Topic: TopicReloaded, Engine: next}
	}
	subscribers := slices.Clone(r.subscribers)
	r.mu.Unlock()

	for _, fn := range subscribers {
		fn(ev)
	}
}
