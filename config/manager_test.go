package config

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/CortexAdvisor/internal/scoring"
)

func TestManagerCreatesAndUpdates(t *testing.T) {
	dir := t.TempDir()
	mgr, err := NewManager(WithConfigDir(dir))
	require.NoError(t, err)

	path := filepath.Join(dir, "config.json")
	_, err = os.Stat(path)
	require.NoError(t, err, "config file not created")

	cfg := mgr.Get()
	assert.Equal(t, filepath.Join(dir, "outputs", "runs"), cfg.RunsDir)

	cfg.ProjectDir = filepath.Join(dir, "project")
	cfg.Watchlist = []string{"AAPL", "MSFT"}
	require.NoError(t, mgr.Update(cfg))

	updated := mgr.Get()
	assert.Equal(t, cfg.ProjectDir, updated.ProjectDir)
	assert.Equal(t, []string{"AAPL", "MSFT"}, updated.Watchlist)

	// the returned copy does not alias manager state
	updated.Watchlist[0] = "TSLA"
	assert.Equal(t, "AAPL", mgr.Get().Watchlist[0])

	reopened, err := NewManager(WithConfigDir(dir))
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, reopened.Get().Watchlist)
}

func TestManagerRejectsInvalidUpdate(t *testing.T) {
	mgr, err := NewManager(WithConfigDir(t.TempDir()))
	require.NoError(t, err)

	cfg := mgr.Get()
	cfg.RunStore = "postgres"
	assert.Error(t, mgr.Update(cfg))
	assert.Equal(t, "json", mgr.Get().RunStore)
}

func TestManagerFileWinsOverInitialConfig(t *testing.T) {
	dir := t.TempDir()
	first, err := NewManager(WithConfigDir(dir))
	require.NoError(t, err)
	cfg := first.Get()
	cfg.NewsLimit = 7
	require.NoError(t, first.Update(cfg))

	seed := *DefaultConfigWithRoot(dir)
	seed.NewsLimit = 1
	mgr, err := NewManager(WithConfigDir(dir), WithInitialConfig(&seed))
	require.NoError(t, err)
	assert.Equal(t, 7, mgr.Get().NewsLimit)
}

func TestManagerUpdateNotifiesOnce(t *testing.T) {
	mgr, err := NewManager(WithConfigDir(t.TempDir()), WithDebounce(20*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	require.NoError(t, mgr.Watch(ctx, func(Config) { calls.Add(1) }))

	require.NoError(t, mgr.Update(mgr.Get()))
	assert.Zero(t, calls.Load(), "unchanged config must not notify")

	cfg := mgr.Get()
	cfg.NewsLimit = 2
	require.NoError(t, mgr.Update(cfg))
	assert.Equal(t, int32(1), calls.Load())

	// the watcher sees our own write but the digest matches
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestManagerNotifiesEveryListener(t *testing.T) {
	mgr, err := NewManager(WithConfigDir(t.TempDir()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var got []int
	require.NoError(t, mgr.Watch(ctx, func(cfg Config) {
		got = append(got, cfg.NewsLimit)
		cfg.Watchlist = append(cfg.Watchlist, "ZZZ")
	}))
	require.NoError(t, mgr.Watch(ctx, func(cfg Config) {
		got = append(got, cfg.NewsLimit*10)
		assert.NotContains(t, cfg.Watchlist, "ZZZ", "listeners share a config copy")
	}))

	cfg := mgr.Get()
	cfg.NewsLimit = 5
	require.NoError(t, mgr.Update(cfg))
	assert.Equal(t, []int{5, 50}, got)
	assert.NotContains(t, mgr.Get().Watchlist, "ZZZ")
}

func TestManagerWatchReloads(t *testing.T) {
	dir := t.TempDir()
	mgr, err := NewManager(WithConfigDir(dir), WithDebounce(50*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan Config, 1)
	require.NoError(t, mgr.Watch(ctx, func(cfg Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	}))

	cfg := mgr.Get()
	cfg.NewsLimit = 3
	_, err = writeConfigFile(mgr.Path(), cfg)
	require.NoError(t, err)

	select {
	case got := <-reloaded:
		assert.Equal(t, 3, got.NewsLimit)
	case <-time.After(2 * time.Second):
		t.Fatalf("watcher did not fire on config change")
	}
}

func TestManagerWatchStrategiesFile(t *testing.T) {
	dir := t.TempDir()
	strategies := filepath.Join(dir, "strategies.yaml")
	require.NoError(t, WriteStrategyBook(strategies, scoring.DefaultBook()))

	seed := *DefaultConfigWithRoot(dir)
	seed.StrategiesFile = strategies
	mgr, err := NewManager(WithConfigDir(dir), WithInitialConfig(&seed), WithDebounce(50*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fired := make(chan Config, 4)
	require.NoError(t, mgr.Watch(ctx, func(cfg Config) { fired <- cfg }))

	stricter, err := scoring.NewBook(scoring.Thresholds{Buy: 85, Hold: 65, Watch: 45}, scoring.DefaultStrategies()...)
	require.NoError(t, err)
	require.NoError(t, WriteStrategyBook(strategies, stricter))

	select {
	case got := <-fired:
		assert.Equal(t, strategies, got.StrategiesFile)
	case <-time.After(2 * time.Second):
		t.Fatalf("watcher did not fire on strategies change")
	}

	// a broken book is not announced
	require.NoError(t, os.WriteFile(strategies, []byte("thresholds:\n  buy: 10\n  hold: 20\n"), 0o644))
	select {
	case <-fired:
		t.Fatalf("invalid strategies file must not notify")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestManagerRestoresRemovedFile(t *testing.T) {
	dir := t.TempDir()
	mgr, err := NewManager(WithConfigDir(dir), WithDebounce(20*time.Millisecond))
	require.NoError(t, err)
	cfg := mgr.Get()
	cfg.NewsLimit = 4
	require.NoError(t, mgr.Update(cfg))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, mgr.Watch(ctx, nil))

	require.NoError(t, os.Remove(mgr.Path()))
	require.Eventually(t, func() bool {
		_, err := os.Stat(mgr.Path())
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)

	reopened, err := NewManager(WithConfigDir(dir))
	require.NoError(t, err)
	assert.Equal(t, 4, reopened.Get().NewsLimit)
}

func TestManagerReload(t *testing.T) {
	dir := t.TempDir()
	mgr, err := NewManager(WithConfigDir(dir))
	require.NoError(t, err)

	cfg := mgr.Get()
	cfg.WatchStrategy = "Value"
	_, err = writeConfigFile(mgr.Path(), cfg)
	require.NoError(t, err)
	require.NoError(t, mgr.Reload())
	assert.Equal(t, "Value", mgr.Get().WatchStrategy)

	require.NoError(t, os.WriteFile(mgr.Path(), []byte("{"), 0o644))
	assert.Error(t, mgr.Reload())
	assert.Equal(t, "Value", mgr.Get().WatchStrategy)
}
