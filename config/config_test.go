package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/CortexAdvisor/internal/scoring"
)

func TestDefaultConfigWithRootIsValid(t *testing.T) {
	cfg := DefaultConfigWithRoot(t.TempDir())
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 5, cfg.NewsLimit)
	assert.Equal(t, "json", cfg.RunStore)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"provider":  func(c *Config) { c.LLMProvider = "mystery" },
		"store":     func(c *Config) { c.RunStore = "s3" },
		"sqlite":    func(c *Config) { c.RunStore = "sqlite"; c.SQLitePath = "" },
		"longport":  func(c *Config) { c.PriceSource = "longport" },
		"finnhub":   func(c *Config) { c.NewsSource = "finnhub" },
		"newsLimit": func(c *Config) { c.NewsLimit = -1 },
		"level":     func(c *Config) { c.LogLevel = "loud" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfigWithRoot(t.TempDir())
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "claude")
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
	t.Setenv("NEWS_LIMIT", "3")
	t.Setenv("CACHE_ENABLED", "false")
	t.Setenv("WATCHLIST", "aapl, msft ,,nvda")

	cfg := DefaultConfigWithRoot(t.TempDir())
	cfg.loadFromEnv()

	assert.Equal(t, "claude", cfg.LLMProvider)
	assert.Equal(t, "sk-test", cfg.APIKey())
	assert.Equal(t, 3, cfg.NewsLimit)
	assert.False(t, cfg.CacheEnabled)
	assert.Equal(t, []string{"AAPL", "MSFT", "NVDA"}, cfg.Watchlist)
}

func TestEnsureDirectories(t *testing.T) {
	cfg := DefaultConfigWithRoot(t.TempDir())
	require.NoError(t, cfg.EnsureDirectories())
	info, err := os.Stat(cfg.RunsDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestLoadStrategyBookDefaults(t *testing.T) {
	book, err := LoadStrategyBook("")
	require.NoError(t, err)
	assert.Equal(t, []string{"Balanced", "Growth", "Value"}, book.Names())
	assert.Equal(t, scoring.DefaultThresholds(), book.Thresholds())
}

func TestLoadStrategyBookFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strategies.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
thresholds:
  buy: 75
strategies:
  - name: Momentum
    weights:
      momentum: 0.6
      risk: 0.4
`), 0o644))

	book, err := LoadStrategyBook(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Momentum"}, book.Names())
	assert.Equal(t, scoring.Thresholds{Buy: 75, Hold: 60, Watch: 40}, book.Thresholds())

	_, w, err := book.Lookup("momentum")
	require.NoError(t, err)
	assert.Equal(t, 0.6, w["momentum"])
}

func TestLoadStrategyBookEnvOverride(t *testing.T) {
	t.Setenv("ADVISOR_THRESHOLDS_WATCH", "45")
	book, err := LoadStrategyBook("")
	require.NoError(t, err)
	assert.Equal(t, 45.0, book.Thresholds().Watch)
}

func TestLoadStrategyBookRejectsBadThresholds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strategies.yaml")
	require.NoError(t, os.WriteFile(path, []byte("thresholds:\n  buy: 50\n  hold: 60\n  watch: 40\n"), 0o644))

	_, err := LoadStrategyBook(path)
	assert.ErrorIs(t, err, scoring.ErrThresholdOrder)
}

func TestWriteStrategyBookRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "strategies.yaml")
	require.NoError(t, WriteStrategyBook(path, scoring.DefaultBook()))

	book, err := LoadStrategyBook(path)
	require.NoError(t, err)
	assert.Equal(t, scoring.DefaultBook().Strategies(), book.Strategies())
}
