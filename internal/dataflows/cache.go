package dataflows

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// CacheManager keeps provider responses as JSON files named after the
// source, method and key so a cache directory can be inspected by hand.
type CacheManager struct {
	dir string
	ttl time.Duration
	on  bool
	now func() time.Time
}

// cacheEntry is the on-disk envelope. Expiry is judged from StoredAt, not
// the file mtime, so copied cache dirs keep their age.
type cacheEntry struct {
	StoredAt time.Time       `json:"stored_at"`
	Source   string          `json:"source"`
	Key      string          `json:"key"`
	Data     json.RawMessage `json:"data"`
}

// NewCacheManager returns a cache rooted at dir. A nil manager or an empty
// dir disables caching.
func NewCacheManager(dir string, ttl time.Duration, enabled bool) *CacheManager {
	return &CacheManager{dir: dir, ttl: ttl, on: enabled && dir != "", now: time.Now}
}

func (cm *CacheManager) enabled() bool {
	return cm != nil && cm.on
}

func (cm *CacheManager) file(source, method, key string) string {
	name := strings.Trim(unsafeKeyChars.ReplaceAllString(key, "_"), "_")
	return filepath.Join(cm.dir, fmt.Sprintf("%s_%s_%s.json", source, method, name))
}

// Get decodes a fresh entry into result. Expired or unreadable entries are
// removed and reported as a miss.
func (cm *CacheManager) Get(source, method, key string, result any) bool {
	if !cm.enabled() {
		return false
	}
	path := cm.file(source, method, key)
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}

	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil || cm.now().Sub(entry.StoredAt) > cm.ttl {
		_ = os.Remove(path)
		return false
	}
	return json.Unmarshal(entry.Data, result) == nil
}

func (cm *CacheManager) Set(source, method, key string, value any) error {
	if !cm.enabled() {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache value: %w", err)
	}
	data, err := json.MarshalIndent(cacheEntry{
		StoredAt: cm.now().UTC(),
		Source:   source,
		Key:      key,
		Data:     payload,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}

	if err := os.MkdirAll(cm.dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	path := cm.file(source, method, key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	return os.Rename(tmp, path)
}

// ValidateSymbol rejects empty tickers and tickers over 16 characters.
func ValidateSymbol(symbol string) error {
	symbol = NormalizeSymbol(symbol)
	if symbol == "" {
		return fmt.Errorf("%w: symbol cannot be empty", ErrInvalidSymbol)
	}
	if len(symbol) > 16 {
		return fmt.Errorf("%w: symbol too long: %s", ErrInvalidSymbol, symbol)
	}
	return nil
}

func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
