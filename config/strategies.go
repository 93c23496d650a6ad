package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"

	"github.com/dyike/CortexAdvisor/internal/scoring"
)

// StrategyEnvPrefix overrides thresholds from the environment, e.g.
// ADVISOR_THRESHOLDS_BUY=75.
const StrategyEnvPrefix = "ADVISOR_"

type strategyFile struct {
	Thresholds scoring.Thresholds `koanf:"thresholds" yaml:"thresholds"`
	Strategies []scoring.Strategy `koanf:"strategies" yaml:"strategies"`
}

// LoadStrategyBook layers the built-in book, an optional YAML file and
// ADVISOR_ env vars, then validates the result. A missing file is not an
// error when path is empty.
func LoadStrategyBook(path string) (*scoring.Book, error) {
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("strategies file: %w", err)
		}
		if err := k.Load(file.Provider(path), kyaml.Parser()); err != nil {
			return nil, fmt.Errorf("load strategies %s: %w", path, err)
		}
	}

	envProvider := env.Provider(StrategyEnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, StrategyEnvPrefix)
		return strings.ReplaceAll(strings.ToLower(s), "_", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load strategy env: %w", err)
	}

	out := strategyFile{Thresholds: scoring.DefaultThresholds()}
	if err := k.UnmarshalWithConf("", &out, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("decode strategies: %w", err)
	}
	if len(out.Strategies) == 0 {
		out.Strategies = scoring.DefaultStrategies()
	}

	book, err := scoring.NewBook(out.Thresholds, out.Strategies...)
	if err != nil {
		return nil, fmt.Errorf("strategy book: %w", err)
	}
	return book, nil
}

// WriteStrategyBook dumps book as YAML so it can be edited and loaded back.
func WriteStrategyBook(path string, book *scoring.Book) error {
	if book == nil {
		return errors.New("book is required")
	}
	data, err := yaml.Marshal(strategyFile{
		Thresholds: book.Thresholds(),
		Strategies: book.Strategies(),
	})
	if err != nil {
		return fmt.Errorf("encode strategies: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create strategies dir: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
