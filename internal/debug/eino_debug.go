// Package debug starts the Eino visual debugging server when enabled.
package debug

import (
	"context"
	"fmt"
	"strconv"

	"github.com/cloudwego/eino-ext/devops"
	"github.com/phuslu/log"

	"github.com/dyike/CortexAdvisor/config"
)

type EinoDebugger struct {
	enabled bool
	port    int
	started bool
}

func NewEinoDebugger(cfg *config.Config) *EinoDebugger {
	if cfg == nil {
		return &EinoDebugger{}
	}
	return &EinoDebugger{enabled: cfg.EinoDebugEnabled, port: cfg.EinoDebugPort}
}

// Initialize must run before the narrative graph is compiled so devops can
// register it. It is a no-op when debugging is disabled.
func (d *EinoDebugger) Initialize(ctx context.Context) error {
	if !d.enabled || d.started {
		return nil
	}

	var err error
	if d.port > 0 {
		err = devops.Init(ctx, devops.WithDevServerPort(strconv.Itoa(d.port)))
	} else {
		err = devops.Init(ctx)
	}
	if err != nil {
		return fmt.Errorf("init eino debug server: %w", err)
	}
	d.started = true

	log.Info().Str("url", d.URL()).Msg("eino debug server started")
	return nil
}

func (d *EinoDebugger) IsEnabled() bool {
	return d.enabled
}

func (d *EinoDebugger) URL() string {
	if !d.enabled {
		return ""
	}
	return fmt.Sprintf("http://localhost:%d", d.port)
}
