package narrative

import (
	"context"
	"time"

	"github.com/cloudwego/eino/callbacks"
	"github.com/phuslu/log"
)

type startKey struct{ name string }

// NodeObserver receives per-node timings, e.g. for metrics.
type NodeObserver interface {
	ObserveNode(name string, d time.Duration, err error)
}

// newLoggerCallback logs the lifecycle of every node in the narrative graph.
func newLoggerCallback(identifier string, obs NodeObserver) callbacks.Handler {
	return callbacks.NewHandlerBuilder().
		OnStartFn(func(ctx context.Context, info *callbacks.RunInfo, _ callbacks.CallbackInput) context.Context {
			if info == nil {
				return ctx
			}
			log.Debug().Str("node", info.Name).Str("component", string(info.Component)).Str("ticker", identifier).Msg("narrative node start")
			return context.WithValue(ctx, startKey{info.Name}, time.Now())
		}).
		OnEndFn(func(ctx context.Context, info *callbacks.RunInfo, _ callbacks.CallbackOutput) context.Context {
			if info == nil {
				return ctx
			}
			d := elapsed(ctx, info.Name)
			log.Debug().Str("node", info.Name).Str("ticker", identifier).Dur("elapsed", d).Msg("narrative node end")
			if obs != nil {
				obs.ObserveNode(info.Name, d, nil)
			}
			return ctx
		}).
		OnErrorFn(func(ctx context.Context, info *callbacks.RunInfo, err error) context.Context {
			if info == nil {
				return ctx
			}
			d := elapsed(ctx, info.Name)
			log.Warn().Str("node", info.Name).Str("ticker", identifier).Dur("elapsed", d).Err(err).Msg("narrative node failed")
			if obs != nil {
				obs.ObserveNode(info.Name, d, err)
			}
			return ctx
		}).
		Build()
}

func elapsed(ctx context.Context, name string) time.Duration {
	if t, ok := ctx.Value(startKey{name}).(time.Time); ok {
		return time.Since(t)
	}
	return 0
}
