// Package narrative drives the market, fundamentals, risk and synthesizer
// roles over an eino graph and guarantees a non-empty narrative.
package narrative

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/phuslu/log"

	"github.com/dyike/CortexAdvisor/consts"
)

var (
	ErrNoModel        = errors.New("no text generation model configured")
	ErrEmptyNarrative = errors.New("synthesizer returned an empty narrative")
)

const graphName = "CortexAdvisor-Narrative"

// narrativeState is the graph-local state of one invocation.
type narrativeState struct {
	Phase   string
	Reports map[string]string
}

type draft struct {
	Text    string
	Reports map[string]string
}

type Orchestrator struct {
	model    model.BaseChatModel
	runnable compose.Runnable[*Brief, *draft]
	observer NodeObserver
}

type Option func(*Orchestrator)

func WithNodeObserver(obs NodeObserver) Option {
	return func(o *Orchestrator) { o.observer = obs }
}

// NewOrchestrator compiles the role graph around chatModel. A nil model is
// allowed; every Narrate call then falls back.
func NewOrchestrator(ctx context.Context, chatModel model.BaseChatModel, opts ...Option) (*Orchestrator, error) {
	o := &Orchestrator{model: chatModel}
	for _, opt := range opts {
		opt(o)
	}
	if chatModel == nil {
		return o, nil
	}

	g := compose.NewGraph[*Brief, *draft](
		compose.WithGenLocalState(func(ctx context.Context) *narrativeState {
			return &narrativeState{Phase: consts.State_Pending, Reports: make(map[string]string, 3)}
		}),
	)

	analysts := []string{consts.MarketAnalyst, consts.FundamentalsAnalyst, consts.RiskAnalyst}
	for _, role := range analysts {
		if err := g.AddLambdaNode(role, compose.InvokableLambda(o.analyst(role)), compose.WithNodeName(role)); err != nil {
			return nil, fmt.Errorf("add %s node: %w", role, err)
		}
	}
	if err := g.AddLambdaNode(consts.Synthesizer, compose.InvokableLambda(o.synthesize), compose.WithNodeName(consts.Synthesizer)); err != nil {
		return nil, fmt.Errorf("add %s node: %w", consts.Synthesizer, err)
	}

	// fixed dispatch order; the synthesizer needs all three reports
	order := append([]string{compose.START}, consts.Roles...)
	order = append(order, compose.END)
	for i := 0; i+1 < len(order); i++ {
		if err := g.AddEdge(order[i], order[i+1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", order[i], order[i+1], err)
		}
	}

	r, err := g.Compile(ctx, compose.WithGraphName(graphName))
	if err != nil {
		return nil, fmt.Errorf("compile narrative graph: %w", err)
	}
	o.runnable = r
	return o, nil
}

// Narrate runs all roles once. Any failure, including a panic, or a blank
// synthesizer reply yields the deterministic fallback instead. It never
// returns an empty text.
func (o *Orchestrator) Narrate(ctx context.Context, brief *Brief) (res Result) {
	if brief == nil {
		brief = &Brief{}
	}
	defer func() {
		if r := recover(); r != nil {
			res = o.fallback(brief, fmt.Errorf("narrative panic: %v", r))
		}
	}()

	if o.runnable == nil {
		return o.fallback(brief, ErrNoModel)
	}

	handler := newLoggerCallback(brief.Identifier, o.observer)
	out, err := o.runnable.Invoke(ctx, brief, compose.WithCallbacks(handler))
	if err != nil {
		return o.fallback(brief, err)
	}
	if out == nil || strings.TrimSpace(out.Text) == "" {
		return o.fallback(brief, ErrEmptyNarrative)
	}

	return Result{
		Text:    strings.TrimSpace(out.Text),
		Source:  consts.Source_Model,
		Phase:   consts.State_Complete,
		Reports: out.Reports,
	}
}

func (o *Orchestrator) fallback(b *Brief, cause error) Result {
	log.Warn().Str("ticker", b.Identifier).Err(cause).Msg("narrative generation failed, using fallback template")
	return Result{
		Text:   Fallback(b.Identifier, b.Rating, b.OverallScore, b.Matrix),
		Source: consts.Source_Fallback,
		Phase:  consts.State_Fallback,
		Err:    cause,
	}
}

func (o *Orchestrator) analyst(role string) func(context.Context, *Brief) (*Brief, error) {
	return func(ctx context.Context, brief *Brief) (*Brief, error) {
		msgs, err := renderRole(ctx, role, roleVariables(role, brief, nil))
		if err != nil {
			return nil, err
		}
		report, err := o.generate(ctx, role, msgs)
		if err != nil {
			return nil, err
		}
		err = compose.ProcessState[*narrativeState](ctx, func(_ context.Context, s *narrativeState) error {
			s.Reports[role] = report
			if role == consts.RiskAnalyst {
				s.Phase = consts.State_Synthesizing
			}
			return nil
		})
		return brief, err
	}
}

func (o *Orchestrator) synthesize(ctx context.Context, brief *Brief) (*draft, error) {
	var reports map[string]string
	err := compose.ProcessState[*narrativeState](ctx, func(_ context.Context, s *narrativeState) error {
		reports = make(map[string]string, len(s.Reports))
		for k, v := range s.Reports {
			reports[k] = v
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	msgs, err := renderRole(ctx, consts.Synthesizer, roleVariables(consts.Synthesizer, brief, reports))
	if err != nil {
		return nil, err
	}
	text, err := o.generate(ctx, consts.Synthesizer, msgs)
	if err != nil {
		return nil, err
	}

	err = compose.ProcessState[*narrativeState](ctx, func(_ context.Context, s *narrativeState) error {
		s.Phase = consts.State_Complete
		return nil
	})
	return &draft{Text: text, Reports: reports}, err
}

func (o *Orchestrator) generate(ctx context.Context, role string, msgs []*schema.Message) (string, error) {
	out, err := o.model.Generate(ctx, msgs)
	if err != nil {
		return "", fmt.Errorf("%s: %w", role, err)
	}
	if out == nil {
		return "", nil
	}
	return out.Content, nil
}
