package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/AlecAivazis/survey/v2/terminal"

	"github.com/dyike/CortexAdvisor/internal/advisor"
)

// runInteractiveMode drives the prompt loop until the user quits. One
// engine serves the whole session.
func runInteractiveMode(ctx context.Context, s *session, out io.Writer) error {
	DisplayWelcomeBanner(out)

	eng, err := s.engine(ctx)
	if err != nil {
		return err
	}
	defer eng.Close()

	for {
		action, err := PromptForAction()
		if errors.Is(err, terminal.InterruptErr) || action == actionQuit {
			fmt.Fprintln(out, "Goodbye.")
			return nil
		}
		if err != nil {
			return err
		}

		switch action {
		case actionAnalyze:
			err = interactiveAnalyze(ctx, eng.Advisor, eng.Config.WatchStrategy, out)
		case actionRank:
			err = interactiveRank(ctx, eng.Advisor, eng.Config.WatchStrategy, out)
		case actionHistory:
			if eng.Runs == nil {
				err = fmt.Errorf("run store %q cannot list runs", eng.Config.RunStore)
				break
			}
			runs, lerr := eng.Runs.List(ctx, "", 10)
			if lerr != nil {
				err = lerr
				break
			}
			fmt.Fprintln(out, RenderHistory(runs))
		}

		if errors.Is(err, terminal.InterruptErr) {
			continue
		}
		if err != nil {
			DisplayError(out, err)
		}
		fmt.Fprintln(out, strings.Repeat("-", 60))
	}
}

func interactiveAnalyze(ctx context.Context, eng *advisor.Engine, defStrategy string, out io.Writer) error {
	ticker, err := PromptForTicker()
	if err != nil {
		return err
	}
	strategy, err := PromptForStrategy(eng.Book().Names(), defStrategy)
	if err != nil {
		return err
	}
	horizon, err := PromptForHorizon()
	if err != nil {
		return err
	}

	DisplayInfo(out, fmt.Sprintf("Analyzing %s...", ticker))
	rec, err := eng.RunAnalysis(ctx, ticker, strategy, horizon)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, RenderRecommendation(rec))
	return nil
}

func interactiveRank(ctx context.Context, eng *advisor.Engine, defStrategy string, out io.Writer) error {
	sector, err := PromptForSector(advisor.Sectors())
	if err != nil {
		return err
	}
	strategy, err := PromptForStrategy(eng.Book().Names(), defStrategy)
	if err != nil {
		return err
	}

	DisplayInfo(out, fmt.Sprintf("Ranking %s, this analyzes every member...", sector))
	recs, err := eng.Rank(ctx, sector, strategy, DefaultHorizon, advisor.TopPerSector)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, RenderRanking(sector+" / "+strategy, recs))
	return nil
}
