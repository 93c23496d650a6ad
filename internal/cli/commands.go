package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/phuslu/log"
	"github.com/spf13/cobra"

	"github.com/dyike/CortexAdvisor/config"
	"github.com/dyike/CortexAdvisor/internal/advisor"
	"github.com/dyike/CortexAdvisor/internal/app"
	"github.com/dyike/CortexAdvisor/internal/dataflows"
	"github.com/dyike/CortexAdvisor/internal/debug"
	"github.com/dyike/CortexAdvisor/internal/logger"
	"github.com/dyike/CortexAdvisor/internal/mcpserver"
	"github.com/dyike/CortexAdvisor/internal/metrics"
	"github.com/dyike/CortexAdvisor/internal/report"
	"github.com/dyike/CortexAdvisor/internal/scheduler"
	"github.com/dyike/CortexAdvisor/internal/server"
	"github.com/dyike/CortexAdvisor/models"
)

const Version = "1.0.0"

// session is shared by every subcommand of one invocation.
type session struct {
	configPath string
	debug      bool
	mgr        *config.Manager
}

func (s *session) config() config.Config {
	return s.mgr.Get()
}

// engine builds a one-shot engine. The Eino debugger, when enabled, must
// start before the narrative graph compiles.
func (s *session) engine(ctx context.Context) (*app.Engine, error) {
	cfg := s.config()
	if err := debug.NewEinoDebugger(&cfg).Initialize(ctx); err != nil {
		log.Warn().Err(err).Msg("eino debugger unavailable")
	}
	return app.BuildEngine(ctx, cfg, nil)
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	s := &session{}

	rootCmd := &cobra.Command{
		Use:   "cortex",
		Short: "CortexAdvisor - explainable stock recommendations",
		Long: `CortexAdvisor scores a security on six factors, weights them by a strategy,
rates the result and explains it with a four-role narrative.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := config.NewManager(
				config.WithConfigPath(s.configPath),
				config.WithInitialConfig(config.DefaultConfig()),
			)
			if err != nil {
				return err
			}
			s.mgr = mgr

			cfg := mgr.Get()
			logger.Setup(cfg.LogLevel, s.debug || cfg.Debug, cmd.ErrOrStderr())
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("failed to create directories: %w", err)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInteractiveMode(cmd.Context(), s, cmd.OutOrStdout())
		},
	}

	rootCmd.AddCommand(newAnalyzeCmd(s))
	rootCmd.AddCommand(newRankCmd(s))
	rootCmd.AddCommand(newHistoryCmd(s))
	rootCmd.AddCommand(newServeCmd(s))
	rootCmd.AddCommand(newWatchCmd(s))
	rootCmd.AddCommand(newMCPCmd(s))
	rootCmd.AddCommand(newConfigCmd(s))
	rootCmd.AddCommand(newVersionCmd())

	rootCmd.PersistentFlags().BoolVar(&s.debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&s.configPath, "config", "", "Configuration file path")

	return rootCmd
}

func newAnalyzeCmd(s *session) *cobra.Command {
	var strategy, horizon, reportDir string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "analyze SYMBOL",
		Short: "Analyze one security",
		Long: `Score, rate and explain a single security.
Example: cortex analyze AAPL --strategy Growth --horizon "1 Year"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			eng, err := s.engine(ctx)
			if err != nil {
				return err
			}
			defer eng.Close()

			if strategy == "" {
				strategy = eng.Config.WatchStrategy
			}
			out := cmd.OutOrStdout()
			if !asJSON {
				DisplayInfo(out, fmt.Sprintf("Analyzing %s with the %s strategy...", dataflows.NormalizeSymbol(args[0]), strategy))
			}

			rec, err := eng.Advisor.RunAnalysis(ctx, args[0], strategy, horizon)
			if err != nil {
				return fmt.Errorf("analysis failed: %w", err)
			}
			if reportDir != "" {
				if _, err := report.WriteMarkdown(reportDir, rec); err != nil {
					return err
				}
			}
			if asJSON {
				return writeJSON(out, rec)
			}
			fmt.Fprintln(out, RenderRecommendation(rec))
			return nil
		},
	}

	cmd.Flags().StringVarP(&strategy, "strategy", "s", "", "Strategy profile (default from config)")
	cmd.Flags().StringVar(&horizon, "horizon", DefaultHorizon, "Holding horizon passed to the narrative")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the recommendation as JSON")
	cmd.Flags().StringVar(&reportDir, "report", "", "Also write a Markdown report into this directory")
	return cmd
}

func newRankCmd(s *session) *cobra.Command {
	var strategy, horizon string
	var top int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "rank SECTOR",
		Short: "Rank the members of a sector",
		Long: `Analyze every member of a sector and print the best picks.
Sectors: ` + strings.Join(advisor.Sectors(), ", "),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			eng, err := s.engine(ctx)
			if err != nil {
				return err
			}
			defer eng.Close()

			if strategy == "" {
				strategy = eng.Config.WatchStrategy
			}
			recs, err := eng.Advisor.Rank(ctx, args[0], strategy, horizon, top)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), recs)
			}
			name, _, _ := advisor.SectorMembers(args[0])
			fmt.Fprintln(cmd.OutOrStdout(), RenderRanking(name+" / "+strategy, recs))
			return nil
		},
	}

	cmd.Flags().StringVarP(&strategy, "strategy", "s", "", "Strategy profile (default from config)")
	cmd.Flags().StringVar(&horizon, "horizon", DefaultHorizon, "Holding horizon passed to the narrative")
	cmd.Flags().IntVarP(&top, "top", "n", advisor.TopPerSector, "Number of picks to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the ranking as JSON")
	return cmd
}

func newHistoryCmd(s *session) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [SYMBOL]",
		Short: "List recorded runs, newest first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := app.BuildEngine(cmd.Context(), s.config(), nil)
			if err != nil {
				return err
			}
			defer eng.Close()
			if eng.Runs == nil {
				return fmt.Errorf("run store %q cannot list runs", eng.Config.RunStore)
			}

			symbol := ""
			if len(args) == 1 {
				symbol = dataflows.NormalizeSymbol(args[0])
			}
			runs, err := eng.Runs.List(cmd.Context(), symbol, limit)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), RenderHistory(runs))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum runs to list")
	return cmd
}

func newServeCmd(s *session) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the advisor over HTTP",
		Long: `Start the HTTP API. The engine is rebuilt whenever the config file changes,
and the watchlist is re-ranked on the configured schedule.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg := s.config()
			if err := debug.NewEinoDebugger(&cfg).Initialize(ctx); err != nil {
				log.Warn().Err(err).Msg("eino debugger unavailable")
			}

			m := metrics.NewManager()
			rt, err := app.NewRuntime(s.mgr, app.WithBuilder(app.NewBuilder(m)))
			if err != nil {
				return err
			}
			defer rt.Close()

			if addr == "" {
				addr = cfg.ListenAddr
			}
			srv := server.New(addr, rt, m)

			sched, err := startWatch(ctx, rt, cfg)
			if err != nil {
				return err
			}
			if sched != nil {
				defer sched.Stop()
				rt.Subscribe(func(ev app.Event) {
					if ev.Topic != app.TopicReloaded {
						return
					}
					if err := sched.Reschedule(ev.Engine.Config.WatchSchedule); err != nil {
						log.Warn().Err(err).Msg("keeping previous watch schedule")
					}
				})
			}

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config)")
	return cmd
}

func newMCPCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the advisor as MCP tools over stdio",
		Long: `Run a Model Context Protocol server on stdin and stdout so an assistant
can call analyze_security, rank_sector, list_strategies and recent_runs.
Logs go to stderr.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := app.NewRuntime(s.mgr, app.WithBuilder(app.NewBuilder(nil)))
			if err != nil {
				return err
			}
			defer rt.Close()

			log.Info().Str("version", Version).Msg("mcp server listening on stdio")
			return mcpserver.ServeStdio(mcpserver.New(rt, Version))
		},
	}
}

func newWatchCmd(s *session) *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-rank the watchlist on a schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg := s.config()
			if len(cfg.Watchlist) == 0 {
				return errors.New("watchlist is empty; set watchlist in the config file or WATCHLIST")
			}

			out := cmd.OutOrStdout()
			if once {
				eng, err := s.engine(ctx)
				if err != nil {
					return err
				}
				defer eng.Close()
				recs, err := eng.Advisor.RankSymbols(ctx, cfg.Watchlist, cfg.WatchStrategy, cfg.WatchHorizon, 0)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, RenderRanking("watchlist / "+cfg.WatchStrategy, recs))
				return nil
			}

			rt, err := app.NewRuntime(s.mgr)
			if err != nil {
				return err
			}
			defer rt.Close()

			sched, err := startWatch(ctx, rt, cfg, scheduler.WithResultHandler(func(w scheduler.Watch, recs []*models.Recommendation) {
				fmt.Fprintln(out, RenderRanking("watchlist / "+w.Strategy, recs))
			}))
			if err != nil {
				return err
			}
			if sched == nil {
				return errors.New("watch schedule is empty")
			}
			defer sched.Stop()

			DisplayInfo(out, fmt.Sprintf("Watching %d symbols, next pass at %s", len(cfg.Watchlist), sched.Next().Format(time.RFC1123)))
			<-ctx.Done()
			return nil
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "Rank the watchlist once and exit")
	return cmd
}

// startWatch returns nil when no schedule or watchlist is configured.
func startWatch(ctx context.Context, rt *app.Runtime, cfg config.Config, opts ...scheduler.Option) (*scheduler.Scheduler, error) {
	if cfg.WatchSchedule == "" || len(cfg.Watchlist) == 0 {
		return nil, nil
	}
	sched := scheduler.New(ctx, func() (scheduler.Ranker, scheduler.Watch, func()) {
		eng, release := rt.Acquire()
		if eng == nil {
			return nil, scheduler.Watch{}, release
		}
		c := eng.Config
		return eng.Advisor, scheduler.Watch{Symbols: c.Watchlist, Strategy: c.WatchStrategy, Horizon: c.WatchHorizon}, release
	}, opts...)
	if err := sched.Register(cfg.WatchSchedule); err != nil {
		return nil, err
	}
	sched.Start()
	return sched, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "CortexAdvisor v%s\n", Version)
		},
	}
}

func newConfigCmd(s *session) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration with secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "# %s\n", s.mgr.Path())
			return writeJSON(cmd.OutOrStdout(), maskSecrets(s.config()))
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the configuration file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), s.mgr.Path())
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration and strategy book",
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateConfig(cmd.OutOrStdout(), s.config())
		},
	})

	var write string
	strategiesCmd := &cobra.Command{
		Use:   "strategies",
		Short: "Show the strategy book, or write it as YAML with --write",
		RunE: func(cmd *cobra.Command, args []string) error {
			book, err := config.LoadStrategyBook(s.config().StrategiesFile)
			if err != nil {
				return err
			}
			if write != "" {
				if err := config.WriteStrategyBook(write, book); err != nil {
					return err
				}
				DisplaySuccess(cmd.OutOrStdout(), "Strategy book written to "+write)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), RenderStrategies(book))
			return nil
		},
	}
	strategiesCmd.Flags().StringVar(&write, "write", "", "Write the effective strategy book to this YAML file")
	configCmd.AddCommand(strategiesCmd)

	return configCmd
}

func validateConfig(w io.Writer, cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		DisplayError(w, err)
		return err
	}
	if _, err := config.LoadStrategyBook(cfg.StrategiesFile); err != nil {
		DisplayError(w, err)
		return err
	}

	var warnings []string
	if cfg.LLMProvider != "none" && cfg.APIKey() == "" {
		warnings = append(warnings, fmt.Sprintf("%s API key not configured, narratives will use the fallback", cfg.LLMProvider))
	}
	if cfg.FundamentalsSource == "finnhub" && cfg.FinnhubAPIKey == "" {
		warnings = append(warnings, "finnhub fundamentals selected without an API key")
	}

	for _, warning := range warnings {
		fmt.Fprintln(w, warningStyle.Render("! "+warning))
	}
	DisplaySuccess(w, "Configuration is valid")
	return nil
}

// maskSecrets keeps only whether each key is set.
func maskSecrets(cfg config.Config) config.Config {
	for _, key := range []*string{
		&cfg.DeepSeekAPIKey, &cfg.OpenAIAPIKey, &cfg.AnthropicAPIKey, &cfg.GeminiAPIKey,
		&cfg.FinnhubAPIKey, &cfg.LongportAppKey, &cfg.LongportAppSecret, &cfg.LongportAccessToken,
	} {
		if *key != "" {
			*key = "****"
		}
	}
	return cfg
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
