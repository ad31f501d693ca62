package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/selivandex/forecastr/internal/adapters/config"
	"github.com/selivandex/forecastr/internal/adapters/database"
)

// rootOptions are the global flags
type rootOptions struct {
	envFile string
	json    bool
	cfg     *config.Config
}

// newRootCmd creates the root command
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "forecastr",
		Short: "forecastr - confluence engine for price levels and astro timing",
		Long: `forecastr rates instruments by combining support/resistance levels, indicators
and an astronomical event calendar, forecasts converging swings and detects
forward trading windows.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := initConfig(opts.envFile)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			opts.cfg = cfg
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.envFile, "env", ".env", "Env file loaded before the environment")
	rootCmd.PersistentFlags().BoolVar(&opts.json, "json", false, "Print JSON instead of tables")

	rootCmd.AddCommand(
		newServeCmd(opts),
		newRateCmd(opts),
		newRatingsCmd(opts),
		newLevelsCmd(opts),
		newWindowsCmd(opts),
		newConvergenceCmd(opts),
		newReversalsCmd(opts),
		newFeaturedCmd(opts),
		newUniverseCmd(opts),
		newMigrateCmd(opts),
	)
	return rootCmd
}

// withApp builds the service graph for a one-shot command
func withApp(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, opts.cfg, false)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

// output prints v as JSON or through the table renderer
func output(opts *rootOptions, v interface{}, render func() string) error {
	if opts.json {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	fmt.Println(render())
	return nil
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, featured refresh worker and digest scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts.cfg)
		},
	}
}

func newRateCmd(opts *rootOptions) *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "rate SYMBOL",
		Short: "Rate one instrument",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				rating, err := a.engine.GetRating(ctx, args[0], category)
				if err != nil {
					return err
				}
				return output(opts, rating, func() string { return renderRating(rating) })
			})
		},
	}
	cmd.Flags().StringVarP(&category, "category", "c", "equities", "Instrument category")
	return cmd
}

func newRatingsCmd(opts *rootOptions) *cobra.Command {
	var (
		category string
		minScore float64
	)
	cmd := &cobra.Command{
		Use:   "ratings",
		Short: "Rate every instrument of a category",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				result, err := a.engine.GetBatchRatings(ctx, category, minScore)
				if err != nil {
					return err
				}
				return output(opts, result, func() string { return renderBatch(category, result) })
			})
		},
	}
	cmd.Flags().StringVarP(&category, "category", "c", "equities", "Instrument category")
	cmd.Flags().Float64Var(&minScore, "min-score", 0, "Drop ratings below this total score")
	return cmd
}

func newLevelsCmd(opts *rootOptions) *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "levels SYMBOL",
		Short: "Compute and persist support/resistance levels",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				set, err := a.engine.GetLevels(ctx, args[0], category)
				if err != nil {
					return err
				}
				return output(opts, set, func() string { return renderLevels(args[0], set) })
			})
		},
	}
	cmd.Flags().StringVarP(&category, "category", "c", "equities", "Instrument category")
	return cmd
}

func newWindowsCmd(opts *rootOptions) *cobra.Command {
	var (
		category string
		days     int
	)
	cmd := &cobra.Command{
		Use:   "windows SYMBOL",
		Short: "Detect forward trading windows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				windows, err := a.engine.DetectTradingWindows(ctx, args[0], category, days)
				if err != nil {
					return err
				}
				return output(opts, windows, func() string { return renderWindows(args[0], windows) })
			})
		},
	}
	cmd.Flags().StringVarP(&category, "category", "c", "equities", "Instrument category")
	cmd.Flags().IntVarP(&days, "days", "d", 30, "Days ahead to scan")
	return cmd
}

func newConvergenceCmd(opts *rootOptions) *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "convergence [SYMBOL...]",
		Short: "Forecast swings where independent methods converge",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				forecasts, err := a.engine.DetectConvergenceForecastedSwings(ctx, args, category)
				if err != nil {
					return err
				}
				return output(opts, forecasts, func() string { return renderConvergence(forecasts) })
			})
		},
	}
	cmd.Flags().StringVarP(&category, "category", "c", "equities", "Instrument category")
	return cmd
}

func newReversalsCmd(opts *rootOptions) *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "reversals [SYMBOL...]",
		Short: "Find instruments moving with momentum after a fresh reversal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				opps, err := a.engine.DetectPostReversalMomentum(ctx, args, category)
				if err != nil {
					return err
				}
				return output(opts, opps, func() string { return renderReversals(opps) })
			})
		},
	}
	cmd.Flags().StringVarP(&category, "category", "c", "equities", "Instrument category")
	return cmd
}

func newFeaturedCmd(opts *rootOptions) *cobra.Command {
	featuredCmd := &cobra.Command{
		Use:   "featured",
		Short: "Featured ticker cache",
	}

	var category string
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show cached featured tickers of a category",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				rows, err := a.featured.Featured(ctx, category)
				if err != nil {
					return err
				}
				return output(opts, rows, func() string { return renderFeatured(category, rows) })
			})
		},
	}
	showCmd.Flags().StringVarP(&category, "category", "c", "equities", "Instrument category")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Report whether the featured cache is stale",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				d, err := a.featured.ShouldRefresh(ctx)
				if err != nil {
					return err
				}
				return output(opts, d, func() string { return renderDecision(d) })
			})
		},
	}

	var force bool
	refreshCmd := &cobra.Command{
		Use:   "refresh",
		Short: "Recompute featured tickers when stale",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				d, err := a.featured.Refresh(ctx, force)
				if err != nil {
					return err
				}
				return output(opts, d, func() string { return renderDecision(d) })
			})
		},
	}
	refreshCmd.Flags().BoolVar(&force, "force", false, "Refresh even when the cache is fresh")

	featuredCmd.AddCommand(showCmd, statusCmd, refreshCmd)
	return featuredCmd
}

func newUniverseCmd(opts *rootOptions) *cobra.Command {
	universeCmd := &cobra.Command{
		Use:   "universe",
		Short: "Manage the symbol universe",
	}

	universeCmd.AddCommand(&cobra.Command{
		Use:   "add CATEGORY SYMBOL...",
		Short: "Add symbols to a category",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				if err := a.engine.ValidateCategory(args[0]); err != nil {
					return err
				}
				if err := a.repo.AddToUniverse(ctx, args[0], args[1:]...); err != nil {
					return err
				}
				fmt.Println(successStyle.Render(fmt.Sprintf("added %d symbols to %s", len(args)-1, args[0])))
				return nil
			})
		},
	})

	universeCmd.AddCommand(&cobra.Command{
		Use:   "list CATEGORY",
		Short: "List symbols of a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				symbols, err := a.repo.GetSymbolUniverse(ctx, args[0])
				if err != nil {
					return err
				}
				return output(opts, symbols, func() string { return renderUniverse(args[0], symbols) })
			})
		},
	})
	return universeCmd
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migrations",
	}

	withDB := func(fn func(db *database.DB) error) error {
		db, err := database.New(&opts.cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()
		return fn(db)
	}

	migrateCmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withDB(func(db *database.DB) error {
					return db.RunMigrations(opts.cfg.Database.MigrationsPath)
				})
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the last migration",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withDB(func(db *database.DB) error {
					return db.RollbackMigration(opts.cfg.Database.MigrationsPath)
				})
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Show the current migration version",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withDB(func(db *database.DB) error {
					version, dirty, err := db.MigrationVersion(opts.cfg.Database.MigrationsPath)
					if err != nil {
						return err
					}
					fmt.Printf("version %d (dirty: %v)\n", version, dirty)
					return nil
				})
			},
		},
	)
	return migrateCmd
}
