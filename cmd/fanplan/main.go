// Command fanplan runs the season-ticket data pipeline steps.
//
// Usage:
//
//	fanplan clean-seats --seats Prompt1SeatLevel.csv --games Prompt1GameLevel.csv
//	fanplan aggregate --in Prompt1SeatLevel.csv --out Prompt1AccountLevel.csv --workers 4
//	fanplan aggregate --store --publish --sqlite accounts.db
//	fanplan sort-accounts --in AccountInfo.csv --out AccountInfo_sorted.csv
//	fanplan update-accounts --info AccountInfo_sorted.csv --accounts Prompt1AccountLevel.csv
//	fanplan diff --left seasonticket.csv --right sorted_prompt1accountlevel.csv --out seasontickets.csv
//	fanplan features --in NONseasonticket.csv --out enhanced_NONseasonticketing_data.csv
//	fanplan load --in Prompt1AccountLevel.csv
//	fanplan export --in Prompt1AccountLevel.csv --db accounts.db --table account_level
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/albapepper/fanplan/internal/account"
	"github.com/albapepper/fanplan/internal/aggregate"
	"github.com/albapepper/fanplan/internal/config"
	"github.com/albapepper/fanplan/internal/features"
	"github.com/albapepper/fanplan/internal/seat"
	"github.com/albapepper/fanplan/internal/table"
)

var (
	logLevel = new(slog.LevelVar)
	logger   = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
)

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:           "fanplan",
		Short:         "Season-ticket account pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(cleanSeatsCmd())
	root.AddCommand(aggregateCmd())
	root.AddCommand(sortAccountsCmd())
	root.AddCommand(updateAccountsCmd())
	root.AddCommand(diffCmd())
	root.AddCommand(featuresCmd())
	root.AddCommand(loadCmd())
	root.AddCommand(exportCmd())

	if err := root.Execute(); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// clean-seats command
// --------------------------------------------------------------------------

func cleanSeatsCmd() *cobra.Command {
	var (
		seatsPath, gamesPath, outPath string
		policy                        string
		strictJoin                    bool
	)
	cmd := &cobra.Command{
		Use:   "clean-seats",
		Short: "Derive day-type and promotional flags on the seat-level file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStep(func(ctx context.Context, cfg *config.Config) error {
				opts := seat.CleanOptions{Policy: cfg.InvalidRecordPolicy, StrictJoin: cfg.StrictGameJoin}
				if err := overridePolicy(cmd, policy, &opts.Policy); err != nil {
					return err
				}
				if cmd.Flags().Changed("strict-join") {
					opts.StrictJoin = strictJoin
				}

				seats, err := table.Load(seatsPath)
				if err != nil {
					return err
				}
				games, err := table.Load(gamesPath)
				if err != nil {
					return err
				}

				start := time.Now()
				out, res, err := seat.Clean(seats, games, opts)
				if err != nil {
					return fmt.Errorf("clean %s: %w", seatsPath, err)
				}
				if outPath == "" {
					outPath = seatsPath
				}
				if err := out.Write(outPath); err != nil {
					return err
				}
				logger.Info("Seat cleaning finished",
					"duration", time.Since(start).Round(time.Millisecond),
					"out", outPath,
					"summary", res.Summary())
				if res.Unmatched > 0 {
					logger.Warn("Seat rows without a matching game treated as non-promotional", "rows", res.Unmatched)
				}
				if res.Undated > 0 {
					logger.Warn("Seat rows with unparseable GameDate left undetermined", "rows", res.Undated)
				}
				if res.DuplicateGames > 0 {
					logger.Warn("Game file repeats games; first row used", "duplicates", res.DuplicateGames)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&seatsPath, "seats", config.DefaultSeatFile, "Seat-level CSV")
	cmd.Flags().StringVar(&gamesPath, "games", config.DefaultGameFile, "Game-level CSV")
	cmd.Flags().StringVar(&outPath, "out", "", "Output CSV (default: overwrite --seats)")
	cmd.Flags().StringVar(&policy, "policy", "", "Invalid record policy: drop or strict (default from INVALID_RECORD_POLICY)")
	cmd.Flags().BoolVar(&strictJoin, "strict-join", false, "Fail when a seat's game is missing from the game file")
	return cmd
}

// --------------------------------------------------------------------------
// aggregate command
// --------------------------------------------------------------------------

func aggregateCmd() *cobra.Command {
	var (
		inPath, outPath, sqlitePath string
		policy                      string
		workers                     int
		storeResults, publishResult bool
	)
	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Aggregate seat records into one summary per season and account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStep(func(ctx context.Context, cfg *config.Config) error {
				opts := aggregate.Options{Policy: cfg.InvalidRecordPolicy, Workers: cfg.AggregateWorkers}
				if err := overridePolicy(cmd, policy, &opts.Policy); err != nil {
					return err
				}
				if cmd.Flags().Changed("workers") {
					opts.Workers = workers
				}

				in, err := table.Load(inPath)
				if err != nil {
					return err
				}

				start := time.Now()
				out, summaries, res, err := aggregate.Table(in, opts)
				var empty *table.EmptyInputError
				switch {
				case errors.As(err, &empty):
					logger.Warn("No seat records; writing header-only output", "in", inPath)
				case err != nil:
					return fmt.Errorf("aggregate %s: %w", inPath, err)
				}
				if err := out.Write(outPath); err != nil {
					return err
				}
				logger.Info("Aggregation finished",
					"duration", time.Since(start).Round(time.Millisecond),
					"out", outPath,
					"policy", opts.Policy,
					"summary", res.Summary())
				if res.InvalidTier+res.UndeterminedDay+res.UndeterminedPromo > 0 {
					logger.Warn("Records dropped from some counts",
						"invalid_tier", res.InvalidTier,
						"undetermined_day", res.UndeterminedDay,
						"undetermined_promo", res.UndeterminedPromo)
				}

				runID := uuid.New()
				if sqlitePath != "" {
					if err := exportTable(ctx, sqlitePath, config.AccountSummariesTable, out); err != nil {
						return err
					}
				}
				if storeResults {
					if err := saveSummaries(ctx, cfg, runID, summaries); err != nil {
						return err
					}
				}
				if publishResult {
					if err := publishSummaries(ctx, cfg, runID, summaries); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&inPath, "in", config.DefaultSeatFile, "Cleaned seat-level CSV")
	cmd.Flags().StringVar(&outPath, "out", config.DefaultAccountFile, "Account-level CSV")
	cmd.Flags().StringVar(&policy, "policy", "", "Invalid record policy: drop or strict (default from INVALID_RECORD_POLICY)")
	cmd.Flags().IntVar(&workers, "workers", 1, "Concurrent worker count (default from AGGREGATE_WORKERS)")
	cmd.Flags().BoolVar(&storeResults, "store", false, "Upsert summaries into Postgres")
	cmd.Flags().BoolVar(&publishResult, "publish", false, "Publish summaries to Kafka")
	cmd.Flags().StringVar(&sqlitePath, "sqlite", "", "Also write the summaries to this SQLite file")
	return cmd
}

// --------------------------------------------------------------------------
// sort-accounts command
// --------------------------------------------------------------------------

func sortAccountsCmd() *cobra.Command {
	var inPath, outPath, key string
	cmd := &cobra.Command{
		Use:   "sort-accounts",
		Short: "Sort a table ascending by a key column",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStep(func(ctx context.Context, cfg *config.Config) error {
				t, err := table.Load(inPath)
				if err != nil {
					return err
				}
				if err := t.SortBy(key); err != nil {
					return fmt.Errorf("sort %s: %w", inPath, err)
				}
				if err := t.Write(outPath); err != nil {
					return err
				}
				logger.Info("Sorting complete", "rows", t.Len(), "key", key, "out", outPath)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&inPath, "in", config.DefaultAccountInfoFile, "Input CSV")
	cmd.Flags().StringVar(&outPath, "out", config.DefaultSortedInfoFile, "Output CSV")
	cmd.Flags().StringVar(&key, "key", account.ColAccount, "Column to sort by")
	return cmd
}

// --------------------------------------------------------------------------
// update-accounts command
// --------------------------------------------------------------------------

func updateAccountsCmd() *cobra.Command {
	var infoPath, accountsPath, outPath, key string
	cmd := &cobra.Command{
		Use:   "update-accounts",
		Short: "Copy account attributes onto account-level rows",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStep(func(ctx context.Context, cfg *config.Config) error {
				info, err := table.Load(infoPath)
				if err != nil {
					return err
				}
				accounts, err := table.Load(accountsPath)
				if err != nil {
					return err
				}

				res, err := table.UpdateColumns(accounts, info, key, account.AttributeColumns)
				if err != nil {
					return fmt.Errorf("update %s: %w", accountsPath, err)
				}
				for _, c := range res.MissingColumns {
					logger.Warn("Column not found in account info", "column", c, "file", infoPath)
				}
				if outPath == "" {
					outPath = accountsPath
				}
				if err := accounts.Write(outPath); err != nil {
					return err
				}
				logger.Info("Account attributes copied", "out", outPath, "summary", res.Summary())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&infoPath, "info", config.DefaultSortedInfoFile, "Account info CSV")
	cmd.Flags().StringVar(&accountsPath, "accounts", config.DefaultAccountFile, "Account-level CSV")
	cmd.Flags().StringVar(&outPath, "out", "", "Output CSV (default: overwrite --accounts)")
	cmd.Flags().StringVar(&key, "key", account.ColAccount, "Key column shared by both files")
	return cmd
}

// --------------------------------------------------------------------------
// diff command
// --------------------------------------------------------------------------

func diffCmd() *cobra.Command {
	var leftPath, rightPath, outPath string
	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Write the rows found in exactly one of two tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStep(func(ctx context.Context, cfg *config.Config) error {
				left, err := table.Load(leftPath)
				if err != nil {
					return err
				}
				right, err := table.Load(rightPath)
				if err != nil {
					return err
				}
				out, res, err := table.Diff(left, right)
				if err != nil {
					return fmt.Errorf("diff %s %s: %w", leftPath, rightPath, err)
				}
				if err := out.Write(outPath); err != nil {
					return err
				}
				logger.Info("Differences saved", "out", outPath, "summary", res.Summary())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&leftPath, "left", "seasonticket.csv", "First CSV")
	cmd.Flags().StringVar(&rightPath, "right", "sorted_prompt1accountlevel.csv", "Second CSV")
	cmd.Flags().StringVar(&outPath, "out", "seasontickets.csv", "Output CSV")
	return cmd
}

// --------------------------------------------------------------------------
// features command
// --------------------------------------------------------------------------

func featuresCmd() *cobra.Command {
	var inPath, outPath string
	cmd := &cobra.Command{
		Use:   "features",
		Short: "Add plan-targeting features to an account-level table",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStep(func(ctx context.Context, cfg *config.Config) error {
				t, err := table.Load(inPath)
				if err != nil {
					return err
				}
				res, err := features.Derive(t)
				if err != nil {
					return fmt.Errorf("features %s: %w", inPath, err)
				}
				if err := t.Write(outPath); err != nil {
					return err
				}
				logger.Info("Features added", "out", outPath, "summary", res.Summary())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&inPath, "in", config.DefaultFeaturesIn, "Account-level CSV")
	cmd.Flags().StringVar(&outPath, "out", config.DefaultFeaturesOut, "Output CSV")
	return cmd
}

// --------------------------------------------------------------------------
// load command
// --------------------------------------------------------------------------

func loadCmd() *cobra.Command {
	var inPath string
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Upsert an account-level table into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStep(func(ctx context.Context, cfg *config.Config) error {
				t, err := table.Load(inPath)
				if err != nil {
					return err
				}
				summaries, err := account.ParseSummaries(t)
				if err != nil {
					return fmt.Errorf("parse %s: %w", inPath, err)
				}
				for i := range summaries {
					if err := summaries[i].Validate(); err != nil {
						logger.Warn("Inconsistent summary", "season", summaries[i].Season,
							"account", summaries[i].AccountNumber, "error", err)
					}
				}
				return saveSummaries(ctx, cfg, uuid.New(), summaries)
			})
		},
	}
	cmd.Flags().StringVar(&inPath, "in", config.DefaultAccountFile, "Account-level CSV")
	return cmd
}

// --------------------------------------------------------------------------
// export command
// --------------------------------------------------------------------------

func exportCmd() *cobra.Command {
	var inPath, dbPath, tableName string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write any pipeline table to a SQLite file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStep(func(ctx context.Context, cfg *config.Config) error {
				t, err := table.Load(inPath)
				if err != nil {
					return err
				}
				return exportTable(ctx, dbPath, tableName, t)
			})
		},
	}
	cmd.Flags().StringVar(&inPath, "in", config.DefaultAccountFile, "Input CSV")
	cmd.Flags().StringVar(&dbPath, "db", "fanplan.db", "SQLite file (replaced)")
	cmd.Flags().StringVar(&tableName, "table", "account_level", "Table name")
	return cmd
}

// --------------------------------------------------------------------------
// Shared setup
// --------------------------------------------------------------------------

// runStep handles config loading, log level, and context cancellation.
func runStep(fn func(ctx context.Context, cfg *config.Config) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logLevel.Set(cfg.LogLevel())

	return fn(ctx, cfg)
}

// overridePolicy replaces dst with the --policy flag when it was given.
func overridePolicy(cmd *cobra.Command, flag string, dst *seat.Policy) error {
	if !cmd.Flags().Changed("policy") {
		return nil
	}
	p, err := seat.ParsePolicy(flag)
	if err != nil {
		return err
	}
	*dst = p
	return nil
}
