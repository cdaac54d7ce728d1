// Command admin applies the schema and inspects or adjusts stored usage and
// subscriptions.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/theChefEngineer/ai-tool-app-sub001/app"
	"github.com/theChefEngineer/ai-tool-app-sub001/app/config"
	"github.com/theChefEngineer/ai-tool-app-sub001/app/logging"
	"github.com/theChefEngineer/ai-tool-app-sub001/app/models"
	"github.com/theChefEngineer/ai-tool-app-sub001/app/store"
	"github.com/theChefEngineer/ai-tool-app-sub001/app/subscription"
)

const commandTimeout = 30 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type env struct {
	cfg    *config.Config
	store  *store.Store
	logger zerolog.Logger
}

// withStore loads config, opens the database and runs fn.
func withStore(cmd *cobra.Command, fn func(ctx context.Context, e env) error) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	logger := logging.Init(logging.Config{Style: "console", Level: cfg.Logs.Level})

	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()

	st, err := store.Open(ctx, cfg.DB)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer st.Close()

	return fn(ctx, env{cfg: cfg, store: st, logger: logger})
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "admin",
		Short:        "Writing assistant administration",
		SilenceUsage: true,
	}
	root.AddCommand(newMigrateCmd(), newUsageCmd(), newSubscriptionCmd())
	return root
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create missing tables and indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, e env) error {
				if err := e.store.Migrate(ctx); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "schema up to date (%s)\n", e.store.Driver())
				return nil
			})
		},
	}
}

func newUsageCmd() *cobra.Command {
	var date string

	usageCmd := &cobra.Command{
		Use:   "usage",
		Short: "Inspect or reset daily usage",
	}
	usageCmd.PersistentFlags().StringVar(&date, "date", "", "day as YYYY-MM-DD (default: today in USAGE_TIMEZONE)")

	resolveDate := func(cfg *config.Config) (string, error) {
		if date == "" {
			return time.Now().In(cfg.Usage.Location).Format(models.DateLayout), nil
		}
		if _, err := time.Parse(models.DateLayout, date); err != nil {
			return "", fmt.Errorf("invalid --date %q: %w", date, err)
		}
		return date, nil
	}

	showCmd := &cobra.Command{
		Use:   "show <user-id>",
		Short: "Print a user's usage row for a day",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, e env) error {
				day, err := resolveDate(e.cfg)
				if err != nil {
					return err
				}
				rec, err := e.store.GetDailyUsage(ctx, args[0], day)
				if errors.Is(err, store.ErrNotFound) {
					rec = models.UsageRecord{UserID: args[0], Date: day, OperationCounts: map[string]int{}}
				} else if err != nil {
					return err
				}
				return printJSON(cmd, fields{
					"userId":          rec.UserID,
					"date":            rec.Date,
					"totalOperations": rec.TotalOperations,
					"operationCounts": rec.OperationCounts,
					"dailyLimit":      e.cfg.Usage.DailyLimit,
				})
			})
		},
	}

	resetCmd := &cobra.Command{
		Use:   "reset <user-id>",
		Short: "Zero a user's counters for a day",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, e env) error {
				day, err := resolveDate(e.cfg)
				if err != nil {
					return err
				}
				rec := models.UsageRecord{
					UserID:          args[0],
					Date:            day,
					OperationCounts: map[string]int{},
					UpdatedAt:       time.Now(),
				}
				if err := e.store.UpsertDailyUsage(ctx, rec); err != nil {
					return err
				}
				e.logger.Info().Str("user", args[0]).Str("date", day).Msg("usage reset")
				fmt.Fprintf(cmd.OutOrStdout(), "reset usage for %s on %s\n", args[0], day)
				return nil
			})
		},
	}

	usageCmd.AddCommand(showCmd, resetCmd)
	return usageCmd
}

func newSubscriptionCmd() *cobra.Command {
	subCmd := &cobra.Command{
		Use:   "subscription",
		Short: "Inspect resolved subscriptions",
	}
	subCmd.AddCommand(&cobra.Command{
		Use:   "show <user-id>",
		Short: "Resolve a user's tier from the billing mirror",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, e env) error {
				subs := subscription.New(e.store, app.PriceTableFromConfig(e.cfg.Stripe), e.logger)
				sub := subs.FetchSubscription(ctx, args[0])
				return printJSON(cmd, fields{
					"userId":       args[0],
					"tier":         sub.Tier,
					"tierName":     sub.Tier.DisplayName(),
					"subscription": sub.SubscriptionRecord,
				})
			})
		},
	})
	return subCmd
}

type fields map[string]any

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
