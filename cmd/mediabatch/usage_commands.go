package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"mediabatch/internal/api"
	"mediabatch/internal/usage"
)

func newUsageCommand(ctx *commandContext) *cobra.Command {
	usageCmd := &cobra.Command{
		Use:   "usage",
		Short: "Inspect and manage model API usage",
	}
	usageCmd.AddCommand(newUsageShowCommand(ctx))
	usageCmd.AddCommand(newUsageBurnRateCommand(ctx))
	usageCmd.AddCommand(newUsageTierCommand(ctx))
	usageCmd.AddCommand(newUsageResetCommand(ctx))
	return usageCmd
}

func newUsageShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show usage totals and today's quota",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				stats, err := client.Usage(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, stats)
				}
				printUsageStats(cmd.OutOrStdout(), stats, shouldColorize(cmd.OutOrStdout()))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print stats as JSON")
	return cmd
}

func printUsageStats(w io.Writer, stats usage.Stats, colorize bool) {
	limits := stats.Limits
	fmt.Fprintln(w, renderKeyValues([][2]string{
		{"Tier", string(stats.Tier)},
		{"Total requests", humanize.Comma(stats.TotalRequests)},
		{"Requests today", fmt.Sprintf("%d of %d", stats.RequestsToday, limits.DailyLimit)},
		{"Remaining today", strconv.Itoa(limits.RequestsRemaining)},
		{"Input tokens", humanize.Comma(stats.TotalInputTokens)},
		{"Output tokens", humanize.Comma(stats.TotalOutputTokens)},
		{"Total cost", fmt.Sprintf("$%.4f", stats.TotalCostUSD)},
		{"History entries", strconv.Itoa(stats.HistorySize)},
		{"Last reset", stats.LastReset},
	}))
	kind := usageStatusKind(limits.Level)
	fmt.Fprintln(w, renderStatusLine("Daily quota", kind, fmt.Sprintf("%s (%.1f%% used)", limits.Status, limits.UsagePercent), colorize))
	for _, warning := range limits.Warnings {
		fmt.Fprintln(w, colorizeText(statusIndent+warning, kind, colorize))
	}
}

func newUsageBurnRateCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "burn-rate",
		Short: "Estimate daily and monthly cost from recent usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				rate, err := client.BurnRate(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, rate)
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderKeyValues([][2]string{
					{"Tier", string(rate.Tier)},
					{"Requests today", strconv.Itoa(rate.RequestsToday)},
					{"Daily cost", fmt.Sprintf("$%.4f", rate.DailyCostUSD)},
					{"Monthly estimate", fmt.Sprintf("$%.2f", rate.MonthlyEstimateUSD)},
				}))
				fmt.Fprintln(cmd.OutOrStdout(), rate.Message)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the estimate as JSON")
	return cmd
}

func newUsageTierCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:       "tier <free|paid>",
		Short:     "Switch the pricing tier used for limits and cost",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(usage.TierFree), string(usage.TierPaid)},
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.SetTier(cmd.Context(), strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
				return nil
			})
		},
	}
}

func newUsageResetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Reset usage counters and history",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.ResetUsage(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
				return nil
			})
		},
	}
}
