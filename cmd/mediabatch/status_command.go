package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"mediabatch/internal/api"
	"mediabatch/internal/preflight"
)

const statusProbeTimeout = 3 * time.Second

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var checkModel bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Run preflight checks and report whether the daemon is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			for _, line := range renderSectionHeader("Daemon", colorize) {
				fmt.Fprintln(out, line)
			}
			addr := ctx.apiAddress()
			probeCtx, cancel := context.WithTimeout(cmd.Context(), statusProbeTimeout)
			defer cancel()
			health, healthErr := probeDaemon(probeCtx, addr)
			if healthErr != nil {
				fmt.Fprintln(out, renderStatusLine("mediabatch", statusError, "not reachable at "+addr, colorize))
			} else {
				kind := statusOK
				if health.Status != "healthy" {
					kind = statusWarn
				}
				fmt.Fprintln(out, renderStatusLine("mediabatch", kind,
					fmt.Sprintf("%s at %s (version %s, %d active jobs)", health.Status, addr, health.Version, health.ActiveJobs), colorize))
				fmt.Fprintln(out, renderStatusLine("Model", statusInfo, health.Model, colorize))
			}
			fmt.Fprintln(out, renderStatusLine("Usage tier", statusInfo, cfg.Usage.Tier, colorize))
			fmt.Fprintln(out, renderStatusLine("Inference key", boolKind(cfg.Inference.APIKey != ""), yesNo(cfg.Inference.APIKey != ""), colorize))
			fmt.Fprintln(out, renderStatusLine("Drive key", optionalKind(cfg.Source.DriveAPIKey != ""), yesNo(cfg.Source.DriveAPIKey != ""), colorize))
			fmt.Fprintln(out)

			for _, line := range renderSectionHeader("Preflight", colorize) {
				fmt.Fprintln(out, line)
			}
			results := preflight.RunAll(cmd.Context(), cfg, preflight.Options{CheckInference: checkModel})
			for _, line := range checkLines(results, colorize) {
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&checkModel, "check-model", false, "Also verify the model API key against the inference endpoint")
	return cmd
}

func probeDaemon(ctx context.Context, addr string) (api.HealthResponse, error) {
	client, err := api.NewClient(addr, nil)
	if err != nil {
		return api.HealthResponse{}, err
	}
	return client.Health(ctx)
}

func boolKind(ok bool) statusKind {
	if ok {
		return statusOK
	}
	return statusError
}

func optionalKind(ok bool) statusKind {
	if ok {
		return statusOK
	}
	return statusWarn
}
