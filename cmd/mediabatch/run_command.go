package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"mediabatch/internal/daemon"
	"mediabatch/internal/jobs"
	"mediabatch/internal/logging"
	"mediabatch/internal/transcript"
)

const runPollInterval = 200 * time.Millisecond

func newRunCommand(ctx *commandContext) *cobra.Command {
	var recursive bool
	var maxFileSizeMB int
	var outputDir string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "run <source>",
		Short: "Transcribe a folder or Drive link in the foreground without a daemon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.RequireInferenceKey(); err != nil {
				return err
			}
			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			components, err := daemon.Compose(cfg, logger)
			if err != nil {
				return err
			}
			defer components.Close()
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				_ = components.Runner.Shutdown(shutdownCtx)
			}()

			spec := jobs.SourceSpec{
				Ref:           args[0],
				Recursive:     cfg.Source.Recursive,
				MaxFileSizeMB: maxFileSizeMB,
				OutputDir:     outputDir,
			}
			if cmd.Flags().Changed("recursive") {
				spec.Recursive = recursive
			}
			id, err := components.Runner.Submit(cmd.Context(), spec)
			if err != nil {
				return err
			}

			showProgress := !jsonOutput && shouldColorize(cmd.ErrOrStderr())
			job, err := followJob(cmd.Context(), components.Runner, id, cmd.ErrOrStderr(), showProgress)
			if err != nil {
				return err
			}
			if job.Status == jobs.StatusFailed {
				return fmt.Errorf("job %s failed: %s", job.ID, job.Error)
			}
			results, err := components.Runner.Results(id)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, results)
			}
			printRunSummary(cmd.OutOrStdout(), job, results, shouldColorize(cmd.OutOrStdout()))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&recursive, "recursive", "r", true, "Include subfolders (defaults to source.recursive)")
	cmd.Flags().IntVar(&maxFileSizeMB, "max-file-size-mb", 0, "Skip items larger than this (0 uses processing.max_file_size_mb)")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "Directory for transcript artifacts (defaults to paths.output_dir)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print results as JSON")
	return cmd
}

// followJob polls the runner until the job is terminal, driving a progress
// bar on w when visible is true.
func followJob(ctx context.Context, runner *jobs.Runner, id string, w io.Writer, visible bool) (jobs.Job, error) {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetVisibility(visible),
		progressbar.OptionSetDescription("listing source"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetElapsedTime(true),
		progressbar.OptionClearOnFinish(),
	)
	defer bar.Finish()

	sized := false
	ticker := time.NewTicker(runPollInterval)
	defer ticker.Stop()
	for {
		job, err := runner.Status(id)
		if err != nil {
			return jobs.Job{}, err
		}
		if job.ItemCount != nil && *job.ItemCount > 0 && !sized {
			bar.ChangeMax(*job.ItemCount)
			sized = true
		}
		if sized {
			bar.Describe(fmt.Sprintf("transcribing (%d ok, %d failed)", job.Succeeded, job.Failed))
			_ = bar.Set(job.Processed)
		}
		if job.Status.Terminal() {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return job, ctx.Err()
		case <-ticker.C:
		}
	}
}

func printRunSummary(w io.Writer, job jobs.Job, results jobs.Results, colorize bool) {
	if len(results.Results) > 0 {
		fmt.Fprintln(w, renderOutcomeTable(results.Results))
	}
	summary := fmt.Sprintf("Job %s %s: %d succeeded, %d failed, %d skipped",
		job.ID, job.Status, results.Successful, results.Failed, job.Skipped)
	fmt.Fprintln(w, colorizeText(summary, jobStatusKind(string(job.Status)), colorize))
	if job.StartedAt != nil && job.FinishedAt != nil {
		fmt.Fprintf(w, "Elapsed: %s\n", job.FinishedAt.Sub(*job.StartedAt).Round(time.Millisecond))
	}
	if results.CombinedPath != "" {
		fmt.Fprintf(w, "Combined transcript: %s\n", results.CombinedPath)
	}
	if job.LogPath != "" {
		fmt.Fprintf(w, "Job log: %s\n", job.LogPath)
	}
}

func renderOutcomeTable(outcomes []transcript.Outcome) string {
	rows := make([][]string, 0, len(outcomes))
	for _, outcome := range outcomes {
		language, size, tokens, detail := "", "", "", outcome.Reason
		if outcome.Result != nil {
			language = outcome.Result.Language
			size = humanize.IBytes(uint64(outcome.Result.FileSizeMB * 1024 * 1024))
			tokens = humanize.Comma(outcome.Result.InputTokens + outcome.Result.OutputTokens)
			if outcome.Resumed {
				detail = "resumed from saved result"
			}
		}
		rows = append(rows, []string{
			strconv.Itoa(outcome.Index + 1),
			outcome.Name,
			string(outcome.Status),
			language,
			size,
			tokens,
			detail,
		})
	}
	return renderTable(
		[]string{"#", "File", "Status", "Language", "Size", "Tokens", "Detail"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
	)
}
