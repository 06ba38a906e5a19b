package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"mediabatch/internal/api"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Submit and inspect transcription jobs on the daemon",
	}
	jobsCmd.AddCommand(newJobsSubmitCommand(ctx))
	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsShowCommand(ctx))
	jobsCmd.AddCommand(newJobsResultsCommand(ctx))
	return jobsCmd
}

func newJobsSubmitCommand(ctx *commandContext) *cobra.Command {
	var recursive bool
	var maxFileSizeMB int
	var outputDir string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "submit <source>",
		Short: "Queue a folder path or Google Drive link for transcription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := api.TranscribeRequest{
				Source:    strings.TrimSpace(args[0]),
				OutputDir: strings.TrimSpace(outputDir),
			}
			if cmd.Flags().Changed("recursive") {
				req.Recursive = &recursive
			}
			if cmd.Flags().Changed("max-file-size-mb") {
				req.MaxFileSizeMB = &maxFileSizeMB
			}
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.Submit(cmd.Context(), req)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s (job %s, status %s)\n", resp.Message, resp.JobID, resp.Status)
				fmt.Fprintf(out, "Track progress with: mediabatch jobs show %s\n", resp.JobID)
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", true, "Include subfolders (defaults to the daemon's source.recursive)")
	cmd.Flags().IntVar(&maxFileSizeMB, "max-file-size-mb", 0, "Skip items larger than this many MB")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "Directory for transcript artifacts")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the response as JSON")
	return cmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs known to the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.Jobs(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				if resp.Total == 0 {
					fmt.Fprintln(out, "No jobs")
					return nil
				}
				colorize := shouldColorize(out)
				rows := make([][]string, 0, len(resp.Jobs))
				for _, job := range resp.Jobs {
					total := "?"
					if job.ItemCount != nil {
						total = strconv.Itoa(*job.ItemCount)
					}
					rows = append(rows, []string{
						job.ID,
						colorizeText(string(job.Status), jobStatusKind(string(job.Status)), colorize),
						job.Source,
						fmt.Sprintf("%d/%s", job.Processed, total),
						strconv.Itoa(job.Succeeded),
						strconv.Itoa(job.Failed),
						humanize.Time(job.CreatedAt),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Status", "Source", "Files", "OK", "Failed", "Created"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print jobs as JSON")
	return cmd
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show progress for a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				status, err := client.Job(cmd.Context(), strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, status)
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderKeyValues(jobStatusPairs(status)))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the job as JSON")
	return cmd
}

func jobStatusPairs(status api.JobStatus) [][2]string {
	total := "unknown"
	if status.TotalFiles != nil {
		total = strconv.Itoa(*status.TotalFiles)
	}
	pairs := [][2]string{
		{"Job", status.JobID},
		{"Status", status.Status},
		{"Message", status.Message},
		{"Source", status.Source},
		{"Files", total},
		{"Processed", strconv.Itoa(status.ProcessedFiles)},
		{"Successful", strconv.Itoa(status.Successful)},
		{"Failed", strconv.Itoa(status.Failed)},
		{"Skipped", strconv.Itoa(status.Skipped)},
		{"Progress", fmt.Sprintf("%.1f%%", status.ProgressPercent)},
		{"Created", formatWhen(status.CreatedAt)},
	}
	if status.StartedAt != nil {
		pairs = append(pairs, [2]string{"Started", formatWhen(*status.StartedAt)})
	}
	if status.FinishedAt != nil {
		pairs = append(pairs, [2]string{"Finished", formatWhen(*status.FinishedAt)})
	}
	return append(pairs,
		[2]string{"Error", status.Error},
		[2]string{"Combined transcript", status.CombinedPath},
		[2]string{"Log", status.LogPath},
	)
}

func formatWhen(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return fmt.Sprintf("%s (%s)", t.Local().Format(time.DateTime), humanize.Time(t))
}

func newJobsResultsCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "results <job-id>",
		Short: "Show per-file results for a completed job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				results, err := client.Results(cmd.Context(), strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, results)
				}
				out := cmd.OutOrStdout()
				if len(results.Results) > 0 {
					fmt.Fprintln(out, renderOutcomeTable(results.Results))
				}
				fmt.Fprintf(out, "Total files: %d, successful: %d, failed: %d\n", results.TotalFiles, results.Successful, results.Failed)
				if results.CombinedPath != "" {
					fmt.Fprintf(out, "Combined transcript: %s\n", results.CombinedPath)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print results as JSON")
	return cmd
}
