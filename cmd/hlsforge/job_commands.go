package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"hlsforge/internal/api"
)

func newJobCommand(ctx *commandContext) *cobra.Command {
	jobCmd := &cobra.Command{
		Use:   "job",
		Short: "Manage transcoding jobs",
	}

	jobCmd.AddCommand(newJobSubmitCommand(ctx))
	jobCmd.AddCommand(newJobListCommand(ctx))
	jobCmd.AddCommand(newJobShowCommand(ctx))
	jobCmd.AddCommand(newJobWatchCommand(ctx))

	return jobCmd
}

func newJobSubmitCommand(ctx *commandContext) *cobra.Command {
	var segmentSeconds int
	var watch bool

	cmd := &cobra.Command{
		Use:   "submit <video-id>",
		Short: "Queue a transcode for a video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			videoID, err := parseVideoID(args[0])
			if err != nil {
				return err
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			jobID, err := client.SubmitJob(cmd.Context(), videoID, segmentSeconds)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Queued job %s for video %d\n", jobID, videoID)
			if watch {
				return watchJobProgress(cmd, client, jobID)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&segmentSeconds, "segment-seconds", "s", 0, "Segment duration in seconds (default from config)")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Stream progress until the job finishes")
	return cmd
}

func newJobListCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	var statusFilter string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transcoding jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			var statuses []string
			if statusFilter != "" {
				statuses = append(statuses, statusFilter)
			}
			jobs, err := client.Jobs(cmd.Context(), statuses...)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, jobs)
			}
			out := cmd.OutOrStdout()
			if len(jobs) == 0 {
				fmt.Fprintln(out, "No jobs found")
				return nil
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Video", "Status", "Progress", "Created"},
				buildJobRows(jobs),
				[]columnAlignment{alignLeft, alignRight, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output jobs as JSON")
	cmd.Flags().StringVar(&statusFilter, "status", "", "Filter by job status (pending, running, completed, failed)")
	return cmd
}

func newJobShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show details for a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			job, err := client.Job(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, job)
			}
			printJobDetails(cmd, job)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output job as JSON")
	return cmd
}

func newJobWatchCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <job-id>",
		Short: "Stream live progress for a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			return watchJobProgress(cmd, client, args[0])
		},
	}
	return cmd
}

func watchJobProgress(cmd *cobra.Command, client *apiClient, jobID string) error {
	out := cmd.OutOrStdout()
	var failed bool
	var failureMessage string

	err := client.WatchJob(cmd.Context(), jobID, func(evt api.ProgressEvent) {
		switch {
		case evt.Terminal && evt.Failed:
			failed = true
			failureMessage = evt.ErrorMessage
			fmt.Fprintf(out, "%s  failed", formatPercent(evt.Percent))
			if evt.ErrorMessage != "" {
				fmt.Fprintf(out, ": %s", evt.ErrorMessage)
			}
			fmt.Fprintln(out)
		case evt.Terminal:
			fmt.Fprintf(out, "%s  done\n", formatPercent(evt.Percent))
		case evt.Stage != "":
			fmt.Fprintf(out, "%s  %s\n", formatPercent(evt.Percent), evt.Stage)
		default:
			fmt.Fprintln(out, formatPercent(evt.Percent))
		}
	})
	if err != nil {
		return err
	}
	if failed {
		if failureMessage != "" {
			return fmt.Errorf("job %s failed: %s", jobID, failureMessage)
		}
		return fmt.Errorf("job %s failed", jobID)
	}
	return nil
}

func printJobDetails(cmd *cobra.Command, job api.Job) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Job %s\n", job.ID)
	fmt.Fprintf(out, "  Video:     %d\n", job.VideoID)
	fmt.Fprintf(out, "  Status:    %s\n", formatStatusLabel(job.Status))
	fmt.Fprintf(out, "  Progress:  %s\n", formatPercent(job.ProgressPercent))
	fmt.Fprintf(out, "  Segments:  %ds\n", job.SegmentSeconds)
	if job.ErrorMessage != "" {
		fmt.Fprintf(out, "  Error:     %s\n", job.ErrorMessage)
	}
	fmt.Fprintf(out, "  Created:   %s\n", formatDisplayTime(job.CreatedAt))
	if job.StartedAt != "" {
		fmt.Fprintf(out, "  Started:   %s\n", formatDisplayTime(job.StartedAt))
	}
	if job.FinishedAt != "" {
		fmt.Fprintf(out, "  Finished:  %s\n", formatDisplayTime(job.FinishedAt))
	}
}
