package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func newVideoCommand(ctx *commandContext) *cobra.Command {
	videoCmd := &cobra.Command{
		Use:   "video",
		Short: "Manage library videos",
	}

	videoCmd.AddCommand(newVideoAddCommand(ctx))
	videoCmd.AddCommand(newVideoListCommand(ctx))
	videoCmd.AddCommand(newVideoShowCommand(ctx))

	return videoCmd
}

func newVideoAddCommand(ctx *commandContext) *cobra.Command {
	var title string

	cmd := &cobra.Command{
		Use:   "add <path>",
		Short: "Register a source video in the library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			video, err := client.AddVideo(cmd.Context(), title, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added video %d: %s\n", video.ID, videoDisplayTitle(video))
			return nil
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "Display title for the video")
	return cmd
}

func newVideoListCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List library videos",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			videos, err := client.Videos(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, videos)
			}
			out := cmd.OutOrStdout()
			if len(videos) == 0 {
				fmt.Fprintln(out, "No videos in the library")
				return nil
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Title", "State", "Added"},
				buildVideoRows(videos),
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output videos as JSON")
	return cmd
}

func newVideoShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show details for a video",
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
			video, err := client.Video(cmd.Context(), videoID)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, video)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Video %d\n", video.ID)
			fmt.Fprintf(out, "  Title:     %s\n", videoDisplayTitle(video))
			fmt.Fprintf(out, "  State:     %s\n", formatStatusLabel(video.State))
			fmt.Fprintf(out, "  Source:    %s\n", video.SourcePath)
			if video.ManifestPath != "" {
				fmt.Fprintf(out, "  Manifest:  %s\n", video.ManifestPath)
			}
			if video.SegmentCount > 0 {
				fmt.Fprintf(out, "  Segments:  %d\n", video.SegmentCount)
			}
			fmt.Fprintf(out, "  Added:     %s\n", formatDisplayTime(video.CreatedAt))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output video as JSON")
	return cmd
}

func parseVideoID(arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid video id %q", arg)
	}
	return id, nil
}
