package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"hlsforge/internal/api"
)

// formatStatusLabel renders a lifecycle state as a human-readable label.
func formatStatusLabel(status string) string {
	status = strings.TrimSpace(status)
	if status == "" {
		return "Unknown"
	}
	return cases.Title(language.Und).String(strings.ReplaceAll(status, "_", " "))
}

func formatDisplayTime(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "-"
	}
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return value
	}
	return parsed.Local().Format("2006-01-02 15:04:05")
}

func formatPercent(percent float64) string {
	return fmt.Sprintf("%.1f%%", percent)
}

func videoDisplayTitle(video api.Video) string {
	if title := strings.TrimSpace(video.Title); title != "" {
		return title
	}
	if source := strings.TrimSpace(video.SourcePath); source != "" {
		return filepath.Base(source)
	}
	return "Unknown"
}

func buildVideoRows(videos []api.Video) [][]string {
	rows := make([][]string, 0, len(videos))
	for _, video := range videos {
		rows = append(rows, []string{
			fmt.Sprintf("%d", video.ID),
			videoDisplayTitle(video),
			formatStatusLabel(video.State),
			formatDisplayTime(video.CreatedAt),
		})
	}
	return rows
}

func buildJobRows(jobs []api.Job) [][]string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		rows = append(rows, []string{
			job.ID,
			fmt.Sprintf("%d", job.VideoID),
			formatStatusLabel(job.Status),
			formatPercent(job.ProgressPercent),
			formatDisplayTime(job.CreatedAt),
		})
	}
	return rows
}
