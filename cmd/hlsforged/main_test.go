package main

import (
	"context"
	"testing"

	"hlsforge/internal/logging"
	"hlsforge/internal/testsupport"
)

func TestBuildDaemon(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	d, err := buildDaemon(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("buildDaemon: %v", err)
	}
	defer d.Close()

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if d.APIAddr() == "" {
		t.Fatal("expected bound api address")
	}
	d.Stop()
}

func TestReportPreflightNilSafe(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	reportPreflight(context.Background(), cfg, logging.NewNop())
}
