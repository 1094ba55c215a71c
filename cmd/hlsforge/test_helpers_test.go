package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"hlsforge/internal/config"
	"hlsforge/internal/daemon"
	"hlsforge/internal/logging"
	"hlsforge/internal/progress"
	"hlsforge/internal/services/ffmpeg"
	"hlsforge/internal/testsupport"
	"hlsforge/internal/transcode"
)

type stubEncoder struct {
	segments int
	fail     bool
}

func (s *stubEncoder) Probe(context.Context, string) (time.Duration, error) {
	return time.Minute, nil
}

func (s *stubEncoder) Encode(ctx context.Context, req ffmpeg.EncodeRequest, progressFn func(ffmpeg.ProgressUpdate)) (string, error) {
	if s.fail {
		return "", fmt.Errorf("stub encoder failure")
	}
	manifest := filepath.Join(req.OutputDir, ffmpeg.ManifestName)
	if err := os.WriteFile(manifest, []byte("#EXTM3U\n#EXT-X-ENDLIST\n"), 0o644); err != nil {
		return "", err
	}
	for i := 0; i < s.segments; i++ {
		name := fmt.Sprintf("%s%d.ts", ffmpeg.SegmentPrefix, i)
		if err := os.WriteFile(filepath.Join(req.OutputDir, name), []byte("segment"), 0o644); err != nil {
			return "", err
		}
	}
	if progressFn != nil {
		progressFn(ffmpeg.ProgressUpdate{Percent: 50, Stage: "encoding"})
		progressFn(ffmpeg.ProgressUpdate{Percent: 100, Stage: "finished"})
	}
	return manifest, nil
}

type noopNotifier struct{}

func (noopNotifier) NotifyJobCompleted(context.Context, string, string) error { return nil }

func (noopNotifier) NotifyJobFailed(context.Context, string, string, string) error { return nil }

func (noopNotifier) TestNotification(context.Context) error { return nil }

type cliTestEnv struct {
	cfg     *config.Config
	daemon  *daemon.Daemon
	address string
}

func setupCLITestEnv(t *testing.T, encoder ffmpeg.Client) *cliTestEnv {
	t.Helper()

	// Keep command config resolution away from any real user config.
	t.Setenv("HOME", t.TempDir())

	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg)

	hub := progress.NewHub()
	runner := transcode.NewRunner(cfg, store, encoder, hub, &noopNotifier{}, logging.NewNop())
	manager := transcode.NewManager(cfg, store, runner, logging.NewNop())

	d, err := daemon.New(cfg, store, logging.NewNop(), manager, hub)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	return &cliTestEnv{
		cfg:     cfg,
		daemon:  d,
		address: d.APIAddr(),
	}
}

func (env *cliTestEnv) writeSource(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(env.cfg.Paths.MediaDir, name)
	testsupport.WriteFile(t, path, 2048)
	return path
}

// runCLI executes the root command with the given args against the test
// daemon and returns captured stdout.
func runCLI(t *testing.T, args []string, address string) (string, error) {
	t.Helper()

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	if address != "" {
		args = append(args, "--address", address)
	}
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func requireContains(t *testing.T, output, want string) {
	t.Helper()
	if !strings.Contains(output, want) {
		t.Fatalf("expected output to contain %q, got:\n%s", want, output)
	}
}
