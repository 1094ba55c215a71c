package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNewCLIWithBinaries(t *testing.T) {
	cli := NewCLI(WithFFmpegBinary("/opt/ffmpeg"), WithFFprobeBinary("/opt/ffprobe"))
	if cli.ffmpeg != "/opt/ffmpeg" {
		t.Fatalf("expected ffmpeg override to be applied, got %q", cli.ffmpeg)
	}
	if cli.ffprobe != "/opt/ffprobe" {
		t.Fatalf("expected ffprobe override to be applied, got %q", cli.ffprobe)
	}
}

func TestCLIEncodeRequiresInput(t *testing.T) {
	cli := NewCLI()
	if _, err := cli.Encode(context.Background(), EncodeRequest{OutputDir: "/tmp", SegmentSeconds: 8}, nil); err == nil {
		t.Fatal("expected error when input path is empty")
	}
}

func TestCLIEncodeRequiresOutputDir(t *testing.T) {
	cli := NewCLI()
	if _, err := cli.Encode(context.Background(), EncodeRequest{InputPath: "/media/movie.mp4", SegmentSeconds: 8}, nil); err == nil {
		t.Fatal("expected error when output directory is empty")
	}
}

func TestCLIEncodeRequiresPositiveSegmentSeconds(t *testing.T) {
	cli := NewCLI()
	req := EncodeRequest{InputPath: "/media/movie.mp4", OutputDir: "/tmp"}
	if _, err := cli.Encode(context.Background(), req, nil); err == nil {
		t.Fatal("expected error when segment seconds is zero")
	}
}

func TestCLIEncodeBuildsHLSArgs(t *testing.T) {
	var capturedArgs []string
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		mode := "encode-success"
		if strings.Contains(name, "ffprobe") {
			mode = "probe-success"
		} else {
			capturedArgs = append([]string(nil), args...)
		}
		return helperCommand(ctx, mode)
	}
	t.Cleanup(func() {
		commandContext = original
	})

	cli := NewCLI()
	tempDir := t.TempDir()
	req := EncodeRequest{
		InputPath:      filepath.Join(tempDir, "movie.mp4"),
		OutputDir:      filepath.Join(tempDir, "scratch"),
		SegmentSeconds: 4,
	}

	manifest, err := cli.Encode(context.Background(), req, nil)
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	if manifest != filepath.Join(req.OutputDir, ManifestName) {
		t.Fatalf("unexpected manifest path %q", manifest)
	}

	if len(capturedArgs) == 0 {
		t.Fatal("expected ffmpeg arguments to be captured")
	}
	idx := findArg(capturedArgs, "-hls_time")
	if idx == -1 || idx+1 >= len(capturedArgs) {
		t.Fatalf("expected -hls_time flag with value, got %v", capturedArgs)
	}
	if capturedArgs[idx+1] != "4" {
		t.Fatalf("expected hls_time 4, got %q", capturedArgs[idx+1])
	}
	if findArg(capturedArgs, "-hls_list_size") == -1 {
		t.Fatalf("expected -hls_list_size flag, got %v", capturedArgs)
	}
	idx = findArg(capturedArgs, "-hls_segment_filename")
	if idx == -1 || idx+1 >= len(capturedArgs) {
		t.Fatalf("expected -hls_segment_filename flag with value, got %v", capturedArgs)
	}
	if capturedArgs[idx+1] != filepath.Join(req.OutputDir, "output%d.ts") {
		t.Fatalf("unexpected segment pattern %q", capturedArgs[idx+1])
	}
	if capturedArgs[len(capturedArgs)-1] != manifest {
		t.Fatalf("expected manifest as final arg, got %q", capturedArgs[len(capturedArgs)-1])
	}
	if findArg(capturedArgs, "-progress") == -1 {
		t.Fatalf("expected -progress flag, got %v", capturedArgs)
	}
}

func TestCLIEncodeReportsProgress(t *testing.T) {
	setHelperCommand(t, "encode-success")

	cli := NewCLI()
	tempDir := t.TempDir()
	req := EncodeRequest{
		InputPath:      filepath.Join(tempDir, "movie.mp4"),
		OutputDir:      filepath.Join(tempDir, "scratch"),
		SegmentSeconds: 8,
	}

	var updates []ProgressUpdate
	if _, err := cli.Encode(context.Background(), req, func(update ProgressUpdate) {
		updates = append(updates, update)
	}); err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}

	if len(updates) != 3 {
		t.Fatalf("expected 3 progress updates, got %d", len(updates))
	}
	// probe reports 120s; 30s and 60s of output give 25 and 50 percent
	if updates[0].Percent != 25 {
		t.Fatalf("expected first update at 25 percent, got %f", updates[0].Percent)
	}
	if updates[1].Percent != 50 {
		t.Fatalf("expected second update at 50 percent, got %f", updates[1].Percent)
	}
	last := updates[len(updates)-1]
	if last.Percent != 100 || last.Stage != "finished" {
		t.Fatalf("expected terminal 100/finished, got %+v", last)
	}
}

func TestCLIEncodeFailure(t *testing.T) {
	setHelperCommand(t, "encode-failure")

	cli := NewCLI()
	tempDir := t.TempDir()
	req := EncodeRequest{
		InputPath:      filepath.Join(tempDir, "movie.mp4"),
		OutputDir:      filepath.Join(tempDir, "scratch"),
		SegmentSeconds: 8,
	}

	if _, err := cli.Encode(context.Background(), req, nil); err == nil {
		t.Fatal("expected encode failure error")
	}
}

func TestCLIEncodeFailsWhenProbeFails(t *testing.T) {
	setHelperCommand(t, "probe-failure")

	cli := NewCLI()
	tempDir := t.TempDir()
	req := EncodeRequest{
		InputPath:      filepath.Join(tempDir, "movie.mp4"),
		OutputDir:      filepath.Join(tempDir, "scratch"),
		SegmentSeconds: 8,
	}

	if _, err := cli.Encode(context.Background(), req, nil); err == nil {
		t.Fatal("expected probe failure to abort encode")
	}
}

func TestCLIProbe(t *testing.T) {
	setHelperCommand(t, "probe-success")

	cli := NewCLI()
	duration, err := cli.Probe(context.Background(), "/media/movie.mp4")
	if err != nil {
		t.Fatalf("Probe returned error: %v", err)
	}
	if duration != 2*time.Minute {
		t.Fatalf("expected 2m duration, got %s", duration)
	}
}

func TestParseProbeDuration(t *testing.T) {
	if _, err := parseProbeDuration("N/A"); err == nil {
		t.Fatal("expected error for N/A duration")
	}
	if _, err := parseProbeDuration(""); err == nil {
		t.Fatal("expected error for empty duration")
	}
	if _, err := parseProbeDuration("-3"); err == nil {
		t.Fatal("expected error for negative duration")
	}
	duration, err := parseProbeDuration("90.5\n")
	if err != nil {
		t.Fatalf("parseProbeDuration: %v", err)
	}
	if duration != 90*time.Second+500*time.Millisecond {
		t.Fatalf("unexpected duration %s", duration)
	}
}

func setHelperCommand(t *testing.T, encodeMode string) {
	t.Helper()
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		mode := encodeMode
		if strings.Contains(name, "ffprobe") && encodeMode != "probe-failure" {
			mode = "probe-success"
		}
		return helperCommand(ctx, mode)
	}
	t.Cleanup(func() {
		commandContext = original
	})
}

func helperCommand(ctx context.Context, mode string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
	cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", fmt.Sprintf("FFMPEG_HELPER_MODE=%s", mode))
	return cmd
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	switch os.Getenv("FFMPEG_HELPER_MODE") {
	case "probe-success":
		fmt.Println("120.000000")
		os.Exit(0)
	case "probe-failure":
		fmt.Fprintln(os.Stderr, "No such file or directory")
		os.Exit(1)
	case "encode-success":
		fmt.Println("frame=720")
		fmt.Println("out_time_us=30000000")
		fmt.Println("progress=continue")
		fmt.Println("out_time_us=60000000")
		fmt.Println("progress=continue")
		fmt.Println("progress=end")
		os.Exit(0)
	case "encode-failure":
		fmt.Fprintln(os.Stderr, "Conversion failed!")
		os.Exit(1)
	default:
		os.Exit(0)
	}
}

func findArg(args []string, target string) int {
	for i, arg := range args {
		if arg == target {
			return i
		}
	}
	return -1
}
