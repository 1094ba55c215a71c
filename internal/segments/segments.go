package segments

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"hlsforge/internal/fileutil"
	"hlsforge/internal/library"
	"hlsforge/internal/services"
	"hlsforge/internal/services/ffmpeg"
)

const component = "segments"

// Output describes the files an encoder run left in a scratch directory.
type Output struct {
	ManifestPath string
	Segments     []library.SegmentFile
}

// Collect scans a scratch directory for the manifest and its media segments,
// validating that segment indices start at zero and form a contiguous run.
// A gap means the encoder silently dropped output, so the run is rejected
// rather than published with missing media.
func Collect(scratchDir string) (*Output, error) {
	entries, err := os.ReadDir(scratchDir)
	if err != nil {
		return nil, services.Wrap(services.ErrEncodingFailure, component, "collect", "read scratch directory", err)
	}

	out := &Output{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if name == ffmpeg.ManifestName {
			out.ManifestPath = filepath.Join(scratchDir, name)
			continue
		}
		index, ok := parseSegmentName(name)
		if !ok {
			continue
		}
		out.Segments = append(out.Segments, library.SegmentFile{
			Index:    index,
			FilePath: filepath.Join(scratchDir, name),
		})
	}

	if out.ManifestPath == "" {
		return nil, services.Wrap(services.ErrPersistenceFailure, component, "collect", "encoder produced no manifest", nil)
	}
	if len(out.Segments) == 0 {
		return nil, services.Wrap(services.ErrPersistenceFailure, component, "collect", "encoder produced no segments", nil)
	}

	sort.Slice(out.Segments, func(i, j int) bool {
		return out.Segments[i].Index < out.Segments[j].Index
	})
	for i, segment := range out.Segments {
		if segment.Index != i {
			return nil, services.Wrap(
				services.ErrPersistenceFailure,
				component,
				"collect",
				fmt.Sprintf("segment sequence has a gap: expected index %d, found %d", i, segment.Index),
				nil,
			)
		}
	}
	return out, nil
}

// parseSegmentName extracts the ordinal from names like output12.ts.
func parseSegmentName(name string) (int, bool) {
	if !strings.HasPrefix(name, ffmpeg.SegmentPrefix) || !strings.HasSuffix(name, ".ts") {
		return 0, false
	}
	digits := strings.TrimSuffix(strings.TrimPrefix(name, ffmpeg.SegmentPrefix), ".ts")
	if digits == "" {
		return 0, false
	}
	index, err := strconv.Atoi(digits)
	if err != nil || index < 0 {
		return 0, false
	}
	return index, true
}

// Writer copies encoder output into a video's durable library directory.
type Writer struct {
	libraryDir string
}

// NewWriter constructs a Writer rooted at the library directory.
func NewWriter(libraryDir string) *Writer {
	return &Writer{libraryDir: libraryDir}
}

// Publication is staged encoder output for one video. The files live in a
// job-scoped directory beside the final one until Install swaps them into
// place; any previous output is set aside, not overwritten, so Rollback can
// restore the video's library directory exactly as it was.
type Publication struct {
	stagingDir string
	backupDir  string
	finalDir   string
	installed  bool
	hasBackup  bool

	// ManifestPath and Segments hold the paths the files will occupy once
	// installed, ready for persistence alongside the install.
	ManifestPath string
	Segments     []library.SegmentFile
}

// Publish copies the manifest and every segment into a job-scoped staging
// directory with checksum verification. On any copy failure the staging
// directory is removed and any previously published output for the video is
// untouched.
func (w *Writer) Publish(videoID int64, jobID string, out *Output) (*Publication, error) {
	if out == nil || out.ManifestPath == "" {
		return nil, services.Wrap(services.ErrPersistenceFailure, component, "publish", "no output to publish", nil)
	}

	id := strconv.FormatInt(videoID, 10)
	pub := &Publication{
		stagingDir: filepath.Join(w.libraryDir, id+".job-"+jobID),
		backupDir:  filepath.Join(w.libraryDir, id+".prev-"+jobID),
		finalDir:   filepath.Join(w.libraryDir, id),
	}

	// Clear leftovers from a crashed run before staging fresh output.
	_ = os.RemoveAll(pub.stagingDir)
	_ = os.RemoveAll(pub.backupDir)
	if err := os.MkdirAll(pub.stagingDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrPersistenceFailure, component, "publish", "create staging directory", err)
	}

	if err := fileutil.CopyFileVerified(out.ManifestPath, filepath.Join(pub.stagingDir, ffmpeg.ManifestName)); err != nil {
		_ = os.RemoveAll(pub.stagingDir)
		return nil, services.Wrap(services.ErrPersistenceFailure, component, "publish", "copy manifest", err)
	}
	pub.ManifestPath = filepath.Join(pub.finalDir, ffmpeg.ManifestName)

	for _, segment := range out.Segments {
		name := filepath.Base(segment.FilePath)
		if err := fileutil.CopyFileVerified(segment.FilePath, filepath.Join(pub.stagingDir, name)); err != nil {
			_ = os.RemoveAll(pub.stagingDir)
			return nil, services.Wrap(
				services.ErrPersistenceFailure,
				component,
				"publish",
				fmt.Sprintf("copy segment %d", segment.Index),
				err,
			)
		}
		pub.Segments = append(pub.Segments, library.SegmentFile{Index: segment.Index, FilePath: filepath.Join(pub.finalDir, name)})
	}

	return pub, nil
}

// Install swaps the staged output into the video's library directory. Any
// previous output is renamed aside first and survives until Commit, so a
// failed install or a later Rollback leaves the prior publish in place.
func (p *Publication) Install() error {
	if _, err := os.Stat(p.finalDir); err == nil {
		if err := os.Rename(p.finalDir, p.backupDir); err != nil {
			_ = os.RemoveAll(p.stagingDir)
			return services.Wrap(services.ErrPersistenceFailure, component, "install", "set aside previous output", err)
		}
		p.hasBackup = true
	}
	if err := os.Rename(p.stagingDir, p.finalDir); err != nil {
		if p.hasBackup {
			_ = os.Rename(p.backupDir, p.finalDir)
		}
		_ = os.RemoveAll(p.stagingDir)
		return services.Wrap(services.ErrPersistenceFailure, component, "install", "install staged output", err)
	}
	p.installed = true
	return nil
}

// Commit discards the previous output once the new publish is recorded.
func (p *Publication) Commit() {
	if p.hasBackup {
		_ = os.RemoveAll(p.backupDir)
	}
}

// Rollback undoes the publish: staged files are removed and, if Install
// already ran, the previous output is moved back into place.
func (p *Publication) Rollback() {
	if p.installed {
		_ = os.RemoveAll(p.finalDir)
		if p.hasBackup {
			_ = os.Rename(p.backupDir, p.finalDir)
		}
		return
	}
	_ = os.RemoveAll(p.stagingDir)
	_ = os.RemoveAll(p.backupDir)
}
