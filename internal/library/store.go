package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"hlsforge/internal/config"
)

// Store manages video, job, and segment persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the library database and applies the schema.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.LogDir, "library.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applySchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location for diagnostics.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// CreateVideo inserts a new video awaiting transcoding.
func (s *Store) CreateVideo(ctx context.Context, title, sourcePath string) (*Video, error) {
	if title == "" {
		title = inferTitleFromPath(sourcePath)
	}
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO videos (title, source_path, hls_state, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?)`,
		title,
		sourcePath,
		VideoStatePending,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert video: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetVideo(ctx, id)
}

// GetVideo fetches a video by identifier. Returns nil when absent.
func (s *Store) GetVideo(ctx context.Context, id int64) (*Video, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = ?`, id)
	video, err := scanVideo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get video: %w", err)
	}
	return video, nil
}

// ListVideos returns all videos ordered by creation time.
func (s *Store) ListVideos(ctx context.Context) ([]*Video, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+videoColumns+` FROM videos ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	defer rows.Close()

	var videos []*Video
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		videos = append(videos, video)
	}
	return videos, rows.Err()
}

// CreateJob inserts a pending job for a video, enforcing at most one active
// job per video with a single conditional write. Returns ErrActiveJobExists
// when a pending or running job already occupies the slot.
func (s *Store) CreateJob(ctx context.Context, videoID int64, segmentSeconds int) (*Job, error) {
	id := uuid.NewString()
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO jobs (id, video_id, segment_seconds, status, progress_percent, created_at, updated_at)
         SELECT ?, ?, ?, ?, 0, ?, ?
         WHERE NOT EXISTS (
             SELECT 1 FROM jobs WHERE video_id = ? AND status IN (?, ?)
         )`,
		id,
		videoID,
		segmentSeconds,
		JobStatusPending,
		timestamp,
		timestamp,
		videoID,
		JobStatusPending,
		JobStatusRunning,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, ErrActiveJobExists
	}
	return s.GetJob(ctx, id)
}

// GetJob fetches a job by identifier. Returns nil when absent.
func (s *Store) GetJob(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// ListJobs returns jobs filtered by status set (or all jobs when no status is
// provided), ordered by creation time.
func (s *Store) ListJobs(ctx context.Context, statuses ...JobStatus) ([]*Job, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + jobColumns + ` FROM jobs`
	orderClause := ` ORDER BY created_at`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		rows, err = s.db.QueryContext(ctx, baseQuery+` WHERE status IN (`+placeholders+`)`+orderClause, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// StartJob transitions a pending job to running and stamps started_at.
func (s *Store) StartJob(ctx context.Context, id string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs SET status = ?, started_at = ?, updated_at = ? WHERE id = ? AND status = ?`,
		JobStatusRunning,
		now,
		now,
		id,
		JobStatusPending,
	)
	if err != nil {
		return fmt.Errorf("start job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("start job: job %s is not pending", id)
	}
	return nil
}

// UpdateJobProgress records the last observed progress percentage.
func (s *Store) UpdateJobProgress(ctx context.Context, id string, percent float64) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs SET progress_percent = ?, updated_at = ? WHERE id = ?`,
		percent,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("update job progress: %w", err)
	}
	return nil
}

// FailJob marks a job failed with a human-readable cause.
func (s *Store) FailJob(ctx context.Context, id, message string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs SET status = ?, error_message = ?, finished_at = ?, updated_at = ? WHERE id = ?`,
		JobStatusFailed,
		nullableString(message),
		now,
		now,
		id,
	)
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	return nil
}

// CompleteJob records a successful transcoding run in a single transaction:
// segment rows are replaced, the video gains its manifest reference and
// flips to complete, and the job reaches its terminal state. A partial write
// never leaves the video visible as complete.
func (s *Store) CompleteJob(ctx context.Context, jobID string, videoID int64, manifestPath string, segments []SegmentFile) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin completion tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC().Format(time.RFC3339Nano)

	if _, err := tx.ExecContext(ctx, `DELETE FROM segments WHERE video_id = ?`, videoID); err != nil {
		return fmt.Errorf("clear prior segments: %w", err)
	}
	for _, segment := range segments {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO segments (video_id, idx, file_path) VALUES (?, ?, ?)`,
			videoID,
			segment.Index,
			segment.FilePath,
		); err != nil {
			return fmt.Errorf("insert segment %d: %w", segment.Index, err)
		}
	}

	res, err := tx.ExecContext(
		ctx,
		`UPDATE videos SET manifest_path = ?, hls_state = ?, updated_at = ? WHERE id = ?`,
		manifestPath,
		VideoStateComplete,
		now,
		videoID,
	)
	if err != nil {
		return fmt.Errorf("update video: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrVideoNotFound
	}

	if _, err := tx.ExecContext(
		ctx,
		`UPDATE jobs SET status = ?, progress_percent = 100, error_message = NULL, finished_at = ?, updated_at = ? WHERE id = ?`,
		JobStatusCompleted,
		now,
		now,
		jobID,
	); err != nil {
		return fmt.Errorf("complete job: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit completion tx: %w", err)
	}
	return nil
}

// SegmentsByVideo returns a video's segments ordered by ordinal index.
func (s *Store) SegmentsByVideo(ctx context.Context, videoID int64) ([]*Segment, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, video_id, idx, file_path FROM segments WHERE video_id = ? ORDER BY idx`,
		videoID,
	)
	if err != nil {
		return nil, fmt.Errorf("query segments: %w", err)
	}
	defer rows.Close()

	var segments []*Segment
	for rows.Next() {
		var segment Segment
		if err := rows.Scan(&segment.ID, &segment.VideoID, &segment.Index, &segment.FilePath); err != nil {
			return nil, err
		}
		segments = append(segments, &segment)
	}
	return segments, rows.Err()
}

// ResetStuckJobs fails jobs left pending or running by a previous daemon
// process. Jobs are not retried automatically; a new submission is required.
func (s *Store) ResetStuckJobs(ctx context.Context) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs SET status = ?, error_message = ?, finished_at = ?, updated_at = ?
         WHERE status IN (?, ?)`,
		JobStatusFailed,
		DaemonStopReason,
		now,
		now,
		JobStatusPending,
		JobStatusRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck jobs: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns a count of jobs grouped by status.
func (s *Store) Stats(ctx context.Context) (map[JobStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[JobStatus]int)
	for rows.Next() {
		var status JobStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates job state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case JobStatusPending:
			health.Pending += count
		case JobStatusRunning:
			health.Running += count
		case JobStatusCompleted:
			health.Completed += count
		case JobStatusFailed:
			health.Failed += count
		}
	}
	return health, nil
}

const videoColumns = "id, title, source_path, manifest_path, hls_state, created_at, updated_at"

const jobColumns = "id, video_id, segment_seconds, status, progress_percent, error_message, created_at, updated_at, started_at, finished_at"

func scanVideo(scanner interface{ Scan(dest ...any) error }) (*Video, error) {
	var (
		id         int64
		title      string
		sourcePath string
		manifest   sql.NullString
		state      string
		createdRaw string
		updatedRaw string
	)
	if err := scanner.Scan(&id, &title, &sourcePath, &manifest, &state, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}

	video := &Video{
		ID:           id,
		Title:        title,
		SourcePath:   sourcePath,
		ManifestPath: manifest.String,
		State:        VideoState(state),
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		video.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		video.UpdatedAt = updated
	}
	return video, nil
}

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id           string
		videoID      int64
		segSeconds   int
		status       string
		percent      float64
		errorMessage sql.NullString
		createdRaw   string
		updatedRaw   string
		startedRaw   sql.NullString
		finishedRaw  sql.NullString
	)
	if err := scanner.Scan(
		&id,
		&videoID,
		&segSeconds,
		&status,
		&percent,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
		&startedRaw,
		&finishedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:              id,
		VideoID:         videoID,
		SegmentSeconds:  segSeconds,
		Status:          JobStatus(status),
		ProgressPercent: percent,
		ErrorMessage:    errorMessage.String,
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		job.UpdatedAt = updated
	}
	if startedRaw.Valid {
		if started, err := parseTimeString(startedRaw.String); err == nil {
			job.StartedAt = &started
		}
	}
	if finishedRaw.Valid {
		if finished, err := parseTimeString(finishedRaw.String); err == nil {
			job.FinishedAt = &finished
		}
	}
	return job, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}

func inferTitleFromPath(path string) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	cleaned := base[:len(base)-len(ext)]
	if cleaned == "" || cleaned == "." || cleaned == "/" {
		return "Untitled"
	}
	return cleaned
}
