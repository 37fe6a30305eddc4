package jobqueue

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"apogee/internal/config"
	"apogee/internal/services"
)

//go:embed jobs_schema.sql
var jobsSchemaSQL string

const jobsSchemaVersion = 1

// ErrSchemaMismatch indicates the jobs database schema version doesn't
// match the expected version.
var ErrSchemaMismatch = errors.New("jobs schema version mismatch")

var builder = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// Broker is the durable SQLite-backed job queue. It implements Client for
// producers and exposes claim/finish primitives for the worker runner.
type Broker struct {
	db   *sql.DB
	path string
}

var _ Client = (*Broker)(nil)

// Open initializes or connects to the jobs database.
func Open(cfg *config.Config) (*Broker, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.Queue.Path)
}

// OpenPath opens the jobs database at an explicit location.
func OpenPath(dbPath string) (*Broker, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open jobs db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	broker := &Broker{db: db, path: dbPath}
	if err := broker.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return broker, nil
}

// Close closes the underlying database connection.
func (b *Broker) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

func (b *Broker) initSchema(ctx context.Context) error {
	var tableExists int
	err := b.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		tx, err := b.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin schema tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()
		if _, err := tx.ExecContext(ctx, jobsSchemaSQL); err != nil {
			return fmt.Errorf("create jobs schema: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", jobsSchemaVersion); err != nil {
			return fmt.Errorf("record jobs schema version: %w", err)
		}
		return tx.Commit()
	}

	var version int
	if err := b.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read jobs schema version: %w", err)
	}
	if version != jobsSchemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d", ErrSchemaMismatch, version, jobsSchemaVersion)
	}
	return nil
}

// Enqueue submits a named job. Payload must be JSON-encodable.
func (b *Broker) Enqueue(ctx context.Context, queueName, jobName string, payload any, timeout time.Duration) (Handle, error) {
	var payloadJSON any
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return Handle{}, services.Wrap(services.ErrQueueUnavailable, "jobqueue", "enqueue", "encode payload", err)
		}
		payloadJSON = string(data)
	}

	id := uuid.NewString()
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO jobs (id, queue, name, payload_json, status, timeout_seconds, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, queueName, jobName, payloadJSON, StatusQueued, int(timeout.Seconds()), now, now,
	)
	if err != nil {
		return Handle{}, services.Wrap(services.ErrQueueUnavailable, "jobqueue", "enqueue", jobName, err)
	}
	return Handle{ID: id, Queue: queueName, Name: jobName}, nil
}

// Await polls until the job reaches a terminal state. Polling has no side
// effects, so the call is safely retryable.
func (b *Broker) Await(ctx context.Context, handle Handle, pollInterval time.Duration) (json.RawMessage, error) {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	for {
		job, err := b.JobByID(ctx, handle.ID)
		if err != nil {
			return nil, services.Wrap(services.ErrQueueUnavailable, "jobqueue", "await", handle.Name, err)
		}
		if job == nil {
			return nil, services.Wrap(services.ErrInvariant, "jobqueue", "await", fmt.Sprintf("job %s not found", handle.ID), nil)
		}
		if job.Status.Terminal() {
			if job.Status != StatusFinished {
				reason := job.ErrorMessage
				if reason == "" {
					reason = string(job.Status)
				}
				return nil, services.Wrap(services.ErrJobFailed, "jobqueue", handle.Name,
					fmt.Sprintf("terminal status %s: %s", job.Status, reason), nil)
			}
			return json.RawMessage(job.ResultJSON), nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// JobByID fetches a job, or nil when absent.
func (b *Broker) JobByID(ctx context.Context, id string) (*Job, error) {
	row := b.db.QueryRowContext(ctx, jobSelect+" WHERE id = ?", id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// ClaimNext atomically claims the oldest queued job whose name is in the
// provided set, marking it running. Returns nil when nothing is queued.
func (b *Broker) ClaimNext(ctx context.Context, jobNames []string) (*Job, error) {
	if len(jobNames) == 0 {
		return nil, nil
	}
	query, args, err := builder.
		Select(jobColumns...).
		From("jobs").
		Where(sq.Eq{"status": StatusQueued, "name": jobNames}).
		OrderBy("created_at").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build claim query: %w", err)
	}

	for {
		row := b.db.QueryRowContext(ctx, query, args...)
		job, err := scanJob(row)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("next queued job: %w", err)
		}

		now := time.Now().UTC().Format(time.RFC3339Nano)
		res, err := b.db.ExecContext(ctx,
			"UPDATE jobs SET status = ?, started_at = ?, updated_at = ? WHERE id = ? AND status = ?",
			StatusRunning, now, now, job.ID, StatusQueued,
		)
		if err != nil {
			return nil, fmt.Errorf("claim job: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("claim rows affected: %w", err)
		}
		if affected == 1 {
			job.Status = StatusRunning
			return job, nil
		}
		// Lost the claim race; try the next queued job.
	}
}

// Finish records a successful result and marks the job finished.
func (b *Broker) Finish(ctx context.Context, id string, result any) error {
	var resultJSON any
	if result != nil {
		data, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("encode job result: %w", err)
		}
		resultJSON = string(data)
	}
	_, err := b.db.ExecContext(ctx,
		"UPDATE jobs SET status = ?, result_json = ?, updated_at = ? WHERE id = ?",
		StatusFinished, resultJSON, time.Now().UTC().Format(time.RFC3339Nano), id,
	)
	if err != nil {
		return fmt.Errorf("finish job: %w", err)
	}
	return nil
}

// Fail marks the job failed with the remote error text.
func (b *Broker) Fail(ctx context.Context, id, message string) error {
	_, err := b.db.ExecContext(ctx,
		"UPDATE jobs SET status = ?, error_message = ?, updated_at = ? WHERE id = ?",
		StatusFailed, message, time.Now().UTC().Format(time.RFC3339Nano), id,
	)
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	return nil
}

// Stats returns a count of jobs grouped by status.
func (b *Broker) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := b.db.QueryContext(ctx, "SELECT status, COUNT(1) FROM jobs GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

var jobColumns = []string{
	"id", "queue", "name", "COALESCE(payload_json, '')", "status",
	"COALESCE(result_json, '')", "COALESCE(error_message, '')",
	"timeout_seconds", "created_at", "updated_at", "started_at",
}

const jobSelect = `SELECT id, queue, name, COALESCE(payload_json, ''), status,
    COALESCE(result_json, ''), COALESCE(error_message, ''),
    timeout_seconds, created_at, updated_at, started_at FROM jobs`

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		job            Job
		statusStr      string
		timeoutSeconds int
		createdRaw     string
		updatedRaw     string
		startedRaw     sql.NullString
	)
	if err := scanner.Scan(
		&job.ID,
		&job.Queue,
		&job.Name,
		&job.PayloadJSON,
		&statusStr,
		&job.ResultJSON,
		&job.ErrorMessage,
		&timeoutSeconds,
		&createdRaw,
		&updatedRaw,
		&startedRaw,
	); err != nil {
		return nil, err
	}
	status, ok := ParseStatus(statusStr)
	if !ok {
		return nil, fmt.Errorf("unknown job status %q", statusStr)
	}
	job.Status = status
	job.Timeout = time.Duration(timeoutSeconds) * time.Second
	if created, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
		job.CreatedAt = created
	}
	if updated, err := time.Parse(time.RFC3339Nano, updatedRaw); err == nil {
		job.UpdatedAt = updated
	}
	if startedRaw.Valid {
		if started, err := time.Parse(time.RFC3339Nano, startedRaw.String); err == nil {
			job.StartedAt = &started
		}
	}
	return &job, nil
}
