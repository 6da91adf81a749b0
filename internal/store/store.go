package store

import (
	"context"
	"embed"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"DripSend/internal/models"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store persists email tasks and user settings in Postgres. Every method
// performs exactly one statement with no internal retry; callers decide
// what a failure means for them.
type Store struct {
	Pool *pgxpool.Pool
	log  *zap.Logger
}

// New connects to Postgres, retrying the initial ping with exponential
// backoff so a briefly unavailable database does not kill startup.
func New(ctx context.Context, conn string, logger *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("store: parse connection config: %w", err)
	}

	ping := func() error {
		return pool.Ping(ctx)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxElapsedTime = 30 * time.Second

	if err := backoff.Retry(ping, backoff.WithContext(b, ctx)); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping database: %w", err)
	}

	return &Store{Pool: pool, log: logger}, nil
}

func (s *Store) Close() {
	s.Pool.Close()
}

// Migrate applies the embedded schema migrations.
func (s *Store) Migrate(ctx context.Context) error {
	// Bridge the pgx pool to database/sql for goose. The returned *sql.DB
	// shares the pool's connections, so it must not be closed here.
	db := stdlib.OpenDBFromPool(s.Pool)

	goose.SetBaseFS(migrations)
	goose.SetLogger(&gooseLogger{s.log})

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("store: set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("store: apply migrations: %w", err)
	}
	return nil
}

// CreateTask inserts a new task with a fresh id. A zero Status defaults
// to PENDING and a zero CreatedAt defaults to now.
func (s *Store) CreateTask(ctx context.Context, task *models.EmailTask) (string, error) {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.Status == "" {
		task.Status = models.StatusPending
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}

	_, err := s.Pool.Exec(ctx,
		`INSERT INTO scheduled_emails
		 (id, sender_email, sender_password, subject, html_body,
		  schedule_time, recipients_url, attachment_url, status, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		task.ID,
		task.SenderEmail,
		task.SenderPassword,
		task.Subject,
		task.HTMLBody,
		task.ScheduleTime,
		task.RecipientsURL,
		task.AttachmentURL,
		task.Status,
		task.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("store: insert task: %w", err)
	}

	return task.ID, nil
}

// updatableColumns is the set of task fields UpdateFields may touch.
// Submission-time fields are immutable once written.
var updatableColumns = map[string]bool{
	"status":        true,
	"sent_count":    true,
	"completed_at":  true,
	"error_message": true,
}

// UpdateFields applies a partial update as a single UPDATE statement, so
// the given fields land all-or-nothing.
func (s *Store) UpdateFields(ctx context.Context, id string, fields map[string]any) error {
	query, args, err := buildUpdate(id, fields)
	if err != nil {
		return err
	}

	tag, err := s.Pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("store: update task %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("store: update task %s: no such task", id)
	}
	return nil
}

func buildUpdate(id string, fields map[string]any) (string, []any, error) {
	if len(fields) == 0 {
		return "", nil, fmt.Errorf("store: update task %s: no fields given", id)
	}

	// Deterministic column order keeps the statement stable for a given
	// field set.
	cols := make([]string, 0, len(fields))
	for col := range fields {
		if !updatableColumns[col] {
			return "", nil, fmt.Errorf("store: update task %s: column %q is not updatable", id, col)
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)

	set := make([]string, 0, len(cols))
	args := make([]any, 0, len(cols)+1)
	for i, col := range cols {
		set = append(set, fmt.Sprintf("%s=$%d", col, i+1))
		args = append(args, fields[col])
	}
	args = append(args, id)

	query := fmt.Sprintf(
		"UPDATE scheduled_emails SET %s WHERE id=$%d",
		strings.Join(set, ", "), len(args),
	)
	return query, args, nil
}

// MarkProcessing claims a task. This is a plain write, not a
// compare-and-swap: two pollers sharing one database could both claim the
// same task. The deployment assumption is a single poller process.
func (s *Store) MarkProcessing(ctx context.Context, id string) error {
	return s.UpdateFields(ctx, id, map[string]any{
		"status": models.StatusProcessing,
	})
}

func (s *Store) MarkSent(ctx context.Context, id string, sentCount int, completedAt time.Time) error {
	return s.UpdateFields(ctx, id, map[string]any{
		"status":       models.StatusSent,
		"sent_count":   sentCount,
		"completed_at": completedAt,
	})
}

func (s *Store) MarkError(ctx context.Context, id, message string) error {
	return s.UpdateFields(ctx, id, map[string]any{
		"status":        models.StatusError,
		"error_message": message,
	})
}

// DueTasks returns tasks in the given status whose schedule time is at or
// before the given instant, oldest first.
func (s *Store) DueTasks(ctx context.Context, status models.TaskStatus, atOrBefore time.Time) ([]models.EmailTask, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT id, sender_email, sender_password, subject, html_body,
		        schedule_time, recipients_url, attachment_url, status,
		        sent_count, error_message, created_at, completed_at
		 FROM scheduled_emails
		 WHERE status=$1 AND schedule_time<=$2
		 ORDER BY schedule_time`,
		status, atOrBefore,
	)
	if err != nil {
		return nil, fmt.Errorf("store: query due tasks: %w", err)
	}
	defer rows.Close()

	tasks, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.EmailTask, error) {
		var t models.EmailTask
		err := row.Scan(
			&t.ID, &t.SenderEmail, &t.SenderPassword, &t.Subject, &t.HTMLBody,
			&t.ScheduleTime, &t.RecipientsURL, &t.AttachmentURL, &t.Status,
			&t.SentCount, &t.ErrorMessage, &t.CreatedAt, &t.CompletedAt,
		)
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("store: scan due tasks: %w", err)
	}
	return tasks, nil
}

// SaveSettings upserts one user's stored sender credentials. AppPassword
// must already be a ciphertext token.
func (s *Store) SaveSettings(ctx context.Context, settings models.Settings) error {
	_, err := s.Pool.Exec(ctx,
		`INSERT INTO settings (user_id, gmail, app_password)
		 VALUES ($1,$2,$3)
		 ON CONFLICT (user_id)
		 DO UPDATE SET gmail=EXCLUDED.gmail, app_password=EXCLUDED.app_password`,
		settings.UserID,
		settings.Gmail,
		settings.AppPassword,
	)
	if err != nil {
		return fmt.Errorf("store: save settings for %s: %w", settings.UserID, err)
	}
	return nil
}

type gooseLogger struct {
	log *zap.Logger
}

func (g *gooseLogger) Printf(format string, args ...any) {
	g.log.Info(fmt.Sprintf(strings.TrimSuffix(format, "\n"), args...))
}

func (g *gooseLogger) Fatalf(format string, args ...any) {
	g.log.Error(fmt.Sprintf(strings.TrimSuffix(format, "\n"), args...))
}
