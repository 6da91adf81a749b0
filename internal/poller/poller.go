package poller

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"DripSend/internal/metrics"
	"DripSend/internal/models"
	"DripSend/internal/recipients"
)

// ErrMissingCredentials reports a task whose record lacks a sender email
// or password; such a task fails without ever touching the transport.
var ErrMissingCredentials = errors.New("task is missing sender credentials")

// TaskStore is the slice of the store the poller needs.
type TaskStore interface {
	DueTasks(ctx context.Context, status models.TaskStatus, atOrBefore time.Time) ([]models.EmailTask, error)
	MarkProcessing(ctx context.Context, id string) error
	MarkSent(ctx context.Context, id string, sentCount int, completedAt time.Time) error
	MarkError(ctx context.Context, id, message string) error
}

// Decrypter recovers the plaintext password from a stored token.
type Decrypter interface {
	Decrypt(token string) (string, error)
}

// BulkSender sends one email per recipient and reports how many
// submissions succeeded.
type BulkSender interface {
	SendBulk(ctx context.Context, senderEmail, senderPassword, subject, htmlBody string, recipients []string, attachmentPath string) (int, error)
}

// Poller periodically claims due PENDING tasks and drives each one to a
// terminal status. One goroutine owns the ticker and a tick runs to
// completion before the next is read, so ticks from the same process
// never overlap. Claiming is a plain status write with no
// compare-and-swap: running a second poller process against the same
// database can double-claim a task. Single-poller deployment is assumed.
type Poller struct {
	Store   TaskStore
	Codec   Decrypter
	Sender  BulkSender
	Fetcher Fetcher
	Log     *zap.Logger

	// Interval between polls.
	Interval time.Duration

	// TaskTimeout bounds one task's processing, downloads included.
	TaskTimeout time.Duration

	// Workers bounds concurrent task processing within one tick.
	Workers int
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	p.Log.Info("poller started", zap.Duration("interval", p.Interval))

	for {
		select {
		case <-ctx.Done():
			p.Log.Info("poller stopped")
			return
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}

// Tick runs one poll cycle: discover due tasks and process each one.
// A task's failure never aborts the cycle for the others.
func (p *Poller) Tick(ctx context.Context) {
	metrics.PollTicks.Inc()

	tasks, err := p.Store.DueTasks(ctx, models.StatusPending, time.Now().UTC())
	if err != nil {
		p.Log.Error("failed to query due tasks", zap.Error(err))
		return
	}
	if len(tasks) == 0 {
		p.Log.Info("no due tasks found")
		return
	}

	p.Log.Info("found due tasks", zap.Int("count", len(tasks)))

	workers := p.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(tasks) {
		workers = len(tasks)
	}

	jobs := make(chan models.EmailTask)
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range jobs {
				p.processTask(ctx, task)
			}
		}()
	}

	for _, task := range tasks {
		jobs <- task
	}
	close(jobs)
	wg.Wait()
}

// processTask claims the task, runs it and records the terminal status.
func (p *Poller) processTask(ctx context.Context, task models.EmailTask) {
	log := p.Log.With(zap.String("task_id", task.ID))

	if err := p.Store.MarkProcessing(ctx, task.ID); err != nil {
		// Not claimed; the task stays PENDING and a later tick retries.
		log.Error("failed to claim task", zap.Error(err))
		return
	}
	log.Info("processing task", zap.String("sender", task.SenderEmail))

	taskCtx := ctx
	if p.TaskTimeout > 0 {
		var cancel context.CancelFunc
		taskCtx, cancel = context.WithTimeout(ctx, p.TaskTimeout)
		defer cancel()
	}

	sentCount, err := p.execute(taskCtx, task, log)
	if err != nil {
		log.Error("task failed", zap.Error(err))
		metrics.TaskFailures.Inc()
		if updateErr := p.Store.MarkError(ctx, task.ID, err.Error()); updateErr != nil {
			// The task is now stuck in PROCESSING and nothing will pick
			// it up again.
			log.Error("CRITICAL: failed to record task failure; task stuck in PROCESSING",
				zap.Error(updateErr))
		}
		return
	}

	if err := p.Store.MarkSent(ctx, task.ID, sentCount, time.Now().UTC()); err != nil {
		log.Error("CRITICAL: failed to record task completion; task stuck in PROCESSING",
			zap.Error(err))
		return
	}

	metrics.TasksCompleted.Inc()
	log.Info("task completed", zap.Int("sent_count", sentCount))
}

// execute runs one claimed task through to a sent count. Downloaded
// payloads live in a per-task directory that is removed on every exit
// path.
func (p *Poller) execute(ctx context.Context, task models.EmailTask, log *zap.Logger) (int, error) {
	if task.SenderEmail == "" || task.SenderPassword == "" {
		return 0, fmt.Errorf("%w: re-save sender settings and resubmit", ErrMissingCredentials)
	}

	password, err := p.Codec.Decrypt(task.SenderPassword)
	if err != nil {
		return 0, fmt.Errorf("decrypt sender password: %w", err)
	}

	dir, err := os.MkdirTemp("", "email-task-"+task.ID+"-")
	if err != nil {
		return 0, fmt.Errorf("create temp dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			log.Warn("failed to delete temp dir", zap.String("dir", dir), zap.Error(err))
		} else {
			log.Info("deleted temp dir", zap.String("dir", dir))
		}
	}()

	recipientsPath := filepath.Join(dir, "recipients.csv")
	if err := p.Fetcher.Fetch(ctx, task.RecipientsURL, recipientsPath); err != nil {
		return 0, fmt.Errorf("fetch recipient list: %w", err)
	}

	var attachmentPath string
	if task.AttachmentURL != "" {
		attachmentPath = filepath.Join(dir, attachmentName(task.AttachmentURL))
		if err := p.Fetcher.Fetch(ctx, task.AttachmentURL, attachmentPath); err != nil {
			return 0, fmt.Errorf("fetch attachment: %w", err)
		}
	}

	addrs, err := recipients.ParseFile(recipientsPath)
	if err != nil {
		return 0, fmt.Errorf("parse recipient list: %w", err)
	}

	sentCount, err := p.Sender.SendBulk(ctx,
		task.SenderEmail, password, task.Subject, task.HTMLBody,
		addrs, attachmentPath)
	if err != nil {
		return 0, fmt.Errorf("send bulk email: %w", err)
	}

	return sentCount, nil
}

// attachmentName keeps the original filename from the blob URL so the
// outgoing message shows it, falling back to a generic name.
func attachmentName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "attachment.bin"
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return "attachment.bin"
	}
	return filepath.Base(name)
}
