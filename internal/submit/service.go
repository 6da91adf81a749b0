package submit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"DripSend/internal/blob"
	"DripSend/internal/models"
	"DripSend/internal/recipients"
)

// ErrNoRecipients is returned when a request carries no recipients. The
// check runs before any upload or store write.
var ErrNoRecipients = errors.New("recipient list cannot be empty")

const (
	recipientsFolder   = "csv_files"
	recipientsFilename = "recipients.csv"
	attachmentFolder   = "attachments"
)

// TaskCreator is the slice of the task store the service needs.
type TaskCreator interface {
	CreateTask(ctx context.Context, task *models.EmailTask) (string, error)
}

// Attachment is an optional uploaded payload to send with every email.
type Attachment struct {
	Filename string
	Data     []byte
}

// Request is one bulk-send job as received from the front door. The
// password is stored as given; by convention the caller has already
// encrypted it with the shared secret.
type Request struct {
	SenderEmail    string
	SenderPassword string
	Subject        string
	HTMLBody       string
	Recipients     []string
	Attachment     *Attachment

	// ScheduleTime defers processing until the given instant; zero means
	// the task is due immediately.
	ScheduleTime time.Time
}

// Service validates submissions, parks their payloads in blob storage and
// persists the PENDING task.
//
// Uploads and the store write are not one transaction: if task creation
// fails after an upload succeeded, the uploaded blob is orphaned. There
// is no compensating delete; reconciliation lives outside this service.
type Service struct {
	store    TaskCreator
	uploader blob.Uploader
	log      *zap.Logger
}

func NewService(store TaskCreator, uploader blob.Uploader, logger *zap.Logger) *Service {
	return &Service{
		store:    store,
		uploader: uploader,
		log:      logger,
	}
}

// Submit uploads the recipient list (and attachment, when present) and
// creates the task. Returns the new task id.
func (s *Service) Submit(ctx context.Context, req Request) (string, error) {
	if len(req.Recipients) == 0 {
		return "", ErrNoRecipients
	}

	scheduleTime := req.ScheduleTime
	if scheduleTime.IsZero() {
		scheduleTime = time.Now().UTC()
	}

	recipientsURL, err := s.uploader.Upload(ctx,
		recipients.Join(req.Recipients), recipientsFolder, recipientsFilename)
	if err != nil {
		return "", fmt.Errorf("upload recipient list: %w", err)
	}

	var attachmentURL string
	if req.Attachment != nil && len(req.Attachment.Data) > 0 {
		attachmentURL, err = s.uploader.Upload(ctx,
			req.Attachment.Data, attachmentFolder, req.Attachment.Filename)
		if err != nil {
			return "", fmt.Errorf("upload attachment: %w", err)
		}
	}

	task := &models.EmailTask{
		SenderEmail:    req.SenderEmail,
		SenderPassword: req.SenderPassword,
		Subject:        req.Subject,
		HTMLBody:       req.HTMLBody,
		ScheduleTime:   scheduleTime,
		RecipientsURL:  recipientsURL,
		AttachmentURL:  attachmentURL,
		Status:         models.StatusPending,
	}

	id, err := s.store.CreateTask(ctx, task)
	if err != nil {
		return "", fmt.Errorf("create task: %w", err)
	}

	s.log.Info("email task created",
		zap.String("task_id", id),
		zap.Int("recipients", len(req.Recipients)),
		zap.Bool("attachment", attachmentURL != ""),
		zap.Time("schedule_time", scheduleTime),
	)

	return id, nil
}
