package submit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"DripSend/internal/models"
)

type fakeUploader struct {
	uploads []upload
	err     error
}

type upload struct {
	folder   string
	filename string
	data     []byte
}

func (f *fakeUploader) Upload(ctx context.Context, data []byte, folder, filename string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.uploads = append(f.uploads, upload{folder: folder, filename: filename, data: data})
	return "https://blobs.example.com/" + folder + "/" + filename, nil
}

type fakeTaskCreator struct {
	created []*models.EmailTask
	err     error
}

func (f *fakeTaskCreator) CreateTask(ctx context.Context, task *models.EmailTask) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	task.ID = "task-1"
	f.created = append(f.created, task)
	return task.ID, nil
}

func TestSubmit_EmptyRecipients(t *testing.T) {
	t.Parallel()

	uploader := &fakeUploader{}
	creator := &fakeTaskCreator{}
	svc := NewService(creator, uploader, zap.NewNop())

	_, err := svc.Submit(context.Background(), Request{
		SenderEmail: "sender@x.com",
		Subject:     "hi",
	})
	require.ErrorIs(t, err, ErrNoRecipients)

	// The validation failure must happen before any I/O.
	require.Empty(t, uploader.uploads)
	require.Empty(t, creator.created)
}

func TestSubmit_CreatesPendingTask(t *testing.T) {
	t.Parallel()

	uploader := &fakeUploader{}
	creator := &fakeTaskCreator{}
	svc := NewService(creator, uploader, zap.NewNop())

	id, err := svc.Submit(context.Background(), Request{
		SenderEmail:    "sender@x.com",
		SenderPassword: "aXY=:Y3Q=",
		Subject:        "hi",
		HTMLBody:       "<p>hello</p>",
		Recipients:     []string{"a@x.com", "b@x.com"},
		Attachment:     &Attachment{Filename: "resume.pdf", Data: []byte("%PDF")},
	})
	require.NoError(t, err)
	require.Equal(t, "task-1", id)

	require.Len(t, uploader.uploads, 2)
	require.Equal(t, "csv_files", uploader.uploads[0].folder)
	require.Equal(t, "recipients.csv", uploader.uploads[0].filename)
	require.Equal(t, []byte("a@x.com\nb@x.com"), uploader.uploads[0].data)
	require.Equal(t, "attachments", uploader.uploads[1].folder)
	require.Equal(t, "resume.pdf", uploader.uploads[1].filename)

	require.Len(t, creator.created, 1)
	task := creator.created[0]
	require.Equal(t, models.StatusPending, task.Status)
	require.Equal(t, "https://blobs.example.com/csv_files/recipients.csv", task.RecipientsURL)
	require.Equal(t, "https://blobs.example.com/attachments/resume.pdf", task.AttachmentURL)
	require.Equal(t, "aXY=:Y3Q=", task.SenderPassword)
	require.WithinDuration(t, time.Now().UTC(), task.ScheduleTime, 5*time.Second)
}

func TestSubmit_NoAttachment(t *testing.T) {
	t.Parallel()

	uploader := &fakeUploader{}
	creator := &fakeTaskCreator{}
	svc := NewService(creator, uploader, zap.NewNop())

	_, err := svc.Submit(context.Background(), Request{
		SenderEmail: "sender@x.com",
		Recipients:  []string{"a@x.com"},
	})
	require.NoError(t, err)

	require.Len(t, uploader.uploads, 1)
	require.Empty(t, creator.created[0].AttachmentURL)
}

func TestSubmit_FutureScheduleTime(t *testing.T) {
	t.Parallel()

	uploader := &fakeUploader{}
	creator := &fakeTaskCreator{}
	svc := NewService(creator, uploader, zap.NewNop())

	future := time.Now().Add(2 * time.Hour).UTC()
	_, err := svc.Submit(context.Background(), Request{
		SenderEmail:  "sender@x.com",
		Recipients:   []string{"a@x.com"},
		ScheduleTime: future,
	})
	require.NoError(t, err)
	require.Equal(t, future, creator.created[0].ScheduleTime)
}

func TestSubmit_UploadFailure(t *testing.T) {
	t.Parallel()

	uploader := &fakeUploader{err: errors.New("bucket unreachable")}
	creator := &fakeTaskCreator{}
	svc := NewService(creator, uploader, zap.NewNop())

	_, err := svc.Submit(context.Background(), Request{
		SenderEmail: "sender@x.com",
		Recipients:  []string{"a@x.com"},
	})
	require.Error(t, err)
	require.Empty(t, creator.created)
}

func TestSubmit_StoreFailureAfterUploads(t *testing.T) {
	t.Parallel()

	uploader := &fakeUploader{}
	creator := &fakeTaskCreator{err: errors.New("connection refused")}
	svc := NewService(creator, uploader, zap.NewNop())

	_, err := svc.Submit(context.Background(), Request{
		SenderEmail: "sender@x.com",
		Recipients:  []string{"a@x.com"},
	})
	require.Error(t, err)

	// The blob was already uploaded; the orphan is accepted, not rolled back.
	require.Len(t, uploader.uploads, 1)
}
