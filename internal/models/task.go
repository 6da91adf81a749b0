package models

import "time"

type TaskStatus string

const (
	StatusPending    TaskStatus = "PENDING"
	StatusProcessing TaskStatus = "PROCESSING"
	StatusSent       TaskStatus = "SENT"
	StatusError      TaskStatus = "ERROR"
)

// EmailTask is one durable bulk-send request. Recipients are kept
// out-of-band behind RecipientsURL so the record stays small.
type EmailTask struct {
	ID          string `json:"id"`
	SenderEmail string `json:"sender_email"`
	// SenderPassword holds the ciphertext token produced by the secret
	// codec, never a plaintext password.
	SenderPassword string `json:"sender_password"`
	Subject        string `json:"subject"`
	HTMLBody       string `json:"html_body"`

	ScheduleTime  time.Time `json:"schedule_time"`
	RecipientsURL string    `json:"recipients_url"`
	AttachmentURL string    `json:"attachment_url,omitempty"`

	Status       TaskStatus `json:"status"`
	SentCount    int        `json:"sent_count"`
	ErrorMessage string     `json:"error_message,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Settings holds one user's stored sender credentials.
type Settings struct {
	UserID string `json:"user_id"`
	Gmail  string `json:"gmail"`
	// AppPassword is a ciphertext token.
	AppPassword string `json:"app_password"`
}
