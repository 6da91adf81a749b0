package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"DripSend/internal/models"
	"DripSend/internal/submit"
)

// maxSubmissionBytes bounds one multipart submission (attachment included).
const maxSubmissionBytes = 32 << 20

// Submitter accepts a validated bulk-send job.
type Submitter interface {
	Submit(ctx context.Context, req submit.Request) (string, error)
}

// SettingsSaver persists a user's sender credentials.
type SettingsSaver interface {
	SaveSettings(ctx context.Context, settings models.Settings) error
}

// Encrypter turns a plaintext app password into a ciphertext token.
type Encrypter interface {
	Encrypt(plaintext string) (string, error)
}

type Handler struct {
	Submitter Submitter
	Settings  SettingsSaver
	Codec     Encrypter
	Log       *zap.Logger
}

// NewRouter wires the public HTTP surface.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/", h.HealthCheck)
	r.Post("/send-emails-instant", h.CreateEmailTask)
	r.Post("/settings/save", h.SaveSettings)

	return r
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Backend is running!"))
}

// CreateEmailTask accepts a multipart bulk-send submission: senderEmail,
// senderPassword (pre-encrypted by caller convention), subject, body,
// recipients (repeatable, comma-splittable) and an optional
// attachmentFile part.
func (h *Handler) CreateEmailTask(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxSubmissionBytes); err != nil {
		http.Error(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}

	recipients := splitRecipients(r.Form["recipients"])
	h.Log.Info("received send-emails-instant request",
		zap.Int("recipients", len(recipients)))

	req := submit.Request{
		SenderEmail:    r.FormValue("senderEmail"),
		SenderPassword: r.FormValue("senderPassword"),
		Subject:        r.FormValue("subject"),
		HTMLBody:       r.FormValue("body"),
		Recipients:     recipients,
	}

	if file, header, err := r.FormFile("attachmentFile"); err == nil {
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			http.Error(w, "failed to read attachment: "+err.Error(), http.StatusBadRequest)
			return
		}
		req.Attachment = &submit.Attachment{
			Filename: header.Filename,
			Data:     data,
		}
	}

	taskID, err := h.Submitter.Submit(r.Context(), req)
	if err != nil {
		if errors.Is(err, submit.ErrNoRecipients) {
			h.Log.Error("request failed: recipient list is empty")
			http.Error(w, "Recipient list cannot be empty.", http.StatusBadRequest)
			return
		}
		h.Log.Error("failed to create email task", zap.Error(err))
		http.Error(w, "Error creating email task: "+err.Error(), http.StatusInternalServerError)
		return
	}

	h.Log.Info("email task created", zap.String("task_id", taskID))
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Email task created successfully. It will be processed shortly."))
}

// SaveSettings encrypts the submitted app password and upserts the
// user's sender credentials.
func (h *Handler) SaveSettings(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form: "+err.Error(), http.StatusBadRequest)
		return
	}

	userID := r.FormValue("userId")
	gmail := r.FormValue("gmail")
	appPassword := r.FormValue("appPassword")
	if userID == "" {
		http.Error(w, "userId is required", http.StatusBadRequest)
		return
	}

	encrypted, err := h.Codec.Encrypt(appPassword)
	if err != nil {
		h.Log.Error("failed to encrypt app password", zap.Error(err))
		http.Error(w, "failed to encrypt app password", http.StatusInternalServerError)
		return
	}

	err = h.Settings.SaveSettings(r.Context(), models.Settings{
		UserID:      userID,
		Gmail:       gmail,
		AppPassword: encrypted,
	})
	if err != nil {
		h.Log.Error("failed to save settings",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		http.Error(w, "failed to save settings", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "success"})
}

// splitRecipients flattens repeated form values, each of which may carry
// a comma-separated list.
func splitRecipients(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
