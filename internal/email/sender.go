package email

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gopkg.in/gomail.v2"

	"DripSend/internal/metrics"
)

// Sender delivers bulk email over an authenticated SMTP submission
// session. Host/Port point at a TLS-upgraded submission endpoint
// (smtp.gmail.com:587 in the default configuration); credentials come in
// per call because each task carries its own sender account.
type Sender struct {
	Host    string
	Port    int
	Limiter *rate.Limiter
	Log     *zap.Logger

	// dial is swapped out in tests.
	dial func(host string, port int, username, password string) (gomail.SendCloser, error)
}

func NewSender(host string, port int, limiter *rate.Limiter, logger *zap.Logger) *Sender {
	return &Sender{
		Host:    host,
		Port:    port,
		Limiter: limiter,
		Log:     logger,
		dial: func(host string, port int, username, password string) (gomail.SendCloser, error) {
			return gomail.NewDialer(host, port, username, password).Dial()
		},
	}
}

// SendBulk opens one authenticated session and sends one message per
// recipient, in input order. Blank addresses and addresses without an
// "@" are skipped; they neither count nor fail the batch. A failed send
// is logged and the batch continues. The returned count is the number of
// submissions that did not error locally, a lower bound on delivery.
// Failed recipients are not retried.
func (s *Sender) SendBulk(
	ctx context.Context,
	senderEmail, senderPassword, subject, htmlBody string,
	recipients []string,
	attachmentPath string,
) (int, error) {

	sc, err := s.dial(s.Host, s.Port, senderEmail, senderPassword)
	if err != nil {
		return 0, fmt.Errorf("dial smtp %s:%d: %w", s.Host, s.Port, err)
	}
	defer sc.Close()

	attach := attachmentPath != "" && fileExists(attachmentPath)

	s.Log.Info("starting bulk send",
		zap.Int("recipients", len(recipients)),
		zap.String("sender", senderEmail),
		zap.Bool("attachment", attach),
	)

	sent := 0
	for _, recipient := range recipients {
		recipient = strings.TrimSpace(recipient)
		if recipient == "" || !strings.Contains(recipient, "@") {
			s.Log.Warn("skipping invalid recipient", zap.String("to", recipient))
			continue
		}

		if err := s.Limiter.Wait(ctx); err != nil {
			return sent, fmt.Errorf("rate limiter: %w", err)
		}

		m := gomail.NewMessage()
		m.SetHeader("From", senderEmail)
		m.SetHeader("To", recipient)
		m.SetHeader("Subject", subject)
		m.SetBody("text/html", htmlBody)
		if attach {
			m.Attach(attachmentPath)
		}

		if err := gomail.Send(sc, m); err != nil {
			s.Log.Error("email send failed",
				zap.String("to", recipient),
				zap.Error(err),
			)
			metrics.EmailFailures.Inc()
			continue
		}

		s.Log.Info("email sent", zap.String("to", recipient))
		metrics.EmailsSent.Inc()
		sent++
	}

	s.Log.Info("bulk send finished",
		zap.Int("sent", sent),
		zap.Int("recipients", len(recipients)),
	)

	return sent, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
