package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const brevoEndpoint = "https://api.brevo.com/v3/smtp/email"

// Mailer delivers one transactional email.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// BrevoMailer sends through Brevo's transactional email API.
type BrevoMailer struct {
	APIKey      string
	FromAddress string
	FromName    string
	Endpoint    string
	Client      *http.Client
}

func NewBrevoMailer(apiKey, fromAddress, fromName string) *BrevoMailer {
	return &BrevoMailer{
		APIKey:      apiKey,
		FromAddress: fromAddress,
		FromName:    fromName,
		Endpoint:    brevoEndpoint,
		Client:      &http.Client{Timeout: 15 * time.Second},
	}
}

type brevoAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type brevoMessage struct {
	Sender      brevoAddress   `json:"sender"`
	To          []brevoAddress `json:"to"`
	Subject     string         `json:"subject"`
	HTMLContent string         `json:"htmlContent"`
}

func (m *BrevoMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	payload, err := json.Marshal(brevoMessage{
		Sender:      brevoAddress{Email: m.FromAddress, Name: m.FromName},
		To:          []brevoAddress{{Email: to}},
		Subject:     subject,
		HTMLContent: htmlBody,
	})
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("api-key", m.APIKey)

	resp, err := m.Client.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("send email: brevo returned %d: %s", resp.StatusCode, body)
	}
	return nil
}

// LogMailer only logs messages; used when no email provider is configured.
type LogMailer struct {
	Log logrus.FieldLogger
}

func (m LogMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	m.Log.WithFields(logrus.Fields{"to": to, "subject": subject}).Info("email not sent: no provider configured")
	return nil
}

// Mail is a queued message.
type Mail struct {
	To      string
	Subject string
	HTML    string
}

// MailQueue sends mail from background workers so callers never wait on the
// provider. Enqueue never blocks and send failures are only logged.
type MailQueue struct {
	mailer  Mailer
	log     logrus.FieldLogger
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	jobs   chan Mail
	wg     sync.WaitGroup
}

func NewMailQueue(mailer Mailer, log logrus.FieldLogger, workers, size int) *MailQueue {
	if workers < 1 {
		workers = 1
	}
	q := &MailQueue{
		mailer:  mailer,
		log:     log,
		timeout: 30 * time.Second,
		jobs:    make(chan Mail, size),
	}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	return q
}

// Enqueue schedules m and reports whether it was accepted.
func (q *MailQueue) Enqueue(m Mail) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.log.WithField("to", m.To).Warn("mail queue closed, dropping email")
		return false
	}
	select {
	case q.jobs <- m:
		return true
	default:
		q.log.WithField("to", m.To).Warn("mail queue full, dropping email")
		return false
	}
}

// Close stops accepting mail and waits for queued mail until ctx is done.
func (q *MailQueue) Close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("mail queue shutdown: %w", ctx.Err())
	}
}

func (q *MailQueue) worker() {
	defer q.wg.Done()
	for m := range q.jobs {
		q.send(m)
	}
}

func (q *MailQueue) send(m Mail) {
	defer func() {
		if r := recover(); r != nil {
			q.log.WithField("to", m.To).Errorf("panic sending email: %v\n%s", r, debug.Stack())
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()

	if err := q.mailer.Send(ctx, m.To, m.Subject, m.HTML); err != nil {
		q.log.WithError(err).WithField("to", m.To).Warn("failed to send email")
	}
}
