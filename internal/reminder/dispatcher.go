package reminder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Notification is what a dispatcher delivers.
type Notification struct {
	EventID       uuid.UUID `json:"eventId"`
	AppointmentID uuid.UUID `json:"appointmentId"`
	Channel       Channel   `json:"channel"`
	Recipient     string    `json:"recipient"`
	Message       string    `json:"message"`
	ScheduledFor  time.Time `json:"scheduledFor"`
}

// Dispatcher sends a notification and reports whether it was accepted.
// Retries, if any, are its own business.
type Dispatcher interface {
	Dispatch(ctx context.Context, n Notification) error
}

// RecipientResolver maps a patient to a channel address.
type RecipientResolver interface {
	Resolve(ctx context.Context, patientID string, ch Channel) (string, error)
}

// PatientIDResolver uses the patient id as the recipient and leaves address
// lookup to the downstream notifier.
type PatientIDResolver struct{}

func (PatientIDResolver) Resolve(_ context.Context, patientID string, _ Channel) (string, error) {
	return patientID, nil
}

func renderMessage(ev *Event) string {
	return fmt.Sprintf(
		"Reminder: your appointment with doctor %s at hospital %s is on %s at %s (in %dh).",
		ev.DoctorID, ev.HospitalID,
		ev.StartsAt.Format("2006-01-02"), ev.StartsAt.Format("15:04"),
		ev.OffsetHours,
	)
}

// LogDispatcher writes notifications to the context logger.
type LogDispatcher struct{}

func (LogDispatcher) Dispatch(ctx context.Context, n Notification) error {
	zerolog.Ctx(ctx).Info().
		Str("event_id", n.EventID.String()).
		Str("appointment_id", n.AppointmentID.String()).
		Str("channel", string(n.Channel)).
		Str("recipient", n.Recipient).
		Time("scheduled_for", n.ScheduledFor).
		Msg(n.Message)
	return nil
}

// WebhookDispatcher POSTs each notification as JSON. Any non 2xx response is
// a failure.
type WebhookDispatcher struct {
	url    string
	client *http.Client
}

func NewWebhookDispatcher(url string, timeout time.Duration) *WebhookDispatcher {
	return &WebhookDispatcher{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (d *WebhookDispatcher) Dispatch(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", n.EventID.String())

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return nil
}
