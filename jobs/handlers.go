package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/tidewater-health/tidewater/internal/observability"
)

// ReminderInfo is what a reminder email needs about a session.
type ReminderInfo struct {
	ClientName  string
	ClientEmail string
	Clinician   string
	StartsAt    time.Time
	Location    string
}

// SessionLookup resolves reminder details for a session id. ok is false
// when the session no longer needs a reminder (cancelled or deleted).
type SessionLookup interface {
	ReminderInfo(ctx context.Context, sessionID int64) (ReminderInfo, bool, error)
}

// FollowUpInfo is what a follow-up email needs about an intake form.
type FollowUpInfo struct {
	FormID    int64
	Applicant string
	Email     string
	Submitted time.Time
}

// FormLookup resolves follow-up details for an intake form id. ok is
// false when the form has already been reviewed.
type FormLookup interface {
	FollowUpInfo(ctx context.Context, formID int64) (FollowUpInfo, bool, error)
}

// Handlers processes queued tasks.
type Handlers struct {
	logger   *slog.Logger
	mailer   Mailer
	sessions SessionLookup
	forms    FormLookup
	metrics  *observability.Metrics
}

// NewHandlers constructs the task handlers.
func NewHandlers(logger *slog.Logger, mailer Mailer, sessions SessionLookup, forms FormLookup, metrics *observability.Metrics) *Handlers {
	return &Handlers{logger: logger, mailer: mailer, sessions: sessions, forms: forms, metrics: metrics}
}

// HandleSessionReminder sends the reminder email for an upcoming session.
func (h *Handlers) HandleSessionReminder(ctx context.Context, t *asynq.Task) (err error) {
	start := time.Now()
	defer func() { h.metrics.ObserveJob(TaskTypeSessionReminder, time.Since(start), err) }()

	var payload SessionReminderPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	info, ok, err := h.sessions.ReminderInfo(ctx, payload.SessionID)
	if err != nil {
		return err
	}
	if !ok {
		h.logger.Info("session reminder skipped", slog.Int64("session_id", payload.SessionID))
		return nil
	}
	subject := "Appointment reminder"
	body := fmt.Sprintf(
		"Hi %s,\n\nThis is a reminder of your appointment with %s on %s",
		info.ClientName, info.Clinician, info.StartsAt.Local().Format("Monday, January 2 at 3:04 PM"))
	if info.Location != "" {
		body += " at " + info.Location
	}
	body += ".\n\nIf you need to reschedule, please contact the office.\n"
	if err := h.mailer.Send(info.ClientEmail, subject, body); err != nil {
		return err
	}
	h.logger.Info("session reminder sent", slog.Int64("session_id", payload.SessionID))
	return nil
}

// HandleIntakeFollowUp nudges an applicant whose form has not been
// reviewed yet.
func (h *Handlers) HandleIntakeFollowUp(ctx context.Context, t *asynq.Task) (err error) {
	start := time.Now()
	defer func() { h.metrics.ObserveJob(TaskTypeIntakeFollowUp, time.Since(start), err) }()

	var payload IntakeFollowUpPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	info, ok, err := h.forms.FollowUpInfo(ctx, payload.FormID)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	subject := "We received your intake form"
	body := fmt.Sprintf(
		"Hi %s,\n\nThanks for reaching out on %s. Our team is reviewing your information and will be in touch shortly to schedule a first appointment.\n",
		info.Applicant, info.Submitted.Local().Format("January 2"))
	if err := h.mailer.Send(info.Email, subject, body); err != nil {
		return err
	}
	h.logger.Info("intake follow-up sent", slog.Int64("form_id", payload.FormID))
	return nil
}
