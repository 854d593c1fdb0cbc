// Package jobs defines the background task types processed by the
// worker: session reminder emails and intake follow-ups.
package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSessionReminder reminds a client about an upcoming session.
	TaskTypeSessionReminder = "session:reminder"
	// TaskTypeIntakeFollowUp nudges staff about unreviewed intake forms.
	TaskTypeIntakeFollowUp = "intake:follow_up"
)

// SessionReminderPayload identifies the session to remind about.
type SessionReminderPayload struct {
	SessionID int64     `json:"sessionId"`
	StartsAt  time.Time `json:"startsAt"`
}

// NewSessionReminderTask constructs an Asynq task for a session reminder.
func NewSessionReminderTask(payload SessionReminderPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSessionReminder, data), nil
}

// IntakeFollowUpPayload identifies the intake form to follow up on.
type IntakeFollowUpPayload struct {
	FormID int64 `json:"formId"`
}

// NewIntakeFollowUpTask constructs an Asynq task for an intake follow-up.
func NewIntakeFollowUpTask(payload IntakeFollowUpPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeIntakeFollowUp, data), nil
}
