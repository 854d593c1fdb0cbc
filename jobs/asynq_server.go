package jobs

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/hibiken/asynq"
)

// Worker wraps the Asynq server and optional scheduler.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	scheduler *asynq.Scheduler
	logger    *slog.Logger
}

// CronRegistration wires a cron expression to a prepared task.
type CronRegistration struct {
	Spec    string
	Task    *asynq.Task
	Options []asynq.Option
}

// WorkerConfig collects dependencies required to bootstrap the worker.
type WorkerConfig struct {
	RedisOpts asynq.RedisClientOpt
	Logger    *slog.Logger
	Handlers  *Handlers
	Cron      []CronRegistration
}

// NewWorker constructs a Worker instance.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	if cfg.Handlers == nil {
		return nil, errors.New("worker: handlers required")
	}
	srv := asynq.NewServer(cfg.RedisOpts, asynq.Config{
		Concurrency: 5,
		Queues: map[string]int{
			QueueDefault: 1,
		},
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTypeSessionReminder, cfg.Handlers.HandleSessionReminder)
	mux.HandleFunc(TaskTypeIntakeFollowUp, cfg.Handlers.HandleIntakeFollowUp)

	var scheduler *asynq.Scheduler
	if len(cfg.Cron) > 0 {
		scheduler = asynq.NewScheduler(cfg.RedisOpts, &asynq.SchedulerOpts{Location: time.UTC})
		for _, entry := range cfg.Cron {
			if entry.Spec == "" || entry.Task == nil {
				continue
			}
			if _, err := scheduler.Register(entry.Spec, entry.Task, entry.Options...); err != nil {
				return nil, err
			}
		}
	}

	return &Worker{server: srv, mux: mux, scheduler: scheduler, logger: cfg.Logger}, nil
}

// Run starts processing jobs until context cancellation.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil {
		return errors.New("worker: not configured")
	}
	if w.scheduler != nil {
		if err := w.scheduler.Start(); err != nil {
			return err
		}
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- w.server.Run(w.mux)
	}()
	select {
	case <-ctx.Done():
		if w.scheduler != nil {
			w.scheduler.Shutdown()
		}
		w.server.Shutdown()
		return ctx.Err()
	case err := <-errCh:
		if w.scheduler != nil {
			w.scheduler.Shutdown()
		}
		return err
	}
}

// Client submits jobs to the queue.
type Client struct {
	client       *asynq.Client
	reminderLead time.Duration
}

// NewClient constructs an Asynq client. reminderLead controls how long
// before a session its reminder is delivered.
func NewClient(redisOpts asynq.RedisClientOpt, reminderLead time.Duration) *Client {
	return &Client{client: asynq.NewClient(redisOpts), reminderLead: reminderLead}
}

// ScheduleSessionReminder queues a reminder to fire ahead of the
// session start. Sessions starting inside the lead window get the
// reminder immediately.
func (c *Client) ScheduleSessionReminder(ctx context.Context, sessionID int64, startsAt time.Time) error {
	task, err := NewSessionReminderTask(SessionReminderPayload{SessionID: sessionID, StartsAt: startsAt})
	if err != nil {
		return err
	}
	opts := []asynq.Option{asynq.Queue(QueueDefault), asynq.TaskID(taskID(TaskTypeSessionReminder, sessionID))}
	if at := startsAt.Add(-c.reminderLead); at.After(time.Now()) {
		opts = append(opts, asynq.ProcessAt(at))
	}
	_, err = c.client.EnqueueContext(ctx, task, opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		// Rescheduling replaces the pending reminder.
		return nil
	}
	return err
}

// EnqueueIntakeFollowUp queues a follow-up email for a new intake form.
func (c *Client) EnqueueIntakeFollowUp(ctx context.Context, formID int64, delay time.Duration) error {
	task, err := NewIntakeFollowUpTask(IntakeFollowUpPayload{FormID: formID})
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault), asynq.ProcessIn(delay))
	return err
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}

func taskID(taskType string, id int64) string {
	return taskType + ":" + strconv.FormatInt(id, 10)
}
