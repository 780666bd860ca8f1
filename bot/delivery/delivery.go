package delivery

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/tanpawarit/chative-party-booking/bot/contract"
)

// Publisher is the slice of the queue client delivery needs.
type Publisher interface {
	PublishJSON(ctx context.Context, queue string, v any) error
}

// QueueOutbox publishes out-of-band responses for channel adapters to pick up.
type QueueOutbox struct {
	pub   Publisher
	queue string
}

func NewQueueOutbox(pub Publisher, queue string) (*QueueOutbox, error) {
	if pub == nil {
		return nil, errors.New("publisher is required")
	}
	if strings.TrimSpace(queue) == "" {
		return nil, errors.New("outbound queue is required")
	}
	return &QueueOutbox{pub: pub, queue: queue}, nil
}

func (o *QueueOutbox) Deliver(ctx context.Context, msg contract.OutboundMessage) error {
	if strings.TrimSpace(msg.UserID) == "" {
		return contract.ErrInvalidUser
	}
	if err := o.pub.PublishJSON(ctx, o.queue, msg); err != nil {
		return fmt.Errorf("deliver to %s: %w", msg.UserID, err)
	}
	return nil
}

// QueueReportTrigger enqueues report jobs for the report worker.
type QueueReportTrigger struct {
	pub   Publisher
	queue string
}

func NewQueueReportTrigger(pub Publisher, queue string) (*QueueReportTrigger, error) {
	if pub == nil {
		return nil, errors.New("publisher is required")
	}
	if strings.TrimSpace(queue) == "" {
		return nil, errors.New("report queue is required")
	}
	return &QueueReportTrigger{pub: pub, queue: queue}, nil
}

func (r *QueueReportTrigger) TriggerReport(ctx context.Context, job contract.ReportJob) error {
	if err := r.pub.PublishJSON(ctx, r.queue, job); err != nil {
		return fmt.Errorf("enqueue report: %w", err)
	}
	return nil
}

// LogOutbox writes deliveries to the log. Used when no broker is configured.
type LogOutbox struct{}

func (LogOutbox) Deliver(_ context.Context, msg contract.OutboundMessage) error {
	log.Info().
		Str("user_id", msg.UserID).
		Str("body", msg.Response.Body).
		Msg("Outbound message (no broker configured)")
	return nil
}

// JobPublisher is a push queue that calls back an HTTP destination.
type JobPublisher interface {
	PublishJSON(ctx context.Context, destination string, v any) (string, error)
}

// PushReportTrigger hands report jobs to a push queue that posts them back to
// the job endpoint.
type PushReportTrigger struct {
	pub         JobPublisher
	destination string
}

func NewPushReportTrigger(pub JobPublisher, destination string) (*PushReportTrigger, error) {
	if pub == nil {
		return nil, errors.New("job publisher is required")
	}
	if strings.TrimSpace(destination) == "" {
		return nil, errors.New("report callback url is required")
	}
	return &PushReportTrigger{pub: pub, destination: destination}, nil
}

func (r *PushReportTrigger) TriggerReport(ctx context.Context, job contract.ReportJob) error {
	id, err := r.pub.PublishJSON(ctx, r.destination, job)
	if err != nil {
		return fmt.Errorf("enqueue report: %w", err)
	}
	log.Debug().Str("message_id", id).Msg("Report job queued")
	return nil
}
