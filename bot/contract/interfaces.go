package contract

import "context"

// Outbox delivers responses that are not replies to an inbound request, such
// as payment confirmations.
type Outbox interface {
	Deliver(ctx context.Context, msg OutboundMessage) error
}

// ReportTrigger schedules a financial report without blocking the turn.
type ReportTrigger interface {
	TriggerReport(ctx context.Context, job ReportJob) error
}
