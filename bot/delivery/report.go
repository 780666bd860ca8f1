package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tanpawarit/chative-party-booking/booking/ledger"
	"github.com/tanpawarit/chative-party-booking/bot/contract"
)

type Reconciler interface {
	Reconcile(ctx context.Context) (int, error)
}

// ReportSender delivers an exported workbook to the owners.
type ReportSender interface {
	SendReport(ctx context.Context, path string) error
}

// ReportWorker reconciles the ledger against the calendar, exports a
// workbook and hands it to the sender. Export only runs after a reconcile
// pass.
type ReportWorker struct {
	reconciler Reconciler
	ledger     ledger.Ledger
	dir        string
	now        func() time.Time
	sender     ReportSender
}

type WorkerOption func(*ReportWorker)

// WithReportSender mails every exported workbook. Without it the file is
// only written to disk.
func WithReportSender(s ReportSender) WorkerOption {
	return func(w *ReportWorker) { w.sender = s }
}

func NewReportWorker(r Reconciler, l ledger.Ledger, dir string, now func() time.Time, opts ...WorkerOption) *ReportWorker {
	if now == nil {
		now = time.Now
	}
	w := &ReportWorker{reconciler: r, ledger: l, dir: dir, now: now}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run performs one reconcile-and-export pass and returns the written path.
func (w *ReportWorker) Run(ctx context.Context, job contract.ReportJob) (string, error) {
	fixed, err := w.reconciler.Reconcile(ctx)
	if err != nil {
		return "", fmt.Errorf("reconcile ledger: %w", err)
	}
	path, err := ledger.ExportFile(ctx, w.ledger, w.dir, w.now())
	if err != nil {
		return "", err
	}
	if w.sender != nil {
		if err := w.sender.SendReport(ctx, path); err != nil {
			return path, fmt.Errorf("send report: %w", err)
		}
	}
	log.Info().
		Str("requested_by", job.RequestedBy).
		Int("reconciled", fixed).
		Str("path", path).
		Bool("mailed", w.sender != nil).
		Msg("Financial report exported")
	return path, nil
}

// Handle adapts Run to a queue consumer.
func (w *ReportWorker) Handle(ctx context.Context, body []byte) error {
	var job contract.ReportJob
	if err := json.Unmarshal(body, &job); err != nil {
		return fmt.Errorf("decode report job: %w", err)
	}
	_, err := w.Run(ctx, job)
	return err
}

// InlineReportTrigger runs the worker on a background goroutine. Used when
// no broker is configured.
type InlineReportTrigger struct {
	Worker *ReportWorker
}

func (t InlineReportTrigger) TriggerReport(_ context.Context, job contract.ReportJob) error {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if _, err := t.Worker.Run(ctx, job); err != nil {
			log.Error().Err(err).Msg("Inline report failed")
		}
	}()
	return nil
}
