package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/tanpawarit/chative-party-booking/booking"
	"github.com/tanpawarit/chative-party-booking/booking/ledger"
	"github.com/tanpawarit/chative-party-booking/bot/contract"
)

type published struct {
	queue string
	body  []byte
}

type fakePublisher struct {
	mu   sync.Mutex
	sent []published
	err  error
}

func (f *fakePublisher) PublishJSON(_ context.Context, queue string, v any) error {
	if f.err != nil {
		return f.err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.sent = append(f.sent, published{queue: queue, body: raw})
	f.mu.Unlock()
	return nil
}

func TestQueueOutboxDeliver(t *testing.T) {
	t.Parallel()

	pub := &fakePublisher{}
	outbox, err := NewQueueOutbox(pub, "bot.outbound")
	if err != nil {
		t.Fatalf("NewQueueOutbox() error = %v", err)
	}

	msg := contract.OutboundMessage{UserID: "u1", Response: contract.Response{Body: "Payment confirmed"}}
	if err := outbox.Deliver(context.Background(), msg); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}

	if len(pub.sent) != 1 || pub.sent[0].queue != "bot.outbound" {
		t.Fatalf("sent = %+v", pub.sent)
	}
	var got contract.OutboundMessage
	if err := json.Unmarshal(pub.sent[0].body, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.UserID != "u1" || got.Response.Body != "Payment confirmed" {
		t.Fatalf("published %+v", got)
	}

	if err := outbox.Deliver(context.Background(), contract.OutboundMessage{}); !errors.Is(err, contract.ErrInvalidUser) {
		t.Fatalf("Deliver() error = %v, want ErrInvalidUser", err)
	}
}

func TestQueueReportTriggerWrapsPublishError(t *testing.T) {
	t.Parallel()

	boom := errors.New("broker down")
	trigger, err := NewQueueReportTrigger(&fakePublisher{err: boom}, "ledger.report")
	if err != nil {
		t.Fatalf("NewQueueReportTrigger() error = %v", err)
	}
	if err := trigger.TriggerReport(context.Background(), contract.ReportJob{RequestedBy: "u1"}); !errors.Is(err, boom) {
		t.Fatalf("TriggerReport() error = %v, want %v", err, boom)
	}
}

type fakeReconciler struct {
	calls int
	err   error
}

func (f *fakeReconciler) Reconcile(context.Context) (int, error) {
	f.calls++
	return 1, f.err
}

func TestReportWorkerReconcilesThenExports(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := ledger.NewMemoryLedger()
	if err := l.Record(ctx, &ledger.Record{BookingID: "b1", CustomerName: "Ana", Status: booking.StatusConfirmed}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	rec := &fakeReconciler{}
	dir := t.TempDir()
	now := time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)

	worker := NewReportWorker(rec, l, dir, func() time.Time { return now })
	body, _ := json.Marshal(contract.ReportJob{RequestedBy: "u1"})
	if err := worker.Handle(ctx, body); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if rec.calls != 1 {
		t.Fatalf("Reconcile calls = %d, want 1", rec.calls)
	}
	if _, err := os.Stat(filepath.Join(dir, "sales-20261017-093000.xlsx")); err != nil {
		t.Fatalf("report file missing: %v", err)
	}
}

func TestReportWorkerSkipsExportWhenReconcileFails(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	worker := NewReportWorker(&fakeReconciler{err: errors.New("db down")}, ledger.NewMemoryLedger(), dir, nil)

	if _, err := worker.Run(context.Background(), contract.ReportJob{}); err == nil {
		t.Fatal("Run() error = nil, want reconcile error")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("report written despite failed reconcile: %v", entries)
	}
}

type fakeSender struct {
	paths []string
	err   error
}

func (f *fakeSender) SendReport(_ context.Context, path string) error {
	f.paths = append(f.paths, path)
	return f.err
}

func TestReportWorkerMailsExportedWorkbook(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()
	now := time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)
	sender := &fakeSender{}

	worker := NewReportWorker(&fakeReconciler{}, ledger.NewMemoryLedger(), dir, func() time.Time { return now }, WithReportSender(sender))
	path, err := worker.Run(ctx, contract.ReportJob{RequestedBy: "u1"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := filepath.Join(dir, "sales-20261017-093000.xlsx")
	if path != want {
		t.Fatalf("Run() path = %q, want %q", path, want)
	}
	if len(sender.paths) != 1 || sender.paths[0] != want {
		t.Fatalf("sent %v, want [%s]", sender.paths, want)
	}
	if _, err := os.Stat(sender.paths[0]); err != nil {
		t.Fatalf("mailed file missing: %v", err)
	}

	boom := errors.New("smtp auth failed")
	sender.err = boom
	body, _ := json.Marshal(contract.ReportJob{RequestedBy: "u1"})
	if err := worker.Handle(ctx, body); !errors.Is(err, boom) {
		t.Fatalf("Handle() error = %v, want %v", err, boom)
	}
}

type fakeJobPublisher struct {
	dest string
	job  any
	err  error
}

func (f *fakeJobPublisher) PublishJSON(_ context.Context, destination string, v any) (string, error) {
	f.dest, f.job = destination, v
	if f.err != nil {
		return "", f.err
	}
	return "msg_1", nil
}

func TestPushReportTrigger(t *testing.T) {
	t.Parallel()

	if _, err := NewPushReportTrigger(&fakeJobPublisher{}, " "); err == nil {
		t.Fatal("NewPushReportTrigger() error = nil, want error")
	}

	pub := &fakeJobPublisher{}
	trigger, err := NewPushReportTrigger(pub, "https://bot.example.com/v1/jobs/report")
	if err != nil {
		t.Fatalf("NewPushReportTrigger() error = %v", err)
	}
	if err := trigger.TriggerReport(context.Background(), contract.ReportJob{RequestedBy: "u1"}); err != nil {
		t.Fatalf("TriggerReport() error = %v", err)
	}
	if pub.dest != "https://bot.example.com/v1/jobs/report" || pub.job.(contract.ReportJob).RequestedBy != "u1" {
		t.Fatalf("published %q %+v", pub.dest, pub.job)
	}

	pub.err = errors.New("quota")
	if err := trigger.TriggerReport(context.Background(), contract.ReportJob{}); err == nil {
		t.Fatal("TriggerReport() error = nil, want error")
	}
}
