package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tanpawarit/chative-party-booking/booking"
)

// MemoryLedger keeps records in process for local runs without a database.
type MemoryLedger struct {
	mu      sync.Mutex
	nextID  int64
	records map[string]Record
	failing error
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{records: make(map[string]Record)}
}

// FailWith makes every call return err until called again with nil.
func (l *MemoryLedger) FailWith(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failing = err
}

func (l *MemoryLedger) Get(bookingID string) (Record, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[bookingID]
	return rec, ok
}

func (l *MemoryLedger) Record(_ context.Context, rec *Record) error {
	if rec == nil {
		return errors.New("ledger record is nil")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failing != nil {
		return l.failing
	}
	if _, exists := l.records[rec.BookingID]; exists {
		return nil
	}
	l.nextID++
	rec.ID = l.nextID
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	l.records[rec.BookingID] = *rec
	return nil
}

func (l *MemoryLedger) SetStatus(_ context.Context, bookingID string, status booking.Status) error {
	return l.update(bookingID, func(rec Record) Record {
		rec.Status = status
		return rec
	})
}

func (l *MemoryLedger) Cancel(_ context.Context, bookingID string) error {
	return l.update(bookingID, canceled)
}

func (l *MemoryLedger) Reschedule(_ context.Context, bookingID string, date time.Time, clock string) error {
	return l.update(bookingID, func(rec Record) Record {
		rec.EventDate = date
		rec.EventTime = clock
		return rec
	})
}

func (l *MemoryLedger) Delete(_ context.Context, bookingID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failing != nil {
		return l.failing
	}
	if _, ok := l.records[bookingID]; !ok {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, bookingID)
	}
	delete(l.records, bookingID)
	return nil
}

func (l *MemoryLedger) Active(ctx context.Context) ([]Record, error) {
	all, err := l.All(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, rec := range all {
		if rec.Status.Active() {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (l *MemoryLedger) All(_ context.Context) ([]Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failing != nil {
		return nil, l.failing
	}
	out := make([]Record, 0, len(l.records))
	for _, rec := range l.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (l *MemoryLedger) update(bookingID string, fn func(Record) Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failing != nil {
		return l.failing
	}
	rec, ok := l.records[bookingID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, bookingID)
	}
	l.records[bookingID] = fn(rec)
	return nil
}
