package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/tanpawarit/chative-party-booking/booking"
)

// BunLedger stores records in the sales table through bun.
type BunLedger struct {
	db *bun.DB
}

func NewBunLedger(db *bun.DB) (*BunLedger, error) {
	if db == nil {
		return nil, errors.New("bun db is required")
	}
	return &BunLedger{db: db}, nil
}

func (l *BunLedger) CreateSchema(ctx context.Context) error {
	if _, err := l.db.NewCreateTable().Model((*Record)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("create sales table: %w", err)
	}
	return nil
}

func (l *BunLedger) Record(ctx context.Context, rec *Record) error {
	if rec == nil {
		return errors.New("ledger record is nil")
	}
	_, err := l.db.NewInsert().
		Model(rec).
		On("CONFLICT (booking_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("insert sale %s: %w", rec.BookingID, err)
	}
	return nil
}

func (l *BunLedger) SetStatus(ctx context.Context, bookingID string, status booking.Status) error {
	res, err := l.db.NewUpdate().
		Model((*Record)(nil)).
		Set("status = ?", status).
		Where("booking_id = ?", bookingID).
		Exec(ctx)
	return affected(res, err, "set status", bookingID)
}

func (l *BunLedger) Cancel(ctx context.Context, bookingID string) error {
	res, err := l.db.NewUpdate().
		Model((*Record)(nil)).
		Set("status = ?", booking.StatusCanceled).
		Set("event_time = NULL").
		Set("gross_revenue = 0").
		Set("operational_cost = 0").
		Set("freight_cost = 0").
		Set("fuel_cost = 0").
		Set("net_profit = 0").
		Where("booking_id = ?", bookingID).
		Exec(ctx)
	return affected(res, err, "cancel", bookingID)
}

func (l *BunLedger) Reschedule(ctx context.Context, bookingID string, date time.Time, clock string) error {
	res, err := l.db.NewUpdate().
		Model((*Record)(nil)).
		Set("event_date = ?", date.Format(booking.DateLayout)).
		Set("event_time = ?", clock).
		Where("booking_id = ?", bookingID).
		Exec(ctx)
	return affected(res, err, "reschedule", bookingID)
}

func (l *BunLedger) Delete(ctx context.Context, bookingID string) error {
	res, err := l.db.NewDelete().
		Model((*Record)(nil)).
		Where("booking_id = ?", bookingID).
		Exec(ctx)
	return affected(res, err, "delete", bookingID)
}

func (l *BunLedger) Active(ctx context.Context) ([]Record, error) {
	var records []Record
	err := l.db.NewSelect().
		Model(&records).
		Where("status IN (?)", bun.In([]booking.Status{booking.StatusPending, booking.StatusConfirmed})).
		Order("event_date ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select active sales: %w", err)
	}
	return records, nil
}

func (l *BunLedger) All(ctx context.Context) ([]Record, error) {
	var records []Record
	if err := l.db.NewSelect().Model(&records).Order("event_date ASC", "id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("select sales: %w", err)
	}
	return records, nil
}

func affected(res sql.Result, err error, op, bookingID string) error {
	if err != nil {
		return fmt.Errorf("%s sale %s: %w", op, bookingID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s sale %s: %w", op, bookingID, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, bookingID)
	}
	return nil
}
