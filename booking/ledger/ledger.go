package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"github.com/tanpawarit/chative-party-booking/booking"
)

var ErrRecordNotFound = errors.New("ledger record not found")

// Record is one row per reservation, joined to the calendar by BookingID.
// Financial fields are computed once when the hold is created.
type Record struct {
	bun.BaseModel `bun:"table:sales,alias:s"`

	ID              int64          `bun:"id,pk,autoincrement"`
	BookingID       string         `bun:"booking_id,unique,notnull"`
	CreatedAt       time.Time      `bun:"created_at,notnull,default:current_timestamp"`
	EventDate       time.Time      `bun:"event_date,type:date"`
	EventTime       string         `bun:"event_time,nullzero"`
	CustomerName    string         `bun:"customer_name"`
	CustomerTaxID   string         `bun:"customer_tax_id"`
	Address         string         `bun:"address"`
	ItemsSnapshot   string         `bun:"items_snapshot,type:jsonb"`
	GrossRevenue    float64        `bun:"gross_revenue"`
	OperationalCost float64        `bun:"operational_cost"`
	FreightCost     float64        `bun:"freight_cost"`
	FuelCost        float64        `bun:"fuel_cost"`
	NetProfit       float64        `bun:"net_profit"`
	DistanceKm      float64        `bun:"distance_km"`
	Status          booking.Status `bun:"status,notnull"`
}

// Ledger is the local financial record of reservations. Callers treat every
// error as non-fatal for the booking itself.
type Ledger interface {
	Record(ctx context.Context, rec *Record) error
	SetStatus(ctx context.Context, bookingID string, status booking.Status) error
	// Cancel marks the row CANCELED and blanks its financial fields and time.
	Cancel(ctx context.Context, bookingID string) error
	Reschedule(ctx context.Context, bookingID string, date time.Time, clock string) error
	// Delete removes the row entirely; used for expired holds.
	Delete(ctx context.Context, bookingID string) error
	Active(ctx context.Context) ([]Record, error)
	All(ctx context.Context) ([]Record, error)
}

func canceled(rec Record) Record {
	rec.Status = booking.StatusCanceled
	rec.EventTime = ""
	rec.GrossRevenue = 0
	rec.OperationalCost = 0
	rec.FreightCost = 0
	rec.FuelCost = 0
	rec.NetProfit = 0
	return rec
}
