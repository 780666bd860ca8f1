package availability

import (
	"context"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/tanpawarit/chative-party-booking/booking"
	"github.com/tanpawarit/chative-party-booking/booking/calendar"
)

type recordingExpirer struct {
	mu      sync.Mutex
	gateway *calendar.MemoryGateway
	ids     []string
}

func (e *recordingExpirer) ExpireStale(ctx context.Context, id string) error {
	e.mu.Lock()
	e.ids = append(e.ids, id)
	e.mu.Unlock()
	return e.gateway.DeleteEvent(ctx, id)
}

var testNow = time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)

func newTestResolver(t *testing.T) (*Resolver, *calendar.MemoryGateway, *recordingExpirer) {
	t.Helper()

	clock := func() time.Time { return testNow }
	gw := calendar.NewMemoryGateway(clock)
	exp := &recordingExpirer{gateway: gw}
	r, err := NewResolver(gw, exp, time.UTC, WithClock(clock))
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}
	return r, gw, exp
}

func seedEvent(gw *calendar.MemoryGateway, day int, status booking.Status, created time.Time) string {
	start := time.Date(2026, time.March, day, 14, 0, 0, 0, time.UTC)
	ev := calendar.NewEvent(calendar.Details{
		CustomerName: "Test",
		TaxID:        "12345678901",
		Status:       status,
		Start:        start,
		End:          start.Add(4 * time.Hour),
	})
	ev.Created = created
	return gw.Seed(ev)
}

func daysRange(from, to int) []int {
	var out []int
	for d := from; d <= to; d++ {
		out = append(out, d)
	}
	return out
}

func TestFreeDaysInMonthEmptyMonth(t *testing.T) {
	t.Parallel()

	r, _, _ := newTestResolver(t)

	got, err := r.FreeDaysInMonth(context.Background(), 2026, time.March)
	if err != nil {
		t.Fatalf("FreeDaysInMonth() error = %v", err)
	}
	if want := daysRange(10, 31); !reflect.DeepEqual(got, want) {
		t.Fatalf("FreeDaysInMonth() = %v, want %v", got, want)
	}

	got, err = r.FreeDaysInMonth(context.Background(), 2026, time.April)
	if err != nil {
		t.Fatalf("FreeDaysInMonth() error = %v", err)
	}
	if want := daysRange(1, 30); !reflect.DeepEqual(got, want) {
		t.Fatalf("FreeDaysInMonth(April) = %v, want %v", got, want)
	}
}

func TestFreeDaysInMonthPastMonth(t *testing.T) {
	t.Parallel()

	r, _, _ := newTestResolver(t)
	got, err := r.FreeDaysInMonth(context.Background(), 2026, time.February)
	if err != nil || len(got) != 0 {
		t.Fatalf("FreeDaysInMonth(February) = %v, %v", got, err)
	}
}

func TestConfirmedDayExcluded(t *testing.T) {
	t.Parallel()

	r, gw, _ := newTestResolver(t)
	seedEvent(gw, 15, booking.StatusConfirmed, testNow.Add(-72*time.Hour))

	got, err := r.FreeDaysInMonth(context.Background(), 2026, time.March)
	if err != nil {
		t.Fatalf("FreeDaysInMonth() error = %v", err)
	}
	for _, d := range got {
		if d == 15 {
			t.Fatal("day 15 offered despite confirmed booking")
		}
	}
	if r.IsDayFullyFree(context.Background(), time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC)) {
		t.Fatal("IsDayFullyFree() = true for confirmed day")
	}
}

func TestValidPendingDayExcluded(t *testing.T) {
	t.Parallel()

	r, gw, exp := newTestResolver(t)
	seedEvent(gw, 20, booking.StatusPending, testNow.Add(-2*time.Hour))

	if r.IsDayFullyFree(context.Background(), time.Date(2026, time.March, 20, 0, 0, 0, 0, time.UTC)) {
		t.Fatal("IsDayFullyFree() = true for a fresh pending hold")
	}
	if len(exp.ids) != 0 {
		t.Fatalf("fresh hold expired: %v", exp.ids)
	}
}

func TestExpiredPendingIgnoredAndDeletedOnce(t *testing.T) {
	t.Parallel()

	r, gw, exp := newTestResolver(t)
	id := seedEvent(gw, 18, booking.StatusPending, testNow.Add(-25*time.Hour))

	free, err := r.FreeDaysInMonth(context.Background(), 2026, time.March)
	if err != nil {
		t.Fatalf("FreeDaysInMonth() error = %v", err)
	}
	if !containsDay(free, 18) {
		t.Fatalf("day 18 not offered: %v", free)
	}
	if len(exp.ids) != 0 {
		t.Fatal("FreeDaysInMonth() must not delete holds")
	}

	day := time.Date(2026, time.March, 18, 0, 0, 0, 0, time.UTC)
	if !r.IsDayFullyFree(context.Background(), day) {
		t.Fatal("IsDayFullyFree() = false with only an expired hold")
	}
	if !r.IsDayFullyFree(context.Background(), day) {
		t.Fatal("IsDayFullyFree() second call = false")
	}
	if !reflect.DeepEqual(exp.ids, []string{id}) {
		t.Fatalf("expired ids = %v, want [%s] exactly once", exp.ids, id)
	}
}

func TestConfirmedPlusExpiredPendingNotFree(t *testing.T) {
	t.Parallel()

	r, gw, exp := newTestResolver(t)
	seedEvent(gw, 22, booking.StatusConfirmed, testNow.Add(-48*time.Hour))
	stale := seedEvent(gw, 22, booking.StatusPending, testNow.Add(-30*time.Hour))

	if r.IsDayFullyFree(context.Background(), time.Date(2026, time.March, 22, 0, 0, 0, 0, time.UTC)) {
		t.Fatal("IsDayFullyFree() = true with a confirmed booking")
	}
	if !reflect.DeepEqual(exp.ids, []string{stale}) {
		t.Fatalf("expired ids = %v, want only the stale hold", exp.ids)
	}
	if gw.Len() != 1 {
		t.Fatalf("calendar has %d events, want 1", gw.Len())
	}
}

func TestGatewayFailureFailsClosed(t *testing.T) {
	t.Parallel()

	r, gw, _ := newTestResolver(t)
	gw.SetUnavailable(true)

	if r.IsDayFullyFree(context.Background(), testNow) {
		t.Fatal("IsDayFullyFree() = true while calendar is down")
	}
	if _, err := r.FreeDaysInMonth(context.Background(), 2026, time.March); err == nil {
		t.Fatal("FreeDaysInMonth() expected error while calendar is down")
	}
}

func containsDay(days []int, d int) bool {
	for _, x := range days {
		if x == d {
			return true
		}
	}
	return false
}
