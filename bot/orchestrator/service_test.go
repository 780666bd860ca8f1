package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/tanpawarit/chative-party-booking/booking/reservation"
	"github.com/tanpawarit/chative-party-booking/bot/catalog"
	"github.com/tanpawarit/chative-party-booking/bot/contract"
	nodex "github.com/tanpawarit/chative-party-booking/bot/nodes"
	"github.com/tanpawarit/chative-party-booking/bot/state"
)

var testNow = time.Date(2026, time.April, 1, 12, 0, 0, 0, time.UTC)

type fakeMachine struct {
	step  func(s *state.Session) (contract.Response, error)
	calls int
}

func (f *fakeMachine) Step(_ context.Context, _ contract.InboundMessage, s *state.Session) (contract.Response, error) {
	f.calls++
	return f.step(s)
}

type fakeConfirmer struct {
	err       error
	confirmed []string
}

func (f *fakeConfirmer) ConfirmPayment(_ context.Context, bookingID string) error {
	f.confirmed = append(f.confirmed, bookingID)
	return f.err
}

type fakeOutbox struct {
	sent []contract.OutboundMessage
}

func (f *fakeOutbox) Deliver(_ context.Context, msg contract.OutboundMessage) error {
	f.sent = append(f.sent, msg)
	return nil
}

type failingStore struct {
	*state.MemoryStore
	loadErr error
	saveErr error
}

func (f *failingStore) Load(ctx context.Context, userID string) (*state.Session, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.MemoryStore.Load(ctx, userID)
}

func (f *failingStore) Save(ctx context.Context, s *state.Session) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	return f.MemoryStore.Save(ctx, s)
}

func newTestOrchestrator(t *testing.T, store state.Store, machine nodex.Stepper, confirmer Confirmer, outbox contract.Outbox) *Orchestrator {
	t.Helper()
	o, err := New(store, machine, confirmer, outbox, Config{Location: time.UTC})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	o.now = func() time.Time { return testNow }
	return o
}

func toMenu(s *state.Session) (contract.Response, error) {
	s.Reset()
	return contract.Response{Body: "menu"}, nil
}

func awaitingSession(bookingID string) *state.Session {
	s := state.NewSession("user-1", testNow)
	s.Cart = []catalog.CartItem{{ID: 24, Name: "Castelinho 3 em 1", Price: 1000}}
	s.Enter(state.AwaitPayment)
	s.Payment = &state.Payment{BookingID: bookingID, Day: "2026-04-15", Clock: "14:00", Address: "Rua A 1", Total: 1000}
	return s
}

func menuSession() *state.Session {
	s := state.NewSession("user-1", testNow)
	s.Reset()
	return s
}

func TestNewRequiresDependencies(t *testing.T) {
	t.Parallel()

	if _, err := New(nil, &fakeMachine{}, &fakeConfirmer{}, &fakeOutbox{}, Config{}); err == nil {
		t.Fatal("New() error = nil, want error")
	}
}

func TestHandleMessageInvalidInput(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(t, state.NewMemoryStore(), &fakeMachine{step: toMenu}, &fakeConfirmer{}, &fakeOutbox{})

	_, err := o.HandleMessage(context.Background(), "   ", "hello")
	if !errors.Is(err, ErrInvalidUser) {
		t.Fatalf("expected ErrInvalidUser, got %v", err)
	}

	_, err = o.HandleMessage(context.Background(), "user-1", "    ")
	if !errors.Is(err, ErrInvalidMessage) {
		t.Fatalf("expected ErrInvalidMessage, got %v", err)
	}
}

func TestHandleMessageSavesSession(t *testing.T) {
	t.Parallel()

	store := state.NewMemoryStore()
	machine := &fakeMachine{step: toMenu}
	o := newTestOrchestrator(t, store, machine, &fakeConfirmer{}, &fakeOutbox{})

	resp, err := o.HandleMessage(context.Background(), "user-1", "oi")
	if err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if resp.Body != "menu" {
		t.Fatalf("body = %q", resp.Body)
	}

	saved, err := store.Load(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if saved.State != state.MainMenu || !saved.UpdatedAt.Equal(testNow) {
		t.Fatalf("saved = %+v", saved)
	}
}

func TestHandleMessageDeletesIdleSession(t *testing.T) {
	t.Parallel()

	store := state.NewMemoryStore()
	if err := store.Save(context.Background(), awaitingSession("evt-1")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	machine := &fakeMachine{step: func(s *state.Session) (contract.Response, error) {
		s.Finish()
		return contract.Response{Body: "bye"}, nil
	}}
	o := newTestOrchestrator(t, store, machine, &fakeConfirmer{}, &fakeOutbox{})

	if _, err := o.HandleMessage(context.Background(), "user-1", "no"); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("sessions = %d, want 0", store.Len())
	}
}

func TestHandleMessageFailedTurnKeepsStoredSession(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		step func(s *state.Session) (contract.Response, error)
	}{
		{
			name: "error",
			step: func(s *state.Session) (contract.Response, error) {
				s.Cart = nil
				s.Enter(state.MainMenu)
				return contract.Response{}, errors.New("boom")
			},
		},
		{
			name: "panic",
			step: func(s *state.Session) (contract.Response, error) {
				s.Cart = nil
				panic("index out of range")
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := state.NewMemoryStore()
			if err := store.Save(context.Background(), awaitingSession("evt-1")); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
			o := newTestOrchestrator(t, store, &fakeMachine{step: tt.step}, &fakeConfirmer{}, &fakeOutbox{})

			resp, err := o.HandleMessage(context.Background(), "user-1", "yes")
			if err != nil {
				t.Fatalf("HandleMessage() error = %v", err)
			}
			if resp.Body != nodex.Apology.Body {
				t.Fatalf("body = %q, want apology", resp.Body)
			}

			stored, err := store.Load(context.Background(), "user-1")
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if stored.State != state.AwaitPayment || len(stored.Cart) != 1 || stored.Payment.BookingID != "evt-1" {
				t.Fatalf("stored session changed: %+v", stored)
			}
		})
	}
}

func TestHandleMessageStoreFailureAnswersApology(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		store *failingStore
	}{
		{name: "load", store: &failingStore{MemoryStore: state.NewMemoryStore(), loadErr: errors.New("upstash timeout")}},
		{name: "save", store: &failingStore{MemoryStore: state.NewMemoryStore(), saveErr: errors.New("redis down")}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if err := tt.store.MemoryStore.Save(context.Background(), awaitingSession("evt-1")); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
			o := newTestOrchestrator(t, tt.store, &fakeMachine{step: toMenu}, &fakeConfirmer{}, &fakeOutbox{})

			resp, err := o.HandleMessage(context.Background(), "user-1", "oi")
			if err != nil {
				t.Fatalf("HandleMessage() error = %v, want apology", err)
			}
			if resp.Body != nodex.Apology.Body {
				t.Fatalf("body = %q, want apology", resp.Body)
			}
			stored, err := tt.store.MemoryStore.Load(context.Background(), "user-1")
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if stored.State != state.AwaitPayment || stored.Payment.BookingID != "evt-1" {
				t.Fatalf("stored session changed: %+v", stored)
			}
		})
	}
}

func TestHandlePaymentApproved(t *testing.T) {
	t.Parallel()

	store := state.NewMemoryStore()
	if err := store.Save(context.Background(), awaitingSession("evt-1")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	confirmer := &fakeConfirmer{}
	outbox := &fakeOutbox{}
	o := newTestOrchestrator(t, store, &fakeMachine{step: toMenu}, confirmer, outbox)

	if err := o.HandlePaymentApproved(context.Background(), "user-1", "evt-1"); err != nil {
		t.Fatalf("HandlePaymentApproved() error = %v", err)
	}
	if len(confirmer.confirmed) != 1 || confirmer.confirmed[0] != "evt-1" {
		t.Fatalf("confirmed = %v", confirmer.confirmed)
	}
	if store.Len() != 0 {
		t.Fatal("session kept after confirmation")
	}
	if len(outbox.sent) != 1 || outbox.sent[0].UserID != "user-1" {
		t.Fatalf("sent = %+v", outbox.sent)
	}
	body := outbox.sent[0].Response.Body
	if !strings.Contains(body, "Payment confirmed") || !strings.Contains(body, "15/04/2026") || !strings.Contains(body, "Rua A 1") {
		t.Fatalf("confirmation = %q", body)
	}
}

func TestHandlePaymentApprovedIgnoresMismatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		session   *state.Session
		bookingID string
	}{
		{name: "no session", bookingID: "evt-1"},
		{name: "other booking", session: awaitingSession("evt-1"), bookingID: "evt-2"},
		{name: "not waiting", session: menuSession(), bookingID: "evt-1"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := state.NewMemoryStore()
			if tt.session != nil {
				if err := store.Save(context.Background(), tt.session); err != nil {
					t.Fatalf("Save() error = %v", err)
				}
			}
			confirmer := &fakeConfirmer{}
			outbox := &fakeOutbox{}
			o := newTestOrchestrator(t, store, &fakeMachine{step: toMenu}, confirmer, outbox)

			if err := o.HandlePaymentApproved(context.Background(), "user-1", tt.bookingID); err != nil {
				t.Fatalf("HandlePaymentApproved() error = %v", err)
			}
			if len(confirmer.confirmed) != 0 || len(outbox.sent) != 0 {
				t.Fatalf("confirmed=%v sent=%v", confirmer.confirmed, outbox.sent)
			}
			if tt.session != nil && store.Len() != 1 {
				t.Fatal("session removed on ignored approval")
			}
		})
	}
}

func TestHandlePaymentApprovedConfirmFailure(t *testing.T) {
	t.Parallel()

	store := state.NewMemoryStore()
	if err := store.Save(context.Background(), awaitingSession("evt-1")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	confirmer := &fakeConfirmer{err: errors.New("calendar down")}
	outbox := &fakeOutbox{}
	o := newTestOrchestrator(t, store, &fakeMachine{step: toMenu}, confirmer, outbox)

	if err := o.HandlePaymentApproved(context.Background(), "user-1", "evt-1"); err == nil {
		t.Fatal("HandlePaymentApproved() error = nil, want error")
	}
	if store.Len() != 1 {
		t.Fatal("session removed after failed confirmation")
	}
	if len(outbox.sent) != 1 || !strings.Contains(outbox.sent[0].Response.Body, "problem confirming") {
		t.Fatalf("sent = %+v", outbox.sent)
	}
}

func TestHandlePaymentApprovedExpiredHold(t *testing.T) {
	t.Parallel()

	store := state.NewMemoryStore()
	if err := store.Save(context.Background(), awaitingSession("evt-1")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	confirmer := &fakeConfirmer{err: fmt.Errorf("%w: evt-1", reservation.ErrNotFound)}
	outbox := &fakeOutbox{}
	o := newTestOrchestrator(t, store, &fakeMachine{step: toMenu}, confirmer, outbox)

	// The provider redelivers until it gets a 2xx.
	for i := 0; i < 3; i++ {
		if err := o.HandlePaymentApproved(context.Background(), "user-1", "evt-1"); err != nil {
			t.Fatalf("delivery %d: HandlePaymentApproved() error = %v", i+1, err)
		}
	}
	if store.Len() != 0 {
		t.Fatal("session kept after expired hold")
	}
	if len(confirmer.confirmed) != 1 {
		t.Fatalf("confirm attempts = %d, want 1", len(confirmer.confirmed))
	}
	if len(outbox.sent) != 1 || !strings.Contains(outbox.sent[0].Response.Body, "already expired") {
		t.Fatalf("sent = %+v", outbox.sent)
	}
}
