package state

import (
	"errors"
	"testing"
	"time"

	"github.com/tanpawarit/chative-party-booking/bot/catalog"
)

func TestEnterDropsScratchTheTargetDoesNotOwn(t *testing.T) {
	t.Parallel()

	s := NewSession("u1", time.Now())
	s.State = BookHour
	s.Checkout = &Checkout{CustomerName: "Ana"}
	s.Schedule = &Schedule{Day: "2026-11-14"}
	s.Combo = &Combo{Key: "1"}

	s.Enter(ConfirmOrder)
	if s.Checkout == nil || s.Schedule == nil {
		t.Fatalf("confirm_order lost its own scratch: %+v", s)
	}
	if s.Combo != nil {
		t.Fatalf("combo scratch survived into confirm_order")
	}

	s.Enter(AwaitPayment)
	if s.Checkout != nil || s.Schedule != nil {
		t.Fatalf("checkout scratch survived into await_payment: %+v", s)
	}
	if s.State != AwaitPayment {
		t.Fatalf("State = %q, want %q", s.State, AwaitPayment)
	}
}

func TestResetAndFinish(t *testing.T) {
	t.Parallel()

	s := NewSession("u1", time.Now())
	s.Cart = []catalog.CartItem{{ID: 1, Name: "Pula Pula"}}
	s.Freight = &FreightQuote{Fee: 10}
	s.Manage = &Manage{TaxID: "12345678901"}
	s.State = ManageOptions

	s.Reset()
	if s.State != MainMenu || s.Cart != nil || s.Freight != nil || s.Manage != nil {
		t.Fatalf("Reset() left %+v", s)
	}

	s.Cart = []catalog.CartItem{{ID: 1}}
	s.Finish()
	if !s.IsIdle() || s.Cart != nil {
		t.Fatalf("Finish() left %+v", s)
	}
}

func TestCloneIsDeep(t *testing.T) {
	t.Parallel()

	s := NewSession("u1", time.Now())
	s.State = BuildCombo
	s.Combo = &Combo{Key: "1", Choices: []catalog.StageChoice{{Stage: "A", Items: []string{"x"}}}}
	s.Cart = []catalog.CartItem{{ID: 7, Name: "Pebolim"}}

	c, err := s.Clone()
	if err != nil {
		t.Fatalf("Clone() error = %v", err)
	}
	c.Combo.Choices[0].Items[0] = "changed"
	c.Cart[0].Name = "changed"
	c.State = MainMenu

	if s.Combo.Choices[0].Items[0] != "x" || s.Cart[0].Name != "Pebolim" || s.State != BuildCombo {
		t.Fatalf("mutating the clone changed the original: %+v", s)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		session Session
		wantErr bool
	}{
		{name: "idle", session: Session{UserID: "u"}},
		{name: "checkout with schedule", session: Session{UserID: "u", State: BookDay, Checkout: &Checkout{}, Schedule: &Schedule{}}},
		{name: "unknown state", session: Session{UserID: "u", State: "dancing"}, wantErr: true},
		{name: "foreign scratch", session: Session{UserID: "u", State: MainMenu, Payment: &Payment{}}, wantErr: true},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.session.Validate()
			if tc.wantErr && !errors.Is(err, ErrInvalidSession) {
				t.Fatalf("Validate() error = %v, want ErrInvalidSession", err)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
		})
	}
}

func TestInCheckout(t *testing.T) {
	t.Parallel()

	for _, st := range []State{CollectPostalCode, ConfirmFreight, BookDay, ConfirmOrder} {
		if !st.InCheckout() {
			t.Fatalf("%s.InCheckout() = false", st)
		}
	}
	for _, st := range []State{MainMenu, BuildCombo, AwaitPayment, RescheduleDay} {
		if st.InCheckout() {
			t.Fatalf("%s.InCheckout() = true", st)
		}
	}
}
