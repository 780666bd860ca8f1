package state

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tanpawarit/chative-party-booking/bot/catalog"
)

// State is the node of the dialogue a session currently sits on. The zero
// value is idle.
type State string

const (
	Idle State = ""

	MainMenu State = "main_menu"

	BrowseCategories State = "browse_categories"
	BrowseItems      State = "browse_items"

	ChooseCombo State = "choose_combo"
	BuildCombo  State = "build_combo"

	CollectPostalCode State = "collect_postal_code"
	CollectAddress    State = "collect_address"
	CollectComplement State = "collect_complement"
	ConfirmFreight    State = "confirm_freight"
	CollectName       State = "collect_name"
	CollectTaxID      State = "collect_tax_id"
	ConfirmTaxID      State = "confirm_tax_id"
	BookMonth         State = "book_month"
	BookDay           State = "book_day"
	BookHour          State = "book_hour"
	ConfirmOrder      State = "confirm_order"

	AwaitPayment State = "await_payment"

	ManageTaxID       State = "manage_tax_id"
	ManageSelect      State = "manage_select"
	ManageOptions     State = "manage_options"
	ConfirmCancel     State = "confirm_cancel"
	RescheduleMonth   State = "reschedule_month"
	RescheduleDay     State = "reschedule_day"
	RescheduleHour    State = "reschedule_hour"
	ConfirmReschedule State = "confirm_reschedule"
)

type scratch uint8

const (
	scratchBrowse scratch = 1 << iota
	scratchCombo
	scratchCheckout
	scratchSchedule
	scratchManage
	scratchPayment
)

// owners lists the scratch structs each state may carry. Anything else is
// dropped by Enter.
var owners = map[State]scratch{
	BrowseCategories: scratchBrowse,
	BrowseItems:      scratchBrowse,

	BuildCombo: scratchCombo,

	CollectPostalCode: scratchCheckout,
	CollectAddress:    scratchCheckout,
	CollectComplement: scratchCheckout,
	ConfirmFreight:    scratchCheckout,
	CollectName:       scratchCheckout,
	CollectTaxID:      scratchCheckout,
	ConfirmTaxID:      scratchCheckout,
	BookMonth:         scratchCheckout | scratchSchedule,
	BookDay:           scratchCheckout | scratchSchedule,
	BookHour:          scratchCheckout | scratchSchedule,
	ConfirmOrder:      scratchCheckout | scratchSchedule,

	AwaitPayment: scratchPayment,

	ManageTaxID:       scratchManage,
	ManageSelect:      scratchManage,
	ManageOptions:     scratchManage,
	ConfirmCancel:     scratchManage,
	RescheduleMonth:   scratchManage | scratchSchedule,
	RescheduleDay:     scratchManage | scratchSchedule,
	RescheduleHour:    scratchManage | scratchSchedule,
	ConfirmReschedule: scratchManage | scratchSchedule,
}

// Known reports whether s is a state the dialogue can be in.
func (s State) Known() bool {
	if s == Idle || s == MainMenu || s == ChooseCombo {
		return true
	}
	_, ok := owners[s]
	return ok
}

// InCheckout reports whether a freight quote may still be pending for s.
func (s State) InCheckout() bool {
	return owners[s]&scratchCheckout != 0
}

type FreightQuote struct {
	Fee          float64 `json:"fee"`
	DistanceKm   float64 `json:"distance_km"`
	DistanceText string  `json:"distance_text,omitempty"`
}

// Browse tracks which category list the user is looking at. An empty
// Category means the full catalog.
type Browse struct {
	Category string `json:"category,omitempty"`
}

type Combo struct {
	Key     string                `json:"key"`
	Stage   int                   `json:"stage"`
	Choices []catalog.StageChoice `json:"choices,omitempty"`
}

type Checkout struct {
	PostalCode   string `json:"postal_code,omitempty"`
	Address      string `json:"address,omitempty"`
	Complement   string `json:"complement,omitempty"`
	CustomerName string `json:"customer_name,omitempty"`
	PendingTaxID string `json:"pending_tax_id,omitempty"`
	TaxID        string `json:"tax_id,omitempty"`
}

// FullAddress is the delivery address with the complement appended.
func (c *Checkout) FullAddress() string {
	if c == nil {
		return ""
	}
	if c.Complement == "" {
		return c.Address
	}
	return c.Address + " - " + c.Complement
}

type YearMonth struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
}

type Schedule struct {
	Months []YearMonth `json:"months,omitempty"`
	Year   int         `json:"year,omitempty"`
	Month  time.Month  `json:"month,omitempty"`
	Days   []int       `json:"days,omitempty"`
	Day    string      `json:"day,omitempty"`
	Clock  string      `json:"clock,omitempty"`
}

type BookingRef struct {
	ID    string    `json:"id"`
	Title string    `json:"title"`
	Start time.Time `json:"start"`
}

type Manage struct {
	TaxID    string       `json:"tax_id,omitempty"`
	Bookings []BookingRef `json:"bookings,omitempty"`
	Selected *BookingRef  `json:"selected,omitempty"`
}

type Payment struct {
	BookingID string  `json:"booking_id"`
	Day       string  `json:"day"`
	Clock     string  `json:"clock"`
	Address   string  `json:"address,omitempty"`
	Total     float64 `json:"total"`
}

// Session is the persisted per-user dialogue state.
type Session struct {
	UserID  string             `json:"user_id"`
	State   State              `json:"state,omitempty"`
	Cart    []catalog.CartItem `json:"cart,omitempty"`
	Freight *FreightQuote      `json:"freight,omitempty"`

	Browse   *Browse   `json:"browse,omitempty"`
	Combo    *Combo    `json:"combo,omitempty"`
	Checkout *Checkout `json:"checkout,omitempty"`
	Schedule *Schedule `json:"schedule,omitempty"`
	Manage   *Manage   `json:"manage,omitempty"`
	Payment  *Payment  `json:"payment,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

func NewSession(userID string, now time.Time) *Session {
	return &Session{UserID: userID, UpdatedAt: now.UTC()}
}

// Enter moves the session to next and drops every scratch struct next does
// not own.
func (s *Session) Enter(next State) {
	keep := owners[next]
	if keep&scratchBrowse == 0 {
		s.Browse = nil
	}
	if keep&scratchCombo == 0 {
		s.Combo = nil
	}
	if keep&scratchCheckout == 0 {
		s.Checkout = nil
	}
	if keep&scratchSchedule == 0 {
		s.Schedule = nil
	}
	if keep&scratchManage == 0 {
		s.Manage = nil
	}
	if keep&scratchPayment == 0 {
		s.Payment = nil
	}
	s.State = next
}

// Reset discards the cart, the freight quote and all scratch and lands on
// the main menu.
func (s *Session) Reset() {
	s.Cart = nil
	s.Freight = nil
	s.Enter(MainMenu)
}

// Finish returns the session to idle. Idle sessions are deleted from the store.
func (s *Session) Finish() {
	s.Cart = nil
	s.Freight = nil
	s.Enter(Idle)
}

func (s *Session) IsIdle() bool {
	return s == nil || s.State == Idle
}

func (s *Session) Touch(now time.Time) {
	s.UpdatedAt = now.UTC()
}

// Clone returns a deep copy so a failed turn leaves the original untouched.
func (s *Session) Clone() (*Session, error) {
	if s == nil {
		return nil, ErrNilSession
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal session: %w", err)
	}
	var out Session
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &out, nil
}

// Validate rejects sessions that carry scratch their state does not own.
func (s *Session) Validate() error {
	if s == nil {
		return ErrNilSession
	}
	if !s.State.Known() {
		return fmt.Errorf("%w: unknown state %q", ErrInvalidSession, s.State)
	}
	keep := owners[s.State]
	check := []struct {
		bit     scratch
		present bool
		name    string
	}{
		{scratchBrowse, s.Browse != nil, "browse"},
		{scratchCombo, s.Combo != nil, "combo"},
		{scratchCheckout, s.Checkout != nil, "checkout"},
		{scratchSchedule, s.Schedule != nil, "schedule"},
		{scratchManage, s.Manage != nil, "manage"},
		{scratchPayment, s.Payment != nil, "payment"},
	}
	for _, c := range check {
		if c.present && keep&c.bit == 0 {
			return fmt.Errorf("%w: %s scratch in state %s", ErrInvalidSession, c.name, s.State)
		}
	}
	return nil
}
