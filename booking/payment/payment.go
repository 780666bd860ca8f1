package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

var (
	ErrUnavailable      = errors.New("payment provider unavailable")
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrIgnoredEvent     = errors.New("webhook event ignored")
)

type Config struct {
	SecretKey     string  `split_words:"true" required:"true"`
	WebhookSecret string  `split_words:"true" required:"true"`
	SuccessURL    string  `envconfig:"SUCCESS_URL" default:"https://example.com/paid"`
	CancelURL     string  `envconfig:"CANCEL_URL" default:"https://example.com/canceled"`
	Currency      string  `default:"brl"`
	DepositRatio  float64 `split_words:"true" default:"0.5"`
	BackendURL    string  `envconfig:"BACKEND_URL"`
}

type DepositRequest struct {
	Title     string
	Total     float64
	UserID    string
	BookingID string
}

// Approval is a paid checkout bound to the user and booking it was created for.
type Approval struct {
	UserID    string
	BookingID string
	SessionID string
}

type Gateway interface {
	CreateDepositLink(ctx context.Context, req DepositRequest) (string, error)
}

// StripeGateway issues Checkout Session links for the booking deposit.
type StripeGateway struct {
	api *client.API
	cfg Config
}

type Option func(*stripe.BackendConfig)

func WithHTTPClient(c *http.Client) Option {
	return func(bc *stripe.BackendConfig) { bc.HTTPClient = c }
}

func NewStripeGateway(cfg Config, opts ...Option) (*StripeGateway, error) {
	if strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, errors.New("stripe secret key is required")
	}
	if cfg.DepositRatio <= 0 || cfg.DepositRatio > 1 {
		cfg.DepositRatio = 0.5
	}
	if cfg.Currency == "" {
		cfg.Currency = "brl"
	}

	bc := &stripe.BackendConfig{
		MaxNetworkRetries: stripe.Int64(1),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelError},
	}
	if cfg.BackendURL != "" {
		bc.URL = stripe.String(cfg.BackendURL)
	}
	for _, opt := range opts {
		opt(bc)
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, bc)

	api := client.New(cfg.SecretKey, &stripe.Backends{API: backend, Connect: backend, Uploads: backend})
	return &StripeGateway{api: api, cfg: cfg}, nil
}

// DepositCents is the amount charged up front, in minor units.
func DepositCents(total, ratio float64) int64 {
	return int64(math.Round(total * ratio * 100))
}

func (g *StripeGateway) CreateDepositLink(ctx context.Context, req DepositRequest) (string, error) {
	if req.Total <= 0 {
		return "", fmt.Errorf("deposit total must be positive, got %.2f", req.Total)
	}
	if req.UserID == "" || req.BookingID == "" {
		return "", errors.New("deposit requires user and booking ids")
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(g.cfg.SuccessURL),
		CancelURL:         stripe.String(g.cfg.CancelURL),
		ClientReferenceID: stripe.String(req.BookingID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(g.cfg.Currency),
				UnitAmount: stripe.Int64(DepositCents(req.Total, g.cfg.DepositRatio)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(req.Title),
				},
			},
		}},
	}
	params.Context = ctx
	params.AddMetadata("user_id", req.UserID)
	params.AddMetadata("booking_id", req.BookingID)

	sess, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if sess.URL == "" {
		return "", fmt.Errorf("%w: checkout session %s has no url", ErrUnavailable, sess.ID)
	}

	log.Info().
		Str("booking_id", req.BookingID).
		Str("checkout_session", sess.ID).
		Msg("Deposit link created")
	return sess.URL, nil
}

// ParseWebhook verifies a Stripe webhook and extracts a paid checkout.
// Events other than a paid checkout.session.completed yield ErrIgnoredEvent.
func ParseWebhook(payload []byte, signature, secret string) (Approval, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return Approval{}, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	if event.Type != stripe.EventTypeCheckoutSessionCompleted {
		return Approval{}, fmt.Errorf("%w: %s", ErrIgnoredEvent, event.Type)
	}

	var cs stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
		return Approval{}, fmt.Errorf("decode checkout session: %w", err)
	}
	if cs.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return Approval{}, fmt.Errorf("%w: payment status %s", ErrIgnoredEvent, cs.PaymentStatus)
	}

	approval := Approval{
		UserID:    cs.Metadata["user_id"],
		BookingID: cs.Metadata["booking_id"],
		SessionID: cs.ID,
	}
	if approval.UserID == "" || approval.BookingID == "" {
		return Approval{}, fmt.Errorf("%w: checkout %s missing metadata", ErrIgnoredEvent, cs.ID)
	}
	return approval, nil
}
