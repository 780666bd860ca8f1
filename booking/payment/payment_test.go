package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

const testWebhookSecret = "whsec_test"

func sign(payload []byte, secret string, at time.Time) string {
	ts := at.Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func checkoutEvent(eventType, paymentStatus string, metadata string) []byte {
	return []byte(fmt.Sprintf(`{
  "id": "evt_1",
  "object": "event",
  "api_version": "2023-10-16",
  "type": %q,
  "data": {"object": {"id": "cs_1", "object": "checkout.session", "payment_status": %q, "metadata": %s}}
}`, eventType, paymentStatus, metadata))
}

func TestParseWebhookPaidCheckout(t *testing.T) {
	t.Parallel()

	payload := checkoutEvent("checkout.session.completed", "paid", `{"user_id":"u1","booking_id":"b1"}`)

	got, err := ParseWebhook(payload, sign(payload, testWebhookSecret, time.Now()), testWebhookSecret)
	if err != nil {
		t.Fatalf("ParseWebhook() error = %v", err)
	}
	want := Approval{UserID: "u1", BookingID: "b1", SessionID: "cs_1"}
	if got != want {
		t.Fatalf("ParseWebhook() = %+v, want %+v", got, want)
	}
}

func TestParseWebhookRejectsBadSignature(t *testing.T) {
	t.Parallel()

	payload := checkoutEvent("checkout.session.completed", "paid", `{"user_id":"u1","booking_id":"b1"}`)

	_, err := ParseWebhook(payload, sign(payload, "whsec_other", time.Now()), testWebhookSecret)
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("ParseWebhook() error = %v, want ErrInvalidSignature", err)
	}
}

func TestParseWebhookIgnoresOtherEvents(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload []byte
	}{
		{name: "other type", payload: checkoutEvent("checkout.session.expired", "unpaid", `{"user_id":"u1","booking_id":"b1"}`)},
		{name: "unpaid", payload: checkoutEvent("checkout.session.completed", "unpaid", `{"user_id":"u1","booking_id":"b1"}`)},
		{name: "missing metadata", payload: checkoutEvent("checkout.session.completed", "paid", `{}`)},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseWebhook(tc.payload, sign(tc.payload, testWebhookSecret, time.Now()), testWebhookSecret)
			if !errors.Is(err, ErrIgnoredEvent) {
				t.Fatalf("ParseWebhook() error = %v, want ErrIgnoredEvent", err)
			}
		})
	}
}

func TestDepositCents(t *testing.T) {
	t.Parallel()

	if got := DepositCents(1475.5, 0.5); got != 73775 {
		t.Fatalf("DepositCents() = %d, want 73775", got)
	}
}

func TestCreateDepositLink(t *testing.T) {
	t.Parallel()

	var form url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1/checkout/sessions") {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm() error = %v", err)
		}
		form = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"cs_test","object":"checkout.session","url":"https://checkout.stripe.test/cs_test"}`)
	}))
	t.Cleanup(server.Close)

	gw, err := NewStripeGateway(Config{
		SecretKey:  "sk_test_123",
		SuccessURL: "https://example.com/ok",
		CancelURL:  "https://example.com/no",
		BackendURL: server.URL,
	}, WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("NewStripeGateway() error = %v", err)
	}

	link, err := gw.CreateDepositLink(context.Background(), DepositRequest{
		Title: "Party on 2026-11-14", Total: 1000, UserID: "u1", BookingID: "b1",
	})
	if err != nil {
		t.Fatalf("CreateDepositLink() error = %v", err)
	}
	if link != "https://checkout.stripe.test/cs_test" {
		t.Fatalf("link = %q", link)
	}
	if got := form.Get("line_items[0][price_data][unit_amount]"); got != "50000" {
		t.Fatalf("unit_amount = %q, want 50000", got)
	}
	if got := form.Get("line_items[0][price_data][currency]"); got != "brl" {
		t.Fatalf("currency = %q, want brl", got)
	}
	if form.Get("metadata[user_id]") != "u1" || form.Get("metadata[booking_id]") != "b1" {
		t.Fatalf("metadata = %v", form)
	}
}

func TestCreateDepositLinkProviderFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"type":"invalid_request_error","message":"bad"}}`)
	}))
	t.Cleanup(server.Close)

	gw, err := NewStripeGateway(Config{SecretKey: "sk_test_123", BackendURL: server.URL}, WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("NewStripeGateway() error = %v", err)
	}

	_, err = gw.CreateDepositLink(context.Background(), DepositRequest{Title: "x", Total: 10, UserID: "u", BookingID: "b"})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("CreateDepositLink() error = %v, want ErrUnavailable", err)
	}
}
