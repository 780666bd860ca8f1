package qstash

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := NewClient(Config{
		URL:               baseURL,
		Token:             "tok",
		CurrentSigningKey: "current",
		NextSigningKey:    "next",
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return c
}

func sign(t *testing.T, key, subject string, body []byte) string {
	t.Helper()
	sum := sha256.Sum256(body)
	cl := claims{
		Body: base64.URLEncoding.EncodeToString(sum[:]),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "Upstash",
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(5 * time.Minute)),
			NotBefore: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, cl).SignedString([]byte(key))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	return token
}

func TestNewClientRejectsBadURL(t *testing.T) {
	t.Parallel()

	if _, err := NewClient(Config{URL: "not a url"}); err == nil {
		t.Fatal("NewClient() error = nil, want error")
	}
}

func TestPublishJSON(t *testing.T) {
	t.Parallel()

	var gotPath, gotAuth string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		_, _ = w.Write([]byte(`{"messageId":"msg_1"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	id, err := c.PublishJSON(context.Background(), "https://bot.example.com/v1/jobs/report", map[string]string{"requested_by": "u1"})
	if err != nil {
		t.Fatalf("PublishJSON() error = %v", err)
	}
	if id != "msg_1" {
		t.Fatalf("id = %q", id)
	}
	if gotPath != "/v2/publish/https://bot.example.com/v1/jobs/report" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotAuth != "Bearer tok" || gotBody["requested_by"] != "u1" {
		t.Fatalf("auth=%q body=%v", gotAuth, gotBody)
	}
}

func TestPublishJSONStatusError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	if _, err := c.PublishJSON(context.Background(), "https://bot.example.com/hook", struct{}{}); err == nil {
		t.Fatal("PublishJSON() error = nil, want error")
	}
}

func TestVerify(t *testing.T) {
	t.Parallel()

	const dest = "https://bot.example.com/v1/jobs/report"
	body := []byte(`{"requested_by":"u1"}`)

	tests := []struct {
		name    string
		sig     string
		body    []byte
		wantErr bool
	}{
		{name: "current key", sig: sign(t, "current", dest, body), body: body},
		{name: "next key", sig: sign(t, "next", dest, body), body: body},
		{name: "unknown key", sig: sign(t, "other", dest, body), body: body, wantErr: true},
		{name: "tampered body", sig: sign(t, "current", dest, body), body: []byte(`{}`), wantErr: true},
		{name: "wrong destination", sig: sign(t, "current", "https://evil.example.com", body), body: body, wantErr: true},
		{name: "missing", sig: "", body: body, wantErr: true},
	}
	c := newTestClient(t, "https://qstash.example.com")
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := c.Verify(tt.sig, tt.body, dest)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidSignature) {
					t.Fatalf("Verify() error = %v, want ErrInvalidSignature", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Verify() error = %v", err)
			}
		})
	}
}
