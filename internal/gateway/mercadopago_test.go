package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const paymentJSON = `{
	"id": 123456,
	"status": "approved",
	"transaction_amount": 100.5,
	"date_created": "2025-03-10T09:00:00.000-03:00",
	"date_approved": "2025-03-10T09:01:30.000-03:00",
	"payer": {"first_name": " Joao ", "last_name": "Da Silva", "email": "joao@example.com"},
	"unknown_field": {"nested": true}
}`

func TestFetchPayment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/payments/123456" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("unexpected auth header %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(paymentJSON))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "secret", time.Second)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	p, err := c.FetchPayment(context.Background(), "123456")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if p.Status != StatusApproved {
		t.Fatalf("status = %q", p.Status)
	}
	if p.TransactionAmount.StringFixed(2) != "100.50" {
		t.Fatalf("amount = %s", p.TransactionAmount)
	}
	if p.Payer.DisplayName() != "Joao Da Silva" {
		t.Fatalf("payer = %q", p.Payer.DisplayName())
	}
	want := time.Date(2025, 3, 10, 12, 1, 30, 0, time.UTC)
	if !p.SettledAt().Equal(want) {
		t.Fatalf("settled at %v, want %v", p.SettledAt(), want)
	}
}

func TestFetchPaymentStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, "secret", time.Second)
	_, err := c.FetchPayment(context.Background(), "1")
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 StatusError, got %v", err)
	}
}

func TestFetchPaymentTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c, _ := NewClient(srv.URL, "secret", 50*time.Millisecond)
	if _, err := c.FetchPayment(context.Background(), "1"); err == nil {
		t.Fatalf("expected timeout error")
	}
}

func TestNewClientRequiresToken(t *testing.T) {
	if _, err := NewClient("", " ", time.Second); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
}

func TestSettledAtFallsBackToCreation(t *testing.T) {
	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	if got := (Payment{DateCreated: created}).SettledAt(); !got.Equal(created) {
		t.Fatalf("got %v", got)
	}
}
