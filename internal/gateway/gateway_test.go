package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestMemory_ChargeIsIdempotent(t *testing.T) {
	t.Parallel()

	g := NewMemory()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		st, err := g.Charge(ctx, "k1", 100, "alice")
		if err != nil {
			t.Fatalf("charge: %v", err)
		}
		if st != StatusConfirmed {
			t.Fatalf("status: want confirmed, got %s", st)
		}
	}

	charges, _ := g.Stats()
	if charges != 1 {
		t.Fatalf("charges: want 1, got %d", charges)
	}
}

func TestMemory_StalledChargeIsRecorded(t *testing.T) {
	t.Parallel()

	g := NewMemory()
	g.Stall("bob", 1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := g.Charge(ctx, "k1", 100, "bob")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("want deadline exceeded, got %v", err)
	}

	st, err := g.Charge(context.Background(), "k1", 100, "bob")
	if err != nil || st != StatusConfirmed {
		t.Fatalf("retry: %s, %v", st, err)
	}

	charges, _ := g.Stats()
	if charges != 1 {
		t.Fatalf("charges: want 1, got %d", charges)
	}
}

func TestMemory_ScriptedAndRefunds(t *testing.T) {
	t.Parallel()

	g := NewMemory()
	ctx := context.Background()

	g.Script("bob", StatusPending)
	st, _ := g.Charge(ctx, "k2", 100, "bob")
	if st != StatusPending {
		t.Fatalf("status: want pending, got %s", st)
	}

	err := g.Refund(ctx, RefundKey("t2"), "k2", 100)
	if !errors.Is(err, ErrUnknownCharge) {
		t.Fatalf("refund of pending charge: want ErrUnknownCharge, got %v", err)
	}

	err = g.Confirm("k2")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}

	g.FailRefunds(true)
	err = g.Refund(ctx, RefundKey("t2"), "k2", 100)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("want ErrUnavailable, got %v", err)
	}

	g.FailRefunds(false)
	for i := 0; i < 2; i++ {
		err = g.Refund(ctx, RefundKey("t2"), "k2", 100)
		if err != nil {
			t.Fatalf("refund: %v", err)
		}
	}

	_, refunds := g.Stats()
	if refunds != 1 || g.RefundedTotal() != 100 {
		t.Fatalf("refunds: want 1 totalling 100, got %d totalling %d", refunds, g.RefundedTotal())
	}
}

func TestHTTPGateway_Charge(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chargeRequest
		_ = json.NewDecoder(r.Body).Decode(&req)

		switch {
		case r.Header.Get("Authorization") != "Bearer secret":
			w.WriteHeader(http.StatusUnauthorized)
		case req.UserID == "broke":
			_ = json.NewEncoder(w).Encode(chargeResponse{Status: StatusDeclined})
		case req.UserID == "down":
			w.WriteHeader(http.StatusBadGateway)
		case req.UserID == "slow":
			time.Sleep(200 * time.Millisecond)
			_ = json.NewEncoder(w).Encode(chargeResponse{Status: StatusConfirmed})
		default:
			_ = json.NewEncoder(w).Encode(chargeResponse{Status: StatusConfirmed})
		}
	}))
	defer srv.Close()

	g := NewHTTP(srv.URL+"/", "secret", time.Second)

	tests := []struct {
		name       string
		userID     string
		timeout    time.Duration
		wantStatus ChargeStatus
		wantErr    error
	}{
		{name: "confirmed", userID: "alice", timeout: time.Second, wantStatus: StatusConfirmed},
		{name: "declined", userID: "broke", timeout: time.Second, wantStatus: StatusDeclined},
		{name: "unavailable", userID: "down", timeout: time.Second, wantErr: ErrUnavailable},
		{name: "deadline", userID: "slow", timeout: 20 * time.Millisecond, wantErr: context.DeadlineExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx, cancel := context.WithTimeout(context.Background(), tt.timeout)
			defer cancel()

			st, err := g.Charge(ctx, "key-"+tt.name, 100, tt.userID)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("want %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("charge: %v", err)
			}
			if st != tt.wantStatus {
				t.Fatalf("status: want %s, got %s", tt.wantStatus, st)
			}
		})
	}
}
