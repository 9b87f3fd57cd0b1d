package e2etests

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

// The engine must run with GATEWAY_URL=memory and a short SCHEDULER_TICK, e.g.
//
//	E2E_BASE_URL=http://localhost:8080 go test ./e2e_tests/...
const (
	timeout     = 5 * time.Second
	waitReady   = 20 * time.Second
	waitSettled = 60 * time.Second
)

var httpClient = &http.Client{Timeout: timeout}

func baseURL(t *testing.T) string {
	t.Helper()

	u := os.Getenv("E2E_BASE_URL")
	if u == "" {
		t.Skip("E2E_BASE_URL not set")
	}

	return u
}

type ticket struct {
	TicketID string `json:"ticketId"`
	Number   string `json:"number"`
}

type winner struct {
	Rank   string `json:"rank"`
	UserID string `json:"userId"`
	Payout string `json:"payout"`
}

type round struct {
	RoundID           string   `json:"roundId"`
	Status            string   `json:"status"`
	PrizePool         string   `json:"prizePool"`
	Seed              *string  `json:"seed"`
	FirstPrize        *string  `json:"firstPrize"`
	PlatformRetention *string  `json:"platformRetention"`
	Winners           []winner `json:"winners"`
}

func TestE2E_RoundLifecycle(t *testing.T) {
	base := baseURL(t)
	waitUntilReady(t, base)

	rd := createRound(t, base, 3*time.Second)
	users := []string{"alice", "bob", "carol"}

	var first ticket
	t.Run("purchase_tickets", func(t *testing.T) {
		for i, u := range users {
			code, body := post(t, base+"/rounds/"+rd.RoundID+"/tickets",
				map[string]string{"userId": u, "paymentRef": fmt.Sprintf("pay-%d-%d", i, time.Now().UnixNano())})
			if code != http.StatusOK {
				t.Fatalf("purchase for %s: want 200, got %d (%s)", u, code, body)
			}

			if i == 0 {
				_ = json.Unmarshal(body, &first)
			}
		}
	})

	t.Run("duplicate_purchase_returns_same_ticket", func(t *testing.T) {
		ref := fmt.Sprintf("dup-%d", time.Now().UnixNano())
		req := map[string]string{"userId": "alice", "paymentRef": ref}

		var a, b ticket
		_, body := post(t, base+"/rounds/"+rd.RoundID+"/tickets", req)
		_ = json.Unmarshal(body, &a)
		_, body = post(t, base+"/rounds/"+rd.RoundID+"/tickets", req)
		_ = json.Unmarshal(body, &b)

		if a.TicketID == "" || a.TicketID != b.TicketID {
			t.Fatalf("duplicate purchase issued %q and %q", a.TicketID, b.TicketID)
		}
	})

	t.Run("invalid_purchase", func(t *testing.T) {
		code, _ := post(t, base+"/rounds/"+rd.RoundID+"/tickets", map[string]string{"userId": "", "paymentRef": "x"})
		if code != http.StatusBadRequest {
			t.Fatalf("empty user: want 400, got %d", code)
		}
	})

	t.Run("round_settles", func(t *testing.T) {
		got := waitForStatus(t, base, rd.RoundID, "SETTLED")

		if got.Seed == nil || len(*got.Seed) != 64 {
			t.Fatalf("settled round must expose its 32-byte seed, got %v", got.Seed)
		}

		pool := money(t, got.PrizePool)
		if !pool.Equal(decimal.NewFromInt(4)) {
			t.Fatalf("prize pool: want 4.00, got %s", got.PrizePool)
		}

		sum := money(t, *got.PlatformRetention)
		firsts := 0
		for _, w := range got.Winners {
			sum = sum.Add(money(t, w.Payout))
			if w.Rank == "FIRST" {
				firsts++
			}
		}

		if firsts != 1 {
			t.Fatalf("want exactly one first place, got %d", firsts)
		}
		if !sum.Equal(pool) {
			t.Fatalf("payouts plus retention %s != pool %s", sum, pool)
		}
	})

	t.Run("settled_round_cannot_be_voided", func(t *testing.T) {
		code, _ := post(t, base+"/rounds/"+rd.RoundID+"/void", nil)
		if code != http.StatusConflict {
			t.Fatalf("void settled: want 409, got %d", code)
		}
	})
}

func TestE2E_VoidRefundsEveryTicket(t *testing.T) {
	base := baseURL(t)
	waitUntilReady(t, base)

	rd := createRound(t, base, time.Hour)

	for i := 0; i < 2; i++ {
		code, body := post(t, base+"/rounds/"+rd.RoundID+"/tickets",
			map[string]string{"userId": "bob", "paymentRef": fmt.Sprintf("void-%d-%d", i, time.Now().UnixNano())})
		if code != http.StatusOK {
			t.Fatalf("purchase: want 200, got %d (%s)", code, body)
		}
	}

	code, body := post(t, base+"/rounds/"+rd.RoundID+"/void", nil)
	if code != http.StatusOK {
		t.Fatalf("void: want 200, got %d (%s)", code, body)
	}

	var rep struct {
		Refunded int `json:"refunded"`
		Pending  int `json:"pending"`
	}
	_ = json.Unmarshal(body, &rep)
	if rep.Refunded != 2 || rep.Pending != 0 {
		t.Fatalf("refunds: want 2/0, got %d/%d", rep.Refunded, rep.Pending)
	}

	got := getRound(t, base, rd.RoundID)
	if got.Status != "VOID" || !money(t, got.PrizePool).IsZero() {
		t.Fatalf("voided round: status %s pool %s", got.Status, got.PrizePool)
	}

	code, _ = post(t, base+"/rounds/"+rd.RoundID+"/tickets", map[string]string{"userId": "bob", "paymentRef": "late"})
	if code != http.StatusConflict {
		t.Fatalf("purchase on void round: want 409, got %d", code)
	}
}

/* -------------------- helpers -------------------- */

func createRound(t *testing.T, base string, closeIn time.Duration) round {
	t.Helper()

	now := time.Now().UTC()
	code, body := post(t, base+"/rounds", map[string]any{
		"openAt":         now.Add(-time.Minute),
		"closeAt":        now.Add(closeIn),
		"ticketPrice":    100,
		"numberDigits":   2,
		"matchPositions": 1,
	})
	if code != http.StatusCreated {
		t.Fatalf("create round: want 201, got %d (%s)", code, body)
	}

	var rd round
	err := json.Unmarshal(body, &rd)
	if err != nil {
		t.Fatalf("decode round: %v", err)
	}

	return rd
}

func getRound(t *testing.T, base, id string) round {
	t.Helper()

	resp, err := httpClient.Get(base + "/rounds/" + id)
	if err != nil {
		t.Fatalf("get round: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("get round: want 200, got %d (%s)", resp.StatusCode, b)
	}

	var rd round
	err = json.NewDecoder(resp.Body).Decode(&rd)
	if err != nil {
		t.Fatalf("decode round: %v", err)
	}

	return rd
}

func waitForStatus(t *testing.T, base, id, status string) round {
	t.Helper()

	deadline := time.Now().Add(waitSettled)
	for time.Now().Before(deadline) {
		rd := getRound(t, base, id)
		if rd.Status == status {
			return rd
		}

		time.Sleep(500 * time.Millisecond)
	}

	t.Fatalf("round %s did not reach %s within %s", id, status, waitSettled)

	return round{}
}

func post(t *testing.T, u string, body any) (int, []byte) {
	t.Helper()

	var rd io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequest(http.MethodPost, u, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b
}

func money(t *testing.T, s string) decimal.Decimal {
	t.Helper()

	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("invalid money %q: %v", s, err)
	}

	return d
}

// waitUntilReady waits until GET /healthz responds 200 or times out.
func waitUntilReady(t *testing.T, base string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), waitReady)
	defer cancel()

	tick := time.NewTicker(200 * time.Millisecond)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			t.Fatalf("service not ready at %s within %s", base, waitReady)
		case <-tick.C:
			resp, err := httpClient.Get(base + "/healthz")
			if err != nil {
				// keep waiting while the server starts
				continue
			}
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
	}
}
