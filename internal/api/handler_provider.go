package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/fastprodman/lottoengine/internal/lottery"
	"github.com/fastprodman/lottoengine/internal/services/allocator"
	"github.com/fastprodman/lottoengine/internal/services/ledger"
	"github.com/fastprodman/lottoengine/internal/services/rounds"
)

// Services the handlers depend on. The engine wires the concrete services; tests
// use fakes.
type (
	Purchaser interface {
		Purchase(ctx context.Context, req allocator.PurchaseRequest) (lottery.Ticket, error)
		ConfirmCharge(ctx context.Context, paymentKey string) (lottery.Ticket, error)
	}

	RoundAdmin interface {
		Create(ctx context.Context, in lottery.NewRound) (lottery.Round, error)
		Get(ctx context.Context, id string) (lottery.Round, error)
		List(ctx context.Context, status lottery.Status, limit int) ([]lottery.Round, error)
		Result(ctx context.Context, id string) (lottery.RoundResult, error)
		Void(ctx context.Context, id string) (rounds.RefundReport, error)
		RoundTickets(ctx context.Context, roundID string) ([]lottery.Ticket, error)
		Tickets(ctx context.Context, userID string, limit int) ([]lottery.Ticket, error)
	}

	Balances interface {
		Balance(ctx context.Context, walletID string) (lottery.Wallet, error)
		History(ctx context.Context, walletID string, limit int) ([]lottery.LedgerEntry, error)
		Verify(ctx context.Context, walletID string) error
	}
)

// HandlerProvider exposes the engine over HTTP.
type HandlerProvider struct {
	tickets  Purchaser
	rounds   RoundAdmin
	balances Balances
}

func NewHandler(tickets Purchaser, rounds RoundAdmin, balances Balances) *HandlerProvider {
	return &HandlerProvider{tickets: tickets, rounds: rounds, balances: balances}
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps the engine's error taxonomy onto status codes.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, lottery.ErrRoundNotFound):
		writeError(w, http.StatusNotFound, "round not found")
	case errors.Is(err, lottery.ErrWalletNotFound):
		writeError(w, http.StatusNotFound, "wallet not found")
	case errors.Is(err, lottery.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, lottery.ErrRoundNotOpen):
		writeError(w, http.StatusConflict, "round is not open for tickets")
	case errors.Is(err, lottery.ErrAllocationExhausted):
		writeError(w, http.StatusConflict, "round is sold out")
	case errors.Is(err, lottery.ErrVoidConflict):
		writeError(w, http.StatusConflict, "round can no longer be voided")
	case errors.Is(err, lottery.ErrPaymentDeclined):
		writeError(w, http.StatusPaymentRequired, "payment declined")
	case errors.Is(err, ledger.ErrDrift):
		slog.ErrorContext(r.Context(), "ledger drift", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusConflict, "wallet balance does not match its ledger")
	case errors.Is(err, lottery.ErrGatewayTimeout):
		writeError(w, http.StatusGatewayTimeout, "payment gateway timeout, retry with the same paymentRef")
	default:
		slog.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeBody limits body size and disallows unknown fields.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB cap
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("empty body")
		}

		return fmt.Errorf("invalid JSON")
	}

	return nil
}

// queryLimit reads ?limit=, falling back to def for missing or bad values.
func queryLimit(r *http.Request, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return def
	}

	return min(n, 500)
}

// formatMinor renders minor units with two decimals.
func formatMinor(v int64) string {
	return decimal.New(v, -2).StringFixed(2)
}

// --- DTOs ---

type purchaseRequest struct {
	UserID     string `json:"userId"`
	PaymentRef string `json:"paymentRef"`
}

type ticketResponse struct {
	TicketID    string    `json:"ticketId"`
	RoundID     string    `json:"roundId"`
	UserID      string    `json:"userId"`
	Number      string    `json:"number"`
	Price       string    `json:"price"`
	PurchasedAt time.Time `json:"purchasedAt"`
}

type entryResponse struct {
	EntryID   string            `json:"entryId"`
	Amount    string            `json:"amount"`
	Kind      lottery.EntryKind `json:"kind"`
	RoundID   *string           `json:"roundId,omitempty"`
	TicketID  *string           `json:"ticketId,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

type createRoundRequest struct {
	OpenAt         time.Time `json:"openAt"`
	CloseAt        time.Time `json:"closeAt"`
	TicketPrice    int64     `json:"ticketPrice"`
	NumberDigits   int       `json:"numberDigits"`
	MatchPositions int       `json:"matchPositions"`
}

type winnerResponse struct {
	Rank     lottery.Rank `json:"rank"`
	TicketID string       `json:"ticketId"`
	UserID   string       `json:"userId"`
	Number   string       `json:"number"`
	Payout   string       `json:"payout"`
}

type roundResponse struct {
	RoundID           string           `json:"roundId"`
	Cadence           lottery.Cadence  `json:"cadence"`
	Status            lottery.Status   `json:"status"`
	OpenAt            time.Time        `json:"openAt"`
	CloseAt           time.Time        `json:"closeAt"`
	TicketPrice       string           `json:"ticketPrice"`
	PrizePool         string           `json:"prizePool"`
	TicketsSold       int64            `json:"ticketsSold"`
	Seed              *string          `json:"seed,omitempty"`
	FirstPrize        *string          `json:"firstPrize,omitempty"`
	PlatformRetention *string          `json:"platformRetention,omitempty"`
	Winners           []winnerResponse `json:"winners"`
}

func toTicketResponse(t lottery.Ticket, rule lottery.MatchRule) ticketResponse {
	return ticketResponse{
		TicketID:    t.ID,
		RoundID:     t.RoundID,
		UserID:      t.UserID,
		Number:      formatNumber(t.Number, rule),
		Price:       formatMinor(t.Price),
		PurchasedAt: t.PurchasedAt,
	}
}

// ticketResponses renders tickets with the number width of their round. A round
// that cannot be read falls back to the plain number.
func (h *HandlerProvider) ticketResponses(ctx context.Context, list []lottery.Ticket) []ticketResponse {
	rules := make(map[string]lottery.MatchRule)
	out := make([]ticketResponse, 0, len(list))

	for _, t := range list {
		rule, ok := rules[t.RoundID]
		if !ok {
			rd, err := h.rounds.Get(ctx, t.RoundID)
			if err != nil {
				slog.WarnContext(ctx, "load round for ticket number", "round_id", t.RoundID, "error", err)
			}

			rule = rd.Rule()
			rules[t.RoundID] = rule
		}

		out = append(out, toTicketResponse(t, rule))
	}

	return out
}

func formatNumber(n int64, rule lottery.MatchRule) string {
	if rule.Digits == 0 {
		return fmt.Sprint(n)
	}

	return rule.Format(n)
}

func toRoundResponse(res lottery.RoundResult) roundResponse {
	rd := res.Round
	rule := rd.Rule()

	out := roundResponse{
		RoundID:     rd.ID,
		Cadence:     rd.Cadence,
		Status:      rd.Status,
		OpenAt:      rd.OpenAt,
		CloseAt:     rd.CloseAt,
		TicketPrice: formatMinor(rd.TicketPrice),
		PrizePool:   formatMinor(rd.PrizePool),
		TicketsSold: res.Tickets,
		Seed:        rd.Seed,
		Winners:     make([]winnerResponse, 0, len(res.Winners)),
	}

	if st := res.Settlement; st != nil {
		first := formatMinor(st.FirstPrize)
		retained := formatMinor(st.PlatformRetention)
		out.FirstPrize = &first
		out.PlatformRetention = &retained
		out.PrizePool = formatMinor(st.PrizePool)
	}

	for _, w := range res.Winners {
		out.Winners = append(out.Winners, winnerResponse{
			Rank:     w.Rank,
			TicketID: w.TicketID,
			UserID:   w.UserID,
			Number:   formatNumber(w.Number, rule),
			Payout:   formatMinor(w.Payout),
		})
	}

	return out
}

// --- Handlers ---

// PurchaseHandler handles POST /rounds/{roundId}/tickets
func (h *HandlerProvider) PurchaseHandler(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest

	err := decodeBody(w, r, &req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	in := allocator.PurchaseRequest{
		RoundID:    chi.URLParam(r, "roundId"),
		UserID:     strings.TrimSpace(req.UserID),
		PaymentRef: strings.TrimSpace(req.PaymentRef),
	}

	t, err := h.tickets.Purchase(r.Context(), in)
	if err != nil {
		if errors.Is(err, lottery.ErrPaymentPending) {
			writeJSON(w, http.StatusAccepted, map[string]string{
				"status":     "pending",
				"paymentKey": allocator.PaymentKey(in.RoundID, in.UserID, in.PaymentRef),
			})
			return
		}

		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, h.ticketResponses(r.Context(), []lottery.Ticket{t})[0])
}

// ListRoundsHandler handles GET /rounds?status=OPEN
func (h *HandlerProvider) ListRoundsHandler(w http.ResponseWriter, r *http.Request) {
	status := lottery.Status(strings.ToUpper(r.URL.Query().Get("status")))
	if status == "" {
		status = lottery.StatusOpen
	}

	list, err := h.rounds.List(r.Context(), status, queryLimit(r, 100))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	out := make([]roundResponse, 0, len(list))
	for _, rd := range list {
		// numbers are only taken by committed tickets
		out = append(out, toRoundResponse(lottery.RoundResult{Round: rd, Tickets: rd.NextNumber}))
	}

	writeJSON(w, http.StatusOK, out)
}

// GetRoundTicketsHandler handles GET /rounds/{roundId}/tickets
func (h *HandlerProvider) GetRoundTicketsHandler(w http.ResponseWriter, r *http.Request) {
	list, err := h.rounds.RoundTickets(r.Context(), chi.URLParam(r, "roundId"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, h.ticketResponses(r.Context(), list))
}

// CreateRoundHandler handles POST /rounds (ad-hoc rounds)
func (h *HandlerProvider) CreateRoundHandler(w http.ResponseWriter, r *http.Request) {
	var req createRoundRequest

	err := decodeBody(w, r, &req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rd, err := h.rounds.Create(r.Context(), lottery.NewRound{
		Cadence:        lottery.CadenceAdHoc,
		OpenAt:         req.OpenAt,
		CloseAt:        req.CloseAt,
		TicketPrice:    req.TicketPrice,
		NumberDigits:   req.NumberDigits,
		MatchPositions: req.MatchPositions,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toRoundResponse(lottery.RoundResult{Round: rd}))
}

// GetRoundHandler handles GET /rounds/{roundId}
func (h *HandlerProvider) GetRoundHandler(w http.ResponseWriter, r *http.Request) {
	res, err := h.rounds.Result(r.Context(), chi.URLParam(r, "roundId"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toRoundResponse(res))
}

// VoidRoundHandler handles POST /rounds/{roundId}/void
func (h *HandlerProvider) VoidRoundHandler(w http.ResponseWriter, r *http.Request) {
	rep, err := h.rounds.Void(r.Context(), chi.URLParam(r, "roundId"))
	if err != nil && !errors.Is(err, lottery.ErrRefundFailed) {
		writeDomainError(w, r, err)
		return
	}

	// refunds that failed are retried by the scheduler
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   lottery.StatusVoid,
		"refunded": rep.Refunded,
		"pending":  rep.Failed,
	})
}

// GetBalanceHandler handles GET /wallets/{userId}/balance
func (h *HandlerProvider) GetBalanceHandler(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "invalid userId in path")
		return
	}

	wallet, err := h.balances.Balance(r.Context(), userID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"userId":  wallet.UserID,
		"balance": formatMinor(wallet.Balance),
		"version": wallet.Version,
	})
}

// ChargeConfirmedHandler handles POST /gateway/charges/{paymentKey}/confirmed
func (h *HandlerProvider) ChargeConfirmedHandler(w http.ResponseWriter, r *http.Request) {
	t, err := h.tickets.ConfirmCharge(r.Context(), chi.URLParam(r, "paymentKey"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	if t.ID == "" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	writeJSON(w, http.StatusOK, h.ticketResponses(r.Context(), []lottery.Ticket{t})[0])
}

// GetUserTicketsHandler handles GET /users/{userId}/tickets
func (h *HandlerProvider) GetUserTicketsHandler(w http.ResponseWriter, r *http.Request) {
	list, err := h.rounds.Tickets(r.Context(), chi.URLParam(r, "userId"), queryLimit(r, 100))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, h.ticketResponses(r.Context(), list))
}

// GetWalletEntriesHandler handles GET /wallets/{userId}/entries
func (h *HandlerProvider) GetWalletEntriesHandler(w http.ResponseWriter, r *http.Request) {
	list, err := h.balances.History(r.Context(), chi.URLParam(r, "userId"), queryLimit(r, 50))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	out := make([]entryResponse, 0, len(list))
	for _, e := range list {
		out = append(out, entryResponse{
			EntryID:   e.ID,
			Amount:    formatMinor(e.Amount),
			Kind:      e.Kind,
			RoundID:   e.RoundID,
			TicketID:  e.TicketID,
			CreatedAt: e.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, out)
}

// AuditWalletHandler handles GET /wallets/{userId}/audit
func (h *HandlerProvider) AuditWalletHandler(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	err := h.balances.Verify(r.Context(), userID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"userId": userID, "consistent": true})
}
