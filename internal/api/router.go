package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter registers every endpoint on a chi router.
func NewRouter(h *HandlerProvider) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/rounds", func(r chi.Router) {
		r.Post("/", h.CreateRoundHandler)
		r.Get("/", h.ListRoundsHandler)
		r.Get("/{roundId}", h.GetRoundHandler)
		r.Get("/{roundId}/tickets", h.GetRoundTicketsHandler)
		r.Post("/{roundId}/tickets", h.PurchaseHandler)
		r.Post("/{roundId}/void", h.VoidRoundHandler)
	})

	r.Route("/wallets/{userId}", func(r chi.Router) {
		r.Get("/balance", h.GetBalanceHandler)
		r.Get("/entries", h.GetWalletEntriesHandler)
		r.Get("/audit", h.AuditWalletHandler)
	})
	r.Get("/users/{userId}/tickets", h.GetUserTicketsHandler)
	r.Post("/gateway/charges/{paymentKey}/confirmed", h.ChargeConfirmedHandler)

	return r
}
