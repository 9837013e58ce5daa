package apiv1

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"telegram-order-bot/internal/domain"
	"telegram-order-bot/internal/domain/model"
	"telegram-order-bot/internal/infra/logging"
	"telegram-order-bot/internal/usecase"
)

type Order struct {
	ID          string     `json:"id"`
	UserID      int64      `json:"user_id"`
	Username    string     `json:"username,omitempty"`
	Link        string     `json:"link"`
	PriceCNY    float64    `json:"price_cny"`
	PriceRUB    float64    `json:"price_rub"`
	Rate        float64    `json:"exchange_rate"`
	Shipping    string     `json:"shipping"`
	Contact     string     `json:"contact"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
}

type ShippingOption struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	PricePerKg int64  `json:"price_per_kg_rub"`
	Days       string `json:"days"`
}

type errorBody struct {
	Error string `json:"error"`
}

// Server exposes read-only order data to the shop admin.
type Server struct {
	stats usecase.StatsUseCase
	log   *zerolog.Logger
}

func NewServer(stats usecase.StatsUseCase, logger *zerolog.Logger) *Server {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Server{stats: stats, log: logger}
}

// RegisterAPIV1 mounts the routes with absolute paths. Middleware (auth)
// is applied by the caller through r.
func RegisterAPIV1(r chi.Router, s *Server) {
	r.Get("/api/v1/orders", s.listOrders)
	r.Get("/api/v1/orders/stats", s.orderTotals)
	r.Get("/api/v1/shipping", s.shipping)
}

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	status := model.OrderStatus(q.Get("status"))
	switch status {
	case "", model.OrderStatusConfirmed, model.OrderStatusCancelled:
	default:
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "status must be confirmed or cancelled"})
		return
	}

	orders, err := s.stats.RecentOrders(r.Context(), status, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	items := make([]Order, 0, len(orders))
	for _, o := range orders {
		items = append(items, toOrder(o))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) orderTotals(w http.ResponseWriter, r *http.Request) {
	totals, err := s.stats.Totals(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make(map[string]int, len(totals))
	for k, v := range totals {
		out[string(k)] = v
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) shipping(w http.ResponseWriter, _ *http.Request) {
	opts := s.stats.Shipping()
	items := make([]ShippingOption, 0, len(opts))
	for _, o := range opts {
		items = append(items, ShippingOption{Code: string(o.Code), Name: o.Name, PricePerKg: o.PricePerKg, Days: o.Days})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"exchange_rate": s.stats.ExchangeRate(),
		"items":         items,
	})
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, domain.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "orders are not persisted (DATABASE_URL not set)"})
		return
	}
	logging.With(r.Context(), s.log).Error().Err(err).Str("path", r.URL.Path).Msg("admin api failure")
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
}

func toOrder(o *model.Order) Order {
	return Order{
		ID:          o.ID,
		UserID:      o.UserID,
		Username:    o.Username,
		Link:        o.Link,
		PriceCNY:    o.PriceCNY,
		PriceRUB:    o.PriceRUB(),
		Rate:        o.ExchangeRate,
		Shipping:    string(o.ShippingMethod),
		Contact:     o.Contact,
		Status:      string(o.Status),
		CreatedAt:   o.CreatedAt,
		ConfirmedAt: o.ConfirmedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
