package sales

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"supplydash/pkg/logging"
)

// Handler exposes a Store over HTTP.
type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// Register mounts the data API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/orders", h.orders)
	mux.HandleFunc("GET /api/kpis", h.kpis)
	mux.HandleFunc("GET /api/charts/sales-trend", h.salesTrend)
	mux.HandleFunc("GET /api/charts/shipping-modes", h.shippingModes)
	mux.HandleFunc("GET /api/charts/categories", h.categories)
	mux.HandleFunc("GET /api/charts/regions", h.regions)
	mux.HandleFunc("GET /api/filters/options", h.filterOptions)
}

// badRequest marks query parameter errors.
type badRequest struct{ msg string }

func (e badRequest) Error() string { return e.msg }

func parseFilter(q url.Values) Filter {
	return Filter{
		Region:    q.Get("region"),
		Category:  q.Get("category"),
		ShipMode:  q.Get("ship_mode"),
		StartDate: q.Get("start_date"),
		EndDate:   q.Get("end_date"),
	}
}

func parsePositive(q url.Values, name string, def int) (int, error) {
	raw := q.Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, badRequest{msg: fmt.Sprintf("%s must be a positive integer", name)}
	}
	return n, nil
}

// ParseOrderQuery reads /api/orders query parameters.
func ParseOrderQuery(q url.Values) (OrderQuery, error) {
	page, err := parsePositive(q, "page", DefaultPage)
	if err != nil {
		return OrderQuery{}, err
	}
	limit, err := parsePositive(q, "limit", DefaultLimit)
	if err != nil {
		return OrderQuery{}, err
	}
	return OrderQuery{
		Filter:    parseFilter(q),
		Search:    q.Get("search"),
		Page:      page,
		Limit:     limit,
		SortBy:    q.Get("sort_by"),
		SortOrder: q.Get("sort_order"),
	}.Normalize(), nil
}

func (h *Handler) orders(w http.ResponseWriter, r *http.Request) {
	q, err := ParseOrderQuery(r.URL.Query())
	if err != nil {
		writeError(w, "Failed to fetch orders", err)
		return
	}
	page, err := h.store.Orders(r.Context(), q)
	respond(w, "Failed to fetch orders", page, err)
}

func (h *Handler) kpis(w http.ResponseWriter, r *http.Request) {
	k, err := h.store.KPIs(r.Context(), parseFilter(r.URL.Query()))
	respond(w, "Failed to calculate KPIs", k, err)
}

func (h *Handler) salesTrend(w http.ResponseWriter, r *http.Request) {
	v, err := h.store.SalesTrend(r.Context(), parseFilter(r.URL.Query()))
	respond(w, "Failed to fetch sales trend", v, err)
}

func (h *Handler) shippingModes(w http.ResponseWriter, r *http.Request) {
	v, err := h.store.ShippingModes(r.Context(), parseFilter(r.URL.Query()))
	respond(w, "Failed to fetch shipping modes", v, err)
}

func (h *Handler) categories(w http.ResponseWriter, r *http.Request) {
	v, err := h.store.Categories(r.Context(), parseFilter(r.URL.Query()))
	respond(w, "Failed to fetch categories", v, err)
}

func (h *Handler) regions(w http.ResponseWriter, r *http.Request) {
	v, err := h.store.Regions(r.Context(), parseFilter(r.URL.Query()))
	respond(w, "Failed to fetch regions", v, err)
}

func (h *Handler) filterOptions(w http.ResponseWriter, r *http.Request) {
	v, err := h.store.FilterOptions(r.Context())
	respond(w, "Failed to fetch filter options", v, err)
}

func respond(w http.ResponseWriter, failure string, v interface{}, err error) {
	if err != nil {
		writeError(w, failure, err)
		return
	}
	WriteJSON(w, http.StatusOK, v)
}

func writeError(w http.ResponseWriter, failure string, err error) {
	status := http.StatusInternalServerError
	var br badRequest
	if errors.As(err, &br) {
		status = http.StatusBadRequest
	} else {
		logging.Error("Sales", err, "%s", failure)
	}
	WriteJSON(w, status, map[string]string{"error": failure, "details": err.Error()})
}

// WriteJSON writes v as a JSON response.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Debug("Sales", "Failed to write response: %v", err)
	}
}
