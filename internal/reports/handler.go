package reports

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/medipos/medipos/internal/platform/httpx"
)

// Handler serves the dashboard and sales report endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers report routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/dashboard", h.Dashboard)
	r.Get("/sales", h.Sales)
}

func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Dashboard(r.Context())
	if err != nil {
		h.logger.Error("dashboard report", slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, "Report Unavailable", "dashboard aggregates are temporarily unavailable")
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) Sales(w http.ResponseWriter, r *http.Request) {
	days, _ := strconv.Atoi(r.URL.Query().Get("days"))
	if days <= 0 {
		days = defaultSalesDays
	}
	if days > maxSalesDays {
		days = maxSalesDays
	}
	series, err := h.service.Sales(r.Context(), days)
	if err != nil {
		h.logger.Error("sales report", slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, "Report Unavailable", "sales series is temporarily unavailable")
		return
	}
	if series == nil {
		series = []SalesPoint{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"days": days, "series": series})
}
