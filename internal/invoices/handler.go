package invoices

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/medipos/medipos/internal/auth"
	"github.com/medipos/medipos/internal/observability"
	"github.com/medipos/medipos/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the invoice workflow.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	metrics   *observability.Metrics
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, metrics *observability.Metrics) *Handler {
	return &Handler{logger: logger, service: service, metrics: metrics, validator: validator.New()}
}

// MountRoutes registers invoice routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{number}", h.GetByNumber)
	r.Post("/", h.Create)
	r.Delete("/{id}", h.Delete)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateInvoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.metrics.RecordInvoiceOutcome("validation_failed")
		httpx.ProblemField(w, http.StatusBadRequest, "Validation Failed", err.Error(), validatedField(err))
		return
	}

	inv, err := h.service.Submit(r.Context(), req, actorID(r))
	if err != nil {
		h.respondSubmitError(w, err)
		return
	}

	h.metrics.RecordInvoiceOutcome("created")
	httpx.JSON(w, http.StatusCreated, inv)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	list, total, err := h.service.List(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("list invoices", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"invoices": list, "total": total})
}

func (h *Handler) GetByNumber(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")
	inv, err := h.service.GetByNumber(r.Context(), number)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "invoice not found")
			return
		}
		h.logger.Error("get invoice", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "invoice id must be numeric")
		return
	}
	if err := h.service.Delete(r.Context(), id, actorID(r)); err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "invoice not found")
			return
		}
		h.logger.Error("delete invoice", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "invoice deleted"})
}

// respondSubmitError maps the workflow error taxonomy onto HTTP statuses,
// always naming the offending field or item.
func (h *Handler) respondSubmitError(w http.ResponseWriter, err error) {
	var (
		invalid      *InvalidInputError
		notFound     *MedicineNotFoundError
		insufficient *InsufficientStockError
		mismatch     *TotalMismatchError
		unavailable  *StoreUnavailableError
	)
	switch {
	case errors.As(err, &invalid):
		h.metrics.RecordInvoiceOutcome("validation_failed")
		httpx.ProblemField(w, http.StatusBadRequest, "Invalid Input", invalid.Msg, invalid.Field)
	case errors.As(err, &notFound):
		h.metrics.RecordInvoiceOutcome("validation_failed")
		httpx.ProblemField(w, http.StatusNotFound, "Medicine Not Found", notFound.Error(), "items.name")
	case errors.As(err, &insufficient):
		h.metrics.RecordInvoiceOutcome("insufficient_stock")
		httpx.JSON(w, http.StatusConflict, map[string]any{
			"title":     "Insufficient Stock",
			"status":    http.StatusConflict,
			"detail":    insufficient.Error(),
			"field":     "items.quantity",
			"medicine":  insufficient.Name,
			"requested": insufficient.Requested,
			"available": insufficient.Available,
		})
	case errors.As(err, &mismatch):
		h.metrics.RecordInvoiceOutcome("validation_failed")
		httpx.ProblemField(w, http.StatusBadRequest, "Total Mismatch", mismatch.Error(), "total_amount")
	case errors.As(err, &unavailable):
		h.metrics.RecordInvoiceOutcome("error")
		h.logger.Error("invoice store unavailable", slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, "Store Unavailable", "persistence failed, the request is safe to retry")
	default:
		h.metrics.RecordInvoiceOutcome("error")
		h.logger.Error("invoice submit failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

// validatedField maps a struct validation error onto the request field name.
func validatedField(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		switch verrs[0].StructField() {
		case "Phone":
			return "customer.phone"
		case "TotalAmount":
			return "total_amount"
		}
	}
	return "body"
}

func actorID(r *http.Request) int64 {
	if p := auth.PrincipalFromContext(r.Context()); p != nil {
		return p.UserID
	}
	return 0
}
