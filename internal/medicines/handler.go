package medicines

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/medipos/medipos/internal/auth"
	"github.com/medipos/medipos/internal/platform/httpx"
)

// Handler wires HTTP endpoints for inventory management.
type Handler struct {
	logger            *slog.Logger
	service           *Service
	validator         *validator.Validate
	lowStockThreshold int
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, lowStockThreshold int) *Handler {
	return &Handler{
		logger:            logger,
		service:           service,
		validator:         validator.New(),
		lowStockThreshold: lowStockThreshold,
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	req := ListMedicinesRequest{
		Search: r.URL.Query().Get("search"),
		Limit:  queryInt(r, "limit", 50),
		Offset: queryInt(r, "offset", 0),
	}
	if raw := r.URL.Query().Get("max_stock"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			req.MaxStock = &v
		}
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	meds, total, err := h.service.List(r.Context(), req)
	if err != nil {
		h.logger.Error("list medicines", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"medicines": meds, "total": total})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "medicine id must be numeric")
		return
	}
	med, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, med)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateMedicineRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	med, err := h.service.Create(r.Context(), req, actorID(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, med)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "medicine id must be numeric")
		return
	}
	var req UpdateMedicineRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	med, err := h.service.Update(r.Context(), id, req, actorID(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, med)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "medicine id must be numeric")
		return
	}
	if err := h.service.Delete(r.Context(), id, actorID(r)); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "medicine deleted"})
}

func (h *Handler) LowStock(w http.ResponseWriter, r *http.Request) {
	threshold := queryInt(r, "threshold", h.lowStockThreshold)
	meds, err := h.service.LowStock(r.Context(), threshold)
	if err != nil {
		h.logger.Error("low stock listing", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"threshold": threshold, "medicines": meds})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "medicine not found")
	case errors.Is(err, ErrNameTaken):
		httpx.ProblemField(w, http.StatusConflict, "Duplicate", "a medicine with this name already exists", "name")
	default:
		h.logger.Error("medicine operation failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func actorID(r *http.Request) int64 {
	if p := auth.PrincipalFromContext(r.Context()); p != nil {
		return p.UserID
	}
	return 0
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
