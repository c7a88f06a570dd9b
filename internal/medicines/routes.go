package medicines

import (
	"github.com/go-chi/chi/v5"
)

// MountRoutes registers medicine routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/low-stock", h.LowStock)
	r.Get("/{id}", h.Get)
	r.Post("/", h.Create)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}
