package medicines

import (
	"context"
	"fmt"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/medipos/medipos/internal/shared"
)

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates inventory management operations.
type Service struct {
	repo  Repository
	audit AuditPort
	title cases.Caser
}

// NewService builds a Service.
func NewService(repo Repository, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, title: cases.Title(language.English)}
}

// NormalizeName canonicalises a medicine name so "paracetamol" and
// "Paracetamol" resolve to the same stock entry.
func (s *Service) NormalizeName(name string) string {
	return s.title.String(name)
}

// Create registers a new medicine.
func (s *Service) Create(ctx context.Context, req CreateMedicineRequest, actorID int64) (*Medicine, error) {
	m := Medicine{
		Name:     s.NormalizeName(req.Name),
		Quantity: req.Quantity,
		Price:    req.Price,
		Expiry:   req.Expiry,
	}
	id, err := s.repo.Create(ctx, m)
	if err != nil {
		return nil, fmt.Errorf("create medicine: %w", err)
	}
	s.recordAudit(ctx, actorID, "medicine:create", id, map[string]any{"name": m.Name, "quantity": m.Quantity})
	return s.repo.Get(ctx, id)
}

// Update applies partial changes to an existing medicine.
func (s *Service) Update(ctx context.Context, id int64, req UpdateMedicineRequest, actorID int64) (*Medicine, error) {
	updates := make(map[string]interface{})
	if req.Name != nil {
		updates["name"] = s.NormalizeName(*req.Name)
	}
	if req.Quantity != nil {
		updates["quantity"] = *req.Quantity
	}
	if req.Price != nil {
		updates["price"] = *req.Price
	}
	if req.Expiry != nil {
		updates["expiry"] = *req.Expiry
	}
	if len(updates) == 0 {
		return s.repo.Get(ctx, id)
	}
	if err := s.repo.Update(ctx, id, updates); err != nil {
		return nil, fmt.Errorf("update medicine: %w", err)
	}
	s.recordAudit(ctx, actorID, "medicine:update", id, map[string]any{"fields": len(updates)})
	return s.repo.Get(ctx, id)
}

// Delete removes a medicine from the inventory.
func (s *Service) Delete(ctx context.Context, id int64, actorID int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete medicine: %w", err)
	}
	s.recordAudit(ctx, actorID, "medicine:delete", id, nil)
	return nil
}

// Get fetches one medicine by id.
func (s *Service) Get(ctx context.Context, id int64) (*Medicine, error) {
	return s.repo.Get(ctx, id)
}

// List returns medicines matching the filter plus the total count.
func (s *Service) List(ctx context.Context, req ListMedicinesRequest) ([]Medicine, int, error) {
	return s.repo.List(ctx, ListFilter{Search: req.Search, MaxStock: req.MaxStock, Limit: req.Limit, Offset: req.Offset})
}

// LowStock lists medicines at or below the given threshold.
func (s *Service) LowStock(ctx context.Context, threshold int) ([]Medicine, error) {
	if threshold < 0 {
		threshold = 0
	}
	return s.repo.BelowThreshold(ctx, threshold)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "medicine",
		EntityID: fmt.Sprintf("%d", id),
		Meta:     meta,
	})
}
