package customers

import (
	"context"
	"fmt"
	"strings"
)

// Service coordinates customer record operations.
type Service struct {
	repo Repository
}

// NewService builds a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create registers a new customer.
func (s *Service) Create(ctx context.Context, req CreateCustomerRequest) (*Customer, error) {
	c := Customer{
		Name:  strings.TrimSpace(req.Name),
		Phone: strings.TrimSpace(req.Phone),
		Email: req.Email,
	}
	if req.Address != nil {
		c.Address = Address{
			Street:  req.Address.Street,
			City:    req.Address.City,
			State:   req.Address.State,
			Pincode: req.Address.Pincode,
		}
	}
	id, err := s.repo.Create(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}
	return s.repo.Get(ctx, id)
}

// Update applies partial changes to a customer record.
func (s *Service) Update(ctx context.Context, id int64, req UpdateCustomerRequest) (*Customer, error) {
	updates := make(map[string]interface{})
	if req.Name != nil {
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Phone != nil {
		updates["phone"] = strings.TrimSpace(*req.Phone)
	}
	if req.Email != nil {
		updates["email"] = *req.Email
	}
	if req.Address != nil {
		updates["street"] = req.Address.Street
		updates["city"] = req.Address.City
		updates["state"] = req.Address.State
		updates["pincode"] = req.Address.Pincode
	}
	if len(updates) == 0 {
		return s.repo.Get(ctx, id)
	}
	if err := s.repo.Update(ctx, id, updates); err != nil {
		return nil, fmt.Errorf("update customer: %w", err)
	}
	return s.repo.Get(ctx, id)
}

// Delete removes a customer record.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete customer: %w", err)
	}
	return nil
}

// Get fetches one customer by id.
func (s *Service) Get(ctx context.Context, id int64) (*Customer, error) {
	return s.repo.Get(ctx, id)
}

// List returns customers newest first plus the total count.
func (s *Service) List(ctx context.Context, limit, offset int) ([]Customer, int, error) {
	return s.repo.List(ctx, limit, offset)
}
