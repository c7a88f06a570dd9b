package invoices

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/medipos/medipos/internal/shared"
)

// maxNumberAttempts bounds regeneration when a generated invoice number
// collides. Uniqueness is enforced by the store's constraint, never by
// trusting the generator alone.
const maxNumberAttempts = 3

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service is the invoice workflow engine.
type Service struct {
	repo  Repository
	audit AuditPort
	title cases.Caser
	now   func() time.Time
}

// NewService builds a Service.
func NewService(repo Repository, audit AuditPort) *Service {
	return &Service{
		repo:  repo,
		audit: audit,
		title: cases.Title(language.English),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Submit validates a draft invoice, atomically reserves stock and persists
// the finalized record. Either every stock decrement and the invoice write
// commit together, or none do; no partial state is ever observable.
func (s *Service) Submit(ctx context.Context, req CreateInvoiceRequest, actorID int64) (*Invoice, error) {
	items, err := s.validate(req)
	if err != nil {
		return nil, err
	}

	total := computeTotal(items)
	if req.TotalAmount != nil && math.Abs(*req.TotalAmount-total) > 0.005 {
		return nil, &TotalMismatchError{Declared: *req.TotalAmount, Computed: total}
	}

	// Pre-check existence and availability so shape problems surface before
	// any write is attempted. The authoritative check is the conditional
	// decrement inside the transaction below.
	for _, item := range items {
		stock, err := s.repo.GetStock(ctx, item.Name)
		if err != nil {
			return nil, s.classify("stock lookup", err)
		}
		if stock.Quantity < item.Quantity {
			return nil, &InsufficientStockError{Name: item.Name, Requested: item.Quantity, Available: stock.Quantity}
		}
	}

	inv := Invoice{
		CustomerName:  strings.TrimSpace(req.Customer.Name),
		CustomerPhone: req.Customer.Phone,
		Items:         items,
		TotalAmount:   total,
		Status:        StatusPending,
		IssuedAt:      s.now(),
	}

	var created *Invoice
	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		inv.InvoiceNumber = generateNumber(s.now())

		commit := func(ctx context.Context, repo Repository) error {
			for _, item := range inv.Items {
				if err := repo.DecrementStock(ctx, item.Name, item.Quantity); err != nil {
					return err
				}
			}
			id, err := repo.InsertInvoice(ctx, inv)
			if err != nil {
				return err
			}
			// Read the stored row back inside the transaction: once the
			// commit succeeds the sale is applied, and the response must
			// not depend on a further read that could fail.
			stored, err := repo.Get(ctx, id)
			if err != nil {
				return err
			}
			created = stored
			return nil
		}
		err = s.runAtomic(ctx, commit)
		if errors.Is(err, ErrDuplicateNumber) {
			continue
		}
		break
	}
	if err != nil {
		if errors.Is(err, ErrDuplicateNumber) {
			return nil, &StoreUnavailableError{Op: "allocate invoice number", Err: err}
		}
		return nil, s.classify("submit invoice", err)
	}

	s.recordAudit(ctx, actorID, "invoice:create", inv.InvoiceNumber, map[string]any{
		"total": total, "items": len(items),
	})
	return created, nil
}

// Delete removes an invoice and restores the reserved stock in the same
// transaction, keeping the ledger and the stock store consistent.
func (s *Service) Delete(ctx context.Context, id int64, actorID int64) error {
	inv, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return s.classify("load invoice", err)
	}

	err = s.runAtomic(ctx, func(ctx context.Context, repo Repository) error {
		for _, item := range inv.Items {
			if err := repo.IncrementStock(ctx, item.Name, item.Quantity); err != nil {
				// The medicine may have been removed from the catalog since
				// the sale; restoring its stock is then impossible and skipped.
				var notFound *MedicineNotFoundError
				if errors.As(err, &notFound) {
					continue
				}
				return err
			}
		}
		return repo.DeleteInvoice(ctx, id)
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return s.classify("delete invoice", err)
	}

	s.recordAudit(ctx, actorID, "invoice:delete", inv.InvoiceNumber, nil)
	return nil
}

// Get fetches one invoice by id.
func (s *Service) Get(ctx context.Context, id int64) (*Invoice, error) {
	return s.repo.Get(ctx, id)
}

// GetByNumber fetches one invoice by its unique number.
func (s *Service) GetByNumber(ctx context.Context, number string) (*Invoice, error) {
	return s.repo.GetByNumber(ctx, number)
}

// List returns invoices newest first plus the total count.
func (s *Service) List(ctx context.Context, limit, offset int) ([]Invoice, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// validate applies the fail-fast checks of the workflow. No side effects
// occur before this stage passes.
func (s *Service) validate(req CreateInvoiceRequest) ([]LineItem, error) {
	if strings.TrimSpace(req.Customer.Name) == "" {
		return nil, &InvalidInputError{Field: "customer.name", Msg: "customer name required"}
	}
	if len(req.Items) == 0 {
		return nil, &InvalidInputError{Field: "items", Msg: "at least one item required"}
	}

	items := make([]LineItem, 0, len(req.Items))
	for i, item := range req.Items {
		if strings.TrimSpace(item.Name) == "" {
			return nil, &InvalidInputError{Field: "items.name", Item: i + 1, Msg: "item name required"}
		}
		if item.Quantity <= 0 {
			return nil, &InvalidInputError{Field: "items.quantity", Item: i + 1, Msg: "quantity must be greater than 0"}
		}
		if item.Price < 0 {
			return nil, &InvalidInputError{Field: "items.price", Item: i + 1, Msg: "price must be at least 0"}
		}
		items = append(items, LineItem{
			Name:     s.title.String(strings.TrimSpace(item.Name)),
			Quantity: item.Quantity,
			Price:    round2(item.Price),
		})
	}
	return items, nil
}

// runAtomic executes fn in a transaction, re-running it once when the store
// aborts on a snapshot conflict (a concurrent commit touched the same rows).
// The second run sees the fresh state, so a lost race for stock surfaces as
// InsufficientStockError rather than a transient store failure.
func (s *Service) runAtomic(ctx context.Context, fn func(context.Context, Repository) error) error {
	err := s.repo.WithTx(ctx, fn)
	if isSerializationFailure(err) {
		err = s.repo.WithTx(ctx, fn)
	}
	return err
}

// classify keeps the workflow's error taxonomy intact: domain errors pass
// through verbatim, everything else is an infrastructural failure that is
// safe to retry because nothing was committed.
func (s *Service) classify(op string, err error) error {
	var (
		notFound     *MedicineNotFoundError
		insufficient *InsufficientStockError
	)
	if errors.As(err, &notFound) || errors.As(err, &insufficient) {
		return err
	}
	return &StoreUnavailableError{Op: op, Err: err}
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action, number string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "invoice",
		EntityID: number,
		Meta:     meta,
	})
}

func computeTotal(items []LineItem) float64 {
	var total float64
	for _, item := range items {
		total += float64(item.Quantity) * item.Price
	}
	return round2(total)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// generateNumber produces a collision-unlikely invoice number. The store's
// unique constraint is the real guarantee; Submit regenerates on conflict.
func generateNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("INV-%s-%s", now.Format("060102"), suffix)
}
