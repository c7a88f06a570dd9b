package invoices

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	mu            sync.Mutex
	stock         map[string]*StockEntry
	invoices      map[int64]*Invoice
	byNumber      map[string]int64
	nextID        int64
	dupRemaining  int
	conflictsLeft int
	conflictDrain func()
	insertErr     error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		stock:    make(map[string]*StockEntry),
		invoices: make(map[int64]*Invoice),
		byNumber: make(map[string]int64),
	}
}

func (r *memoryRepo) addStock(name string, qty int, price float64) {
	r.stock[name] = &StockEntry{Name: name, Quantity: qty, Price: price}
}

func (r *memoryRepo) stockQty(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.stock[name]; ok {
		return s.Quantity
	}
	return -1
}

func (r *memoryRepo) invoiceCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.invoices)
}

// WithTx serialises transactions and restores the pre-transaction state when
// fn fails, mirroring the all-or-nothing contract of the real store.
func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// A pending conflict aborts the transaction the way a concurrent commit
	// would, applying that commit's effect before the caller retries.
	if r.conflictsLeft > 0 {
		r.conflictsLeft--
		if r.conflictDrain != nil {
			r.conflictDrain()
		}
		return &pgconn.PgError{Code: "40001", Message: "could not serialize access due to concurrent update"}
	}

	stockSnapshot := make(map[string]StockEntry, len(r.stock))
	for name, s := range r.stock {
		stockSnapshot[name] = *s
	}
	savedIDs := make(map[int64]bool, len(r.invoices))
	for id := range r.invoices {
		savedIDs[id] = true
	}

	err := fn(ctx, &memoryTx{repo: r})
	if err != nil {
		for name := range r.stock {
			saved := stockSnapshot[name]
			*r.stock[name] = saved
		}
		for id, inv := range r.invoices {
			if !savedIDs[id] {
				delete(r.byNumber, inv.InvoiceNumber)
				delete(r.invoices, id)
			}
		}
		return err
	}
	return nil
}

func (r *memoryRepo) GetStock(ctx context.Context, name string) (*StockEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (&memoryTx{repo: r}).GetStock(ctx, name)
}

func (r *memoryRepo) DecrementStock(ctx context.Context, name string, qty int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (&memoryTx{repo: r}).DecrementStock(ctx, name, qty)
}

func (r *memoryRepo) IncrementStock(ctx context.Context, name string, qty int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (&memoryTx{repo: r}).IncrementStock(ctx, name, qty)
}

func (r *memoryRepo) InsertInvoice(ctx context.Context, inv Invoice) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (&memoryTx{repo: r}).InsertInvoice(ctx, inv)
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (*Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (&memoryTx{repo: r}).Get(ctx, id)
}

func (r *memoryRepo) GetByNumber(ctx context.Context, number string) (*Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (&memoryTx{repo: r}).GetByNumber(ctx, number)
}

func (r *memoryRepo) List(ctx context.Context, limit, offset int) ([]Invoice, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (&memoryTx{repo: r}).List(ctx, limit, offset)
}

func (r *memoryRepo) DeleteInvoice(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (&memoryTx{repo: r}).DeleteInvoice(ctx, id)
}

// memoryTx operates on the repo while the transaction lock is held.
type memoryTx struct {
	repo *memoryRepo
}

func (tx *memoryTx) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, tx)
}

func (tx *memoryTx) GetStock(ctx context.Context, name string) (*StockEntry, error) {
	s, ok := tx.repo.stock[name]
	if !ok {
		return nil, &MedicineNotFoundError{Name: name}
	}
	copied := *s
	return &copied, nil
}

func (tx *memoryTx) DecrementStock(ctx context.Context, name string, qty int) error {
	s, ok := tx.repo.stock[name]
	if !ok {
		return &MedicineNotFoundError{Name: name}
	}
	if s.Quantity < qty {
		return &InsufficientStockError{Name: name, Requested: qty, Available: s.Quantity}
	}
	s.Quantity -= qty
	return nil
}

func (tx *memoryTx) IncrementStock(ctx context.Context, name string, qty int) error {
	s, ok := tx.repo.stock[name]
	if !ok {
		return &MedicineNotFoundError{Name: name}
	}
	s.Quantity += qty
	return nil
}

func (tx *memoryTx) InsertInvoice(ctx context.Context, inv Invoice) (int64, error) {
	if tx.repo.insertErr != nil {
		return 0, tx.repo.insertErr
	}
	if tx.repo.dupRemaining > 0 {
		tx.repo.dupRemaining--
		return 0, ErrDuplicateNumber
	}
	if _, exists := tx.repo.byNumber[inv.InvoiceNumber]; exists {
		return 0, ErrDuplicateNumber
	}
	tx.repo.nextID++
	stored := inv
	stored.ID = tx.repo.nextID
	tx.repo.invoices[stored.ID] = &stored
	tx.repo.byNumber[stored.InvoiceNumber] = stored.ID
	return stored.ID, nil
}

func (tx *memoryTx) Get(ctx context.Context, id int64) (*Invoice, error) {
	inv, ok := tx.repo.invoices[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *inv
	return &copied, nil
}

func (tx *memoryTx) GetByNumber(ctx context.Context, number string) (*Invoice, error) {
	id, ok := tx.repo.byNumber[number]
	if !ok {
		return nil, ErrNotFound
	}
	return tx.Get(ctx, id)
}

func (tx *memoryTx) List(ctx context.Context, limit, offset int) ([]Invoice, int, error) {
	var list []Invoice
	for _, inv := range tx.repo.invoices {
		list = append(list, *inv)
	}
	return list, len(list), nil
}

func (tx *memoryTx) DeleteInvoice(ctx context.Context, id int64) error {
	inv, ok := tx.repo.invoices[id]
	if !ok {
		return ErrNotFound
	}
	delete(tx.repo.byNumber, inv.InvoiceNumber)
	delete(tx.repo.invoices, id)
	return nil
}

func draft(customer string, items ...CreateLineItemRequest) CreateInvoiceRequest {
	var req CreateInvoiceRequest
	req.Customer.Name = customer
	req.Items = items
	return req
}

func TestSubmitSuccess(t *testing.T) {
	repo := newMemoryRepo()
	repo.addStock("Paracetamol", 50, 10)
	svc := NewService(repo, nil)
	ctx := context.Background()

	inv, err := svc.Submit(ctx, draft("Ravi", CreateLineItemRequest{Name: "Paracetamol", Quantity: 2, Price: 10}), 1)
	require.NoError(t, err)
	require.Equal(t, "Ravi", inv.CustomerName)
	require.Equal(t, StatusPending, inv.Status)
	require.InDelta(t, 20.0, inv.TotalAmount, 0.001)
	require.Len(t, inv.Items, 1)
	require.Contains(t, inv.InvoiceNumber, "INV-")
	require.Equal(t, 48, repo.stockQty("Paracetamol"))

	fetched, err := svc.GetByNumber(ctx, inv.InvoiceNumber)
	require.NoError(t, err)
	require.Equal(t, inv.Items, fetched.Items)
	require.Equal(t, inv.CustomerName, fetched.CustomerName)
	require.InDelta(t, inv.TotalAmount, fetched.TotalAmount, 0.001)
}

func TestSubmitNormalizesMedicineNames(t *testing.T) {
	repo := newMemoryRepo()
	repo.addStock("Paracetamol", 10, 5)
	svc := NewService(repo, nil)

	inv, err := svc.Submit(context.Background(), draft("Ravi", CreateLineItemRequest{Name: "paracetamol", Quantity: 1, Price: 5}), 1)
	require.NoError(t, err)
	require.Equal(t, "Paracetamol", inv.Items[0].Name)
	require.Equal(t, 9, repo.stockQty("Paracetamol"))
}

func TestSubmitMatchingDeclaredTotal(t *testing.T) {
	repo := newMemoryRepo()
	repo.addStock("Ibuprofen", 20, 12.5)
	svc := NewService(repo, nil)

	declared := 37.5
	req := draft("Asha", CreateLineItemRequest{Name: "Ibuprofen", Quantity: 3, Price: 12.5})
	req.TotalAmount = &declared

	inv, err := svc.Submit(context.Background(), req, 1)
	require.NoError(t, err)
	require.InDelta(t, 37.5, inv.TotalAmount, 0.001)
}

func TestSubmitTotalMismatch(t *testing.T) {
	repo := newMemoryRepo()
	repo.addStock("Ibuprofen", 20, 12.5)
	svc := NewService(repo, nil)

	declared := 40.0
	req := draft("Asha", CreateLineItemRequest{Name: "Ibuprofen", Quantity: 3, Price: 12.5})
	req.TotalAmount = &declared

	_, err := svc.Submit(context.Background(), req, 1)
	var mismatch *TotalMismatchError
	require.ErrorAs(t, err, &mismatch)
	require.InDelta(t, 40.0, mismatch.Declared, 0.001)
	require.InDelta(t, 37.5, mismatch.Computed, 0.001)
	require.Equal(t, 20, repo.stockQty("Ibuprofen"))
	require.Zero(t, repo.invoiceCount())
}

func TestSubmitValidation(t *testing.T) {
	cases := []struct {
		name  string
		req   CreateInvoiceRequest
		field string
		item  int
	}{
		{"missing customer", draft("  ", CreateLineItemRequest{Name: "X", Quantity: 1, Price: 1}), "customer.name", 0},
		{"no items", draft("Ravi"), "items", 0},
		{"blank item name", draft("Ravi", CreateLineItemRequest{Name: " ", Quantity: 1, Price: 1}), "items.name", 1},
		{"zero quantity", draft("Ravi", CreateLineItemRequest{Name: "X", Quantity: 0, Price: 1}), "items.quantity", 1},
		{"negative price", draft("Ravi", CreateLineItemRequest{Name: "X", Quantity: 1, Price: -1}), "items.price", 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := newMemoryRepo()
			repo.addStock("X", 5, 1)
			svc := NewService(repo, nil)

			_, err := svc.Submit(context.Background(), tc.req, 1)
			var invalid *InvalidInputError
			require.ErrorAs(t, err, &invalid)
			require.Equal(t, tc.field, invalid.Field)
			require.Equal(t, tc.item, invalid.Item)

			// Failures are idempotent: the same draft fails identically and
			// leaves no side effects either time.
			_, second := svc.Submit(context.Background(), tc.req, 1)
			require.Equal(t, err.Error(), second.Error())
			require.Equal(t, 5, repo.stockQty("X"))
			require.Zero(t, repo.invoiceCount())
		})
	}
}

func TestSubmitUnknownMedicine(t *testing.T) {
	repo := newMemoryRepo()
	repo.addStock("Paracetamol", 50, 10)
	svc := NewService(repo, nil)

	_, err := svc.Submit(context.Background(), draft("Ravi", CreateLineItemRequest{Name: "Unknown Drug", Quantity: 1, Price: 5}), 1)
	var notFound *MedicineNotFoundError
	require.ErrorAs(t, err, &notFound)
	require.Equal(t, "Unknown Drug", notFound.Name)
	require.Equal(t, 50, repo.stockQty("Paracetamol"))
	require.Zero(t, repo.invoiceCount())
}

func TestSubmitInsufficientStock(t *testing.T) {
	repo := newMemoryRepo()
	repo.addStock("Paracetamol", 3, 10)
	svc := NewService(repo, nil)

	_, err := svc.Submit(context.Background(), draft("Ravi", CreateLineItemRequest{Name: "Paracetamol", Quantity: 5, Price: 10}), 1)
	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	require.Equal(t, "Paracetamol", insufficient.Name)
	require.Equal(t, 5, insufficient.Requested)
	require.Equal(t, 3, insufficient.Available)
	require.Equal(t, 3, repo.stockQty("Paracetamol"))
	require.Zero(t, repo.invoiceCount())
}

func TestSubmitRollsBackOnPartialFailure(t *testing.T) {
	repo := newMemoryRepo()
	repo.addStock("Paracetamol", 50, 10)
	repo.addStock("Ibuprofen", 1, 8)
	svc := NewService(repo, nil)

	// Second line exceeds stock: the first line's decrement must not survive.
	// The pre-check is bypassed by draining Ibuprofen between check and
	// commit in real races; here the draft simply over-asks.
	_, err := svc.Submit(context.Background(), draft("Ravi",
		CreateLineItemRequest{Name: "Paracetamol", Quantity: 2, Price: 10},
		CreateLineItemRequest{Name: "Ibuprofen", Quantity: 5, Price: 8},
	), 1)
	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	require.Equal(t, 50, repo.stockQty("Paracetamol"))
	require.Equal(t, 1, repo.stockQty("Ibuprofen"))
	require.Zero(t, repo.invoiceCount())
}

func TestSubmitRetriesDuplicateNumber(t *testing.T) {
	repo := newMemoryRepo()
	repo.addStock("Paracetamol", 50, 10)
	repo.dupRemaining = 2
	svc := NewService(repo, nil)

	inv, err := svc.Submit(context.Background(), draft("Ravi", CreateLineItemRequest{Name: "Paracetamol", Quantity: 2, Price: 10}), 1)
	require.NoError(t, err)
	require.NotEmpty(t, inv.InvoiceNumber)
	require.Equal(t, 48, repo.stockQty("Paracetamol"))
}

func TestSubmitGivesUpAfterBoundedNumberAttempts(t *testing.T) {
	repo := newMemoryRepo()
	repo.addStock("Paracetamol", 50, 10)
	repo.dupRemaining = maxNumberAttempts
	svc := NewService(repo, nil)

	_, err := svc.Submit(context.Background(), draft("Ravi", CreateLineItemRequest{Name: "Paracetamol", Quantity: 2, Price: 10}), 1)
	var unavailable *StoreUnavailableError
	require.ErrorAs(t, err, &unavailable)
	require.ErrorIs(t, err, ErrDuplicateNumber)
	require.Equal(t, 50, repo.stockQty("Paracetamol"))
	require.Zero(t, repo.invoiceCount())
}

func TestSubmitStoreFailure(t *testing.T) {
	repo := newMemoryRepo()
	repo.addStock("Paracetamol", 50, 10)
	repo.insertErr = errors.New("connection reset")
	svc := NewService(repo, nil)

	_, err := svc.Submit(context.Background(), draft("Ravi", CreateLineItemRequest{Name: "Paracetamol", Quantity: 2, Price: 10}), 1)
	var unavailable *StoreUnavailableError
	require.ErrorAs(t, err, &unavailable)
	require.Equal(t, 50, repo.stockQty("Paracetamol"))
	require.Zero(t, repo.invoiceCount())
}

// readFailRepo refuses reads outside a transaction; a submitted sale must be
// reported from state captured before the commit, never from a later read.
type readFailRepo struct {
	*memoryRepo
}

func (r *readFailRepo) Get(ctx context.Context, id int64) (*Invoice, error) {
	return nil, errors.New("connection reset by peer")
}

func (r *readFailRepo) GetByNumber(ctx context.Context, number string) (*Invoice, error) {
	return nil, errors.New("connection reset by peer")
}

func TestSubmitReturnsStoredInvoiceWhenLaterReadsFail(t *testing.T) {
	base := newMemoryRepo()
	base.addStock("Paracetamol", 50, 10)
	svc := NewService(&readFailRepo{memoryRepo: base}, nil)

	inv, err := svc.Submit(context.Background(), draft("Ravi", CreateLineItemRequest{Name: "Paracetamol", Quantity: 2, Price: 10}), 1)
	require.NoError(t, err)
	require.NotNil(t, inv)
	require.NotZero(t, inv.ID)
	require.InDelta(t, 20.0, inv.TotalAmount, 0.001)
	require.Len(t, inv.Items, 1)
	require.Equal(t, 48, base.stockQty("Paracetamol"))
	require.Equal(t, 1, base.invoiceCount())
}

func TestSubmitRetriesAfterSnapshotConflict(t *testing.T) {
	repo := newMemoryRepo()
	repo.addStock("Amoxicillin", 10, 20)
	repo.conflictsLeft = 1
	svc := NewService(repo, nil)

	inv, err := svc.Submit(context.Background(), draft("Ravi", CreateLineItemRequest{Name: "Amoxicillin", Quantity: 3, Price: 20}), 1)
	require.NoError(t, err)
	require.InDelta(t, 60.0, inv.TotalAmount, 0.001)
	require.Equal(t, 7, repo.stockQty("Amoxicillin"))
	require.Equal(t, 1, repo.invoiceCount())
}

func TestSubmitLostRaceSurfacesInsufficientStock(t *testing.T) {
	// The winner of an overlapping submission drains the stock below the
	// request; the loser's transaction aborts on the snapshot conflict and
	// the re-run must observe the shortage, not a transient store failure.
	repo := newMemoryRepo()
	repo.addStock("Amoxicillin", 5, 20)
	repo.conflictsLeft = 1
	repo.conflictDrain = func() { repo.stock["Amoxicillin"].Quantity -= 3 }
	svc := NewService(repo, nil)

	_, err := svc.Submit(context.Background(), draft("Ravi", CreateLineItemRequest{Name: "Amoxicillin", Quantity: 3, Price: 20}), 1)
	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	require.Equal(t, 3, insufficient.Requested)
	require.Equal(t, 2, insufficient.Available)
	require.Equal(t, 2, repo.stockQty("Amoxicillin"))
	require.Zero(t, repo.invoiceCount())
}

func TestSubmitConcurrentStockRace(t *testing.T) {
	repo := newMemoryRepo()
	repo.addStock("Amoxicillin", 5, 20)
	svc := NewService(repo, nil)

	results := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Submit(context.Background(), draft("Racer", CreateLineItemRequest{Name: "Amoxicillin", Quantity: 3, Price: 20}), 1)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var successes, stockFailures int
	for err := range results {
		if err == nil {
			successes++
			continue
		}
		var insufficient *InsufficientStockError
		require.ErrorAs(t, err, &insufficient)
		stockFailures++
	}
	require.Equal(t, 1, successes)
	require.Equal(t, 1, stockFailures)
	require.Equal(t, 2, repo.stockQty("Amoxicillin"))
	require.Equal(t, 1, repo.invoiceCount())
}

func TestDeleteRestoresStock(t *testing.T) {
	repo := newMemoryRepo()
	repo.addStock("Paracetamol", 50, 10)
	svc := NewService(repo, nil)
	ctx := context.Background()

	inv, err := svc.Submit(ctx, draft("Ravi", CreateLineItemRequest{Name: "Paracetamol", Quantity: 2, Price: 10}), 1)
	require.NoError(t, err)
	require.Equal(t, 48, repo.stockQty("Paracetamol"))

	require.NoError(t, svc.Delete(ctx, inv.ID, 1))
	require.Equal(t, 50, repo.stockQty("Paracetamol"))
	require.Zero(t, repo.invoiceCount())

	require.ErrorIs(t, svc.Delete(ctx, inv.ID, 1), ErrNotFound)
}
