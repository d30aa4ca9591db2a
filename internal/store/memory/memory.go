package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"botica/internal/domain"
	"botica/internal/store"
)

const (
	DefaultCatalogCapacity = 200
	DefaultLedgerCapacity  = 5000
)

// Store keeps the whole pharmacy state in process memory: the medicine
// catalog keyed by code, the current month's sales ledger in append
// order, and the audit trail. Nothing survives a restart.
type Store struct {
	mu              sync.RWMutex
	medicines       map[int]domain.Medicine
	order           []int
	sales           []domain.Sale
	audit           []domain.AuditEntry
	catalogCapacity int
	ledgerCapacity  int
}

func New(catalogCapacity int, ledgerCapacity int) *Store {
	if catalogCapacity < 1 {
		catalogCapacity = DefaultCatalogCapacity
	}
	if ledgerCapacity < 1 {
		ledgerCapacity = DefaultLedgerCapacity
	}
	return &Store{
		medicines:       make(map[int]domain.Medicine),
		order:           make([]int, 0, 64),
		sales:           make([]domain.Sale, 0, 128),
		audit:           make([]domain.AuditEntry, 0, 64),
		catalogCapacity: catalogCapacity,
		ledgerCapacity:  ledgerCapacity,
	}
}

func (s *Store) ListMedicines(_ context.Context) ([]domain.Medicine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	medicines := make([]domain.Medicine, 0, len(s.order))
	for _, code := range s.order {
		medicines = append(medicines, s.medicines[code])
	}
	return medicines, nil
}

func (s *Store) CreateMedicine(_ context.Context, medicine domain.Medicine) (*domain.Medicine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if medicine.Name == "" || medicine.UnitPrice.IsNegative() {
		return nil, store.ErrInvalidRecord
	}
	if medicine.Stock < 0 || medicine.CriticalThreshold < 0 {
		return nil, store.ErrInvalidRecord
	}
	if _, exists := s.medicines[medicine.Code]; exists {
		return nil, store.ErrDuplicateCode
	}
	if len(s.order) >= s.catalogCapacity {
		return nil, store.ErrCatalogFull
	}

	s.medicines[medicine.Code] = medicine
	s.order = append(s.order, medicine.Code)
	created := medicine
	return &created, nil
}

func (s *Store) GetMedicineByCode(_ context.Context, code int) (*domain.Medicine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	medicine, exists := s.medicines[code]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyMedicine := medicine
	return &copyMedicine, nil
}

func (s *Store) UpdateMedicine(_ context.Context, medicine domain.Medicine) (*domain.Medicine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if medicine.Name == "" || medicine.UnitPrice.IsNegative() {
		return nil, store.ErrInvalidRecord
	}
	if medicine.Stock < 0 || medicine.CriticalThreshold < 0 {
		return nil, store.ErrInvalidRecord
	}
	if _, exists := s.medicines[medicine.Code]; !exists {
		return nil, store.ErrNotFound
	}

	s.medicines[medicine.Code] = medicine
	updated := medicine
	return &updated, nil
}

// DeleteMedicine removes the record and keeps the remaining catalog in
// its original relative order. Historical sales keep the stale code.
func (s *Store) DeleteMedicine(_ context.Context, code int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.medicines[code]; !exists {
		return store.ErrNotFound
	}
	delete(s.medicines, code)
	s.order = slices.DeleteFunc(s.order, func(c int) bool { return c == code })
	return nil
}

func (s *Store) AppendSale(_ context.Context, sale domain.Sale) (*domain.Sale, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sale.Quantity < 1 || sale.Day < 1 || sale.Day > domain.DaysInMonth {
		return nil, 0, store.ErrInvalidRecord
	}
	medicine, exists := s.medicines[sale.MedicineCode]
	if !exists {
		return nil, 0, store.ErrNotFound
	}
	if sale.Quantity > medicine.Stock {
		return nil, 0, store.ErrInsufficientStock
	}
	if len(s.sales) >= s.ledgerCapacity {
		return nil, 0, store.ErrLedgerFull
	}

	if sale.ID == "" {
		sale.ID = uuid.NewString()
	}
	if sale.BuyerID == "" {
		sale.BuyerID = domain.UnregisteredBuyerID
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}

	medicine.Stock -= sale.Quantity
	s.medicines[sale.MedicineCode] = medicine
	s.sales = append(s.sales, sale)

	recorded := sale
	return &recorded, medicine.Stock, nil
}

func (s *Store) ListSales(_ context.Context) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.Sale, len(s.sales))
	copy(sales, s.sales)
	return sales, nil
}

func (s *Store) ClearSales(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sales = s.sales[:0]
	return nil
}

func (s *Store) CreateAuditEntry(_ context.Context, entry domain.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.audit = append(s.audit, entry)
	return nil
}

func (s *Store) ListAuditEntries(_ context.Context, limit int) ([]domain.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditEntry, len(s.audit))
	copy(result, s.audit)
	slices.SortFunc(result, func(a, b domain.AuditEntry) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func cmpString(a string, b string) int {
	if a == b {
		return 0
	}
	if a < b {
		return -1
	}
	return 1
}
