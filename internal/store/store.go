package store

import (
	"context"
	"errors"

	"botica/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicateCode     = errors.New("duplicate medicine code")
	ErrCatalogFull       = errors.New("catalog at capacity")
	ErrLedgerFull        = errors.New("sales ledger at capacity")
	ErrInvalidRecord     = errors.New("invalid record")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// Repository is the catalog store and sales ledger behind the service
// layer. Implementations own all mutation invariants: unique medicine
// codes, capacity limits, and the atomic stock decrement on sale.
type Repository interface {
	ListMedicines(ctx context.Context) ([]domain.Medicine, error)
	CreateMedicine(ctx context.Context, medicine domain.Medicine) (*domain.Medicine, error)
	GetMedicineByCode(ctx context.Context, code int) (*domain.Medicine, error)
	UpdateMedicine(ctx context.Context, medicine domain.Medicine) (*domain.Medicine, error)
	DeleteMedicine(ctx context.Context, code int) error

	// AppendSale validates stock and ledger capacity, appends the sale
	// and decrements the referenced medicine's stock in one step.
	// It returns the stored sale and the remaining stock.
	AppendSale(ctx context.Context, sale domain.Sale) (*domain.Sale, int, error)
	ListSales(ctx context.Context) ([]domain.Sale, error)
	ClearSales(ctx context.Context) error

	CreateAuditEntry(ctx context.Context, entry domain.AuditEntry) error
	ListAuditEntries(ctx context.Context, limit int) ([]domain.AuditEntry, error)
}
