package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"botica/internal/domain"
	"botica/internal/store"
)

const (
	catalogCSVHeader = "Codigo,Nombre,Precio,Stock,StockCritico,VentaLibre"
	salesCSVHeader   = "Dia,CodigoMedicamento,Cantidad,Importe,DNI"
)

type Service struct {
	repo store.Repository
}

func New(repo store.Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) ListMedicines(ctx context.Context) ([]domain.Medicine, error) {
	return s.repo.ListMedicines(ctx)
}

func (s *Service) AddMedicine(ctx context.Context, req domain.MedicineCreateRequest) (domain.Medicine, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.Medicine{}, fmt.Errorf("%w: name must not be empty", store.ErrInvalidRecord)
	}
	if req.UnitPrice.IsNegative() {
		return domain.Medicine{}, fmt.Errorf("%w: price must not be negative", store.ErrInvalidRecord)
	}
	if req.Stock < 0 {
		return domain.Medicine{}, fmt.Errorf("%w: stock must not be negative", store.ErrInvalidRecord)
	}
	if req.CriticalThreshold < 0 {
		return domain.Medicine{}, fmt.Errorf("%w: critical threshold must not be negative", store.ErrInvalidRecord)
	}

	created, err := s.repo.CreateMedicine(ctx, domain.Medicine{
		Code:                 req.Code,
		Name:                 req.Name,
		UnitPrice:            req.UnitPrice,
		Stock:                req.Stock,
		CriticalThreshold:    req.CriticalThreshold,
		PrescriptionRequired: req.PrescriptionRequired,
	})
	if err != nil {
		return domain.Medicine{}, err
	}
	return *created, nil
}

func (s *Service) GetMedicine(ctx context.Context, code int) (domain.Medicine, error) {
	medicine, err := s.repo.GetMedicineByCode(ctx, code)
	if err != nil {
		return domain.Medicine{}, err
	}
	return *medicine, nil
}

// EditMedicine applies a partial update: only the fields present in the
// request change, each validated the same way AddMedicine validates it.
// The code itself is immutable.
func (s *Service) EditMedicine(ctx context.Context, code int, req domain.MedicineUpdateRequest) (domain.Medicine, error) {
	existing, err := s.repo.GetMedicineByCode(ctx, code)
	if err != nil {
		return domain.Medicine{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Medicine{}, fmt.Errorf("%w: name must not be empty", store.ErrInvalidRecord)
		}
		updated.Name = name
	}
	if req.UnitPrice != nil {
		if req.UnitPrice.IsNegative() {
			return domain.Medicine{}, fmt.Errorf("%w: price must not be negative", store.ErrInvalidRecord)
		}
		updated.UnitPrice = *req.UnitPrice
	}
	if req.Stock != nil {
		if *req.Stock < 0 {
			return domain.Medicine{}, fmt.Errorf("%w: stock must not be negative", store.ErrInvalidRecord)
		}
		updated.Stock = *req.Stock
	}
	if req.CriticalThreshold != nil {
		if *req.CriticalThreshold < 0 {
			return domain.Medicine{}, fmt.Errorf("%w: critical threshold must not be negative", store.ErrInvalidRecord)
		}
		updated.CriticalThreshold = *req.CriticalThreshold
	}
	if req.PrescriptionRequired != nil {
		updated.PrescriptionRequired = *req.PrescriptionRequired
	}

	saved, err := s.repo.UpdateMedicine(ctx, updated)
	if err != nil {
		return domain.Medicine{}, err
	}

	s.logAudit(ctx, domain.AuditActionMedicineEdit, "medicine", strconv.Itoa(saved.Code),
		fmt.Sprintf("name=%s,price=%s,stock=%d,critical=%d,rx=%t",
			saved.Name, saved.UnitPrice.StringFixed(2), saved.Stock, saved.CriticalThreshold, saved.PrescriptionRequired))

	return *saved, nil
}

func (s *Service) RemoveMedicine(ctx context.Context, code int) error {
	existing, err := s.repo.GetMedicineByCode(ctx, code)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteMedicine(ctx, code); err != nil {
		return err
	}
	s.logAudit(ctx, domain.AuditActionMedicineDelete, "medicine", strconv.Itoa(code), existing.Name)
	return nil
}

// RecordSale resolves the medicine, computes the total at the current
// unit price and appends the sale, decrementing stock in the same store
// call. A prescription sale without a buyer id is recorded with the
// unregistered placeholder and flagged on the receipt, never rejected.
func (s *Service) RecordSale(ctx context.Context, req domain.SaleRequest) (domain.SaleReceipt, error) {
	if req.Quantity < 1 {
		return domain.SaleReceipt{}, fmt.Errorf("%w: quantity must be positive", store.ErrInvalidRecord)
	}
	if req.Day < 1 || req.Day > domain.DaysInMonth {
		return domain.SaleReceipt{}, fmt.Errorf("%w: day must be between 1 and %d", store.ErrInvalidRecord, domain.DaysInMonth)
	}

	medicine, err := s.repo.GetMedicineByCode(ctx, req.MedicineCode)
	if err != nil {
		return domain.SaleReceipt{}, err
	}

	buyerID := strings.TrimSpace(req.BuyerID)
	unregistered := false
	if medicine.PrescriptionRequired {
		if buyerID == "" || buyerID == domain.UnregisteredBuyerID {
			buyerID = domain.UnregisteredBuyerID
			unregistered = true
			log.Printf("[service] WARNING: prescription sale of code %d without buyer id", medicine.Code)
		}
	} else {
		buyerID = domain.UnregisteredBuyerID
	}

	sale := domain.Sale{
		Day:          req.Day,
		MedicineCode: medicine.Code,
		Quantity:     req.Quantity,
		TotalAmount:  medicine.UnitPrice.Mul(decimal.NewFromInt(int64(req.Quantity))),
		BuyerID:      buyerID,
	}

	recorded, remaining, err := s.repo.AppendSale(ctx, sale)
	if err != nil {
		return domain.SaleReceipt{}, err
	}

	return domain.SaleReceipt{
		Sale:              *recorded,
		RemainingStock:    remaining,
		BuyerUnregistered: unregistered,
	}, nil
}

func (s *Service) MonthlySummary(ctx context.Context) (domain.MonthlySummary, error) {
	sales, err := s.repo.ListSales(ctx)
	if err != nil {
		return domain.MonthlySummary{}, err
	}

	summary := domain.MonthlySummary{
		TotalAmount: decimal.Zero,
		SalesPerDay: make(map[int]int),
	}
	for _, sale := range sales {
		summary.TotalAmount = summary.TotalAmount.Add(sale.TotalAmount)
		summary.SalesPerDay[sale.Day]++
		summary.Operations++
	}
	return summary, nil
}

func (s *Service) DaySummary(ctx context.Context, day int) (domain.DaySummary, error) {
	if day < 1 || day > domain.DaysInMonth {
		return domain.DaySummary{}, fmt.Errorf("%w: day must be between 1 and %d", store.ErrInvalidRecord, domain.DaysInMonth)
	}

	sales, err := s.repo.ListSales(ctx)
	if err != nil {
		return domain.DaySummary{}, err
	}

	summary := domain.DaySummary{Day: day, TotalAmount: decimal.Zero}
	for _, sale := range sales {
		if sale.Day != day {
			continue
		}
		summary.TotalAmount = summary.TotalAmount.Add(sale.TotalAmount)
		summary.Operations++
	}
	return summary, nil
}

// PrescriptionRecords returns the sales of prescription-required
// medicines. Sales whose code no longer resolves (the medicine was
// deleted after the sale) are included: an unresolvable code is treated
// as prescription-required.
func (s *Service) PrescriptionRecords(ctx context.Context) ([]domain.Sale, error) {
	sales, err := s.repo.ListSales(ctx)
	if err != nil {
		return nil, err
	}

	records := make([]domain.Sale, 0, len(sales))
	for _, sale := range sales {
		medicine, err := s.repo.GetMedicineByCode(ctx, sale.MedicineCode)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				records = append(records, sale)
				continue
			}
			return nil, err
		}
		if medicine.PrescriptionRequired {
			records = append(records, sale)
		}
	}
	return records, nil
}

// BelowCriticalStock lists medicines at or below their reorder
// threshold, in catalog order.
func (s *Service) BelowCriticalStock(ctx context.Context) ([]domain.Medicine, error) {
	medicines, err := s.repo.ListMedicines(ctx)
	if err != nil {
		return nil, err
	}

	flagged := make([]domain.Medicine, 0, len(medicines))
	for _, medicine := range medicines {
		if medicine.Stock <= medicine.CriticalThreshold {
			flagged = append(flagged, medicine)
		}
	}
	return flagged, nil
}

// ResetMonth clears the sales ledger irreversibly. The catalog is left
// untouched.
func (s *Service) ResetMonth(ctx context.Context) error {
	if err := s.repo.ClearSales(ctx); err != nil {
		return err
	}
	s.logAudit(ctx, domain.AuditActionMonthReset, "ledger", "", "all sales cleared")
	return nil
}

// CatalogCSV renders the catalog with the fixed header and column
// order. Commas inside names become spaces so the column count holds.
func (s *Service) CatalogCSV(ctx context.Context) (string, error) {
	medicines, err := s.repo.ListMedicines(ctx)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(catalogCSVHeader)
	b.WriteByte('\n')
	for _, medicine := range medicines {
		safeName := strings.ReplaceAll(medicine.Name, ",", " ")
		fmt.Fprintf(&b, "%d,%s,%s,%d,%d,%d\n",
			medicine.Code, safeName, medicine.UnitPrice.StringFixed(2),
			medicine.Stock, medicine.CriticalThreshold, boolToInt(medicine.OTC()))
	}
	return b.String(), nil
}

func (s *Service) SalesCSV(ctx context.Context) (string, error) {
	sales, err := s.repo.ListSales(ctx)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(salesCSVHeader)
	b.WriteByte('\n')
	for _, sale := range sales {
		fmt.Fprintf(&b, "%d,%d,%d,%s,%s\n",
			sale.Day, sale.MedicineCode, sale.Quantity,
			sale.TotalAmount.StringFixed(2), sale.BuyerID)
	}
	return b.String(), nil
}

// WriteCatalogCSV writes the catalog export to a flat file.
func (s *Service) WriteCatalogCSV(ctx context.Context, path string) error {
	csv, err := s.CatalogCSV(ctx)
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(csv), 0o644)
}

func (s *Service) AuditTrail(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	if limit < 1 {
		limit = 50
	}
	return s.repo.ListAuditEntries(ctx, limit)
}

// NoteOwnerSecretChanged records the password change in the audit
// trail. The guard itself never touches the store.
func (s *Service) NoteOwnerSecretChanged(ctx context.Context) {
	s.logAudit(ctx, domain.AuditActionSecretChange, "owner", "", "owner secret rotated")
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	err := s.repo.CreateAuditEntry(ctx, domain.AuditEntry{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Detail:     detail,
	})
	if err != nil {
		log.Printf("[service] WARN: failed to record audit entry action=%s: %v", action, err)
	}
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
