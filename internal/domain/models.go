package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// UnregisteredBuyerID is recorded on a prescription sale when the buyer
// did not supply an identifier. The sale is still accepted; callers are
// expected to surface a warning.
const UnregisteredBuyerID = "-"

// DaysInMonth bounds the day field of a sale.
const DaysInMonth = 31

type Medicine struct {
	Code                 int             `json:"code"`
	Name                 string          `json:"name"`
	UnitPrice            decimal.Decimal `json:"unit_price"`
	Stock                int             `json:"stock"`
	CriticalThreshold    int             `json:"critical_threshold"`
	PrescriptionRequired bool            `json:"prescription_required"`
}

// OTC reports whether the medicine sells over the counter.
func (m Medicine) OTC() bool {
	return !m.PrescriptionRequired
}

type MedicineCreateRequest struct {
	Code                 int             `json:"code"`
	Name                 string          `json:"name"`
	UnitPrice            decimal.Decimal `json:"unit_price"`
	Stock                int             `json:"stock"`
	CriticalThreshold    int             `json:"critical_threshold"`
	PrescriptionRequired bool            `json:"prescription_required"`
}

// MedicineUpdateRequest carries a partial edit: nil fields keep the
// current value. Code is immutable and therefore absent.
type MedicineUpdateRequest struct {
	Name                 *string          `json:"name,omitempty"`
	UnitPrice            *decimal.Decimal `json:"unit_price,omitempty"`
	Stock                *int             `json:"stock,omitempty"`
	CriticalThreshold    *int             `json:"critical_threshold,omitempty"`
	PrescriptionRequired *bool            `json:"prescription_required,omitempty"`
}

type Sale struct {
	ID           string          `json:"id"`
	Day          int             `json:"day"`
	MedicineCode int             `json:"medicine_code"`
	Quantity     int             `json:"quantity"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	BuyerID      string          `json:"buyer_id"`
	CreatedAt    time.Time       `json:"created_at"`
}

type SaleRequest struct {
	MedicineCode int    `json:"medicine_code"`
	Quantity     int    `json:"quantity"`
	Day          int    `json:"day"`
	BuyerID      string `json:"buyer_id,omitempty"`
}

// SaleReceipt is what a successful sale hands back to the caller.
// BuyerUnregistered is set when a prescription sale went through
// without a buyer identifier.
type SaleReceipt struct {
	Sale              Sale `json:"sale"`
	RemainingStock    int  `json:"remaining_stock"`
	BuyerUnregistered bool `json:"buyer_unregistered"`
}

type MonthlySummary struct {
	TotalAmount decimal.Decimal `json:"total_amount"`
	SalesPerDay map[int]int     `json:"sales_per_day"`
	Operations  int             `json:"operations"`
}

type DaySummary struct {
	Day         int             `json:"day"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Operations  int             `json:"operations"`
}

type AuditEntry struct {
	ID         string    `json:"id"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Detail     string    `json:"detail"`
	CreatedAt  time.Time `json:"created_at"`
}

const (
	AuditActionMedicineEdit   = "medicine_edit"
	AuditActionMedicineDelete = "medicine_delete"
	AuditActionMonthReset     = "month_reset"
	AuditActionSecretChange   = "secret_change"
)
