package service

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"botica/internal/domain"
	"botica/internal/store"
	"botica/internal/store/memory"
)

func newTestService() *Service {
	return New(memory.New(0, 0))
}

func addParacetamol(t *testing.T, svc *Service) domain.Medicine {
	t.Helper()
	created, err := svc.AddMedicine(context.Background(), domain.MedicineCreateRequest{
		Code:              1,
		Name:              "Paracetamol",
		UnitPrice:         decimal.RequireFromString("10.00"),
		Stock:             100,
		CriticalThreshold: 10,
	})
	if err != nil {
		t.Fatalf("add medicine failed: %v", err)
	}
	return created
}

func TestAddMedicineValidation(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	cases := []struct {
		name string
		req  domain.MedicineCreateRequest
	}{
		{"empty name", domain.MedicineCreateRequest{Code: 1, Name: "  ", UnitPrice: decimal.NewFromInt(1)}},
		{"negative price", domain.MedicineCreateRequest{Code: 1, Name: "X", UnitPrice: decimal.NewFromInt(-1)}},
		{"negative stock", domain.MedicineCreateRequest{Code: 1, Name: "X", UnitPrice: decimal.NewFromInt(1), Stock: -1}},
		{"negative threshold", domain.MedicineCreateRequest{Code: 1, Name: "X", UnitPrice: decimal.NewFromInt(1), CriticalThreshold: -1}},
	}
	for _, tc := range cases {
		if _, err := svc.AddMedicine(ctx, tc.req); !errors.Is(err, store.ErrInvalidRecord) {
			t.Fatalf("%s: expected ErrInvalidRecord, got %v", tc.name, err)
		}
	}
}

func TestSellParacetamolScenario(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	addParacetamol(t, svc)

	receipt, err := svc.RecordSale(ctx, domain.SaleRequest{MedicineCode: 1, Quantity: 5, Day: 3})
	if err != nil {
		t.Fatalf("sale failed: %v", err)
	}
	if !receipt.Sale.TotalAmount.Equal(decimal.RequireFromString("50.00")) {
		t.Fatalf("expected total 50.00, got %s", receipt.Sale.TotalAmount)
	}
	if receipt.RemainingStock != 95 {
		t.Fatalf("expected stock 95, got %d", receipt.RemainingStock)
	}

	day, err := svc.DaySummary(ctx, 3)
	if err != nil {
		t.Fatalf("day summary failed: %v", err)
	}
	if day.Operations != 1 || !day.TotalAmount.Equal(decimal.RequireFromString("50.00")) {
		t.Fatalf("unexpected day summary: %+v", day)
	}
}

func TestRecordSaleInsufficientStockLeavesStateUnchanged(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	if _, err := svc.AddMedicine(ctx, domain.MedicineCreateRequest{
		Code:                 2,
		Name:                 "Clonazepam",
		UnitPrice:            decimal.RequireFromString("20.00"),
		Stock:                3,
		PrescriptionRequired: true,
	}); err != nil {
		t.Fatalf("add medicine failed: %v", err)
	}

	_, err := svc.RecordSale(ctx, domain.SaleRequest{MedicineCode: 2, Quantity: 5, Day: 1})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	m, err := svc.GetMedicine(ctx, 2)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if m.Stock != 3 {
		t.Fatalf("stock changed by failed sale: %d", m.Stock)
	}
	summary, _ := svc.MonthlySummary(ctx)
	if summary.Operations != 0 {
		t.Fatalf("ledger changed by failed sale: %d operations", summary.Operations)
	}
}

func TestRecordSaleValidatesQuantityAndDay(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	addParacetamol(t, svc)

	if _, err := svc.RecordSale(ctx, domain.SaleRequest{MedicineCode: 1, Quantity: 0, Day: 3}); !errors.Is(err, store.ErrInvalidRecord) {
		t.Fatalf("expected invalid quantity error, got %v", err)
	}
	if _, err := svc.RecordSale(ctx, domain.SaleRequest{MedicineCode: 1, Quantity: 1, Day: 32}); !errors.Is(err, store.ErrInvalidRecord) {
		t.Fatalf("expected invalid day error, got %v", err)
	}
	if _, err := svc.RecordSale(ctx, domain.SaleRequest{MedicineCode: 99, Quantity: 1, Day: 3}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestPrescriptionSaleWithoutBuyerWarnsButRecords(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	if _, err := svc.AddMedicine(ctx, domain.MedicineCreateRequest{
		Code:                 3,
		Name:                 "Alprazolam",
		UnitPrice:            decimal.RequireFromString("15.00"),
		Stock:                10,
		PrescriptionRequired: true,
	}); err != nil {
		t.Fatalf("add medicine failed: %v", err)
	}

	receipt, err := svc.RecordSale(ctx, domain.SaleRequest{MedicineCode: 3, Quantity: 1, Day: 5})
	if err != nil {
		t.Fatalf("sale failed: %v", err)
	}
	if !receipt.BuyerUnregistered {
		t.Fatalf("expected unregistered-buyer warning")
	}
	if receipt.Sale.BuyerID != domain.UnregisteredBuyerID {
		t.Fatalf("expected placeholder buyer id, got %q", receipt.Sale.BuyerID)
	}

	withBuyer, err := svc.RecordSale(ctx, domain.SaleRequest{MedicineCode: 3, Quantity: 1, Day: 5, BuyerID: "30123456"})
	if err != nil {
		t.Fatalf("sale with buyer failed: %v", err)
	}
	if withBuyer.BuyerUnregistered || withBuyer.Sale.BuyerID != "30123456" {
		t.Fatalf("expected registered buyer, got %+v", withBuyer)
	}
}

func TestMonthlySummaryAggregates(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	addParacetamol(t, svc)

	for _, sale := range []struct{ qty, day int }{{2, 1}, {3, 1}, {1, 15}} {
		if _, err := svc.RecordSale(ctx, domain.SaleRequest{MedicineCode: 1, Quantity: sale.qty, Day: sale.day}); err != nil {
			t.Fatalf("sale failed: %v", err)
		}
	}

	summary, err := svc.MonthlySummary(ctx)
	if err != nil {
		t.Fatalf("monthly summary failed: %v", err)
	}
	if summary.Operations != 3 {
		t.Fatalf("expected 3 operations, got %d", summary.Operations)
	}
	if !summary.TotalAmount.Equal(decimal.RequireFromString("60.00")) {
		t.Fatalf("expected total 60.00, got %s", summary.TotalAmount)
	}
	if len(summary.SalesPerDay) != 2 || summary.SalesPerDay[1] != 2 || summary.SalesPerDay[15] != 1 {
		t.Fatalf("unexpected per-day counts: %v", summary.SalesPerDay)
	}
}

func TestResetMonthClearsLedgerOnly(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	addParacetamol(t, svc)

	if _, err := svc.RecordSale(ctx, domain.SaleRequest{MedicineCode: 1, Quantity: 5, Day: 3}); err != nil {
		t.Fatalf("sale failed: %v", err)
	}
	if err := svc.ResetMonth(ctx); err != nil {
		t.Fatalf("reset failed: %v", err)
	}

	summary, err := svc.MonthlySummary(ctx)
	if err != nil {
		t.Fatalf("monthly summary failed: %v", err)
	}
	if summary.Operations != 0 || !summary.TotalAmount.Equal(decimal.Zero) {
		t.Fatalf("expected empty summary after reset, got %+v", summary)
	}

	m, err := svc.GetMedicine(ctx, 1)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if m.Stock != 95 {
		t.Fatalf("catalog affected by reset: stock %d", m.Stock)
	}
}

func TestEditMedicinePartialUpdate(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	addParacetamol(t, svc)

	newPrice := decimal.RequireFromString("12.50")
	updated, err := svc.EditMedicine(ctx, 1, domain.MedicineUpdateRequest{UnitPrice: &newPrice})
	if err != nil {
		t.Fatalf("edit failed: %v", err)
	}
	if !updated.UnitPrice.Equal(newPrice) {
		t.Fatalf("price not updated: %s", updated.UnitPrice)
	}
	if updated.Name != "Paracetamol" || updated.Stock != 100 || updated.CriticalThreshold != 10 {
		t.Fatalf("untouched fields changed: %+v", updated)
	}

	empty := "   "
	if _, err := svc.EditMedicine(ctx, 1, domain.MedicineUpdateRequest{Name: &empty}); !errors.Is(err, store.ErrInvalidRecord) {
		t.Fatalf("expected blank name to be rejected, got %v", err)
	}
}

func TestPrescriptionRecordsFallbackForDeletedMedicine(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	addParacetamol(t, svc) // OTC

	if _, err := svc.AddMedicine(ctx, domain.MedicineCreateRequest{
		Code:                 4,
		Name:                 "Diazepam",
		UnitPrice:            decimal.RequireFromString("8.00"),
		Stock:                20,
		PrescriptionRequired: true,
	}); err != nil {
		t.Fatalf("add medicine failed: %v", err)
	}

	if _, err := svc.RecordSale(ctx, domain.SaleRequest{MedicineCode: 1, Quantity: 1, Day: 2}); err != nil {
		t.Fatalf("otc sale failed: %v", err)
	}
	if _, err := svc.RecordSale(ctx, domain.SaleRequest{MedicineCode: 4, Quantity: 1, Day: 2, BuyerID: "28999111"}); err != nil {
		t.Fatalf("rx sale failed: %v", err)
	}

	records, err := svc.PrescriptionRecords(ctx)
	if err != nil {
		t.Fatalf("prescription records failed: %v", err)
	}
	if len(records) != 1 || records[0].MedicineCode != 4 {
		t.Fatalf("expected only the RX sale, got %+v", records)
	}

	// After deleting the OTC medicine its historical sale can no longer
	// be resolved, so the conservative fallback counts it as RX.
	if err := svc.RemoveMedicine(ctx, 1); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	records, err = svc.PrescriptionRecords(ctx)
	if err != nil {
		t.Fatalf("prescription records failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected fallback to include stale-code sale, got %d records", len(records))
	}
}

func TestBelowCriticalStockThresholdInclusive(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	cases := []struct {
		code, stock, threshold int
	}{
		{1, 5, 10},  // below
		{2, 10, 10}, // at threshold, inclusive
		{3, 11, 10}, // above
	}
	for _, tc := range cases {
		if _, err := svc.AddMedicine(ctx, domain.MedicineCreateRequest{
			Code:              tc.code,
			Name:              "Med",
			UnitPrice:         decimal.NewFromInt(1),
			Stock:             tc.stock,
			CriticalThreshold: tc.threshold,
		}); err != nil {
			t.Fatalf("add %d failed: %v", tc.code, err)
		}
	}

	flagged, err := svc.BelowCriticalStock(ctx)
	if err != nil {
		t.Fatalf("report failed: %v", err)
	}
	if len(flagged) != 2 || flagged[0].Code != 1 || flagged[1].Code != 2 {
		t.Fatalf("unexpected flagged set: %+v", flagged)
	}
}

func TestCatalogCSVFormat(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	if _, err := svc.AddMedicine(ctx, domain.MedicineCreateRequest{
		Code:              10,
		Name:              "Ibuprofeno 400mg, caja x10",
		UnitPrice:         decimal.RequireFromString("99.90"),
		Stock:             8,
		CriticalThreshold: 4,
	}); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if _, err := svc.AddMedicine(ctx, domain.MedicineCreateRequest{
		Code:                 11,
		Name:                 "Diazepam",
		UnitPrice:            decimal.RequireFromString("5.00"),
		Stock:                3,
		CriticalThreshold:    1,
		PrescriptionRequired: true,
	}); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	csv, err := svc.CatalogCSV(ctx)
	if err != nil {
		t.Fatalf("csv failed: %v", err)
	}
	want := "Codigo,Nombre,Precio,Stock,StockCritico,VentaLibre\n" +
		"10,Ibuprofeno 400mg  caja x10,99.90,8,4,1\n" +
		"11,Diazepam,5.00,3,1,0\n"
	if csv != want {
		t.Fatalf("catalog csv mismatch:\ngot:\n%s\nwant:\n%s", csv, want)
	}
}

func TestSalesCSVFormat(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	addParacetamol(t, svc)

	if _, err := svc.RecordSale(ctx, domain.SaleRequest{MedicineCode: 1, Quantity: 2, Day: 7}); err != nil {
		t.Fatalf("sale failed: %v", err)
	}

	csv, err := svc.SalesCSV(ctx)
	if err != nil {
		t.Fatalf("csv failed: %v", err)
	}
	lines := strings.Split(strings.TrimRight(csv, "\n"), "\n")
	if lines[0] != "Dia,CodigoMedicamento,Cantidad,Importe,DNI" {
		t.Fatalf("unexpected header: %s", lines[0])
	}
	if len(lines) != 2 || lines[1] != "7,1,2,20.00,-" {
		t.Fatalf("unexpected sale row: %v", lines)
	}
}

func TestWriteCatalogCSVFile(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	addParacetamol(t, svc)

	path := t.TempDir() + "/medicamentos.csv"
	if err := svc.WriteCatalogCSV(ctx, path); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	want, err := svc.CatalogCSV(ctx)
	if err != nil {
		t.Fatalf("csv failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back failed: %v", err)
	}
	if string(data) != want {
		t.Fatalf("file content mismatch:\ngot:\n%s\nwant:\n%s", data, want)
	}
}

func TestAdminActionsLeaveAuditTrail(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	addParacetamol(t, svc)

	newStock := 50
	if _, err := svc.EditMedicine(ctx, 1, domain.MedicineUpdateRequest{Stock: &newStock}); err != nil {
		t.Fatalf("edit failed: %v", err)
	}
	if err := svc.ResetMonth(ctx); err != nil {
		t.Fatalf("reset failed: %v", err)
	}

	entries, err := svc.AuditTrail(ctx, 0)
	if err != nil {
		t.Fatalf("audit trail failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 audit entries, got %d", len(entries))
	}
	actions := map[string]bool{}
	for _, e := range entries {
		actions[e.Action] = true
	}
	if !actions[domain.AuditActionMedicineEdit] || !actions[domain.AuditActionMonthReset] {
		t.Fatalf("missing expected audit actions: %v", actions)
	}
}
