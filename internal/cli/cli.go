package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/term"

	"botica/internal/auth"
	"botica/internal/domain"
	"botica/internal/service"
	"botica/internal/store"
)

// App drives the interactive menu. All state lives in the service and
// the guard; the App only parses input and formats output.
type App struct {
	svc        *service.Service
	guard      *auth.Guard
	in         *bufio.Reader
	out        io.Writer
	exportFile string
	terminal   bool
}

func New(svc *service.Service, guard *auth.Guard, in io.Reader, out io.Writer, exportFile string) *App {
	terminal := false
	if f, ok := in.(*os.File); ok {
		terminal = term.IsTerminal(int(f.Fd()))
	}
	return &App{
		svc:        svc,
		guard:      guard,
		in:         bufio.NewReader(in),
		out:        out,
		exportFile: exportFile,
		terminal:   terminal,
	}
}

// Run loops until the exit option or end of input.
func (a *App) Run(ctx context.Context) error {
	for {
		a.printMenu()
		line, err := a.readLine("Select option: ")
		if err != nil {
			return nil // EOF ends the session
		}
		option, convErr := strconv.Atoi(strings.TrimSpace(line))
		if convErr != nil {
			fmt.Fprintln(a.out, "Invalid option.")
			continue
		}

		switch option {
		case 1:
			a.addMedicine(ctx)
		case 2:
			a.listMedicines(ctx)
		case 3:
			a.showMedicine(ctx)
		case 4:
			a.ownerOnly(func() { a.editMedicine(ctx) })
		case 5:
			a.ownerOnly(func() { a.deleteMedicine(ctx) })
		case 6:
			a.sellMedicine(ctx)
		case 7:
			a.monthlyReport(ctx)
		case 8:
			a.ownerOnly(func() { a.dayReport(ctx) })
		case 9:
			a.ownerOnly(func() { a.prescriptionRecords(ctx) })
		case 10:
			a.ownerOnly(func() { a.criticalStockReport(ctx) })
		case 11:
			a.ownerOnly(func() { a.resetMonth(ctx) })
		case 12:
			a.ownerOnly(func() { a.changePassword(ctx) })
		case 13:
			a.printCatalogCSV(ctx)
		case 14:
			a.printSalesCSV(ctx)
		case 15:
			a.exportCatalogFile(ctx)
		case 16:
			a.ownerOnly(func() { a.auditTrail(ctx) })
		case 0:
			fmt.Fprintln(a.out, "Exiting. All in-memory data will be lost.")
			return nil
		default:
			fmt.Fprintln(a.out, "Invalid option.")
		}
	}
}

func (a *App) printMenu() {
	fmt.Fprintln(a.out, "=========================================")
	fmt.Fprintln(a.out, "Pharmacy system (volatile memory)")
	fmt.Fprintln(a.out, "=========================================")
	fmt.Fprintln(a.out, " 1) Add medicine")
	fmt.Fprintln(a.out, " 2) List medicines")
	fmt.Fprintln(a.out, " 3) Show medicine by code")
	fmt.Fprintln(a.out, " 4) Edit medicine (owner)")
	fmt.Fprintln(a.out, " 5) Delete medicine (owner)")
	fmt.Fprintln(a.out, " 6) Sell medicine")
	fmt.Fprintln(a.out, " 7) Monthly report")
	fmt.Fprintln(a.out, " 8) Day report (owner)")
	fmt.Fprintln(a.out, " 9) Prescription records (owner)")
	fmt.Fprintln(a.out, "10) Critical stock report (owner)")
	fmt.Fprintln(a.out, "11) Reset month (owner)")
	fmt.Fprintln(a.out, "12) Change password (owner)")
	fmt.Fprintln(a.out, "13) Print catalog CSV")
	fmt.Fprintln(a.out, "14) Print sales CSV")
	fmt.Fprintln(a.out, "15) Export catalog CSV to file")
	fmt.Fprintln(a.out, "16) Audit trail (owner)")
	fmt.Fprintln(a.out, " 0) Exit")
}

// ownerOnly authenticates before running fn and reports a single
// generic refusal on failure.
func (a *App) ownerOnly(fn func()) {
	secret, err := a.readSecret("Owner password (empty cancels): ")
	if err != nil || strings.TrimSpace(secret) == "" {
		fmt.Fprintln(a.out, "Cancelled.")
		return
	}
	if !a.guard.Authenticate(secret) {
		fmt.Fprintln(a.out, "Not authorized.")
		return
	}
	fn()
}

func (a *App) addMedicine(ctx context.Context) {
	code, ok := a.promptInt("Code (empty cancels): ")
	if !ok {
		return
	}
	name, err := a.readLine("Name: ")
	if err != nil {
		return
	}
	price, ok := a.promptDecimal("Price (e.g. 123.45): ")
	if !ok {
		return
	}
	stock, ok := a.promptInt("Initial stock: ")
	if !ok {
		return
	}
	rx, ok := a.promptYesNo("Prescription required? (y/n): ")
	if !ok {
		return
	}
	threshold, ok := a.promptInt("Critical stock threshold: ")
	if !ok {
		return
	}

	created, err := a.svc.AddMedicine(ctx, domain.MedicineCreateRequest{
		Code:                 code,
		Name:                 name,
		UnitPrice:            price,
		Stock:                stock,
		CriticalThreshold:    threshold,
		PrescriptionRequired: rx,
	})
	if err != nil {
		a.printError(err)
		return
	}
	fmt.Fprintf(a.out, "Medicine %d (%s) added.\n", created.Code, created.Name)
}

func (a *App) listMedicines(ctx context.Context) {
	medicines, err := a.svc.ListMedicines(ctx)
	if err != nil {
		a.printError(err)
		return
	}
	if len(medicines) == 0 {
		fmt.Fprintln(a.out, "No medicines registered.")
		return
	}
	fmt.Fprintln(a.out, "Code   | Name                             | Price    | Stock | Type | Critical")
	fmt.Fprintln(a.out, "-----------------------------------------------------------------------------")
	for _, m := range medicines {
		fmt.Fprintf(a.out, "%6d | %-32s | %8s | %5d | %-4s | %8d\n",
			m.Code, m.Name, m.UnitPrice.StringFixed(2), m.Stock, typeLabel(m), m.CriticalThreshold)
	}
}

func (a *App) showMedicine(ctx context.Context) {
	code, ok := a.promptInt("Code (empty cancels): ")
	if !ok {
		return
	}
	m, err := a.svc.GetMedicine(ctx, code)
	if err != nil {
		a.printError(err)
		return
	}
	fmt.Fprintf(a.out, "Code: %d\nName: %s\nPrice: %s\nStock: %d\nType: %s\nCritical: %d\n",
		m.Code, m.Name, m.UnitPrice.StringFixed(2), m.Stock, typeLabel(m), m.CriticalThreshold)
}

func (a *App) editMedicine(ctx context.Context) {
	code, ok := a.promptInt("Code to edit (empty cancels): ")
	if !ok {
		return
	}
	current, err := a.svc.GetMedicine(ctx, code)
	if err != nil {
		a.printError(err)
		return
	}

	var req domain.MedicineUpdateRequest

	name, err := a.readLine(fmt.Sprintf("Name (current: %s) [ENTER keeps]: ", current.Name))
	if err != nil {
		return
	}
	if strings.TrimSpace(name) != "" {
		req.Name = &name
	}

	if raw, err := a.readLine(fmt.Sprintf("Price (current: %s) [ENTER keeps]: ", current.UnitPrice.StringFixed(2))); err == nil && strings.TrimSpace(raw) != "" {
		price, parseErr := decimal.NewFromString(strings.TrimSpace(raw))
		if parseErr != nil {
			fmt.Fprintln(a.out, "Invalid price, keeping current value.")
		} else {
			req.UnitPrice = &price
		}
	}

	if raw, err := a.readLine(fmt.Sprintf("Stock (current: %d) [ENTER keeps]: ", current.Stock)); err == nil && strings.TrimSpace(raw) != "" {
		stock, parseErr := strconv.Atoi(strings.TrimSpace(raw))
		if parseErr != nil {
			fmt.Fprintln(a.out, "Invalid stock, keeping current value.")
		} else {
			req.Stock = &stock
		}
	}

	if raw, err := a.readLine(fmt.Sprintf("Prescription required? (current: %s) y/n [ENTER keeps]: ", yesNo(current.PrescriptionRequired))); err == nil {
		switch strings.ToLower(strings.TrimSpace(raw)) {
		case "y":
			v := true
			req.PrescriptionRequired = &v
		case "n":
			v := false
			req.PrescriptionRequired = &v
		}
	}

	if raw, err := a.readLine(fmt.Sprintf("Critical threshold (current: %d) [ENTER keeps]: ", current.CriticalThreshold)); err == nil && strings.TrimSpace(raw) != "" {
		threshold, parseErr := strconv.Atoi(strings.TrimSpace(raw))
		if parseErr != nil {
			fmt.Fprintln(a.out, "Invalid threshold, keeping current value.")
		} else {
			req.CriticalThreshold = &threshold
		}
	}

	if _, err := a.svc.EditMedicine(ctx, code, req); err != nil {
		a.printError(err)
		return
	}
	fmt.Fprintln(a.out, "Medicine updated.")
}

func (a *App) deleteMedicine(ctx context.Context) {
	code, ok := a.promptInt("Code to delete (empty cancels): ")
	if !ok {
		return
	}
	m, err := a.svc.GetMedicine(ctx, code)
	if err != nil {
		a.printError(err)
		return
	}
	confirm, ok := a.promptYesNo(fmt.Sprintf("Confirm deletion of '%s' (y/n): ", m.Name))
	if !ok || !confirm {
		fmt.Fprintln(a.out, "Deletion cancelled.")
		return
	}
	if err := a.svc.RemoveMedicine(ctx, code); err != nil {
		a.printError(err)
		return
	}
	fmt.Fprintln(a.out, "Medicine deleted.")
}

func (a *App) sellMedicine(ctx context.Context) {
	code, ok := a.promptInt("Code to sell (empty cancels): ")
	if !ok {
		return
	}
	m, err := a.svc.GetMedicine(ctx, code)
	if err != nil {
		a.printError(err)
		return
	}
	qty, ok := a.promptInt("Quantity: ")
	if !ok {
		return
	}
	day, ok := a.promptInt("Day of sale (1-31): ")
	if !ok {
		return
	}

	buyerID := ""
	if m.PrescriptionRequired {
		buyerID, err = a.readLine("Buyer id (empty = do not register, legal warning): ")
		if err != nil {
			return
		}
	}

	receipt, err := a.svc.RecordSale(ctx, domain.SaleRequest{
		MedicineCode: code,
		Quantity:     qty,
		Day:          day,
		BuyerID:      buyerID,
	})
	if err != nil {
		a.printError(err)
		return
	}
	if receipt.BuyerUnregistered {
		fmt.Fprintln(a.out, "Warning: prescription sale without registered buyer id.")
	}
	fmt.Fprintf(a.out, "Sale recorded: $%s | Day %d | %d units left.\n",
		receipt.Sale.TotalAmount.StringFixed(2), receipt.Sale.Day, receipt.RemainingStock)
}

func (a *App) monthlyReport(ctx context.Context) {
	summary, err := a.svc.MonthlySummary(ctx)
	if err != nil {
		a.printError(err)
		return
	}
	if summary.Operations == 0 {
		fmt.Fprintln(a.out, "No sales recorded this month.")
		return
	}
	fmt.Fprintln(a.out, "===== Monthly report =====")
	fmt.Fprintf(a.out, "Total amount: $%s\n", summary.TotalAmount.StringFixed(2))
	fmt.Fprintln(a.out, "Sales per day (day: count):")
	days := make([]int, 0, len(summary.SalesPerDay))
	for day := range summary.SalesPerDay {
		days = append(days, day)
	}
	sort.Ints(days)
	for _, day := range days {
		fmt.Fprintf(a.out, "Day %2d: %d\n", day, summary.SalesPerDay[day])
	}
	fmt.Fprintf(a.out, "Total operations this month: %d\n", summary.Operations)
}

func (a *App) dayReport(ctx context.Context) {
	day, ok := a.promptInt("Day to query (1-31): ")
	if !ok {
		return
	}
	summary, err := a.svc.DaySummary(ctx, day)
	if err != nil {
		a.printError(err)
		return
	}
	fmt.Fprintf(a.out, "Day %d report: %d operations | Total amount: $%s\n",
		summary.Day, summary.Operations, summary.TotalAmount.StringFixed(2))
}

func (a *App) prescriptionRecords(ctx context.Context) {
	records, err := a.svc.PrescriptionRecords(ctx)
	if err != nil {
		a.printError(err)
		return
	}
	if len(records) == 0 {
		fmt.Fprintln(a.out, "No prescription records.")
		return
	}
	fmt.Fprintln(a.out, "Day | Code   | Qty  | Buyer id")
	fmt.Fprintln(a.out, "------------------------------")
	for _, sale := range records {
		fmt.Fprintf(a.out, "%3d | %6d | %4d | %s\n", sale.Day, sale.MedicineCode, sale.Quantity, sale.BuyerID)
	}
}

func (a *App) criticalStockReport(ctx context.Context) {
	flagged, err := a.svc.BelowCriticalStock(ctx)
	if err != nil {
		a.printError(err)
		return
	}
	if len(flagged) == 0 {
		fmt.Fprintln(a.out, "No medicine is at or below its critical stock.")
		return
	}
	fmt.Fprintln(a.out, "Medicines at or below critical stock:")
	for _, m := range flagged {
		fmt.Fprintf(a.out, "Code %d | %s | Stock: %d | Critical: %d\n", m.Code, m.Name, m.Stock, m.CriticalThreshold)
	}
}

func (a *App) resetMonth(ctx context.Context) {
	confirm, ok := a.promptYesNo("CONFIRM: delete ALL sales data for the current month? (y/n): ")
	if !ok || !confirm {
		fmt.Fprintln(a.out, "Operation cancelled.")
		return
	}
	if err := a.svc.ResetMonth(ctx); err != nil {
		a.printError(err)
		return
	}
	fmt.Fprintln(a.out, "Monthly sales data cleared.")
}

func (a *App) changePassword(ctx context.Context) {
	current, err := a.readSecret("Current password (empty cancels): ")
	if err != nil || strings.TrimSpace(current) == "" {
		fmt.Fprintln(a.out, "Cancelled.")
		return
	}
	proposed, err := a.readSecret("New password: ")
	if err != nil || strings.TrimSpace(proposed) == "" {
		fmt.Fprintln(a.out, "Cancelled.")
		return
	}
	confirmation, err := a.readSecret("Confirm new password: ")
	if err != nil {
		fmt.Fprintln(a.out, "Cancelled.")
		return
	}

	if err := a.guard.ChangeSecret(current, proposed, confirmation); err != nil {
		a.printError(err)
		return
	}
	a.svc.NoteOwnerSecretChanged(ctx)
	fmt.Fprintln(a.out, "Password updated.")
}

func (a *App) printCatalogCSV(ctx context.Context) {
	csv, err := a.svc.CatalogCSV(ctx)
	if err != nil {
		a.printError(err)
		return
	}
	fmt.Fprint(a.out, csv)
}

func (a *App) printSalesCSV(ctx context.Context) {
	csv, err := a.svc.SalesCSV(ctx)
	if err != nil {
		a.printError(err)
		return
	}
	fmt.Fprint(a.out, csv)
}

func (a *App) exportCatalogFile(ctx context.Context) {
	if err := a.svc.WriteCatalogCSV(ctx, a.exportFile); err != nil {
		a.printError(err)
		return
	}
	fmt.Fprintf(a.out, "Catalog exported to %s\n", a.exportFile)
}

func (a *App) auditTrail(ctx context.Context) {
	entries, err := a.svc.AuditTrail(ctx, 50)
	if err != nil {
		a.printError(err)
		return
	}
	if len(entries) == 0 {
		fmt.Fprintln(a.out, "Audit trail is empty.")
		return
	}
	for _, e := range entries {
		fmt.Fprintf(a.out, "%s | %-15s | %s %s | %s\n",
			e.CreatedAt.Format("2006-01-02 15:04:05"), e.Action, e.EntityType, e.EntityID, e.Detail)
	}
}

func (a *App) readLine(prompt string) (string, error) {
	fmt.Fprint(a.out, prompt)
	line, err := a.in.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// readSecret masks input when attached to a terminal and falls back to
// a plain line read otherwise (tests, piped input).
func (a *App) readSecret(prompt string) (string, error) {
	if !a.terminal {
		return a.readLine(prompt)
	}
	fmt.Fprint(a.out, prompt)
	secret, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(a.out)
	if err != nil {
		return "", err
	}
	return string(secret), nil
}

// promptInt returns ok=false when the user cancels with an empty line.
func (a *App) promptInt(prompt string) (int, bool) {
	for {
		line, err := a.readLine(prompt)
		if err != nil {
			return 0, false
		}
		line = strings.TrimSpace(line)
		if line == "" {
			return 0, false
		}
		value, convErr := strconv.Atoi(line)
		if convErr != nil {
			fmt.Fprintln(a.out, "Invalid input. Enter a whole number.")
			continue
		}
		return value, true
	}
}

func (a *App) promptDecimal(prompt string) (decimal.Decimal, bool) {
	for {
		line, err := a.readLine(prompt)
		if err != nil {
			return decimal.Zero, false
		}
		line = strings.TrimSpace(line)
		if line == "" {
			return decimal.Zero, false
		}
		value, convErr := decimal.NewFromString(line)
		if convErr != nil {
			fmt.Fprintln(a.out, "Invalid input. Enter a number (decimals allowed).")
			continue
		}
		return value, true
	}
}

func (a *App) promptYesNo(prompt string) (bool, bool) {
	for {
		line, err := a.readLine(prompt)
		if err != nil {
			return false, false
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "":
			return false, false
		case "y", "s":
			return true, true
		case "n":
			return false, true
		default:
			fmt.Fprintln(a.out, "Invalid answer, enter y or n.")
		}
	}
}

func (a *App) printError(err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		fmt.Fprintln(a.out, "Not found.")
	case errors.Is(err, store.ErrDuplicateCode):
		fmt.Fprintln(a.out, "Code already exists.")
	case errors.Is(err, store.ErrCatalogFull):
		fmt.Fprintln(a.out, "Catalog limit reached.")
	case errors.Is(err, store.ErrLedgerFull):
		fmt.Fprintln(a.out, "Monthly sales limit reached.")
	case errors.Is(err, store.ErrInsufficientStock):
		fmt.Fprintln(a.out, "Insufficient stock.")
	case errors.Is(err, store.ErrInvalidRecord):
		fmt.Fprintf(a.out, "Invalid input: %v\n", err)
	case errors.Is(err, auth.ErrWrongCurrent):
		fmt.Fprintln(a.out, "Wrong password. Cancelled.")
	case errors.Is(err, auth.ErrMismatch):
		fmt.Fprintln(a.out, "Passwords do not match. Cancelled.")
	case errors.Is(err, auth.ErrEmptySecret):
		fmt.Fprintln(a.out, "Empty password. Cancelled.")
	default:
		fmt.Fprintf(a.out, "Error: %v\n", err)
	}
}

func typeLabel(m domain.Medicine) string {
	if m.OTC() {
		return "OTC"
	}
	return "RX"
}

func yesNo(v bool) string {
	if v {
		return "y"
	}
	return "n"
}
