package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"family-ledger-go/internal/domain/aggregation"
	"github.com/xuri/excelize/v2"
)

const (
	SummarySheet    = "Summary"
	CategoriesSheet = "Categories"
	PendingSheet    = "Pending"

	XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	dateLayout = "2006-01-02"
)

// WriteDashboardXLSX writes the dashboard as a workbook: totals on the
// summary sheet, one row per grouped item with subtotals on the categories
// sheet, and the approval queue when there is one.
func WriteDashboardXLSX(w io.Writer, dashboard *aggregation.Dashboard) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}

	if err := writeSummary(f, dashboard, bold); err != nil {
		return err
	}
	if err := writeCategories(f, dashboard, bold); err != nil {
		return err
	}
	if len(dashboard.Pending) > 0 {
		if err := writePending(f, dashboard, bold); err != nil {
			return err
		}
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSummary(f *excelize.File, dashboard *aggregation.Dashboard, header int) error {
	totals := dashboard.Totals
	rows := [][]any{
		{"Field", "Value"},
		{"From", dashboard.From.Format(dateLayout)},
		{"To", dashboard.To.Format(dateLayout)},
		{"Source", string(dashboard.Source)},
		{"Income", totals.Income},
		{"Global expenses", totals.GlobalExpenses},
		{"Personal approved", totals.PersonalApproved},
		{"Total expenses", totals.Expenses},
		{"Remaining", totals.Remaining},
		{"Remaining %", totals.RemainingPercent},
		{"Generated at", dashboard.GeneratedAt.UTC().Format(time.RFC3339)},
	}
	if len(dashboard.Degraded) > 0 {
		rows = append(rows, []any{"Degraded", strings.Join(dashboard.Degraded, ", ")})
	}

	if err := writeRows(f, SummarySheet, rows); err != nil {
		return err
	}
	if err := f.SetCellStyle(SummarySheet, "A1", "B1", header); err != nil {
		return fmt.Errorf("style %s header: %w", SummarySheet, err)
	}
	return setWidths(f, SummarySheet, map[string]float64{"A": 20, "B": 24})
}

func writeCategories(f *excelize.File, dashboard *aggregation.Dashboard, header int) error {
	if _, err := f.NewSheet(CategoriesSheet); err != nil {
		return fmt.Errorf("create sheet %s: %w", CategoriesSheet, err)
	}

	rows := [][]any{{"Category", "Item", "Kind", "Amount"}}
	for _, group := range dashboard.Groups {
		for _, item := range group.Items {
			rows = append(rows, []any{group.Name, item.Title, string(item.Kind), item.Amount})
		}
		rows = append(rows, []any{group.Name, "Subtotal", "", group.Total})
	}

	if err := writeRows(f, CategoriesSheet, rows); err != nil {
		return err
	}
	if err := f.SetCellStyle(CategoriesSheet, "A1", "D1", header); err != nil {
		return fmt.Errorf("style %s header: %w", CategoriesSheet, err)
	}
	return setWidths(f, CategoriesSheet, map[string]float64{"A": 22, "B": 36, "C": 10, "D": 14})
}

func writePending(f *excelize.File, dashboard *aggregation.Dashboard, header int) error {
	if _, err := f.NewSheet(PendingSheet); err != nil {
		return fmt.Errorf("create sheet %s: %w", PendingSheet, err)
	}

	rows := [][]any{{"Title", "Requester", "Price", "Approvals", "Required"}}
	for _, pending := range dashboard.Pending {
		rows = append(rows, []any{pending.Title, pending.Requester, pending.Price, pending.ApprovalsCount, pending.RequiredAdminsCount})
	}

	if err := writeRows(f, PendingSheet, rows); err != nil {
		return err
	}
	if err := f.SetCellStyle(PendingSheet, "A1", "E1", header); err != nil {
		return fmt.Errorf("style %s header: %w", PendingSheet, err)
	}
	return setWidths(f, PendingSheet, map[string]float64{"A": 36, "B": 20, "C": 12, "D": 10, "E": 10})
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for r, row := range rows {
		for c, value := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return fmt.Errorf("set %s!%s: %w", sheet, cell, err)
			}
		}
	}
	return nil
}

func setWidths(f *excelize.File, sheet string, widths map[string]float64) error {
	for col, width := range widths {
		if err := f.SetColWidth(sheet, col, col, width); err != nil {
			return fmt.Errorf("set width %s!%s: %w", sheet, col, err)
		}
	}
	return nil
}
