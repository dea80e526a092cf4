package receipt

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"posgo/backend/internal/domain"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const (
	SummarySheet      = "Summary"
	MovementsSheet    = "Movements"
	TransactionsSheet = "Transactions"
	ItemsSheet        = "Items"
)

// ShiftReportXLSX exports a shift report as a workbook with a summary sheet
// plus one sheet each for movements and transactions.
func ShiftReportXLSX(report domain.ShiftReport, settings domain.StoreSettings) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return nil, err
	}
	shift := report.Shift
	summary := [][]any{
		{"Store", settings.Name},
		{"Currency", settings.Currency},
		{"Shift", shift.ID},
		{"Status", string(shift.Status)},
		{"Opened", formatDate(shift.StartTime)},
		{"Start amount", shift.StartAmount},
		{"Cash sales", shift.TotalSalesCash},
		{"Digital sales", shift.TotalSalesDigital},
		{"Cash in", report.CashIn},
		{"Cash out", report.CashOut},
		{"Expected cash", report.ExpectedCash},
	}
	if shift.EndTime != nil {
		summary = append(summary, []any{"Closed", formatDate(*shift.EndTime)})
	}
	if shift.EndAmount != nil {
		summary = append(summary, []any{"Counted cash", *shift.EndAmount}, []any{"Difference", report.Difference})
	}
	if err := writeRows(f, SummarySheet, summary); err != nil {
		return nil, err
	}

	movements := [][]any{{"Time", "Type", "Amount", "Description", "By"}}
	for _, m := range report.Movements {
		movements = append(movements, []any{formatDate(m.Timestamp), string(m.Type), m.Amount, m.Description, m.CreatedBy})
	}
	if err := writeSheet(f, MovementsSheet, movements); err != nil {
		return nil, err
	}

	txs := [][]any{{"Ticket", "Date", "Method", "Subtotal", "Discount", "Tax", "Total", "Change"}}
	for _, tx := range report.Transactions {
		txs = append(txs, []any{tx.ID, formatDate(tx.Date), MethodLabel(tx.PaymentMethod), tx.Subtotal, tx.Discount, tx.Tax, tx.Total, tx.Change})
	}
	if err := writeSheet(f, TransactionsSheet, txs); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func saleXLSX(tx domain.Transaction, settings domain.StoreSettings) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", ItemsSheet); err != nil {
		return nil, err
	}
	rows := [][]any{{"Item", "Quantity", "Price", "Discount", "Line total"}}
	for _, item := range tx.Items {
		qty := float64(item.Quantity)
		rows = append(rows, []any{itemName(item), item.Quantity, item.Price, item.Discount * qty, (item.Price - item.Discount) * qty})
	}
	rows = append(rows,
		[]any{},
		[]any{"Subtotal", "", "", "", tx.Subtotal},
		[]any{"Discount", "", "", "", tx.Discount},
		[]any{"Tax", "", "", "", tx.Tax},
		[]any{"Total " + settings.Currency, "", "", "", tx.Total},
	)
	if err := writeRows(f, ItemsSheet, rows); err != nil {
		return nil, err
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeSheet(f *excelize.File, sheet string, rows [][]any) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	return writeRows(f, sheet, rows)
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for r, row := range rows {
		for c, value := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return fmt.Errorf("write %s!%s: %w", sheet, cell, err)
			}
		}
	}
	return nil
}
