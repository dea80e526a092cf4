// Package receipt renders sales and shift reports into printable documents.
// Rendering is a pure projection of its inputs.
package receipt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"posgo/backend/internal/domain"
)

type Format string

const (
	FormatText   Format = "text"
	FormatHTML   Format = "html"
	FormatEscpos Format = "escpos"
	FormatXLSX   Format = "xlsx"
)

var ErrUnsupportedFormat = errors.New("unsupported document format")

func ParseFormat(raw string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(raw))); f {
	case "":
		return FormatText, nil
	case FormatText, FormatHTML, FormatEscpos, FormatXLSX:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, raw)
	}
}

const rule = "================================"
const thinRule = "--------------------------------"

// Money formats an amount with the store currency and two decimals.
func Money(currency string, amount float64) string {
	s := decimal.NewFromFloat(amount).StringFixed(2)
	if currency == "" {
		return s
	}
	return currency + " " + s
}

func MethodLabel(m domain.PaymentMethod) string {
	switch m {
	case domain.PaymentCash:
		return "Cash"
	case domain.PaymentCard:
		return "Card"
	case domain.PaymentYape:
		return "Yape"
	case domain.PaymentPlin:
		return "Plin"
	case domain.PaymentMixed:
		return "Mixed"
	default:
		return string(m)
	}
}

func itemName(item domain.CartItem) string {
	if item.VariantName != "" {
		return item.Name + " (" + item.VariantName + ")"
	}
	return item.Name
}

// SaleLines is the plain ticket layout shared by the text and ESC/POS formats.
func SaleLines(tx domain.Transaction, settings domain.StoreSettings) []string {
	cur := settings.Currency
	lines := []string{settings.Name}
	if settings.Address != "" {
		lines = append(lines, settings.Address)
	}
	if settings.Phone != "" {
		lines = append(lines, "Tel: "+settings.Phone)
	}
	lines = append(lines,
		rule,
		"Ticket: "+tx.ID,
		"Date: "+tx.Date.Format("2006-01-02 15:04:05"),
	)
	if tx.Cashier != "" {
		lines = append(lines, "Cashier: "+tx.Cashier)
	}
	lines = append(lines, thinRule)
	for _, item := range tx.Items {
		lines = append(lines, fmt.Sprintf("%s x%d", itemName(item), item.Quantity))
		lines = append(lines, fmt.Sprintf("  %s", Money(cur, item.Price*float64(item.Quantity))))
		if item.Discount > 0 {
			lines = append(lines, fmt.Sprintf("  Discount -%s", Money(cur, item.Discount*float64(item.Quantity))))
		}
	}
	lines = append(lines,
		thinRule,
		"Subtotal : "+Money(cur, tx.Subtotal),
		"Discount : "+Money(cur, tx.Discount),
		fmt.Sprintf("Tax %s%% : %s", decimal.NewFromFloat(settings.TaxRate*100).StringFixed(0), Money(cur, tx.Tax)),
		"Total    : "+Money(cur, tx.Total),
	)
	for _, p := range tx.Payments {
		lines = append(lines, fmt.Sprintf("%-9s: %s", MethodLabel(p.Method), Money(cur, p.Amount)))
	}
	lines = append(lines,
		"Change   : "+Money(cur, tx.Change),
		rule,
		"Thank you for your purchase",
		"",
	)
	return lines
}

// ShiftLines is the plain layout of a shift closing report.
func ShiftLines(report domain.ShiftReport, settings domain.StoreSettings) []string {
	cur := settings.Currency
	shift := report.Shift
	lines := []string{
		settings.Name,
		"Shift report",
		rule,
		"Shift: " + shift.ID,
		"Opened: " + shift.StartTime.Format("2006-01-02 15:04:05"),
	}
	if shift.EndTime != nil {
		lines = append(lines, "Closed: "+shift.EndTime.Format("2006-01-02 15:04:05"))
	}
	lines = append(lines,
		"Status: "+string(shift.Status),
		thinRule,
		"Start amount  : "+Money(cur, shift.StartAmount),
		"Cash sales    : "+Money(cur, shift.TotalSalesCash),
		"Digital sales : "+Money(cur, shift.TotalSalesDigital),
		"Cash in       : "+Money(cur, report.CashIn),
		"Cash out      : "+Money(cur, report.CashOut),
		"Expected cash : "+Money(cur, report.ExpectedCash),
	)
	if shift.EndAmount != nil {
		lines = append(lines,
			"Counted cash  : "+Money(cur, *shift.EndAmount),
			"Difference    : "+Money(cur, report.Difference),
		)
	}
	lines = append(lines, thinRule, "Movements")
	for _, m := range report.Movements {
		lines = append(lines, fmt.Sprintf("%s %-5s %s %s", m.Timestamp.Format("15:04"), m.Type, Money(cur, m.Amount), m.Description))
	}
	lines = append(lines, fmt.Sprintf("Transactions: %d", len(report.Transactions)), rule, "")
	return lines
}

// Sale renders a transaction receipt.
func Sale(tx domain.Transaction, settings domain.StoreSettings, format Format) (domain.Document, error) {
	base := "receipt-" + tx.ID
	switch format {
	case FormatText:
		return textDocument(base, SaleLines(tx, settings)), nil
	case FormatEscpos:
		return escposDocument(base, SaleLines(tx, settings)), nil
	case FormatHTML:
		body, err := saleHTML(tx, settings)
		if err != nil {
			return domain.Document{}, err
		}
		return domain.Document{FileName: base + ".html", ContentType: "text/html; charset=utf-8", Body: body}, nil
	case FormatXLSX:
		body, err := saleXLSX(tx, settings)
		if err != nil {
			return domain.Document{}, err
		}
		return domain.Document{FileName: base + ".xlsx", ContentType: xlsxContentType, Body: body}, nil
	default:
		return domain.Document{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// ShiftReport renders a shift closing report.
func ShiftReport(report domain.ShiftReport, settings domain.StoreSettings, format Format) (domain.Document, error) {
	base := "shift-" + report.Shift.ID
	switch format {
	case FormatText:
		return textDocument(base, ShiftLines(report, settings)), nil
	case FormatEscpos:
		return escposDocument(base, ShiftLines(report, settings)), nil
	case FormatHTML:
		body, err := shiftHTML(report, settings)
		if err != nil {
			return domain.Document{}, err
		}
		return domain.Document{FileName: base + ".html", ContentType: "text/html; charset=utf-8", Body: body}, nil
	case FormatXLSX:
		body, err := ShiftReportXLSX(report, settings)
		if err != nil {
			return domain.Document{}, err
		}
		return domain.Document{FileName: base + ".xlsx", ContentType: xlsxContentType, Body: body}, nil
	default:
		return domain.Document{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

func textDocument(base string, lines []string) domain.Document {
	return domain.Document{
		FileName:    base + ".txt",
		ContentType: "text/plain; charset=utf-8",
		Body:        []byte(strings.Join(lines, "\n")),
	}
}

// escposDocument wraps the lines between printer init (ESC @) and a partial
// cut with feed (GS V A).
func escposDocument(base string, lines []string) domain.Document {
	out := []byte{0x1b, 0x40}
	for _, line := range lines {
		out = append(out, []byte(line)...)
		out = append(out, '\n')
	}
	out = append(out, 0x1d, 0x56, 0x41, 0x10)
	return domain.Document{FileName: base + ".bin", ContentType: "application/octet-stream", Body: out}
}

func formatDate(t time.Time) string {
	return t.Format("2006-01-02 15:04")
}
