package receipt

import (
	"bytes"
	"html/template"

	"posgo/backend/internal/domain"
)

var funcs = template.FuncMap{
	"money":  Money,
	"method": MethodLabel,
	"date":   formatDate,
	"item":   itemName,
	"times": func(price float64, qty int) float64 {
		return price * float64(qty)
	},
}

var saleHTMLTmpl = template.Must(template.New("sale").Funcs(funcs).Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>Ticket {{.Tx.ID}}</title>
  <style>
    body { font-family: monospace; max-width: 320px; margin: 16px auto; }
    table { width: 100%; border-collapse: collapse; }
    td { padding: 2px 0; font-size: 13px; }
    .r { text-align: right; }
    .total { font-weight: bold; border-top: 1px dashed #000; }
  </style>
</head>
<body>
  <h3>{{.Settings.Name}}</h3>
  <p>{{.Settings.Address}}<br/>Tel: {{.Settings.Phone}}</p>
  <p>Ticket: {{.Tx.ID}}<br/>Date: {{date .Tx.Date}}</p>
  <table>
    {{range .Tx.Items}}<tr><td>{{item .}} x{{.Quantity}}</td><td class="r">{{money $.Settings.Currency (times .Price .Quantity)}}</td></tr>
    {{end}}
    <tr class="total"><td>Subtotal</td><td class="r">{{money .Settings.Currency .Tx.Subtotal}}</td></tr>
    <tr><td>Discount</td><td class="r">{{money .Settings.Currency .Tx.Discount}}</td></tr>
    <tr><td>Tax</td><td class="r">{{money .Settings.Currency .Tx.Tax}}</td></tr>
    <tr class="total"><td>Total</td><td class="r">{{money .Settings.Currency .Tx.Total}}</td></tr>
    {{range .Tx.Payments}}<tr><td>{{method .Method}}</td><td class="r">{{money $.Settings.Currency .Amount}}</td></tr>
    {{end}}
    <tr><td>Change</td><td class="r">{{money .Settings.Currency .Tx.Change}}</td></tr>
  </table>
  <p>Thank you for your purchase</p>
</body>
</html>
`))

var shiftHTMLTmpl = template.Must(template.New("shift").Funcs(funcs).Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>Shift {{.Report.Shift.ID}}</title>
  <style>
    body { font-family: sans-serif; margin: 24px; }
    table { width: 100%; border-collapse: collapse; margin-top: 8px; }
    th, td { border: 1px solid #ddd; padding: 6px; font-size: 13px; }
  </style>
</head>
<body>
  <h2>{{.Settings.Name}} shift report</h2>
  <p>Shift {{.Report.Shift.ID}} ({{.Report.Shift.Status}}) opened {{date .Report.Shift.StartTime}}</p>
  <table>
    <tr><td>Start amount</td><td>{{money .Settings.Currency .Report.Shift.StartAmount}}</td></tr>
    <tr><td>Cash sales</td><td>{{money .Settings.Currency .Report.Shift.TotalSalesCash}}</td></tr>
    <tr><td>Digital sales</td><td>{{money .Settings.Currency .Report.Shift.TotalSalesDigital}}</td></tr>
    <tr><td>Cash in</td><td>{{money .Settings.Currency .Report.CashIn}}</td></tr>
    <tr><td>Cash out</td><td>{{money .Settings.Currency .Report.CashOut}}</td></tr>
    <tr><td>Expected cash</td><td>{{money .Settings.Currency .Report.ExpectedCash}}</td></tr>
    {{with .Report.Shift.EndAmount}}<tr><td>Counted cash</td><td>{{money $.Settings.Currency .}}</td></tr>
    <tr><td>Difference</td><td>{{money $.Settings.Currency $.Report.Difference}}</td></tr>{{end}}
  </table>
  <h3>Movements</h3>
  <table>
    <thead><tr><th>Time</th><th>Type</th><th>Amount</th><th>Description</th></tr></thead>
    <tbody>{{range .Report.Movements}}<tr><td>{{date .Timestamp}}</td><td>{{.Type}}</td><td>{{money $.Settings.Currency .Amount}}</td><td>{{.Description}}</td></tr>{{end}}</tbody>
  </table>
  <p>Transactions: {{len .Report.Transactions}}</p>
</body>
</html>
`))

func saleHTML(tx domain.Transaction, settings domain.StoreSettings) ([]byte, error) {
	var buf bytes.Buffer
	err := saleHTMLTmpl.Execute(&buf, struct {
		Tx       domain.Transaction
		Settings domain.StoreSettings
	}{tx, settings})
	return buf.Bytes(), err
}

func shiftHTML(report domain.ShiftReport, settings domain.StoreSettings) ([]byte, error) {
	var buf bytes.Buffer
	err := shiftHTMLTmpl.Execute(&buf, struct {
		Report   domain.ShiftReport
		Settings domain.StoreSettings
	}{report, settings})
	return buf.Bytes(), err
}
