package documents

import (
	"bytes"
	"html/template"
	"time"

	"github.com/gescom-erp/gescom/internal/billing/invoices"
	"github.com/gescom-erp/gescom/internal/billing/money"
	"github.com/gescom-erp/gescom/internal/billing/quotes"
)

var funcs = template.FuncMap{
	"amount": money.Format,
	"date": func(v any) string {
		switch t := v.(type) {
		case time.Time:
			return t.Format("02/01/2006")
		case *time.Time:
			if t == nil {
				return ""
			}
			return t.Format("02/01/2006")
		}
		return ""
	},
}

var quoteTmpl = template.Must(template.New("quote").Funcs(funcs).Parse(`<!DOCTYPE html>
<html lang="fr">
<head><meta charset="utf-8"><title>Devis {{.Reference}}</title>
<style>
body { font-family: sans-serif; font-size: 12px; margin: 40px; }
h1 { font-size: 18px; }
table { width: 100%; border-collapse: collapse; margin-top: 16px; }
th, td { border: 1px solid #444; padding: 6px; text-align: left; }
td.num, th.num { text-align: right; }
.totals { margin-top: 12px; text-align: right; font-weight: bold; }
.meta { color: #555; }
</style>
</head>
<body>
<h1>Devis {{.Reference}}</h1>
<p class="meta">Date : {{date .IssueDate}} — Validité : {{.ValidityDays}} jours</p>
<p><strong>{{.Client.Name}}</strong><br>{{.Client.Address}}<br>{{.Client.Contact}}</p>
{{if .Subject}}<p>Objet : {{.Subject}}</p>{{end}}
<table>
<tr><th>#</th><th>Réf.</th><th>Désignation</th><th class="num">Qté</th><th>Unité</th><th class="num">P.U.</th><th class="num">Montant</th></tr>
{{range .Lines}}<tr>
<td>{{.LineOrder}}</td><td>{{.Reference}}</td><td>{{.Designation}}{{if .Details}}<br><em>{{.Details}}</em>{{end}}</td>
<td class="num">{{.Quantity}}</td><td>{{.Unit}}</td><td class="num">{{amount .UnitPrice}}</td><td class="num">{{amount .Montant}}</td>
</tr>{{end}}
</table>
<p class="totals">Total HT : {{amount .TotalHT}}</p>
{{if .DeliveryTerms}}<p>Conditions de livraison : {{.DeliveryTerms}}</p>{{end}}
{{if .Warranty}}<p>Garantie : {{.Warranty}}</p>{{end}}
</body>
</html>`))

var invoiceTmpl = template.Must(template.New("invoice").Funcs(funcs).Parse(`<!DOCTYPE html>
<html lang="fr">
<head><meta charset="utf-8"><title>Facture {{.Reference}}</title>
<style>
body { font-family: sans-serif; font-size: 12px; margin: 40px; }
h1 { font-size: 18px; }
table { width: 100%; border-collapse: collapse; margin-top: 16px; }
th, td { border: 1px solid #444; padding: 6px; text-align: left; }
td.num, th.num { text-align: right; }
.totals { margin-top: 12px; text-align: right; }
.totals strong { display: inline-block; min-width: 140px; }
.meta { color: #555; }
</style>
</head>
<body>
<h1>Facture {{.Reference}}</h1>
<p class="meta">Date : {{date .IssueDate}}{{if .DueDate}} — Échéance : {{date .DueDate}}{{end}}</p>
<p><strong>{{.Client.Name}}</strong><br>{{.Client.Address}}<br>{{.Client.Contact}}</p>
{{if .Subject}}<p>Objet : {{.Subject}}</p>{{end}}
<table>
<tr><th>#</th><th>Réf.</th><th>Désignation</th><th class="num">Qté</th><th>Unité</th><th class="num">P.U.</th><th class="num">Montant</th></tr>
{{range .Lines}}<tr>
<td>{{.LineOrder}}</td><td>{{.Reference}}</td><td>{{.Designation}}{{if .Details}}<br><em>{{.Details}}</em>{{end}}</td>
<td class="num">{{.Quantity}}</td><td>{{.Unit}}</td><td class="num">{{amount .UnitPrice}}</td><td class="num">{{amount .Montant}}</td>
</tr>{{end}}
</table>
<div class="totals">
<p><strong>Total HT :</strong> {{amount .TotalHT}}</p>
<p><strong>TVA :</strong> {{amount .TotalTVA}}</p>
<p><strong>Total TTC :</strong> {{amount .TotalTTC}}</p>
<p><strong>Payé :</strong> {{amount .MontantPaye}}</p>
<p><strong>Reste à payer :</strong> {{amount .ResteAPayer}}</p>
</div>
{{if .Notes}}<p>{{.Notes}}</p>{{end}}
</body>
</html>`))

// QuoteHTML builds the printable snapshot of a quote.
func QuoteHTML(q *quotes.Quote) (string, error) {
	var buf bytes.Buffer
	if err := quoteTmpl.Execute(&buf, q); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// InvoiceHTML builds the printable snapshot of an invoice.
func InvoiceHTML(inv *invoices.Invoice) (string, error) {
	var buf bytes.Buffer
	if err := invoiceTmpl.Execute(&buf, inv); err != nil {
		return "", err
	}
	return buf.String(), nil
}
