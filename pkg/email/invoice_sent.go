package email

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/a-h/templ"
)

// InvoiceSentData is the content of the mail a customer receives when an
// invoice is marked as sent. Amounts arrive preformatted.
type InvoiceSentData struct {
	BusinessName  string
	CustomerName  string
	InvoiceNumber string
	IssueDate     time.Time
	DueDate       time.Time
	Total         string
	Items         []InvoiceSentItem
	Notes         string
}

type InvoiceSentItem struct {
	Description string
	Quantity    string
	Amount      string
}

func InvoiceSentSubject(d InvoiceSentData) string {
	return fmt.Sprintf("Invoice %s from %s", d.InvoiceNumber, d.BusinessName)
}

const dateLayout = "02 Jan 2006"

// InvoiceSent renders the invoice summary. Every dynamic value is escaped.
func InvoiceSent(d InvoiceSentData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		e := templ.EscapeString
		var err error
		write := func(format string, args ...any) {
			if err == nil {
				_, err = fmt.Fprintf(w, format, args...)
			}
		}

		write(`<!doctype html><html><body style="font-family:sans-serif;color:#0f172a">`)
		write(`<p>Hi %s,</p>`, e(d.CustomerName))
		write(`<p>%s has sent you invoice <strong>%s</strong> dated %s.</p>`,
			e(d.BusinessName), e(d.InvoiceNumber), e(d.IssueDate.Format(dateLayout)))
		write(`<table cellpadding="6" style="border-collapse:collapse;width:100%%">`)
		write(`<tr><th align="left">Description</th><th align="right">Qty</th><th align="right">Amount</th></tr>`)
		for _, item := range d.Items {
			write(`<tr><td>%s</td><td align="right">%s</td><td align="right">%s</td></tr>`,
				e(item.Description), e(item.Quantity), e(item.Amount))
		}
		write(`</table>`)
		write(`<p><strong>Total due: %s</strong> by %s</p>`, e(d.Total), e(d.DueDate.Format(dateLayout)))
		if d.Notes != "" {
			write(`<p>%s</p>`, e(d.Notes))
		}
		write(`<p>Thank you!<br>%s</p></body></html>`, e(d.BusinessName))
		return err
	})
}

// InvoiceSentText is the plain-text alternative of InvoiceSent.
func InvoiceSentText(d InvoiceSentData) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", d.CustomerName)
	fmt.Fprintf(&b, "%s has sent you invoice %s dated %s.\n\n",
		d.BusinessName, d.InvoiceNumber, d.IssueDate.Format(dateLayout))
	for _, item := range d.Items {
		fmt.Fprintf(&b, "- %s x %s: %s\n", item.Description, item.Quantity, item.Amount)
	}
	fmt.Fprintf(&b, "\nTotal due: %s by %s\n", d.Total, d.DueDate.Format(dateLayout))
	if d.Notes != "" {
		fmt.Fprintf(&b, "\n%s\n", d.Notes)
	}
	fmt.Fprintf(&b, "\nThank you!\n%s\n", d.BusinessName)
	return b.String()
}
