package invoice

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the layout used when printing the invoice date
const DateLayout = "2006-01-02"

// Default colors offered by the form
const (
	DefaultTextColor       = "#FFFFFF"
	DefaultHeaderColor     = "#60A5FA"
	DefaultBackgroundColor = "#1E3A8A"
)

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// LineItem represents one purchasable entry on an invoice
type LineItem struct {
	Name      string          `json:"name" validate:"required"`
	Quantity  int             `json:"quantity" validate:"gte=1"`
	UnitPrice decimal.Decimal `json:"price" validate:"gte=0,lte=1000000000"`
}

// LineTotal returns quantity multiplied by unit price
func (i LineItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Request is the full snapshot handed to the renderer
type Request struct {
	CompanyName   string     `json:"company_name" validate:"required"`
	CustomerName  string     `json:"customer_name" validate:"required"`
	Address       string     `json:"address" validate:"required"`
	InvoiceNumber string     `json:"invoice_number" validate:"required"`
	Date          time.Time  `json:"date"`
	Items         []LineItem `json:"items" validate:"min=1,dive"`

	TextColor       RGB `json:"text_color"`
	HeaderColor     RGB `json:"header_color"`
	BackgroundColor RGB `json:"background_color"`

	// Logo holds PNG bytes of the processed logo, nil when absent.
	Logo []byte `json:"-"`
}

// FormattedDate returns the date as printed on the document
func (r Request) FormattedDate() string {
	return r.Date.Format(DateLayout)
}

// HasLogo reports whether a logo was supplied
func (r Request) HasLogo() bool {
	return len(r.Logo) > 0
}

// GrandTotal sums the line totals and rounds to cents
func GrandTotal(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.LineTotal())
	}
	return total.Round(2)
}

// FormatMoney renders an amount as $X.XX
func FormatMoney(amount decimal.Decimal) string {
	return "$" + amount.StringFixed(2)
}

// Filename returns the download name Invoice_{number}.pdf
func Filename(invoiceNumber string) string {
	number := unsafeFilenameChars.ReplaceAllString(strings.TrimSpace(invoiceNumber), "_")
	if number == "" {
		number = "draft"
	}
	return "Invoice_" + number + ".pdf"
}
