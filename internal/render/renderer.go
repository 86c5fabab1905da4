// Package render lays out invoices as single-template PDF documents.
package render

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // registered for logo format sniffing
	_ "image/jpeg" // registered for logo format sniffing
	_ "image/png"  // registered for logo format sniffing
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"

	"github.com/merchantsons/invoicegen/internal/invoice"
	"github.com/merchantsons/invoicegen/internal/invoice/words"
)

// Page geometry in millimetres
const (
	pageWidth        = 210.0
	pageHeight       = 297.0
	pageBreakMargin  = 15.0
	logoWidth        = 18.5
	logoY            = 8.0
	headerBottom     = 53.1
	boldOffset       = 0.1
	fontFamily       = "Helvetica"
	logoImageName    = "logo"
	titleText        = "INVOICE"
	totalLabel       = "Total Amount Due:"
	amountWordsLabel = "Amount in Words: "
)

// undatedStamp is written as the document date when the request has none
var undatedStamp = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// Column widths of the item table
var columnWidths = [4]float64{100, 30, 30, 30}

// Config holds renderer options
type Config struct {
	// Creator is written into the document metadata.
	Creator string
	Logger  *zap.Logger
}

// Renderer produces invoice PDFs. It holds no per-invoice state and is safe
// for concurrent use.
type Renderer struct {
	creator string
	logger  *zap.Logger
}

// NewRenderer creates a renderer
func NewRenderer(cfg Config) *Renderer {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	creator := cfg.Creator
	if creator == "" {
		creator = "invoicegen"
	}
	return &Renderer{creator: creator, logger: logger}
}

// Result is a rendered document together with the figures printed on it
type Result struct {
	PDF           []byte
	Pages         int
	GrandTotal    string
	AmountInWords string
	// LogoError is set when a logo was supplied but could not be embedded.
	LogoError error
	// Anchors maps each section below the header to the page and Y
	// coordinate where it starts.
	Anchors map[string]Anchor
}

// Anchor is a position on the document
type Anchor struct {
	Page int
	Y    float64
}

// Section names recorded in Result.Anchors
const (
	SectionTitle    = "title"
	SectionMetadata = "metadata"
	SectionCustomer = "customer"
	SectionTable    = "table"
	SectionTotal    = "total"
	SectionWords    = "words"
)

// Render lays out the invoice and returns the PDF bytes
func (r *Renderer) Render(req invoice.Request) ([]byte, error) {
	res, err := r.RenderResult(req)
	if err != nil {
		return nil, err
	}
	return res.PDF, nil
}

// RenderResult is Render with the computed figures attached
func (r *Renderer) RenderResult(req invoice.Request) (*Result, error) {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetCreator(r.creator, false)
	doc.SetTitle(winAnsi("Invoice "+req.InvoiceNumber), false)
	doc.SetCatalogSort(true)
	stamp := req.Date
	if stamp.IsZero() {
		stamp = undatedStamp
	}
	doc.SetCreationDate(stamp)
	doc.SetModificationDate(stamp)
	doc.SetAutoPageBreak(true, pageBreakMargin)

	bg := req.BackgroundColor
	doc.SetHeaderFunc(func() {
		doc.SetFillColor(bg.Ints())
		doc.Rect(0, 0, pageWidth, pageHeight, "F")
	})
	doc.AddPage()
	doc.SetDrawColor(req.TextColor.Ints())

	l := &layout{doc: doc, req: req, anchors: make(map[string]Anchor)}

	logoErr := l.header(r.embedLogo(doc, req))
	if logoErr != nil {
		r.logger.Warn("logo could not be embedded, rendering without it",
			zap.String("invoice_number", req.InvoiceNumber),
			zap.Error(logoErr))
	}
	l.title()
	l.metadata()
	l.customer()
	total := l.table()
	inWords := l.totals(total)

	if doc.Err() {
		return nil, NewRenderError(ErrCodeLayoutFailed, "invoice layout failed", doc.Error())
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, NewRenderError(ErrCodeOutputFailed, "writing invoice PDF failed", err)
	}

	r.logger.Debug("invoice rendered",
		zap.String("invoice_number", req.InvoiceNumber),
		zap.Int("items", len(req.Items)),
		zap.Int("pages", doc.PageCount()),
		zap.Int("bytes", buf.Len()))

	return &Result{
		PDF:           buf.Bytes(),
		Pages:         doc.PageCount(),
		GrandTotal:    invoice.FormatMoney(total),
		AmountInWords: inWords,
		LogoError:     logoErr,
		Anchors:       l.anchors,
	}, nil
}

// logoEmbed is the outcome of registering the logo image with the document
type logoEmbed struct {
	present bool
	name    string
	err     error
}

// embedLogo registers the logo; failures are reported in the result, never
// left on the document.
func (r *Renderer) embedLogo(doc *fpdf.Fpdf, req invoice.Request) logoEmbed {
	if !req.HasLogo() {
		return logoEmbed{}
	}

	_, format, err := image.DecodeConfig(bytes.NewReader(req.Logo))
	if err != nil {
		return logoEmbed{present: true, err: fmt.Errorf("decode logo: %w", err)}
	}

	imageType := ""
	switch format {
	case "png":
		imageType = "PNG"
	case "jpeg":
		imageType = "JPG"
	case "gif":
		imageType = "GIF"
	default:
		return logoEmbed{present: true, err: fmt.Errorf("unsupported logo format: %s", format)}
	}

	doc.RegisterImageOptionsReader(logoImageName, fpdf.ImageOptions{ImageType: imageType}, bytes.NewReader(req.Logo))
	if doc.Err() {
		err := doc.Error()
		doc.ClearError()
		return logoEmbed{present: true, err: fmt.Errorf("embed logo: %w", err)}
	}

	return logoEmbed{present: true, name: logoImageName}
}

// layout writes the fixed sections of the invoice in order
type layout struct {
	doc     *fpdf.Fpdf
	req     invoice.Request
	anchors map[string]Anchor
}

func (l *layout) mark(section string) {
	l.anchors[section] = Anchor{Page: l.doc.PageNo(), Y: l.doc.GetY()}
}

func (l *layout) cell(w, h float64, text, border string, ln int, align string, fill bool) {
	l.doc.CellFormat(w, h, winAnsi(text), border, ln, align, fill, 0, "")
}

// header draws the logo and company name and leaves the cursor at
// headerBottom whichever branch was taken.
func (l *layout) header(logo logoEmbed) error {
	doc := l.doc
	doc.SetTextColor(l.req.TextColor.Ints())

	switch {
	case logo.present && logo.err == nil:
		doc.ImageOptions(logo.name, (pageWidth-logoWidth)/2, logoY, logoWidth, 0, false,
			fpdf.ImageOptions{}, 0, "")
		doc.SetFont(fontFamily, "B", 20)
		l.boldCentered(20, 25)
	case logo.present:
		doc.SetFont(fontFamily, "", 10)
		doc.SetXY(10, logoY)
		l.cell(190, 10, "Error loading logo: "+logo.err.Error(), "", 0, "L", false)
		doc.SetFont(fontFamily, "B", 20)
		l.boldCentered(20, 25)
	default:
		doc.SetFont(fontFamily, "B", 18)
		l.boldCentered(8, 10)
	}

	doc.SetY(headerBottom)
	return logo.err
}

// boldCentered draws the company name twice, the second copy shifted by a
// tenth of a millimetre to thicken the strokes.
func (l *layout) boldCentered(y, h float64) {
	l.doc.SetXY(0, y)
	l.cell(pageWidth, h, l.req.CompanyName, "", 0, "C", false)
	l.doc.SetXY(boldOffset, y+boldOffset)
	l.cell(pageWidth, h, l.req.CompanyName, "", 1, "C", false)
}

func (l *layout) title() {
	doc := l.doc
	doc.SetFont(fontFamily, "B", 18)
	doc.SetXY(0, doc.GetY())
	l.mark(SectionTitle)
	l.cell(pageWidth, 10, titleText, "", 1, "C", false)
	y := doc.GetY() - 1
	doc.Line(90, y, 120, y)
}

func (l *layout) metadata() {
	doc := l.doc
	doc.SetFont(fontFamily, "B", 12)
	doc.Ln(15)
	l.mark(SectionMetadata)
	l.cell(100, 6, "Invoice Number: "+l.req.InvoiceNumber, "", 0, "", false)
	doc.SetXY(160, doc.GetY())
	l.cell(50, 6, "Date: "+l.req.FormattedDate(), "", 0, "L", false)
	doc.Ln(7)
}

func (l *layout) customer() {
	doc := l.doc
	doc.SetFont(fontFamily, "", 12)
	l.mark(SectionCustomer)
	l.cell(100, 6, "Customer Name: "+l.req.CustomerName, "", 1, "", false)

	lines := strings.Split(strings.ReplaceAll(l.req.Address, "\r\n", "\n"), "\n")
	for i, line := range lines {
		if i == 0 {
			line = "Address: " + line
		} else {
			line = "         " + line
		}
		l.cell(100, 6, line, "", 1, "", false)
	}
}

// table emits the item rows and returns the grand total accumulated while
// doing so.
func (l *layout) table() decimal.Decimal {
	doc := l.doc
	doc.Ln(10)
	l.mark(SectionTable)

	doc.SetFont(fontFamily, "B", 12)
	doc.SetFillColor(l.req.HeaderColor.Ints())
	doc.SetTextColor(invoice.White.Ints())
	for i, heading := range []string{"Item", "Quantity", "Price", "Total"} {
		l.cell(columnWidths[i], 10, heading, "1", 0, "C", true)
	}
	doc.Ln(-1)

	doc.SetFont(fontFamily, "", 12)
	doc.SetTextColor(l.req.TextColor.Ints())
	doc.SetFillColor(l.req.BackgroundColor.Ints())

	total := decimal.Zero
	for _, item := range l.req.Items {
		lineTotal := item.LineTotal()
		l.cell(columnWidths[0], 10, l.fit(item.Name, columnWidths[0]-2), "1", 0, "L", true)
		l.cell(columnWidths[1], 10, fmt.Sprintf("%d", item.Quantity), "1", 0, "C", true)
		l.cell(columnWidths[2], 10, invoice.FormatMoney(item.UnitPrice), "1", 0, "C", true)
		l.cell(columnWidths[3], 10, invoice.FormatMoney(lineTotal), "1", 0, "C", true)
		doc.Ln(-1)
		total = total.Add(lineTotal)
	}
	return total.Round(2)
}

// totals prints the total row and the amount in words, returning the words
func (l *layout) totals(total decimal.Decimal) string {
	doc := l.doc
	doc.Ln(10)
	doc.SetFont(fontFamily, "B", 12)
	l.mark(SectionTotal)
	l.cell(columnWidths[0], 10, totalLabel, "1", 0, "", false)
	l.cell(columnWidths[1], 10, invoice.FormatMoney(total), "1", 0, "C", false)
	doc.Ln(-1)

	inWords := words.Capitalize(words.Currency(total))
	l.mark(SectionWords)
	doc.MultiCell(pageWidth-20, 10, winAnsi(amountWordsLabel+inWords), "", "L", false)
	return inWords
}

// fit shortens text with an ellipsis until it fits the given width
func (l *layout) fit(text string, width float64) string {
	if l.doc.GetStringWidth(winAnsi(text)) <= width {
		return text
	}
	runes := []rune(text)
	for len(runes) > 0 {
		runes = runes[:len(runes)-1]
		candidate := string(runes) + "..."
		if l.doc.GetStringWidth(winAnsi(candidate)) <= width {
			return candidate
		}
	}
	return ""
}

// winAnsi converts UTF-8 text to the Windows-1252 bytes the core fonts
// expect; runes outside the code page become '?'.
func winAnsi(s string) string {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if r < 0x80 {
			out = append(out, byte(r))
			continue
		}
		if b, ok := charmap.Windows1252.EncodeRune(r); ok {
			out = append(out, b)
			continue
		}
		out = append(out, '?')
	}
	return string(out)
}
