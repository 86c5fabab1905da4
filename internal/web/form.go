package web

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/merchantsons/invoicegen/internal/invoice"
	"github.com/merchantsons/invoicegen/internal/session"
)

// draftForm binds the invoice fields submitted with every form button
type draftForm struct {
	CompanyName     string `form:"company_name"`
	CustomerName    string `form:"customer_name"`
	Address         string `form:"address"`
	InvoiceNumber   string `form:"invoice_number"`
	Date            string `form:"date"`
	TextColor       string `form:"text_color"`
	HeaderColor     string `form:"header_color"`
	BackgroundColor string `form:"background_color"`
}

func (f draftForm) toDraft() session.Draft {
	return session.Draft{
		CompanyName:     f.CompanyName,
		CustomerName:    f.CustomerName,
		Address:         f.Address,
		InvoiceNumber:   f.InvoiceNumber,
		Date:            strings.TrimSpace(f.Date),
		TextColor:       orDefault(f.TextColor, invoice.DefaultTextColor),
		HeaderColor:     orDefault(f.HeaderColor, invoice.DefaultHeaderColor),
		BackgroundColor: orDefault(f.BackgroundColor, invoice.DefaultBackgroundColor),
	}
}

// itemForm binds the "add item" fields
type itemForm struct {
	Name     string `form:"item_name"`
	Quantity string `form:"quantity"`
	Price    string `form:"price"`
}

// toItem parses the submitted item; the returned field errors use the same
// names as invoice validation.
func (f itemForm) toItem() (invoice.LineItem, []invoice.FieldError) {
	var errs []invoice.FieldError
	item := invoice.LineItem{Name: strings.TrimSpace(f.Name)}

	qty, err := strconv.Atoi(strings.TrimSpace(f.Quantity))
	if err != nil {
		errs = append(errs, invoice.FieldError{Field: "quantity", Message: "Must be a whole number"})
	}
	item.Quantity = qty

	price, err := invoice.ParsePrice(f.Price)
	switch {
	case errors.Is(err, invoice.ErrPriceInvalid):
		errs = append(errs, invoice.FieldError{Field: "price", Message: "Must be a number"})
	case errors.Is(err, invoice.ErrPriceTooLarge):
		errs = append(errs, invoice.FieldError{Field: "price", Message: "Must not exceed " + invoice.MaxUnitPrice.StringFixed(2)})
	case errors.Is(err, invoice.ErrPricePrecision):
		errs = append(errs, invoice.FieldError{Field: "price", Message: "Must be an amount in dollars and cents"})
	}
	item.UnitPrice = price

	return item, errs
}

// buildRequest assembles the renderer input from the session snapshot.
// Colors and date are converted here so that the rest of the program never
// sees them as strings.
func buildRequest(state session.State, now time.Time) (invoice.Request, []invoice.FieldError) {
	var errs []invoice.FieldError
	d := state.Draft

	req := invoice.Request{
		CompanyName:   d.CompanyName,
		CustomerName:  d.CustomerName,
		Address:       d.Address,
		InvoiceNumber: d.InvoiceNumber,
		Items:         state.Items,
		Logo:          state.Logo,
	}

	req.Date = now
	if d.Date != "" {
		date, err := time.Parse(invoice.DateLayout, d.Date)
		if err != nil {
			errs = append(errs, invoice.FieldError{Field: "date", Message: "Must be a date in YYYY-MM-DD format"})
		} else {
			req.Date = date
		}
	}

	req.TextColor, req.HeaderColor, req.BackgroundColor = invoice.DefaultColors()
	colors := []struct {
		field string
		value string
		dst   *invoice.RGB
	}{
		{"text_color", d.TextColor, &req.TextColor},
		{"header_color", d.HeaderColor, &req.HeaderColor},
		{"background_color", d.BackgroundColor, &req.BackgroundColor},
	}
	for _, c := range colors {
		if strings.TrimSpace(c.value) == "" {
			continue
		}
		rgb, err := invoice.ParseHex(c.value)
		if err != nil {
			errs = append(errs, invoice.FieldError{Field: c.field, Message: "Must be a hex color like #1E3A8A"})
			continue
		}
		*c.dst = rgb
	}

	return req, errs
}

func orDefault(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return strings.TrimSpace(value)
}
