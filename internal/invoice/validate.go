package invoice

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// MissingFieldsMessage is shown when generation is refused
const MissingFieldsMessage = "Please fill in all fields and add at least one item."

// FieldError describes one rejected field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is returned when a request must not reach the renderer
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "invalid invoice: " + strings.Join(parts, "; ")
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func engine() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		validate.RegisterCustomTypeFunc(func(v reflect.Value) interface{} {
			d, ok := v.Interface().(decimal.Decimal)
			if !ok {
				return nil
			}
			if d.IsZero() {
				return 0.0
			}
			if checkPrice(d) != nil {
				return math.Inf(d.Sign())
			}
			f, _ := d.Float64()
			return f
		}, decimal.Decimal{})
	})
	return validate
}

// Normalize trims the free-text fields in place
func (r *Request) Normalize() {
	r.CompanyName = strings.TrimSpace(r.CompanyName)
	r.CustomerName = strings.TrimSpace(r.CustomerName)
	r.Address = strings.TrimSpace(r.Address)
	r.InvoiceNumber = strings.TrimSpace(r.InvoiceNumber)
	for i := range r.Items {
		r.Items[i].Name = strings.TrimSpace(r.Items[i].Name)
	}
}

// Validate checks the request before it is handed to the renderer
func Validate(r Request) error {
	r.Items = append([]LineItem(nil), r.Items...)
	r.Normalize()
	return toValidationError(engine().Struct(r))
}

// ValidateItem checks a single item before it is added to the list
func ValidateItem(item LineItem) error {
	item.Name = strings.TrimSpace(item.Name)
	return toValidationError(engine().Struct(item))
}

func toValidationError(err error) error {
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return fmt.Errorf("validation failed: %w", err)
	}

	result := &ValidationError{}
	for _, e := range validationErrors {
		result.Fields = append(result.Fields, FieldError{
			Field:   fieldPath(e),
			Message: validationMessage(e),
		})
	}
	return result
}

// fieldPath drops the struct name prefix, so "Request.items[0].name" becomes "items[0].name"
func fieldPath(e validator.FieldError) string {
	ns := e.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "min":
		if e.Kind() == reflect.Slice {
			return "At least " + e.Param() + " item is required"
		}
		return "Must be at least " + e.Param()
	case "gte":
		return "Must be greater than or equal to " + e.Param()
	case "lte":
		return "Must be less than or equal to " + e.Param()
	default:
		return "Invalid value"
	}
}
