package promotion

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Request is a fully resolved cart to price.
type Request struct {
	CartItems     []CartItem `json:"cartItems" validate:"required,min=1,dive"`
	CouponCodes   []string   `json:"couponCodes"`
	OrderDateTime *time.Time `json:"orderDateTime"`
	Currency      string     `json:"currency" validate:"notblank"`
}

// CartItem is one cart entry as supplied by the caller.
type CartItem struct {
	ProductID            uuid.UUID       `json:"productId" validate:"required"`
	ProductName          string          `json:"productName"`
	UnitPrice            decimal.Decimal `json:"unitPrice" validate:"gte=0"`
	Quantity             decimal.Decimal `json:"quantity" validate:"gt=0"`
	CategoryIDs          []uuid.UUID     `json:"categoryIds"`
	ExistingLineDiscount decimal.Decimal `json:"existingLineDiscount" validate:"gte=0,lte=100"`
}

// NewValidator returns a validator that understands decimal and uuid fields
// and reports fields by their JSON names.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.InexactFloat64()
		}
		return nil
	}, decimal.Decimal{})
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if id, ok := field.Interface().(uuid.UUID); ok && id != uuid.Nil {
			return id.String()
		}
		return ""
	}, uuid.UUID{})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// ValidateRequest returns one message per violation, or nil when the request can be priced.
func ValidateRequest(v *validator.Validate, req Request) []string {
	err := v.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []string{err.Error()}
	}
	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		messages = append(messages, describeFieldError(fe))
	}
	return messages
}

func describeFieldError(fe validator.FieldError) string {
	field := fe.Namespace()
	if idx := strings.Index(field, "."); idx >= 0 {
		field = field[idx+1:]
	}
	switch fe.Tag() {
	case "required", "notblank":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must contain at least %s item(s)", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
