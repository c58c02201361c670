package validator

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var (
	seatCodeRgx    = regexp.MustCompile(`^[A-Z]{1,2}[0-9]{1,3}$`)
	voucherCodeRgx = regexp.MustCompile(`^[A-Za-z0-9_-]{3,32}$`)
)

func NewValidator() *validator.Validate {
	validator := validator.New(validator.WithRequiredStructEnabled())

	validator.RegisterValidation("seat_code", validateSeatCode)
	validator.RegisterValidation("voucher_code", validateVoucherCode)
	validator.RegisterValidation("money", validateMoney)

	// decimals are validated through their string form
	validator.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{})

	return validator
}

func validateSeatCode(fl validator.FieldLevel) bool {
	return seatCodeRgx.MatchString(fl.Field().String())
}

func validateVoucherCode(fl validator.FieldLevel) bool {
	code := fl.Field().String()
	if code == "" {
		return true
	}

	return voucherCodeRgx.MatchString(code)
}

func decimalValue(v reflect.Value) any {
	d, ok := v.Interface().(decimal.Decimal)
	if !ok {
		return nil
	}
	return d.String()
}

// validateMoney accepts a non-negative decimal with at most two fractional
// digits.
func validateMoney(fl validator.FieldLevel) bool {
	amount, err := decimal.NewFromString(fl.Field().String())
	if err != nil {
		return false
	}

	return !amount.IsNegative() && amount.Equal(amount.Round(2))
}

// ValidationMessage converts validator errors into readable messages
func ValidationMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s", err.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", err.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", err.Param())
	case "gtfield":
		return fmt.Sprintf("must be after %s", lowerFirst(err.Param()))
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", err.Param())
	case "unique":
		return "must not contain duplicates"
	case "seat_code":
		return "must be a seat code such as A1 or AB12"
	case "voucher_code":
		return "must be 3 to 32 letters, digits, dashes or underscores"
	case "money":
		return "must be a non-negative amount with at most two decimals"
	default:
		return "is invalid"
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
