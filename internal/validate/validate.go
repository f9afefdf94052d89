package validate

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"shopfront/internal/apperr"
)

var (
	reEmail = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
	rePrice = regexp.MustCompile(`^[0-9]{1,9}(\.[0-9]{1,2})?$`)

	v = newValidator()
)

func newValidator() *validator.Validate {
	vv := validator.New(validator.WithRequiredStructEnabled())
	_ = vv.RegisterValidation("price", func(fl validator.FieldLevel) bool {
		_, ok := Price(fl.Field().String())
		return ok
	})
	return vv
}

type RegisterForm struct {
	Email    string `form:"email" validate:"required,max=254"`
	Name     string `form:"name" validate:"required,max=50"`
	Password string `form:"password" validate:"required,min=8,max=72"`
}

type LoginForm struct {
	Email    string `form:"email" validate:"required,max=254"`
	Password string `form:"password" validate:"required,max=72"`
}

type ItemForm struct {
	Name        string `form:"name" validate:"required,max=100"`
	ImageURL    string `form:"img_url" validate:"omitempty,url,max=2048"`
	Quantity    int    `form:"quantity" validate:"gte=0"`
	Description string `form:"description" validate:"max=2000"`
	Price       string `form:"price" validate:"required,price"`
}

type QuantityForm struct {
	Quantity string `form:"quantity" validate:"required"`
}

// Struct runs the tag rules on s and reports the first failing field as a Validation error.
func Struct(s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return apperr.Wrap(apperr.CodeValidation, err, strings.ToLower(fe.Field())+" is invalid")
	}
	return apperr.Wrap(apperr.CodeValidation, err, "invalid input")
}

func Email(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if len(s) == 0 || len(s) > 254 {
		return "", false
	}
	return s, reEmail.MatchString(s)
}

// Qty parses a strictly positive whole quantity.
func Qty(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// ID parses a positive integer resource id.
func ID(s string) (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// Price accepts a positive amount with at most two decimals.
func Price(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if !rePrice.MatchString(s) {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsPositive() {
		return decimal.Zero, false
	}
	return d, true
}
