package validation

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/hpc-scale/prepare-scale/common/planerrors"
	"github.com/pkg/errors"
)

// New returns a validator which reports fields by the name found under the
// given struct tag key (for instance "yaml" or "flag").
func New(tagKey string) *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get(tagKey), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Struct validates s and converts the first failure into a planning error.
// A failed required check becomes a *planerrors.MissingFieldError.
func Struct(v *validator.Validate, what string, s interface{}) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return errors.Wrapf(err, "failed to validate %s", what)
	}

	ferr := verrs[0]
	if ferr.Tag() == "required" {
		return &planerrors.MissingFieldError{Field: ferr.Field()}
	}

	if ferr.Param() == "" {
		return errors.Errorf("%s field %s failed the %s check", what, ferr.Field(), ferr.Tag())
	}
	return errors.Errorf("%s field %s failed the %s=%s check", what, ferr.Field(), ferr.Tag(), ferr.Param())
}
