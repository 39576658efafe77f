package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	aserrors "github.com/vnykmshr/asyncsched/pkg/common/errors"
)

// newValidator reports fields by their configuration key instead of the Go
// field name.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("koanf"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// checkStruct validates s and converts the first failure into a
// ValidationError.
func checkStruct(v *validator.Validate, s interface{}) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) || len(validationErrors) == 0 {
		return fmt.Errorf("%w: %v", aserrors.ErrInvalidConfiguration, err)
	}

	first := validationErrors[0]
	reason := first.Tag()
	if first.Param() != "" {
		reason += "=" + first.Param()
	}
	return aserrors.NewValidationError("config", keyOf(first.Namespace()), first.Value(), "violates "+reason)
}

// keyOf turns "Config.scheduler.workers" into "scheduler.workers".
func keyOf(namespace string) string {
	if i := strings.Index(namespace, "."); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}
