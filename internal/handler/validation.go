package handler

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prperemyshlev/session-auth-service/internal/domain"
	"github.com/prperemyshlev/session-auth-service/internal/dto"
	"github.com/prperemyshlev/session-auth-service/internal/utils"
)

// RegisterValidators adds the password and role tags to gin's validator and
// reports JSON field names in validation errors
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
	}

	v.RegisterTagNameFunc(jsonFieldName)

	if err := v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return utils.ValidatePassword(fl.Field().String())
	}); err != nil {
		return fmt.Errorf("failed to register password validator: %w", err)
	}

	if err := v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		return domain.Role(fl.Field().String()).Valid()
	}); err != nil {
		return fmt.Errorf("failed to register role validator: %w", err)
	}

	return nil
}

func jsonFieldName(field reflect.StructField) string {
	name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return field.Name
	}
	return name
}

// fieldErrors flattens binding errors into the envelope detail
func fieldErrors(err error) []dto.FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}

	out := make([]dto.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, dto.FieldError{Field: fe.Field(), Rule: fe.Tag()})
	}
	return out
}

// passwordRuleViolated reports whether the only failed rule is the password policy
func passwordRuleViolated(err error) bool {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return false
	}
	for _, fe := range verrs {
		if fe.Tag() != "password" {
			return false
		}
	}
	return true
}
