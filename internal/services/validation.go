package services

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"assetflow/internal/common"
	"assetflow/internal/models"

	"github.com/go-playground/validator/v10"
)

// NewValidator returns a validator that also understands the location tag.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("location", func(fl validator.FieldLevel) bool {
		return models.Location(fl.Field().String()).Valid()
	})
	return v
}

// validationError turns validator output into the first field error.
func validationError(err error) error {
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return common.NewValidation("", err.Error())
	}
	fe := fieldErrs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required", "required_if":
		return common.NewValidation(field, "is required")
	case "location":
		return common.NewValidation(field, fmt.Sprintf("must be one of %q, %q, %q",
			models.LocationEmployee, models.LocationOurOffice, models.LocationFPWarehouse))
	case "oneof":
		return common.NewValidation(field, "must be one of: "+fe.Param())
	case "len":
		return common.NewValidation(field, "must have length "+fe.Param())
	default:
		return common.NewValidation(field, fmt.Sprintf("failed %s validation", fe.Tag()))
	}
}
