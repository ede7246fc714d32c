package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report fields by their JSON names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// fieldMessages overrides the generic wording for specific field/rule pairs.
var fieldMessages = map[string]string{
	"deliveryOrderNumber.required": "Delivery Order Number is required.",
	"vehiclePlate.required":        "Vehicle Registration Number is required.",
	"distributorName.required":     "Distributor name is required.",
}

const duplicateDeliveryOrderMessage = "This Delivery Order Number already exists."

func duplicateDeliveryOrder() *ValidationError {
	return newValidationError("deliveryOrderNumber", duplicateDeliveryOrderMessage)
}

// validateStruct runs the validate tags of s and converts failures into a ValidationError.
func validateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	out := &ValidationError{Fields: make(map[string]string, len(fieldErrs))}
	for _, fe := range fieldErrs {
		if _, seen := out.Fields[fe.Field()]; seen {
			continue
		}
		out.Fields[fe.Field()] = messageFor(fe)
	}
	return out
}

func messageFor(fe validator.FieldError) string {
	if msg, ok := fieldMessages[fe.Field()+"."+fe.Tag()]; ok {
		return msg
	}
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("The %s field is required.", fe.Field())
	case "max":
		return fmt.Sprintf("The %s may not be greater than %s characters.", fe.Field(), fe.Param())
	case "min":
		return fmt.Sprintf("The %s must be at least %s characters.", fe.Field(), fe.Param())
	case "email":
		return fmt.Sprintf("The %s must be a valid email address.", fe.Field())
	case "oneof":
		return fmt.Sprintf("The selected %s is invalid.", fe.Field())
	default:
		return fmt.Sprintf("The %s field is invalid.", fe.Field())
	}
}
