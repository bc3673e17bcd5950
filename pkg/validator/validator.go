package validator

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// ErrInvalidPairingCode indicates a pairing code is not exactly five digits
var ErrInvalidPairingCode = errors.New("pairing code must be exactly 5 digits")

const pairingCodeLength = 5

// Validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()

	// Use JSON tag names in error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	registerCustomValidations()
}

func registerCustomValidations() {
	validate.RegisterValidation("pairing_code", func(fl validator.FieldLevel) bool {
		return isPairingCode(fl.Field().String())
	})

	// A hotel room-type slot holds either a room-type UUID or a pairing code
	validate.RegisterValidation("room_type_ref", func(fl validator.FieldLevel) bool {
		value := fl.Field().String()
		if isPairingCode(value) {
			return true
		}
		_, err := uuid.Parse(value)
		return err == nil
	})

	validate.RegisterValidation("accommodation_kind", func(fl validator.FieldLevel) bool {
		switch strings.ToUpper(fl.Field().String()) {
		case "HOSTEL", "HOTEL":
			return true
		}
		return false
	})
}

func isPairingCode(s string) bool {
	if len(s) != pairingCodeLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Validate validates a struct and returns a map of field errors
func Validate(s interface{}) map[string]string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return map[string]string{"_": err.Error()}
	}

	fieldErrors := make(map[string]string)
	for _, err := range validationErrors {
		field := err.Field()
		switch err.Tag() {
		case "required":
			fieldErrors[field] = "This field is required"
		case "uuid":
			fieldErrors[field] = "Must be a UUID"
		case "url":
			fieldErrors[field] = "Invalid URL format"
		case "gt":
			fieldErrors[field] = "Value must be greater than " + err.Param()
		case "oneof":
			fieldErrors[field] = "Must be one of: " + err.Param()
		case "pairing_code":
			fieldErrors[field] = ErrInvalidPairingCode.Error()
		case "room_type_ref":
			fieldErrors[field] = "Must be a room type ID or a 5 digit pairing code"
		case "accommodation_kind":
			fieldErrors[field] = "Must be HOSTEL or HOTEL"
		default:
			fieldErrors[field] = "Invalid value"
		}
	}

	return fieldErrors
}

// ValidateVar validates a single variable
func ValidateVar(field interface{}, tag string) error {
	return validate.Var(field, tag)
}

// ValidatePairingCode checks a code typed by a user before it is submitted
func ValidatePairingCode(code string) error {
	if err := validate.Var(strings.TrimSpace(code), "required,pairing_code"); err != nil {
		return ErrInvalidPairingCode
	}
	return nil
}
