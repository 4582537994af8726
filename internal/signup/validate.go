package signup

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

var gstinPattern = regexp.MustCompile(`^[0-9]{2}[A-Z0-9]{13}$`)

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	mustRegister("latlng", func(fl validator.FieldLevel) bool {
		_, _, err := ParseGPSLocation(fl.Field().String())
		return err == nil
	})
	mustRegister("service", func(fl validator.FieldLevel) bool {
		_, ok := FindService(fl.Field().String())
		return ok
	})
	mustRegister("vehicle", func(fl validator.FieldLevel) bool {
		return isVehicleType(fl.Field().String())
	})
	mustRegister("gstin", func(fl validator.FieldLevel) bool {
		return gstinPattern.MatchString(strings.ToUpper(fl.Field().String()))
	})
}

func mustRegister(tag string, fn validator.Func) {
	if err := validate.RegisterValidation(tag, fn); err != nil {
		panic(err)
	}
}

var errorMessages = map[string]string{
	"required": "The field '%s' is required.",
	"min":      "The field '%s' must have at least %s entries.",
	"max":      "The field '%s' must be no longer than %s characters.",
	"len":      "The field '%s' must be exactly %s characters long.",
	"latlng":   "The field '%s' must be \"latitude, longitude\".",
	"service":  "The field '%s' must be a known service.",
	"vehicle":  "The field '%s' must be a known vehicle type.",
	"gstin":    "The field '%s' must be a valid GSTIN.",
}

func parseMessage(field string, e validator.FieldError) string {
	if msg, ok := errorMessages[e.Tag()]; ok {
		switch strings.Count(msg, "%s") {
		case 1:
			return fmt.Sprintf(msg, field)
		case 2:
			return fmt.Sprintf(msg, field, e.Param())
		}
	}
	return fmt.Sprintf("Field '%s' is invalid: %s", field, e.Tag())
}

// validateStruct returns a map of JSON field names to friendly error messages
func validateStruct(s any) map[string]string {
	fieldErrors := make(map[string]string)

	var validationErrs validator.ValidationErrors
	if err := validate.Struct(s); errors.As(err, &validationErrs) {
		for _, e := range validationErrs {
			// Collapse slice elements onto the slice field
			field := e.Field()
			if i := strings.IndexByte(field, '['); i >= 0 {
				field = field[:i]
			}
			if _, seen := fieldErrors[field]; !seen {
				fieldErrors[field] = parseMessage(field, e)
			}
		}
	}

	return fieldErrors
}

// ParseGPSLocation parses "lat, lng" as produced by the location button
func ParseGPSLocation(s string) (float64, float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("gps location %q: expected \"lat, lng\"", s)
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("gps latitude: %w", err)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("gps longitude: %w", err)
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return 0, 0, fmt.Errorf("gps location %q: out of range", s)
	}
	return lat, lng, nil
}
