package utils

import (
	"fmt"
	"strings"

	"github.com/badoux/checkmail"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

func ValidateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	// Format validation errors
	var errors []string
	for _, err := range err.(validator.ValidationErrors) {
		field := strings.ToLower(err.Field())
		tag := err.Tag()
		param := err.Param()

		switch tag {
		case "required":
			errors = append(errors, field+" is required")
		case "min":
			errors = append(errors, field+" must be at least "+param+" characters")
		case "max":
			errors = append(errors, field+" must be at most "+param+" characters")
		case "email":
			errors = append(errors, field+" must be a valid email")
		case "fqdn":
			errors = append(errors, field+" must be a fully qualified domain")
		default:
			errors = append(errors, field+" is invalid")
		}
	}

	return fmt.Errorf(strings.Join(errors, ", "))
}

// NormalizeValue lower-cases and trims a domain or email so stored
// entries and lookups compare case-insensitively.
func NormalizeValue(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// IsValidEmail reports whether s is a syntactically valid email address.
func IsValidEmail(s string) bool {
	return checkmail.ValidateFormat(s) == nil
}

// IsValidFQDN reports whether s is a fully qualified domain name.
func IsValidFQDN(s string) bool {
	return validate.Var(s, "required,fqdn") == nil
}

// ExtractDomain returns the domain part of an email address, or ""
// when the input has no single @ separator.
func ExtractDomain(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) == 2 {
		return parts[1]
	}
	return ""
}
