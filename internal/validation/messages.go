package validation

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var fieldLabels = map[string]string{
	"username":  "Username",
	"firstName": "First name",
	"lastName":  "Last name",
	"mobile":    "Mobile number",
	"password":  "Password",
}

func message(fe validator.FieldError) string {
	label, ok := fieldLabels[fe.Field()]
	if !ok {
		label = fe.Field()
	}

	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters long", label, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters long", label, fe.Param())
	case "username":
		return label + " can only contain letters, numbers, and underscores"
	case "personname":
		return label + " can only contain letters and spaces"
	case "mobile":
		return "Please provide a valid 10-digit mobile number"
	case "strongpassword":
		return label + " must contain at least one lowercase letter, one uppercase letter, one number, and one special character (" + PasswordSymbols + ")"
	default:
		return label + " is invalid"
	}
}
