// Package validation holds the static rule sets for signup and login
// payloads. Every rule lives in a struct tag; the named rules are
// registered once when the package is initialised.
package validation

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// PasswordSymbols is the set a strong password must draw at least one
// character from.
const PasswordSymbols = "@$!%*?&"

// UsernameMaxLength is the widest username the users and auth_events
// tables can hold.
const UsernameMaxLength = 50

var (
	usernamePattern   = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
	personNamePattern = regexp.MustCompile(`^[A-Za-z ]+$`)
	mobilePattern     = regexp.MustCompile(`^[6-9][0-9]{9}$`)
)

type SignupInput struct {
	Username  string `json:"username" validate:"required,min=3,max=50,username"`
	FirstName string `json:"firstName" validate:"required,min=2,max=50,personname"`
	LastName  string `json:"lastName" validate:"required,min=2,max=50,personname"`
	Mobile    string `json:"mobile" validate:"required,mobile"`
	Password  string `json:"password" validate:"required,min=8,max=128,strongpassword"`
}

type LoginInput struct {
	Username string `json:"username" validate:"required,min=3"`
	Password string `json:"password" validate:"required"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Errors carries every violated field of one payload.
type Errors []FieldError

func (e Errors) Error() string {
	parts := make([]string, 0, len(e))
	for _, fe := range e {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	mustRegister(v, "username", matches(usernamePattern))
	mustRegister(v, "personname", matches(personNamePattern))
	mustRegister(v, "mobile", matches(mobilePattern))
	mustRegister(v, "strongpassword", func(fl validator.FieldLevel) bool {
		return IsStrongPassword(fl.Field().String())
	})

	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(err)
	}
}

func matches(re *regexp.Regexp) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return re.MatchString(fl.Field().String())
	}
}

// IsStrongPassword checks character-class composition only; length is a
// separate rule.
func IsStrongPassword(password string) bool {
	var lower, upper, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r) && r < unicode.MaxASCII:
			lower = true
		case unicode.IsUpper(r) && r < unicode.MaxASCII:
			upper = true
		case unicode.IsDigit(r) && r < unicode.MaxASCII:
			digit = true
		case strings.ContainsRune(PasswordSymbols, r):
			symbol = true
		}
	}
	return lower && upper && digit && symbol
}

func ValidateSignup(in SignupInput) error {
	return run(in)
}

func ValidateLogin(in LoginInput) error {
	return run(in)
}

func run(in any) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := make(Errors, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{
			Field:   fe.Field(),
			Message: message(fe),
		})
	}
	return out
}
