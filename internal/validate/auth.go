package validate

import (
	"regexp"
	"strings"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Password length bounds.
const (
	MinPasswordLength = 6
	MaxPasswordLength = 128
)

// AuthInput checks sign-up and sign-in credentials.
func AuthInput(email, password string) Result {
	var errs []string

	email = strings.TrimSpace(email)
	switch {
	case email == "":
		errs = append(errs, "Email is required")
	case !emailPattern.MatchString(email):
		errs = append(errs, "Please enter a valid email address")
	}

	switch {
	case strings.TrimSpace(password) == "":
		errs = append(errs, "Password is required")
	case len(password) < MinPasswordLength:
		errs = append(errs, "Password must be at least 6 characters long")
	case len(password) > MaxPasswordLength:
		errs = append(errs, "Password must be less than 128 characters")
	}

	return newResult(errs)
}
