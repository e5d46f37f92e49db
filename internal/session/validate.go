package session

import (
	"errors"
	"strings"
	"unicode/utf8"
)

const (
	minPasswordLen = 6
	minNameLen     = 2
)

// ValidateEmail checks an email address field.
func ValidateEmail(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return errors.New("email is required")
	}
	if !strings.Contains(s, "@") {
		return errors.New("email is not valid")
	}
	return nil
}

// ValidatePassword checks a password field.
func ValidatePassword(s string) error {
	if utf8.RuneCountInString(s) < minPasswordLen {
		return errors.New("password must be at least 6 characters")
	}
	return nil
}

// ValidateName checks a first or last name field.
func ValidateName(s string) error {
	if utf8.RuneCountInString(strings.TrimSpace(s)) < minNameLen {
		return errors.New("name must be at least 2 characters")
	}
	return nil
}

// ValidateLogin checks sign-in credentials before they are sent.
func ValidateLogin(email, password string) error {
	return errors.Join(ValidateEmail(email), ValidatePassword(password))
}

// Validate checks a registration before it is sent.
func (in RegisterInput) Validate() error {
	return errors.Join(
		ValidateEmail(in.Email),
		ValidatePassword(in.Password),
		ValidateName(in.FirstName),
		ValidateName(in.LastName),
	)
}
