package utils

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/engboost/snaplang-api/models"
)

var emailRule = regexp.MustCompile(`^[\w.+-]+@([\w-]+\.)+[\w-]{2,}$`)

const minPasswordLength = 8

func ValidEmail(email string) bool {
	return emailRule.MatchString(email)
}

func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < minPasswordLength {
		return BadRequest(fmt.Sprintf("Password must at least %d characters.", minPasswordLength))
	}
	return nil
}

// RequireText trims value and checks its length is within [1, max].
func RequireText(value, field string, max int) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", BadRequest(fmt.Sprintf("%s cannot be empty", field))
	}
	if utf8.RuneCountInString(trimmed) > max {
		return "", BadRequest(fmt.Sprintf("%s must be at most %d characters", field, max))
	}
	return trimmed, nil
}

// RequireID rejects identifiers that cannot exist in the store.
func RequireID(id, field string) error {
	if !models.ValidID(id) {
		return BadRequest(fmt.Sprintf("Invalid %s ID", field))
	}
	return nil
}
