package domain

import (
	"regexp"
	"strings"
)

var (
	emailPattern = regexp.MustCompile(`^\S+@\S+\.\S+$`)
	phonePattern = regexp.MustCompile(`^\d{10}$`)
)

// ValidEmail applies the loose address check used for every account email.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// ValidPhone requires exactly ten digits.
func ValidPhone(phone string) bool {
	return phonePattern.MatchString(phone)
}

// NormalizeEmail trims surrounding whitespace. Case is preserved for storage;
// comparisons are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.TrimSpace(email)
}

// ValidateContact checks a contact block for the given role ("owner" or
// "resident"). Name and email are mandatory once any field is supplied.
func ValidateContact(role string, c *Contact) error {
	if c.Empty() {
		return nil
	}
	if strings.TrimSpace(c.Name) == "" || strings.TrimSpace(c.Email) == "" {
		return Validation("%s name and email are required", role)
	}
	if !ValidEmail(c.Email) {
		return Validation("invalid %s email format", role)
	}
	if c.Phone != "" && !ValidPhone(c.Phone) {
		return Validation("%s phone must be exactly 10 digits", role)
	}
	return nil
}
