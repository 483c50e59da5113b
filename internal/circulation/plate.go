package circulation

import (
	"regexp"
	"strings"
)

var platePattern = regexp.MustCompile(`^[A-Za-z]{3}[0-9]{3}$`)

// ValidPlate reports whether plate is three letters followed by three digits.
func ValidPlate(plate string) bool {
	return platePattern.MatchString(plate)
}

func NormalizePlate(plate string) string {
	return strings.ToUpper(strings.TrimSpace(plate))
}

// LastDigit returns the restriction digit of a plate, or "" for an empty plate.
func LastDigit(plate string) string {
	plate = strings.TrimSpace(plate)
	if plate == "" {
		return ""
	}
	return plate[len(plate)-1:]
}

// IsDigit reports whether s is a single decimal digit.
func IsDigit(s string) bool {
	return len(s) == 1 && s[0] >= '0' && s[0] <= '9'
}
