package utils

import (
	"strings"
)

// TrimOrEmpty normalizes user input.
func TrimOrEmpty(s string) string {
	return strings.TrimSpace(s)
}

// NormalizeSpace collapses repeated whitespace into a single space.
func NormalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// FirstNonEmpty returns the first value that is not blank.
func FirstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// MaskPlate keeps the last three characters of a licence plate visible,
// e.g. "AB-123-CD" -> "******-CD".
func MaskPlate(plate string) string {
	plate = strings.ToUpper(strings.TrimSpace(plate))
	if len(plate) <= 3 {
		return plate
	}
	keep := 3
	return strings.Repeat("*", len(plate)-keep) + plate[len(plate)-keep:]
}
