package utils

import (
	"fmt"
	"regexp"
)

var (
	codeRegex  = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
	colorRegex = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)
)

// ValidateCode validates a workflow or state code. Codes are machine
// identifiers stored in the database and referenced from transitions, so
// they are restricted to lowercase snake_case.
func ValidateCode(code string) error {
	if len(code) > 64 {
		return fmt.Errorf("code too long (max 64): %s", code)
	}
	if !codeRegex.MatchString(code) {
		return fmt.Errorf("invalid code format, expected lowercase snake_case: %s", code)
	}
	return nil
}

// ValidateHexColor validates a display color like #4caf50
func ValidateHexColor(color string) error {
	if color == "" {
		return nil
	}
	if !colorRegex.MatchString(color) {
		return fmt.Errorf("invalid color format, expected #rrggbb: %s", color)
	}
	return nil
}

// SanitizeString removes control characters from user-provided text
func SanitizeString(s string) string {
	sanitized := regexp.MustCompile(`[\x00-\x1f\x7f]`).ReplaceAllString(s, "")
	return sanitized
}
