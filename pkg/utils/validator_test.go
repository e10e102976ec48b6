package utils

import (
	"strings"
	"testing"
)

func TestValidateCode(t *testing.T) {
	valid := []string{"pending", "request_free_day", "a", "state_2"}
	for _, code := range valid {
		if err := ValidateCode(code); err != nil {
			t.Errorf("ValidateCode(%q) = %v, want nil", code, err)
		}
	}

	invalid := []string{"", "Pending", "2fast", "has space", "with-dash", strings.Repeat("a", 65)}
	for _, code := range invalid {
		if err := ValidateCode(code); err == nil {
			t.Errorf("ValidateCode(%q) = nil, want error", code)
		}
	}
}

func TestValidateHexColor(t *testing.T) {
	for _, color := range []string{"", "#ff9800", "#FFFFFF", "#4caf50"} {
		if err := ValidateHexColor(color); err != nil {
			t.Errorf("ValidateHexColor(%q) = %v, want nil", color, err)
		}
	}
	for _, color := range []string{"ff9800", "#fff", "#gggggg", "red"} {
		if err := ValidateHexColor(color); err == nil {
			t.Errorf("ValidateHexColor(%q) = nil, want error", color)
		}
	}
}
