package validation

import (
	"testing"
)

func TestIsValidEthAddress(t *testing.T) {
	tests := []struct {
		addr  string
		valid bool
	}{
		{"0x1234567890123456789012345678901234567890", true},
		{"0xabcdefABCDEF1234567890123456789012345678", true},
		{"0x0000000000000000000000000000000000000000", true},

		// Invalid cases
		{"1234567890123456789012345678901234567890", false},     // No 0x
		{"0x12345678901234567890123456789012345678", false},     // Too short
		{"0x123456789012345678901234567890123456789012", false}, // Too long
		{"0xGGGGGGGGGGGGGGGGGGGGGGGGGGGGGGGGGGGGGGGG", false},   // Invalid chars
		{"", false},
		{"0x", false},
	}

	for _, tc := range tests {
		result := IsValidEthAddress(tc.addr)
		if result != tc.valid {
			t.Errorf("IsValidEthAddress(%q) = %v, want %v", tc.addr, result, tc.valid)
		}
	}
}

func TestIsValidAgentID(t *testing.T) {
	tests := []struct {
		id    string
		valid bool
	}{
		{"debater-1", true},
		{"agent_42", true},
		{"A", true},
		{"", false},
		{"has space", false},
		{"emoji🤖", false},
		{"waaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaay-too-long", false},
	}

	for _, tc := range tests {
		if got := IsValidAgentID(tc.id); got != tc.valid {
			t.Errorf("IsValidAgentID(%q) = %v, want %v", tc.id, got, tc.valid)
		}
	}
}

func TestSanitizeAddress(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"0x1234567890123456789012345678901234567890", "0x1234567890123456789012345678901234567890"},
		{"0xABCDEF1234567890123456789012345678901234", "0xabcdef1234567890123456789012345678901234"},
		{"  0x1234567890123456789012345678901234567890  ", "0x1234567890123456789012345678901234567890"},
		{"1234567890123456789012345678901234567890", "0x1234567890123456789012345678901234567890"},
	}

	for _, tc := range tests {
		if got := SanitizeAddress(tc.input); got != tc.expected {
			t.Errorf("SanitizeAddress(%q) = %q, want %q", tc.input, got, tc.expected)
		}
	}
}

func TestSanitizeString(t *testing.T) {
	tests := []struct {
		input    string
		maxLen   int
		expected string
	}{
		{"  hello  ", 100, "hello"},
		{"hello\x00world", 100, "helloworld"},
		{"0123456789", 5, "01234"},
	}

	for _, tc := range tests {
		if got := SanitizeString(tc.input, tc.maxLen); got != tc.expected {
			t.Errorf("SanitizeString(%q, %d) = %q, want %q", tc.input, tc.maxLen, got, tc.expected)
		}
	}
}

func TestValidAmount(t *testing.T) {
	tests := []struct {
		value string
		ok    bool
	}{
		{"0.01", true},
		{"1", true},
		{"0.000000000000000001", true},
		{"", true}, // absence handled by Required
		{"0", false},
		{"0.00", false},
		{"-1", false},
		{"1.2.3", false},
		{".5", false},
		{"5.", false},
		{"abc", false},
	}

	for _, tc := range tests {
		err := ValidAmount("stake", tc.value)()
		if tc.ok && err != nil {
			t.Errorf("ValidAmount(%q) unexpected error: %v", tc.value, err)
		}
		if !tc.ok && err == nil {
			t.Errorf("ValidAmount(%q) expected error, got nil", tc.value)
		}
	}
}

func TestValidate(t *testing.T) {
	errs := Validate(
		Required("topic", ""),
		ValidAddress("wallet", "0xnope"),
		MaxLength("content", "abc", 2),
	)
	if len(errs) != 3 {
		t.Fatalf("expected 3 validation errors, got %d: %v", len(errs), errs)
	}
	if errs.Error() == "" {
		t.Error("expected non-empty error string")
	}
}
