package util

import "testing"

func TestGetEnv(t *testing.T) {
	t.Setenv("SENTINEL_TEST_KEY", "configured")
	if got := GetEnv("SENTINEL_TEST_KEY", "fallback"); got != "configured" {
		t.Errorf("GetEnv = %q, want configured", got)
	}
	if got := GetEnv("SENTINEL_TEST_KEY_ABSENT", "fallback"); got != "fallback" {
		t.Errorf("GetEnv = %q, want fallback", got)
	}
}
