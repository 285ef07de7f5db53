package utils

import "testing"

func TestSafeEnv(t *testing.T) {
	t.Setenv("KOECAN_TEST_KEY", "value")
	if got := SafeEnv("KOECAN_TEST_KEY", "fallback"); got != "value" {
		t.Fatalf("SafeEnv=%q, want value", got)
	}
	if got := SafeEnv("KOECAN_TEST_MISSING", "fallback"); got != "fallback" {
		t.Fatalf("SafeEnv=%q, want fallback", got)
	}
}
