// ABOUTME: Test helpers for config tests
// ABOUTME: Provides utilities for environment variable management

package config

import (
	"os"
	"path/filepath"
	"testing"
)

// configKeys lists every environment variable Load reads
var configKeys = []string{
	"NDA_CONFIG", "NDA_AUTH_URL", "LOG_LEVEL", "LOG_FORMAT", "NDA_LOG_DIR",
	"NDA_REFRESH_LEAD", "NDA_REFRESH_MAX_DELAY", "NDA_WARNING_WINDOW",
	"NDA_DEV_ADDR", "NDA_DEV_USERS_FILE", "NDA_DEV_MFA_CODE", "NDA_DEV_COOKIE_SECURE",
	"NDA_DEV_RATE_LIMIT_ENABLED", "NDA_DEV_MFA_ATTEMPTS", "NDA_DEV_RATE_LIMIT_AUTH",
	"NDA_DEV_SESSION_TTL", "NDA_DEV_CHALLENGE_TTL", "NDA_DEV_LOCKOUT_WINDOW",
}

// withCleanEnv blanks every config variable for the duration of the test,
// then sets extra. Blank values are treated as unset by Load.
//
// Example:
//
//	func TestSomething(t *testing.T) {
//	    withCleanEnv(t, map[string]string{"NDA_AUTH_URL": "http://auth:9000"})
//	}
func withCleanEnv(t *testing.T, extra map[string]string) {
	t.Helper()

	for _, key := range configKeys {
		t.Setenv(key, "")
	}
	for key, value := range extra {
		t.Setenv(key, value)
	}
}

// writeFile writes content into a temp file and returns its path
func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}
