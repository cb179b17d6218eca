package processor

import (
	"os"
	"testing"
)

func TestCheckSafeProtectedPaths(t *testing.T) {
	for _, p := range []string{"/", "/etc", "/usr", "/home"} {
		if err := CheckSafe(p); err == nil {
			t.Errorf("CheckSafe(%q) accepted a protected path", p)
		}
	}
}

func TestCheckSafeHomeDirectory(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory in this environment")
	}
	if err := CheckSafe(home); err == nil {
		t.Error("CheckSafe accepted the home directory root")
	}
}

func TestCheckSafeOrdinaryDirectory(t *testing.T) {
	if err := CheckSafe(t.TempDir()); err != nil {
		t.Errorf("CheckSafe rejected a temp directory: %v", err)
	}
}

func TestCheckSafeTrailingSlash(t *testing.T) {
	if err := CheckSafe("/etc/"); err == nil {
		t.Error("CheckSafe accepted /etc/ with a trailing slash")
	}
}
