package processor

import (
	"fmt"
	"os"
	"path/filepath"
)

// protectedPaths are directories a destructive run must never target.
// The gate runs before any file is touched.
var protectedPaths = []string{
	"/",
	"/bin",
	"/boot",
	"/dev",
	"/etc",
	"/home",
	"/lib",
	"/opt",
	"/proc",
	"/root",
	"/sbin",
	"/sys",
	"/tmp",
	"/usr",
	"/var",
	"/private",
	"/System",
	"/Library",
	"/Applications",
	"/Users",
}

// CheckSafe rejects a target root that resolves to a protected system
// path or to the user's home directory root. A path that cannot be
// resolved falls back to its absolute form.
func CheckSafe(root string) error {
	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		resolved = root
	}
	abs, err := filepath.Abs(resolved)
	if err != nil {
		return fmt.Errorf("cannot resolve target directory: %w", err)
	}
	abs = filepath.Clean(abs)

	for _, p := range protectedPaths {
		if abs == p {
			return fmt.Errorf("refusing to operate on protected directory %s; pick a subdirectory instead", abs)
		}
	}

	if home, err := os.UserHomeDir(); err == nil && abs == filepath.Clean(home) {
		return fmt.Errorf("refusing to operate on home directory root %s; pick a subdirectory instead", abs)
	}

	return nil
}
