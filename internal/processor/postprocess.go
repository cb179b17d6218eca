package processor

import (
	"fmt"
	"os"
	"os/exec"

	"squish/pkg/imgutil"
)

// Post-processing runs on the staged output before commit, in a fixed
// order: metadata migration, then timestamp restoration, then the
// health check. Metadata and timestamp problems are warnings; a failed
// health check fails the file.

type healthResult struct {
	Ran    bool
	Passed bool
}

func postProcess(src, staged string, media Media, opts Options, warn func(string)) (healthResult, error) {
	if warn == nil {
		warn = func(string) {}
	}

	if err := migrateMetadata(src, staged); err != nil {
		warn(fmt.Sprintf("%s: metadata migration failed: %v", src, err))
	}

	if err := restoreTimestamps(src, staged); err != nil {
		warn(fmt.Sprintf("%s: timestamp restore failed: %v", staged, err))
	}

	if opts.SkipHealthCheck {
		return healthResult{}, nil
	}

	if err := healthCheck(staged, media); err != nil {
		return healthResult{Ran: true}, err
	}
	return healthResult{Ran: true, Passed: true}, nil
}

// restoreTimestamps copies the source file's access and modification
// times onto the staged output. A vanished source is not an error.
func restoreTimestamps(src, staged string) error {
	info, err := os.Stat(src)
	if err != nil {
		return nil
	}
	atime, mtime := fileTimes(info)
	return os.Chtimes(staged, atime, mtime)
}

// healthCheck proves a staged output is structurally sound: non-empty,
// carrying the right signature, and fully decodable.
func healthCheck(staged string, media Media) error {
	info, err := os.Stat(staged)
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		return fmt.Errorf("%s: output is empty", staged)
	}

	switch media {
	case MediaImage:
		kind, err := imgutil.SniffFile(staged)
		if err != nil {
			return err
		}
		if kind != imgutil.KindJXL {
			return fmt.Errorf("%s: output signature is %s, not JPEG XL", staged, kind)
		}
		// Without djxl the signature pass above is the whole check.
		if _, err := exec.LookPath("djxl"); err != nil {
			return nil
		}
		return verifyJXL(staged)
	case MediaVideo:
		return verifyVideo(staged)
	}
	return nil
}
