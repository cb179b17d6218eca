package processor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Commit is the only step that makes a conversion visible: a rename of
// the staged file onto the final path. Everything before it can fail
// without leaving anything behind but the staged file, which the
// caller removes via defer.

// targetPath returns the final sibling path for a converted file. A
// source already carrying the target extension (H.264 in .mp4 is the
// common case) gets a codec suffix on the stem so the target never
// collides with the source.
func targetPath(src string, media Media) string {
	newExt, suffix := ".jxl", "_jxl"
	if media == MediaVideo {
		newExt, suffix = ".mp4", "_hevc"
	}
	ext := filepath.Ext(src)
	stem := strings.TrimSuffix(src, ext)
	if strings.EqualFold(ext, newExt) {
		return stem + suffix + newExt
	}
	return stem + newExt
}

// stagingPath returns the temporary path a conversion encodes into.
// It lives in the target's directory so the commit rename never
// crosses a filesystem boundary.
func stagingPath(final string) string {
	return final + ".tmp"
}

// commitStaged applies the size gate and promotes the staged file.
// In-place mode removes the original after the rename succeeds, so a
// crash between the two leaves both files rather than neither.
func commitStaged(src, staged, final string, srcSize int64, opts Options) (Status, string, int64, error) {
	info, err := os.Stat(staged)
	if err != nil {
		return StatusFailed, "staged output missing", 0, err
	}
	outSize := info.Size()

	// A zero-byte output is an encoder failure even when the health
	// check was skipped.
	if outSize == 0 {
		return StatusFailed, "empty output", 0, fmt.Errorf("%s: staged output is empty", staged)
	}

	if outSize >= srcSize && !opts.ForceLossless {
		return StatusSkipped, "would not reduce size", 0, nil
	}

	if err := os.Rename(staged, final); err != nil {
		return StatusFailed, "commit rename failed", 0, fmt.Errorf("rename %s: %w", staged, err)
	}

	if opts.InPlace && src != final {
		if err := os.Remove(src); err != nil {
			return StatusFailed, "original removal failed", outSize, fmt.Errorf("remove %s: %w", src, err)
		}
	}

	return StatusSuccess, "", outSize, nil
}
