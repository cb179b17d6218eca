package processor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// maxWorkItems caps the work list; hitting the cap is a warning, not an
// error, and already-collected items are still processed.
const maxWorkItems = 100000

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".bmp": true, ".tif": true, ".tiff": true, ".webp": true,
	".heic": true, ".heif": true, ".avif": true, ".jxl": true,
}

var videoExtensions = map[string]bool{
	".mp4": true, ".mov": true, ".avi": true, ".mkv": true,
	".webm": true, ".m4v": true, ".wmv": true, ".flv": true,
	".mpg": true, ".mpeg": true,
}

// Collect enumerates candidate files under root by extension whitelist.
// Hidden entries are excluded, traversal is an explicit depth-first
// stack (deep trees must not grow the call stack), and the returned
// list is immutable for the rest of the run. An unreadable root is a
// fatal error; unreadable subdirectories are skipped with a warning.
func Collect(root string, recursive bool, warn func(string)) ([]WorkItem, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("cannot open root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root is not a directory: %s", root)
	}

	var items []WorkItem
	capped := false

	stack := []string{root}
	for len(stack) > 0 && !capped {
		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		entries, err := os.ReadDir(dir)
		if err != nil {
			if dir == root {
				return nil, fmt.Errorf("cannot open root: %w", err)
			}
			if warn != nil {
				warn(fmt.Sprintf("skipping unreadable directory: %s", dir))
			}
			continue
		}

		for _, entry := range entries {
			name := entry.Name()
			if strings.HasPrefix(name, ".") {
				continue
			}

			full := filepath.Join(dir, name)
			if entry.IsDir() {
				if recursive {
					stack = append(stack, full)
				}
				continue
			}
			if !entry.Type().IsRegular() {
				continue
			}

			media, ok := classifyExtension(name)
			if !ok {
				continue
			}

			fi, err := entry.Info()
			if err != nil {
				continue
			}

			if len(items) >= maxWorkItems {
				if warn != nil {
					warn(fmt.Sprintf("maximum file limit reached (%d), remaining files ignored", maxWorkItems))
				}
				capped = true
				break
			}
			items = append(items, WorkItem{Path: full, Size: fi.Size(), Media: media})
		}
	}

	return items, nil
}

func classifyExtension(name string) (Media, bool) {
	ext := strings.ToLower(filepath.Ext(name))
	if imageExtensions[ext] {
		return MediaImage, true
	}
	if videoExtensions[ext] {
		return MediaVideo, true
	}
	return 0, false
}
