package processor

import (
	"io"
	"os"
	"strings"

	exif "github.com/dsoprea/go-exif/v3"
)

// exifInfo is the small metadata slice shown in scan reports.
type exifInfo struct {
	CaptureDate string
	CameraModel string
}

func readExifInfo(path string) (exifInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return exifInfo{}, err
	}
	defer f.Close()
	return extractExifInfo(f)
}

func extractExifInfo(rs io.ReadSeeker) (exifInfo, error) {
	info := exifInfo{}

	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return info, err
	}

	tags, _, err := exif.GetFlatExifDataUniversalSearchWithReadSeeker(rs, nil, true)
	if err != nil {
		if errorsIsNoExif(err) {
			return info, nil
		}
		return info, err
	}

	for _, tag := range tags {
		switch tag.TagName {
		case "DateTimeOriginal":
			info.CaptureDate = tag.FormattedFirst
		case "DateTime", "DateTimeDigitized":
			if info.CaptureDate == "" {
				info.CaptureDate = tag.FormattedFirst
			}
		case "Model", "CameraModelName":
			if info.CameraModel == "" {
				info.CameraModel = strings.TrimSpace(tag.FormattedFirst)
			}
		}
	}

	return info, nil
}

func errorsIsNoExif(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "no exif")
}
