package image

import (
	"bytes"
	"strings"
)

var imageSignatures = []struct {
	format    string
	signature []byte
}{
	{"png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}},
	{"jpeg", []byte{0xFF, 0xD8}},
	{"webp", []byte{0x52, 0x49, 0x46, 0x46}},
	{"gif", []byte{0x47, 0x49, 0x46, 0x38}},
	{"bmp", []byte{0x42, 0x4D}},
}

// DetectFormat returns the format named by the leading magic bytes, or "".
func DetectFormat(data []byte) string {
	for _, s := range imageSignatures {
		if !bytes.HasPrefix(data, s.signature) {
			continue
		}
		if s.format == "webp" && (len(data) < 12 || string(data[8:12]) != "WEBP") {
			continue
		}
		return s.format
	}
	return ""
}

// FormatFromMime maps an allowed MIME type to its short format name.
func FormatFromMime(mimeType string) string {
	switch strings.ToLower(mimeType) {
	case "image/png":
		return "png"
	case "image/jpeg", "image/jpg":
		return "jpeg"
	case "image/webp":
		return "webp"
	default:
		return ""
	}
}
