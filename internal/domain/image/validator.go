package image

import (
	"encoding/base64"
	"fmt"
	"strings"
	"unicode/utf8"

	"ai-images-server-go/internal/platform/config"
)

const (
	MaxFileNameLength  = 255
	DefaultMaxFileSize = 10 * 1024 * 1024
	DefaultLanguage    = "zh"
)

var (
	DefaultMimeTypes = []string{"image/png", "image/jpeg", "image/jpg", "image/webp"}
	DefaultLanguages = []string{"en", "zh", "es", "fr", "de", "ja"}
)

// Policy holds the limits a Validator enforces.
type Policy struct {
	MaxFileSize       int64
	AllowedMimeTypes  []string
	Languages         []string
	DefaultLanguage   string
	StrictLanguage    bool
	VerifyDecodedSize bool
}

func DefaultPolicy() Policy {
	return Policy{
		MaxFileSize:      DefaultMaxFileSize,
		AllowedMimeTypes: DefaultMimeTypes,
		Languages:        DefaultLanguages,
		DefaultLanguage:  DefaultLanguage,
	}
}

// PolicyFromConfig maps the upload section onto a Policy, keeping defaults
// for anything left empty.
func PolicyFromConfig(cfg config.UploadConfig) Policy {
	p := DefaultPolicy()
	if cfg.MaxFileSize > 0 {
		p.MaxFileSize = cfg.MaxFileSize
	}
	if len(cfg.AllowedMimeTypes) > 0 {
		p.AllowedMimeTypes = cfg.AllowedMimeTypes
	}
	if len(cfg.Languages) > 0 {
		p.Languages = cfg.Languages
	}
	if cfg.DefaultLanguage != "" {
		p.DefaultLanguage = cfg.DefaultLanguage
	}
	p.StrictLanguage = cfg.StrictLanguage
	p.VerifyDecodedSize = cfg.VerifyDecodedSize
	return p
}

// Validator checks upload payloads. It performs no I/O and is safe for
// concurrent use.
type Validator struct {
	policy    Policy
	mimeTypes map[string]struct{}
	languages map[string]struct{}
}

func NewValidator(policy Policy) *Validator {
	v := &Validator{
		policy:    policy,
		mimeTypes: make(map[string]struct{}, len(policy.AllowedMimeTypes)),
		languages: make(map[string]struct{}, len(policy.Languages)),
	}
	for _, m := range policy.AllowedMimeTypes {
		v.mimeTypes[strings.ToLower(m)] = struct{}{}
	}
	for _, l := range policy.Languages {
		v.languages[strings.ToLower(l)] = struct{}{}
	}
	if v.policy.DefaultLanguage == "" {
		v.policy.DefaultLanguage = DefaultLanguage
	}
	return v
}

func (v *Validator) Policy() Policy {
	return v.policy
}

// Validate returns the validated request or a *ValidationError listing every
// violation, in field order.
func (v *Validator) Validate(p Payload) (UploadRequest, error) {
	var (
		req        UploadRequest
		violations []FieldViolation
	)
	fail := func(field, format string, args ...interface{}) {
		violations = append(violations, FieldViolation{Field: field, Reason: fmt.Sprintf(format, args...)})
	}

	switch {
	case p.FileName == nil || *p.FileName == "":
		fail("fileName", "must not be empty")
	case utf8.RuneCountInString(*p.FileName) > MaxFileNameLength:
		fail("fileName", "must be at most %d characters", MaxFileNameLength)
	default:
		req.FileName = *p.FileName
	}

	if p.MimeType == nil || *p.MimeType == "" {
		fail("mimeType", "is required")
	} else if _, ok := v.mimeTypes[strings.ToLower(*p.MimeType)]; !ok {
		fail("mimeType", "%q is not one of %s", *p.MimeType, strings.Join(v.policy.AllowedMimeTypes, ", "))
	} else {
		req.MimeType = strings.ToLower(*p.MimeType)
	}

	switch {
	case p.FileSize == nil:
		fail("fileSize", "is required")
	case *p.FileSize < 0:
		fail("fileSize", "must not be negative")
	case *p.FileSize > v.policy.MaxFileSize:
		fail("fileSize", "%d bytes exceeds the %d byte limit", *p.FileSize, v.policy.MaxFileSize)
	default:
		req.FileSize = *p.FileSize
	}

	if p.ImageData == nil || strings.TrimSpace(*p.ImageData) == "" {
		fail("imageData", "must not be empty")
	} else {
		encoded := StripDataURL(*p.ImageData)
		data, err := base64.StdEncoding.DecodeString(encoded)
		switch {
		case err != nil:
			fail("imageData", "is not valid base64")
		case len(data) == 0:
			fail("imageData", "decodes to zero bytes")
		case v.policy.VerifyDecodedSize && int64(len(data)) > v.policy.MaxFileSize:
			fail("imageData", "decoded size %d bytes exceeds the %d byte limit", len(data), v.policy.MaxFileSize)
		default:
			req.ImageData = encoded
			req.Data = data
		}
	}

	lang := ""
	if p.Language != nil {
		lang = strings.ToLower(strings.TrimSpace(*p.Language))
	}
	if lang == "" {
		lang = v.policy.DefaultLanguage
	}
	if _, ok := v.languages[lang]; !ok && v.policy.StrictLanguage {
		fail("language", "%q is not one of %s", lang, strings.Join(v.policy.Languages, ", "))
	}
	req.Language = lang

	if len(violations) > 0 {
		return UploadRequest{}, &ValidationError{Violations: violations}
	}
	return req, nil
}

// StripDataURL removes a "data:<mime>;base64," prefix and surrounding
// whitespace.
func StripDataURL(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		if idx := strings.Index(s, ","); idx >= 0 {
			return s[idx+1:]
		}
	}
	return s
}
