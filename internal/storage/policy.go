package storage

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"
)

// AttachmentPolicy constrains image attachments on a request.
type AttachmentPolicy struct {
	MaxFileMB  float64
	MimeTypes  []string
	Extensions []string
}

// DefaultAttachmentPolicy admits common photo formats up to 10 MB.
func DefaultAttachmentPolicy() AttachmentPolicy {
	return AttachmentPolicy{
		MaxFileMB:  10,
		MimeTypes:  []string{"image/*"},
		Extensions: []string{"jpg", "jpeg", "png", "gif", "webp"},
	}
}

// ValidateAttachment checks a candidate attachment against the policy.
func (p AttachmentPolicy) ValidateAttachment(fileName, contentType string, sizeBytes int64) error {
	if p.MaxFileMB > 0 {
		maxBytes := int64(p.MaxFileMB * 1024 * 1024)
		if sizeBytes > maxBytes {
			return fmt.Errorf("attachment size %d bytes exceeds maximum %.0f MB", sizeBytes, p.MaxFileMB)
		}
	}

	if len(p.MimeTypes) > 0 && !p.matchesMimeType(contentType) {
		return fmt.Errorf("content type %s is not allowed, expected one of %v", contentType, p.MimeTypes)
	}

	if len(p.Extensions) > 0 && !p.matchesExtension(fileName) {
		return fmt.Errorf("file extension is not allowed, expected one of %v", p.Extensions)
	}

	return nil
}

func (p AttachmentPolicy) matchesMimeType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = contentType
	}

	for _, allowed := range p.MimeTypes {
		if strings.HasSuffix(allowed, "/*") {
			prefix := strings.TrimSuffix(allowed, "/*")
			if strings.HasPrefix(mediaType, prefix+"/") {
				return true
			}
		} else if mediaType == allowed {
			return true
		}
	}
	return false
}

func (p AttachmentPolicy) matchesExtension(fileName string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(fileName), "."))
	if ext == "" {
		return false
	}
	for _, allowed := range p.Extensions {
		if ext == allowed {
			return true
		}
	}
	return false
}
