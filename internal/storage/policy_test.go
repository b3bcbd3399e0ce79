package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultAttachmentPolicy(t *testing.T) {
	p := DefaultAttachmentPolicy()

	assert.NoError(t, p.ValidateAttachment("leak.jpg", "image/jpeg", 1024))
	assert.NoError(t, p.ValidateAttachment("uploads/after.PNG", "image/png; charset=binary", 5<<20))

	assert.Error(t, p.ValidateAttachment("leak.jpg", "image/jpeg", 11<<20), "over the size cap")
	assert.Error(t, p.ValidateAttachment("report.pdf", "application/pdf", 1024), "non-image content type")
	assert.Error(t, p.ValidateAttachment("leak.bmp", "image/bmp", 1024), "extension outside the allow list")
	assert.Error(t, p.ValidateAttachment("noext", "image/jpeg", 1024), "missing extension")
}

func TestAttachmentPolicy_WildcardMime(t *testing.T) {
	p := AttachmentPolicy{MimeTypes: []string{"image/*", "application/pdf"}}

	assert.True(t, p.matchesMimeType("image/webp"))
	assert.True(t, p.matchesMimeType("application/pdf"))
	assert.False(t, p.matchesMimeType("video/mp4"))
	assert.False(t, p.matchesMimeType("imagination/x"))
}
