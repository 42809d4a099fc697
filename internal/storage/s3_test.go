package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContentTypeForName(t *testing.T) {
	tests := []struct {
		name     string
		expected string
	}{
		{"photo.jpg", "image/jpeg"},
		{"photo.JPG", "image/jpeg"},
		{"photo.jpeg", "image/jpeg"},
		{"diagram.png", "image/png"},
		{"animation.gif", "image/gif"},
		{"modern.webp", "image/webp"},
		{"icon.svg", "image/svg+xml"},
		{"bundle.zip", "application/zip"},
		{"manual.pdf", "application/pdf"},
		{"nested/path/photo.PNG", "image/png"},
		{"noextension", "application/octet-stream"},
		{"", "application/octet-stream"},
		{"track.mp3", "application/octet-stream"}, // Not supported
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ContentTypeForName(tt.name))
		})
	}
}
