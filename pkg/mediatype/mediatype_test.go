package mediatype

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		declared string
		want     string
	}{
		{"declared wins", "a.jpg", "image/png", "image/png"},
		{"octet stream falls back to extension", "a.JPG", "application/octet-stream", "image/jpeg"},
		{"empty declared", "clip.mp4", "", "video/mp4"},
		{"no extension", "README", "", OctetStream},
		{"unknown extension", "blob.zzzunknown", "", OctetStream},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.file, tt.declared))
		})
	}
}

func TestKind(t *testing.T) {
	assert.Equal(t, KindVideo, Kind("video/mp4"))
	assert.Equal(t, KindVideo, Kind("Video/QuickTime"))
	assert.Equal(t, KindImage, Kind("image/jpeg"))
	assert.Equal(t, KindImage, Kind(OctetStream))
}
