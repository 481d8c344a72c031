package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublicIDFromURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{"versioned", "https://res.cloudinary.com/demo/image/upload/v1712/tutorme/avatars/abc.webp", "tutorme/avatars/abc"},
		{"unversioned", "https://res.cloudinary.com/demo/image/upload/tutorme/abc.png", "tutorme/abc"},
		{"folder starting with v", "https://res.cloudinary.com/demo/image/upload/videos/abc.png", "videos/abc"},
		{"no upload segment", "https://example.com/images/abc.png", ""},
		{"nothing after upload", "https://res.cloudinary.com/demo/image/upload/", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PublicIDFromURL(tt.url))
		})
	}
}

func TestNewCloudinaryStorage_DisabledWithoutCloudName(t *testing.T) {
	s, err := NewCloudinaryStorage(CloudinaryConfig{})
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestJoinFolder(t *testing.T) {
	assert.Equal(t, "root/avatars", joinFolder("root", "avatars"))
	assert.Equal(t, "avatars", joinFolder("", "avatars"))
	assert.Equal(t, "root", joinFolder("root", ""))
}
