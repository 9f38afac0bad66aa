package artifact

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateFilename(t *testing.T) {
	tests := []struct {
		name  string
		valid bool
	}{
		{"gateway_8.8.2.swu", true},
		{"fw-1.0.0+build.7.swu", true},
		{"", false},
		{".hidden.swu", false},
		{"../etc/passwd", false},
		{"dir/fw.swu", false},
		{"fw..swu", false},
		{"fw.swu.tmp", false},
		{"fw with space.swu", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFilename(tt.name)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidFilename)
			}
		})
	}
}

func TestFilenameFromURL(t *testing.T) {
	name, err := FilenameFromURL("https://cdn.example.com/releases/gateway_8.8.2.swu?sig=abc")
	assert.NoError(t, err)
	assert.Equal(t, "gateway_8.8.2.swu", name)

	for _, bad := range []string{
		"ftp://example.com/fw.swu",
		"https://example.com/",
		"https:///fw.swu",
		"file:///artifacts/fw.swu",
	} {
		_, err := FilenameFromURL(bad)
		assert.ErrorIs(t, err, ErrInvalidFilename, bad)
	}
}
