package media_test

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/gotd/td/tg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/porterhq/porter/pkg/porter/media"
)

func TestFilename(t *testing.T) {
	tests := []struct {
		name        string
		disposition string
		contentType string
		rawURL      string
		want        string
	}{
		{
			name:        "content disposition filename",
			disposition: `attachment; filename="report.pdf"`,
			rawURL:      "https://example.com/download?id=1",
			want:        "report.pdf",
		},
		{
			name:        "content disposition rfc5987",
			disposition: `attachment; filename*=UTF-8''%E4%B8%AD.jpg`,
			rawURL:      "https://example.com/download",
			want:        "中.jpg",
		},
		{
			name:   "url path segment",
			rawURL: "https://example.com/files/photo.jpg?size=big",
			want:   "photo.jpg",
		},
		{
			name:   "url trailing slash",
			rawURL: "https://example.com/files/inner/",
			want:   "inner",
		},
		{
			name:        "content type placeholder",
			contentType: "image/png",
			rawURL:      "https://example.com/",
			want:        "data.png",
		},
		{
			name:   "no hints at all",
			rawURL: "https://example.com/",
			want:   "data.bin",
		},
		{
			name:        "invalid characters scrubbed",
			disposition: `attachment; filename="a/b:c"`,
			rawURL:      "https://example.com/download",
			want:        "a_b_c",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := http.Header{}
			if tt.disposition != "" {
				header.Set("Content-Disposition", tt.disposition)
			}
			if tt.contentType != "" {
				header.Set("Content-Type", tt.contentType)
			}
			u, err := url.Parse(tt.rawURL)
			require.NoError(t, err)
			assert.Equal(t, tt.want, media.Filename(header, u))
		})
	}
}

func TestFixExt(t *testing.T) {
	assert.Equal(t, "a.png", media.FixExt("a.jpg", "png"))
	assert.Equal(t, "a.JPG", media.FixExt("a.JPG", "jpg"))
	assert.Equal(t, "archive.zip", media.FixExt("archive", "zip"))
	assert.Equal(t, "a.tar.gz", media.FixExt("a.tar.gz", "gz"))
}

func TestDocumentFilename(t *testing.T) {
	pngMagic := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

	named := &tg.Document{
		ID:       123,
		MimeType: "image/gif",
		Attributes: []tg.DocumentAttributeClass{
			&tg.DocumentAttributeFilename{FileName: "anim.gif"},
		},
	}
	assert.Equal(t, "anim.gif", media.DocumentFilename(named, nil))

	unnamed := &tg.Document{ID: 42, MimeType: "video/mp4"}
	assert.Equal(t, "42.mp4", media.DocumentFilename(unnamed, nil))

	extless := &tg.Document{
		ID:       7,
		MimeType: "application/octet-stream",
		Attributes: []tg.DocumentAttributeClass{
			&tg.DocumentAttributeFilename{FileName: "picture"},
		},
	}
	assert.Equal(t, "picture.png", media.DocumentFilename(extless, pngMagic))
}
