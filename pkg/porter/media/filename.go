package media

import (
	"mime"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gotd/td/tg"
)

// Characters Telegram rejects in upload filenames.
var filenameScrubber = strings.NewReplacer(
	"/", "_",
	`\`, "_",
	":", "_",
	"*", "_",
	"?", "_",
	`"`, "_",
	"<", "_",
	">", "_",
	"|", "_",
)

// Filename derives an upload filename for a fetched remote file. The
// Content-Disposition header wins, then the last URL path segment, then a
// placeholder named after the Content-Type.
func Filename(header http.Header, u *url.URL) string {
	name := filenameFromHeader(header)
	if name == "" && u != nil {
		if base := path.Base(u.Path); base != "." && base != "/" {
			name = base
		}
	}
	if name == "" {
		name = defaultFilename(header)
	}
	return filenameScrubber.Replace(name)
}

func filenameFromHeader(header http.Header) string {
	cd := header.Get("Content-Disposition")
	if cd == "" {
		return ""
	}
	// ParseMediaType decodes RFC 5987 filename* params into plain filename.
	_, params, err := mime.ParseMediaType(cd)
	if err != nil {
		return ""
	}
	return params["filename"]
}

func defaultFilename(header http.Header) string {
	ext := "bin"
	if ct, _, err := mime.ParseMediaType(header.Get("Content-Type")); err == nil {
		if mt := mimetype.Lookup(ct); mt != nil && mt.Extension() != "" {
			ext = strings.TrimPrefix(mt.Extension(), ".")
		}
	}
	return "data." + ext
}

// FixExt rewrites the extension of filename to ext unless it already
// matches case-insensitively. Uploads keep the original name but must
// carry the extension of the bytes actually sent.
func FixExt(filename, ext string) string {
	current := strings.TrimPrefix(filepath.Ext(filename), ".")
	if strings.EqualFold(current, ext) {
		return filename
	}
	return strings.TrimSuffix(filename, filepath.Ext(filename)) + "." + ext
}

// DocumentFilename names a downloaded Telegram document. Documents without
// a filename attribute fall back to their ID, and a missing extension is
// filled in by sniffing the payload.
func DocumentFilename(document *tg.Document, data []byte) string {
	var name string
	for _, attr := range document.Attributes {
		if fn, ok := attr.(*tg.DocumentAttributeFilename); ok {
			name = fn.FileName
			break
		}
	}
	if name == "" {
		name = strconv.FormatInt(document.ID, 10)
		if mt := mimetype.Lookup(document.MimeType); mt != nil && mt.Extension() != "" {
			name += mt.Extension()
		}
	}
	if filepath.Ext(name) == "" {
		if mt := mimetype.Detect(data); mt.Extension() != "" {
			name += mt.Extension()
		}
	}
	return name
}
