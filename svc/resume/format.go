package resume

import (
	"bytes"
	"path/filepath"
	"strings"
	"unicode"
)

const maxNameLength = 255

type format struct {
	contentType string
	magic       []byte
}

// formats maps the accepted extensions to their content type and leading
// bytes.
var formats = map[string]format{
	".pdf":  {"application/pdf", []byte("%PDF-")},
	".docx": {"application/vnd.openxmlformats-officedocument.wordprocessingml.document", []byte("PK\x03\x04")},
	".doc":  {"application/msword", []byte("\xD0\xCF\x11\xE0\xA1\xB1\x1A\xE1")},
}

// AllowedExtensions lists the accepted file extensions.
func AllowedExtensions() []string { return []string{".pdf", ".docx", ".doc"} }

// sanitizeName keeps the base name of a client supplied path without
// control characters or quotes.
func sanitizeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) || r == '"' {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(strings.ToValidUTF8(name, ""))
	if name == "." || name == "/" {
		return ""
	}
	return name
}

// detectFormat returns the format for name when data starts with the
// expected signature.
func detectFormat(name string, data []byte) (format, bool) {
	f, ok := formats[extOf(name)]
	if !ok || !bytes.HasPrefix(data, f.magic) {
		return format{}, false
	}
	return f, true
}

func extOf(name string) string { return strings.ToLower(filepath.Ext(name)) }
