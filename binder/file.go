package binder

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"strings"
)

// multipartOverhead is the allowance for boundaries and form fields on top
// of the file itself.
const multipartOverhead = 64 << 10

// FileUpload is one file read from a multipart form.
type FileUpload struct {
	Filename string
	Size     int64
	Header   textproto.MIMEHeader
	Content  []byte
}

// ContentType returns the declared media type, falling back to the one
// implied by the extension. It is advisory only.
func (f *FileUpload) ContentType() string {
	if ct := f.Header.Get("Content-Type"); ct != "" {
		if mediaType, _, err := mime.ParseMediaType(ct); err == nil {
			return mediaType
		}
	}
	return mime.TypeByExtension(filepath.Ext(f.Filename))
}

// File reads the named file field of a multipart form. The whole body is
// capped at maxSize plus a small overhead, and the file itself at maxSize;
// both return ErrTooLarge. Other form values stay available through
// r.FormValue.
func File(w http.ResponseWriter, r *http.Request, field string, maxSize int64) (*FileUpload, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || !strings.EqualFold(mediaType, "multipart/form-data") {
		return nil, fmt.Errorf("%w: expected multipart/form-data", ErrUnsupportedMediaType)
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)
	if err := r.ParseMultipartForm(maxSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, ErrTooLarge
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidForm, err)
	}

	headers := r.MultipartForm.File[field]
	if len(headers) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingFile, field)
	}
	return readFileHeader(headers[0], maxSize)
}

func readFileHeader(h *multipart.FileHeader, maxSize int64) (*FileUpload, error) {
	if h.Size > maxSize {
		return nil, ErrTooLarge
	}

	f, err := h.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrInvalidForm, h.Filename, err)
	}
	defer f.Close()

	content, err := io.ReadAll(io.LimitReader(f, maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrInvalidForm, h.Filename, err)
	}
	if int64(len(content)) > maxSize {
		return nil, ErrTooLarge
	}

	return &FileUpload{
		Filename: h.Filename,
		Size:     int64(len(content)),
		Header:   h.Header,
		Content:  content,
	}, nil
}
