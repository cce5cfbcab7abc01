package resume

import "errors"

var (
	ErrDocumentNotFound  = errors.New("resume: document not found")
	ErrMissingDependency = errors.New("resume: missing dependency")
)
