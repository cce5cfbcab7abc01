package resume

import (
	"context"
	"time"

	"github.com/dmitrymomot/credkit/svc/account"
)

// Document is the metadata of a stored resume.
type Document struct {
	ID               string     `json:"id"`
	OwnerID          string     `json:"owner_id"`
	OriginalName     string     `json:"original_filename"`
	StorageID        string     `json:"-"`
	Size             int64      `json:"file_size"`
	ContentType      string     `json:"file_type"`
	EncryptionMethod string     `json:"encryption_method"`
	IsPublic         bool       `json:"is_public"`
	AccessCount      int64      `json:"download_count"`
	UploadedAt       time.Time  `json:"uploaded_at"`
	LastAccessedAt   *time.Time `json:"last_accessed,omitempty"`
}

// DocumentStore persists document metadata.
type DocumentStore interface {
	CreateDocument(ctx context.Context, d *Document) error

	// Document returns ErrDocumentNotFound when nothing matches.
	Document(ctx context.Context, id string) (*Document, error)

	// DocumentsByOwner returns the owner's documents, newest first.
	DocumentsByOwner(ctx context.Context, ownerID string) ([]*Document, error)

	// RecordAccess increments the access counter and sets the last access
	// time as one atomic update, returning the updated record.
	RecordAccess(ctx context.Context, id string, at time.Time) (*Document, error)

	// SetVisibility updates the public flag and returns the updated record.
	SetVisibility(ctx context.Context, id string, public bool) (*Document, error)

	// DeleteDocument returns ErrDocumentNotFound when nothing was deleted.
	DeleteDocument(ctx context.Context, id string) error
}

// Principal is the authenticated caller.
type Principal struct {
	UserID string
	Role   account.Role
}

func (p *Principal) isAdmin() bool { return p != nil && p.Role == account.RoleAdmin }

func (p *Principal) owns(d *Document) bool { return p != nil && p.UserID == d.OwnerID }

func (p *Principal) canRead(d *Document) bool {
	return d.IsPublic || p.owns(d) || p.isAdmin()
}

func (p *Principal) canDelete(d *Document) bool { return p.owns(d) || p.isAdmin() }
