package resume

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/credkit/core"
	"github.com/dmitrymomot/credkit/pkg/file"
	"github.com/dmitrymomot/credkit/pkg/logger"
	"github.com/dmitrymomot/credkit/pkg/metrics"
	"github.com/dmitrymomot/credkit/pkg/secrets"
	"github.com/dmitrymomot/credkit/pkg/validator"
)

// DefaultMaxSize is the upload limit in bytes.
const DefaultMaxSize = 10 << 20

// Config holds resume service settings.
type Config struct {
	MaxSize int64 `env:"RESUME_MAX_SIZE" envDefault:"10485760"`
}

// Service implements document operations.
type Service struct {
	docs    DocumentStore
	blobs   file.Storage
	cipher  *secrets.Cipher
	maxSize int64
	now     func() time.Time
	log     *slog.Logger
	metrics metrics.Recorder
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(r metrics.Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.metrics = r
		}
	}
}

// New creates a Service.
func New(docs DocumentStore, blobs file.Storage, cipher *secrets.Cipher, cfg Config, opts ...Option) (*Service, error) {
	switch {
	case docs == nil:
		return nil, fmt.Errorf("%w: document store", ErrMissingDependency)
	case blobs == nil:
		return nil, fmt.Errorf("%w: blob storage", ErrMissingDependency)
	case cipher == nil:
		return nil, fmt.Errorf("%w: cipher", ErrMissingDependency)
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultMaxSize
	}

	s := &Service{
		docs:    docs,
		blobs:   blobs,
		cipher:  cipher,
		maxSize: cfg.MaxSize,
		now:     time.Now,
		log:     slog.New(slog.DiscardHandler),
		metrics: metrics.Noop{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// MaxSize returns the upload limit in bytes.
func (s *Service) MaxSize() int64 { return s.maxSize }

// UploadInput is one file from the client.
type UploadInput struct {
	Name string
	// ContentType is advisory. The stored type follows the extension once
	// the content signature matches it.
	ContentType string
	Data        []byte
	Public      bool
}

// Upload encrypts and stores a document owned by p.
func (s *Service) Upload(ctx context.Context, p Principal, in UploadInput) (_ *Document, err error) {
	defer func() { s.record(ctx, "upload", err) }()

	name := sanitizeName(in.Name)
	if err := validator.Apply(
		validator.RequiredString("file", name),
		validator.LenBetween("file", name, 1, 255),
		validator.InList("file", extOf(name), AllowedExtensions()),
		fileSize("file", int64(len(in.Data)), s.maxSize),
	); err != nil {
		return nil, validationError(err)
	}

	f, ok := detectFormat(name, in.Data)
	if !ok {
		return nil, core.ValidationError{"file": {"content does not match the file extension"}}
	}

	sealed, err := s.cipher.Encrypt(in.Data)
	if err != nil {
		return nil, core.Internal(fmt.Errorf("encrypt document: %w", err))
	}

	now := s.now()
	storageID, err := secrets.GenerateStorageID(p.UserID, now)
	if err != nil {
		return nil, core.Internal(err)
	}

	if err := s.blobs.Put(ctx, storageID, sealed); err != nil {
		return nil, core.Internal(fmt.Errorf("store document: %w", err))
	}

	d := &Document{
		ID:               uuid.NewString(),
		OwnerID:          p.UserID,
		OriginalName:     name,
		StorageID:        storageID,
		Size:             int64(len(in.Data)),
		ContentType:      f.contentType,
		EncryptionMethod: secrets.Method,
		IsPublic:         in.Public,
		UploadedAt:       now,
	}
	if err := s.docs.CreateDocument(ctx, d); err != nil {
		if derr := s.blobs.Delete(ctx, storageID); derr != nil {
			s.log.WarnContext(ctx, "failed to remove orphaned blob",
				logger.Component("resume"),
				slog.String("storage_id", storageID),
				logger.Error(derr),
			)
		}
		return nil, core.Internal(fmt.Errorf("create document record: %w", err))
	}

	s.log.InfoContext(ctx, "document uploaded",
		logger.Component("resume"),
		logger.UserID(p.UserID),
		logger.DocumentID(d.ID),
		slog.Int64("size", d.Size),
	)
	return d, nil
}

// List returns the caller's documents, newest first.
func (s *Service) List(ctx context.Context, p Principal) ([]*Document, error) {
	docs, err := s.docs.DocumentsByOwner(ctx, p.UserID)
	if err != nil {
		return nil, core.Internal(fmt.Errorf("list documents: %w", err))
	}
	if docs == nil {
		docs = []*Document{}
	}
	return docs, nil
}

// Get returns the metadata of a document p may read.
func (s *Service) Get(ctx context.Context, p *Principal, id string) (*Document, error) {
	d, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.canRead(d) {
		return nil, core.ErrNotFound
	}
	return d, nil
}

// Download decrypts a document p may read and records the access. p is nil
// for anonymous callers, who only see public documents.
func (s *Service) Download(ctx context.Context, p *Principal, id string) (_ *Document, _ []byte, err error) {
	defer func() { s.record(ctx, "download", err) }()

	d, err := s.Get(ctx, p, id)
	if err != nil {
		return nil, nil, err
	}

	sealed, err := s.blobs.Get(ctx, d.StorageID)
	if err != nil {
		if errors.Is(err, file.ErrFileNotFound) {
			return nil, nil, core.ErrDecryption.Wrap(err)
		}
		return nil, nil, core.Internal(fmt.Errorf("read document: %w", err))
	}

	plain, err := s.cipher.Decrypt(sealed)
	if err != nil {
		s.log.ErrorContext(ctx, "failed to decrypt document",
			logger.Component("resume"),
			logger.DocumentID(d.ID),
			logger.Error(err),
		)
		return nil, nil, core.ErrDecryption.Wrap(err)
	}

	updated, err := s.docs.RecordAccess(ctx, d.ID, s.now())
	if err != nil {
		if errors.Is(err, ErrDocumentNotFound) {
			return nil, nil, core.ErrNotFound.Wrap(err)
		}
		return nil, nil, core.Internal(fmt.Errorf("record access: %w", err))
	}
	return updated, plain, nil
}

// Delete removes a document owned by p, or any document when p is an
// admin. The record goes first so a failed blob delete leaves only
// unreachable ciphertext.
func (s *Service) Delete(ctx context.Context, p Principal, id string) (err error) {
	defer func() { s.record(ctx, "delete", err) }()

	d, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !p.canRead(d) {
		return core.ErrNotFound
	}
	if !p.canDelete(d) {
		return core.ErrForbidden
	}

	if err := s.docs.DeleteDocument(ctx, d.ID); err != nil {
		if errors.Is(err, ErrDocumentNotFound) {
			return core.ErrNotFound.Wrap(err)
		}
		return core.Internal(fmt.Errorf("delete document record: %w", err))
	}

	if err := s.blobs.Delete(ctx, d.StorageID); err != nil && !errors.Is(err, file.ErrFileNotFound) {
		s.log.WarnContext(ctx, "failed to delete document blob",
			logger.Component("resume"),
			logger.DocumentID(d.ID),
			logger.Error(err),
		)
	}
	return nil
}

// SetVisibility changes the public flag. Only the owner may do this.
func (s *Service) SetVisibility(ctx context.Context, p Principal, id string, public bool) (_ *Document, err error) {
	defer func() { s.record(ctx, "visibility", err) }()

	d, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.canRead(d) {
		return nil, core.ErrNotFound
	}
	if !p.owns(d) {
		return nil, core.ErrForbidden
	}

	updated, err := s.docs.SetVisibility(ctx, d.ID, public)
	if err != nil {
		if errors.Is(err, ErrDocumentNotFound) {
			return nil, core.ErrNotFound.Wrap(err)
		}
		return nil, core.Internal(fmt.Errorf("set visibility: %w", err))
	}
	return updated, nil
}

// PurgeOwner deletes every blob owned by ownerID. Records are left to the
// store's cascade on user deletion. It fits account.DeleteHook.
func (s *Service) PurgeOwner(ctx context.Context, ownerID string) error {
	docs, err := s.docs.DocumentsByOwner(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("list documents: %w", err)
	}
	if len(docs) == 0 {
		return nil
	}

	keys := make([]string, 0, len(docs))
	for _, d := range docs {
		keys = append(keys, d.StorageID)
	}
	if err := s.blobs.DeleteMany(ctx, keys); err != nil {
		return fmt.Errorf("delete blobs: %w", err)
	}

	s.log.InfoContext(ctx, "owner documents purged",
		logger.Component("resume"),
		logger.UserID(ownerID),
		slog.Int("count", len(keys)),
	)
	return nil
}

func (s *Service) load(ctx context.Context, id string) (*Document, error) {
	if validator.Apply(validator.ValidUUID("id", id)) != nil {
		return nil, core.ErrNotFound
	}
	d, err := s.docs.Document(ctx, id)
	if errors.Is(err, ErrDocumentNotFound) {
		return nil, core.ErrNotFound.Wrap(err)
	}
	if err != nil {
		return nil, core.Internal(fmt.Errorf("load document: %w", err))
	}
	return d, nil
}

func (s *Service) record(ctx context.Context, op string, err error) {
	if err == nil {
		s.metrics.RecordDocument(op, metrics.OutcomeSuccess)
		return
	}
	kind := core.KindOf(err)
	s.metrics.RecordDocument(op, string(kind))
	if kind == core.KindInternal {
		s.log.ErrorContext(ctx, "document operation failed",
			logger.Component("resume"),
			slog.String("operation", op),
			logger.Error(err),
		)
	}
}

func fileSize(field string, size, max int64) validator.Rule {
	return validator.Rule{
		Check: func() bool { return size > 0 && size <= max },
		Error: validator.ValidationError{
			Field:          field,
			Message:        fmt.Sprintf("must be between 1 byte and %d bytes", max),
			TranslationKey: "validation.file_size",
			TranslationValues: map[string]any{
				"field": field,
				"max":   max,
			},
		},
	}
}

func validationError(err error) error {
	if verrs := validator.ExtractValidationErrors(err); verrs != nil {
		return core.ValidationError(verrs.Map())
	}
	return err
}
