// Package memstore keeps users, TOTP enrollments and document metadata in
// process memory. It backs tests and single-process development runs.
package memstore

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/dmitrymomot/credkit/svc/account"
	"github.com/dmitrymomot/credkit/svc/resume"
)

// Store implements account.UserStore, account.EnrollmentStore and
// resume.DocumentStore. Records are copied on the way in and out.
type Store struct {
	mu          sync.RWMutex
	users       map[string]*account.User
	emails      map[string]string
	enrollments map[string]*account.Enrollment
	documents   map[string]*resume.Document
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		users:       make(map[string]*account.User),
		emails:      make(map[string]string),
		enrollments: make(map[string]*account.Enrollment),
		documents:   make(map[string]*resume.Document),
	}
}

var (
	_ account.UserStore       = (*Store)(nil)
	_ account.EnrollmentStore = (*Store)(nil)
	_ resume.DocumentStore    = (*Store)(nil)
)

func (s *Store) CreateUser(_ context.Context, u *account.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.emails[u.Email]; ok {
		return account.ErrUserExists
	}
	cp := *u
	cp.TOTPEnabled = false
	s.users[u.ID] = &cp
	s.emails[u.Email] = u.ID
	return nil
}

func (s *Store) UserByID(_ context.Context, id string) (*account.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, account.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*account.User, error) {
	s.mu.RLock()
	id, ok := s.emails[email]
	s.mu.RUnlock()
	if !ok {
		return nil, account.ErrUserNotFound
	}
	return s.UserByID(ctx, id)
}

func (s *Store) MarkVerified(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return account.ErrUserNotFound
	}
	if u.IsVerified {
		return account.ErrStale
	}
	u.IsVerified = true
	u.UpdatedAt = at
	return nil
}

func (s *Store) UpdatePassword(_ context.Context, id, hash string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return account.ErrUserNotFound
	}
	u.PasswordHash = hash
	u.UpdatedAt = at
	return nil
}

// SetStatus changes the activity flags of a user.
func (s *Store) SetStatus(_ context.Context, id string, active, suspended bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return account.ErrUserNotFound
	}
	u.IsActive = active
	u.IsSuspended = suspended
	return nil
}

func (s *Store) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return account.ErrUserNotFound
	}
	delete(s.users, id)
	delete(s.emails, u.Email)
	delete(s.enrollments, id)
	for docID, d := range s.documents {
		if d.OwnerID == id {
			delete(s.documents, docID)
		}
	}
	return nil
}

func (s *Store) Enrollment(_ context.Context, userID string) (*account.Enrollment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.enrollments[userID]
	if !ok {
		return nil, account.ErrEnrollmentNotFound
	}
	cp := *e
	return &cp, nil
}

func (s *Store) SavePending(_ context.Context, e *account.Enrollment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[e.UserID]; !ok {
		return account.ErrUserNotFound
	}
	if cur, ok := s.enrollments[e.UserID]; ok && cur.Enabled {
		return account.ErrStale
	}
	cp := *e
	cp.Enabled = false
	cp.EnabledAt = nil
	s.enrollments[e.UserID] = &cp
	return nil
}

func (s *Store) Enable(_ context.Context, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.enrollments[userID]
	if !ok {
		return account.ErrEnrollmentNotFound
	}
	if e.Enabled {
		return account.ErrStale
	}
	e.Enabled = true
	e.EnabledAt = &at
	return nil
}

func (s *Store) DeleteEnrollment(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.enrollments[userID]; !ok {
		return account.ErrEnrollmentNotFound
	}
	delete(s.enrollments, userID)
	return nil
}

func (s *Store) CreateDocument(_ context.Context, d *resume.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[d.OwnerID]; !ok {
		return account.ErrUserNotFound
	}
	cp := *d
	s.documents[d.ID] = &cp
	return nil
}

func (s *Store) Document(_ context.Context, id string) (*resume.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.documents[id]
	if !ok {
		return nil, resume.ErrDocumentNotFound
	}
	return copyDocument(d), nil
}

func (s *Store) DocumentsByOwner(_ context.Context, ownerID string) ([]*resume.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*resume.Document
	for _, d := range s.documents {
		if d.OwnerID == ownerID {
			out = append(out, copyDocument(d))
		}
	}
	slices.SortFunc(out, func(a, b *resume.Document) int {
		return cmp.Or(b.UploadedAt.Compare(a.UploadedAt), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

func (s *Store) RecordAccess(_ context.Context, id string, at time.Time) (*resume.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.documents[id]
	if !ok {
		return nil, resume.ErrDocumentNotFound
	}
	d.AccessCount++
	d.LastAccessedAt = &at
	return copyDocument(d), nil
}

func (s *Store) SetVisibility(_ context.Context, id string, public bool) (*resume.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.documents[id]
	if !ok {
		return nil, resume.ErrDocumentNotFound
	}
	d.IsPublic = public
	return copyDocument(d), nil
}

func (s *Store) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.documents[id]; !ok {
		return resume.ErrDocumentNotFound
	}
	delete(s.documents, id)
	return nil
}

func copyDocument(d *resume.Document) *resume.Document {
	cp := *d
	if d.LastAccessedAt != nil {
		t := *d.LastAccessedAt
		cp.LastAccessedAt = &t
	}
	return &cp
}
