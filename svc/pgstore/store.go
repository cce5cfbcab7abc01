// Package pgstore persists users, OTP challenges, TOTP enrollments and
// document metadata in PostgreSQL through pgx.
//
// Every state transition the services rely on is a single conditional
// statement, so concurrent processes sharing the database serialize on row
// locks rather than on in-process memory. Issuing an OTP challenge is the one
// multi-statement unit; it runs in a transaction holding an advisory lock on
// the (user, purpose) pair.
package pgstore

import (
	"embed"

	"github.com/google/uuid"

	"github.com/dmitrymomot/credkit/pkg/pg"
)

// Migrations holds the goose migrations for the schema, rooted at
// MigrationsDir.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory of Migrations that holds the SQL files.
const MigrationsDir = "migrations"

// DB is satisfied by *pgxpool.Pool.
type DB interface {
	pg.DBTX
	pg.TxBeginner
}

// Store implements the persistence interfaces of the account, resume and
// otp packages.
type Store struct {
	db DB
}

// New creates a Store over db.
func New(db DB) *Store {
	return &Store{db: db}
}

// parseID reports whether id is a UUID. Malformed ids can never match a row.
func parseID(id string) (uuid.UUID, bool) {
	u, err := uuid.Parse(id)
	return u, err == nil
}
