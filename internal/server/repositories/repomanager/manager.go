// Package repomanager wires concrete repositories to a database handle and
// runs migrations at startup.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/babelscrib/babelscrib/internal/dbx"
	"github.com/babelscrib/babelscrib/internal/server/repositories/documents"
	"github.com/babelscrib/babelscrib/internal/server/repositories/sessions"
)

// RepositoryManager hands out repositories bound to a DBTX so that services
// can run several repository calls inside one transaction.
type RepositoryManager interface {
	Sessions(db dbx.DBTX) sessions.Repository
	Documents(db dbx.DBTX) documents.Repository
	RunMigrations(ctx context.Context, db *sql.DB) error
}
