package repomanager

import (
	"context"
	"database/sql"

	"github.com/akulikov/stashkeeper/internal/server/repositories/entries"
)

// RepositoryManager owns the database connection and vends repositories.
type RepositoryManager interface {
	RunMigrations(context.Context) error
	Conn() *sql.DB
	Close() error
	Entries() entries.Repository
}
