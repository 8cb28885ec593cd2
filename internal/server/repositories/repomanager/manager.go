package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/ticketkeeper/internal/dbx"
	"github.com/dmitrijs2005/ticketkeeper/internal/server/repositories/events"
	"github.com/dmitrijs2005/ticketkeeper/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DB or a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Events(db dbx.DBTX) events.Repository
}
