// Package store defines the aggregate persistence interface. Each
// subsystem (subject, resource, grant, branchrule, iprange, auditlog)
// defines its own store interface; the composite Store composes them
// all. Backends: Postgres, SQLite, and Memory.
package store

import (
	"context"

	"github.com/xraph/bastion/auditlog"
	"github.com/xraph/bastion/branchrule"
	"github.com/xraph/bastion/grant"
	"github.com/xraph/bastion/iprange"
	"github.com/xraph/bastion/resource"
	"github.com/xraph/bastion/subject"
)

// Store is the aggregate persistence interface. A single backend
// (postgres, sqlite, memory) implements all subsystem stores.
type Store interface {
	subject.Store
	resource.Store
	grant.Store
	branchrule.Store
	iprange.Store
	auditlog.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks database connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
