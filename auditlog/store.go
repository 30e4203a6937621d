package auditlog

import (
	"context"
	"time"

	"github.com/xraph/bastion/id"
)

// Store defines persistence operations for the audit trail. There is no
// update or single-row delete; the trail is append-only.
type Store interface {
	// CreateAuditEntry persists a new entry.
	CreateAuditEntry(ctx context.Context, e *Entry) error

	// GetAuditEntry retrieves an entry by ID.
	GetAuditEntry(ctx context.Context, entryID id.AuditEntryID) (*Entry, error)

	// ListAuditEntries returns entries matching the filter, newest
	// first.
	ListAuditEntries(ctx context.Context, filter *QueryFilter) ([]*Entry, error)

	// CountAuditEntries returns the number of entries matching the
	// filter.
	CountAuditEntries(ctx context.Context, filter *QueryFilter) (int64, error)

	// PurgeAuditEntries removes entries older than the given time.
	// Retention tooling only.
	PurgeAuditEntries(ctx context.Context, before time.Time) (int64, error)
}
