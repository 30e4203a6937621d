// Package auditlog defines the audit trail Entry entity and the action
// taxonomy. Entries are append-only: created once on every privileged
// mutation, never updated, only bulk-purged by retention tooling.
package auditlog

import (
	"time"

	"github.com/xraph/bastion/id"
)

// Entry is a single audit record of one privileged action.
type Entry struct {
	ID       id.AuditEntryID `json:"id" db:"id"`
	TenantID string          `json:"tenant_id" db:"tenant_id"`

	// Action is a dotted taxonomy name, e.g. "repo.delete" or
	// "user.edit.permissions". Must be registered in the Taxonomy.
	Action string `json:"action" db:"action"`

	// ActionData is the action-specific payload. Checked structurally
	// against the taxonomy's expected keys; missing keys are logged
	// but never block recording.
	ActionData map[string]any `json:"action_data,omitempty" db:"action_data"`

	// Actor identity. Nil/empty for anonymous or failed-auth actors.
	UserID   *int64 `json:"user_id,omitempty" db:"user_id"`
	Username string `json:"username,omitempty" db:"username"`

	IPAddress string `json:"ip_address,omitempty" db:"ip_address"`

	// Repository context, when the action targets one.
	RepositoryID   *int64 `json:"repository_id,omitempty" db:"repository_id"`
	RepositoryName string `json:"repository_name,omitempty" db:"repository_name"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// QueryFilter contains filters for querying the audit trail.
type QueryFilter struct {
	TenantID     string     `json:"tenant_id,omitempty"`
	Action       string     `json:"action,omitempty"`
	UserID       *int64     `json:"user_id,omitempty"`
	Username     string     `json:"username,omitempty"`
	RepositoryID *int64     `json:"repository_id,omitempty"`
	After        *time.Time `json:"after,omitempty"`
	Before       *time.Time `json:"before,omitempty"`
	Limit        int        `json:"limit,omitempty"`
	Offset       int        `json:"offset,omitempty"`
}
