// Package event provides the in-process event bus for permission
// mutations. Delivery is synchronous, in registration order, within the
// current process only: no durability, no retry, no cross-process
// fanout. A failing subscriber is isolated and logged; it never blocks
// the remaining subscribers or the publisher.
//
// Each event kind is a separate interface so subscribers opt in only to
// the events they care about.
package event

import (
	"context"

	"github.com/xraph/bastion/auditlog"
	"github.com/xraph/bastion/branchrule"
	"github.com/xraph/bastion/grant"
	"github.com/xraph/bastion/id"
	"github.com/xraph/bastion/iprange"
)

// PermissionChange is published after any permission mutation. It is
// ephemeral; consumers invalidate per-user permission caches for the
// affected IDs and drop it.
type PermissionChange struct {
	TenantID        string  `json:"tenant_id"`
	ResourceKind    string  `json:"resource_kind"`
	ResourceID      int64   `json:"resource_id"`
	AffectedUserIDs []int64 `json:"affected_user_ids"`
}

// Subscriber is the base interface all subscribers must implement.
type Subscriber interface {
	// Name returns a unique human-readable name for the subscriber.
	Name() string
}

// PermissionsChanged is notified after a permission mutation, with the
// set of user IDs whose effective permissions may have changed.
type PermissionsChanged interface {
	OnPermissionsChanged(ctx context.Context, ev PermissionChange) error
}

// GrantWritten is notified after a grant is created or replaced.
type GrantWritten interface {
	OnGrantWritten(ctx context.Context, g *grant.Grant) error
}

// GrantRevoked is notified after a grant is removed.
type GrantRevoked interface {
	OnGrantRevoked(ctx context.Context, tenantID string, key grant.Key) error
}

// BranchRuleChanged is notified after a branch rule is created, updated,
// or deleted (nil rule on delete, with the ID).
type BranchRuleChanged interface {
	OnBranchRuleChanged(ctx context.Context, ruleID id.BranchRuleID, r *branchrule.Rule) error
}

// IPRangeAdded is notified after an allowlist range is added.
type IPRangeAdded interface {
	OnIPRangeAdded(ctx context.Context, r *iprange.Range) error
}

// IPRangeRemoved is notified after an allowlist range is removed.
type IPRangeRemoved interface {
	OnIPRangeRemoved(ctx context.Context, rangeID id.IPRangeID) error
}

// AuditRecorded is notified after an audit entry is persisted.
type AuditRecorded interface {
	OnAuditRecorded(ctx context.Context, e *auditlog.Entry) error
}

// Shutdown is notified during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
