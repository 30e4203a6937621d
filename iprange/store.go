package iprange

import (
	"context"

	"github.com/xraph/bastion/id"
)

// Store defines persistence operations for IP allowlist ranges.
type Store interface {
	// CreateIPRange persists a new range. Bounds are validated by the
	// engine before the write.
	CreateIPRange(ctx context.Context, r *Range) error

	// GetIPRange retrieves a range by ID.
	GetIPRange(ctx context.Context, rangeID id.IPRangeID) (*Range, error)

	// DeleteIPRange removes a range. No-op if absent.
	DeleteIPRange(ctx context.Context, rangeID id.IPRangeID) error

	// ListIPRangesForUser returns every range bound to one user.
	ListIPRangesForUser(ctx context.Context, tenantID string, userID int64) ([]*Range, error)
}
