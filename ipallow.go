package bastion

import (
	"context"
	"errors"
	"fmt"
	"net/netip"

	"github.com/xraph/bastion/iprange"
	"github.com/xraph/bastion/subject"
)

// IPAllowlistEngine validates caller addresses against per-user
// allowlist ranges. A user with no ranges anywhere is unrestricted; the
// first range restricts access to the union of the user's own ranges
// plus, when the user inherits default permissions, the default user's.
type IPAllowlistEngine struct {
	subjects subject.Store
	ranges   iprange.Store
}

// NewIPAllowlistEngine creates an allowlist engine over the given stores.
func NewIPAllowlistEngine(subjects subject.Store, ranges iprange.Store) *IPAllowlistEngine {
	return &IPAllowlistEngine{subjects: subjects, ranges: ranges}
}

// IsIPAllowed reports whether ipAddr may act as userID. Malformed
// check-time addresses are input errors, never a silent non-match;
// malformed stored ranges are rejected before they are written, so a
// corrupt row surfaces as a store error here.
func (e *IPAllowlistEngine) IsIPAllowed(ctx context.Context, tenantID string, userID int64, ipAddr string) (bool, error) {
	addr, err := netip.ParseAddr(ipAddr)
	if err != nil {
		return false, &ValidationError{Field: "ip_addr", Value: ipAddr, Detail: "not a valid IP address"}
	}

	user, err := e.subjects.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, &ValidationError{Field: "user_id", Value: fmt.Sprint(userID), Detail: "no such user"}
		}
		return false, &StoreError{Op: "get user", Err: err}
	}

	ranges, err := e.ranges.ListIPRangesForUser(ctx, tenantID, userID)
	if err != nil {
		return false, &StoreError{Op: "list ip ranges", Err: err}
	}

	if user.InheritDefaultPermissions && !user.IsDefault() {
		def, err := e.subjects.GetDefaultUser(ctx, tenantID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return false, &StoreError{Op: "get default user", Err: err}
		}
		if def != nil {
			defRanges, err := e.ranges.ListIPRangesForUser(ctx, tenantID, def.ID)
			if err != nil {
				return false, &StoreError{Op: "list ip ranges", Err: err}
			}
			ranges = append(ranges, defRanges...)
		}
	}

	if len(ranges) == 0 {
		return true, nil
	}

	for _, r := range ranges {
		span, err := r.Span()
		if err != nil {
			return false, &StoreError{Op: "parse stored ip range", Err: err}
		}
		if span.Contains(addr) {
			return true, nil
		}
	}
	return false, nil
}

// ValidateRangeSpec parses a range spec ahead of a write. Malformed
// input is rejected at grant time with a ValidationError, never dropped
// at check time.
func ValidateRangeSpec(spec string) (iprange.Span, error) {
	span, err := iprange.Parse(spec)
	if err != nil {
		return iprange.Span{}, &ValidationError{Field: "ip_range", Value: spec, Detail: err.Error()}
	}
	return span, nil
}
