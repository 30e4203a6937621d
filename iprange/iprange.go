// Package iprange defines per-user IP allowlist ranges. A user with no
// ranges is unrestricted; the first range restricts access to the union
// of that user's ranges (plus the default user's, when inherited).
package iprange

import (
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/xraph/bastion/id"
)

// Range is one stored allowlist entry for a user. Spec keeps the
// operator's original input; Start and End hold the parsed, normalized
// bounds so checks never re-parse.
type Range struct {
	ID       id.IPRangeID `json:"id" db:"id"`
	TenantID string       `json:"tenant_id" db:"tenant_id"`
	UserID   int64        `json:"user_id" db:"user_id"`

	// Spec is the input as given: a single address, CIDR notation, or
	// an explicit "start - end" pair. Validated at grant time.
	Spec        string `json:"spec" db:"spec"`
	Start       string `json:"start" db:"start_addr"`
	End         string `json:"end" db:"end_addr"`
	Description string `json:"description,omitempty" db:"description"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Span returns the parsed bounds of a stored range. Stored bounds are
// always valid; a corrupt row surfaces as an error rather than a
// silent non-match.
func (r *Range) Span() (Span, error) {
	start, err := netip.ParseAddr(r.Start)
	if err != nil {
		return Span{}, fmt.Errorf("iprange: corrupt start %q: %w", r.Start, err)
	}
	end, err := netip.ParseAddr(r.End)
	if err != nil {
		return Span{}, fmt.Errorf("iprange: corrupt end %q: %w", r.End, err)
	}
	return Span{Start: start, End: end}, nil
}

// Span is an inclusive address interval within one family.
type Span struct {
	Start netip.Addr
	End   netip.Addr
}

// Contains reports whether addr falls inside the span. Addresses of the
// other family never match.
func (s Span) Contains(addr netip.Addr) bool {
	if addr.Is4() != s.Start.Is4() {
		return false
	}
	return s.Start.Compare(addr) <= 0 && addr.Compare(s.End) <= 0
}

// Parse accepts a single address ("10.1.2.3", "::1"), CIDR notation
// ("10.0.0.0/8"), or an explicit "start - end" pair, and returns the
// inclusive span. Malformed input, including an IPv4 prefix over 32,
// is an error, never an empty match.
func Parse(spec string) (Span, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return Span{}, fmt.Errorf("iprange: empty spec")
	}

	if strings.Contains(spec, "-") {
		parts := strings.SplitN(spec, "-", 2)
		start, err := netip.ParseAddr(strings.TrimSpace(parts[0]))
		if err != nil {
			return Span{}, fmt.Errorf("iprange: bad range start in %q: %w", spec, err)
		}
		end, err := netip.ParseAddr(strings.TrimSpace(parts[1]))
		if err != nil {
			return Span{}, fmt.Errorf("iprange: bad range end in %q: %w", spec, err)
		}
		if start.Is4() != end.Is4() {
			return Span{}, fmt.Errorf("iprange: mixed address families in %q", spec)
		}
		if start.Compare(end) > 0 {
			return Span{}, fmt.Errorf("iprange: start after end in %q", spec)
		}
		return Span{Start: start, End: end}, nil
	}

	if strings.Contains(spec, "/") {
		prefix, err := netip.ParsePrefix(spec)
		if err != nil {
			return Span{}, fmt.Errorf("iprange: bad CIDR %q: %w", spec, err)
		}
		masked := prefix.Masked()
		return Span{Start: masked.Addr(), End: lastAddr(masked)}, nil
	}

	addr, err := netip.ParseAddr(spec)
	if err != nil {
		return Span{}, fmt.Errorf("iprange: bad address %q: %w", spec, err)
	}
	return Span{Start: addr, End: addr}, nil
}

// lastAddr returns the highest address inside a masked prefix.
func lastAddr(prefix netip.Prefix) netip.Addr {
	addr := prefix.Addr()
	bits := prefix.Bits()

	if addr.Is4() {
		a4 := addr.As4()
		for b := bits; b < 32; b++ {
			a4[b/8] |= 1 << (7 - b%8)
		}
		return netip.AddrFrom4(a4)
	}

	a16 := addr.As16()
	for b := bits; b < 128; b++ {
		a16[b/8] |= 1 << (7 - b%8)
	}
	return netip.AddrFrom16(a16)
}
