package bastion_test

import (
	"context"
	"errors"
	"testing"

	"github.com/xraph/bastion"
	"github.com/xraph/bastion/id"
	"github.com/xraph/bastion/iprange"
	"github.com/xraph/bastion/store/memory"
	"github.com/xraph/bastion/subject"
)

func seedRange(t *testing.T, s *memory.Store, userID int64, spec string) {
	t.Helper()
	span, err := iprange.Parse(spec)
	if err != nil {
		t.Fatal(err)
	}
	err = s.CreateIPRange(context.Background(), &iprange.Range{
		ID:       id.NewIPRangeID(),
		TenantID: tenant,
		UserID:   userID,
		Spec:     spec,
		Start:    span.Start.String(),
		End:      span.End.String(),
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestIPAllowNoRangesAllowsAll(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	seedUser(t, s, 1, "alice")

	e := bastion.NewIPAllowlistEngine(s, s)
	ok, err := e.IsIPAllowed(ctx, tenant, 1, "203.0.113.9")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected unrestricted user to be allowed")
	}
}

func TestIPAllowCIDR(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	seedUser(t, s, 1, "alice")
	seedRange(t, s, 1, "127.0.0.1/24")

	e := bastion.NewIPAllowlistEngine(s, s)

	ok, err := e.IsIPAllowed(ctx, tenant, 1, "127.0.0.17")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected 127.0.0.17 inside 127.0.0.1/24")
	}

	ok, err = e.IsIPAllowed(ctx, tenant, 1, "10.0.0.1")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected 10.0.0.1 outside the allowlist")
	}
}

func TestIPAllowExplicitRange(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	seedUser(t, s, 1, "alice")
	seedRange(t, s, 1, "10.1.0.10 - 10.1.0.20")

	e := bastion.NewIPAllowlistEngine(s, s)

	for addr, want := range map[string]bool{
		"10.1.0.10": true,
		"10.1.0.15": true,
		"10.1.0.20": true,
		"10.1.0.21": false,
		"10.1.0.9":  false,
	} {
		ok, err := e.IsIPAllowed(ctx, tenant, 1, addr)
		if err != nil {
			t.Fatal(err)
		}
		if ok != want {
			t.Errorf("IsIPAllowed(%s) = %v, want %v", addr, ok, want)
		}
	}
}

func TestIPAllowInheritsDefaultRanges(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	seedUser(t, s, 1, subject.DefaultUsername)
	seedUser(t, s, 2, "alice")
	seedUser(t, s, 3, "bob", noInherit)

	// The baseline restricts to the office net; alice adds her own VPN.
	seedRange(t, s, 1, "192.0.2.0/24")
	seedRange(t, s, 2, "198.51.100.7")
	seedRange(t, s, 3, "198.51.100.7")

	e := bastion.NewIPAllowlistEngine(s, s)

	// alice: union of her range and the inherited baseline.
	for addr, want := range map[string]bool{
		"198.51.100.7": true,
		"192.0.2.40":   true,
		"203.0.113.1":  false,
	} {
		ok, err := e.IsIPAllowed(ctx, tenant, 2, addr)
		if err != nil {
			t.Fatal(err)
		}
		if ok != want {
			t.Errorf("alice IsIPAllowed(%s) = %v, want %v", addr, ok, want)
		}
	}

	// bob does not inherit; only his own range counts.
	ok, err := e.IsIPAllowed(ctx, tenant, 3, "192.0.2.40")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected bob to be outside the baseline he does not inherit")
	}
}

func TestIPAllowMalformedAddr(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	seedUser(t, s, 1, "alice")

	e := bastion.NewIPAllowlistEngine(s, s)
	_, err := e.IsIPAllowed(ctx, tenant, 1, "not-an-ip")
	if !errors.Is(err, bastion.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestIPAllowUnknownUser(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	e := bastion.NewIPAllowlistEngine(s, s)
	_, err := e.IsIPAllowed(ctx, tenant, 99, "127.0.0.1")
	if !errors.Is(err, bastion.ErrValidation) {
		t.Fatalf("expected validation error for unknown user, got %v", err)
	}
}

func TestIPAllowIPv6FamilySeparation(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	seedUser(t, s, 1, "alice")
	seedRange(t, s, 1, "::1")

	e := bastion.NewIPAllowlistEngine(s, s)

	ok, err := e.IsIPAllowed(ctx, tenant, 1, "::1")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected ::1 allowed")
	}

	// An IPv4 address never matches an IPv6 range.
	ok, err = e.IsIPAllowed(ctx, tenant, 1, "127.0.0.1")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected 127.0.0.1 outside an IPv6-only allowlist")
	}
}

func TestValidateRangeSpec(t *testing.T) {
	valid := []string{"10.0.0.1", "10.0.0.0/8", "10.0.0.1 - 10.0.0.9", "::1", "2001:db8::/32"}
	for _, spec := range valid {
		if _, err := bastion.ValidateRangeSpec(spec); err != nil {
			t.Errorf("ValidateRangeSpec(%q) unexpected error: %v", spec, err)
		}
	}

	invalid := []string{"", "999.1.1.1", "10.0.0.0/33", "10.0.0.9 - 10.0.0.1", "example.com"}
	for _, spec := range invalid {
		if _, err := bastion.ValidateRangeSpec(spec); err == nil {
			t.Errorf("ValidateRangeSpec(%q) expected error", spec)
		}
	}
}
