package iprange

import (
	"net/netip"
	"testing"
)

func TestParseSingleAddress(t *testing.T) {
	span, err := Parse("10.1.2.3")
	if err != nil {
		t.Fatal(err)
	}
	if span.Start != span.End {
		t.Fatal("single address must be a one-address span")
	}
	if !span.Contains(netip.MustParseAddr("10.1.2.3")) {
		t.Fatal("span must contain its own address")
	}
	if span.Contains(netip.MustParseAddr("10.1.2.4")) {
		t.Fatal("span must not contain neighbors")
	}
}

func TestParseCIDR(t *testing.T) {
	span, err := Parse("10.0.0.0/8")
	if err != nil {
		t.Fatal(err)
	}
	if span.Start != netip.MustParseAddr("10.0.0.0") {
		t.Fatalf("bad start %s", span.Start)
	}
	if span.End != netip.MustParseAddr("10.255.255.255") {
		t.Fatalf("bad end %s", span.End)
	}

	// A non-zero host part is masked away.
	span, err = Parse("127.0.0.1/24")
	if err != nil {
		t.Fatal(err)
	}
	if span.Start != netip.MustParseAddr("127.0.0.0") || span.End != netip.MustParseAddr("127.0.0.255") {
		t.Fatalf("bad span %s - %s", span.Start, span.End)
	}
}

func TestParseExplicitRange(t *testing.T) {
	span, err := Parse("10.1.0.10 - 10.1.0.20")
	if err != nil {
		t.Fatal(err)
	}
	if !span.Contains(netip.MustParseAddr("10.1.0.10")) || !span.Contains(netip.MustParseAddr("10.1.0.20")) {
		t.Fatal("bounds are inclusive")
	}
	if span.Contains(netip.MustParseAddr("10.1.0.21")) {
		t.Fatal("past-end address must not match")
	}
}

func TestParseIPv6(t *testing.T) {
	span, err := Parse("2001:db8::/32")
	if err != nil {
		t.Fatal(err)
	}
	if !span.Contains(netip.MustParseAddr("2001:db8::1")) {
		t.Fatal("expected prefix member to match")
	}
	if span.Contains(netip.MustParseAddr("2001:db9::1")) {
		t.Fatal("expected outside address to miss")
	}
	// Other family never matches.
	if span.Contains(netip.MustParseAddr("10.0.0.1")) {
		t.Fatal("IPv4 must not match an IPv6 span")
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, spec := range []string{
		"",
		"  ",
		"999.1.1.1",
		"10.0.0.0/33",
		"10.0.0.9 - 10.0.0.1",
		"10.0.0.1 - ::1",
		"example.com",
		"10.0.0.1 -",
	} {
		if _, err := Parse(spec); err == nil {
			t.Errorf("Parse(%q) expected error", spec)
		}
	}
}

func TestRangeSpanCorruptRow(t *testing.T) {
	r := &Range{Start: "not-an-ip", End: "10.0.0.1"}
	if _, err := r.Span(); err == nil {
		t.Fatal("expected error for corrupt start")
	}
	r = &Range{Start: "10.0.0.1", End: "garbage"}
	if _, err := r.Span(); err == nil {
		t.Fatal("expected error for corrupt end")
	}
}
