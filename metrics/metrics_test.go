package metrics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/xraph/bastion/auditlog"
	"github.com/xraph/bastion/event"
	"github.com/xraph/bastion/id"
	"github.com/xraph/bastion/iprange"
)

func TestCollectorCounts(t *testing.T) {
	ctx := context.Background()
	registry := prometheus.NewRegistry()
	c := NewCollector(registry)

	_ = c.OnPermissionsChanged(ctx, event.PermissionChange{
		TenantID:        "t1",
		ResourceKind:    "repository",
		ResourceID:      100,
		AffectedUserIDs: []int64{1, 2, 3},
	})
	_ = c.OnBranchRuleChanged(ctx, id.NewBranchRuleID(), nil)
	_ = c.OnIPRangeAdded(ctx, &iprange.Range{ID: id.NewIPRangeID()})
	_ = c.OnIPRangeRemoved(ctx, id.NewIPRangeID())
	_ = c.OnAuditRecorded(ctx, &auditlog.Entry{ID: id.NewAuditEntryID(), Action: "repo.create"})

	if got := testutil.ToFloat64(c.PermissionChangesTotal.WithLabelValues("repository")); got != 1 {
		t.Fatalf("expected 1 permission change, got %v", got)
	}
	if got := testutil.ToFloat64(c.AffectedUsersTotal); got != 3 {
		t.Fatalf("expected 3 affected users, got %v", got)
	}
	if got := testutil.ToFloat64(c.BranchRuleChangesTotal); got != 1 {
		t.Fatalf("expected 1 branch rule change, got %v", got)
	}
	if got := testutil.ToFloat64(c.IPRangeChangesTotal.WithLabelValues("add")); got != 1 {
		t.Fatalf("expected 1 ip range add, got %v", got)
	}
	if got := testutil.ToFloat64(c.IPRangeChangesTotal.WithLabelValues("remove")); got != 1 {
		t.Fatalf("expected 1 ip range remove, got %v", got)
	}
	if got := testutil.ToFloat64(c.AuditEntriesTotal.WithLabelValues("repo.create")); got != 1 {
		t.Fatalf("expected 1 audit entry, got %v", got)
	}
}

func TestCollectorOnBus(t *testing.T) {
	ctx := context.Background()
	registry := prometheus.NewRegistry()
	c := NewCollector(registry)

	bus := event.NewBus(nil)
	bus.Subscribe(c)

	bus.PublishPermissionsChanged(ctx, event.PermissionChange{
		TenantID:        "t1",
		ResourceKind:    "repo_group",
		AffectedUserIDs: []int64{7},
	})

	if got := testutil.ToFloat64(c.PermissionChangesTotal.WithLabelValues("repo_group")); got != 1 {
		t.Fatalf("expected 1 permission change via bus, got %v", got)
	}
}
