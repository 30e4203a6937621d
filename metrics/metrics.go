// Package metrics exposes permission mutation activity as Prometheus
// metrics. Collector subscribes to the engine's event bus and counts
// mutations as they are published.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/xraph/bastion/auditlog"
	"github.com/xraph/bastion/branchrule"
	"github.com/xraph/bastion/event"
	"github.com/xraph/bastion/grant"
	"github.com/xraph/bastion/id"
	"github.com/xraph/bastion/iprange"
)

// Compile-time interface checks.
var (
	_ event.Subscriber         = (*Collector)(nil)
	_ event.PermissionsChanged = (*Collector)(nil)
	_ event.GrantWritten       = (*Collector)(nil)
	_ event.GrantRevoked       = (*Collector)(nil)
	_ event.BranchRuleChanged  = (*Collector)(nil)
	_ event.IPRangeAdded       = (*Collector)(nil)
	_ event.IPRangeRemoved     = (*Collector)(nil)
	_ event.AuditRecorded      = (*Collector)(nil)
)

// Collector is an event bus subscriber exporting Prometheus counters.
type Collector struct {
	PermissionChangesTotal *prometheus.CounterVec
	AffectedUsersTotal     prometheus.Counter
	GrantWritesTotal       prometheus.Counter
	GrantRevocationsTotal  prometheus.Counter
	BranchRuleChangesTotal prometheus.Counter
	IPRangeChangesTotal    *prometheus.CounterVec
	AuditEntriesTotal      *prometheus.CounterVec
}

// NewCollector creates and registers the metrics on the registry.
func NewCollector(registry prometheus.Registerer) *Collector {
	c := &Collector{
		PermissionChangesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bastion_permission_changes_total",
				Help: "Total number of bulk permission mutations",
			},
			[]string{"resource_kind"},
		),
		AffectedUsersTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "bastion_affected_users_total",
				Help: "Total number of users affected by permission mutations",
			},
		),
		GrantWritesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "bastion_grant_writes_total",
				Help: "Total number of grant upserts",
			},
		),
		GrantRevocationsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "bastion_grant_revocations_total",
				Help: "Total number of grant removals",
			},
		),
		BranchRuleChangesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "bastion_branch_rule_changes_total",
				Help: "Total number of branch rule mutations",
			},
		),
		IPRangeChangesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bastion_ip_range_changes_total",
				Help: "Total number of IP allowlist mutations",
			},
			[]string{"op"},
		),
		AuditEntriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bastion_audit_entries_total",
				Help: "Total number of audit entries recorded",
			},
			[]string{"action"},
		),
	}

	registry.MustRegister(
		c.PermissionChangesTotal,
		c.AffectedUsersTotal,
		c.GrantWritesTotal,
		c.GrantRevocationsTotal,
		c.BranchRuleChangesTotal,
		c.IPRangeChangesTotal,
		c.AuditEntriesTotal,
	)
	return c
}

// Name implements event.Subscriber.
func (c *Collector) Name() string { return "prometheus-metrics" }

// OnPermissionsChanged counts the mutation and its affected users.
func (c *Collector) OnPermissionsChanged(_ context.Context, ev event.PermissionChange) error {
	c.PermissionChangesTotal.WithLabelValues(ev.ResourceKind).Inc()
	c.AffectedUsersTotal.Add(float64(len(ev.AffectedUserIDs)))
	return nil
}

// OnGrantWritten counts a grant upsert.
func (c *Collector) OnGrantWritten(_ context.Context, _ *grant.Grant) error {
	c.GrantWritesTotal.Inc()
	return nil
}

// OnGrantRevoked counts a grant removal.
func (c *Collector) OnGrantRevoked(_ context.Context, _ string, _ grant.Key) error {
	c.GrantRevocationsTotal.Inc()
	return nil
}

// OnBranchRuleChanged counts a branch rule mutation.
func (c *Collector) OnBranchRuleChanged(_ context.Context, _ id.BranchRuleID, _ *branchrule.Rule) error {
	c.BranchRuleChangesTotal.Inc()
	return nil
}

// OnIPRangeAdded counts an allowlist addition.
func (c *Collector) OnIPRangeAdded(_ context.Context, _ *iprange.Range) error {
	c.IPRangeChangesTotal.WithLabelValues("add").Inc()
	return nil
}

// OnIPRangeRemoved counts an allowlist removal.
func (c *Collector) OnIPRangeRemoved(_ context.Context, _ id.IPRangeID) error {
	c.IPRangeChangesTotal.WithLabelValues("remove").Inc()
	return nil
}

// OnAuditRecorded counts a persisted audit entry by action.
func (c *Collector) OnAuditRecorded(_ context.Context, e *auditlog.Entry) error {
	c.AuditEntriesTotal.WithLabelValues(e.Action).Inc()
	return nil
}
