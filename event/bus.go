package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/bastion/auditlog"
	"github.com/xraph/bastion/branchrule"
	"github.com/xraph/bastion/grant"
	"github.com/xraph/bastion/id"
	"github.com/xraph/bastion/iprange"
)

// Named entry types pair a handler with the subscriber name for logging.

type permissionsChangedEntry struct {
	name string
	sub  PermissionsChanged
}
type grantWrittenEntry struct {
	name string
	sub  GrantWritten
}
type grantRevokedEntry struct {
	name string
	sub  GrantRevoked
}
type branchRuleChangedEntry struct {
	name string
	sub  BranchRuleChanged
}
type ipRangeAddedEntry struct {
	name string
	sub  IPRangeAdded
}
type ipRangeRemovedEntry struct {
	name string
	sub  IPRangeRemoved
}
type auditRecordedEntry struct {
	name string
	sub  AuditRecorded
}
type shutdownEntry struct {
	name string
	sub  Shutdown
}

// Bus holds registered subscribers and dispatches events. Subscribers
// are type-cached at registration time so publishing iterates only over
// subscribers interested in that event kind.
type Bus struct {
	subscribers []Subscriber
	logger      *slog.Logger

	permissionsChanged []permissionsChangedEntry
	grantWritten       []grantWrittenEntry
	grantRevoked       []grantRevokedEntry
	branchRuleChanged  []branchRuleChangedEntry
	ipRangeAdded       []ipRangeAddedEntry
	ipRangeRemoved     []ipRangeRemovedEntry
	auditRecorded      []auditRecordedEntry
	shutdown           []shutdownEntry
}

// NewBus creates an event bus with the given logger.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{logger: logger}
}

// Subscribe adds a subscriber and type-asserts it into all applicable
// event caches. Subscribers are notified in registration order.
func (b *Bus) Subscribe(s Subscriber) {
	b.subscribers = append(b.subscribers, s)
	name := s.Name()

	if h, ok := s.(PermissionsChanged); ok {
		b.permissionsChanged = append(b.permissionsChanged, permissionsChangedEntry{name, h})
	}
	if h, ok := s.(GrantWritten); ok {
		b.grantWritten = append(b.grantWritten, grantWrittenEntry{name, h})
	}
	if h, ok := s.(GrantRevoked); ok {
		b.grantRevoked = append(b.grantRevoked, grantRevokedEntry{name, h})
	}
	if h, ok := s.(BranchRuleChanged); ok {
		b.branchRuleChanged = append(b.branchRuleChanged, branchRuleChangedEntry{name, h})
	}
	if h, ok := s.(IPRangeAdded); ok {
		b.ipRangeAdded = append(b.ipRangeAdded, ipRangeAddedEntry{name, h})
	}
	if h, ok := s.(IPRangeRemoved); ok {
		b.ipRangeRemoved = append(b.ipRangeRemoved, ipRangeRemovedEntry{name, h})
	}
	if h, ok := s.(AuditRecorded); ok {
		b.auditRecorded = append(b.auditRecorded, auditRecordedEntry{name, h})
	}
	if h, ok := s.(Shutdown); ok {
		b.shutdown = append(b.shutdown, shutdownEntry{name, h})
	}
}

// Subscribers returns all registered subscribers.
func (b *Bus) Subscribers() []Subscriber { return b.subscribers }

// PublishPermissionsChanged notifies subscribers of a permission change.
func (b *Bus) PublishPermissionsChanged(ctx context.Context, ev PermissionChange) {
	for _, e := range b.permissionsChanged {
		b.deliver("OnPermissionsChanged", e.name, func() error {
			return e.sub.OnPermissionsChanged(ctx, ev)
		})
	}
}

// PublishGrantWritten notifies subscribers of a grant write.
func (b *Bus) PublishGrantWritten(ctx context.Context, g *grant.Grant) {
	for _, e := range b.grantWritten {
		b.deliver("OnGrantWritten", e.name, func() error {
			return e.sub.OnGrantWritten(ctx, g)
		})
	}
}

// PublishGrantRevoked notifies subscribers of a grant removal.
func (b *Bus) PublishGrantRevoked(ctx context.Context, tenantID string, key grant.Key) {
	for _, e := range b.grantRevoked {
		b.deliver("OnGrantRevoked", e.name, func() error {
			return e.sub.OnGrantRevoked(ctx, tenantID, key)
		})
	}
}

// PublishBranchRuleChanged notifies subscribers of a branch rule change.
func (b *Bus) PublishBranchRuleChanged(ctx context.Context, ruleID id.BranchRuleID, r *branchrule.Rule) {
	for _, e := range b.branchRuleChanged {
		b.deliver("OnBranchRuleChanged", e.name, func() error {
			return e.sub.OnBranchRuleChanged(ctx, ruleID, r)
		})
	}
}

// PublishIPRangeAdded notifies subscribers of a new allowlist range.
func (b *Bus) PublishIPRangeAdded(ctx context.Context, r *iprange.Range) {
	for _, e := range b.ipRangeAdded {
		b.deliver("OnIPRangeAdded", e.name, func() error {
			return e.sub.OnIPRangeAdded(ctx, r)
		})
	}
}

// PublishIPRangeRemoved notifies subscribers of a removed allowlist range.
func (b *Bus) PublishIPRangeRemoved(ctx context.Context, rangeID id.IPRangeID) {
	for _, e := range b.ipRangeRemoved {
		b.deliver("OnIPRangeRemoved", e.name, func() error {
			return e.sub.OnIPRangeRemoved(ctx, rangeID)
		})
	}
}

// PublishAuditRecorded notifies subscribers of a persisted audit entry.
func (b *Bus) PublishAuditRecorded(ctx context.Context, entry *auditlog.Entry) {
	for _, e := range b.auditRecorded {
		b.deliver("OnAuditRecorded", e.name, func() error {
			return e.sub.OnAuditRecorded(ctx, entry)
		})
	}
}

// PublishShutdown notifies subscribers of graceful shutdown.
func (b *Bus) PublishShutdown(ctx context.Context) {
	for _, e := range b.shutdown {
		b.deliver("OnShutdown", e.name, func() error {
			return e.sub.OnShutdown(ctx)
		})
	}
}

// deliver invokes one subscriber, containing both returned errors and
// panics so the remaining subscribers still receive the event.
func (b *Bus) deliver(eventName, subscriberName string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			b.logSubscriberError(eventName, subscriberName, fmt.Errorf("panic: %v", r))
		}
	}()
	if err := fn(); err != nil {
		b.logSubscriberError(eventName, subscriberName, err)
	}
}

// logSubscriberError logs a warning when a subscriber fails. Failures
// are never propagated; they must not reach the publisher.
func (b *Bus) logSubscriberError(eventName, subscriberName string, err error) {
	b.logger.Warn("event subscriber error",
		slog.String("event", eventName),
		slog.String("subscriber", subscriberName),
		slog.String("error", err.Error()),
	)
}
