package bastion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/xraph/bastion/auditlog"
	"github.com/xraph/bastion/branchrule"
	"github.com/xraph/bastion/event"
	"github.com/xraph/bastion/grant"
	"github.com/xraph/bastion/id"
	"github.com/xraph/bastion/iprange"
	"github.com/xraph/bastion/resource"
	"github.com/xraph/bastion/store"
)

// Engine is the central permission engine. It coordinates effective
// permission resolution, branch push rules, IP allowlisting, bulk
// permission changes, and the audit trail, and publishes change events
// to subscribers.
type Engine struct {
	store       store.Store
	resolver    *Resolver
	branches    *BranchRuleEngine
	ipAllowlist *IPAllowlistEngine
	broadcaster *Broadcaster
	audit       *AuditLogger
	bus         *event.Bus
	cache       Cache
	taxonomy    *auditlog.Taxonomy
	logger      *slog.Logger
	config      Config
}

// NewEngine creates a new Bastion engine with the given options.
func NewEngine(opts ...Option) (*Engine, error) {
	e := &Engine{
		taxonomy: auditlog.DefaultTaxonomy(),
		logger:   slog.Default(),
		config:   DefaultConfig(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.store == nil {
		return nil, errors.New("bastion: store is required")
	}
	if e.bus == nil {
		e.bus = event.NewBus(e.logger)
	}
	e.resolver = NewResolver(e.store, e.store, e.store)
	e.branches = NewBranchRuleEngine(e.store, e.store)
	e.ipAllowlist = NewIPAllowlistEngine(e.store, e.store)
	e.broadcaster = NewBroadcaster(e.store, e.store, e.store, e.resolver)
	e.audit = NewAuditLogger(e.store, e.taxonomy, e.bus, e.logger)
	return e, nil
}

// Store returns the underlying composite store.
func (e *Engine) Store() store.Store { return e.store }

// Bus returns the event bus used for change notifications.
func (e *Engine) Bus() *event.Bus { return e.bus }

// Audit returns the audit logger for host-driven actions such as
// repo.create or user.delete that happen outside the engine.
func (e *Engine) Audit() *AuditLogger { return e.audit }

// Start performs any startup initialization.
func (e *Engine) Start(_ context.Context) error { return nil }

// Stop performs graceful shutdown and notifies subscribers.
func (e *Engine) Stop(ctx context.Context) error {
	e.bus.PublishShutdown(ctx)
	return nil
}

// EffectivePermission resolves the single effective permission level a
// subject holds on a resource. This is the hot path.
func (e *Engine) EffectivePermission(ctx context.Context, subj SubjectRef, res ResourceRef) (Level, error) {
	start := time.Now()
	scope := scopeFromContext(ctx)

	if e.cache != nil {
		if level, ok := e.cache.GetLevel(ctx, scope.tenantID, subj, res); ok {
			return level, nil
		}
	}

	level, err := e.resolver.EffectivePermission(ctx, scope.tenantID, subj, res)
	if err != nil {
		return "", fmt.Errorf("bastion resolve: %w", err)
	}

	if e.cache != nil {
		e.cache.SetLevel(ctx, scope.tenantID, subj, res, level)
	}

	e.logger.Debug("resolved effective permission",
		slog.String("subject_kind", string(subj.Kind)),
		slog.Int64("subject_id", subj.ID),
		slog.String("resource_kind", string(res.Kind)),
		slog.Int64("resource_id", res.ID),
		slog.String("level", string(level)),
		slog.Duration("elapsed", time.Since(start)),
	)
	return level, nil
}

// HasAtLeast reports whether the subject holds min or a stronger level
// on the resource.
func (e *Engine) HasAtLeast(ctx context.Context, subj SubjectRef, res ResourceRef, min Level) (bool, error) {
	level, err := e.EffectivePermission(ctx, subj, res)
	if err != nil {
		return false, err
	}
	return level.Rank() >= min.Rank(), nil
}

// Enforce returns ErrAccessDenied if the subject holds less than min on
// the resource.
func (e *Engine) Enforce(ctx context.Context, subj SubjectRef, res ResourceRef, min Level) error {
	ok, err := e.HasAtLeast(ctx, subj, res, min)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: requires %s", ErrAccessDenied, min)
	}
	return nil
}

// CheckBranch evaluates branch push rules for a push to branchName.
// When branch rules are disabled in config every push is allowed.
func (e *Engine) CheckBranch(ctx context.Context, userID, repoID int64, branchName string, forced bool) (BranchCheckResult, error) {
	if !e.config.branchRulesEnabled() {
		return BranchCheckResult{Decision: BranchAllowForce}, nil
	}
	scope := scopeFromContext(ctx)
	return e.branches.PermissionForBranch(ctx, scope.tenantID, userID, repoID, branchName, forced)
}

// IsIPAllowed reports whether the source address passes the user's IP
// allowlist. When the allowlist is disabled in config every address is
// allowed.
func (e *Engine) IsIPAllowed(ctx context.Context, userID int64, ipAddr string) (bool, error) {
	if !e.config.ipAllowlistEnabled() {
		return true, nil
	}
	scope := scopeFromContext(ctx)
	return e.ipAllowlist.IsIPAllowed(ctx, scope.tenantID, userID, ipAddr)
}

// ApplyPermissionChanges applies a bulk permission mutation on a
// resource, records the audit entry, publishes a change event, and
// invalidates cached levels for every affected user.
func (e *Engine) ApplyPermissionChanges(ctx context.Context, actor ActorContext, req *ChangeRequest) (*ChangeSet, error) {
	scope := scopeFromContext(ctx)

	set, err := e.broadcaster.ApplyChanges(ctx, scope.tenantID, actor, req)
	if err != nil {
		return nil, err
	}

	e.recordPermissionsAudit(ctx, scope.tenantID, actor, req, set)

	e.bus.PublishPermissionsChanged(ctx, event.PermissionChange{
		TenantID:        scope.tenantID,
		ResourceKind:    string(req.Resource.Kind),
		ResourceID:      req.Resource.ID,
		AffectedUserIDs: set.AffectedUserIDs,
	})
	e.publishGrantEvents(ctx, scope.tenantID, actor, req.Resource, set)

	if e.cache != nil {
		e.cache.InvalidateUsers(ctx, scope.tenantID, set.AffectedUserIDs)
	}

	e.logger.Info("applied permission changes",
		slog.String("resource_kind", string(req.Resource.Kind)),
		slog.Int64("resource_id", req.Resource.ID),
		slog.Int("added", len(set.Added)),
		slog.Int("updated", len(set.Updated)),
		slog.Int("deleted", len(set.Deleted)),
		slog.Int("affected_users", len(set.AffectedUserIDs)),
	)
	return set, nil
}

// publishGrantEvents fans one applied change set out as per-grant
// events. Upserts from additions and updates publish as writes,
// deletions as revocations.
func (e *Engine) publishGrantEvents(ctx context.Context, tenantID string, actor ActorContext, res ResourceRef, set *ChangeSet) {
	written := func(items []ChangeItem) {
		for _, item := range items {
			e.bus.PublishGrantWritten(ctx, &grant.Grant{
				TenantID:     tenantID,
				SubjectKind:  item.Type,
				SubjectID:    item.ID,
				ResourceKind: string(res.Kind),
				ResourceID:   res.ID,
				Permission:   item.NewPerm,
				GrantedBy:    actor.Username,
			})
		}
	}
	written(set.Added)
	written(set.Updated)

	for _, item := range set.Deleted {
		e.bus.PublishGrantRevoked(ctx, tenantID, grant.Key{
			SubjectKind:  item.Type,
			SubjectID:    item.ID,
			ResourceKind: string(res.Kind),
			ResourceID:   res.ID,
		})
	}
}

func (e *Engine) recordPermissionsAudit(ctx context.Context, tenantID string, actor ActorContext, req *ChangeRequest, set *ChangeSet) {
	action := permissionsAuditAction(req.Resource.Kind)
	data := map[string]any{
		"added":   set.Added,
		"updated": set.Updated,
		"deleted": set.Deleted,
	}
	var repo *resource.Repository
	if req.Resource.Kind == ResourceRepository {
		r, err := e.store.GetRepository(ctx, req.Resource.ID)
		if err == nil {
			repo = r
		}
	}
	if _, err := e.audit.Record(ctx, tenantID, action, actor, data, repo); err != nil {
		e.logger.Error("audit record failed",
			slog.String("action", action),
			slog.String("error", err.Error()),
		)
	}
}

func permissionsAuditAction(kind ResourceKind) string {
	switch kind {
	case ResourceRepoGroup:
		return "repo_group.edit.permissions"
	case ResourceUserGroup:
		return "user_group.edit.permissions"
	default:
		return "repo.edit.permissions"
	}
}

// AddIPRange validates and stores a new allowlist range for a user,
// records the audit entry, and publishes the change.
func (e *Engine) AddIPRange(ctx context.Context, actor ActorContext, userID int64, spec, description string) (*iprange.Range, error) {
	scope := scopeFromContext(ctx)

	span, err := ValidateRangeSpec(spec)
	if err != nil {
		return nil, err
	}

	r := &iprange.Range{
		ID:          id.NewIPRangeID(),
		TenantID:    scope.tenantID,
		UserID:      userID,
		Spec:        spec,
		Start:       span.Start.String(),
		End:         span.End.String(),
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
	if err := e.store.CreateIPRange(ctx, r); err != nil {
		return nil, &StoreError{Op: "create ip range", Err: err}
	}

	e.recordAudit(ctx, scope.tenantID, "user.edit.ip.add", actor, map[string]any{
		"ip_range": spec,
		"user_id":  userID,
	})
	e.bus.PublishIPRangeAdded(ctx, r)
	return r, nil
}

// RemoveIPRange deletes an allowlist range, records the audit entry,
// and publishes the change. Removing an absent range is a no-op.
func (e *Engine) RemoveIPRange(ctx context.Context, actor ActorContext, rangeID id.IPRangeID) error {
	scope := scopeFromContext(ctx)

	r, err := e.store.GetIPRange(ctx, rangeID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return &StoreError{Op: "get ip range", Err: err}
	}
	if err := e.store.DeleteIPRange(ctx, rangeID); err != nil {
		return &StoreError{Op: "delete ip range", Err: err}
	}

	e.recordAudit(ctx, scope.tenantID, "user.edit.ip.delete", actor, map[string]any{
		"ip_range": r.Spec,
		"user_id":  r.UserID,
	})
	e.bus.PublishIPRangeRemoved(ctx, rangeID)
	return nil
}

// CreateBranchRule validates and stores a new branch rule, records the
// audit entry, and publishes the change.
func (e *Engine) CreateBranchRule(ctx context.Context, actor ActorContext, r *branchrule.Rule) (*branchrule.Rule, error) {
	scope := scopeFromContext(ctx)

	if _, err := ParseBranchLevel(r.Permission); err != nil {
		return nil, err
	}
	if r.Pattern == "" {
		return nil, &ValidationError{Field: "pattern", Detail: "must not be empty"}
	}

	r.ID = id.NewBranchRuleID()
	r.TenantID = scope.tenantID
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now

	if err := e.store.CreateBranchRule(ctx, r); err != nil {
		return nil, &StoreError{Op: "create branch rule", Err: err}
	}

	e.recordAudit(ctx, scope.tenantID, "repo.branch_rule.create", actor, map[string]any{
		"repo_id":    r.RepoID,
		"pattern":    r.Pattern,
		"permission": r.Permission,
	})
	e.bus.PublishBranchRuleChanged(ctx, r.ID, r)
	return r, nil
}

// UpdateBranchRule replaces an existing branch rule, records the audit
// entry, and publishes the change.
func (e *Engine) UpdateBranchRule(ctx context.Context, actor ActorContext, r *branchrule.Rule) error {
	scope := scopeFromContext(ctx)

	if _, err := ParseBranchLevel(r.Permission); err != nil {
		return err
	}
	if r.Pattern == "" {
		return &ValidationError{Field: "pattern", Detail: "must not be empty"}
	}

	r.UpdatedAt = time.Now().UTC()
	if err := e.store.UpdateBranchRule(ctx, r); err != nil {
		return &StoreError{Op: "update branch rule", Err: err}
	}

	e.recordAudit(ctx, scope.tenantID, "repo.branch_rule.edit", actor, map[string]any{
		"repo_id":    r.RepoID,
		"pattern":    r.Pattern,
		"permission": r.Permission,
	})
	e.bus.PublishBranchRuleChanged(ctx, r.ID, r)
	return nil
}

// DeleteBranchRule removes a branch rule, records the audit entry, and
// publishes the change. Deleting an absent rule is a no-op.
func (e *Engine) DeleteBranchRule(ctx context.Context, actor ActorContext, ruleID id.BranchRuleID) error {
	scope := scopeFromContext(ctx)

	r, err := e.store.GetBranchRule(ctx, ruleID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return &StoreError{Op: "get branch rule", Err: err}
	}
	if err := e.store.DeleteBranchRule(ctx, ruleID); err != nil {
		return &StoreError{Op: "delete branch rule", Err: err}
	}

	e.recordAudit(ctx, scope.tenantID, "repo.branch_rule.delete", actor, map[string]any{
		"repo_id": r.RepoID,
		"rule_id": ruleID.String(),
	})
	e.bus.PublishBranchRuleChanged(ctx, ruleID, nil)
	return nil
}

// ListBranchRules returns every branch rule of one repository.
func (e *Engine) ListBranchRules(ctx context.Context, repoID int64) ([]*branchrule.Rule, error) {
	scope := scopeFromContext(ctx)
	rules, err := e.store.ListBranchRulesForRepo(ctx, scope.tenantID, repoID)
	if err != nil {
		return nil, &StoreError{Op: "list branch rules", Err: err}
	}
	return rules, nil
}

// ListIPRanges returns every allowlist range bound to one user.
func (e *Engine) ListIPRanges(ctx context.Context, userID int64) ([]*iprange.Range, error) {
	scope := scopeFromContext(ctx)
	ranges, err := e.store.ListIPRangesForUser(ctx, scope.tenantID, userID)
	if err != nil {
		return nil, &StoreError{Op: "list ip ranges", Err: err}
	}
	return ranges, nil
}

// ListGrants returns every grant held on one resource, across subject
// kinds.
func (e *Engine) ListGrants(ctx context.Context, res ResourceRef) ([]*grant.Grant, error) {
	scope := scopeFromContext(ctx)
	grants, err := e.store.GrantsForResource(ctx, scope.tenantID, string(res.Kind), res.ID)
	if err != nil {
		return nil, &StoreError{Op: "list grants", Err: err}
	}
	return grants, nil
}

// ListGrantsExpanded returns the grants held on one resource with user
// group grants materialized into per-member rows. A member's direct
// grant wins over any group grant; a user reached through several
// groups gets the highest group level. Expanded rows are views, not
// stored grants, and carry no grant ID.
func (e *Engine) ListGrantsExpanded(ctx context.Context, res ResourceRef) ([]*grant.Grant, error) {
	grants, err := e.ListGrants(ctx, res)
	if err != nil {
		return nil, err
	}

	direct := make(map[int64]struct{})
	for _, g := range grants {
		if g.SubjectKind == string(SubjectUser) {
			direct[g.SubjectID] = struct{}{}
		}
	}

	out := make([]*grant.Grant, 0, len(grants))
	expanded := make(map[int64]*grant.Grant)
	for _, g := range grants {
		if g.SubjectKind != string(SubjectUserGroup) {
			out = append(out, g)
			continue
		}
		members, err := e.store.ListGroupMembers(ctx, g.SubjectID)
		if err != nil {
			return nil, &StoreError{Op: "list group members", Err: err}
		}
		for _, m := range members {
			if _, ok := direct[m.ID]; ok {
				continue
			}
			row := *g
			row.ID = id.Nil
			row.SubjectKind = string(SubjectUser)
			row.SubjectID = m.ID
			prev, ok := expanded[m.ID]
			if !ok || Level(row.Permission).Rank() > Level(prev.Permission).Rank() {
				expanded[m.ID] = &row
			}
		}
	}

	ids := make([]int64, 0, len(expanded))
	for uid := range expanded {
		ids = append(ids, uid)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, uid := range ids {
		out = append(out, expanded[uid])
	}
	return out, nil
}

// QueryAudit returns audit entries matching the filter together with
// the total match count for pagination.
func (e *Engine) QueryAudit(ctx context.Context, filter *auditlog.QueryFilter) ([]*auditlog.Entry, int64, error) {
	scope := scopeFromContext(ctx)
	if filter == nil {
		filter = &auditlog.QueryFilter{}
	}
	filter.TenantID = scope.tenantID

	entries, err := e.store.ListAuditEntries(ctx, filter)
	if err != nil {
		return nil, 0, &StoreError{Op: "list audit entries", Err: err}
	}
	total, err := e.store.CountAuditEntries(ctx, filter)
	if err != nil {
		return nil, 0, &StoreError{Op: "count audit entries", Err: err}
	}
	return entries, total, nil
}

func (e *Engine) recordAudit(ctx context.Context, tenantID, action string, actor ActorContext, data map[string]any) {
	if _, err := e.audit.Record(ctx, tenantID, action, actor, data, nil); err != nil {
		e.logger.Error("audit record failed",
			slog.String("action", action),
			slog.String("error", err.Error()),
		)
	}
}
