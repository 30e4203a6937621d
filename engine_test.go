package bastion_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/xraph/bastion"
	"github.com/xraph/bastion/auditlog"
	"github.com/xraph/bastion/branchrule"
	"github.com/xraph/bastion/cache"
	"github.com/xraph/bastion/event"
	"github.com/xraph/bastion/grant"
	"github.com/xraph/bastion/resource"
	"github.com/xraph/bastion/store/memory"
	"github.com/xraph/bastion/subject"
)

// recordingSubscriber captures published permission change events.
type recordingSubscriber struct {
	mu       sync.Mutex
	changes  []event.PermissionChange
	written  []*grant.Grant
	revoked  []grant.Key
	shutdown bool
}

func (r *recordingSubscriber) Name() string { return "recorder" }

func (r *recordingSubscriber) OnPermissionsChanged(_ context.Context, ev event.PermissionChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, ev)
	return nil
}

func (r *recordingSubscriber) OnGrantWritten(_ context.Context, g *grant.Grant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.written = append(r.written, g)
	return nil
}

func (r *recordingSubscriber) OnGrantRevoked(_ context.Context, _ string, key grant.Key) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revoked = append(r.revoked, key)
	return nil
}

func (r *recordingSubscriber) OnShutdown(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shutdown = true
	return nil
}

func newTestEngine(t *testing.T, opts ...bastion.Option) (*bastion.Engine, *memory.Store) {
	t.Helper()
	s := memory.New()
	eng, err := bastion.NewEngine(append([]bastion.Option{bastion.WithStore(s)}, opts...)...)
	if err != nil {
		t.Fatal(err)
	}
	return eng, s
}

func tenantCtx() context.Context {
	return bastion.WithTenant(context.Background(), "app1", tenant)
}

func TestNewEngineRequiresStore(t *testing.T) {
	if _, err := bastion.NewEngine(); err == nil {
		t.Fatal("expected error when store is nil")
	}
}

func TestEngineEffectivePermission(t *testing.T) {
	eng, s := newTestEngine(t)
	ctx := tenantCtx()
	seedUser(t, s, 1, "alice")
	_ = s.UpsertRepository(ctx, &resource.Repository{ID: 100, TenantID: tenant, Name: "app"})
	seedGrant(t, s, bastion.SubjectUser, 1, bastion.ResourceRepository, 100, "repository.write")

	level, err := eng.EffectivePermission(ctx, userRef(1), repoRef(100))
	if err != nil {
		t.Fatal(err)
	}
	if level != bastion.RepoWrite {
		t.Fatalf("expected repository.write, got %s", level)
	}

	ok, err := eng.HasAtLeast(ctx, userRef(1), repoRef(100), bastion.RepoRead)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected write to satisfy read")
	}

	if err := eng.Enforce(ctx, userRef(1), repoRef(100), bastion.RepoAdmin); !errors.Is(err, bastion.ErrAccessDenied) {
		t.Fatalf("expected access denied, got %v", err)
	}
}

func TestEngineApplyChangesInvalidatesCache(t *testing.T) {
	c := cache.NewMemory()
	eng, s := newTestEngine(t, bastion.WithCache(c))
	ctx := tenantCtx()
	seedUser(t, s, 1, "admin", asAdmin)
	seedUser(t, s, 2, "alice", noInherit)
	_ = s.UpsertRepository(ctx, &resource.Repository{ID: 100, TenantID: tenant, Name: "app"})

	// Prime the cache with the current level.
	level, err := eng.EffectivePermission(ctx, userRef(2), repoRef(100))
	if err != nil {
		t.Fatal(err)
	}
	if level != bastion.RepoNone {
		t.Fatalf("expected none before grant, got %s", level)
	}

	uid := int64(1)
	_, err = eng.ApplyPermissionChanges(ctx, bastion.ActorContext{UserID: &uid, Username: "admin"}, &bastion.ChangeRequest{
		Resource: repoRef(100),
		Additions: []bastion.ChangeEntry{
			{SubjectKind: bastion.SubjectUser, SubjectID: 2, Permission: "repository.write"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	// The stale cached none must be gone.
	level, err = eng.EffectivePermission(ctx, userRef(2), repoRef(100))
	if err != nil {
		t.Fatal(err)
	}
	if level != bastion.RepoWrite {
		t.Fatalf("expected fresh repository.write after invalidation, got %s", level)
	}
}

func TestEngineApplyChangesPublishesAndAudits(t *testing.T) {
	rec := &recordingSubscriber{}
	eng, s := newTestEngine(t, bastion.WithSubscriber(rec))
	ctx := tenantCtx()
	seedUser(t, s, 1, "admin", asAdmin)
	seedUser(t, s, 2, "alice")
	_ = s.UpsertRepository(ctx, &resource.Repository{ID: 100, TenantID: tenant, Name: "app"})

	uid := int64(1)
	_, err := eng.ApplyPermissionChanges(ctx, bastion.ActorContext{UserID: &uid, Username: "admin"}, &bastion.ChangeRequest{
		Resource: repoRef(100),
		Additions: []bastion.ChangeEntry{
			{SubjectKind: bastion.SubjectUser, SubjectID: 2, Permission: "repository.read"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(rec.changes) != 1 {
		t.Fatalf("expected 1 published change, got %d", len(rec.changes))
	}
	ev := rec.changes[0]
	if ev.TenantID != tenant || ev.ResourceKind != "repository" || ev.ResourceID != 100 {
		t.Fatalf("unexpected event %+v", ev)
	}
	if len(ev.AffectedUserIDs) != 1 || ev.AffectedUserIDs[0] != 2 {
		t.Fatalf("expected affected [2], got %v", ev.AffectedUserIDs)
	}

	// The applied upsert also publishes as a per-grant write.
	if len(rec.written) != 1 {
		t.Fatalf("expected 1 grant write event, got %d", len(rec.written))
	}
	w := rec.written[0]
	if w.SubjectID != 2 || w.ResourceID != 100 || w.Permission != "repository.read" {
		t.Fatalf("unexpected grant write event %+v", w)
	}

	// Revoking publishes the pair key.
	_, err = eng.ApplyPermissionChanges(ctx, bastion.ActorContext{UserID: &uid, Username: "admin"}, &bastion.ChangeRequest{
		Resource: repoRef(100),
		Deletions: []bastion.ChangeEntry{
			{SubjectKind: bastion.SubjectUser, SubjectID: 2},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(rec.revoked) != 1 {
		t.Fatalf("expected 1 grant revoke event, got %d", len(rec.revoked))
	}
	if rec.revoked[0].SubjectID != 2 || rec.revoked[0].ResourceID != 100 {
		t.Fatalf("unexpected grant revoke event %+v", rec.revoked[0])
	}

	entries, total, err := eng.QueryAudit(ctx, &auditlog.QueryFilter{Action: "repo.edit.permissions"})
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 || len(entries) != 2 {
		t.Fatalf("expected 2 audit entries, got %d", total)
	}
	if entries[0].RepositoryName != "app" {
		t.Fatalf("expected repository context on audit entry, got %+v", entries[0])
	}
}

func TestEngineListGrantsExpanded(t *testing.T) {
	eng, s := newTestEngine(t)
	ctx := tenantCtx()
	seedUser(t, s, 1, "alice")
	seedUser(t, s, 2, "bob")
	seedUser(t, s, 3, "carol")
	_ = s.UpsertUserGroup(ctx, &subject.UserGroup{ID: 10, TenantID: tenant, Name: "devs", IsActive: true})
	_ = s.UpsertUserGroup(ctx, &subject.UserGroup{ID: 11, TenantID: tenant, Name: "ops", IsActive: true})
	_ = s.AddGroupMember(ctx, 10, 1)
	_ = s.AddGroupMember(ctx, 10, 2)
	_ = s.AddGroupMember(ctx, 11, 2)
	_ = s.UpsertRepository(ctx, &resource.Repository{ID: 100, TenantID: tenant, Name: "app"})
	seedGrant(t, s, bastion.SubjectUser, 1, bastion.ResourceRepository, 100, "repository.admin")
	seedGrant(t, s, bastion.SubjectUserGroup, 10, bastion.ResourceRepository, 100, "repository.read")
	seedGrant(t, s, bastion.SubjectUserGroup, 11, bastion.ResourceRepository, 100, "repository.write")

	grants, err := eng.ListGrantsExpanded(ctx, repoRef(100))
	if err != nil {
		t.Fatal(err)
	}

	byUser := map[int64]string{}
	for _, g := range grants {
		if g.SubjectKind != string(bastion.SubjectUser) {
			t.Fatalf("expected only user rows after expansion, got %s", g.SubjectKind)
		}
		byUser[g.SubjectID] = g.Permission
	}

	// alice keeps her direct admin over the group read.
	if byUser[1] != "repository.admin" {
		t.Fatalf("expected direct grant to win, got %s", byUser[1])
	}
	// bob gets the highest level across his groups.
	if byUser[2] != "repository.write" {
		t.Fatalf("expected max group level, got %s", byUser[2])
	}
	// carol is in no group and holds nothing.
	if _, ok := byUser[3]; ok {
		t.Fatal("expected no row for a non-member")
	}
}

func TestEngineIPRangeLifecycle(t *testing.T) {
	eng, s := newTestEngine(t)
	ctx := tenantCtx()
	seedUser(t, s, 1, "admin", asAdmin)
	seedUser(t, s, 2, "alice", noInherit)

	uid := int64(1)
	actor := bastion.ActorContext{UserID: &uid, Username: "admin"}

	// Malformed specs are rejected at grant time.
	if _, err := eng.AddIPRange(ctx, actor, 2, "not-a-range", ""); !errors.Is(err, bastion.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	r, err := eng.AddIPRange(ctx, actor, 2, "127.0.0.0/24", "office")
	if err != nil {
		t.Fatal(err)
	}

	ok, err := eng.IsIPAllowed(ctx, 2, "127.0.0.17")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected in-range address allowed")
	}
	ok, err = eng.IsIPAllowed(ctx, 2, "10.0.0.1")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected out-of-range address rejected")
	}

	if err := eng.RemoveIPRange(ctx, actor, r.ID); err != nil {
		t.Fatal(err)
	}
	ok, err = eng.IsIPAllowed(ctx, 2, "10.0.0.1")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected unrestricted after removal")
	}

	// Both mutations left audit entries.
	for _, action := range []string{"user.edit.ip.add", "user.edit.ip.delete"} {
		_, total, err := eng.QueryAudit(ctx, &auditlog.QueryFilter{Action: action})
		if err != nil {
			t.Fatal(err)
		}
		if total != 1 {
			t.Fatalf("expected 1 %s entry, got %d", action, total)
		}
	}
}

func TestEngineBranchRuleLifecycle(t *testing.T) {
	eng, s := newTestEngine(t)
	ctx := tenantCtx()
	seedUser(t, s, 1, "admin", asAdmin)
	seedUser(t, s, 2, "alice")

	uid := int64(1)
	actor := bastion.ActorContext{UserID: &uid, Username: "admin"}

	r, err := eng.CreateBranchRule(ctx, actor, &branchrule.Rule{
		RepoID:      100,
		SubjectKind: string(bastion.SubjectUser),
		SubjectID:   2,
		Pattern:     "release/*",
		Permission:  "branch.push",
	})
	if err != nil {
		t.Fatal(err)
	}

	res, err := eng.CheckBranch(ctx, 2, 100, "release/1.0", true)
	if err != nil {
		t.Fatal(err)
	}
	if res.Decision != bastion.BranchReject {
		t.Fatalf("expected forced push rejected, got %s", res.Decision)
	}

	r.Permission = "branch.push_force"
	if err := eng.UpdateBranchRule(ctx, actor, r); err != nil {
		t.Fatal(err)
	}
	res, err = eng.CheckBranch(ctx, 2, 100, "release/1.0", true)
	if err != nil {
		t.Fatal(err)
	}
	if res.Decision != bastion.BranchAllowForce {
		t.Fatalf("expected force allowed after update, got %s", res.Decision)
	}

	if err := eng.DeleteBranchRule(ctx, actor, r.ID); err != nil {
		t.Fatal(err)
	}
	res, err = eng.CheckBranch(ctx, 2, 100, "release/1.0", true)
	if err != nil {
		t.Fatal(err)
	}
	if res.Decision != bastion.BranchAllow {
		t.Fatalf("expected allow with no rules, got %s", res.Decision)
	}

	// Bad levels are rejected up front.
	if _, err := eng.CreateBranchRule(ctx, actor, &branchrule.Rule{
		RepoID:      100,
		SubjectKind: string(bastion.SubjectUser),
		SubjectID:   2,
		Pattern:     "*",
		Permission:  "repository.read",
	}); !errors.Is(err, bastion.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestEngineFeatureToggles(t *testing.T) {
	off := false
	cfg := bastion.DefaultConfig()
	cfg.EnableBranchRules = &off
	cfg.EnableIPAllowlist = &off

	eng, s := newTestEngine(t, bastion.WithConfig(cfg))
	ctx := tenantCtx()
	seedUser(t, s, 1, "alice", noInherit)

	// Disabled branch rules allow everything, even forced pushes.
	res, err := eng.CheckBranch(ctx, 1, 100, "main", true)
	if err != nil {
		t.Fatal(err)
	}
	if res.Decision != bastion.BranchAllowForce {
		t.Fatalf("expected allow with rules disabled, got %s", res.Decision)
	}

	// Disabled allowlist admits any address without parsing it.
	ok, err := eng.IsIPAllowed(ctx, 1, "not-an-ip")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected allow with allowlist disabled")
	}
}

func TestEngineStopNotifiesSubscribers(t *testing.T) {
	rec := &recordingSubscriber{}
	eng, _ := newTestEngine(t, bastion.WithSubscriber(rec))

	if err := eng.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !rec.shutdown {
		t.Fatal("expected shutdown notification")
	}
}
