package bastion_test

import (
	"context"
	"errors"
	"testing"

	"github.com/xraph/bastion"
	"github.com/xraph/bastion/grant"
	"github.com/xraph/bastion/resource"
	"github.com/xraph/bastion/store/memory"
	"github.com/xraph/bastion/subject"
)

const tenant = "t1"

// seedGrant writes a grant directly into the store, bypassing the
// broadcaster, for fixture setup.
func seedGrant(t *testing.T, s *memory.Store, subjKind bastion.SubjectKind, subjID int64, resKind bastion.ResourceKind, resID int64, perm string) {
	t.Helper()
	err := s.ApplyGrantBatch(context.Background(), tenant, []grant.Op{{
		Kind: grant.OpUpsert,
		Key: grant.Key{
			SubjectKind:  string(subjKind),
			SubjectID:    subjID,
			ResourceKind: string(resKind),
			ResourceID:   resID,
		},
		Permission: perm,
	}})
	if err != nil {
		t.Fatal(err)
	}
}

func seedUser(t *testing.T, s *memory.Store, id int64, username string, opts ...func(*subject.User)) {
	t.Helper()
	u := &subject.User{ID: id, TenantID: tenant, Username: username, IsActive: true, InheritDefaultPermissions: true}
	for _, opt := range opts {
		opt(u)
	}
	if err := s.UpsertUser(context.Background(), u); err != nil {
		t.Fatal(err)
	}
}

func asAdmin(u *subject.User)   { u.IsAdmin = true }
func noInherit(u *subject.User) { u.InheritDefaultPermissions = false }

func repoRef(id int64) bastion.ResourceRef {
	return bastion.ResourceRef{Kind: bastion.ResourceRepository, ID: id}
}

func userRef(id int64) bastion.SubjectRef {
	return bastion.SubjectRef{Kind: bastion.SubjectUser, ID: id}
}

func TestResolveNoGrantIsNone(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	seedUser(t, s, 1, "alice")
	_ = s.UpsertRepository(ctx, &resource.Repository{ID: 100, TenantID: tenant, Name: "app"})

	r := bastion.NewResolver(s, s, s)
	level, err := r.EffectivePermission(ctx, tenant, userRef(1), repoRef(100))
	if err != nil {
		t.Fatal(err)
	}
	if level != bastion.RepoNone {
		t.Fatalf("expected repository.none, got %s", level)
	}
}

func TestResolveAdminBypassesGrants(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	seedUser(t, s, 1, "root", asAdmin)
	_ = s.UpsertRepository(ctx, &resource.Repository{ID: 100, TenantID: tenant, Name: "app"})
	// An explicit weaker grant must not matter.
	seedGrant(t, s, bastion.SubjectUser, 1, bastion.ResourceRepository, 100, "repository.read")

	r := bastion.NewResolver(s, s, s)
	level, err := r.EffectivePermission(ctx, tenant, userRef(1), repoRef(100))
	if err != nil {
		t.Fatal(err)
	}
	if level != bastion.RepoAdmin {
		t.Fatalf("expected repository.admin for global admin, got %s", level)
	}
}

func TestResolveDirectBeatsGroup(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	seedUser(t, s, 1, "alice")
	_ = s.UpsertUserGroup(ctx, &subject.UserGroup{ID: 10, TenantID: tenant, Name: "devs", IsActive: true})
	_ = s.AddGroupMember(ctx, 10, 1)
	_ = s.UpsertRepository(ctx, &resource.Repository{ID: 100, TenantID: tenant, Name: "app"})

	// Group holds admin, direct grant only read. Direct wins.
	seedGrant(t, s, bastion.SubjectUserGroup, 10, bastion.ResourceRepository, 100, "repository.admin")
	seedGrant(t, s, bastion.SubjectUser, 1, bastion.ResourceRepository, 100, "repository.read")

	r := bastion.NewResolver(s, s, s)
	level, err := r.EffectivePermission(ctx, tenant, userRef(1), repoRef(100))
	if err != nil {
		t.Fatal(err)
	}
	if level != bastion.RepoRead {
		t.Fatalf("expected direct grant to win, got %s", level)
	}
}

func TestResolveGroupsCombineMax(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	seedUser(t, s, 1, "alice")
	_ = s.UpsertUserGroup(ctx, &subject.UserGroup{ID: 10, TenantID: tenant, Name: "readers", IsActive: true})
	_ = s.UpsertUserGroup(ctx, &subject.UserGroup{ID: 11, TenantID: tenant, Name: "writers", IsActive: true})
	_ = s.AddGroupMember(ctx, 10, 1)
	_ = s.AddGroupMember(ctx, 11, 1)
	_ = s.UpsertRepository(ctx, &resource.Repository{ID: 100, TenantID: tenant, Name: "app"})

	seedGrant(t, s, bastion.SubjectUserGroup, 10, bastion.ResourceRepository, 100, "repository.read")
	seedGrant(t, s, bastion.SubjectUserGroup, 11, bastion.ResourceRepository, 100, "repository.write")

	r := bastion.NewResolver(s, s, s)
	level, err := r.EffectivePermission(ctx, tenant, userRef(1), repoRef(100))
	if err != nil {
		t.Fatal(err)
	}
	if level != bastion.RepoWrite {
		t.Fatalf("expected MAX of group grants, got %s", level)
	}
}

func TestResolveInactiveGroupIgnored(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	seedUser(t, s, 1, "alice")
	_ = s.UpsertUserGroup(ctx, &subject.UserGroup{ID: 10, TenantID: tenant, Name: "old-team", IsActive: false})
	_ = s.AddGroupMember(ctx, 10, 1)
	_ = s.UpsertRepository(ctx, &resource.Repository{ID: 100, TenantID: tenant, Name: "app"})
	seedGrant(t, s, bastion.SubjectUserGroup, 10, bastion.ResourceRepository, 100, "repository.admin")

	r := bastion.NewResolver(s, s, s)
	level, err := r.EffectivePermission(ctx, tenant, userRef(1), repoRef(100))
	if err != nil {
		t.Fatal(err)
	}
	if level != bastion.RepoNone {
		t.Fatalf("expected inactive group grant ignored, got %s", level)
	}
}

func TestResolveParentChainNearestWins(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	seedUser(t, s, 1, "alice")

	top := int64(1)
	mid := int64(2)
	_ = s.UpsertRepoGroup(ctx, &resource.RepoGroup{ID: top, TenantID: tenant, Name: "top"})
	_ = s.UpsertRepoGroup(ctx, &resource.RepoGroup{ID: mid, TenantID: tenant, Name: "top/mid", ParentID: &top})
	_ = s.UpsertRepository(ctx, &resource.Repository{ID: 100, TenantID: tenant, Name: "top/mid/app", RepoGroupID: &mid})

	// Grandparent grants admin, parent grants read. The nearest
	// defined level wins; levels never combine across chain links.
	seedGrant(t, s, bastion.SubjectUser, 1, bastion.ResourceRepoGroup, top, "group.admin")
	seedGrant(t, s, bastion.SubjectUser, 1, bastion.ResourceRepoGroup, mid, "group.read")

	r := bastion.NewResolver(s, s, s)
	level, err := r.EffectivePermission(ctx, tenant, userRef(1), repoRef(100))
	if err != nil {
		t.Fatal(err)
	}
	if level != bastion.RepoRead {
		t.Fatalf("expected nearest ancestor level repository.read, got %s", level)
	}
}

func TestResolveDefaultUserFallback(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	seedUser(t, s, 1, subject.DefaultUsername)
	seedUser(t, s, 2, "alice")
	seedUser(t, s, 3, "bob", noInherit)
	_ = s.UpsertRepository(ctx, &resource.Repository{ID: 100, TenantID: tenant, Name: "app"})
	seedGrant(t, s, bastion.SubjectUser, 1, bastion.ResourceRepository, 100, "repository.read")

	r := bastion.NewResolver(s, s, s)

	// alice inherits the default baseline.
	level, err := r.EffectivePermission(ctx, tenant, userRef(2), repoRef(100))
	if err != nil {
		t.Fatal(err)
	}
	if level != bastion.RepoRead {
		t.Fatalf("expected default fallback repository.read, got %s", level)
	}

	// bob opted out of inheritance.
	level, err = r.EffectivePermission(ctx, tenant, userRef(3), repoRef(100))
	if err != nil {
		t.Fatal(err)
	}
	if level != bastion.RepoNone {
		t.Fatalf("expected none without inheritance, got %s", level)
	}
}

func TestResolvePrivateRepoBlocksInheritedDefault(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	seedUser(t, s, 1, subject.DefaultUsername)
	seedUser(t, s, 2, "alice")

	top := int64(1)
	_ = s.UpsertRepoGroup(ctx, &resource.RepoGroup{ID: top, TenantID: tenant, Name: "top"})
	_ = s.UpsertRepository(ctx, &resource.Repository{ID: 100, TenantID: tenant, Name: "top/secret", RepoGroupID: &top, Private: true})
	_ = s.UpsertRepository(ctx, &resource.Repository{ID: 101, TenantID: tenant, Name: "top/public", RepoGroupID: &top})

	// The default user holds read on the containing group only.
	seedGrant(t, s, bastion.SubjectUser, 1, bastion.ResourceRepoGroup, top, "group.read")

	r := bastion.NewResolver(s, s, s)

	// The public sibling inherits the baseline through the chain.
	level, err := r.EffectivePermission(ctx, tenant, userRef(2), repoRef(101))
	if err != nil {
		t.Fatal(err)
	}
	if level != bastion.RepoRead {
		t.Fatalf("expected inherited baseline on public repo, got %s", level)
	}

	// The private repo only honors a baseline grant on itself.
	level, err = r.EffectivePermission(ctx, tenant, userRef(2), repoRef(100))
	if err != nil {
		t.Fatal(err)
	}
	if level != bastion.RepoNone {
		t.Fatalf("expected private repo to block inherited baseline, got %s", level)
	}

	// An explicit baseline grant on the private repo itself applies.
	seedGrant(t, s, bastion.SubjectUser, 1, bastion.ResourceRepository, 100, "repository.read")
	level, err = r.EffectivePermission(ctx, tenant, userRef(2), repoRef(100))
	if err != nil {
		t.Fatal(err)
	}
	if level != bastion.RepoRead {
		t.Fatalf("expected explicit private baseline to apply, got %s", level)
	}
}

func TestResolvePrivateRepoBlocksAnonymousChain(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	seedUser(t, s, 1, subject.DefaultUsername)

	top := int64(1)
	_ = s.UpsertRepoGroup(ctx, &resource.RepoGroup{ID: top, TenantID: tenant, Name: "top"})
	_ = s.UpsertRepository(ctx, &resource.Repository{ID: 100, TenantID: tenant, Name: "top/secret", RepoGroupID: &top, Private: true})
	seedGrant(t, s, bastion.SubjectUser, 1, bastion.ResourceRepoGroup, top, "group.read")

	r := bastion.NewResolver(s, s, s)

	// Resolving the default user directly is the anonymous-access
	// path; its grant on the ancestor group must not reach the
	// private repo.
	level, err := r.EffectivePermission(ctx, tenant, userRef(1), repoRef(100))
	if err != nil {
		t.Fatal(err)
	}
	if level != bastion.RepoNone {
		t.Fatalf("expected repository.none for anonymous access, got %s", level)
	}

	// A grant on the private repo itself still applies.
	seedGrant(t, s, bastion.SubjectUser, 1, bastion.ResourceRepository, 100, "repository.read")
	level, err = r.EffectivePermission(ctx, tenant, userRef(1), repoRef(100))
	if err != nil {
		t.Fatal(err)
	}
	if level != bastion.RepoRead {
		t.Fatalf("expected explicit grant on private repo, got %s", level)
	}
}

func TestResolveGroupMembershipRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	seedUser(t, s, 1, "alice")
	_ = s.UpsertUserGroup(ctx, &subject.UserGroup{ID: 10, TenantID: tenant, Name: "devs", IsActive: true})
	_ = s.UpsertRepository(ctx, &resource.Repository{ID: 100, TenantID: tenant, Name: "app"})
	seedGrant(t, s, bastion.SubjectUserGroup, 10, bastion.ResourceRepository, 100, "repository.write")

	r := bastion.NewResolver(s, s, s)

	// Not yet a member.
	level, err := r.EffectivePermission(ctx, tenant, userRef(1), repoRef(100))
	if err != nil {
		t.Fatal(err)
	}
	if level != bastion.RepoNone {
		t.Fatalf("expected none before joining, got %s", level)
	}

	if err := s.AddGroupMember(ctx, 10, 1); err != nil {
		t.Fatal(err)
	}
	level, err = r.EffectivePermission(ctx, tenant, userRef(1), repoRef(100))
	if err != nil {
		t.Fatal(err)
	}
	if level != bastion.RepoWrite {
		t.Fatalf("expected group grant after joining, got %s", level)
	}

	if err := s.RemoveGroupMember(ctx, 10, 1); err != nil {
		t.Fatal(err)
	}
	level, err = r.EffectivePermission(ctx, tenant, userRef(1), repoRef(100))
	if err != nil {
		t.Fatal(err)
	}
	if level != bastion.RepoNone {
		t.Fatalf("expected none after leaving, got %s", level)
	}
}

func TestResolveGroupSubjectDirectOnly(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	_ = s.UpsertUserGroup(ctx, &subject.UserGroup{ID: 10, TenantID: tenant, Name: "devs", IsActive: true})
	_ = s.UpsertRepository(ctx, &resource.Repository{ID: 100, TenantID: tenant, Name: "app"})
	seedGrant(t, s, bastion.SubjectUserGroup, 10, bastion.ResourceRepository, 100, "repository.write")

	r := bastion.NewResolver(s, s, s)
	level, err := r.EffectivePermission(ctx, tenant, bastion.SubjectRef{Kind: bastion.SubjectUserGroup, ID: 10}, repoRef(100))
	if err != nil {
		t.Fatal(err)
	}
	if level != bastion.RepoWrite {
		t.Fatalf("expected group's own grant, got %s", level)
	}
}

func TestResolveUnknownSubject(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	_ = s.UpsertRepository(ctx, &resource.Repository{ID: 100, TenantID: tenant, Name: "app"})

	r := bastion.NewResolver(s, s, s)
	_, err := r.EffectivePermission(ctx, tenant, userRef(42), repoRef(100))
	if !errors.Is(err, bastion.ErrValidation) {
		t.Fatalf("expected validation error for unknown user, got %v", err)
	}

	var verr *bastion.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
}

func TestResolveCrossScaleTranslation(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	seedUser(t, s, 1, "alice")

	top := int64(1)
	_ = s.UpsertRepoGroup(ctx, &resource.RepoGroup{ID: top, TenantID: tenant, Name: "top"})
	_ = s.UpsertRepository(ctx, &resource.Repository{ID: 100, TenantID: tenant, Name: "top/app", RepoGroupID: &top})
	seedGrant(t, s, bastion.SubjectUser, 1, bastion.ResourceRepoGroup, top, "group.write")

	r := bastion.NewResolver(s, s, s)
	level, err := r.EffectivePermission(ctx, tenant, userRef(1), repoRef(100))
	if err != nil {
		t.Fatal(err)
	}
	if level != bastion.RepoWrite {
		t.Fatalf("expected group.write to read as repository.write, got %s", level)
	}
}
