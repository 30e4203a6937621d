package bastion_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/xraph/bastion"
	"github.com/xraph/bastion/grant"
	"github.com/xraph/bastion/resource"
	"github.com/xraph/bastion/store/memory"
	"github.com/xraph/bastion/subject"
)

func newBroadcaster(s *memory.Store) *bastion.Broadcaster {
	return bastion.NewBroadcaster(s, s, s, bastion.NewResolver(s, s, s))
}

func actorFor(userID int64, username string) bastion.ActorContext {
	return bastion.ActorContext{UserID: &userID, Username: username}
}

func TestApplyChangesBasic(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	seedUser(t, s, 1, "admin", asAdmin)
	seedUser(t, s, 2, "alice")
	_ = s.UpsertUserGroup(ctx, &subject.UserGroup{ID: 10, TenantID: tenant, Name: "devs", IsActive: true})
	_ = s.AddGroupMember(ctx, 10, 2)
	_ = s.AddGroupMember(ctx, 10, 3)
	seedUser(t, s, 3, "bob")
	_ = s.UpsertRepository(ctx, &resource.Repository{ID: 100, TenantID: tenant, Name: "app"})

	b := newBroadcaster(s)
	set, err := b.ApplyChanges(ctx, tenant, actorFor(1, "admin"), &bastion.ChangeRequest{
		Resource: repoRef(100),
		Additions: []bastion.ChangeEntry{
			{SubjectKind: bastion.SubjectUser, SubjectID: 2, Permission: "repository.write"},
			{SubjectKind: bastion.SubjectUserGroup, SubjectID: 10, Permission: "repository.read"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(set.Added) != 2 {
		t.Fatalf("expected 2 added items, got %d", len(set.Added))
	}
	if set.Added[0].Name != "alice" || set.Added[1].Name != "devs" {
		t.Fatalf("expected item names resolved, got %+v", set.Added)
	}

	// Group members expand into the affected set.
	want := []int64{2, 3}
	if len(set.AffectedUserIDs) != len(want) {
		t.Fatalf("expected affected %v, got %v", want, set.AffectedUserIDs)
	}
	for i, id := range want {
		if set.AffectedUserIDs[i] != id {
			t.Fatalf("expected affected %v, got %v", want, set.AffectedUserIDs)
		}
	}

	g, err := s.GetGrant(ctx, tenant, grant.Key{SubjectKind: "user", SubjectID: 2, ResourceKind: "repository", ResourceID: 100})
	if err != nil {
		t.Fatal(err)
	}
	if g.Permission != "repository.write" {
		t.Fatalf("expected written grant, got %s", g.Permission)
	}
	if g.GrantedBy != "admin" {
		t.Fatalf("expected granted_by admin, got %s", g.GrantedBy)
	}
}

func TestApplyChangesRejectsUnknownSubject(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	seedUser(t, s, 1, "admin", asAdmin)
	_ = s.UpsertRepository(ctx, &resource.Repository{ID: 100, TenantID: tenant, Name: "app"})

	b := newBroadcaster(s)
	_, err := b.ApplyChanges(ctx, tenant, actorFor(1, "admin"), &bastion.ChangeRequest{
		Resource: repoRef(100),
		Additions: []bastion.ChangeEntry{
			{SubjectKind: bastion.SubjectUser, SubjectID: 42, Permission: "repository.read"},
		},
	})
	if !errors.Is(err, bastion.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	// Nothing was written.
	grants, _ := s.ListGrants(ctx, &grant.ListFilter{TenantID: tenant})
	if len(grants) != 0 {
		t.Fatalf("expected no grants after rejected request, got %d", len(grants))
	}
}

func TestApplyChangesRejectsBadLevel(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	seedUser(t, s, 1, "admin", asAdmin)
	seedUser(t, s, 2, "alice")
	_ = s.UpsertRepository(ctx, &resource.Repository{ID: 100, TenantID: tenant, Name: "app"})

	b := newBroadcaster(s)
	_, err := b.ApplyChanges(ctx, tenant, actorFor(1, "admin"), &bastion.ChangeRequest{
		Resource: repoRef(100),
		Additions: []bastion.ChangeEntry{
			// A repo group level on a repository is invalid.
			{SubjectKind: bastion.SubjectUser, SubjectID: 2, Permission: "group.read"},
		},
	})
	if !errors.Is(err, bastion.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestApplyChangesSelfRevocation(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	seedUser(t, s, 1, "owner")
	_ = s.UpsertRepository(ctx, &resource.Repository{ID: 100, TenantID: tenant, Name: "app"})
	seedGrant(t, s, bastion.SubjectUser, 1, bastion.ResourceRepository, 100, "repository.admin")

	b := newBroadcaster(s)

	// The owner deleting their own admin grant is rejected.
	_, err := b.ApplyChanges(ctx, tenant, actorFor(1, "owner"), &bastion.ChangeRequest{
		Resource: repoRef(100),
		Deletions: []bastion.ChangeEntry{
			{SubjectKind: bastion.SubjectUser, SubjectID: 1},
		},
	})
	if !errors.Is(err, bastion.ErrSelfRevocation) {
		t.Fatalf("expected self-revocation error, got %v", err)
	}

	// Downgrading themselves below admin is equally rejected.
	_, err = b.ApplyChanges(ctx, tenant, actorFor(1, "owner"), &bastion.ChangeRequest{
		Resource: repoRef(100),
		Updates: []bastion.ChangeEntry{
			{SubjectKind: bastion.SubjectUser, SubjectID: 1, Permission: "repository.read"},
		},
	})
	if !errors.Is(err, bastion.ErrSelfRevocation) {
		t.Fatalf("expected self-revocation error, got %v", err)
	}

	// An addition upserts the same pair, so a self-addition below
	// admin is rejected all the same.
	_, err = b.ApplyChanges(ctx, tenant, actorFor(1, "owner"), &bastion.ChangeRequest{
		Resource: repoRef(100),
		Additions: []bastion.ChangeEntry{
			{SubjectKind: bastion.SubjectUser, SubjectID: 1, Permission: "repository.read"},
		},
	})
	if !errors.Is(err, bastion.ErrSelfRevocation) {
		t.Fatalf("expected self-revocation error, got %v", err)
	}

	// The admin grant is untouched.
	g, err := s.GetGrant(ctx, tenant, grant.Key{SubjectKind: "user", SubjectID: 1, ResourceKind: "repository", ResourceID: 100})
	if err != nil {
		t.Fatal(err)
	}
	if g.Permission != "repository.admin" {
		t.Fatalf("expected grant unchanged, got %s", g.Permission)
	}
}

func TestApplyChangesSelfRevocationExemptions(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	seedUser(t, s, 1, "root", asAdmin)
	seedUser(t, s, 2, "alice")
	_ = s.UpsertRepository(ctx, &resource.Repository{ID: 100, TenantID: tenant, Name: "app"})
	seedGrant(t, s, bastion.SubjectUser, 1, bastion.ResourceRepository, 100, "repository.admin")
	seedGrant(t, s, bastion.SubjectUser, 2, bastion.ResourceRepository, 100, "repository.read")

	b := newBroadcaster(s)

	// A global admin may delete their own grant; admin does not come
	// from the grant being removed.
	if _, err := b.ApplyChanges(ctx, tenant, actorFor(1, "root"), &bastion.ChangeRequest{
		Resource: repoRef(100),
		Deletions: []bastion.ChangeEntry{
			{SubjectKind: bastion.SubjectUser, SubjectID: 1},
		},
	}); err != nil {
		t.Fatal(err)
	}

	// A non-admin actor whose current level is below admin may remove
	// their own grant.
	if _, err := b.ApplyChanges(ctx, tenant, actorFor(2, "alice"), &bastion.ChangeRequest{
		Resource: repoRef(100),
		Deletions: []bastion.ChangeEntry{
			{SubjectKind: bastion.SubjectUser, SubjectID: 2},
		},
	}); err != nil {
		t.Fatal(err)
	}

	// A nil actor (system job) is exempt.
	seedGrant(t, s, bastion.SubjectUser, 2, bastion.ResourceRepository, 100, "repository.admin")
	if _, err := b.ApplyChanges(ctx, tenant, bastion.ActorContext{Username: "system"}, &bastion.ChangeRequest{
		Resource: repoRef(100),
		Deletions: []bastion.ChangeEntry{
			{SubjectKind: bastion.SubjectUser, SubjectID: 2},
		},
	}); err != nil {
		t.Fatal(err)
	}
}

func TestApplyChangesSelfDeletionKeepsGroupAdmin(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	seedUser(t, s, 1, "owner")
	_ = s.UpsertUserGroup(ctx, &subject.UserGroup{ID: 10, TenantID: tenant, Name: "admins", IsActive: true})
	_ = s.AddGroupMember(ctx, 10, 1)
	_ = s.UpsertRepository(ctx, &resource.Repository{ID: 100, TenantID: tenant, Name: "app"})
	seedGrant(t, s, bastion.SubjectUserGroup, 10, bastion.ResourceRepository, 100, "repository.admin")
	seedGrant(t, s, bastion.SubjectUser, 1, bastion.ResourceRepository, 100, "repository.write")

	b := newBroadcaster(s)

	// The direct grant being removed is below admin; the group keeps
	// the actor at admin, so no lockout occurs.
	if _, err := b.ApplyChanges(ctx, tenant, actorFor(1, "owner"), &bastion.ChangeRequest{
		Resource: repoRef(100),
		Deletions: []bastion.ChangeEntry{
			{SubjectKind: bastion.SubjectUser, SubjectID: 1},
		},
	}); err != nil {
		t.Fatal(err)
	}

	r := bastion.NewResolver(s, s, s)
	level, err := r.EffectivePermission(ctx, tenant, userRef(1), repoRef(100))
	if err != nil {
		t.Fatal(err)
	}
	if level != bastion.RepoAdmin {
		t.Fatalf("expected group admin after deletion, got %s", level)
	}
}

func TestApplyChangesRecursiveCascade(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	seedUser(t, s, 1, "admin", asAdmin)
	seedUser(t, s, 2, "alice")

	top := int64(1)
	mid := int64(2)
	_ = s.UpsertRepoGroup(ctx, &resource.RepoGroup{ID: top, TenantID: tenant, Name: "top"})
	_ = s.UpsertRepoGroup(ctx, &resource.RepoGroup{ID: mid, TenantID: tenant, Name: "top/mid", ParentID: &top})
	_ = s.UpsertRepository(ctx, &resource.Repository{ID: 100, TenantID: tenant, Name: "top/app", RepoGroupID: &top})
	_ = s.UpsertRepository(ctx, &resource.Repository{ID: 101, TenantID: tenant, Name: "top/mid/lib", RepoGroupID: &mid})

	b := newBroadcaster(s)
	_, err := b.ApplyChanges(ctx, tenant, actorFor(1, "admin"), &bastion.ChangeRequest{
		Resource: bastion.ResourceRef{Kind: bastion.ResourceRepoGroup, ID: top},
		Additions: []bastion.ChangeEntry{
			{SubjectKind: bastion.SubjectUser, SubjectID: 2, Permission: "group.write"},
		},
		Recursive: bastion.RecursiveAll,
	})
	if err != nil {
		t.Fatal(err)
	}

	// The group itself, the subgroup, and both repos got the grant,
	// with the level translated onto each target's scale.
	for _, check := range []struct {
		kind bastion.ResourceKind
		id   int64
		perm string
	}{
		{bastion.ResourceRepoGroup, top, "group.write"},
		{bastion.ResourceRepoGroup, mid, "group.write"},
		{bastion.ResourceRepository, 100, "repository.write"},
		{bastion.ResourceRepository, 101, "repository.write"},
	} {
		g, err := s.GetGrant(ctx, tenant, grant.Key{
			SubjectKind:  "user",
			SubjectID:    2,
			ResourceKind: string(check.kind),
			ResourceID:   check.id,
		})
		if err != nil {
			t.Fatalf("missing cascaded grant on %s/%d: %v", check.kind, check.id, err)
		}
		if g.Permission != check.perm {
			t.Fatalf("expected %s on %s/%d, got %s", check.perm, check.kind, check.id, g.Permission)
		}
	}
}

// failingGrantStore rejects batches to exercise error propagation.
type failingGrantStore struct {
	*memory.Store
}

func (f *failingGrantStore) ApplyGrantBatch(context.Context, string, []grant.Op) error {
	return fmt.Errorf("disk full")
}

func TestApplyChangesBatchFailurePropagates(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	seedUser(t, s, 1, "admin", asAdmin)
	seedUser(t, s, 2, "alice")
	_ = s.UpsertRepository(ctx, &resource.Repository{ID: 100, TenantID: tenant, Name: "app"})

	b := bastion.NewBroadcaster(s, s, &failingGrantStore{s}, bastion.NewResolver(s, s, s))
	_, err := b.ApplyChanges(ctx, tenant, actorFor(1, "admin"), &bastion.ChangeRequest{
		Resource: repoRef(100),
		Additions: []bastion.ChangeEntry{
			{SubjectKind: bastion.SubjectUser, SubjectID: 2, Permission: "repository.read"},
		},
	})
	if !errors.Is(err, bastion.ErrStore) {
		t.Fatalf("expected store error, got %v", err)
	}
}
