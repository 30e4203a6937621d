package bastion_test

import (
	"context"
	"errors"
	"testing"

	"github.com/xraph/bastion"
	"github.com/xraph/bastion/branchrule"
	"github.com/xraph/bastion/id"
	"github.com/xraph/bastion/store/memory"
	"github.com/xraph/bastion/subject"
)

func seedBranchRule(t *testing.T, s *memory.Store, repoID int64, subjKind string, subjID int64, pattern, perm string) {
	t.Helper()
	err := s.CreateBranchRule(context.Background(), &branchrule.Rule{
		ID:          id.NewBranchRuleID(),
		TenantID:    tenant,
		RepoID:      repoID,
		SubjectKind: subjKind,
		SubjectID:   subjID,
		Pattern:     pattern,
		Permission:  perm,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestBranchNoRulesAllows(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	seedUser(t, s, 1, "alice")

	e := bastion.NewBranchRuleEngine(s, s)
	res, err := e.PermissionForBranch(ctx, tenant, 1, 100, "main", false)
	if err != nil {
		t.Fatal(err)
	}
	if res.Decision != bastion.BranchAllow {
		t.Fatalf("expected allow with no rules, got %s", res.Decision)
	}
}

func TestBranchUnknownUser(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	e := bastion.NewBranchRuleEngine(s, s)
	_, err := e.PermissionForBranch(ctx, tenant, 99, 100, "main", false)
	if !errors.Is(err, bastion.ErrValidation) {
		t.Fatalf("expected validation error for unknown user, got %v", err)
	}
}

func TestBranchUnmatchedPatternAllows(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	seedUser(t, s, 1, "alice")
	seedBranchRule(t, s, 100, "", 0, "release/*", "branch.none")

	e := bastion.NewBranchRuleEngine(s, s)
	res, err := e.PermissionForBranch(ctx, tenant, 1, 100, "main", false)
	if err != nil {
		t.Fatal(err)
	}
	if res.Decision != bastion.BranchAllow {
		t.Fatalf("expected allow on unmatched branch, got %s", res.Decision)
	}
}

func TestBranchPushRuleRejectsForce(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	seedUser(t, s, 1, "alice")
	seedBranchRule(t, s, 100, "", 0, "release/*", "branch.push")

	e := bastion.NewBranchRuleEngine(s, s)

	// Plain push to a matching branch is allowed.
	res, err := e.PermissionForBranch(ctx, tenant, 1, 100, "release/1.0", false)
	if err != nil {
		t.Fatal(err)
	}
	if res.Decision != bastion.BranchAllow {
		t.Fatalf("expected allow for plain push, got %s", res.Decision)
	}

	// Forced push to the same branch is rejected.
	res, err = e.PermissionForBranch(ctx, tenant, 1, 100, "release/1.0", true)
	if err != nil {
		t.Fatal(err)
	}
	if res.Decision != bastion.BranchReject {
		t.Fatalf("expected reject for forced push, got %s", res.Decision)
	}
	if res.Reason != bastion.ReasonForcePushForbidden {
		t.Fatalf("expected %q, got %q", bastion.ReasonForcePushForbidden, res.Reason)
	}
	if res.MatchedPattern != "release/*" {
		t.Fatalf("expected matched pattern release/*, got %q", res.MatchedPattern)
	}
}

func TestBranchNoneRejectsAll(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	seedUser(t, s, 1, "alice")
	seedBranchRule(t, s, 100, "", 0, "main", "branch.none")

	e := bastion.NewBranchRuleEngine(s, s)
	res, err := e.PermissionForBranch(ctx, tenant, 1, 100, "main", false)
	if err != nil {
		t.Fatal(err)
	}
	if res.Decision != bastion.BranchReject {
		t.Fatalf("expected reject, got %s", res.Decision)
	}
	if res.Reason != bastion.ReasonPushForbidden {
		t.Fatalf("expected %q, got %q", bastion.ReasonPushForbidden, res.Reason)
	}
}

func TestBranchSubjectRulesCombineMax(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	seedUser(t, s, 1, "alice")
	_ = s.UpsertUserGroup(ctx, &subject.UserGroup{ID: 10, TenantID: tenant, Name: "releasers", IsActive: true})
	_ = s.AddGroupMember(ctx, 10, 1)

	// Everyone is locked out, but alice's group may push.
	seedBranchRule(t, s, 100, "", 0, "release/*", "branch.none")
	seedBranchRule(t, s, 100, "user_group", 10, "release/*", "branch.push")

	e := bastion.NewBranchRuleEngine(s, s)
	res, err := e.PermissionForBranch(ctx, tenant, 1, 100, "release/1.0", false)
	if err != nil {
		t.Fatal(err)
	}
	if res.Decision != bastion.BranchAllow {
		t.Fatalf("expected group rule to lift the lockout, got %s", res.Decision)
	}

	// A user outside the group stays locked out.
	seedUser(t, s, 2, "bob")
	res, err = e.PermissionForBranch(ctx, tenant, 2, 100, "release/1.0", false)
	if err != nil {
		t.Fatal(err)
	}
	if res.Decision != bastion.BranchReject {
		t.Fatalf("expected reject for outsider, got %s", res.Decision)
	}
}

func TestBranchFailClosedAcrossPatterns(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	seedUser(t, s, 1, "alice")

	// Two patterns match "release/1.0": the specific one allows, the
	// broad one rejects. Any rejecting matched pattern rejects.
	seedBranchRule(t, s, 100, "user", 1, "release/1.0", "branch.push")
	seedBranchRule(t, s, 100, "", 0, "*", "branch.none")

	e := bastion.NewBranchRuleEngine(s, s)
	res, err := e.PermissionForBranch(ctx, tenant, 1, 100, "release/1.0", false)
	if err != nil {
		t.Fatal(err)
	}
	if res.Decision != bastion.BranchReject {
		t.Fatalf("expected fail-closed reject, got %s", res.Decision)
	}
	if res.MatchedPattern != "*" {
		t.Fatalf("expected rejecting pattern reported, got %q", res.MatchedPattern)
	}
}

func TestBranchAdminBypasses(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	seedUser(t, s, 1, "root", asAdmin)
	seedBranchRule(t, s, 100, "", 0, "*", "branch.none")

	e := bastion.NewBranchRuleEngine(s, s)
	res, err := e.PermissionForBranch(ctx, tenant, 1, 100, "main", true)
	if err != nil {
		t.Fatal(err)
	}
	if res.Decision != bastion.BranchAllowForce {
		t.Fatalf("expected admin force allow, got %s", res.Decision)
	}
}

func TestBranchPushForceAllows(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	seedUser(t, s, 1, "alice")
	seedBranchRule(t, s, 100, "user", 1, "wip/*", "branch.push_force")

	e := bastion.NewBranchRuleEngine(s, s)
	res, err := e.PermissionForBranch(ctx, tenant, 1, 100, "wip/alice", true)
	if err != nil {
		t.Fatal(err)
	}
	if res.Decision != bastion.BranchAllowForce {
		t.Fatalf("expected force allow, got %s", res.Decision)
	}
}
