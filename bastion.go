// Package bastion provides permission resolution and audit logging for
// source-control hosting platforms.
//
// Bastion resolves effective permissions for users and user groups over
// repositories, repository groups, and user groups, with nested group
// inheritance, branch-level push rules, IP allowlisting, and a default-user
// baseline for anonymous access. Every privileged mutation flows through an
// audit logger and an in-process event bus so per-user permission caches can
// be invalidated. It is tenant-scoped by default via forge.Scope and
// integrates with the Forge ecosystem.
//
//	eng, err := bastion.NewEngine(
//	    bastion.WithStore(memStore),
//	)
//	level, err := eng.EffectivePermission(ctx,
//	    bastion.SubjectRef{Kind: bastion.SubjectUser, ID: 42},
//	    bastion.ResourceRef{Kind: bastion.ResourceRepository, ID: 7},
//	)
package bastion

import "github.com/xraph/bastion/event"

// SubjectKind identifies the type of actor whose permissions are evaluated.
type SubjectKind string

const (
	// SubjectUser represents an individual user account.
	SubjectUser SubjectKind = "user"

	// SubjectUserGroup represents a user group; grants to a group apply
	// to every member.
	SubjectUserGroup SubjectKind = "user_group"
)

// ResourceKind identifies the type of protected resource.
type ResourceKind string

const (
	// ResourceRepository is a single repository.
	ResourceRepository ResourceKind = "repository"

	// ResourceRepoGroup is a repository group, nestable via parent groups.
	ResourceRepoGroup ResourceKind = "repo_group"

	// ResourceUserGroup is a user group treated as a protected object
	// (its membership and admin rights are themselves permissioned).
	ResourceUserGroup ResourceKind = "user_group"
)

// SubjectRef identifies a subject by kind and host-application ID.
type SubjectRef struct {
	Kind SubjectKind `json:"kind"`
	ID   int64       `json:"id"`
}

// ResourceRef identifies a resource by kind and host-application ID.
type ResourceRef struct {
	Kind ResourceKind `json:"kind"`
	ID   int64        `json:"id"`
}

// ActorContext is the caller-supplied identity behind a mutating or
// auditing call. Bastion does not authenticate; it records and enforces
// against the identity handed to it. UserID and Username are nil/empty
// for anonymous or failed-auth actors.
type ActorContext struct {
	UserID   *int64 `json:"user_id,omitempty"`
	Username string `json:"username,omitempty"`
	IPAddr   string `json:"ip_addr,omitempty"`
}

// PermissionChangeEvent is published after any permission mutation. It is
// ephemeral; consumers invalidate their per-user permission caches and
// drop it.
type PermissionChangeEvent = event.PermissionChange

// BranchDecision is the outcome of a branch push check.
type BranchDecision string

const (
	// BranchAllow permits the push.
	BranchAllow BranchDecision = "allow"

	// BranchAllowForce permits the push including history rewrites.
	BranchAllowForce BranchDecision = "allow_force"

	// BranchReject blocks the push; Reason carries the cause.
	BranchReject BranchDecision = "reject"
)

// BranchCheckResult is the outcome of BranchRuleEngine evaluation.
type BranchCheckResult struct {
	Decision       BranchDecision `json:"decision"`
	Reason         string         `json:"reason,omitempty"`
	MatchedPattern string         `json:"matched_pattern,omitempty"`
}

// Allowed reports whether the push may proceed.
func (r BranchCheckResult) Allowed() bool {
	return r.Decision == BranchAllow || r.Decision == BranchAllowForce
}
