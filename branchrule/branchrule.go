// Package branchrule defines branch-level push rules: a branch name
// pattern plus the strongest push level a subject may use on matching
// branches of one repository.
package branchrule

import (
	"time"

	"github.com/xraph/bastion/id"
)

// Rule restricts pushes to branches matching Pattern in one repository.
// SubjectKind/SubjectID scope the rule to a user or user group; a zero
// SubjectID with empty kind applies the rule to every pusher.
type Rule struct {
	ID       id.BranchRuleID `json:"id" db:"id"`
	TenantID string          `json:"tenant_id" db:"tenant_id"`
	RepoID   int64           `json:"repo_id" db:"repo_id"`

	SubjectKind string `json:"subject_kind,omitempty" db:"subject_kind"`
	SubjectID   int64  `json:"subject_id,omitempty" db:"subject_id"`

	// Pattern is a literal branch name, "*", or a literal prefix
	// followed by "*" (e.g., "release/*").
	Pattern string `json:"pattern" db:"pattern"`

	// Permission is a branch level: branch.none, branch.push, or
	// branch.push_force.
	Permission string `json:"permission" db:"permission"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// AppliesToAll reports whether the rule binds every pusher rather than
// one subject.
func (r *Rule) AppliesToAll() bool { return r.SubjectKind == "" }

// ListFilter contains filters for listing branch rules.
type ListFilter struct {
	TenantID    string `json:"tenant_id,omitempty"`
	RepoID      *int64 `json:"repo_id,omitempty"`
	SubjectKind string `json:"subject_kind,omitempty"`
	SubjectID   *int64 `json:"subject_id,omitempty"`
	Limit       int    `json:"limit,omitempty"`
	Offset      int    `json:"offset,omitempty"`
}
