package branchrule

import (
	"context"

	"github.com/xraph/bastion/id"
)

// Store defines persistence operations for branch rules.
type Store interface {
	// CreateBranchRule persists a new rule.
	CreateBranchRule(ctx context.Context, r *Rule) error

	// UpdateBranchRule replaces an existing rule by ID.
	UpdateBranchRule(ctx context.Context, r *Rule) error

	// GetBranchRule retrieves a rule by ID.
	GetBranchRule(ctx context.Context, ruleID id.BranchRuleID) (*Rule, error)

	// DeleteBranchRule removes a rule. No-op if absent.
	DeleteBranchRule(ctx context.Context, ruleID id.BranchRuleID) error

	// ListBranchRulesForRepo returns every rule of one repository.
	ListBranchRulesForRepo(ctx context.Context, tenantID string, repoID int64) ([]*Rule, error)

	// ListBranchRules returns rules matching the filter.
	ListBranchRules(ctx context.Context, filter *ListFilter) ([]*Rule, error)
}
