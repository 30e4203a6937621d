package bastion

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/xraph/bastion/branchrule"
	"github.com/xraph/bastion/subject"
)

// Push rejection reasons surfaced to VCS hook handlers.
const (
	ReasonForcePushForbidden = "FORCE PUSH FORBIDDEN"
	ReasonPushForbidden      = "PUSH FORBIDDEN"
)

// BranchRuleEngine evaluates branch-level push rules. A repository with
// no rules (or no rule matching the branch) places no restriction. Once
// any rule matches, the policy is fail-closed: every matching pattern
// must allow the push, and a single restrictive pattern rejects it.
type BranchRuleEngine struct {
	rules    branchrule.Store
	subjects subject.Store
}

// NewBranchRuleEngine creates a branch rule engine over the given stores.
func NewBranchRuleEngine(rules branchrule.Store, subjects subject.Store) *BranchRuleEngine {
	return &BranchRuleEngine{rules: rules, subjects: subjects}
}

// PermissionForBranch decides whether userID may push branchName to the
// repository, with forced marking a history rewrite. Negative outcomes
// are BranchReject results, not errors.
func (e *BranchRuleEngine) PermissionForBranch(ctx context.Context, tenantID string, userID, repoID int64, branchName string, forced bool) (BranchCheckResult, error) {
	user, err := e.subjects.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return BranchCheckResult{}, &ValidationError{Field: "user_id", Value: fmt.Sprint(userID), Detail: "no such user"}
		}
		return BranchCheckResult{}, &StoreError{Op: "get user", Err: err}
	}
	if user.IsAdmin {
		return BranchCheckResult{Decision: BranchAllowForce}, nil
	}

	rules, err := e.rules.ListBranchRulesForRepo(ctx, tenantID, repoID)
	if err != nil {
		return BranchCheckResult{}, &StoreError{Op: "list branch rules", Err: err}
	}

	matched := matchedPatterns(rules, branchName)
	if len(matched) == 0 {
		return BranchCheckResult{Decision: BranchAllow}, nil
	}

	groupIDs, err := e.groupIDsForUser(ctx, userID)
	if err != nil {
		return BranchCheckResult{}, err
	}

	// Evaluate every matching pattern, most specific first, so the
	// reported pattern is deterministic. Any rejecting pattern rejects
	// the push.
	patterns := make([]string, 0, len(matched))
	for p := range matched {
		patterns = append(patterns, p)
	}
	sort.Slice(patterns, func(i, j int) bool { return moreSpecific(patterns[i], patterns[j]) })

	decision := BranchCheckResult{Decision: BranchAllow, MatchedPattern: patterns[0]}
	for _, pattern := range patterns {
		level := e.strongestLevel(matched[pattern], userID, groupIDs)

		switch {
		case level == BranchPushForce:
			if decision.Decision == BranchAllow {
				decision = BranchCheckResult{Decision: BranchAllowForce, MatchedPattern: pattern}
			}
		case level == BranchPush && !forced:
			// Plain push allowed; keep the current decision.
		case level == BranchPush && forced:
			return BranchCheckResult{
				Decision:       BranchReject,
				Reason:         ReasonForcePushForbidden,
				MatchedPattern: pattern,
			}, nil
		default:
			return BranchCheckResult{
				Decision:       BranchReject,
				Reason:         ReasonPushForbidden,
				MatchedPattern: pattern,
			}, nil
		}
	}
	return decision, nil
}

// matchedPatterns groups the rules whose pattern matches the branch,
// keyed by pattern.
func matchedPatterns(rules []*branchrule.Rule, branchName string) map[string][]*branchrule.Rule {
	matched := make(map[string][]*branchrule.Rule)
	for _, r := range rules {
		if matchBranch(r.Pattern, branchName) {
			matched[r.Pattern] = append(matched[r.Pattern], r)
		}
	}
	return matched
}

// strongestLevel returns the strongest branch level the user holds
// among one pattern's rules: rules bound to everyone, to the user, or
// to any of the user's groups all count, combined via MAX.
func (e *BranchRuleEngine) strongestLevel(rules []*branchrule.Rule, userID int64, groupIDs map[int64]struct{}) Level {
	best := BranchNone
	for _, r := range rules {
		if !e.ruleApplies(r, userID, groupIDs) {
			continue
		}
		best = MaxLevel(best, Level(r.Permission))
	}
	return best
}

func (e *BranchRuleEngine) ruleApplies(r *branchrule.Rule, userID int64, groupIDs map[int64]struct{}) bool {
	if r.AppliesToAll() {
		return true
	}
	switch SubjectKind(r.SubjectKind) {
	case SubjectUser:
		return r.SubjectID == userID
	case SubjectUserGroup:
		_, ok := groupIDs[r.SubjectID]
		return ok
	default:
		return false
	}
}

func (e *BranchRuleEngine) groupIDsForUser(ctx context.Context, userID int64) (map[int64]struct{}, error) {
	groups, err := e.subjects.ListGroupsForUser(ctx, userID)
	if err != nil {
		return nil, &StoreError{Op: "list groups for user", Err: err}
	}
	ids := make(map[int64]struct{}, len(groups))
	for _, g := range groups {
		if g.IsActive {
			ids[g.ID] = struct{}{}
		}
	}
	return ids, nil
}
