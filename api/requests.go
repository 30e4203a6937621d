package api

// ActorInput identifies the user behind a mutating call, for the audit
// trail. All fields are optional; the authenticated Forge user is the
// fallback.
type ActorInput struct {
	UserID   *int64 `json:"user_id,omitempty" description:"Acting user ID"`
	Username string `json:"username,omitempty" description:"Acting username"`
	IPAddr   string `json:"ip_addr,omitempty" description:"Source address of the acting user"`
}

// ──────────────────────────────────────────────────
// Check requests
// ──────────────────────────────────────────────────

// CheckRequest is the request body for an effective permission lookup.
type CheckRequest struct {
	SubjectKind  string `json:"subject_kind" description:"Subject type (user, user_group)"`
	SubjectID    int64  `json:"subject_id" description:"Subject identifier"`
	ResourceKind string `json:"resource_kind" description:"Resource type (repository, repo_group, user_group)"`
	ResourceID   int64  `json:"resource_id" description:"Resource identifier"`
	MinLevel     string `json:"min_level,omitempty" description:"Minimum level to enforce (e.g. repository.write)"`
}

// BranchCheckRequest is the request body for a branch push check.
type BranchCheckRequest struct {
	UserID int64  `json:"user_id" description:"Pushing user ID"`
	RepoID int64  `json:"repo_id" description:"Target repository ID"`
	Branch string `json:"branch" description:"Branch name being pushed"`
	Forced bool   `json:"forced,omitempty" description:"Whether the push rewrites history"`
}

// IPCheckRequest is the request body for an IP allowlist check.
type IPCheckRequest struct {
	UserID int64  `json:"user_id" description:"User whose allowlist applies"`
	IPAddr string `json:"ip_addr" description:"Source address to check"`
}

// ──────────────────────────────────────────────────
// Grant requests
// ──────────────────────────────────────────────────

// ChangeEntryInput is one subject/permission pair in a bulk change.
type ChangeEntryInput struct {
	SubjectKind string `json:"subject_kind" description:"Subject type (user, user_group)"`
	SubjectID   int64  `json:"subject_id" description:"Subject identifier"`
	Permission  string `json:"permission,omitempty" description:"Permission level (ignored for deletions)"`
}

// ApplyChangesRequest is the body for a bulk permission mutation.
type ApplyChangesRequest struct {
	ResourceKind string             `json:"resource_kind" description:"Resource type"`
	ResourceID   int64              `json:"resource_id" description:"Resource identifier"`
	Additions    []ChangeEntryInput `json:"additions,omitempty" description:"Grants to add"`
	Updates      []ChangeEntryInput `json:"updates,omitempty" description:"Grants to update"`
	Deletions    []ChangeEntryInput `json:"deletions,omitempty" description:"Grants to remove"`
	Recursive    string             `json:"recursive,omitempty" description:"Cascade mode for repo groups (none, repos, groups, all)"`
	Actor        *ActorInput        `json:"actor,omitempty" description:"Acting user for the audit trail"`
}

// ListGrantsRequest holds query parameters for listing resource grants.
type ListGrantsRequest struct {
	ResourceKind string `query:"resource_kind" description:"Resource type"`
	ResourceID   int64  `query:"resource_id" description:"Resource identifier"`
	Expand       bool   `query:"expand" description:"Materialize user group grants into per-member rows"`
}

// ──────────────────────────────────────────────────
// Branch rule requests
// ──────────────────────────────────────────────────

// CreateBranchRuleRequest is the body for creating a branch rule.
type CreateBranchRuleRequest struct {
	RepoID      int64       `json:"repo_id" description:"Repository the rule protects"`
	SubjectKind string      `json:"subject_kind,omitempty" description:"Subject type the rule binds to"`
	SubjectID   int64       `json:"subject_id,omitempty" description:"Subject identifier"`
	Pattern     string      `json:"pattern" description:"Branch pattern (literal, prefix*, or *)"`
	Permission  string      `json:"permission" description:"Branch level (branch.none, branch.push, branch.push_force)"`
	Actor       *ActorInput `json:"actor,omitempty" description:"Acting user for the audit trail"`
}

// UpdateBranchRuleRequest is the body for updating a branch rule.
type UpdateBranchRuleRequest struct {
	Pattern    string      `json:"pattern" description:"Branch pattern"`
	Permission string      `json:"permission" description:"Branch level"`
	Actor      *ActorInput `json:"actor,omitempty" description:"Acting user for the audit trail"`
}

// GetBranchRuleRequest is the path parameter for a branch rule.
type GetBranchRuleRequest struct {
	RuleID string `path:"ruleId" description:"Branch rule ID"`
}

// ListBranchRulesRequest is the path parameter for listing repo rules.
type ListBranchRulesRequest struct {
	RepoID int64 `path:"repoId" description:"Repository ID"`
}

// ──────────────────────────────────────────────────
// IP range requests
// ──────────────────────────────────────────────────

// CreateIPRangeRequest is the body for granting an allowlist range.
type CreateIPRangeRequest struct {
	Spec        string      `json:"spec" description:"Single address, CIDR, or start - end pair"`
	Description string      `json:"description,omitempty" description:"Human-readable note"`
	Actor       *ActorInput `json:"actor,omitempty" description:"Acting user for the audit trail"`
}

// GetIPRangeRequest is the path parameter for an IP range.
type GetIPRangeRequest struct {
	RangeID string `path:"rangeId" description:"IP range ID"`
}

// ListIPRangesRequest is the path parameter for listing user ranges.
type ListIPRangesRequest struct {
	UserID int64 `path:"userId" description:"User ID"`
}

// ──────────────────────────────────────────────────
// Audit requests
// ──────────────────────────────────────────────────

// ListAuditRequest holds query parameters for querying the audit trail.
type ListAuditRequest struct {
	Action       string `query:"action" description:"Filter by action name (e.g. repo.edit.permissions)"`
	UserID       string `query:"user_id" description:"Filter by acting user ID"`
	Username     string `query:"username" description:"Filter by acting username"`
	RepositoryID string `query:"repository_id" description:"Filter by repository ID"`
	After        string `query:"after" description:"After timestamp (RFC3339)"`
	Before       string `query:"before" description:"Before timestamp (RFC3339)"`
	Limit        int    `query:"limit" description:"Maximum results (default: 50)"`
	Offset       int    `query:"offset" description:"Results to skip"`
}
