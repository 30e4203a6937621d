package sqlite

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/bastion/auditlog"
	"github.com/xraph/bastion/branchrule"
	"github.com/xraph/bastion/grant"
	"github.com/xraph/bastion/id"
	"github.com/xraph/bastion/iprange"
	"github.com/xraph/bastion/resource"
	"github.com/xraph/bastion/subject"
)

// ──────────────────────────────────────────────────
// User model
// ──────────────────────────────────────────────────

type userModel struct {
	grove.BaseModel `grove:"table:bastion_users"`
	ID              int64     `grove:"id,pk"`
	TenantID        string    `grove:"tenant_id,notnull"`
	Username        string    `grove:"username,notnull"`
	IsAdmin         bool      `grove:"is_admin,notnull"`
	InheritDefault  bool      `grove:"inherit_default,notnull"`
	IsActive        bool      `grove:"is_active,notnull"`
	CreatedAt       time.Time `grove:"created_at,notnull"`
}

func userToModel(u *subject.User) *userModel {
	return &userModel{
		ID:             u.ID,
		TenantID:       u.TenantID,
		Username:       u.Username,
		IsAdmin:        u.IsAdmin,
		InheritDefault: u.InheritDefaultPermissions,
		IsActive:       u.IsActive,
		CreatedAt:      u.CreatedAt,
	}
}

func userFromModel(m *userModel) *subject.User {
	return &subject.User{
		ID:                        m.ID,
		TenantID:                  m.TenantID,
		Username:                  m.Username,
		IsAdmin:                   m.IsAdmin,
		InheritDefaultPermissions: m.InheritDefault,
		IsActive:                  m.IsActive,
		CreatedAt:                 m.CreatedAt,
	}
}

// ──────────────────────────────────────────────────
// User group and membership models
// ──────────────────────────────────────────────────

type userGroupModel struct {
	grove.BaseModel `grove:"table:bastion_user_groups"`
	ID              int64     `grove:"id,pk"`
	TenantID        string    `grove:"tenant_id,notnull"`
	Name            string    `grove:"name,notnull"`
	OwnerID         int64     `grove:"owner_id"`
	IsActive        bool      `grove:"is_active,notnull"`
	CreatedAt       time.Time `grove:"created_at,notnull"`
}

func userGroupToModel(g *subject.UserGroup) *userGroupModel {
	return &userGroupModel{
		ID:        g.ID,
		TenantID:  g.TenantID,
		Name:      g.Name,
		OwnerID:   g.OwnerID,
		IsActive:  g.IsActive,
		CreatedAt: g.CreatedAt,
	}
}

func userGroupFromModel(m *userGroupModel) *subject.UserGroup {
	return &subject.UserGroup{
		ID:        m.ID,
		TenantID:  m.TenantID,
		Name:      m.Name,
		OwnerID:   m.OwnerID,
		IsActive:  m.IsActive,
		CreatedAt: m.CreatedAt,
	}
}

type groupMemberModel struct {
	grove.BaseModel `grove:"table:bastion_group_members"`
	GroupID         int64 `grove:"group_id,pk"`
	UserID          int64 `grove:"user_id,pk"`
}

// ──────────────────────────────────────────────────
// Repository and repo group models
// ──────────────────────────────────────────────────

type repositoryModel struct {
	grove.BaseModel `grove:"table:bastion_repositories"`
	ID              int64     `grove:"id,pk"`
	TenantID        string    `grove:"tenant_id,notnull"`
	Name            string    `grove:"name,notnull"`
	RepoGroupID     *int64    `grove:"repo_group_id"`
	Private         bool      `grove:"private,notnull"`
	Archived        bool      `grove:"archived,notnull"`
	CreatedAt       time.Time `grove:"created_at,notnull"`
}

func repositoryToModel(r *resource.Repository) *repositoryModel {
	return &repositoryModel{
		ID:          r.ID,
		TenantID:    r.TenantID,
		Name:        r.Name,
		RepoGroupID: r.RepoGroupID,
		Private:     r.Private,
		Archived:    r.Archived,
		CreatedAt:   r.CreatedAt,
	}
}

func repositoryFromModel(m *repositoryModel) *resource.Repository {
	return &resource.Repository{
		ID:          m.ID,
		TenantID:    m.TenantID,
		Name:        m.Name,
		RepoGroupID: m.RepoGroupID,
		Private:     m.Private,
		Archived:    m.Archived,
		CreatedAt:   m.CreatedAt,
	}
}

type repoGroupModel struct {
	grove.BaseModel `grove:"table:bastion_repo_groups"`
	ID              int64     `grove:"id,pk"`
	TenantID        string    `grove:"tenant_id,notnull"`
	Name            string    `grove:"name,notnull"`
	ParentID        *int64    `grove:"parent_id"`
	CreatedAt       time.Time `grove:"created_at,notnull"`
}

func repoGroupToModel(g *resource.RepoGroup) *repoGroupModel {
	return &repoGroupModel{
		ID:        g.ID,
		TenantID:  g.TenantID,
		Name:      g.Name,
		ParentID:  g.ParentID,
		CreatedAt: g.CreatedAt,
	}
}

func repoGroupFromModel(m *repoGroupModel) *resource.RepoGroup {
	return &resource.RepoGroup{
		ID:        m.ID,
		TenantID:  m.TenantID,
		Name:      m.Name,
		ParentID:  m.ParentID,
		CreatedAt: m.CreatedAt,
	}
}

// ──────────────────────────────────────────────────
// Grant model
// ──────────────────────────────────────────────────

type grantModel struct {
	grove.BaseModel `grove:"table:bastion_grants"`
	ID              string    `grove:"id,pk"`
	TenantID        string    `grove:"tenant_id,notnull"`
	SubjectKind     string    `grove:"subject_kind,notnull"`
	SubjectID       int64     `grove:"subject_id,notnull"`
	ResourceKind    string    `grove:"resource_kind,notnull"`
	ResourceID      int64     `grove:"resource_id,notnull"`
	Permission      string    `grove:"permission,notnull"`
	IsDefault       bool      `grove:"is_default,notnull"`
	GrantedBy       string    `grove:"granted_by"`
	CreatedAt       time.Time `grove:"created_at,notnull"`
	UpdatedAt       time.Time `grove:"updated_at,notnull"`
}

func grantToModel(g *grant.Grant) *grantModel {
	return &grantModel{
		ID:           g.ID.String(),
		TenantID:     g.TenantID,
		SubjectKind:  g.SubjectKind,
		SubjectID:    g.SubjectID,
		ResourceKind: g.ResourceKind,
		ResourceID:   g.ResourceID,
		Permission:   g.Permission,
		IsDefault:    g.IsDefault,
		GrantedBy:    g.GrantedBy,
		CreatedAt:    g.CreatedAt,
		UpdatedAt:    g.UpdatedAt,
	}
}

func grantFromModel(m *grantModel) *grant.Grant {
	gid, _ := id.ParseGrantID(m.ID) //nolint:errcheck // stored IDs are always valid
	return &grant.Grant{
		ID:           gid,
		TenantID:     m.TenantID,
		SubjectKind:  m.SubjectKind,
		SubjectID:    m.SubjectID,
		ResourceKind: m.ResourceKind,
		ResourceID:   m.ResourceID,
		Permission:   m.Permission,
		IsDefault:    m.IsDefault,
		GrantedBy:    m.GrantedBy,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

// ──────────────────────────────────────────────────
// Branch rule model
// ──────────────────────────────────────────────────

type branchRuleModel struct {
	grove.BaseModel `grove:"table:bastion_branch_rules"`
	ID              string    `grove:"id,pk"`
	TenantID        string    `grove:"tenant_id,notnull"`
	RepoID          int64     `grove:"repo_id,notnull"`
	SubjectKind     string    `grove:"subject_kind"`
	SubjectID       int64     `grove:"subject_id"`
	Pattern         string    `grove:"pattern,notnull"`
	Permission      string    `grove:"permission,notnull"`
	CreatedAt       time.Time `grove:"created_at,notnull"`
	UpdatedAt       time.Time `grove:"updated_at,notnull"`
}

func branchRuleToModel(r *branchrule.Rule) *branchRuleModel {
	return &branchRuleModel{
		ID:          r.ID.String(),
		TenantID:    r.TenantID,
		RepoID:      r.RepoID,
		SubjectKind: r.SubjectKind,
		SubjectID:   r.SubjectID,
		Pattern:     r.Pattern,
		Permission:  r.Permission,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func branchRuleFromModel(m *branchRuleModel) *branchrule.Rule {
	rid, _ := id.ParseBranchRuleID(m.ID) //nolint:errcheck // stored IDs are always valid
	return &branchrule.Rule{
		ID:          rid,
		TenantID:    m.TenantID,
		RepoID:      m.RepoID,
		SubjectKind: m.SubjectKind,
		SubjectID:   m.SubjectID,
		Pattern:     m.Pattern,
		Permission:  m.Permission,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

// ──────────────────────────────────────────────────
// IP range model
// ──────────────────────────────────────────────────

type ipRangeModel struct {
	grove.BaseModel `grove:"table:bastion_ip_ranges"`
	ID              string    `grove:"id,pk"`
	TenantID        string    `grove:"tenant_id,notnull"`
	UserID          int64     `grove:"user_id,notnull"`
	Spec            string    `grove:"spec,notnull"`
	StartAddr       string    `grove:"start_addr,notnull"`
	EndAddr         string    `grove:"end_addr,notnull"`
	Description     string    `grove:"description"`
	CreatedAt       time.Time `grove:"created_at,notnull"`
}

func ipRangeToModel(r *iprange.Range) *ipRangeModel {
	return &ipRangeModel{
		ID:          r.ID.String(),
		TenantID:    r.TenantID,
		UserID:      r.UserID,
		Spec:        r.Spec,
		StartAddr:   r.Start,
		EndAddr:     r.End,
		Description: r.Description,
		CreatedAt:   r.CreatedAt,
	}
}

func ipRangeFromModel(m *ipRangeModel) *iprange.Range {
	rid, _ := id.ParseIPRangeID(m.ID) //nolint:errcheck // stored IDs are always valid
	return &iprange.Range{
		ID:          rid,
		TenantID:    m.TenantID,
		UserID:      m.UserID,
		Spec:        m.Spec,
		Start:       m.StartAddr,
		End:         m.EndAddr,
		Description: m.Description,
		CreatedAt:   m.CreatedAt,
	}
}

// ──────────────────────────────────────────────────
// Audit entry model
// ──────────────────────────────────────────────────

type auditEntryModel struct {
	grove.BaseModel `grove:"table:bastion_audit_entries"`
	ID              string    `grove:"id,pk"`
	TenantID        string    `grove:"tenant_id,notnull"`
	Action          string    `grove:"action,notnull"`
	ActionData      string    `grove:"action_data"` // JSON text
	UserID          *int64    `grove:"user_id"`
	Username        string    `grove:"username"`
	IPAddress       string    `grove:"ip_address"`
	RepositoryID    *int64    `grove:"repository_id"`
	RepositoryName  string    `grove:"repository_name"`
	CreatedAt       time.Time `grove:"created_at,notnull"`
}

func auditEntryToModel(e *auditlog.Entry) (*auditEntryModel, error) {
	data, err := json.Marshal(e.ActionData)
	if err != nil {
		return nil, fmt.Errorf("marshal audit action data: %w", err)
	}
	return &auditEntryModel{
		ID:             e.ID.String(),
		TenantID:       e.TenantID,
		Action:         e.Action,
		ActionData:     string(data),
		UserID:         e.UserID,
		Username:       e.Username,
		IPAddress:      e.IPAddress,
		RepositoryID:   e.RepositoryID,
		RepositoryName: e.RepositoryName,
		CreatedAt:      e.CreatedAt,
	}, nil
}

func auditEntryFromModel(m *auditEntryModel) (*auditlog.Entry, error) {
	eid, _ := id.ParseAuditEntryID(m.ID) //nolint:errcheck // stored IDs are always valid
	var data map[string]any
	if m.ActionData != "" {
		if err := json.Unmarshal([]byte(m.ActionData), &data); err != nil {
			return nil, fmt.Errorf("unmarshal audit action data: %w", err)
		}
	}
	return &auditlog.Entry{
		ID:             eid,
		TenantID:       m.TenantID,
		Action:         m.Action,
		ActionData:     data,
		UserID:         m.UserID,
		Username:       m.Username,
		IPAddress:      m.IPAddress,
		RepositoryID:   m.RepositoryID,
		RepositoryName: m.RepositoryName,
		CreatedAt:      m.CreatedAt,
	}, nil
}
