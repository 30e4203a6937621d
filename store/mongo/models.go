package mongo

import (
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
	ID              int64     `grove:"id,pk"            bson:"_id"`
	TenantID        string    `grove:"tenant_id"        bson:"tenant_id"`
	Username        string    `grove:"username"         bson:"username"`
	IsAdmin         bool      `grove:"is_admin"         bson:"is_admin"`
	InheritDefault  bool      `grove:"inherit_default"  bson:"inherit_default"`
	IsActive        bool      `grove:"is_active"        bson:"is_active"`
	CreatedAt       time.Time `grove:"created_at"       bson:"created_at"`
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
// User group models
// ──────────────────────────────────────────────────

type userGroupModel struct {
	grove.BaseModel `grove:"table:bastion_user_groups"`
	ID              int64     `grove:"id,pk"      bson:"_id"`
	TenantID        string    `grove:"tenant_id"  bson:"tenant_id"`
	Name            string    `grove:"name"       bson:"name"`
	OwnerID         int64     `grove:"owner_id"   bson:"owner_id"`
	IsActive        bool      `grove:"is_active"  bson:"is_active"`
	CreatedAt       time.Time `grove:"created_at" bson:"created_at"`
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
	GroupID         int64 `grove:"group_id,pk" bson:"group_id"`
	UserID          int64 `grove:"user_id,pk"  bson:"user_id"`
}

// ──────────────────────────────────────────────────
// Repository models
// ──────────────────────────────────────────────────

type repositoryModel struct {
	grove.BaseModel `grove:"table:bastion_repositories"`
	ID              int64     `grove:"id,pk"          bson:"_id"`
	TenantID        string    `grove:"tenant_id"      bson:"tenant_id"`
	Name            string    `grove:"name"           bson:"name"`
	RepoGroupID     *int64    `grove:"repo_group_id"  bson:"repo_group_id,omitempty"`
	Private         bool      `grove:"private"        bson:"private"`
	Archived        bool      `grove:"archived"       bson:"archived"`
	CreatedAt       time.Time `grove:"created_at"     bson:"created_at"`
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
	ID              int64     `grove:"id,pk"      bson:"_id"`
	TenantID        string    `grove:"tenant_id"  bson:"tenant_id"`
	Name            string    `grove:"name"       bson:"name"`
	ParentID        *int64    `grove:"parent_id"  bson:"parent_id,omitempty"`
	CreatedAt       time.Time `grove:"created_at" bson:"created_at"`
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
	ID              string    `grove:"id,pk"          bson:"_id"`
	TenantID        string    `grove:"tenant_id"      bson:"tenant_id"`
	SubjectKind     string    `grove:"subject_kind"   bson:"subject_kind"`
	SubjectID       int64     `grove:"subject_id"     bson:"subject_id"`
	ResourceKind    string    `grove:"resource_kind"  bson:"resource_kind"`
	ResourceID      int64     `grove:"resource_id"    bson:"resource_id"`
	Permission      string    `grove:"permission"     bson:"permission"`
	IsDefault       bool      `grove:"is_default"     bson:"is_default"`
	GrantedBy       string    `grove:"granted_by"     bson:"granted_by"`
	CreatedAt       time.Time `grove:"created_at"     bson:"created_at"`
	UpdatedAt       time.Time `grove:"updated_at"     bson:"updated_at"`
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
	ID              string    `grove:"id,pk"         bson:"_id"`
	TenantID        string    `grove:"tenant_id"     bson:"tenant_id"`
	RepoID          int64     `grove:"repo_id"       bson:"repo_id"`
	SubjectKind     string    `grove:"subject_kind"  bson:"subject_kind"`
	SubjectID       int64     `grove:"subject_id"    bson:"subject_id"`
	Pattern         string    `grove:"pattern"       bson:"pattern"`
	Permission      string    `grove:"permission"    bson:"permission"`
	CreatedAt       time.Time `grove:"created_at"    bson:"created_at"`
	UpdatedAt       time.Time `grove:"updated_at"    bson:"updated_at"`
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
	ID              string    `grove:"id,pk"        bson:"_id"`
	TenantID        string    `grove:"tenant_id"    bson:"tenant_id"`
	UserID          int64     `grove:"user_id"      bson:"user_id"`
	Spec            string    `grove:"spec"         bson:"spec"`
	StartAddr       string    `grove:"start_addr"   bson:"start_addr"`
	EndAddr         string    `grove:"end_addr"     bson:"end_addr"`
	Description     string    `grove:"description"  bson:"description"`
	CreatedAt       time.Time `grove:"created_at"   bson:"created_at"`
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
	ID              string         `grove:"id,pk"            bson:"_id"`
	TenantID        string         `grove:"tenant_id"        bson:"tenant_id"`
	Action          string         `grove:"action"           bson:"action"`
	ActionData      map[string]any `grove:"action_data"      bson:"action_data,omitempty"`
	UserID          *int64         `grove:"user_id"          bson:"user_id,omitempty"`
	Username        string         `grove:"username"         bson:"username"`
	IPAddress       string         `grove:"ip_address"       bson:"ip_address"`
	RepositoryID    *int64         `grove:"repository_id"    bson:"repository_id,omitempty"`
	RepositoryName  string         `grove:"repository_name"  bson:"repository_name"`
	CreatedAt       time.Time      `grove:"created_at"       bson:"created_at"`
}

func auditEntryToModel(e *auditlog.Entry) *auditEntryModel {
	return &auditEntryModel{
		ID:             e.ID.String(),
		TenantID:       e.TenantID,
		Action:         e.Action,
		ActionData:     e.ActionData,
		UserID:         e.UserID,
		Username:       e.Username,
		IPAddress:      e.IPAddress,
		RepositoryID:   e.RepositoryID,
		RepositoryName: e.RepositoryName,
		CreatedAt:      e.CreatedAt,
	}
}

func auditEntryFromModel(m *auditEntryModel) *auditlog.Entry {
	eid, _ := id.ParseAuditEntryID(m.ID) //nolint:errcheck // stored IDs are always valid
	return &auditlog.Entry{
		ID:             eid,
		TenantID:       m.TenantID,
		Action:         m.Action,
		ActionData:     m.ActionData,
		UserID:         m.UserID,
		Username:       m.Username,
		IPAddress:      m.IPAddress,
		RepositoryID:   m.RepositoryID,
		RepositoryName: m.RepositoryName,
		CreatedAt:      m.CreatedAt,
	}
}
