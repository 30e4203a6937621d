// Package sqlite provides a SQLite implementation of the bastion
// composite store using grove ORM with Go-based migrations.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/bastion"
	"github.com/xraph/bastion/auditlog"
	"github.com/xraph/bastion/branchrule"
	"github.com/xraph/bastion/grant"
	"github.com/xraph/bastion/id"
	"github.com/xraph/bastion/iprange"
	"github.com/xraph/bastion/resource"
	"github.com/xraph/bastion/store"
	"github.com/xraph/bastion/subject"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store is a SQLite implementation of the composite bastion store.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite store.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// Migrate runs programmatic migrations via the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("bastion/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("bastion/sqlite: migration failed: %w", err)
	}
	return nil
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// ──────────────────────────────────────────────────
// User operations
// ──────────────────────────────────────────────────

func (s *Store) UpsertUser(ctx context.Context, u *subject.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	m := userToModel(u)
	_, err := s.sdb.NewInsert(m).
		OnConflict("(id) DO UPDATE SET tenant_id = excluded.tenant_id, username = excluded.username, is_admin = excluded.is_admin, inherit_default = excluded.inherit_default, is_active = excluded.is_active").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion: upsert user: %w", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, userID int64) (*subject.User, error) {
	m := new(userModel)
	err := s.sdb.NewSelect(m).Where("id = ?", userID).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("user %d: %w", userID, bastion.ErrNotFound)
		}
		return nil, fmt.Errorf("bastion: get user: %w", err)
	}
	return userFromModel(m), nil
}

func (s *Store) GetUserByUsername(ctx context.Context, tenantID, username string) (*subject.User, error) {
	m := new(userModel)
	err := s.sdb.NewSelect(m).
		Where("tenant_id = ?", tenantID).
		Where("username = ?", username).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("user %q: %w", username, bastion.ErrNotFound)
		}
		return nil, fmt.Errorf("bastion: get user by username: %w", err)
	}
	return userFromModel(m), nil
}

func (s *Store) GetDefaultUser(ctx context.Context, tenantID string) (*subject.User, error) {
	return s.GetUserByUsername(ctx, tenantID, subject.DefaultUsername)
}

func (s *Store) ListUsers(ctx context.Context, filter *subject.ListFilter) ([]*subject.User, error) {
	var models []userModel
	q := s.sdb.NewSelect(&models).OrderExpr("id ASC")
	if filter != nil {
		if filter.TenantID != "" {
			q = q.Where("tenant_id = ?", filter.TenantID)
		}
		if filter.IsAdmin != nil {
			q = q.Where("is_admin = ?", *filter.IsAdmin)
		}
		if filter.IsActive != nil {
			q = q.Where("is_active = ?", *filter.IsActive)
		}
		if filter.Search != "" {
			q = q.Where("LOWER(username) LIKE LOWER(?)", "%"+filter.Search+"%")
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("bastion: list users: %w", err)
	}
	result := make([]*subject.User, len(models))
	for i := range models {
		result[i] = userFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) DeleteUser(ctx context.Context, userID int64) error {
	tx, err := s.sdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return fmt.Errorf("bastion: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback on error is intentional

	if _, err := tx.NewDelete((*groupMemberModel)(nil)).
		Where("user_id = ?", userID).Exec(ctx); err != nil {
		return fmt.Errorf("bastion: delete user memberships: %w", err)
	}
	if _, err := tx.NewDelete((*userModel)(nil)).
		Where("id = ?", userID).Exec(ctx); err != nil {
		return fmt.Errorf("bastion: delete user: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("bastion: commit tx: %w", err)
	}
	return nil
}

// ──────────────────────────────────────────────────
// User group operations
// ──────────────────────────────────────────────────

func (s *Store) UpsertUserGroup(ctx context.Context, g *subject.UserGroup) error {
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC()
	}
	m := userGroupToModel(g)
	_, err := s.sdb.NewInsert(m).
		OnConflict("(id) DO UPDATE SET tenant_id = excluded.tenant_id, name = excluded.name, owner_id = excluded.owner_id, is_active = excluded.is_active").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion: upsert user group: %w", err)
	}
	return nil
}

func (s *Store) GetUserGroup(ctx context.Context, groupID int64) (*subject.UserGroup, error) {
	m := new(userGroupModel)
	err := s.sdb.NewSelect(m).Where("id = ?", groupID).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("user group %d: %w", groupID, bastion.ErrNotFound)
		}
		return nil, fmt.Errorf("bastion: get user group: %w", err)
	}
	return userGroupFromModel(m), nil
}

func (s *Store) DeleteUserGroup(ctx context.Context, groupID int64) error {
	tx, err := s.sdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return fmt.Errorf("bastion: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback on error is intentional

	if _, err := tx.NewDelete((*groupMemberModel)(nil)).
		Where("group_id = ?", groupID).Exec(ctx); err != nil {
		return fmt.Errorf("bastion: delete group members: %w", err)
	}
	if _, err := tx.NewDelete((*userGroupModel)(nil)).
		Where("id = ?", groupID).Exec(ctx); err != nil {
		return fmt.Errorf("bastion: delete user group: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("bastion: commit tx: %w", err)
	}
	return nil
}

func (s *Store) AddGroupMember(ctx context.Context, groupID, userID int64) error {
	// Membership rows reference a group that must exist.
	if _, err := s.GetUserGroup(ctx, groupID); err != nil {
		return err
	}
	m := &groupMemberModel{GroupID: groupID, UserID: userID}
	_, err := s.sdb.NewInsert(m).
		OnConflict("(group_id, user_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion: add group member: %w", err)
	}
	return nil
}

func (s *Store) RemoveGroupMember(ctx context.Context, groupID, userID int64) error {
	_, err := s.sdb.NewDelete((*groupMemberModel)(nil)).
		Where("group_id = ?", groupID).
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion: remove group member: %w", err)
	}
	return nil
}

func (s *Store) ListGroupsForUser(ctx context.Context, userID int64) ([]*subject.UserGroup, error) {
	var models []userGroupModel
	err := s.sdb.NewSelect(&models).
		Join("JOIN", "bastion_group_members AS gm", "gm.group_id = bastion_user_groups.id").
		Where("gm.user_id = ?", userID).
		Where("is_active = ?", true).
		OrderExpr("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("bastion: list groups for user: %w", err)
	}
	result := make([]*subject.UserGroup, len(models))
	for i := range models {
		result[i] = userGroupFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) ListGroupMembers(ctx context.Context, groupID int64) ([]*subject.User, error) {
	var models []userModel
	err := s.sdb.NewSelect(&models).
		Join("JOIN", "bastion_group_members AS gm", "gm.user_id = bastion_users.id").
		Where("gm.group_id = ?", groupID).
		OrderExpr("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("bastion: list group members: %w", err)
	}
	result := make([]*subject.User, len(models))
	for i := range models {
		result[i] = userFromModel(&models[i])
	}
	return result, nil
}

// ──────────────────────────────────────────────────
// Repository operations
// ──────────────────────────────────────────────────

func (s *Store) UpsertRepository(ctx context.Context, r *resource.Repository) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	m := repositoryToModel(r)
	_, err := s.sdb.NewInsert(m).
		OnConflict("(id) DO UPDATE SET tenant_id = excluded.tenant_id, name = excluded.name, repo_group_id = excluded.repo_group_id, private = excluded.private, archived = excluded.archived").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion: upsert repository: %w", err)
	}
	return nil
}

func (s *Store) GetRepository(ctx context.Context, repoID int64) (*resource.Repository, error) {
	m := new(repositoryModel)
	err := s.sdb.NewSelect(m).Where("id = ?", repoID).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("repository %d: %w", repoID, bastion.ErrNotFound)
		}
		return nil, fmt.Errorf("bastion: get repository: %w", err)
	}
	return repositoryFromModel(m), nil
}

func (s *Store) ListRepositories(ctx context.Context, filter *resource.ListFilter) ([]*resource.Repository, error) {
	var models []repositoryModel
	q := s.sdb.NewSelect(&models).OrderExpr("id ASC")
	if filter != nil {
		if filter.TenantID != "" {
			q = q.Where("tenant_id = ?", filter.TenantID)
		}
		if filter.RepoGroupID != nil {
			q = q.Where("repo_group_id = ?", *filter.RepoGroupID)
		}
		if filter.Private != nil {
			q = q.Where("private = ?", *filter.Private)
		}
		if filter.Search != "" {
			q = q.Where("LOWER(name) LIKE LOWER(?)", "%"+filter.Search+"%")
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("bastion: list repositories: %w", err)
	}
	result := make([]*resource.Repository, len(models))
	for i := range models {
		result[i] = repositoryFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) DeleteRepository(ctx context.Context, repoID int64) error {
	_, err := s.sdb.NewDelete((*repositoryModel)(nil)).
		Where("id = ?", repoID).Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion: delete repository: %w", err)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Repo group operations
// ──────────────────────────────────────────────────

func (s *Store) UpsertRepoGroup(ctx context.Context, g *resource.RepoGroup) error {
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC()
	}
	m := repoGroupToModel(g)
	_, err := s.sdb.NewInsert(m).
		OnConflict("(id) DO UPDATE SET tenant_id = excluded.tenant_id, name = excluded.name, parent_id = excluded.parent_id").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion: upsert repo group: %w", err)
	}
	return nil
}

func (s *Store) GetRepoGroup(ctx context.Context, groupID int64) (*resource.RepoGroup, error) {
	m := new(repoGroupModel)
	err := s.sdb.NewSelect(m).Where("id = ?", groupID).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("repo group %d: %w", groupID, bastion.ErrNotFound)
		}
		return nil, fmt.Errorf("bastion: get repo group: %w", err)
	}
	return repoGroupFromModel(m), nil
}

func (s *Store) DeleteRepoGroup(ctx context.Context, groupID int64) error {
	_, err := s.sdb.NewDelete((*repoGroupModel)(nil)).
		Where("id = ?", groupID).Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion: delete repo group: %w", err)
	}
	return nil
}

func (s *Store) ListGroupRepositories(ctx context.Context, groupID int64, recursive bool) ([]*resource.Repository, error) {
	groupIDs := []int64{groupID}
	if recursive {
		subGroups, err := s.ListSubGroups(ctx, groupID, true)
		if err != nil {
			return nil, err
		}
		for _, g := range subGroups {
			groupIDs = append(groupIDs, g.ID)
		}
	}
	var models []repositoryModel
	err := s.sdb.NewSelect(&models).
		Where("repo_group_id IN (?)", groupIDs).
		OrderExpr("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("bastion: list group repositories: %w", err)
	}
	result := make([]*resource.Repository, len(models))
	for i := range models {
		result[i] = repositoryFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) ListSubGroups(ctx context.Context, groupID int64, recursive bool) ([]*resource.RepoGroup, error) {
	direct := func(parentID int64) ([]*resource.RepoGroup, error) {
		var models []repoGroupModel
		err := s.sdb.NewSelect(&models).
			Where("parent_id = ?", parentID).
			OrderExpr("id ASC").
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("bastion: list sub groups: %w", err)
		}
		result := make([]*resource.RepoGroup, len(models))
		for i := range models {
			result[i] = repoGroupFromModel(&models[i])
		}
		return result, nil
	}

	if !recursive {
		return direct(groupID)
	}

	// Breadth-first walk; the group table is a forest, so the frontier
	// always shrinks to empty.
	var all []*resource.RepoGroup
	frontier := []int64{groupID}
	for len(frontier) > 0 {
		next := frontier[:0:0]
		for _, pid := range frontier {
			children, err := direct(pid)
			if err != nil {
				return nil, err
			}
			for _, c := range children {
				all = append(all, c)
				next = append(next, c.ID)
			}
		}
		frontier = next
	}
	return all, nil
}

// ──────────────────────────────────────────────────
// Grant operations
// ──────────────────────────────────────────────────

// grantConflict preserves id and created_at of an existing row so the
// pair's grant keeps its identity across permission replacements.
const grantConflict = "(tenant_id, subject_kind, subject_id, resource_kind, resource_id) " +
	"DO UPDATE SET permission = excluded.permission, is_default = excluded.is_default, " +
	"granted_by = excluded.granted_by, updated_at = excluded.updated_at"

func (s *Store) UpsertGrant(ctx context.Context, g *grant.Grant) error {
	now := time.Now().UTC()
	if g.ID.IsNil() {
		g.ID = id.NewGrantID()
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = now
	}
	g.UpdatedAt = now
	m := grantToModel(g)
	if _, err := s.sdb.NewInsert(m).OnConflict(grantConflict).Exec(ctx); err != nil {
		return fmt.Errorf("bastion: upsert grant: %w", err)
	}
	return nil
}

func (s *Store) RemoveGrant(ctx context.Context, tenantID string, key grant.Key) error {
	_, err := s.sdb.NewDelete((*grantModel)(nil)).
		Where("tenant_id = ?", tenantID).
		Where("subject_kind = ?", key.SubjectKind).
		Where("subject_id = ?", key.SubjectID).
		Where("resource_kind = ?", key.ResourceKind).
		Where("resource_id = ?", key.ResourceID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion: remove grant: %w", err)
	}
	return nil
}

func (s *Store) GetGrant(ctx context.Context, tenantID string, key grant.Key) (*grant.Grant, error) {
	m := new(grantModel)
	err := s.sdb.NewSelect(m).
		Where("tenant_id = ?", tenantID).
		Where("subject_kind = ?", key.SubjectKind).
		Where("subject_id = ?", key.SubjectID).
		Where("resource_kind = ?", key.ResourceKind).
		Where("resource_id = ?", key.ResourceID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("grant %s/%d on %s/%d: %w",
				key.SubjectKind, key.SubjectID, key.ResourceKind, key.ResourceID, bastion.ErrNotFound)
		}
		return nil, fmt.Errorf("bastion: get grant: %w", err)
	}
	return grantFromModel(m), nil
}

func (s *Store) GrantsForSubject(ctx context.Context, tenantID, subjectKind string, subjectID int64, resourceKind string) ([]*grant.Grant, error) {
	var models []grantModel
	err := s.sdb.NewSelect(&models).
		Where("tenant_id = ?", tenantID).
		Where("subject_kind = ?", subjectKind).
		Where("subject_id = ?", subjectID).
		Where("resource_kind = ?", resourceKind).
		OrderExpr("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("bastion: grants for subject: %w", err)
	}
	result := make([]*grant.Grant, len(models))
	for i := range models {
		result[i] = grantFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) GrantsForResource(ctx context.Context, tenantID, resourceKind string, resourceID int64) ([]*grant.Grant, error) {
	var models []grantModel
	err := s.sdb.NewSelect(&models).
		Where("tenant_id = ?", tenantID).
		Where("resource_kind = ?", resourceKind).
		Where("resource_id = ?", resourceID).
		OrderExpr("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("bastion: grants for resource: %w", err)
	}
	result := make([]*grant.Grant, len(models))
	for i := range models {
		result[i] = grantFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) ListGrants(ctx context.Context, filter *grant.ListFilter) ([]*grant.Grant, error) {
	var models []grantModel
	q := s.sdb.NewSelect(&models).OrderExpr("id ASC")
	if filter != nil {
		if filter.TenantID != "" {
			q = q.Where("tenant_id = ?", filter.TenantID)
		}
		if filter.SubjectKind != "" {
			q = q.Where("subject_kind = ?", filter.SubjectKind)
		}
		if filter.SubjectID != nil {
			q = q.Where("subject_id = ?", *filter.SubjectID)
		}
		if filter.ResourceKind != "" {
			q = q.Where("resource_kind = ?", filter.ResourceKind)
		}
		if filter.ResourceID != nil {
			q = q.Where("resource_id = ?", *filter.ResourceID)
		}
		if filter.IsDefault != nil {
			q = q.Where("is_default = ?", *filter.IsDefault)
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("bastion: list grants: %w", err)
	}
	result := make([]*grant.Grant, len(models))
	for i := range models {
		result[i] = grantFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) ApplyGrantBatch(ctx context.Context, tenantID string, ops []grant.Op) error {
	for _, op := range ops {
		switch op.Kind {
		case grant.OpUpsert:
			if op.Permission == "" {
				return fmt.Errorf("upsert op without permission: %w", bastion.ErrValidation)
			}
		case grant.OpRemove:
		default:
			return fmt.Errorf("unknown grant op kind %q: %w", op.Kind, bastion.ErrValidation)
		}
	}

	tx, err := s.sdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return fmt.Errorf("bastion: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback on error is intentional

	now := time.Now().UTC()
	for _, op := range ops {
		if op.Kind == grant.OpRemove {
			_, err := tx.NewDelete((*grantModel)(nil)).
				Where("tenant_id = ?", tenantID).
				Where("subject_kind = ?", op.Key.SubjectKind).
				Where("subject_id = ?", op.Key.SubjectID).
				Where("resource_kind = ?", op.Key.ResourceKind).
				Where("resource_id = ?", op.Key.ResourceID).
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("bastion: batch remove grant: %w", err)
			}
			continue
		}
		m := &grantModel{
			ID:           id.NewGrantID().String(),
			TenantID:     tenantID,
			SubjectKind:  op.Key.SubjectKind,
			SubjectID:    op.Key.SubjectID,
			ResourceKind: op.Key.ResourceKind,
			ResourceID:   op.Key.ResourceID,
			Permission:   op.Permission,
			GrantedBy:    op.GrantedBy,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if _, err := tx.NewInsert(m).OnConflict(grantConflict).Exec(ctx); err != nil {
			return fmt.Errorf("bastion: batch upsert grant: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("bastion: commit tx: %w", err)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Branch rule operations
// ──────────────────────────────────────────────────

func (s *Store) CreateBranchRule(ctx context.Context, r *branchrule.Rule) error {
	m := branchRuleToModel(r)
	if _, err := s.sdb.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("bastion: create branch rule: %w", err)
	}
	return nil
}

func (s *Store) UpdateBranchRule(ctx context.Context, r *branchrule.Rule) error {
	m := branchRuleToModel(r)
	res, err := s.sdb.NewUpdate(m).WherePK().Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion: update branch rule: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("bastion: update branch rule rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("branch rule %s: %w", r.ID, bastion.ErrNotFound)
	}
	return nil
}

func (s *Store) GetBranchRule(ctx context.Context, ruleID id.BranchRuleID) (*branchrule.Rule, error) {
	m := new(branchRuleModel)
	err := s.sdb.NewSelect(m).Where("id = ?", ruleID.String()).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("branch rule %s: %w", ruleID, bastion.ErrNotFound)
		}
		return nil, fmt.Errorf("bastion: get branch rule: %w", err)
	}
	return branchRuleFromModel(m), nil
}

func (s *Store) DeleteBranchRule(ctx context.Context, ruleID id.BranchRuleID) error {
	_, err := s.sdb.NewDelete((*branchRuleModel)(nil)).
		Where("id = ?", ruleID.String()).Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion: delete branch rule: %w", err)
	}
	return nil
}

func (s *Store) ListBranchRulesForRepo(ctx context.Context, tenantID string, repoID int64) ([]*branchrule.Rule, error) {
	var models []branchRuleModel
	err := s.sdb.NewSelect(&models).
		Where("tenant_id = ?", tenantID).
		Where("repo_id = ?", repoID).
		OrderExpr("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("bastion: list branch rules for repo: %w", err)
	}
	result := make([]*branchrule.Rule, len(models))
	for i := range models {
		result[i] = branchRuleFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) ListBranchRules(ctx context.Context, filter *branchrule.ListFilter) ([]*branchrule.Rule, error) {
	var models []branchRuleModel
	q := s.sdb.NewSelect(&models).OrderExpr("id ASC")
	if filter != nil {
		if filter.TenantID != "" {
			q = q.Where("tenant_id = ?", filter.TenantID)
		}
		if filter.RepoID != nil {
			q = q.Where("repo_id = ?", *filter.RepoID)
		}
		if filter.SubjectKind != "" {
			q = q.Where("subject_kind = ?", filter.SubjectKind)
		}
		if filter.SubjectID != nil {
			q = q.Where("subject_id = ?", *filter.SubjectID)
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("bastion: list branch rules: %w", err)
	}
	result := make([]*branchrule.Rule, len(models))
	for i := range models {
		result[i] = branchRuleFromModel(&models[i])
	}
	return result, nil
}

// ──────────────────────────────────────────────────
// IP range operations
// ──────────────────────────────────────────────────

func (s *Store) CreateIPRange(ctx context.Context, r *iprange.Range) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	m := ipRangeToModel(r)
	if _, err := s.sdb.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("bastion: create ip range: %w", err)
	}
	return nil
}

func (s *Store) GetIPRange(ctx context.Context, rangeID id.IPRangeID) (*iprange.Range, error) {
	m := new(ipRangeModel)
	err := s.sdb.NewSelect(m).Where("id = ?", rangeID.String()).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("ip range %s: %w", rangeID, bastion.ErrNotFound)
		}
		return nil, fmt.Errorf("bastion: get ip range: %w", err)
	}
	return ipRangeFromModel(m), nil
}

func (s *Store) DeleteIPRange(ctx context.Context, rangeID id.IPRangeID) error {
	_, err := s.sdb.NewDelete((*ipRangeModel)(nil)).
		Where("id = ?", rangeID.String()).Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion: delete ip range: %w", err)
	}
	return nil
}

func (s *Store) ListIPRangesForUser(ctx context.Context, tenantID string, userID int64) ([]*iprange.Range, error) {
	var models []ipRangeModel
	err := s.sdb.NewSelect(&models).
		Where("tenant_id = ?", tenantID).
		Where("user_id = ?", userID).
		OrderExpr("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("bastion: list ip ranges for user: %w", err)
	}
	result := make([]*iprange.Range, len(models))
	for i := range models {
		result[i] = ipRangeFromModel(&models[i])
	}
	return result, nil
}

// ──────────────────────────────────────────────────
// Audit log operations
// ──────────────────────────────────────────────────

func (s *Store) CreateAuditEntry(ctx context.Context, e *auditlog.Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	m, err := auditEntryToModel(e)
	if err != nil {
		return fmt.Errorf("bastion: create audit entry: %w", err)
	}
	if _, err := s.sdb.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("bastion: create audit entry: %w", err)
	}
	return nil
}

func (s *Store) GetAuditEntry(ctx context.Context, entryID id.AuditEntryID) (*auditlog.Entry, error) {
	m := new(auditEntryModel)
	err := s.sdb.NewSelect(m).Where("id = ?", entryID.String()).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("audit entry %s: %w", entryID, bastion.ErrNotFound)
		}
		return nil, fmt.Errorf("bastion: get audit entry: %w", err)
	}
	e, err := auditEntryFromModel(m)
	if err != nil {
		return nil, fmt.Errorf("bastion: get audit entry: %w", err)
	}
	return e, nil
}

func (s *Store) ListAuditEntries(ctx context.Context, filter *auditlog.QueryFilter) ([]*auditlog.Entry, error) {
	var models []auditEntryModel
	q := s.sdb.NewSelect(&models).OrderExpr("created_at DESC, id DESC")
	if filter != nil {
		if filter.TenantID != "" {
			q = q.Where("tenant_id = ?", filter.TenantID)
		}
		if filter.Action != "" {
			q = q.Where("action = ?", filter.Action)
		}
		if filter.UserID != nil {
			q = q.Where("user_id = ?", *filter.UserID)
		}
		if filter.Username != "" {
			q = q.Where("username = ?", filter.Username)
		}
		if filter.RepositoryID != nil {
			q = q.Where("repository_id = ?", *filter.RepositoryID)
		}
		if filter.After != nil {
			q = q.Where("created_at >= ?", *filter.After)
		}
		if filter.Before != nil {
			q = q.Where("created_at <= ?", *filter.Before)
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("bastion: list audit entries: %w", err)
	}
	result := make([]*auditlog.Entry, len(models))
	for i := range models {
		e, err := auditEntryFromModel(&models[i])
		if err != nil {
			return nil, fmt.Errorf("bastion: list audit entries: %w", err)
		}
		result[i] = e
	}
	return result, nil
}

func (s *Store) CountAuditEntries(ctx context.Context, filter *auditlog.QueryFilter) (int64, error) {
	q := s.sdb.NewSelect((*auditEntryModel)(nil))
	if filter != nil {
		if filter.TenantID != "" {
			q = q.Where("tenant_id = ?", filter.TenantID)
		}
		if filter.Action != "" {
			q = q.Where("action = ?", filter.Action)
		}
		if filter.UserID != nil {
			q = q.Where("user_id = ?", *filter.UserID)
		}
		if filter.Username != "" {
			q = q.Where("username = ?", filter.Username)
		}
		if filter.RepositoryID != nil {
			q = q.Where("repository_id = ?", *filter.RepositoryID)
		}
		if filter.After != nil {
			q = q.Where("created_at >= ?", *filter.After)
		}
		if filter.Before != nil {
			q = q.Where("created_at <= ?", *filter.Before)
		}
	}
	count, err := q.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("bastion: count audit entries: %w", err)
	}
	return count, nil
}

func (s *Store) PurgeAuditEntries(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.sdb.NewDelete((*auditEntryModel)(nil)).
		Where("created_at < ?", before).Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("bastion: purge audit entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("bastion: purge audit entries rows: %w", err)
	}
	return n, nil
}
