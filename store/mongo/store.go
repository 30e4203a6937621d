// Package mongo provides a MongoDB implementation of the bastion
// composite store using grove ORM.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

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

// Collection name constants.
const (
	colUsers        = "bastion_users"
	colUserGroups   = "bastion_user_groups"
	colGroupMembers = "bastion_group_members"
	colRepositories = "bastion_repositories"
	colRepoGroups   = "bastion_repo_groups"
	colGrants       = "bastion_grants"
	colBranchRules  = "bastion_branch_rules"
	colIPRanges     = "bastion_ip_ranges"
	colAuditEntries = "bastion_audit_entries"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store is a MongoDB implementation of the composite bastion store.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// Migrate creates indexes for all bastion collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()
	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("bastion/mongo: migrate %s indexes: %w", col, err)
		}
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

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongod.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all bastion collections.
func migrationIndexes() map[string][]mongod.IndexModel {
	return map[string][]mongod.IndexModel{
		colUsers: {
			{
				Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "username", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "tenant_id", Value: 1}}},
		},
		colUserGroups: {
			{Keys: bson.D{{Key: "tenant_id", Value: 1}}},
		},
		colGroupMembers: {
			{
				Keys:    bson.D{{Key: "group_id", Value: 1}, {Key: "user_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "user_id", Value: 1}}},
		},
		colRepositories: {
			{Keys: bson.D{{Key: "tenant_id", Value: 1}}},
			{Keys: bson.D{{Key: "repo_group_id", Value: 1}}},
		},
		colRepoGroups: {
			{Keys: bson.D{{Key: "tenant_id", Value: 1}}},
			{Keys: bson.D{{Key: "parent_id", Value: 1}}},
		},
		colGrants: {
			{
				Keys: bson.D{
					{Key: "tenant_id", Value: 1},
					{Key: "subject_kind", Value: 1},
					{Key: "subject_id", Value: 1},
					{Key: "resource_kind", Value: 1},
					{Key: "resource_id", Value: 1},
				},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "subject_kind", Value: 1}, {Key: "subject_id", Value: 1}, {Key: "resource_kind", Value: 1}}},
			{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "resource_kind", Value: 1}, {Key: "resource_id", Value: 1}}},
		},
		colBranchRules: {
			{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "repo_id", Value: 1}}},
		},
		colIPRanges: {
			{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "user_id", Value: 1}}},
		},
		colAuditEntries: {
			{Keys: bson.D{{Key: "tenant_id", Value: 1}}},
			{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "action", Value: 1}}},
			{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "user_id", Value: 1}}},
			{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "repository_id", Value: 1}}},
			{Keys: bson.D{{Key: "created_at", Value: -1}}},
		},
	}
}

// ──────────────────────────────────────────────────
// User operations
// ──────────────────────────────────────────────────

func (s *Store) UpsertUser(ctx context.Context, u *subject.User) error {
	m := userToModel(u)
	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion: upsert user: %w", err)
	}
	if res.MatchedCount() == 0 {
		if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil && !mongod.IsDuplicateKeyError(err) {
			return fmt.Errorf("bastion: upsert user: %w", err)
		}
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, userID int64) (*subject.User, error) {
	var m userModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": userID}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("user %d: %w", userID, bastion.ErrNotFound)
		}
		return nil, fmt.Errorf("bastion: get user: %w", err)
	}
	return userFromModel(&m), nil
}

func (s *Store) GetUserByUsername(ctx context.Context, tenantID, username string) (*subject.User, error) {
	var m userModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"tenant_id": tenantID, "username": username}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("user %q: %w", username, bastion.ErrNotFound)
		}
		return nil, fmt.Errorf("bastion: get user by username: %w", err)
	}
	return userFromModel(&m), nil
}

func (s *Store) GetDefaultUser(ctx context.Context, tenantID string) (*subject.User, error) {
	return s.GetUserByUsername(ctx, tenantID, subject.DefaultUsername)
}

func (s *Store) ListUsers(ctx context.Context, filter *subject.ListFilter) ([]*subject.User, error) {
	var models []userModel
	f := bson.M{}
	if filter != nil {
		if filter.TenantID != "" {
			f["tenant_id"] = filter.TenantID
		}
		if filter.IsAdmin != nil {
			f["is_admin"] = *filter.IsAdmin
		}
		if filter.IsActive != nil {
			f["is_active"] = *filter.IsActive
		}
		if filter.Search != "" {
			f["username"] = bson.M{"$regex": filter.Search, "$options": "i"}
		}
	}
	q := s.mdb.NewFind(&models).
		Filter(f).
		Sort(bson.D{{Key: "_id", Value: 1}})
	if filter != nil {
		if filter.Limit > 0 {
			q = q.Limit(int64(filter.Limit))
		}
		if filter.Offset > 0 {
			q = q.Skip(int64(filter.Offset))
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
	if _, err := s.mdb.NewDelete((*groupMemberModel)(nil)).
		Many().
		Filter(bson.M{"user_id": userID}).
		Exec(ctx); err != nil {
		return fmt.Errorf("bastion: delete user memberships: %w", err)
	}
	if _, err := s.mdb.NewDelete((*userModel)(nil)).
		Filter(bson.M{"_id": userID}).
		Exec(ctx); err != nil {
		return fmt.Errorf("bastion: delete user: %w", err)
	}
	return nil
}

// ──────────────────────────────────────────────────
// User group operations
// ──────────────────────────────────────────────────

func (s *Store) UpsertUserGroup(ctx context.Context, g *subject.UserGroup) error {
	m := userGroupToModel(g)
	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion: upsert user group: %w", err)
	}
	if res.MatchedCount() == 0 {
		if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil && !mongod.IsDuplicateKeyError(err) {
			return fmt.Errorf("bastion: upsert user group: %w", err)
		}
	}
	return nil
}

func (s *Store) GetUserGroup(ctx context.Context, groupID int64) (*subject.UserGroup, error) {
	var m userGroupModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": groupID}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("user group %d: %w", groupID, bastion.ErrNotFound)
		}
		return nil, fmt.Errorf("bastion: get user group: %w", err)
	}
	return userGroupFromModel(&m), nil
}

func (s *Store) DeleteUserGroup(ctx context.Context, groupID int64) error {
	if _, err := s.mdb.NewDelete((*groupMemberModel)(nil)).
		Many().
		Filter(bson.M{"group_id": groupID}).
		Exec(ctx); err != nil {
		return fmt.Errorf("bastion: delete group memberships: %w", err)
	}
	if _, err := s.mdb.NewDelete((*userGroupModel)(nil)).
		Filter(bson.M{"_id": groupID}).
		Exec(ctx); err != nil {
		return fmt.Errorf("bastion: delete user group: %w", err)
	}
	return nil
}

func (s *Store) AddGroupMember(ctx context.Context, groupID, userID int64) error {
	if _, err := s.GetUserGroup(ctx, groupID); err != nil {
		return err
	}
	m := &groupMemberModel{GroupID: groupID, UserID: userID}
	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		if mongod.IsDuplicateKeyError(err) {
			return nil // already a member
		}
		return fmt.Errorf("bastion: add group member: %w", err)
	}
	return nil
}

func (s *Store) RemoveGroupMember(ctx context.Context, groupID, userID int64) error {
	_, err := s.mdb.NewDelete((*groupMemberModel)(nil)).
		Filter(bson.M{"group_id": groupID, "user_id": userID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion: remove group member: %w", err)
	}
	return nil
}

func (s *Store) ListGroupsForUser(ctx context.Context, userID int64) ([]*subject.UserGroup, error) {
	var members []groupMemberModel
	if err := s.mdb.NewFind(&members).
		Filter(bson.M{"user_id": userID}).
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("bastion: list memberships: %w", err)
	}
	if len(members) == 0 {
		return nil, nil
	}
	groupIDs := make([]int64, len(members))
	for i, m := range members {
		groupIDs[i] = m.GroupID
	}

	var models []userGroupModel
	if err := s.mdb.NewFind(&models).
		Filter(bson.M{"_id": bson.M{"$in": groupIDs}, "is_active": true}).
		Sort(bson.D{{Key: "_id", Value: 1}}).
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("bastion: list groups for user: %w", err)
	}
	result := make([]*subject.UserGroup, len(models))
	for i := range models {
		result[i] = userGroupFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) ListGroupMembers(ctx context.Context, groupID int64) ([]*subject.User, error) {
	var members []groupMemberModel
	if err := s.mdb.NewFind(&members).
		Filter(bson.M{"group_id": groupID}).
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("bastion: list group members: %w", err)
	}
	if len(members) == 0 {
		return nil, nil
	}
	userIDs := make([]int64, len(members))
	for i, m := range members {
		userIDs[i] = m.UserID
	}

	var models []userModel
	if err := s.mdb.NewFind(&models).
		Filter(bson.M{"_id": bson.M{"$in": userIDs}}).
		Sort(bson.D{{Key: "_id", Value: 1}}).
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("bastion: list member users: %w", err)
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
	m := repositoryToModel(r)
	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion: upsert repository: %w", err)
	}
	if res.MatchedCount() == 0 {
		if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil && !mongod.IsDuplicateKeyError(err) {
			return fmt.Errorf("bastion: upsert repository: %w", err)
		}
	}
	return nil
}

func (s *Store) GetRepository(ctx context.Context, repoID int64) (*resource.Repository, error) {
	var m repositoryModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": repoID}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("repository %d: %w", repoID, bastion.ErrNotFound)
		}
		return nil, fmt.Errorf("bastion: get repository: %w", err)
	}
	return repositoryFromModel(&m), nil
}

func (s *Store) ListRepositories(ctx context.Context, filter *resource.ListFilter) ([]*resource.Repository, error) {
	var models []repositoryModel
	f := bson.M{}
	if filter != nil {
		if filter.TenantID != "" {
			f["tenant_id"] = filter.TenantID
		}
		if filter.RepoGroupID != nil {
			f["repo_group_id"] = *filter.RepoGroupID
		}
		if filter.Private != nil {
			f["private"] = *filter.Private
		}
		if filter.Search != "" {
			f["name"] = bson.M{"$regex": filter.Search, "$options": "i"}
		}
	}
	q := s.mdb.NewFind(&models).
		Filter(f).
		Sort(bson.D{{Key: "_id", Value: 1}})
	if filter != nil {
		if filter.Limit > 0 {
			q = q.Limit(int64(filter.Limit))
		}
		if filter.Offset > 0 {
			q = q.Skip(int64(filter.Offset))
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
	_, err := s.mdb.NewDelete((*repositoryModel)(nil)).
		Filter(bson.M{"_id": repoID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion: delete repository: %w", err)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Repo group operations
// ──────────────────────────────────────────────────

func (s *Store) UpsertRepoGroup(ctx context.Context, g *resource.RepoGroup) error {
	m := repoGroupToModel(g)
	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion: upsert repo group: %w", err)
	}
	if res.MatchedCount() == 0 {
		if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil && !mongod.IsDuplicateKeyError(err) {
			return fmt.Errorf("bastion: upsert repo group: %w", err)
		}
	}
	return nil
}

func (s *Store) GetRepoGroup(ctx context.Context, groupID int64) (*resource.RepoGroup, error) {
	var m repoGroupModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": groupID}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("repo group %d: %w", groupID, bastion.ErrNotFound)
		}
		return nil, fmt.Errorf("bastion: get repo group: %w", err)
	}
	return repoGroupFromModel(&m), nil
}

func (s *Store) DeleteRepoGroup(ctx context.Context, groupID int64) error {
	_, err := s.mdb.NewDelete((*repoGroupModel)(nil)).
		Filter(bson.M{"_id": groupID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion: delete repo group: %w", err)
	}
	return nil
}

func (s *Store) ListGroupRepositories(ctx context.Context, groupID int64, recursive bool) ([]*resource.Repository, error) {
	groupIDs := []int64{groupID}
	if recursive {
		subs, err := s.ListSubGroups(ctx, groupID, true)
		if err != nil {
			return nil, err
		}
		for _, g := range subs {
			groupIDs = append(groupIDs, g.ID)
		}
	}

	var models []repositoryModel
	if err := s.mdb.NewFind(&models).
		Filter(bson.M{"repo_group_id": bson.M{"$in": groupIDs}}).
		Sort(bson.D{{Key: "_id", Value: 1}}).
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("bastion: list group repositories: %w", err)
	}
	result := make([]*resource.Repository, len(models))
	for i := range models {
		result[i] = repositoryFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) ListSubGroups(ctx context.Context, groupID int64, recursive bool) ([]*resource.RepoGroup, error) {
	direct := func(parentIDs []int64) ([]repoGroupModel, error) {
		var models []repoGroupModel
		err := s.mdb.NewFind(&models).
			Filter(bson.M{"parent_id": bson.M{"$in": parentIDs}}).
			Sort(bson.D{{Key: "_id", Value: 1}}).
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("bastion: list sub groups: %w", err)
		}
		return models, nil
	}

	if !recursive {
		models, err := direct([]int64{groupID})
		if err != nil {
			return nil, err
		}
		result := make([]*resource.RepoGroup, len(models))
		for i := range models {
			result[i] = repoGroupFromModel(&models[i])
		}
		return result, nil
	}

	// Breadth-first walk; the group table is a forest, so the frontier
	// always shrinks to empty.
	var result []*resource.RepoGroup
	frontier := []int64{groupID}
	for len(frontier) > 0 {
		models, err := direct(frontier)
		if err != nil {
			return nil, err
		}
		next := frontier[:0:0]
		for i := range models {
			result = append(result, repoGroupFromModel(&models[i]))
			next = append(next, models[i].ID)
		}
		frontier = next
	}
	return result, nil
}

// ──────────────────────────────────────────────────
// Grant operations
// ──────────────────────────────────────────────────

// pairFilter matches the one grant of a (subject, resource) pair.
func pairFilter(tenantID string, key grant.Key) bson.M {
	return bson.M{
		"tenant_id":     tenantID,
		"subject_kind":  key.SubjectKind,
		"subject_id":    key.SubjectID,
		"resource_kind": key.ResourceKind,
		"resource_id":   key.ResourceID,
	}
}

func (s *Store) UpsertGrant(ctx context.Context, g *grant.Grant) error {
	t := now()

	// An existing pair keeps its id and created_at across permission
	// replacements.
	var existing grantModel
	err := s.mdb.NewFind(&existing).
		Filter(pairFilter(g.TenantID, g.Key())).
		Scan(ctx)
	switch {
	case err == nil:
		gid, _ := id.ParseGrantID(existing.ID) //nolint:errcheck // stored IDs are always valid
		g.ID = gid
		g.CreatedAt = existing.CreatedAt
		g.UpdatedAt = t
		m := grantToModel(g)
		if _, err := s.mdb.NewUpdate(m).Filter(bson.M{"_id": m.ID}).Exec(ctx); err != nil {
			return fmt.Errorf("bastion: upsert grant: %w", err)
		}
		return nil
	case isNoDocuments(err):
		if g.ID.IsNil() {
			g.ID = id.NewGrantID()
		}
		if g.CreatedAt.IsZero() {
			g.CreatedAt = t
		}
		g.UpdatedAt = t
		m := grantToModel(g)
		if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
			return fmt.Errorf("bastion: upsert grant: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("bastion: upsert grant lookup: %w", err)
	}
}

func (s *Store) RemoveGrant(ctx context.Context, tenantID string, key grant.Key) error {
	_, err := s.mdb.NewDelete((*grantModel)(nil)).
		Filter(pairFilter(tenantID, key)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion: remove grant: %w", err)
	}
	return nil
}

func (s *Store) GetGrant(ctx context.Context, tenantID string, key grant.Key) (*grant.Grant, error) {
	var m grantModel
	err := s.mdb.NewFind(&m).
		Filter(pairFilter(tenantID, key)).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("grant for %s %d on %s %d: %w",
				key.SubjectKind, key.SubjectID, key.ResourceKind, key.ResourceID, bastion.ErrNotFound)
		}
		return nil, fmt.Errorf("bastion: get grant: %w", err)
	}
	return grantFromModel(&m), nil
}

func (s *Store) GrantsForSubject(ctx context.Context, tenantID, subjectKind string, subjectID int64, resourceKind string) ([]*grant.Grant, error) {
	var models []grantModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{
			"tenant_id":     tenantID,
			"subject_kind":  subjectKind,
			"subject_id":    subjectID,
			"resource_kind": resourceKind,
		}).
		Sort(bson.D{{Key: "resource_id", Value: 1}}).
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
	err := s.mdb.NewFind(&models).
		Filter(bson.M{
			"tenant_id":     tenantID,
			"resource_kind": resourceKind,
			"resource_id":   resourceID,
		}).
		Sort(bson.D{{Key: "subject_kind", Value: 1}, {Key: "subject_id", Value: 1}}).
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
	f := bson.M{}
	if filter != nil {
		if filter.TenantID != "" {
			f["tenant_id"] = filter.TenantID
		}
		if filter.SubjectKind != "" {
			f["subject_kind"] = filter.SubjectKind
		}
		if filter.SubjectID != nil {
			f["subject_id"] = *filter.SubjectID
		}
		if filter.ResourceKind != "" {
			f["resource_kind"] = filter.ResourceKind
		}
		if filter.ResourceID != nil {
			f["resource_id"] = *filter.ResourceID
		}
		if filter.IsDefault != nil {
			f["is_default"] = *filter.IsDefault
		}
	}
	q := s.mdb.NewFind(&models).
		Filter(f).
		Sort(bson.D{{Key: "created_at", Value: 1}})
	if filter != nil {
		if filter.Limit > 0 {
			q = q.Limit(int64(filter.Limit))
		}
		if filter.Offset > 0 {
			q = q.Skip(int64(filter.Offset))
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
	// Every op is validated before any write; after that, failures are
	// I/O only.
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

	for _, op := range ops {
		if op.Kind == grant.OpRemove {
			if err := s.RemoveGrant(ctx, tenantID, op.Key); err != nil {
				return fmt.Errorf("bastion: batch remove grant: %w", err)
			}
			continue
		}
		g := &grant.Grant{
			TenantID:     tenantID,
			SubjectKind:  op.Key.SubjectKind,
			SubjectID:    op.Key.SubjectID,
			ResourceKind: op.Key.ResourceKind,
			ResourceID:   op.Key.ResourceID,
			Permission:   op.Permission,
			GrantedBy:    op.GrantedBy,
		}
		if err := s.UpsertGrant(ctx, g); err != nil {
			return fmt.Errorf("bastion: batch upsert grant: %w", err)
		}
	}
	return nil
}

// ──────────────────────────────────────────────────
// Branch rule operations
// ──────────────────────────────────────────────────

func (s *Store) CreateBranchRule(ctx context.Context, r *branchrule.Rule) error {
	m := branchRuleToModel(r)
	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("bastion: create branch rule: %w", err)
	}
	return nil
}

func (s *Store) UpdateBranchRule(ctx context.Context, r *branchrule.Rule) error {
	m := branchRuleToModel(r)
	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion: update branch rule: %w", err)
	}
	if res.MatchedCount() == 0 {
		return fmt.Errorf("branch rule %s: %w", r.ID, bastion.ErrNotFound)
	}
	return nil
}

func (s *Store) GetBranchRule(ctx context.Context, ruleID id.BranchRuleID) (*branchrule.Rule, error) {
	var m branchRuleModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": ruleID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("branch rule %s: %w", ruleID, bastion.ErrNotFound)
		}
		return nil, fmt.Errorf("bastion: get branch rule: %w", err)
	}
	return branchRuleFromModel(&m), nil
}

func (s *Store) DeleteBranchRule(ctx context.Context, ruleID id.BranchRuleID) error {
	_, err := s.mdb.NewDelete((*branchRuleModel)(nil)).
		Filter(bson.M{"_id": ruleID.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion: delete branch rule: %w", err)
	}
	return nil
}

func (s *Store) ListBranchRulesForRepo(ctx context.Context, tenantID string, repoID int64) ([]*branchrule.Rule, error) {
	var models []branchRuleModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{"tenant_id": tenantID, "repo_id": repoID}).
		Sort(bson.D{{Key: "created_at", Value: 1}}).
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
	f := bson.M{}
	if filter != nil {
		if filter.TenantID != "" {
			f["tenant_id"] = filter.TenantID
		}
		if filter.RepoID != nil {
			f["repo_id"] = *filter.RepoID
		}
		if filter.SubjectKind != "" {
			f["subject_kind"] = filter.SubjectKind
		}
		if filter.SubjectID != nil {
			f["subject_id"] = *filter.SubjectID
		}
	}
	q := s.mdb.NewFind(&models).
		Filter(f).
		Sort(bson.D{{Key: "created_at", Value: 1}})
	if filter != nil {
		if filter.Limit > 0 {
			q = q.Limit(int64(filter.Limit))
		}
		if filter.Offset > 0 {
			q = q.Skip(int64(filter.Offset))
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
		r.CreatedAt = now()
	}
	m := ipRangeToModel(r)
	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("bastion: create ip range: %w", err)
	}
	return nil
}

func (s *Store) GetIPRange(ctx context.Context, rangeID id.IPRangeID) (*iprange.Range, error) {
	var m ipRangeModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": rangeID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("ip range %s: %w", rangeID, bastion.ErrNotFound)
		}
		return nil, fmt.Errorf("bastion: get ip range: %w", err)
	}
	return ipRangeFromModel(&m), nil
}

func (s *Store) DeleteIPRange(ctx context.Context, rangeID id.IPRangeID) error {
	_, err := s.mdb.NewDelete((*ipRangeModel)(nil)).
		Filter(bson.M{"_id": rangeID.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion: delete ip range: %w", err)
	}
	return nil
}

func (s *Store) ListIPRangesForUser(ctx context.Context, tenantID string, userID int64) ([]*iprange.Range, error) {
	var models []ipRangeModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{"tenant_id": tenantID, "user_id": userID}).
		Sort(bson.D{{Key: "created_at", Value: 1}}).
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

// auditFilter translates a query filter into a Mongo filter document.
func auditFilter(filter *auditlog.QueryFilter) bson.M {
	f := bson.M{}
	if filter == nil {
		return f
	}
	if filter.TenantID != "" {
		f["tenant_id"] = filter.TenantID
	}
	if filter.Action != "" {
		f["action"] = filter.Action
	}
	if filter.UserID != nil {
		f["user_id"] = *filter.UserID
	}
	if filter.Username != "" {
		f["username"] = filter.Username
	}
	if filter.RepositoryID != nil {
		f["repository_id"] = *filter.RepositoryID
	}
	created := bson.M{}
	if filter.After != nil {
		created["$gte"] = *filter.After
	}
	if filter.Before != nil {
		created["$lt"] = *filter.Before
	}
	if len(created) > 0 {
		f["created_at"] = created
	}
	return f
}

func (s *Store) CreateAuditEntry(ctx context.Context, e *auditlog.Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now()
	}
	m := auditEntryToModel(e)
	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("bastion: create audit entry: %w", err)
	}
	return nil
}

func (s *Store) GetAuditEntry(ctx context.Context, entryID id.AuditEntryID) (*auditlog.Entry, error) {
	var m auditEntryModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": entryID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("audit entry %s: %w", entryID, bastion.ErrNotFound)
		}
		return nil, fmt.Errorf("bastion: get audit entry: %w", err)
	}
	return auditEntryFromModel(&m), nil
}

func (s *Store) ListAuditEntries(ctx context.Context, filter *auditlog.QueryFilter) ([]*auditlog.Entry, error) {
	var models []auditEntryModel
	q := s.mdb.NewFind(&models).
		Filter(auditFilter(filter)).
		Sort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	if filter != nil {
		if filter.Limit > 0 {
			q = q.Limit(int64(filter.Limit))
		}
		if filter.Offset > 0 {
			q = q.Skip(int64(filter.Offset))
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("bastion: list audit entries: %w", err)
	}
	result := make([]*auditlog.Entry, len(models))
	for i := range models {
		result[i] = auditEntryFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) CountAuditEntries(ctx context.Context, filter *auditlog.QueryFilter) (int64, error) {
	count, err := s.mdb.NewFind((*auditEntryModel)(nil)).
		Filter(auditFilter(filter)).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("bastion: count audit entries: %w", err)
	}
	return count, nil
}

func (s *Store) PurgeAuditEntries(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.mdb.NewDelete((*auditEntryModel)(nil)).
		Many().
		Filter(bson.M{"created_at": bson.M{"$lt": before}}).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("bastion: purge audit entries: %w", err)
	}
	return res.DeletedCount(), nil
}
