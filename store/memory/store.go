// Package memory provides an in-memory implementation of the Bastion
// composite store. It is intended for testing and development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

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

// Store is a thread-safe in-memory store for all Bastion entities.
type Store struct {
	mu sync.RWMutex

	users        map[int64]*subject.User
	userGroups   map[int64]*subject.UserGroup
	groupMembers map[int64]map[int64]struct{} // groupID -> set of userIDs
	repos        map[int64]*resource.Repository
	repoGroups   map[int64]*resource.RepoGroup
	grants       map[string]*grant.Grant // pair key -> grant
	branchRules  map[string]*branchrule.Rule
	ipRanges     map[string]*iprange.Range
	auditEntries []*auditlog.Entry
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		users:        make(map[int64]*subject.User),
		userGroups:   make(map[int64]*subject.UserGroup),
		groupMembers: make(map[int64]map[int64]struct{}),
		repos:        make(map[int64]*resource.Repository),
		repoGroups:   make(map[int64]*resource.RepoGroup),
		grants:       make(map[string]*grant.Grant),
		branchRules:  make(map[string]*branchrule.Rule),
		ipRanges:     make(map[string]*iprange.Range),
	}
}

// Migrate is a no-op for the memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping is a no-op for the memory store.
func (s *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (s *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Subject Store
// ──────────────────────────────────────────────────

func (s *Store) UpsertUser(_ context.Context, u *subject.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = copyUser(u)
	return nil
}

func (s *Store) GetUser(_ context.Context, userID int64) (*subject.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", userID, bastion.ErrNotFound)
	}
	return copyUser(u), nil
}

func (s *Store) GetUserByUsername(_ context.Context, tenantID, username string) (*subject.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.TenantID == tenantID && u.Username == username {
			return copyUser(u), nil
		}
	}
	return nil, fmt.Errorf("user %q: %w", username, bastion.ErrNotFound)
}

func (s *Store) GetDefaultUser(ctx context.Context, tenantID string) (*subject.User, error) {
	return s.GetUserByUsername(ctx, tenantID, subject.DefaultUsername)
}

func (s *Store) ListUsers(_ context.Context, filter *subject.ListFilter) ([]*subject.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*subject.User, 0, len(s.users))
	for _, u := range s.users {
		if filter != nil {
			if filter.TenantID != "" && u.TenantID != filter.TenantID {
				continue
			}
			if filter.IsAdmin != nil && u.IsAdmin != *filter.IsAdmin {
				continue
			}
			if filter.IsActive != nil && u.IsActive != *filter.IsActive {
				continue
			}
			if filter.Search != "" && !strings.Contains(strings.ToLower(u.Username), strings.ToLower(filter.Search)) {
				continue
			}
		}
		result = append(result, copyUser(u))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	var limit, offset int
	if filter != nil {
		limit, offset = filter.Limit, filter.Offset
	}
	return paginate(result, limit, offset), nil
}

func (s *Store) DeleteUser(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, userID)
	for _, members := range s.groupMembers {
		delete(members, userID)
	}
	return nil
}

func (s *Store) UpsertUserGroup(_ context.Context, g *subject.UserGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userGroups[g.ID] = copyUserGroup(g)
	return nil
}

func (s *Store) GetUserGroup(_ context.Context, groupID int64) (*subject.UserGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.userGroups[groupID]
	if !ok {
		return nil, fmt.Errorf("user group %d: %w", groupID, bastion.ErrNotFound)
	}
	return copyUserGroup(g), nil
}

func (s *Store) DeleteUserGroup(_ context.Context, groupID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.userGroups, groupID)
	delete(s.groupMembers, groupID)
	return nil
}

func (s *Store) AddGroupMember(_ context.Context, groupID, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.userGroups[groupID]; !ok {
		return fmt.Errorf("user group %d: %w", groupID, bastion.ErrNotFound)
	}
	if s.groupMembers[groupID] == nil {
		s.groupMembers[groupID] = make(map[int64]struct{})
	}
	s.groupMembers[groupID][userID] = struct{}{}
	return nil
}

func (s *Store) RemoveGroupMember(_ context.Context, groupID, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if members, ok := s.groupMembers[groupID]; ok {
		delete(members, userID)
	}
	return nil
}

func (s *Store) ListGroupsForUser(_ context.Context, userID int64) ([]*subject.UserGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*subject.UserGroup
	for groupID, members := range s.groupMembers {
		if _, ok := members[userID]; !ok {
			continue
		}
		if g, ok := s.userGroups[groupID]; ok {
			result = append(result, copyUserGroup(g))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *Store) ListGroupMembers(_ context.Context, groupID int64) ([]*subject.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*subject.User
	for userID := range s.groupMembers[groupID] {
		if u, ok := s.users[userID]; ok {
			result = append(result, copyUser(u))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// ──────────────────────────────────────────────────
// Resource Store
// ──────────────────────────────────────────────────

func (s *Store) UpsertRepository(_ context.Context, r *resource.Repository) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.repos[r.ID] = copyRepo(r)
	return nil
}

func (s *Store) GetRepository(_ context.Context, repoID int64) (*resource.Repository, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.repos[repoID]
	if !ok {
		return nil, fmt.Errorf("repository %d: %w", repoID, bastion.ErrNotFound)
	}
	return copyRepo(r), nil
}

func (s *Store) ListRepositories(_ context.Context, filter *resource.ListFilter) ([]*resource.Repository, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*resource.Repository, 0, len(s.repos))
	for _, r := range s.repos {
		if filter != nil {
			if filter.TenantID != "" && r.TenantID != filter.TenantID {
				continue
			}
			if filter.RepoGroupID != nil && (r.RepoGroupID == nil || *r.RepoGroupID != *filter.RepoGroupID) {
				continue
			}
			if filter.Private != nil && r.Private != *filter.Private {
				continue
			}
			if filter.Search != "" && !strings.Contains(strings.ToLower(r.Name), strings.ToLower(filter.Search)) {
				continue
			}
		}
		result = append(result, copyRepo(r))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	var limit, offset int
	if filter != nil {
		limit, offset = filter.Limit, filter.Offset
	}
	return paginate(result, limit, offset), nil
}

func (s *Store) DeleteRepository(_ context.Context, repoID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.repos, repoID)
	return nil
}

func (s *Store) UpsertRepoGroup(_ context.Context, g *resource.RepoGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.repoGroups[g.ID] = copyRepoGroup(g)
	return nil
}

func (s *Store) GetRepoGroup(_ context.Context, groupID int64) (*resource.RepoGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.repoGroups[groupID]
	if !ok {
		return nil, fmt.Errorf("repo group %d: %w", groupID, bastion.ErrNotFound)
	}
	return copyRepoGroup(g), nil
}

func (s *Store) DeleteRepoGroup(_ context.Context, groupID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.repoGroups, groupID)
	return nil
}

func (s *Store) ListGroupRepositories(_ context.Context, groupID int64, recursive bool) ([]*resource.Repository, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	groupIDs := map[int64]struct{}{groupID: {}}
	if recursive {
		for _, descID := range s.descendantGroupIDs(groupID) {
			groupIDs[descID] = struct{}{}
		}
	}
	var result []*resource.Repository
	for _, r := range s.repos {
		if r.RepoGroupID == nil {
			continue
		}
		if _, ok := groupIDs[*r.RepoGroupID]; ok {
			result = append(result, copyRepo(r))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *Store) ListSubGroups(_ context.Context, groupID int64, recursive bool) ([]*resource.RepoGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []int64
	if recursive {
		ids = s.descendantGroupIDs(groupID)
	} else {
		for _, g := range s.repoGroups {
			if g.ParentID != nil && *g.ParentID == groupID {
				ids = append(ids, g.ID)
			}
		}
	}
	result := make([]*resource.RepoGroup, 0, len(ids))
	for _, gid := range ids {
		if g, ok := s.repoGroups[gid]; ok {
			result = append(result, copyRepoGroup(g))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// descendantGroupIDs collects all transitive child group IDs. Callers
// hold the lock.
func (s *Store) descendantGroupIDs(groupID int64) []int64 {
	var result []int64
	queue := []int64{groupID}
	seen := map[int64]struct{}{groupID: {}}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, g := range s.repoGroups {
			if g.ParentID == nil || *g.ParentID != current {
				continue
			}
			if _, ok := seen[g.ID]; ok {
				continue
			}
			seen[g.ID] = struct{}{}
			result = append(result, g.ID)
			queue = append(queue, g.ID)
		}
	}
	return result
}

// ──────────────────────────────────────────────────
// Grant Store
// ──────────────────────────────────────────────────

func grantKey(tenantID string, k grant.Key) string {
	return fmt.Sprintf("%s|%s|%d|%s|%d", tenantID, k.SubjectKind, k.SubjectID, k.ResourceKind, k.ResourceID)
}

func (s *Store) UpsertGrant(_ context.Context, g *grant.Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertGrantLocked(g.TenantID, g.Key(), g.Permission, g.GrantedBy, g.IsDefault)
	return nil
}

func (s *Store) RemoveGrant(_ context.Context, tenantID string, key grant.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.grants, grantKey(tenantID, key))
	return nil
}

func (s *Store) GetGrant(_ context.Context, tenantID string, key grant.Key) (*grant.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.grants[grantKey(tenantID, key)]
	if !ok {
		return nil, fmt.Errorf("grant %s/%d on %s/%d: %w",
			key.SubjectKind, key.SubjectID, key.ResourceKind, key.ResourceID, bastion.ErrNotFound)
	}
	return copyGrant(g), nil
}

func (s *Store) GrantsForSubject(_ context.Context, tenantID, subjectKind string, subjectID int64, resourceKind string) ([]*grant.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*grant.Grant
	for _, g := range s.grants {
		if g.TenantID != tenantID || g.SubjectKind != subjectKind || g.SubjectID != subjectID {
			continue
		}
		if resourceKind != "" && g.ResourceKind != resourceKind {
			continue
		}
		result = append(result, copyGrant(g))
	}
	return result, nil
}

func (s *Store) GrantsForResource(_ context.Context, tenantID, resourceKind string, resourceID int64) ([]*grant.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*grant.Grant
	for _, g := range s.grants {
		if g.TenantID == tenantID && g.ResourceKind == resourceKind && g.ResourceID == resourceID {
			result = append(result, copyGrant(g))
		}
	}
	return result, nil
}

func (s *Store) ListGrants(_ context.Context, filter *grant.ListFilter) ([]*grant.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*grant.Grant, 0, len(s.grants))
	for _, g := range s.grants {
		if filter != nil {
			if filter.TenantID != "" && g.TenantID != filter.TenantID {
				continue
			}
			if filter.SubjectKind != "" && g.SubjectKind != filter.SubjectKind {
				continue
			}
			if filter.SubjectID != nil && g.SubjectID != *filter.SubjectID {
				continue
			}
			if filter.ResourceKind != "" && g.ResourceKind != filter.ResourceKind {
				continue
			}
			if filter.ResourceID != nil && g.ResourceID != *filter.ResourceID {
				continue
			}
			if filter.IsDefault != nil && g.IsDefault != *filter.IsDefault {
				continue
			}
		}
		result = append(result, copyGrant(g))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID.String() < result[j].ID.String() })
	var limit, offset int
	if filter != nil {
		limit, offset = filter.Limit, filter.Offset
	}
	return paginate(result, limit, offset), nil
}

func (s *Store) ApplyGrantBatch(_ context.Context, tenantID string, ops []grant.Op) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate every op before touching state so a bad op partway
	// through cannot leave the batch half-applied.
	for i, op := range ops {
		switch op.Kind {
		case grant.OpUpsert:
			if op.Permission == "" {
				return fmt.Errorf("batch op %d: empty permission: %w", i, bastion.ErrValidation)
			}
		case grant.OpRemove:
		default:
			return fmt.Errorf("batch op %d: unknown kind %q: %w", i, op.Kind, bastion.ErrValidation)
		}
	}

	for _, op := range ops {
		switch op.Kind {
		case grant.OpUpsert:
			s.upsertGrantLocked(tenantID, op.Key, op.Permission, op.GrantedBy, false)
		case grant.OpRemove:
			delete(s.grants, grantKey(tenantID, op.Key))
		}
	}
	return nil
}

// upsertGrantLocked replaces the grant for the pair, preserving the ID
// and creation time of an existing row. Callers hold the lock.
func (s *Store) upsertGrantLocked(tenantID string, key grant.Key, permission, grantedBy string, isDefault bool) {
	k := grantKey(tenantID, key)
	now := time.Now().UTC()
	if existing, ok := s.grants[k]; ok {
		existing.Permission = permission
		existing.GrantedBy = grantedBy
		existing.IsDefault = isDefault
		existing.UpdatedAt = now
		return
	}
	s.grants[k] = &grant.Grant{
		ID:           id.NewGrantID(),
		TenantID:     tenantID,
		SubjectKind:  key.SubjectKind,
		SubjectID:    key.SubjectID,
		ResourceKind: key.ResourceKind,
		ResourceID:   key.ResourceID,
		Permission:   permission,
		IsDefault:    isDefault,
		GrantedBy:    grantedBy,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// ──────────────────────────────────────────────────
// Branch Rule Store
// ──────────────────────────────────────────────────

func (s *Store) CreateBranchRule(_ context.Context, r *branchrule.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.branchRules[r.ID.String()] = copyRule(r)
	return nil
}

func (s *Store) UpdateBranchRule(_ context.Context, r *branchrule.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.branchRules[r.ID.String()]; !ok {
		return fmt.Errorf("branch rule %s: %w", r.ID, bastion.ErrNotFound)
	}
	s.branchRules[r.ID.String()] = copyRule(r)
	return nil
}

func (s *Store) GetBranchRule(_ context.Context, ruleID id.BranchRuleID) (*branchrule.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.branchRules[ruleID.String()]
	if !ok {
		return nil, fmt.Errorf("branch rule %s: %w", ruleID, bastion.ErrNotFound)
	}
	return copyRule(r), nil
}

func (s *Store) DeleteBranchRule(_ context.Context, ruleID id.BranchRuleID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.branchRules, ruleID.String())
	return nil
}

func (s *Store) ListBranchRulesForRepo(_ context.Context, tenantID string, repoID int64) ([]*branchrule.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*branchrule.Rule
	for _, r := range s.branchRules {
		if r.TenantID == tenantID && r.RepoID == repoID {
			result = append(result, copyRule(r))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID.String() < result[j].ID.String() })
	return result, nil
}

func (s *Store) ListBranchRules(_ context.Context, filter *branchrule.ListFilter) ([]*branchrule.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*branchrule.Rule, 0, len(s.branchRules))
	for _, r := range s.branchRules {
		if filter != nil {
			if filter.TenantID != "" && r.TenantID != filter.TenantID {
				continue
			}
			if filter.RepoID != nil && r.RepoID != *filter.RepoID {
				continue
			}
			if filter.SubjectKind != "" && r.SubjectKind != filter.SubjectKind {
				continue
			}
			if filter.SubjectID != nil && r.SubjectID != *filter.SubjectID {
				continue
			}
		}
		result = append(result, copyRule(r))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID.String() < result[j].ID.String() })
	var limit, offset int
	if filter != nil {
		limit, offset = filter.Limit, filter.Offset
	}
	return paginate(result, limit, offset), nil
}

// ──────────────────────────────────────────────────
// IP Range Store
// ──────────────────────────────────────────────────

func (s *Store) CreateIPRange(_ context.Context, r *iprange.Range) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ipRanges[r.ID.String()] = copyRange(r)
	return nil
}

func (s *Store) GetIPRange(_ context.Context, rangeID id.IPRangeID) (*iprange.Range, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.ipRanges[rangeID.String()]
	if !ok {
		return nil, fmt.Errorf("ip range %s: %w", rangeID, bastion.ErrNotFound)
	}
	return copyRange(r), nil
}

func (s *Store) DeleteIPRange(_ context.Context, rangeID id.IPRangeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ipRanges, rangeID.String())
	return nil
}

func (s *Store) ListIPRangesForUser(_ context.Context, tenantID string, userID int64) ([]*iprange.Range, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*iprange.Range
	for _, r := range s.ipRanges {
		if r.TenantID == tenantID && r.UserID == userID {
			result = append(result, copyRange(r))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID.String() < result[j].ID.String() })
	return result, nil
}

// ──────────────────────────────────────────────────
// Audit Log Store
// ──────────────────────────────────────────────────

func (s *Store) CreateAuditEntry(_ context.Context, e *auditlog.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auditEntries = append(s.auditEntries, copyEntry(e))
	return nil
}

func (s *Store) GetAuditEntry(_ context.Context, entryID id.AuditEntryID) (*auditlog.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.auditEntries {
		if e.ID == entryID {
			return copyEntry(e), nil
		}
	}
	return nil, fmt.Errorf("audit entry %s: %w", entryID, bastion.ErrNotFound)
}

func (s *Store) ListAuditEntries(_ context.Context, filter *auditlog.QueryFilter) ([]*auditlog.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := s.filterEntriesLocked(filter)
	// Newest first.
	sort.SliceStable(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	var limit, offset int
	if filter != nil {
		limit, offset = filter.Limit, filter.Offset
	}
	return paginate(result, limit, offset), nil
}

func (s *Store) CountAuditEntries(_ context.Context, filter *auditlog.QueryFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.filterEntriesLocked(filter))), nil
}

func (s *Store) PurgeAuditEntries(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.auditEntries[:0]
	var purged int64
	for _, e := range s.auditEntries {
		if e.CreatedAt.Before(before) {
			purged++
			continue
		}
		kept = append(kept, e)
	}
	s.auditEntries = kept
	return purged, nil
}

func (s *Store) filterEntriesLocked(filter *auditlog.QueryFilter) []*auditlog.Entry {
	result := make([]*auditlog.Entry, 0, len(s.auditEntries))
	for _, e := range s.auditEntries {
		if filter != nil {
			if filter.TenantID != "" && e.TenantID != filter.TenantID {
				continue
			}
			if filter.Action != "" && e.Action != filter.Action {
				continue
			}
			if filter.UserID != nil && (e.UserID == nil || *e.UserID != *filter.UserID) {
				continue
			}
			if filter.Username != "" && e.Username != filter.Username {
				continue
			}
			if filter.RepositoryID != nil && (e.RepositoryID == nil || *e.RepositoryID != *filter.RepositoryID) {
				continue
			}
			if filter.After != nil && !e.CreatedAt.After(*filter.After) {
				continue
			}
			if filter.Before != nil && !e.CreatedAt.Before(*filter.Before) {
				continue
			}
		}
		result = append(result, copyEntry(e))
	}
	return result
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func copyUser(u *subject.User) *subject.User {
	c := *u
	return &c
}

func copyUserGroup(g *subject.UserGroup) *subject.UserGroup {
	c := *g
	return &c
}

func copyRepo(r *resource.Repository) *resource.Repository {
	c := *r
	if r.RepoGroupID != nil {
		gid := *r.RepoGroupID
		c.RepoGroupID = &gid
	}
	return &c
}

func copyRepoGroup(g *resource.RepoGroup) *resource.RepoGroup {
	c := *g
	if g.ParentID != nil {
		pid := *g.ParentID
		c.ParentID = &pid
	}
	return &c
}

func copyGrant(g *grant.Grant) *grant.Grant {
	c := *g
	return &c
}

func copyRule(r *branchrule.Rule) *branchrule.Rule {
	c := *r
	return &c
}

func copyRange(r *iprange.Range) *iprange.Range {
	c := *r
	return &c
}

func copyEntry(e *auditlog.Entry) *auditlog.Entry {
	c := *e
	if e.ActionData != nil {
		c.ActionData = make(map[string]any, len(e.ActionData))
		for k, v := range e.ActionData {
			c.ActionData[k] = v
		}
	}
	if e.UserID != nil {
		uid := *e.UserID
		c.UserID = &uid
	}
	if e.RepositoryID != nil {
		rid := *e.RepositoryID
		c.RepositoryID = &rid
	}
	return &c
}

func paginate[T any](items []*T, limit, offset int) []*T {
	if offset > 0 && offset < len(items) {
		items = items[offset:]
	} else if offset >= len(items) && offset > 0 {
		return nil
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
