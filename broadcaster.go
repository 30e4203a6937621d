package bastion

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/xraph/bastion/grant"
	"github.com/xraph/bastion/resource"
	"github.com/xraph/bastion/subject"
)

// RecursiveMode controls how far a repo group permission change cascades.
type RecursiveMode string

const (
	// RecursiveNone applies the change to the resource only.
	RecursiveNone RecursiveMode = "none"

	// RecursiveRepos cascades to every repository in the subtree.
	RecursiveRepos RecursiveMode = "repos"

	// RecursiveGroups cascades to every subgroup in the subtree.
	RecursiveGroups RecursiveMode = "groups"

	// RecursiveAll cascades to every repository and subgroup.
	RecursiveAll RecursiveMode = "all"
)

// ChangeEntry is one requested permission change: a subject and the
// level it should hold (ignored for deletions).
type ChangeEntry struct {
	SubjectKind SubjectKind `json:"subject_kind"`
	SubjectID   int64       `json:"subject_id"`
	Permission  string      `json:"permission,omitempty"`
}

// ChangeRequest is the input to a bulk permission mutation.
type ChangeRequest struct {
	Resource  ResourceRef   `json:"resource"`
	Additions []ChangeEntry `json:"additions,omitempty"`
	Updates   []ChangeEntry `json:"updates,omitempty"`
	Deletions []ChangeEntry `json:"deletions,omitempty"`
	Recursive RecursiveMode `json:"recursive,omitempty"`
}

// ChangeItem describes one applied change in a ChangeSet.
type ChangeItem struct {
	Type    string `json:"type"` // subject kind
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	NewPerm string `json:"new_perm,omitempty"`
}

// ChangeSet is the outcome of a bulk permission mutation, including the
// full set of user IDs whose effective permissions may have changed;
// group subjects are expanded to their members.
type ChangeSet struct {
	Added           []ChangeItem `json:"added"`
	Updated         []ChangeItem `json:"updated"`
	Deleted         []ChangeItem `json:"deleted"`
	AffectedUserIDs []int64      `json:"affected_user_ids"`
}

// Broadcaster applies bulk permission changes. The whole change,
// including every cascaded descendant, is handed to the grant store as
// one all-or-nothing batch, so a failure partway leaves nothing
// half-applied.
type Broadcaster struct {
	subjects  subject.Store
	resources resource.Store
	grants    grant.Store
	resolver  *Resolver
}

// NewBroadcaster creates a broadcaster over the given stores.
func NewBroadcaster(subjects subject.Store, resources resource.Store, grants grant.Store, resolver *Resolver) *Broadcaster {
	return &Broadcaster{subjects: subjects, resources: resources, grants: grants, resolver: resolver}
}

// ApplyChanges validates and applies the request for the given actor.
// Validation failures and the self-lockout safety rule reject the whole
// request before any write.
func (b *Broadcaster) ApplyChanges(ctx context.Context, tenantID string, actor ActorContext, req *ChangeRequest) (*ChangeSet, error) {
	if _, ok := levelScales[req.Resource.Kind]; !ok {
		return nil, &ValidationError{Field: "resource_kind", Value: string(req.Resource.Kind), Detail: "unknown resource kind"}
	}

	if err := b.validateEntries(ctx, req); err != nil {
		return nil, err
	}
	if err := b.checkSelfRevocation(ctx, tenantID, actor, req); err != nil {
		return nil, err
	}

	targets, err := b.cascadeTargets(ctx, req)
	if err != nil {
		return nil, err
	}

	ops := buildOps(req, targets, actor)
	if err := b.grants.ApplyGrantBatch(ctx, tenantID, ops); err != nil {
		if errors.Is(err, ErrValidation) {
			return nil, err
		}
		return nil, &StoreError{Op: "apply grant batch", Err: err}
	}

	return b.buildChangeSet(ctx, req)
}

// validateEntries checks every referenced subject and permission name
// before anything is written.
func (b *Broadcaster) validateEntries(ctx context.Context, req *ChangeRequest) error {
	check := func(entries []ChangeEntry, needsLevel bool) error {
		for _, e := range entries {
			switch e.SubjectKind {
			case SubjectUser:
				if _, err := b.subjects.GetUser(ctx, e.SubjectID); err != nil {
					if errors.Is(err, ErrNotFound) {
						return &ValidationError{Field: "subject_id", Value: fmt.Sprint(e.SubjectID), Detail: "no such user"}
					}
					return &StoreError{Op: "get user", Err: err}
				}
			case SubjectUserGroup:
				if _, err := b.subjects.GetUserGroup(ctx, e.SubjectID); err != nil {
					if errors.Is(err, ErrNotFound) {
						return &ValidationError{Field: "subject_id", Value: fmt.Sprint(e.SubjectID), Detail: "no such user group"}
					}
					return &StoreError{Op: "get user group", Err: err}
				}
			default:
				return &ValidationError{Field: "subject_kind", Value: string(e.SubjectKind), Detail: "unknown subject kind"}
			}
			if needsLevel {
				if _, err := ParseLevel(req.Resource.Kind, e.Permission); err != nil {
					return err
				}
			}
		}
		return nil
	}

	if err := check(req.Additions, true); err != nil {
		return err
	}
	if err := check(req.Updates, true); err != nil {
		return err
	}
	return check(req.Deletions, false)
}

// checkSelfRevocation enforces the lockout safety rule: a non-admin
// actor may not remove or reduce their own effective admin permission
// on the resource being modified.
func (b *Broadcaster) checkSelfRevocation(ctx context.Context, tenantID string, actor ActorContext, req *ChangeRequest) error {
	if actor.UserID == nil {
		return nil
	}
	actorID := *actor.UserID

	user, err := b.subjects.GetUser(ctx, actorID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return &ValidationError{Field: "actor", Value: fmt.Sprint(actorID), Detail: "no such user"}
		}
		return &StoreError{Op: "get user", Err: err}
	}
	if user.IsAdmin {
		return nil
	}

	touchesActor := func(e ChangeEntry) bool {
		return e.SubjectKind == SubjectUser && e.SubjectID == actorID
	}
	adminRank := AdminLevel(req.Resource.Kind).Rank()

	// Additions and updates both upsert, so either can shadow the
	// actor's effective admin with a weaker direct grant.
	demotes := false
	for _, e := range req.Additions {
		if touchesActor(e) && Level(e.Permission).Rank() < adminRank {
			demotes = true
		}
	}
	for _, e := range req.Updates {
		if touchesActor(e) && Level(e.Permission).Rank() < adminRank {
			demotes = true
		}
	}
	if demotes {
		current, err := b.resolver.EffectivePermission(ctx, tenantID, SubjectRef{Kind: SubjectUser, ID: actorID}, req.Resource)
		if err != nil {
			return err
		}
		if current.Rank() == adminRank {
			return &SelfRevocationError{ActorUserID: actorID, Resource: req.Resource}
		}
	}

	removes := false
	for _, e := range req.Deletions {
		if touchesActor(e) {
			removes = true
		}
	}
	if !removes {
		return nil
	}

	// A deletion only locks the actor out when the removed direct grant
	// is the admin grant itself. Admin held through a group survives
	// removing a direct sub-admin grant.
	g, err := b.grants.GetGrant(ctx, tenantID, grant.Key{
		SubjectKind:  string(SubjectUser),
		SubjectID:    actorID,
		ResourceKind: string(req.Resource.Kind),
		ResourceID:   req.Resource.ID,
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return &StoreError{Op: "get grant", Err: err}
	}
	if translateLevel(Level(g.Permission), req.Resource.Kind).Rank() == adminRank {
		return &SelfRevocationError{ActorUserID: actorID, Resource: req.Resource}
	}
	return nil
}

// cascadeTargets returns the resource itself plus every descendant the
// recursive mode selects. Descendant listings come from the resource
// store in full; any store failure fails the whole call.
func (b *Broadcaster) cascadeTargets(ctx context.Context, req *ChangeRequest) ([]ResourceRef, error) {
	targets := []ResourceRef{req.Resource}
	if req.Recursive == RecursiveNone || req.Recursive == "" || req.Resource.Kind != ResourceRepoGroup {
		return targets, nil
	}

	if req.Recursive == RecursiveGroups || req.Recursive == RecursiveAll {
		subGroups, err := b.resources.ListSubGroups(ctx, req.Resource.ID, true)
		if err != nil {
			return nil, &StoreError{Op: "list subgroups", Err: err}
		}
		for _, g := range subGroups {
			targets = append(targets, ResourceRef{Kind: ResourceRepoGroup, ID: g.ID})
		}
	}
	if req.Recursive == RecursiveRepos || req.Recursive == RecursiveAll {
		repos, err := b.resources.ListGroupRepositories(ctx, req.Resource.ID, true)
		if err != nil {
			return nil, &StoreError{Op: "list group repositories", Err: err}
		}
		for _, r := range repos {
			targets = append(targets, ResourceRef{Kind: ResourceRepository, ID: r.ID})
		}
	}
	return targets, nil
}

// buildOps expands the request across all cascade targets into one
// grant batch. Levels are translated by rank onto each target's scale,
// so group.write cascades to repository.write on contained repos.
func buildOps(req *ChangeRequest, targets []ResourceRef, actor ActorContext) []grant.Op {
	ops := make([]grant.Op, 0, (len(req.Additions)+len(req.Updates)+len(req.Deletions))*len(targets))
	for _, target := range targets {
		for _, e := range req.Additions {
			ops = append(ops, upsertOp(e, target, actor))
		}
		for _, e := range req.Updates {
			ops = append(ops, upsertOp(e, target, actor))
		}
		for _, e := range req.Deletions {
			ops = append(ops, grant.Op{
				Kind: grant.OpRemove,
				Key:  opKey(e, target),
			})
		}
	}
	return ops
}

func upsertOp(e ChangeEntry, target ResourceRef, actor ActorContext) grant.Op {
	return grant.Op{
		Kind:       grant.OpUpsert,
		Key:        opKey(e, target),
		Permission: string(translateLevel(Level(e.Permission), target.Kind)),
		GrantedBy:  actor.Username,
	}
}

func opKey(e ChangeEntry, target ResourceRef) grant.Key {
	return grant.Key{
		SubjectKind:  string(e.SubjectKind),
		SubjectID:    e.SubjectID,
		ResourceKind: string(target.Kind),
		ResourceID:   target.ID,
	}
}

// buildChangeSet assembles the result items and the expanded
// affected-user set.
func (b *Broadcaster) buildChangeSet(ctx context.Context, req *ChangeRequest) (*ChangeSet, error) {
	cs := &ChangeSet{
		Added:   []ChangeItem{},
		Updated: []ChangeItem{},
		Deleted: []ChangeItem{},
	}
	affected := make(map[int64]struct{})

	collect := func(entries []ChangeEntry, out *[]ChangeItem, withPerm bool) error {
		for _, e := range entries {
			item := ChangeItem{Type: string(e.SubjectKind), ID: e.SubjectID}
			if withPerm {
				item.NewPerm = e.Permission
			}

			switch e.SubjectKind {
			case SubjectUser:
				u, err := b.subjects.GetUser(ctx, e.SubjectID)
				if err != nil {
					return &StoreError{Op: "get user", Err: err}
				}
				item.Name = u.Username
				affected[u.ID] = struct{}{}
			case SubjectUserGroup:
				g, err := b.subjects.GetUserGroup(ctx, e.SubjectID)
				if err != nil {
					return &StoreError{Op: "get user group", Err: err}
				}
				item.Name = g.Name
				members, err := b.subjects.ListGroupMembers(ctx, e.SubjectID)
				if err != nil {
					return &StoreError{Op: "list group members", Err: err}
				}
				for _, m := range members {
					affected[m.ID] = struct{}{}
				}
			}
			*out = append(*out, item)
		}
		return nil
	}

	if err := collect(req.Additions, &cs.Added, true); err != nil {
		return nil, err
	}
	if err := collect(req.Updates, &cs.Updated, true); err != nil {
		return nil, err
	}
	if err := collect(req.Deletions, &cs.Deleted, false); err != nil {
		return nil, err
	}

	cs.AffectedUserIDs = make([]int64, 0, len(affected))
	for uid := range affected {
		cs.AffectedUserIDs = append(cs.AffectedUserIDs, uid)
	}
	sort.Slice(cs.AffectedUserIDs, func(i, j int) bool { return cs.AffectedUserIDs[i] < cs.AffectedUserIDs[j] })
	return cs, nil
}
