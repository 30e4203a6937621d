package bastion

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/bastion/grant"
	"github.com/xraph/bastion/resource"
	"github.com/xraph/bastion/subject"
)

// Resolver computes the effective permission of a subject on a resource.
//
// Candidates are collected in precedence tiers: a direct grant to the
// user, then grants to the user's groups (combined via MAX), then the
// same two lookups repeated up the repo group parent chain nearest
// level first, then the default user's grants when the subject inherits
// them. The first tier that yields any candidate decides the outcome.
type Resolver struct {
	subjects  subject.Store
	resources resource.Store
	grants    grant.Store
}

// NewResolver creates a resolver over the given stores.
func NewResolver(subjects subject.Store, resources resource.Store, grants grant.Store) *Resolver {
	return &Resolver{subjects: subjects, resources: resources, grants: grants}
}

// EffectivePermission resolves the permission level subj holds on res.
// "No permission anywhere" is the none level of the resource kind, not
// an error; errors are reserved for bad references and store failures.
func (r *Resolver) EffectivePermission(ctx context.Context, tenantID string, subj SubjectRef, res ResourceRef) (Level, error) {
	if _, ok := levelScales[res.Kind]; !ok {
		return "", &ValidationError{Field: "resource_kind", Value: string(res.Kind), Detail: "unknown resource kind"}
	}

	switch subj.Kind {
	case SubjectUser:
		return r.resolveForUser(ctx, tenantID, subj.ID, res)
	case SubjectUserGroup:
		return r.resolveForGroup(ctx, tenantID, subj.ID, res)
	default:
		return "", &ValidationError{Field: "subject_kind", Value: string(subj.Kind), Detail: "unknown subject kind"}
	}
}

func (r *Resolver) resolveForUser(ctx context.Context, tenantID string, userID int64, res ResourceRef) (Level, error) {
	user, err := r.subjects.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", &ValidationError{Field: "subject_id", Value: fmt.Sprint(userID), Detail: "no such user"}
		}
		return "", &StoreError{Op: "get user", Err: err}
	}

	// Global admins hold the maximum level everywhere, grants or not.
	if user.IsAdmin {
		return AdminLevel(res.Kind), nil
	}

	groups, err := r.subjects.ListGroupsForUser(ctx, userID)
	if err != nil {
		return "", &StoreError{Op: "list groups for user", Err: err}
	}

	chain, err := r.resourceChain(ctx, tenantID, res)
	if err != nil {
		return "", err
	}

	// The default user is the anonymous baseline; its grants on
	// ancestor groups must never reach a private repository.
	if user.IsDefault() {
		chain, err = r.privateScope(ctx, res, chain)
		if err != nil {
			return "", err
		}
	}

	level, found, err := r.walkChain(ctx, tenantID, SubjectUser, userID, groups, chain, res.Kind)
	if err != nil {
		return "", err
	}
	if found {
		return level, nil
	}

	if user.IsDefault() || !user.InheritDefaultPermissions {
		return NoneLevel(res.Kind), nil
	}

	return r.resolveDefaultFallback(ctx, tenantID, res, chain)
}

// resolveForGroup resolves the permission a user group holds directly;
// groups never inherit from other groups or the default user.
func (r *Resolver) resolveForGroup(ctx context.Context, tenantID string, groupID int64, res ResourceRef) (Level, error) {
	if _, err := r.subjects.GetUserGroup(ctx, groupID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", &ValidationError{Field: "subject_id", Value: fmt.Sprint(groupID), Detail: "no such user group"}
		}
		return "", &StoreError{Op: "get user group", Err: err}
	}

	chain, err := r.resourceChain(ctx, tenantID, res)
	if err != nil {
		return "", err
	}

	level, found, err := r.walkChain(ctx, tenantID, SubjectUserGroup, groupID, nil, chain, res.Kind)
	if err != nil {
		return "", err
	}
	if found {
		return level, nil
	}
	return NoneLevel(res.Kind), nil
}

// resolveDefaultFallback applies the default user's grants as the
// baseline. Private repositories only honor an explicit grant on the
// repository itself; the baseline never walks the parent chain into a
// private repo.
func (r *Resolver) resolveDefaultFallback(ctx context.Context, tenantID string, res ResourceRef, chain []ResourceRef) (Level, error) {
	def, err := r.subjects.GetDefaultUser(ctx, tenantID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return NoneLevel(res.Kind), nil
		}
		return "", &StoreError{Op: "get default user", Err: err}
	}

	chain, err = r.privateScope(ctx, res, chain)
	if err != nil {
		return "", err
	}

	level, found, err := r.walkChain(ctx, tenantID, SubjectUser, def.ID, nil, chain, res.Kind)
	if err != nil {
		return "", err
	}
	if found {
		return level, nil
	}
	return NoneLevel(res.Kind), nil
}

// privateScope truncates the chain to the repository itself when the
// repository is private, so a baseline only applies through an explicit
// grant on the repository.
func (r *Resolver) privateScope(ctx context.Context, res ResourceRef, chain []ResourceRef) ([]ResourceRef, error) {
	if res.Kind != ResourceRepository {
		return chain, nil
	}
	repo, err := r.resources.GetRepository(ctx, res.ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &ValidationError{Field: "resource_id", Value: fmt.Sprint(res.ID), Detail: "no such repository"}
		}
		return nil, &StoreError{Op: "get repository", Err: err}
	}
	if repo.Private {
		return chain[:1], nil
	}
	return chain, nil
}

// resourceChain returns the resource followed by its repo group
// ancestors nearest first. User groups have no chain.
func (r *Resolver) resourceChain(ctx context.Context, _ string, res ResourceRef) ([]ResourceRef, error) {
	chain := []ResourceRef{res}

	var parentID *int64
	switch res.Kind {
	case ResourceRepository:
		repo, err := r.resources.GetRepository(ctx, res.ID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, &ValidationError{Field: "resource_id", Value: fmt.Sprint(res.ID), Detail: "no such repository"}
			}
			return nil, &StoreError{Op: "get repository", Err: err}
		}
		parentID = repo.RepoGroupID
	case ResourceRepoGroup:
		group, err := r.resources.GetRepoGroup(ctx, res.ID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, &ValidationError{Field: "resource_id", Value: fmt.Sprint(res.ID), Detail: "no such repo group"}
			}
			return nil, &StoreError{Op: "get repo group", Err: err}
		}
		parentID = group.ParentID
	case ResourceUserGroup:
		return chain, nil
	}

	seen := map[int64]struct{}{}
	for parentID != nil {
		if _, ok := seen[*parentID]; ok {
			break // Parent cycle; stop walking.
		}
		seen[*parentID] = struct{}{}
		chain = append(chain, ResourceRef{Kind: ResourceRepoGroup, ID: *parentID})

		group, err := r.resources.GetRepoGroup(ctx, *parentID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				break
			}
			return nil, &StoreError{Op: "get repo group", Err: err}
		}
		parentID = group.ParentID
	}
	return chain, nil
}

// walkChain checks each chain link nearest first. Within one link a
// direct grant to the subject beats grants via group membership; group
// grants combine via MAX. The first link with any candidate wins.
func (r *Resolver) walkChain(ctx context.Context, tenantID string, kind SubjectKind, subjectID int64, groups []*subject.UserGroup, chain []ResourceRef, targetKind ResourceKind) (Level, bool, error) {
	for _, link := range chain {
		g, err := r.grants.GetGrant(ctx, tenantID, grant.Key{
			SubjectKind:  string(kind),
			SubjectID:    subjectID,
			ResourceKind: string(link.Kind),
			ResourceID:   link.ID,
		})
		if err != nil && !errors.Is(err, ErrNotFound) {
			return "", false, &StoreError{Op: "get grant", Err: err}
		}
		if g != nil {
			return translateLevel(Level(g.Permission), targetKind), true, nil
		}

		best, found := Level(""), false
		for _, ug := range groups {
			if !ug.IsActive {
				continue
			}
			gg, err := r.grants.GetGrant(ctx, tenantID, grant.Key{
				SubjectKind:  string(SubjectUserGroup),
				SubjectID:    ug.ID,
				ResourceKind: string(link.Kind),
				ResourceID:   link.ID,
			})
			if err != nil && !errors.Is(err, ErrNotFound) {
				return "", false, &StoreError{Op: "get grant", Err: err}
			}
			if gg == nil {
				continue
			}
			candidate := translateLevel(Level(gg.Permission), targetKind)
			if !found || candidate.Rank() > best.Rank() {
				best, found = candidate, true
			}
		}
		if found {
			return best, true, nil
		}
	}
	return "", false, nil
}

// translateLevel maps a level onto the target kind's scale by rank, so
// a group.write grant on an ancestor group reads as repository.write on
// a contained repository. Unknown levels map to none.
func translateLevel(l Level, targetKind ResourceKind) Level {
	scale := levelScales[targetKind]
	rank := l.Rank()
	if rank < 0 {
		return scale[0]
	}
	if rank >= len(scale) {
		rank = len(scale) - 1
	}
	return scale[rank]
}
