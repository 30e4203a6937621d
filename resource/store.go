package resource

import "context"

// Store defines persistence operations for repositories and repo groups.
// Descendant listings back the recursive permission cascade, so they must
// be complete: a missing child silently skipped would leave its grants
// untouched.
type Store interface {
	// UpsertRepository creates or replaces a mirrored repository row.
	UpsertRepository(ctx context.Context, r *Repository) error

	// GetRepository retrieves a repository by ID.
	GetRepository(ctx context.Context, repoID int64) (*Repository, error)

	// ListRepositories returns repositories matching the filter.
	ListRepositories(ctx context.Context, filter *ListFilter) ([]*Repository, error)

	// DeleteRepository removes a mirrored repository row.
	DeleteRepository(ctx context.Context, repoID int64) error

	// UpsertRepoGroup creates or replaces a mirrored repo group row.
	UpsertRepoGroup(ctx context.Context, g *RepoGroup) error

	// GetRepoGroup retrieves a repo group by ID.
	GetRepoGroup(ctx context.Context, groupID int64) (*RepoGroup, error)

	// DeleteRepoGroup removes a mirrored repo group row.
	DeleteRepoGroup(ctx context.Context, groupID int64) error

	// ListGroupRepositories returns the repositories directly inside a
	// group, or in its whole subtree when recursive is true.
	ListGroupRepositories(ctx context.Context, groupID int64, recursive bool) ([]*Repository, error)

	// ListSubGroups returns the groups directly inside a group, or in
	// its whole subtree when recursive is true.
	ListSubGroups(ctx context.Context, groupID int64, recursive bool) ([]*RepoGroup, error)
}
