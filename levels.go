package bastion

import "fmt"

// Level is a named permission severity on the ordered scale of one
// resource kind. Comparison always goes through Rank; the string values
// do not sort correctly lexically.
type Level string

// Repository levels, weakest to strongest.
const (
	RepoNone  Level = "repository.none"
	RepoRead  Level = "repository.read"
	RepoWrite Level = "repository.write"
	RepoAdmin Level = "repository.admin"
)

// Repository group levels, weakest to strongest.
const (
	GroupNone  Level = "group.none"
	GroupRead  Level = "group.read"
	GroupWrite Level = "group.write"
	GroupAdmin Level = "group.admin"
)

// User group levels, weakest to strongest.
const (
	UserGroupNone  Level = "usergroup.none"
	UserGroupRead  Level = "usergroup.read"
	UserGroupWrite Level = "usergroup.write"
	UserGroupAdmin Level = "usergroup.admin"
)

// Branch levels, weakest to strongest. These apply to branch rules only,
// never to grants on a resource.
const (
	BranchNone      Level = "branch.none"
	BranchPush      Level = "branch.push"
	BranchPushForce Level = "branch.push_force"
)

// levelRanks fixes the severity ordering within each scale. Levels from
// different scales are never compared.
var levelRanks = map[Level]int{
	RepoNone:  0,
	RepoRead:  1,
	RepoWrite: 2,
	RepoAdmin: 3,

	GroupNone:  0,
	GroupRead:  1,
	GroupWrite: 2,
	GroupAdmin: 3,

	UserGroupNone:  0,
	UserGroupRead:  1,
	UserGroupWrite: 2,
	UserGroupAdmin: 3,

	BranchNone:      0,
	BranchPush:      1,
	BranchPushForce: 2,
}

// levelScales maps each resource kind to its ordered scale.
var levelScales = map[ResourceKind][]Level{
	ResourceRepository: {RepoNone, RepoRead, RepoWrite, RepoAdmin},
	ResourceRepoGroup:  {GroupNone, GroupRead, GroupWrite, GroupAdmin},
	ResourceUserGroup:  {UserGroupNone, UserGroupRead, UserGroupWrite, UserGroupAdmin},
}

// branchScale is the ordered scale for branch rules.
var branchScale = []Level{BranchNone, BranchPush, BranchPushForce}

// Rank returns the severity rank of the level within its scale.
// Unknown levels rank below every valid level.
func (l Level) Rank() int {
	r, ok := levelRanks[l]
	if !ok {
		return -1
	}
	return r
}

// NoneLevel returns the weakest level for a resource kind.
func NoneLevel(kind ResourceKind) Level {
	return levelScales[kind][0]
}

// AdminLevel returns the strongest level for a resource kind. Global
// admins resolve to this unconditionally.
func AdminLevel(kind ResourceKind) Level {
	scale := levelScales[kind]
	return scale[len(scale)-1]
}

// ParseLevel validates that s names a level on the scale of the given
// resource kind. Returns a ValidationError otherwise.
func ParseLevel(kind ResourceKind, s string) (Level, error) {
	scale, ok := levelScales[kind]
	if !ok {
		return "", &ValidationError{Field: "resource_kind", Value: string(kind), Detail: "unknown resource kind"}
	}
	for _, l := range scale {
		if string(l) == s {
			return l, nil
		}
	}
	return "", &ValidationError{Field: "permission", Value: s, Detail: fmt.Sprintf("not a %s level", kind)}
}

// ParseBranchLevel validates that s names a branch rule level.
func ParseBranchLevel(s string) (Level, error) {
	for _, l := range branchScale {
		if string(l) == s {
			return l, nil
		}
	}
	return "", &ValidationError{Field: "permission", Value: s, Detail: "not a branch level"}
}

// MaxLevel returns the stronger of two levels on the same scale.
func MaxLevel(a, b Level) Level {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}
