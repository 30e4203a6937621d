package auditlog

// Taxonomy is the registry mapping action names to the action_data keys
// each is expected to carry. It is data loaded once at startup and
// passed by reference into the audit logger, so extending it is a
// configuration change rather than a code change.
type Taxonomy struct {
	actions map[string][]string
}

// NewTaxonomy builds a taxonomy from a map of action name to expected keys.
func NewTaxonomy(actions map[string][]string) *Taxonomy {
	copied := make(map[string][]string, len(actions))
	for action, keys := range actions {
		copied[action] = append([]string(nil), keys...)
	}
	return &Taxonomy{actions: copied}
}

// Known reports whether the action is registered.
func (t *Taxonomy) Known(action string) bool {
	_, ok := t.actions[action]
	return ok
}

// ExpectedKeys returns the action_data keys the action should carry.
func (t *Taxonomy) ExpectedKeys(action string) []string {
	return t.actions[action]
}

// Actions returns every registered action name.
func (t *Taxonomy) Actions() []string {
	names := make([]string, 0, len(t.actions))
	for name := range t.actions {
		names = append(names, name)
	}
	return names
}

// DefaultTaxonomy returns the built-in action registry for a hosting
// platform. Hosts with extra actions build their own via NewTaxonomy.
func DefaultTaxonomy() *Taxonomy {
	return NewTaxonomy(map[string][]string{
		"repo.create":             {"repo_name"},
		"repo.delete":             {"repo_name"},
		"repo.edit":               {"repo_name", "changes"},
		"repo.edit.permissions":   {"added", "updated", "deleted"},
		"repo.archive":            {"repo_name"},
		"repo.fork":               {"repo_name", "fork_of"},
		"repo.push":               {"repo_name", "branches"},
		"repo.push.branch.reject": {"repo_name", "branch", "rule_pattern"},

		"repo.branch_rule.create": {"repo_id", "pattern", "permission"},
		"repo.branch_rule.edit":   {"repo_id", "pattern", "permission"},
		"repo.branch_rule.delete": {"repo_id", "rule_id"},

		"repo_group.create":           {"group_name"},
		"repo_group.delete":           {"group_name"},
		"repo_group.edit":             {"group_name", "changes"},
		"repo_group.edit.permissions": {"added", "updated", "deleted"},

		"user.create":           {"username"},
		"user.delete":           {"username"},
		"user.edit":             {"username", "changes"},
		"user.edit.permissions": {"added", "updated", "deleted"},
		"user.edit.ip.add":      {"ip_range", "user_id"},
		"user.edit.ip.delete":   {"ip_range", "user_id"},

		"user_group.create":           {"group_name"},
		"user_group.delete":           {"group_name"},
		"user_group.edit.members":     {"group_name", "added", "removed"},
		"user_group.edit.permissions": {"added", "updated", "deleted"},
	})
}
