package bastion

import "time"

// Config holds configuration for the permission engine.
type Config struct {
	// CacheTTL is the time-to-live for cached effective permissions.
	// Zero means no caching.
	CacheTTL time.Duration `json:"cache_ttl,omitempty"`

	// EnableBranchRules enables branch-level push rule evaluation.
	// Defaults to true; disabled, every push is allowed.
	EnableBranchRules *bool `json:"enable_branch_rules,omitempty"`

	// EnableIPAllowlist enables per-user IP allowlist checks.
	// Defaults to true; disabled, every address is allowed.
	EnableIPAllowlist *bool `json:"enable_ip_allowlist,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	t := true
	return Config{
		EnableBranchRules: &t,
		EnableIPAllowlist: &t,
	}
}

func (c Config) branchRulesEnabled() bool { return c.EnableBranchRules == nil || *c.EnableBranchRules }
func (c Config) ipAllowlistEnabled() bool { return c.EnableIPAllowlist == nil || *c.EnableIPAllowlist }
