package extension

// Config holds the Bastion extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.bastion" or "bastion" keys).
type Config struct {
	// DisableRoutes prevents HTTP route registration.
	DisableRoutes bool `json:"disable_routes" mapstructure:"disable_routes" yaml:"disable_routes"`

	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// EnableBranchRules toggles branch rule evaluation. Nil means
	// enabled; disabled checks always allow forced pushes.
	EnableBranchRules *bool `json:"enable_branch_rules" mapstructure:"enable_branch_rules" yaml:"enable_branch_rules"`

	// EnableIPAllowlist toggles IP allowlist enforcement. Nil means
	// enabled; disabled checks allow every address.
	EnableIPAllowlist *bool `json:"enable_ip_allowlist" mapstructure:"enable_ip_allowlist" yaml:"enable_ip_allowlist"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{}
}
