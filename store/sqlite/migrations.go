package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the bastion store (SQLite).
var Migrations = migrate.NewGroup("bastion")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_users",
			Version: "20240101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS bastion_users (
    id              INTEGER PRIMARY KEY,
    tenant_id       TEXT NOT NULL,
    username        TEXT NOT NULL,
    is_admin        INTEGER NOT NULL DEFAULT 0,
    inherit_default INTEGER NOT NULL DEFAULT 1,
    is_active       INTEGER NOT NULL DEFAULT 1,
    created_at      TEXT NOT NULL DEFAULT (datetime('now')),

    UNIQUE(tenant_id, username)
);

CREATE INDEX IF NOT EXISTS idx_bastion_users_tenant ON bastion_users (tenant_id);
CREATE INDEX IF NOT EXISTS idx_bastion_users_username ON bastion_users (tenant_id, username);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS bastion_users`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_user_groups",
			Version: "20240101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS bastion_user_groups (
    id              INTEGER PRIMARY KEY,
    tenant_id       TEXT NOT NULL,
    name            TEXT NOT NULL,
    owner_id        INTEGER NOT NULL DEFAULT 0,
    is_active       INTEGER NOT NULL DEFAULT 1,
    created_at      TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_bastion_ugroups_tenant ON bastion_user_groups (tenant_id);

CREATE TABLE IF NOT EXISTS bastion_group_members (
    group_id        INTEGER NOT NULL REFERENCES bastion_user_groups(id) ON DELETE CASCADE,
    user_id         INTEGER NOT NULL,

    PRIMARY KEY (group_id, user_id)
);

CREATE INDEX IF NOT EXISTS idx_bastion_members_user ON bastion_group_members (user_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
DROP TABLE IF EXISTS bastion_group_members;
DROP TABLE IF EXISTS bastion_user_groups;
`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_repo_groups",
			Version: "20240101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS bastion_repo_groups (
    id              INTEGER PRIMARY KEY,
    tenant_id       TEXT NOT NULL,
    name            TEXT NOT NULL,
    parent_id       INTEGER,
    created_at      TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_bastion_rgroups_tenant ON bastion_repo_groups (tenant_id);
CREATE INDEX IF NOT EXISTS idx_bastion_rgroups_parent ON bastion_repo_groups (parent_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS bastion_repo_groups`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_repositories",
			Version: "20240101000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS bastion_repositories (
    id              INTEGER PRIMARY KEY,
    tenant_id       TEXT NOT NULL,
    name            TEXT NOT NULL,
    repo_group_id   INTEGER REFERENCES bastion_repo_groups(id),
    private         INTEGER NOT NULL DEFAULT 0,
    archived        INTEGER NOT NULL DEFAULT 0,
    created_at      TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_bastion_repos_tenant ON bastion_repositories (tenant_id);
CREATE INDEX IF NOT EXISTS idx_bastion_repos_group ON bastion_repositories (repo_group_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS bastion_repositories`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_grants",
			Version: "20240101000005",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS bastion_grants (
    id              TEXT PRIMARY KEY,
    tenant_id       TEXT NOT NULL,
    subject_kind    TEXT NOT NULL,
    subject_id      INTEGER NOT NULL,
    resource_kind   TEXT NOT NULL,
    resource_id     INTEGER NOT NULL,
    permission      TEXT NOT NULL,
    is_default      INTEGER NOT NULL DEFAULT 0,
    granted_by      TEXT NOT NULL DEFAULT '',
    created_at      TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at      TEXT NOT NULL DEFAULT (datetime('now')),

    UNIQUE(tenant_id, subject_kind, subject_id, resource_kind, resource_id)
);

CREATE INDEX IF NOT EXISTS idx_bastion_grants_subject ON bastion_grants (tenant_id, subject_kind, subject_id, resource_kind);
CREATE INDEX IF NOT EXISTS idx_bastion_grants_resource ON bastion_grants (tenant_id, resource_kind, resource_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS bastion_grants`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_branch_rules",
			Version: "20240101000006",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS bastion_branch_rules (
    id              TEXT PRIMARY KEY,
    tenant_id       TEXT NOT NULL,
    repo_id         INTEGER NOT NULL,
    subject_kind    TEXT NOT NULL DEFAULT '',
    subject_id      INTEGER NOT NULL DEFAULT 0,
    pattern         TEXT NOT NULL,
    permission      TEXT NOT NULL,
    created_at      TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at      TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_bastion_brules_repo ON bastion_branch_rules (tenant_id, repo_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS bastion_branch_rules`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_ip_ranges",
			Version: "20240101000007",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS bastion_ip_ranges (
    id              TEXT PRIMARY KEY,
    tenant_id       TEXT NOT NULL,
    user_id         INTEGER NOT NULL,
    spec            TEXT NOT NULL,
    start_addr      TEXT NOT NULL,
    end_addr        TEXT NOT NULL,
    description     TEXT NOT NULL DEFAULT '',
    created_at      TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_bastion_ipranges_user ON bastion_ip_ranges (tenant_id, user_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS bastion_ip_ranges`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_audit_entries",
			Version: "20240101000008",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS bastion_audit_entries (
    id              TEXT PRIMARY KEY,
    tenant_id       TEXT NOT NULL,
    action          TEXT NOT NULL,
    action_data     TEXT NOT NULL DEFAULT '{}',
    user_id         INTEGER,
    username        TEXT NOT NULL DEFAULT '',
    ip_address      TEXT NOT NULL DEFAULT '',
    repository_id   INTEGER,
    repository_name TEXT NOT NULL DEFAULT '',
    created_at      TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_bastion_audit_tenant ON bastion_audit_entries (tenant_id);
CREATE INDEX IF NOT EXISTS idx_bastion_audit_action ON bastion_audit_entries (tenant_id, action);
CREATE INDEX IF NOT EXISTS idx_bastion_audit_user ON bastion_audit_entries (tenant_id, user_id);
CREATE INDEX IF NOT EXISTS idx_bastion_audit_repo ON bastion_audit_entries (tenant_id, repository_id);
CREATE INDEX IF NOT EXISTS idx_bastion_audit_created ON bastion_audit_entries (created_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS bastion_audit_entries`)
				return err
			},
		},
	)
}
