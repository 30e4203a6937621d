package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the bastion store (PostgreSQL).
var Migrations = migrate.NewGroup("bastion")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_users",
			Version: "20240101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS bastion_users (
    id              BIGINT PRIMARY KEY,
    tenant_id       TEXT NOT NULL,
    username        TEXT NOT NULL,
    is_admin        BOOLEAN NOT NULL DEFAULT FALSE,
    inherit_default BOOLEAN NOT NULL DEFAULT TRUE,
    is_active       BOOLEAN NOT NULL DEFAULT TRUE,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),

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
    id              BIGINT PRIMARY KEY,
    tenant_id       TEXT NOT NULL,
    name            TEXT NOT NULL,
    owner_id        BIGINT NOT NULL DEFAULT 0,
    is_active       BOOLEAN NOT NULL DEFAULT TRUE,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_bastion_ugroups_tenant ON bastion_user_groups (tenant_id);

CREATE TABLE IF NOT EXISTS bastion_group_members (
    group_id        BIGINT NOT NULL REFERENCES bastion_user_groups(id) ON DELETE CASCADE,
    user_id         BIGINT NOT NULL,

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
    id              BIGINT PRIMARY KEY,
    tenant_id       TEXT NOT NULL,
    name            TEXT NOT NULL,
    parent_id       BIGINT,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
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
    id              BIGINT PRIMARY KEY,
    tenant_id       TEXT NOT NULL,
    name            TEXT NOT NULL,
    repo_group_id   BIGINT REFERENCES bastion_repo_groups(id),
    private         BOOLEAN NOT NULL DEFAULT FALSE,
    archived        BOOLEAN NOT NULL DEFAULT FALSE,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
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
    subject_id      BIGINT NOT NULL,
    resource_kind   TEXT NOT NULL,
    resource_id     BIGINT NOT NULL,
    permission      TEXT NOT NULL,
    is_default      BOOLEAN NOT NULL DEFAULT FALSE,
    granted_by      TEXT NOT NULL DEFAULT '',
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),

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
    repo_id         BIGINT NOT NULL,
    subject_kind    TEXT NOT NULL DEFAULT '',
    subject_id      BIGINT NOT NULL DEFAULT 0,
    pattern         TEXT NOT NULL,
    permission      TEXT NOT NULL,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
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
    user_id         BIGINT NOT NULL,
    spec            TEXT NOT NULL,
    start_addr      TEXT NOT NULL,
    end_addr        TEXT NOT NULL,
    description     TEXT NOT NULL DEFAULT '',
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
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
    action_data     JSONB NOT NULL DEFAULT '{}',
    user_id         BIGINT,
    username        TEXT NOT NULL DEFAULT '',
    ip_address      TEXT NOT NULL DEFAULT '',
    repository_id   BIGINT,
    repository_name TEXT NOT NULL DEFAULT '',
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
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
