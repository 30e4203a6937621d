package bastion_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/xraph/bastion"
	"github.com/xraph/bastion/auditlog"
	"github.com/xraph/bastion/id"
	"github.com/xraph/bastion/resource"
	"github.com/xraph/bastion/store/memory"
)

// brokenAuditStore fails every write to exercise the best-effort
// recording contract.
type brokenAuditStore struct{}

func (brokenAuditStore) CreateAuditEntry(context.Context, *auditlog.Entry) error {
	return fmt.Errorf("connection refused")
}
func (brokenAuditStore) GetAuditEntry(context.Context, id.AuditEntryID) (*auditlog.Entry, error) {
	return nil, fmt.Errorf("connection refused")
}
func (brokenAuditStore) ListAuditEntries(context.Context, *auditlog.QueryFilter) ([]*auditlog.Entry, error) {
	return nil, fmt.Errorf("connection refused")
}
func (brokenAuditStore) CountAuditEntries(context.Context, *auditlog.QueryFilter) (int64, error) {
	return 0, fmt.Errorf("connection refused")
}
func (brokenAuditStore) PurgeAuditEntries(context.Context, time.Time) (int64, error) {
	return 0, fmt.Errorf("connection refused")
}

func TestAuditRecord(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	logger := bastion.NewAuditLogger(s, auditlog.DefaultTaxonomy(), nil, nil)

	uid := int64(1)
	repo := &resource.Repository{ID: 100, TenantID: tenant, Name: "app"}
	entry, err := logger.Record(ctx, tenant, "repo.create",
		bastion.ActorContext{UserID: &uid, Username: "alice", IPAddr: "10.0.0.1"},
		map[string]any{"repo_name": "app"},
		repo,
	)
	if err != nil {
		t.Fatal(err)
	}
	if entry.ID.IsNil() {
		t.Fatal("expected entry ID assigned")
	}

	got, err := s.GetAuditEntry(ctx, entry.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Action != "repo.create" || got.Username != "alice" || got.IPAddress != "10.0.0.1" {
		t.Fatalf("entry fields lost: %+v", got)
	}
	if got.RepositoryID == nil || *got.RepositoryID != 100 || got.RepositoryName != "app" {
		t.Fatalf("repository context lost: %+v", got)
	}
}

func TestAuditRecordUnknownAction(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	logger := bastion.NewAuditLogger(s, auditlog.DefaultTaxonomy(), nil, nil)

	_, err := logger.Record(ctx, tenant, "repo.explode", bastion.ActorContext{Username: "alice"}, nil, nil)
	if !errors.Is(err, bastion.ErrUnknownAction) {
		t.Fatalf("expected unknown action error, got %v", err)
	}

	var uerr *bastion.UnknownActionError
	if !errors.As(err, &uerr) || uerr.Action != "repo.explode" {
		t.Fatalf("expected UnknownActionError with action, got %v", err)
	}
}

func TestAuditRecordStoreFailureSwallowed(t *testing.T) {
	ctx := context.Background()
	logger := bastion.NewAuditLogger(brokenAuditStore{}, auditlog.DefaultTaxonomy(), nil, nil)

	entry, err := logger.Record(ctx, tenant, "repo.delete",
		bastion.ActorContext{Username: "alice"},
		map[string]any{"repo_name": "app"},
		nil,
	)
	if err != nil {
		t.Fatalf("store failure must not propagate, got %v", err)
	}
	if entry == nil || entry.Action != "repo.delete" {
		t.Fatal("expected populated entry despite store failure")
	}
}

func TestAuditRecordMissingKeysStillRecords(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	logger := bastion.NewAuditLogger(s, auditlog.DefaultTaxonomy(), nil, nil)

	// repo.create expects repo_name; omitting it only logs a warning.
	entry, err := logger.Record(ctx, tenant, "repo.create", bastion.ActorContext{Username: "alice"}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetAuditEntry(ctx, entry.ID); err != nil {
		t.Fatal("expected entry persisted despite missing keys")
	}
}

func TestTaxonomyCustomActions(t *testing.T) {
	tax := auditlog.NewTaxonomy(map[string][]string{
		"custom.deploy": {"environment"},
	})
	if !tax.Known("custom.deploy") {
		t.Fatal("expected registered action known")
	}
	if tax.Known("repo.create") {
		t.Fatal("custom taxonomy must not inherit defaults")
	}
	keys := tax.ExpectedKeys("custom.deploy")
	if len(keys) != 1 || keys[0] != "environment" {
		t.Fatalf("unexpected keys %v", keys)
	}
}
