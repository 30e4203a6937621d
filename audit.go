package bastion

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/bastion/auditlog"
	"github.com/xraph/bastion/event"
	"github.com/xraph/bastion/id"
	"github.com/xraph/bastion/resource"
)

// AuditLogger records structured audit entries for privileged actions.
// Recording is best-effort by contract: a failed audit write is logged
// and swallowed so the primary operation always completes. Unknown
// actions, by contrast, are programmer errors and do propagate.
type AuditLogger struct {
	store    auditlog.Store
	taxonomy *auditlog.Taxonomy
	bus      *event.Bus
	logger   *slog.Logger
}

// NewAuditLogger creates an audit logger. The taxonomy is the action
// registry constructed at startup; bus may be nil.
func NewAuditLogger(store auditlog.Store, taxonomy *auditlog.Taxonomy, bus *event.Bus, logger *slog.Logger) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{store: store, taxonomy: taxonomy, bus: bus, logger: logger}
}

// Record persists one audit entry. action must be registered in the
// taxonomy; actionData is checked structurally against the expected
// keys, and missing keys are logged but never block recording. repo is
// optional repository context. The returned entry is populated even
// when the store write failed.
func (l *AuditLogger) Record(ctx context.Context, tenantID, action string, actor ActorContext, actionData map[string]any, repo *resource.Repository) (*auditlog.Entry, error) {
	if !l.taxonomy.Known(action) {
		return nil, &UnknownActionError{Action: action}
	}

	for _, key := range l.taxonomy.ExpectedKeys(action) {
		if _, ok := actionData[key]; !ok {
			l.logger.Warn("audit entry missing expected key",
				slog.String("action", action),
				slog.String("key", key),
			)
		}
	}

	entry := &auditlog.Entry{
		ID:         id.NewAuditEntryID(),
		TenantID:   tenantID,
		Action:     action,
		ActionData: actionData,
		UserID:     actor.UserID,
		Username:   actor.Username,
		IPAddress:  actor.IPAddr,
		CreatedAt:  time.Now().UTC(),
	}
	if repo != nil {
		repoID := repo.ID
		entry.RepositoryID = &repoID
		entry.RepositoryName = repo.Name
	}

	// The trail is a side channel: a store outage must not fail the
	// primary mutation, so the write error stops here.
	if err := l.store.CreateAuditEntry(ctx, entry); err != nil {
		l.logger.Error("audit write failed",
			slog.String("action", action),
			slog.String("error", fmt.Errorf("%w: %w", ErrAuditWrite, err).Error()),
		)
		return entry, nil
	}

	if l.bus != nil {
		l.bus.PublishAuditRecorded(ctx, entry)
	}
	return entry, nil
}
