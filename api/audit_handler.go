package api

import (
	"net/http"
	"time"

	"github.com/xraph/forge"

	"github.com/xraph/bastion/auditlog"
)

func (a *API) registerAuditRoutes(router forge.Router) error {
	g := router.Group("/v1", forge.WithGroupTags("audit"))

	return g.GET("/audit-logs", a.listAuditLogs,
		forge.WithSummary("Query audit trail"),
		forge.WithDescription("Returns permission audit entries with optional filters, newest first."),
		forge.WithOperationID("listAuditLogs"),
		forge.WithRequestSchema(ListAuditRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Audit entries", ListResponse[*auditlog.Entry]{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) listAuditLogs(ctx forge.Context, req *ListAuditRequest) (*ListResponse[*auditlog.Entry], error) {
	filter := &auditlog.QueryFilter{
		Action:   req.Action,
		Username: req.Username,
		Limit:    defaultLimit(req.Limit),
		Offset:   req.Offset,
	}

	if req.UserID != "" {
		uid, err := parseID(req.UserID)
		if err != nil {
			return nil, forge.BadRequest("invalid user_id")
		}
		filter.UserID = &uid
	}
	if req.RepositoryID != "" {
		rid, err := parseID(req.RepositoryID)
		if err != nil {
			return nil, forge.BadRequest("invalid repository_id")
		}
		filter.RepositoryID = &rid
	}
	if req.After != "" {
		t, err := time.Parse(time.RFC3339, req.After)
		if err != nil {
			return nil, forge.BadRequest("invalid after timestamp")
		}
		filter.After = &t
	}
	if req.Before != "" {
		t, err := time.Parse(time.RFC3339, req.Before)
		if err != nil {
			return nil, forge.BadRequest("invalid before timestamp")
		}
		filter.Before = &t
	}

	entries, total, err := a.eng.QueryAudit(ctx.Context(), filter)
	if err != nil {
		return nil, mapError(err)
	}

	resp := &ListResponse[*auditlog.Entry]{
		Items:  entries,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}
	return resp, ctx.JSON(http.StatusOK, resp)
}
