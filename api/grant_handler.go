package api

import (
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/bastion"
	"github.com/xraph/bastion/grant"
)

func (a *API) registerGrantRoutes(router forge.Router) error {
	g := router.Group("/v1/grants", forge.WithGroupTags("grants"))

	if err := g.POST("/changes", a.applyChanges,
		forge.WithSummary("Apply permission changes"),
		forge.WithDescription("Applies a bulk permission mutation on a resource as one all-or-nothing batch."),
		forge.WithOperationID("applyPermissionChanges"),
		forge.WithRequestSchema(ApplyChangesRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Applied change set", &bastion.ChangeSet{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.GET("", a.listGrants,
		forge.WithSummary("List resource grants"),
		forge.WithDescription("Returns every grant held on one resource, across subject kinds."),
		forge.WithOperationID("listGrants"),
		forge.WithRequestSchema(ListGrantsRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Grant list", []*grant.Grant{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) applyChanges(ctx forge.Context, req *ApplyChangesRequest) (*bastion.ChangeSet, error) {
	if req.ResourceKind == "" {
		return nil, forge.BadRequest("resource_kind is required")
	}

	change := &bastion.ChangeRequest{
		Resource:  bastion.ResourceRef{Kind: bastion.ResourceKind(req.ResourceKind), ID: req.ResourceID},
		Additions: toChangeEntries(req.Additions),
		Updates:   toChangeEntries(req.Updates),
		Deletions: toChangeEntries(req.Deletions),
		Recursive: bastion.RecursiveMode(req.Recursive),
	}

	set, err := a.eng.ApplyPermissionChanges(ctx.Context(), resolveActor(ctx, req.Actor), change)
	if err != nil {
		return nil, mapError(err)
	}

	return set, ctx.JSON(http.StatusOK, set)
}

func (a *API) listGrants(ctx forge.Context, req *ListGrantsRequest) ([]*grant.Grant, error) {
	if req.ResourceKind == "" {
		return nil, forge.BadRequest("resource_kind is required")
	}

	res := bastion.ResourceRef{Kind: bastion.ResourceKind(req.ResourceKind), ID: req.ResourceID}
	list := a.eng.ListGrants
	if req.Expand {
		list = a.eng.ListGrantsExpanded
	}
	grants, err := list(ctx.Context(), res)
	if err != nil {
		return nil, mapError(err)
	}

	return grants, ctx.JSON(http.StatusOK, grants)
}

func toChangeEntries(in []ChangeEntryInput) []bastion.ChangeEntry {
	if len(in) == 0 {
		return nil
	}
	out := make([]bastion.ChangeEntry, len(in))
	for i, e := range in {
		out[i] = bastion.ChangeEntry{
			SubjectKind: bastion.SubjectKind(e.SubjectKind),
			SubjectID:   e.SubjectID,
			Permission:  e.Permission,
		}
	}
	return out
}
