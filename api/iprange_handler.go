package api

import (
	"fmt"
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/bastion/id"
	"github.com/xraph/bastion/iprange"
)

func (a *API) registerIPRangeRoutes(router forge.Router) error {
	g := router.Group("/v1", forge.WithGroupTags("ip-ranges"))

	if err := g.POST("/users/:userId/ip-ranges", a.createIPRange,
		forge.WithSummary("Grant IP range"),
		forge.WithDescription("Adds an allowlist range for the user. An empty allowlist means unrestricted."),
		forge.WithOperationID("createIPRange"),
		forge.WithRequestSchema(CreateIPRangeRequest{}),
		forge.WithCreatedResponse(&iprange.Range{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/users/:userId/ip-ranges", a.listIPRanges,
		forge.WithSummary("List IP ranges"),
		forge.WithOperationID("listIPRanges"),
		forge.WithResponseSchema(http.StatusOK, "Range list", []*iprange.Range{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.DELETE("/ip-ranges/:rangeId", a.deleteIPRange,
		forge.WithSummary("Revoke IP range"),
		forge.WithOperationID("deleteIPRange"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	)
}

func (a *API) createIPRange(ctx forge.Context, req *CreateIPRangeRequest) (*iprange.Range, error) {
	userID, err := parseID(ctx.Param("userId"))
	if err != nil {
		return nil, forge.BadRequest("invalid user ID")
	}
	if req.Spec == "" {
		return nil, forge.BadRequest("spec is required")
	}

	r, err := a.eng.AddIPRange(ctx.Context(), resolveActor(ctx, req.Actor), userID, req.Spec, req.Description)
	if err != nil {
		return nil, mapError(err)
	}

	return r, ctx.JSON(http.StatusCreated, r)
}

func (a *API) listIPRanges(ctx forge.Context, _ *ListIPRangesRequest) ([]*iprange.Range, error) {
	userID, err := parseID(ctx.Param("userId"))
	if err != nil {
		return nil, forge.BadRequest("invalid user ID")
	}

	ranges, err := a.eng.ListIPRanges(ctx.Context(), userID)
	if err != nil {
		return nil, mapError(err)
	}

	return ranges, ctx.JSON(http.StatusOK, ranges)
}

func (a *API) deleteIPRange(ctx forge.Context, _ *GetIPRangeRequest) (*struct{}, error) {
	rangeID, err := id.ParseIPRangeID(ctx.Param("rangeId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid IP range ID: %v", err))
	}

	if err := a.eng.RemoveIPRange(ctx.Context(), resolveActor(ctx, nil), rangeID); err != nil {
		return nil, mapError(err)
	}

	return nil, ctx.NoContent(http.StatusNoContent)
}
