package api

import (
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/bastion"
)

func (a *API) registerCheckRoutes(router forge.Router) error {
	g := router.Group("/v1/permissions", forge.WithGroupTags("permissions"))

	if err := g.POST("/check", a.check,
		forge.WithSummary("Effective permission check"),
		forge.WithDescription("Resolves the subject's effective permission level on the resource."),
		forge.WithOperationID("permissionCheck"),
		forge.WithRequestSchema(CheckRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Check result", CheckResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/enforce", a.enforce,
		forge.WithSummary("Enforce permission"),
		forge.WithDescription("Returns 200 if the subject holds at least min_level, 403 otherwise."),
		forge.WithOperationID("permissionEnforce"),
		forge.WithRequestSchema(CheckRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Allowed", CheckResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/check-branch", a.checkBranch,
		forge.WithSummary("Branch push check"),
		forge.WithDescription("Evaluates branch rules for a push to the given branch."),
		forge.WithOperationID("permissionCheckBranch"),
		forge.WithRequestSchema(BranchCheckRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Branch decision", BranchCheckResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.POST("/check-ip", a.checkIP,
		forge.WithSummary("IP allowlist check"),
		forge.WithDescription("Reports whether the source address passes the user's IP allowlist."),
		forge.WithOperationID("permissionCheckIP"),
		forge.WithRequestSchema(IPCheckRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Allowlist result", IPCheckResponse{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) check(ctx forge.Context, req *CheckRequest) (*CheckResponse, error) {
	subj, res, err := toRefs(req)
	if err != nil {
		return nil, err
	}

	level, err := a.eng.EffectivePermission(ctx.Context(), subj, res)
	if err != nil {
		return nil, mapError(err)
	}

	resp := &CheckResponse{Level: string(level), Allowed: true}
	if req.MinLevel != "" {
		min, err := bastion.ParseLevel(res.Kind, req.MinLevel)
		if err != nil {
			return nil, forge.BadRequest(err.Error())
		}
		resp.Allowed = level.Rank() >= min.Rank()
	}
	return resp, ctx.JSON(http.StatusOK, resp)
}

func (a *API) enforce(ctx forge.Context, req *CheckRequest) (*CheckResponse, error) {
	subj, res, err := toRefs(req)
	if err != nil {
		return nil, err
	}
	if req.MinLevel == "" {
		return nil, forge.BadRequest("min_level is required")
	}
	min, err := bastion.ParseLevel(res.Kind, req.MinLevel)
	if err != nil {
		return nil, forge.BadRequest(err.Error())
	}

	level, err := a.eng.EffectivePermission(ctx.Context(), subj, res)
	if err != nil {
		return nil, mapError(err)
	}

	resp := &CheckResponse{Level: string(level), Allowed: level.Rank() >= min.Rank()}
	if !resp.Allowed {
		return resp, ctx.JSON(http.StatusForbidden, resp)
	}
	return resp, ctx.JSON(http.StatusOK, resp)
}

func (a *API) checkBranch(ctx forge.Context, req *BranchCheckRequest) (*BranchCheckResponse, error) {
	if req.Branch == "" {
		return nil, forge.BadRequest("branch is required")
	}

	result, err := a.eng.CheckBranch(ctx.Context(), req.UserID, req.RepoID, req.Branch, req.Forced)
	if err != nil {
		return nil, mapError(err)
	}

	resp := &BranchCheckResponse{
		Decision:       string(result.Decision),
		Allowed:        result.Allowed(),
		Reason:         result.Reason,
		MatchedPattern: result.MatchedPattern,
	}
	return resp, ctx.JSON(http.StatusOK, resp)
}

func (a *API) checkIP(ctx forge.Context, req *IPCheckRequest) (*IPCheckResponse, error) {
	if req.IPAddr == "" {
		return nil, forge.BadRequest("ip_addr is required")
	}

	allowed, err := a.eng.IsIPAllowed(ctx.Context(), req.UserID, req.IPAddr)
	if err != nil {
		return nil, mapError(err)
	}

	resp := &IPCheckResponse{Allowed: allowed}
	return resp, ctx.JSON(http.StatusOK, resp)
}

func toRefs(req *CheckRequest) (bastion.SubjectRef, bastion.ResourceRef, error) {
	if req.SubjectKind == "" || req.ResourceKind == "" {
		return bastion.SubjectRef{}, bastion.ResourceRef{},
			forge.BadRequest("subject_kind and resource_kind are required")
	}
	subj := bastion.SubjectRef{Kind: bastion.SubjectKind(req.SubjectKind), ID: req.SubjectID}
	res := bastion.ResourceRef{Kind: bastion.ResourceKind(req.ResourceKind), ID: req.ResourceID}
	return subj, res, nil
}
