package api

import (
	"fmt"
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/bastion/branchrule"
	"github.com/xraph/bastion/id"
)

func (a *API) registerBranchRuleRoutes(router forge.Router) error {
	g := router.Group("/v1", forge.WithGroupTags("branch-rules"))

	if err := g.POST("/branch-rules", a.createBranchRule,
		forge.WithSummary("Create branch rule"),
		forge.WithDescription("Creates a branch protection rule on a repository."),
		forge.WithOperationID("createBranchRule"),
		forge.WithRequestSchema(CreateBranchRuleRequest{}),
		forge.WithCreatedResponse(&branchrule.Rule{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.PUT("/branch-rules/:ruleId", a.updateBranchRule,
		forge.WithSummary("Update branch rule"),
		forge.WithOperationID("updateBranchRule"),
		forge.WithRequestSchema(UpdateBranchRuleRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Updated rule", &branchrule.Rule{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.DELETE("/branch-rules/:ruleId", a.deleteBranchRule,
		forge.WithSummary("Delete branch rule"),
		forge.WithOperationID("deleteBranchRule"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.GET("/repos/:repoId/branch-rules", a.listBranchRules,
		forge.WithSummary("List branch rules"),
		forge.WithDescription("Returns every branch rule of one repository."),
		forge.WithOperationID("listBranchRules"),
		forge.WithResponseSchema(http.StatusOK, "Rule list", []*branchrule.Rule{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) createBranchRule(ctx forge.Context, req *CreateBranchRuleRequest) (*branchrule.Rule, error) {
	if req.Pattern == "" || req.Permission == "" {
		return nil, forge.BadRequest("pattern and permission are required")
	}

	rule := &branchrule.Rule{
		RepoID:      req.RepoID,
		SubjectKind: req.SubjectKind,
		SubjectID:   req.SubjectID,
		Pattern:     req.Pattern,
		Permission:  req.Permission,
	}

	created, err := a.eng.CreateBranchRule(ctx.Context(), resolveActor(ctx, req.Actor), rule)
	if err != nil {
		return nil, mapError(err)
	}

	return created, ctx.JSON(http.StatusCreated, created)
}

func (a *API) updateBranchRule(ctx forge.Context, req *UpdateBranchRuleRequest) (*branchrule.Rule, error) {
	ruleID, err := id.ParseBranchRuleID(ctx.Param("ruleId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid branch rule ID: %v", err))
	}

	rule, err := a.eng.Store().GetBranchRule(ctx.Context(), ruleID)
	if err != nil {
		return nil, mapError(err)
	}
	if req.Pattern != "" {
		rule.Pattern = req.Pattern
	}
	if req.Permission != "" {
		rule.Permission = req.Permission
	}

	if err := a.eng.UpdateBranchRule(ctx.Context(), resolveActor(ctx, req.Actor), rule); err != nil {
		return nil, mapError(err)
	}

	return rule, ctx.JSON(http.StatusOK, rule)
}

func (a *API) deleteBranchRule(ctx forge.Context, _ *GetBranchRuleRequest) (*struct{}, error) {
	ruleID, err := id.ParseBranchRuleID(ctx.Param("ruleId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid branch rule ID: %v", err))
	}

	if err := a.eng.DeleteBranchRule(ctx.Context(), resolveActor(ctx, nil), ruleID); err != nil {
		return nil, mapError(err)
	}

	return nil, ctx.NoContent(http.StatusNoContent)
}

func (a *API) listBranchRules(ctx forge.Context, _ *ListBranchRulesRequest) ([]*branchrule.Rule, error) {
	repoID, err := parseID(ctx.Param("repoId"))
	if err != nil {
		return nil, forge.BadRequest("invalid repository ID")
	}

	rules, err := a.eng.ListBranchRules(ctx.Context(), repoID)
	if err != nil {
		return nil, mapError(err)
	}

	return rules, ctx.JSON(http.StatusOK, rules)
}
