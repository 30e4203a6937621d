package api

import (
	"errors"
	"strconv"

	"github.com/xraph/forge"

	"github.com/xraph/bastion"
)

// mapError maps domain errors to Forge HTTP errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, bastion.ErrNotFound) {
		return forge.NotFound(err.Error())
	}
	if errors.Is(err, bastion.ErrValidation) || errors.Is(err, bastion.ErrUnknownAction) {
		return forge.BadRequest(err.Error())
	}
	if errors.Is(err, bastion.ErrSelfRevocation) {
		return forge.BadRequest(err.Error())
	}
	if errors.Is(err, bastion.ErrAccessDenied) {
		return forge.Forbidden(err.Error())
	}
	return err
}

// resolveActor builds the acting identity for audit records. Body-supplied
// values win since Bastion sits behind the host's auth layer and callers
// proxy on behalf of their users; the authenticated Forge user is the
// fallback.
func resolveActor(ctx forge.Context, in *ActorInput) bastion.ActorContext {
	var actor bastion.ActorContext
	if in != nil {
		actor = bastion.ActorContext{
			UserID:   in.UserID,
			Username: in.Username,
			IPAddr:   in.IPAddr,
		}
	}
	if actor.UserID == nil {
		if raw := forge.UserIDFromContext(ctx.Context()); raw != "" {
			if uid, err := strconv.ParseInt(raw, 10, 64); err == nil {
				actor.UserID = &uid
			}
		}
	}
	return actor
}

// parseID parses a numeric host-application identifier from a path
// parameter.
func parseID(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

func defaultLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}
