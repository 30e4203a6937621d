// Package middleware provides HTTP permission middleware for Bastion.
package middleware

import (
	"encoding/json"
	"strconv"

	"github.com/xraph/forge"

	"github.com/xraph/bastion"
)

// Require enforces a minimum permission level on the resource kind. The
// subject is the authenticated Forge user; the resource ID comes from
// the ":id" route parameter.
func Require(eng *bastion.Engine, resourceKind bastion.ResourceKind, min bastion.Level) forge.Middleware {
	return func(next forge.Handler) forge.Handler {
		return func(ctx forge.Context) error {
			userID, ok := resolveUserID(ctx)
			if !ok {
				return denyResponse(ctx, "authentication required")
			}
			resourceID, _ := strconv.ParseInt(ctx.Param("id"), 10, 64) //nolint:errcheck // absent param resolves as resource 0

			pipeline := bastion.NewPipeline(
				bastion.RequirePermission(eng,
					bastion.SubjectRef{Kind: bastion.SubjectUser, ID: userID},
					bastion.ResourceRef{Kind: resourceKind, ID: resourceID},
					min,
				),
			)
			if result := pipeline.Run(ctx.Context()); !result.Allowed() {
				return denyResponse(ctx, result.Reason)
			}
			return next(ctx)
		}
	}
}

// RequireGuards runs a caller-built guard pipeline before the handler.
// Redirect results become HTTP 302, denials become 403.
func RequireGuards(pipeline *bastion.Pipeline) forge.Middleware {
	return func(next forge.Handler) forge.Handler {
		return func(ctx forge.Context) error {
			result := pipeline.Run(ctx.Context())
			switch result.Decision {
			case bastion.GuardAllow:
				return next(ctx)
			case bastion.GuardRedirect:
				ctx.SetHeader("Location", result.RedirectTo)
				ctx.Response().WriteHeader(302)
				return nil
			default:
				return denyResponse(ctx, result.Reason)
			}
		}
	}
}

// RequireIPAllowed rejects requests whose source address falls outside
// the authenticated user's IP allowlist. The address is taken from the
// given header (e.g. "X-Forwarded-For" behind a proxy).
func RequireIPAllowed(eng *bastion.Engine, addrFrom func(forge.Context) string) forge.Middleware {
	return func(next forge.Handler) forge.Handler {
		return func(ctx forge.Context) error {
			userID, ok := resolveUserID(ctx)
			if !ok {
				return denyResponse(ctx, "authentication required")
			}

			guard := bastion.RequireIPAllowed(eng, userID, addrFrom(ctx))
			if result := guard.Check(ctx.Context()); !result.Allowed() {
				return denyResponse(ctx, result.Reason)
			}
			return next(ctx)
		}
	}
}

// resolveUserID extracts the authenticated user's numeric ID from the
// Forge context.
func resolveUserID(ctx forge.Context) (int64, bool) {
	raw := forge.UserIDFromContext(ctx.Context())
	if raw == "" {
		return 0, false
	}
	uid, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return uid, true
}

func denyResponse(ctx forge.Context, reason string) error {
	ctx.SetHeader("Content-Type", "application/json")
	ctx.Response().WriteHeader(403)
	return json.NewEncoder(ctx.Response()).Encode(map[string]string{"error": reason})
}
