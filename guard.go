package bastion

import "context"

// GuardDecision is the outcome of one guard predicate.
type GuardDecision string

const (
	// GuardAllow lets evaluation continue to the next guard.
	GuardAllow GuardDecision = "allow"

	// GuardDeny stops evaluation with a denial.
	GuardDeny GuardDecision = "deny"

	// GuardRedirect stops evaluation, pointing the caller elsewhere
	// (e.g., to a login page).
	GuardRedirect GuardDecision = "redirect"
)

// GuardResult carries a guard's decision and, for deny/redirect, the
// reason and target the calling layer should surface.
type GuardResult struct {
	Decision   GuardDecision `json:"decision"`
	Reason     string        `json:"reason,omitempty"`
	RedirectTo string        `json:"redirect_to,omitempty"`
}

// Allowed reports whether evaluation may continue.
func (r GuardResult) Allowed() bool { return r.Decision == GuardAllow }

// Guard is one named access predicate. Guards are composed into an
// ordered Pipeline instead of being stacked implicitly around handlers,
// so each is independently testable.
type Guard struct {
	Name  string
	Check func(ctx context.Context) GuardResult
}

// Pipeline runs guards in order and stops at the first non-allow result.
type Pipeline struct {
	guards []Guard
}

// NewPipeline builds a pipeline from guards, evaluated in the order given.
func NewPipeline(guards ...Guard) *Pipeline {
	return &Pipeline{guards: guards}
}

// Append returns a pipeline with extra guards after the existing ones.
func (p *Pipeline) Append(guards ...Guard) *Pipeline {
	combined := make([]Guard, 0, len(p.guards)+len(guards))
	combined = append(combined, p.guards...)
	combined = append(combined, guards...)
	return &Pipeline{guards: combined}
}

// Run evaluates the pipeline. An empty pipeline allows.
func (p *Pipeline) Run(ctx context.Context) GuardResult {
	for _, g := range p.guards {
		if result := g.Check(ctx); !result.Allowed() {
			return result
		}
	}
	return GuardResult{Decision: GuardAllow}
}

// LoginRequired denies anonymous actors with a redirect to loginURL.
func LoginRequired(actor ActorContext, loginURL string) Guard {
	return Guard{
		Name: "login_required",
		Check: func(_ context.Context) GuardResult {
			if actor.UserID == nil {
				return GuardResult{Decision: GuardRedirect, Reason: "authentication required", RedirectTo: loginURL}
			}
			return GuardResult{Decision: GuardAllow}
		},
	}
}

// RequirePermission allows only subjects holding at least min on res.
func RequirePermission(eng *Engine, subj SubjectRef, res ResourceRef, min Level) Guard {
	return Guard{
		Name: "require_permission",
		Check: func(ctx context.Context) GuardResult {
			level, err := eng.EffectivePermission(ctx, subj, res)
			if err != nil {
				return GuardResult{Decision: GuardDeny, Reason: err.Error()}
			}
			if level.Rank() < min.Rank() {
				return GuardResult{Decision: GuardDeny, Reason: "insufficient permission: " + string(level)}
			}
			return GuardResult{Decision: GuardAllow}
		},
	}
}

// RequireIPAllowed denies callers outside the user's IP allowlist.
func RequireIPAllowed(eng *Engine, userID int64, ipAddr string) Guard {
	return Guard{
		Name: "require_ip_allowed",
		Check: func(ctx context.Context) GuardResult {
			allowed, err := eng.IsIPAllowed(ctx, userID, ipAddr)
			if err != nil {
				return GuardResult{Decision: GuardDeny, Reason: err.Error()}
			}
			if !allowed {
				return GuardResult{Decision: GuardDeny, Reason: "IP address not allowed: " + ipAddr}
			}
			return GuardResult{Decision: GuardAllow}
		},
	}
}
