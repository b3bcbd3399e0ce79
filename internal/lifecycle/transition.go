package lifecycle

import (
	"context"
	"time"

	"fieldserve/internal/model"
	"fieldserve/internal/validate"
)

// Options tunes a single transition attempt.
type Options struct {
	// Force marks an explicit admin override (pending straight to completed).
	// Only a forced completion may fill today/now defaults for a missing
	// start date/time; nothing else is ever fabricated.
	Force bool
	// Now is the clock for default-filling and the pre-transition check.
	Now time.Time
}

type edge struct {
	from, to model.Status
}

// Roles allowed per edge. The pending->completed override is admin-only and
// additionally requires Options.Force.
var edgeRoles = map[edge][]model.Role{
	{model.StatusPending, model.StatusOngoing}:   {model.RoleAdmin, model.RoleTechnician},
	{model.StatusOngoing, model.StatusCompleted}: {model.RoleAdmin, model.RoleTechnician},
	{model.StatusPending, model.StatusCompleted}: {model.RoleAdmin},
}

// Transition decides whether rec may move to target on behalf of actor and,
// if so, returns the updated record. Business-rule violations come back as
// typed errors, never panics: model.ErrUnauthorized, model.ErrIllegalEdge,
// or a *model.ValidationError listing the missing fields.
func Transition(ctx context.Context, rec model.Request, target model.Status, actor model.Actor, opts Options) (model.Request, error) {
	if !target.Valid() {
		return rec, model.ErrIllegalEdge
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	// Re-applying the current status is an idempotent no-op success,
	// though never for clients, who may not touch status at all.
	if target == rec.Status {
		if actor.Role == model.RoleClient {
			return rec, model.ErrUnauthorized
		}
		return rec, nil
	}

	roles, ok := edgeRoles[edge{rec.Status, target}]
	if !ok {
		return rec, model.ErrIllegalEdge
	}
	if !roleAllowed(roles, actor.Role) {
		return rec, model.ErrUnauthorized
	}

	forced := rec.Status == model.StatusPending && target == model.StatusCompleted
	if forced {
		if !opts.Force {
			return rec, model.ErrIllegalEdge
		}
		if rec.StartDate == "" {
			rec.StartDate = opts.Now.Format("2006-01-02")
		}
		if rec.StartTime == "" {
			rec.StartTime = opts.Now.Format("15:04")
		}
	}

	// Every edge out of pending requires the record to be schedulable.
	if rec.Status == model.StatusPending {
		res := validate.Check(ctx, validate.FromRequest(rec), validate.PreTransition, opts.Now, nil)
		if !res.Valid {
			return rec, &model.ValidationError{Fields: res.Errors}
		}
	}

	rec.Status = target
	rec.UpdatedAt = opts.Now
	return rec, nil
}

func roleAllowed(roles []model.Role, r model.Role) bool {
	for _, allowed := range roles {
		if allowed == r {
			return true
		}
	}
	return false
}
