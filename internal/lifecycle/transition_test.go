package lifecycle

import (
	"context"
	"testing"
	"time"

	"fieldserve/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readyRequest(status model.Status) model.Request {
	return model.Request{
		ID:                   "01J0TEST",
		ClientID:             "client-1",
		Status:               status,
		StartDate:            "2030-01-15",
		StartTime:            "09:00",
		SpecialTools:         "Ladder",
		DeliveryInstructions: "Call on arrival",
	}
}

func TestTransition_ClientAlwaysUnauthorized(t *testing.T) {
	rec := readyRequest(model.StatusPending)
	client := model.Actor{ID: "client-1", Role: model.RoleClient}

	_, err := Transition(context.Background(), rec, model.StatusOngoing, client, Options{})
	assert.ErrorIs(t, err, model.ErrUnauthorized)

	// Field completeness never helps a client.
	rec.SpecialTools = ""
	_, err = Transition(context.Background(), rec, model.StatusOngoing, client, Options{})
	assert.ErrorIs(t, err, model.ErrUnauthorized)
}

func TestTransition_IncompleteFields(t *testing.T) {
	rec := readyRequest(model.StatusPending)
	rec.SpecialTools = ""
	admin := model.Actor{ID: "admin-1", Role: model.RoleAdmin}

	_, err := Transition(context.Background(), rec, model.StatusOngoing, admin, Options{})
	require.Error(t, err)
	ve, ok := model.AsValidation(err)
	require.True(t, ok, "expected a validation error, got %v", err)
	assert.Contains(t, ve.Fields, "specialTools")
}

func TestTransition_HappyPath(t *testing.T) {
	admin := model.Actor{ID: "admin-1", Role: model.RoleAdmin}
	tech := model.Actor{ID: "tech-1", Role: model.RoleTechnician}

	rec := readyRequest(model.StatusPending)
	out, err := Transition(context.Background(), rec, model.StatusOngoing, admin, Options{})
	require.NoError(t, err)
	assert.Equal(t, model.StatusOngoing, out.Status)

	out, err = Transition(context.Background(), out, model.StatusCompleted, tech, Options{})
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, out.Status)
}

func TestTransition_NoBackwardEdges(t *testing.T) {
	admin := model.Actor{ID: "admin-1", Role: model.RoleAdmin}

	_, err := Transition(context.Background(), readyRequest(model.StatusCompleted), model.StatusPending, admin, Options{})
	assert.ErrorIs(t, err, model.ErrIllegalEdge)

	_, err = Transition(context.Background(), readyRequest(model.StatusOngoing), model.StatusPending, admin, Options{})
	assert.ErrorIs(t, err, model.ErrIllegalEdge)

	_, err = Transition(context.Background(), readyRequest(model.StatusCompleted), model.StatusOngoing, admin, Options{})
	assert.ErrorIs(t, err, model.ErrIllegalEdge)
}

func TestTransition_Idempotent(t *testing.T) {
	admin := model.Actor{ID: "admin-1", Role: model.RoleAdmin}
	rec := readyRequest(model.StatusOngoing)

	out, err := Transition(context.Background(), rec, model.StatusOngoing, admin, Options{})
	require.NoError(t, err)
	assert.Equal(t, model.StatusOngoing, out.Status)
	assert.Equal(t, rec.UpdatedAt, out.UpdatedAt, "no-op must not touch the record")
}

func TestTransition_SkipRequiresExplicitForce(t *testing.T) {
	admin := model.Actor{ID: "admin-1", Role: model.RoleAdmin}
	tech := model.Actor{ID: "tech-1", Role: model.RoleTechnician}
	rec := readyRequest(model.StatusPending)

	// Without the explicit override the skip is an illegal edge.
	_, err := Transition(context.Background(), rec, model.StatusCompleted, admin, Options{})
	assert.ErrorIs(t, err, model.ErrIllegalEdge)

	// Technicians may not force even with the flag.
	_, err = Transition(context.Background(), rec, model.StatusCompleted, tech, Options{Force: true})
	assert.ErrorIs(t, err, model.ErrUnauthorized)

	out, err := Transition(context.Background(), rec, model.StatusCompleted, admin, Options{Force: true})
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, out.Status)
}

func TestTransition_ForcedCompletionFillsScheduleOnly(t *testing.T) {
	admin := model.Actor{ID: "admin-1", Role: model.RoleAdmin}
	now := time.Date(2026, 8, 30, 14, 30, 0, 0, time.Local)

	rec := readyRequest(model.StatusPending)
	rec.StartDate = ""
	rec.StartTime = ""

	out, err := Transition(context.Background(), rec, model.StatusCompleted, admin, Options{Force: true, Now: now})
	require.NoError(t, err)
	assert.Equal(t, "2026-08-30", out.StartDate)
	assert.Equal(t, "14:30", out.StartTime)

	// Missing tools are never fabricated, forced or not.
	rec.SpecialTools = ""
	_, err = Transition(context.Background(), rec, model.StatusCompleted, admin, Options{Force: true, Now: now})
	ve, ok := model.AsValidation(err)
	require.True(t, ok, "expected a validation error, got %v", err)
	assert.Contains(t, ve.Fields, "specialTools")
}

func TestTransition_UnknownTarget(t *testing.T) {
	admin := model.Actor{ID: "admin-1", Role: model.RoleAdmin}
	_, err := Transition(context.Background(), readyRequest(model.StatusPending), model.Status("archived"), admin, Options{})
	assert.ErrorIs(t, err, model.ErrIllegalEdge)
}
