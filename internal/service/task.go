package service

import (
	"context"

	"fieldserve/internal/authz"
	"fieldserve/internal/model"

	"github.com/oklog/ulid/v2"
)

type TaskService struct {
	store Store
	bus   EventBus
}

func NewTaskService(store Store, bus EventBus) *TaskService {
	return &TaskService{store: store, bus: bus}
}

// GetTask fetches a task visible to the actor. Status is joined in from
// the owning request, which is the source of truth for it.
func (s *TaskService) GetTask(ctx context.Context, actor model.Actor, id string) (*model.Task, error) {
	row, err := s.store.GetTaskByID(ctx, id)
	if err != nil {
		return nil, storeErr("failed to fetch task", err)
	}
	req, err := s.store.GetRequestByID(ctx, row.RequestID)
	if err != nil {
		return nil, storeErr("failed to fetch request for task", err)
	}

	rec := dbRequestToModel(req)
	if !authz.CanSeeRecord(actor, rec, row.TechnicianID) {
		return nil, model.ErrNotFound
	}

	task := dbTaskToModel(row, rec.Status)
	return &task, nil
}

// ListTasks lists a technician's assignments. Admins may list for any
// technician; technicians only for themselves.
func (s *TaskService) ListTasks(ctx context.Context, actor model.Actor, technicianID string, limit, offset int) ([]model.Task, error) {
	if !authz.Can(actor, authz.OpList, nil) {
		return nil, model.ErrUnauthorized
	}
	switch actor.Role {
	case model.RoleTechnician:
		technicianID = actor.ID
	case model.RoleAdmin:
	default:
		return nil, model.ErrUnauthorized
	}

	rows, err := s.store.ListTasksByTechnician(ctx, technicianID, limit, offset)
	if err != nil {
		return nil, storeErr("failed to list tasks", err)
	}

	out := make([]model.Task, 0, len(rows))
	for _, row := range rows {
		status := model.StatusPending
		if req, err := s.store.GetRequestByID(ctx, row.RequestID); err == nil {
			status = model.Status(req.Status)
		}
		out = append(out, dbTaskToModel(row, status))
	}
	return out, nil
}

// AuthorDeliverables records the technician-authored deliverables on a
// task. Distinct from the admin-authored deliverables on the request.
func (s *TaskService) AuthorDeliverables(ctx context.Context, actor model.Actor, taskID, deliverables string) (*model.Task, error) {
	row, err := s.store.GetTaskByID(ctx, taskID)
	if err != nil {
		return nil, storeErr("failed to fetch task", err)
	}
	req, err := s.store.GetRequestByID(ctx, row.RequestID)
	if err != nil {
		return nil, storeErr("failed to fetch request for task", err)
	}
	rec := dbRequestToModel(req)

	if !authz.CanSeeRecord(actor, rec, row.TechnicianID) {
		return nil, model.ErrNotFound
	}
	if !authz.Can(actor, authz.OpAuthorDeliverables, &rec) {
		return nil, model.ErrUnauthorized
	}
	if rec.Status == model.StatusCompleted {
		return nil, model.ErrUnauthorized
	}

	updated, err := s.store.UpdateTaskDeliverables(ctx, taskID, deliverables)
	if err != nil {
		return nil, storeErr("failed to update deliverables", err)
	}

	_ = s.bus.PublishRequest(row.RequestID, map[string]interface{}{
		"type":      "task.deliverables_updated",
		"taskId":    taskID,
		"requestId": row.RequestID,
	})

	task := dbTaskToModel(updated, rec.Status)
	return &task, nil
}

// CreateTechnician registers a technician account (admin only).
func (s *TaskService) CreateTechnician(ctx context.Context, actor model.Actor, name string) (*model.Technician, error) {
	if !authz.Can(actor, authz.OpManageTechnicians, nil) {
		return nil, model.ErrUnauthorized
	}
	row, err := s.store.CreateTechnician(ctx, ulid.Make().String(), name)
	if err != nil {
		return nil, storeErr("failed to create technician", err)
	}
	tech := dbTechnicianToModel(row)
	return &tech, nil
}

// SetTechnicianActive activates or deactivates a technician account.
func (s *TaskService) SetTechnicianActive(ctx context.Context, actor model.Actor, id string, active bool) (*model.Technician, error) {
	if !authz.Can(actor, authz.OpManageTechnicians, nil) {
		return nil, model.ErrUnauthorized
	}
	row, err := s.store.SetTechnicianActive(ctx, id, active)
	if err != nil {
		return nil, storeErr("failed to update technician", err)
	}

	_ = s.bus.PublishTechnician(id, map[string]interface{}{
		"type":   "technician.active_changed",
		"active": active,
	})

	tech := dbTechnicianToModel(row)
	return &tech, nil
}
