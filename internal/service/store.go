package service

import (
	"context"
	"errors"
	"fmt"

	"fieldserve/internal/db"
	"fieldserve/internal/model"

	"github.com/jackc/pgx/v5"
)

// Store is the repository facade the services write through. *db.Queries
// is the production implementation; tests supply an in-memory fake.
type Store interface {
	CreateRequest(ctx context.Context, p db.CreateRequestParams) (db.Request, error)
	GetRequestByID(ctx context.Context, id string) (db.Request, error)
	ListRequests(ctx context.Context, f db.ListRequestsFilter) ([]db.Request, error)
	UpdateRequest(ctx context.Context, id string, p db.UpdateRequestParams) (db.Request, error)
	UpdateRequestStatus(ctx context.Context, id, status string, expectVersion int, startDate, startTime string) (db.Request, error)
	InsertImage(ctx context.Context, img db.Image) error
	DeleteImage(ctx context.Context, requestID, imageID string) (int64, error)
	ListImages(ctx context.Context, requestID string) ([]db.Image, error)
	CreateTask(ctx context.Context, p db.CreateTaskParams) (db.Task, error)
	GetTaskByID(ctx context.Context, id string) (db.Task, error)
	GetTaskByRequestID(ctx context.Context, requestID string) (db.Task, error)
	ListTasksByTechnician(ctx context.Context, technicianID string, limit, offset int) ([]db.Task, error)
	UpdateTaskDeliverables(ctx context.Context, id, deliverables string) (db.Task, error)
	CreateTechnician(ctx context.Context, id, name string) (db.Technician, error)
	GetTechnicianByID(ctx context.Context, id string) (db.Technician, error)
	SetTechnicianActive(ctx context.Context, id string, active bool) (db.Technician, error)
}

// EventBus publishes lifecycle events to interested channels.
type EventBus interface {
	PublishClient(clientID string, event map[string]interface{}) error
	PublishRequest(requestID string, event map[string]interface{}) error
	PublishTechnician(technicianID string, event map[string]interface{}) error
	PublishAdmins(event map[string]interface{}) error
}

// Journal records an append-only audit trail per request.
type Journal interface {
	Append(ctx context.Context, requestID string, event map[string]interface{}) error
}

// storeErr maps repository failures into the error taxonomy: a missing row
// is NotFound, anything else is an upstream failure the caller must not
// treat as applied.
func storeErr(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ErrNotFound
	}
	return fmt.Errorf("%s: %w: %w", op, model.ErrUpstreamUnavailable, err)
}

func dbRequestToModel(r db.Request) model.Request {
	out := model.Request{
		ID:                   r.ID,
		ClientID:             r.ClientID,
		TechnicianTitle:      r.TechnicianTitle,
		ServiceID:            r.ServiceID,
		Location:             r.Location,
		ContactNo:            r.ContactNo,
		Description:          r.Description,
		SpecialTools:         r.SpecialTools,
		PickupLocation:       r.PickupLocation,
		DeliveryInstructions: r.DeliveryInstructions,
		StartDate:            r.StartDate,
		StartTime:            r.StartTime,
		EndDate:              r.EndDate,
		PayType:              model.PayType(r.PayType),
		Rate:                 r.Rate,
		Deliverables:         r.Deliverables,
		AdminRate:            r.AdminRate,
		Status:               model.Status(r.Status),
		Version:              r.Version,
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
	}
	if r.AdminPayType != nil {
		pt := model.PayType(*r.AdminPayType)
		out.AdminPayType = &pt
	}
	return out
}

func dbImageToModel(img db.Image) model.Image {
	return model.Image{ID: img.ID, Ref: img.Ref, Caption: img.Caption}
}

func dbTaskToModel(t db.Task, status model.Status) model.Task {
	return model.Task{
		ID:                t.ID,
		RequestID:         t.RequestID,
		TechnicianID:      t.TechnicianID,
		TechnicianPayType: model.PayType(t.TechnicianPayType),
		TechnicianRate:    t.TechnicianRate,
		Deliverables:      t.Deliverables,
		Status:            status,
		CreatedAt:         t.CreatedAt,
		UpdatedAt:         t.UpdatedAt,
	}
}

func dbTechnicianToModel(t db.Technician) model.Technician {
	return model.Technician{ID: t.ID, Name: t.Name, Active: t.Active, CreatedAt: t.CreatedAt}
}
