package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"fieldserve/internal/authz"
	"fieldserve/internal/db"
	"fieldserve/internal/lifecycle"
	"fieldserve/internal/model"
	"fieldserve/internal/stats"
	"fieldserve/internal/storage"
	"fieldserve/internal/validate"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

type RequestService struct {
	store     Store
	catalog   validate.ServiceCatalog
	bus       EventBus
	journal   Journal
	jobClient JobClient
	policy    storage.AttachmentPolicy
}

func NewRequestService(store Store, catalog validate.ServiceCatalog, bus EventBus) *RequestService {
	return &RequestService{
		store:   store,
		catalog: catalog,
		bus:     bus,
		policy:  storage.DefaultAttachmentPolicy(),
	}
}

// SetJobClient sets the job client for scheduling background jobs
func (s *RequestService) SetJobClient(client JobClient) {
	s.jobClient = client
}

// SetJournal sets the audit journal for transition history
func (s *RequestService) SetJournal(j Journal) {
	s.journal = j
}

type ImageInput struct {
	Ref         string `json:"ref"`
	Caption     string `json:"caption,omitempty"`
	ContentType string `json:"contentType,omitempty"`
	Size        int64  `json:"size,omitempty"`
}

type CreateRequestInput struct {
	Payload validate.Payload
	Images  []ImageInput
}

func (s *RequestService) CreateRequest(ctx context.Context, actor model.Actor, input CreateRequestInput) (*model.Request, error) {
	if !authz.Can(actor, authz.OpCreate, nil) {
		return nil, model.ErrUnauthorized
	}

	res := validate.Check(ctx, input.Payload, validate.Create, time.Now(), s.catalog)
	if !res.Valid {
		return nil, &model.ValidationError{Fields: res.Errors}
	}

	for _, img := range input.Images {
		if err := s.policy.ValidateAttachment(img.Ref, img.ContentType, img.Size); err != nil {
			return nil, &model.ValidationError{Fields: map[string]string{"images": err.Error()}}
		}
	}

	rate, _ := strconv.ParseFloat(strings.TrimSpace(input.Payload.Rate), 64)
	var endDate *string
	if input.Payload.EndDate != "" {
		endDate = &input.Payload.EndDate
	}

	requestID := ulid.Make().String()
	row, err := s.store.CreateRequest(ctx, db.CreateRequestParams{
		ID:                   requestID,
		ClientID:             actor.ID,
		TechnicianTitle:      input.Payload.TechnicianTitle,
		ServiceID:            input.Payload.ServiceID,
		Location:             input.Payload.Location,
		ContactNo:            input.Payload.ContactNo,
		Description:          input.Payload.Description,
		SpecialTools:         input.Payload.SpecialTools,
		PickupLocation:       input.Payload.PickupLocation,
		DeliveryInstructions: input.Payload.DeliveryInstructions,
		StartDate:            input.Payload.StartDate,
		StartTime:            input.Payload.StartTime,
		EndDate:              endDate,
		PayType:              input.Payload.PayType,
		Rate:                 rate,
		Status:               string(model.StatusPending),
	})
	if err != nil {
		return nil, storeErr("failed to create request", err)
	}

	for i, img := range input.Images {
		if err := s.store.InsertImage(ctx, db.Image{
			ID:        uuid.NewString(),
			RequestID: requestID,
			Ref:       img.Ref,
			Caption:   img.Caption,
			Position:  i,
		}); err != nil {
			return nil, storeErr("failed to attach image", err)
		}
	}

	_ = s.bus.PublishClient(actor.ID, map[string]interface{}{
		"type":      "request.created",
		"requestId": requestID,
	})
	_ = s.bus.PublishAdmins(map[string]interface{}{
		"type":      "request.created",
		"requestId": requestID,
		"clientId":  actor.ID,
	})

	rec := s.assemble(ctx, row)
	return &rec, nil
}

// GetRequest fetches a record the actor is allowed to see. Records the
// actor may not see come back as not-found so clients never learn about
// other clients' requests.
func (s *RequestService) GetRequest(ctx context.Context, actor model.Actor, id string) (*model.Request, error) {
	row, assigned, err := s.fetchVisible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	_ = assigned
	rec := s.assemble(ctx, row)
	return &rec, nil
}

// ListRequests returns records scoped to the actor's role: admins see
// everything, clients their own, technicians their assignments.
func (s *RequestService) ListRequests(ctx context.Context, actor model.Actor, status string, limit, offset int) ([]model.Request, error) {
	if !authz.Can(actor, authz.OpList, nil) {
		return nil, model.ErrUnauthorized
	}

	filter := db.ListRequestsFilter{Limit: limit, Offset: offset}
	if status != "" {
		filter.Status = &status
	}
	switch actor.Role {
	case model.RoleClient:
		filter.ClientID = &actor.ID
	case model.RoleTechnician:
		filter.TechnicianID = &actor.ID
	}

	rows, err := s.store.ListRequests(ctx, filter)
	if err != nil {
		return nil, storeErr("failed to list requests", err)
	}

	out := make([]model.Request, 0, len(rows))
	for _, row := range rows {
		out = append(out, s.assemble(ctx, row))
	}
	return out, nil
}

// UpdateRequestInput is a sparse patch. Nil fields are not touched.
type UpdateRequestInput struct {
	TechnicianTitle      *string  `json:"technicianTitle,omitempty"`
	ServiceID            *string  `json:"serviceId,omitempty"`
	Location             *string  `json:"location,omitempty"`
	ContactNo            *string  `json:"contactNo,omitempty"`
	Description          *string  `json:"description,omitempty"`
	SpecialTools         *string  `json:"specialTools,omitempty"`
	PickupLocation       *string  `json:"pickupLocation,omitempty"`
	DeliveryInstructions *string  `json:"deliveryInstructions,omitempty"`
	StartDate            *string  `json:"startDate,omitempty"`
	StartTime            *string  `json:"startTime,omitempty"`
	EndDate              *string  `json:"endDate,omitempty"`
	PayType              *string  `json:"payType,omitempty"`
	Rate                 *string  `json:"rate,omitempty"`
	AdminPayType         *string  `json:"adminPayType,omitempty"`
	AdminRate            *float64 `json:"adminRate,omitempty"`
	Deliverables         *string  `json:"deliverables,omitempty"`
}

func (in UpdateRequestInput) touchesClientFields() bool {
	return in.TechnicianTitle != nil || in.ServiceID != nil || in.Location != nil ||
		in.ContactNo != nil || in.Description != nil || in.PickupLocation != nil ||
		in.PayType != nil || in.Rate != nil
}

func (in UpdateRequestInput) touchesAdminFields() bool {
	return in.AdminPayType != nil || in.AdminRate != nil || in.Deliverables != nil
}

// UpdateRequest applies a field edit. Edits never auto-retry on a version
// race: the caller must re-read and decide again.
func (s *RequestService) UpdateRequest(ctx context.Context, actor model.Actor, id string, input UpdateRequestInput) (*model.Request, error) {
	row, _, err := s.fetchVisible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	rec := dbRequestToModel(row)

	switch actor.Role {
	case model.RoleClient:
		if input.touchesAdminFields() {
			return nil, model.ErrUnauthorized
		}
		if !authz.Can(actor, authz.OpEditPending, &rec) {
			return nil, model.ErrUnauthorized
		}
		merged := mergePayload(validate.FromRequest(rec), input)
		res := validate.Check(ctx, merged, validate.EditPending, time.Now(), s.catalog)
		if !res.Valid {
			return nil, &model.ValidationError{Fields: res.Errors}
		}
	case model.RoleAdmin, model.RoleTechnician:
		// Administrative edits cover schedule, tools, instructions and the
		// admin pay terms; client-authored fields stay with the client.
		if input.touchesClientFields() {
			return nil, model.ErrUnauthorized
		}
		if rec.Status == model.StatusCompleted {
			return nil, model.ErrUnauthorized
		}
		if !authz.Can(actor, authz.OpEditAdminFields, &rec) {
			return nil, model.ErrUnauthorized
		}
		if errs := checkAdminPatch(input, time.Now()); len(errs) > 0 {
			return nil, &model.ValidationError{Fields: errs}
		}
	default:
		return nil, model.ErrUnauthorized
	}

	params := db.UpdateRequestParams{
		TechnicianTitle:      input.TechnicianTitle,
		ServiceID:            input.ServiceID,
		Location:             input.Location,
		ContactNo:            input.ContactNo,
		Description:          input.Description,
		SpecialTools:         input.SpecialTools,
		PickupLocation:       input.PickupLocation,
		DeliveryInstructions: input.DeliveryInstructions,
		StartDate:            input.StartDate,
		StartTime:            input.StartTime,
		EndDate:              input.EndDate,
		PayType:              input.PayType,
		AdminPayType:         input.AdminPayType,
		AdminRate:            input.AdminRate,
		Deliverables:         input.Deliverables,
		ExpectVersion:        row.Version,
	}
	if input.Rate != nil {
		rate, _ := strconv.ParseFloat(strings.TrimSpace(*input.Rate), 64)
		params.Rate = &rate
	}

	updated, err := s.store.UpdateRequest(ctx, id, params)
	if errors.Is(err, db.ErrVersionConflict) {
		return nil, model.ErrConflict
	}
	if err != nil {
		return nil, storeErr("failed to update request", err)
	}

	_ = s.bus.PublishRequest(id, map[string]interface{}{
		"type":      "request.updated",
		"requestId": id,
	})

	out := s.assemble(ctx, updated)
	return &out, nil
}

// Transition moves a record to target on behalf of actor. The commit is
// read-validate-write against the freshest version; if another writer got
// there first the whole decision is re-run once against the refreshed
// record (transitions are idempotent, so the retry is safe).
func (s *RequestService) Transition(ctx context.Context, actor model.Actor, id string, target model.Status, force bool) (*model.Request, error) {
	for attempt := 0; attempt < 2; attempt++ {
		row, _, err := s.fetchVisible(ctx, actor, id)
		if err != nil {
			return nil, err
		}
		rec := dbRequestToModel(row)

		if !authz.Can(actor, authz.OpTransition, &rec) {
			return nil, model.ErrUnauthorized
		}

		updated, err := lifecycle.Transition(ctx, rec, target, actor, lifecycle.Options{
			Force: force,
			Now:   time.Now(),
		})
		if err != nil {
			return nil, err
		}
		if updated.Status == rec.Status {
			// Idempotent re-application, nothing to commit.
			out := s.assemble(ctx, row)
			return &out, nil
		}

		committed, err := s.store.UpdateRequestStatus(ctx, id, string(updated.Status), row.Version, updated.StartDate, updated.StartTime)
		if errors.Is(err, db.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, storeErr("failed to commit transition", err)
		}

		s.announceTransition(ctx, committed, rec.Status, updated.Status, actor)
		out := s.assemble(ctx, committed)
		return &out, nil
	}
	return nil, model.ErrConflict
}

func (s *RequestService) announceTransition(ctx context.Context, row db.Request, from, to model.Status, actor model.Actor) {
	event := map[string]interface{}{
		"type":      "request.status_changed",
		"requestId": row.ID,
		"from":      string(from),
		"to":        string(to),
		"actorId":   actor.ID,
		"actorRole": string(actor.Role),
	}
	_ = s.bus.PublishRequest(row.ID, event)
	_ = s.bus.PublishClient(row.ClientID, event)
	_ = s.bus.PublishAdmins(event)
	if task, err := s.store.GetTaskByRequestID(ctx, row.ID); err == nil {
		_ = s.bus.PublishTechnician(task.TechnicianID, event)
	}
	if s.journal != nil {
		_ = s.journal.Append(ctx, row.ID, event)
	}
}

type AssignInput struct {
	TechnicianID      string `json:"technicianId"`
	TechnicianPayType string `json:"technicianPayType"`
	TechnicianRate    float64 `json:"technicianRate"`
}

// Assign binds a technician to a request, materializing its task.
func (s *RequestService) Assign(ctx context.Context, actor model.Actor, id string, input AssignInput) (*model.Task, error) {
	row, _, err := s.fetchVisible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	rec := dbRequestToModel(row)

	if !authz.Can(actor, authz.OpAssign, &rec) {
		return nil, model.ErrUnauthorized
	}
	if rec.Status == model.StatusCompleted {
		return nil, model.ErrIllegalEdge
	}
	if _, err := s.store.GetTaskByRequestID(ctx, id); err == nil {
		return nil, model.ErrConflict
	}

	tech, err := s.store.GetTechnicianByID(ctx, input.TechnicianID)
	if err != nil {
		return nil, storeErr("technician lookup failed", err)
	}
	if !tech.Active {
		return nil, &model.ValidationError{Fields: map[string]string{"technicianId": "technician is not active"}}
	}

	payType := model.PayType(input.TechnicianPayType)
	if payType != model.PayFlat && payType != model.PayHourly {
		return nil, &model.ValidationError{Fields: map[string]string{"technicianPayType": "must be flat or hourly"}}
	}
	if input.TechnicianRate <= 0 {
		return nil, &model.ValidationError{Fields: map[string]string{"technicianRate": "must be a positive number"}}
	}

	taskRow, err := s.store.CreateTask(ctx, db.CreateTaskParams{
		ID:                ulid.Make().String(),
		RequestID:         id,
		TechnicianID:      input.TechnicianID,
		TechnicianPayType: input.TechnicianPayType,
		TechnicianRate:    input.TechnicianRate,
	})
	if err != nil {
		return nil, storeErr("failed to create task", err)
	}

	event := map[string]interface{}{
		"type":         "request.assigned",
		"requestId":    id,
		"technicianId": input.TechnicianID,
	}
	_ = s.bus.PublishRequest(id, event)
	_ = s.bus.PublishTechnician(input.TechnicianID, event)
	_ = s.bus.PublishClient(rec.ClientID, event)
	if s.journal != nil {
		_ = s.journal.Append(ctx, id, event)
	}

	if s.jobClient != nil && rec.StartDate != "" {
		if at, err := time.ParseInLocation("2006-01-02 15:04", rec.StartDate+" "+orMidnight(rec.StartTime), time.Local); err == nil && at.After(time.Now()) {
			_ = s.jobClient.ScheduleStartReminder(id, at)
		}
	}

	task := dbTaskToModel(taskRow, rec.Status)
	return &task, nil
}

// AttachImage appends an image to a pending request owned by the client.
func (s *RequestService) AttachImage(ctx context.Context, actor model.Actor, id string, input ImageInput) (*model.Request, error) {
	row, _, err := s.fetchVisible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	rec := dbRequestToModel(row)
	if !authz.Can(actor, authz.OpEditPending, &rec) {
		return nil, model.ErrUnauthorized
	}
	if err := s.policy.ValidateAttachment(input.Ref, input.ContentType, input.Size); err != nil {
		return nil, &model.ValidationError{Fields: map[string]string{"images": err.Error()}}
	}

	existing, err := s.store.ListImages(ctx, id)
	if err != nil {
		return nil, storeErr("failed to list images", err)
	}
	if err := s.store.InsertImage(ctx, db.Image{
		ID:        uuid.NewString(),
		RequestID: id,
		Ref:       input.Ref,
		Caption:   input.Caption,
		Position:  len(existing),
	}); err != nil {
		return nil, storeErr("failed to attach image", err)
	}

	out := s.assemble(ctx, row)
	return &out, nil
}

// RemoveImage detaches an image while the request is still pending.
// Removal after submission out of pending is not modeled.
func (s *RequestService) RemoveImage(ctx context.Context, actor model.Actor, id, imageID string) error {
	row, _, err := s.fetchVisible(ctx, actor, id)
	if err != nil {
		return err
	}
	rec := dbRequestToModel(row)
	if !authz.Can(actor, authz.OpEditPending, &rec) {
		return model.ErrUnauthorized
	}

	n, err := s.store.DeleteImage(ctx, id, imageID)
	if err != nil {
		return storeErr("failed to remove image", err)
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}

// Aggregate rolls up status counts over a window across the actor's scope.
func (s *RequestService) Aggregate(ctx context.Context, actor model.Actor, window stats.Window) (stats.Summary, error) {
	if !authz.Can(actor, authz.OpAggregate, nil) {
		return stats.Summary{}, model.ErrUnauthorized
	}

	rows, err := s.store.ListRequests(ctx, db.ListRequestsFilter{Limit: 10000})
	if err != nil {
		return stats.Summary{}, storeErr("failed to list requests", err)
	}
	records := make([]model.Request, 0, len(rows))
	for _, row := range rows {
		records = append(records, dbRequestToModel(row))
	}
	return stats.Aggregate(records, window, time.Now()), nil
}

// fetchVisible loads a record and enforces visibility: a record the actor
// may not see is indistinguishable from a missing one.
func (s *RequestService) fetchVisible(ctx context.Context, actor model.Actor, id string) (db.Request, string, error) {
	row, err := s.store.GetRequestByID(ctx, id)
	if err != nil {
		return db.Request{}, "", storeErr("failed to fetch request", err)
	}

	assigned := ""
	if task, err := s.store.GetTaskByRequestID(ctx, id); err == nil {
		assigned = task.TechnicianID
	}

	if !authz.CanSeeRecord(actor, dbRequestToModel(row), assigned) {
		return db.Request{}, "", model.ErrNotFound
	}
	return row, assigned, nil
}

// assemble attaches images to a bare request row.
func (s *RequestService) assemble(ctx context.Context, row db.Request) model.Request {
	rec := dbRequestToModel(row)
	if imgs, err := s.store.ListImages(ctx, row.ID); err == nil {
		for _, img := range imgs {
			rec.Images = append(rec.Images, dbImageToModel(img))
		}
	}
	return rec
}

func mergePayload(base validate.Payload, in UpdateRequestInput) validate.Payload {
	apply := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	apply(&base.TechnicianTitle, in.TechnicianTitle)
	apply(&base.ServiceID, in.ServiceID)
	apply(&base.Location, in.Location)
	apply(&base.ContactNo, in.ContactNo)
	apply(&base.Description, in.Description)
	apply(&base.SpecialTools, in.SpecialTools)
	apply(&base.PickupLocation, in.PickupLocation)
	apply(&base.DeliveryInstructions, in.DeliveryInstructions)
	apply(&base.StartDate, in.StartDate)
	apply(&base.StartTime, in.StartTime)
	apply(&base.EndDate, in.EndDate)
	apply(&base.PayType, in.PayType)
	apply(&base.Rate, in.Rate)
	return base
}

func checkAdminPatch(in UpdateRequestInput, now time.Time) map[string]string {
	errs := map[string]string{}
	if in.AdminPayType != nil {
		switch model.PayType(*in.AdminPayType) {
		case model.PayFlat, model.PayHourly:
		default:
			errs["adminPayType"] = "must be flat or hourly"
		}
	}
	if in.AdminRate != nil && *in.AdminRate <= 0 {
		errs["adminRate"] = "must be a positive number"
	}
	if in.StartDate != nil {
		if _, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(*in.StartDate), now.Location()); err != nil {
			errs["startDate"] = "must be a valid date (YYYY-MM-DD)"
		}
	}
	if in.StartTime != nil {
		if _, err := time.Parse("15:04", strings.TrimSpace(*in.StartTime)); err != nil {
			errs["startTime"] = "must be a valid time (HH:MM)"
		}
	}
	return errs
}

func orMidnight(t string) string {
	if t == "" {
		return "00:00"
	}
	return t
}
