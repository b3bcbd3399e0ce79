package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"fieldserve/internal/db"
	"fieldserve/internal/model"
	"fieldserve/internal/stats"
	"fieldserve/internal/validate"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory Store. Version bookkeeping mirrors the real
// queries: every successful write bumps the row version, and a stale
// ExpectVersion comes back as db.ErrVersionConflict.
type fakeStore struct {
	requests    map[string]db.Request
	images      map[string][]db.Image
	tasks       map[string]db.Task // keyed by request id
	technicians map[string]db.Technician

	// forceUpdateConflicts / forceStatusConflicts make the next N writes
	// fail with a version conflict, simulating a concurrent writer.
	forceUpdateConflicts int
	forceStatusConflicts int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		requests:    map[string]db.Request{},
		images:      map[string][]db.Image{},
		tasks:       map[string]db.Task{},
		technicians: map[string]db.Technician{},
	}
}

func (f *fakeStore) CreateRequest(_ context.Context, p db.CreateRequestParams) (db.Request, error) {
	now := time.Now()
	row := db.Request{
		ID:                   p.ID,
		ClientID:             p.ClientID,
		TechnicianTitle:      p.TechnicianTitle,
		ServiceID:            p.ServiceID,
		Location:             p.Location,
		ContactNo:            p.ContactNo,
		Description:          p.Description,
		SpecialTools:         p.SpecialTools,
		PickupLocation:       p.PickupLocation,
		DeliveryInstructions: p.DeliveryInstructions,
		StartDate:            p.StartDate,
		StartTime:            p.StartTime,
		EndDate:              p.EndDate,
		PayType:              p.PayType,
		Rate:                 p.Rate,
		Status:               p.Status,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	f.requests[p.ID] = row
	return row, nil
}

func (f *fakeStore) GetRequestByID(_ context.Context, id string) (db.Request, error) {
	row, ok := f.requests[id]
	if !ok {
		return db.Request{}, pgx.ErrNoRows
	}
	return row, nil
}

func (f *fakeStore) ListRequests(_ context.Context, filter db.ListRequestsFilter) ([]db.Request, error) {
	var out []db.Request
	for _, row := range f.requests {
		if filter.ClientID != nil && row.ClientID != *filter.ClientID {
			continue
		}
		if filter.Status != nil && row.Status != *filter.Status {
			continue
		}
		if filter.TechnicianID != nil {
			task, ok := f.tasks[row.ID]
			if !ok || task.TechnicianID != *filter.TechnicianID {
				continue
			}
		}
		out = append(out, row)
	}
	return out, nil
}

func (f *fakeStore) UpdateRequest(_ context.Context, id string, p db.UpdateRequestParams) (db.Request, error) {
	row, ok := f.requests[id]
	if !ok {
		return db.Request{}, pgx.ErrNoRows
	}
	if f.forceUpdateConflicts > 0 {
		f.forceUpdateConflicts--
		row.Version++
		f.requests[id] = row
		return db.Request{}, db.ErrVersionConflict
	}
	if p.ExpectVersion != row.Version {
		return db.Request{}, db.ErrVersionConflict
	}

	apply := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	apply(&row.TechnicianTitle, p.TechnicianTitle)
	apply(&row.ServiceID, p.ServiceID)
	apply(&row.Location, p.Location)
	apply(&row.ContactNo, p.ContactNo)
	apply(&row.Description, p.Description)
	apply(&row.SpecialTools, p.SpecialTools)
	apply(&row.PickupLocation, p.PickupLocation)
	apply(&row.DeliveryInstructions, p.DeliveryInstructions)
	apply(&row.StartDate, p.StartDate)
	apply(&row.StartTime, p.StartTime)
	apply(&row.PayType, p.PayType)
	if p.EndDate != nil {
		row.EndDate = p.EndDate
	}
	if p.Rate != nil {
		row.Rate = *p.Rate
	}
	if p.AdminPayType != nil {
		row.AdminPayType = p.AdminPayType
	}
	if p.AdminRate != nil {
		row.AdminRate = p.AdminRate
	}
	if p.Deliverables != nil {
		row.Deliverables = p.Deliverables
	}
	row.Version++
	row.UpdatedAt = time.Now()
	f.requests[id] = row
	return row, nil
}

func (f *fakeStore) UpdateRequestStatus(_ context.Context, id, status string, expectVersion int, startDate, startTime string) (db.Request, error) {
	row, ok := f.requests[id]
	if !ok {
		return db.Request{}, pgx.ErrNoRows
	}
	if f.forceStatusConflicts > 0 {
		f.forceStatusConflicts--
		row.Version++
		f.requests[id] = row
		return db.Request{}, db.ErrVersionConflict
	}
	if expectVersion != row.Version {
		return db.Request{}, db.ErrVersionConflict
	}
	row.Status = status
	row.StartDate = startDate
	row.StartTime = startTime
	row.Version++
	row.UpdatedAt = time.Now()
	f.requests[id] = row
	return row, nil
}

func (f *fakeStore) InsertImage(_ context.Context, img db.Image) error {
	f.images[img.RequestID] = append(f.images[img.RequestID], img)
	return nil
}

func (f *fakeStore) DeleteImage(_ context.Context, requestID, imageID string) (int64, error) {
	imgs := f.images[requestID]
	for i, img := range imgs {
		if img.ID == imageID {
			f.images[requestID] = append(imgs[:i], imgs[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

func (f *fakeStore) ListImages(_ context.Context, requestID string) ([]db.Image, error) {
	return f.images[requestID], nil
}

func (f *fakeStore) CreateTask(_ context.Context, p db.CreateTaskParams) (db.Task, error) {
	now := time.Now()
	task := db.Task{
		ID:                p.ID,
		RequestID:         p.RequestID,
		TechnicianID:      p.TechnicianID,
		TechnicianPayType: p.TechnicianPayType,
		TechnicianRate:    p.TechnicianRate,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	f.tasks[p.RequestID] = task
	return task, nil
}

func (f *fakeStore) GetTaskByID(_ context.Context, id string) (db.Task, error) {
	for _, task := range f.tasks {
		if task.ID == id {
			return task, nil
		}
	}
	return db.Task{}, pgx.ErrNoRows
}

func (f *fakeStore) GetTaskByRequestID(_ context.Context, requestID string) (db.Task, error) {
	task, ok := f.tasks[requestID]
	if !ok {
		return db.Task{}, pgx.ErrNoRows
	}
	return task, nil
}

func (f *fakeStore) ListTasksByTechnician(_ context.Context, technicianID string, _, _ int) ([]db.Task, error) {
	var out []db.Task
	for _, task := range f.tasks {
		if task.TechnicianID == technicianID {
			out = append(out, task)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateTaskDeliverables(_ context.Context, id, deliverables string) (db.Task, error) {
	for reqID, task := range f.tasks {
		if task.ID == id {
			task.Deliverables = &deliverables
			task.UpdatedAt = time.Now()
			f.tasks[reqID] = task
			return task, nil
		}
	}
	return db.Task{}, pgx.ErrNoRows
}

func (f *fakeStore) CreateTechnician(_ context.Context, id, name string) (db.Technician, error) {
	t := db.Technician{ID: id, Name: name, Active: true, CreatedAt: time.Now()}
	f.technicians[id] = t
	return t, nil
}

func (f *fakeStore) GetTechnicianByID(_ context.Context, id string) (db.Technician, error) {
	t, ok := f.technicians[id]
	if !ok {
		return db.Technician{}, pgx.ErrNoRows
	}
	return t, nil
}

func (f *fakeStore) SetTechnicianActive(_ context.Context, id string, active bool) (db.Technician, error) {
	t, ok := f.technicians[id]
	if !ok {
		return db.Technician{}, pgx.ErrNoRows
	}
	t.Active = active
	f.technicians[id] = t
	return t, nil
}

// memBus records published events as "<channel>:<type>" strings.
type memBus struct {
	events []string
}

func (b *memBus) record(channel string, event map[string]interface{}) error {
	b.events = append(b.events, fmt.Sprintf("%s:%v", channel, event["type"]))
	return nil
}

func (b *memBus) PublishClient(clientID string, event map[string]interface{}) error {
	return b.record("client:"+clientID, event)
}

func (b *memBus) PublishRequest(requestID string, event map[string]interface{}) error {
	return b.record("request", event)
}

func (b *memBus) PublishTechnician(technicianID string, event map[string]interface{}) error {
	return b.record("technician:"+technicianID, event)
}

func (b *memBus) PublishAdmins(event map[string]interface{}) error {
	return b.record("admins", event)
}

var (
	client     = model.Actor{ID: "client-1", Role: model.RoleClient}
	otherGuy   = model.Actor{ID: "client-2", Role: model.RoleClient}
	admin      = model.Actor{ID: "admin-1", Role: model.RoleAdmin}
	technician = model.Actor{ID: "tech-1", Role: model.RoleTechnician}
)

func newTestService() (*RequestService, *fakeStore, *memBus) {
	store := newFakeStore()
	bus := &memBus{}
	return NewRequestService(store, NewStaticCatalog(nil), bus), store, bus
}

func createBody() CreateRequestInput {
	tomorrow := time.Now().AddDate(0, 0, 1).Format("2006-01-02")
	return CreateRequestInput{Payload: validate.Payload{
		TechnicianTitle:      "Plumber",
		ServiceID:            "plumbing",
		Location:             "12 High St",
		ContactNo:            "+12345678901",
		Description:          "Kitchen sink leaking under the basin, needs resealing.",
		SpecialTools:         "pipe wrench, sealant",
		PickupLocation:       "Main depot",
		DeliveryInstructions: "Leave invoice with reception.",
		StartDate:            tomorrow,
		StartTime:            "09:00",
		PayType:              "flat",
		Rate:                 "120",
	}}
}

func mustCreate(t *testing.T, svc *RequestService) *model.Request {
	t.Helper()
	rec, err := svc.CreateRequest(context.Background(), client, createBody())
	require.NoError(t, err)
	return rec
}

func strp(s string) *string { return &s }

func TestRequestLifecycle_EndToEnd(t *testing.T) {
	ctx := context.Background()
	svc, store, bus := newTestService()
	_, err := store.CreateTechnician(ctx, technician.ID, "Sam")
	require.NoError(t, err)

	// Client opens a request.
	rec := mustCreate(t, svc)
	assert.Equal(t, model.StatusPending, rec.Status)
	assert.Equal(t, client.ID, rec.ClientID)
	assert.Contains(t, bus.events, "admins:request.created")

	// Admin fills in the schedule and admin pay terms.
	rate := 100.0
	_, err = svc.UpdateRequest(ctx, admin, rec.ID, UpdateRequestInput{
		SpecialTools:         strp("pipe wrench, sealant"),
		DeliveryInstructions: strp("Leave invoice with reception."),
		AdminPayType:         strp("flat"),
		AdminRate:            &rate,
	})
	require.NoError(t, err)

	// Admin assigns a technician and starts the work.
	task, err := svc.Assign(ctx, admin, rec.ID, AssignInput{
		TechnicianID:      technician.ID,
		TechnicianPayType: "hourly",
		TechnicianRate:    45,
	})
	require.NoError(t, err)
	assert.Equal(t, technician.ID, task.TechnicianID)

	got, err := svc.Transition(ctx, admin, rec.ID, model.StatusOngoing, false)
	require.NoError(t, err)
	assert.Equal(t, model.StatusOngoing, got.Status)

	// The client may no longer edit a submitted request.
	_, err = svc.UpdateRequest(ctx, client, rec.ID, UpdateRequestInput{Location: strp("55 Low St")})
	assert.ErrorIs(t, err, model.ErrUnauthorized)

	// The assigned technician wraps up.
	got, err = svc.Transition(ctx, technician, rec.ID, model.StatusCompleted, false)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)
	assert.Contains(t, bus.events, "technician:tech-1:request.status_changed")
	assert.Contains(t, bus.events, "client:client-1:request.status_changed")
}

func TestCreateRequest_ValidationFailure(t *testing.T) {
	svc, _, _ := newTestService()
	body := createBody()
	body.Payload.Description = "too short"

	_, err := svc.CreateRequest(context.Background(), client, body)
	verr, ok := model.AsValidation(err)
	require.True(t, ok)
	assert.Contains(t, verr.Fields, "description")
}

func TestCreateRequest_RejectedForNonClients(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.CreateRequest(context.Background(), admin, createBody())
	assert.ErrorIs(t, err, model.ErrUnauthorized)
}

func TestGetRequest_OtherClientSeesNotFound(t *testing.T) {
	svc, _, _ := newTestService()
	rec := mustCreate(t, svc)

	_, err := svc.GetRequest(context.Background(), otherGuy, rec.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)

	got, err := svc.GetRequest(context.Background(), client, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
}

func TestListRequests_ScopedByRole(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()
	mustCreate(t, svc)
	_, err := svc.CreateRequest(ctx, otherGuy, createBody())
	require.NoError(t, err)

	mine, err := svc.ListRequests(ctx, client, "", 50, 0)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	all, err := svc.ListRequests(ctx, admin, "", 50, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestUpdateRequest_ClientCannotTouchAdminFields(t *testing.T) {
	svc, _, _ := newTestService()
	rec := mustCreate(t, svc)

	rate := 80.0
	_, err := svc.UpdateRequest(context.Background(), client, rec.ID, UpdateRequestInput{AdminRate: &rate})
	assert.ErrorIs(t, err, model.ErrUnauthorized)
}

func TestUpdateRequest_AdminCannotTouchClientFields(t *testing.T) {
	svc, _, _ := newTestService()
	rec := mustCreate(t, svc)

	_, err := svc.UpdateRequest(context.Background(), admin, rec.ID, UpdateRequestInput{Rate: strp("999")})
	assert.ErrorIs(t, err, model.ErrUnauthorized)
}

func TestUpdateRequest_VersionRaceSurfacesConflict(t *testing.T) {
	svc, store, _ := newTestService()
	rec := mustCreate(t, svc)
	store.forceUpdateConflicts = 1

	// A field edit must not silently retry over a concurrent writer.
	_, err := svc.UpdateRequest(context.Background(), client, rec.ID, UpdateRequestInput{Location: strp("55 Low St")})
	assert.ErrorIs(t, err, model.ErrConflict)
}

func TestTransition_RetriesOnceOnVersionRace(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService()
	rec := mustCreate(t, svc)
	_, err := svc.UpdateRequest(ctx, admin, rec.ID, UpdateRequestInput{
		SpecialTools:         strp("ladder"),
		DeliveryInstructions: strp("Ring the side door bell."),
	})
	require.NoError(t, err)

	store.forceStatusConflicts = 1
	got, err := svc.Transition(ctx, admin, rec.ID, model.StatusOngoing, false)
	require.NoError(t, err)
	assert.Equal(t, model.StatusOngoing, got.Status)

	store.forceStatusConflicts = 2
	_, err = svc.Transition(ctx, admin, rec.ID, model.StatusCompleted, false)
	assert.ErrorIs(t, err, model.ErrConflict)
}

func TestTransition_SameStatusIsNoOp(t *testing.T) {
	svc, _, bus := newTestService()
	rec := mustCreate(t, svc)
	before := len(bus.events)

	got, err := svc.Transition(context.Background(), admin, rec.ID, model.StatusPending, false)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, got.Status)
	assert.Len(t, bus.events, before, "a no-op transition publishes nothing")
}

func TestAssign_SecondAssignmentConflicts(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService()
	_, err := store.CreateTechnician(ctx, technician.ID, "Sam")
	require.NoError(t, err)
	rec := mustCreate(t, svc)

	input := AssignInput{TechnicianID: technician.ID, TechnicianPayType: "flat", TechnicianRate: 200}
	_, err = svc.Assign(ctx, admin, rec.ID, input)
	require.NoError(t, err)

	_, err = svc.Assign(ctx, admin, rec.ID, input)
	assert.ErrorIs(t, err, model.ErrConflict)
}

func TestAssign_InactiveTechnicianRejected(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService()
	_, err := store.CreateTechnician(ctx, technician.ID, "Sam")
	require.NoError(t, err)
	_, err = store.SetTechnicianActive(ctx, technician.ID, false)
	require.NoError(t, err)
	rec := mustCreate(t, svc)

	_, err = svc.Assign(ctx, admin, rec.ID, AssignInput{
		TechnicianID:      technician.ID,
		TechnicianPayType: "flat",
		TechnicianRate:    200,
	})
	verr, ok := model.AsValidation(err)
	require.True(t, ok)
	assert.Contains(t, verr.Fields, "technicianId")
}

func TestImages_AttachAndRemoveWhilePending(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService()
	rec := mustCreate(t, svc)

	got, err := svc.AttachImage(ctx, client, rec.ID, ImageInput{
		Ref:         "uploads/leak.jpg",
		Caption:     "under the sink",
		ContentType: "image/jpeg",
		Size:        1024,
	})
	require.NoError(t, err)
	require.Len(t, got.Images, 1)

	err = svc.RemoveImage(ctx, client, rec.ID, got.Images[0].ID)
	require.NoError(t, err)
	assert.Empty(t, store.images[rec.ID])

	err = svc.RemoveImage(ctx, client, rec.ID, "no-such-image")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestAggregate_AdminOnly(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()
	mustCreate(t, svc)
	mustCreate(t, svc)

	_, err := svc.Aggregate(ctx, client, stats.WindowAllTime)
	assert.ErrorIs(t, err, model.ErrUnauthorized)

	summary, err := svc.Aggregate(ctx, admin, stats.WindowAllTime)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 100, summary.PendingPct)
}
