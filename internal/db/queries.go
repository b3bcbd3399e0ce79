package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrVersionConflict is returned when a guarded update found a newer version
// of the row than the caller read.
var ErrVersionConflict = errors.New("version conflict")

// Queries wraps database queries
type Queries struct {
	*pgxpool.Pool
}

// NewQueries creates a new Queries instance
func NewQueries(pool *pgxpool.Pool) *Queries {
	return &Queries{Pool: pool}
}

// Request represents a requests row
type Request struct {
	ID                   string
	ClientID             string
	TechnicianTitle      string
	ServiceID            string
	Location             string
	ContactNo            string
	Description          string
	SpecialTools         string
	PickupLocation       string
	DeliveryInstructions string
	StartDate            string
	StartTime            string
	EndDate              *string
	PayType              string
	Rate                 float64
	AdminPayType         *string
	AdminRate            *float64
	Deliverables         *string
	Status               string
	Version              int
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

const requestColumns = `id, client_id, technician_title, service_id, location, contact_no,
	description, special_tools, pickup_location, delivery_instructions,
	start_date, start_time, end_date, pay_type, rate,
	admin_pay_type, admin_rate, deliverables, status, version, created_at, updated_at`

func scanRequest(row pgx.Row) (Request, error) {
	var r Request
	err := row.Scan(
		&r.ID, &r.ClientID, &r.TechnicianTitle, &r.ServiceID, &r.Location, &r.ContactNo,
		&r.Description, &r.SpecialTools, &r.PickupLocation, &r.DeliveryInstructions,
		&r.StartDate, &r.StartTime, &r.EndDate, &r.PayType, &r.Rate,
		&r.AdminPayType, &r.AdminRate, &r.Deliverables, &r.Status, &r.Version, &r.CreatedAt, &r.UpdatedAt,
	)
	return r, err
}

type CreateRequestParams struct {
	ID                   string
	ClientID             string
	TechnicianTitle      string
	ServiceID            string
	Location             string
	ContactNo            string
	Description          string
	SpecialTools         string
	PickupLocation       string
	DeliveryInstructions string
	StartDate            string
	StartTime            string
	EndDate              *string
	PayType              string
	Rate                 float64
	Status               string
}

func (q *Queries) CreateRequest(ctx context.Context, req CreateRequestParams) (Request, error) {
	return scanRequest(q.Pool.QueryRow(ctx,
		`INSERT INTO requests (
			id, client_id, technician_title, service_id, location, contact_no,
			description, special_tools, pickup_location, delivery_instructions,
			start_date, start_time, end_date, pay_type, rate, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING `+requestColumns,
		req.ID, req.ClientID, req.TechnicianTitle, req.ServiceID, req.Location, req.ContactNo,
		req.Description, req.SpecialTools, req.PickupLocation, req.DeliveryInstructions,
		req.StartDate, req.StartTime, req.EndDate, req.PayType, req.Rate, req.Status,
	))
}

func (q *Queries) GetRequestByID(ctx context.Context, id string) (Request, error) {
	return scanRequest(q.Pool.QueryRow(ctx,
		`SELECT `+requestColumns+` FROM requests WHERE id = $1`, id))
}

// ListRequestsFilter narrows a listing. Nil fields are ignored.
type ListRequestsFilter struct {
	ClientID     *string
	TechnicianID *string
	Status       *string
	Limit        int
	Offset       int
}

func (q *Queries) ListRequests(ctx context.Context, f ListRequestsFilter) ([]Request, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	rows, err := q.Pool.Query(ctx,
		`SELECT `+prefixedRequestColumns("r")+`
		FROM requests r
		LEFT JOIN tasks t ON t.request_id = r.id
		WHERE ($1::text IS NULL OR r.client_id = $1)
		  AND ($2::text IS NULL OR t.technician_id = $2)
		  AND ($3::text IS NULL OR r.status = $3)
		ORDER BY r.created_at DESC
		LIMIT $4 OFFSET $5`,
		f.ClientID, f.TechnicianID, f.Status, f.Limit, f.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func prefixedRequestColumns(alias string) string {
	return alias + `.id, ` + alias + `.client_id, ` + alias + `.technician_title, ` + alias + `.service_id, ` +
		alias + `.location, ` + alias + `.contact_no, ` + alias + `.description, ` + alias + `.special_tools, ` +
		alias + `.pickup_location, ` + alias + `.delivery_instructions, ` + alias + `.start_date, ` +
		alias + `.start_time, ` + alias + `.end_date, ` + alias + `.pay_type, ` + alias + `.rate, ` +
		alias + `.admin_pay_type, ` + alias + `.admin_rate, ` + alias + `.deliverables, ` + alias + `.status, ` +
		alias + `.version, ` + alias + `.created_at, ` + alias + `.updated_at`
}

// UpdateRequestParams carries a sparse patch; nil pointers leave the column
// untouched. ExpectVersion guards against concurrent writers.
type UpdateRequestParams struct {
	TechnicianTitle      *string
	ServiceID            *string
	Location             *string
	ContactNo            *string
	Description          *string
	SpecialTools         *string
	PickupLocation       *string
	DeliveryInstructions *string
	StartDate            *string
	StartTime            *string
	EndDate              *string
	PayType              *string
	Rate                 *float64
	AdminPayType         *string
	AdminRate            *float64
	Deliverables         *string
	ExpectVersion        int
}

func (q *Queries) UpdateRequest(ctx context.Context, id string, p UpdateRequestParams) (Request, error) {
	r, err := scanRequest(q.Pool.QueryRow(ctx,
		`UPDATE requests SET
			technician_title      = COALESCE($3, technician_title),
			service_id            = COALESCE($4, service_id),
			location              = COALESCE($5, location),
			contact_no            = COALESCE($6, contact_no),
			description           = COALESCE($7, description),
			special_tools         = COALESCE($8, special_tools),
			pickup_location       = COALESCE($9, pickup_location),
			delivery_instructions = COALESCE($10, delivery_instructions),
			start_date            = COALESCE($11, start_date),
			start_time            = COALESCE($12, start_time),
			end_date              = COALESCE($13, end_date),
			pay_type              = COALESCE($14, pay_type),
			rate                  = COALESCE($15, rate),
			admin_pay_type        = COALESCE($16, admin_pay_type),
			admin_rate            = COALESCE($17, admin_rate),
			deliverables          = COALESCE($18, deliverables),
			version               = version + 1,
			updated_at            = NOW()
		WHERE id = $1 AND version = $2
		RETURNING `+requestColumns,
		id, p.ExpectVersion,
		p.TechnicianTitle, p.ServiceID, p.Location, p.ContactNo, p.Description,
		p.SpecialTools, p.PickupLocation, p.DeliveryInstructions,
		p.StartDate, p.StartTime, p.EndDate, p.PayType, p.Rate,
		p.AdminPayType, p.AdminRate, p.Deliverables,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return r, q.classifyMissedUpdate(ctx, id)
	}
	return r, err
}

// UpdateRequestStatus commits a transition read-validate-write style: the
// update only lands if the row still carries the version the authority saw.
func (q *Queries) UpdateRequestStatus(ctx context.Context, id, status string, expectVersion int, startDate, startTime string) (Request, error) {
	r, err := scanRequest(q.Pool.QueryRow(ctx,
		`UPDATE requests SET
			status     = $3,
			start_date = $4,
			start_time = $5,
			version    = version + 1,
			updated_at = NOW()
		WHERE id = $1 AND version = $2
		RETURNING `+requestColumns,
		id, expectVersion, status, startDate, startTime,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return r, q.classifyMissedUpdate(ctx, id)
	}
	return r, err
}

// classifyMissedUpdate tells a vanished row apart from a lost version race.
func (q *Queries) classifyMissedUpdate(ctx context.Context, id string) error {
	if _, err := q.GetRequestByID(ctx, id); errors.Is(err, pgx.ErrNoRows) {
		return pgx.ErrNoRows
	}
	return ErrVersionConflict
}

// Image represents a request_images row
type Image struct {
	ID        string
	RequestID string
	Ref       string
	Caption   string
	Position  int
}

func (q *Queries) InsertImage(ctx context.Context, img Image) error {
	_, err := q.Pool.Exec(ctx,
		`INSERT INTO request_images (id, request_id, ref, caption, position)
		VALUES ($1, $2, $3, $4, $5)`,
		img.ID, img.RequestID, img.Ref, img.Caption, img.Position,
	)
	return err
}

func (q *Queries) DeleteImage(ctx context.Context, requestID, imageID string) (int64, error) {
	tag, err := q.Pool.Exec(ctx,
		`DELETE FROM request_images WHERE request_id = $1 AND id = $2`,
		requestID, imageID,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (q *Queries) ListImages(ctx context.Context, requestID string) ([]Image, error) {
	rows, err := q.Pool.Query(ctx,
		`SELECT id, request_id, ref, caption, position
		FROM request_images WHERE request_id = $1 ORDER BY position`,
		requestID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Image
	for rows.Next() {
		var img Image
		if err := rows.Scan(&img.ID, &img.RequestID, &img.Ref, &img.Caption, &img.Position); err != nil {
			return nil, err
		}
		out = append(out, img)
	}
	return out, rows.Err()
}

// Task represents a tasks row
type Task struct {
	ID                string
	RequestID         string
	TechnicianID      string
	TechnicianPayType string
	TechnicianRate    float64
	Deliverables      *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

const taskColumns = `id, request_id, technician_id, technician_pay_type, technician_rate,
	deliverables, created_at, updated_at`

func scanTask(row pgx.Row) (Task, error) {
	var t Task
	err := row.Scan(
		&t.ID, &t.RequestID, &t.TechnicianID, &t.TechnicianPayType, &t.TechnicianRate,
		&t.Deliverables, &t.CreatedAt, &t.UpdatedAt,
	)
	return t, err
}

type CreateTaskParams struct {
	ID                string
	RequestID         string
	TechnicianID      string
	TechnicianPayType string
	TechnicianRate    float64
}

func (q *Queries) CreateTask(ctx context.Context, p CreateTaskParams) (Task, error) {
	return scanTask(q.Pool.QueryRow(ctx,
		`INSERT INTO tasks (id, request_id, technician_id, technician_pay_type, technician_rate)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+taskColumns,
		p.ID, p.RequestID, p.TechnicianID, p.TechnicianPayType, p.TechnicianRate,
	))
}

func (q *Queries) GetTaskByID(ctx context.Context, id string) (Task, error) {
	return scanTask(q.Pool.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
}

func (q *Queries) GetTaskByRequestID(ctx context.Context, requestID string) (Task, error) {
	return scanTask(q.Pool.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE request_id = $1`, requestID))
}

func (q *Queries) ListTasksByTechnician(ctx context.Context, technicianID string, limit, offset int) ([]Task, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := q.Pool.Query(ctx,
		`SELECT `+taskColumns+` FROM tasks
		WHERE technician_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		technicianID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (q *Queries) UpdateTaskDeliverables(ctx context.Context, id, deliverables string) (Task, error) {
	return scanTask(q.Pool.QueryRow(ctx,
		`UPDATE tasks SET deliverables = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+taskColumns,
		id, deliverables,
	))
}

// Technician queries

type Technician struct {
	ID        string
	Name      string
	Active    bool
	CreatedAt time.Time
}

func (q *Queries) CreateTechnician(ctx context.Context, id, name string) (Technician, error) {
	var t Technician
	err := q.Pool.QueryRow(ctx,
		`INSERT INTO technicians (id, name) VALUES ($1, $2)
		RETURNING id, name, active, created_at`,
		id, name,
	).Scan(&t.ID, &t.Name, &t.Active, &t.CreatedAt)
	return t, err
}

func (q *Queries) GetTechnicianByID(ctx context.Context, id string) (Technician, error) {
	var t Technician
	err := q.Pool.QueryRow(ctx,
		`SELECT id, name, active, created_at FROM technicians WHERE id = $1`,
		id,
	).Scan(&t.ID, &t.Name, &t.Active, &t.CreatedAt)
	return t, err
}

func (q *Queries) SetTechnicianActive(ctx context.Context, id string, active bool) (Technician, error) {
	var t Technician
	err := q.Pool.QueryRow(ctx,
		`UPDATE technicians SET active = $2 WHERE id = $1
		RETURNING id, name, active, created_at`,
		id, active,
	).Scan(&t.ID, &t.Name, &t.Active, &t.CreatedAt)
	return t, err
}

// ListPendingPastStart returns pending requests whose scheduled start has
// passed, used by the overdue sweep job.
func (q *Queries) ListPendingPastStart(ctx context.Context, cutoffDate string) ([]Request, error) {
	rows, err := q.Pool.Query(ctx,
		`SELECT `+requestColumns+` FROM requests
		WHERE status = 'pending' AND start_date <> '' AND start_date < $1`,
		cutoffDate,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
