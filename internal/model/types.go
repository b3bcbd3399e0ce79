package model

import "time"

// Status represents the lifecycle stage of a request
type Status string

const (
	StatusPending   Status = "pending"
	StatusOngoing   Status = "ongoing"
	StatusCompleted Status = "completed"
)

// Valid reports whether s is one of the known lifecycle statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusOngoing, StatusCompleted:
		return true
	}
	return false
}

// Role represents an actor role
type Role string

const (
	RoleClient     Role = "client"
	RoleAdmin      Role = "admin"
	RoleTechnician Role = "technician"
)

// PayType represents how a request is billed
type PayType string

const (
	PayFlat   PayType = "flat"
	PayHourly PayType = "hourly"
)

// Actor is the identity attached to every core operation. It is supplied
// by the authentication boundary and never read from ambient state.
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// Image is an attached image reference with an optional caption.
type Image struct {
	ID      string `json:"id"`
	Ref     string `json:"ref"`
	Caption string `json:"caption,omitempty"`
}

// Request represents a client-authored work order
type Request struct {
	ID                   string    `json:"id"`
	ClientID             string    `json:"clientId"`
	TechnicianTitle      string    `json:"technicianTitle"`
	ServiceID            string    `json:"serviceId"`
	Location             string    `json:"location"`
	ContactNo            string    `json:"contactNo"`
	Description          string    `json:"description"`
	SpecialTools         string    `json:"specialTools"`
	PickupLocation       string    `json:"pickupLocation"`
	DeliveryInstructions string    `json:"deliveryInstructions"`
	StartDate            string    `json:"startDate"` // 2006-01-02
	StartTime            string    `json:"startTime"` // 15:04
	EndDate              *string   `json:"endDate,omitempty"`
	PayType              PayType   `json:"payType"`
	Rate                 float64   `json:"rate"`
	Images               []Image   `json:"images,omitempty"`
	AdminPayType         *PayType  `json:"adminPayType,omitempty"`
	AdminRate            *float64  `json:"adminRate,omitempty"`
	Deliverables         *string   `json:"deliverables,omitempty"`
	Status               Status    `json:"status"`
	Version              int       `json:"version"`
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

// Task is the technician-facing projection of an accepted request.
// Status is owned by the request side; the task only mirrors it at read time.
type Task struct {
	ID                string    `json:"id"`
	RequestID         string    `json:"requestId"`
	TechnicianID      string    `json:"technicianId"`
	TechnicianPayType PayType   `json:"technicianPayType"`
	TechnicianRate    float64   `json:"technicianRate"`
	Deliverables      *string   `json:"deliverables,omitempty"`
	Status            Status    `json:"status"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// Technician is a service staff account managed by admins.
type Technician struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}
