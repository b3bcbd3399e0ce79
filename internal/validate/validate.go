package validate

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"fieldserve/internal/model"
)

// Kind selects which subset of fields is mandatory.
type Kind int

const (
	// Create covers the full rule set for a new request.
	Create Kind = iota
	// EditPending applies the same rules as Create to a pending-edit payload.
	EditPending
	// PreTransition only checks the fields a request must carry before it
	// may leave pending; everything else was validated at creation.
	PreTransition
)

// ServiceCatalog supplies the enumerated set of valid service ids.
// It is an external collaborator; implementations may hit the network.
type ServiceCatalog interface {
	Known(ctx context.Context, serviceID string) bool
}

// Payload is a candidate request as submitted, before any type coercion.
// Rate arrives as text and is parsed here.
type Payload struct {
	TechnicianTitle      string `json:"technicianTitle"`
	ServiceID            string `json:"serviceId"`
	Location             string `json:"location"`
	ContactNo            string `json:"contactNo"`
	Description          string `json:"description"`
	SpecialTools         string `json:"specialTools"`
	PickupLocation       string `json:"pickupLocation"`
	DeliveryInstructions string `json:"deliveryInstructions"`
	StartDate            string `json:"startDate"`
	StartTime            string `json:"startTime"`
	EndDate              string `json:"endDate,omitempty"`
	PayType              string `json:"payType"`
	Rate                 string `json:"rate"`
}

// Result is the outcome of a validation pass. Errors is keyed by field name.
type Result struct {
	Valid  bool              `json:"valid"`
	Errors map[string]string `json:"errors,omitempty"`
}

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
	minRate    = 10
)

var phoneRe = regexp.MustCompile(`^\+\d{1,4}[\d\s-]{10,}$`)

// Check validates p for the given kind. It is pure: the clock is injected
// and the only collaborator is the service catalog lookup.
func Check(ctx context.Context, p Payload, kind Kind, now time.Time, catalog ServiceCatalog) Result {
	errs := map[string]string{}

	if kind == PreTransition {
		requireNonEmpty(errs, "startDate", p.StartDate)
		requireNonEmpty(errs, "startTime", p.StartTime)
		requireNonEmpty(errs, "specialTools", p.SpecialTools)
		requireNonEmpty(errs, "deliveryInstructions", p.DeliveryInstructions)
		return finish(errs)
	}

	requireNonEmpty(errs, "technicianTitle", p.TechnicianTitle)
	requireNonEmpty(errs, "location", p.Location)
	requireNonEmpty(errs, "pickupLocation", p.PickupLocation)
	requireNonEmpty(errs, "specialTools", p.SpecialTools)
	requireNonEmpty(errs, "deliveryInstructions", p.DeliveryInstructions)

	if strings.TrimSpace(p.ServiceID) == "" {
		errs["serviceId"] = "is required"
	} else if catalog != nil && !catalog.Known(ctx, p.ServiceID) {
		errs["serviceId"] = "unknown service"
	}

	if !phoneRe.MatchString(strings.TrimSpace(p.ContactNo)) {
		errs["contactNo"] = "must be an international number like +1 555 123 4567"
	}

	if len(strings.TrimSpace(p.Description)) < 20 {
		errs["description"] = "must be at least 20 characters"
	}

	checkSchedule(errs, p.StartDate, p.StartTime, now)

	switch model.PayType(p.PayType) {
	case model.PayFlat, model.PayHourly:
	default:
		errs["payType"] = "must be flat or hourly"
	}

	rate, err := strconv.ParseFloat(strings.TrimSpace(p.Rate), 64)
	switch {
	case err != nil || rate <= 0:
		errs["rate"] = "must be a positive number"
	case rate < minRate:
		errs["rate"] = "minimum rate is 10"
	}

	return finish(errs)
}

func checkSchedule(errs map[string]string, startDate, startTime string, now time.Time) {
	if strings.TrimSpace(startDate) == "" {
		errs["startDate"] = "is required"
		return
	}
	day, err := time.ParseInLocation(dateLayout, strings.TrimSpace(startDate), now.Location())
	if err != nil {
		errs["startDate"] = "must be a valid date (YYYY-MM-DD)"
		return
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if day.Before(today) {
		errs["startDate"] = "must not be in the past"
		return
	}

	if strings.TrimSpace(startTime) == "" {
		errs["startTime"] = "is required"
		return
	}
	tod, err := time.ParseInLocation(timeLayout, strings.TrimSpace(startTime), now.Location())
	if err != nil {
		errs["startTime"] = "must be a valid time (HH:MM)"
		return
	}
	// Time-of-day only matters when the work starts today.
	if day.Equal(today) {
		at := time.Date(day.Year(), day.Month(), day.Day(), tod.Hour(), tod.Minute(), 0, 0, now.Location())
		if at.Before(now) {
			errs["startTime"] = "must not be in the past"
		}
	}
}

func requireNonEmpty(errs map[string]string, field, value string) {
	if strings.TrimSpace(value) == "" {
		errs[field] = "is required"
	}
}

func finish(errs map[string]string) Result {
	if len(errs) == 0 {
		return Result{Valid: true}
	}
	return Result{Valid: false, Errors: errs}
}

// FromRequest rebuilds a validation payload from a stored record, used by
// the transition authority for its pre-transition check.
func FromRequest(r model.Request) Payload {
	return Payload{
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
		PayType:              string(r.PayType),
		Rate:                 strconv.FormatFloat(r.Rate, 'f', -1, 64),
	}
}
