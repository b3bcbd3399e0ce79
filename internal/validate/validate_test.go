package validate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCatalog struct {
	known map[string]bool
}

func (c *fakeCatalog) Known(ctx context.Context, serviceID string) bool {
	return c.known[serviceID]
}

func validPayload(now time.Time) Payload {
	tomorrow := now.AddDate(0, 0, 1).Format("2006-01-02")
	return Payload{
		TechnicianTitle:      "HVAC Technician",
		ServiceID:            "svc-hvac",
		Location:             "12 Main St, Springfield",
		ContactNo:            "+1 555 123 4567",
		Description:          "Replace the condenser unit on the roof",
		SpecialTools:         "Torque wrench",
		PickupLocation:       "Warehouse B",
		DeliveryInstructions: "Leave parts at the loading dock",
		StartDate:            tomorrow,
		StartTime:            "09:00",
		PayType:              "hourly",
		Rate:                 "45",
	}
}

func TestCheck_ValidPayload(t *testing.T) {
	now := time.Now()
	catalog := &fakeCatalog{known: map[string]bool{"svc-hvac": true}}

	res := Check(context.Background(), validPayload(now), Create, now, catalog)
	require.True(t, res.Valid, "expected valid, got errors: %v", res.Errors)
	assert.Empty(t, res.Errors)
}

func TestCheck_RateBoundary(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		rate    string
		wantErr string
	}{
		{"below floor", "9.99", "minimum rate is 10"},
		{"at floor", "10", ""},
		{"zero", "0", "must be a positive number"},
		{"negative", "-5", "must be a positive number"},
		{"not a number", "abc", "must be a positive number"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPayload(now)
			p.Rate = tt.rate
			res := Check(context.Background(), p, Create, now, nil)
			if tt.wantErr == "" {
				assert.True(t, res.Valid, "errors: %v", res.Errors)
				return
			}
			require.False(t, res.Valid)
			assert.Equal(t, tt.wantErr, res.Errors["rate"])
		})
	}
}

func TestCheck_ContactNoShape(t *testing.T) {
	now := time.Now()

	valid := []string{"+12345678901", "+1 555 123 4567", "+420 777-888-999"}
	for _, num := range valid {
		p := validPayload(now)
		p.ContactNo = num
		res := Check(context.Background(), p, Create, now, nil)
		assert.True(t, res.Valid, "expected %q to pass, errors: %v", num, res.Errors)
	}

	invalid := []string{"1234567890", "+12345", "555-123-4567", ""}
	for _, num := range invalid {
		p := validPayload(now)
		p.ContactNo = num
		res := Check(context.Background(), p, Create, now, nil)
		require.False(t, res.Valid, "expected %q to fail", num)
		assert.Contains(t, res.Errors, "contactNo")
	}
}

func TestCheck_DescriptionLength(t *testing.T) {
	now := time.Now()

	p := validPayload(now)
	p.Description = "exactly 19 chars..."
	require.Len(t, p.Description, 19)
	res := Check(context.Background(), p, Create, now, nil)
	require.False(t, res.Valid)
	assert.Contains(t, res.Errors, "description")

	p.Description = "exactly 20 chars...."
	require.Len(t, p.Description, 20)
	res = Check(context.Background(), p, Create, now, nil)
	assert.True(t, res.Valid, "errors: %v", res.Errors)
}

func TestCheck_StartDateRules(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.Local)

	p := validPayload(now)
	p.StartDate = "2026-08-29"
	res := Check(context.Background(), p, Create, now, nil)
	require.False(t, res.Valid)
	assert.Equal(t, "must not be in the past", res.Errors["startDate"])

	// Today with a time already gone.
	p = validPayload(now)
	p.StartDate = "2026-08-30"
	p.StartTime = "08:00"
	res = Check(context.Background(), p, Create, now, nil)
	require.False(t, res.Valid)
	assert.Equal(t, "must not be in the past", res.Errors["startTime"])

	// Today with a time still ahead.
	p.StartTime = "18:30"
	res = Check(context.Background(), p, Create, now, nil)
	assert.True(t, res.Valid, "errors: %v", res.Errors)

	// A future date accepts any time of day.
	p.StartDate = "2026-09-01"
	p.StartTime = "00:05"
	res = Check(context.Background(), p, Create, now, nil)
	assert.True(t, res.Valid, "errors: %v", res.Errors)

	p = validPayload(now)
	p.StartDate = "not-a-date"
	res = Check(context.Background(), p, Create, now, nil)
	require.False(t, res.Valid)
	assert.Contains(t, res.Errors, "startDate")
}

func TestCheck_PayType(t *testing.T) {
	now := time.Now()
	p := validPayload(now)
	p.PayType = "monthly"
	res := Check(context.Background(), p, Create, now, nil)
	require.False(t, res.Valid)
	assert.Equal(t, "must be flat or hourly", res.Errors["payType"])
}

func TestCheck_UnknownService(t *testing.T) {
	now := time.Now()
	catalog := &fakeCatalog{known: map[string]bool{"svc-hvac": true}}

	p := validPayload(now)
	p.ServiceID = "svc-unknown"
	res := Check(context.Background(), p, Create, now, catalog)
	require.False(t, res.Valid)
	assert.Equal(t, "unknown service", res.Errors["serviceId"])
}

func TestCheck_PreTransition(t *testing.T) {
	now := time.Now()

	// Only the four transition fields matter; everything else may be blank.
	p := Payload{
		StartDate:            "2026-09-01",
		StartTime:            "09:00",
		SpecialTools:         "Ladder",
		DeliveryInstructions: "Call on arrival",
	}
	res := Check(context.Background(), p, PreTransition, now, nil)
	assert.True(t, res.Valid, "errors: %v", res.Errors)

	p.SpecialTools = "  "
	res = Check(context.Background(), p, PreTransition, now, nil)
	require.False(t, res.Valid)
	assert.Contains(t, res.Errors, "specialTools")
	assert.NotContains(t, res.Errors, "description")
}

func TestCheck_TrimmedEmptyFields(t *testing.T) {
	now := time.Now()
	p := validPayload(now)
	p.TechnicianTitle = "   "
	p.PickupLocation = ""
	res := Check(context.Background(), p, Create, now, nil)
	require.False(t, res.Valid)
	assert.Contains(t, res.Errors, "technicianTitle")
	assert.Contains(t, res.Errors, "pickupLocation")
}
