package stats

import (
	"math"
	"time"

	"fieldserve/internal/model"
)

// Window scopes aggregation to records created within a range anchored at now.
type Window string

const (
	WindowMonth   Window = "month"
	WindowQuarter Window = "quarter"
	WindowYear    Window = "year"
	WindowAllTime Window = "all-time"
)

// ParseWindow maps a query value to a Window, defaulting to all-time.
func ParseWindow(s string) Window {
	switch Window(s) {
	case WindowMonth, WindowQuarter, WindowYear:
		return Window(s)
	}
	return WindowAllTime
}

// Summary is the status-bucketed roll-up over a window.
type Summary struct {
	Total        int `json:"total"`
	Completed    int `json:"completed"`
	Ongoing      int `json:"ongoing"`
	Pending      int `json:"pending"`
	CompletedPct int `json:"completedPct"`
	OngoingPct   int `json:"ongoingPct"`
	PendingPct   int `json:"pendingPct"`
}

// Aggregate folds records created inside the window into a Summary. It is a
// pure, repeatable fold; fetching the record set is the repository's job.
func Aggregate(records []model.Request, window Window, now time.Time) Summary {
	var s Summary
	for _, r := range records {
		if !inWindow(r.CreatedAt, window, now) {
			continue
		}
		s.Total++
		switch r.Status {
		case model.StatusCompleted:
			s.Completed++
		case model.StatusOngoing:
			s.Ongoing++
		case model.StatusPending:
			s.Pending++
		}
	}
	s.CompletedPct = pct(s.Completed, s.Total)
	s.OngoingPct = pct(s.Ongoing, s.Total)
	s.PendingPct = pct(s.Pending, s.Total)
	return s
}

func inWindow(created time.Time, window Window, now time.Time) bool {
	created = created.In(now.Location())
	switch window {
	case WindowMonth:
		return created.Year() == now.Year() && created.Month() == now.Month()
	case WindowQuarter:
		return created.Year() == now.Year() && quarterOf(created.Month()) == quarterOf(now.Month())
	case WindowYear:
		return created.Year() == now.Year()
	}
	return true
}

func quarterOf(m time.Month) int {
	return (int(m) - 1) / 3
}

// pct rounds to whole percent and clamps at 100, guarding against
// double-counted source data. A zero total yields zero, not a division error.
func pct(count, total int) int {
	if total == 0 {
		return 0
	}
	p := int(math.Round(float64(count) / float64(total) * 100))
	if p > 100 {
		p = 100
	}
	return p
}
