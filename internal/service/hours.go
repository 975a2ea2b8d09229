package service

import (
	"time"

	"github.com/spec-kit/support-bot/internal/config"
)

// HoursService answers whether support is currently staffed. Requests outside
// the window are still accepted, clients just get an expectations notice.
type HoursService struct {
	location *time.Location
	start    int
	end      int
	days     map[time.Weekday]bool
	now      func() time.Time
}

// NewHoursService builds the checker from config. An unknown timezone falls
// back to UTC rather than failing startup.
func NewHoursService(cfg config.HoursConfig) *HoursService {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		loc = time.UTC
	}
	days := make(map[time.Weekday]bool, len(cfg.WorkDays))
	for _, d := range cfg.WorkDays {
		days[time.Weekday(d%7)] = true
	}
	return &HoursService{
		location: loc,
		start:    cfg.StartHour,
		end:      cfg.EndHour,
		days:     days,
		now:      time.Now,
	}
}

// Within reports whether the current moment falls inside working hours.
func (h *HoursService) Within() bool {
	now := h.now().In(h.location)
	if len(h.days) > 0 && !h.days[now.Weekday()] {
		return false
	}
	return now.Hour() >= h.start && now.Hour() < h.end
}

// Window returns the configured bounds for message templating.
func (h *HoursService) Window() (start, end int, tz string) {
	return h.start, h.end, h.location.String()
}
