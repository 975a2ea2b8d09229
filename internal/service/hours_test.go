package service

import (
	"testing"
	"time"

	"github.com/spec-kit/support-bot/internal/config"
)

func TestHoursWithin(t *testing.T) {
	cfg := config.HoursConfig{
		Timezone:  "UTC",
		StartHour: 10,
		EndHour:   19,
		WorkDays:  []int{1, 2, 3, 4, 5},
	}

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"monday midday", time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC), true},
		{"monday opening hour", time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC), true},
		{"monday before opening", time.Date(2024, 6, 3, 9, 59, 0, 0, time.UTC), false},
		{"monday closing hour", time.Date(2024, 6, 3, 19, 0, 0, 0, time.UTC), false},
		{"saturday midday", time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC), false},
		{"sunday midday", time.Date(2024, 6, 2, 12, 0, 0, 0, time.UTC), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHoursService(cfg)
			h.now = func() time.Time { return tt.at }
			if got := h.Within(); got != tt.want {
				t.Errorf("Within() at %s = %v, want %v", tt.at, got, tt.want)
			}
		})
	}
}

func TestHoursNoWorkDaysMeansEveryDay(t *testing.T) {
	h := NewHoursService(config.HoursConfig{Timezone: "UTC", StartHour: 0, EndHour: 24})
	h.now = func() time.Time { return time.Date(2024, 6, 2, 3, 0, 0, 0, time.UTC) }
	if !h.Within() {
		t.Error("Within() = false, want true with an unrestricted schedule")
	}
}

func TestHoursUnknownTimezoneFallsBackToUTC(t *testing.T) {
	h := NewHoursService(config.HoursConfig{Timezone: "Mars/Olympus", StartHour: 10, EndHour: 19})
	_, _, tz := h.Window()
	if tz != "UTC" {
		t.Errorf("Window() tz = %q, want UTC", tz)
	}
}

func TestHoursWindow(t *testing.T) {
	h := NewHoursService(config.HoursConfig{Timezone: "UTC", StartHour: 10, EndHour: 19})
	start, end, _ := h.Window()
	if start != 10 || end != 19 {
		t.Errorf("Window() = %d, %d, want 10, 19", start, end)
	}
}
