package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

type Weekday string

const (
	Monday    Weekday = "monday"
	Tuesday   Weekday = "tuesday"
	Wednesday Weekday = "wednesday"
	Thursday  Weekday = "thursday"
	Friday    Weekday = "friday"
	Saturday  Weekday = "saturday"
	Sunday    Weekday = "sunday"
)

var weekdayNames = map[time.Weekday]Weekday{
	time.Monday:    Monday,
	time.Tuesday:   Tuesday,
	time.Wednesday: Wednesday,
	time.Thursday:  Thursday,
	time.Friday:    Friday,
	time.Saturday:  Saturday,
	time.Sunday:    Sunday,
}

// WeekdayOf resolves the grid day for a calendar date.
func WeekdayOf(date time.Time) Weekday {
	return weekdayNames[date.Weekday()]
}

// StartTimes is the bookable weekly grid: hourly points from 09:00 to 20:00.
var StartTimes = []string{
	"09:00", "10:00", "11:00", "12:00", "13:00", "14:00",
	"15:00", "16:00", "17:00", "18:00", "19:00", "20:00",
}

// HalfHourTimes returns the half-hour picker points between the first and
// last grid hour. Display only, bookings still land on StartTimes.
func HalfHourTimes() []string {
	var points []string
	for hour := 9; hour <= 20; hour++ {
		points = append(points, fmt.Sprintf("%02d:00", hour))
		if hour < 20 {
			points = append(points, fmt.Sprintf("%02d:30", hour))
		}
	}
	return points
}

func ValidStartTime(start string) bool {
	for _, t := range StartTimes {
		if t == start {
			return true
		}
	}
	return false
}

var sessionDurations = map[int]bool{30: true, 45: true, 60: true, 90: true, 120: true}

func ValidDuration(minutes int) bool {
	return sessionDurations[minutes]
}

// Slot is one bookable weekly time unit for a mentor. A slot with no skills
// is treated as absent; IsAvailable=false keeps the configuration around for
// re-enabling without deleting it.
type Slot struct {
	Day             Weekday  `json:"day"`
	StartTime       string   `json:"start_time"`
	DurationMinutes int      `json:"duration_minutes"`
	Skills          []string `json:"skills"`
	IsAvailable     bool     `json:"is_available"`
}

func (s Slot) Empty() bool {
	return len(s.Skills) == 0
}

func (s Slot) HasSkill(skill string) bool {
	for _, sk := range s.Skills {
		if sk == skill {
			return true
		}
	}
	return false
}

// WeeklyGrid maps each day to that day's slots. The wire shape of a day is
// either a slot array or an object keyed by start time, depending on which
// server version produced it; both normalize to the array form here so read
// sites never have to care.
type WeeklyGrid map[Weekday][]Slot

func (g *WeeklyGrid) UnmarshalJSON(data []byte) error {
	var raw map[Weekday]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("availability payload is not an object: %w", err)
	}

	grid := make(WeeklyGrid, len(raw))
	for day, payload := range raw {
		var slots []Slot
		if err := json.Unmarshal(payload, &slots); err != nil {
			var byTime map[string]Slot
			if err := json.Unmarshal(payload, &byTime); err != nil {
				return fmt.Errorf("availability for %s has an unknown shape", day)
			}
			for start, slot := range byTime {
				slot.StartTime = start
				slots = append(slots, slot)
			}
		}
		grid[day] = normalizeDay(day, slots)
	}
	*g = grid
	return nil
}

// normalizeDay enforces the one-slot-per-start-time invariant (later entries
// replace earlier ones) and drops slots with no skills.
func normalizeDay(day Weekday, slots []Slot) []Slot {
	byStart := make(map[string]Slot, len(slots))
	for _, slot := range slots {
		if slot.Empty() {
			continue
		}
		slot.Day = day
		byStart[slot.StartTime] = slot
	}

	out := make([]Slot, 0, len(byStart))
	for _, slot := range byStart {
		out = append(out, slot)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime < out[j].StartTime })
	return out
}

// Slot finds the slot at (day, start), if any.
func (g WeeklyGrid) Slot(day Weekday, start string) (Slot, bool) {
	for _, slot := range g[day] {
		if slot.StartTime == start {
			return slot, true
		}
	}
	return Slot{}, false
}

// CombineDateTime composes an absolute appointment timestamp from a calendar
// date and a grid start time.
func CombineDateTime(date time.Time, start string) (time.Time, error) {
	t, err := time.Parse("15:04", start)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid start time %q: %w", start, err)
	}
	return time.Date(date.Year(), date.Month(), date.Day(),
		t.Hour(), t.Minute(), 0, 0, date.Location()), nil
}

// StartTimeOf projects a timestamp back onto the grid's time-of-day key.
func StartTimeOf(ts time.Time) string {
	return ts.Format("15:04")
}
