package availability

import (
	"context"
	"errors"

	"github.com/KBoateng4/Mentorlink-client/client"
	"github.com/KBoateng4/Mentorlink-client/cmd/models"
	"go.uber.org/zap"
)

var (
	ErrNoSkills     = errors.New("at least one skill is required before a slot can be offered")
	ErrBadDuration  = errors.New("unsupported session duration")
	ErrBadStartTime = errors.New("start time is not on the weekly grid")
	ErrSlotNotFound = errors.New("no slot matches that day, time and skill")
)

// Editor validates and applies single-slot mutations.
type Editor struct {
	store  *Store
	api    *client.Client
	logger *zap.Logger
}

func NewEditor(store *Store, api *client.Client, logger *zap.Logger) *Editor {
	return &Editor{store: store, api: api, logger: logger}
}

// Edit creates or replaces the slot at (day, start). An available slot with
// no skills is an error surfaced to the caller, never silently dropped.
func (e *Editor) Edit(ctx context.Context, day models.Weekday, start string, skills []string, duration int, isAvailable bool) (models.Slot, error) {
	if !models.ValidStartTime(start) {
		return models.Slot{}, ErrBadStartTime
	}
	if !models.ValidDuration(duration) {
		return models.Slot{}, ErrBadDuration
	}
	if isAvailable && len(skills) == 0 {
		return models.Slot{}, ErrNoSkills
	}

	slot := models.Slot{
		Day:             day,
		StartTime:       start,
		DurationMinutes: duration,
		Skills:          skills,
		IsAvailable:     isAvailable,
	}
	if err := e.store.Set(ctx, slot); err != nil {
		return models.Slot{}, err
	}
	return slot, nil
}

// Toggle flips the open flag of the one slot matching (day, start, skill).
// Remote first: the mirror only follows a server acknowledgement, so a
// failed toggle leaves local state untouched. Slots for other skills at the
// same time are never affected.
func (e *Editor) Toggle(ctx context.Context, day models.Weekday, start, skill string) error {
	slot, ok := e.store.Get(day, start)
	if !ok || !slot.HasSkill(skill) {
		return ErrSlotNotFound
	}

	err := e.api.ToggleSlot(ctx, e.store.MentorID(), client.ToggleSlotRequest{
		Day:       day,
		StartTime: start,
		Skill:     skill,
	})
	if err != nil {
		return err
	}

	e.store.applyToggle(day, start, skill)
	e.logger.Debug("slot toggled",
		zap.String("day", string(day)),
		zap.String("start", start),
		zap.String("skill", skill))
	return nil
}

// ToggleForAppointment closes (or reopens) the slot an appointment occupies,
// deriving the grid key from the appointment timestamp and skill.
func (e *Editor) ToggleForAppointment(ctx context.Context, appt models.Appointment) error {
	day := models.WeekdayOf(appt.AppointmentDateTime)
	start := models.StartTimeOf(appt.AppointmentDateTime)
	return e.Toggle(ctx, day, start, appt.Skill)
}
