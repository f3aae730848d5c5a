package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/KBoateng4/Mentorlink-client/client"
	"github.com/KBoateng4/Mentorlink-client/cmd/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrSlotUnavailable covers both the local pre-check failing and the
	// server reporting the slot consumed by a concurrent booking. The
	// coordinator never retries on its own in either case.
	ErrSlotUnavailable = errors.New("slot no longer available")

	// ErrBookingInFlight suppresses a double-submit of the same slot while
	// the first request is still outstanding.
	ErrBookingInFlight = errors.New("a booking for this slot is already in progress")
)

type Request struct {
	MentorID  uint
	Date      time.Time
	Skill     string
	StartTime string
}

func (r Request) key() string {
	return fmt.Sprintf("%d/%s/%s", r.MentorID, r.Date.Format("2006-01-02"), r.StartTime)
}

// Coordinator validates a learner's slot choice against the mentor's live
// grid and submits the booking. The server stays the sole authority on
// conflicts; a 409 means the slot was consumed by a race.
type Coordinator struct {
	api    *client.Client
	logger *zap.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewCoordinator(api *client.Client, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		api:      api,
		logger:   logger,
		inFlight: make(map[string]struct{}),
	}
}

func (c *Coordinator) Book(ctx context.Context, req Request) (*models.BookingResponse, error) {
	key := req.key()
	c.mu.Lock()
	if _, busy := c.inFlight[key]; busy {
		c.mu.Unlock()
		return nil, ErrBookingInFlight
	}
	c.inFlight[key] = struct{}{}
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.inFlight, key)
		c.mu.Unlock()
	}()

	day := models.WeekdayOf(req.Date)
	grid, err := c.api.GetAvailability(ctx, req.MentorID)
	if err != nil {
		return nil, err
	}

	duration := 0
	found := false
	for _, slot := range grid[day] {
		if slot.StartTime == req.StartTime && slot.IsAvailable && slot.HasSkill(req.Skill) {
			duration = slot.DurationMinutes
			found = true
			break
		}
	}
	if !found {
		return nil, ErrSlotUnavailable
	}

	when, err := models.CombineDateTime(req.Date, req.StartTime)
	if err != nil {
		return nil, err
	}

	resp, err := c.api.CreateAppointment(ctx, client.CreateAppointmentRequest{
		MentorID:            req.MentorID,
		AppointmentDateTime: when,
		Skill:               req.Skill,
		DurationMinutes:     duration,
	}, uuid.NewString())
	if err != nil {
		if errors.Is(err, client.ErrConflict) {
			c.logger.Info("slot taken by a concurrent booking",
				zap.Uint("mentor_id", req.MentorID),
				zap.String("start", req.StartTime))
			return nil, fmt.Errorf("%w: %v", ErrSlotUnavailable, err)
		}
		return nil, err
	}

	c.logger.Info("appointment requested",
		zap.Uint("appointment_id", resp.Appointment.ID),
		zap.Uint("mentor_id", req.MentorID),
		zap.Time("at", when))
	return resp, nil
}

// Message renders the user-facing wording for a booking failure.
func Message(err error) string {
	switch {
	case errors.Is(err, ErrSlotUnavailable):
		return "That slot is no longer available, please pick another."
	case errors.Is(err, ErrBookingInFlight):
		return "Hold on, your booking is still being processed."
	}
	return client.UserMessage(err)
}
