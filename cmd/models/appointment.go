package models

import "time"

type Status string

const (
	StatusPending     Status = "pending"
	StatusAccepted    Status = "accepted"
	StatusRejected    Status = "rejected"
	StatusRescheduled Status = "rescheduled"
	StatusCancelled   Status = "cancelled"
	StatusCompleted   Status = "completed"
)

// transitions is the single source of truth for the appointment lifecycle.
// A rescheduled appointment awaits the counterpart's fresh accept/reject
// against the same id; rejected, cancelled and completed are terminal.
var transitions = map[Status][]Status{
	StatusPending:     {StatusAccepted, StatusRejected, StatusRescheduled},
	StatusAccepted:    {StatusRescheduled, StatusCancelled, StatusCompleted},
	StatusRescheduled: {StatusAccepted, StatusRejected},
}

func (s Status) Terminal() bool {
	switch s {
	case StatusRejected, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Appointment struct {
	ID                  uint       `json:"id"`
	MentorID            uint       `json:"mentor_id"`
	LearnerID           uint       `json:"learner_id"`
	Skill               string     `json:"skill"`
	AppointmentDateTime time.Time  `json:"appointment_datetime"`
	DurationMinutes     int        `json:"duration_minutes"`
	Status              Status     `json:"status"`
	Reason              string     `json:"reason,omitempty"`
	ProposedDateTime    *time.Time `json:"proposed_datetime,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`

	// NeedsSlotSync marks an accepted appointment whose matching slot could
	// not be closed yet; the lifecycle retries the toggle until it lands.
	NeedsSlotSync bool `json:"-"`
}

// BookingResponse is what the server returns from a successful booking.
type BookingResponse struct {
	Appointment        Appointment `json:"appointment"`
	CalendarIntegrated bool        `json:"calendar_integrated,omitempty"`
	MeetingLink        string      `json:"meeting_link,omitempty"`
}
