package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/KBoateng4/Mentorlink-client/cmd/models"
)

type availabilityEnvelope struct {
	Availability models.WeeklyGrid `json:"availability"`
}

// GetAvailability fetches a mentor's weekly grid, normalized on ingestion.
func (c *Client) GetAvailability(ctx context.Context, mentorID uint) (models.WeeklyGrid, error) {
	var envelope availabilityEnvelope
	path := fmt.Sprintf("/api/v1/mentors/%d/availability", mentorID)
	if err := c.Do(ctx, http.MethodGet, path, nil, &envelope); err != nil {
		return nil, err
	}
	return envelope.Availability, nil
}

// ReplaceAvailability persists the full weekly grid in one call.
func (c *Client) ReplaceAvailability(ctx context.Context, mentorID uint, grid models.WeeklyGrid) error {
	path := fmt.Sprintf("/api/v1/mentors/%d/availability", mentorID)
	return c.Do(ctx, http.MethodPost, path, availabilityEnvelope{Availability: grid}, nil)
}

type ToggleSlotRequest struct {
	Day       models.Weekday `json:"day"`
	StartTime string         `json:"start_time"`
	Skill     string         `json:"skill"`
}

// ToggleSlot flips the open flag of the one slot matching day, start time
// and skill. The server call is idempotent in the flip sense: toggling twice
// restores the original state.
func (c *Client) ToggleSlot(ctx context.Context, mentorID uint, req ToggleSlotRequest) error {
	path := fmt.Sprintf("/api/v1/mentors/%d/availability/toggle", mentorID)
	return c.Do(ctx, http.MethodPatch, path, req, nil)
}

type CreateAppointmentRequest struct {
	MentorID            uint      `json:"mentor_id"`
	AppointmentDateTime time.Time `json:"appointment_datetime"`
	Skill               string    `json:"skill"`
	DurationMinutes     int       `json:"duration_minutes"`
}

// CreateAppointment submits a booking. The idempotency key lets the server
// dedupe an accidental resubmit of the same request.
func (c *Client) CreateAppointment(ctx context.Context, req CreateAppointmentRequest, idempotencyKey string) (*models.BookingResponse, error) {
	header := http.Header{}
	if idempotencyKey != "" {
		header.Set("Idempotency-Key", idempotencyKey)
	}
	var resp models.BookingResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/appointments", header, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

type StatusUpdateRequest struct {
	Reason           string     `json:"reason,omitempty"`
	ProposedDateTime *time.Time `json:"proposed_datetime,omitempty"`
}

// UpdateAppointmentStatus drives accept, reject, reschedule and complete.
func (c *Client) UpdateAppointmentStatus(ctx context.Context, id uint, action string, req StatusUpdateRequest) (*models.Appointment, error) {
	var appt models.Appointment
	path := fmt.Sprintf("/api/v1/appointments/%d/%s", id, action)
	if err := c.Do(ctx, http.MethodPatch, path, req, &appt); err != nil {
		return nil, err
	}
	return &appt, nil
}

// CancelAppointment cancels an accepted appointment with a recorded reason.
func (c *Client) CancelAppointment(ctx context.Context, id uint, reason string) (*models.Appointment, error) {
	var appt models.Appointment
	path := fmt.Sprintf("/api/v1/appointments/%d/cancel", id)
	body := map[string]string{"reason": reason}
	if err := c.Do(ctx, http.MethodPost, path, body, &appt); err != nil {
		return nil, err
	}
	return &appt, nil
}

// ListAppointments returns the authenticated caller's appointments.
func (c *Client) ListAppointments(ctx context.Context) ([]models.Appointment, error) {
	var envelope struct {
		Appointments []models.Appointment `json:"appointments"`
	}
	if err := c.Do(ctx, http.MethodGet, "/api/v1/appointments", nil, &envelope); err != nil {
		return nil, err
	}
	return envelope.Appointments, nil
}

// ListNotifications returns the caller's full notification list, newest
// first. Used for the initial load and every post-reconnect resync.
func (c *Client) ListNotifications(ctx context.Context) ([]models.Notification, error) {
	var envelope struct {
		Notifications []models.Notification `json:"notifications"`
	}
	if err := c.Do(ctx, http.MethodGet, "/api/v1/notifications", nil, &envelope); err != nil {
		return nil, err
	}
	return envelope.Notifications, nil
}

// MarkNotificationRead marks one notification read on the server.
func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	path := fmt.Sprintf("/api/v1/notifications/%s/read", id)
	return c.Do(ctx, http.MethodPost, path, nil, nil)
}
