package appointment

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/KBoateng4/Mentorlink-client/client"
	"github.com/KBoateng4/Mentorlink-client/cmd/models"
	"go.uber.org/zap"
)

var (
	ErrIllegalTransition    = errors.New("illegal status transition")
	ErrTooEarly             = errors.New("appointment has not finished yet")
	ErrProposedTimeRequired = errors.New("a proposed time is required to reschedule")
)

// slotToggler is the accept-side hook that closes the mentor's matching slot.
type slotToggler interface {
	ToggleForAppointment(ctx context.Context, appt models.Appointment) error
}

// Lifecycle drives an appointment through its states. Transitions are
// checked against the central table before any network call, so illegal
// moves are rejected even when a stale UI offers the button.
type Lifecycle struct {
	api    *client.Client
	slots  slotToggler
	logger *zap.Logger
	now    func() time.Time

	mu          sync.Mutex
	pendingSync []models.Appointment
}

func NewLifecycle(api *client.Client, slots slotToggler, logger *zap.Logger) *Lifecycle {
	return &Lifecycle{
		api:    api,
		slots:  slots,
		logger: logger,
		now:    time.Now,
	}
}

// Accept confirms a pending (or rescheduled) appointment, then closes the
// mentor's matching slot. Accept and toggle are not one transaction on the
// server: a failed toggle does not undo the accept, the appointment is
// flagged NeedsSlotSync and the toggle retried via RetrySlotSync.
func (l *Lifecycle) Accept(ctx context.Context, appt models.Appointment) (models.Appointment, error) {
	if !models.CanTransition(appt.Status, models.StatusAccepted) {
		return appt, ErrIllegalTransition
	}

	updated, err := l.api.UpdateAppointmentStatus(ctx, appt.ID, "accept", client.StatusUpdateRequest{})
	if err != nil {
		return appt, err
	}

	if err := l.slots.ToggleForAppointment(ctx, *updated); err != nil {
		l.logger.Warn("appointment accepted but slot still open",
			zap.Uint("appointment_id", updated.ID),
			zap.Error(err))
		updated.NeedsSlotSync = true
		l.mu.Lock()
		l.pendingSync = append(l.pendingSync, *updated)
		l.mu.Unlock()
	}
	return *updated, nil
}

// RetrySlotSync re-runs the slot toggle for every accepted appointment that
// is still flagged. Returns how many remain out of sync.
func (l *Lifecycle) RetrySlotSync(ctx context.Context) int {
	l.mu.Lock()
	queue := l.pendingSync
	l.pendingSync = nil
	l.mu.Unlock()

	var remaining []models.Appointment
	for _, appt := range queue {
		if err := l.slots.ToggleForAppointment(ctx, appt); err != nil {
			l.logger.Warn("slot sync retry failed",
				zap.Uint("appointment_id", appt.ID),
				zap.Error(err))
			remaining = append(remaining, appt)
		}
	}

	l.mu.Lock()
	l.pendingSync = append(l.pendingSync, remaining...)
	count := len(l.pendingSync)
	l.mu.Unlock()
	return count
}

// Reject declines a pending or rescheduled appointment; the reason is
// optional.
func (l *Lifecycle) Reject(ctx context.Context, appt models.Appointment, reason string) (models.Appointment, error) {
	if !models.CanTransition(appt.Status, models.StatusRejected) {
		return appt, ErrIllegalTransition
	}
	updated, err := l.api.UpdateAppointmentStatus(ctx, appt.ID, "reject", client.StatusUpdateRequest{Reason: reason})
	if err != nil {
		return appt, err
	}
	return *updated, nil
}

// Reschedule proposes a new time; the appointment then awaits a fresh
// accept or reject against the same id.
func (l *Lifecycle) Reschedule(ctx context.Context, appt models.Appointment, proposed time.Time, reason string) (models.Appointment, error) {
	if !models.CanTransition(appt.Status, models.StatusRescheduled) {
		return appt, ErrIllegalTransition
	}
	if proposed.IsZero() {
		return appt, ErrProposedTimeRequired
	}
	updated, err := l.api.UpdateAppointmentStatus(ctx, appt.ID, "reschedule", client.StatusUpdateRequest{
		Reason:           reason,
		ProposedDateTime: &proposed,
	})
	if err != nil {
		return appt, err
	}
	return *updated, nil
}

// Cancel withdraws an accepted appointment; either party may call it and
// the reason is recorded.
func (l *Lifecycle) Cancel(ctx context.Context, appt models.Appointment, reason string) (models.Appointment, error) {
	if !models.CanTransition(appt.Status, models.StatusCancelled) {
		return appt, ErrIllegalTransition
	}
	updated, err := l.api.CancelAppointment(ctx, appt.ID, reason)
	if err != nil {
		return appt, err
	}
	return *updated, nil
}

// Complete marks an accepted appointment done, permitted only after its
// scheduled time has elapsed. The server re-checks; the local check keeps
// the action disabled until the time has passed.
func (l *Lifecycle) Complete(ctx context.Context, appt models.Appointment) (models.Appointment, error) {
	if !models.CanTransition(appt.Status, models.StatusCompleted) {
		return appt, ErrIllegalTransition
	}
	if !l.now().After(appt.AppointmentDateTime) {
		return appt, ErrTooEarly
	}
	updated, err := l.api.UpdateAppointmentStatus(ctx, appt.ID, "complete", client.StatusUpdateRequest{})
	if err != nil {
		return appt, err
	}
	return *updated, nil
}

// List refreshes the caller's appointments from the server.
func (l *Lifecycle) List(ctx context.Context) ([]models.Appointment, error) {
	return l.api.ListAppointments(ctx)
}
