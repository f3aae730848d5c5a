package stubserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/KBoateng4/Mentorlink-client/cmd/models"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// GetAvailability returns a mentor's weekly grid keyed by start time per
// day, the shape older server versions emit. The client normalizes it.
func (s *Server) GetAvailability(w http.ResponseWriter, r *http.Request) {
	mentorID, err := mentorIDFromPath(r)
	if err != nil {
		http.Error(w, "Invalid mentor ID", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	out := make(map[models.Weekday]map[string]models.Slot, len(s.grids[mentorID]))
	for day, byStart := range s.grids[mentorID] {
		out[day] = make(map[string]models.Slot, len(byStart))
		for start, slot := range byStart {
			out[day][start] = slot
		}
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"availability": out,
	})
}

// ReplaceAvailability persists a mentor's full weekly grid in one write.
func (s *Server) ReplaceAvailability(w http.ResponseWriter, r *http.Request) {
	mentorID, err := mentorIDFromPath(r)
	if err != nil {
		http.Error(w, "Invalid mentor ID", http.StatusBadRequest)
		return
	}
	if callerID(r) != mentorID {
		http.Error(w, "Only the mentor may edit their availability", http.StatusForbidden)
		return
	}

	var req struct {
		Availability models.WeeklyGrid `json:"availability"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	week := make(map[models.Weekday]map[string]models.Slot, len(req.Availability))
	for day, slots := range req.Availability {
		week[day] = make(map[string]models.Slot, len(slots))
		for _, slot := range slots {
			if !models.ValidStartTime(slot.StartTime) || !models.ValidDuration(slot.DurationMinutes) {
				http.Error(w, "Slot outside the weekly grid", http.StatusBadRequest)
				return
			}
			slot.Day = day
			week[day][slot.StartTime] = slot
		}
	}

	s.mu.Lock()
	s.grids[mentorID] = week
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message": "Availability updated successfully",
	})
}

// ToggleSlot flips the open flag of exactly one (day, startTime, skill)
// slot. Toggling twice restores the original state.
func (s *Server) ToggleSlot(w http.ResponseWriter, r *http.Request) {
	mentorID, err := mentorIDFromPath(r)
	if err != nil {
		http.Error(w, "Invalid mentor ID", http.StatusBadRequest)
		return
	}
	if callerID(r) != mentorID {
		http.Error(w, "Only the mentor may toggle their slots", http.StatusForbidden)
		return
	}

	var req struct {
		Day       models.Weekday `json:"day"`
		StartTime string         `json:"start_time"`
		Skill     string         `json:"skill"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	slot, ok := s.grids[mentorID][req.Day][req.StartTime]
	if !ok || !slot.HasSkill(req.Skill) {
		http.Error(w, "Slot not found", http.StatusNotFound)
		return
	}
	slot.IsAvailable = !slot.IsAvailable
	s.grids[mentorID][req.Day][req.StartTime] = slot

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(slot)
}

// BookAppointment creates a pending appointment. The per-slot conflict check
// and the create happen under one lock, so concurrent bookings of the same
// slot yield exactly one success and one 409.
func (s *Server) BookAppointment(w http.ResponseWriter, r *http.Request) {
	learnerID := callerID(r)

	var req struct {
		MentorID            uint      `json:"mentor_id"`
		AppointmentDateTime time.Time `json:"appointment_datetime"`
		Skill               string    `json:"skill"`
		DurationMinutes     int       `json:"duration_minutes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.MentorID == 0 || req.Skill == "" || req.AppointmentDateTime.IsZero() {
		http.Error(w, "mentor_id, skill and appointment_datetime are required", http.StatusBadRequest)
		return
	}

	idemKey := r.Header.Get("Idempotency-Key")

	s.mu.Lock()
	if idemKey != "" {
		if id, seen := s.idempotency[idemKey]; seen {
			existing := *s.appointments[id]
			s.mu.Unlock()
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(models.BookingResponse{Appointment: existing})
			return
		}
	}

	day := models.WeekdayOf(req.AppointmentDateTime)
	start := models.StartTimeOf(req.AppointmentDateTime)
	slot, ok := s.grids[req.MentorID][day][start]
	if !ok || !slot.IsAvailable || !slot.HasSkill(req.Skill) {
		s.mu.Unlock()
		http.Error(w, "Mentor unavailable at this time", http.StatusUnprocessableEntity)
		return
	}

	for _, appt := range s.appointments {
		if appt.MentorID == req.MentorID &&
			appt.AppointmentDateTime.Equal(req.AppointmentDateTime) &&
			!appt.Status.Terminal() {
			s.mu.Unlock()
			http.Error(w, "Time slot already booked", http.StatusConflict)
			return
		}
	}

	duration := req.DurationMinutes
	if duration == 0 {
		duration = slot.DurationMinutes
	}

	s.nextID++
	appt := &models.Appointment{
		ID:                  s.nextID,
		MentorID:            req.MentorID,
		LearnerID:           learnerID,
		Skill:               req.Skill,
		AppointmentDateTime: req.AppointmentDateTime,
		DurationMinutes:     duration,
		Status:              models.StatusPending,
		CreatedAt:           s.Now(),
	}
	s.appointments[appt.ID] = appt
	if idemKey != "" {
		s.idempotency[idemKey] = appt.ID
	}
	created := *appt
	s.mu.Unlock()

	s.notify(created.MentorID, true, models.NotificationAppointmentRequested,
		"New session request", "A learner requested a session for "+created.Skill, created.ID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(models.BookingResponse{Appointment: created})
}

// ListAppointments returns every appointment the caller is a party to.
func (s *Server) ListAppointments(w http.ResponseWriter, r *http.Request) {
	caller := callerID(r)

	s.mu.Lock()
	var out []models.Appointment
	for _, appt := range s.appointments {
		if appt.MentorID == caller || appt.LearnerID == caller {
			out = append(out, *appt)
		}
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"appointments": out,
		"total":        len(out),
	})
}

func (s *Server) acceptHandler(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, models.StatusAccepted)
}

func (s *Server) rejectHandler(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, models.StatusRejected)
}

func (s *Server) rescheduleHandler(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, models.StatusRescheduled)
}

func (s *Server) completeHandler(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, models.StatusCompleted)
}

// CancelAppointment withdraws an accepted appointment; either party may call
// it, the reason is recorded.
func (s *Server) CancelAppointment(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, models.StatusCancelled)
}

// transition applies one lifecycle move with the same table the client
// checks against. Illegal moves, including any move out of a terminal
// state, are 422s.
func (s *Server) transition(w http.ResponseWriter, r *http.Request, to models.Status) {
	vars := mux.Vars(r)
	id, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid appointment ID", http.StatusBadRequest)
		return
	}

	var body struct {
		Reason           string     `json:"reason,omitempty"`
		ProposedDateTime *time.Time `json:"proposed_datetime,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	caller := callerID(r)

	s.mu.Lock()
	appt, ok := s.appointments[uint(id)]
	if !ok {
		s.mu.Unlock()
		http.Error(w, "Appointment not found", http.StatusNotFound)
		return
	}

	switch to {
	case models.StatusAccepted, models.StatusRejected, models.StatusRescheduled:
		if caller != appt.MentorID {
			s.mu.Unlock()
			http.Error(w, "Only the mentor may do that", http.StatusForbidden)
			return
		}
	default:
		if caller != appt.MentorID && caller != appt.LearnerID {
			s.mu.Unlock()
			http.Error(w, "Not a party to this appointment", http.StatusForbidden)
			return
		}
	}

	if !models.CanTransition(appt.Status, to) {
		s.mu.Unlock()
		http.Error(w, "Illegal status transition", http.StatusUnprocessableEntity)
		return
	}
	if to == models.StatusCompleted && !s.Now().After(appt.AppointmentDateTime) {
		s.mu.Unlock()
		http.Error(w, "Appointment has not finished yet", http.StatusUnprocessableEntity)
		return
	}
	if to == models.StatusRescheduled {
		if body.ProposedDateTime == nil || body.ProposedDateTime.IsZero() {
			s.mu.Unlock()
			http.Error(w, "proposed_datetime is required", http.StatusBadRequest)
			return
		}
		appt.ProposedDateTime = body.ProposedDateTime
	}

	appt.Status = to
	if body.Reason != "" {
		appt.Reason = body.Reason
	}
	updated := *appt
	s.mu.Unlock()

	target := updated.LearnerID
	if caller == updated.LearnerID {
		target = updated.MentorID
	}
	s.notify(target, target == updated.MentorID, notificationTypeFor(to),
		"Appointment "+string(to), "Your "+updated.Skill+" session is now "+string(to), updated.ID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(updated)
}

func notificationTypeFor(status models.Status) models.NotificationType {
	switch status {
	case models.StatusAccepted:
		return models.NotificationAppointmentAccepted
	case models.StatusRejected:
		return models.NotificationAppointmentRejected
	case models.StatusRescheduled:
		return models.NotificationAppointmentRescheduled
	case models.StatusCancelled:
		return models.NotificationAppointmentCancelled
	}
	return models.NotificationAssignment
}

// ListNotifications returns the caller's notifications, newest first.
func (s *Server) ListNotifications(w http.ResponseWriter, r *http.Request) {
	caller := callerID(r)

	s.mu.Lock()
	ids := s.userNotifs[caller]
	out := make([]models.Notification, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		if n, ok := s.notifications[ids[i]]; ok {
			out = append(out, *n)
		}
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"notifications": out,
		"total":         len(out),
	})
}

// MarkNotificationRead flags one notification read and pushes the update to
// the owner's other sessions.
func (s *Server) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	caller := callerID(r)
	vars := mux.Vars(r)

	s.mu.Lock()
	n, ok := s.notifications[vars["id"]]
	if !ok || n.UserID != caller {
		s.mu.Unlock()
		http.Error(w, "Notification not found", http.StatusNotFound)
		return
	}
	n.IsRead = true
	updated := *n
	s.mu.Unlock()

	s.hub.BroadcastToUser(caller, models.Event{
		Name:         models.EventNotificationUpdate,
		Notification: &updated,
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message": "Notification marked as read",
	})
}

// DeleteNotification removes one notification and pushes the deletion.
func (s *Server) DeleteNotification(w http.ResponseWriter, r *http.Request) {
	caller := callerID(r)
	vars := mux.Vars(r)

	s.mu.Lock()
	n, ok := s.notifications[vars["id"]]
	if !ok || n.UserID != caller {
		s.mu.Unlock()
		http.Error(w, "Notification not found", http.StatusNotFound)
		return
	}
	removed := *n
	delete(s.notifications, removed.ID)
	ids := s.userNotifs[caller]
	for i, id := range ids {
		if id == removed.ID {
			s.userNotifs[caller] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	s.hub.BroadcastToUser(caller, models.Event{
		Name:         models.EventNotificationDelete,
		Notification: &removed,
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message": "Notification deleted successfully",
	})
}

// notify stores a notification and pushes it live. Mentor sessions listen
// on the mentor-named event variants.
func (s *Server) notify(userID uint, mentorSide bool, typ models.NotificationType, title, body string, appointmentID uint) {
	n := &models.Notification{
		ID:            uuid.NewString(),
		UserID:        userID,
		Type:          typ,
		Title:         title,
		Body:          body,
		AppointmentID: appointmentID,
		CreatedAt:     s.Now(),
	}

	s.mu.Lock()
	s.notifications[n.ID] = n
	s.userNotifs[userID] = append(s.userNotifs[userID], n.ID)
	copied := *n
	s.mu.Unlock()

	name := models.EventNewNotification
	if mentorSide {
		name = models.EventMentorNewNotification
	}
	s.hub.BroadcastToUser(userID, models.Event{Name: name, Notification: &copied})
}

func mentorIDFromPath(r *http.Request) (uint, error) {
	vars := mux.Vars(r)
	id, err := strconv.ParseUint(vars["mentorId"], 10, 64)
	return uint(id), err
}
