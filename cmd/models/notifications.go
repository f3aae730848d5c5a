package models

import "time"

type NotificationType string

const (
	NotificationAssignment             NotificationType = "ASSIGNMENT"
	NotificationAppointmentRequested   NotificationType = "APPOINTMENT_REQUESTED"
	NotificationAppointmentAccepted    NotificationType = "APPOINTMENT_ACCEPTED"
	NotificationAppointmentRejected    NotificationType = "APPOINTMENT_REJECTED"
	NotificationAppointmentRescheduled NotificationType = "APPOINTMENT_RESCHEDULED"
	NotificationAppointmentCancelled   NotificationType = "APPOINTMENT_CANCELLED"
	NotificationNewMessage             NotificationType = "NEW_MESSAGE"
)

type Notification struct {
	ID            string           `json:"id"`
	UserID        uint             `json:"user_id"`
	Type          NotificationType `json:"type"`
	Title         string           `json:"title"`
	Body          string           `json:"body"`
	IsRead        bool             `json:"is_read"`
	RoomID        string           `json:"room_id,omitempty"`
	AppointmentID uint             `json:"appointment_id,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
}

// IsChat reports whether the notification belongs to the chat unread bucket.
// Chat and non-chat counters never cross-update each other.
func (n Notification) IsChat() bool {
	return n.Type == NotificationNewMessage
}

// Route is the navigation target opened after a notification is read.
type Route string

const (
	RouteAssignments   Route = "assignments"
	RouteCalendar      Route = "calendar"
	RouteMessages      Route = "messages"
	RouteNotifications Route = "notifications"
)

func (n Notification) Route() Route {
	switch n.Type {
	case NotificationAssignment:
		return RouteAssignments
	case NotificationAppointmentRequested, NotificationAppointmentAccepted,
		NotificationAppointmentRejected, NotificationAppointmentRescheduled,
		NotificationAppointmentCancelled:
		return RouteCalendar
	case NotificationNewMessage:
		return RouteMessages
	}
	return RouteNotifications
}
