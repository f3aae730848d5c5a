package models

// Push event names. The server distinguishes mentor and learner sessions by
// event name; both variants carry the same envelope.
const (
	EventNewNotification       = "newNotification"
	EventNotificationUpdate    = "notificationUpdate"
	EventNotificationDelete    = "notificationDelete"
	EventMentorNewNotification = "mentorNewNotification"
	EventMentorUpdate          = "mentorNotificationUpdate"
	EventMentorDelete          = "mentorNotificationDelete"
	EventChatMessage           = "chatMessage"
)

type EventKind int

const (
	KindUnknown EventKind = iota
	KindNew
	KindUpdate
	KindDelete
	KindChat
)

// Event is the push channel envelope.
type Event struct {
	Name         string        `json:"event"`
	Notification *Notification `json:"notification,omitempty"`
	RoomID       string        `json:"room_id,omitempty"`
}

// Kind folds the mentor/learner event-name variants into one of the four
// kinds the sync layer cares about.
func (e Event) Kind() EventKind {
	switch e.Name {
	case EventNewNotification, EventMentorNewNotification:
		return KindNew
	case EventNotificationUpdate, EventMentorUpdate:
		return KindUpdate
	case EventNotificationDelete, EventMentorDelete:
		return KindDelete
	case EventChatMessage:
		return KindChat
	}
	return KindUnknown
}
