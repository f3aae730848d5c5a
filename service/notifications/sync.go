package notification

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/KBoateng4/Mentorlink-client/client"
	"github.com/KBoateng4/Mentorlink-client/cmd/models"
	"go.uber.org/zap"
)

var ErrUnknownNotification = errors.New("notification not in the local list")

// Sync keeps the local notification list and the two unread counters (chat
// vs non-chat, plus per-room chat buckets) consistent with the push stream.
// The stream is at-least-once and buffers nothing across a disconnect, so a
// full Refresh is required after every reconnect.
type Sync struct {
	api    *client.Client
	logger *zap.Logger

	mu         sync.Mutex
	items      map[string]models.Notification
	unread     int
	unreadChat int
	roomUnread map[string]int
}

func NewSync(api *client.Client, logger *zap.Logger) *Sync {
	return &Sync{
		api:        api,
		logger:     logger,
		items:      make(map[string]models.Notification),
		roomUnread: make(map[string]int),
	}
}

// Apply reconciles one live event against the local list.
func (s *Sync) Apply(ev models.Event) {
	switch ev.Kind() {
	case models.KindNew:
		if ev.Notification == nil {
			return
		}
		s.applyNew(*ev.Notification)
	case models.KindUpdate:
		if ev.Notification == nil {
			return
		}
		s.applyUpdate(*ev.Notification)
	case models.KindDelete:
		if ev.Notification == nil {
			return
		}
		s.applyDelete(ev.Notification.ID)
	case models.KindChat:
		// The chat event only signals thread activity; the countable
		// NEW_MESSAGE notification arrives as its own newNotification.
	default:
		s.logger.Debug("ignoring unknown push event", zap.String("event", ev.Name))
	}
}

func (s *Sync) applyNew(n models.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, seen := s.items[n.ID]; seen {
		// at-least-once delivery; a duplicate must not double-count
		s.items[n.ID] = n
		return
	}
	s.items[n.ID] = n
	if !n.IsRead {
		s.increment(n)
	}
}

func (s *Sync) applyUpdate(n models.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.items[n.ID]
	if !ok {
		s.items[n.ID] = n
		if !n.IsRead {
			s.increment(n)
		}
		return
	}
	if !prev.IsRead && n.IsRead {
		s.decrement(prev)
	}
	if prev.IsRead && !n.IsRead {
		s.increment(n)
	}
	s.items[n.ID] = n
}

func (s *Sync) applyDelete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.items[id]
	if !ok {
		return
	}
	if !prev.IsRead {
		s.decrement(prev)
	}
	delete(s.items, id)
}

func (s *Sync) increment(n models.Notification) {
	if n.IsChat() {
		s.unreadChat++
		if n.RoomID != "" {
			s.roomUnread[n.RoomID]++
		}
		return
	}
	s.unread++
}

// decrement moves exactly one unread→read transition out of the matching
// bucket, never both, and never below zero.
func (s *Sync) decrement(n models.Notification) {
	if n.IsChat() {
		if s.unreadChat > 0 {
			s.unreadChat--
		}
		if n.RoomID != "" && s.roomUnread[n.RoomID] > 0 {
			s.roomUnread[n.RoomID]--
		}
		return
	}
	if s.unread > 0 {
		s.unread--
	}
}

// Counts returns (non-chat unread, chat unread).
func (s *Sync) Counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread, s.unreadChat
}

func (s *Sync) RoomUnread(roomID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomUnread[roomID]
}

// List returns the local notifications, newest first.
func (s *Sync) List() []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Notification, 0, len(s.items))
	for _, n := range s.items {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// MarkAsRead marks remotely first; the local counters only move once the
// server acknowledged. Returns the navigation route for the notification's
// type so the caller can open the matching view.
func (s *Sync) MarkAsRead(ctx context.Context, id string) (models.Route, error) {
	s.mu.Lock()
	n, ok := s.items[id]
	s.mu.Unlock()
	if !ok {
		return "", ErrUnknownNotification
	}

	if err := s.api.MarkNotificationRead(ctx, id); err != nil {
		return "", err
	}

	s.mu.Lock()
	if current, ok := s.items[id]; ok && !current.IsRead {
		s.decrement(current)
		current.IsRead = true
		s.items[id] = current
	}
	s.mu.Unlock()
	return n.Route(), nil
}

// Refresh reloads the full list from the server and rebuilds every counter
// from scratch. Used on startup, after a reconnect, and as the polling
// fallback once the push channel degrades.
func (s *Sync) Refresh(ctx context.Context) error {
	list, err := s.api.ListNotifications(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.items = make(map[string]models.Notification, len(list))
	s.unread = 0
	s.unreadChat = 0
	s.roomUnread = make(map[string]int)
	for _, n := range list {
		s.items[n.ID] = n
		if !n.IsRead {
			s.increment(n)
		}
	}
	s.mu.Unlock()

	s.logger.Debug("notification list resynced", zap.Int("count", len(list)))
	return nil
}
