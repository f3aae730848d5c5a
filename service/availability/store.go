package availability

import (
	"context"
	"sort"
	"sync"

	"github.com/KBoateng4/Mentorlink-client/client"
	"github.com/KBoateng4/Mentorlink-client/cmd/models"
	"go.uber.org/zap"
)

// Store mirrors one mentor's weekly availability grid. Mutations apply
// optimistically, persist the full grid, and roll the mirror back if the
// server rejects the write, so local and server truth cannot drift apart.
type Store struct {
	api      *client.Client
	mentorID uint
	logger   *zap.Logger

	mu   sync.Mutex
	week map[models.Weekday]map[string]models.Slot
}

func NewStore(api *client.Client, mentorID uint, logger *zap.Logger) *Store {
	return &Store{
		api:      api,
		mentorID: mentorID,
		logger:   logger,
		week:     make(map[models.Weekday]map[string]models.Slot),
	}
}

func (s *Store) MentorID() uint {
	return s.mentorID
}

// Load replaces the mirror with the server's current grid.
func (s *Store) Load(ctx context.Context) error {
	grid, err := s.api.GetAvailability(ctx, s.mentorID)
	if err != nil {
		return err
	}

	week := make(map[models.Weekday]map[string]models.Slot, len(grid))
	for day, slots := range grid {
		week[day] = make(map[string]models.Slot, len(slots))
		for _, slot := range slots {
			week[day][slot.StartTime] = slot
		}
	}

	s.mu.Lock()
	s.week = week
	s.mu.Unlock()
	return nil
}

func (s *Store) Get(day models.Weekday, start string) (models.Slot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.week[day][start]
	return slot, ok
}

// Slots returns a day's slots ordered by start time. Order is display-only.
func (s *Store) Slots(day models.Weekday) []models.Slot {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Slot, 0, len(s.week[day]))
	for _, slot := range s.week[day] {
		out = append(out, slot)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime < out[j].StartTime })
	return out
}

// Grid snapshots the whole mirror as the wire-shape weekly grid.
func (s *Store) Grid() models.WeeklyGrid {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gridLocked()
}

func (s *Store) gridLocked() models.WeeklyGrid {
	grid := make(models.WeeklyGrid, len(s.week))
	for day, byStart := range s.week {
		slots := make([]models.Slot, 0, len(byStart))
		for _, slot := range byStart {
			slots = append(slots, slot)
		}
		sort.Slice(slots, func(i, j int) bool { return slots[i].StartTime < slots[j].StartTime })
		grid[day] = slots
	}
	return grid
}

// Set writes a slot at its (day, startTime) key, replacing any slot already
// there, and persists the grid. On persist failure the previous state is
// restored and the error returned.
func (s *Store) Set(ctx context.Context, slot models.Slot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.week[slot.Day][slot.StartTime]
	if s.week[slot.Day] == nil {
		s.week[slot.Day] = make(map[string]models.Slot)
	}
	s.week[slot.Day][slot.StartTime] = slot

	if err := s.api.ReplaceAvailability(ctx, s.mentorID, s.gridLocked()); err != nil {
		if existed {
			s.week[slot.Day][slot.StartTime] = prev
		} else {
			delete(s.week[slot.Day], slot.StartTime)
		}
		s.logger.Warn("availability update rejected, mirror rolled back",
			zap.String("day", string(slot.Day)),
			zap.String("start", slot.StartTime),
			zap.Error(err))
		return err
	}
	return nil
}

// Remove deletes the slot at (day, startTime) and persists, restoring it if
// the server refuses.
func (s *Store) Remove(ctx context.Context, day models.Weekday, start string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.week[day][start]
	if !existed {
		return nil
	}
	delete(s.week[day], start)

	if err := s.api.ReplaceAvailability(ctx, s.mentorID, s.gridLocked()); err != nil {
		s.week[day][start] = prev
		s.logger.Warn("availability delete rejected, mirror rolled back",
			zap.String("day", string(day)),
			zap.String("start", start),
			zap.Error(err))
		return err
	}
	return nil
}

// applyToggle flips the local open flag after the server acknowledged the
// matching remote toggle. No persistence call of its own.
func (s *Store) applyToggle(day models.Weekday, start, skill string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot, ok := s.week[day][start]
	if !ok || !slot.HasSkill(skill) {
		return false
	}
	slot.IsAvailable = !slot.IsAvailable
	s.week[day][start] = slot
	return true
}
