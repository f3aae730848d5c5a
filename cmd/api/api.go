package api

import (
	"net/http"

	"github.com/KBoateng4/Mentorlink-client/cmd/models"
	"github.com/KBoateng4/Mentorlink-client/stubserver"
	"go.uber.org/zap"
)

// APIServer hosts the in-memory scheduling API for local development, seeded
// with one mentor so the client has something to book against.
type APIServer struct {
	addr   string
	secret string
	logger *zap.Logger
}

func NewApiServer(addr, secret string, logger *zap.Logger) *APIServer {
	return &APIServer{
		addr:   addr,
		secret: secret,
		logger: logger,
	}
}

func (s *APIServer) Run() error {
	stub := stubserver.New(s.secret, s.logger)
	stub.SeedGrid(1, demoGrid())

	s.logger.Info("dev scheduling API listening",
		zap.String("addr", s.addr),
		zap.Uint("seeded_mentor", 1))
	return http.ListenAndServe(s.addr, stub.Handler())
}

func demoGrid() models.WeeklyGrid {
	grid := models.WeeklyGrid{}
	for _, day := range []models.Weekday{models.Monday, models.Wednesday, models.Friday} {
		for _, start := range []string{"09:00", "10:00", "14:00"} {
			grid[day] = append(grid[day], models.Slot{
				Day:             day,
				StartTime:       start,
				DurationMinutes: 60,
				Skills:          []string{"golang", "system-design"},
				IsAvailable:     true,
			})
		}
	}
	return grid
}
