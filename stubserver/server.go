// Package stubserver is an in-memory stand-in for the scheduling API the
// client talks to in production. Tests and local development run against it;
// it enforces the same contract the real collaborator does: bearer auth,
// per-slot atomic booking, server-side transition checks and push events.
package stubserver

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/KBoateng4/Mentorlink-client/cmd/models"
	"github.com/golang-jwt/jwt/v4"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type contextKey string

const userIDKey contextKey = "userID"

type Server struct {
	secret []byte
	logger *zap.Logger
	hub    *Hub

	// Now is injectable so tests can move the clock past an appointment.
	Now func() time.Time

	mu            sync.Mutex
	grids         map[uint]map[models.Weekday]map[string]models.Slot
	appointments  map[uint]*models.Appointment
	nextID        uint
	notifications map[string]*models.Notification
	userNotifs    map[uint][]string
	idempotency   map[string]uint

	limiterMu sync.Mutex
	limiters  map[uint]*rate.Limiter
	rateLimit rate.Limit
	burst     int
}

func New(secret string, logger *zap.Logger) *Server {
	return &Server{
		secret:        []byte(secret),
		logger:        logger,
		hub:           NewHub(logger),
		Now:           time.Now,
		grids:         make(map[uint]map[models.Weekday]map[string]models.Slot),
		appointments:  make(map[uint]*models.Appointment),
		notifications: make(map[string]*models.Notification),
		userNotifs:    make(map[uint][]string),
		idempotency:   make(map[string]uint),
		limiters:      make(map[uint]*rate.Limiter),
		rateLimit:     rate.Every(time.Minute / 120),
		burst:         30,
	}
}

// SetRateLimit overrides the per-user request budget.
func (s *Server) SetRateLimit(r rate.Limit, burst int) {
	s.limiterMu.Lock()
	defer s.limiterMu.Unlock()
	s.rateLimit = r
	s.burst = burst
	s.limiters = make(map[uint]*rate.Limiter)
}

// SeedGrid installs a mentor's weekly grid directly, bypassing auth.
func (s *Server) SeedGrid(mentorID uint, grid models.WeeklyGrid) {
	s.mu.Lock()
	defer s.mu.Unlock()
	week := make(map[models.Weekday]map[string]models.Slot, len(grid))
	for day, slots := range grid {
		week[day] = make(map[string]models.Slot, len(slots))
		for _, slot := range slots {
			slot.Day = day
			week[day][slot.StartTime] = slot
		}
	}
	s.grids[mentorID] = week
}

func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/auth/token", s.handleToken).Methods("POST")
	router.HandleFunc("/ws", s.handleWebSocket)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(s.authMiddleware, s.rateLimitMiddleware)
	api.HandleFunc("/mentors/{mentorId}/availability", s.GetAvailability).Methods("GET")
	api.HandleFunc("/mentors/{mentorId}/availability", s.ReplaceAvailability).Methods("POST")
	api.HandleFunc("/mentors/{mentorId}/availability/toggle", s.ToggleSlot).Methods("PATCH")
	api.HandleFunc("/appointments", s.BookAppointment).Methods("POST")
	api.HandleFunc("/appointments", s.ListAppointments).Methods("GET")
	api.HandleFunc("/appointments/{id}/accept", s.acceptHandler).Methods("PATCH")
	api.HandleFunc("/appointments/{id}/reject", s.rejectHandler).Methods("PATCH")
	api.HandleFunc("/appointments/{id}/reschedule", s.rescheduleHandler).Methods("PATCH")
	api.HandleFunc("/appointments/{id}/complete", s.completeHandler).Methods("PATCH")
	api.HandleFunc("/appointments/{id}/cancel", s.CancelAppointment).Methods("POST")
	api.HandleFunc("/notifications", s.ListNotifications).Methods("GET")
	api.HandleFunc("/notifications/{id}/read", s.MarkNotificationRead).Methods("POST")
	api.HandleFunc("/notifications/{id}", s.DeleteNotification).Methods("DELETE")

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "PATCH", "DELETE"}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type", "Idempotency-Key"}),
	)
	return handlers.RecoveryHandler()(cors(router))
}

// handleToken mints an HS256 bearer token. Dev and test convenience; the
// production collaborator owns real sign-in.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID         uint `json:"user_id"`
		ExpiresMinutes int  `json:"expires_minutes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == 0 {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.ExpiresMinutes <= 0 {
		req.ExpiresMinutes = 60
	}

	claims := &jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(req.UserID), 10),
		ExpiresAt: jwt.NewNumericDate(s.Now().Add(time.Duration(req.ExpiresMinutes) * time.Minute)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		http.Error(w, "Error signing token", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"token": signed})
}

func (s *Server) userFromToken(r *http.Request) (uint, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return 0, false
	}
	tokenString := strings.Replace(authHeader, "Bearer ", "", 1)

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return 0, false
	}

	userID, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil {
		return 0, false
	}
	return uint(userID), true
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := s.userFromToken(r)
		if !ok {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, _ := r.Context().Value(userIDKey).(uint)
		if !s.limiterFor(userID).Allow() {
			s.logger.Warn("rate limit exceeded", zap.Uint("user_id", userID))
			http.Error(w, "Rate limit exceeded. Try again later.", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) limiterFor(userID uint) *rate.Limiter {
	s.limiterMu.Lock()
	defer s.limiterMu.Unlock()

	limiter, exists := s.limiters[userID]
	if !exists {
		limiter = rate.NewLimiter(s.rateLimit, s.burst)
		s.limiters[userID] = limiter
	}
	return limiter
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userFromToken(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	s.logger.Debug("push connection established", zap.Uint("user_id", userID))

	client := &wsClient{
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, 256),
	}
	s.hub.register(client)

	go client.writePump()
	go client.readPump(s.hub)
}

func callerID(r *http.Request) uint {
	userID, _ := r.Context().Value(userIDKey).(uint)
	return userID
}
