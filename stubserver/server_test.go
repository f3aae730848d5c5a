package stubserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/KBoateng4/Mentorlink-client/client"
	"github.com/KBoateng4/Mentorlink-client/cmd/models"
	"github.com/KBoateng4/Mentorlink-client/cmd/utils"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	mentorID  uint = 1
	learnerID uint = 2
)

func newStub(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	stub := New("test-secret", zap.NewNop())
	server := httptest.NewServer(stub.Handler())
	t.Cleanup(server.Close)
	return stub, server
}

func mintToken(t *testing.T, server *httptest.Server, userID uint) string {
	t.Helper()
	body, _ := json.Marshal(map[string]interface{}{"user_id": userID})
	resp, err := http.Post(server.URL+"/auth/token", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("minting token: %v", err)
	}
	defer resp.Body.Close()

	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decoding token: %v", err)
	}
	return out.Token
}

func apiClient(t *testing.T, server *httptest.Server, userID uint) *client.Client {
	t.Helper()
	session, err := utils.NewSession(mintToken(t, server, userID))
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	return client.New(server.URL, session, zap.NewNop())
}

func seedMondaySlot(stub *Server) {
	stub.SeedGrid(mentorID, models.WeeklyGrid{
		models.Monday: []models.Slot{{
			StartTime:       "10:00",
			DurationMinutes: 60,
			Skills:          []string{"golang"},
			IsAvailable:     true,
		}},
	})
}

// nextMonday returns an upcoming monday at 10:00 UTC, comfortably in the
// future so completion checks have something to be early against.
func nextMonday() time.Time {
	d := time.Now().UTC().AddDate(0, 0, 14)
	for models.WeekdayOf(d) != models.Monday {
		d = d.AddDate(0, 0, 1)
	}
	return time.Date(d.Year(), d.Month(), d.Day(), 10, 0, 0, 0, time.UTC)
}

func TestAuthRequired(t *testing.T) {
	_, server := newStub(t)

	resp, err := http.Get(server.URL + "/api/v1/notifications")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestAvailabilityRoundTrip(t *testing.T) {
	stub, server := newStub(t)
	seedMondaySlot(stub)
	mentor := apiClient(t, server, mentorID)
	ctx := context.Background()

	grid, err := mentor.GetAvailability(ctx, mentorID)
	if err != nil {
		t.Fatalf("GetAvailability: %v", err)
	}
	slot, ok := grid.Slot(models.Monday, "10:00")
	if !ok || !slot.IsAvailable || !slot.HasSkill("golang") {
		t.Fatalf("seeded slot did not round-trip: %+v ok=%v", slot, ok)
	}

	// full replace, then read back
	grid[models.Tuesday] = []models.Slot{{StartTime: "09:00", DurationMinutes: 30, Skills: []string{"sql"}, IsAvailable: true}}
	if err := mentor.ReplaceAvailability(ctx, mentorID, grid); err != nil {
		t.Fatalf("ReplaceAvailability: %v", err)
	}
	again, err := mentor.GetAvailability(ctx, mentorID)
	if err != nil {
		t.Fatalf("GetAvailability: %v", err)
	}
	if _, ok := again.Slot(models.Tuesday, "09:00"); !ok {
		t.Errorf("replacement grid not persisted: %v", again)
	}

	// another user cannot edit this mentor's grid
	learner := apiClient(t, server, learnerID)
	err = learner.ReplaceAvailability(ctx, mentorID, grid)
	if err == nil {
		t.Fatal("expected a foreign write to be rejected")
	}
}

func TestToggleIsIdempotentFlip(t *testing.T) {
	stub, server := newStub(t)
	seedMondaySlot(stub)
	mentor := apiClient(t, server, mentorID)
	ctx := context.Background()

	req := client.ToggleSlotRequest{Day: models.Monday, StartTime: "10:00", Skill: "golang"}
	if err := mentor.ToggleSlot(ctx, mentorID, req); err != nil {
		t.Fatalf("ToggleSlot: %v", err)
	}
	grid, _ := mentor.GetAvailability(ctx, mentorID)
	if slot, _ := grid.Slot(models.Monday, "10:00"); slot.IsAvailable {
		t.Error("first toggle should close the slot")
	}

	if err := mentor.ToggleSlot(ctx, mentorID, req); err != nil {
		t.Fatalf("ToggleSlot: %v", err)
	}
	grid, _ = mentor.GetAvailability(ctx, mentorID)
	if slot, _ := grid.Slot(models.Monday, "10:00"); !slot.IsAvailable {
		t.Error("second toggle should restore the slot")
	}

	// unknown skill at a real time is a miss, not a flip
	bad := client.ToggleSlotRequest{Day: models.Monday, StartTime: "10:00", Skill: "react"}
	if err := mentor.ToggleSlot(ctx, mentorID, bad); !errors.Is(err, client.ErrNotFound) {
		t.Errorf("wrong skill: error = %v, want ErrNotFound", err)
	}
}

func TestConcurrentBookingHasOneWinner(t *testing.T) {
	stub, server := newStub(t)
	seedMondaySlot(stub)
	when := nextMonday()

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for _, user := range []uint{2, 3} {
		wg.Add(1)
		go func(userID uint) {
			defer wg.Done()
			c := apiClient(t, server, userID)
			_, err := c.CreateAppointment(context.Background(), client.CreateAppointmentRequest{
				MentorID:            mentorID,
				AppointmentDateTime: when,
				Skill:               "golang",
				DurationMinutes:     60,
			}, fmt.Sprintf("key-%d", userID))
			results <- err
		}(user)
	}
	wg.Wait()
	close(results)

	var wins, conflicts int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, client.ErrConflict):
			conflicts++
		default:
			t.Fatalf("unexpected booking error: %v", err)
		}
	}
	if wins != 1 || conflicts != 1 {
		t.Fatalf("wins = %d, conflicts = %d; want exactly one of each", wins, conflicts)
	}
}

func TestBookingIdempotencyReplay(t *testing.T) {
	stub, server := newStub(t)
	seedMondaySlot(stub)
	learner := apiClient(t, server, learnerID)
	ctx := context.Background()

	req := client.CreateAppointmentRequest{
		MentorID:            mentorID,
		AppointmentDateTime: nextMonday(),
		Skill:               "golang",
		DurationMinutes:     60,
	}
	first, err := learner.CreateAppointment(ctx, req, "replay-key")
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	second, err := learner.CreateAppointment(ctx, req, "replay-key")
	if err != nil {
		t.Fatalf("replayed submit: %v", err)
	}
	if first.Appointment.ID != second.Appointment.ID {
		t.Errorf("replay created a new appointment: %d vs %d", first.Appointment.ID, second.Appointment.ID)
	}

	appts, err := learner.ListAppointments(ctx)
	if err != nil {
		t.Fatalf("ListAppointments: %v", err)
	}
	if len(appts) != 1 {
		t.Errorf("expected exactly one appointment, got %d", len(appts))
	}
}

func TestBookingValidatesAgainstGrid(t *testing.T) {
	stub, server := newStub(t)
	seedMondaySlot(stub)
	mentor := apiClient(t, server, mentorID)
	learner := apiClient(t, server, learnerID)
	ctx := context.Background()

	// close the slot, then try to book it
	toggle := client.ToggleSlotRequest{Day: models.Monday, StartTime: "10:00", Skill: "golang"}
	if err := mentor.ToggleSlot(ctx, mentorID, toggle); err != nil {
		t.Fatalf("ToggleSlot: %v", err)
	}

	_, err := learner.CreateAppointment(ctx, client.CreateAppointmentRequest{
		MentorID:            mentorID,
		AppointmentDateTime: nextMonday(),
		Skill:               "golang",
		DurationMinutes:     60,
	}, "")
	if !errors.Is(err, client.ErrMentorUnavailable) {
		t.Fatalf("closed slot: error = %v, want ErrMentorUnavailable", err)
	}

	// a skill the slot does not offer is equally unavailable
	if err := mentor.ToggleSlot(ctx, mentorID, toggle); err != nil {
		t.Fatalf("ToggleSlot: %v", err)
	}
	_, err = learner.CreateAppointment(ctx, client.CreateAppointmentRequest{
		MentorID:            mentorID,
		AppointmentDateTime: nextMonday(),
		Skill:               "react",
		DurationMinutes:     60,
	}, "")
	if !errors.Is(err, client.ErrMentorUnavailable) {
		t.Fatalf("wrong skill: error = %v, want ErrMentorUnavailable", err)
	}
}

func TestTransitionFlowAndNotifications(t *testing.T) {
	stub, server := newStub(t)
	seedMondaySlot(stub)
	mentor := apiClient(t, server, mentorID)
	learner := apiClient(t, server, learnerID)
	ctx := context.Background()
	when := nextMonday()

	booked, err := learner.CreateAppointment(ctx, client.CreateAppointmentRequest{
		MentorID:            mentorID,
		AppointmentDateTime: when,
		Skill:               "golang",
		DurationMinutes:     60,
	}, "")
	if err != nil {
		t.Fatalf("booking: %v", err)
	}
	if booked.Appointment.Status != models.StatusPending {
		t.Fatalf("status = %s, want pending", booked.Appointment.Status)
	}

	// the mentor was notified of the request
	mentorNotifs, err := mentor.ListNotifications(ctx)
	if err != nil {
		t.Fatalf("ListNotifications: %v", err)
	}
	if len(mentorNotifs) != 1 || mentorNotifs[0].Type != models.NotificationAppointmentRequested {
		t.Fatalf("mentor notifications = %+v, want one APPOINTMENT_REQUESTED", mentorNotifs)
	}

	// only the mentor may accept
	if _, err := learner.UpdateAppointmentStatus(ctx, booked.Appointment.ID, "accept", client.StatusUpdateRequest{}); err == nil {
		t.Fatal("a learner must not accept an appointment")
	}

	accepted, err := mentor.UpdateAppointmentStatus(ctx, booked.Appointment.ID, "accept", client.StatusUpdateRequest{})
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if accepted.Status != models.StatusAccepted {
		t.Fatalf("status = %s, want accepted", accepted.Status)
	}

	// accepting twice is an illegal transition
	_, err = mentor.UpdateAppointmentStatus(ctx, booked.Appointment.ID, "accept", client.StatusUpdateRequest{})
	if !errors.Is(err, client.ErrMentorUnavailable) {
		t.Fatalf("double accept: error = %v, want the 422 class", err)
	}

	// the learner heard about the accept
	learnerNotifs, err := learner.ListNotifications(ctx)
	if err != nil {
		t.Fatalf("ListNotifications: %v", err)
	}
	if len(learnerNotifs) != 1 || learnerNotifs[0].Type != models.NotificationAppointmentAccepted {
		t.Fatalf("learner notifications = %+v, want one APPOINTMENT_ACCEPTED", learnerNotifs)
	}

	// completion is blocked until the time passes, then allowed
	_, err = mentor.UpdateAppointmentStatus(ctx, booked.Appointment.ID, "complete", client.StatusUpdateRequest{})
	if !errors.Is(err, client.ErrMentorUnavailable) {
		t.Fatalf("early complete: error = %v, want the 422 class", err)
	}
	stub.Now = func() time.Time { return when.Add(2 * time.Hour) }
	done, err := mentor.UpdateAppointmentStatus(ctx, booked.Appointment.ID, "complete", client.StatusUpdateRequest{})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != models.StatusCompleted {
		t.Errorf("status = %s, want completed", done.Status)
	}
}

func TestRescheduleRoundTrip(t *testing.T) {
	stub, server := newStub(t)
	seedMondaySlot(stub)
	mentor := apiClient(t, server, mentorID)
	learner := apiClient(t, server, learnerID)
	ctx := context.Background()

	booked, err := learner.CreateAppointment(ctx, client.CreateAppointmentRequest{
		MentorID:            mentorID,
		AppointmentDateTime: nextMonday(),
		Skill:               "golang",
		DurationMinutes:     60,
	}, "")
	if err != nil {
		t.Fatalf("booking: %v", err)
	}

	// reschedule without a proposed time is a bad request
	_, err = mentor.UpdateAppointmentStatus(ctx, booked.Appointment.ID, "reschedule", client.StatusUpdateRequest{Reason: "clash"})
	if !errors.Is(err, client.ErrInvalidRequest) {
		t.Fatalf("error = %v, want ErrInvalidRequest", err)
	}

	proposed := nextMonday().AddDate(0, 0, 7)
	moved, err := mentor.UpdateAppointmentStatus(ctx, booked.Appointment.ID, "reschedule", client.StatusUpdateRequest{
		Reason:           "clash",
		ProposedDateTime: &proposed,
	})
	if err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	if moved.Status != models.StatusRescheduled || moved.ProposedDateTime == nil {
		t.Fatalf("reschedule did not record the proposal: %+v", moved)
	}
	if moved.Reason != "clash" {
		t.Errorf("reason = %q, want it recorded", moved.Reason)
	}

	// the rescheduled appointment resolves with a fresh accept
	accepted, err := mentor.UpdateAppointmentStatus(ctx, booked.Appointment.ID, "accept", client.StatusUpdateRequest{})
	if err != nil {
		t.Fatalf("accept after reschedule: %v", err)
	}
	if accepted.Status != models.StatusAccepted {
		t.Errorf("status = %s, want accepted", accepted.Status)
	}
}

func TestRateLimitPerUser(t *testing.T) {
	stub, server := newStub(t)
	stub.SetRateLimit(rate.Every(time.Hour), 2)
	learner := apiClient(t, server, learnerID)
	other := apiClient(t, server, 3)
	ctx := context.Background()

	if _, err := learner.ListNotifications(ctx); err != nil {
		t.Fatalf("first request: %v", err)
	}
	if _, err := learner.ListNotifications(ctx); err != nil {
		t.Fatalf("second request: %v", err)
	}
	if _, err := learner.ListNotifications(ctx); !errors.Is(err, client.ErrRateLimited) {
		t.Fatalf("third request: error = %v, want ErrRateLimited", err)
	}

	// budgets are per user, a different caller is unaffected
	if _, err := other.ListNotifications(ctx); err != nil {
		t.Errorf("other user's request: %v", err)
	}
}

func TestWebsocketPushOnBooking(t *testing.T) {
	stub, server := newStub(t)
	seedMondaySlot(stub)
	mentorToken := mintToken(t, server, mentorID)

	header := http.Header{}
	header.Set("Authorization", "Bearer "+mentorToken)
	wsAddr := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsAddr, header)
	if err != nil {
		t.Fatalf("ws dial: %v", err)
	}
	defer conn.Close()

	// give the hub a moment to register the connection
	time.Sleep(50 * time.Millisecond)

	learner := apiClient(t, server, learnerID)
	if _, err := learner.CreateAppointment(context.Background(), client.CreateAppointmentRequest{
		MentorID:            mentorID,
		AppointmentDateTime: nextMonday(),
		Skill:               "golang",
		DurationMinutes:     60,
	}, ""); err != nil {
		t.Fatalf("booking: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("reading push event: %v", err)
	}

	var ev models.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		t.Fatalf("decoding push event: %v", err)
	}
	if ev.Name != models.EventMentorNewNotification {
		t.Errorf("event = %q, want %q", ev.Name, models.EventMentorNewNotification)
	}
	if ev.Notification == nil || ev.Notification.Type != models.NotificationAppointmentRequested {
		t.Errorf("unexpected push payload: %+v", ev.Notification)
	}
}

func TestMarkReadAndDeleteNotifications(t *testing.T) {
	stub, server := newStub(t)
	seedMondaySlot(stub)
	mentor := apiClient(t, server, mentorID)
	learner := apiClient(t, server, learnerID)
	ctx := context.Background()

	if _, err := learner.CreateAppointment(ctx, client.CreateAppointmentRequest{
		MentorID:            mentorID,
		AppointmentDateTime: nextMonday(),
		Skill:               "golang",
		DurationMinutes:     60,
	}, ""); err != nil {
		t.Fatalf("booking: %v", err)
	}

	notifs, err := mentor.ListNotifications(ctx)
	if err != nil || len(notifs) != 1 {
		t.Fatalf("mentor notifications = %v, err = %v", notifs, err)
	}
	id := notifs[0].ID

	// only the owner can touch it
	if err := learner.MarkNotificationRead(ctx, id); !errors.Is(err, client.ErrNotFound) {
		t.Fatalf("foreign mark: error = %v, want ErrNotFound", err)
	}

	if err := mentor.MarkNotificationRead(ctx, id); err != nil {
		t.Fatalf("MarkNotificationRead: %v", err)
	}
	notifs, _ = mentor.ListNotifications(ctx)
	if !notifs[0].IsRead {
		t.Error("notification should be read after the mark")
	}

	req, _ := http.NewRequest(http.MethodDelete, server.URL+"/api/v1/notifications/"+id, nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, server, mentorID))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	notifs, _ = mentor.ListNotifications(ctx)
	if len(notifs) != 0 {
		t.Errorf("notification should be gone, got %v", notifs)
	}
}
