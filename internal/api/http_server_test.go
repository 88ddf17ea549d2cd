package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"frontdesk/internal/billing"
	"frontdesk/internal/config"
	"frontdesk/internal/models"
	"frontdesk/internal/service"
	"frontdesk/internal/state"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubRemote is an in-memory backend; failing makes every write error.
type stubRemote struct {
	failing bool
	nextID  int64
}

func (s *stubRemote) err() error {
	if s.failing {
		return errors.New("backend unreachable")
	}
	return nil
}

func (s *stubRemote) ListRooms(ctx context.Context) ([]models.Room, error) { return nil, s.err() }
func (s *stubRemote) GetRoom(ctx context.Context, id int64) (*models.Room, error) {
	return nil, s.err()
}
func (s *stubRemote) UpsertRoom(ctx context.Context, room models.Room) error { return s.err() }
func (s *stubRemote) UpdateRoomState(ctx context.Context, id int64, status models.RoomStatus, guest string) error {
	return s.err()
}
func (s *stubRemote) ListReservations(ctx context.Context) ([]models.Reservation, error) {
	return nil, s.err()
}
func (s *stubRemote) CreateReservation(ctx context.Context, res *models.Reservation) (int64, error) {
	if err := s.err(); err != nil {
		return 0, err
	}
	s.nextID++
	res.RemoteID = s.nextID
	return s.nextID, nil
}
func (s *stubRemote) UpdateReservation(ctx context.Context, res models.Reservation) error {
	return s.err()
}
func (s *stubRemote) UpdateReservationWithVersion(ctx context.Context, res models.Reservation, version int64) error {
	return s.err()
}
func (s *stubRemote) DeleteReservation(ctx context.Context, remoteID int64) error { return s.err() }
func (s *stubRemote) ListGuests(ctx context.Context) ([]models.Guest, error)      { return nil, s.err() }
func (s *stubRemote) CreateGuest(ctx context.Context, guest *models.Guest) (int64, error) {
	if err := s.err(); err != nil {
		return 0, err
	}
	s.nextID++
	guest.ID = s.nextID
	return s.nextID, nil
}
func (s *stubRemote) UpdateGuest(ctx context.Context, guest models.Guest) error { return s.err() }
func (s *stubRemote) ListInvoices(ctx context.Context) ([]models.Invoice, error) {
	return nil, s.err()
}
func (s *stubRemote) CreateInvoice(ctx context.Context, inv *models.Invoice) (int64, error) {
	if err := s.err(); err != nil {
		return 0, err
	}
	s.nextID++
	inv.ID = s.nextID
	return s.nextID, nil
}
func (s *stubRemote) UpdateInvoice(ctx context.Context, inv models.Invoice) error { return s.err() }

type nopScheduler struct{}

func (nopScheduler) Schedule(string) {}

func newTestServer(t *testing.T) (*HTTPServer, *stubRemote) {
	t.Helper()
	logger := zerolog.New(io.Discard)

	st := state.NewStore(&logger)
	_, err := st.Dispatch(state.Action{
		Type: state.ActionReplaceAll,
		Rooms: []models.Room{
			{ID: 101, Number: "101", Type: "standard", Rate: 100, Status: models.RoomAvailable},
			{ID: 102, Number: "102", Type: "deluxe", Rate: 150, Status: models.RoomOccupied, Guest: "Kofi"},
		},
		FetchedAt: time.Now(),
	})
	require.NoError(t, err)

	remote := &stubRemote{}
	desk := service.NewDeskService(st, remote, nil, nopScheduler{}, &logger)
	invoices := service.NewInvoiceService(remote, billing.NewRevenueTracker(nil), nopScheduler{}, &logger)

	cfg := config.APIConfig{Enabled: true, Port: 0, RateLimit: config.APIRateLimitConfig{RPS: 1000, Burst: 1000}}
	return NewHTTPServer(cfg, desk, invoices, &logger), remote
}

func doJSON(t *testing.T, h http.Handler, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "192.0.2.1:1234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec, env
}

func TestListAndGetRooms(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	rec, env := doJSON(t, h, http.MethodGet, "/api/v1/rooms", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)

	rec, env = doJSON(t, h, http.MethodGet, "/api/v1/rooms?status=occupied", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rooms, ok := env.Data.([]interface{})
	require.True(t, ok)
	assert.Len(t, rooms, 1)

	rec, _ = doJSON(t, h, http.MethodGet, "/api/v1/rooms/101", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env = doJSON(t, h, http.MethodGet, "/api/v1/rooms/999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, env.Success)
	assert.NotEmpty(t, env.Error)

	rec, _ = doJSON(t, h, http.MethodGet, "/api/v1/rooms/not-a-number", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReserveFlow(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	body := map[string]interface{}{
		"room_id":    101,
		"guest_name": "Ama",
		"check_in":   "2024-01-01T14:00:00Z",
		"check_out":  "2024-01-04T11:00:00Z",
		"adults":     2,
	}
	rec, env := doJSON(t, h, http.MethodPost, "/api/v1/reservations", body)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, env.Success)

	created, ok := env.Data.(map[string]interface{})
	require.True(t, ok)
	resID, _ := created["id"].(string)
	require.NotEmpty(t, resID)

	// The room is no longer reservable.
	rec, _ = doJSON(t, h, http.MethodPost, "/api/v1/reservations", body)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = doJSON(t, h, http.MethodGet, "/api/v1/rooms/101/reservation", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env = doJSON(t, h, http.MethodPost, "/api/v1/reservations/"+resID+"/checkin", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)

	rec, _ = doJSON(t, h, http.MethodPost, "/api/v1/rooms/101/checkout", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReserveRemoteFailureReturnsBadGatewayWithData(t *testing.T) {
	srv, remote := newTestServer(t)
	h := srv.Handler()
	remote.failing = true

	body := map[string]interface{}{
		"room_id":    101,
		"guest_name": "Ama",
		"check_in":   "2024-01-01T14:00:00Z",
		"check_out":  "2024-01-04T11:00:00Z",
	}
	rec, env := doJSON(t, h, http.MethodPost, "/api/v1/reservations", body)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.False(t, env.Success)
	assert.NotEmpty(t, env.Error)

	// The optimistic reservation still travels in data.
	created, ok := env.Data.(map[string]interface{})
	require.True(t, ok)
	assert.NotEmpty(t, created["id"])
}

func TestRoomStatusEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	rec, _ := doJSON(t, h, http.MethodPost, "/api/v1/rooms/101/status", map[string]string{"status": "maintenance"})
	assert.Equal(t, http.StatusOK, rec.Code)

	// Occupied is not settable directly.
	rec, env := doJSON(t, h, http.MethodPost, "/api/v1/rooms/101/status", map[string]string{"status": "occupied"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.False(t, env.Success)

	rec, _ = doJSON(t, h, http.MethodPost, "/api/v1/rooms/101/checkin", map[string]string{"guest_name": "Esi"})
	assert.Equal(t, http.StatusConflict, rec.Code, "maintenance room cannot be checked in")
}

func TestInvoiceEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	rec, env := doJSON(t, h, http.MethodPost, "/api/v1/invoices", map[string]interface{}{
		"guest_name": "Ama",
		"room_id":    101,
		"check_in":   "2024-01-01T14:00:00Z",
		"check_out":  "2024-01-04T11:00:00Z",
		"room_rate":  100,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	inv, ok := env.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 300.0, inv["total_amount"])

	rec, env = doJSON(t, h, http.MethodPost, "/api/v1/invoices/1/services", map[string]interface{}{
		"name": "laundry", "price": 50,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	inv, _ = env.Data.(map[string]interface{})
	assert.Equal(t, 350.0, inv["total_amount"])

	rec, _ = doJSON(t, h, http.MethodPost, "/api/v1/invoices/1/status", map[string]string{"status": "paid"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env = doJSON(t, h, http.MethodGet, "/api/v1/revenue", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	revenue, _ := env.Data.(map[string]interface{})
	assert.Equal(t, 350.0, revenue["revenue"])

	// Immutable once paid.
	rec, _ = doJSON(t, h, http.MethodPut, "/api/v1/invoices/1/rate", map[string]float64{"rate": 120})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = doJSON(t, h, http.MethodPost, "/api/v1/invoices/999/status", map[string]string{"status": "paid"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateRevenueStats(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	_, env := doJSON(t, h, http.MethodPost, "/api/v1/revenue", map[string]interface{}{"amount": 50})
	data, _ := env.Data.(map[string]interface{})
	assert.Equal(t, 50.0, data["revenue"])

	_, env = doJSON(t, h, http.MethodPost, "/api/v1/revenue", map[string]interface{}{"amount": 10, "reset": true})
	data, _ = env.Data.(map[string]interface{})
	assert.Equal(t, 10.0, data["revenue"])
}

func TestRateLimit(t *testing.T) {
	logger := zerolog.New(io.Discard)
	st := state.NewStore(&logger)
	remote := &stubRemote{}
	desk := service.NewDeskService(st, remote, nil, nopScheduler{}, &logger)
	invoices := service.NewInvoiceService(remote, billing.NewRevenueTracker(nil), nopScheduler{}, &logger)

	cfg := config.APIConfig{Enabled: true, RateLimit: config.APIRateLimitConfig{RPS: 1, Burst: 2}}
	srv := NewHTTPServer(cfg, desk, invoices, &logger)
	h := srv.Handler()

	codes := make([]int, 0, 4)
	for i := 0; i < 4; i++ {
		rec, _ := doJSON(t, h, http.MethodGet, "/api/v1/rooms", nil)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, http.StatusOK, codes[0])
	assert.Equal(t, http.StatusOK, codes[1])
	assert.Equal(t, http.StatusTooManyRequests, codes[2])
	assert.Equal(t, http.StatusTooManyRequests, codes[3])
}

func TestBadPayload(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations", bytes.NewBufferString("{not json"))
	req.RemoteAddr = "192.0.2.1:1234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
