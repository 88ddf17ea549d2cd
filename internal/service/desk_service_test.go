package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"frontdesk/internal/domain"
	"frontdesk/internal/models"
	"frontdesk/internal/state"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRemoteStore struct {
	mock.Mock
}

func (m *mockRemoteStore) ListRooms(ctx context.Context) ([]models.Room, error) {
	args := m.Called(ctx)
	rooms, _ := args.Get(0).([]models.Room)
	return rooms, args.Error(1)
}

func (m *mockRemoteStore) GetRoom(ctx context.Context, id int64) (*models.Room, error) {
	args := m.Called(ctx, id)
	room, _ := args.Get(0).(*models.Room)
	return room, args.Error(1)
}

func (m *mockRemoteStore) UpsertRoom(ctx context.Context, room models.Room) error {
	return m.Called(ctx, room).Error(0)
}

func (m *mockRemoteStore) UpdateRoomState(ctx context.Context, id int64, status models.RoomStatus, guest string) error {
	return m.Called(ctx, id, status, guest).Error(0)
}

func (m *mockRemoteStore) ListReservations(ctx context.Context) ([]models.Reservation, error) {
	args := m.Called(ctx)
	res, _ := args.Get(0).([]models.Reservation)
	return res, args.Error(1)
}

func (m *mockRemoteStore) CreateReservation(ctx context.Context, res *models.Reservation) (int64, error) {
	args := m.Called(ctx, res)
	id := args.Get(0).(int64)
	if args.Error(1) == nil {
		res.RemoteID = id
	}
	return id, args.Error(1)
}

func (m *mockRemoteStore) UpdateReservation(ctx context.Context, res models.Reservation) error {
	return m.Called(ctx, res).Error(0)
}

func (m *mockRemoteStore) UpdateReservationWithVersion(ctx context.Context, res models.Reservation, version int64) error {
	return m.Called(ctx, res, version).Error(0)
}

func (m *mockRemoteStore) DeleteReservation(ctx context.Context, remoteID int64) error {
	return m.Called(ctx, remoteID).Error(0)
}

func (m *mockRemoteStore) ListGuests(ctx context.Context) ([]models.Guest, error) {
	args := m.Called(ctx)
	guests, _ := args.Get(0).([]models.Guest)
	return guests, args.Error(1)
}

func (m *mockRemoteStore) CreateGuest(ctx context.Context, guest *models.Guest) (int64, error) {
	args := m.Called(ctx, guest)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockRemoteStore) UpdateGuest(ctx context.Context, guest models.Guest) error {
	return m.Called(ctx, guest).Error(0)
}

func (m *mockRemoteStore) ListInvoices(ctx context.Context) ([]models.Invoice, error) {
	args := m.Called(ctx)
	invoices, _ := args.Get(0).([]models.Invoice)
	return invoices, args.Error(1)
}

func (m *mockRemoteStore) CreateInvoice(ctx context.Context, inv *models.Invoice) (int64, error) {
	args := m.Called(ctx, inv)
	id := args.Get(0).(int64)
	if args.Error(1) == nil {
		inv.ID = id
	}
	return id, args.Error(1)
}

func (m *mockRemoteStore) UpdateInvoice(ctx context.Context, inv models.Invoice) error {
	return m.Called(ctx, inv).Error(0)
}

type recordingScheduler struct {
	reasons []string
}

func (r *recordingScheduler) Schedule(reason string) {
	r.reasons = append(r.reasons, reason)
}

func newTestDesk(t *testing.T, rooms []models.Room, reservations []models.Reservation) (*DeskService, *mockRemoteStore, *recordingScheduler, *state.Store) {
	t.Helper()
	logger := zerolog.New(io.Discard)

	st := state.NewStore(&logger)
	_, err := st.Dispatch(state.Action{
		Type:         state.ActionReplaceAll,
		Rooms:        rooms,
		Reservations: reservations,
		FetchedAt:    time.Now(),
	})
	require.NoError(t, err)

	remote := new(mockRemoteStore)
	sched := &recordingScheduler{}
	svc := NewDeskService(st, remote, nil, sched, &logger)
	return svc, remote, sched, st
}

func defaultRooms() []models.Room {
	return []models.Room{
		{ID: 101, Number: "101", Type: "standard", Rate: 100, Status: models.RoomAvailable},
		{ID: 102, Number: "102", Type: "deluxe", Rate: 150, Status: models.RoomAvailable},
		{ID: 103, Number: "103", Type: "standard", Rate: 100, Status: models.RoomOccupied, Guest: "Kofi"},
	}
}

func newReservationInput(roomID int64) models.Reservation {
	return models.Reservation{
		RoomID:    roomID,
		GuestName: "Ama",
		Contact:   "+233200000000",
		CheckIn:   time.Date(2024, 1, 1, 14, 0, 0, 0, time.UTC),
		CheckOut:  time.Date(2024, 1, 4, 11, 0, 0, 0, time.UTC),
		Adults:    2,
	}
}

func TestGetRoomsFilterAndSort(t *testing.T) {
	svc, _, _, _ := newTestDesk(t, defaultRooms(), nil)

	standard := svc.GetRooms(RoomFilter{Type: "standard"}, "number")
	require.Len(t, standard, 2)
	assert.Equal(t, "101", standard[0].Number)

	byRate := svc.GetRooms(RoomFilter{}, "rate")
	require.Len(t, byRate, 3)
	assert.Equal(t, 150.0, byRate[2].Rate)

	occupied := svc.GetRooms(RoomFilter{Status: models.RoomOccupied}, "")
	require.Len(t, occupied, 1)
	assert.Equal(t, "Kofi", occupied[0].Guest)
}

func TestReserveThenCheckIn(t *testing.T) {
	svc, remote, _, st := newTestDesk(t, defaultRooms(), nil)
	ctx := context.Background()

	remote.On("CreateReservation", ctx, mock.AnythingOfType("*models.Reservation")).Return(int64(42), nil).Once()
	remote.On("UpdateRoomState", ctx, int64(101), models.RoomReserved, "").Return(nil).Once()

	res, err := svc.Reserve(ctx, newReservationInput(101))
	require.NoError(t, err)
	require.NotEmpty(t, res.ID)

	snap := st.Snapshot()
	assert.Equal(t, models.RoomReserved, snap.RoomByID(101).Status)
	tracked := snap.ReservationByID(res.ID)
	require.NotNil(t, tracked)
	assert.Equal(t, int64(42), tracked.RemoteID)
	assert.True(t, snap.IsFresh)

	remote.On("CreateGuest", ctx, mock.AnythingOfType("*models.Guest")).Return(int64(7), nil).Once()
	remote.On("DeleteReservation", ctx, int64(42)).Return(nil).Once()
	remote.On("UpdateRoomState", ctx, int64(101), models.RoomOccupied, "Ama").Return(nil).Once()

	require.NoError(t, svc.CheckInReservation(ctx, res.ID))

	snap = st.Snapshot()
	room := snap.RoomByID(101)
	assert.Equal(t, models.RoomOccupied, room.Status)
	assert.Equal(t, "Ama", room.Guest)
	assert.Nil(t, snap.ReservationByID(res.ID))

	remote.AssertExpectations(t)
}

func TestReserveDoubleBookingRejected(t *testing.T) {
	svc, remote, _, _ := newTestDesk(t, defaultRooms(), nil)
	ctx := context.Background()

	remote.On("CreateReservation", ctx, mock.AnythingOfType("*models.Reservation")).Return(int64(1), nil).Once()
	remote.On("UpdateRoomState", ctx, int64(101), models.RoomReserved, "").Return(nil).Once()

	_, err := svc.Reserve(ctx, newReservationInput(101))
	require.NoError(t, err)

	// The second reserve sees the first one's local effect and is rejected
	// before any remote call.
	second := newReservationInput(101)
	second.GuestName = "Esi"
	_, err = svc.Reserve(ctx, second)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	remote.AssertExpectations(t)
}

func TestReserveConcurrentSameRoom(t *testing.T) {
	svc, remote, _, st := newTestDesk(t, defaultRooms(), nil)
	ctx := context.Background()

	// Only the winning reserve reaches the remote store.
	remote.On("CreateReservation", ctx, mock.AnythingOfType("*models.Reservation")).Return(int64(50), nil).Once()
	remote.On("UpdateRoomState", ctx, int64(101), models.RoomReserved, "").Return(nil).Once()

	const callers = 8
	start := make(chan struct{})
	errs := make(chan error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			input := newReservationInput(101)
			input.GuestName = fmt.Sprintf("Guest %d", i)
			<-start
			_, err := svc.Reserve(ctx, input)
			errs <- err
		}(i)
	}
	close(start)
	wg.Wait()
	close(errs)

	var succeeded, rejected int
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
		rejected++
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, callers-1, rejected)

	snap := st.Snapshot()
	assert.Equal(t, models.RoomReserved, snap.RoomByID(101).Status)
	active := 0
	for _, r := range snap.Reservations {
		if r.RoomID == 101 && r.Active() {
			active++
		}
	}
	assert.Equal(t, 1, active, "exactly one active reservation may hold the room")

	remote.AssertExpectations(t)
}

func TestReserveRemoteFailureKeepsOptimisticState(t *testing.T) {
	svc, remote, sched, st := newTestDesk(t, defaultRooms(), nil)
	ctx := context.Background()

	remote.On("CreateReservation", ctx, mock.AnythingOfType("*models.Reservation")).
		Return(int64(0), errors.New("backend unreachable")).Once()

	res, err := svc.Reserve(ctx, newReservationInput(101))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRemoteWriteFailed)

	// No rollback: the optimistic state stays, the snapshot goes stale and
	// a reconciliation fetch is scheduled.
	snap := st.Snapshot()
	assert.Equal(t, models.RoomReserved, snap.RoomByID(101).Status)
	assert.NotNil(t, snap.ReservationByID(res.ID))
	assert.False(t, snap.IsFresh)
	assert.NotEmpty(t, sched.reasons)

	remote.AssertExpectations(t)
}

func TestReserveGuardErrors(t *testing.T) {
	svc, _, _, _ := newTestDesk(t, defaultRooms(), nil)
	ctx := context.Background()

	_, err := svc.Reserve(ctx, newReservationInput(999))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	bad := newReservationInput(101)
	bad.CheckOut = bad.CheckIn
	_, err = svc.Reserve(ctx, bad)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = svc.Reserve(ctx, newReservationInput(103))
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestCheckInRoomWalkIn(t *testing.T) {
	svc, remote, _, st := newTestDesk(t, defaultRooms(), nil)
	ctx := context.Background()

	remote.On("CreateGuest", ctx, mock.AnythingOfType("*models.Guest")).Return(int64(9), nil).Once()
	remote.On("UpdateRoomState", ctx, int64(102), models.RoomOccupied, "Yaw").Return(nil).Once()

	require.NoError(t, svc.CheckInRoom(ctx, 102, "Yaw", "+233240000000"))

	room := st.Snapshot().RoomByID(102)
	assert.Equal(t, models.RoomOccupied, room.Status)
	assert.Equal(t, "Yaw", room.Guest)

	assert.ErrorIs(t, svc.CheckInRoom(ctx, 102, "", ""), domain.ErrInvalidTransition)
	assert.ErrorIs(t, svc.CheckInRoom(ctx, 103, "Ama", ""), domain.ErrInvalidTransition)

	remote.AssertExpectations(t)
}

func TestCheckInReservationPartialFailure(t *testing.T) {
	reservations := []models.Reservation{{
		ID:        "res-local",
		RemoteID:  42,
		RoomID:    101,
		GuestName: "Ama",
		Status:    models.ReservationReserved,
	}}
	rooms := defaultRooms()
	rooms[0].Status = models.RoomReserved

	svc, remote, sched, st := newTestDesk(t, rooms, reservations)
	ctx := context.Background()

	// Guest creation succeeds, the reservation delete fails, the room
	// update succeeds. The error reports the failing step and nothing is
	// compensated.
	remote.On("CreateGuest", ctx, mock.AnythingOfType("*models.Guest")).Return(int64(5), nil).Once()
	remote.On("DeleteReservation", ctx, int64(42)).Return(errors.New("timeout")).Once()
	remote.On("UpdateRoomState", ctx, int64(101), models.RoomOccupied, "Ama").Return(nil).Once()

	err := svc.CheckInReservation(ctx, "res-local")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRemoteWriteFailed)
	assert.Contains(t, err.Error(), "delete reservation")

	snap := st.Snapshot()
	assert.Equal(t, models.RoomOccupied, snap.RoomByID(101).Status)
	assert.False(t, snap.IsFresh)
	assert.NotEmpty(t, sched.reasons)

	remote.AssertExpectations(t)
}

func TestCheckInReservationAlwaysSchedulesReconcile(t *testing.T) {
	svc, remote, sched, _ := newTestDesk(t, defaultRooms(), []models.Reservation{{
		ID: "res-local", RemoteID: 1, RoomID: 101, GuestName: "Ama", Status: models.ReservationReserved,
	}})
	ctx := context.Background()

	remote.On("CreateGuest", ctx, mock.AnythingOfType("*models.Guest")).Return(int64(1), nil).Once()
	remote.On("DeleteReservation", ctx, int64(1)).Return(nil).Once()
	remote.On("UpdateRoomState", ctx, int64(101), models.RoomOccupied, "Ama").Return(nil).Once()

	require.NoError(t, svc.CheckInReservation(ctx, "res-local"))
	assert.Equal(t, []string{"check_in_reservation"}, sched.reasons)

	// Guard rejections still schedule the fetch.
	err := svc.CheckInReservation(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Len(t, sched.reasons, 2)

	remote.AssertExpectations(t)
}

func TestCheckOutWithoutReservation(t *testing.T) {
	svc, remote, _, st := newTestDesk(t, defaultRooms(), nil)
	ctx := context.Background()

	// Room 103 is occupied with no tracked reservation: only the room side
	// runs, no reservation call is made.
	remote.On("UpdateRoomState", ctx, int64(103), models.RoomAvailable, "").Return(nil).Once()

	require.NoError(t, svc.CheckOut(ctx, 103))

	room := st.Snapshot().RoomByID(103)
	assert.Equal(t, models.RoomAvailable, room.Status)
	assert.Empty(t, room.Guest)

	remote.AssertExpectations(t)
	remote.AssertNotCalled(t, "UpdateReservation", mock.Anything, mock.Anything)
}

func TestCheckOutClosesActiveReservation(t *testing.T) {
	rooms := defaultRooms()
	rooms[0].Status = models.RoomOccupied
	rooms[0].Guest = "Ama"
	reservations := []models.Reservation{{
		ID: "res-local", RemoteID: 8, RoomID: 101, GuestName: "Ama", Status: models.ReservationCheckedIn,
	}}

	svc, remote, _, st := newTestDesk(t, rooms, reservations)
	ctx := context.Background()

	remote.On("UpdateReservation", ctx, mock.MatchedBy(func(r models.Reservation) bool {
		return r.RemoteID == 8 && r.Status == models.ReservationCheckedOut
	})).Return(nil).Once()
	remote.On("UpdateRoomState", ctx, int64(101), models.RoomAvailable, "").Return(nil).Once()

	require.NoError(t, svc.CheckOut(ctx, 101))
	assert.Nil(t, st.Snapshot().ReservationByID("res-local"))

	assert.ErrorIs(t, svc.CheckOut(ctx, 102), domain.ErrInvalidTransition)

	remote.AssertExpectations(t)
}

func TestCancelReservationReleasesRoom(t *testing.T) {
	rooms := defaultRooms()
	rooms[0].Status = models.RoomReserved
	reservations := []models.Reservation{{
		ID: "res-local", RemoteID: 3, RoomID: 101, Status: models.ReservationReserved,
	}}

	svc, remote, _, st := newTestDesk(t, rooms, reservations)
	ctx := context.Background()

	remote.On("DeleteReservation", ctx, int64(3)).Return(nil).Once()
	remote.On("UpdateRoomState", ctx, int64(101), models.RoomAvailable, "").Return(nil).Once()

	require.NoError(t, svc.CancelReservation(ctx, "res-local"))

	snap := st.Snapshot()
	assert.Nil(t, snap.ReservationByID("res-local"))
	assert.Equal(t, models.RoomAvailable, snap.RoomByID(101).Status)

	remote.AssertExpectations(t)
}

func TestCancelReservationLeavesOccupiedRoom(t *testing.T) {
	// A stale reservation for an already-occupied room: cancelling it must
	// not release the room out from under the in-house guest.
	reservations := []models.Reservation{{
		ID: "res-local", RemoteID: 3, RoomID: 103, Status: models.ReservationReserved,
	}}

	svc, remote, _, st := newTestDesk(t, defaultRooms(), reservations)
	ctx := context.Background()

	remote.On("DeleteReservation", ctx, int64(3)).Return(nil).Once()

	require.NoError(t, svc.CancelReservation(ctx, "res-local"))
	assert.Equal(t, models.RoomOccupied, st.Snapshot().RoomByID(103).Status)

	remote.AssertExpectations(t)
	remote.AssertNotCalled(t, "UpdateRoomState", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateReservationVersionMismatch(t *testing.T) {
	reservations := []models.Reservation{{
		ID: "res-local", RemoteID: 3, RoomID: 101, GuestName: "Ama",
		CheckIn:  time.Date(2024, 1, 1, 14, 0, 0, 0, time.UTC),
		CheckOut: time.Date(2024, 1, 4, 11, 0, 0, 0, time.UTC),
		Status:   models.ReservationReserved,
		Version:  5,
	}}

	svc, remote, _, _ := newTestDesk(t, defaultRooms(), reservations)
	ctx := context.Background()

	updated := reservations[0]
	updated.GuestName = "Ama A."
	err := svc.UpdateReservation(ctx, updated, 4)
	assert.ErrorIs(t, err, domain.ErrStaleReadConflict)

	remote.AssertNotCalled(t, "UpdateReservationWithVersion", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateReservationRoomChange(t *testing.T) {
	rooms := defaultRooms()
	rooms[0].Status = models.RoomReserved
	reservations := []models.Reservation{{
		ID: "res-local", RemoteID: 3, RoomID: 101, GuestName: "Ama",
		CheckIn:  time.Date(2024, 1, 1, 14, 0, 0, 0, time.UTC),
		CheckOut: time.Date(2024, 1, 4, 11, 0, 0, 0, time.UTC),
		Status:   models.ReservationReserved,
		Version:  2,
	}}

	svc, remote, _, st := newTestDesk(t, rooms, reservations)
	ctx := context.Background()

	remote.On("UpdateReservationWithVersion", ctx, mock.MatchedBy(func(r models.Reservation) bool {
		return r.ID == "res-local" && r.RoomID == 102
	}), int64(2)).Return(nil).Once()
	remote.On("UpdateRoomState", ctx, int64(101), models.RoomAvailable, "").Return(nil).Once()
	remote.On("UpdateRoomState", ctx, int64(102), models.RoomReserved, "").Return(nil).Once()

	updated := reservations[0]
	updated.RoomID = 102
	require.NoError(t, svc.UpdateReservation(ctx, updated, 2))

	snap := st.Snapshot()
	assert.Equal(t, models.RoomAvailable, snap.RoomByID(101).Status)
	assert.Equal(t, models.RoomReserved, snap.RoomByID(102).Status)
	assert.Equal(t, int64(102), snap.ReservationByID("res-local").RoomID)

	remote.AssertExpectations(t)
}

func TestUpdateReservationRemoteVersionConflict(t *testing.T) {
	reservations := []models.Reservation{{
		ID: "res-local", RemoteID: 3, RoomID: 101, GuestName: "Ama",
		CheckIn:  time.Date(2024, 1, 1, 14, 0, 0, 0, time.UTC),
		CheckOut: time.Date(2024, 1, 4, 11, 0, 0, 0, time.UTC),
		Status:   models.ReservationReserved,
		Version:  2,
	}}
	rooms := defaultRooms()
	rooms[0].Status = models.RoomReserved

	svc, remote, sched, st := newTestDesk(t, rooms, reservations)
	ctx := context.Background()

	conflict := fmt.Errorf("%w: version changed", domain.ErrStaleReadConflict)
	remote.On("UpdateReservationWithVersion", ctx, mock.Anything, int64(2)).Return(conflict).Once()

	updated := reservations[0]
	updated.GuestName = "Ama A."
	err := svc.UpdateReservation(ctx, updated, 0)
	assert.ErrorIs(t, err, domain.ErrStaleReadConflict)

	assert.False(t, st.Snapshot().IsFresh)
	assert.NotEmpty(t, sched.reasons)

	remote.AssertExpectations(t)
}

func TestUpdateRoomStatus(t *testing.T) {
	svc, remote, _, st := newTestDesk(t, defaultRooms(), nil)
	ctx := context.Background()

	remote.On("UpdateRoomState", ctx, int64(101), models.RoomMaintenance, "").Return(nil).Once()
	require.NoError(t, svc.UpdateRoomStatus(ctx, 101, models.RoomMaintenance))
	assert.Equal(t, models.RoomMaintenance, st.Snapshot().RoomByID(101).Status)

	assert.ErrorIs(t, svc.UpdateRoomStatus(ctx, 102, models.RoomOccupied), domain.ErrInvalidTransition)
	assert.ErrorIs(t, svc.UpdateRoomStatus(ctx, 999, models.RoomCleaning), domain.ErrNotFound)

	remote.AssertExpectations(t)
}
