package booking

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/parkease/parkease-api/internal/models"
)

type MockSpotStore struct {
	mock.Mock
}

func (m *MockSpotStore) GetSpot(id uuid.UUID) (*models.ParkingSpot, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ParkingSpot), args.Error(1)
}

type MockStore struct {
	mock.Mock
}

func (m *MockStore) CreateReserving(b *models.Booking) error {
	args := m.Called(b)
	return args.Error(0)
}

func (m *MockStore) GetBooking(id uuid.UUID) (*models.Booking, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *MockStore) Update(b *models.Booking) error {
	args := m.Called(b)
	return args.Error(0)
}

func (m *MockStore) UpdateReleasing(b *models.Booking) error {
	args := m.Called(b)
	return args.Error(0)
}

func (m *MockStore) Delete(b *models.Booking, freeSpot bool) error {
	args := m.Called(b, freeSpot)
	return args.Error(0)
}

func (m *MockStore) UpdateRescheduling(b *models.Booking) error {
	args := m.Called(b)
	return args.Error(0)
}

func (m *MockStore) List(f ListFilter) ([]models.Booking, int64, error) {
	args := m.Called(f)
	return args.Get(0).([]models.Booking), args.Get(1).(int64), args.Error(2)
}

func (m *MockStore) ExpireOverdue(now time.Time) ([]models.Booking, error) {
	args := m.Called(now)
	return args.Get(0).([]models.Booking), args.Error(1)
}

type MockLocker struct {
	mock.Mock
}

func (m *MockLocker) Acquire(key string, ttl time.Duration) (bool, error) {
	args := m.Called(key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockLocker) Release(key string) error {
	args := m.Called(key)
	return args.Error(0)
}

func availableSpot(rate float64) *models.ParkingSpot {
	return &models.ParkingSpot{
		ID:         uuid.New(),
		SpotNumber: "A-01",
		Status:     models.SpotStatusAvailable,
		HourlyRate: rate,
	}
}

func at(hour, min int) time.Time {
	return time.Date(2026, 3, 10, hour, min, 0, 0, time.UTC)
}

func userRequester() Requester {
	return Requester{ID: uuid.New(), Role: models.RoleUser}
}

func validCreateInput(spotID uuid.UUID) CreateInput {
	return CreateInput{
		SpotID:    spotID,
		StartTime: at(9, 0),
		EndTime:   at(11, 0),
		Vehicle:   models.VehicleInfo{LicensePlate: "BA 1 PA 1234"},
	}
}

func TestCreateComputesDurationAndCost(t *testing.T) {
	spot := availableSpot(10)
	spots := new(MockSpotStore)
	store := new(MockStore)
	spots.On("GetSpot", spot.ID).Return(spot, nil)
	store.On("CreateReserving", mock.AnythingOfType("*models.Booking")).Return(nil)

	svc := NewService(spots, store)
	requester := userRequester()

	b, err := svc.Create(requester, validCreateInput(spot.ID))
	require.NoError(t, err)

	assert.Equal(t, 2.0, b.DurationHours)
	assert.Equal(t, 20.0, b.TotalCost)
	assert.Equal(t, models.BookingStatusActive, b.Status)
	assert.Equal(t, models.PaymentStatusPending, b.PaymentStatus)
	assert.Equal(t, requester.ID, b.UserID)
	store.AssertExpectations(t)
}

func TestCreateRejectsBadIntervals(t *testing.T) {
	spot := availableSpot(10)

	cases := []struct {
		name  string
		start time.Time
		end   time.Time
	}{
		{"end before start", at(11, 0), at(9, 0)},
		{"end equals start", at(9, 0), at(9, 0)},
		{"below 30 minutes", at(9, 0), at(9, 15)},
		{"above 24 hours", at(9, 0), at(9, 0).Add(30 * time.Hour)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			spots := new(MockSpotStore)
			store := new(MockStore)
			svc := NewService(spots, store)

			input := validCreateInput(spot.ID)
			input.StartTime = tc.start
			input.EndTime = tc.end

			_, err := svc.Create(userRequester(), input)
			var verr *ValidationError
			assert.ErrorAs(t, err, &verr)
			store.AssertNotCalled(t, "CreateReserving", mock.Anything)
		})
	}
}

func TestCreateRequiresLicensePlate(t *testing.T) {
	spots := new(MockSpotStore)
	store := new(MockStore)
	svc := NewService(spots, store)

	input := validCreateInput(uuid.New())
	input.Vehicle.LicensePlate = ""

	_, err := svc.Create(userRequester(), input)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields[0], "license_plate")
	spots.AssertNotCalled(t, "GetSpot", mock.Anything)
}

func TestCreateRejectsUnavailableSpot(t *testing.T) {
	for _, status := range []models.SpotStatus{
		models.SpotStatusOccupied,
		models.SpotStatusMaintenance,
	} {
		spot := availableSpot(10)
		spot.Status = status

		spots := new(MockSpotStore)
		store := new(MockStore)
		spots.On("GetSpot", spot.ID).Return(spot, nil)

		svc := NewService(spots, store)
		_, err := svc.Create(userRequester(), validCreateInput(spot.ID))
		assert.ErrorIs(t, err, ErrSpotUnavailable, "status %s", status)
		store.AssertNotCalled(t, "CreateReserving", mock.Anything)
	}
}

func TestCreateAcceptsReservedSpot(t *testing.T) {
	// A reserved spot already carries a booking for some interval;
	// further bookings are allowed as long as the intervals do not
	// overlap, so the status alone must not turn the request away.
	spot := availableSpot(10)
	spot.Status = models.SpotStatusReserved

	spots := new(MockSpotStore)
	store := new(MockStore)
	spots.On("GetSpot", spot.ID).Return(spot, nil)
	store.On("CreateReserving", mock.Anything).Return(nil)

	svc := NewService(spots, store)
	_, err := svc.Create(userRequester(), validCreateInput(spot.ID))
	require.NoError(t, err)
	store.AssertExpectations(t)
}

func TestCreateSpotNotFound(t *testing.T) {
	spots := new(MockSpotStore)
	store := new(MockStore)
	spotID := uuid.New()
	spots.On("GetSpot", spotID).Return(nil, ErrSpotNotFound)

	svc := NewService(spots, store)
	_, err := svc.Create(userRequester(), validCreateInput(spotID))
	assert.ErrorIs(t, err, ErrSpotNotFound)
}

func TestCreatePropagatesConflict(t *testing.T) {
	spot := availableSpot(10)
	spots := new(MockSpotStore)
	store := new(MockStore)
	spots.On("GetSpot", spot.ID).Return(spot, nil)
	store.On("CreateReserving", mock.Anything).Return(ErrConflict)

	svc := NewService(spots, store)
	_, err := svc.Create(userRequester(), validCreateInput(spot.ID))
	assert.ErrorIs(t, err, ErrConflict)
}

func TestCreateSerializesOnSpotLock(t *testing.T) {
	spot := availableSpot(10)
	spots := new(MockSpotStore)
	store := new(MockStore)
	locker := new(MockLocker)
	spots.On("GetSpot", spot.ID).Return(spot, nil)
	store.On("CreateReserving", mock.Anything).Return(nil).Once()

	key := spotLockKey(spot.ID)
	locker.On("Acquire", key, mock.Anything).Return(true, nil).Once()
	locker.On("Acquire", key, mock.Anything).Return(false, nil).Once()
	locker.On("Release", key).Return(nil).Once()

	svc := NewService(spots, store, WithLocker(locker))

	// First request wins the lock and books; the identical second
	// request is turned away without touching the store.
	_, err := svc.Create(userRequester(), validCreateInput(spot.ID))
	require.NoError(t, err)

	_, err = svc.Create(userRequester(), validCreateInput(spot.ID))
	assert.ErrorIs(t, err, ErrSpotBusy)

	store.AssertNumberOfCalls(t, "CreateReserving", 1)
	locker.AssertExpectations(t)
}

func TestUpdateRecomputesCostOnTimeChange(t *testing.T) {
	owner := userRequester()
	spot := availableSpot(15)
	existing := &models.Booking{
		ID:            uuid.New(),
		UserID:        owner.ID,
		SpotID:        spot.ID,
		StartTime:     at(9, 0),
		EndTime:       at(11, 0),
		DurationHours: 2,
		TotalCost:     30,
		Status:        models.BookingStatusActive,
		Vehicle:       models.VehicleInfo{LicensePlate: "BA 1 PA 1234", Color: "red"},
	}

	spots := new(MockSpotStore)
	store := new(MockStore)
	store.On("GetBooking", existing.ID).Return(existing, nil)
	newEnd := at(12, 0)
	spots.On("GetSpot", spot.ID).Return(spot, nil)
	store.On("UpdateRescheduling", mock.Anything).Return(nil)

	svc := NewService(spots, store)
	b, err := svc.Update(owner, existing.ID, UpdateInput{EndTime: &newEnd})
	require.NoError(t, err)

	assert.Equal(t, 3.0, b.DurationHours)
	assert.Equal(t, 45.0, b.TotalCost)
	// Time changes always go through the conflict-checking save.
	store.AssertNotCalled(t, "Update", mock.Anything)
}

func TestUpdateMergesVehicleShallowly(t *testing.T) {
	owner := userRequester()
	existing := &models.Booking{
		ID:      uuid.New(),
		UserID:  owner.ID,
		SpotID:  uuid.New(),
		Status:  models.BookingStatusActive,
		Vehicle: models.VehicleInfo{LicensePlate: "BA 1 PA 1234", Make: "Toyota", Color: "red"},
	}

	spots := new(MockSpotStore)
	store := new(MockStore)
	store.On("GetBooking", existing.ID).Return(existing, nil)
	store.On("Update", mock.Anything).Return(nil)

	svc := NewService(spots, store)
	blue := "blue"
	b, err := svc.Update(owner, existing.ID, UpdateInput{Vehicle: &VehiclePatch{Color: &blue}})
	require.NoError(t, err)

	assert.Equal(t, "blue", b.Vehicle.Color)
	assert.Equal(t, "Toyota", b.Vehicle.Make)
	assert.Equal(t, "BA 1 PA 1234", b.Vehicle.LicensePlate)
}

func TestUpdateRejectsConflictingTimes(t *testing.T) {
	owner := userRequester()
	existing := &models.Booking{
		ID:        uuid.New(),
		UserID:    owner.ID,
		SpotID:    uuid.New(),
		StartTime: at(9, 0),
		EndTime:   at(11, 0),
		Status:    models.BookingStatusActive,
		Vehicle:   models.VehicleInfo{LicensePlate: "BA 1 PA 1234"},
	}

	spots := new(MockSpotStore)
	store := new(MockStore)
	store.On("GetBooking", existing.ID).Return(existing, nil)
	spots.On("GetSpot", existing.SpotID).Return(availableSpot(10), nil)
	store.On("UpdateRescheduling", mock.Anything).Return(ErrConflict)

	svc := NewService(spots, store)
	newEnd := at(13, 0)
	_, err := svc.Update(owner, existing.ID, UpdateInput{EndTime: &newEnd})
	assert.ErrorIs(t, err, ErrConflict)
	store.AssertNotCalled(t, "Update", mock.Anything)
}

func TestUpdateForbiddenForStranger(t *testing.T) {
	existing := &models.Booking{
		ID:     uuid.New(),
		UserID: uuid.New(),
		Status: models.BookingStatusActive,
	}

	spots := new(MockSpotStore)
	store := new(MockStore)
	store.On("GetBooking", existing.ID).Return(existing, nil)

	svc := NewService(spots, store)
	_, err := svc.Update(userRequester(), existing.ID, UpdateInput{})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestUpdateRejectsTerminalBooking(t *testing.T) {
	owner := userRequester()
	for _, status := range []models.BookingStatus{
		models.BookingStatusCompleted,
		models.BookingStatusCancelled,
		models.BookingStatusExpired,
	} {
		existing := &models.Booking{ID: uuid.New(), UserID: owner.ID, Status: status}

		spots := new(MockSpotStore)
		store := new(MockStore)
		store.On("GetBooking", existing.ID).Return(existing, nil)

		svc := NewService(spots, store)
		_, err := svc.Update(owner, existing.ID, UpdateInput{})
		assert.ErrorIs(t, err, ErrNotActive, "status %s", status)
	}
}

func TestCancelReleasesSpot(t *testing.T) {
	owner := userRequester()
	existing := &models.Booking{
		ID:            uuid.New(),
		UserID:        owner.ID,
		SpotID:        uuid.New(),
		Status:        models.BookingStatusActive,
		PaymentStatus: models.PaymentStatusPending,
	}

	spots := new(MockSpotStore)
	store := new(MockStore)
	store.On("GetBooking", existing.ID).Return(existing, nil)
	store.On("UpdateReleasing", mock.Anything).Return(nil)

	svc := NewService(spots, store)
	b, err := svc.Cancel(owner, existing.ID)
	require.NoError(t, err)

	assert.Equal(t, models.BookingStatusCancelled, b.Status)
	// Cancelling never touches the payment status.
	assert.Equal(t, models.PaymentStatusPending, b.PaymentStatus)
	store.AssertCalled(t, "UpdateReleasing", mock.Anything)
}

func TestCompleteMarksPaidAndReleasesSpot(t *testing.T) {
	owner := userRequester()
	existing := &models.Booking{
		ID:            uuid.New(),
		UserID:        owner.ID,
		SpotID:        uuid.New(),
		Status:        models.BookingStatusActive,
		PaymentStatus: models.PaymentStatusPending,
	}

	spots := new(MockSpotStore)
	store := new(MockStore)
	store.On("GetBooking", existing.ID).Return(existing, nil)
	store.On("UpdateReleasing", mock.Anything).Return(nil)

	svc := NewService(spots, store)
	b, err := svc.Complete(owner, existing.ID)
	require.NoError(t, err)

	assert.Equal(t, models.BookingStatusCompleted, b.Status)
	assert.Equal(t, models.PaymentStatusPaid, b.PaymentStatus)
}

func TestFinishRejectsNonActiveBooking(t *testing.T) {
	owner := userRequester()
	existing := &models.Booking{
		ID:     uuid.New(),
		UserID: owner.ID,
		Status: models.BookingStatusCompleted,
	}

	spots := new(MockSpotStore)
	store := new(MockStore)
	store.On("GetBooking", existing.ID).Return(existing, nil)

	svc := NewService(spots, store)

	_, err := svc.Cancel(owner, existing.ID)
	assert.ErrorIs(t, err, ErrNotActive)

	_, err = svc.Complete(owner, existing.ID)
	assert.ErrorIs(t, err, ErrNotActive)

	store.AssertNotCalled(t, "UpdateReleasing", mock.Anything)
}

func TestAdminCanFinishAnyBooking(t *testing.T) {
	existing := &models.Booking{
		ID:     uuid.New(),
		UserID: uuid.New(),
		Status: models.BookingStatusActive,
	}

	spots := new(MockSpotStore)
	store := new(MockStore)
	store.On("GetBooking", existing.ID).Return(existing, nil)
	store.On("UpdateReleasing", mock.Anything).Return(nil)

	svc := NewService(spots, store)
	admin := Requester{ID: uuid.New(), Role: models.RoleAdmin}
	_, err := svc.Cancel(admin, existing.ID)
	assert.NoError(t, err)
}

func TestDeleteFreesSpotForActiveBooking(t *testing.T) {
	active := &models.Booking{ID: uuid.New(), SpotID: uuid.New(), Status: models.BookingStatusActive}
	done := &models.Booking{ID: uuid.New(), SpotID: uuid.New(), Status: models.BookingStatusCompleted}

	spots := new(MockSpotStore)
	store := new(MockStore)
	store.On("GetBooking", active.ID).Return(active, nil)
	store.On("GetBooking", done.ID).Return(done, nil)
	store.On("Delete", active, true).Return(nil)
	store.On("Delete", done, false).Return(nil)

	svc := NewService(spots, store)
	require.NoError(t, svc.Delete(active.ID))
	require.NoError(t, svc.Delete(done.ID))
	store.AssertExpectations(t)
}

func TestListScopesNonAdminToOwnBookings(t *testing.T) {
	spots := new(MockSpotStore)
	store := new(MockStore)
	requester := userRequester()

	store.On("List", mock.MatchedBy(func(f ListFilter) bool {
		return f.UserID != nil && *f.UserID == requester.ID && f.Page == 1 && f.Limit == 10
	})).Return([]models.Booking{}, int64(0), nil)

	svc := NewService(spots, store)
	_, _, err := svc.List(requester, "", 0, 0)
	require.NoError(t, err)
	store.AssertExpectations(t)
}

func TestListAdminSeesAll(t *testing.T) {
	spots := new(MockSpotStore)
	store := new(MockStore)
	admin := Requester{ID: uuid.New(), Role: models.RoleAdmin}

	store.On("List", mock.MatchedBy(func(f ListFilter) bool {
		return f.UserID == nil && f.Status == models.BookingStatusActive
	})).Return([]models.Booking{}, int64(0), nil)

	svc := NewService(spots, store)
	_, _, err := svc.List(admin, models.BookingStatusActive, 1, 10)
	require.NoError(t, err)
	store.AssertExpectations(t)
}

func TestGetForbiddenForStranger(t *testing.T) {
	existing := &models.Booking{ID: uuid.New(), UserID: uuid.New()}

	spots := new(MockSpotStore)
	store := new(MockStore)
	store.On("GetBooking", existing.ID).Return(existing, nil)

	svc := NewService(spots, store)
	_, err := svc.Get(userRequester(), existing.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestOverlaps(t *testing.T) {
	cases := []struct {
		name    string
		aStart  time.Time
		aEnd    time.Time
		bStart  time.Time
		bEnd    time.Time
		overlap bool
	}{
		{"identical", at(9, 0), at(11, 0), at(9, 0), at(11, 0), true},
		{"contained", at(9, 0), at(11, 0), at(9, 30), at(10, 30), true},
		{"partial tail", at(10, 0), at(12, 0), at(9, 0), at(11, 0), true},
		{"touching end to start", at(11, 0), at(12, 0), at(9, 0), at(11, 0), false},
		{"touching start to end", at(8, 0), at(9, 0), at(9, 0), at(11, 0), false},
		{"disjoint", at(13, 0), at(14, 0), at(9, 0), at(11, 0), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.overlap, Overlaps(tc.aStart, tc.aEnd, tc.bStart, tc.bEnd))
		})
	}
}

func TestCanAccess(t *testing.T) {
	ownerID := uuid.New()

	assert.True(t, CanAccess(Requester{ID: ownerID, Role: models.RoleUser}, ownerID))
	assert.True(t, CanAccess(Requester{ID: uuid.New(), Role: models.RoleAdmin}, ownerID))
	assert.False(t, CanAccess(Requester{ID: uuid.New(), Role: models.RoleUser}, ownerID))
}

// memoryStore backs the sequence tests with the same semantics the
// database store enforces: bookable-status check, half-open overlap
// conflicts, and the spot flipping to reserved on create.
type memoryStore struct {
	spot     *models.ParkingSpot
	bookings []*models.Booking
}

func (m *memoryStore) GetSpot(id uuid.UUID) (*models.ParkingSpot, error) {
	if id != m.spot.ID {
		return nil, ErrSpotNotFound
	}
	return m.spot, nil
}

func (m *memoryStore) conflicts(spotID uuid.UUID, start, end time.Time, exclude uuid.UUID) bool {
	for _, e := range m.bookings {
		if e.SpotID != spotID || e.ID == exclude || e.Status != models.BookingStatusActive {
			continue
		}
		if Overlaps(e.StartTime, e.EndTime, start, end) {
			return true
		}
	}
	return false
}

func (m *memoryStore) CreateReserving(b *models.Booking) error {
	if b.SpotID != m.spot.ID {
		return ErrSpotNotFound
	}
	if !m.spot.Status.Bookable() {
		return ErrSpotUnavailable
	}
	if m.conflicts(b.SpotID, b.StartTime, b.EndTime, uuid.Nil) {
		return ErrConflict
	}
	b.ID = uuid.New()
	m.bookings = append(m.bookings, b)
	m.spot.Status = models.SpotStatusReserved
	return nil
}

func (m *memoryStore) GetBooking(id uuid.UUID) (*models.Booking, error) {
	for _, b := range m.bookings {
		if b.ID == id {
			return b, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memoryStore) Update(b *models.Booking) error { return nil }

func (m *memoryStore) UpdateRescheduling(b *models.Booking) error {
	if m.conflicts(b.SpotID, b.StartTime, b.EndTime, b.ID) {
		return ErrConflict
	}
	return nil
}

func (m *memoryStore) UpdateReleasing(b *models.Booking) error {
	m.spot.Status = models.SpotStatusAvailable
	return nil
}

func (m *memoryStore) Delete(b *models.Booking, freeSpot bool) error { return nil }

func (m *memoryStore) List(f ListFilter) ([]models.Booking, int64, error) {
	return nil, 0, nil
}

func (m *memoryStore) ExpireOverdue(now time.Time) ([]models.Booking, error) {
	return nil, nil
}

func TestCreateSequenceOnSameSpot(t *testing.T) {
	store := &memoryStore{spot: availableSpot(10)}
	svc := NewService(store, store)
	requester := userRequester()

	book := func(startH, endH int) (*models.Booking, error) {
		return svc.Create(requester, CreateInput{
			SpotID:    store.spot.ID,
			StartTime: at(startH, 0),
			EndTime:   at(endH, 0),
			Vehicle:   models.VehicleInfo{LicensePlate: "BA 1 PA 1234"},
		})
	}

	first, err := book(9, 11)
	require.NoError(t, err)
	assert.Equal(t, models.SpotStatusReserved, store.spot.Status)

	// The spot is now reserved, but only the interval decides:
	// an overlapping request conflicts, a touching one goes through.
	_, err = book(10, 12)
	assert.ErrorIs(t, err, ErrConflict)

	second, err := book(11, 12)
	require.NoError(t, err)
	assert.Equal(t, 1.0, second.DurationHours)

	// Rescheduling the later booking onto the earlier one conflicts.
	newStart := at(10, 30)
	_, err = svc.Update(requester, second.ID, UpdateInput{StartTime: &newStart})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = svc.Cancel(requester, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SpotStatusAvailable, store.spot.Status)
}

func TestExpireOverdueDelegatesToStore(t *testing.T) {
	spots := new(MockSpotStore)
	store := new(MockStore)
	now := at(12, 0)
	expired := []models.Booking{{ID: uuid.New(), Status: models.BookingStatusExpired}}
	store.On("ExpireOverdue", now).Return(expired, nil)

	svc := NewService(spots, store)
	got, err := svc.ExpireOverdue(now)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, models.BookingStatusExpired, got[0].Status)
}
