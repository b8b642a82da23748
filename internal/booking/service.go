package booking

import (
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/parkease/parkease-api/internal/models"
)

const (
	MinDurationHours = 0.5
	MaxDurationHours = 24.0

	spotLockTTL = 30 * time.Second
)

// DurationHours is the booked interval expressed in fractional hours.
func DurationHours(start, end time.Time) float64 {
	return end.Sub(start).Hours()
}

// Cost is the booking price at the spot's hourly rate.
func Cost(hours, hourlyRate float64) float64 {
	return hours * hourlyRate
}

// Overlaps applies the half-open interval test: touching boundaries do
// not conflict.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

type SpotStore interface {
	GetSpot(id uuid.UUID) (*models.ParkingSpot, error)
}

type ListFilter struct {
	UserID *uuid.UUID
	Status models.BookingStatus
	Page   int
	Limit  int
}

type Store interface {
	// CreateReserving inserts the booking and flips the spot to
	// reserved in one transaction, re-checking availability and
	// conflicts under a row lock on the spot.
	CreateReserving(b *models.Booking) error
	GetBooking(id uuid.UUID) (*models.Booking, error)
	Update(b *models.Booking) error
	// UpdateRescheduling saves a booking whose interval changed,
	// re-checking conflicts against other bookings under a row lock
	// on the spot, like CreateReserving does for new bookings.
	UpdateRescheduling(b *models.Booking) error
	// UpdateReleasing saves the booking and frees its spot atomically.
	UpdateReleasing(b *models.Booking) error
	Delete(b *models.Booking, freeSpot bool) error
	List(f ListFilter) ([]models.Booking, int64, error)
	ExpireOverdue(now time.Time) ([]models.Booking, error)
}

// Locker serializes booking creation per spot across processes. It is
// an optional fast-path guard; the store transaction is what actually
// guarantees at most one winner.
type Locker interface {
	Acquire(key string, ttl time.Duration) (bool, error)
	Release(key string) error
}

type Service struct {
	spots  SpotStore
	store  Store
	locker Locker
}

type Option func(*Service)

func WithLocker(l Locker) Option {
	return func(s *Service) { s.locker = l }
}

func NewService(spots SpotStore, store Store, opts ...Option) *Service {
	s := &Service{spots: spots, store: store}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type CreateInput struct {
	SpotID    uuid.UUID
	StartTime time.Time
	EndTime   time.Time
	Vehicle   models.VehicleInfo
	Notes     string
}

func validateInterval(start, end time.Time) *ValidationError {
	verr := &ValidationError{}
	if !end.After(start) {
		verr.add("end_time must be after start_time")
		return verr
	}
	hours := DurationHours(start, end)
	if hours < MinDurationHours {
		verr.add("booking must be at least 30 minutes")
	}
	if hours > MaxDurationHours {
		verr.add("booking cannot exceed 24 hours")
	}
	return verr
}

func (s *Service) Create(requester Requester, input CreateInput) (*models.Booking, error) {
	verr := validateInterval(input.StartTime, input.EndTime)
	if input.Vehicle.LicensePlate == "" {
		verr.add("vehicle license_plate is required")
	}
	if err := verr.orNil(); err != nil {
		return nil, err
	}

	spot, err := s.spots.GetSpot(input.SpotID)
	if err != nil {
		return nil, err
	}
	if !spot.Status.Bookable() {
		return nil, ErrSpotUnavailable
	}

	if s.locker != nil {
		key := spotLockKey(input.SpotID)
		ok, err := s.locker.Acquire(key, spotLockTTL)
		if err != nil {
			log.Printf("spot lock unavailable, relying on store transaction: %v", err)
		} else if !ok {
			return nil, ErrSpotBusy
		} else {
			defer func() {
				if err := s.locker.Release(key); err != nil {
					log.Printf("failed to release spot lock %s: %v", key, err)
				}
			}()
		}
	}

	hours := DurationHours(input.StartTime, input.EndTime)
	b := &models.Booking{
		UserID:        requester.ID,
		SpotID:        input.SpotID,
		StartTime:     input.StartTime,
		EndTime:       input.EndTime,
		DurationHours: hours,
		TotalCost:     Cost(hours, spot.HourlyRate),
		Status:        models.BookingStatusActive,
		PaymentStatus: models.PaymentStatusPending,
		Vehicle:       input.Vehicle,
		Notes:         input.Notes,
	}
	if err := s.store.CreateReserving(b); err != nil {
		return nil, err
	}
	return b, nil
}

// VehiclePatch carries only the vehicle fields the caller wants to
// change; nil fields keep their current value.
type VehiclePatch struct {
	LicensePlate *string
	Make         *string
	Model        *string
	Color        *string
}

func (p *VehiclePatch) apply(v *models.VehicleInfo) {
	if p == nil {
		return
	}
	if p.LicensePlate != nil {
		v.LicensePlate = *p.LicensePlate
	}
	if p.Make != nil {
		v.Make = *p.Make
	}
	if p.Model != nil {
		v.Model = *p.Model
	}
	if p.Color != nil {
		v.Color = *p.Color
	}
}

type UpdateInput struct {
	StartTime *time.Time
	EndTime   *time.Time
	Vehicle   *VehiclePatch
	Notes     *string
}

func (s *Service) Update(requester Requester, id uuid.UUID, input UpdateInput) (*models.Booking, error) {
	b, err := s.store.GetBooking(id)
	if err != nil {
		return nil, err
	}
	if !CanAccess(requester, b.UserID) {
		return nil, ErrForbidden
	}
	if b.Terminal() {
		return nil, ErrNotActive
	}

	rescheduled := input.StartTime != nil || input.EndTime != nil
	if rescheduled {
		start, end := b.StartTime, b.EndTime
		if input.StartTime != nil {
			start = *input.StartTime
		}
		if input.EndTime != nil {
			end = *input.EndTime
		}
		if err := validateInterval(start, end).orNil(); err != nil {
			return nil, err
		}

		spot, err := s.spots.GetSpot(b.SpotID)
		if err != nil {
			return nil, err
		}
		b.StartTime = start
		b.EndTime = end
		b.DurationHours = DurationHours(start, end)
		b.TotalCost = Cost(b.DurationHours, spot.HourlyRate)
	}

	input.Vehicle.apply(&b.Vehicle)
	if input.Notes != nil {
		b.Notes = *input.Notes
	}

	if rescheduled {
		err = s.store.UpdateRescheduling(b)
	} else {
		err = s.store.Update(b)
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Service) Cancel(requester Requester, id uuid.UUID) (*models.Booking, error) {
	return s.finish(requester, id, models.BookingStatusCancelled, false)
}

// Complete marks the booking done and its payment settled; the source
// flow assumes payment happened before completion.
func (s *Service) Complete(requester Requester, id uuid.UUID) (*models.Booking, error) {
	return s.finish(requester, id, models.BookingStatusCompleted, true)
}

func (s *Service) finish(requester Requester, id uuid.UUID, status models.BookingStatus, markPaid bool) (*models.Booking, error) {
	b, err := s.store.GetBooking(id)
	if err != nil {
		return nil, err
	}
	if !CanAccess(requester, b.UserID) {
		return nil, ErrForbidden
	}
	if b.Status != models.BookingStatusActive {
		return nil, ErrNotActive
	}

	b.Status = status
	if markPaid {
		b.PaymentStatus = models.PaymentStatusPaid
	}
	if err := s.store.UpdateReleasing(b); err != nil {
		return nil, err
	}
	return b, nil
}

// Delete hard-removes a booking. Admin-only; the route layer enforces
// the role before this is reached.
func (s *Service) Delete(id uuid.UUID) error {
	b, err := s.store.GetBooking(id)
	if err != nil {
		return err
	}
	return s.store.Delete(b, b.Status == models.BookingStatusActive)
}

func (s *Service) Get(requester Requester, id uuid.UUID) (*models.Booking, error) {
	b, err := s.store.GetBooking(id)
	if err != nil {
		return nil, err
	}
	if !CanAccess(requester, b.UserID) {
		return nil, ErrForbidden
	}
	return b, nil
}

func (s *Service) List(requester Requester, status models.BookingStatus, page, limit int) ([]models.Booking, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	f := ListFilter{Status: status, Page: page, Limit: limit}
	if !requester.IsAdmin() {
		id := requester.ID
		f.UserID = &id
	}
	return s.store.List(f)
}

// ExpireOverdue sweeps active bookings whose end time has passed,
// marking them expired and freeing their spots. Driven by the cron
// job in the server.
func (s *Service) ExpireOverdue(now time.Time) ([]models.Booking, error) {
	return s.store.ExpireOverdue(now)
}

func spotLockKey(spotID uuid.UUID) string {
	return "parkease:spot_lock:" + spotID.String()
}
