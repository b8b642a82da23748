package booking

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/parkease/parkease-api/internal/models"
)

type GormSpotStore struct {
	db *gorm.DB
}

func NewGormSpotStore(db *gorm.DB) *GormSpotStore {
	return &GormSpotStore{db: db}
}

func (s *GormSpotStore) GetSpot(id uuid.UUID) (*models.ParkingSpot, error) {
	var spot models.ParkingSpot
	if err := s.db.First(&spot, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSpotNotFound
		}
		return nil, err
	}
	return &spot, nil
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) CreateReserving(b *models.Booking) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		// Row lock on the spot serializes concurrent creates; two
		// requests racing for the same interval cannot both pass the
		// conflict check below.
		var spot models.ParkingSpot
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&spot, "id = ?", b.SpotID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSpotNotFound
			}
			return err
		}
		if !spot.Status.Bookable() {
			return ErrSpotUnavailable
		}

		var count int64
		if err := tx.Model(&models.Booking{}).
			Where("spot_id = ? AND status = ? AND start_time < ? AND end_time > ?",
				b.SpotID, models.BookingStatusActive, b.EndTime, b.StartTime).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrConflict
		}

		if err := tx.Create(b).Error; err != nil {
			return err
		}
		return tx.Model(&models.ParkingSpot{}).
			Where("id = ?", b.SpotID).
			Update("status", models.SpotStatusReserved).Error
	})
}

func (s *GormStore) GetBooking(id uuid.UUID) (*models.Booking, error) {
	var b models.Booking
	if err := s.db.Preload("Spot").First(&b, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (s *GormStore) Update(b *models.Booking) error {
	return s.db.Save(b).Error
}

func (s *GormStore) UpdateReleasing(b *models.Booking) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(b).Error; err != nil {
			return err
		}
		return tx.Model(&models.ParkingSpot{}).
			Where("id = ?", b.SpotID).
			Update("status", models.SpotStatusAvailable).Error
	})
}

func (s *GormStore) Delete(b *models.Booking, freeSpot bool) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.Booking{}, "id = ?", b.ID).Error; err != nil {
			return err
		}
		if !freeSpot {
			return nil
		}
		return tx.Model(&models.ParkingSpot{}).
			Where("id = ?", b.SpotID).
			Update("status", models.SpotStatusAvailable).Error
	})
}

func (s *GormStore) UpdateRescheduling(b *models.Booking) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		// Same row lock as CreateReserving: a reschedule racing a
		// create for the same interval cannot both pass the check.
		var spot models.ParkingSpot
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&spot, "id = ?", b.SpotID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSpotNotFound
			}
			return err
		}

		var count int64
		if err := tx.Model(&models.Booking{}).
			Where("spot_id = ? AND id <> ? AND status = ? AND start_time < ? AND end_time > ?",
				b.SpotID, b.ID, models.BookingStatusActive, b.EndTime, b.StartTime).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrConflict
		}

		return tx.Save(b).Error
	})
}

func (s *GormStore) List(f ListFilter) ([]models.Booking, int64, error) {
	query := s.db.Model(&models.Booking{})
	if f.UserID != nil {
		query = query.Where("user_id = ?", *f.UserID)
	}
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var bookings []models.Booking
	offset := (f.Page - 1) * f.Limit
	err := query.Preload("Spot").
		Offset(offset).Limit(f.Limit).
		Order("created_at DESC").
		Find(&bookings).Error
	return bookings, total, err
}

func (s *GormStore) ExpireOverdue(now time.Time) ([]models.Booking, error) {
	var expired []models.Booking
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("status = ? AND end_time <= ?", models.BookingStatusActive, now).
			Find(&expired).Error; err != nil {
			return err
		}
		if len(expired) == 0 {
			return nil
		}

		ids := make([]uuid.UUID, 0, len(expired))
		spotIDs := make([]uuid.UUID, 0, len(expired))
		for i := range expired {
			ids = append(ids, expired[i].ID)
			spotIDs = append(spotIDs, expired[i].SpotID)
			expired[i].Status = models.BookingStatusExpired
		}

		if err := tx.Model(&models.Booking{}).
			Where("id IN ?", ids).
			Update("status", models.BookingStatusExpired).Error; err != nil {
			return err
		}
		return tx.Model(&models.ParkingSpot{}).
			Where("id IN ? AND status = ?", spotIDs, models.SpotStatusReserved).
			Update("status", models.SpotStatusAvailable).Error
	})
	if err != nil {
		return nil, err
	}
	return expired, nil
}

var (
	_ SpotStore = (*GormSpotStore)(nil)
	_ Store     = (*GormStore)(nil)
)
