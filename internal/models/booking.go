package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BookingStatus string

const (
	BookingStatusActive    BookingStatus = "active"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusExpired   BookingStatus = "expired"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

type VehicleInfo struct {
	LicensePlate string `gorm:"not null" json:"license_plate"`
	Make         string `json:"make,omitempty"`
	Model        string `json:"model,omitempty"`
	Color        string `json:"color,omitempty"`
}

type Booking struct {
	ID            uuid.UUID     `gorm:"type:uuid;primary_key" json:"id"`
	UserID        uuid.UUID     `gorm:"type:uuid;not null;index" json:"user_id"`
	User          *User         `gorm:"foreignKey:UserID" json:"user,omitempty"`
	SpotID        uuid.UUID     `gorm:"type:uuid;not null;index" json:"spot_id"`
	Spot          *ParkingSpot  `gorm:"foreignKey:SpotID" json:"spot,omitempty"`
	StartTime     time.Time     `gorm:"not null;index" json:"start_time"`
	EndTime       time.Time     `gorm:"not null;index" json:"end_time"`
	DurationHours float64       `gorm:"not null" json:"duration_hours"`
	TotalCost     float64       `gorm:"not null" json:"total_cost"`
	Status        BookingStatus `gorm:"not null;default:'active';index" json:"status"`
	PaymentStatus PaymentStatus `gorm:"not null;default:'pending'" json:"payment_status"`
	Vehicle       VehicleInfo   `gorm:"embedded;embeddedPrefix:vehicle_" json:"vehicle"`
	Notes         string        `json:"notes,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

func (booking *Booking) BeforeCreate(tx *gorm.DB) (err error) {
	if booking.ID == uuid.Nil {
		booking.ID = uuid.New()
	}
	return
}

// Terminal reports whether the booking can no longer change state.
func (booking *Booking) Terminal() bool {
	return booking.Status != BookingStatusActive
}
