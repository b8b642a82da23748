package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SpotType string

const (
	SpotTypeStandard SpotType = "standard"
	SpotTypeCompact  SpotType = "compact"
	SpotTypeHandicap SpotType = "handicap"
	SpotTypeElectric SpotType = "electric"
)

type SpotStatus string

const (
	SpotStatusAvailable   SpotStatus = "available"
	SpotStatusOccupied    SpotStatus = "occupied"
	SpotStatusReserved    SpotStatus = "reserved"
	SpotStatusMaintenance SpotStatus = "maintenance"
)

// Bookable reports whether new bookings may target the spot. A
// reserved spot stays bookable: creating a booking reserves the spot,
// so the interval conflict check, not the status, decides whether a
// further booking fits.
func (s SpotStatus) Bookable() bool {
	return s == SpotStatusAvailable || s == SpotStatusReserved
}

func (s SpotStatus) Valid() bool {
	switch s {
	case SpotStatusAvailable, SpotStatusOccupied, SpotStatusReserved, SpotStatusMaintenance:
		return true
	}
	return false
}

type ParkingSpot struct {
	ID          uuid.UUID  `gorm:"type:uuid;primary_key" json:"id"`
	SpotNumber  string     `gorm:"unique;not null" json:"spot_number"`
	Location    string     `gorm:"not null" json:"location"`
	Latitude    float64    `gorm:"type:decimal(9,6);default:0" json:"latitude"`
	Longitude   float64    `gorm:"type:decimal(9,6);default:0" json:"longitude"`
	Type        SpotType   `gorm:"not null;default:'standard'" json:"type"`
	Status      SpotStatus `gorm:"not null;default:'available';index" json:"status"`
	HourlyRate  float64    `gorm:"not null" json:"hourly_rate"`
	Features    []string   `gorm:"serializer:json" json:"features"`
	Description string     `json:"description"`
	Bookings    []Booking  `gorm:"foreignKey:SpotID" json:"bookings,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (spot *ParkingSpot) BeforeCreate(tx *gorm.DB) (err error) {
	if spot.ID == uuid.Nil {
		spot.ID = uuid.New()
	}
	return
}
