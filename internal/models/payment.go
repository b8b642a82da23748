package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PaymentMethod string

const (
	PaymentMethodKhalti     PaymentMethod = "khalti"
	PaymentMethodCreditCard PaymentMethod = "credit_card"
	PaymentMethodDebitCard  PaymentMethod = "debit_card"
	PaymentMethodPaypal     PaymentMethod = "paypal"
	PaymentMethodCash       PaymentMethod = "cash"
)

type Payment struct {
	ID            uuid.UUID     `gorm:"type:uuid;primary_key" json:"id"`
	UserID        uuid.UUID     `gorm:"type:uuid;not null;index" json:"user_id"`
	User          *User         `gorm:"foreignKey:UserID" json:"user,omitempty"`
	BookingID     uuid.UUID     `gorm:"type:uuid;not null;index" json:"booking_id"`
	Booking       *Booking      `gorm:"foreignKey:BookingID" json:"booking,omitempty"`
	Amount        float64       `gorm:"not null" json:"amount"`
	Method        PaymentMethod `gorm:"not null;default:'khalti'" json:"method"`
	Status        string        `gorm:"not null;default:'pending'" json:"status"`
	TransactionID string        `gorm:"not null" json:"transaction_id"`
	RawPayload    string        `gorm:"type:text" json:"-"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

const (
	PaymentRecordCompleted = "completed"
	PaymentRecordFailed    = "failed"
)

func (payment *Payment) BeforeCreate(tx *gorm.DB) (err error) {
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	return
}
