package models

import (
	"time"

	"gorm.io/gorm"
)

// PaymentStatusHistory keeps one row per status transition applied to a
// payment, including the provider error code when the transition came
// from a failed poll or callback.
type PaymentStatusHistory struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	PaymentID uint `gorm:"index" json:"payment_id"`

	Status       PaymentStatus `gorm:"type:varchar(20)" json:"status"`
	ErrorCode    string        `gorm:"type:varchar(50)" json:"error_code,omitempty"`
	ErrorMessage string        `gorm:"type:text" json:"error_message,omitempty"`

	Payment *Payment `gorm:"foreignKey:PaymentID" json:"payment,omitempty"`
}
