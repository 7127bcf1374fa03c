package models

import (
	"time"

	"gorm.io/gorm"
)

// PaymentFeeLink is the payment group: the aggregate of fees and payments
// sharing one case context. It owns its fees and payments and is never
// hard-deleted; refunds, remissions and reports all key off its reference.
type PaymentFeeLink struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	PaymentReference string `gorm:"type:varchar(30);uniqueIndex" json:"payment_reference"`

	// Fee attachment order is the ascending primary key: first attached,
	// first paid during apportionment.
	Fees     []PaymentFee `gorm:"foreignKey:PaymentLinkID" json:"fees,omitempty"`
	Payments []Payment    `gorm:"foreignKey:PaymentLinkID" json:"payments,omitempty"`
}
