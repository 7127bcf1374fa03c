package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// FeePayApportion is the audit record of one fee being touched by one
// apportionment pass: how much of the payment landed on the fee and, on
// the last fee of the group, any surplus carried as a credit.
type FeePayApportion struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	FeeID         uint `gorm:"index" json:"fee_id"`
	PaymentID     uint `gorm:"index" json:"payment_id"`
	PaymentLinkID uint `gorm:"index" json:"payment_link_id"`

	FeeAmount         decimal.Decimal `gorm:"type:decimal(18,2)" json:"fee_amount"`
	ApportionAmount   decimal.Decimal `gorm:"type:decimal(18,2)" json:"apportion_amount"`
	CallSurplusAmount decimal.Decimal `gorm:"type:decimal(18,2)" json:"call_surplus_amount"`
	ApportionType     ApportionType   `gorm:"type:varchar(10)" json:"apportion_type"`
}
