package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PaymentFee is a single court-fee line item owned by a payment group.
// AmountDue starts at CalculatedAmount and is only ever reduced by the
// apportionment pass or a remission; a negative AmountDue records a credit.
type PaymentFee struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	PaymentLinkID uint `gorm:"index" json:"payment_link_id"`

	Code             string          `gorm:"type:varchar(50);not null" json:"code"`
	Version          string          `gorm:"type:varchar(20)" json:"version"`
	Volume           int             `gorm:"default:1" json:"volume"`
	CalculatedAmount decimal.Decimal `gorm:"type:decimal(18,2)" json:"calculated_amount"`
	NetAmount        decimal.Decimal `gorm:"type:decimal(18,2)" json:"net_amount"`
	AmountDue        decimal.Decimal `gorm:"type:decimal(18,2)" json:"amount_due"`
	CcdCaseNumber    string          `gorm:"type:varchar(50);index" json:"ccd_case_number"`
	CaseReference    string          `gorm:"type:varchar(100)" json:"case_reference"`
	Reference        string          `gorm:"type:varchar(100)" json:"reference"`

	PaymentLink *PaymentFeeLink `gorm:"foreignKey:PaymentLinkID" json:"payment_link,omitempty"`
}

// CaseIdentifier returns the CCD case number when present, otherwise the
// free-text case reference. At least one of the two is required.
func (f *PaymentFee) CaseIdentifier() string {
	if f.CcdCaseNumber != "" {
		return f.CcdCaseNumber
	}
	return f.CaseReference
}
