package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Remission is a partial or full write-off against exactly one fee,
// granted through the help-with-fees scheme. It reduces the fee's
// AmountDue outside the apportionment path.
type Remission struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	PaymentLinkID uint `gorm:"index" json:"payment_link_id"`
	FeeID         uint `gorm:"index" json:"fee_id"`

	RemissionReference string          `gorm:"type:varchar(30);uniqueIndex" json:"remission_reference"`
	HwfReference       string          `gorm:"type:varchar(50)" json:"hwf_reference"`
	HwfAmount          decimal.Decimal `gorm:"type:decimal(18,2)" json:"hwf_amount"`
	BeneficiaryName    string          `gorm:"type:varchar(255)" json:"beneficiary_name"`
	CcdCaseNumber      string          `gorm:"type:varchar(50);index" json:"ccd_case_number"`
	CaseReference      string          `gorm:"type:varchar(100)" json:"case_reference"`

	Fee         *PaymentFee     `gorm:"foreignKey:FeeID" json:"fee,omitempty"`
	PaymentLink *PaymentFeeLink `gorm:"foreignKey:PaymentLinkID" json:"payment_link,omitempty"`
}
