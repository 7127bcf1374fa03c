package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Payment records one attempt to settle money against a payment group.
// The reference is assigned once, carries a check digit and never changes.
type Payment struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	PaymentLinkID uint `gorm:"index" json:"payment_link_id"`

	Reference             string          `gorm:"type:varchar(30);uniqueIndex" json:"reference"`
	PaymentGroupReference string          `gorm:"type:varchar(30);index" json:"payment_group_reference"`
	Amount                decimal.Decimal `gorm:"type:decimal(18,2)" json:"amount"`
	Status                PaymentStatus   `gorm:"type:varchar(20);index" json:"status"`
	ServiceType           string          `gorm:"type:varchar(100)" json:"service_type"`
	SiteID                string          `gorm:"type:varchar(20)" json:"site_id"`
	CcdCaseNumber         string          `gorm:"type:varchar(50);index" json:"ccd_case_number"`
	CaseReference         string          `gorm:"type:varchar(100)" json:"case_reference"`
	PbaNumber             string          `gorm:"type:varchar(50)" json:"pba_number,omitempty"`
	Channel               PaymentChannel  `gorm:"type:varchar(20)" json:"channel"`
	Provider              PaymentProvider `gorm:"type:varchar(30)" json:"provider"`
	Method                PaymentMethod   `gorm:"type:varchar(30)" json:"method"`
	Description           string          `gorm:"type:text" json:"description"`

	// Apportioned is set in the same transaction as the status write into
	// Success so the allocation pass runs at most once per payment.
	Apportioned     bool       `gorm:"default:false" json:"apportioned"`
	StatusUpdatedAt *time.Time `json:"status_updated_at"`

	PaymentLink     *PaymentFeeLink        `gorm:"foreignKey:PaymentLinkID" json:"payment_link,omitempty"`
	StatusHistories []PaymentStatusHistory `gorm:"foreignKey:PaymentID" json:"status_histories,omitempty"`
}

// CaseIdentifier returns the CCD case number when present, otherwise the
// free-text case reference.
func (p *Payment) CaseIdentifier() string {
	if p.CcdCaseNumber != "" {
		return p.CcdCaseNumber
	}
	return p.CaseReference
}
