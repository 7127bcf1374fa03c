package handlers

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"courtpay_api/internal/models"
)

// FeeRequest is one fee line in a payment or group request
type FeeRequest struct {
	Code             string          `json:"code"`
	Version          string          `json:"version"`
	Volume           int             `json:"volume"`
	CalculatedAmount decimal.Decimal `json:"calculated_amount"`
	NetAmount        decimal.Decimal `json:"net_amount"`
	Reference        string          `json:"reference"`
	CcdCaseNumber    string          `json:"ccd_case_number"`
	CaseReference    string          `json:"case_reference"`
}

// CreateCardPaymentRequest is the POST /card-payments body
type CreateCardPaymentRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	CcdCaseNumber string          `json:"ccd_case_number"`
	CaseReference string          `json:"case_reference"`
	Service       string          `json:"service"`
	SiteID        string          `json:"site_id"`
	Channel       string          `json:"channel"`
	Description   string          `json:"description"`
	Fees          []FeeRequest    `json:"fees"`
}

// CreateCreditAccountPaymentRequest is the POST /credit-account-payments body
type CreateCreditAccountPaymentRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	AccountNumber string          `json:"account_number"`
	CcdCaseNumber string          `json:"ccd_case_number"`
	CaseReference string          `json:"case_reference"`
	Service       string          `json:"service"`
	SiteID        string          `json:"site_id"`
	Description   string          `json:"description"`
	Fees          []FeeRequest    `json:"fees"`
}

// AttachFeesRequest is the PUT /payment-groups/:reference/fees body
type AttachFeesRequest struct {
	Fees []FeeRequest `json:"fees"`
}

// RemissionRequest is the POST /payment-groups/:reference/remissions body
type RemissionRequest struct {
	FeeID           uint            `json:"fee_id"`
	HwfReference    string          `json:"hwf_reference"`
	HwfAmount       decimal.Decimal `json:"hwf_amount"`
	BeneficiaryName string          `json:"beneficiary_name"`
	CcdCaseNumber   string          `json:"ccd_case_number"`
	CaseReference   string          `json:"case_reference"`
}

// UpdateStatusRequest is the PATCH /payments/:reference/status body, used
// by telephony and bulk-scan callbacks.
type UpdateStatusRequest struct {
	Status models.PaymentStatus `json:"status"`
}

func validateFees(fees []FeeRequest) error {
	if len(fees) == 0 {
		return fmt.Errorf("at least one fee is required")
	}
	for i, fee := range fees {
		if strings.TrimSpace(fee.Code) == "" {
			return fmt.Errorf("fees[%d]: code is required", i)
		}
		if !fee.CalculatedAmount.IsPositive() {
			return fmt.Errorf("fees[%d]: calculated_amount must be greater than zero", i)
		}
		if fee.Volume < 0 {
			return fmt.Errorf("fees[%d]: volume must not be negative", i)
		}
	}
	return nil
}

func validatePaymentFields(amount decimal.Decimal, ccdCaseNumber, caseReference string, fees []FeeRequest) error {
	if !amount.IsPositive() {
		return fmt.Errorf("amount must be greater than zero")
	}
	if strings.TrimSpace(ccdCaseNumber) == "" && strings.TrimSpace(caseReference) == "" {
		return fmt.Errorf("ccd_case_number or case_reference is required")
	}
	return validateFees(fees)
}

// buildFees canonicalizes fee amounts to two decimal places and fills the
// case context from the payment when a fee omits it.
func buildFees(fees []FeeRequest, ccdCaseNumber, caseReference string) []models.PaymentFee {
	built := make([]models.PaymentFee, 0, len(fees))
	for _, fee := range fees {
		volume := fee.Volume
		if volume == 0 {
			volume = 1
		}
		ccd := fee.CcdCaseNumber
		caseRef := fee.CaseReference
		if ccd == "" && caseRef == "" {
			ccd, caseRef = ccdCaseNumber, caseReference
		}
		built = append(built, models.PaymentFee{
			Code:             strings.TrimSpace(fee.Code),
			Version:          fee.Version,
			Volume:           volume,
			CalculatedAmount: fee.CalculatedAmount.Round(2),
			NetAmount:        fee.NetAmount.Round(2),
			Reference:        fee.Reference,
			CcdCaseNumber:    strings.TrimSpace(ccd),
			CaseReference:    strings.TrimSpace(caseRef),
		})
	}
	return built
}
