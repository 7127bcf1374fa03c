package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"courtpay_api/internal/models"
)

// ApportionOutcome summarizes how a payment landed against its fee set
type ApportionOutcome string

const (
	OutcomeFullySettled     ApportionOutcome = "fully_settled"
	OutcomeShortfallSettled ApportionOutcome = "shortfall_settled"
	OutcomeSurplusSettled   ApportionOutcome = "surplus_settled"
)

// ErrAlreadyApportioned guards the at-most-once contract: a payment whose
// apportioned flag is set must never be allocated a second time.
var ErrAlreadyApportioned = errors.New("payment has already been apportioned")

// PaymentNotSettledError rejects an apportionment attempt against a payment
// that has not reached Success. The payment itself is fine, the request is
// premature.
type PaymentNotSettledError struct {
	Reference string
	Status    models.PaymentStatus
}

func (e *PaymentNotSettledError) Error() string {
	return fmt.Sprintf("payment %s is %s, only settled payments can be apportioned", e.Reference, e.Status)
}

// InconsistentFeeSetError is a caller contract violation: the fee set given
// to the engine is empty or does not belong to the payment's case. Fatal
// for that payment's settlement, surfaced for manual reconciliation.
type InconsistentFeeSetError struct {
	PaymentReference string
	Reason           string
}

func (e *InconsistentFeeSetError) Error() string {
	return fmt.Sprintf("inconsistent fee set for payment %s: %s", e.PaymentReference, e.Reason)
}

// FeeAllocation echoes how much of the payment landed on one fee and the
// fee's balance after the pass.
type FeeAllocation struct {
	FeeID       uint            `json:"fee_id"`
	Code        string          `json:"code"`
	Apportioned decimal.Decimal `json:"apportioned"`
	AmountDue   decimal.Decimal `json:"amount_due"`
}

// AllocationResult is the outcome of one apportionment pass.
type AllocationResult struct {
	Outcome     ApportionOutcome `json:"outcome"`
	Surplus     decimal.Decimal  `json:"surplus"`
	Allocations []FeeAllocation  `json:"allocations"`
}

// FeePayApportionService allocates settled payments across the ordered fee
// set of their payment group. All arithmetic is fixed-point decimal; the
// fee updates, audit rows and the apportioned flag commit as one unit.
type FeePayApportionService struct {
	db *gorm.DB
}

func NewFeePayApportionService(db *gorm.DB) *FeePayApportionService {
	return &FeePayApportionService{db: db}
}

// Apportion runs the allocation pass for a settled payment in its own
// transaction. The status reconciler normally drives this through
// ApportionInTx; this entry point exists for manual reconciliation.
func (s *FeePayApportionService) Apportion(ctx context.Context, paymentReference string) (*AllocationResult, error) {
	var result *AllocationResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var payment models.Payment
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("reference = ?", paymentReference).
			First(&payment).Error; err != nil {
			return fmt.Errorf("failed to load payment %s: %w", paymentReference, err)
		}
		var err error
		result, err = s.ApportionInTx(tx, &payment)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ApportionInTx runs the allocation pass inside the caller's transaction.
// The caller must hold a row lock on the payment. The group's fee rows are
// locked for the duration of the pass so concurrent apportionment against
// the same fee set serializes.
func (s *FeePayApportionService) ApportionInTx(tx *gorm.DB, payment *models.Payment) (*AllocationResult, error) {
	if err := ensureApportionable(payment); err != nil {
		return nil, err
	}

	var fees []*models.PaymentFee
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("payment_link_id = ?", payment.PaymentLinkID).
		Order("id asc").
		Find(&fees).Error; err != nil {
		return nil, fmt.Errorf("failed to load fees for payment %s: %w", payment.Reference, err)
	}

	if err := validateFeeSet(payment, fees); err != nil {
		return nil, err
	}

	result := apportionFees(payment.Amount, fees)

	for i, fee := range fees {
		if err := tx.Model(&models.PaymentFee{}).
			Where("id = ?", fee.ID).
			Update("amount_due", fee.AmountDue).Error; err != nil {
			return nil, fmt.Errorf("failed to update fee %d: %w", fee.ID, err)
		}

		allocation, ok := allocationFor(result, fee.ID)
		if !ok {
			continue
		}
		surplus := decimal.Zero
		if i == len(fees)-1 {
			surplus = result.Surplus
		}
		record := models.FeePayApportion{
			FeeID:             fee.ID,
			PaymentID:         payment.ID,
			PaymentLinkID:     payment.PaymentLinkID,
			FeeAmount:         fee.CalculatedAmount,
			ApportionAmount:   allocation.Apportioned,
			CallSurplusAmount: surplus,
			ApportionType:     models.ApportionTypeAuto,
		}
		if err := tx.Create(&record).Error; err != nil {
			return nil, fmt.Errorf("failed to record apportionment for fee %d: %w", fee.ID, err)
		}
	}

	if err := tx.Model(&models.Payment{}).
		Where("id = ?", payment.ID).
		Update("apportioned", true).Error; err != nil {
		return nil, fmt.Errorf("failed to mark payment %s apportioned: %w", payment.Reference, err)
	}
	payment.Apportioned = true

	return result, nil
}

// ApplyRemission reduces a single fee's balance outside the apportionment
// path. Runs in its own transaction with the fee row locked.
func (s *FeePayApportionService) ApplyRemission(ctx context.Context, remission *models.Remission) error {
	if !remission.HwfAmount.IsPositive() {
		return fmt.Errorf("remission %s must carry a positive amount", remission.RemissionReference)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var fee models.PaymentFee
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&fee, remission.FeeID).Error; err != nil {
			return fmt.Errorf("failed to load fee %d: %w", remission.FeeID, err)
		}
		if remission.HwfAmount.GreaterThan(fee.AmountDue) {
			return fmt.Errorf("remission %s exceeds the outstanding balance of fee %s",
				remission.RemissionReference, fee.Code)
		}

		if err := tx.Model(&models.PaymentFee{}).
			Where("id = ?", fee.ID).
			Update("amount_due", fee.AmountDue.Sub(remission.HwfAmount)).Error; err != nil {
			return fmt.Errorf("failed to apply remission to fee %d: %w", fee.ID, err)
		}
		return tx.Create(remission).Error
	})
}

// ensureApportionable checks the at-most-once guard and the terminal-state
// precondition before any fee is touched.
func ensureApportionable(payment *models.Payment) error {
	if payment.Status != models.PaymentStatusSuccess {
		return &PaymentNotSettledError{Reference: payment.Reference, Status: payment.Status}
	}
	if payment.Apportioned {
		return ErrAlreadyApportioned
	}
	return nil
}

// validateFeeSet rejects an empty fee set or any fee whose case identifier
// does not match the payment's.
func validateFeeSet(payment *models.Payment, fees []*models.PaymentFee) error {
	if len(fees) == 0 {
		return &InconsistentFeeSetError{PaymentReference: payment.Reference, Reason: "fee set is empty"}
	}
	paymentCase := strings.TrimSpace(payment.CaseIdentifier())
	for _, fee := range fees {
		if feeCase := strings.TrimSpace(fee.CaseIdentifier()); feeCase != paymentCase {
			return &InconsistentFeeSetError{
				PaymentReference: payment.Reference,
				Reason:           fmt.Sprintf("fee %s belongs to case %q, payment to case %q", fee.Code, feeCase, paymentCase),
			}
		}
	}
	return nil
}

// apportionFees is the allocation pass: a single deterministic sweep over
// the fees in attachment order, earlier fees satisfied first. Fees already
// in credit are skipped; any surplus left at the end lands on the last fee
// as a negative balance so reconciliation reports show exactly one credit
// line. Mutates AmountDue in place.
func apportionFees(amount decimal.Decimal, fees []*models.PaymentFee) *AllocationResult {
	remaining := amount
	takes := make([]decimal.Decimal, len(fees))

	for i, fee := range fees {
		if !fee.AmountDue.IsPositive() {
			continue
		}
		take := decimal.Min(remaining, fee.AmountDue)
		if !take.IsPositive() {
			continue
		}
		fee.AmountDue = fee.AmountDue.Sub(take)
		remaining = remaining.Sub(take)
		takes[i] = take
	}

	surplus := decimal.Zero
	if remaining.IsPositive() {
		surplus = remaining
		last := fees[len(fees)-1]
		last.AmountDue = last.AmountDue.Sub(surplus)
		takes[len(fees)-1] = takes[len(fees)-1].Add(surplus)
	}

	allocations := make([]FeeAllocation, 0, len(fees))
	shortfall := false
	for i, fee := range fees {
		if fee.AmountDue.IsPositive() {
			shortfall = true
		}
		if takes[i].IsZero() {
			continue
		}
		allocations = append(allocations, FeeAllocation{
			FeeID:       fee.ID,
			Code:        fee.Code,
			Apportioned: takes[i],
			AmountDue:   fee.AmountDue,
		})
	}

	outcome := OutcomeFullySettled
	switch {
	case surplus.IsPositive():
		outcome = OutcomeSurplusSettled
	case shortfall:
		outcome = OutcomeShortfallSettled
	}

	return &AllocationResult{Outcome: outcome, Surplus: surplus, Allocations: allocations}
}

func allocationFor(result *AllocationResult, feeID uint) (FeeAllocation, bool) {
	for _, allocation := range result.Allocations {
		if allocation.FeeID == feeID {
			return allocation, true
		}
	}
	return FeeAllocation{}, false
}
