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

// PBA rejection codes surfaced in the payment status history
const (
	pbaCodeInsufficientFunds = "CA-E0001"
	pbaCodeAccountOnHold     = "CA-E0003"
	pbaCodeAccountDeleted    = "CA-E0004"
)

// PaymentService orchestrates the payment lifecycle: duplicate gating,
// reference assignment, persistence, and for credit-account payments the
// synchronous settlement against the account service.
type PaymentService struct {
	db         *gorm.DB
	references *ReferenceService
	duplicates *DuplicatePaymentValidator
	statuses   *PaymentStatusService
	apportion  *FeePayApportionService
	accounts   AccountLookup
	locks      CaseLocker
}

func NewPaymentService(db *gorm.DB, references *ReferenceService, duplicates *DuplicatePaymentValidator,
	statuses *PaymentStatusService, apportion *FeePayApportionService, accounts AccountLookup,
	locks CaseLocker) *PaymentService {
	return &PaymentService{
		db:         db,
		references: references,
		duplicates: duplicates,
		statuses:   statuses,
		apportion:  apportion,
		accounts:   accounts,
		locks:      locks,
	}
}

// createWithDuplicateGate runs the duplicate check and the insert under one
// per-case lock. Without it, two identical submissions racing each other
// both pass the check before either row is visible.
func (s *PaymentService) createWithDuplicateGate(ctx context.Context, payment *models.Payment,
	fees []models.PaymentFee, persist func(ctx context.Context) error) error {
	caseID := strings.TrimSpace(payment.CaseIdentifier())
	if caseID == "" {
		return ErrMissingCaseIdentifier
	}
	return s.locks.WithCaseLock(ctx, caseID, func(ctx context.Context) error {
		if err := s.duplicates.CheckDuplicate(ctx, payment, fees); err != nil {
			return err
		}
		return persist(ctx)
	})
}

// CreateCardPayment gates, references and persists a card payment in the
// Initiated state. Settlement arrives later through the reconciler.
func (s *PaymentService) CreateCardPayment(ctx context.Context, payment *models.Payment, fees []models.PaymentFee) (*models.PaymentFeeLink, error) {
	if payment.Channel == "" {
		payment.Channel = models.PaymentChannelOnline
	}
	if payment.Provider == "" {
		payment.Provider = models.PaymentProviderGovPay
	}
	payment.Method = models.PaymentMethodCard
	payment.Status = models.PaymentStatusInitiated

	var link *models.PaymentFeeLink
	err := s.createWithDuplicateGate(ctx, payment, fees, func(ctx context.Context) error {
		var err error
		link, err = s.persistNewGroup(ctx, payment, fees)
		return err
	})
	if err != nil {
		return nil, err
	}
	return link, nil
}

// CreateCreditAccountPayment gates, references and persists a PBA payment,
// then settles it synchronously against the account service. When the
// account service is unreachable the payment stays Pending for the next
// reconciliation sweep.
func (s *PaymentService) CreateCreditAccountPayment(ctx context.Context, payment *models.Payment, fees []models.PaymentFee) (*models.PaymentFeeLink, error) {
	payment.Channel = models.PaymentChannelOnline
	payment.Provider = models.PaymentProviderByAccount
	payment.Method = models.PaymentMethodPBA
	payment.Status = models.PaymentStatusInitiated

	var link *models.PaymentFeeLink
	err := s.createWithDuplicateGate(ctx, payment, fees, func(ctx context.Context) error {
		var err error
		link, err = s.persistNewGroup(ctx, payment, fees)
		return err
	})
	if err != nil {
		return nil, err
	}

	account, err := s.accounts.Account(ctx, payment.PbaNumber)
	if err != nil {
		// account service unreachable: park the payment for the
		// settle_pending_account_payments sweep
		if advErr := s.statuses.AdvanceStatus(ctx, payment.Reference, models.PaymentStatusPending); advErr != nil {
			return nil, advErr
		}
		payment.Status = models.PaymentStatusPending
		return link, nil
	}

	newStatus, code, message := accountPaymentOutcome(account, payment.Amount)
	if err := s.statuses.AdvanceStatusWithDetail(ctx, payment.Reference, newStatus, code, message); err != nil {
		return nil, err
	}
	payment.Status = newStatus
	return link, nil
}

// accountPaymentOutcome maps the account service's credit-check response to
// the payment's next status.
func accountPaymentOutcome(account *AccountInfo, amount decimal.Decimal) (models.PaymentStatus, string, string) {
	switch {
	case account.Status == AccountStatusOnHold:
		return models.PaymentStatusFailed, pbaCodeAccountOnHold, "account is on hold"
	case account.Status == AccountStatusDeleted:
		return models.PaymentStatusFailed, pbaCodeAccountDeleted, "account is deleted"
	case account.AvailableBalance.LessThan(amount):
		return models.PaymentStatusFailed, pbaCodeInsufficientFunds, "insufficient funds available on account"
	}
	return models.PaymentStatusSuccess, "", ""
}

// SettlePendingAccountPayments re-runs the credit check for PBA payments
// parked in Pending by an unreachable account service. Returns how many
// payments reached a terminal decision; a payment whose lookup fails again
// stays Pending for the next sweep.
func (s *PaymentService) SettlePendingAccountPayments(ctx context.Context) (int, error) {
	var payments []models.Payment
	err := s.db.WithContext(ctx).
		Where("status = ?", models.PaymentStatusPending).
		Where("provider = ?", models.PaymentProviderByAccount).
		Find(&payments).Error
	if err != nil {
		return 0, fmt.Errorf("failed to list pending account payments: %w", err)
	}

	settled := 0
	var errs []error
	for _, payment := range payments {
		if ctx.Err() != nil {
			break
		}

		account, err := s.accounts.Account(ctx, payment.PbaNumber)
		if err != nil {
			errs = append(errs, fmt.Errorf("credit check %s: %w", payment.Reference, err))
			continue
		}

		newStatus, code, message := accountPaymentOutcome(account, payment.Amount)
		if err := s.statuses.AdvanceStatusWithDetail(ctx, payment.Reference, newStatus, code, message); err != nil {
			if !errors.Is(err, ErrConcurrentStatusUpdate) {
				errs = append(errs, fmt.Errorf("settle %s: %w", payment.Reference, err))
			}
			continue
		}
		settled++
	}
	return settled, errors.Join(errs...)
}

// persistNewGroup assigns the group and payment references and writes the
// group, its fees and the payment as one transaction.
func (s *PaymentService) persistNewGroup(ctx context.Context, payment *models.Payment, fees []models.PaymentFee) (*models.PaymentFeeLink, error) {
	groupReference, err := s.references.NextReference(ctx, PaymentReferencePrefix)
	if err != nil {
		return nil, err
	}
	paymentReference, err := s.references.NextReference(ctx, PaymentReferencePrefix)
	if err != nil {
		return nil, err
	}

	payment.Reference = paymentReference
	payment.PaymentGroupReference = groupReference
	for i := range fees {
		fees[i].AmountDue = fees[i].CalculatedAmount
	}

	link := &models.PaymentFeeLink{
		PaymentReference: groupReference,
		Fees:             fees,
		Payments:         []models.Payment{*payment},
	}
	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(link).Error
	}); err != nil {
		return nil, fmt.Errorf("failed to persist payment group %s: %w", groupReference, err)
	}
	*payment = link.Payments[0]
	return link, nil
}

// CreatePaymentGroup opens a group from its first attached fees, before any
// payment exists against it.
func (s *PaymentService) CreatePaymentGroup(ctx context.Context, fees []models.PaymentFee) (*models.PaymentFeeLink, error) {
	groupReference, err := s.references.NextReference(ctx, PaymentReferencePrefix)
	if err != nil {
		return nil, err
	}
	for i := range fees {
		fees[i].AmountDue = fees[i].CalculatedAmount
	}
	link := &models.PaymentFeeLink{PaymentReference: groupReference, Fees: fees}
	if err := s.db.WithContext(ctx).Create(link).Error; err != nil {
		return nil, fmt.Errorf("failed to create payment group %s: %w", groupReference, err)
	}
	return link, nil
}

// AttachFees appends fees to an existing group. Attachment order is the
// insertion order, which fixes their apportionment priority.
func (s *PaymentService) AttachFees(ctx context.Context, groupReference string, fees []models.PaymentFee) (*models.PaymentFeeLink, error) {
	var link models.PaymentFeeLink
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("payment_reference = ?", groupReference).
			First(&link).Error; err != nil {
			return fmt.Errorf("failed to load payment group %s: %w", groupReference, err)
		}
		for i := range fees {
			fees[i].PaymentLinkID = link.ID
			fees[i].AmountDue = fees[i].CalculatedAmount
		}
		return tx.Create(&fees).Error
	})
	if err != nil {
		return nil, err
	}
	return s.GetPaymentGroup(ctx, groupReference)
}

// CreateRemission writes off part of one fee in the group, outside the
// apportionment path.
func (s *PaymentService) CreateRemission(ctx context.Context, groupReference string, remission *models.Remission) (*models.Remission, error) {
	var link models.PaymentFeeLink
	if err := s.db.WithContext(ctx).Preload("Fees").
		Where("payment_reference = ?", groupReference).
		First(&link).Error; err != nil {
		return nil, fmt.Errorf("failed to load payment group %s: %w", groupReference, err)
	}

	owned := false
	for _, fee := range link.Fees {
		if fee.ID == remission.FeeID {
			owned = true
			break
		}
	}
	if !owned {
		return nil, fmt.Errorf("fee %d does not belong to payment group %s", remission.FeeID, groupReference)
	}

	reference, err := s.references.NextReference(ctx, RemissionReferencePrefix)
	if err != nil {
		return nil, err
	}
	remission.RemissionReference = reference
	remission.PaymentLinkID = link.ID

	if err := s.apportion.ApplyRemission(ctx, remission); err != nil {
		return nil, err
	}
	return remission, nil
}

// GetPaymentGroup loads a group with its fees and payments.
func (s *PaymentService) GetPaymentGroup(ctx context.Context, groupReference string) (*models.PaymentFeeLink, error) {
	var link models.PaymentFeeLink
	err := s.db.WithContext(ctx).
		Preload("Fees", func(db *gorm.DB) *gorm.DB { return db.Order("payment_fees.id asc") }).
		Preload("Payments").
		Where("payment_reference = ?", groupReference).
		First(&link).Error
	if err != nil {
		return nil, err
	}
	return &link, nil
}

// GetPayment loads a payment by reference with its status history.
func (s *PaymentService) GetPayment(ctx context.Context, reference string) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.WithContext(ctx).
		Preload("StatusHistories").
		Where("reference = ?", reference).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}
