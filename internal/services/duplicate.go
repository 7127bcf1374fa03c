package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"courtpay_api/internal/models"
)

// duplicateWindow bounds how far back the validator searches for an
// equivalent payment. The window is a trade-off: wide enough to catch
// double-clicks and client retries, narrow enough that a genuine repeat
// payment on the same case eventually goes through.
const duplicateWindow = 24 * time.Hour

// ErrMissingCaseIdentifier is returned when a payment carries neither a
// CCD case number nor a case reference.
var ErrMissingCaseIdentifier = errors.New("payment requires a ccd case number or case reference")

// DuplicatePaymentError rejects a payment request equivalent to one already
// accepted. Raised before any provider call is made.
type DuplicatePaymentError struct {
	Reference string // reference of the earlier, matching payment
}

func (e *DuplicatePaymentError) Error() string {
	return fmt.Sprintf("duplicate of payment %s submitted within the last %s", e.Reference, duplicateWindow)
}

// CandidatePayment is an existing payment with the fees of its group,
// as returned by the lookup collaborator.
type CandidatePayment struct {
	Payment models.Payment
	Fees    []models.PaymentFee
}

// RecentPaymentFinder looks up payments sharing a case identifier created
// since the given cut-off. Reads only; may be retried freely.
type RecentPaymentFinder interface {
	RecentPaymentsByCase(ctx context.Context, caseID string, since time.Time) ([]CandidatePayment, error)
}

// GormPaymentFinder is the database-backed RecentPaymentFinder.
type GormPaymentFinder struct {
	db *gorm.DB
}

func NewGormPaymentFinder(db *gorm.DB) *GormPaymentFinder {
	return &GormPaymentFinder{db: db}
}

func (f *GormPaymentFinder) RecentPaymentsByCase(ctx context.Context, caseID string, since time.Time) ([]CandidatePayment, error) {
	var payments []models.Payment
	err := f.db.WithContext(ctx).
		Where("(ccd_case_number = ? OR case_reference = ?) AND created_at >= ?", caseID, caseID, since).
		Find(&payments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query recent payments for case %s: %w", caseID, err)
	}
	if len(payments) == 0 {
		return nil, nil
	}

	linkIDs := make([]uint, 0, len(payments))
	for _, p := range payments {
		linkIDs = append(linkIDs, p.PaymentLinkID)
	}

	var fees []models.PaymentFee
	if err := f.db.WithContext(ctx).Where("payment_link_id IN ?", linkIDs).Order("id asc").Find(&fees).Error; err != nil {
		return nil, fmt.Errorf("failed to load fees for case %s: %w", caseID, err)
	}

	feesByLink := make(map[uint][]models.PaymentFee)
	for _, fee := range fees {
		feesByLink[fee.PaymentLinkID] = append(feesByLink[fee.PaymentLinkID], fee)
	}

	candidates := make([]CandidatePayment, 0, len(payments))
	for _, p := range payments {
		candidates = append(candidates, CandidatePayment{Payment: p, Fees: feesByLink[p.PaymentLinkID]})
	}
	return candidates, nil
}

// DuplicatePaymentValidator gates new payment requests against equivalent
// recent ones. Two legitimate payments for the same case and fee set inside
// the window are indistinguishable from a double submission; the validator
// rejects both rather than risk a double charge.
type DuplicatePaymentValidator struct {
	finder RecentPaymentFinder
	now    func() time.Time
}

func NewDuplicatePaymentValidator(finder RecentPaymentFinder) *DuplicatePaymentValidator {
	return &DuplicatePaymentValidator{finder: finder, now: time.Now}
}

// CheckDuplicate returns a *DuplicatePaymentError when a non-failed payment
// with an identical fingerprint exists inside the window, nil otherwise.
func (v *DuplicatePaymentValidator) CheckDuplicate(ctx context.Context, payment *models.Payment, fees []models.PaymentFee) error {
	caseID := strings.TrimSpace(payment.CaseIdentifier())
	if caseID == "" {
		return ErrMissingCaseIdentifier
	}

	candidates, err := v.finder.RecentPaymentsByCase(ctx, caseID, v.now().Add(-duplicateWindow))
	if err != nil {
		return err
	}

	fingerprint := paymentFingerprint(payment, fees)
	for _, candidate := range candidates {
		switch candidate.Payment.Status {
		case models.PaymentStatusInitiated, models.PaymentStatusPending, models.PaymentStatusSuccess:
		default:
			continue
		}
		if paymentFingerprint(&candidate.Payment, candidate.Fees) == fingerprint {
			return &DuplicatePaymentError{Reference: candidate.Payment.Reference}
		}
	}
	return nil
}

// paymentFingerprint canonicalizes the fields that identify an equivalent
// submission: case, amount at two decimal places, service, site, and the
// sorted fee code/amount pairs. Fee order and string whitespace do not
// change the fingerprint.
func paymentFingerprint(payment *models.Payment, fees []models.PaymentFee) string {
	feeParts := make([]string, 0, len(fees))
	for _, fee := range fees {
		feeParts = append(feeParts, strings.TrimSpace(fee.Code)+":"+fee.CalculatedAmount.StringFixed(2))
	}
	sort.Strings(feeParts)

	return strings.Join([]string{
		strings.TrimSpace(payment.CaseIdentifier()),
		payment.Amount.StringFixed(2),
		strings.TrimSpace(payment.ServiceType),
		strings.TrimSpace(payment.SiteID),
		strings.Join(feeParts, "|"),
	}, "#")
}
