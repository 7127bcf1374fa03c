package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"courtpay_api/internal/models"
)

// statusLockTTL bounds how long a per-payment reconciliation lock is held
// when a worker dies mid-pass.
const statusLockTTL = 30 * time.Second

// ErrConcurrentStatusUpdate is returned when another worker holds the
// reconciliation lock for the same payment reference.
var ErrConcurrentStatusUpdate = errors.New("another status update is in flight for this payment")

// InvalidTransitionError rejects a status change the state machine does
// not allow.
type InvalidTransitionError struct {
	Reference string
	From      models.PaymentStatus
	To        models.PaymentStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("payment %s cannot move from %s to %s", e.Reference, e.From, e.To)
}

// paymentStatusTransitions is the full transition table. Terminal states
// have no entries: once reached they are locked. Error is retryable and
// may fall back to Initiated on the next poll.
var paymentStatusTransitions = map[models.PaymentStatus][]models.PaymentStatus{
	models.PaymentStatusCreated:   {models.PaymentStatusInitiated, models.PaymentStatusCancelled},
	models.PaymentStatusInitiated: {models.PaymentStatusPending, models.PaymentStatusSuccess, models.PaymentStatusFailed, models.PaymentStatusCancelled, models.PaymentStatusError},
	models.PaymentStatusPending:   {models.PaymentStatusSuccess, models.PaymentStatusFailed, models.PaymentStatusError},
	models.PaymentStatusError:     {models.PaymentStatusInitiated, models.PaymentStatusSuccess, models.PaymentStatusFailed, models.PaymentStatusCancelled},
}

func canTransition(from, to models.PaymentStatus) bool {
	for _, allowed := range paymentStatusTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// ProviderPaymentState is the provider's view of a payment, mapped to the
// internal status enum by the provider client.
type ProviderPaymentState struct {
	Status   models.PaymentStatus
	Finished bool
	Code     string
	Message  string
}

// ProviderStatusClient returns the latest known provider status for a
// payment reference. Reads only; retried freely by the reconciler.
type ProviderStatusClient interface {
	PaymentStatus(ctx context.Context, reference string) (*ProviderPaymentState, error)
}

// statusLocker is the subset of RedisCache backing the per-payment
// reconciliation lock.
type statusLocker interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
}

// PaymentStatusService enforces the payment state machine: terminal states
// are never overwritten, and a transition into Success triggers
// apportionment exactly once.
type PaymentStatusService struct {
	db        *gorm.DB
	apportion *FeePayApportionService
	provider  ProviderStatusClient
	locks     statusLocker // optional; serializes pollers across instances
}

func NewPaymentStatusService(db *gorm.DB, apportion *FeePayApportionService, provider ProviderStatusClient, cache *RedisCache) *PaymentStatusService {
	s := &PaymentStatusService{db: db, apportion: apportion, provider: provider}
	if cache != nil {
		s.locks = cache
	}
	return s
}

// AdvanceStatus applies one externally driven status transition. The status
// write, the history row and, on Success, the apportionment pass commit as
// one transaction over a locked payment row. A late poll against a terminal
// payment is a no-op.
func (s *PaymentStatusService) AdvanceStatus(ctx context.Context, reference string, newStatus models.PaymentStatus) error {
	return s.advanceStatus(ctx, reference, newStatus, "", "")
}

// AdvanceStatusWithDetail is AdvanceStatus carrying a provider or account
// error code into the status history.
func (s *PaymentStatusService) AdvanceStatusWithDetail(ctx context.Context, reference string, newStatus models.PaymentStatus, errorCode, errorMessage string) error {
	return s.advanceStatus(ctx, reference, newStatus, errorCode, errorMessage)
}

// withStatusLock holds the cross-instance lock for one payment reference
// around fn. The release uses a context that survives the caller's
// cancellation, otherwise an abandoned request would leave the lock in
// place for the full TTL.
func (s *PaymentStatusService) withStatusLock(ctx context.Context, reference string, fn func() error) error {
	if s.locks == nil {
		return fn()
	}

	key := "payment-status-lock:" + reference
	acquired, err := s.locks.SetNX(ctx, key, uuid.NewString(), statusLockTTL)
	if err == nil && !acquired {
		return ErrConcurrentStatusUpdate
	}
	if err == nil {
		defer func() {
			_ = s.locks.Delete(context.WithoutCancel(ctx), key)
		}()
	}
	return fn()
}

func (s *PaymentStatusService) advanceStatus(ctx context.Context, reference string, newStatus models.PaymentStatus, errorCode, errorMessage string) error {
	return s.withStatusLock(ctx, reference, func() error {
		return s.applyStatus(ctx, reference, newStatus, errorCode, errorMessage)
	})
}

func (s *PaymentStatusService) applyStatus(ctx context.Context, reference string, newStatus models.PaymentStatus, errorCode, errorMessage string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var payment models.Payment
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("reference = ?", reference).
			First(&payment).Error; err != nil {
			return fmt.Errorf("failed to load payment %s: %w", reference, err)
		}

		changed, err := transitionPayment(&payment, newStatus, time.Now())
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}

		if err := tx.Model(&models.Payment{}).Where("id = ?", payment.ID).Updates(map[string]interface{}{
			"status":            payment.Status,
			"status_updated_at": payment.StatusUpdatedAt,
		}).Error; err != nil {
			return fmt.Errorf("failed to update status of payment %s: %w", reference, err)
		}

		history := models.PaymentStatusHistory{
			PaymentID:    payment.ID,
			Status:       newStatus,
			ErrorCode:    errorCode,
			ErrorMessage: errorMessage,
		}
		if err := tx.Create(&history).Error; err != nil {
			return fmt.Errorf("failed to record status history for payment %s: %w", reference, err)
		}

		if newStatus == models.PaymentStatusSuccess && !payment.Apportioned {
			if _, err := s.apportion.ApportionInTx(tx, &payment); err != nil {
				return err
			}
		}
		return nil
	})
}

// transitionPayment applies the state machine to an in-memory payment.
// Returns false when the transition is an idempotent no-op: same status
// again, or any report arriving after a terminal state.
func transitionPayment(payment *models.Payment, newStatus models.PaymentStatus, at time.Time) (bool, error) {
	if payment.Status == newStatus {
		return false, nil
	}
	if payment.Status.IsTerminal() {
		return false, nil
	}
	if !canTransition(payment.Status, newStatus) {
		return false, &InvalidTransitionError{Reference: payment.Reference, From: payment.Status, To: newStatus}
	}
	payment.Status = newStatus
	payment.StatusUpdatedAt = &at
	return true, nil
}

// ReconcileInFlight polls the provider for every card and telephony payment
// still in a non-terminal state and applies the resulting transitions.
// Returns the number of payments whose status changed. Poll failures are
// collected and retried on the next sweep.
func (s *PaymentStatusService) ReconcileInFlight(ctx context.Context) (int, error) {
	var payments []models.Payment
	err := s.db.WithContext(ctx).
		Where("status IN ?", []models.PaymentStatus{models.PaymentStatusCreated, models.PaymentStatusInitiated, models.PaymentStatusError}).
		Where("channel IN ?", []models.PaymentChannel{models.PaymentChannelOnline, models.PaymentChannelTelephony}).
		Where("provider <> ?", models.PaymentProviderByAccount).
		Find(&payments).Error
	if err != nil {
		return 0, fmt.Errorf("failed to list in-flight payments: %w", err)
	}

	updated := 0
	var errs []error
	for _, payment := range payments {
		if ctx.Err() != nil {
			break
		}

		state, err := s.provider.PaymentStatus(ctx, payment.Reference)
		if err != nil {
			errs = append(errs, fmt.Errorf("poll %s: %w", payment.Reference, err))
			continue
		}
		if state.Status == payment.Status {
			continue
		}

		err = s.advanceStatus(ctx, payment.Reference, state.Status, state.Code, state.Message)
		switch {
		case err == nil:
			updated++
		case errors.Is(err, ErrConcurrentStatusUpdate):
			// another instance owns this reference right now
		default:
			errs = append(errs, fmt.Errorf("advance %s: %w", payment.Reference, err))
		}
	}

	if len(errs) > 0 {
		log.Printf("Reconciliation pass updated %d payments with %d failures", updated, len(errs))
	}
	return updated, errors.Join(errs...)
}

// CancelStale cancels card payments that never left Created or Initiated
// within ttl. Provider sessions expire server-side on the same horizon.
func (s *PaymentStatusService) CancelStale(ctx context.Context, ttl time.Duration) (int, error) {
	var payments []models.Payment
	err := s.db.WithContext(ctx).
		Where("status IN ?", []models.PaymentStatus{models.PaymentStatusCreated, models.PaymentStatusInitiated}).
		Where("channel IN ?", []models.PaymentChannel{models.PaymentChannelOnline, models.PaymentChannelTelephony}).
		Where("provider <> ?", models.PaymentProviderByAccount).
		Where("created_at < ?", time.Now().Add(-ttl)).
		Find(&payments).Error
	if err != nil {
		return 0, fmt.Errorf("failed to list stale payments: %w", err)
	}

	cancelled := 0
	var errs []error
	for _, payment := range payments {
		if err := s.advanceStatus(ctx, payment.Reference, models.PaymentStatusCancelled, "", "session expired"); err != nil {
			if !errors.Is(err, ErrConcurrentStatusUpdate) {
				errs = append(errs, fmt.Errorf("cancel %s: %w", payment.Reference, err))
			}
			continue
		}
		cancelled++
	}
	return cancelled, errors.Join(errs...)
}
