package tasks

import (
	"context"
	"time"

	"gorm.io/gorm"

	"courtpay_api/internal/models"
	"courtpay_api/internal/services"
)

// defaultStaleTTLMinutes is how long a card payment may sit in Created or
// Initiated before the cancellation sweep gives up on it. Provider
// sessions expire server-side on the same horizon.
const defaultStaleTTLMinutes = 90

func newStatusService(db *gorm.DB) *services.PaymentStatusService {
	return services.NewPaymentStatusService(
		db,
		services.NewFeePayApportionService(db),
		services.NewGovPayService(),
		nil,
	)
}

func newPaymentService(db *gorm.DB) *services.PaymentService {
	return services.NewPaymentService(
		db,
		services.NewReferenceService(services.NewGormSequenceAllocator(db)),
		services.NewDuplicatePaymentValidator(services.NewGormPaymentFinder(db)),
		newStatusService(db),
		services.NewFeePayApportionService(db),
		services.NewAccountService(),
		services.NewGormCaseLocker(db),
	)
}

// ReconcilePaymentStatusTaskDef polls the provider for every in-flight
// card and telephony payment and applies the resulting transitions.
type ReconcilePaymentStatusTaskDef struct{}

// TaskID returns the unique identifier for this task
func (t *ReconcilePaymentStatusTaskDef) TaskID() string {
	return "reconcile_payment_status"
}

// HandleExecution runs one reconciliation sweep
func (t *ReconcilePaymentStatusTaskDef) HandleExecution(ctx context.Context, db *gorm.DB, task models.ScheduledTask) (map[string]interface{}, error) {
	updated, err := newStatusService(db).ReconcileInFlight(ctx)
	result := map[string]interface{}{
		"status":  "success",
		"updated": updated,
	}
	if err != nil {
		// poll failures are retried on the next recurrence, but they
		// still land in the task history
		result["status"] = "partial"
		result["error"] = err.Error()
	}
	return result, nil
}

// ReconcilePaymentStatusTask is the singleton instance
var ReconcilePaymentStatusTask = &ReconcilePaymentStatusTaskDef{}

// CancelStalePaymentsTaskDef cancels card payments that never completed
// their provider session.
type CancelStalePaymentsTaskDef struct{}

// TaskID returns the unique identifier for this task
func (t *CancelStalePaymentsTaskDef) TaskID() string {
	return "cancel_stale_payments"
}

// HandleExecution cancels payments older than the configured TTL
func (t *CancelStalePaymentsTaskDef) HandleExecution(ctx context.Context, db *gorm.DB, task models.ScheduledTask) (map[string]interface{}, error) {
	ttlMinutes := defaultStaleTTLMinutes
	if v, ok := task.Arguments["ttl_minutes"].(float64); ok && v > 0 {
		ttlMinutes = int(v)
	}

	cancelled, err := newStatusService(db).CancelStale(ctx, time.Duration(ttlMinutes)*time.Minute)
	result := map[string]interface{}{
		"status":      "success",
		"cancelled":   cancelled,
		"ttl_minutes": ttlMinutes,
	}
	if err != nil {
		result["status"] = "partial"
		result["error"] = err.Error()
	}
	return result, nil
}

// CancelStalePaymentsTask is the singleton instance
var CancelStalePaymentsTask = &CancelStalePaymentsTaskDef{}

// SettlePendingAccountPaymentsTaskDef re-runs the credit check for PBA
// payments parked in Pending by an unreachable account service.
type SettlePendingAccountPaymentsTaskDef struct{}

// TaskID returns the unique identifier for this task
func (t *SettlePendingAccountPaymentsTaskDef) TaskID() string {
	return "settle_pending_account_payments"
}

// HandleExecution settles whatever pending PBA payments it can reach
func (t *SettlePendingAccountPaymentsTaskDef) HandleExecution(ctx context.Context, db *gorm.DB, task models.ScheduledTask) (map[string]interface{}, error) {
	settled, err := newPaymentService(db).SettlePendingAccountPayments(ctx)
	result := map[string]interface{}{
		"status":  "success",
		"settled": settled,
	}
	if err != nil {
		result["status"] = "partial"
		result["error"] = err.Error()
	}
	return result, nil
}

// SettlePendingAccountPaymentsTask is the singleton instance
var SettlePendingAccountPaymentsTask = &SettlePendingAccountPaymentsTaskDef{}
