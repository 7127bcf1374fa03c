package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"courtpay_api/internal/models"
)

type fakeStatusLocker struct {
	mu            sync.Mutex
	held          map[string]bool
	releaseCtxErr []error
}

func newFakeStatusLocker() *fakeStatusLocker {
	return &fakeStatusLocker{held: make(map[string]bool)}
}

func (f *fakeStatusLocker) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held[key] {
		return false, nil
	}
	f.held[key] = true
	return true, nil
}

func (f *fakeStatusLocker) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.held, key)
	f.releaseCtxErr = append(f.releaseCtxErr, ctx.Err())
	return nil
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from models.PaymentStatus
		to   models.PaymentStatus
		want bool
	}{
		{models.PaymentStatusCreated, models.PaymentStatusInitiated, true},
		{models.PaymentStatusCreated, models.PaymentStatusCancelled, true},
		{models.PaymentStatusCreated, models.PaymentStatusSuccess, false},
		{models.PaymentStatusInitiated, models.PaymentStatusPending, true},
		{models.PaymentStatusInitiated, models.PaymentStatusSuccess, true},
		{models.PaymentStatusInitiated, models.PaymentStatusError, true},
		{models.PaymentStatusInitiated, models.PaymentStatusCreated, false},
		{models.PaymentStatusPending, models.PaymentStatusSuccess, true},
		{models.PaymentStatusPending, models.PaymentStatusFailed, true},
		{models.PaymentStatusPending, models.PaymentStatusCancelled, false},
		{models.PaymentStatusPending, models.PaymentStatusInitiated, false},
		{models.PaymentStatusError, models.PaymentStatusInitiated, true},
		{models.PaymentStatusError, models.PaymentStatusSuccess, true},
		{models.PaymentStatusSuccess, models.PaymentStatusFailed, false},
		{models.PaymentStatusFailed, models.PaymentStatusSuccess, false},
		{models.PaymentStatusCancelled, models.PaymentStatusInitiated, false},
	}

	for _, tc := range cases {
		if got := canTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("canTransition(%s, %s) = %t, want %t", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestTransitionPaymentAppliesValidMove(t *testing.T) {
	payment := &models.Payment{Reference: "RC-0000-0000-0019", Status: models.PaymentStatusInitiated}
	at := time.Now()

	changed, err := transitionPayment(payment, models.PaymentStatusSuccess, at)
	if err != nil {
		t.Fatalf("transition failed: %v", err)
	}
	if !changed {
		t.Error("changed = false, want true")
	}
	if payment.Status != models.PaymentStatusSuccess {
		t.Errorf("status = %s, want %s", payment.Status, models.PaymentStatusSuccess)
	}
	if payment.StatusUpdatedAt == nil || !payment.StatusUpdatedAt.Equal(at) {
		t.Errorf("status updated at = %v, want %v", payment.StatusUpdatedAt, at)
	}
}

func TestTransitionPaymentSameStatusIsNoOp(t *testing.T) {
	payment := &models.Payment{Reference: "RC-0000-0000-0019", Status: models.PaymentStatusPending}

	changed, err := transitionPayment(payment, models.PaymentStatusPending, time.Now())
	if err != nil {
		t.Fatalf("transition failed: %v", err)
	}
	if changed {
		t.Error("changed = true, want false")
	}
	if payment.StatusUpdatedAt != nil {
		t.Error("status updated at set on no-op")
	}
}

func TestTransitionPaymentTerminalStatesAreLocked(t *testing.T) {
	for _, terminal := range []models.PaymentStatus{
		models.PaymentStatusSuccess,
		models.PaymentStatusFailed,
		models.PaymentStatusCancelled,
	} {
		payment := &models.Payment{Reference: "RC-0000-0000-0019", Status: terminal}

		changed, err := transitionPayment(payment, models.PaymentStatusError, time.Now())
		if err != nil {
			t.Errorf("late report against %s got error %v, want silent no-op", terminal, err)
		}
		if changed {
			t.Errorf("late report against %s changed the payment", terminal)
		}
		if payment.Status != terminal {
			t.Errorf("status moved from terminal %s to %s", terminal, payment.Status)
		}
	}
}

func TestTransitionPaymentRejectsInvalidMove(t *testing.T) {
	payment := &models.Payment{Reference: "RC-0000-0000-0019", Status: models.PaymentStatusPending}

	changed, err := transitionPayment(payment, models.PaymentStatusInitiated, time.Now())
	if changed {
		t.Error("changed = true, want false")
	}

	var invalid *InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("got %v, want InvalidTransitionError", err)
	}
	if invalid.From != models.PaymentStatusPending || invalid.To != models.PaymentStatusInitiated {
		t.Errorf("error carries %s -> %s, want pending -> initiated", invalid.From, invalid.To)
	}
	if payment.Status != models.PaymentStatusPending {
		t.Errorf("status = %s, want unchanged pending", payment.Status)
	}
}

func TestWithStatusLockRejectsConcurrentHolder(t *testing.T) {
	locker := newFakeStatusLocker()
	s := &PaymentStatusService{locks: locker}
	ctx := context.Background()

	err := s.withStatusLock(ctx, "RC-0000-0000-0019", func() error {
		inner := s.withStatusLock(ctx, "RC-0000-0000-0019", func() error { return nil })
		if !errors.Is(inner, ErrConcurrentStatusUpdate) {
			t.Errorf("second holder got %v, want ErrConcurrentStatusUpdate", inner)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("first holder failed: %v", err)
	}

	// released: the reference can be locked again
	if err := s.withStatusLock(ctx, "RC-0000-0000-0019", func() error { return nil }); err != nil {
		t.Errorf("relock after release failed: %v", err)
	}
}

func TestWithStatusLockReleasesAfterCallerCancellation(t *testing.T) {
	locker := newFakeStatusLocker()
	s := &PaymentStatusService{locks: locker}

	ctx, cancel := context.WithCancel(context.Background())
	err := s.withStatusLock(ctx, "RC-0000-0000-0019", func() error {
		cancel()
		return nil
	})
	if err != nil {
		t.Fatalf("locked section failed: %v", err)
	}

	if len(locker.releaseCtxErr) != 1 {
		t.Fatalf("lock released %d times, want 1", len(locker.releaseCtxErr))
	}
	if locker.releaseCtxErr[0] != nil {
		t.Errorf("lock released with a dead context: %v", locker.releaseCtxErr[0])
	}
	if locker.held["payment-status-lock:RC-0000-0000-0019"] {
		t.Error("lock still held after the update finished")
	}
}

func TestTransitionPaymentErrorIsRetryable(t *testing.T) {
	payment := &models.Payment{Reference: "RC-0000-0000-0019", Status: models.PaymentStatusError}

	changed, err := transitionPayment(payment, models.PaymentStatusInitiated, time.Now())
	if err != nil {
		t.Fatalf("retry from error state failed: %v", err)
	}
	if !changed {
		t.Error("changed = false, want true")
	}
	if payment.Status != models.PaymentStatusInitiated {
		t.Errorf("status = %s, want %s", payment.Status, models.PaymentStatusInitiated)
	}
}
