package services

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"courtpay_api/internal/models"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

func testFee(t *testing.T, id uint, code, due string) *models.PaymentFee {
	t.Helper()
	amount := dec(t, due)
	return &models.PaymentFee{
		ID:               id,
		Code:             code,
		CalculatedAmount: amount,
		AmountDue:        amount,
		CcdCaseNumber:    "1111222233334444",
	}
}

func TestApportionFeesFullySettled(t *testing.T) {
	fees := []*models.PaymentFee{
		testFee(t, 1, "FEE0001", "20"),
		testFee(t, 2, "FEE0002", "40"),
		testFee(t, 3, "FEE0003", "60"),
	}

	result := apportionFees(dec(t, "120"), fees)

	if result.Outcome != OutcomeFullySettled {
		t.Errorf("outcome = %s, want %s", result.Outcome, OutcomeFullySettled)
	}
	if !result.Surplus.IsZero() {
		t.Errorf("surplus = %s, want 0", result.Surplus)
	}
	for _, fee := range fees {
		if !fee.AmountDue.IsZero() {
			t.Errorf("fee %s amount due = %s, want 0", fee.Code, fee.AmountDue)
		}
	}
	if len(result.Allocations) != 3 {
		t.Errorf("allocations = %d, want 3", len(result.Allocations))
	}
}

func TestApportionFeesShortfall(t *testing.T) {
	fees := []*models.PaymentFee{
		testFee(t, 1, "FEE0001", "30"),
		testFee(t, 2, "FEE0002", "40"),
		testFee(t, 3, "FEE0003", "60"),
	}

	result := apportionFees(dec(t, "120"), fees)

	if result.Outcome != OutcomeShortfallSettled {
		t.Errorf("outcome = %s, want %s", result.Outcome, OutcomeShortfallSettled)
	}
	if !result.Surplus.IsZero() {
		t.Errorf("surplus = %s, want 0", result.Surplus)
	}
	wantDue := []string{"0", "0", "10"}
	for i, fee := range fees {
		if !fee.AmountDue.Equal(dec(t, wantDue[i])) {
			t.Errorf("fee %s amount due = %s, want %s", fee.Code, fee.AmountDue, wantDue[i])
		}
	}
}

func TestApportionFeesSurplusLandsOnLastFee(t *testing.T) {
	fees := []*models.PaymentFee{
		testFee(t, 1, "FEE0001", "10"),
		testFee(t, 2, "FEE0002", "40"),
		testFee(t, 3, "FEE0003", "60"),
	}

	result := apportionFees(dec(t, "120"), fees)

	if result.Outcome != OutcomeSurplusSettled {
		t.Errorf("outcome = %s, want %s", result.Outcome, OutcomeSurplusSettled)
	}
	if !result.Surplus.Equal(dec(t, "10")) {
		t.Errorf("surplus = %s, want 10", result.Surplus)
	}
	if !fees[2].AmountDue.Equal(dec(t, "-10")) {
		t.Errorf("last fee amount due = %s, want -10", fees[2].AmountDue)
	}
	last, ok := allocationFor(result, 3)
	if !ok {
		t.Fatal("last fee has no allocation")
	}
	if !last.Apportioned.Equal(dec(t, "70")) {
		t.Errorf("last fee apportioned = %s, want 70", last.Apportioned)
	}
}

func TestApportionFeesConservesMoney(t *testing.T) {
	cases := []struct {
		name   string
		amount string
		dues   []string
	}{
		{"exact", "120", []string{"20", "40", "60"}},
		{"short", "120", []string{"30", "40", "60"}},
		{"over", "120", []string{"10", "40", "60"}},
		{"penny amounts", "33.33", []string{"11.11", "11.11", "11.11"}},
		{"single fee overpaid", "500", []string{"215.50"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fees := make([]*models.PaymentFee, len(tc.dues))
			for i, due := range tc.dues {
				fees[i] = testFee(t, uint(i+1), "FEE", due)
			}

			result := apportionFees(dec(t, tc.amount), fees)

			total := decimal.Zero
			for _, allocation := range result.Allocations {
				total = total.Add(allocation.Apportioned)
			}
			if !total.Equal(dec(t, tc.amount)) {
				t.Errorf("allocated %s of payment %s", total, tc.amount)
			}
		})
	}
}

func TestApportionFeesSkipsCreditFees(t *testing.T) {
	fees := []*models.PaymentFee{
		testFee(t, 1, "FEE0001", "-5"),
		testFee(t, 2, "FEE0002", "40"),
	}

	result := apportionFees(dec(t, "40"), fees)

	if result.Outcome != OutcomeFullySettled {
		t.Errorf("outcome = %s, want %s", result.Outcome, OutcomeFullySettled)
	}
	if !fees[0].AmountDue.Equal(dec(t, "-5")) {
		t.Errorf("credit fee amount due = %s, want -5 untouched", fees[0].AmountDue)
	}
	if _, ok := allocationFor(result, 1); ok {
		t.Error("credit fee received an allocation")
	}
	if !fees[1].AmountDue.IsZero() {
		t.Errorf("second fee amount due = %s, want 0", fees[1].AmountDue)
	}
}

func TestApportionFeesSurplusOnCreditLastFee(t *testing.T) {
	fees := []*models.PaymentFee{
		testFee(t, 1, "FEE0001", "30"),
		testFee(t, 2, "FEE0002", "-5"),
	}

	result := apportionFees(dec(t, "50"), fees)

	if result.Outcome != OutcomeSurplusSettled {
		t.Errorf("outcome = %s, want %s", result.Outcome, OutcomeSurplusSettled)
	}
	if !result.Surplus.Equal(dec(t, "20")) {
		t.Errorf("surplus = %s, want 20", result.Surplus)
	}
	if !fees[1].AmountDue.Equal(dec(t, "-25")) {
		t.Errorf("last fee amount due = %s, want -25", fees[1].AmountDue)
	}
}

func TestApportionFeesZeroDueGetsNoAllocation(t *testing.T) {
	fees := []*models.PaymentFee{
		testFee(t, 1, "FEE0001", "0"),
		testFee(t, 2, "FEE0002", "25"),
	}

	result := apportionFees(dec(t, "25"), fees)

	if _, ok := allocationFor(result, 1); ok {
		t.Error("zero-due fee received an allocation")
	}
	if result.Outcome != OutcomeFullySettled {
		t.Errorf("outcome = %s, want %s", result.Outcome, OutcomeFullySettled)
	}
}

func TestEnsureApportionable(t *testing.T) {
	payment := &models.Payment{Reference: "RC-0000-0000-0019", Status: models.PaymentStatusPending}

	var notSettled *PaymentNotSettledError
	if err := ensureApportionable(payment); !errors.As(err, &notSettled) {
		t.Fatalf("non-success payment got %v, want PaymentNotSettledError", err)
	}
	if notSettled.Status != models.PaymentStatusPending {
		t.Errorf("error carries status %s, want pending", notSettled.Status)
	}

	payment.Status = models.PaymentStatusSuccess
	payment.Apportioned = true
	if err := ensureApportionable(payment); !errors.Is(err, ErrAlreadyApportioned) {
		t.Errorf("apportioned payment got %v, want ErrAlreadyApportioned", err)
	}

	payment.Apportioned = false
	if err := ensureApportionable(payment); err != nil {
		t.Errorf("settled unapportioned payment got %v, want nil", err)
	}
}

func TestValidateFeeSet(t *testing.T) {
	payment := &models.Payment{
		Reference:     "RC-0000-0000-0019",
		CcdCaseNumber: "1111222233334444",
	}

	var inconsistent *InconsistentFeeSetError
	if err := validateFeeSet(payment, nil); !errors.As(err, &inconsistent) {
		t.Errorf("empty fee set got %v, want InconsistentFeeSetError", err)
	}

	fees := []*models.PaymentFee{
		testFee(t, 1, "FEE0001", "10"),
		testFee(t, 2, "FEE0002", "20"),
	}
	if err := validateFeeSet(payment, fees); err != nil {
		t.Errorf("matching fee set got %v, want nil", err)
	}

	fees[1].CcdCaseNumber = "9999888877776666"
	if err := validateFeeSet(payment, fees); !errors.As(err, &inconsistent) {
		t.Errorf("mismatched case got %v, want InconsistentFeeSetError", err)
	}
}
