package handlers

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestValidatePaymentFields(t *testing.T) {
	fees := []FeeRequest{{Code: "FEE0001", CalculatedAmount: decimal.NewFromInt(100)}}

	cases := []struct {
		name    string
		amount  decimal.Decimal
		ccd     string
		caseRef string
		fees    []FeeRequest
		wantErr bool
	}{
		{"valid with ccd", decimal.NewFromInt(100), "1111222233334444", "", fees, false},
		{"valid with case reference", decimal.NewFromInt(100), "", "CASE-42", fees, false},
		{"zero amount", decimal.Zero, "1111222233334444", "", fees, true},
		{"negative amount", decimal.NewFromInt(-5), "1111222233334444", "", fees, true},
		{"no case identifier", decimal.NewFromInt(100), "  ", "", fees, true},
		{"no fees", decimal.NewFromInt(100), "1111222233334444", "", nil, true},
		{"fee without code", decimal.NewFromInt(100), "1111222233334444", "",
			[]FeeRequest{{CalculatedAmount: decimal.NewFromInt(100)}}, true},
		{"fee with zero amount", decimal.NewFromInt(100), "1111222233334444", "",
			[]FeeRequest{{Code: "FEE0001"}}, true},
		{"fee with negative volume", decimal.NewFromInt(100), "1111222233334444", "",
			[]FeeRequest{{Code: "FEE0001", CalculatedAmount: decimal.NewFromInt(100), Volume: -1}}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validatePaymentFields(tc.amount, tc.ccd, tc.caseRef, tc.fees)
			if (err != nil) != tc.wantErr {
				t.Errorf("got err %v, wantErr %t", err, tc.wantErr)
			}
		})
	}
}

func TestBuildFees(t *testing.T) {
	amount, _ := decimal.NewFromString("50.005")
	fees := buildFees([]FeeRequest{
		{Code: " FEE0001 ", CalculatedAmount: amount},
		{Code: "FEE0002", CalculatedAmount: decimal.NewFromInt(30), Volume: 3, CcdCaseNumber: "9999000011112222"},
	}, "1111222233334444", "CASE-42")

	if fees[0].Code != "FEE0001" {
		t.Errorf("code = %q, want trimmed FEE0001", fees[0].Code)
	}
	if fees[0].Volume != 1 {
		t.Errorf("volume = %d, want default 1", fees[0].Volume)
	}
	if want, _ := decimal.NewFromString("50.01"); !fees[0].CalculatedAmount.Equal(want) {
		t.Errorf("calculated amount = %s, want rounded 50.01", fees[0].CalculatedAmount)
	}
	if fees[0].CcdCaseNumber != "1111222233334444" || fees[0].CaseReference != "CASE-42" {
		t.Errorf("fee without case context did not inherit from the payment: %q / %q",
			fees[0].CcdCaseNumber, fees[0].CaseReference)
	}

	if fees[1].Volume != 3 {
		t.Errorf("volume = %d, want 3", fees[1].Volume)
	}
	if fees[1].CcdCaseNumber != "9999000011112222" {
		t.Errorf("fee with its own case number was overwritten: %q", fees[1].CcdCaseNumber)
	}
	if fees[1].CaseReference != "" {
		t.Errorf("fee with its own case number inherited case reference %q", fees[1].CaseReference)
	}
}
