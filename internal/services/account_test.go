package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAccountLookup(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/accounts/PBA0012345" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if key := r.Header.Get("X-Api-Key"); key != "test-key" {
			t.Errorf("unexpected api key %q", key)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"account_number": "PBA0012345",
			"account_name": "Smith & Co Solicitors",
			"status": "ACTIVE",
			"credit_limit": "5000.00",
			"available_balance": "1250.50"
		}`))
	}))
	defer server.Close()

	svc := &AccountService{baseURL: server.URL, apiKey: "test-key", client: server.Client()}

	info, err := svc.Account(context.Background(), "PBA0012345")
	if err != nil {
		t.Fatalf("Account failed: %v", err)
	}
	if info.Status != AccountStatusActive {
		t.Errorf("status = %s, want %s", info.Status, AccountStatusActive)
	}
	if !info.AvailableBalance.Equal(dec(t, "1250.50")) {
		t.Errorf("available balance = %s, want 1250.50", info.AvailableBalance)
	}
}

func TestAccountLookupServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "account service unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	svc := &AccountService{baseURL: server.URL, apiKey: "test-key", client: server.Client()}

	if _, err := svc.Account(context.Background(), "PBA0012345"); err == nil {
		t.Error("503 from account service returned no error")
	}
}
