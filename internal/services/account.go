package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/shopspring/decimal"
)

// AccountStatus is the state of a payment-by-account (PBA) account as
// reported by the account service.
type AccountStatus string

const (
	AccountStatusActive  AccountStatus = "ACTIVE"
	AccountStatusOnHold  AccountStatus = "ON-HOLD"
	AccountStatusDeleted AccountStatus = "DELETED"
)

// AccountInfo is the credit-check view of a PBA account.
type AccountInfo struct {
	AccountNumber    string          `json:"account_number"`
	AccountName      string          `json:"account_name"`
	Status           AccountStatus   `json:"status"`
	CreditLimit      decimal.Decimal `json:"credit_limit"`
	AvailableBalance decimal.Decimal `json:"available_balance"`
}

// AccountLookup is the collaborator the credit-account flow uses for its
// synchronous credit check.
type AccountLookup interface {
	Account(ctx context.Context, pbaNumber string) (*AccountInfo, error)
}

// AccountService is the HTTP client for the external account service.
type AccountService struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewAccountService() *AccountService {
	url := os.Getenv("ACCOUNT_SERVICE_BASE_URL")
	if url == "" {
		url = "http://account-service:8080"
	}
	return &AccountService{
		baseURL: url,
		apiKey:  os.Getenv("ACCOUNT_SERVICE_API_KEY"),
		client:  &http.Client{},
	}
}

// Account fetches the current balance and status for one PBA account.
func (s *AccountService) Account(ctx context.Context, pbaNumber string) (*AccountInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/accounts/%s", s.baseURL, pbaNumber), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Api-Key", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to look up account %s: %w", pbaNumber, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("account service returned status %d for %s: %s", resp.StatusCode, pbaNumber, string(body))
	}

	var info AccountInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode account %s: %w", pbaNumber, err)
	}
	return &info, nil
}
