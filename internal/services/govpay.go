package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"courtpay_api/internal/models"
)

// GovPayService is the card-gateway status client. It only reads: session
// creation and capture happen on the provider's side, this service maps the
// provider's view of a payment back onto the internal status enum.
type GovPayService struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewGovPayService() *GovPayService {
	url := os.Getenv("GOVPAY_BASE_URL")
	if url == "" {
		url = "https://publicapi.payments.service.gov.uk"
	}
	return &GovPayService{
		baseURL: url,
		apiKey:  os.Getenv("GOVPAY_API_KEY"),
		client:  &http.Client{},
	}
}

type govPayState struct {
	Status   string `json:"status"`
	Finished bool   `json:"finished"`
	Code     string `json:"code"`
	Message  string `json:"message"`
}

type govPayPayment struct {
	PaymentID string      `json:"payment_id"`
	Reference string      `json:"reference"`
	State     govPayState `json:"state"`
}

// PaymentStatus polls the provider for one payment reference.
func (s *GovPayService) PaymentStatus(ctx context.Context, reference string) (*ProviderPaymentState, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/v1/payments/%s", s.baseURL, reference), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to poll payment %s: %w", reference, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("provider returned status %d for %s: %s", resp.StatusCode, reference, string(body))
	}

	var payment govPayPayment
	if err := json.NewDecoder(resp.Body).Decode(&payment); err != nil {
		return nil, fmt.Errorf("failed to decode provider response for %s: %w", reference, err)
	}

	return &ProviderPaymentState{
		Status:   mapGovPayStatus(payment.State.Status),
		Finished: payment.State.Finished,
		Code:     payment.State.Code,
		Message:  payment.State.Message,
	}, nil
}

// mapGovPayStatus translates the provider's state strings. Anything the
// gateway does not recognize counts as a transient Error and is re-polled.
func mapGovPayStatus(status string) models.PaymentStatus {
	switch status {
	case "created", "started", "submitted":
		return models.PaymentStatusInitiated
	case "capturable":
		return models.PaymentStatusPending
	case "success":
		return models.PaymentStatusSuccess
	case "failed", "declined":
		return models.PaymentStatusFailed
	case "cancelled":
		return models.PaymentStatusCancelled
	default:
		return models.PaymentStatusError
	}
}
