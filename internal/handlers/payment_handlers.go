package handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"courtpay_api/internal/models"
	"courtpay_api/internal/services"
)

type PaymentHandler struct {
	payments *services.PaymentService
	statuses *services.PaymentStatusService
}

func NewPaymentHandler(payments *services.PaymentService, statuses *services.PaymentStatusService) *PaymentHandler {
	return &PaymentHandler{payments: payments, statuses: statuses}
}

// CreateCardPayment handles POST /card-payments
func (h *PaymentHandler) CreateCardPayment(c echo.Context) error {
	var req CreateCardPaymentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validatePaymentFields(req.Amount, req.CcdCaseNumber, req.CaseReference, req.Fees); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	payment := &models.Payment{
		Amount:        req.Amount.Round(2),
		CcdCaseNumber: strings.TrimSpace(req.CcdCaseNumber),
		CaseReference: strings.TrimSpace(req.CaseReference),
		ServiceType:   strings.TrimSpace(req.Service),
		SiteID:        strings.TrimSpace(req.SiteID),
		Channel:       models.PaymentChannel(req.Channel),
		Description:   req.Description,
	}
	fees := buildFees(req.Fees, payment.CcdCaseNumber, payment.CaseReference)

	link, err := h.payments.CreateCardPayment(c.Request().Context(), payment, fees)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, paymentResponse(payment, link))
}

// CreateCreditAccountPayment handles POST /credit-account-payments
func (h *PaymentHandler) CreateCreditAccountPayment(c echo.Context) error {
	var req CreateCreditAccountPaymentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validatePaymentFields(req.Amount, req.CcdCaseNumber, req.CaseReference, req.Fees); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	if strings.TrimSpace(req.AccountNumber) == "" {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "account_number is required")
	}

	payment := &models.Payment{
		Amount:        req.Amount.Round(2),
		CcdCaseNumber: strings.TrimSpace(req.CcdCaseNumber),
		CaseReference: strings.TrimSpace(req.CaseReference),
		ServiceType:   strings.TrimSpace(req.Service),
		SiteID:        strings.TrimSpace(req.SiteID),
		PbaNumber:     strings.TrimSpace(req.AccountNumber),
		Description:   req.Description,
	}
	fees := buildFees(req.Fees, payment.CcdCaseNumber, payment.CaseReference)

	link, err := h.payments.CreateCreditAccountPayment(c.Request().Context(), payment, fees)
	if err != nil {
		return err
	}

	code := http.StatusCreated
	if payment.Status == models.PaymentStatusFailed {
		// payment recorded but rejected by the account service
		code = http.StatusForbidden
	}
	return c.JSON(code, paymentResponse(payment, link))
}

// GetPayment handles GET /payments/:reference
func (h *PaymentHandler) GetPayment(c echo.Context) error {
	reference := c.Param("reference")
	if !services.ValidateReference(reference) {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed payment reference")
	}

	payment, err := h.payments.GetPayment(c.Request().Context(), reference)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, paymentResponse(payment, nil))
}

// UpdatePaymentStatus handles PATCH /payments/:reference/status. Telephony
// and bulk-scan providers report terminal states through this endpoint.
func (h *PaymentHandler) UpdatePaymentStatus(c echo.Context) error {
	reference := c.Param("reference")
	if !services.ValidateReference(reference) {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed payment reference")
	}

	var req UpdateStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Status == "" {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "status is required")
	}

	if err := h.statuses.AdvanceStatus(c.Request().Context(), reference, req.Status); err != nil {
		return err
	}

	payment, err := h.payments.GetPayment(c.Request().Context(), reference)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, paymentResponse(payment, nil))
}

// paymentResponse shapes a payment for the wire
func paymentResponse(payment *models.Payment, link *models.PaymentFeeLink) map[string]interface{} {
	resp := map[string]interface{}{
		"reference":               payment.Reference,
		"payment_group_reference": payment.PaymentGroupReference,
		"amount":                  payment.Amount,
		"status":                  payment.Status,
		"service":                 payment.ServiceType,
		"site_id":                 payment.SiteID,
		"ccd_case_number":         payment.CcdCaseNumber,
		"case_reference":          payment.CaseReference,
		"channel":                 payment.Channel,
		"provider":                payment.Provider,
		"method":                  payment.Method,
		"date_created":            payment.CreatedAt,
		"status_updated_at":       payment.StatusUpdatedAt,
	}
	if payment.PbaNumber != "" {
		resp["account_number"] = payment.PbaNumber
	}
	if len(payment.StatusHistories) > 0 {
		resp["status_histories"] = payment.StatusHistories
	}
	if link != nil {
		resp["fees"] = link.Fees
	}
	return resp
}
