package handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"courtpay_api/internal/models"
	"courtpay_api/internal/services"
)

type PaymentGroupHandler struct {
	payments *services.PaymentService
}

func NewPaymentGroupHandler(payments *services.PaymentService) *PaymentGroupHandler {
	return &PaymentGroupHandler{payments: payments}
}

// CreatePaymentGroup handles POST /payment-groups: a group opened from its
// first fees, ahead of any payment.
func (h *PaymentGroupHandler) CreatePaymentGroup(c echo.Context) error {
	var req AttachFeesRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validateFees(req.Fees); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	link, err := h.payments.CreatePaymentGroup(c.Request().Context(), buildFees(req.Fees, "", ""))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, link)
}

// AttachFees handles PUT /payment-groups/:reference/fees
func (h *PaymentGroupHandler) AttachFees(c echo.Context) error {
	reference := c.Param("reference")
	if !services.ValidateReference(reference) {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed group reference")
	}

	var req AttachFeesRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validateFees(req.Fees); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	link, err := h.payments.AttachFees(c.Request().Context(), reference, buildFees(req.Fees, "", ""))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, link)
}

// GetPaymentGroup handles GET /payment-groups/:reference
func (h *PaymentGroupHandler) GetPaymentGroup(c echo.Context) error {
	reference := c.Param("reference")
	if !services.ValidateReference(reference) {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed group reference")
	}

	link, err := h.payments.GetPaymentGroup(c.Request().Context(), reference)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, link)
}

// CreateRemission handles POST /payment-groups/:reference/remissions
func (h *PaymentGroupHandler) CreateRemission(c echo.Context) error {
	reference := c.Param("reference")
	if !services.ValidateReference(reference) {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed group reference")
	}

	var req RemissionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.FeeID == 0 {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "fee_id is required")
	}
	if !req.HwfAmount.IsPositive() {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "hwf_amount must be greater than zero")
	}
	if strings.TrimSpace(req.HwfReference) == "" {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "hwf_reference is required")
	}

	remission := &models.Remission{
		FeeID:           req.FeeID,
		HwfReference:    strings.TrimSpace(req.HwfReference),
		HwfAmount:       req.HwfAmount.Round(2),
		BeneficiaryName: req.BeneficiaryName,
		CcdCaseNumber:   strings.TrimSpace(req.CcdCaseNumber),
		CaseReference:   strings.TrimSpace(req.CaseReference),
	}

	created, err := h.payments.CreateRemission(c.Request().Context(), reference, remission)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, created)
}
