package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"courtpay_api/internal/services"
)

type MaintenanceHandler struct {
	statuses *services.PaymentStatusService
}

func NewMaintenanceHandler(statuses *services.PaymentStatusService) *MaintenanceHandler {
	return &MaintenanceHandler{statuses: statuses}
}

// UpdateCardPaymentStatuses handles PATCH /jobs/card-payments-status-update.
// Same sweep the worker runs, exposed for operator-triggered runs.
func (h *MaintenanceHandler) UpdateCardPaymentStatuses(c echo.Context) error {
	updated, err := h.statuses.ReconcileInFlight(c.Request().Context())
	if err != nil {
		// partial progress still gets reported
		return c.JSON(http.StatusOK, map[string]interface{}{
			"updated": updated,
			"error":   err.Error(),
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"updated": updated})
}
