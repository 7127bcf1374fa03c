package models

// PaymentStatus represents the lifecycle state of a payment
type PaymentStatus string

const (
	PaymentStatusCreated   PaymentStatus = "created"
	PaymentStatusInitiated PaymentStatus = "initiated"
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusSuccess   PaymentStatus = "success"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusCancelled PaymentStatus = "cancelled"
	PaymentStatusError     PaymentStatus = "error"
)

// IsTerminal reports whether the status can never change again.
// Error is deliberately not terminal: it marks a transient provider fault
// that the reconciler retries on its next pass.
func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case PaymentStatusSuccess, PaymentStatusFailed, PaymentStatusCancelled:
		return true
	}
	return false
}

// PaymentChannel represents how the payment reached the gateway
type PaymentChannel string

const (
	PaymentChannelOnline    PaymentChannel = "online"
	PaymentChannelTelephony PaymentChannel = "telephony"
	PaymentChannelBulkScan  PaymentChannel = "bulk scan"
)

// PaymentProvider represents the external system settling the money
type PaymentProvider string

const (
	PaymentProviderGovPay    PaymentProvider = "gov pay"
	PaymentProviderPCIPal    PaymentProvider = "pci pal"
	PaymentProviderExela     PaymentProvider = "exela"
	PaymentProviderByAccount PaymentProvider = "payment by account"
)

// PaymentMethod represents the instrument used by the payer
type PaymentMethod string

const (
	PaymentMethodCard   PaymentMethod = "card"
	PaymentMethodPBA    PaymentMethod = "payment by account"
	PaymentMethodCheque PaymentMethod = "cheque"
	PaymentMethodCash   PaymentMethod = "cash"
	PaymentMethodPostal PaymentMethod = "postal order"
)

// ApportionType marks how an allocation row was produced
type ApportionType string

const (
	ApportionTypeAuto   ApportionType = "AUTO"
	ApportionTypeManual ApportionType = "MANUAL"
)
