package domain

// MessageCode classifies why a notification was rejected. It is set only on
// failed responses; the gateway adapter maps it to its own wire vocabulary.
type MessageCode int

const (
	CodeInvalidRequest MessageCode = iota + 1
	CodeOrderNotExists
	CodeLessSum
	CodeMoreSum
	CodeOrderExecutionError
	CodeAlreadyPaid
	CodeNotSuccess
)

func (c MessageCode) String() string {
	switch c {
	case CodeInvalidRequest:
		return "invalid_request"
	case CodeOrderNotExists:
		return "order_not_exists"
	case CodeLessSum:
		return "less_sum"
	case CodeMoreSum:
		return "more_sum"
	case CodeOrderExecutionError:
		return "order_execution_error"
	case CodeAlreadyPaid:
		return "already_paid"
	case CodeNotSuccess:
		return "not_success"
	}
	return "unknown"
}

// DeferredStep identifies the stage of a multi-step deferred-bill exchange.
// It is returned by the adapter together with the verdict so that adapters
// never keep per-request state between calls.
type DeferredStep int

const (
	DeferredStepNone DeferredStep = iota
	DeferredStepAccountInfo
	DeferredStepSubmit
	DeferredStepConfirm
)

type DeferredResult struct {
	Permit bool
	Step   DeferredStep
}

// PaymentResponse is the outcome of processing one notification. The owning
// flow fills it and hands it back to the adapter for rendering.
type PaymentResponse struct {
	Success bool
	Code    MessageCode
	Message string

	Request *Notification

	// Deferred and Ticket are set on the deferred-bill path only; some
	// gateways render step-specific acknowledgements from them.
	Deferred *DeferredResult
	Ticket   *PaymentTicket
}

func Rejected(code MessageCode, message string) PaymentResponse {
	return PaymentResponse{Success: false, Code: code, Message: message}
}
