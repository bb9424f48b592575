package fiscal

import (
	"context"
	"fmt"

	"github.com/mshop/payments/internal/billing"
	"github.com/mshop/payments/internal/port"
)

// ValidateStep rejects a receipt whose lines do not add up to its total; a
// register refuses such a receipt anyway, better to fail before the call.
type ValidateStep struct{}

func (ValidateStep) Name() string { return "validate" }

func (ValidateStep) Run(_ context.Context, receipt *port.Receipt) error {
	if receipt.ID == "" {
		return fmt.Errorf("receipt has no id")
	}
	if len(receipt.Items) == 0 {
		return fmt.Errorf("receipt[%s] has no items", receipt.ID)
	}

	total := billing.Total(receipt.Items, receipt.Total.Currency)
	if !total.Amount.Equal(receipt.Total.Amount) {
		return fmt.Errorf("receipt[%s]: items total[%s] != receipt total[%s]", receipt.ID, total, receipt.Total)
	}

	return nil
}

// SubmitStep hands the receipt to the cash register.
type SubmitStep struct {
	printer port.FiscalPrinter
}

func NewSubmitStep(printer port.FiscalPrinter) (SubmitStep, error) {
	var s SubmitStep

	if printer == nil {
		return s, fmt.Errorf("printer is nil")
	}

	return SubmitStep{printer: printer}, nil
}

func (s SubmitStep) Name() string { return "submit" }

func (s SubmitStep) Run(ctx context.Context, receipt *port.Receipt) error {
	if err := s.printer.Send(ctx, *receipt); err != nil {
		return fmt.Errorf("printer.Send: %w", err)
	}

	return nil
}
