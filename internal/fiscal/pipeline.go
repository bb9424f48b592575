package fiscal

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mshop/payments/internal/port"
)

// Step is one stage of receipt processing. Steps mutate the receipt in place
// and the pipeline stops at the first failure so the receipt can be retried
// from scratch.
type Step interface {
	Name() string
	Run(ctx context.Context, receipt *port.Receipt) error
}

type Pipeline struct {
	steps  []Step
	logger zerolog.Logger
}

func NewPipeline(logger zerolog.Logger, steps ...Step) (Pipeline, error) {
	var p Pipeline

	if len(steps) == 0 {
		return p, fmt.Errorf("no steps")
	}

	return Pipeline{
		steps:  steps,
		logger: logger,
	}, nil
}

func (p Pipeline) Run(ctx context.Context, receipt *port.Receipt) error {
	for idx, step := range p.steps {
		if err := step.Run(ctx, receipt); err != nil {
			return fmt.Errorf("step.Run[%d][%s]: %w", idx, step.Name(), err)
		}

		p.logger.Debug().
			Str("step", step.Name()).
			Str("receipt_id", receipt.ID).
			Msg("receipt step done")
	}

	return nil
}
