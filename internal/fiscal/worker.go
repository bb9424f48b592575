package fiscal

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

const dequeueTimeout = 5 * time.Second

// Worker drains the receipt queue through the pipeline until the context is
// cancelled.
type Worker struct {
	queue    *Queue
	pipeline Pipeline
	logger   zerolog.Logger
}

func NewWorker(queue *Queue, pipeline Pipeline, logger zerolog.Logger) *Worker {
	return &Worker{
		queue:    queue,
		pipeline: pipeline,
		logger:   logger,
	}
}

func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		receipt, ok, err := w.queue.Dequeue(ctx, dequeueTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error().Err(err).Msg("receipt dequeue failed")
			time.Sleep(time.Second)
			continue
		}
		if !ok {
			continue
		}

		if err := w.pipeline.Run(ctx, &receipt); err != nil {
			w.logger.Error().Err(err).Str("receipt_id", receipt.ID).Msg("receipt processing failed")

			if err := w.queue.Requeue(ctx, receipt); err != nil {
				w.logger.Error().Err(err).Str("receipt_id", receipt.ID).Msg("receipt requeue failed")
			}
			continue
		}

		w.logger.Info().Str("receipt_id", receipt.ID).Msg("receipt registered")
	}
}
