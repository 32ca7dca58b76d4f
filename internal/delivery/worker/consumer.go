package worker

import (
	"context"
	"log/slog"

	"authflow/config"
	"authflow/internal/delivery"
	deliverycontext "authflow/internal/delivery/context"
	"authflow/internal/domain/constants"
	"authflow/internal/domain/service"
	"authflow/internal/usecase"

	"github.com/google/uuid"
	"go.uber.org/fx"
	"golang.org/x/sync/errgroup"
)

// QueueConsumerParams holds dependencies for the in-process consumer
type QueueConsumerParams struct {
	fx.In

	Cfg        *config.Config
	Logger     *slog.Logger
	Subscriber service.EventSubscriber `optional:"true"`
	ExchangeUC usecase.OAuthExchangeUsecase
}

type queueConsumer struct {
	events     <-chan *service.OAuthCallbackEvent
	workers    int
	logger     *slog.Logger
	exchangeUC usecase.OAuthExchangeUsecase
}

// NewQueueConsumer drains the in-process queue. With an external broker there is no
// subscriber and Serve returns immediately.
func NewQueueConsumer(params QueueConsumerParams) delivery.Delivery {
	consumer := &queueConsumer{
		workers:    1,
		logger:     params.Logger,
		exchangeUC: params.ExchangeUC,
	}
	if params.Subscriber != nil {
		consumer.events = params.Subscriber.Events()
	}
	if params.Cfg.PubSub != nil && params.Cfg.PubSub.Consumers > 0 {
		consumer.workers = params.Cfg.PubSub.Consumers
	}

	return consumer
}

// Serve runs the workers until the queue is closed or ctx is done.
func (q *queueConsumer) Serve(ctx context.Context) error {
	if q.events == nil {
		q.logger.Debug("[Consumer] No in-process queue, consumer disabled")

		return nil
	}

	q.logger.Info("[Consumer] Starting in-process exchange consumer", slog.Int("workers", q.workers))

	g, gctx := errgroup.WithContext(ctx)
	for range q.workers {
		g.Go(func() error {
			for {
				select {
				case event, ok := <-q.events:
					if !ok {
						return nil
					}
					q.handle(gctx, event)
				case <-gctx.Done():
					return nil
				}
			}
		})
	}

	return g.Wait()
}

// handle processes one event. The in-process queue has no redelivery, so failures are logged
// and the callback stays unclaimed.
func (q *queueConsumer) handle(ctx context.Context, event *service.OAuthCallbackEvent) {
	requestID := event.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}
	ctx, logger := deliverycontext.WithRequestScope(ctx, q.logger, requestID)

	callbackID, err := uuid.Parse(event.CallbackID)
	if err != nil {
		logger.Error("[Consumer] Dropping event without a valid callback id",
			slog.String(constants.AttrCallbackID, event.CallbackID),
		)

		return
	}

	if err := q.exchangeUC.ProcessCallback(ctx, callbackID); err != nil {
		logger.Error("[Consumer] Failed to process OAuth callback",
			slog.String(constants.AttrCallbackID, event.CallbackID),
			slog.String(constants.AttrProvider, event.Provider),
			slog.Any("error", err),
		)
	}
}
