package worker

import (
	"context"

	"stock-service/internal/broker"
	"stock-service/internal/models"
	"stock-service/internal/util"

	"go.uber.org/zap"
)

// Notifier delivers a reorder alert to whatever channel operations watches.
// Delivery is best-effort; an error only delays redelivery of the event.
type Notifier interface {
	NotifyReorder(ctx context.Context, event *models.ReorderEvent) error
}

// LogNotifier surfaces reorder alerts in the service log. Stands in for the
// mail/chat integration deployments plug in here.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a new log-based notifier
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{logger: util.GetLogger()}
}

// NotifyReorder logs the alert
func (n *LogNotifier) NotifyReorder(_ context.Context, event *models.ReorderEvent) error {
	n.logger.Warn("Item reached reorder threshold",
		zap.Int64("item_id", event.ItemID),
		zap.String("item_name", event.ItemName),
		zap.Int64("current_stock", event.CurrentStock),
		zap.Int64("security_stock", event.SecurityStock))
	return nil
}

// ReorderWorker consumes reorder alerts and hands them to the notifier
type ReorderWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewReorderWorker creates a new reorder worker
func NewReorderWorker(consumer *broker.Consumer, notifier Notifier) *ReorderWorker {
	eventHandler := broker.NewEventHandler()

	logger := util.GetLogger()
	eventHandler.OnReorderAlert(func(ctx context.Context, event *models.ReorderEvent) error {
		if err := notifier.NotifyReorder(ctx, event); err != nil {
			logger.Warn("Reorder notification failed",
				zap.Int64("item_id", event.ItemID),
				zap.Error(err))
			return err
		}
		util.ReorderAlertsDelivered.Inc()
		return nil
	})

	return &ReorderWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
		logger:       logger,
	}
}

// Start starts the worker
func (w *ReorderWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting reorder worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *ReorderWorker) Stop() error {
	w.logger.Info("Stopping reorder worker")
	return w.consumer.Close()
}
