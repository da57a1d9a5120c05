package notifications

import (
	"context"
	"errors"

	"order-dashboard/internal/common/config"
	"order-dashboard/internal/common/logger"
	"order-dashboard/internal/common/mq"
	"order-dashboard/internal/notify"
)

// Run logs every notice published on the notifications exchange.
func Run(ctx context.Context, cfg config.App, lg *logger.Logger) error {
	if !cfg.Rabbit.Enabled {
		return errors.New("notification subscriber requires rabbitmq.enabled")
	}
	client, err := mq.Dial(cfg.Rabbit.Client())
	if err != nil {
		return err
	}
	defer client.Close()

	sub, err := client.SubscribeFanout(notify.NotificationsExchange, "notification-subscriber")
	if err != nil {
		return err
	}
	defer func() { _ = sub.Cancel() }()

	lg.Info("subscribed", map[string]any{"exchange": notify.NotificationsExchange})
	return notify.Consume(ctx, sub.Deliveries, notify.Log{Logger: lg}, lg)
}
