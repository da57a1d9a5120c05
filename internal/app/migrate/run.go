package migrate

import (
	"context"

	"order-dashboard/internal/app"
	"order-dashboard/internal/common/config"
	"order-dashboard/internal/common/logger"
	"order-dashboard/internal/source"
)

// Run creates the orders schema and its change trigger.
func Run(ctx context.Context, cfg config.App, lg *logger.Logger) error {
	st, err := app.Open(ctx, cfg, "migrate", lg, true)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := source.EnsureSchema(ctx, st.Pool); err != nil {
		return err
	}
	lg.Info("schema_ready", map[string]any{"channel": source.NotifyChannel})
	return nil
}
