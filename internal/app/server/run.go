package server

import (
	"context"
	"strconv"

	"order-dashboard/internal/api"
	"order-dashboard/internal/app"
	"order-dashboard/internal/common/config"
	"order-dashboard/internal/common/httpx"
	"order-dashboard/internal/common/logger"
	"order-dashboard/internal/notify"
)

// Run serves the order API until ctx is cancelled.
func Run(ctx context.Context, cfg config.App, lg *logger.Logger) error {
	st, err := app.Open(ctx, cfg, "order-api", lg, false)
	if err != nil {
		return err
	}
	defer st.Close()

	notifier := notify.Notifier(notify.Log{Logger: lg.Named("order-api.notify")})
	if st.MQ != nil {
		notifier = notify.Multi(notifier, notify.NewAMQP(st.MQ, "order-api", lg))
	}
	gw := st.Gateway(notifier)

	router := api.NewRouter(api.NewHandler(gw, lg.Named("order-api.http")))
	srv := httpx.New(":"+strconv.Itoa(cfg.HTTP.Port), router, lg)
	return srv.Run(ctx)
}
